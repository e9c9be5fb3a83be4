/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"strings"

	"github.com/spf13/viper"
)

// SetValue sets a configuration value for the specified key.
func SetValue(key string, value interface{}) {
	viper.Set(key, value)
}

// LoadConfig loads configuration from the specified yaml file path and binds
// the documented environment variables. An empty path skips the file and
// leaves the process on env vars and defaults only.
func LoadConfig(path string) error {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getBool(key string, defaultValue bool) bool {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetBool(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

// GetServerPort returns the API server port.
func GetServerPort() int {
	return getInt(serverPort, 3000)
}

// GetBaseURL returns the public base URL used to compose magic-link URLs.
func GetBaseURL() string {
	return getString(serverBaseURL, "http://localhost:3000")
}

// GetEnv returns the runtime environment name (development, production).
func GetEnv() string {
	return getString(serverEnv, "development")
}

// GetLogLevel returns the klog verbosity level.
func GetLogLevel() int {
	return getInt(logLevel, 0)
}

// GetInternalToken returns the shared token guarding internal-only routes.
func GetInternalToken() string {
	return getString(internalToken, "")
}

// GetDatabaseURL returns the postgres connection string.
func GetDatabaseURL() string {
	return getString(dbURL, "")
}

func GetDBMaxOpenConns() int {
	return getInt(dbMaxOpenConns, 20)
}

func GetDBMaxIdleConns() int {
	return getInt(dbMaxIdleConns, 5)
}

func GetDBMaxLifetimeSecond() int {
	return getInt(dbMaxLifetime, 1800)
}

func GetDBMaxIdleTimeSecond() int {
	return getInt(dbMaxIdleTimeSecond, 600)
}

func GetDBConnectTimeoutSecond() int {
	return getInt(dbConnectTimeoutSecond, 10)
}

func GetDBRequestTimeoutSecond() int {
	return getInt(dbRequestTimeoutSecond, 30)
}

// GetDockerSocketPath returns the Docker Engine socket path.
func GetDockerSocketPath() string {
	return getString(dockerSocketPath, "/var/run/docker.sock")
}

// GetSwarmAdvertiseAddr returns the swarm advertise address, if configured.
func GetSwarmAdvertiseAddr() string {
	return getString(swarmAdvertiseAddr, "")
}

// GetNginxContainerName returns the reverse-proxy sidecar container name.
func GetNginxContainerName() string {
	return getString(nginxContainerName, "nginx_proxy")
}

// GetLetsEncryptEmail returns the ACME registration email injected into
// public services.
func GetLetsEncryptEmail() string {
	return getString(letsEncryptEmail, "")
}

// IsLetsEncryptStaging returns whether the staging ACME endpoint is used.
func IsLetsEncryptStaging() bool {
	return getBool(letsEncryptStaging, false)
}

// IsRecoveryEnabled returns whether the boot-time deployment recovery runs.
func IsRecoveryEnabled() bool {
	return getBool(recoveryEnable, true)
}

// GetBuildTimeoutSecond returns the upper bound for one image build stream.
// Zero means no timeout.
func GetBuildTimeoutSecond() int {
	return getInt(buildTimeoutSeconds, 0)
}

// IsCryptoEnable returns whether column encryption is enabled.
func IsCryptoEnable() bool {
	return getBool(cryptoEnable, false)
}

// GetCryptoKey returns the symmetric encryption key.
func GetCryptoKey() string {
	return getString(cryptoKey, "")
}

// GetThrottleTTLSecond returns the window length of the default rate bucket.
func GetThrottleTTLSecond() int {
	return getInt(throttleTTL, 60)
}

// GetThrottleLimit returns the default per-credential request budget.
func GetThrottleLimit() int {
	return getInt(throttleLimit, 100)
}

// GetChatWebhookURL returns the chat delivery webhook endpoint.
func GetChatWebhookURL() string {
	return getString(chatWebhookURL, "")
}

func GetSMTPHost() string {
	return getString(smtpHost, "")
}

func GetSMTPPort() int {
	return getInt(smtpPort, 587)
}

func GetSMTPUser() string {
	return getString(smtpUser, "")
}

func GetSMTPPassword() string {
	return getString(smtpPassword, "")
}

func GetSMTPFrom() string {
	return getString(smtpFrom, "")
}

func GetHealthMaxRssMiB() int {
	return getInt(healthMaxRssMiB, 300)
}

func GetHealthMinDiskFreePercent() int {
	return getInt(healthMinDiskFree, 50)
}

func GetHealthDiskPath() string {
	return getString(healthDiskPath, "/")
}

// IsProduction reports whether the process runs with production settings.
func IsProduction() bool {
	return strings.EqualFold(GetEnv(), "production")
}
