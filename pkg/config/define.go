/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

const (
	// server
	serverPrefix  = "server."
	serverPort    = serverPrefix + "port"
	serverBaseURL = serverPrefix + "base_url"
	serverEnv     = serverPrefix + "env"
	logLevel      = serverPrefix + "log_level"
	internalToken = serverPrefix + "internal_token"

	// db
	dbPrefix               = "db."
	dbURL                  = dbPrefix + "url"
	dbMaxOpenConns         = dbPrefix + "max_open_conns"
	dbMaxIdleConns         = dbPrefix + "max_idle_conns"
	dbMaxLifetime          = dbPrefix + "max_life_time_second"
	dbMaxIdleTimeSecond    = dbPrefix + "max_idle_time_second"
	dbConnectTimeoutSecond = dbPrefix + "connect_timeout_second"
	dbRequestTimeoutSecond = dbPrefix + "request_timeout_second"

	// docker
	dockerPrefix        = "docker."
	dockerSocketPath    = dockerPrefix + "socket_path"
	swarmAdvertiseAddr  = dockerPrefix + "swarm_advertise_addr"
	nginxContainerName  = dockerPrefix + "nginx_container_name"
	letsEncryptEmail    = dockerPrefix + "letsencrypt_email"
	letsEncryptStaging  = dockerPrefix + "letsencrypt_staging"
	recoveryEnable      = dockerPrefix + "recovery_enable"
	buildTimeoutSeconds = dockerPrefix + "build_timeout_second"

	// crypto
	cryptoPrefix = "crypto."
	cryptoEnable = cryptoPrefix + "enable"
	cryptoKey    = cryptoPrefix + "key"

	// throttle
	throttlePrefix = "throttle."
	throttleTTL    = throttlePrefix + "ttl_second"
	throttleLimit  = throttlePrefix + "limit"

	// notification
	notifyPrefix   = "notification."
	chatWebhookURL = notifyPrefix + "chat_webhook_url"
	smtpHost       = notifyPrefix + "smtp_host"
	smtpPort       = notifyPrefix + "smtp_port"
	smtpUser       = notifyPrefix + "smtp_user"
	smtpPassword   = notifyPrefix + "smtp_password"
	smtpFrom       = notifyPrefix + "smtp_from"

	// health
	healthPrefix      = "health."
	healthMaxRssMiB   = healthPrefix + "max_rss_mib"
	healthMinDiskFree = healthPrefix + "min_disk_free_percent"
	healthDiskPath    = healthPrefix + "disk_path"
)

// envBindings maps viper keys to the environment variables the process
// documents. Environment values override anything loaded from file.
var envBindings = map[string]string{
	serverPort:         "PORT",
	serverBaseURL:      "BASE_URL",
	serverEnv:          "NODE_ENV",
	logLevel:           "LOG_LEVEL",
	internalToken:      "INTERNAL_API_TOKEN",
	dbURL:              "DATABASE_URL",
	dockerSocketPath:   "DOCKER_SOCKET_PATH",
	swarmAdvertiseAddr: "DOCKER_SWARM_ADVERTISE_ADDR",
	nginxContainerName: "NGINX_CONTAINER_NAME",
	letsEncryptEmail:   "LETSENCRYPT_EMAIL",
	letsEncryptStaging: "LETSENCRYPT_STAGING",
	recoveryEnable:     "ENABLE_DEPLOYMENT_RECOVERY",
	throttleTTL:        "THROTTLE_TTL",
	throttleLimit:      "THROTTLE_LIMIT",
	cryptoKey:          "CRYPTO_KEY",
	chatWebhookURL:     "CHAT_WEBHOOK_URL",
}
