/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment

import (
	"encoding/json"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/pkg/errors"

	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// PortSpec publishes one container port on the host.
type PortSpec struct {
	Container uint32 `json:"container"`
	Host      uint32 `json:"host"`
	Protocol  string `json:"protocol,omitempty"`
}

// VolumeSpec declares one named volume and its mount path. Name starts as the
// caller's logical name; the worker rewrites it to the expanded managed name
// before the service starts.
type VolumeSpec struct {
	Name   string `json:"name"`
	Target string `json:"target"`
}

// HealthcheckSpec is an optional container healthcheck.
type HealthcheckSpec struct {
	Test            []string `json:"test"`
	IntervalSeconds int      `json:"intervalSeconds,omitempty"`
	TimeoutSeconds  int      `json:"timeoutSeconds,omitempty"`
	Retries         int      `json:"retries,omitempty"`
}

// ResourceSpec carries optional per-task limits.
type ResourceSpec struct {
	CPUs        float64 `json:"cpus,omitempty"`
	MemoryBytes int64   `json:"memoryBytes,omitempty"`
}

// RegistryRequest creates a deployment from a registry image.
type RegistryRequest struct {
	EnvironmentId string            `json:"environmentId" binding:"required"`
	Image         string            `json:"image" binding:"required"`
	Tag           string            `json:"tag"`
	Replicas      int               `json:"replicas"`
	Ports         []PortSpec        `json:"ports"`
	EnvVars       map[string]string `json:"envVars"`
	Volumes       []VolumeSpec      `json:"volumes"`
	VirtualPort   int64             `json:"virtualPort"`
	Healthcheck   *HealthcheckSpec  `json:"healthcheck"`
	Resources     *ResourceSpec     `json:"resources"`
}

// GitRequest creates a deployment built from a Git repository. The image name
// is generated; Image in the registry fields is ignored.
type GitRequest struct {
	RegistryRequest
	GitUrl         string `json:"gitUrl" binding:"required"`
	Branch         string `json:"branch"`
	BaseImage      string `json:"baseImage"`
	InstallCommand string `json:"installCommand"`
	BuildCommand   string `json:"buildCommand"`
	StartCommand   string `json:"startCommand"`
}

// Receipt is the immediate response of both create operations. The worker has
// not run yet when it is returned.
type Receipt struct {
	JobId        string `json:"jobId"`
	DeploymentId string `json:"deploymentId"`
	Status       string `json:"status"`
}

// StatusView is a deployment joined with its service and environment, the
// shape returned by job polling.
type StatusView struct {
	Deployment  *dbclient.Deployment  `json:"deployment"`
	Service     *dbclient.Service     `json:"service,omitempty"`
	Environment *dbclient.Environment `json:"environment"`
}

// validatePorts checks every port mapping against the engine's port grammar
// and fills in the default protocol.
func validatePorts(ports []PortSpec) error {
	for i := range ports {
		proto := ports[i].Protocol
		if proto == "" {
			proto = "tcp"
		}
		spec := fmt.Sprintf("%d/%s", ports[i].Container, proto)
		if ports[i].Host > 0 {
			spec = fmt.Sprintf("%d:%d/%s", ports[i].Host, ports[i].Container, proto)
		}
		if _, err := nat.ParsePortSpec(spec); err != nil {
			return commonerrors.NewBadRequest(fmt.Sprintf("invalid port mapping %q: %v", spec, err))
		}
		if ports[i].Container == 0 {
			return commonerrors.NewBadRequest("container port must not be zero")
		}
		ports[i].Protocol = proto
	}
	return nil
}

func marshalPorts(ports []PortSpec) (string, error) {
	if len(ports) == 0 {
		return "", nil
	}
	b, err := json.Marshal(ports)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal ports")
	}
	return string(b), nil
}

func unmarshalPorts(raw string) ([]PortSpec, error) {
	if raw == "" {
		return nil, nil
	}
	var ports []PortSpec
	if err := json.Unmarshal([]byte(raw), &ports); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal ports")
	}
	return ports, nil
}

func marshalVolumes(volumes []VolumeSpec) (string, error) {
	if len(volumes) == 0 {
		return "", nil
	}
	b, err := json.Marshal(volumes)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal volumes")
	}
	return string(b), nil
}

func unmarshalVolumes(raw string) ([]VolumeSpec, error) {
	if raw == "" {
		return nil, nil
	}
	var volumes []VolumeSpec
	if err := json.Unmarshal([]byte(raw), &volumes); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal volumes")
	}
	return volumes, nil
}

func marshalEnvVars(envVars map[string]string) (string, error) {
	if len(envVars) == 0 {
		return "", nil
	}
	b, err := json.Marshal(envVars)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal env vars")
	}
	return string(b), nil
}

func unmarshalEnvVars(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var envVars map[string]string
	if err := json.Unmarshal([]byte(raw), &envVars); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal env vars")
	}
	return envVars, nil
}
