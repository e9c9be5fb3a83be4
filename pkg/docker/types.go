/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import "time"

// Label conventions. The driver creates only resources carrying ManagedLabel
// and removes only resources that carry it; the owner labels scope discovery
// and cascade cleanup.
const (
	ManagedLabel      = "managed"
	ManagedValue      = "true"
	EnvIdLabel        = "wrytes.env_id"
	DeploymentIdLabel = "wrytes.deployment_id"
	UserIdLabel       = "wrytes.user_id"
)

// PortMapping publishes one container port on the ingress.
type PortMapping struct {
	Container uint32 `json:"container"`
	Host      uint32 `json:"host"`
	Protocol  string `json:"protocol,omitempty"`
}

// VolumeMount binds a managed volume into the task.
type VolumeMount struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Healthcheck is an optional container health probe.
type Healthcheck struct {
	Test     []string      `json:"test"`
	Interval time.Duration `json:"interval,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
	Retries  int           `json:"retries,omitempty"`
}

// Resources bounds one task. Zero values leave the dimension unbounded.
type Resources struct {
	NanoCPUs    int64 `json:"nanoCpus,omitempty"`
	MemoryBytes int64 `json:"memoryBytes,omitempty"`
}

// ServiceSpec is the driver-level description of one Swarm service. The
// driver adds the hardening defaults (cap-drop ALL, no-new-privileges,
// bounded on-failure restarts) on top of it.
type ServiceSpec struct {
	Name        string
	Image       string
	Replicas    uint64
	Env         map[string]string
	Labels      map[string]string
	Ports       []PortMapping
	Mounts      []VolumeMount
	Networks    []string
	Healthcheck *Healthcheck
	Resources   *Resources
}

// ServiceStatus summarizes the live state of one service's tasks.
type ServiceStatus struct {
	ID           string
	Name         string
	RunningTasks int
	DesiredTasks int
	RestartCount int
}
