/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package docker

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/errdefs"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	restartMaxAttempts uint64 = 3
	restartDelay              = 5 * time.Second
)

// CreateService creates a Swarm service from the driver spec and returns the
// engine service id. Hardened defaults are applied unconditionally: all
// capabilities dropped, no-new-privileges, on-failure restarts bounded at 3
// attempts with a 5s delay.
func (d *Driver) CreateService(ctx context.Context, spec *ServiceSpec) (string, error) {
	serviceSpec := buildServiceSpec(spec)
	resp, err := d.cli.ServiceCreate(ctx, serviceSpec, swarm.ServiceCreateOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create service %s", spec.Name)
	}
	for _, warning := range resp.Warnings {
		klog.Warningf("service %s created with warning: %s", spec.Name, warning)
	}
	return resp.ID, nil
}

// GetService inspects a service by name or id; an absent service returns nil
// without error.
func (d *Driver) GetService(ctx context.Context, nameOrId string) (*swarm.Service, error) {
	service, _, err := d.cli.ServiceInspectWithRaw(ctx, nameOrId, swarm.ServiceInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to inspect service %s", nameOrId)
	}
	return &service, nil
}

// GetServiceStatus summarizes a service's tasks. An absent service returns
// nil without error.
func (d *Driver) GetServiceStatus(ctx context.Context, nameOrId string) (*ServiceStatus, error) {
	service, err := d.GetService(ctx, nameOrId)
	if err != nil || service == nil {
		return nil, err
	}
	status := &ServiceStatus{
		ID:   service.ID,
		Name: service.Spec.Name,
	}
	if service.Spec.Mode.Replicated != nil && service.Spec.Mode.Replicated.Replicas != nil {
		status.DesiredTasks = int(*service.Spec.Mode.Replicated.Replicas)
	}
	tasks, err := d.cli.TaskList(ctx, swarm.TaskListOptions{
		Filters: filters.NewArgs(filters.Arg("service", service.ID)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list tasks of service %s", nameOrId)
	}
	for _, task := range tasks {
		switch task.Status.State {
		case swarm.TaskStateRunning:
			status.RunningTasks++
		case swarm.TaskStateFailed, swarm.TaskStateRejected:
			status.RestartCount++
		}
	}
	return status, nil
}

// UpdateServiceEnv patches env vars into a running service's spec without
// replacing the task definition wholesale. Existing vars win unless
// overwritten by the patch.
func (d *Driver) UpdateServiceEnv(ctx context.Context, nameOrId string, env map[string]string) error {
	service, err := d.GetService(ctx, nameOrId)
	if err != nil {
		return err
	}
	if service == nil {
		return errors.Errorf("service %s not found", nameOrId)
	}
	spec := service.Spec
	if spec.TaskTemplate.ContainerSpec == nil {
		return errors.Errorf("service %s has no container spec", nameOrId)
	}
	spec.TaskTemplate.ContainerSpec.Env = mergeEnv(spec.TaskTemplate.ContainerSpec.Env, env)
	resp, err := d.cli.ServiceUpdate(ctx, service.ID, service.Version, spec, swarm.ServiceUpdateOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to update service %s", nameOrId)
	}
	for _, warning := range resp.Warnings {
		klog.Warningf("service %s updated with warning: %s", nameOrId, warning)
	}
	return nil
}

// RemoveService removes a service by name or id; absence is success.
func (d *Driver) RemoveService(ctx context.Context, nameOrId string) error {
	if err := d.cli.ServiceRemove(ctx, nameOrId); err != nil {
		if errdefs.IsNotFound(err) {
			klog.V(2).Infof("service %s already gone", nameOrId)
			return nil
		}
		return errors.Wrapf(err, "failed to remove service %s", nameOrId)
	}
	return nil
}

// GetServiceLogs returns up to tail lines of combined, timestamped
// stdout/stderr from all tasks of a service.
func (d *Driver) GetServiceLogs(ctx context.Context, nameOrId string, tail string) ([]byte, error) {
	reader, err := d.cli.ServiceLogs(ctx, nameOrId, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       tail,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get logs of service %s", nameOrId)
	}
	defer reader.Close()
	return readAllBounded(reader, 4*1024*1024)
}

func buildServiceSpec(spec *ServiceSpec) swarm.ServiceSpec {
	replicas := spec.Replicas
	if replicas == 0 {
		replicas = 1
	}
	maxAttempts := restartMaxAttempts
	delay := restartDelay

	containerSpec := &swarm.ContainerSpec{
		Image:  spec.Image,
		Env:    mergeEnv(nil, spec.Env),
		Labels: managedLabels(spec.Labels),
		Privileges: &swarm.Privileges{
			NoNewPrivileges: true,
		},
		CapabilityDrop: []string{"ALL"},
	}
	for _, m := range spec.Mounts {
		containerSpec.Mounts = append(containerSpec.Mounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: m.Source,
			Target: m.Target,
		})
	}
	if hc := spec.Healthcheck; hc != nil {
		containerSpec.Healthcheck = &container.HealthConfig{
			Test:     hc.Test,
			Interval: hc.Interval,
			Timeout:  hc.Timeout,
			Retries:  hc.Retries,
		}
	}

	taskTemplate := swarm.TaskSpec{
		ContainerSpec: containerSpec,
		RestartPolicy: &swarm.RestartPolicy{
			Condition:   swarm.RestartPolicyConditionOnFailure,
			MaxAttempts: &maxAttempts,
			Delay:       &delay,
		},
	}
	if r := spec.Resources; r != nil && (r.NanoCPUs > 0 || r.MemoryBytes > 0) {
		taskTemplate.Resources = &swarm.ResourceRequirements{
			Limits: &swarm.Limit{
				NanoCPUs:    r.NanoCPUs,
				MemoryBytes: r.MemoryBytes,
			},
		}
	}
	for _, networkName := range spec.Networks {
		taskTemplate.Networks = append(taskTemplate.Networks, swarm.NetworkAttachmentConfig{
			Target: networkName,
		})
	}

	serviceSpec := swarm.ServiceSpec{
		Annotations: swarm.Annotations{
			Name:   spec.Name,
			Labels: managedLabels(spec.Labels),
		},
		TaskTemplate: taskTemplate,
		Mode: swarm.ServiceMode{
			Replicated: &swarm.ReplicatedService{Replicas: &replicas},
		},
	}
	if len(spec.Ports) > 0 {
		endpointSpec := &swarm.EndpointSpec{Mode: swarm.ResolutionModeVIP}
		for _, p := range spec.Ports {
			protocol := swarm.PortConfigProtocolTCP
			if p.Protocol == "udp" {
				protocol = swarm.PortConfigProtocolUDP
			}
			endpointSpec.Ports = append(endpointSpec.Ports, swarm.PortConfig{
				Protocol:      protocol,
				TargetPort:    p.Container,
				PublishedPort: p.Host,
				PublishMode:   swarm.PortConfigPublishModeIngress,
			})
		}
		serviceSpec.EndpointSpec = endpointSpec
	}
	return serviceSpec
}

// mergeEnv merges patch into base ("K=V" form), with patch entries winning.
func mergeEnv(base []string, patch map[string]string) []string {
	merged := make([]string, 0, len(base)+len(patch))
	for _, kv := range base {
		key := kv
		if idx := indexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if _, replaced := patch[key]; !replaced {
			merged = append(merged, kv)
		}
	}
	for k, v := range patch {
		merged = append(merged, k+"="+v)
	}
	return merged
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
