/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	"github.com/wrytes/deployment-system/pkg/docker"
	"github.com/wrytes/deployment-system/pkg/environment"
	"github.com/wrytes/deployment-system/pkg/events"
)

type jobKind string

const (
	jobKindRegistry jobKind = "registry"
	jobKindGit      jobKind = "git"
)

// workerJob is the unit handed to a fire-and-forget worker. The worker's
// contract is "eventually writes a terminal row state"; errors never
// propagate past it.
type workerJob struct {
	kind       jobKind
	deployment *dbclient.Deployment
	env        *dbclient.Environment
	request    *RegistryRequest
	plan       *buildPlan
}

// runWorker drives one deployment from PENDING to RUNNING or FAILED. State
// transitions are serial within one job; each step is one row update.
func (e *Engine) runWorker(job *workerJob) {
	ctx := context.Background()
	row := job.deployment

	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("worker for deployment %s panicked: %v", row.DeploymentId, r)
			e.fail(ctx, job, "internal worker failure")
		}
	}()

	if err := e.acquireImage(ctx, job); err != nil {
		e.fail(ctx, job, err.Error())
		return
	}
	if err := e.createVolumes(ctx, job); err != nil {
		e.fail(ctx, job, err.Error())
		return
	}
	if err := e.startService(ctx, job); err != nil {
		e.fail(ctx, job, err.Error())
		return
	}

	if err := e.store.UpdateDeploymentStatus(ctx, row.DeploymentId, dbclient.DeployRunning, "",
		time.Time{}, time.Now()); err != nil {
		klog.ErrorS(err, "failed to mark deployment running", "deploymentId", row.DeploymentId)
		return
	}
	klog.Infof("deployment %s is running", row.DeploymentId)
	e.publish(events.DeploymentSuccess, job.env.UserId, row, nil)
}

// acquireImage is the first phase: pull for registry jobs, build for git
// jobs. It stamps started_at and announces the job.
func (e *Engine) acquireImage(ctx context.Context, job *workerJob) error {
	row := job.deployment
	phase := dbclient.DeployPullingImage
	if job.kind == jobKindGit {
		phase = dbclient.DeployBuildingImage
	}
	if err := e.store.UpdateDeploymentStatus(ctx, row.DeploymentId, phase, "",
		time.Now(), time.Time{}); err != nil {
		return err
	}
	e.publish(events.DeploymentStarted, job.env.UserId, row, nil)

	if job.kind == jobKindGit {
		dockerfile := generateDockerfile(*job.plan)
		buildContext, err := buildContextTar(dockerfile)
		if err != nil {
			return err
		}
		return e.driver.BuildImageFromTar(ctx, buildContext, row.Image+":"+row.Tag)
	}
	return e.driver.PullImage(ctx, row.Image, row.Tag)
}

// createVolumes expands logical volume names to managed names, creates them,
// and rewrites the persisted volume list.
func (e *Engine) createVolumes(ctx context.Context, job *workerJob) error {
	row := job.deployment
	if err := e.store.UpdateDeploymentStatus(ctx, row.DeploymentId, dbclient.DeployCreatingVolumes, "",
		time.Time{}, time.Time{}); err != nil {
		return err
	}
	if len(job.request.Volumes) == 0 {
		return nil
	}
	expanded := make([]VolumeSpec, 0, len(job.request.Volumes))
	for _, v := range job.request.Volumes {
		name := docker.VolumeName(job.env.Name, v.Name)
		if err := e.driver.CreateVolume(ctx, name, map[string]string{
			docker.EnvIdLabel:        job.env.EnvId,
			docker.DeploymentIdLabel: row.DeploymentId,
		}); err != nil {
			return err
		}
		expanded = append(expanded, VolumeSpec{Name: name, Target: v.Target})
	}
	volumesJSON, err := marshalVolumes(expanded)
	if err != nil {
		return err
	}
	if err := e.store.UpdateDeploymentVolumes(ctx, row.DeploymentId, volumesJSON); err != nil {
		return err
	}
	row.Volumes.String, row.Volumes.Valid = volumesJSON, true
	job.request.Volumes = expanded
	return nil
}

// startService composes the Swarm service and records its projection row.
func (e *Engine) startService(ctx context.Context, job *workerJob) error {
	row := job.deployment
	if err := e.store.UpdateDeploymentStatus(ctx, row.DeploymentId, dbclient.DeployStartingContainers, "",
		time.Time{}, time.Time{}); err != nil {
		return err
	}

	spec := e.composeServiceSpec(job)
	driverServiceId, err := e.driver.CreateService(ctx, spec)
	if err != nil {
		return err
	}

	svc := &dbclient.Service{
		ServiceId:    row.DeploymentId + "-svc",
		DeploymentId: row.DeploymentId,
		Name:         spec.Name,
		Status:       dbclient.ServiceRunning,
		Health:       dbclient.HealthNone,
	}
	svc.DriverServiceId.String, svc.DriverServiceId.Valid = driverServiceId, true
	return e.store.UpsertService(ctx, svc)
}

func (e *Engine) composeServiceSpec(job *workerJob) *docker.ServiceSpec {
	row := job.deployment
	req := job.request

	envVars := make(map[string]string, len(req.EnvVars)+4)
	for k, v := range req.EnvVars {
		envVars[k] = v
	}
	if job.env.IsPublic && job.env.PublicDomain.Valid {
		for k, v := range environment.ProxyEnv(job.env.PublicDomain.String, req.VirtualPort) {
			envVars[k] = v
		}
	}

	spec := &docker.ServiceSpec{
		Name:     docker.ServiceName(job.env.Name, row.JobId),
		Image:    row.Image + ":" + row.Tag,
		Replicas: uint64(row.Replicas),
		Env:      envVars,
		Labels: map[string]string{
			docker.EnvIdLabel:        job.env.EnvId,
			docker.DeploymentIdLabel: row.DeploymentId,
			docker.UserIdLabel:       job.env.UserId,
		},
		Networks: []string{job.env.OverlayName},
	}
	for _, p := range req.Ports {
		spec.Ports = append(spec.Ports, docker.PortMapping{
			Container: p.Container,
			Host:      p.Host,
			Protocol:  p.Protocol,
		})
	}
	for _, v := range req.Volumes {
		spec.Mounts = append(spec.Mounts, docker.VolumeMount{Source: v.Name, Target: v.Target})
	}
	if hc := req.Healthcheck; hc != nil && len(hc.Test) > 0 {
		spec.Healthcheck = &docker.Healthcheck{
			Test:     hc.Test,
			Interval: time.Duration(hc.IntervalSeconds) * time.Second,
			Timeout:  time.Duration(hc.TimeoutSeconds) * time.Second,
			Retries:  hc.Retries,
		}
	}
	if r := req.Resources; r != nil {
		spec.Resources = &docker.Resources{
			NanoCPUs:    int64(r.CPUs * 1e9),
			MemoryBytes: r.MemoryBytes,
		}
	}
	return spec
}

// fail is the single exit of every worker error path: record the message,
// flip the row to FAILED, stamp completed_at, announce the failure.
func (e *Engine) fail(ctx context.Context, job *workerJob, message string) {
	row := job.deployment
	klog.Errorf("deployment %s failed: %s", row.DeploymentId, message)
	if err := e.store.UpdateDeploymentStatus(ctx, row.DeploymentId, dbclient.DeployFailed, message,
		time.Time{}, time.Now()); err != nil {
		klog.ErrorS(err, "failed to record deployment failure", "deploymentId", row.DeploymentId)
	}
	e.publish(events.DeploymentFailed, job.env.UserId, row, map[string]interface{}{"error": message})
}
