/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/crypto"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	dbutils "github.com/wrytes/deployment-system/pkg/database/utils"
	"github.com/wrytes/deployment-system/pkg/docker"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/events"
	"github.com/wrytes/deployment-system/pkg/utils/stringutil"
)

const jobIdLength = 16

// Store is the slice of the database client the engine uses.
type Store interface {
	GetEnvironment(ctx context.Context, envId string) (*dbclient.Environment, error)
	GetEnvironmentForUser(ctx context.Context, userId, envId string) (*dbclient.Environment, error)
	InsertDeployment(ctx context.Context, d *dbclient.Deployment) error
	GetDeployment(ctx context.Context, deploymentId string) (*dbclient.Deployment, error)
	GetDeploymentByJobId(ctx context.Context, jobId string) (*dbclient.Deployment, error)
	ListDeploymentsByEnv(ctx context.Context, envId string) ([]*dbclient.Deployment, error)
	UpdateDeploymentStatus(ctx context.Context, deploymentId, status, errorMessage string,
		startedAt, completedAt time.Time) error
	UpdateDeploymentVolumes(ctx context.Context, deploymentId, volumesJSON string) error
	DeleteDeployment(ctx context.Context, deploymentId string) error
	UpsertService(ctx context.Context, svc *dbclient.Service) error
	GetServiceByDeployment(ctx context.Context, deploymentId string) (*dbclient.Service, error)
	InsertDeploymentVersion(ctx context.Context, v *dbclient.DeploymentVersion) error
	ListDeploymentVersions(ctx context.Context, deploymentId string) ([]*dbclient.DeploymentVersion, error)
	DeleteDeploymentHistory(ctx context.Context, deploymentId string) error
}

// Driver is the slice of the Docker driver the engine uses.
type Driver interface {
	PullImage(ctx context.Context, img, tag string) error
	BuildImageFromTar(ctx context.Context, buildContext io.Reader, tag string) error
	CreateVolume(ctx context.Context, name string, labels map[string]string) error
	DeleteVolume(ctx context.Context, name string) error
	CreateService(ctx context.Context, spec *docker.ServiceSpec) (string, error)
	RemoveService(ctx context.Context, nameOrId string) error
	GetServiceLogs(ctx context.Context, nameOrId string, tail string) ([]byte, error)
}

// Engine owns the deployment lifecycle. Both create operations persist a
// PENDING row and return before any driver side effect; a fire-and-forget
// worker advances the row to a terminal state.
type Engine struct {
	store  Store
	driver Driver
	bus    *events.Bus
	enc    *crypto.Crypto
}

func NewEngine(store Store, driver Driver, bus *events.Bus) *Engine {
	return &Engine{store: store, driver: driver, bus: bus, enc: crypto.NewCrypto()}
}

// CreateFromRegistry starts a deployment of a registry image.
func (e *Engine) CreateFromRegistry(ctx context.Context, userId string, req *RegistryRequest) (*Receipt, error) {
	env, err := e.verifyEnvironment(ctx, userId, req.EnvironmentId)
	if err != nil {
		return nil, err
	}
	if req.Image == "" {
		return nil, commonerrors.NewBadRequest("image is required")
	}
	tag := req.Tag
	if tag == "" {
		tag = "latest"
	}
	row, err := e.insertPending(ctx, env, req, req.Image, tag, nil)
	if err != nil {
		return nil, err
	}
	go e.runWorker(&workerJob{
		kind:       jobKindRegistry,
		deployment: row,
		env:        env,
		request:    req,
	})
	return &Receipt{JobId: row.JobId, DeploymentId: row.DeploymentId, Status: row.Status}, nil
}

// CreateFromGit starts a deployment built from a Git repository. The image
// name is generated from the environment and the build time; the tag is the
// requested branch, or latest when none was given.
func (e *Engine) CreateFromGit(ctx context.Context, userId string, req *GitRequest) (*Receipt, error) {
	env, err := e.verifyEnvironment(ctx, userId, req.EnvironmentId)
	if err != nil {
		return nil, err
	}
	if req.GitUrl == "" {
		return nil, commonerrors.NewBadRequest("gitUrl is required")
	}
	plan := newBuildPlan(req)
	image := docker.ImageName(env.Name, time.Now())
	tag := req.Branch
	if tag == "" {
		tag = "latest"
	}
	row, err := e.insertPending(ctx, env, &req.RegistryRequest, image, tag, req)
	if err != nil {
		return nil, err
	}
	go e.runWorker(&workerJob{
		kind:       jobKindGit,
		deployment: row,
		env:        env,
		request:    &req.RegistryRequest,
		plan:       &plan,
	})
	return &Receipt{JobId: row.JobId, DeploymentId: row.DeploymentId, Status: row.Status}, nil
}

// GetStatus returns the deployment identified by its polling handle, joined
// with its service row and environment. Ownership is enforced through the
// environment.
func (e *Engine) GetStatus(ctx context.Context, userId, jobId string) (*StatusView, error) {
	row, err := e.store.GetDeploymentByJobId(ctx, jobId)
	if err != nil {
		return nil, err
	}
	env, err := e.store.GetEnvironmentForUser(ctx, userId, row.EnvId)
	if err != nil {
		if commonerrors.IsNotFound(err) {
			return nil, commonerrors.NewNotFound("job", jobId)
		}
		return nil, err
	}
	view := &StatusView{Deployment: row, Environment: env}
	svc, err := e.store.GetServiceByDeployment(ctx, row.DeploymentId)
	if err == nil {
		view.Service = svc
	} else if !commonerrors.IsNotFound(err) {
		return nil, err
	}
	return view, nil
}

// ListByEnvironment returns an environment's deployments, newest first.
func (e *Engine) ListByEnvironment(ctx context.Context, userId, envId string) ([]*dbclient.Deployment, error) {
	if _, err := e.store.GetEnvironmentForUser(ctx, userId, envId); err != nil {
		return nil, err
	}
	return e.store.ListDeploymentsByEnv(ctx, envId)
}

// ListVersions returns a deployment's desired-state history, newest first.
func (e *Engine) ListVersions(ctx context.Context, userId, deploymentId string) ([]*dbclient.DeploymentVersion, error) {
	if _, _, err := e.getOwned(ctx, userId, deploymentId); err != nil {
		return nil, err
	}
	return e.store.ListDeploymentVersions(ctx, deploymentId)
}

// GetLogs returns up to tail lines of the deployment's service logs.
func (e *Engine) GetLogs(ctx context.Context, userId, deploymentId string, tail int) ([]byte, error) {
	row, env, err := e.getOwned(ctx, userId, deploymentId)
	if err != nil {
		return nil, err
	}
	if tail <= 0 {
		tail = 100
	}
	return e.driver.GetServiceLogs(ctx, docker.ServiceName(env.Name, row.JobId), strconv.Itoa(tail))
}

// Delete stops and removes a deployment. The driver service is removed
// (absent is fine), volumes go with it unless preserveVolumes, and the row is
// hard-deleted together with its history.
func (e *Engine) Delete(ctx context.Context, userId, deploymentId string, preserveVolumes bool) error {
	row, env, err := e.getOwned(ctx, userId, deploymentId)
	if err != nil {
		return err
	}
	wasRunning := row.Status == dbclient.DeployRunning

	if err := e.driver.RemoveService(ctx, docker.ServiceName(env.Name, row.JobId)); err != nil {
		return commonerrors.NewInternalError(fmt.Sprintf("failed to remove service: %v", err))
	}
	if !preserveVolumes {
		volumes, err := unmarshalVolumes(dbutils.ParseNullString(row.Volumes))
		if err != nil {
			klog.ErrorS(err, "failed to decode persisted volumes", "deploymentId", deploymentId)
		}
		for _, v := range volumes {
			if err := e.driver.DeleteVolume(ctx, v.Name); err != nil {
				klog.ErrorS(err, "failed to remove volume", "volume", v.Name)
			}
		}
	}
	if err := e.store.DeleteDeploymentHistory(ctx, deploymentId); err != nil {
		klog.ErrorS(err, "failed to delete deployment history", "deploymentId", deploymentId)
	}
	if err := e.store.DeleteDeployment(ctx, deploymentId); err != nil {
		return err
	}
	klog.Infof("deployment %s deleted", deploymentId)
	if wasRunning {
		e.publish(events.DeploymentStopped, env.UserId, row, nil)
	}
	return nil
}

func (e *Engine) verifyEnvironment(ctx context.Context, userId, envId string) (*dbclient.Environment, error) {
	if envId == "" {
		return nil, commonerrors.NewBadRequest("environmentId is required")
	}
	env, err := e.store.GetEnvironmentForUser(ctx, userId, envId)
	if err != nil {
		return nil, err
	}
	if env.Status != dbclient.EnvActive {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("environment is %s, must be %s", env.Status, dbclient.EnvActive))
	}
	return env, nil
}

// getOwned resolves a deployment and proves the caller owns its environment.
// Foreign deployments surface as not found.
func (e *Engine) getOwned(ctx context.Context, userId, deploymentId string) (*dbclient.Deployment, *dbclient.Environment, error) {
	row, err := e.store.GetDeployment(ctx, deploymentId)
	if err != nil {
		return nil, nil, err
	}
	env, err := e.store.GetEnvironmentForUser(ctx, userId, row.EnvId)
	if err != nil {
		if commonerrors.IsNotFound(err) {
			return nil, nil, commonerrors.NewNotFound("deployment", deploymentId)
		}
		return nil, nil, err
	}
	return row, env, nil
}

// insertPending persists the PENDING row plus its first version snapshot.
// Env vars go through the column encryptor.
func (e *Engine) insertPending(ctx context.Context, env *dbclient.Environment,
	req *RegistryRequest, image, tag string, git *GitRequest) (*dbclient.Deployment, error) {
	if req.Replicas < 0 {
		return nil, commonerrors.NewBadRequest("replicas must not be negative")
	}
	replicas := req.Replicas
	if replicas == 0 {
		replicas = 1
	}
	if err := validatePorts(req.Ports); err != nil {
		return nil, err
	}
	portsJSON, err := marshalPorts(req.Ports)
	if err != nil {
		return nil, err
	}
	volumesJSON, err := marshalVolumes(req.Volumes)
	if err != nil {
		return nil, err
	}
	envVarsJSON, err := marshalEnvVars(req.EnvVars)
	if err != nil {
		return nil, err
	}
	storedEnvVars, err := e.enc.Encrypt([]byte(envVarsJSON))
	if err != nil {
		return nil, commonerrors.NewInternalError(fmt.Sprintf("failed to encrypt env vars: %v", err))
	}
	jobId, err := stringutil.RandomToken(jobIdLength)
	if err != nil {
		return nil, err
	}

	row := &dbclient.Deployment{
		DeploymentId:   uuid.NewString(),
		EnvId:          env.EnvId,
		JobId:          jobId,
		Image:          image,
		Tag:            tag,
		Replicas:       replicas,
		Ports:          dbutils.ToNullString(portsJSON),
		EnvVars:        dbutils.ToNullString(storedEnvVars),
		Volumes:        dbutils.ToNullString(volumesJSON),
		Status:         dbclient.DeployPending,
		CurrentVersion: 1,
	}
	if req.VirtualPort > 0 {
		row.VirtualPort.Int64, row.VirtualPort.Valid = req.VirtualPort, true
	}
	if git != nil {
		row.GitUrl = dbutils.ToNullString(git.GitUrl)
		row.GitBranch = dbutils.ToNullString(git.Branch)
	}
	if err := e.store.InsertDeployment(ctx, row); err != nil {
		return nil, err
	}
	version := &dbclient.DeploymentVersion{
		DeploymentId: row.DeploymentId,
		Version:      1,
		Image:        image,
		Tag:          tag,
		Replicas:     replicas,
		Ports:        portsJSON,
		EnvVars:      storedEnvVars,
		Volumes:      volumesJSON,
	}
	if err := e.store.InsertDeploymentVersion(ctx, version); err != nil {
		klog.ErrorS(err, "failed to record version snapshot", "deploymentId", row.DeploymentId)
	}
	klog.Infof("deployment %s queued as job %s in environment %s", row.DeploymentId, jobId, env.Name)
	return row, nil
}

func (e *Engine) publish(kind, userId string, row *dbclient.Deployment, extra map[string]interface{}) {
	if e.bus == nil {
		return
	}
	data := map[string]interface{}{
		"deployment_id": row.DeploymentId,
		"job_id":        row.JobId,
		"image":         row.Image,
	}
	for k, v := range extra {
		data[k] = v
	}
	e.bus.Publish(events.Event{Kind: kind, UserId: userId, Data: data})
}
