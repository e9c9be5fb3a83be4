/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package recovery

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/swarm"
	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/crypto"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	"github.com/wrytes/deployment-system/pkg/deployment"
	"github.com/wrytes/deployment-system/pkg/docker"
	"github.com/wrytes/deployment-system/pkg/events"
	"github.com/wrytes/deployment-system/pkg/utils/backoff"
)

const (
	storeWaitAttempts        = 10
	storeWaitInitialInterval = time.Second
	storeWaitMaxInterval     = 10 * time.Second
)

// Store is the slice of the database client the supervisor uses.
type Store interface {
	Ping(ctx context.Context) error
	ListDeploymentsByStatus(ctx context.Context, status string) ([]*dbclient.Deployment, error)
	GetEnvironment(ctx context.Context, envId string) (*dbclient.Environment, error)
	UpdateDeploymentStatus(ctx context.Context, deploymentId, status, errorMessage string,
		startedAt, completedAt time.Time) error
	SetEnvironmentNetwork(ctx context.Context, envId, networkId string) error
}

// Driver is the slice of the Docker driver the supervisor uses.
type Driver interface {
	GetService(ctx context.Context, nameOrId string) (*swarm.Service, error)
	NetworkExists(ctx context.Context, nameOrId string) (bool, error)
	CreateOverlayNetwork(ctx context.Context, name string, labels map[string]string) (string, error)
	CreateService(ctx context.Context, spec *docker.ServiceSpec) (string, error)
}

// Supervisor reconciles RUNNING deployment rows against the driver once at
// process start, before the handler surface opens. Per-row failure marks that
// row FAILED and moves on; it never aborts startup.
type Supervisor struct {
	store  Store
	driver Driver
	bus    *events.Bus
	enc    *crypto.Crypto
}

func NewSupervisor(store Store, driver Driver, bus *events.Bus) *Supervisor {
	return &Supervisor{store: store, driver: driver, bus: bus, enc: crypto.NewCrypto()}
}

// Run waits for the store, then reconciles every RUNNING deployment. The only
// fatal outcomes are an unreachable store and a failed listing.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := backoff.RetryCount(func() error {
		return s.store.Ping(ctx)
	}, storeWaitAttempts, storeWaitInitialInterval, storeWaitMaxInterval); err != nil {
		return err
	}

	rows, err := s.store.ListDeploymentsByStatus(ctx, dbclient.DeployRunning)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		klog.Info("recovery: no running deployments to reconcile")
		return nil
	}
	klog.Infof("recovery: reconciling %d running deployments", len(rows))

	var recovered, failed, intact, stopped int
	for _, row := range rows {
		switch s.reconcile(ctx, row) {
		case outcomeIntact:
			intact++
		case outcomeRecovered:
			recovered++
		case outcomeStopped:
			stopped++
		case outcomeFailed:
			failed++
		}
	}
	klog.Infof("recovery: done, %d intact, %d recovered, %d stopped, %d failed",
		intact, recovered, stopped, failed)
	return nil
}

type outcome int

const (
	outcomeIntact outcome = iota
	outcomeRecovered
	outcomeStopped
	outcomeFailed
)

func (s *Supervisor) reconcile(ctx context.Context, row *dbclient.Deployment) outcome {
	env, err := s.store.GetEnvironment(ctx, row.EnvId)
	if err != nil {
		return s.markFailed(ctx, row, "", "environment lookup failed: "+err.Error())
	}
	if env.Status == dbclient.EnvDeleting || env.Status == dbclient.EnvDeleted {
		// A straggler of an interrupted teardown. Stop it rather than
		// recreating resources of a dead environment.
		klog.Warningf("recovery: deployment %s belongs to %s environment %s, marking it stopped",
			row.DeploymentId, env.Status, env.EnvId)
		if err := s.store.UpdateDeploymentStatus(ctx, row.DeploymentId, dbclient.DeployStopped, "",
			time.Time{}, time.Now()); err != nil {
			klog.ErrorS(err, "recovery: failed to mark deployment stopped", "deploymentId", row.DeploymentId)
		}
		return outcomeStopped
	}

	serviceName := docker.ServiceName(env.Name, row.JobId)
	service, err := s.driver.GetService(ctx, serviceName)
	if err != nil {
		return s.markFailed(ctx, row, env.UserId, "service inspect failed: "+err.Error())
	}
	if service != nil {
		klog.V(2).Infof("recovery: service %s is intact", serviceName)
		return outcomeIntact
	}

	if err := s.ensureNetwork(ctx, env); err != nil {
		return s.markFailed(ctx, row, env.UserId, "network recreate failed: "+err.Error())
	}

	spec, err := deployment.SpecFromRow(s.enc, row, env)
	if err != nil {
		return s.markFailed(ctx, row, env.UserId, "spec reconstruction failed: "+err.Error())
	}
	if _, err := s.driver.CreateService(ctx, spec); err != nil {
		return s.markFailed(ctx, row, env.UserId, "service recreate failed: "+err.Error())
	}

	klog.Infof("recovery: recreated service %s for deployment %s", serviceName, row.DeploymentId)
	s.publish(events.DeploymentRecovered, env.UserId, row, nil)
	return outcomeRecovered
}

func (s *Supervisor) ensureNetwork(ctx context.Context, env *dbclient.Environment) error {
	exists, err := s.driver.NetworkExists(ctx, env.OverlayName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	klog.Warningf("recovery: overlay %s is gone, recreating", env.OverlayName)
	networkId, err := s.driver.CreateOverlayNetwork(ctx, env.OverlayName, map[string]string{
		docker.EnvIdLabel:  env.EnvId,
		docker.UserIdLabel: env.UserId,
	})
	if err != nil {
		return err
	}
	return s.store.SetEnvironmentNetwork(ctx, env.EnvId, networkId)
}

func (s *Supervisor) markFailed(ctx context.Context, row *dbclient.Deployment, userId, message string) outcome {
	klog.Errorf("recovery: deployment %s failed: %s", row.DeploymentId, message)
	if err := s.store.UpdateDeploymentStatus(ctx, row.DeploymentId, dbclient.DeployFailed, message,
		time.Time{}, time.Now()); err != nil {
		klog.ErrorS(err, "recovery: failed to mark deployment failed", "deploymentId", row.DeploymentId)
	}
	s.publish(events.DeploymentRecoveryFailed, userId, row, map[string]interface{}{"error": message})
	return outcomeFailed
}

// publish announces an outcome even when the owner could not be resolved;
// the notification layer drops rows without a recipient on its own.
func (s *Supervisor) publish(kind, userId string, row *dbclient.Deployment, extra map[string]interface{}) {
	if s.bus == nil {
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
	s.bus.Publish(events.Event{Kind: kind, UserId: userId, Data: data})
}
