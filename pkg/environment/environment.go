/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package environment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/config"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	dbutils "github.com/wrytes/deployment-system/pkg/database/utils"
	"github.com/wrytes/deployment-system/pkg/docker"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/events"
	"github.com/wrytes/deployment-system/pkg/utils/stringutil"
)

// Store is the slice of the database client the environment service uses.
type Store interface {
	InsertEnvironment(ctx context.Context, env *dbclient.Environment) error
	GetEnvironmentForUser(ctx context.Context, userId, envId string) (*dbclient.Environment, error)
	ListEnvironmentsForUser(ctx context.Context, userId string) ([]*dbclient.Environment, error)
	CountEnvironmentsByName(ctx context.Context, userId, name string) (int, error)
	CountEnvironmentsByDomain(ctx context.Context, domain string) (int, error)
	UpdateEnvironmentStatus(ctx context.Context, envId, status, errorMessage string) error
	SetEnvironmentNetwork(ctx context.Context, envId, networkId string) error
	MarkEnvironmentPublic(ctx context.Context, envId, domain string) error
	ListDeploymentsByEnv(ctx context.Context, envId string) ([]*dbclient.Deployment, error)
	GetServiceByDeployment(ctx context.Context, deploymentId string) (*dbclient.Service, error)
	DeleteDeployment(ctx context.Context, deploymentId string) error
	DeleteDeploymentHistory(ctx context.Context, deploymentId string) error
}

// Driver is the slice of the Docker driver the environment service uses.
type Driver interface {
	CreateOverlayNetwork(ctx context.Context, name string, labels map[string]string) (string, error)
	DeleteNetwork(ctx context.Context, nameOrId string) error
	ConnectContainerToNetwork(ctx context.Context, networkNameOrId, container string) error
	RemoveService(ctx context.Context, nameOrId string) error
	UpdateServiceEnv(ctx context.Context, nameOrId string, env map[string]string) error
	ListManagedVolumes(ctx context.Context, envId string) ([]string, error)
	DeleteVolume(ctx context.Context, name string) error
}

// Service owns the environment lifecycle. An environment is one attachable
// overlay network plus the row that tracks it.
type Service struct {
	store  Store
	driver Driver
	bus    *events.Bus
}

func NewService(store Store, driver Driver, bus *events.Bus) *Service {
	return &Service{store: store, driver: driver, bus: bus}
}

// Create validates the name, inserts the row in CREATING, then creates the
// overlay network. Success flips the row to ACTIVE with the network id; driver
// failure flips it to ERROR and surfaces the cause.
func (s *Service) Create(ctx context.Context, userId, name string) (*dbclient.Environment, error) {
	if !stringutil.IsValidName(name) {
		return nil, commonerrors.NewBadRequest("environment name must match ^[A-Za-z0-9_-]+$")
	}
	// Keeps derived service names under the 63-char engine limit.
	if len(name) > 32 {
		return nil, commonerrors.NewBadRequest("environment name must be at most 32 characters")
	}
	count, err := s.store.CountEnvironmentsByName(ctx, userId, name)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, commonerrors.NewAlreadyExist(fmt.Sprintf("environment %q already exists", name))
	}

	overlayName := docker.OverlayName(name, time.Now())
	env := &dbclient.Environment{
		EnvId:       uuid.NewString(),
		UserId:      userId,
		Name:        name,
		OverlayName: overlayName,
		Status:      dbclient.EnvCreating,
	}
	if err := s.store.InsertEnvironment(ctx, env); err != nil {
		return nil, err
	}

	networkId, err := s.driver.CreateOverlayNetwork(ctx, overlayName, map[string]string{
		docker.EnvIdLabel:  env.EnvId,
		docker.UserIdLabel: userId,
	})
	if err != nil {
		klog.ErrorS(err, "failed to create overlay network", "envId", env.EnvId, "overlay", overlayName)
		if uerr := s.store.UpdateEnvironmentStatus(ctx, env.EnvId, dbclient.EnvError, err.Error()); uerr != nil {
			klog.ErrorS(uerr, "failed to record environment error", "envId", env.EnvId)
		}
		s.publish(events.EnvironmentError, userId, env, map[string]string{"error": err.Error()})
		return nil, commonerrors.NewInternalError(fmt.Sprintf("failed to create network: %v", err))
	}
	if err := s.store.SetEnvironmentNetwork(ctx, env.EnvId, networkId); err != nil {
		return nil, err
	}
	env.Status = dbclient.EnvActive
	env.DriverNetworkId = dbutils.ToNullString(networkId)
	klog.Infof("environment %s (%s) is active on network %s", name, env.EnvId, networkId)
	s.publish(events.EnvironmentActive, userId, env, nil)
	return env, nil
}

// Get returns the environment if the user owns it. Foreign and deleted
// environments are indistinguishable from absent ones.
func (s *Service) Get(ctx context.Context, userId, envId string) (*dbclient.Environment, error) {
	env, err := s.store.GetEnvironmentForUser(ctx, userId, envId)
	if err != nil {
		return nil, err
	}
	if env.Status == dbclient.EnvDeleted {
		return nil, commonerrors.NewNotFound("environment", envId)
	}
	return env, nil
}

// List returns the user's non-deleted environments, newest first.
func (s *Service) List(ctx context.Context, userId string) ([]*dbclient.Environment, error) {
	return s.store.ListEnvironmentsForUser(ctx, userId)
}

// Delete tears down the environment and every driver resource under it:
// services first, then labelled volumes, then the overlay network. Child
// deployment rows and their history go with it. Absent resources are fine;
// an in-use volume is a warning. Repeat deletes of a DELETING or DELETED
// environment are no-ops.
func (s *Service) Delete(ctx context.Context, userId, envId string) error {
	env, err := s.store.GetEnvironmentForUser(ctx, userId, envId)
	if err != nil {
		return err
	}
	if env.Status == dbclient.EnvDeleting || env.Status == dbclient.EnvDeleted {
		return commonerrors.NewAlreadyExist(fmt.Sprintf("environment is already %s", strings.ToLower(env.Status)))
	}
	if err := s.store.UpdateEnvironmentStatus(ctx, envId, dbclient.EnvDeleting, ""); err != nil {
		return err
	}

	if err := s.teardown(ctx, env); err != nil {
		if uerr := s.store.UpdateEnvironmentStatus(ctx, envId, dbclient.EnvError, err.Error()); uerr != nil {
			klog.ErrorS(uerr, "failed to record environment error", "envId", envId)
		}
		s.publish(events.EnvironmentError, userId, env, map[string]string{"error": err.Error()})
		return commonerrors.NewInternalError(fmt.Sprintf("failed to delete environment: %v", err))
	}
	if err := s.store.UpdateEnvironmentStatus(ctx, envId, dbclient.EnvDeleted, ""); err != nil {
		return err
	}
	klog.Infof("environment %s (%s) deleted", env.Name, envId)
	s.publish(events.EnvironmentDeleted, userId, env, nil)
	return nil
}

func (s *Service) teardown(ctx context.Context, env *dbclient.Environment) error {
	deployments, err := s.store.ListDeploymentsByEnv(ctx, env.EnvId)
	if err != nil {
		return err
	}
	for _, d := range deployments {
		if err := s.driver.RemoveService(ctx, docker.ServiceName(env.Name, d.JobId)); err != nil {
			return err
		}
	}
	volumes, err := s.driver.ListManagedVolumes(ctx, env.EnvId)
	if err != nil {
		return err
	}
	for _, name := range volumes {
		if err := s.driver.DeleteVolume(ctx, name); err != nil {
			return err
		}
	}
	// The env row is soft-deleted, so the rows have to go explicitly or
	// listings and recovery would keep seeing the torn-down workloads.
	for _, d := range deployments {
		if err := s.store.DeleteDeploymentHistory(ctx, d.DeploymentId); err != nil {
			klog.ErrorS(err, "failed to delete deployment history", "deploymentId", d.DeploymentId)
		}
		if err := s.store.DeleteDeployment(ctx, d.DeploymentId); err != nil {
			return err
		}
	}
	return s.driver.DeleteNetwork(ctx, env.OverlayName)
}

// MakePublic attaches the shared reverse proxy to the environment's overlay
// network and stamps the domain. Running deployments get the proxy env vars
// patched into their service specs; per-service patch failures are logged and
// do not undo the row flip.
func (s *Service) MakePublic(ctx context.Context, userId, envId, domain string) (*dbclient.Environment, error) {
	if !stringutil.IsValidDomain(domain) {
		return nil, commonerrors.NewBadRequest("domain must be a fully qualified hostname")
	}
	env, err := s.store.GetEnvironmentForUser(ctx, userId, envId)
	if err != nil {
		return nil, err
	}
	if env.Status != dbclient.EnvActive {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("environment is %s, must be %s", env.Status, dbclient.EnvActive))
	}
	if env.IsPublic {
		return nil, commonerrors.NewAlreadyExist("environment is already public")
	}
	count, err := s.store.CountEnvironmentsByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, commonerrors.NewDomainTaken(domain)
	}

	if err := s.driver.ConnectContainerToNetwork(ctx, env.OverlayName, config.GetNginxContainerName()); err != nil {
		return nil, commonerrors.NewInternalError(fmt.Sprintf("failed to attach proxy: %v", err))
	}
	if err := s.store.MarkEnvironmentPublic(ctx, envId, domain); err != nil {
		return nil, err
	}
	env.IsPublic = true
	env.PublicDomain = dbutils.ToNullString(domain)

	s.patchRunningDeployments(ctx, env, domain)
	klog.Infof("environment %s (%s) is public at %s", env.Name, envId, domain)
	s.publish(events.EnvironmentMadePublic, userId, env, map[string]string{"domain": domain})
	return env, nil
}

// patchRunningDeployments pushes VIRTUAL_HOST and LetsEncrypt vars into every
// running service of the environment. Best effort per service.
func (s *Service) patchRunningDeployments(ctx context.Context, env *dbclient.Environment, domain string) {
	deployments, err := s.store.ListDeploymentsByEnv(ctx, env.EnvId)
	if err != nil {
		klog.ErrorS(err, "failed to list deployments for proxy patch", "envId", env.EnvId)
		return
	}
	for _, d := range deployments {
		if d.Status != dbclient.DeployRunning {
			continue
		}
		serviceName := docker.ServiceName(env.Name, d.JobId)
		if err := s.driver.UpdateServiceEnv(ctx, serviceName, ProxyEnv(domain, d.VirtualPort.Int64)); err != nil {
			klog.ErrorS(err, "failed to patch proxy env", "service", serviceName)
		}
	}
}

// ProxyEnv builds the reverse-proxy discovery vars for a public domain.
// virtualPort of 0 omits VIRTUAL_PORT.
func ProxyEnv(domain string, virtualPort int64) map[string]string {
	env := map[string]string{
		"VIRTUAL_HOST":     domain,
		"LETSENCRYPT_HOST": domain,
	}
	if email := config.GetLetsEncryptEmail(); email != "" {
		env["LETSENCRYPT_EMAIL"] = email
	}
	if virtualPort > 0 {
		env["VIRTUAL_PORT"] = fmt.Sprintf("%d", virtualPort)
	}
	return env
}

func (s *Service) publish(kind, userId string, env *dbclient.Environment, extra map[string]string) {
	if s.bus == nil {
		return
	}
	data := map[string]interface{}{
		"env_id": env.EnvId,
		"name":   env.Name,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.bus.Publish(events.Event{Kind: kind, UserId: userId, Data: data})
}
