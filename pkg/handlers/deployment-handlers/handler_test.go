/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment_handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wrytes/deployment-system/pkg/credential"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	"github.com/wrytes/deployment-system/pkg/deployment"
	"github.com/wrytes/deployment-system/pkg/docker"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/events"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// credStore is the minimal credential backend for one pre-seeded key.
type credStore struct {
	key  *dbclient.ApiKey
	user *dbclient.User
}

func (s *credStore) CreateMagicLink(context.Context, *dbclient.MagicLink) error { return nil }

func (s *credStore) RedeemMagicLink(context.Context, string, time.Time,
	func(*dbclient.MagicLink) (*dbclient.ApiKey, error)) (*dbclient.ApiKey, error) {
	return nil, commonerrors.NewMagicLinkInvalid()
}

func (s *credStore) GetApiKeyByKeyId(_ context.Context, keyId string) (*dbclient.ApiKey, error) {
	if s.key != nil && s.key.KeyId == keyId {
		return s.key, nil
	}
	return nil, commonerrors.NewNotFound("api key", keyId)
}

func (s *credStore) ListApiKeysByUser(context.Context, string) ([]*dbclient.ApiKey, error) {
	return nil, nil
}

func (s *credStore) RevokeApiKey(context.Context, string, string) error { return nil }

func (s *credStore) TouchApiKeyLastUsed(context.Context, string) error { return nil }

func (s *credStore) GetUserById(_ context.Context, userId string) (*dbclient.User, error) {
	if s.user != nil && s.user.UserId == userId {
		return s.user, nil
	}
	return nil, commonerrors.NewNotFound("user", userId)
}

func seedCredential(t *testing.T, userId, scopes string) (*credStore, string) {
	t.Helper()
	keyId := "abcdefgh12345678"
	secret := "s3cr3ts3cr3ts3cr3ts3cr3ts3cr3t00"
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	store := &credStore{
		key:  &dbclient.ApiKey{KeyId: keyId, UserId: userId, SecretHash: string(hash), Scopes: scopes, CreatedAt: time.Now()},
		user: &dbclient.User{UserId: userId},
	}
	return store, credential.FormatKey(keyId, secret)
}

// deployStore is an in-memory deployment.Store.
type deployStore struct {
	mu          sync.Mutex
	envs        map[string]*dbclient.Environment
	deployments map[string]*dbclient.Deployment
	versions    map[string][]*dbclient.DeploymentVersion
}

func newDeployStore() *deployStore {
	return &deployStore{
		envs:        make(map[string]*dbclient.Environment),
		deployments: make(map[string]*dbclient.Deployment),
		versions:    make(map[string][]*dbclient.DeploymentVersion),
	}
}

func (s *deployStore) GetEnvironment(_ context.Context, envId string) (*dbclient.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, ok := s.envs[envId]; ok {
		return env, nil
	}
	return nil, commonerrors.NewNotFound("environment", envId)
}

func (s *deployStore) GetEnvironmentForUser(_ context.Context, userId, envId string) (*dbclient.Environment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env, ok := s.envs[envId]; ok && env.UserId == userId {
		return env, nil
	}
	return nil, commonerrors.NewNotFound("environment", envId)
}

func (s *deployStore) InsertDeployment(_ context.Context, d *dbclient.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[d.DeploymentId] = d
	return nil
}

func (s *deployStore) GetDeployment(_ context.Context, deploymentId string) (*dbclient.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deployments[deploymentId]; ok {
		return d, nil
	}
	return nil, commonerrors.NewNotFound("deployment", deploymentId)
}

func (s *deployStore) GetDeploymentByJobId(_ context.Context, jobId string) (*dbclient.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deployments {
		if d.JobId == jobId {
			return d, nil
		}
	}
	return nil, commonerrors.NewNotFound("job", jobId)
}

func (s *deployStore) ListDeploymentsByEnv(_ context.Context, envId string) ([]*dbclient.Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []*dbclient.Deployment
	for _, d := range s.deployments {
		if d.EnvId == envId {
			rows = append(rows, d)
		}
	}
	return rows, nil
}

func (s *deployStore) UpdateDeploymentStatus(_ context.Context, deploymentId, status, errorMessage string,
	startedAt, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.deployments[deploymentId]; ok {
		d.Status = status
	}
	return nil
}

func (s *deployStore) UpdateDeploymentVolumes(context.Context, string, string) error { return nil }

func (s *deployStore) DeleteDeployment(_ context.Context, deploymentId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deployments, deploymentId)
	return nil
}

func (s *deployStore) UpsertService(context.Context, *dbclient.Service) error { return nil }

func (s *deployStore) GetServiceByDeployment(_ context.Context, deploymentId string) (*dbclient.Service, error) {
	return nil, commonerrors.NewNotFound("service", deploymentId)
}

func (s *deployStore) InsertDeploymentVersion(_ context.Context, v *dbclient.DeploymentVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.DeploymentId] = append(s.versions[v.DeploymentId], v)
	return nil
}

func (s *deployStore) ListDeploymentVersions(_ context.Context, deploymentId string) ([]*dbclient.DeploymentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[deploymentId], nil
}

func (s *deployStore) DeleteDeploymentHistory(_ context.Context, deploymentId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, deploymentId)
	return nil
}

type fakeDriver struct{}

func (d *fakeDriver) PullImage(context.Context, string, string) error { return nil }

func (d *fakeDriver) BuildImageFromTar(_ context.Context, buildContext io.Reader, _ string) error {
	_, _ = io.Copy(io.Discard, buildContext)
	return nil
}

func (d *fakeDriver) CreateVolume(context.Context, string, map[string]string) error { return nil }

func (d *fakeDriver) DeleteVolume(context.Context, string) error { return nil }

func (d *fakeDriver) CreateService(context.Context, *docker.ServiceSpec) (string, error) {
	return "svc-1", nil
}

func (d *fakeDriver) RemoveService(context.Context, string) error { return nil }

func (d *fakeDriver) GetServiceLogs(context.Context, string, string) ([]byte, error) {
	return []byte("line one\nline two\n"), nil
}

func newSurface(t *testing.T, scopes string) (*gin.Engine, *deployStore, string) {
	t.Helper()
	credStore, apiKey := seedCredential(t, "alice", scopes)
	store := newDeployStore()
	engine := gin.New()
	dep := deployment.NewEngine(store, &fakeDriver{}, events.NewBus())
	InitDeploymentRouters(engine, NewHandler(dep), credential.NewService(credStore),
		authority.NewThrottle(1000, time.Minute))
	return engine, store, apiKey
}

func seedRows(store *deployStore) {
	store.envs["env-1"] = &dbclient.Environment{
		EnvId: "env-1", UserId: "alice", Name: "demo", OverlayName: "overlay_env_demo_1",
		Status: dbclient.EnvActive,
	}
	store.deployments["dep-1"] = &dbclient.Deployment{
		DeploymentId: "dep-1", EnvId: "env-1", JobId: "job0000000000001",
		Image: "nginx", Tag: "latest", Replicas: 1, Status: dbclient.DeployRunning,
	}
	store.versions["dep-1"] = []*dbclient.DeploymentVersion{
		{DeploymentId: "dep-1", Version: 1, Image: "nginx", Tag: "latest", Replicas: 1},
	}
}

func get(engine *gin.Engine, path, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(authority.HeaderApiKey, apiKey)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestReadDispatch(t *testing.T) {
	engine, store, apiKey := newSurface(t,
		credential.ScopeDeployRead+","+credential.ScopeLogsRead)
	seedRows(store)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"job lookup", "/deployments/job/job0000000000001", "dep-1"},
		{"environment list", "/deployments/environment/env-1", "dep-1"},
		{"versions", "/deployments/dep-1/versions", "nginx"},
		{"logs", "/deployments/dep-1/logs", "line one"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(engine, tt.path, apiKey)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestReadUnknownPatternIs404(t *testing.T) {
	engine, store, apiKey := newSurface(t, credential.ScopeDeployRead)
	seedRows(store)
	w := get(engine, "/deployments/dep-1/bogus", apiKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogsRequireLogsScope(t *testing.T) {
	engine, store, apiKey := newSurface(t, credential.ScopeDeployRead)
	seedRows(store)

	w := get(engine, "/deployments/job/job0000000000001", apiKey)
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(engine, "/deployments/dep-1/logs", apiKey)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestForeignDeploymentIsNotFound(t *testing.T) {
	engine, store, apiKey := newSurface(t, credential.ScopeDeployRead)
	seedRows(store)
	store.envs["env-1"].UserId = "someone-else"

	w := get(engine, "/deployments/job/job0000000000001", apiKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteDeployment(t *testing.T) {
	engine, store, apiKey := newSurface(t, credential.ScopeDeployWrite)
	seedRows(store)

	req := httptest.NewRequest(http.MethodDelete, "/deployments/dep-1?preserveVolumes=true", nil)
	req.Header.Set(authority.HeaderApiKey, apiKey)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.deployments)
	assert.Empty(t, store.versions)
}
