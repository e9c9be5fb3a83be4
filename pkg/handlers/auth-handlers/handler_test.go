/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package auth_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrytes/deployment-system/pkg/config"
	"github.com/wrytes/deployment-system/pkg/credential"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore backs both the credential service and the auth handler with the
// same in-memory rows, including the compare-and-set redemption semantics of
// the real store.
type fakeStore struct {
	mu    sync.Mutex
	links map[string]*dbclient.MagicLink
	keys  map[string]*dbclient.ApiKey
	users map[string]*dbclient.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links: make(map[string]*dbclient.MagicLink),
		keys:  make(map[string]*dbclient.ApiKey),
		users: make(map[string]*dbclient.User),
	}
}

func (f *fakeStore) CreateMagicLink(_ context.Context, link *dbclient.MagicLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[link.Token] = link
	return nil
}

func (f *fakeStore) RedeemMagicLink(_ context.Context, token string, now time.Time,
	buildKey func(*dbclient.MagicLink) (*dbclient.ApiKey, error)) (*dbclient.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[token]
	if !ok || link.UsedAt != nil || !link.ExpiresAt.After(now) {
		return nil, commonerrors.NewMagicLinkInvalid()
	}
	key, err := buildKey(link)
	if err != nil {
		return nil, err
	}
	key.CreatedAt = now
	link.UsedAt = &now
	f.keys[key.KeyId] = key
	return key, nil
}

func (f *fakeStore) GetApiKeyByKeyId(_ context.Context, keyId string) (*dbclient.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key, ok := f.keys[keyId]; ok {
		copied := *key
		return &copied, nil
	}
	return nil, commonerrors.NewNotFound("api key", keyId)
}

func (f *fakeStore) ListApiKeysByUser(_ context.Context, userId string) ([]*dbclient.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []*dbclient.ApiKey
	for _, key := range f.keys {
		if key.UserId == userId {
			copied := *key
			keys = append(keys, &copied)
		}
	}
	return keys, nil
}

func (f *fakeStore) RevokeApiKey(_ context.Context, userId, keyId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[keyId]
	if !ok || key.UserId != userId {
		return commonerrors.NewNotFound("api key", keyId)
	}
	now := time.Now()
	key.RevokedAt = &now
	return nil
}

func (f *fakeStore) TouchApiKeyLastUsed(_ context.Context, keyId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key, ok := f.keys[keyId]; ok {
		now := time.Now()
		key.LastUsedAt = &now
	}
	return nil
}

func (f *fakeStore) GetUserById(_ context.Context, userId string) (*dbclient.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userId]; ok {
		return user, nil
	}
	return nil, commonerrors.NewNotFound("user", userId)
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, userId string, chatId int64, handle string) (*dbclient.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userId]; ok {
		return user, nil
	}
	user := &dbclient.User{UserId: userId, ChatId: chatId, Handle: handle, NotifyDeploy: true, NotifyEnv: true}
	f.users[userId] = user
	return user, nil
}

func (f *fakeStore) UpdateUserPreferences(_ context.Context, userId string, notifyDeploy, notifyEnv bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userId]
	if !ok {
		return commonerrors.NewNotFound("user", userId)
	}
	user.NotifyDeploy = notifyDeploy
	user.NotifyEnv = notifyEnv
	return nil
}

func newTestSurface(store *fakeStore) *gin.Engine {
	cred := credential.NewService(store)
	engine := gin.New()
	InitAuthRouters(engine, NewHandler(cred, store), cred)
	return engine
}

func doJSON(engine *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// issueAndRedeem walks the full onboarding flow and returns the formatted key.
func issueAndRedeem(t *testing.T, engine *gin.Engine, scopes []string) string {
	t.Helper()
	w := doJSON(engine, http.MethodPost, "/internal/magic-links", gin.H{
		"userId": "alice",
		"chatId": 42,
		"handle": "alice@example.com",
		"scopes": scopes,
	}, map[string]string{authority.HeaderInternalToken: "t0k3n"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var issued struct {
		Url   string `json:"url"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	require.Len(t, issued.Token, credential.MagicTokenLength)
	require.Contains(t, issued.Url, issued.Token)

	w = doJSON(engine, http.MethodGet, "/auth/verify?token="+issued.Token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified struct {
		ApiKey string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	return verified.ApiKey
}

func TestOnboardingFlow(t *testing.T) {
	config.SetValue("server.internal_token", "t0k3n")
	defer config.SetValue("server.internal_token", "")

	store := newFakeStore()
	engine := newTestSurface(store)
	apiKey := issueAndRedeem(t, engine, []string{credential.ScopeEnvRead, credential.ScopeDeployRead})

	w := doJSON(engine, http.MethodGet, "/auth/keys", nil, map[string]string{authority.HeaderApiKey: apiKey})
	require.Equal(t, http.StatusOK, w.Code)
	var records []keyRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, []string{credential.ScopeDeployRead, credential.ScopeEnvRead}, records[0].Scopes)
}

func TestMagicLinkIsSingleUse(t *testing.T) {
	config.SetValue("server.internal_token", "t0k3n")
	defer config.SetValue("server.internal_token", "")

	store := newFakeStore()
	engine := newTestSurface(store)
	issueAndRedeem(t, engine, []string{credential.ScopeEnvRead})

	var token string
	for tok := range store.links {
		token = tok
	}
	w := doJSON(engine, http.MethodGet, "/auth/verify?token="+token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssueRequiresInternalToken(t *testing.T) {
	config.SetValue("server.internal_token", "t0k3n")
	defer config.SetValue("server.internal_token", "")

	store := newFakeStore()
	engine := newTestSurface(store)
	w := doJSON(engine, http.MethodPost, "/internal/magic-links", gin.H{
		"userId": "alice",
		"chatId": 42,
		"scopes": []string{credential.ScopeEnvRead},
	}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRevokedKeyStopsAuthenticating(t *testing.T) {
	config.SetValue("server.internal_token", "t0k3n")
	defer config.SetValue("server.internal_token", "")

	store := newFakeStore()
	engine := newTestSurface(store)
	apiKey := issueAndRedeem(t, engine, []string{credential.ScopeEnvRead})

	var keyId string
	for id := range store.keys {
		keyId = id
	}
	w := doJSON(engine, http.MethodPost, "/auth/revoke", gin.H{"keyId": keyId},
		map[string]string{authority.HeaderApiKey: apiKey})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(engine, http.MethodGet, "/auth/keys", nil, map[string]string{authority.HeaderApiKey: apiKey})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdatePreferences(t *testing.T) {
	config.SetValue("server.internal_token", "t0k3n")
	defer config.SetValue("server.internal_token", "")

	store := newFakeStore()
	engine := newTestSurface(store)
	apiKey := issueAndRedeem(t, engine, []string{credential.ScopeEnvRead})

	w := doJSON(engine, http.MethodPost, "/auth/preferences",
		gin.H{"notifyDeploy": false, "notifyEnv": true},
		map[string]string{authority.HeaderApiKey: apiKey})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, store.users["alice"].NotifyDeploy)
	assert.True(t, store.users["alice"].NotifyEnv)
}
