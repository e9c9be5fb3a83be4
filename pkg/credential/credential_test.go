/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package credential

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// fakeStore is an in-memory Store with the same redemption semantics as the
// real client, including the single-winner compare-and-set.
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
	buildKey func(link *dbclient.MagicLink) (*dbclient.ApiKey, error)) (*dbclient.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[token]
	if !ok || link.UsedAt != nil || !link.ExpiresAt.After(now) {
		return nil, commonerrors.NewMagicLinkInvalid()
	}
	link.UsedAt = &now
	key, err := buildKey(link)
	if err != nil {
		return nil, err
	}
	f.keys[key.KeyId] = key
	return key, nil
}

func (f *fakeStore) GetApiKeyByKeyId(_ context.Context, keyId string) (*dbclient.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[keyId]
	if !ok {
		return nil, commonerrors.NewNotFoundWithMessage("api key not found")
	}
	return key, nil
}

func (f *fakeStore) ListApiKeysByUser(_ context.Context, userId string) ([]*dbclient.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []*dbclient.ApiKey
	for _, key := range f.keys {
		if key.UserId == userId {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeStore) RevokeApiKey(_ context.Context, userId, keyId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.keys[keyId]
	if !ok || key.UserId != userId || key.RevokedAt != nil {
		return commonerrors.NewNotFoundWithMessage("api key not found")
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
	user, ok := f.users[userId]
	if !ok {
		return nil, commonerrors.NewNotFoundWithMessage("user not found")
	}
	return user, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.users["u-1"] = &dbclient.User{UserId: "u-1", ChatId: 100, Handle: "alice"}
	return NewService(store), store
}

func TestMagicLinkRoundTrip(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	token, expiresAt, err := svc.IssueMagicLink(ctx, "u-1", []string{ScopeEnvRead, ScopeEnvWrite})
	require.NoError(t, err)
	assert.Len(t, token, MagicTokenLength)
	assert.WithinDuration(t, time.Now().Add(MagicLinkLifetime), expiresAt, 5*time.Second)

	formatted, key, err := svc.RedeemMagicLink(ctx, token)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(formatted, KeyPrefix))
	assert.Equal(t, "u-1", key.UserId)
	assert.Equal(t, "env.read,env.write", key.Scopes)
	assert.NotContains(t, formatted, key.SecretHash)

	// Redeeming the same token again must fail.
	_, _, err = svc.RedeemMagicLink(ctx, token)
	require.Error(t, err)
	assert.True(t, commonerrors.IsUnauthorized(err))

	user, authKey, err := svc.Authenticate(ctx, formatted)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserId)
	assert.Equal(t, key.KeyId, authKey.KeyId)
	assert.NotNil(t, store.keys[key.KeyId].LastUsedAt)
}

func TestRedeemExpiredLink(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.IssueMagicLink(ctx, "u-1", []string{ScopeDeployRead})
	require.NoError(t, err)
	store.links[token].ExpiresAt = time.Now().Add(-time.Minute)

	_, _, err = svc.RedeemMagicLink(ctx, token)
	require.Error(t, err)
	assert.True(t, commonerrors.IsUnauthorized(err))
}

func TestIssueMagicLinkRejectsUnknownScope(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.IssueMagicLink(context.Background(), "u-1", []string{"root"})
	require.Error(t, err)
	assert.True(t, commonerrors.IsBadRequest(err))

	_, _, err = svc.IssueMagicLink(context.Background(), "u-1", nil)
	require.Error(t, err)
	assert.True(t, commonerrors.IsBadRequest(err))
}

func TestAuthenticateFailureModes(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.IssueMagicLink(ctx, "u-1", []string{ScopeEnvRead})
	require.NoError(t, err)
	formatted, key, err := svc.RedeemMagicLink(ctx, token)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header func() string
		setup  func()
	}{
		{
			name:   "missing prefix",
			header: func() string { return strings.TrimPrefix(formatted, KeyPrefix) },
		},
		{
			name:   "no separator",
			header: func() string { return strings.ReplaceAll(formatted, ".", "") },
		},
		{
			name:   "unknown key id",
			header: func() string { return FormatKey(strings.Repeat("x", KeyIdLength), strings.Repeat("y", SecretLength)) },
		},
		{
			name:   "wrong secret",
			header: func() string { return FormatKey(key.KeyId, strings.Repeat("y", SecretLength)) },
		},
		{
			name:   "expired",
			header: func() string { return formatted },
			setup: func() {
				past := time.Now().Add(-time.Hour)
				store.keys[key.KeyId].ExpiresAt = &past
			},
		},
		{
			name:   "revoked",
			header: func() string { return formatted },
			setup: func() {
				store.keys[key.KeyId].ExpiresAt = nil
				now := time.Now()
				store.keys[key.KeyId].RevokedAt = &now
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, _, err := svc.Authenticate(ctx, tt.header())
			require.Error(t, err)
			assert.True(t, commonerrors.IsUnauthorized(err))
			assert.Equal(t, commonerrors.ApiKeyInvalid, commonerrors.ReasonForError(err))
		})
	}
}

func TestRacingRedemptionsMintOneKey(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.IssueMagicLink(ctx, "u-1", []string{ScopeEnvRead})
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.RedeemMagicLink(ctx, token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.True(t, commonerrors.IsUnauthorized(err))
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, store.keys, 1)
}

func TestCheckScopes(t *testing.T) {
	tests := []struct {
		name     string
		held     string
		required []string
		want     bool
	}{
		{"exact match", "env.read", []string{ScopeEnvRead}, true},
		{"superset", "env.read,env.write", []string{ScopeEnvRead}, true},
		{"missing", "env.read", []string{ScopeEnvWrite}, false},
		{"partial", "env.read", []string{ScopeEnvRead, ScopeDeployWrite}, false},
		{"admin bypass", "admin", []string{ScopeEnvWrite, ScopeDeployWrite, ScopeLogsRead}, true},
		{"empty required", "env.read", nil, true},
		{"empty held", "", []string{ScopeEnvRead}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := &dbclient.ApiKey{Scopes: tt.held}
			assert.Equal(t, tt.want, CheckScopes(key, tt.required...))
		})
	}
}

func TestParseKey(t *testing.T) {
	keyId := strings.Repeat("a", KeyIdLength)
	secret := strings.Repeat("b", SecretLength)

	gotId, gotSecret, ok := ParseKey(FormatKey(keyId, secret))
	require.True(t, ok)
	assert.Equal(t, keyId, gotId)
	assert.Equal(t, secret, gotSecret)

	for _, bad := range []string{
		"",
		"rw_prod_",
		"rw_prod_" + keyId,
		"rw_prod_" + keyId + "." + secret[:SecretLength-1],
		"rw_prod_" + keyId[:KeyIdLength-1] + "." + secret,
		"sk_live_" + keyId + "." + secret,
	} {
		_, _, ok := ParseKey(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestRevokeKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.IssueMagicLink(ctx, "u-1", []string{ScopeEnvRead})
	require.NoError(t, err)
	formatted, key, err := svc.RedeemMagicLink(ctx, token)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeKey(ctx, "u-1", key.KeyId))

	_, _, err = svc.Authenticate(ctx, formatted)
	require.Error(t, err)
	assert.True(t, commonerrors.IsUnauthorized(err))

	// A second revocation and a foreign-user revocation both fail.
	assert.Error(t, svc.RevokeKey(ctx, "u-1", key.KeyId))
	assert.Error(t, svc.RevokeKey(ctx, "u-2", key.KeyId))
}
