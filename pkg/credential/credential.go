/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package credential

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"k8s.io/klog/v2"

	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/utils/stringutil"
)

const (
	// KeyPrefix is the on-wire marker of every issued key.
	KeyPrefix = "rw_prod_"

	KeyIdLength       = 16
	SecretLength      = 32
	MagicTokenLength  = 32
	MagicLinkLifetime = 15 * time.Minute

	bcryptCost = 10
)

// Scope names accepted on keys and magic links.
const (
	ScopeEnvRead     = "env.read"
	ScopeEnvWrite    = "env.write"
	ScopeDeployRead  = "deploy.read"
	ScopeDeployWrite = "deploy.write"
	ScopeLogsRead    = "logs.read"
	ScopeAdmin       = "admin"
)

var knownScopes = map[string]bool{
	ScopeEnvRead:     true,
	ScopeEnvWrite:    true,
	ScopeDeployRead:  true,
	ScopeDeployWrite: true,
	ScopeLogsRead:    true,
	ScopeAdmin:       true,
}

// Store is the slice of the database client the credential service uses.
type Store interface {
	CreateMagicLink(ctx context.Context, link *dbclient.MagicLink) error
	RedeemMagicLink(ctx context.Context, token string, now time.Time,
		buildKey func(link *dbclient.MagicLink) (*dbclient.ApiKey, error)) (*dbclient.ApiKey, error)
	GetApiKeyByKeyId(ctx context.Context, keyId string) (*dbclient.ApiKey, error)
	ListApiKeysByUser(ctx context.Context, userId string) ([]*dbclient.ApiKey, error)
	RevokeApiKey(ctx context.Context, userId, keyId string) error
	TouchApiKeyLastUsed(ctx context.Context, keyId string) error
	GetUserById(ctx context.Context, userId string) (*dbclient.User, error)
}

// Service issues and verifies credentials. Every failure category of
// Authenticate collapses to the same unauthenticated error so callers cannot
// probe for key existence.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// IssueMagicLink creates a one-shot exchange token for the user, valid for
// 15 minutes. No key material is created until redemption.
func (s *Service) IssueMagicLink(ctx context.Context, userId string, scopes []string) (string, time.Time, error) {
	if err := ValidateScopes(scopes); err != nil {
		return "", time.Time{}, err
	}
	token, err := stringutil.RandomToken(MagicTokenLength)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(MagicLinkLifetime)
	link := &dbclient.MagicLink{
		Token:     token,
		UserId:    userId,
		Scopes:    strings.Join(scopes, ","),
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateMagicLink(ctx, link); err != nil {
		return "", time.Time{}, err
	}
	klog.Infof("issued magic link for user %s with scopes %v", userId, scopes)
	return token, expiresAt, nil
}

// RedeemMagicLink exchanges an unused, unexpired token for a new API key and
// returns the formatted key. The raw secret exists only in the return value;
// only its hash is stored. Redemption is a compare-and-set in the store, so
// racing redemptions of one token mint exactly one key.
func (s *Service) RedeemMagicLink(ctx context.Context, token string) (string, *dbclient.ApiKey, error) {
	if len(token) != MagicTokenLength {
		return "", nil, commonerrors.NewMagicLinkInvalid()
	}
	var secret string
	key, err := s.store.RedeemMagicLink(ctx, token, time.Now(), func(link *dbclient.MagicLink) (*dbclient.ApiKey, error) {
		var err error
		if secret, err = stringutil.RandomToken(SecretLength); err != nil {
			return nil, err
		}
		keyId, err := stringutil.RandomToken(KeyIdLength)
		if err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
		if err != nil {
			return nil, errors.Wrap(err, "failed to hash api key secret")
		}
		return &dbclient.ApiKey{
			KeyId:      keyId,
			UserId:     link.UserId,
			SecretHash: string(hash),
			Scopes:     link.Scopes,
		}, nil
	})
	if err != nil {
		return "", nil, err
	}
	klog.Infof("magic link redeemed, issued key %s for user %s", key.KeyId, key.UserId)
	return FormatKey(key.KeyId, secret), key, nil
}

// Authenticate verifies an X-API-Key header value and returns the owning user
// and key row. Bad format, unknown key, revocation, expiry, and secret
// mismatch all surface the same way.
func (s *Service) Authenticate(ctx context.Context, header string) (*dbclient.User, *dbclient.ApiKey, error) {
	keyId, secret, ok := ParseKey(header)
	if !ok {
		return nil, nil, commonerrors.NewApiKeyInvalid()
	}
	key, err := s.store.GetApiKeyByKeyId(ctx, keyId)
	if err != nil {
		if commonerrors.IsNotFound(err) {
			return nil, nil, commonerrors.NewApiKeyInvalid()
		}
		return nil, nil, err
	}
	now := time.Now()
	if key.RevokedAt != nil {
		klog.V(2).Infof("rejected revoked key %s", keyId)
		return nil, nil, commonerrors.NewApiKeyInvalid()
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		klog.V(2).Infof("rejected expired key %s", keyId)
		return nil, nil, commonerrors.NewApiKeyInvalid()
	}
	if bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)) != nil {
		return nil, nil, commonerrors.NewApiKeyInvalid()
	}
	user, err := s.store.GetUserById(ctx, key.UserId)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.TouchApiKeyLastUsed(ctx, keyId); err != nil {
		klog.ErrorS(err, "failed to stamp last_used_at", "keyId", keyId)
	}
	return user, key, nil
}

// ListKeys returns the user's keys, revoked ones included.
func (s *Service) ListKeys(ctx context.Context, userId string) ([]*dbclient.ApiKey, error) {
	return s.store.ListApiKeysByUser(ctx, userId)
}

// RevokeKey marks one of the user's keys revoked. Rows are never purged.
func (s *Service) RevokeKey(ctx context.Context, userId, keyId string) error {
	return s.store.RevokeApiKey(ctx, userId, keyId)
}

// CheckScopes reports whether the key satisfies every required scope. Admin
// keys pass unconditionally.
func CheckScopes(key *dbclient.ApiKey, required ...string) bool {
	held := SplitScopes(key.Scopes)
	if held[ScopeAdmin] {
		return true
	}
	for _, scope := range required {
		if !held[scope] {
			return false
		}
	}
	return true
}

// ValidateScopes rejects empty or unknown scope sets.
func ValidateScopes(scopes []string) error {
	if len(scopes) == 0 {
		return commonerrors.NewBadRequest("at least one scope is required")
	}
	for _, scope := range scopes {
		if !knownScopes[scope] {
			return commonerrors.NewBadRequest(fmt.Sprintf("unknown scope %q", scope))
		}
	}
	return nil
}

// SplitScopes expands the comma-joined storage form into a set.
func SplitScopes(scopes string) map[string]bool {
	set := make(map[string]bool)
	for _, scope := range strings.Split(scopes, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			set[scope] = true
		}
	}
	return set
}

// FormatKey renders the on-wire form of a key.
func FormatKey(keyId, secret string) string {
	return KeyPrefix + keyId + "." + secret
}

// ParseKey splits an on-wire key into its id and secret parts.
func ParseKey(header string) (keyId, secret string, ok bool) {
	if !strings.HasPrefix(header, KeyPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(header, KeyPrefix)
	idx := strings.IndexByte(rest, '.')
	if idx < 0 {
		return "", "", false
	}
	keyId, secret = rest[:idx], rest[idx+1:]
	if len(keyId) != KeyIdLength || len(secret) != SecretLength {
		return "", "", false
	}
	return keyId, secret, true
}
