/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// CreateApiKey inserts a new API key row.
func (c *Client) CreateApiKey(ctx context.Context, key *ApiKey) error {
	if key == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(key).Error
}

// GetApiKeyByKeyId retrieves an API key by its public key id. Revoked and
// expired rows are returned as-is; validity is the caller's concern.
func (c *Client) GetApiKeyByKeyId(ctx context.Context, keyId string) (*ApiKey, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var key ApiKey
	err = db.WithContext(ctx).Where("key_id = ?", keyId).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NewNotFoundWithMessage("api key not found")
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// ListApiKeysByUser returns all keys ever issued to a user, newest first.
func (c *Client) ListApiKeysByUser(ctx context.Context, userId string) ([]*ApiKey, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var keys []*ApiKey
	err = db.WithContext(ctx).Where("user_id = ?", userId).
		Order("created_at desc").Find(&keys).Error
	return keys, err
}

// RevokeApiKey stamps revoked_at on a key owned by userId. Rows are never
// purged; revoked_at gates validity from now on.
func (c *Client) RevokeApiKey(ctx context.Context, userId, keyId string) error {
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).Model(&ApiKey{}).
		Where("user_id = ? AND key_id = ? AND revoked_at IS NULL", userId, keyId).
		Update("revoked_at", time.Now().UTC())
	if result.Error != nil {
		return result.Error
	}
	return rowsAffectedError("api key", result.RowsAffected)
}

// TouchApiKeyLastUsed stamps last_used_at. Callers treat failures as
// best-effort and must not block the request on them.
func (c *Client) TouchApiKeyLastUsed(ctx context.Context, keyId string) error {
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(&ApiKey{}).Where("key_id = ?", keyId).
		Update("last_used_at", time.Now().UTC()).Error
}
