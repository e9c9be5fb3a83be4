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

// CreateMagicLink inserts a new magic-link row.
func (c *Client) CreateMagicLink(ctx context.Context, link *MagicLink) error {
	if link == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(link).Error
}

// GetMagicLink retrieves a magic link by token.
func (c *Client) GetMagicLink(ctx context.Context, token string) (*MagicLink, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var link MagicLink
	err = db.WithContext(ctx).Where("token = ?", token).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NewNotFoundWithMessage("magic link not found")
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// RedeemMagicLink consumes a magic link and creates the resulting API key in
// one transaction. The conditional update on used_at IS NULL is the only
// compare-and-set in the system: of two racing redemptions exactly one sees
// RowsAffected == 1 and proceeds to mint a key. buildKey turns the redeemed
// link into the key row to insert.
func (c *Client) RedeemMagicLink(ctx context.Context, token string, now time.Time,
	buildKey func(link *MagicLink) (*ApiKey, error)) (*ApiKey, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var created *ApiKey
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&MagicLink{}).
			Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
			Update("used_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return commonerrors.NewMagicLinkInvalid()
		}
		var link MagicLink
		if err := tx.Where("token = ?", token).First(&link).Error; err != nil {
			return err
		}
		key, err := buildKey(&link)
		if err != nil {
			return err
		}
		if err := tx.Create(key).Error; err != nil {
			return err
		}
		created = key
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
