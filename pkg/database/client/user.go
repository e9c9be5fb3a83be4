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

// GetOrCreateUser returns the user identified by chatId, creating the row on
// first contact. The handle is refreshed on every call so renames propagate.
func (c *Client) GetOrCreateUser(ctx context.Context, userId string, chatId int64, handle string) (*User, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var user User
	err = db.WithContext(ctx).Where("chat_id = ?", chatId).First(&user).Error
	if err == nil {
		if handle != "" && handle != user.Handle {
			user.Handle = handle
			if err = db.WithContext(ctx).Model(&User{}).Where("id = ?", user.Id).
				Update("handle", handle).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	user = User{
		UserId:       userId,
		ChatId:       chatId,
		Handle:       handle,
		NotifyDeploy: true,
		NotifyEnv:    true,
		CreatedAt:    time.Now().UTC(),
	}
	if err = db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserById retrieves a user by its stable user id.
func (c *Client) GetUserById(ctx context.Context, userId string) (*User, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var user User
	err = db.WithContext(ctx).Where("user_id = ?", userId).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, commonerrors.NewNotFoundWithMessage("user not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUserPreferences updates the per-event notification booleans.
func (c *Client) UpdateUserPreferences(ctx context.Context, userId string, notifyDeploy, notifyEnv bool) error {
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).Model(&User{}).Where("user_id = ?", userId).
		Updates(map[string]interface{}{"notify_deploy": notifyDeploy, "notify_env": notifyEnv})
	if result.Error != nil {
		return result.Error
	}
	return rowsAffectedError("user", result.RowsAffected)
}
