/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"time"

	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// SubmitNotification journals a notification into the outbox.
func (c *Client) SubmitNotification(ctx context.Context, data *Notification) error {
	if data == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(data).Error
}

// UpdateNotification updates the specified outbox row.
func (c *Client) UpdateNotification(ctx context.Context, data *Notification) error {
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", data.Id).Save(data).Error
}

// ListUnprocessedNotifications retrieves outbox rows not yet delivered.
func (c *Client) ListUnprocessedNotifications(ctx context.Context) ([]*Notification, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var rows []*Notification
	err = db.WithContext(ctx).Where("sent_at = ?", time.Time{}).
		Order("created_at asc").Find(&rows).Error
	return rows, err
}
