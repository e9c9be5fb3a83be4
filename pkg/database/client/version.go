/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"

	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// InsertDeploymentVersion appends a desired-state snapshot.
func (c *Client) InsertDeploymentVersion(ctx context.Context, v *DeploymentVersion) error {
	if v == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(v).Error
}

// ListDeploymentVersions returns a deployment's version history, newest first.
func (c *Client) ListDeploymentVersions(ctx context.Context, deploymentId string) ([]*DeploymentVersion, error) {
	db, err := c.getGorm()
	if err != nil {
		return nil, err
	}
	var versions []*DeploymentVersion
	err = db.WithContext(ctx).Where("deployment_id = ?", deploymentId).
		Order("version desc").Find(&versions).Error
	return versions, err
}

// InsertDeploymentUpdate records a version transition. Updates are written
// but never executed; the table is a reserved extension point.
func (c *Client) InsertDeploymentUpdate(ctx context.Context, u *DeploymentUpdate) error {
	if u == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(u).Error
}

// DeleteDeploymentHistory removes version and update rows when the owning
// deployment is hard-deleted.
func (c *Client) DeleteDeploymentHistory(ctx context.Context, deploymentId string) error {
	db, err := c.getGorm()
	if err != nil {
		return err
	}
	if err = db.WithContext(ctx).Where("deployment_id = ?", deploymentId).
		Delete(&DeploymentVersion{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("deployment_id = ?", deploymentId).
		Delete(&DeploymentUpdate{}).Error
}
