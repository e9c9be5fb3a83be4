/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	dbutils "github.com/wrytes/deployment-system/pkg/database/utils"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

const (
	TService = "service"
)

var (
	insertServiceCmd = fmt.Sprintf(`INSERT INTO %s
		(service_id, deployment_id, driver_service_id, name, status, health, restart_count, created_at, updated_at)
		VALUES (:service_id, :deployment_id, :driver_service_id, :name, :status, :health, :restart_count, :created_at, :updated_at)
		ON CONFLICT (deployment_id) DO UPDATE SET
		 driver_service_id = EXCLUDED.driver_service_id,
		 name = EXCLUDED.name,
		 status = EXCLUDED.status,
		 health = EXCLUDED.health,
		 updated_at = EXCLUDED.updated_at`, TService)
	getServiceByDeploymentCmd = fmt.Sprintf(`SELECT * FROM %s WHERE deployment_id = $1 LIMIT 1`, TService)
)

// UpsertService inserts or refreshes the 1:1 service projection of a
// deployment. The unique index on deployment_id makes repeated worker runs
// idempotent.
func (c *Client) UpsertService(ctx context.Context, svc *Service) error {
	if svc == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if !svc.CreatedAt.Valid {
		svc.CreatedAt = dbutils.ToNullTime(now)
	}
	svc.UpdatedAt = dbutils.ToNullTime(now)
	if _, err = db.NamedExecContext(ctx, insertServiceCmd, svc); err != nil {
		klog.ErrorS(err, "failed to upsert service", "deploymentId", svc.DeploymentId)
	}
	return err
}

// GetServiceByDeployment retrieves the service row for a deployment, or a
// not-found error when the deployment has no projection yet.
func (c *Client) GetServiceByDeployment(ctx context.Context, deploymentId string) (*Service, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var services []*Service
	if err = db.SelectContext(ctx, &services, getServiceByDeploymentCmd, deploymentId); err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, commonerrors.NewNotFoundWithMessage("service not found for deployment " + deploymentId)
	}
	return services[0], nil
}

// UpdateServiceStatus flips the service row's status and health.
func (c *Client) UpdateServiceStatus(ctx context.Context, deploymentId, status, health string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	cmd, args, err := sqrl.Update(TService).PlaceholderFormat(sqrl.Dollar).
		SetMap(map[string]interface{}{
			"status":     status,
			"health":     health,
			"updated_at": time.Now().UTC(),
		}).
		Where(sqrl.Eq{"deployment_id": deploymentId}).ToSql()
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, cmd, args...)
	if err != nil {
		klog.ErrorS(err, "failed to update service", "deploymentId", deploymentId)
		return err
	}
	n, _ := result.RowsAffected()
	return rowsAffectedError("service", n)
}
