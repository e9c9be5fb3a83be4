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
	TDeployment = "deployment"
)

var (
	insertDeploymentCmd = fmt.Sprintf(`INSERT INTO %s
		(deployment_id, env_id, job_id, image, tag, replicas, ports, env_vars, volumes,
		 virtual_host, virtual_port, status, error_message, started_at, completed_at,
		 current_version, git_url, git_branch, git_commit_sha, created_at, updated_at)
		VALUES (:deployment_id, :env_id, :job_id, :image, :tag, :replicas, :ports, :env_vars, :volumes,
		 :virtual_host, :virtual_port, :status, :error_message, :started_at, :completed_at,
		 :current_version, :git_url, :git_branch, :git_commit_sha, :created_at, :updated_at)`,
		TDeployment)
	getDeploymentCmd      = fmt.Sprintf(`SELECT * FROM %s WHERE deployment_id = $1 LIMIT 1`, TDeployment)
	getDeploymentByJobCmd = fmt.Sprintf(`SELECT * FROM %s WHERE job_id = $1 LIMIT 1`, TDeployment)
	deleteDeploymentCmd   = fmt.Sprintf(`DELETE FROM %s WHERE deployment_id = $1`, TDeployment)
)

// InsertDeployment persists a new deployment row in PENDING.
func (c *Client) InsertDeployment(ctx context.Context, d *Deployment) error {
	if d == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	d.CreatedAt = dbutils.ToNullTime(now)
	d.UpdatedAt = dbutils.ToNullTime(now)
	if _, err = db.NamedExecContext(ctx, insertDeploymentCmd, d); err != nil {
		klog.ErrorS(err, "failed to insert deployment", "deploymentId", d.DeploymentId)
	}
	return err
}

// GetDeployment retrieves a deployment by id.
func (c *Client) GetDeployment(ctx context.Context, deploymentId string) (*Deployment, error) {
	return c.getDeployment(ctx, getDeploymentCmd, deploymentId, "deployment", deploymentId)
}

// GetDeploymentByJobId retrieves a deployment by its public polling handle.
func (c *Client) GetDeploymentByJobId(ctx context.Context, jobId string) (*Deployment, error) {
	return c.getDeployment(ctx, getDeploymentByJobCmd, jobId, "job", jobId)
}

func (c *Client) getDeployment(ctx context.Context, cmd, arg, kind, name string) (*Deployment, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var deployments []*Deployment
	if err = db.SelectContext(ctx, &deployments, cmd, arg); err != nil {
		return nil, err
	}
	if len(deployments) == 0 {
		return nil, commonerrors.NewNotFound(kind, name)
	}
	return deployments[0], nil
}

// SelectDeployments retrieves deployment rows matching a squirrel predicate.
func (c *Client) SelectDeployments(ctx context.Context, query sqrl.Sqlizer, orderBy ...string) ([]*Deployment, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).From(TDeployment)
	if query != nil {
		builder = builder.Where(query)
	}
	if len(orderBy) > 0 {
		builder = builder.OrderBy(orderBy...)
	}
	cmd, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	ctx2, cancel := c.queryContext(ctx)
	defer cancel()
	var deployments []*Deployment
	err = db.SelectContext(ctx2, &deployments, cmd, args...)
	return deployments, err
}

// ListDeploymentsByEnv returns an environment's deployments, newest first.
func (c *Client) ListDeploymentsByEnv(ctx context.Context, envId string) ([]*Deployment, error) {
	return c.SelectDeployments(ctx, sqrl.Eq{"env_id": envId}, CreatedAt+" "+DESC)
}

// ListDeploymentsByStatus returns all deployments in the given status across
// all environments. The recovery supervisor uses this with RUNNING.
func (c *Client) ListDeploymentsByStatus(ctx context.Context, status string) ([]*Deployment, error) {
	return c.SelectDeployments(ctx, sqrl.Eq{"status": status}, CreatedAt+" "+ASC)
}

// UpdateDeploymentStatus flips a deployment's status. Zero-valued times leave
// the corresponding stamps untouched.
func (c *Client) UpdateDeploymentStatus(ctx context.Context, deploymentId, status, errorMessage string,
	startedAt, completedAt time.Time) error {
	set := map[string]interface{}{
		"status":        status,
		"error_message": dbutils.ToNullString(errorMessage),
	}
	if !startedAt.IsZero() {
		set["started_at"] = startedAt
	}
	if !completedAt.IsZero() {
		set["completed_at"] = completedAt
	}
	return c.updateDeployment(ctx, deploymentId, set)
}

// UpdateDeploymentVolumes rewrites the persisted volume list after the worker
// expanded logical names into managed volume names.
func (c *Client) UpdateDeploymentVolumes(ctx context.Context, deploymentId, volumesJSON string) error {
	return c.updateDeployment(ctx, deploymentId, map[string]interface{}{
		"volumes": dbutils.ToNullString(volumesJSON),
	})
}

// UpdateDeploymentVirtualHost patches the proxy routing columns.
func (c *Client) UpdateDeploymentVirtualHost(ctx context.Context, deploymentId, virtualHost string, virtualPort int64) error {
	set := map[string]interface{}{
		"virtual_host": dbutils.ToNullString(virtualHost),
	}
	if virtualPort > 0 {
		set["virtual_port"] = virtualPort
	}
	return c.updateDeployment(ctx, deploymentId, set)
}

// UpdateDeploymentGitCommit records the commit the build produced.
func (c *Client) UpdateDeploymentGitCommit(ctx context.Context, deploymentId, sha string) error {
	return c.updateDeployment(ctx, deploymentId, map[string]interface{}{
		"git_commit_sha": dbutils.ToNullString(sha),
	})
}

// DeleteDeployment hard-deletes the row; the service row cascades via FK.
func (c *Client) DeleteDeployment(ctx context.Context, deploymentId string) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, deleteDeploymentCmd, deploymentId)
	if err != nil {
		klog.ErrorS(err, "failed to delete deployment", "deploymentId", deploymentId)
		return err
	}
	n, _ := result.RowsAffected()
	return rowsAffectedError("deployment", n)
}

func (c *Client) updateDeployment(ctx context.Context, deploymentId string, set map[string]interface{}) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	set["updated_at"] = time.Now().UTC()
	cmd, args, err := sqrl.Update(TDeployment).PlaceholderFormat(sqrl.Dollar).
		SetMap(set).Where(sqrl.Eq{"deployment_id": deploymentId}).ToSql()
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, cmd, args...)
	if err != nil {
		klog.ErrorS(err, "failed to update deployment", "deploymentId", deploymentId)
		return err
	}
	n, _ := result.RowsAffected()
	return rowsAffectedError("deployment", n)
}
