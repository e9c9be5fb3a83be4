/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	dbutils "github.com/wrytes/deployment-system/pkg/database/utils"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

const (
	TEnvironment = "environment"
)

var (
	insertEnvironmentCmd = fmt.Sprintf(`INSERT INTO %s
		(env_id, user_id, name, overlay_name, driver_network_id, status, is_public, public_domain, error_message, created_at, updated_at)
		VALUES (:env_id, :user_id, :name, :overlay_name, :driver_network_id, :status, :is_public, :public_domain, :error_message, :created_at, :updated_at)`,
		TEnvironment)
	getEnvironmentCmd = fmt.Sprintf(`SELECT * FROM %s WHERE env_id = $1 LIMIT 1`, TEnvironment)
)

// InsertEnvironment persists a new environment row.
func (c *Client) InsertEnvironment(ctx context.Context, env *Environment) error {
	if env == nil {
		return commonerrors.NewBadRequest("the input is empty")
	}
	db, err := c.getDB()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	env.CreatedAt = dbutils.ToNullTime(now)
	env.UpdatedAt = dbutils.ToNullTime(now)
	if _, err = db.NamedExecContext(ctx, insertEnvironmentCmd, env); err != nil {
		klog.ErrorS(err, "failed to insert environment", "envId", env.EnvId)
	}
	return err
}

// GetEnvironment retrieves an environment by env id, regardless of owner.
func (c *Client) GetEnvironment(ctx context.Context, envId string) (*Environment, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	var envs []*Environment
	if err = db.SelectContext(ctx, &envs, getEnvironmentCmd, envId); err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, commonerrors.NewNotFound("environment", envId)
	}
	return envs[0], nil
}

// SelectEnvironments retrieves environment rows matching a squirrel predicate.
func (c *Client) SelectEnvironments(ctx context.Context, query sqrl.Sqlizer, orderBy ...string) ([]*Environment, error) {
	db, err := c.getDB()
	if err != nil {
		return nil, err
	}
	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).From(TEnvironment)
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
	var envs []*Environment
	err = db.SelectContext(ctx2, &envs, cmd, args...)
	return envs, err
}

// GetEnvironmentForUser retrieves an environment owned by userId. Foreign
// rows surface as not-found.
func (c *Client) GetEnvironmentForUser(ctx context.Context, userId, envId string) (*Environment, error) {
	envs, err := c.SelectEnvironments(ctx, sqrl.Eq{"env_id": envId, "user_id": userId})
	if err != nil {
		return nil, err
	}
	if len(envs) == 0 {
		return nil, commonerrors.NewNotFound("environment", envId)
	}
	return envs[0], nil
}

// ListEnvironmentsForUser returns a user's environments, newest first,
// excluding DELETED rows.
func (c *Client) ListEnvironmentsForUser(ctx context.Context, userId string) ([]*Environment, error) {
	return c.SelectEnvironments(ctx,
		sqrl.And{sqrl.Eq{"user_id": userId}, sqrl.NotEq{"status": EnvDeleted}},
		CreatedAt+" "+DESC)
}

// CountEnvironmentsByName counts non-deleted environments with the given
// logical name for a user; used to enforce per-user uniqueness.
func (c *Client) CountEnvironmentsByName(ctx context.Context, userId, name string) (int, error) {
	return c.countEnvironments(ctx,
		sqrl.And{sqrl.Eq{"user_id": userId, "name": name}, sqrl.NotEq{"status": EnvDeleted}})
}

// CountEnvironmentsByDomain counts environments already holding the domain;
// used to enforce global domain uniqueness.
func (c *Client) CountEnvironmentsByDomain(ctx context.Context, domain string) (int, error) {
	return c.countEnvironments(ctx,
		sqrl.And{sqrl.Eq{"public_domain": domain}, sqrl.NotEq{"status": EnvDeleted}})
}

func (c *Client) countEnvironments(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	db, err := c.getDB()
	if err != nil {
		return 0, err
	}
	cmd, args, err := sqrl.Select("COUNT(*)").PlaceholderFormat(sqrl.Dollar).
		From(TEnvironment).Where(query).ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	err = db.GetContext(ctx, &count, cmd, args...)
	return count, err
}

// UpdateEnvironmentStatus flips an environment's status, recording the error
// message for ERROR transitions and clearing it otherwise.
func (c *Client) UpdateEnvironmentStatus(ctx context.Context, envId, status, errorMessage string) error {
	return c.updateEnvironment(ctx, envId, map[string]interface{}{
		"status":        status,
		"error_message": dbutils.ToNullString(errorMessage),
	})
}

// SetEnvironmentNetwork records the driver network id and flips to ACTIVE.
func (c *Client) SetEnvironmentNetwork(ctx context.Context, envId, networkId string) error {
	return c.updateEnvironment(ctx, envId, map[string]interface{}{
		"driver_network_id": dbutils.ToNullString(networkId),
		"status":            EnvActive,
		"error_message":     sql.NullString{},
	})
}

// MarkEnvironmentPublic stores the public domain and flips is_public.
func (c *Client) MarkEnvironmentPublic(ctx context.Context, envId, domain string) error {
	return c.updateEnvironment(ctx, envId, map[string]interface{}{
		"is_public":     true,
		"public_domain": dbutils.ToNullString(domain),
	})
}

func (c *Client) updateEnvironment(ctx context.Context, envId string, set map[string]interface{}) error {
	db, err := c.getDB()
	if err != nil {
		return err
	}
	set["updated_at"] = time.Now().UTC()
	cmd, args, err := sqrl.Update(TEnvironment).PlaceholderFormat(sqrl.Dollar).
		SetMap(set).Where(sqrl.Eq{"env_id": envId}).ToSql()
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, cmd, args...)
	if err != nil {
		klog.ErrorS(err, "failed to update environment", "envId", envId)
		return err
	}
	n, _ := result.RowsAffected()
	return rowsAffectedError("environment", n)
}
