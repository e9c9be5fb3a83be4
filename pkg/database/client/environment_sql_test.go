/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// newMockClient wraps a sqlmock connection in a Client. Column predicates are
// built from maps, so expectations stay loose about argument order.
func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClientWith(sqlx.NewDb(db, "sqlmock"), nil), mock
}

func envColumns() []string {
	return []string{"env_id", "user_id", "name", "overlay_name", "driver_network_id",
		"status", "is_public", "public_domain", "error_message", "created_at", "updated_at"}
}

func TestInsertEnvironmentStampsTimestamps(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec("INSERT INTO environment").
		WillReturnResult(sqlmock.NewResult(0, 1))

	env := &Environment{EnvId: "env-1", UserId: "alice", Name: "demo", OverlayName: "overlay_env_demo_1", Status: EnvCreating}
	require.NoError(t, c.InsertEnvironment(context.Background(), env))
	assert.True(t, env.CreatedAt.Valid)
	assert.True(t, env.UpdatedAt.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEnvironmentNotFound(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery("SELECT (.+) FROM environment WHERE env_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(envColumns()))

	_, err := c.GetEnvironment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEnvironmentForUserScansRow(t *testing.T) {
	c, mock := newMockClient(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT (.+) FROM environment WHERE").
		WillReturnRows(sqlmock.NewRows(envColumns()).
			AddRow("env-1", "alice", "demo", "overlay_env_demo_1", "net-1",
				EnvActive, false, nil, nil, now, now))

	env, err := c.GetEnvironmentForUser(context.Background(), "alice", "env-1")
	require.NoError(t, err)
	assert.Equal(t, "demo", env.Name)
	assert.Equal(t, EnvActive, env.Status)
	assert.Equal(t, "net-1", env.DriverNetworkId.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountEnvironmentsByName(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM environment WHERE`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := c.CountEnvironmentsByName(context.Background(), "alice", "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEnvironmentStatusMissingRow(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec("UPDATE environment SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.UpdateEnvironmentStatus(context.Background(), "missing", EnvError, "boom")
	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDeploymentMissingRow(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec("DELETE FROM deployment WHERE deployment_id").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.DeleteDeployment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDeploymentsByStatusQuery(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery("SELECT (.+) FROM deployment WHERE").
		WillReturnRows(sqlmock.NewRows([]string{"deployment_id", "env_id", "job_id", "image", "tag", "replicas", "status"}).
			AddRow("dep-1", "env-1", "job0000000000001", "nginx", "latest", 1, DeployRunning))

	rows, err := c.ListDeploymentsByStatus(context.Background(), DeployRunning)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "dep-1", rows[0].DeploymentId)
	assert.NoError(t, mock.ExpectationsWereMet())
}
