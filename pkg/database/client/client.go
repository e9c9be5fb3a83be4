/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/config"
	"github.com/wrytes/deployment-system/pkg/database/utils"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

var (
	once     sync.Once
	instance *Client
)

// Client manages both sqlx and gorm handles over the shared postgres store.
// The list-heavy aggregates (environments, deployments, services) go through
// sqlx with squirrel-built queries; the row-at-a-time aggregates (users, keys,
// magic links, versions, notifications) go through gorm.
type Client struct {
	db              *sqlx.DB
	gorm            *gorm.DB
	*utils.DBConfig // Embedded database configuration
}

// NewClient creates the singleton database Client from configuration. The
// initialization happens only once even if called multiple times; a failed
// initialization leaves the instance nil.
func NewClient() *Client {
	once.Do(func() {
		cfg := &utils.DBConfig{
			URL:            config.GetDatabaseURL(),
			MaxOpenConns:   config.GetDBMaxOpenConns(),
			MaxIdleConns:   config.GetDBMaxIdleConns(),
			MaxLifetime:    time.Duration(config.GetDBMaxLifetimeSecond()) * time.Second,
			MaxIdleTime:    time.Duration(config.GetDBMaxIdleTimeSecond()) * time.Second,
			ConnectTimeout: config.GetDBConnectTimeoutSecond(),
			RequestTimeout: time.Duration(config.GetDBRequestTimeoutSecond()) * time.Second,
		}
		if cfg.URL == "" {
			klog.Errorf("DATABASE_URL is not configured")
			return
		}
		db, err := utils.Connect(cfg, utils.PgDriver)
		if err != nil {
			klog.ErrorS(err, "failed to connect db")
			return
		}
		if err = db.Ping(); err != nil {
			klog.ErrorS(err, "failed to ping db")
			return
		}
		gormDb, err := utils.ConnectGorm(cfg)
		if err != nil {
			klog.ErrorS(err, "failed to connect gorm")
			return
		}
		instance = &Client{db: db, gorm: gormDb, DBConfig: cfg}
		klog.Infof("init db-client successfully! conn-timeout: %d(s), request-timeout: %v",
			cfg.ConnectTimeout, cfg.RequestTimeout)
	})
	return instance
}

// NewClientWith builds a Client over existing handles. Used by tests.
func NewClientWith(db *sqlx.DB, gormDb *gorm.DB) *Client {
	return &Client{db: db, gorm: gormDb, DBConfig: &utils.DBConfig{}}
}

// Close closes the underlying connections.
func (c *Client) Close() {
	if err := c.db.Close(); err != nil {
		klog.ErrorS(err, "failed to close db connection")
	}
}

// Ping verifies the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return commonerrors.NewInternalError("the client of db has not been initialized")
	}
	return c.db.PingContext(ctx)
}

// Migrate creates the schema for the gorm-managed aggregates. The sqlx
// aggregates are created from migrations/schema.sql at deploy time.
func (c *Client) Migrate() error {
	if c.gorm == nil {
		return commonerrors.NewInternalError("the gorm client has not been initialized")
	}
	return c.gorm.AutoMigrate(
		&User{}, &ApiKey{}, &MagicLink{},
		&DeploymentVersion{}, &DeploymentUpdate{}, &Notification{},
	)
}

// getDB retrieves the sqlx handle for internal use.
func (c *Client) getDB() (*sqlx.DB, error) {
	if c == nil || c.db == nil {
		return nil, commonerrors.NewInternalError("the client of db has not been initialized")
	}
	return c.db.Unsafe(), nil
}

// getGorm retrieves the gorm handle for internal use.
func (c *Client) getGorm() (*gorm.DB, error) {
	if c == nil || c.gorm == nil {
		return nil, commonerrors.NewInternalError("the gorm client has not been initialized")
	}
	return c.gorm, nil
}

// queryContext bounds ctx by the configured per-request timeout.
func (c *Client) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func rowsAffectedError(what string, n int64) error {
	if n == 0 {
		return commonerrors.NewNotFoundWithMessage(fmt.Sprintf("%s not found", what))
	}
	return nil
}
