/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package utils

import (
	"database/sql"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DBDriver represents the type of database driver to use.
type DBDriver string

const (
	// PgDriver represents the PostgreSQL database driver.
	PgDriver DBDriver = "postgres"
)

// DBConfig carries the connection string and pool limits for the shared store.
type DBConfig struct {
	URL            string
	MaxOpenConns   int
	MaxIdleConns   int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	ConnectTimeout int
	RequestTimeout time.Duration
}

// Connect establishes a sqlx connection pool against the configured database.
func Connect(cfg *DBConfig, driverName DBDriver) (*sqlx.DB, error) {
	db, err := sqlx.Connect(string(driverName), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect db, err: %v", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	return db, nil
}

// ConnectGorm establishes a GORM connection sharing the same database. Tables
// use singular names to line up with the sqlx query text.
func ConnectGorm(cfg *DBConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gormDB, nil
}

// CvtToSqlStr renders a squirrel predicate for logging.
func CvtToSqlStr(query sqrl.Sqlizer) string {
	if query == nil {
		return ""
	}
	str, args, err := query.ToSql()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s %v", str, args)
}

// ParseNullString parses the input data.
func ParseNullString(str sql.NullString) string {
	if str.Valid {
		return str.String
	}
	return ""
}

// ParseNullTime parses the input data.
func ParseNullTime(t pq.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

// ParseNullTimeToString parses the input data.
func ParseNullTimeToString(t pq.NullTime) string {
	if t.Valid && !t.Time.IsZero() {
		return t.Time.UTC().Format(time.RFC3339)
	}
	return ""
}

// ToNullString wraps a string, treating empty as NULL.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime wraps a time, treating zero as NULL.
func ToNullTime(t time.Time) pq.NullTime {
	if t.IsZero() {
		return pq.NullTime{}
	}
	return pq.NullTime{Time: t, Valid: true}
}
