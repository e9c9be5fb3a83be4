/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

const (
	DESC = "desc"
	ASC  = "asc"

	CreatedAt = "created_at"
)

// Environment statuses, ordered by lifecycle.
const (
	EnvCreating = "CREATING"
	EnvActive   = "ACTIVE"
	EnvDeleting = "DELETING"
	EnvDeleted  = "DELETED"
	EnvError    = "ERROR"
)

// Deployment statuses. Workers advance through a strict prefix of the order
// below; FAILED is reachable from any pre-RUNNING state, STOPPED only from
// RUNNING.
const (
	DeployPending            = "PENDING"
	DeployBuildingImage      = "BUILDING_IMAGE"
	DeployPullingImage       = "PULLING_IMAGE"
	DeployCreatingVolumes    = "CREATING_VOLUMES"
	DeployStartingContainers = "STARTING_CONTAINERS"
	DeployRunning            = "RUNNING"
	DeployFailed             = "FAILED"
	DeployStopped            = "STOPPED"
)

// Service statuses and health values.
const (
	ServiceCreating = "CREATING"
	ServiceRunning  = "RUNNING"
	ServiceStopped  = "STOPPED"
	ServiceFailed   = "FAILED"

	HealthHealthy   = "HEALTHY"
	HealthUnhealthy = "UNHEALTHY"
	HealthStarting  = "STARTING"
	HealthNone      = "NONE"
)

// User is a chat-identified principal. Rows are created on first contact and
// never deleted in normal operation.
type User struct {
	Id           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserId       string    `gorm:"column:user_id;uniqueIndex"`
	ChatId       int64     `gorm:"column:chat_id;uniqueIndex"`
	Handle       string    `gorm:"column:handle"`
	NotifyDeploy bool      `gorm:"column:notify_deploy;default:true"`
	NotifyEnv    bool      `gorm:"column:notify_env;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// ApiKey is an opaque bearer credential. The raw secret is never stored;
// SecretHash is a bcrypt digest. Revoked and expired rows are kept forever.
type ApiKey struct {
	Id         int64      `gorm:"column:id;primaryKey;autoIncrement"`
	KeyId      string     `gorm:"column:key_id;uniqueIndex"`
	UserId     string     `gorm:"column:user_id;index"`
	SecretHash string     `gorm:"column:secret_hash"`
	Scopes     string     `gorm:"column:scopes"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	RevokedAt  *time.Time `gorm:"column:revoked_at"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
}

// MagicLink is a one-shot exchange token; UsedAt gates redemption.
type MagicLink struct {
	Id        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Token     string     `gorm:"column:token;uniqueIndex"`
	UserId    string     `gorm:"column:user_id;index"`
	Scopes    string     `gorm:"column:scopes"`
	ExpiresAt time.Time  `gorm:"column:expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	CreatedAt time.Time  `gorm:"column:created_at"`
}

// DeploymentVersion is an append-only snapshot of desired state.
type DeploymentVersion struct {
	Id           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DeploymentId string    `gorm:"column:deployment_id;index"`
	Version      int       `gorm:"column:version"`
	Image        string    `gorm:"column:image"`
	Tag          string    `gorm:"column:tag"`
	Replicas     int       `gorm:"column:replicas"`
	Ports        string    `gorm:"column:ports"`
	EnvVars      string    `gorm:"column:env_vars"`
	Volumes      string    `gorm:"column:volumes"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// DeploymentUpdate records a transition between versions. Rows are written
// but never executed; the column set is a reserved extension point.
type DeploymentUpdate struct {
	Id           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DeploymentId string    `gorm:"column:deployment_id;index"`
	Strategy     string    `gorm:"column:strategy"`
	FromVersion  int       `gorm:"column:from_version"`
	ToVersion    int       `gorm:"column:to_version"`
	Status       string    `gorm:"column:status"`
	Changes      string    `gorm:"column:changes"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

// Notification is the outbox row drained by the notification manager.
// SentAt at its zero value marks the row as unprocessed.
type Notification struct {
	Id        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UID       string    `gorm:"column:uid;index"`
	Topic     string    `gorm:"column:topic"`
	Data      string    `gorm:"column:data"`
	CreatedAt time.Time `gorm:"column:created_at"`
	SentAt    time.Time `gorm:"column:sent_at"`
}

// Environment is a tenant-private overlay network row.
type Environment struct {
	Id              int64          `db:"id"`
	EnvId           string         `db:"env_id"`
	UserId          string         `db:"user_id"`
	Name            string         `db:"name"`
	OverlayName     string         `db:"overlay_name"`
	DriverNetworkId sql.NullString `db:"driver_network_id"`
	Status          string         `db:"status"`
	IsPublic        bool           `db:"is_public"`
	PublicDomain    sql.NullString `db:"public_domain"`
	ErrorMessage    sql.NullString `db:"error_message"`
	CreatedAt       pq.NullTime    `db:"created_at"`
	UpdatedAt       pq.NullTime    `db:"updated_at"`
}

// Deployment is the desired state of one workload. Ports, EnvVars and Volumes
// are JSON blobs; EnvVars passes through the column encryptor when enabled.
type Deployment struct {
	Id             int64          `db:"id"`
	DeploymentId   string         `db:"deployment_id"`
	EnvId          string         `db:"env_id"`
	JobId          string         `db:"job_id"`
	Image          string         `db:"image"`
	Tag            string         `db:"tag"`
	Replicas       int            `db:"replicas"`
	Ports          sql.NullString `db:"ports"`
	EnvVars        sql.NullString `db:"env_vars"`
	Volumes        sql.NullString `db:"volumes"`
	VirtualHost    sql.NullString `db:"virtual_host"`
	VirtualPort    sql.NullInt64  `db:"virtual_port"`
	Status         string         `db:"status"`
	ErrorMessage   sql.NullString `db:"error_message"`
	StartedAt      pq.NullTime    `db:"started_at"`
	CompletedAt    pq.NullTime    `db:"completed_at"`
	CurrentVersion int            `db:"current_version"`
	GitUrl         sql.NullString `db:"git_url"`
	GitBranch      sql.NullString `db:"git_branch"`
	GitCommitSha   sql.NullString `db:"git_commit_sha"`
	CreatedAt      pq.NullTime    `db:"created_at"`
	UpdatedAt      pq.NullTime    `db:"updated_at"`
}

// Service is the Swarm-service projection of a deployment (1:1).
type Service struct {
	Id              int64          `db:"id"`
	ServiceId       string         `db:"service_id"`
	DeploymentId    string         `db:"deployment_id"`
	DriverServiceId sql.NullString `db:"driver_service_id"`
	Name            string         `db:"name"`
	Status          string         `db:"status"`
	Health          string         `db:"health"`
	RestartCount    int            `db:"restart_count"`
	CreatedAt       pq.NullTime    `db:"created_at"`
	UpdatedAt       pq.NullTime    `db:"updated_at"`
}
