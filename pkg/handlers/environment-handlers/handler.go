/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package environment_handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	dbutils "github.com/wrytes/deployment-system/pkg/database/utils"
	"github.com/wrytes/deployment-system/pkg/deployment"
	"github.com/wrytes/deployment-system/pkg/environment"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
	"github.com/wrytes/deployment-system/pkg/utils"
)

// Handler serves the environment surface.
type Handler struct {
	env    *environment.Service
	engine *deployment.Engine
}

func NewHandler(env *environment.Service, engine *deployment.Engine) *Handler {
	return &Handler{env: env, engine: engine}
}

type handleFunc func(c *gin.Context) (interface{}, error)

func handle(c *gin.Context, fn handleFunc) {
	response, err := fn(c)
	if err != nil {
		utils.AbortWithApiError(c, err)
		return
	}
	c.JSON(c.Writer.Status(), response)
}

// CreateEnvironment creates a tenant-private overlay network.
// POST /environments
func (h *Handler) CreateEnvironment(c *gin.Context) {
	handle(c, h.createEnvironment)
}

// ListEnvironments lists the caller's environments.
// GET /environments
func (h *Handler) ListEnvironments(c *gin.Context) {
	handle(c, h.listEnvironments)
}

// GetEnvironment returns one environment with its recent deployments.
// GET /environments/:id
func (h *Handler) GetEnvironment(c *gin.Context) {
	handle(c, h.getEnvironment)
}

// DeleteEnvironment starts a cascade delete.
// DELETE /environments/:id
func (h *Handler) DeleteEnvironment(c *gin.Context) {
	handle(c, h.deleteEnvironment)
}

// MakePublic exposes the environment through the reverse proxy.
// POST /environments/:id/public
func (h *Handler) MakePublic(c *gin.Context) {
	handle(c, h.makePublic)
}

// envView is the JSON projection of an environment row.
type envView struct {
	EnvId        string     `json:"envId"`
	Name         string     `json:"name"`
	OverlayName  string     `json:"overlayName"`
	Status       string     `json:"status"`
	IsPublic     bool       `json:"isPublic"`
	PublicDomain string     `json:"publicDomain,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

func toEnvView(env *dbclient.Environment) envView {
	view := envView{
		EnvId:        env.EnvId,
		Name:         env.Name,
		OverlayName:  env.OverlayName,
		Status:       env.Status,
		IsPublic:     env.IsPublic,
		PublicDomain: dbutils.ParseNullString(env.PublicDomain),
		ErrorMessage: dbutils.ParseNullString(env.ErrorMessage),
	}
	if env.CreatedAt.Valid {
		view.CreatedAt = &env.CreatedAt.Time
	}
	return view
}

type createEnvRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) createEnvironment(c *gin.Context) (interface{}, error) {
	var req createEnvRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user := authority.CurrentUser(c)
	env, err := h.env.Create(c.Request.Context(), user.UserId, req.Name)
	if err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return toEnvView(env), nil
}

func (h *Handler) listEnvironments(c *gin.Context) (interface{}, error) {
	user := authority.CurrentUser(c)
	envs, err := h.env.List(c.Request.Context(), user.UserId)
	if err != nil {
		return nil, err
	}
	views := make([]envView, 0, len(envs))
	for _, env := range envs {
		views = append(views, toEnvView(env))
	}
	return views, nil
}

type envDetailView struct {
	envView
	Deployments []*dbclient.Deployment `json:"deployments"`
}

func (h *Handler) getEnvironment(c *gin.Context) (interface{}, error) {
	user := authority.CurrentUser(c)
	envId := c.Param("id")
	env, err := h.env.Get(c.Request.Context(), user.UserId, envId)
	if err != nil {
		return nil, err
	}
	deployments, err := h.engine.ListByEnvironment(c.Request.Context(), user.UserId, envId)
	if err != nil {
		return nil, err
	}
	return envDetailView{envView: toEnvView(env), Deployments: deployments}, nil
}

func (h *Handler) deleteEnvironment(c *gin.Context) (interface{}, error) {
	user := authority.CurrentUser(c)
	if err := h.env.Delete(c.Request.Context(), user.UserId, c.Param("id")); err != nil {
		return nil, err
	}
	return gin.H{"message": "environment deleted"}, nil
}

type makePublicRequest struct {
	Domain string `json:"domain" binding:"required"`
}

func (h *Handler) makePublic(c *gin.Context) (interface{}, error) {
	var req makePublicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user := authority.CurrentUser(c)
	env, err := h.env.MakePublic(c.Request.Context(), user.UserId, c.Param("id"), req.Domain)
	if err != nil {
		return nil, err
	}
	return toEnvView(env), nil
}
