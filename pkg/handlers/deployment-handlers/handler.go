/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment_handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wrytes/deployment-system/pkg/credential"
	"github.com/wrytes/deployment-system/pkg/deployment"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
	"github.com/wrytes/deployment-system/pkg/utils"
)

// Handler serves the deployment surface.
type Handler struct {
	engine *deployment.Engine
}

func NewHandler(engine *deployment.Engine) *Handler {
	return &Handler{engine: engine}
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

// CreateFromRegistry deploys a registry image.
// POST /deployments
func (h *Handler) CreateFromRegistry(c *gin.Context) {
	handle(c, h.createFromRegistry)
}

// CreateFromGit builds an image from a Git repository and deploys it.
// POST /deployments/from-git
func (h *Handler) CreateFromGit(c *gin.Context) {
	handle(c, h.createFromGit)
}

// Read serves the whole two-segment read surface. The router cannot mix
// literal and parameter segments at one level, so the four lookups share one
// pattern and dispatch here:
//
//	GET /deployments/job/:jobId          poll a deployment by its job handle
//	GET /deployments/environment/:envId  list an environment's deployments
//	GET /deployments/:id/versions        desired-state history
//	GET /deployments/:id/logs            tail of the service logs
func (h *Handler) Read(c *gin.Context) {
	handle(c, h.read)
}

// Delete removes a deployment and, optionally, its volumes.
// DELETE /deployments/:id
func (h *Handler) Delete(c *gin.Context) {
	handle(c, h.delete)
}

func (h *Handler) createFromRegistry(c *gin.Context) (interface{}, error) {
	var req deployment.RegistryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user := authority.CurrentUser(c)
	receipt, err := h.engine.CreateFromRegistry(c.Request.Context(), user.UserId, &req)
	if err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return receipt, nil
}

func (h *Handler) createFromGit(c *gin.Context) (interface{}, error) {
	var req deployment.GitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user := authority.CurrentUser(c)
	receipt, err := h.engine.CreateFromGit(c.Request.Context(), user.UserId, &req)
	if err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return receipt, nil
}

func (h *Handler) read(c *gin.Context) (interface{}, error) {
	head, rest := c.Param("head"), c.Param("rest")
	switch {
	case head == "job":
		return h.getStatus(c, rest)
	case head == "environment":
		return h.listByEnvironment(c, rest)
	case rest == "versions":
		return h.listVersions(c, head)
	case rest == "logs":
		return h.getLogs(c, head)
	}
	return nil, commonerrors.NewNotFoundWithMessage(c.Request.RequestURI + " not found")
}

// requireScope mirrors the route-level scope middleware for the dispatched
// read operations.
func requireScope(c *gin.Context, scope string) error {
	key := authority.CurrentKey(c)
	if key == nil {
		return commonerrors.NewApiKeyInvalid()
	}
	if !credential.CheckScopes(key, scope) {
		return commonerrors.NewScopeMismatch(scope)
	}
	return nil
}

func (h *Handler) getStatus(c *gin.Context, jobId string) (interface{}, error) {
	if err := requireScope(c, credential.ScopeDeployRead); err != nil {
		return nil, err
	}
	user := authority.CurrentUser(c)
	return h.engine.GetStatus(c.Request.Context(), user.UserId, jobId)
}

func (h *Handler) listByEnvironment(c *gin.Context, envId string) (interface{}, error) {
	if err := requireScope(c, credential.ScopeDeployRead); err != nil {
		return nil, err
	}
	user := authority.CurrentUser(c)
	return h.engine.ListByEnvironment(c.Request.Context(), user.UserId, envId)
}

func (h *Handler) listVersions(c *gin.Context, deploymentId string) (interface{}, error) {
	if err := requireScope(c, credential.ScopeDeployRead); err != nil {
		return nil, err
	}
	user := authority.CurrentUser(c)
	return h.engine.ListVersions(c.Request.Context(), user.UserId, deploymentId)
}

func (h *Handler) getLogs(c *gin.Context, deploymentId string) (interface{}, error) {
	if err := requireScope(c, credential.ScopeLogsRead); err != nil {
		return nil, err
	}
	user := authority.CurrentUser(c)
	tail := 100
	if raw := c.Query("tail"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, commonerrors.NewBadRequest("tail must be a positive integer")
		}
		tail = parsed
	}
	logs, err := h.engine.GetLogs(c.Request.Context(), user.UserId, deploymentId, tail)
	if err != nil {
		return nil, err
	}
	return gin.H{"logs": string(logs)}, nil
}

func (h *Handler) delete(c *gin.Context) (interface{}, error) {
	user := authority.CurrentUser(c)
	preserve := c.Query("preserveVolumes") == "true"
	if err := h.engine.Delete(c.Request.Context(), user.UserId, c.Param("id"), preserve); err != nil {
		return nil, err
	}
	return gin.H{"message": "deployment deleted"}, nil
}
