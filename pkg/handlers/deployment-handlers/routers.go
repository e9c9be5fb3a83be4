/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deployment_handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wrytes/deployment-system/pkg/credential"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
)

const (
	registryDeploysPerMinute = 5
	gitDeploysPerMinute      = 3
)

// InitDeploymentRouters registers the deployment surface. Creation routes
// carry their own tighter throttles on top of the default one because image
// pulls and builds are the expensive operations of the system.
func InitDeploymentRouters(e *gin.Engine, h *Handler, cred *credential.Service, throttle *authority.Throttle) {
	registryThrottle := authority.NewThrottle(registryDeploysPerMinute, time.Minute)
	gitThrottle := authority.NewThrottle(gitDeploysPerMinute, time.Minute)

	group := e.Group("deployments", authority.Authorize(cred), throttle.Middleware())
	{
		group.POST("", authority.RequireScopes(credential.ScopeDeployWrite), registryThrottle.Middleware(), h.CreateFromRegistry)
		group.POST("from-git", authority.RequireScopes(credential.ScopeDeployWrite), gitThrottle.Middleware(), h.CreateFromGit)
		// job/:jobId, environment/:envId, :id/versions and :id/logs share one
		// pattern; the handler dispatches and enforces per-operation scopes.
		group.GET(":head/:rest", h.Read)
		group.DELETE(":id", authority.RequireScopes(credential.ScopeDeployWrite), h.Delete)
	}
}
