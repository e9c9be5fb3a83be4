/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package environment_handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/wrytes/deployment-system/pkg/credential"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
)

// InitEnvironmentRouters registers the environment surface. The default
// throttle covers all routes; scopes split reads from writes.
func InitEnvironmentRouters(e *gin.Engine, h *Handler, cred *credential.Service, throttle *authority.Throttle) {
	group := e.Group("environments", authority.Authorize(cred), throttle.Middleware())
	{
		group.POST("", authority.RequireScopes(credential.ScopeEnvWrite), h.CreateEnvironment)
		group.GET("", authority.RequireScopes(credential.ScopeEnvRead), h.ListEnvironments)
		group.GET(":id", authority.RequireScopes(credential.ScopeEnvRead), h.GetEnvironment)
		group.DELETE(":id", authority.RequireScopes(credential.ScopeEnvWrite), h.DeleteEnvironment)
		group.POST(":id/public", authority.RequireScopes(credential.ScopeEnvWrite), h.MakePublic)
	}
}
