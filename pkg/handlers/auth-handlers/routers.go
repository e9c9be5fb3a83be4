/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package auth_handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/wrytes/deployment-system/pkg/credential"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
)

// InitAuthRouters registers the credential surface. Verification is the only
// unauthenticated route; the issuance route is reserved for the chat
// front-end behind the internal token.
func InitAuthRouters(e *gin.Engine, h *Handler, cred *credential.Service) {
	e.GET("auth/verify", h.VerifyMagicLink)

	authed := e.Group("auth", authority.Authorize(cred))
	{
		authed.GET("keys", h.ListKeys)
		authed.POST("revoke", h.RevokeKey)
		authed.POST("preferences", h.UpdatePreferences)
	}

	internal := e.Group("internal", authority.InternalOnly())
	{
		internal.POST("magic-links", h.IssueMagicLink)
	}
}
