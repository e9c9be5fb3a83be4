/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package health_handlers

import (
	"github.com/gin-gonic/gin"
)

// InitHealthRouters registers the liveness probe. It stays unauthenticated so
// process supervisors can poll it without a credential.
func InitHealthRouters(e *gin.Engine, h *Handler) {
	e.GET("health", h.Health)
}
