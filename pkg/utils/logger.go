/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package utils

import (
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// AccessLog logs one line per request. Health probes are only logged at
// higher verbosity to keep the output readable.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		if c.Request.URL.Path == "/health" {
			klog.V(4).Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
			return
		}
		klog.Infof("%s %s %d %s %s", c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
	}
}

// Recovery converts a handler panic into a 500 instead of tearing the
// process down.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		klog.Errorf("panic on %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(500, ErrorResponse{
			Reason:  commonerrors.InternalError,
			Message: "Internal error.",
		})
	})
}
