/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
)

// ErrorResponse is the JSON error body of every non-2xx response.
type ErrorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// AbortWithApiError maps a domain error onto the HTTP response and aborts the
// chain. Foreign errors collapse to a generic 500 so internals never leak.
func AbortWithApiError(c *gin.Context, err error) {
	var apiErr *commonerrors.ApiError
	if errors.As(err, &apiErr) {
		if apiErr.HttpCode >= http.StatusInternalServerError {
			klog.ErrorS(err, "request failed", "path", c.FullPath())
		} else {
			klog.V(2).Infof("request rejected on %s: %s", c.FullPath(), apiErr.Message)
		}
		c.AbortWithStatusJSON(apiErr.HttpCode, ErrorResponse{
			Reason:  apiErr.Reason,
			Message: apiErr.Message,
		})
		return
	}
	klog.ErrorS(err, "unhandled error", "path", c.FullPath())
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Reason:  commonerrors.InternalError,
		Message: "Internal error.",
	})
}
