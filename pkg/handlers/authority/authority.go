/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package authority

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/wrytes/deployment-system/pkg/config"
	"github.com/wrytes/deployment-system/pkg/credential"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/utils"
)

const (
	HeaderApiKey        = "X-API-Key"
	HeaderInternalToken = "X-Internal-Token"

	contextUser = "authority.user"
	contextKey  = "authority.key"
)

// Authorize authenticates the X-API-Key header and attaches the principal to
// the request context. Every failure mode is the same 401.
func Authorize(cred *credential.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(HeaderApiKey)
		if header == "" {
			utils.AbortWithApiError(c, commonerrors.NewApiKeyInvalid())
			return
		}
		user, key, err := cred.Authenticate(c.Request.Context(), header)
		if err != nil {
			utils.AbortWithApiError(c, err)
			return
		}
		c.Set(contextUser, user)
		c.Set(contextKey, key)
		c.Next()
	}
}

// RequireScopes enforces the route's static scope set against the
// authenticated key. Admin keys pass unconditionally.
func RequireScopes(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CurrentKey(c)
		if key == nil {
			utils.AbortWithApiError(c, commonerrors.NewApiKeyInvalid())
			return
		}
		if !credential.CheckScopes(key, scopes...) {
			utils.AbortWithApiError(c, commonerrors.NewScopeMismatch(scopes[0]))
			return
		}
		c.Next()
	}
}

// InternalOnly guards routes reserved for the chat front-end. The shared
// token comes from configuration; an unset token closes the surface.
func InternalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := config.GetInternalToken()
		header := c.GetHeader(HeaderInternalToken)
		if token == "" || subtle.ConstantTimeCompare([]byte(header), []byte(token)) != 1 {
			utils.AbortWithApiError(c, commonerrors.NewForbidden("internal surface is closed"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside Authorize.
func CurrentUser(c *gin.Context) *dbclient.User {
	if v, ok := c.Get(contextUser); ok {
		if user, ok := v.(*dbclient.User); ok {
			return user
		}
	}
	return nil
}

// CurrentKey returns the authenticated key row, or nil outside Authorize.
func CurrentKey(c *gin.Context) *dbclient.ApiKey {
	if v, ok := c.Get(contextKey); ok {
		if key, ok := v.(*dbclient.ApiKey); ok {
			return key
		}
	}
	return nil
}
