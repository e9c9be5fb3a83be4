/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package auth_handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wrytes/deployment-system/pkg/config"
	"github.com/wrytes/deployment-system/pkg/credential"
	dbclient "github.com/wrytes/deployment-system/pkg/database/client"
	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/handlers/authority"
	"github.com/wrytes/deployment-system/pkg/utils"
)

// Store is the slice of the database client the auth surface uses.
type Store interface {
	GetOrCreateUser(ctx context.Context, userId string, chatId int64, handle string) (*dbclient.User, error)
	UpdateUserPreferences(ctx context.Context, userId string, notifyDeploy, notifyEnv bool) error
}

// Handler serves credential issuance and key management.
type Handler struct {
	cred  *credential.Service
	store Store
}

func NewHandler(cred *credential.Service, store Store) *Handler {
	return &Handler{cred: cred, store: store}
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

// VerifyMagicLink exchanges a one-shot token for a fresh API key.
// GET /auth/verify?token=
func (h *Handler) VerifyMagicLink(c *gin.Context) {
	handle(c, h.verifyMagicLink)
}

// ListKeys returns the caller's keys, revoked ones included.
// GET /auth/keys
func (h *Handler) ListKeys(c *gin.Context) {
	handle(c, h.listKeys)
}

// RevokeKey revokes one of the caller's keys.
// POST /auth/revoke
func (h *Handler) RevokeKey(c *gin.Context) {
	handle(c, h.revokeKey)
}

// IssueMagicLink mints a magic link for a chat-identified user.
// POST /internal/magic-links
func (h *Handler) IssueMagicLink(c *gin.Context) {
	handle(c, h.issueMagicLink)
}

// UpdatePreferences sets the caller's notification booleans.
// POST /auth/preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	handle(c, h.updatePreferences)
}

type verifyResponse struct {
	ApiKey    string     `json:"apiKey"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h *Handler) verifyMagicLink(c *gin.Context) (interface{}, error) {
	token := c.Query("token")
	if token == "" {
		return nil, commonerrors.NewMagicLinkInvalid()
	}
	formatted, key, err := h.cred.RedeemMagicLink(c.Request.Context(), token)
	if err != nil {
		return nil, err
	}
	return verifyResponse{ApiKey: formatted, ExpiresAt: key.ExpiresAt}, nil
}

type keyRecord struct {
	KeyId      string     `json:"keyId"`
	Scopes     []string   `json:"scopes"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (h *Handler) listKeys(c *gin.Context) (interface{}, error) {
	user := authority.CurrentUser(c)
	keys, err := h.cred.ListKeys(c.Request.Context(), user.UserId)
	if err != nil {
		return nil, err
	}
	records := make([]keyRecord, 0, len(keys))
	for _, key := range keys {
		scopes := make([]string, 0)
		for scope := range credential.SplitScopes(key.Scopes) {
			scopes = append(scopes, scope)
		}
		sort.Strings(scopes)
		records = append(records, keyRecord{
			KeyId:      key.KeyId,
			Scopes:     scopes,
			ExpiresAt:  key.ExpiresAt,
			RevokedAt:  key.RevokedAt,
			LastUsedAt: key.LastUsedAt,
			CreatedAt:  key.CreatedAt,
		})
	}
	return records, nil
}

type revokeRequest struct {
	KeyId string `json:"keyId" binding:"required"`
}

func (h *Handler) revokeKey(c *gin.Context) (interface{}, error) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user := authority.CurrentUser(c)
	if err := h.cred.RevokeKey(c.Request.Context(), user.UserId, req.KeyId); err != nil {
		return nil, err
	}
	return gin.H{"message": "key revoked"}, nil
}

type issueRequest struct {
	UserId string   `json:"userId" binding:"required"`
	ChatId int64    `json:"chatId" binding:"required"`
	Handle string   `json:"handle"`
	Scopes []string `json:"scopes" binding:"required"`
}

type issueResponse struct {
	Url       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) issueMagicLink(c *gin.Context) (interface{}, error) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	ctx := c.Request.Context()
	user, err := h.store.GetOrCreateUser(ctx, req.UserId, req.ChatId, req.Handle)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := h.cred.IssueMagicLink(ctx, user.UserId, req.Scopes)
	if err != nil {
		return nil, err
	}
	c.Status(http.StatusCreated)
	return issueResponse{
		Url:       fmt.Sprintf("%s/auth/verify?token=%s", config.GetBaseURL(), token),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

type preferencesRequest struct {
	NotifyDeploy *bool `json:"notifyDeploy" binding:"required"`
	NotifyEnv    *bool `json:"notifyEnv" binding:"required"`
}

func (h *Handler) updatePreferences(c *gin.Context) (interface{}, error) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user := authority.CurrentUser(c)
	if err := h.store.UpdateUserPreferences(c.Request.Context(), user.UserId, *req.NotifyDeploy, *req.NotifyEnv); err != nil {
		return nil, err
	}
	return gin.H{"message": "preferences updated"}, nil
}
