/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package authority

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	commonerrors "github.com/wrytes/deployment-system/pkg/errors"
	"github.com/wrytes/deployment-system/pkg/utils"
)

// Throttle is a per-credential token bucket. Two keys of the same user are
// limited independently.
type Throttle struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle allows limit requests per window per credential, with bursts up
// to the full budget.
func NewThrottle(limit int, window time.Duration) *Throttle {
	return &Throttle{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
}

// Middleware rejects requests over the credential's budget with 429. It must
// run after Authorize.
func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CurrentKey(c)
		if key == nil {
			utils.AbortWithApiError(c, commonerrors.NewApiKeyInvalid())
			return
		}
		if !t.Allow(key.KeyId) {
			utils.AbortWithApiError(c, commonerrors.NewTooManyRequests(
				fmt.Sprintf("limit of %d requests per %s exceeded", t.limit, t.window)))
			return
		}
		c.Next()
	}
}

// Allow consumes one token from the credential's bucket.
func (t *Throttle) Allow(keyId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	b, ok := t.buckets[keyId]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(t.window/time.Duration(t.limit)), t.limit)}
		t.buckets[keyId] = b
	}
	b.lastSeen = now
	if len(t.buckets) > 4096 {
		t.pruneLocked(now)
	}
	return b.limiter.Allow()
}

// pruneLocked drops buckets idle for ten windows.
func (t *Throttle) pruneLocked(now time.Time) {
	cutoff := now.Add(-10 * t.window)
	for keyId, b := range t.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(t.buckets, keyId)
		}
	}
}
