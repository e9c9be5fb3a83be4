/*
 * Copyright (C) 2025-2026, Wrytes, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package health_handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/wrytes/deployment-system/pkg/config"
)

const (
	statusOk   = "ok"
	statusFail = "fail"
)

// Store is the slice of the database client the health probe uses.
type Store interface {
	Ping(ctx context.Context) error
}

// Handler answers liveness probes. Any failing indicator turns the whole
// response into a 503 so an external supervisor can restart the process.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

type indicator struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type healthResponse struct {
	Status     string               `json:"status"`
	Indicators map[string]indicator `json:"indicators"`
}

// Health runs every indicator and reports per-indicator results.
// GET /health
func (h *Handler) Health(c *gin.Context) {
	response := healthResponse{
		Status: statusOk,
		Indicators: map[string]indicator{
			"database": h.checkDatabase(c.Request.Context()),
			"memory":   checkMemory(),
			"disk":     checkDisk(),
		},
	}
	code := http.StatusOK
	for name, ind := range response.Indicators {
		if ind.Status != statusOk {
			response.Status = statusFail
			code = http.StatusServiceUnavailable
			klog.ErrorS(nil, "health indicator failing", "indicator", name, "detail", ind.Detail)
		}
	}
	c.JSON(code, response)
}

func (h *Handler) checkDatabase(ctx context.Context) indicator {
	if err := h.store.Ping(ctx); err != nil {
		return indicator{Status: statusFail, Detail: err.Error()}
	}
	return indicator{Status: statusOk}
}

func checkMemory() indicator {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	usedMiB := int(stats.Sys / (1 << 20))
	maxMiB := config.GetHealthMaxRssMiB()
	if usedMiB > maxMiB {
		return indicator{
			Status: statusFail,
			Detail: fmt.Sprintf("resident memory %d MiB exceeds limit %d MiB", usedMiB, maxMiB),
		}
	}
	return indicator{Status: statusOk}
}

func checkDisk() indicator {
	var fs syscall.Statfs_t
	path := config.GetHealthDiskPath()
	if err := syscall.Statfs(path, &fs); err != nil {
		return indicator{Status: statusFail, Detail: err.Error()}
	}
	if fs.Blocks == 0 {
		return indicator{Status: statusFail, Detail: "filesystem reports zero capacity"}
	}
	freePercent := int(fs.Bavail * 100 / fs.Blocks)
	if freePercent < config.GetHealthMinDiskFreePercent() {
		return indicator{
			Status: statusFail,
			Detail: fmt.Sprintf("only %d%% free at %s", freePercent, path),
		}
	}
	return indicator{Status: statusOk}
}
