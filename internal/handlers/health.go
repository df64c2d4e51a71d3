package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	Cache       string `json:"cache"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Root(c *gin.Context) {
	c.String(http.StatusOK, "ImageTales backend is running")
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	storeStatus := "ok"
	if h.storePing != nil {
		if err := h.storePing(ctx); err != nil {
			status = "degraded"
			storeStatus = "error"
			h.requestLog(c).Error().Err(err).Msg("store ping failed")
		}
	}

	cacheStatus := "disabled"
	if h.cachePing != nil {
		cacheStatus = "ok"
		if err := h.cachePing(ctx); err != nil {
			cacheStatus = "error"
			h.requestLog(c).Error().Err(err).Msg("redis ping failed")
		}
	}

	code := http.StatusOK
	if storeStatus != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, healthResponse{
		Status:      status,
		Store:       storeStatus,
		Cache:       cacheStatus,
		Environment: h.cfg.Environment,
	})
}
