package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Checker func(ctx context.Context) error

type HealthConfig struct {
	Name      string
	Env       string
	StartedAt time.Time
	Checks    map[string]Checker
}

type HealthHandler struct {
	cfg HealthConfig
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(cfg HealthConfig) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	allOK := true
	deps := gin.H{}
	for name, check := range h.cfg.Checks {
		status := dependencyStatus{OK: true}
		if err := check(ctx); err != nil {
			status = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
		}
		deps[name] = status
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"app":          h.cfg.Name,
		"env":          h.cfg.Env,
		"uptime_sec":   int(time.Since(h.cfg.StartedAt).Seconds()),
		"dependencies": deps,
	})
}
