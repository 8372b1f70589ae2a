package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/possync/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/possync/pkg/logger"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store *postgres.Store
	log   logger.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store *postgres.Store, log logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, log: log}
}

// HealthCheck reports the service's health and that of its database.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	checks := map[string]string{"database": "ok"}
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.store.Ping(c.Request.Context()); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// LivenessCheck reports that the process is up.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
