package handlers

import (
	"context"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/gin-gonic/gin"

	appsync "github.com/turtacn/possync/internal/application/sync"
	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/logger"
)

// SyncHandler exposes the orchestration run over HTTP. Runs execute in the
// background; the trigger returns immediately and concurrent triggers are
// rejected while a run is in flight.
type SyncHandler struct {
	orchestrator *appsync.Orchestrator
	log          logger.Logger

	mu         stdsync.Mutex
	lastReport *models.RunReport
	lastError  string
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(orchestrator *appsync.Orchestrator, log logger.Logger) *SyncHandler {
	return &SyncHandler{orchestrator: orchestrator, log: log.WithComponent("sync-handler")}
}

// Trigger starts a sync run in the background. Responds 202 when the run
// was started and 409 when one is already executing.
func (h *SyncHandler) Trigger(c *gin.Context) {
	if h.orchestrator.InFlight() {
		c.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "a sync run is already in progress",
			},
		})
		return
	}

	go func() {
		// Detached from the request: the run outlives the HTTP call.
		report, err := h.orchestrator.Run(context.Background())
		h.mu.Lock()
		defer h.mu.Unlock()
		h.lastReport = &report
		h.lastError = ""
		if err != nil {
			h.lastError = err.Error()
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "started",
		"started_at": time.Now().UTC(),
	})
}

// Status reports whether a run is executing and the outcome of the last one.
func (h *SyncHandler) Status(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	resp := gin.H{"in_flight": h.orchestrator.InFlight()}
	if h.lastReport != nil {
		resp["last_run"] = h.lastReport
	}
	if h.lastError != "" {
		resp["last_error"] = h.lastError
	}
	c.JSON(http.StatusOK, resp)
}

// RunNow executes a run synchronously; used by the built-in scheduler.
func (h *SyncHandler) RunNow(ctx context.Context) {
	report, err := h.orchestrator.Run(ctx)
	h.mu.Lock()
	h.lastReport = &report
	h.lastError = ""
	if err != nil {
		h.lastError = err.Error()
	}
	h.mu.Unlock()
	if err != nil {
		h.log.Error(ctx, "scheduled sync run failed", err)
	}
}
