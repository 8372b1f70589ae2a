package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appsync "github.com/turtacn/possync/internal/application/sync"
	"github.com/turtacn/possync/pkg/logger"
)

// PostureHandler serves thin read endpoints over the synced posture data.
type PostureHandler struct {
	stores appsync.StoreOpener
	log    logger.Logger
}

// NewPostureHandler creates a new PostureHandler.
func NewPostureHandler(stores appsync.StoreOpener, log logger.Logger) *PostureHandler {
	return &PostureHandler{stores: stores, log: log.WithComponent("posture-handler")}
}

// Summary lists the active tenants with their sync freshness.
func (h *PostureHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	conn, err := h.stores.OpenAdminScoped(ctx)
	if err != nil {
		sendError(c, err)
		return
	}
	defer conn.Close(ctx)

	tenants, err := conn.ActiveTenants(ctx)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tenants": tenants,
		"count":   len(tenants),
	})
}

// Controls returns the cross-tenant control document set, the same view the
// search index is built from.
func (h *PostureHandler) Controls(c *gin.Context) {
	ctx := c.Request.Context()
	conn, err := h.stores.OpenAdminScoped(ctx)
	if err != nil {
		sendError(c, err)
		return
	}
	defer conn.Close(ctx)

	docs, err := conn.LatestControlDocuments(ctx)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"controls": docs,
		"count":    len(docs),
	})
}
