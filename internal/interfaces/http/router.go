// Package http wires the service's HTTP surface: health probes, metrics,
// the sync trigger and thin posture reads.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/internal/interfaces/http/handlers"
	"github.com/turtacn/possync/pkg/logger"
)

// Router HTTP 路由器
type Router struct {
	engine         *gin.Engine
	config         *config.Config
	logger         logger.Logger
	healthHandler  *handlers.HealthHandler
	syncHandler    *handlers.SyncHandler
	postureHandler *handlers.PostureHandler
	server         *http.Server
}

// NewRouter 创建路由器
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	healthHandler *handlers.HealthHandler,
	syncHandler *handlers.SyncHandler,
	postureHandler *handlers.PostureHandler,
) *Router {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Router{
		engine:         gin.New(),
		config:         cfg,
		logger:         log,
		healthHandler:  healthHandler,
		syncHandler:    syncHandler,
		postureHandler: postureHandler,
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes() {
	r.engine.Use(handlers.RecoveryMiddleware(r.logger))
	r.engine.Use(handlers.RequestIDMiddleware())
	r.engine.Use(handlers.LoggingMiddleware(r.logger))
	r.engine.Use(handlers.CORSMiddleware())

	r.engine.GET("/health", r.healthHandler.HealthCheck)
	r.engine.GET("/live", r.healthHandler.LivenessCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/sync", r.syncHandler.Trigger)
		v1.GET("/sync/status", r.syncHandler.Status)

		posture := v1.Group("/posture")
		{
			posture.GET("/summary", r.postureHandler.Summary)
			posture.GET("/controls", r.postureHandler.Controls)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "the requested resource was not found",
			},
		})
	})
}

// Start 启动 HTTP 服务器并阻塞直到其关闭
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:         addr,
		Handler:      r.engine,
		ReadTimeout:  time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(r.config.Server.WriteTimeout) * time.Second,
	}

	r.logger.Info(context.Background(), "starting HTTP server", logger.String("address", addr))
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "stopping HTTP server")
	return r.server.Shutdown(ctx)
}
