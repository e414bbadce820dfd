// Package handlers contains the daemon's HTTP handlers: a read-only
// operator API, a run trigger, and a small dashboard.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"outreach-engine-go/internal/manager"
	"outreach-engine-go/internal/store"
)

// Runner triggers a pipeline run over whatever input is currently staged.
type Runner interface {
	TriggerRun(ctx context.Context) (manager.RunResult, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	db      *gorm.DB
	store   *store.Store
	manager *manager.Manager
	runner  Runner
}

// NewHandlers creates new HTTP handlers.
func NewHandlers(db *gorm.DB, s *store.Store, m *manager.Manager, r Runner) *Handlers {
	return &Handlers{db: db, store: s, manager: m, runner: r}
}

// SetupRoutes sets up all HTTP routes.
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/", h.Dashboard)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/status", h.GetStatus)
		api.GET("/queue", h.GetQueue)
		api.GET("/batches", h.GetBatches)
		api.GET("/batches/:id", h.GetBatch)
		api.GET("/blocklist", h.GetBlocklist)
		api.GET("/stats", h.GetStats)
		api.POST("/run", h.TriggerRun)
	}
}
