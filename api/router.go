package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/api/handler"
	"github.com/webpeel/webpeel/api/middleware"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/orchestrate"
	"github.com/webpeel/webpeel/tier"
)

// NewRouter creates a configured gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if keys configured) → RateLimit
//
// Health is intentionally outside auth so monitoring probes always work.
func NewRouter(o *orchestrate.Orchestrator, browser *tier.Browser, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/v1")

	v1.GET("/health", handler.Health(browser, cfg.Browser.MaxPages, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/fetch", handler.Fetch(o))

	return r
}
