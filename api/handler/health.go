package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/tier"
)

// Health returns the handler for GET /v1/health. Status degrades when
// more than 80% of browser pages are checked out.
func Health(browser *tier.Browser, maxPages int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		active := 0
		if browser != nil {
			active = browser.ActivePages()
		}

		status := "healthy"
		if maxPages > 0 && active > int(float64(maxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      status,
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			ActivePages: active,
			MaxPages:    maxPages,
			Version:     "0.1.0",
		})
	}
}
