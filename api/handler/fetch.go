package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/orchestrate"
)

// Fetch returns the handler for POST /v1/fetch: bind, run the escalation
// flow, map the outcome to the JSON envelope.
func Fetch(o *orchestrate.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.FetchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.FetchResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		result, err := o.Fetch(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.FetchResponse{
			Success: true,
			Data:    result,
		})
	}
}

// respondError maps a FetchError to its HTTP status and writes the
// structured envelope.
func respondError(c *gin.Context, err error) {
	var fetchErr *models.FetchError
	if !errors.As(err, &fetchErr) {
		fetchErr = models.NewFetchError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(statusFor(fetchErr.Code), models.FetchResponse{
		Success: false,
		Error:   fetchErr.ToDetail(),
	})
}

// statusFor translates error codes to HTTP status codes. Blocked and
// transport failures are upstream problems, hence 502.
func statusFor(code string) int {
	switch code {
	case models.ErrCodeBlocked, models.ErrCodeTransport:
		return http.StatusBadGateway
	case models.ErrCodeCancelled:
		return http.StatusGatewayTimeout
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
