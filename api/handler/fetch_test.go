package handler

import (
	"net/http"
	"testing"

	"github.com/webpeel/webpeel/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeBlocked, http.StatusBadGateway},
		{models.ErrCodeTransport, http.StatusBadGateway},
		{models.ErrCodeCancelled, http.StatusGatewayTimeout},
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeUnauthorized, http.StatusUnauthorized},
		{models.ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := statusFor(tt.code); got != tt.want {
				t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
