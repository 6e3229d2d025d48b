package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes used in API responses and internal error handling.
const (
	// ErrCodeBlocked marks an explicit anti-bot signal: a 403/429 style
	// status, a CAPTCHA or challenge marker, or a shell-page heuristic hit.
	ErrCodeBlocked = "BLOCKED"

	// ErrCodeTransport marks a connection, DNS, or TLS level failure.
	ErrCodeTransport = "TRANSPORT"

	// ErrCodeCancelled marks a caller-initiated abort or deadline expiry.
	ErrCodeCancelled = "CANCELLED"

	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FetchError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type FetchError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(code, message string, err error) *FetchError {
	return &FetchError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *FetchError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// Classify maps an arbitrary error to one of the failure categories.
// Context cancellation and deadline expiry always win, whatever a tier
// wrapped them in, because a cancelled operation must never be retried,
// escalated, or cached.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeCancelled
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ErrCodeInternal
}

// IsBlocked reports whether err carries an explicit anti-bot signal.
func IsBlocked(err error) bool {
	return Classify(err) == ErrCodeBlocked
}

// IsCancelled reports whether err is a caller abort or deadline expiry.
func IsCancelled(err error) bool {
	return Classify(err) == ErrCodeCancelled
}

// IsEscalatable reports whether the failure is one that switching to a
// heavier tier can plausibly fix: an explicit block, or a transport failure
// whose message points at TLS (fingerprint rejection looks like a handshake
// failure from the outside).
func IsEscalatable(err error) bool {
	switch Classify(err) {
	case ErrCodeBlocked:
		return true
	case ErrCodeTransport:
		msg := strings.ToLower(err.Error())
		return strings.Contains(msg, "tls") || strings.Contains(msg, "ssl")
	}
	return false
}

// IsChallengeInterstitial reports whether a failure looks like a
// Cloudflare-style challenge page: a transport or blocked error whose
// message names the vendor. These sometimes clear after a longer wait on
// the same tier.
func IsChallengeInterstitial(err error) bool {
	if err == nil {
		return false
	}
	switch Classify(err) {
	case ErrCodeTransport, ErrCodeBlocked:
		return strings.Contains(strings.ToLower(err.Error()), "cloudflare")
	}
	return false
}

// captchaMarkers are body substrings that identify a challenge page even
// when it arrives with a 200 status.
var captchaMarkers = []string{
	"captcha",
	"cf-challenge",
	"cf-turnstile",
	"just a moment",
	"attention required",
	"are you a robot",
	"unusual traffic",
	"perimeterx",
	"_px3",
	"datadome",
}

// LooksBlocked inspects a status code and body snippet for anti-bot signals.
func LooksBlocked(statusCode int, body string) bool {
	if statusCode == 403 || statusCode == 429 || statusCode == 503 {
		return true
	}
	lower := strings.ToLower(body)
	if len(lower) > 4096 {
		lower = lower[:4096]
	}
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
