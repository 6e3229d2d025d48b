package models

// FetchResult is the unified output of a fetch, whichever tier produced it.
type FetchResult struct {
	// Content is the raw page body (HTML or other content, untouched).
	Content string `json:"content"`

	// ContentType is the response content type (e.g. "text/html").
	ContentType string `json:"content_type"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url"`

	// Method records which tier produced the result: "direct", "rendered",
	// "anti-detection", or "cached". This is the primary observability
	// signal for how much escalation a URL required.
	Method string `json:"method"`

	// StatusCode is the HTTP status of the final navigation, when known.
	StatusCode int `json:"status_code,omitempty"`

	// Screenshot is a base64-encoded PNG when one was requested.
	Screenshot string `json:"screenshot,omitempty"`

	// ElapsedMs is the time the producing tier spent, in milliseconds.
	// Zero for cached results.
	ElapsedMs int64 `json:"elapsed_ms"`
}

// FetchResponse is the JSON envelope for POST /v1/fetch.
type FetchResponse struct {
	Success bool         `json:"success"`
	Data    *FetchResult `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the payload for GET /v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	ActivePages int    `json:"active_pages"`
	MaxPages    int    `json:"max_pages"`
	Version     string `json:"version"`
}
