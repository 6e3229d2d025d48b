// Package tier implements the fetch escalation ladder: a direct HTTP
// client with a Chrome TLS fingerprint, a headless-browser renderer, and
// the renderer's anti-detection mode. The orchestrator decides which
// tier handles a request; tiers only know how to fetch.
package tier

import (
	"context"

	"github.com/webpeel/webpeel/models"
)

// Direct fetches over plain HTTP without a browser.
type Direct interface {
	Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error)
}

// Renderer fetches through a headless browser. With stealth enabled it
// layers fingerprint evasion and humanized input on top of rendering.
type Renderer interface {
	Render(ctx context.Context, req *models.FetchRequest, stealth bool) (*models.FetchResult, error)
	Close() error
}
