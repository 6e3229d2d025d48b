package tier

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/humanize"
	"github.com/webpeel/webpeel/models"
)

// Browser is the rendered tier: a shared headless Chrome with a reusable
// page pool. With stealth enabled it additionally injects fingerprint
// evasion JS before navigation and routes page input through the human
// simulator. Safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	humanCfg    humanize.Config
	activePages atomic.Int32
}

// NewBrowser launches headless Chrome and initialises the page pool.
func NewBrowser(cfg config.BrowserConfig, humanCfg humanize.Config) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// Flags that strip the automation tells Chrome sets by default.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeInternal, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewFetchError(models.ErrCodeInternal, "failed to connect to browser", err)
	}

	pool := rod.NewPagePool(cfg.MaxPages)
	slog.Info("page pool created", "maxPages", cfg.MaxPages)

	return &Browser{
		browser:  browser,
		pagePool: pool,
		cfg:      cfg,
		humanCfg: humanCfg,
	}, nil
}

// ActivePages reports how many pool pages are currently checked out.
func (b *Browser) ActivePages() int {
	return int(b.activePages.Load())
}

// Close drains the page pool and kills the browser process. Call on
// graceful shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() error {
	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	return b.browser.Close()
}

// Render loads the URL in a pooled page and returns the rendered HTML.
//
// Lifecycle order matters:
//   - Stealth JS and the hijack router must be installed BEFORE Navigate;
//     they only affect navigations that happen after them.
//   - Cleanup navigates the ORIGINAL page reference (without the request
//     context) to about:blank, so pool return succeeds even when the
//     request context has already expired.
func (b *Browser) Render(ctx context.Context, req *models.FetchRequest, stealthMode bool) (*models.FetchResult, error) {
	start := time.Now()

	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeInternal, "failed to acquire page from pool", err)
	}

	defer func() {
		if req.KeepSessionOpen {
			// The caller wants the session's cookies and storage to
			// survive for a follow-up fetch; skip the blank-out but
			// still return the page so the pool slot frees up.
			b.pagePool.Put(page)
			return
		}
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	if stealthMode {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	b.applyHeaders(page, req)
	b.applyCookies(page, req)

	router := setupHijack(page, b.cfg.BlockedResourceTypes)
	defer func() { _ = router.Stop() }()

	p := page.Context(ctx)

	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorizeNavError(navErr)
	}

	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}
	if req.WaitMs > 0 {
		select {
		case <-time.After(time.Duration(req.WaitMs) * time.Millisecond):
		case <-ctx.Done():
			return nil, models.NewFetchError(models.ErrCodeCancelled, "wait interrupted", ctx.Err())
		}
	}

	// Status code via the performance API; CDP response listeners
	// conflict with the Fetch domain the hijack router uses.
	statusCode := 0
	if res, evalErr := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}

	human := humanize.New(humanize.NewRodExecutor(page), b.humanCfg)

	if stealthMode && len(req.Actions) == 0 {
		// A page that loads and is immediately read is itself a tell.
		// Linger briefly the way a person skimming would.
		if scrollErr := human.Scroll(ctx, "down", 500, 1500*time.Millisecond); scrollErr != nil && models.IsCancelled(scrollErr) {
			return nil, scrollErr
		}
	}

	if len(req.Actions) > 0 {
		if actErr := executeActions(ctx, page, human, req.Actions, stealthMode); actErr != nil {
			return nil, actErr
		}
	}

	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, categorizeNavError(htmlErr)
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	if models.LooksBlocked(statusCode, rawHTML) {
		return nil, models.NewFetchError(models.ErrCodeBlocked,
			"rendered page is block-shaped", nil)
	}

	method := models.MethodRendered
	if stealthMode {
		method = models.MethodAntiDetection
	}

	result := &models.FetchResult{
		Content:     rawHTML,
		ContentType: "text/html",
		FinalURL:    finalURL,
		Method:      method,
		StatusCode:  statusCode,
		ElapsedMs:   time.Since(start).Milliseconds(),
	}

	if req.Screenshot {
		shot, shotErr := captureScreenshot(p, req.FullPage)
		if shotErr != nil {
			slog.Warn("screenshot capture failed", "url", req.URL, "error", shotErr)
		} else {
			result.Screenshot = shot
		}
	}

	return result, nil
}

// applyHeaders installs extra headers, adding a Google search referer
// when the caller didn't set one.
func (b *Browser) applyHeaders(page *rod.Page, req *models.FetchRequest) {
	extra := make(map[string]string, len(req.Headers)+2)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, err := url.Parse(req.URL); err == nil {
			extra["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	if req.Locale != "" {
		extra["Accept-Language"] = acceptLanguage(req.Locale)
	}
	for k, v := range req.Headers {
		extra[k] = v
	}
	if len(extra) == 0 {
		return
	}
	m := make(proto.NetworkHeaders, len(extra))
	for k, v := range extra {
		m[k] = gson.New(v)
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: m}.Call(page)
}

func (b *Browser) applyCookies(page *rod.Page, req *models.FetchRequest) {
	for _, cookie := range req.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, err := url.Parse(req.URL); err == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}
}

// captureScreenshot returns a base64 PNG of the viewport, or of the full
// scroll height when fullPage is set.
func captureScreenshot(p *rod.Page, fullPage bool) (string, error) {
	data, err := p.Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing errors. Used for optional metadata only.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeNavError wraps raw rod errors into typed FetchErrors so the
// orchestrator can decide whether to escalate.
func categorizeNavError(err error) *models.FetchError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewFetchError(models.ErrCodeCancelled, "render deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return models.NewFetchError(models.ErrCodeCancelled, "render cancelled", err)
	default:
		return models.NewFetchError(models.ErrCodeTransport, "navigation failed", err)
	}
}
