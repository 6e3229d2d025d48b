// Package orchestrate contains the escalation decision engine: given a
// fetch request it resolves a starting tier from static policy, dynamic
// recommendations, and force flags, consults the response cache, runs the
// direct tier with bounded retry and an optional race against the
// rendered tier, and climbs the ladder (direct → rendered →
// anti-detection) on block-shaped failures.
package orchestrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
	"github.com/webpeel/webpeel/tier"
)

// Orchestrator coordinates the retrieval tiers. Safe for concurrent use;
// each Fetch is an independent flow.
type Orchestrator struct {
	direct   tier.Direct
	renderer tier.Renderer
	intel    Intelligence
	cfg      config.FetchConfig
}

// New builds an Orchestrator. intel may be nil, in which case tier hints,
// caching, and racing all degrade to no-ops.
func New(direct tier.Direct, renderer tier.Renderer, intel Intelligence, cfg config.FetchConfig) *Orchestrator {
	if intel == nil {
		intel = noIntelligence{}
	}
	return &Orchestrator{
		direct:   direct,
		renderer: renderer,
		intel:    intel,
		cfg:      cfg,
	}
}

// outcome pairs a tier result with its error for channel plumbing.
type outcome struct {
	res *models.FetchResult
	err error
}

// Fetch runs the full escalation flow and returns the first tier result
// that survives classification, with its method recorded.
func (o *Orchestrator) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	req.Defaults()

	effective := o.resolveTier(req)
	eligible := cacheEligible(req, effective)

	slog.Debug("fetch starting", "url", req.URL, "tier", effective, "cacheEligible", eligible)

	if eligible {
		if res, state := o.intel.CheckCache(req.URL); state != cache.Miss {
			if state == cache.Stale {
				o.revalidate(req.URL)
			}
			cached := *res
			cached.Method = models.MethodCached
			cached.ElapsedMs = 0
			slog.Debug("cache hit", "url", req.URL, "stale", state == cache.Stale)
			return &cached, nil
		}
	}

	switch effective {
	case models.MethodRendered:
		return o.renderLadder(ctx, req, false, eligible)
	case models.MethodAntiDetection:
		return o.renderLadder(ctx, req, true, eligible)
	default:
		return o.directFirst(ctx, req, eligible)
	}
}

// resolveTier picks the starting tier: static policy wins, then a dynamic
// recommendation, then caller force flags. Screenshot, actions, and
// keep-open imply rendering but never anti-detection on their own.
func (o *Orchestrator) resolveTier(req *models.FetchRequest) string {
	if t := policyTier(req.URL); t != "" {
		return t
	}
	if rec := o.intel.Recommend(req.URL); rec != nil && rec.Tier != "" {
		return rec.Tier
	}
	if req.Stealth {
		return models.MethodAntiDetection
	}
	if req.NeedsBrowser() {
		return models.MethodRendered
	}
	return models.MethodDirect
}

// cacheEligible: only plain direct-tier fetches with no customization are
// cacheable; anything else would poison the cache for other callers.
func cacheEligible(req *models.FetchRequest, effectiveTier string) bool {
	return !req.Fresh &&
		effectiveTier == models.MethodDirect &&
		len(req.Actions) == 0 &&
		len(req.Headers) == 0 &&
		len(req.Cookies) == 0 &&
		req.WaitMs == 0 &&
		!req.Screenshot &&
		!req.KeepSessionOpen
}

// directFirst runs the direct tier with bounded retry. When racing is
// enabled and the direct fetch outlives the race timeout, the rendered
// tier starts concurrently and the first finisher wins; the loser is
// cancelled through its context.
func (o *Orchestrator) directFirst(ctx context.Context, req *models.FetchRequest, eligible bool) (*models.FetchResult, error) {
	// Race policy is evaluated exactly once, before any network activity,
	// so a mid-flight toggle cannot produce ambiguous interleavings.
	raceEnabled := o.intel.ShouldRace()
	raceTimeout := o.intel.RaceTimeout()

	directCtx, cancelDirect := context.WithCancel(ctx)
	defer cancelDirect()

	directCh := make(chan outcome, 1)
	go func() {
		res, err := o.directWithRetry(directCtx, req)
		directCh <- outcome{res, err}
	}()

	var raceTimer <-chan time.Time
	if raceEnabled && raceTimeout > 0 {
		t := time.NewTimer(raceTimeout)
		defer t.Stop()
		raceTimer = t.C
	}

	select {
	case out := <-directCh:
		return o.afterDirect(ctx, req, out, eligible)
	case <-raceTimer:
		return o.race(ctx, req, directCh, cancelDirect, eligible)
	case <-ctx.Done():
		return nil, models.NewFetchError(models.ErrCodeCancelled, "fetch cancelled", ctx.Err())
	}
}

// race starts the rendered tier against the still-pending direct fetch.
func (o *Orchestrator) race(ctx context.Context, req *models.FetchRequest, directCh chan outcome, cancelDirect context.CancelFunc, eligible bool) (*models.FetchResult, error) {
	slog.Debug("race timeout elapsed, starting rendered tier", "url", req.URL)

	renderCtx, cancelRender := context.WithCancel(ctx)
	defer cancelRender()

	renderCh := make(chan outcome, 1)
	go func() {
		res, err := o.renderOnce(renderCtx, req, false)
		renderCh <- outcome{res, err}
	}()

	var directOut *outcome
	for directCh != nil || renderCh != nil {
		select {
		case out := <-directCh:
			directCh = nil
			if models.IsCancelled(out.err) && ctx.Err() != nil {
				cancelRender()
				return nil, out.err
			}
			if out.err == nil && !isShellPage(out.res) {
				cancelRender()
				slog.Info("direct tier won race", "url", req.URL)
				return o.finish(req, out.res, eligible)
			}
			directOut = &out
		case out := <-renderCh:
			renderCh = nil
			if models.IsCancelled(out.err) && ctx.Err() != nil {
				cancelDirect()
				return nil, out.err
			}
			if out.err == nil {
				cancelDirect()
				slog.Info("rendered tier won race", "url", req.URL)
				return o.finish(req, out.res, eligible)
			}
		case <-ctx.Done():
			return nil, models.NewFetchError(models.ErrCodeCancelled, "fetch cancelled", ctx.Err())
		}
	}

	// Neither contender produced a usable page. Resolve the direct
	// outcome the normal way: escalatable failures climb the rendered
	// ladder for the final verdict, others propagate as-is.
	if directOut != nil {
		return o.afterDirect(ctx, req, *directOut, eligible)
	}
	return nil, models.NewFetchError(models.ErrCodeInternal, "race finished with no outcome", nil)
}

// afterDirect resolves a completed direct attempt: return it, escalate
// on block-shaped failure or a shell page, or propagate the error.
func (o *Orchestrator) afterDirect(ctx context.Context, req *models.FetchRequest, out outcome, eligible bool) (*models.FetchResult, error) {
	if out.err == nil {
		if isShellPage(out.res) {
			slog.Info("direct result is a shell page, escalating", "url", req.URL)
			return o.renderLadder(ctx, req, false, eligible)
		}
		return o.finish(req, out.res, eligible)
	}
	if models.IsCancelled(out.err) {
		return nil, out.err
	}
	if models.IsEscalatable(out.err) {
		slog.Info("direct tier failed, escalating", "url", req.URL, "error", out.err)
		return o.renderLadder(ctx, req, false, eligible)
	}
	return nil, out.err
}

// directWithRetry runs up to DirectRetries direct attempts, each with its
// own timeout budget. Block-shaped failures return immediately since
// repeating the identical request cannot unblock it; transport flakes
// are retried.
func (o *Orchestrator) directWithRetry(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	retries := o.cfg.DirectRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.tierTimeout(req))
		res, err := o.direct.Fetch(attemptCtx, req)
		cancel()
		if err == nil {
			return res, nil
		}
		if models.IsCancelled(err) && ctx.Err() != nil {
			return nil, err
		}
		if models.IsBlocked(err) {
			return nil, err
		}
		lastErr = err
		slog.Debug("direct attempt failed", "url", req.URL, "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

// renderLadder climbs the rendered tiers: one attempt at the requested
// level, a single stealth retry when a non-stealth attempt is blocked,
// and a single same-tier retry with extra settle time for challenge
// interstitials. Whatever the last rung returns is final.
func (o *Orchestrator) renderLadder(ctx context.Context, req *models.FetchRequest, stealthMode bool, eligible bool) (*models.FetchResult, error) {
	res, err := o.renderOnce(ctx, req, stealthMode)
	if err == nil {
		return o.finish(req, res, eligible)
	}
	if models.IsCancelled(err) {
		return nil, err
	}

	if models.IsBlocked(err) && !stealthMode {
		slog.Info("rendered tier blocked, retrying with anti-detection", "url", req.URL)
		res, err = o.renderOnce(ctx, req, true)
		if err != nil {
			return nil, err
		}
		return o.finish(req, res, eligible)
	}

	if models.IsChallengeInterstitial(err) {
		// Challenge pages sometimes clear after a longer settle; one
		// retry on the same tier with extra wait, then give up.
		slog.Info("challenge interstitial, retrying with extra wait", "url", req.URL)
		retryReq := *req
		retryReq.WaitMs += 5000
		res, err = o.renderOnce(ctx, &retryReq, stealthMode)
		if err != nil {
			return nil, err
		}
		return o.finish(req, res, eligible)
	}

	return nil, err
}

// renderOnce is a single rendered-tier call with its own timeout budget.
func (o *Orchestrator) renderOnce(ctx context.Context, req *models.FetchRequest, stealthMode bool) (*models.FetchResult, error) {
	renderCtx, cancel := context.WithTimeout(ctx, o.tierTimeout(req))
	defer cancel()
	return o.renderer.Render(renderCtx, req, stealthMode)
}

// tierTimeout is the per-tier-call budget from the request, clamped to
// the configured maximum.
func (o *Orchestrator) tierTimeout(req *models.FetchRequest) time.Duration {
	d := time.Duration(req.TimeoutMs) * time.Millisecond
	if d <= 0 {
		d = o.cfg.DefaultTimeout
	}
	if o.cfg.MaxTimeout > 0 && d > o.cfg.MaxTimeout {
		d = o.cfg.MaxTimeout
	}
	return d
}

// finish performs post-success bookkeeping: write-through to the cache
// when the request was eligible, and report the tier outcome.
func (o *Orchestrator) finish(req *models.FetchRequest, res *models.FetchResult, eligible bool) (*models.FetchResult, error) {
	if eligible {
		o.intel.SetCache(req.URL, res)
	}
	o.intel.RecordResult(req.URL, res.Method, res.ElapsedMs)
	return res, nil
}

// revalidate refreshes a stale cache entry in the background. It never
// blocks the caller; a try-lock keeps concurrent stale hits from piling
// up refreshes, and failures are swallowed so stale data keeps serving.
func (o *Orchestrator) revalidate(url string) {
	if !o.intel.MarkRevalidating(url) {
		return
	}
	go func() {
		defer o.intel.DoneRevalidating(url)

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.DefaultTimeout)
		defer cancel()

		req := &models.FetchRequest{URL: url}
		req.Defaults()
		res, err := o.direct.Fetch(ctx, req)
		if err != nil {
			slog.Warn("background revalidation failed", "url", url, "error", err)
			return
		}
		if isShellPage(res) {
			slog.Debug("background revalidation got a shell page, keeping stale entry", "url", url)
			return
		}
		o.intel.SetCache(url, res)
		slog.Debug("background revalidation refreshed entry", "url", url)
	}()
}

// noIntelligence is the nil-module fallback: no hints, no cache, no race.
type noIntelligence struct{}

func (noIntelligence) Recommend(string) *Recommendation { return nil }
func (noIntelligence) CheckCache(string) (*models.FetchResult, cache.State) {
	return nil, cache.Miss
}
func (noIntelligence) SetCache(string, *models.FetchResult) {}
func (noIntelligence) MarkRevalidating(string) bool         { return false }
func (noIntelligence) DoneRevalidating(string)              {}
func (noIntelligence) ShouldRace() bool                     { return false }
func (noIntelligence) RaceTimeout() time.Duration           { return 0 }
func (noIntelligence) RecordResult(string, string, int64)   {}
