package orchestrate

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/config"
	"github.com/webpeel/webpeel/models"
)

// fakeDirect scripts the direct tier: each call pops the next response.
type fakeDirect struct {
	mu    sync.Mutex
	calls int
	queue []outcome
	delay time.Duration
	// lastCtx records the context of the most recent call so tests can
	// check loser cancellation.
	lastCtx context.Context
}

func (f *fakeDirect) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	f.mu.Lock()
	f.calls++
	f.lastCtx = ctx
	var out outcome
	if len(f.queue) > 0 {
		out = f.queue[0]
		f.queue = f.queue[1:]
	} else {
		out = outcome{res: &models.FetchResult{Content: strings.Repeat("direct page text ", 50), ContentType: "text/html", Method: models.MethodDirect, StatusCode: 200}}
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, models.NewFetchError(models.ErrCodeCancelled, "cancelled", ctx.Err())
		}
	}
	return out.res, out.err
}

func (f *fakeDirect) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRenderer records per-mode calls and the WaitMs of each request.
type fakeRenderer struct {
	mu           sync.Mutex
	queue        []outcome
	plainCalls   int
	stealthCalls int
	waits        []int
	delay        time.Duration
}

func (f *fakeRenderer) Render(ctx context.Context, req *models.FetchRequest, stealth bool) (*models.FetchResult, error) {
	f.mu.Lock()
	if stealth {
		f.stealthCalls++
	} else {
		f.plainCalls++
	}
	f.waits = append(f.waits, req.WaitMs)
	var out outcome
	if len(f.queue) > 0 {
		out = f.queue[0]
		f.queue = f.queue[1:]
	} else {
		method := models.MethodRendered
		if stealth {
			method = models.MethodAntiDetection
		}
		out = outcome{res: &models.FetchResult{Content: strings.Repeat("rendered page text ", 50), ContentType: "text/html", Method: method, StatusCode: 200}}
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, models.NewFetchError(models.ErrCodeCancelled, "cancelled", ctx.Err())
		}
	}
	if out.err == nil && out.res.Method == "" {
		out.res.Method = models.MethodRendered
	}
	return out.res, out.err
}

func (f *fakeRenderer) Close() error { return nil }

func (f *fakeRenderer) counts() (plain, stealth int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plainCalls, f.stealthCalls
}

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		DefaultTimeout: 5 * time.Second,
		MaxTimeout:     10 * time.Second,
		DirectRetries:  3,
		RaceTimeout:    50 * time.Millisecond,
	}
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := cache.New(100, time.Minute, time.Hour)
	t.Cleanup(c.Stop)
	return c
}

func blockedErr() error {
	return models.NewFetchError(models.ErrCodeBlocked, "block-shaped response: HTTP 403", nil)
}

func TestDirectSuccess(t *testing.T) {
	direct := &fakeDirect{}
	renderer := &fakeRenderer{}
	intel := NewLocalIntelligence(newTestCache(t), false, 0)
	o := New(direct, renderer, intel, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodDirect {
		t.Errorf("method = %q, want direct", res.Method)
	}
	if plain, stealth := renderer.counts(); plain != 0 || stealth != 0 {
		t.Errorf("renderer called %d/%d times, want 0/0", plain, stealth)
	}
}

func TestSecondFetchServedFromCache(t *testing.T) {
	direct := &fakeDirect{}
	intel := NewLocalIntelligence(newTestCache(t), false, 0)
	o := New(direct, &fakeRenderer{}, intel, testConfig())
	ctx := context.Background()
	req := func() *models.FetchRequest { return &models.FetchRequest{URL: "https://example.com/a"} }

	if _, err := o.Fetch(ctx, req()); err != nil {
		t.Fatal(err)
	}
	res, err := o.Fetch(ctx, req())
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodCached {
		t.Errorf("second fetch method = %q, want cached", res.Method)
	}
	if direct.callCount() != 1 {
		t.Errorf("direct called %d times, want 1", direct.callCount())
	}
}

func TestFreshBypassesCache(t *testing.T) {
	direct := &fakeDirect{}
	intel := NewLocalIntelligence(newTestCache(t), false, 0)
	o := New(direct, &fakeRenderer{}, intel, testConfig())
	ctx := context.Background()

	if _, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"}); err != nil {
		t.Fatal(err)
	}
	res, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a", Fresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodDirect {
		t.Errorf("fresh fetch method = %q, want direct", res.Method)
	}
	if direct.callCount() != 2 {
		t.Errorf("direct called %d times, want 2", direct.callCount())
	}
}

func TestCustomHeadersNotCached(t *testing.T) {
	direct := &fakeDirect{}
	intel := NewLocalIntelligence(newTestCache(t), false, 0)
	o := New(direct, &fakeRenderer{}, intel, testConfig())
	ctx := context.Background()
	headers := map[string]string{"X-Custom": "1"}

	if _, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a", Headers: headers}); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a", Headers: headers}); err != nil {
		t.Fatal(err)
	}
	if direct.callCount() != 2 {
		t.Errorf("direct called %d times, want 2 (headers disable caching)", direct.callCount())
	}
}

func TestBlockedDirectEscalates(t *testing.T) {
	direct := &fakeDirect{queue: []outcome{{err: blockedErr()}}}
	renderer := &fakeRenderer{}
	o := New(direct, renderer, nil, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodRendered {
		t.Errorf("method = %q, want rendered", res.Method)
	}
	// A blocked direct response must not be retried on the same tier.
	if direct.callCount() != 1 {
		t.Errorf("direct called %d times, want 1", direct.callCount())
	}
}

func TestTLSTransportErrorEscalates(t *testing.T) {
	tlsErr := models.NewFetchError(models.ErrCodeTransport, "request failed: tls handshake failure", nil)
	direct := &fakeDirect{queue: []outcome{{err: tlsErr}, {err: tlsErr}, {err: tlsErr}}}
	renderer := &fakeRenderer{}
	o := New(direct, renderer, nil, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodRendered {
		t.Errorf("method = %q, want rendered", res.Method)
	}
	// Transport errors are retried before escalation.
	if direct.callCount() != 3 {
		t.Errorf("direct called %d times, want 3", direct.callCount())
	}
}

func TestPlainTransportErrorPropagates(t *testing.T) {
	connErr := models.NewFetchError(models.ErrCodeTransport, "request failed: connection refused", nil)
	direct := &fakeDirect{queue: []outcome{{err: connErr}, {err: connErr}, {err: connErr}}}
	renderer := &fakeRenderer{}
	o := New(direct, renderer, nil, testConfig())

	_, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a"})
	if err == nil {
		t.Fatal("expected error")
	}
	if models.Classify(err) != models.ErrCodeTransport {
		t.Errorf("classified %q, want TRANSPORT", models.Classify(err))
	}
	if plain, stealth := renderer.counts(); plain != 0 || stealth != 0 {
		t.Error("non-TLS transport error must not escalate")
	}
}

func TestShellPageEscalates(t *testing.T) {
	shell := &models.FetchResult{
		Content:     `<html><head><script src="/app.js"></script></head><body><div id="root"></div>` + strings.Repeat("<script>var x=1;</script>", 60) + `</body></html>`,
		ContentType: "text/html",
		Method:      models.MethodDirect,
		StatusCode:  200,
	}
	direct := &fakeDirect{queue: []outcome{{res: shell}}}
	renderer := &fakeRenderer{}
	o := New(direct, renderer, nil, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/spa"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodRendered {
		t.Errorf("method = %q, want rendered (shell page escalation)", res.Method)
	}
}

func TestRenderedBlockedRetriesWithStealth(t *testing.T) {
	direct := &fakeDirect{queue: []outcome{{err: blockedErr()}}}
	renderer := &fakeRenderer{queue: []outcome{
		{err: blockedErr()},
		{res: &models.FetchResult{Content: strings.Repeat("stealth page text ", 60), ContentType: "text/html", Method: models.MethodAntiDetection, StatusCode: 200}},
	}}
	o := New(direct, renderer, nil, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodAntiDetection {
		t.Errorf("method = %q, want anti-detection", res.Method)
	}
	plain, stealth := renderer.counts()
	if plain != 1 || stealth != 1 {
		t.Errorf("renderer calls plain=%d stealth=%d, want 1/1", plain, stealth)
	}
}

func TestStealthFailureIsFinal(t *testing.T) {
	direct := &fakeDirect{queue: []outcome{{err: blockedErr()}}}
	renderer := &fakeRenderer{queue: []outcome{
		{err: blockedErr()},
		{err: blockedErr()},
	}}
	o := New(direct, renderer, nil, testConfig())

	_, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a"})
	if err == nil {
		t.Fatal("expected final error")
	}
	plain, stealth := renderer.counts()
	if plain != 1 || stealth != 1 {
		t.Errorf("renderer calls plain=%d stealth=%d, want 1/1 (stealth outcome is final)", plain, stealth)
	}
	if !models.IsBlocked(err) {
		t.Errorf("final error classified %q, want BLOCKED (from last tier)", models.Classify(err))
	}
}

func TestCloudflareInterstitialRetriesWithExtraWait(t *testing.T) {
	cfErr := models.NewFetchError(models.ErrCodeTransport, "navigation failed: cloudflare challenge loop", nil)
	renderer := &fakeRenderer{queue: []outcome{
		{err: cfErr},
		{res: &models.FetchResult{Content: strings.Repeat("after challenge text ", 60), ContentType: "text/html", Method: models.MethodRendered, StatusCode: 200}},
	}}
	o := New(&fakeDirect{}, renderer, nil, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a", Render: true, WaitMs: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodRendered {
		t.Errorf("method = %q, want rendered", res.Method)
	}

	renderer.mu.Lock()
	waits := append([]int(nil), renderer.waits...)
	renderer.mu.Unlock()
	if len(waits) != 2 {
		t.Fatalf("%d rendered attempts, want 2", len(waits))
	}
	if waits[1] != waits[0]+5000 {
		t.Errorf("retry wait = %dms after %dms, want +5000ms", waits[1], waits[0])
	}
}

func TestTwoCloudflareFailuresPropagate(t *testing.T) {
	cfErr := models.NewFetchError(models.ErrCodeTransport, "navigation failed: cloudflare challenge loop", nil)
	renderer := &fakeRenderer{queue: []outcome{{err: cfErr}, {err: cfErr}}}
	o := New(&fakeDirect{}, renderer, nil, testConfig())

	_, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a", Render: true})
	if err == nil {
		t.Fatal("expected error after two challenge failures")
	}
	plain, _ := renderer.counts()
	if plain != 2 {
		t.Errorf("rendered called %d times, want exactly 2", plain)
	}
}

func TestForcedAntiDetectionSkipsOtherTiers(t *testing.T) {
	direct := &fakeDirect{}
	renderer := &fakeRenderer{}
	o := New(direct, renderer, nil, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://www.linkedin.com/jobs/view/123"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodAntiDetection {
		t.Errorf("method = %q, want anti-detection", res.Method)
	}
	if direct.callCount() != 0 {
		t.Error("direct tier must be skipped for always-anti-detection domains")
	}
	plain, stealth := renderer.counts()
	if plain != 0 || stealth != 1 {
		t.Errorf("renderer calls plain=%d stealth=%d, want 0/1", plain, stealth)
	}
}

func TestScreenshotImpliesRendered(t *testing.T) {
	direct := &fakeDirect{}
	renderer := &fakeRenderer{}
	o := New(direct, renderer, nil, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a", Screenshot: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodRendered {
		t.Errorf("method = %q, want rendered", res.Method)
	}
	if direct.callCount() != 0 {
		t.Error("screenshot request must not hit the direct tier")
	}
}

func TestCancellationPropagatesWithoutEscalation(t *testing.T) {
	direct := &fakeDirect{delay: time.Second}
	renderer := &fakeRenderer{}
	intel := NewLocalIntelligence(newTestCache(t), false, 0)
	o := New(direct, renderer, intel, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"})
	if !models.IsCancelled(err) {
		t.Fatalf("error classified %q, want CANCELLED", models.Classify(err))
	}
	if plain, stealth := renderer.counts(); plain != 0 || stealth != 0 {
		t.Error("cancellation must never escalate")
	}
	// And must never cache.
	if res, state := intel.CheckCache("https://example.com/a"); state != cache.Miss {
		t.Errorf("cancelled fetch cached %+v", res)
	}
}

func TestRaceRenderedWinsSlowDirect(t *testing.T) {
	direct := &fakeDirect{delay: 2 * time.Second}
	renderer := &fakeRenderer{}
	intel := NewLocalIntelligence(newTestCache(t), true, 30*time.Millisecond)
	o := New(direct, renderer, intel, testConfig())

	start := time.Now()
	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/slow"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodRendered {
		t.Errorf("method = %q, want rendered (race winner)", res.Method)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("race took %v, direct's 2s delay leaked into the caller", elapsed)
	}

	// The losing direct attempt must have been cancelled.
	direct.mu.Lock()
	loserCtx := direct.lastCtx
	direct.mu.Unlock()
	select {
	case <-loserCtx.Done():
	case <-time.After(time.Second):
		t.Error("losing direct attempt was not cancelled")
	}
}

func TestRaceDisabledWaitsForDirect(t *testing.T) {
	direct := &fakeDirect{delay: 100 * time.Millisecond}
	renderer := &fakeRenderer{}
	intel := NewLocalIntelligence(newTestCache(t), false, 30*time.Millisecond)
	o := New(direct, renderer, intel, testConfig())

	res, err := o.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodDirect {
		t.Errorf("method = %q, want direct", res.Method)
	}
	if plain, stealth := renderer.counts(); plain != 0 || stealth != 0 {
		t.Error("renderer must not start when racing is disabled")
	}
}

func TestStaleHitServesAndRevalidates(t *testing.T) {
	c := cache.New(100, 10*time.Millisecond, time.Hour)
	t.Cleanup(c.Stop)
	intel := NewLocalIntelligence(c, false, 0)
	direct := &fakeDirect{}
	o := New(direct, &fakeRenderer{}, intel, testConfig())
	ctx := context.Background()

	if _, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond) // entry goes stale

	res, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodCached {
		t.Fatalf("stale hit method = %q, want cached", res.Method)
	}

	// The background refresh should land shortly.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if direct.callCount() == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("direct called %d times, want 2 (initial + background refresh)", direct.callCount())
}

func TestRevalidationSwallowsErrors(t *testing.T) {
	c := cache.New(100, 10*time.Millisecond, time.Hour)
	t.Cleanup(c.Stop)
	intel := NewLocalIntelligence(c, false, 0)
	direct := &fakeDirect{queue: []outcome{
		{res: &models.FetchResult{Content: strings.Repeat("original text ", 60), ContentType: "text/html", Method: models.MethodDirect, StatusCode: 200}},
		{err: models.NewFetchError(models.ErrCodeTransport, "refresh failed", nil)},
	}}
	o := New(direct, &fakeRenderer{}, intel, testConfig())
	ctx := context.Background()

	if _, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	res, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Method != models.MethodCached {
		t.Fatalf("stale hit method = %q, want cached", res.Method)
	}

	// Even after the failed refresh, the stale entry keeps serving.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && direct.callCount() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	res2, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Method != models.MethodCached {
		t.Errorf("post-failed-refresh method = %q, want cached", res2.Method)
	}
}

func TestRecordResultReported(t *testing.T) {
	rec := &recordingIntel{Intelligence: NewLocalIntelligence(newTestCache(t), false, 0)}
	o := New(&fakeDirect{}, &fakeRenderer{}, rec, testConfig())
	ctx := context.Background()

	if _, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"}); err != nil {
		t.Fatal(err)
	}
	if got := rec.records.Load(); got != 1 {
		t.Fatalf("RecordResult called %d times, want 1", got)
	}

	// Cached hits are not reported.
	if _, err := o.Fetch(ctx, &models.FetchRequest{URL: "https://example.com/a"}); err != nil {
		t.Fatal(err)
	}
	if got := rec.records.Load(); got != 1 {
		t.Errorf("RecordResult called %d times after cached hit, want still 1", got)
	}
}

type recordingIntel struct {
	Intelligence
	records atomic.Int64
}

func (r *recordingIntel) RecordResult(url, method string, elapsedMs int64) {
	r.records.Add(1)
}
