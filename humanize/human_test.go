package humanize

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

// fakeExecutor records every call without touching a browser. Sleeps
// return immediately so tests run fast.
type fakeExecutor struct {
	moves    []Point
	clicks   []Point
	scrolls  []float64
	buffer   []rune
	focused  string
	selected map[string]string

	boxes   map[string]Box
	visible map[string]bool
	// visibleAfter makes a selector become visible after N visibility
	// checks, to exercise scroll-until-visible.
	visibleAfter map[string]int
	checks       map[string]int

	links     []string
	navigated []string
	backs     int
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		boxes:        map[string]Box{},
		visible:      map[string]bool{},
		visibleAfter: map[string]int{},
		checks:       map[string]int{},
		selected:     map[string]string{},
	}
}

func (f *fakeExecutor) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func (f *fakeExecutor) MoveMouse(ctx context.Context, x, y float64) error {
	f.moves = append(f.moves, Point{X: x, Y: y})
	return nil
}

func (f *fakeExecutor) ClickMouse(ctx context.Context, x, y float64, clicks int) error {
	for i := 0; i < clicks; i++ {
		f.clicks = append(f.clicks, Point{X: x, Y: y})
	}
	return nil
}

func (f *fakeExecutor) ScrollBy(ctx context.Context, dx, dy float64) error {
	f.scrolls = append(f.scrolls, dy)
	return nil
}

func (f *fakeExecutor) SendText(ctx context.Context, text string) error {
	f.buffer = append(f.buffer, []rune(text)...)
	return nil
}

func (f *fakeExecutor) PressBackspace(ctx context.Context) error {
	if len(f.buffer) > 0 {
		f.buffer = f.buffer[:len(f.buffer)-1]
	}
	return nil
}

func (f *fakeExecutor) Focus(ctx context.Context, selector string) error {
	f.focused = selector
	return nil
}

func (f *fakeExecutor) ElementBox(ctx context.Context, selector string) (*Box, error) {
	box, ok := f.boxes[selector]
	if !ok {
		return nil, fmt.Errorf("no element %q", selector)
	}
	return &box, nil
}

func (f *fakeExecutor) ElementVisible(ctx context.Context, selector string) (bool, error) {
	f.checks[selector]++
	if after, ok := f.visibleAfter[selector]; ok {
		return f.checks[selector] > after, nil
	}
	return f.visible[selector], nil
}

func (f *fakeExecutor) Viewport(ctx context.Context) (float64, float64, error) {
	return 1280, 800, nil
}

func (f *fakeExecutor) SelectOption(ctx context.Context, selector, value string) error {
	f.selected[selector] = value
	return nil
}

func (f *fakeExecutor) SetFiles(ctx context.Context, selector string, files []string) error {
	return nil
}

func (f *fakeExecutor) InternalLinks(ctx context.Context) ([]string, error) {
	return f.links, nil
}

func (f *fakeExecutor) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeExecutor) Back(ctx context.Context) error {
	f.backs++
	return nil
}

func TestMoveToUpdatesCursor(t *testing.T) {
	fake := newFakeExecutor()
	h := New(fake, DefaultConfig())
	target := Point{X: 640, Y: 360}

	if err := h.MoveTo(context.Background(), target); err != nil {
		t.Fatal(err)
	}
	if got := h.Cursor(); got != target {
		t.Errorf("cursor = %+v, want %+v", got, target)
	}
	if len(fake.moves) < minPathPoints {
		t.Errorf("only %d mouse moves, want at least %d", len(fake.moves), minPathPoints)
	}
	last := fake.moves[len(fake.moves)-1]
	if last != target {
		t.Errorf("final move = %+v, want %+v", last, target)
	}
}

func TestConsecutiveMovesChain(t *testing.T) {
	fake := newFakeExecutor()
	h := New(fake, DefaultConfig())
	ctx := context.Background()

	first := Point{X: 500, Y: 300}
	if err := h.MoveTo(ctx, first); err != nil {
		t.Fatal(err)
	}
	movesBefore := len(fake.moves)
	if err := h.MoveTo(ctx, Point{X: 900, Y: 600}); err != nil {
		t.Fatal(err)
	}

	// The second trajectory must depart from where the first one ended,
	// not teleport. Its earliest points should sit near `first`.
	start := fake.moves[movesBefore]
	if math.Hypot(start.X-first.X, start.Y-first.Y) > 120 {
		t.Errorf("second path starts at %+v, far from previous cursor %+v", start, first)
	}
}

func TestClickLandsOffCenterInsideBounds(t *testing.T) {
	box := Box{X: 100, Y: 200, Width: 200, Height: 80}
	center := box.Center()

	for i := 0; i < 200; i++ {
		fake := newFakeExecutor()
		fake.boxes["#btn"] = box
		h := New(fake, DefaultConfig())

		if err := h.Click(context.Background(), "#btn"); err != nil {
			t.Fatal(err)
		}
		if len(fake.clicks) != 1 {
			t.Fatalf("%d clicks, want 1", len(fake.clicks))
		}
		at := fake.clicks[0]
		if at == center {
			t.Fatal("click landed on the exact center")
		}
		if math.Abs(at.X-center.X) > box.Width*0.25 || math.Abs(at.Y-center.Y) > box.Height*0.25 {
			t.Fatalf("click at %+v outside 25%% offset window around %+v", at, center)
		}
	}
}

func TestClickMissingElement(t *testing.T) {
	fake := newFakeExecutor()
	h := New(fake, DefaultConfig())
	if err := h.Click(context.Background(), "#ghost"); err == nil {
		t.Fatal("expected error for missing element")
	}
}

func TestTypeProducesExactText(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TypoChance = 1.0 // force the typo path
	for i := 0; i < 50; i++ {
		fake := newFakeExecutor()
		h := New(fake, cfg)
		const text = "hello there, typing test"
		if err := h.Type(context.Background(), "#input", text); err != nil {
			t.Fatal(err)
		}
		if fake.focused != "#input" {
			t.Errorf("focused %q, want #input", fake.focused)
		}
		if got := string(fake.buffer); got != text {
			t.Fatalf("field contains %q, want %q", got, text)
		}
	}
}

func TestClearAndTypeTripleClicks(t *testing.T) {
	fake := newFakeExecutor()
	fake.boxes["#q"] = Box{X: 10, Y: 10, Width: 300, Height: 30}
	h := New(fake, DefaultConfig())

	if err := h.ClearAndType(context.Background(), "#q", "new value"); err != nil {
		t.Fatal(err)
	}
	if len(fake.clicks) != 3 {
		t.Errorf("%d clicks recorded, want 3 (triple click)", len(fake.clicks))
	}
	if got := string(fake.buffer); got != "new value" {
		t.Errorf("field contains %q, want %q", got, "new value")
	}
}

func TestScrollDirection(t *testing.T) {
	tests := []struct {
		direction string
		wantSign  float64
	}{
		{"down", 1},
		{"up", -1},
	}
	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			fake := newFakeExecutor()
			h := New(fake, DefaultConfig())
			if err := h.Scroll(context.Background(), tt.direction, 1000, time.Second); err != nil {
				t.Fatal(err)
			}
			var total float64
			for _, dy := range fake.scrolls {
				total += dy
			}
			if total*tt.wantSign <= 0 {
				t.Errorf("net scroll %v, want sign %v", total, tt.wantSign)
			}
			if math.Abs(math.Abs(total)-1000) > 0.001 {
				t.Errorf("net scroll %v, want magnitude 1000", total)
			}
		})
	}
}

func TestScrollToElementEventuallyVisible(t *testing.T) {
	fake := newFakeExecutor()
	fake.visibleAfter["#deep"] = 3
	fake.boxes["#deep"] = Box{X: 100, Y: 380, Width: 400, Height: 40}
	h := New(fake, DefaultConfig())

	if err := h.ScrollToElement(context.Background(), "#deep"); err != nil {
		t.Fatal(err)
	}
	if len(fake.scrolls) == 0 {
		t.Error("no scrolling happened before the element became visible")
	}
}

func TestScrollToElementGivesUp(t *testing.T) {
	fake := newFakeExecutor()
	fake.visible["#never"] = false
	h := New(fake, DefaultConfig())

	err := h.ScrollToElement(context.Background(), "#never")
	if err == nil {
		t.Fatal("expected error for element that never appears")
	}
	if !strings.Contains(err.Error(), "#never") {
		t.Errorf("error %q does not name the selector", err)
	}
}

func TestSelectGoesThroughExecutor(t *testing.T) {
	fake := newFakeExecutor()
	fake.boxes["#country"] = Box{X: 40, Y: 40, Width: 180, Height: 28}
	h := New(fake, DefaultConfig())

	if err := h.Select(context.Background(), "#country", "Portugal"); err != nil {
		t.Fatal(err)
	}
	if got := fake.selected["#country"]; got != "Portugal" {
		t.Errorf("selected %q, want Portugal", got)
	}
}

func TestWarmupProfiles(t *testing.T) {
	for _, profile := range []WarmupProfile{WarmupFeed, WarmupJobBoard, WarmupGeneric} {
		t.Run(string(profile), func(t *testing.T) {
			fake := newFakeExecutor()
			fake.links = []string{"https://example.com/about"}
			h := New(fake, DefaultConfig())
			if err := h.Warmup(context.Background(), profile, 8*time.Second); err != nil {
				t.Fatal(err)
			}
			if len(fake.scrolls) == 0 {
				t.Error("warmup produced no scrolling")
			}
		})
	}
}

func TestWarmupDurationScalesActivity(t *testing.T) {
	for _, profile := range []WarmupProfile{WarmupFeed, WarmupJobBoard, WarmupGeneric} {
		t.Run(string(profile), func(t *testing.T) {
			// Averaged over several runs so the randomized scroll chunk
			// counts don't mask the budget difference.
			shortScrolls, longScrolls := 0, 0
			for i := 0; i < 20; i++ {
				fake := newFakeExecutor()
				h := New(fake, DefaultConfig())
				if err := h.Warmup(context.Background(), profile, 5*time.Second); err != nil {
					t.Fatal(err)
				}
				shortScrolls += len(fake.scrolls)

				fake = newFakeExecutor()
				h = New(fake, DefaultConfig())
				if err := h.Warmup(context.Background(), profile, 60*time.Second); err != nil {
					t.Fatal(err)
				}
				longScrolls += len(fake.scrolls)
			}
			if longScrolls <= shortScrolls {
				t.Errorf("60s warmup produced %d scroll steps, 5s produced %d; longer budget should mean more activity", longScrolls, shortScrolls)
			}
		})
	}
}

func TestWarmupGenericSometimesFollowsLink(t *testing.T) {
	followed := 0
	const runs = 200
	for i := 0; i < runs; i++ {
		fake := newFakeExecutor()
		fake.links = []string{"https://example.com/a", "https://example.com/b"}
		h := New(fake, DefaultConfig())
		if err := h.Warmup(context.Background(), WarmupGeneric, 5*time.Second); err != nil {
			t.Fatal(err)
		}
		if len(fake.navigated) > 0 {
			followed++
			if fake.backs == 0 {
				t.Fatal("followed a link without navigating back")
			}
		}
	}
	// ~30% follow rate; anywhere in (10%, 55%) over 200 runs is sane.
	if followed < runs/10 || followed > runs*55/100 {
		t.Errorf("followed internal link %d/%d times, want roughly 30%%", followed, runs)
	}
}

func TestDelayCancellation(t *testing.T) {
	fake := newFakeExecutor()
	h := New(fake, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Delay(ctx, 100, 200); err != context.Canceled {
		t.Errorf("Delay on cancelled context = %v, want context.Canceled", err)
	}
}
