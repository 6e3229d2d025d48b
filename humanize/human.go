package humanize

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Humanizer drives one page through an Executor with human-shaped input.
// It owns the cursor position for its page, so consecutive movements chain
// into one continuous trajectory instead of teleporting. One Humanizer per
// page/session: sharing a cursor across concurrent pages would produce
// motion discontinuities on both.
type Humanizer struct {
	exec Executor
	cfg  Config

	mu     sync.Mutex
	rng    *rand.Rand
	cursor Point
}

// New creates a Humanizer for one page. The cursor starts at a slightly
// randomized point near the top-left quadrant, where a pointer tends to
// rest after navigation.
func New(exec Executor, cfg Config) *Humanizer {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Humanizer{
		exec: exec,
		cfg:  cfg.normalized(),
		rng:  rng,
		cursor: Point{
			X: 80 + rng.Float64()*240,
			Y: 80 + rng.Float64()*160,
		},
	}
}

// Cursor returns the last known pointer position.
func (h *Humanizer) Cursor() Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Delay sleeps for a Gaussian-distributed duration clamped to
// [minMs, maxMs].
func (h *Humanizer) Delay(ctx context.Context, minMs, maxMs int) error {
	h.mu.Lock()
	d := delayBetween(h.rng, float64(minMs), float64(maxMs))
	h.mu.Unlock()
	return h.exec.Sleep(ctx, d)
}

// think pauses for the configured think-time range.
func (h *Humanizer) think(ctx context.Context) error {
	return h.Delay(ctx, h.cfg.ThinkTimeMin, h.cfg.ThinkTimeMax)
}

// MoveTo animates the pointer from its current position to the target
// along a jittered Bezier curve, then records the target as the new
// cursor position.
func (h *Humanizer) MoveTo(ctx context.Context, target Point) error {
	h.mu.Lock()
	path := pointerPath(h.rng, h.cursor, target, h.cfg.MoveSpeed)
	h.mu.Unlock()

	for _, step := range path {
		if err := h.exec.Sleep(ctx, step.delay); err != nil {
			return err
		}
		if err := h.exec.MoveMouse(ctx, step.pos.X, step.pos.Y); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.cursor = target
	h.mu.Unlock()
	return nil
}

// Click moves to the element and clicks it at an off-center point.
// Humans land up to a quarter of the element away from its center and
// essentially never on the exact pixel.
func (h *Humanizer) Click(ctx context.Context, selector string) error {
	return h.clickTimes(ctx, selector, 1)
}

func (h *Humanizer) clickTimes(ctx context.Context, selector string, clicks int) error {
	if err := h.think(ctx); err != nil {
		return err
	}
	box, err := h.exec.ElementBox(ctx, selector)
	if err != nil {
		return fmt.Errorf("humanize: click %q: %w", selector, err)
	}

	h.mu.Lock()
	target := offsetClickPoint(h.rng, *box)
	h.mu.Unlock()

	if err := h.MoveTo(ctx, target); err != nil {
		return err
	}
	if err := h.Delay(ctx, 50, 200); err != nil {
		return err
	}
	return h.exec.ClickMouse(ctx, target.X, target.Y, clicks)
}

// offsetClickPoint picks a click point offset up to 25% of the element's
// size from its center, never the exact center.
func offsetClickPoint(rng *rand.Rand, box Box) Point {
	c := box.Center()
	ox := (rng.Float64()*2 - 1) * box.Width * 0.25
	oy := (rng.Float64()*2 - 1) * box.Height * 0.25
	if ox == 0 && oy == 0 {
		ox = 1
	}
	return Point{X: c.X + ox, Y: c.Y + oy}
}

// Type focuses the field and types text with human pacing: Gaussian
// inter-key delays, slower keys at word boundaries, occasional post-space
// thinking pauses, and at most one typo that is visibly corrected. The
// field always ends up containing exactly `text`.
func (h *Humanizer) Type(ctx context.Context, selector, text string) error {
	if err := h.exec.Focus(ctx, selector); err != nil {
		return fmt.Errorf("humanize: focus %q: %w", selector, err)
	}
	h.mu.Lock()
	plan := typingPlan(h.rng, h.cfg, text)
	h.mu.Unlock()

	for _, ev := range plan {
		if err := h.exec.Sleep(ctx, ev.delay); err != nil {
			return err
		}
		switch ev.kind {
		case keyText:
			if err := h.exec.SendText(ctx, ev.text); err != nil {
				return err
			}
		case keyBackspace:
			if err := h.exec.PressBackspace(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClearAndType selects the field's existing content with a triple click,
// then types over it.
func (h *Humanizer) ClearAndType(ctx context.Context, selector, text string) error {
	if err := h.clickTimes(ctx, selector, 3); err != nil {
		return err
	}
	if err := h.Delay(ctx, 80, 250); err != nil {
		return err
	}
	return h.Type(ctx, selector, text)
}

// Scroll covers `distance` pixels in the given direction ("up" or "down")
// over roughly `duration`, in uneven bursts with occasional backtracking
// and reading pauses.
func (h *Humanizer) Scroll(ctx context.Context, direction string, distance float64, duration time.Duration) error {
	sign := 1.0
	if direction == "up" {
		sign = -1.0
	}

	h.mu.Lock()
	plan := scrollPlan(h.rng, distance, duration)
	h.mu.Unlock()

	for _, chunk := range plan {
		if err := h.exec.Sleep(ctx, chunk.delay); err != nil {
			return err
		}
		if chunk.drift != 0 {
			h.mu.Lock()
			drifted := Point{X: h.cursor.X + chunk.drift, Y: h.cursor.Y + (h.rng.Float64()*2 - 1)}
			h.cursor = drifted
			h.mu.Unlock()
			if err := h.exec.MoveMouse(ctx, drifted.X, drifted.Y); err != nil {
				return err
			}
		}
		if err := h.exec.ScrollBy(ctx, 0, sign*chunk.dy); err != nil {
			return err
		}
		if chunk.readPause > 0 {
			if err := h.exec.Sleep(ctx, chunk.readPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScrollToElement scrolls in viewport-sized steps until the element is
// visible (up to 10 attempts), then performs a final centering scroll.
func (h *Humanizer) ScrollToElement(ctx context.Context, selector string) error {
	_, viewH, err := h.exec.Viewport(ctx)
	if err != nil {
		return err
	}

	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		visible, err := h.exec.ElementVisible(ctx, selector)
		if err != nil {
			return fmt.Errorf("humanize: scroll to %q: %w", selector, err)
		}
		if visible {
			return h.centerElement(ctx, selector, viewH)
		}
		if err := h.Scroll(ctx, "down", viewH*0.8, time.Second); err != nil {
			return err
		}
	}
	return fmt.Errorf("humanize: element %q not visible after %d scroll attempts", selector, 10)
}

// centerElement nudges the element toward the middle of the viewport.
func (h *Humanizer) centerElement(ctx context.Context, selector string, viewH float64) error {
	box, err := h.exec.ElementBox(ctx, selector)
	if err != nil {
		return err
	}
	offset := box.Center().Y - viewH/2
	if offset > 40 {
		return h.Scroll(ctx, "down", offset, 600*time.Millisecond)
	}
	if offset < -40 {
		return h.Scroll(ctx, "up", -offset, 600*time.Millisecond)
	}
	return nil
}

// Read simulates reading for roughly the given duration: small scroll
// chunks interleaved with long pauses, occasionally drifting back up a
// few lines. The budget counts planned pauses, not wall time, so the
// pattern is the same regardless of how the executor sleeps.
func (h *Humanizer) Read(ctx context.Context, duration time.Duration) error {
	var spent time.Duration
	for spent < duration {
		h.mu.Lock()
		chunk := 180 + h.rng.Float64()*170
		pause := delayBetween(h.rng, 1000, 3500)
		backtrack := h.rng.Float64() < 0.2
		h.mu.Unlock()

		if err := h.exec.ScrollBy(ctx, 0, chunk); err != nil {
			return err
		}
		if err := h.exec.Sleep(ctx, pause); err != nil {
			return err
		}
		spent += pause

		if backtrack {
			if err := h.exec.ScrollBy(ctx, 0, -(60 + h.randFloat()*90)); err != nil {
				return err
			}
			h.mu.Lock()
			backPause := delayBetween(h.rng, 400, 1200)
			h.mu.Unlock()
			if err := h.exec.Sleep(ctx, backPause); err != nil {
				return err
			}
			spent += backPause
		}
	}
	return nil
}

func (h *Humanizer) randFloat() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64()
}

// Select opens a dropdown, pauses as if scanning the options, then picks
// one. Native <select> widgets swallow synthetic mouse events on some
// platforms, so the choice itself goes through the executor.
func (h *Humanizer) Select(ctx context.Context, selector, value string) error {
	if err := h.Click(ctx, selector); err != nil {
		return err
	}
	if err := h.Delay(ctx, 400, 1100); err != nil {
		return err
	}
	return h.exec.SelectOption(ctx, selector, value)
}

// UploadFile attaches files after a think-delay, as if browsing a file
// picker.
func (h *Humanizer) UploadFile(ctx context.Context, selector string, files []string) error {
	if err := h.think(ctx); err != nil {
		return err
	}
	if err := h.Delay(ctx, 800, 2200); err != nil {
		return err
	}
	return h.exec.SetFiles(ctx, selector, files)
}

// Toggle clicks a checkbox or radio control with a think-delay.
func (h *Humanizer) Toggle(ctx context.Context, selector string) error {
	return h.Click(ctx, selector)
}
