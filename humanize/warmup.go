package humanize

import (
	"context"
	"time"
)

// WarmupProfile names a browsing pattern used to build session history
// before visiting a protected page.
type WarmupProfile string

const (
	// WarmupFeed mimics skimming a news or social feed: long scrolls
	// with reading pauses and hovers over items.
	WarmupFeed WarmupProfile = "feed"
	// WarmupJobBoard mimics scanning a listing page: shorter scrolls,
	// more hovers, a slower overall pace.
	WarmupJobBoard WarmupProfile = "jobboard"
	// WarmupGeneric mimics a first visit to an unknown site: a read,
	// a scroll, and sometimes one internal link followed and backed
	// out of.
	WarmupGeneric WarmupProfile = "generic"
)

// hover selectors tried in order per profile; the first one that resolves
// to a visible element gets the pointer.
var warmupHoverSelectors = map[WarmupProfile][]string{
	WarmupFeed:     {"article", "[role=article]", ".post", ".feed-item"},
	WarmupJobBoard: {".job-card", "[data-job-id]", ".listing", "li a"},
	WarmupGeneric:  {"article", "main a", "h2", "nav a"},
}

// Warmup browses the already-loaded page according to the profile for
// roughly the given duration: each profile repeats its scroll/hover/read
// loop until the planned time adds up to the budget. It is best-effort:
// element lookups that fail are skipped, navigation errors are returned
// only when they abort the session (context cancellation).
func (h *Humanizer) Warmup(ctx context.Context, profile WarmupProfile, duration time.Duration) error {
	if duration <= 0 {
		duration = 8 * time.Second
	}
	switch profile {
	case WarmupFeed:
		return h.warmupFeed(ctx, duration)
	case WarmupJobBoard:
		return h.warmupJobBoard(ctx, duration)
	default:
		return h.warmupGeneric(ctx, duration)
	}
}

func (h *Humanizer) warmupFeed(ctx context.Context, budget time.Duration) error {
	if err := h.Delay(ctx, 800, 2000); err != nil {
		return err
	}
	spent := 1400 * time.Millisecond

	for spent < budget {
		scrollFor := 2*time.Second + time.Duration(h.randFloat()*float64(time.Second))
		if err := h.Scroll(ctx, "down", 600+h.randFloat()*900, scrollFor); err != nil {
			return err
		}
		spent += scrollFor
		h.hoverFirst(ctx, warmupHoverSelectors[WarmupFeed])

		if remaining := budget - spent; remaining > 0 {
			readFor := 3 * time.Second
			if remaining < readFor {
				readFor = remaining
			}
			if err := h.Read(ctx, readFor); err != nil {
				return err
			}
			spent += readFor
		}
	}
	return nil
}

func (h *Humanizer) warmupJobBoard(ctx context.Context, budget time.Duration) error {
	if err := h.Delay(ctx, 1000, 2500); err != nil {
		return err
	}
	spent := 1750 * time.Millisecond

	for spent < budget {
		if err := h.Scroll(ctx, "down", 300+h.randFloat()*250, 1500*time.Millisecond); err != nil {
			return err
		}
		h.hoverFirst(ctx, warmupHoverSelectors[WarmupJobBoard])
		if err := h.Delay(ctx, 700, 1800); err != nil {
			return err
		}
		spent += 1500*time.Millisecond + 1250*time.Millisecond
	}
	return nil
}

func (h *Humanizer) warmupGeneric(ctx context.Context, budget time.Duration) error {
	if err := h.Read(ctx, 2*time.Second); err != nil {
		return err
	}
	if err := h.Scroll(ctx, "down", 600+h.randFloat()*500, 2*time.Second); err != nil {
		return err
	}
	h.hoverFirst(ctx, warmupHoverSelectors[WarmupGeneric])
	spent := 4 * time.Second

	// Roughly a third of first-time visitors click through one internal
	// link before settling.
	if h.randFloat() < 0.3 {
		links, err := h.exec.InternalLinks(ctx)
		if err == nil && len(links) > 0 {
			target := links[int(h.randFloat()*float64(len(links)))%len(links)]
			if err := h.exec.Navigate(ctx, target); err != nil {
				return ctxErr(ctx, err)
			}
			if err := h.Read(ctx, 2*time.Second); err != nil {
				return err
			}
			if err := h.exec.Back(ctx); err != nil {
				return ctxErr(ctx, err)
			}
			if err := h.Delay(ctx, 600, 1500); err != nil {
				return err
			}
			spent += 3050 * time.Millisecond
		}
	}

	for spent < budget {
		if err := h.Scroll(ctx, "down", 400+h.randFloat()*400, 1500*time.Millisecond); err != nil {
			return err
		}
		spent += 1500 * time.Millisecond

		if remaining := budget - spent; remaining > 0 {
			readFor := 2 * time.Second
			if remaining < readFor {
				readFor = remaining
			}
			if err := h.Read(ctx, readFor); err != nil {
				return err
			}
			spent += readFor
		}
	}
	return nil
}

// hoverFirst moves the pointer over the first visible element matching
// any of the selectors. Failures are ignored: a hover is flavor, not a
// precondition.
func (h *Humanizer) hoverFirst(ctx context.Context, selectors []string) {
	for _, sel := range selectors {
		visible, err := h.exec.ElementVisible(ctx, sel)
		if err != nil || !visible {
			continue
		}
		box, err := h.exec.ElementBox(ctx, sel)
		if err != nil {
			continue
		}
		_ = h.MoveTo(ctx, box.Center())
		return
	}
}

// ctxErr surfaces cancellation; other navigation failures are tolerated
// because warmup browsing is best-effort.
func ctxErr(ctx context.Context, _ error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
