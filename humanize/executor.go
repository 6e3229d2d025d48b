// Package humanize generates human-shaped input for an open browser page:
// Gaussian-jittered delays, Bezier pointer paths, imperfect typing, and
// chunked scrolling. Every operation is deterministic in structure but
// randomized in parameters — detectability correlates with timing
// uniformity, so nothing here is ever a fixed-duration sleep.
package humanize

import (
	"context"
	"time"
)

// Point is a page coordinate.
type Point struct {
	X, Y float64
}

// Box is an element's bounding box in viewport coordinates.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Executor is the low-level page I/O the simulator drives. The production
// implementation wraps a rod page; tests substitute a recording fake so
// the generated event streams can be inspected without a browser.
type Executor interface {
	// Sleep blocks for d or until ctx is cancelled.
	Sleep(ctx context.Context, d time.Duration) error

	// MoveMouse moves the pointer to viewport coordinates.
	MoveMouse(ctx context.Context, x, y float64) error

	// ClickMouse clicks the left button at the given point. clicks > 1
	// produces a multi-click (e.g. 3 for select-all).
	ClickMouse(ctx context.Context, x, y float64, clicks int) error

	// ScrollBy scrolls the page by the given deltas.
	ScrollBy(ctx context.Context, dx, dy float64) error

	// SendText inserts text at the focused element.
	SendText(ctx context.Context, text string) error

	// PressBackspace deletes one character before the caret.
	PressBackspace(ctx context.Context) error

	// Focus gives keyboard focus to the first element matching selector.
	Focus(ctx context.Context, selector string) error

	// ElementBox returns the bounding box of the first match.
	ElementBox(ctx context.Context, selector string) (*Box, error)

	// ElementVisible reports whether the first match is in the viewport.
	ElementVisible(ctx context.Context, selector string) (bool, error)

	// Viewport returns the viewport dimensions.
	Viewport(ctx context.Context) (width, height float64, err error)

	// SelectOption picks an option of a <select> element by value.
	SelectOption(ctx context.Context, selector, value string) error

	// SetFiles attaches files to a file input.
	SetFiles(ctx context.Context, selector string, files []string) error

	// InternalLinks lists same-host link hrefs on the current page.
	InternalLinks(ctx context.Context) ([]string, error)

	// Navigate loads a URL in the current page.
	Navigate(ctx context.Context, url string) error

	// Back returns to the previous history entry.
	Back(ctx context.Context) error
}
