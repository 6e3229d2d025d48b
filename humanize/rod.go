package humanize

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// RodExecutor adapts a rod page to the Executor interface. All calls
// rebind the page to the passed context so cancellation propagates into
// CDP round-trips.
type RodExecutor struct {
	page *rod.Page
}

// NewRodExecutor wraps an already-navigated rod page.
func NewRodExecutor(page *rod.Page) *RodExecutor {
	return &RodExecutor{page: page}
}

func (e *RodExecutor) p(ctx context.Context) *rod.Page {
	return e.page.Context(ctx)
}

func (e *RodExecutor) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *RodExecutor) MoveMouse(ctx context.Context, x, y float64) error {
	return e.p(ctx).Mouse.MoveTo(proto.NewPoint(x, y))
}

func (e *RodExecutor) ClickMouse(ctx context.Context, x, y float64, clicks int) error {
	p := e.p(ctx)
	if err := p.Mouse.MoveTo(proto.NewPoint(x, y)); err != nil {
		return err
	}
	return p.Mouse.Click(proto.InputMouseButtonLeft, clicks)
}

func (e *RodExecutor) ScrollBy(ctx context.Context, dx, dy float64) error {
	return e.p(ctx).Mouse.Scroll(dx, dy, 1)
}

func (e *RodExecutor) SendText(ctx context.Context, text string) error {
	return e.p(ctx).InsertText(text)
}

func (e *RodExecutor) PressBackspace(ctx context.Context) error {
	return e.p(ctx).Keyboard.Press(input.Backspace)
}

func (e *RodExecutor) Focus(ctx context.Context, selector string) error {
	el, err := e.p(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Focus()
}

func (e *RodExecutor) ElementBox(ctx context.Context, selector string) (*Box, error) {
	el, err := e.p(ctx).Element(selector)
	if err != nil {
		return nil, err
	}
	shape, err := el.Shape()
	if err != nil {
		return nil, err
	}
	rect := shape.Box()
	if rect == nil {
		return nil, fmt.Errorf("element %q has no layout box", selector)
	}
	return &Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (e *RodExecutor) ElementVisible(ctx context.Context, selector string) (bool, error) {
	p := e.p(ctx)
	has, el, err := p.Has(selector)
	if err != nil || !has {
		return false, err
	}
	return el.Visible()
}

func (e *RodExecutor) Viewport(ctx context.Context) (float64, float64, error) {
	res, err := e.p(ctx).Eval(`() => ({w: window.innerWidth, h: window.innerHeight})`)
	if err != nil {
		return 0, 0, err
	}
	return res.Value.Get("w").Num(), res.Value.Get("h").Num(), nil
}

func (e *RodExecutor) SelectOption(ctx context.Context, selector, value string) error {
	el, err := e.p(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Select([]string{value}, true, rod.SelectorTypeText)
}

func (e *RodExecutor) SetFiles(ctx context.Context, selector string, files []string) error {
	el, err := e.p(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.SetFiles(files)
}

// InternalLinks returns up to 20 same-host hrefs from the current page.
func (e *RodExecutor) InternalLinks(ctx context.Context) ([]string, error) {
	p := e.p(ctx)
	res, err := p.Eval(`() => {
		const host = location.host;
		const out = [];
		for (const a of document.querySelectorAll('a[href]')) {
			try {
				const u = new URL(a.href, location.href);
				if (u.host === host && u.pathname !== location.pathname) out.push(u.href);
			} catch (e) {}
			if (out.length >= 20) break;
		}
		return out;
	}`)
	if err != nil {
		return nil, err
	}
	var links []string
	for _, v := range res.Value.Arr() {
		raw := v.Str()
		if _, err := url.Parse(raw); err == nil {
			links = append(links, raw)
		}
	}
	return links, nil
}

func (e *RodExecutor) Navigate(ctx context.Context, target string) error {
	p := e.p(ctx)
	if err := p.Navigate(target); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (e *RodExecutor) Back(ctx context.Context) error {
	p := e.p(ctx)
	if err := p.NavigateBack(); err != nil {
		return err
	}
	return p.WaitLoad()
}
