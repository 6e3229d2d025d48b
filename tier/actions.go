package tier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/webpeel/webpeel/humanize"
	"github.com/webpeel/webpeel/models"
)

// actionTimeout is the per-action deadline.
const actionTimeout = 10 * time.Second

// executeActions runs the ordered interaction list on the page. In
// stealth mode, pointer and keyboard actions go through the human
// simulator; otherwise they use direct CDP calls. The first failing
// action aborts the rest.
func executeActions(ctx context.Context, page *rod.Page, human *humanize.Humanizer, actions []models.Action, stealthMode bool) error {
	for i, action := range actions {
		if err := executeSingleAction(ctx, page, human, action, stealthMode); err != nil {
			return models.NewFetchError(
				models.ErrCodeInvalidInput,
				fmt.Sprintf("action %d (%s) failed after %d completed: %v", i, action.Type, i, err),
				err,
			)
		}
	}
	return nil
}

// executeSingleAction dispatches one action with its own timeout.
func executeSingleAction(ctx context.Context, page *rod.Page, human *humanize.Humanizer, action models.Action, stealthMode bool) error {
	actionCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	p := page.Context(actionCtx)

	switch action.Type {
	case models.ActionWait:
		return execWait(p, action)
	case models.ActionWaitFor:
		if action.Selector == "" {
			return fmt.Errorf("wait_for action requires a selector")
		}
		return p.WaitElementsMoreThan(action.Selector, 0)
	case models.ActionClick:
		return execClick(actionCtx, p, human, action, stealthMode)
	case models.ActionScroll:
		return execScroll(actionCtx, p, human, action, stealthMode)
	case models.ActionType:
		return execType(actionCtx, p, human, action, stealthMode, false)
	case models.ActionFill:
		return execType(actionCtx, p, human, action, stealthMode, true)
	case models.ActionSelect:
		return execSelect(actionCtx, p, human, action, stealthMode)
	case models.ActionPress:
		return execPress(p, action)
	case models.ActionHover:
		return execHover(actionCtx, p, human, action, stealthMode)
	case models.ActionScreenshot:
		// Mid-flow screenshots are captured after the action list runs;
		// the marker only validates placement.
		return nil
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// execWait sleeps for a duration or waits for a selector to appear.
func execWait(p *rod.Page, action models.Action) error {
	if action.Selector != "" {
		return p.WaitElementsMoreThan(action.Selector, 0)
	}
	if action.Milliseconds > 0 {
		d := time.Duration(action.Milliseconds) * time.Millisecond
		select {
		case <-time.After(d):
			return nil
		case <-p.GetContext().Done():
			return p.GetContext().Err()
		}
	}
	return nil
}

func execClick(ctx context.Context, p *rod.Page, human *humanize.Humanizer, action models.Action, stealthMode bool) error {
	if action.Selector == "" {
		return fmt.Errorf("click action requires a selector")
	}
	if stealthMode {
		return human.Click(ctx, action.Selector)
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// execScroll scrolls up or down by the given number of viewports.
func execScroll(ctx context.Context, p *rod.Page, human *humanize.Humanizer, action models.Action, stealthMode bool) error {
	amount := action.Amount
	if amount <= 0 {
		amount = 1
	}

	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	viewportHeight := res.Value.Int()

	direction := "down"
	if action.Direction == "up" {
		direction = "up"
	}

	if stealthMode {
		distance := float64(viewportHeight * amount)
		return human.Scroll(ctx, direction, distance, time.Duration(amount)*time.Second)
	}

	for i := 0; i < amount; i++ {
		delta := float64(viewportHeight)
		if direction == "up" {
			delta = -delta
		}
		if err := p.Mouse.Scroll(0, delta, 0); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", i, err)
		}
		// Let lazy-loaded content trigger between steps.
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// execType enters text into a field. `clear` selects the existing content
// first so the final value replaces it.
func execType(ctx context.Context, p *rod.Page, human *humanize.Humanizer, action models.Action, stealthMode, clear bool) error {
	if action.Selector == "" {
		return fmt.Errorf("%s action requires a selector", action.Type)
	}
	if stealthMode {
		if clear {
			return human.ClearAndType(ctx, action.Selector, action.Value)
		}
		return human.Type(ctx, action.Selector, action.Value)
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	if clear {
		if err := el.SelectAllText(); err != nil {
			return err
		}
	}
	return el.Input(action.Value)
}

func execSelect(ctx context.Context, p *rod.Page, human *humanize.Humanizer, action models.Action, stealthMode bool) error {
	if action.Selector == "" {
		return fmt.Errorf("select action requires a selector")
	}
	if stealthMode {
		return human.Select(ctx, action.Selector, action.Value)
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	return el.Select([]string{action.Value}, true, rod.SelectorTypeText)
}

// namedKeys maps API key names to CDP key codes.
var namedKeys = map[string]input.Key{
	"enter":      input.Enter,
	"tab":        input.Tab,
	"escape":     input.Escape,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"home":       input.Home,
	"end":        input.End,
	"space":      input.Space,
}

func execPress(p *rod.Page, action models.Action) error {
	key, ok := namedKeys[strings.ToLower(action.Key)]
	if !ok {
		return fmt.Errorf("unknown key %q", action.Key)
	}
	return p.Keyboard.Press(key)
}

func execHover(ctx context.Context, p *rod.Page, human *humanize.Humanizer, action models.Action, stealthMode bool) error {
	if action.Selector == "" {
		return fmt.Errorf("hover action requires a selector")
	}
	el, err := p.Element(action.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", action.Selector, err)
	}
	if stealthMode {
		shape, err := el.Shape()
		if err != nil {
			return err
		}
		if rect := shape.Box(); rect != nil {
			return human.MoveTo(ctx, humanize.Point{X: rect.X + rect.Width/2, Y: rect.Y + rect.Height/2})
		}
	}
	return el.Hover()
}
