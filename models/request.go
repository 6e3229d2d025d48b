package models

// Method identifies which retrieval tier produced a result.
const (
	MethodDirect        = "direct"
	MethodRendered      = "rendered"
	MethodAntiDetection = "anti-detection"
	MethodCached        = "cached"
)

// FetchRequest is the payload for POST /v1/fetch. All fields except URL are
// optional; the zero value means "let the orchestrator decide".
type FetchRequest struct {
	// URL is the target page. Required.
	URL string `json:"url" binding:"required,url"`

	// Render forces the rendered (headless browser) tier.
	Render bool `json:"render,omitempty"`

	// Stealth forces the anti-detection rendered tier.
	Stealth bool `json:"stealth,omitempty"`

	// Headers are custom HTTP headers, applied on whichever tier runs.
	// A request with custom headers is never cached.
	Headers map[string]string `json:"headers,omitempty"`

	// Cookies to set before navigation.
	Cookies []Cookie `json:"cookies,omitempty"`

	// Actions is an ordered list of page interactions executed after load.
	// Requires a rendered tier.
	Actions []Action `json:"actions,omitempty"`

	// WaitMs is extra settle time after page load, in milliseconds.
	WaitMs int `json:"wait,omitempty" binding:"omitempty,min=0,max=30000"`

	// TimeoutMs bounds each tier attempt independently.
	// Default: 30000. Max: 120000.
	TimeoutMs int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120000"`

	// Screenshot captures the viewport after load. Implies a rendered tier.
	Screenshot bool `json:"screenshot,omitempty"`

	// FullPage extends Screenshot to the full scroll height.
	FullPage bool `json:"full_page,omitempty"`

	// KeepSessionOpen leaves the browser page open after the fetch so a
	// follow-up interaction flow can reuse it.
	KeepSessionOpen bool `json:"keep_session_open,omitempty"`

	// Fresh bypasses the response cache entirely (no read, no write).
	Fresh bool `json:"fresh,omitempty"`

	// Country is a two-letter geographic hint for the rendered tier.
	Country string `json:"country,omitempty"`

	// Locale is a BCP 47 language hint (e.g. "en-US"), mapped to
	// Accept-Language on the direct tier.
	Locale string `json:"locale,omitempty"`
}

// Cookie is a cookie to install before navigation.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *FetchRequest) Defaults() {
	if r.TimeoutMs == 0 {
		r.TimeoutMs = 30000
	}
}

// NeedsBrowser reports whether any field of the request demands a rendered
// tier regardless of what tier selection would otherwise choose.
func (r *FetchRequest) NeedsBrowser() bool {
	return r.Render || r.Stealth || r.Screenshot || r.KeepSessionOpen || len(r.Actions) > 0
}

// Action types accepted in FetchRequest.Actions.
const (
	ActionWait       = "wait"
	ActionClick      = "click"
	ActionScroll     = "scroll"
	ActionType       = "type"
	ActionFill       = "fill"
	ActionSelect     = "select"
	ActionPress      = "press"
	ActionHover      = "hover"
	ActionWaitFor    = "wait_for"
	ActionScreenshot = "screenshot"
)

// Action is one scripted page interaction, executed in order by the
// rendered tier after navigation.
type Action struct {
	// Type is one of: wait, click, scroll, type, fill, select, press,
	// hover, wait_for, screenshot.
	Type string `json:"type"`

	// Selector targets an element for click/type/fill/select/hover/wait_for.
	Selector string `json:"selector,omitempty"`

	// Value is the text for type/fill or the option value for select.
	Value string `json:"value,omitempty"`

	// Milliseconds is the duration for wait.
	Milliseconds int `json:"milliseconds,omitempty"`

	// Direction is "up" or "down" for scroll.
	Direction string `json:"direction,omitempty"`

	// Amount is the number of viewports for scroll.
	Amount int `json:"amount,omitempty"`

	// Key is the key name for press (e.g. "Enter", "Tab").
	Key string `json:"key,omitempty"`

	// FullPage extends a screenshot action to the full scroll height.
	FullPage bool `json:"full_page,omitempty"`
}
