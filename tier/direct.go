package tier

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/webpeel/webpeel/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBodyBytes caps response reads to prevent unbounded memory use.
const maxBodyBytes = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every
// connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Fallback: HelloChrome_Auto is applied as-is at dial time when
		// the spec is empty. (Should never happen with a valid utls.)
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2, which Go's http.Transport cannot frame
	// over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// DirectClient is the first escalation tier: plain HTTP with a Chrome
// TLS fingerprint and browser-like headers. It is the fastest option and
// serves static pages that don't need JavaScript.
type DirectClient struct {
	client *http.Client
}

// NewDirectClient builds the tier with a utls transport. ALPN is locked
// to http/1.1 to avoid the framing mismatch when utls negotiates h2 but
// the transport only speaks h1.
func NewDirectClient() *DirectClient {
	transport := &http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
	}
	return &DirectClient{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// dialTLSChrome establishes a TLS connection presenting the Chrome
// ClientHello.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	var tlsConn *tls.UConn
	if len(chromeH1Spec.Extensions) == 0 {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloChrome_Auto)
	} else {
		tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
			conn.Close()
			return nil, fmt.Errorf("direct: apply tls spec: %w", err)
		}
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// Fetch retrieves the URL over plain HTTP. Block-shaped responses (403,
// 429, 503, CAPTCHA markers in the body) and TLS-level failures come
// back as FetchErrors the orchestrator can escalate on; other transport
// failures are terminal for this tier but still typed.
func (c *DirectClient) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeInvalidInput, fmt.Sprintf("build request: %v", err), err)
	}

	httpReq.Header.Set("User-Agent", chromeUA)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", acceptLanguage(req.Locale))
	httpReq.Header.Set("Accept-Encoding", "identity")
	httpReq.Header.Set("Cache-Control", "no-cache")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for _, ck := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value, Domain: ck.Domain, Path: ck.Path})
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewFetchError(models.ErrCodeCancelled, "request cancelled", ctx.Err())
		}
		return nil, models.NewFetchError(models.ErrCodeTransport, fmt.Sprintf("request failed: %v", err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, models.NewFetchError(models.ErrCodeTransport, fmt.Sprintf("read body: %v", err), err)
	}

	if models.LooksBlocked(resp.StatusCode, string(body)) {
		return nil, models.NewFetchError(models.ErrCodeBlocked,
			fmt.Sprintf("block-shaped response: HTTP %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return nil, models.NewFetchError(models.ErrCodeTransport,
			fmt.Sprintf("HTTP %d for %s", resp.StatusCode, req.URL), nil)
	}

	return &models.FetchResult{
		Content:     string(body),
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		Method:      models.MethodDirect,
		StatusCode:  resp.StatusCode,
		ElapsedMs:   time.Since(start).Milliseconds(),
	}, nil
}

// acceptLanguage maps a request locale like "de-DE" to a browser-shaped
// Accept-Language value.
func acceptLanguage(locale string) string {
	if locale == "" {
		return "en-US,en;q=0.9"
	}
	base := locale
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		base = locale[:i]
	}
	if base == locale {
		return fmt.Sprintf("%s;q=0.9", locale)
	}
	return fmt.Sprintf("%s,%s;q=0.9,en;q=0.8", strings.Replace(locale, "_", "-", 1), base)
}
