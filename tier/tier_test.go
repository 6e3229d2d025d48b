package tier

import (
	"context"
	"errors"
	"testing"

	tls "github.com/refraction-networking/utls"

	"github.com/webpeel/webpeel/models"
)

func TestAcceptLanguage(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"", "en-US,en;q=0.9"},
		{"de-DE", "de-DE,de;q=0.9,en;q=0.8"},
		{"de_DE", "de-DE,de;q=0.9,en;q=0.8"},
		{"fr-FR", "fr-FR,fr;q=0.9,en;q=0.8"},
		{"ja", "ja;q=0.9"},
	}
	for _, tt := range tests {
		if got := acceptLanguage(tt.locale); got != tt.want {
			t.Errorf("acceptLanguage(%q) = %q, want %q", tt.locale, got, tt.want)
		}
	}
}

func TestChromeHelloForcesHTTP1(t *testing.T) {
	if len(chromeH1Spec.Extensions) == 0 {
		t.Fatal("chromeH1Spec was not initialised")
	}
	found := false
	for _, ext := range chromeH1Spec.Extensions {
		alpn, ok := ext.(*tls.ALPNExtension)
		if !ok {
			continue
		}
		found = true
		if len(alpn.AlpnProtocols) != 1 || alpn.AlpnProtocols[0] != "http/1.1" {
			t.Errorf("ALPN protocols = %v, want [http/1.1]", alpn.AlpnProtocols)
		}
	}
	if !found {
		t.Error("no ALPN extension in chromeH1Spec")
	}
}

func TestIsAdDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"ad.doubleclick.net", true},
		{"stats.g.doubleclick.net", true},
		{"DOUBLECLICK.NET", true},
		{"example.com", false},
		{"notdoubleclick.net", false},
		{"doubleclick.net.evil.com", false},
	}
	for _, tt := range tests {
		if got := isAdDomain(tt.host); got != tt.want {
			t.Errorf("isAdDomain(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestCategorizeNavError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, models.ErrCodeCancelled},
		{"cancelled", context.Canceled, models.ErrCodeCancelled},
		{"network", errors.New("net::ERR_CONNECTION_RESET"), models.ErrCodeTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := categorizeNavError(tt.err)
			if fe.Code != tt.want {
				t.Errorf("code = %q, want %q", fe.Code, tt.want)
			}
			if !errors.Is(fe, tt.err) {
				t.Error("wrapped error lost the original cause")
			}
		})
	}
}

func TestNamedKeysCoverCommonKeys(t *testing.T) {
	for _, name := range []string{"enter", "tab", "escape", "arrowdown", "pagedown", "space"} {
		if _, ok := namedKeys[name]; !ok {
			t.Errorf("namedKeys missing %q", name)
		}
	}
	if _, ok := namedKeys["Enter"]; ok {
		t.Error("namedKeys should be keyed by lowercase names only")
	}
}
