package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Human     HumanConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the headless Chrome instance behind the rendered
// tiers.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types the hijack router blocks.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// FetchConfig controls the escalation orchestrator.
type FetchConfig struct {
	// DefaultTimeout is the per-tier attempt timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// DirectRetries is the bounded retry count for the direct tier.
	DirectRetries int // default: 3

	// RaceTimeout is how long the direct tier runs alone before the
	// rendered tier is started alongside it (when racing is enabled).
	RaceTimeout time.Duration // default: 3s

	// EnableRace allows racing the rendered tier against a slow direct
	// fetch. An installed intelligence module overrides this per request.
	EnableRace bool // default: false
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 1000

	// FreshFor is the window in which entries are served without
	// revalidation.
	FreshFor time.Duration // default: 5m

	// StaleFor is the total entry lifetime; entries between FreshFor and
	// StaleFor are served stale while a background refresh runs.
	StaleFor time.Duration // default: 1h
}

// HumanConfig holds the interaction simulator defaults. Every simulator
// primitive accepts a per-call override.
type HumanConfig struct {
	// TypingSpeedMin/Max bound the per-character delay in milliseconds.
	TypingSpeedMin int // default: 50
	TypingSpeedMax int // default: 150

	// TypoChance is the per-character probability of an injected-and-
	// corrected typo (at most one per typed text).
	TypoChance float64 // default: 0.07

	// MoveSpeed scales pointer travel time (1.0 = normal, 2.0 = twice as fast).
	MoveSpeed float64 // default: 1.0

	// ThinkTimeMin/Max bound the pause before deliberate actions, in
	// milliseconds.
	ThinkTimeMin int // default: 300
	ThinkTimeMax int // default: 900
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("WEBPEEL_HOST", "0.0.0.0"),
			Port: envIntOr("WEBPEEL_PORT", 8080),
			Mode: envOr("WEBPEEL_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("WEBPEEL_HEADLESS", true),
			MaxPages:     envIntOr("WEBPEEL_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("WEBPEEL_PROXY"),
			NoSandbox:    envBoolOr("WEBPEEL_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("WEBPEEL_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("WEBPEEL_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Fetch: FetchConfig{
			DefaultTimeout: envDurationOr("WEBPEEL_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("WEBPEEL_MAX_TIMEOUT", 120*time.Second),
			DirectRetries:  envIntOr("WEBPEEL_DIRECT_RETRIES", 3),
			RaceTimeout:    envDurationOr("WEBPEEL_RACE_TIMEOUT", 3*time.Second),
			EnableRace:     envBoolOr("WEBPEEL_ENABLE_RACE", false),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("WEBPEEL_AUTH_ENABLED", true),
			APIKeys: envSliceOr("WEBPEEL_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("WEBPEEL_RATE_RPS", 5.0),
			Burst:             envIntOr("WEBPEEL_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("WEBPEEL_CACHE_MAX_ENTRIES", 1000),
			FreshFor:   envDurationOr("WEBPEEL_CACHE_FRESH_FOR", 5*time.Minute),
			StaleFor:   envDurationOr("WEBPEEL_CACHE_STALE_FOR", 1*time.Hour),
		},
		Human: HumanConfig{
			TypingSpeedMin: envIntOr("WEBPEEL_TYPING_SPEED_MIN", 50),
			TypingSpeedMax: envIntOr("WEBPEEL_TYPING_SPEED_MAX", 150),
			TypoChance:     envFloatOr("WEBPEEL_TYPO_CHANCE", 0.07),
			MoveSpeed:      envFloatOr("WEBPEEL_MOVE_SPEED", 1.0),
			ThinkTimeMin:   envIntOr("WEBPEEL_THINK_TIME_MIN", 300),
			ThinkTimeMax:   envIntOr("WEBPEEL_THINK_TIME_MAX", 900),
		},
		Log: LogConfig{
			Level:  envOr("WEBPEEL_LOG_LEVEL", "info"),
			Format: envOr("WEBPEEL_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
