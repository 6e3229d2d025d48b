package orchestrate

import (
	"time"

	"github.com/webpeel/webpeel/cache"
	"github.com/webpeel/webpeel/models"
)

// Recommendation is a dynamic tier hint for a URL.
type Recommendation struct {
	Tier string
}

// Intelligence is the pluggable per-domain decision module. A premium
// deployment can wire in a learned implementation; the default degrades
// to a local cache with no recommendations and no racing.
type Intelligence interface {
	// Recommend returns a tier hint for the URL, or nil.
	Recommend(url string) *Recommendation

	// CheckCache looks up a cached result for the URL.
	CheckCache(url string) (*models.FetchResult, cache.State)

	// SetCache stores a result for the URL.
	SetCache(url string, result *models.FetchResult)

	// MarkRevalidating is a try-lock guarding background refresh of one
	// URL; it returns false when a refresh is already running.
	MarkRevalidating(url string) bool

	// DoneRevalidating releases the refresh lock.
	DoneRevalidating(url string)

	// ShouldRace reports whether the direct tier should be raced against
	// the rendered tier. Evaluated once per request.
	ShouldRace() bool

	// RaceTimeout is how long the direct tier runs alone before the race
	// starts.
	RaceTimeout() time.Duration

	// RecordResult reports which tier ultimately served the URL and how
	// long it took. Cached hits are not reported.
	RecordResult(url, method string, elapsedMs int64)
}

// LocalIntelligence is the embedded default: a local response cache,
// no recommendations, and racing only when configured.
type LocalIntelligence struct {
	cache       *cache.Cache
	race        bool
	raceTimeout time.Duration
}

// NewLocalIntelligence wraps a local cache as the Intelligence module.
func NewLocalIntelligence(c *cache.Cache, race bool, raceTimeout time.Duration) *LocalIntelligence {
	return &LocalIntelligence{cache: c, race: race, raceTimeout: raceTimeout}
}

func (l *LocalIntelligence) Recommend(string) *Recommendation { return nil }

func (l *LocalIntelligence) CheckCache(url string) (*models.FetchResult, cache.State) {
	return l.cache.Get(cache.Key(url))
}

func (l *LocalIntelligence) SetCache(url string, result *models.FetchResult) {
	l.cache.Set(cache.Key(url), result)
}

func (l *LocalIntelligence) MarkRevalidating(url string) bool {
	return l.cache.MarkRevalidating(cache.Key(url))
}

func (l *LocalIntelligence) DoneRevalidating(url string) {
	l.cache.DoneRevalidating(cache.Key(url))
}

func (l *LocalIntelligence) ShouldRace() bool { return l.race }

func (l *LocalIntelligence) RaceTimeout() time.Duration { return l.raceTimeout }

func (l *LocalIntelligence) RecordResult(string, string, int64) {}
