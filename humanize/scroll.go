package humanize

import (
	"math/rand"
	"time"
)

// scrollChunk is one wheel burst of a scroll plan.
type scrollChunk struct {
	dy        float64
	drift     float64 // horizontal pointer drift before the burst
	delay     time.Duration
	readPause time.Duration // extra pause after the burst, 0 for none
}

const (
	minScrollChunks = 4
	maxScrollChunks = 12

	reversalChance  = 0.15
	readPauseChance = 0.25
)

// scrollPlan splits a total scroll distance into 4-12 uneven chunks.
// Most chunks take 10-35% of the remaining distance; roughly 15% of
// non-final chunks are small reversals, the way a reader backtracks a few
// lines; the final chunk absorbs whatever is left, so the plan's deltas
// always sum to exactly `distance`. Chunk pacing spreads `duration`
// across the remaining chunks with Gaussian jitter, and about a quarter
// of the chunks append a longer reading pause.
func scrollPlan(rng *rand.Rand, distance float64, duration time.Duration) []scrollChunk {
	n := minScrollChunks + rng.Intn(maxScrollChunks-minScrollChunks+1)
	remaining := distance
	plan := make([]scrollChunk, 0, n)
	remainingDur := duration

	for i := 0; i < n-1; i++ {
		var dy float64
		if rng.Float64() < reversalChance {
			// Scroll back up a little; the distance gets re-covered later.
			dy = -(20 + rng.Float64()*60)
		} else {
			frac := 0.10 + rng.Float64()*0.25
			dy = remaining * frac
		}
		remaining -= dy

		perChunk := remainingDur / time.Duration(n-i)
		delay := jitterAround(rng, perChunk, 0.3, 30*time.Millisecond)
		remainingDur -= delay
		if remainingDur < 0 {
			remainingDur = 0
		}

		chunk := scrollChunk{
			dy:    dy,
			drift: (rng.Float64()*2 - 1) * 12,
			delay: delay,
		}
		if rng.Float64() < readPauseChance {
			chunk.readPause = delayBetween(rng, 500, 1500)
		}
		plan = append(plan, chunk)
	}

	final := scrollChunk{
		dy:    remaining,
		drift: (rng.Float64()*2 - 1) * 12,
		delay: jitterAround(rng, remainingDur, 0.3, 30*time.Millisecond),
	}
	if rng.Float64() < readPauseChance {
		final.readPause = delayBetween(rng, 500, 1500)
	}
	return append(plan, final)
}
