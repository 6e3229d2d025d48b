package humanize

import (
	"math"
	"math/rand"
	"time"
)

// gaussian draws a standard-normal value via the Box-Muller transform.
// The polar form of NormFloat64 would do, but Box-Muller keeps the
// distribution explicit and easy to reason about in the delay math.
func gaussian(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// delayBetween draws a delay from a Gaussian centered on the midpoint of
// [minMs, maxMs] with stddev (max-min)/6, so about 99.7% of draws land
// inside the bounds, then clamps the stragglers. The result is always
// within [minMs, maxMs] inclusive.
func delayBetween(rng *rand.Rand, minMs, maxMs float64) time.Duration {
	if maxMs < minMs {
		minMs, maxMs = maxMs, minMs
	}
	mean := (minMs + maxMs) / 2
	stddev := (maxMs - minMs) / 6
	v := mean + gaussian(rng)*stddev
	if v < minMs {
		v = minMs
	}
	if v > maxMs {
		v = maxMs
	}
	return time.Duration(v * float64(time.Millisecond))
}

// jitterAround draws a delay from a Gaussian centered on base with the
// given relative spread, floored at min. Used where an exact upper bound
// is not required (inter-chunk scroll pacing).
func jitterAround(rng *rand.Rand, base time.Duration, spread float64, min time.Duration) time.Duration {
	ms := float64(base.Milliseconds())
	v := ms + gaussian(rng)*ms*spread
	d := time.Duration(v * float64(time.Millisecond))
	if d < min {
		d = min
	}
	return d
}
