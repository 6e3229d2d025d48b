package humanize

import (
	"math"
	"math/rand"
	"time"
)

// pathStep is one point of a pointer trajectory with the pause before
// moving to it.
type pathStep struct {
	pos   Point
	delay time.Duration
}

const (
	minPathPoints = 8
	maxPathPoints = 30

	// minControlSpread keeps even short movements visibly curved.
	minControlSpread = 50.0

	// pointJitter is the per-point random nudge in pixels.
	pointJitter = 1.5
)

// pointerPath builds a cubic Bezier trajectory from `from` to `to`.
// The two control points are offset from the midpoint of the straight
// line, with spread proportional to travel distance, so longer movements
// arc wider. Each intermediate point carries +-1.5px of jitter and an
// ease-in-out delay: slow leaving the start, up to 50% faster through the
// middle, slow again on approach. The final step lands exactly on the
// target.
func pointerPath(rng *rand.Rand, from, to Point, moveSpeed float64) []pathStep {
	dx := to.X - from.X
	dy := to.Y - from.Y
	dist := math.Hypot(dx, dy)

	spread := dist * 0.25
	if spread < minControlSpread {
		spread = minControlSpread
	}

	mid := Point{X: from.X + dx/2, Y: from.Y + dy/2}
	c1 := Point{
		X: mid.X + (rng.Float64()*2-1)*spread,
		Y: mid.Y + (rng.Float64()*2-1)*spread,
	}
	c2 := Point{
		X: mid.X + (rng.Float64()*2-1)*spread,
		Y: mid.Y + (rng.Float64()*2-1)*spread,
	}

	steps := minPathPoints + int(dist/50)
	if steps > maxPathPoints {
		steps = maxPathPoints
	}

	if moveSpeed <= 0 {
		moveSpeed = 1.0
	}
	// Total travel time grows sublinearly with distance, like a real hand.
	totalMs := (120 + dist*0.6) / moveSpeed
	baseStepMs := totalMs / float64(steps)

	path := make([]pathStep, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := cubicBezier(from, c1, c2, to, t)
		if i < steps {
			p.X += (rng.Float64()*2 - 1) * pointJitter
			p.Y += (rng.Float64()*2 - 1) * pointJitter
		} else {
			p = to
		}

		// Sinusoidal ease-in-out: factor 1.0 at the endpoints, 0.5 at
		// the midpoint of the movement.
		pace := 1.0 - 0.5*math.Sin(math.Pi*t)
		delay := time.Duration(baseStepMs * pace * float64(time.Millisecond))
		path = append(path, pathStep{pos: p, delay: delay})
	}
	return path
}

// cubicBezier evaluates the curve at parameter t in [0, 1].
func cubicBezier(p0, c1, c2, p1 Point, t float64) Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*c1.X + c*c2.X + d*p1.X,
		Y: a*p0.Y + b*c1.Y + c*c2.Y + d*p1.Y,
	}
}
