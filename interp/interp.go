// Package interp smooths values that arrive at discrete replication
// intervals into continuous values for rendering. Each interpolator keeps
// the last two authoritative samples and blends between them as a pure
// function of wall-clock time; it is safe to query every render tick.
package interp

import (
	"math"
	"time"

	"github.com/tanema/gween/ease"

	"github.com/automoto/spraytag-mp/shared/netconfig"
)

// Value linearly interpolates a scalar between the previous and latest
// authoritative sample over one replication interval.
type Value struct {
	from, to float32
	setAt    time.Time
}

// NewValue returns an interpolator pinned at v.
func NewValue(v float32) Value {
	return Value{from: v, to: v}
}

// Set records a fresh authoritative sample: the current target becomes the
// starting point and now becomes the blend origin.
func (v *Value) Set(next float32, now time.Time) {
	v.from = v.to
	v.to = next
	v.setAt = now
}

// Target returns the latest authoritative sample without blending.
func (v *Value) Target() float32 {
	return v.to
}

// At returns the blended value at the given time. At the instant of the last
// Set it returns the previous sample; one replication interval later it has
// fully reached the latest one.
func (v *Value) At(now time.Time) float32 {
	return ease.Linear(v.fraction(now), v.from, v.to-v.from, 1)
}

func (v *Value) fraction(now time.Time) float32 {
	if v.setAt.IsZero() {
		return 1
	}
	t := float32(now.Sub(v.setAt)) / float32(netconfig.ReplicationInterval)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// Angle interpolates a value in degrees, always taking the shortest angular
// path so a step from 350 to 10 passes through 0 rather than back through
// 180.
type Angle struct {
	from, to float32
	setAt    time.Time
}

func NewAngle(deg float32) Angle {
	return Angle{from: deg, to: deg}
}

func (a *Angle) Set(next float32, now time.Time) {
	a.from = a.to
	a.to = next
	a.setAt = now
}

func (a *Angle) Target() float32 {
	return a.to
}

func (a *Angle) At(now time.Time) float32 {
	v := Value{from: a.from, to: a.to, setAt: a.setAt}
	delta := shortestDelta(a.from, a.to)
	return normalizeDeg(ease.Linear(v.fraction(now), a.from, delta, 1))
}

// shortestDelta returns the signed degrees to travel from a to b along the
// shorter arc, in [-180, 180).
func shortestDelta(from, to float32) float32 {
	d := normalizeDeg(to - from)
	if d >= 180 {
		d -= 360
	}
	return d
}

func normalizeDeg(deg float32) float32 {
	d := float32(math.Mod(float64(deg), 360))
	if d < 0 {
		d += 360
	}
	return d
}
