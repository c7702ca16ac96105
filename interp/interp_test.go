package interp

import (
	"math"
	"testing"
	"time"

	"github.com/automoto/spraytag-mp/shared/netconfig"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func TestValueEndpoints(t *testing.T) {
	base := time.Unix(100, 0)

	v := NewValue(10)
	v.Set(20, base)

	if got := v.At(base); !approx(got, 10) {
		t.Fatalf("At(set time) = %v, want previous sample 10", got)
	}
	if got := v.At(base.Add(netconfig.ReplicationInterval)); !approx(got, 20) {
		t.Fatalf("At(set+interval) = %v, want latest sample 20", got)
	}
	if got := v.At(base.Add(netconfig.ReplicationInterval / 2)); !approx(got, 15) {
		t.Fatalf("At(midpoint) = %v, want 15", got)
	}
	// Past the interval the value stays pinned at the target.
	if got := v.At(base.Add(5 * netconfig.ReplicationInterval)); !approx(got, 20) {
		t.Fatalf("At(late) = %v, want 20", got)
	}
}

func TestValueShiftsOnSet(t *testing.T) {
	base := time.Unix(100, 0)

	v := NewValue(0)
	v.Set(10, base)
	v.Set(30, base.Add(netconfig.ReplicationInterval))

	// After the second Set, "from" is the previous target, not the value
	// the interpolator happened to be displaying.
	if got := v.At(base.Add(netconfig.ReplicationInterval)); !approx(got, 10) {
		t.Fatalf("At(second set time) = %v, want 10", got)
	}
	if v.Target() != 30 {
		t.Fatalf("Target = %v, want 30", v.Target())
	}
}

func TestAngleWrapsShortestPath(t *testing.T) {
	base := time.Unix(100, 0)

	a := NewAngle(350)
	a.Set(350, base) // pin from=350
	a.Set(10, base)

	if got := a.At(base); !approx(got, 350) {
		t.Fatalf("At(set time) = %v, want 350", got)
	}
	// Halfway must pass through 0, not 180.
	if got := a.At(base.Add(netconfig.ReplicationInterval / 2)); !approx(got, 0) {
		t.Fatalf("At(midpoint) = %v, want 0", got)
	}
	if got := a.At(base.Add(netconfig.ReplicationInterval)); !approx(got, 10) {
		t.Fatalf("At(set+interval) = %v, want 10", got)
	}
}

func TestAngleBackwardWrap(t *testing.T) {
	base := time.Unix(100, 0)

	a := NewAngle(10)
	a.Set(10, base)
	a.Set(350, base)

	if got := a.At(base.Add(netconfig.ReplicationInterval / 2)); !approx(got, 0) {
		t.Fatalf("At(midpoint) = %v, want 0", got)
	}
	if got := a.At(base.Add(netconfig.ReplicationInterval)); !approx(got, 350) {
		t.Fatalf("At(set+interval) = %v, want 350", got)
	}
}
