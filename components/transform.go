package components

import (
	"time"

	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/interp"
	"github.com/automoto/spraytag-mp/shared/wire"
)

// NetTransformData stores interpolation state for smooth rendering of remote
// entities between snapshots. Position and rotation both track the most
// recently received authoritative sample.
type NetTransformData struct {
	X, Y, Z          interp.Value
	Yaw, Pitch, Roll interp.Angle
}

var NetTransform = donburi.NewComponentType[NetTransformData]()

// NewNetTransformData pins a transform at an initial position with zero
// rotation.
func NewNetTransformData(pos wire.Vec3) NetTransformData {
	return NetTransformData{
		X: interp.NewValue(pos.X),
		Y: interp.NewValue(pos.Y),
		Z: interp.NewValue(pos.Z),
	}
}

// SetPosition records a fresh authoritative position sample.
func (t *NetTransformData) SetPosition(pos wire.Vec3, now time.Time) {
	t.X.Set(pos.X, now)
	t.Y.Set(pos.Y, now)
	t.Z.Set(pos.Z, now)
}

// SetRotation records a fresh authoritative rotation sample, in degrees.
func (t *NetTransformData) SetRotation(rot wire.Vec3, now time.Time) {
	t.Yaw.Set(rot.X, now)
	t.Pitch.Set(rot.Y, now)
	t.Roll.Set(rot.Z, now)
}

// Position returns the blended render position at now.
func (t *NetTransformData) Position(now time.Time) wire.Vec3 {
	return wire.Vec3{X: t.X.At(now), Y: t.Y.At(now), Z: t.Z.At(now)}
}

// Rotation returns the blended render rotation at now.
func (t *NetTransformData) Rotation(now time.Time) wire.Vec3 {
	return wire.Vec3{X: t.Yaw.At(now), Y: t.Pitch.At(now), Z: t.Roll.At(now)}
}

// TargetPosition returns the latest authoritative position without blending.
// Owners serialize from this, so snapshots carry true state rather than the
// render view.
func (t *NetTransformData) TargetPosition() wire.Vec3 {
	return wire.Vec3{X: t.X.Target(), Y: t.Y.Target(), Z: t.Z.Target()}
}

// TargetRotation returns the latest authoritative rotation without blending.
func (t *NetTransformData) TargetRotation() wire.Vec3 {
	return wire.Vec3{X: t.Yaw.Target(), Y: t.Pitch.Target(), Z: t.Roll.Target()}
}
