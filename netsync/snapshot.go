// Package netsync defines how replicated entities go on and off the wire.
// The snapshot field order lives entirely in this file: header, position,
// rotation, then the kind-specific flags listed in netconfig.Caps. Owners
// and non-owners serialize the same layout from the logically current value.
package netsync

import (
	"fmt"
	"time"

	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/components"
	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
)

// KindOf derives the replicated kind of an entity from its component set.
func KindOf(entry *donburi.Entry) netconfig.EntityKind {
	if entry.HasComponent(components.Projectile) {
		return components.Projectile.Get(entry).Kind
	}
	return netconfig.KindSpray
}

// SnapshotSize returns the exact payload size of a snapshot for kind, used
// as the preallocation hint for the broadcast primitive.
func SnapshotSize(kind netconfig.EntityKind) int {
	size := 8 + 1 + 12 + 12 // owner + kind + position + rotation
	caps := netconfig.Caps(kind)
	if caps.HasArmed {
		size++
	}
	if caps.HasRiding {
		size++
	}
	return size
}

// WriteSnapshot serializes the entity's current authoritative state. The
// latest target values are written, never the blended render view, so a
// non-owner relaying state forwards what it last applied.
func WriteSnapshot(w *wire.Writer, entry *donburi.Entry) {
	od := components.Ownership.Get(entry)
	tf := components.NetTransform.Get(entry)
	kind := KindOf(entry)

	w.PutID(od.Owner)
	w.PutUint8(uint8(kind))
	w.PutVec3(tf.TargetPosition())
	w.PutVec3(tf.TargetRotation())

	caps := netconfig.Caps(kind)
	if caps.HasArmed || caps.HasRiding {
		pd := components.Projectile.Get(entry)
		if caps.HasArmed {
			w.PutBool(pd.Armed)
		}
		if caps.HasRiding {
			w.PutBool(pd.Riding)
		}
	}
}

// SnapshotHeader identifies which entity a snapshot belongs to.
type SnapshotHeader struct {
	Owner netconfig.NetworkID
	Kind  netconfig.EntityKind
}

// ReadSnapshotHeader consumes the owner and kind fields so the caller can
// locate the target entity before applying the rest.
func ReadSnapshotHeader(r *wire.Reader) (SnapshotHeader, error) {
	owner, err := r.ID()
	if err != nil {
		return SnapshotHeader{}, fmt.Errorf("snapshot owner: %w", err)
	}
	k, err := r.Uint8()
	if err != nil {
		return SnapshotHeader{}, fmt.Errorf("snapshot kind: %w", err)
	}
	kind := netconfig.EntityKind(k)
	if !netconfig.KnownKind(kind) {
		return SnapshotHeader{}, fmt.Errorf("snapshot kind %d unknown", k)
	}
	return SnapshotHeader{Owner: owner, Kind: kind}, nil
}

// ApplySnapshot decodes the post-header fields and applies them to the
// entity. Positional and rotational values feed the interpolators; flags
// apply immediately. Everything is decoded before anything is applied, so a
// malformed snapshot leaves the entity exactly as it was.
func ApplySnapshot(r *wire.Reader, entry *donburi.Entry, kind netconfig.EntityKind, now time.Time) error {
	pos, err := r.Vec3()
	if err != nil {
		return fmt.Errorf("snapshot position: %w", err)
	}
	rot, err := r.Vec3()
	if err != nil {
		return fmt.Errorf("snapshot rotation: %w", err)
	}

	caps := netconfig.Caps(kind)
	var armed, riding bool
	if caps.HasArmed {
		if armed, err = r.Bool(); err != nil {
			return fmt.Errorf("snapshot armed flag: %w", err)
		}
	}
	if caps.HasRiding {
		if riding, err = r.Bool(); err != nil {
			return fmt.Errorf("snapshot riding flag: %w", err)
		}
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("snapshot for %v carries %d trailing bytes", kind, r.Remaining())
	}

	tf := components.NetTransform.Get(entry)
	tf.SetPosition(pos, now)
	tf.SetRotation(rot, now)

	if caps.HasArmed || caps.HasRiding {
		pd := components.Projectile.Get(entry)
		if caps.HasArmed {
			pd.Armed = armed
		}
		if caps.HasRiding {
			pd.Riding = riding
		}
	}
	return nil
}
