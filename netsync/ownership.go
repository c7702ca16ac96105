package netsync

import (
	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/components"
	"github.com/automoto/spraytag-mp/shared/netconfig"
)

// PhysicsHooks is the one-way surface into the external physics layer. The
// core owns its own flags and tells physics what happened; it never reaches
// into the collaborator's internals.
type PhysicsHooks interface {
	// SetAuthority tells physics whether this peer now drives simulation
	// for the entity.
	SetAuthority(e donburi.Entity, local bool)
	// Detonate runs the kind-specific destruction effect.
	Detonate(e donburi.Entity)
}

// NopHooks satisfies PhysicsHooks with no side effects.
type NopHooks struct{}

func (NopHooks) SetAuthority(donburi.Entity, bool) {}
func (NopHooks) Detonate(donburi.Entity)           {}

// TransferOwnership reassigns authority for the entity in one step: the
// owner identity and the local-authority flag change together, so there is
// no window where both or neither side believes it is authoritative.
func TransferOwnership(entry *donburi.Entry, newOwner, localID netconfig.NetworkID, hooks PhysicsHooks) {
	od := components.Ownership.Get(entry)
	od.Owner = newOwner
	od.Local = newOwner == localID
	hooks.SetAuthority(entry.Entity(), od.Local)
}

// Kill moves the entity to its terminal state. Idempotent: a second call is
// a no-op. A grenade's transient detonation flag is reverted before the
// destroy effect runs, so the effect observes consistent disarmed state no
// matter which peer triggered the kill.
func Kill(entry *donburi.Entry, hooks PhysicsHooks) bool {
	od := components.Ownership.Get(entry)
	if !od.Alive {
		return false
	}
	od.Alive = false

	if entry.HasComponent(components.Projectile) {
		pd := components.Projectile.Get(entry)
		if netconfig.Caps(pd.Kind).HasArmed && pd.Armed {
			pd.Armed = false
		}
	}
	hooks.Detonate(entry.Entity())
	return true
}
