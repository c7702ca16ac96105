// Package archetypes constructs replicated entities with their component
// sets in one place, so every spawn path produces the same shape of entity.
package archetypes

import (
	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/components"
	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
)

// NewProjectile spawns a replicated projectile-family entity owned by owner.
// The entity is born bound to its owner; there is no unowned steady state.
func NewProjectile(w donburi.World, kind netconfig.EntityKind, owner, localID netconfig.NetworkID, pos, dir wire.Vec3) donburi.Entity {
	e := w.Create(components.Ownership, components.NetTransform, components.Projectile)
	entry := w.Entry(e)

	components.Ownership.Set(entry, &components.OwnershipData{
		Owner: owner,
		Local: owner == localID,
		Alive: true,
	})
	tf := components.NewNetTransformData(pos)
	components.NetTransform.Set(entry, &tf)
	components.Projectile.Set(entry, &components.ProjectileData{
		Kind:      kind,
		Direction: dir,
	})
	return e
}

// NewSpray spawns a decal surface for owner with no image yet; the directory
// fills the image in when the owner's asset arrives or is already cached.
func NewSpray(w donburi.World, owner, localID netconfig.NetworkID, pos wire.Vec3) donburi.Entity {
	e := w.Create(components.Ownership, components.NetTransform, components.Spray)
	entry := w.Entry(e)

	components.Ownership.Set(entry, &components.OwnershipData{
		Owner: owner,
		Local: owner == localID,
		Alive: true,
	})
	tf := components.NewNetTransformData(pos)
	components.NetTransform.Set(entry, &tf)
	components.Spray.Set(entry, &components.SprayData{Owner: owner})
	return e
}
