package components

import (
	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
)

// ProjectileData is the kind tag plus the kind-specific replicated flags.
// Which flags are actually serialized is decided by netconfig.Caps, so the
// wire layout stays centrally verifiable.
type ProjectileData struct {
	Kind      netconfig.EntityKind
	Direction wire.Vec3
	Armed     bool // grenade: transient detonation flag
	Riding    bool // cannonball: passenger aboard
}

var Projectile = donburi.NewComponentType[ProjectileData]()
