package components

import (
	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/shared/netconfig"
)

// OwnershipData records which peer is authoritative for an entity. Exactly
// one peer has Local set for a given entity at any time; it changes only
// through an explicit transfer, never inferred from transient state.
type OwnershipData struct {
	Owner netconfig.NetworkID
	Local bool // this peer drives simulation for the entity
	Alive bool
}

var Ownership = donburi.NewComponentType[OwnershipData]()
