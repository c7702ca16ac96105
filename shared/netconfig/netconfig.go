// Package netconfig defines lightweight types and protocol constants shared
// between peers and the relay. It must have zero dependencies on any graphics
// or transport library so the relay binary stays headless.
package netconfig

import "time"

// NetworkID is an opaque identifier naming a session participant. Assigned by
// the relay on join; unique for the lifetime of a session.
type NetworkID uint64

const (
	// ChunkPayloadSize is the number of spray bytes carried by one
	// transfer-chunk packet. The final chunk of a transfer is naturally
	// shorter.
	ChunkPayloadSize = 240

	// MaxAssetBytes is the largest spray image accepted for transfer.
	// Anything larger is rejected locally before a single packet goes out.
	MaxAssetBytes = 512 << 10

	// MaxSprayFiles caps how many files the spray browser enumerates.
	MaxSprayFiles = 64

	// MaxSprayDim is the longest edge a decoded spray is fitted to.
	MaxSprayDim = 256
)

const (
	// ReplicationInterval is how often an owner broadcasts entity
	// snapshots. Interpolators blend over this same interval on the
	// receiving side.
	ReplicationInterval = 100 * time.Millisecond

	// TransferDeadline bounds how long a pending spray transfer may sit
	// without completing before it is dropped and the sender has to
	// restart.
	TransferDeadline = 15 * time.Second
)

// AssetFormat tags the encoding of a transferred spray payload so the
// receiver knows which decoder to run.
type AssetFormat uint8

const (
	FormatRaw AssetFormat = iota
	FormatPNG
	FormatJPEG
	FormatBMP
	FormatWebP
)

// EntityKind tags a replicated entity and determines its wire layout.
type EntityKind uint8

const (
	KindProjectile EntityKind = iota + 1
	KindGrenade
	KindCannonball
	KindSpray
)

// KindCaps describes which optional snapshot fields a kind carries. Keeping
// this in one table makes the snapshot field order verifiable in one place.
type KindCaps struct {
	HasArmed  bool // grenade-style transient detonation flag
	HasRiding bool // cannonball-style passenger flag
}

var kindCaps = map[EntityKind]KindCaps{
	KindProjectile: {},
	KindGrenade:    {HasArmed: true},
	KindCannonball: {HasRiding: true},
	KindSpray:      {},
}

// Caps returns the capability flags for kind. Unknown kinds have no
// capabilities.
func Caps(kind EntityKind) KindCaps {
	return kindCaps[kind]
}

// KnownKind reports whether kind is part of the protocol.
func KnownKind(kind EntityKind) bool {
	_, ok := kindCaps[kind]
	return ok
}

func (k EntityKind) String() string {
	switch k {
	case KindProjectile:
		return "projectile"
	case KindGrenade:
		return "grenade"
	case KindCannonball:
		return "cannonball"
	case KindSpray:
		return "spray"
	default:
		return "unknown"
	}
}
