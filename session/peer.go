// Package session runs the peer's single simulation/network goroutine. It
// owns the entity world, the transfer assembler, and the asset directory;
// every inbound packet and membership event is processed here, in arrival
// order, so those tables never see concurrent writers.
package session

import (
	"context"
	"errors"
	"image"
	"log"
	"time"

	"github.com/yohamta/donburi"

	"github.com/automoto/spraytag-mp/archetypes"
	"github.com/automoto/spraytag-mp/components"
	"github.com/automoto/spraytag-mp/directory"
	"github.com/automoto/spraytag-mp/netsync"
	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
	"github.com/automoto/spraytag-mp/transfer"
)

// Broadcaster is the outward send primitive the peer emits packets through.
type Broadcaster interface {
	Broadcast(kind wire.PacketKind, size int, fill func(*wire.Writer)) error
}

// Notifier surfaces user-facing diagnostics (lost transfers, oversized
// sprays). The UI layer supplies a real one; the default just logs.
type Notifier interface {
	Notify(text string)
}

type logNotifier struct{}

func (logNotifier) Notify(text string) { log.Printf("[session] notice: %s", text) }

type entityKey struct {
	owner netconfig.NetworkID
	kind  netconfig.EntityKind
}

// Peer is the local participant's replication state.
type Peer struct {
	localID netconfig.NetworkID
	world   donburi.World
	out     Broadcaster
	hooks   netsync.PhysicsHooks
	notify  Notifier

	assembler *transfer.Assembler
	dir       *directory.Directory
	entities  map[entityKey]donburi.Entity

	// Local spray payload, re-announced whenever a new participant joins.
	localSpray       []byte
	localSprayFormat netconfig.AssetFormat
	uploader         *transfer.Uploader

	lastSnapshot time.Time
}

// Option tweaks peer construction.
type Option func(*Peer)

// WithPhysicsHooks wires the external physics collaborator.
func WithPhysicsHooks(h netsync.PhysicsHooks) Option {
	return func(p *Peer) { p.hooks = h }
}

// WithNotifier wires the user notification collaborator.
func WithNotifier(n Notifier) Option {
	return func(p *Peer) { p.notify = n }
}

// WithApply wires the rendering-side callback that receives decoded spray
// images for live decal entities.
func WithApply(apply directory.ApplyFunc) Option {
	return func(p *Peer) { p.dir = directory.New(apply) }
}

func NewPeer(ctx context.Context, localID netconfig.NetworkID, out Broadcaster, opts ...Option) *Peer {
	p := &Peer{
		localID:  localID,
		world:    donburi.NewWorld(),
		out:      out,
		hooks:    netsync.NopHooks{},
		notify:   logNotifier{},
		entities: make(map[entityKey]donburi.Entity),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dir == nil {
		p.dir = directory.New(p.applyToDecal)
	}
	p.assembler = transfer.NewAssembler(netconfig.MaxAssetBytes, netconfig.TransferDeadline, p.onAssetComplete)
	p.uploader = transfer.NewUploader(ctx, localID, out.Broadcast)
	return p
}

// Close joins the upload worker.
func (p *Peer) Close() {
	p.uploader.Close()
}

// World exposes the entity world to the rendering layer.
func (p *Peer) World() donburi.World { return p.world }

// Directory exposes the cached-asset table, read-only by convention.
func (p *Peer) Directory() *directory.Directory { return p.dir }

// applyToDecal is the default asset push: write the image straight into the
// decal's Spray component for the rendering layer to pick up.
func (p *Peer) applyToDecal(target donburi.Entity, img image.Image) {
	if !p.world.Valid(target) {
		return
	}
	entry := p.world.Entry(target)
	if entry.HasComponent(components.Spray) {
		components.Spray.Get(entry).Image = img
	}
}

// PlaceDecal spawns (or moves) owner's spray decal and binds it to the
// cached asset, so whatever image is known for that owner lands on it
// immediately and any later transfer updates it in place.
func (p *Peer) PlaceDecal(owner netconfig.NetworkID, pos wire.Vec3) donburi.Entity {
	key := entityKey{owner: owner, kind: netconfig.KindSpray}
	if old, ok := p.entities[key]; ok {
		p.dir.ClearTarget(owner)
		p.killEntity(old, key)
	}
	e := archetypes.NewSpray(p.world, owner, p.localID, pos)
	p.entities[key] = e
	p.dir.SetTarget(owner, e)
	return e
}

// --- local actions -------------------------------------------------------

// SetLocalSpray installs the payload announced to new joiners and uploads it
// to the current session. The capacity ceiling is enforced before any packet
// is emitted.
func (p *Peer) SetLocalSpray(format netconfig.AssetFormat, data []byte) error {
	if len(data) > netconfig.MaxAssetBytes {
		p.notify.Notify("spray image is too large to share")
		return transfer.ErrAssetTooLarge
	}
	p.localSpray = data
	p.localSprayFormat = format
	return p.uploadLocalSpray()
}

func (p *Peer) uploadLocalSpray() error {
	if p.localSpray == nil {
		return nil
	}
	err := p.uploader.Enqueue(p.localSprayFormat, p.localSpray)
	switch {
	case errors.Is(err, transfer.ErrUploadInFlight):
		log.Printf("[session] spray upload already in flight, skipping re-send")
		return nil
	case err != nil:
		return err
	}
	return nil
}

// SpawnLocal creates a locally-owned entity and announces it.
func (p *Peer) SpawnLocal(kind netconfig.EntityKind, pos, dir wire.Vec3) (donburi.Entity, error) {
	key := entityKey{owner: p.localID, kind: kind}
	if old, ok := p.entities[key]; ok {
		// One live entity per kind per owner; replace the previous one.
		p.killEntity(old, key)
	}

	e := archetypes.NewProjectile(p.world, kind, p.localID, p.localID, pos, dir)
	p.entities[key] = e
	p.hooks.SetAuthority(e, true)

	err := p.out.Broadcast(spawnPacketKind(kind), wire.SpawnSize, func(w *wire.Writer) {
		w.PutID(p.localID)
		w.PutVec3(pos)
		w.PutVec3(dir)
	})
	if err != nil {
		return e, err
	}
	return e, nil
}

// KillLocal kills a locally-owned entity and broadcasts the directive.
func (p *Peer) KillLocal(kind netconfig.EntityKind) error {
	key := entityKey{owner: p.localID, kind: kind}
	e, ok := p.entities[key]
	if !ok {
		return nil
	}
	p.killEntity(e, key)
	return p.out.Broadcast(wire.PacketEntityKill, wire.EntityKillSize, func(w *wire.Writer) {
		w.PutID(p.localID)
		w.PutUint8(uint8(kind))
	})
}

// GiveOwnership hands a locally-owned entity to another peer and broadcasts
// the transfer directive.
func (p *Peer) GiveOwnership(kind netconfig.EntityKind, to netconfig.NetworkID) error {
	key := entityKey{owner: p.localID, kind: kind}
	e, ok := p.entities[key]
	if !ok {
		return nil
	}
	entry := p.world.Entry(e)
	netsync.TransferOwnership(entry, to, p.localID, p.hooks)
	delete(p.entities, key)
	p.entities[entityKey{owner: to, kind: kind}] = e

	return p.out.Broadcast(wire.PacketOwnershipTransfer, wire.OwnershipTransferSize, func(w *wire.Writer) {
		w.PutUint8(uint8(kind))
		w.PutID(p.localID)
		w.PutID(to)
	})
}

// --- membership ----------------------------------------------------------

// HandlePeerJoined implements the membership-reset policy: a new participant
// has observed none of the prior broadcasts, so every cached asset is
// invalidated and the local spray is announced again.
func (p *Peer) HandlePeerJoined(id netconfig.NetworkID) {
	log.Printf("[session] peer %d joined, resetting asset cache", id)
	p.dir.Reset()
	if err := p.uploadLocalSpray(); err != nil {
		log.Printf("[session] spray re-upload: %v", err)
	}
}

// HandlePeerLeft synchronously cancels the departing peer's pending transfer
// and cached state before any further packet is processed, then destroys the
// entities it owned.
func (p *Peer) HandlePeerLeft(id netconfig.NetworkID) {
	log.Printf("[session] peer %d left", id)
	p.assembler.Cancel(id)
	p.dir.Remove(id)

	for key, e := range p.entities {
		if key.owner == id {
			p.killEntity(e, key)
		}
	}
}

func (p *Peer) killEntity(e donburi.Entity, key entityKey) {
	if p.world.Valid(e) {
		entry := p.world.Entry(e)
		netsync.Kill(entry, p.hooks)
		p.world.Remove(e)
	}
	delete(p.entities, key)
}

// --- inbound packets -----------------------------------------------------

// HandleEnvelope routes one received broadcast packet. Every failure mode is
// local: the packet is logged and dropped, and no table is left partially
// updated.
func (p *Peer) HandleEnvelope(kind wire.PacketKind, payload []byte, now time.Time) {
	switch kind {
	case wire.PacketTransferBegin:
		p.handleTransferBegin(payload, now)
	case wire.PacketTransferChunk:
		p.handleTransferChunk(payload, now)
	case wire.PacketSpawnProjectile:
		p.handleSpawn(netconfig.KindProjectile, payload)
	case wire.PacketSpawnGrenade:
		p.handleSpawn(netconfig.KindGrenade, payload)
	case wire.PacketSpawnCannonball:
		p.handleSpawn(netconfig.KindCannonball, payload)
	case wire.PacketEntitySnapshot:
		p.handleSnapshot(payload, now)
	case wire.PacketEntityKill:
		p.handleKill(payload)
	case wire.PacketOwnershipTransfer:
		p.handleOwnershipTransfer(payload)
	default:
		log.Printf("[session] unknown packet kind %d", kind)
	}
}

func (p *Peer) handleTransferBegin(payload []byte, now time.Time) {
	if len(payload) != wire.TransferBeginSize {
		log.Printf("[session] malformed transfer-begin: %d bytes, want %d", len(payload), wire.TransferBeginSize)
		return
	}
	r := wire.NewReader(payload)
	sender, _ := r.ID()
	total, _ := r.Uint32()
	format, _ := r.Uint8()

	if err := p.assembler.Begin(sender, total, netconfig.AssetFormat(format), now); err != nil {
		log.Printf("[session] transfer-begin from %d rejected: %v", sender, err)
	}
}

func (p *Peer) handleTransferChunk(payload []byte, now time.Time) {
	if len(payload) < wire.ChunkHeaderSize {
		log.Printf("[session] malformed transfer-chunk: %d bytes", len(payload))
		return
	}
	r := wire.NewReader(payload)
	sender, _ := r.ID()

	err := p.assembler.Append(sender, r.Rest(), now)
	switch {
	case errors.Is(err, transfer.ErrNoTransfer):
		// The length announcement was lost. There is no in-band recovery;
		// the sender has to restart the transfer.
		log.Printf("[session] chunk from %d with no pending transfer (initial packet lost?)", sender)
		p.notify.Notify("a spray transfer arrived incomplete; ask the sender to re-share")
	case err != nil:
		log.Printf("[session] transfer-chunk from %d: %v", sender, err)
	}
}

func (p *Peer) onAssetComplete(sender netconfig.NetworkID, format netconfig.AssetFormat, data []byte) {
	if err := p.dir.Assign(sender, format, data); err != nil {
		log.Printf("[session] %v", err)
	}
}

func (p *Peer) handleSpawn(kind netconfig.EntityKind, payload []byte) {
	if len(payload) != wire.SpawnSize {
		log.Printf("[session] malformed spawn: %d bytes, want %d", len(payload), wire.SpawnSize)
		return
	}
	r := wire.NewReader(payload)
	owner, _ := r.ID()
	pos, _ := r.Vec3()
	dir, _ := r.Vec3()

	if owner == p.localID {
		return // own broadcast echoed back
	}

	key := entityKey{owner: owner, kind: kind}
	if old, ok := p.entities[key]; ok {
		p.killEntity(old, key)
	}
	e := archetypes.NewProjectile(p.world, kind, owner, p.localID, pos, dir)
	p.entities[key] = e
	p.hooks.SetAuthority(e, false)
}

func (p *Peer) handleSnapshot(payload []byte, now time.Time) {
	r := wire.NewReader(payload)
	hdr, err := netsync.ReadSnapshotHeader(r)
	if err != nil {
		log.Printf("[session] snapshot dropped: %v", err)
		return
	}
	e, ok := p.entities[entityKey{owner: hdr.Owner, kind: hdr.Kind}]
	if !ok || !p.world.Valid(e) {
		log.Printf("[session] snapshot for unknown %v of %d dropped", hdr.Kind, hdr.Owner)
		return
	}
	entry := p.world.Entry(e)
	if components.Ownership.Get(entry).Local {
		return // we are authoritative; ignore stale echoes
	}
	if err := netsync.ApplySnapshot(r, entry, hdr.Kind, now); err != nil {
		// Entity keeps its last-known state until the next valid snapshot.
		log.Printf("[session] snapshot for %v of %d dropped: %v", hdr.Kind, hdr.Owner, err)
	}
}

func (p *Peer) handleKill(payload []byte) {
	if len(payload) != wire.EntityKillSize {
		log.Printf("[session] malformed kill: %d bytes, want %d", len(payload), wire.EntityKillSize)
		return
	}
	r := wire.NewReader(payload)
	owner, _ := r.ID()
	k, _ := r.Uint8()
	kind := netconfig.EntityKind(k)

	key := entityKey{owner: owner, kind: kind}
	if e, ok := p.entities[key]; ok {
		p.killEntity(e, key)
	}
}

func (p *Peer) handleOwnershipTransfer(payload []byte) {
	if len(payload) != wire.OwnershipTransferSize {
		log.Printf("[session] malformed ownership transfer: %d bytes, want %d", len(payload), wire.OwnershipTransferSize)
		return
	}
	r := wire.NewReader(payload)
	k, _ := r.Uint8()
	from, _ := r.ID()
	to, _ := r.ID()
	kind := netconfig.EntityKind(k)

	key := entityKey{owner: from, kind: kind}
	e, ok := p.entities[key]
	if !ok || !p.world.Valid(e) {
		log.Printf("[session] ownership transfer for unknown %v of %d dropped", kind, from)
		return
	}
	entry := p.world.Entry(e)
	netsync.TransferOwnership(entry, to, p.localID, p.hooks)
	delete(p.entities, key)
	p.entities[entityKey{owner: to, kind: kind}] = e
}

// --- ticking -------------------------------------------------------------

// Tick runs the periodic work: expiring stalled transfers and broadcasting
// snapshots for locally-owned entities at the replication interval.
func (p *Peer) Tick(now time.Time) {
	for _, sender := range p.assembler.Expire(now) {
		log.Printf("[session] transfer from %d timed out", sender)
		p.notify.Notify("a spray transfer timed out; ask the sender to re-share")
	}

	if now.Sub(p.lastSnapshot) < netconfig.ReplicationInterval {
		return
	}
	p.lastSnapshot = now

	for key, e := range p.entities {
		if !p.world.Valid(e) {
			delete(p.entities, key)
			continue
		}
		entry := p.world.Entry(e)
		od := components.Ownership.Get(entry)
		if !od.Local || !od.Alive {
			continue
		}
		size := netsync.SnapshotSize(key.kind)
		err := p.out.Broadcast(wire.PacketEntitySnapshot, size, func(w *wire.Writer) {
			netsync.WriteSnapshot(w, entry)
		})
		if err != nil {
			log.Printf("[session] snapshot broadcast: %v", err)
		}
	}
}

func spawnPacketKind(kind netconfig.EntityKind) wire.PacketKind {
	switch kind {
	case netconfig.KindGrenade:
		return wire.PacketSpawnGrenade
	case netconfig.KindCannonball:
		return wire.PacketSpawnCannonball
	default:
		return wire.PacketSpawnProjectile
	}
}
