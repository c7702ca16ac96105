package session

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/automoto/spraytag-mp/components"
	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
	"github.com/automoto/spraytag-mp/transfer"
)

type sentPacket struct {
	kind    wire.PacketKind
	payload []byte
}

// capture implements Broadcaster by recording packets instead of sending.
type capture struct {
	pkts []sentPacket
}

func (c *capture) Broadcast(kind wire.PacketKind, size int, fill func(*wire.Writer)) error {
	w := wire.NewWriter(size)
	fill(w)
	c.pkts = append(c.pkts, sentPacket{kind: kind, payload: w.Bytes()})
	return nil
}

func (c *capture) drainTo(p *Peer, now time.Time) {
	pkts := c.pkts
	c.pkts = nil
	for _, pkt := range pkts {
		p.HandleEnvelope(pkt.kind, pkt.payload, now)
	}
}

type countingNotifier struct {
	notices []string
}

func (n *countingNotifier) Notify(text string) { n.notices = append(n.notices, text) }

func newTestPeer(t *testing.T, id netconfig.NetworkID, opts ...Option) (*Peer, *capture) {
	t.Helper()
	out := &capture{}
	p := NewPeer(context.Background(), id, out, opts...)
	t.Cleanup(p.Close)
	return p, out
}

func TestSprayTransferBetweenPeers(t *testing.T) {
	now := time.Unix(2000, 0)
	receiver, _ := newTestPeer(t, 2)

	// Emit a full transfer as peer 1 and replay it into peer 2.
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	var sender capture
	if err := transfer.EmitTransfer(sender.Broadcast, 1, netconfig.FormatPNG, buf.Bytes()); err != nil {
		t.Fatalf("EmitTransfer: %v", err)
	}
	sender.drainTo(receiver, now)

	if !receiver.Directory().Has(1) {
		t.Fatal("completed transfer did not populate the directory")
	}
	asset := receiver.Directory().GetOrCreate(1)
	if !bytes.Equal(asset.Raw, buf.Bytes()) {
		t.Fatal("reassembled payload does not match the uploaded bytes")
	}
	if asset.Image == nil || asset.Image.Bounds().Dx() != 8 {
		t.Fatal("payload was not decoded into the cached image")
	}
}

func TestMalformedTransferBeginIgnored(t *testing.T) {
	now := time.Unix(2000, 0)
	notifier := &countingNotifier{}
	p, _ := newTestPeer(t, 2, WithNotifier(notifier))

	// Announcement one byte short: must be rejected without creating state.
	w := wire.NewWriter(wire.TransferBeginSize - 1)
	w.PutID(1)
	w.PutUint32(100)
	p.HandleEnvelope(wire.PacketTransferBegin, w.Bytes(), now)

	// The follow-up chunk is now an orphan, which proves the malformed
	// announcement never touched the assembler.
	cw := wire.NewWriter(wire.ChunkHeaderSize + 10)
	cw.PutID(1)
	cw.PutBytes(make([]byte, 10))
	p.HandleEnvelope(wire.PacketTransferChunk, cw.Bytes(), now)

	if len(notifier.notices) != 1 {
		t.Fatalf("expected one lost-transfer notice, got %v", notifier.notices)
	}
	if p.Directory().Has(1) {
		t.Fatal("malformed transfer produced a cached asset")
	}
}

func TestSpawnSnapshotKillFlow(t *testing.T) {
	now := time.Unix(2000, 0)
	owner, ownerOut := newTestPeer(t, 1)
	replica, _ := newTestPeer(t, 2)

	if _, err := owner.SpawnLocal(netconfig.KindGrenade, wire.Vec3{X: 1}, wire.Vec3{Z: 1}); err != nil {
		t.Fatalf("SpawnLocal: %v", err)
	}
	ownerOut.drainTo(replica, now)

	key := entityKey{owner: 1, kind: netconfig.KindGrenade}
	e, ok := replica.entities[key]
	if !ok {
		t.Fatal("replica did not spawn the remote entity")
	}
	entry := replica.world.Entry(e)
	if components.Ownership.Get(entry).Local {
		t.Fatal("replica believes it owns a remote entity")
	}

	// Owner moves and arms the grenade, then replicates a snapshot.
	ownEntry := owner.world.Entry(owner.entities[key])
	components.NetTransform.Get(ownEntry).SetPosition(wire.Vec3{X: 50, Y: 1, Z: 2}, now)
	components.Projectile.Get(ownEntry).Armed = true
	owner.Tick(now)
	ownerOut.drainTo(replica, now)

	tf := components.NetTransform.Get(entry)
	if tf.TargetPosition() != (wire.Vec3{X: 50, Y: 1, Z: 2}) {
		t.Fatalf("snapshot target position = %+v", tf.TargetPosition())
	}
	if !components.Projectile.Get(entry).Armed {
		t.Fatal("armed flag did not replicate")
	}

	// Kill directive destroys the replica.
	if err := owner.KillLocal(netconfig.KindGrenade); err != nil {
		t.Fatalf("KillLocal: %v", err)
	}
	ownerOut.drainTo(replica, now)
	if _, ok := replica.entities[key]; ok {
		t.Fatal("replica entity survived the kill directive")
	}
}

func TestSnapshotForUnknownEntityDropped(t *testing.T) {
	now := time.Unix(2000, 0)
	p, _ := newTestPeer(t, 2)

	w := wire.NewWriter(64)
	w.PutID(9)
	w.PutUint8(uint8(netconfig.KindProjectile))
	w.PutVec3(wire.Vec3{})
	w.PutVec3(wire.Vec3{})
	p.HandleEnvelope(wire.PacketEntitySnapshot, w.Bytes(), now)

	if len(p.entities) != 0 {
		t.Fatal("snapshot for unknown entity created one")
	}
}

func TestOwnershipTransferBetweenPeers(t *testing.T) {
	now := time.Unix(2000, 0)
	giver, giverOut := newTestPeer(t, 1)
	taker, _ := newTestPeer(t, 2)

	if _, err := giver.SpawnLocal(netconfig.KindCannonball, wire.Vec3{}, wire.Vec3{}); err != nil {
		t.Fatalf("SpawnLocal: %v", err)
	}
	giverOut.drainTo(taker, now)

	if err := giver.GiveOwnership(netconfig.KindCannonball, 2); err != nil {
		t.Fatalf("GiveOwnership: %v", err)
	}
	giverOut.drainTo(taker, now)

	// Giver no longer authoritative, taker now is. Never both, never
	// neither.
	gKey := entityKey{owner: 2, kind: netconfig.KindCannonball}
	gEntry := giver.world.Entry(giver.entities[gKey])
	tEntry := taker.world.Entry(taker.entities[gKey])
	gOwns := components.Ownership.Get(gEntry).Local
	tOwns := components.Ownership.Get(tEntry).Local
	if gOwns || !tOwns {
		t.Fatalf("authority after transfer: giver=%v taker=%v", gOwns, tOwns)
	}
}

func TestMembershipHandlers(t *testing.T) {
	now := time.Unix(2000, 0)
	p, _ := newTestPeer(t, 2)

	// Cache assets for two peers and an entity for one of them.
	var feed capture
	_ = transfer.EmitTransfer(feed.Broadcast, 1, netconfig.FormatRaw, nil)
	_ = transfer.EmitTransfer(feed.Broadcast, 3, netconfig.FormatRaw, nil)
	feed.drainTo(p, now)

	spawn := wire.NewWriter(wire.SpawnSize)
	spawn.PutID(3)
	spawn.PutVec3(wire.Vec3{})
	spawn.PutVec3(wire.Vec3{})
	p.HandleEnvelope(wire.PacketSpawnProjectile, spawn.Bytes(), now)

	// Departure clears exactly that peer's state.
	p.HandlePeerLeft(3)
	if p.Directory().Has(3) {
		t.Fatal("departed peer's asset survived")
	}
	if !p.Directory().Has(1) {
		t.Fatal("departure cleared an unrelated peer's asset")
	}
	if _, ok := p.entities[entityKey{owner: 3, kind: netconfig.KindProjectile}]; ok {
		t.Fatal("departed peer's entity survived")
	}

	// A join wipes the whole cache.
	p.HandlePeerJoined(9)
	if p.Directory().Len() != 0 {
		t.Fatal("join did not reset the asset cache")
	}
}

func TestPlaceDecalReceivesCachedImage(t *testing.T) {
	now := time.Unix(2000, 0)
	p, _ := newTestPeer(t, 2)

	var feed capture
	_ = transfer.EmitTransfer(feed.Broadcast, 1, netconfig.FormatRaw, nil)
	feed.drainTo(p, now)

	decal := p.PlaceDecal(1, wire.Vec3{X: 4})
	entry := p.world.Entry(decal)
	if components.Spray.Get(entry).Image == nil {
		t.Fatal("decal did not receive the cached image on placement")
	}
}
