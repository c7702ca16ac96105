package session

import (
	"context"
	"time"

	"github.com/automoto/spraytag-mp/network"
	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
)

// Run drives the peer from the client's event channels until ctx ends.
// Everything funnels through this one goroutine, which is what lets the
// assembler, directory, and world go unsynchronized.
func Run(ctx context.Context, p *Peer, c *network.Client) error {
	ticker := time.NewTicker(netconfig.ReplicationInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.Envelopes():
			p.HandleEnvelope(wire.PacketKind(env.Kind), env.Payload, time.Now())
		case evt := <-c.Joins():
			p.HandlePeerJoined(netconfig.NetworkID(evt.NetworkID))
		case evt := <-c.Leaves():
			p.HandlePeerLeft(netconfig.NetworkID(evt.NetworkID))
		case now := <-ticker.C:
			p.Tick(now)
		}
	}
}
