package main

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/automoto/spraytag-mp/shared/messages"
	"github.com/automoto/spraytag-mp/shared/netconfig"
)

type peerConn struct {
	id   uint64
	name string
	conn *websocket.Conn

	// Serializes writes so a peer's frames reach each recipient in the
	// order they were relayed. The transport guarantee the protocol leans
	// on (ordered per sender) is made here.
	mu sync.Mutex
}

func (p *peerConn) send(ctx context.Context, frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Write(ctx, websocket.MessageBinary, frame)
}

// Hub tracks connected peers and fans envelopes out to everyone else.
type Hub struct {
	name    string
	version string

	mu     sync.RWMutex
	peers  map[uint64]*peerConn
	nextID uint64
}

func NewHub(name, version string) *Hub {
	return &Hub{
		name:    name,
		version: version,
		peers:   make(map[uint64]*peerConn),
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[relay] accept: %v", err)
		return
	}
	conn.SetReadLimit(netconfig.MaxAssetBytes + 4096)

	ctx := r.Context()

	// The first frame must be the join request.
	_, frame, err := conn.Read(ctx)
	if err != nil {
		_ = conn.CloseNow()
		return
	}
	tag, body, err := messages.Split(frame)
	if err != nil || tag != messages.TagJoinRequest {
		log.Printf("[relay] connection did not open with a join request")
		_ = conn.Close(websocket.StatusProtocolError, "expected join request")
		return
	}
	var join messages.JoinRequest
	if err := messages.Unmarshal(body, &join); err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "bad join request")
		return
	}
	if h.version != "" && join.Version != h.version {
		log.Printf("[relay] rejecting %q: version %q, want %q", join.PlayerName, join.Version, h.version)
		_ = conn.Close(websocket.StatusPolicyViolation, "version mismatch")
		return
	}

	peer := h.register(conn, join.PlayerName)
	log.Printf("[relay] peer %d (%s) joined", peer.id, peer.name)

	if err := h.welcome(ctx, peer); err != nil {
		log.Printf("[relay] welcome to %d failed: %v", peer.id, err)
		h.unregister(ctx, peer)
		return
	}
	h.broadcastFrom(ctx, peer.id, mustMarshal(messages.TagPeerJoined, messages.PeerJoined{
		NetworkID:  peer.id,
		PlayerName: peer.name,
	}))

	h.readLoop(ctx, peer)
	h.unregister(ctx, peer)
}

func (h *Hub) register(conn *websocket.Conn, name string) *peerConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	p := &peerConn{id: h.nextID, name: name, conn: conn}
	h.peers[p.id] = p
	return p
}

func (h *Hub) unregister(ctx context.Context, peer *peerConn) {
	h.mu.Lock()
	_, present := h.peers[peer.id]
	delete(h.peers, peer.id)
	h.mu.Unlock()
	if !present {
		return
	}

	log.Printf("[relay] peer %d (%s) left", peer.id, peer.name)
	_ = peer.conn.CloseNow()
	h.broadcastFrom(ctx, peer.id, mustMarshal(messages.TagPeerLeft, messages.PeerLeft{
		NetworkID: peer.id,
	}))
}

func (h *Hub) welcome(ctx context.Context, peer *peerConn) error {
	h.mu.RLock()
	others := make([]uint64, 0, len(h.peers)-1)
	for id := range h.peers {
		if id != peer.id {
			others = append(others, id)
		}
	}
	h.mu.RUnlock()

	frame, err := messages.Marshal(messages.TagWelcome, messages.Welcome{
		NetworkID: peer.id,
		Peers:     others,
		RelayName: h.name,
	})
	if err != nil {
		return err
	}
	return peer.send(ctx, frame)
}

func (h *Hub) readLoop(ctx context.Context, peer *peerConn) {
	for {
		_, frame, err := peer.conn.Read(ctx)
		if err != nil {
			return
		}
		tag, body, err := messages.Split(frame)
		if err != nil || tag != messages.TagEnvelope {
			log.Printf("[relay] peer %d sent unexpected frame tag, dropping", peer.id)
			continue
		}

		var env messages.Envelope
		if err := messages.Unmarshal(body, &env); err != nil {
			log.Printf("[relay] peer %d sent undecodable envelope: %v", peer.id, err)
			continue
		}
		// Stamp the sender; peers cannot spoof each other.
		env.From = peer.id
		out, err := messages.Marshal(messages.TagEnvelope, env)
		if err != nil {
			log.Printf("[relay] re-frame envelope: %v", err)
			continue
		}
		h.broadcastFrom(ctx, peer.id, out)
	}
}

// broadcastFrom sends frame to every peer except the originator.
func (h *Hub) broadcastFrom(ctx context.Context, from uint64, frame []byte) {
	h.mu.RLock()
	targets := make([]*peerConn, 0, len(h.peers))
	for id, p := range h.peers {
		if id != from {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range targets {
		if err := p.send(ctx, frame); err != nil {
			log.Printf("[relay] send to %d: %v", p.id, err)
		}
	}
}

func mustMarshal(tag byte, v any) []byte {
	frame, err := messages.Marshal(tag, v)
	if err != nil {
		// Lobby structs always encode; this is a programming error.
		panic(err)
	}
	return frame
}
