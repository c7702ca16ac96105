// Package network connects a peer to the relay and turns websocket frames
// into typed events for the session goroutine.
package network

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/automoto/spraytag-mp/shared/messages"
	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoined
	StateError
)

// Client manages the websocket connection to the relay.
// All shared fields are protected by mu (the read loop runs on its own
// goroutine); the event channels are drained by the session goroutine.
type Client struct {
	mu sync.RWMutex

	state     ClientState
	lastError error
	networkID netconfig.NetworkID
	relayName string
	conn      *websocket.Conn

	welcomeCh chan messages.Welcome
	envCh     chan messages.Envelope
	joinCh    chan messages.PeerJoined
	leftCh    chan messages.PeerLeft

	cancel context.CancelFunc
	g      *errgroup.Group
}

func NewClient() *Client {
	return &Client{
		state:     StateDisconnected,
		welcomeCh: make(chan messages.Welcome, 1),
		envCh:     make(chan messages.Envelope, 256),
		joinCh:    make(chan messages.PeerJoined, 16),
		leftCh:    make(chan messages.PeerLeft, 16),
	}
}

// Connect dials the relay, sends the join request, and starts the read loop.
// It returns once the connection is up; the Welcome arrives on Welcomes().
func (c *Client) Connect(ctx context.Context, address, version, playerName string) error {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, "ws://"+address+"/ws", nil)
	if err != nil {
		c.setError(fmt.Errorf("connection failed: %w", err))
		return err
	}
	// Spray payloads arrive as many small frames but can total 512 KiB.
	conn.SetReadLimit(netconfig.MaxAssetBytes + 4096)

	frame, err := messages.Marshal(messages.TagJoinRequest, messages.JoinRequest{
		Version:    version,
		PlayerName: playerName,
	})
	if err != nil {
		c.setError(err)
		_ = conn.CloseNow()
		return err
	}
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		err = fmt.Errorf("failed to send join request: %w", err)
		c.setError(err)
		_ = conn.CloseNow()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	g, loopCtx := errgroup.WithContext(loopCtx)

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.cancel = cancel
	c.g = g
	c.mu.Unlock()

	g.Go(func() error {
		return c.readLoop(loopCtx, conn)
	})

	log.Println("[client] connected to relay")
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Printf("[client] disconnected: %v", err)
			c.mu.Lock()
			if c.state != StateError {
				c.state = StateDisconnected
			}
			c.conn = nil
			c.mu.Unlock()
			return err
		}
		c.handleFrame(ctx, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	tag, body, err := messages.Split(data)
	if err != nil {
		log.Printf("[client] dropping frame: %v", err)
		return
	}

	switch tag {
	case messages.TagWelcome:
		var msg messages.Welcome
		if err := messages.Unmarshal(body, &msg); err != nil {
			log.Printf("[client] bad welcome: %v", err)
			return
		}
		log.Printf("[client] joined: networkID=%d relay=%s peers=%d",
			msg.NetworkID, msg.RelayName, len(msg.Peers))
		c.mu.Lock()
		c.networkID = netconfig.NetworkID(msg.NetworkID)
		c.relayName = msg.RelayName
		c.state = StateJoined
		c.mu.Unlock()
		select {
		case c.welcomeCh <- msg:
		default:
		}

	case messages.TagPeerJoined:
		var msg messages.PeerJoined
		if err := messages.Unmarshal(body, &msg); err != nil {
			log.Printf("[client] bad peer-joined: %v", err)
			return
		}
		select {
		case c.joinCh <- msg:
		case <-ctx.Done():
		}

	case messages.TagPeerLeft:
		var msg messages.PeerLeft
		if err := messages.Unmarshal(body, &msg); err != nil {
			log.Printf("[client] bad peer-left: %v", err)
			return
		}
		select {
		case c.leftCh <- msg:
		case <-ctx.Done():
		}

	case messages.TagEnvelope:
		var env messages.Envelope
		if err := messages.Unmarshal(body, &env); err != nil {
			log.Printf("[client] bad envelope: %v", err)
			return
		}
		// Blocking send: envelope order per sender must be preserved,
		// so latest-wins draining is not an option here.
		select {
		case c.envCh <- env:
		case <-ctx.Done():
		}

	default:
		log.Printf("[client] unknown frame tag %d", tag)
	}
}

// Broadcast is the outward send primitive: packet kind, exact payload size,
// and a routine that fills the payload. Safe to call from any goroutine.
func (c *Client) Broadcast(kind wire.PacketKind, size int, fill func(*wire.Writer)) error {
	c.mu.RLock()
	conn := c.conn
	from := c.networkID
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	w := wire.NewWriter(size)
	fill(w)
	if w.Len() != size {
		return fmt.Errorf("packet kind %d: declared %d bytes, wrote %d", kind, size, w.Len())
	}

	frame, err := messages.Marshal(messages.TagEnvelope, messages.Envelope{
		Kind:    uint8(kind),
		From:    uint64(from),
		Payload: w.Bytes(),
	})
	if err != nil {
		return err
	}
	return conn.Write(context.Background(), websocket.MessageBinary, frame)
}

// Disconnect tears the connection down and waits for the read loop to exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	g := c.g
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.CloseNow()
	}
	if g != nil {
		_ = g.Wait()
	}
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) NetworkID() netconfig.NetworkID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.networkID
}

func (c *Client) RelayName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relayName
}

// Welcomes delivers the join acknowledgement.
func (c *Client) Welcomes() <-chan messages.Welcome { return c.welcomeCh }

// Envelopes delivers broadcast game packets in arrival order.
func (c *Client) Envelopes() <-chan messages.Envelope { return c.envCh }

// Joins delivers session membership additions.
func (c *Client) Joins() <-chan messages.PeerJoined { return c.joinCh }

// Leaves delivers session membership departures.
func (c *Client) Leaves() <-chan messages.PeerLeft { return c.leftCh }

func (c *Client) setError(err error) {
	log.Printf("[client] error: %v", err)
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
