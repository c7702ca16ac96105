// Package messages defines the lobby protocol spoken between peers and the
// relay: a one-byte frame tag followed by a msgpack body. Entity and
// transfer packets ride inside Envelope frames and keep their own fixed
// binary layout (shared/wire); msgpack is only the outer plumbing.
package messages

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

// Frame tags.
const (
	TagJoinRequest byte = iota + 1
	TagWelcome
	TagPeerJoined
	TagPeerLeft
	TagEnvelope
)

// ErrEmptyFrame means a websocket message arrived with no tag byte.
var ErrEmptyFrame = errors.New("messages: empty frame")

// JoinRequest is sent by a peer right after connecting.
type JoinRequest struct {
	Version    string
	PlayerName string
}

// Welcome is the relay's reply: the peer's assigned identity and who else is
// in the session.
type Welcome struct {
	NetworkID uint64
	Peers     []uint64
	RelayName string
}

// PeerJoined is broadcast when a new participant enters the session.
type PeerJoined struct {
	NetworkID  uint64
	PlayerName string
}

// PeerLeft is broadcast when a participant disconnects.
type PeerLeft struct {
	NetworkID uint64
}

// Envelope wraps one broadcast game packet. From is stamped by the relay so
// peers cannot spoof each other.
type Envelope struct {
	Kind    uint8
	From    uint64
	Payload []byte
}

var mh codec.MsgpackHandle

// Marshal frames v under tag.
func Marshal(tag byte, v any) ([]byte, error) {
	var body []byte
	enc := codec.NewEncoderBytes(&body, &mh)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", tag, err)
	}
	frame := make([]byte, 0, 1+len(body))
	frame = append(frame, tag)
	return append(frame, body...), nil
}

// Split separates a received frame into its tag and msgpack body.
func Split(frame []byte) (byte, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrEmptyFrame
	}
	return frame[0], frame[1:], nil
}

// Unmarshal decodes a frame body into v.
func Unmarshal(body []byte, v any) error {
	dec := codec.NewDecoderBytes(body, &mh)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode frame body: %w", err)
	}
	return nil
}
