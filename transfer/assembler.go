// Package transfer reassembles large spray payloads from a size-prefixed
// stream of small packets, and uploads local payloads as that same stream.
package transfer

import (
	"errors"
	"fmt"
	"time"

	"github.com/automoto/spraytag-mp/shared/netconfig"
)

var (
	// ErrTooLarge means a transfer-begin announced a payload over the
	// accepted ceiling.
	ErrTooLarge = errors.New("transfer: announced length exceeds ceiling")

	// ErrAlreadyPending means a second transfer-begin arrived while the
	// sender's previous transfer is still in flight. The pending transfer
	// is left untouched; only completion or an explicit cancel clears it.
	ErrAlreadyPending = errors.New("transfer: sender already has a pending transfer")

	// ErrNoTransfer classifies a chunk with no matching pending transfer:
	// the initial length packet was lost. The chunk is discarded and the
	// sender must be asked, out of band, to restart.
	ErrNoTransfer = errors.New("transfer: chunk without pending transfer")

	// ErrChunkOverflow means a chunk claimed more bytes than the transfer
	// has room for. As a safety policy the whole pending transfer is
	// dropped.
	ErrChunkOverflow = errors.New("transfer: chunk overflows announced length")
)

// DeliverFunc receives a fully reassembled payload. The pending entry is
// already removed when it runs.
type DeliverFunc func(sender netconfig.NetworkID, format netconfig.AssetFormat, data []byte)

type pendingTransfer struct {
	format   netconfig.AssetFormat
	buf      []byte
	offset   uint32
	deadline time.Time
}

// Assembler reconstructs one logical payload per sender identity. It is not
// safe for concurrent use: all receive processing happens on the session
// goroutine, and multi-writer access is a bug, not a supported mode.
type Assembler struct {
	maxBytes uint32
	deadline time.Duration
	deliver  DeliverFunc
	pending  map[netconfig.NetworkID]*pendingTransfer
}

func NewAssembler(maxBytes uint32, deadline time.Duration, deliver DeliverFunc) *Assembler {
	return &Assembler{
		maxBytes: maxBytes,
		deadline: deadline,
		deliver:  deliver,
		pending:  make(map[netconfig.NetworkID]*pendingTransfer),
	}
}

// Begin opens a transfer for sender. A zero-length transfer completes
// immediately. A transfer already pending for the sender is never replaced
// implicitly.
func (a *Assembler) Begin(sender netconfig.NetworkID, total uint32, format netconfig.AssetFormat, now time.Time) error {
	if total > a.maxBytes {
		return fmt.Errorf("%w: %d > %d", ErrTooLarge, total, a.maxBytes)
	}
	if _, ok := a.pending[sender]; ok {
		return ErrAlreadyPending
	}
	if total == 0 {
		a.deliver(sender, format, nil)
		return nil
	}
	a.pending[sender] = &pendingTransfer{
		format:   format,
		buf:      make([]byte, total),
		offset:   0,
		deadline: now.Add(a.deadline),
	}
	return nil
}

// Append writes the next chunk of sender's pending transfer. When the final
// byte lands, the payload is delivered and the pending entry removed in the
// same step; the entry can never receive bytes after finalization.
func (a *Assembler) Append(sender netconfig.NetworkID, chunk []byte, now time.Time) error {
	p, ok := a.pending[sender]
	if !ok {
		return ErrNoTransfer
	}

	n := len(chunk)
	if n > netconfig.ChunkPayloadSize {
		n = netconfig.ChunkPayloadSize
	}
	remaining := uint32(len(p.buf)) - p.offset
	if uint32(n) > remaining {
		delete(a.pending, sender)
		return fmt.Errorf("%w: %d bytes with %d remaining", ErrChunkOverflow, n, remaining)
	}

	copy(p.buf[p.offset:], chunk[:n])
	p.offset += uint32(n)
	p.deadline = now.Add(a.deadline)

	if p.offset == uint32(len(p.buf)) {
		delete(a.pending, sender)
		a.deliver(sender, p.format, p.buf)
	}
	return nil
}

// Cancel drops any pending transfer for sender. Used on disconnect.
func (a *Assembler) Cancel(sender netconfig.NetworkID) {
	delete(a.pending, sender)
}

// Reset drops every pending transfer.
func (a *Assembler) Reset() {
	clear(a.pending)
}

// Pending reports whether sender has a transfer in flight, and its progress.
func (a *Assembler) Pending(sender netconfig.NetworkID) (received, total uint32, ok bool) {
	p, pok := a.pending[sender]
	if !pok {
		return 0, 0, false
	}
	return p.offset, uint32(len(p.buf)), true
}

// Expire drops transfers whose deadline has passed and returns their
// senders. The original design could wedge forever on a lost chunk; the
// deadline bounds that.
func (a *Assembler) Expire(now time.Time) []netconfig.NetworkID {
	var dropped []netconfig.NetworkID
	for sender, p := range a.pending {
		if now.After(p.deadline) {
			delete(a.pending, sender)
			dropped = append(dropped, sender)
		}
	}
	return dropped
}
