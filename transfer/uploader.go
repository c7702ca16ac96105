package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/automoto/spraytag-mp/shared/netconfig"
	"github.com/automoto/spraytag-mp/shared/wire"
)

var (
	// ErrAssetTooLarge means the local payload exceeds the ceiling. It is
	// reported before any packet is emitted.
	ErrAssetTooLarge = errors.New("transfer: asset exceeds maximum size")

	// ErrUploadInFlight means an upload for the local identity is already
	// running; at most one is in flight at a time.
	ErrUploadInFlight = errors.New("transfer: upload already in flight")
)

// SendFunc is the outward broadcast primitive: a packet kind, an exact size
// hint, and a routine that fills the packet.
type SendFunc func(kind wire.PacketKind, size int, fill func(*wire.Writer)) error

type uploadJob struct {
	format netconfig.AssetFormat
	data   []byte
}

// Uploader streams the local spray payload as a transfer-begin packet
// followed by fixed-size chunks, on a background worker so a large upload
// never stalls the simulation goroutine. The worker only reads the job bytes
// and calls send; it never touches shared session state.
type Uploader struct {
	localID netconfig.NetworkID
	send    SendFunc

	jobs   chan uploadJob
	busy   atomic.Bool
	cancel context.CancelFunc
	g      *errgroup.Group
}

func NewUploader(ctx context.Context, localID netconfig.NetworkID, send SendFunc) *Uploader {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	u := &Uploader{
		localID: localID,
		send:    send,
		jobs:    make(chan uploadJob, 1),
		cancel:  cancel,
	}
	u.g = g
	g.Go(func() error {
		return u.run(ctx)
	})
	return u
}

// Enqueue hands a payload to the worker. The capacity ceiling is enforced
// here, before a single packet goes out; a second enqueue while one upload
// is in flight is rejected rather than queued.
func (u *Uploader) Enqueue(format netconfig.AssetFormat, data []byte) error {
	if len(data) > netconfig.MaxAssetBytes {
		return fmt.Errorf("%w: %d bytes", ErrAssetTooLarge, len(data))
	}
	if !u.busy.CompareAndSwap(false, true) {
		return ErrUploadInFlight
	}
	u.jobs <- uploadJob{format: format, data: data}
	return nil
}

// Close cancels the worker and waits for it to exit.
func (u *Uploader) Close() {
	u.cancel()
	_ = u.g.Wait()
}

func (u *Uploader) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-u.jobs:
			if err := EmitTransfer(u.send, u.localID, job.format, job.data); err != nil {
				log.Printf("[transfer] upload failed: %v", err)
			}
			u.busy.Store(false)
		}
	}
}

// EmitTransfer writes one complete transfer onto send: the length
// announcement, then every chunk in order. A zero-length payload is just the
// announcement.
func EmitTransfer(send SendFunc, sender netconfig.NetworkID, format netconfig.AssetFormat, data []byte) error {
	err := send(wire.PacketTransferBegin, wire.TransferBeginSize, func(w *wire.Writer) {
		w.PutID(sender)
		w.PutUint32(uint32(len(data)))
		w.PutUint8(uint8(format))
	})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	for off := 0; off < len(data); off += netconfig.ChunkPayloadSize {
		end := off + netconfig.ChunkPayloadSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		err := send(wire.PacketTransferChunk, wire.ChunkHeaderSize+len(chunk), func(w *wire.Writer) {
			w.PutID(sender)
			w.PutBytes(chunk)
		})
		if err != nil {
			return fmt.Errorf("chunk at %d: %w", off, err)
		}
	}
	return nil
}
