// Package wire implements the fixed binary packet layouts exchanged between
// peers. All integers are little-endian and all fields are read and written
// in the exact order declared here; there are no self-describing tags on the
// wire.
package wire

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/automoto/spraytag-mp/shared/netconfig"
)

// PacketKind identifies a broadcast packet. It travels in the transport
// envelope, not in the payload itself.
type PacketKind uint8

const (
	PacketTransferBegin PacketKind = iota + 1
	PacketTransferChunk
	PacketSpawnProjectile
	PacketSpawnGrenade
	PacketSpawnCannonball
	PacketEntitySnapshot
	PacketEntityKill
	PacketOwnershipTransfer
)

// Fixed payload sizes. A packet of a fixed-size kind whose payload length
// differs is malformed and must be dropped without touching any state.
const (
	TransferBeginSize     = 13 // sender u64 + total length u32 + format u8
	ChunkHeaderSize       = 8  // sender u64, followed by up to ChunkPayloadSize raw bytes
	SpawnSize             = 32 // owner u64 + position vec3 + direction vec3
	EntityKillSize        = 9  // owner u64 + kind u8
	OwnershipTransferSize = 17 // kind u8 + from u64 + to u64
)

// ErrShortBuffer is returned when a read runs past the end of the packet.
// Decoding never zero-fills.
var ErrShortBuffer = errors.New("wire: read past end of buffer")

// Vec3 is the on-wire 3D vector: three float32s, twelve bytes.
type Vec3 struct {
	X, Y, Z float32
}

// Writer appends protocol primitives to an outgoing packet buffer. Callers
// declare the expected serialized size up front so the buffer is allocated
// once.
type Writer struct {
	buf []byte
}

func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) PutUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) PutUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) PutUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) PutFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) PutVec3(v Vec3) {
	w.PutFloat32(v.X)
	w.PutFloat32(v.Y)
	w.PutFloat32(v.Z)
}

func (w *Writer) PutID(id netconfig.NetworkID) {
	w.PutUint64(uint64(id))
}

// PutBytes appends a raw byte range with no length prefix; framing is the
// caller's responsibility.
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the assembled packet payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}

// Reader consumes protocol primitives from an incoming packet buffer,
// tracking a cursor position.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the total payload length.
func (r *Reader) Len() int {
	return len(r.buf)
}

// Remaining returns how many bytes have not been consumed yet.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Bool() (bool, error) {
	b, err := r.Uint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) Vec3() (Vec3, error) {
	var v Vec3
	var err error
	if v.X, err = r.Float32(); err != nil {
		return Vec3{}, err
	}
	if v.Y, err = r.Float32(); err != nil {
		return Vec3{}, err
	}
	if v.Z, err = r.Float32(); err != nil {
		return Vec3{}, err
	}
	return v, nil
}

func (r *Reader) ID() (netconfig.NetworkID, error) {
	v, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return netconfig.NetworkID(v), nil
}

// Bytes consumes exactly n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}

// Rest consumes and returns everything after the cursor.
func (r *Reader) Rest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}
