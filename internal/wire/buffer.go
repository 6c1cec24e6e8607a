// Package wire implements the framed I/O buffer shared by the BGP and LDP
// engines and the big-endian accessors used to decode their wire formats.
//
// Grounded on original_source/code/bngblaster/src/bgp/bgp_receive.c
// (bgp_rebase_read_buffer, bgp_read) and the equivalent LDP read-buffer
// handling in ldp_session.c.
package wire

import "errors"

// ErrBufferFull is returned when appending would exceed the buffer's
// capacity. The BGP/LDP engines map this to a Cease/Out-of-resources
// session close per spec §5 "Backpressure".
var ErrBufferFull = errors.New("wire: read buffer exhausted")

// Buffer is a flat byte array with a write cursor (Idx, the high-water
// mark) and a read cursor (StartIdx). Invariant: 0 <= StartIdx <= Idx <=
// len(Data).
type Buffer struct {
	Data     []byte
	Idx      int
	StartIdx int
}

// NewBuffer allocates a Buffer with the given fixed capacity.
func NewBuffer(size int) *Buffer {
	return &Buffer{Data: make([]byte, size)}
}

// Unread returns the number of unconsumed bytes, Idx - StartIdx.
func (b *Buffer) Unread() int {
	return b.Idx - b.StartIdx
}

// Tail returns the unread slice [StartIdx, Idx).
func (b *Buffer) Tail() []byte {
	return b.Data[b.StartIdx:b.Idx]
}

// Append copies buf onto the buffer at Idx, advancing Idx. Returns
// ErrBufferFull if there is insufficient remaining capacity — this
// mirrors bgp_receive_cb's "receive error (read buffer exhausted)" check,
// which compares against the total capacity rather than the unread
// region, so a caller is expected to Rebase between drains.
func (b *Buffer) Append(buf []byte) error {
	if b.Idx+len(buf) > len(b.Data) {
		return ErrBufferFull
	}
	copy(b.Data[b.Idx:], buf)
	b.Idx += len(buf)
	return nil
}

// Advance moves StartIdx forward by n bytes after a frame has been
// consumed from the tail.
func (b *Buffer) Advance(n int) {
	b.StartIdx += n
}

// Rebase copies the unread tail [StartIdx, Idx) to offset 0 and resets
// StartIdx to 0, Idx to the tail length. This is the only form of
// compaction (spec §3 "Framed I/O buffer") and must only be called once
// the decode loop can make no further progress.
func (b *Buffer) Rebase() {
	size := b.Unread()
	if size > 0 {
		copy(b.Data, b.Data[b.StartIdx:b.Idx])
	}
	b.StartIdx = 0
	b.Idx = size
}

// Reset discards all buffered content, used on session reconnect.
func (b *Buffer) Reset() {
	b.StartIdx = 0
	b.Idx = 0
}

// -----------------------------------------------------------------------
// Big-endian accessors over a bounds-checked cursor.
//
// Grounded on DESIGN NOTES "Byte-level decoders": read_be_uint/memcpy with
// hand-computed offsets are replaced here by a Cursor whose TryTake(n)
// yields an error on overrun instead of silently reading out of bounds.
// -----------------------------------------------------------------------

// ErrShortRead is returned by Cursor methods when fewer bytes remain than
// requested.
var ErrShortRead = errors.New("wire: short read")

// Cursor is a bounds-checked reader over a byte slice, used to decode BGP
// OPEN optional parameters, capabilities, and LDP TLVs without
// hand-computed offsets.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for bounds-checked reading from offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int {
	return c.pos
}

// TryTake returns the next n bytes and advances the cursor, or
// ErrShortRead if fewer than n bytes remain.
func (c *Cursor) TryTake(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, ErrShortRead
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// TryUint8 reads one byte as an unsigned integer.
func (c *Cursor) TryUint8() (uint8, error) {
	b, err := c.TryTake(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// TryUint16 reads a 2-byte big-endian unsigned integer.
func (c *Cursor) TryUint16() (uint16, error) {
	b, err := c.TryTake(2)
	if err != nil {
		return 0, err
	}
	return BEUint16(b), nil
}

// TryUint32 reads a 4-byte big-endian unsigned integer.
func (c *Cursor) TryUint32() (uint32, error) {
	b, err := c.TryTake(4)
	if err != nil {
		return 0, err
	}
	return BEUint32(b), nil
}

// BEUint16 reads a 2-byte big-endian unsigned integer from the head of buf.
// Panics if len(buf) < 2; callers that cannot guarantee this must use
// Cursor.TryUint16 instead.
func BEUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

// BEUint32 reads a 4-byte big-endian unsigned integer from the head of buf.
func BEUint32(buf []byte) uint32 {
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}

// PutBEUint16 writes a 2-byte big-endian unsigned integer to the head of buf.
func PutBEUint16(buf []byte, v uint16) {
	buf[0] = byte(v >> 8)
	buf[1] = byte(v)
}

// PutBEUint32 writes a 4-byte big-endian unsigned integer to the head of buf.
func PutBEUint32(buf []byte, v uint32) {
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}
