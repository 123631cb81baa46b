// Package buffer implements CompositeByteBuffer, the append-and-compact byte
// buffer that unifies leftover bytes from a previous chunk with a newly
// received chunk so a decoder can see them as one contiguous readable slice.
//
// The buffer follows the put/flip/compact discipline of java.nio.ByteBuffer:
// a caller appends bytes with Put while the buffer is in write mode, calls
// Flip to switch to read mode and expose the written bytes via Bytes, and
// calls Compact once it has consumed a prefix of those bytes, preserving any
// unread suffix (an incomplete multibyte sequence, say) as the new prefix for
// the next Put.
package buffer

// CompositeByteBuffer owns a single growable byte slice and a pair of
// cursors, position and limit, in the style of java.nio.ByteBuffer.
//
// In write mode (the state after New or after Compact), Put appends at
// position and position advances; limit is unused (zero) while
// writing. In read mode (the state after Flip), Bytes returns data[position:limit]
// and Advance moves position forward as a caller consumes bytes.
type CompositeByteBuffer struct {
	data     []byte
	position int
	limit    int
	reading  bool
}

// New returns an empty CompositeByteBuffer in write mode.
func New() *CompositeByteBuffer {
	return &CompositeByteBuffer{data: make([]byte, 0, 4096)}
}

// Put appends b to the buffer. Put must only be called in write mode (after
// New, Reset, or Compact — never directly after Flip without an intervening
// Compact).
func (b *CompositeByteBuffer) Put(p []byte) {
	if b.reading {
		panic("buffer: Put called while in read mode; call Compact first")
	}
	b.data = append(b.data[:b.position], p...)
	b.position = len(b.data)
}

// Flip switches the buffer to read mode: the limit becomes the current
// write position, and the read position resets to the start of the buffer.
func (b *CompositeByteBuffer) Flip() {
	b.limit = b.position
	b.position = 0
	b.reading = true
}

// Bytes returns the unread slice in read mode. The returned slice is only
// valid until the next Put, Flip, or Compact call.
func (b *CompositeByteBuffer) Bytes() []byte {
	if !b.reading {
		panic("buffer: Bytes called while in write mode; call Flip first")
	}
	return b.data[b.position:b.limit]
}

// Remaining reports how many unread bytes are available in read mode.
func (b *CompositeByteBuffer) Remaining() int {
	if !b.reading {
		return 0
	}
	return b.limit - b.position
}

// Advance marks n bytes as consumed, moving the read position forward. It
// panics if n exceeds Remaining.
func (b *CompositeByteBuffer) Advance(n int) {
	if n < 0 || b.position+n > b.limit {
		panic("buffer: Advance out of range")
	}
	b.position += n
}

// Compact preserves the unread suffix (data[position:limit]) by shifting it
// to the start of the underlying storage, and switches back to write mode
// with the write position set just past the preserved bytes.
func (b *CompositeByteBuffer) Compact() {
	if !b.reading {
		// Nothing was read; compacting a write-mode buffer is a no-op,
		// matching java.nio.ByteBuffer's tolerant behavior.
		b.reading = false
		return
	}
	n := copy(b.data, b.data[b.position:b.limit])
	b.data = b.data[:n]
	b.position = n
	b.limit = 0
	b.reading = false
}

// Reset discards all buffered content and returns to write mode, for reuse
// across documents (see Parser.Reset).
func (b *CompositeByteBuffer) Reset() {
	b.data = b.data[:0]
	b.position = 0
	b.limit = 0
	b.reading = false
}
