// Package netbuf implements the append-only, cursor-tracking byte buffer
// the request parser is specified against: bytes arrive via Append as the
// reactor delivers network reads, and the parser consumes them through
// Peek/FindCRLF/RetrieveUntil/Retrieve, which hand out slices of the
// buffer's own storage; unconsumed bytes are copied only when the buffer
// compacts itself.
//
// Grounded on two sources: the append/grow-with-limit idiom of the
// teacher's internal/buffer.Buffer (Append refusing to exceed a cap), and
// the cursor contract (peek/findCRLF/retrieveUntil/retrieve) the request
// parser is specified against, itself lifted from the muduo net::Buffer
// this server's design is descended from.
package netbuf

import "bytes"

// Buffer is a growable byte queue with an explicit read cursor. It is not
// safe for concurrent use — exactly one goroutine (the connection's own)
// ever touches one.
type Buffer struct {
	data    []byte
	cursor  int
	maxSize int
}

// New returns an empty Buffer that refuses to grow past maxSize bytes of
// unconsumed data — a cheap backstop against a peer that never sends a
// terminator.
func New(maxSize int) *Buffer {
	return &Buffer{maxSize: maxSize}
}

// Append adds bytes received from the transport. Returns false if doing so
// would exceed maxSize, in which case the buffer is left unchanged.
func (b *Buffer) Append(p []byte) bool {
	if b.Readable()+len(p) > b.maxSize {
		return false
	}

	b.data = append(b.data, p...)
	return true
}

// Readable returns the number of unconsumed bytes.
func (b *Buffer) Readable() int {
	return len(b.data) - b.cursor
}

// Peek returns the unconsumed bytes without advancing the cursor. The
// returned slice aliases the buffer's storage and is only valid until the
// next Append/Retrieve call.
func (b *Buffer) Peek() []byte {
	return b.data[b.cursor:]
}

// FindCRLF returns the offset (relative to Peek()) of the next "\r\n" in
// the unconsumed region, or -1 if none is present yet.
func (b *Buffer) FindCRLF() int {
	return bytes.Index(b.Peek(), []byte("\r\n"))
}

// RetrieveUntil advances the cursor by n bytes (relative to the current
// cursor position) without returning them — used once a line has already
// been inspected via Peek and only needs to be skipped.
func (b *Buffer) RetrieveUntil(n int) {
	b.advance(n)
}

// Retrieve consumes and returns exactly n unconsumed bytes, advancing the
// cursor. The caller must have already checked Readable() >= n.
func (b *Buffer) Retrieve(n int) []byte {
	p := b.data[b.cursor : b.cursor+n]
	b.advance(n)
	return p
}

func (b *Buffer) advance(n int) {
	b.cursor += n
	if b.cursor == len(b.data) {
		b.data = b.data[:0]
		b.cursor = 0
	} else if b.cursor > len(b.data)/2 && b.cursor > 4096 {
		// compact occasionally so a long-lived connection that trickles
		// small requests doesn't grow its backing array without bound
		remaining := copy(b.data, b.data[b.cursor:])
		b.data = b.data[:remaining]
		b.cursor = 0
	}
}
