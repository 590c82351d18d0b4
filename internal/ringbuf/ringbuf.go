// Package ringbuf provides the fixed-capacity byte queue shared by the
// console input and output pumps.
//
// A Buffer of size N keeps one slot unused so that "full" and "empty" can be
// told apart from the two indices alone; it holds at most N-1 bytes.
// Buffer is not synchronized. Callers sharing one instance across goroutines
// must hold their own lock around every operation.
package ringbuf

// Buffer is a circular byte queue with lossy writes.
type Buffer struct {
	data []byte
	w    int
	r    int
}

// New creates a Buffer of size n. Usable capacity is n-1 bytes.
func New(n int) *Buffer {
	if n < 2 {
		n = 2
	}
	return &Buffer{data: make([]byte, n)}
}

// Put appends c. It returns false and drops c when the buffer is full.
func (b *Buffer) Put(c byte) bool {
	next := (b.w + 1) % len(b.data)
	if next == b.r {
		return false
	}
	b.data[b.w] = c
	b.w = next
	return true
}

// Write puts every byte of p and returns how many were accepted.
// Bytes that do not fit are dropped.
func (b *Buffer) Write(p []byte) int {
	n := 0
	for _, c := range p {
		if b.Put(c) {
			n++
		}
	}
	return n
}

// Get removes and returns the oldest byte.
func (b *Buffer) Get() (byte, bool) {
	if b.r == b.w {
		return 0, false
	}
	c := b.data[b.r]
	b.r = (b.r + 1) % len(b.data)
	return c, true
}

// Read moves up to len(p) bytes into p and returns the count.
func (b *Buffer) Read(p []byte) int {
	n := 0
	for n < len(p) {
		c, ok := b.Get()
		if !ok {
			break
		}
		p[n] = c
		n++
	}
	return n
}

// Len returns the number of queued bytes.
func (b *Buffer) Len() int {
	if b.w >= b.r {
		return b.w - b.r
	}
	return len(b.data) + b.w - b.r
}

// Cap returns the usable capacity.
func (b *Buffer) Cap() int {
	return len(b.data) - 1
}

// Clear empties the buffer. Contents are left in place.
func (b *Buffer) Clear() {
	b.w = 0
	b.r = 0
}
