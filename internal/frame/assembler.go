// Package frame reassembles console commands from the raw byte stream.
//
// Commands are terminated by ';'. Carriage returns and line feeds are
// ignored anywhere in the stream, so clients may send one command per line.
package frame

const (
	// DefaultCapacity holds 4095 payload bytes plus the terminator slot.
	DefaultCapacity = 4096

	// Terminator marks the end of a command.
	Terminator = ';'
)

// Frame is one completed command payload.
type Frame struct {
	Payload []byte

	// Truncated is set when bytes were dropped because the payload
	// exceeded the assembler capacity.
	Truncated bool
}

// Assembler accumulates bytes until a terminator arrives.
// It is owned by a single goroutine.
type Assembler struct {
	buf       []byte
	n         int
	truncated bool
	dropped   uint64
}

// NewAssembler creates an Assembler whose buffer holds capacity bytes,
// one of which is reserved for the terminator.
func NewAssembler(capacity int) *Assembler {
	if capacity < 2 {
		capacity = 2
	}
	return &Assembler{buf: make([]byte, capacity)}
}

// Feed consumes one byte and reports a completed frame when b is the
// terminator.
func (a *Assembler) Feed(b byte) (Frame, bool) {
	switch b {
	case '\r', '\n':
		return Frame{}, false
	case Terminator:
		a.buf[a.n] = 0
		f := Frame{
			Payload:   append([]byte(nil), a.buf[:a.n]...),
			Truncated: a.truncated,
		}
		a.n = 0
		a.truncated = false
		return f, true
	}

	if a.n < len(a.buf)-1 {
		a.buf[a.n] = b
		a.n++
		return Frame{}, false
	}
	a.truncated = true
	a.dropped++
	return Frame{}, false
}

// Reset discards any partial frame.
func (a *Assembler) Reset() {
	a.n = 0
	a.truncated = false
}

// Len returns the number of bytes in the partial frame.
func (a *Assembler) Len() int { return a.n }

// Dropped returns the total number of bytes discarded for overflow.
func (a *Assembler) Dropped() uint64 { return a.dropped }
