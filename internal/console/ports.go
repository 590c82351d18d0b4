package console

import (
	"context"

	"github.com/cezmen/chronos/internal/radio"
)

// Dispatcher handles completed frames.
type Dispatcher interface {
	Dispatch(ctx context.Context, frame []byte, out radio.Sink) error
}

// AuditLogger records session lifecycle events.
type AuditLogger interface {
	LogSession(ctx context.Context, event string)
}

// Recorder observes console traffic.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	SessionRejected()
	BytesReceived(n int)
	BytesSent(n int)
	BytesDropped(direction string, n int)
	FrameAssembled(truncated bool)
	OutboundBacklog(n int)
}

type nopAudit struct{}

func (nopAudit) LogSession(context.Context, string) {}

type nopRecorder struct{}

func (nopRecorder) SessionOpened()           {}
func (nopRecorder) SessionClosed()           {}
func (nopRecorder) SessionRejected()         {}
func (nopRecorder) BytesReceived(int)        {}
func (nopRecorder) BytesSent(int)            {}
func (nopRecorder) BytesDropped(string, int) {}
func (nopRecorder) FrameAssembled(bool)      {}
func (nopRecorder) OutboundBacklog(int)      {}
