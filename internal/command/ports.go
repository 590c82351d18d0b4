package command

import (
	"context"
	"time"
)

// AuditLogger records every dispatched command.
type AuditLogger interface {
	LogCommand(ctx context.Context, function string, params map[string]interface{}, code string, latency time.Duration)
}

// Recorder observes dispatch outcomes.
type Recorder interface {
	CommandDispatched(function, code string, latency time.Duration)
	FrameDiscarded()
}

type nopAudit struct{}

func (nopAudit) LogCommand(context.Context, string, map[string]interface{}, string, time.Duration) {}

type nopRecorder struct{}

func (nopRecorder) CommandDispatched(string, string, time.Duration) {}
func (nopRecorder) FrameDiscarded()                                 {}
