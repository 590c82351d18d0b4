package command

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cezmen/chronos/internal/audit"
	"github.com/cezmen/chronos/internal/radio"
)

// Dispatcher parses frames and invokes the radio action.
type Dispatcher struct {
	action   radio.Action
	logger   *zap.Logger
	audit    AuditLogger
	recorder Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAuditLogger records every dispatch in a.
func WithAuditLogger(a AuditLogger) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.audit = a
		}
	}
}

// WithRecorder reports dispatch outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// NewDispatcher creates a dispatcher invoking action.
func NewDispatcher(action radio.Action, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		action:   action,
		logger:   logger.Named("command"),
		audit:    nopAudit{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one completed frame. Result and diagnostic lines go to
// out. Unrecognized frames produce no output and return ErrNoMatch.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte, out radio.Sink) error {
	start := time.Now()
	if out == nil {
		out = radio.SinkFunc(func([]byte) {})
	}
	logger := d.logger.With(zap.String("session", audit.SessionFrom(ctx)))

	cmd, err := Parse(frame)
	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			logger.Debug("discarding unrecognized frame", zap.Int("bytes", len(frame)))
			d.recorder.FrameDiscarded()
			return err
		}
		logger.Warn("rejecting command", zap.String("field", verr.Field), zap.String("reason", verr.Message))
		out.Append([]byte(verr.Message + "\n"))
		d.finish(ctx, FunctionFTM, map[string]interface{}{"field": verr.Field}, err, start)
		return err
	}

	logger.Info("dispatching command", zap.Stringer("command", cmd))
	err = d.invoke(ctx, cmd, out)
	d.finish(ctx, cmd.Function(), cmd.Params(), err, start)
	if err != nil {
		logger.Info("command completed", zap.String("code", radio.Code(err)), zap.Error(err))
	}
	return err
}

func (d *Dispatcher) invoke(ctx context.Context, cmd Command, out radio.Sink) error {
	switch c := cmd.(type) {
	case FtmBySSID:
		return d.action.Range(ctx, radio.SSIDTarget(c.SSID), c.Count, c.BurstPeriod, out)
	case FtmByMAC:
		return d.action.Range(ctx, radio.Target{MAC: c.MAC, Channel: c.Channel}, c.Count, c.BurstPeriod, out)
	case Scan:
		ssid := c.SSID
		if ssid == WildcardSSID {
			ssid = ""
		}
		return d.action.Scan(ctx, ssid, out)
	}
	return ErrNoMatch
}

func (d *Dispatcher) finish(ctx context.Context, function string, params map[string]interface{}, err error, start time.Time) {
	latency := time.Since(start)
	code := radio.Code(err)
	d.audit.LogCommand(ctx, function, params, code, latency)
	d.recorder.CommandDispatched(function, code, latency)
}
