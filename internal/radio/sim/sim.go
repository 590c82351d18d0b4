// Package sim provides a simulated FTM-capable station for development and
// tests. Results are derived deterministically from a configured access
// point table.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cezmen/chronos/internal/radio"
)

// Speed of light in centimeters per nanosecond.
const lightCmPerNs = 29.9792458

// Responder turnaround between T2 and T3, in picoseconds.
const turnaroundPs = 10_000_000

// Frames produced when the initiator states no preference.
const noPreferenceFrames = 16

// Fault injection modes.
const (
	FaultNone        = ""
	FaultBusy        = "ReturnBusy"
	FaultUnsupported = "ReturnUnsupported"
	FaultHang        = "ReturnHang"
)

// Responder is a simulated access point.
type Responder struct {
	radio.AccessPoint `yaml:",inline"`
	DistanceCm        uint32 `yaml:"distanceCm"`
}

// Config configures the simulated station.
type Config struct {
	AccessPoints []Responder
	Latency      time.Duration
}

// Driver implements radio.Driver over a fixed access point table.
type Driver struct {
	mu        sync.RWMutex
	aps       []Responder
	latency   time.Duration
	faultMode string
	sessions  int
}

var _ radio.Driver = (*Driver)(nil)

// New creates a simulated driver.
func New(cfg Config) *Driver {
	aps := make([]Responder, len(cfg.AccessPoints))
	copy(aps, cfg.AccessPoints)
	return &Driver{
		aps:     aps,
		latency: cfg.Latency,
	}
}

// Name returns "sim".
func (d *Driver) Name() string { return "sim" }

// ScanAccessPoints returns the configured access points matching ssid.
func (d *Driver) ScanAccessPoints(ctx context.Context, ssid string) ([]radio.AccessPoint, error) {
	if err := d.enter(ctx, "scan"); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []radio.AccessPoint
	for _, ap := range d.aps {
		if ssid == "" || ap.SSID == ssid {
			out = append(out, ap.AccessPoint)
		}
	}
	return out, nil
}

// InitiateFTM simulates an FTM session with the responder at cfg.Responder.
// An unknown responder never answers, so the call returns only when ctx is
// done.
func (d *Driver) InitiateFTM(ctx context.Context, cfg radio.FTMConfig) (*radio.FTMReport, error) {
	if err := d.enter(ctx, "ftm"); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.sessions++
	ap, ok := d.lookup(cfg.Responder)
	d.mu.Unlock()

	if !ok {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ap.FTMResponder {
		return nil, fmt.Errorf("%w: %s is not an FTM responder", radio.ErrFailure, ap.BSSID)
	}
	if cfg.Channel != 0 && cfg.Channel != ap.Channel {
		return nil, fmt.Errorf("%w: %s is on channel %d, not %d", radio.ErrFailure, ap.BSSID, ap.Channel, cfg.Channel)
	}

	return buildReport(ap, cfg), nil
}

// SetFaultMode sets the fault injection mode.
func (d *Driver) SetFaultMode(mode string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faultMode = mode
}

// ClearFaultMode clears the fault injection mode.
func (d *Driver) ClearFaultMode() {
	d.SetFaultMode(FaultNone)
}

// Sessions returns the number of FTM sessions requested so far.
func (d *Driver) Sessions() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sessions
}

// enter applies cancellation, injected faults and the configured latency.
func (d *Driver) enter(ctx context.Context, operation string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	d.mu.RLock()
	mode, latency := d.faultMode, d.latency
	d.mu.RUnlock()

	switch mode {
	case FaultBusy:
		return fmt.Errorf("BUSY: sim simulated busy error for %s", operation)
	case FaultUnsupported:
		return fmt.Errorf("NOT SUPPORTED: sim simulated unsupported error for %s", operation)
	case FaultHang:
		<-ctx.Done()
		return ctx.Err()
	}

	if latency <= 0 {
		return nil
	}
	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Driver) lookup(mac radio.MAC) (Responder, bool) {
	for _, ap := range d.aps {
		if ap.BSSID == mac {
			return ap, true
		}
	}
	return Responder{}, false
}

// buildReport derives per-frame measurements from the responder distance.
// RTT alternates by ±100 ps around the true value and RSSI drifts by one dB.
func buildReport(ap Responder, cfg radio.FTMConfig) *radio.FTMReport {
	frames := int(cfg.FrameCount)
	if frames == 0 {
		frames = noPreferenceFrames
	}

	rttPs := uint64(math.Round(2 * float64(ap.DistanceCm) / lightCmPerNs * 1000))
	period := uint64(cfg.BurstPeriod) * 100_000_000_000 // 100 ms in ps
	if period == 0 {
		period = 1_000_000_000
	}

	entries := make([]radio.FTMEntry, frames)
	var sum uint64
	for i := range entries {
		rtt := rttPs
		switch i % 3 {
		case 1:
			rtt += 100
		case 2:
			if rtt >= 100 {
				rtt -= 100
			}
		}
		sum += rtt

		t1 := uint64(i+1) * period / uint64(frames)
		t2 := t1 + rtt/2
		t3 := t2 + turnaroundPs
		t4 := t3 + rtt - rtt/2

		entries[i] = radio.FTMEntry{
			DialogToken: uint8(i + 1),
			RTT:         uint32(rtt),
			T1:          t1,
			T2:          t2,
			T3:          t3,
			T4:          t4,
			RSSI:        int8(ap.RSSI - i%2),
		}
	}

	meanPs := float64(sum) / float64(frames)
	return &radio.FTMReport{
		RTTEstimate:      uint32(math.Round(meanPs / 1000)),
		DistanceEstimate: ap.DistanceCm,
		Entries:          entries,
	}
}
