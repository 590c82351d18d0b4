package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cezmen/chronos/internal/radio"
	"github.com/cezmen/chronos/internal/radio/radiotest"
)

var (
	lab = Responder{
		AccessPoint: radio.AccessPoint{SSID: "lab", BSSID: radio.MAC{0x24, 0x0a, 0xc4, 0, 0, 1}, Channel: 6, RSSI: -42, FTMResponder: true},
		DistanceCm:  450,
	}
	office = Responder{
		AccessPoint: radio.AccessPoint{SSID: "office", BSSID: radio.MAC{0x24, 0x0a, 0xc4, 0, 0, 2}, Channel: 11, RSSI: -70},
		DistanceCm:  1200,
	}
)

func newTestDriver() *Driver {
	return New(Config{AccessPoints: []Responder{lab, office}})
}

func TestConformance(t *testing.T) {
	nonResponder := office.AccessPoint
	radiotest.RunConformance(t, func() radio.Driver { return newTestDriver() }, radiotest.Capabilities{
		Responder:    lab.AccessPoint,
		NonResponder: &nonResponder,
		Ranging:      true,
	})
}

func TestScanFilter(t *testing.T) {
	d := newTestDriver()

	tests := []struct {
		ssid string
		want int
	}{
		{"", 2},
		{"lab", 1},
		{"office", 1},
		{"nowhere", 0},
	}

	for _, tt := range tests {
		t.Run(tt.ssid, func(t *testing.T) {
			aps, err := d.ScanAccessPoints(context.Background(), tt.ssid)
			if err != nil {
				t.Fatalf("ScanAccessPoints failed: %v", err)
			}
			if len(aps) != tt.want {
				t.Errorf("Expected %d results, got %d", tt.want, len(aps))
			}
		})
	}
}

func TestReportIsDeterministic(t *testing.T) {
	d := newTestDriver()
	cfg := radio.FTMConfig{Responder: lab.BSSID, Channel: 6, FrameCount: 8, BurstPeriod: 4}

	first, err := d.InitiateFTM(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitiateFTM failed: %v", err)
	}
	second, err := d.InitiateFTM(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitiateFTM failed: %v", err)
	}

	if len(first.Entries) != 8 {
		t.Fatalf("Expected 8 entries, got %d", len(first.Entries))
	}
	for i := range first.Entries {
		if first.Entries[i] != second.Entries[i] {
			t.Errorf("Entry %d differs between sessions: %+v vs %+v", i, first.Entries[i], second.Entries[i])
		}
	}

	// 450 cm round trip is 30.02 ns.
	if first.RTTEstimate != 30 {
		t.Errorf("Expected RTT estimate 30 ns, got %d", first.RTTEstimate)
	}
	if first.DistanceEstimate != 450 {
		t.Errorf("Expected distance 450 cm, got %d", first.DistanceEstimate)
	}
	if d.Sessions() != 2 {
		t.Errorf("Expected 2 sessions, got %d", d.Sessions())
	}
}

func TestReportTimestamps(t *testing.T) {
	d := newTestDriver()
	rep, err := d.InitiateFTM(context.Background(), radio.FTMConfig{Responder: lab.BSSID, FrameCount: 16, BurstPeriod: 2})
	if err != nil {
		t.Fatalf("InitiateFTM failed: %v", err)
	}

	for i, e := range rep.Entries {
		if e.DialogToken != uint8(i+1) {
			t.Errorf("Expected dialog token %d, got %d", i+1, e.DialogToken)
		}
		if e.T1 >= e.T2 || e.T2 >= e.T3 || e.T3 >= e.T4 {
			t.Errorf("Entry %d timestamps out of order: %+v", i, e)
		}
		if got := (e.T4 - e.T1) - (e.T3 - e.T2); got != uint64(e.RTT) {
			t.Errorf("Entry %d: expected RTT %d from timestamps, got %d", i, e.RTT, got)
		}
	}
}

func TestNoPreferenceFrameCount(t *testing.T) {
	d := newTestDriver()
	rep, err := d.InitiateFTM(context.Background(), radio.FTMConfig{Responder: lab.BSSID, FrameCount: 0, BurstPeriod: 4})
	if err != nil {
		t.Fatalf("InitiateFTM failed: %v", err)
	}
	if len(rep.Entries) != noPreferenceFrames {
		t.Errorf("Expected %d entries, got %d", noPreferenceFrames, len(rep.Entries))
	}
}

func TestFTMFailures(t *testing.T) {
	d := newTestDriver()

	tests := []struct {
		name string
		cfg  radio.FTMConfig
	}{
		{"non responder", radio.FTMConfig{Responder: office.BSSID, Channel: 11, FrameCount: 8}},
		{"wrong channel", radio.FTMConfig{Responder: lab.BSSID, Channel: 1, FrameCount: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.InitiateFTM(context.Background(), tt.cfg)
			if !errors.Is(err, radio.ErrFailure) {
				t.Errorf("Expected ErrFailure, got %v", err)
			}
		})
	}
}

func TestUnknownResponderWaitsForDeadline(t *testing.T) {
	d := newTestDriver()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.InitiateFTM(ctx, radio.FTMConfig{Responder: radio.MAC{0xde, 0xad, 0xbe, 0xef, 0, 1}, FrameCount: 8})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestFaultModes(t *testing.T) {
	tests := []struct {
		mode string
		want error
	}{
		{FaultBusy, radio.ErrFailure},
		{FaultUnsupported, radio.ErrUnsupported},
		{FaultHang, radio.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			d := newTestDriver()
			d.SetFaultMode(tt.mode)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			_, err := d.ScanAccessPoints(ctx, "")
			err = radio.NormalizeDriverError(d.Name(), err)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}

			d.ClearFaultMode()
			if _, err := d.ScanAccessPoints(context.Background(), ""); err != nil {
				t.Errorf("Expected scan to succeed after clearing faults, got %v", err)
			}
		})
	}
}

func TestLatencyHonoursContext(t *testing.T) {
	d := New(Config{AccessPoints: []Responder{lab}, Latency: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := d.ScanAccessPoints(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Latency ignored the context deadline")
	}
}
