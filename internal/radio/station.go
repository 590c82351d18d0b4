package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultRangingTimeout bounds the wait for an FTM report.
const DefaultRangingTimeout = 30 * time.Second

// ReportColumns selects the columns of the per-frame FTM report table.
// With every column disabled the table is omitted.
type ReportColumns struct {
	Diag       bool
	RTT        bool
	Timestamps bool
	RSSI       bool
}

func (c ReportColumns) any() bool {
	return c.Diag || c.RTT || c.Timestamps || c.RSSI
}

// DefaultReportColumns shows dialog token, RTT and RSSI.
var DefaultReportColumns = ReportColumns{Diag: true, RTT: true, RSSI: true}

// StationOption configures a Station.
type StationOption func(*Station)

// WithRangingTimeout overrides DefaultRangingTimeout.
func WithRangingTimeout(d time.Duration) StationOption {
	return func(s *Station) {
		if d > 0 {
			s.rangingTimeout = d
		}
	}
}

// WithReportColumns overrides DefaultReportColumns.
func WithReportColumns(c ReportColumns) StationOption {
	return func(s *Station) {
		s.columns = c
	}
}

// Station implements Action over a Driver.
type Station struct {
	driver         Driver
	logger         *zap.Logger
	rangingTimeout time.Duration
	columns        ReportColumns

	mu       sync.Mutex
	lastScan []AccessPoint
}

var _ Action = (*Station)(nil)

// NewStation creates a Station backed by driver.
func NewStation(driver Driver, logger *zap.Logger, opts ...StationOption) *Station {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Station{
		driver:         driver,
		logger:         logger.Named("radio").With(zap.String("driver", driver.Name())),
		rangingTimeout: DefaultRangingTimeout,
		columns:        DefaultReportColumns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan performs a scan and writes the scan report to out.
func (s *Station) Scan(ctx context.Context, ssid string, out Sink) error {
	r := s.reporter("scan", out)

	aps, err := s.driver.ScanAccessPoints(ctx, ssid)
	if err != nil {
		err = NormalizeDriverError(s.driver.Name(), err)
		r.errorf("Scan failed: %s", Code(err))
		return err
	}
	if len(aps) == 0 {
		r.infof("No matching AP found")
		return ErrNotFound
	}
	s.remember(aps)

	r.infof("Scan Report:")
	for _, ap := range aps {
		ftm := ""
		if ap.FTMResponder {
			ftm = "[FTM]"
		}
		r.infof("[%s][rssi %d][ch %d][mac %s]%s", ap.SSID, ap.RSSI, ap.Channel, ap.BSSID, ftm)
	}
	r.infof("sta scan done")
	return nil
}

// Range runs an FTM session and writes the report and estimate to out.
func (s *Station) Range(ctx context.Context, target Target, count, burstPeriod uint, out Sink) error {
	r := s.reporter("ftm", out)

	if target.BySSID {
		ap, err := s.findResponder(ctx, target.SSID)
		if err != nil {
			r.infof("No matching AP found")
			return err
		}
		target.MAC = ap.BSSID
		target.Channel = ap.Channel
	}

	if !ValidFrameCount(count) {
		r.errorf(MsgInvalidFrameCount)
		return ErrInvalidRange
	}
	if !ValidBurstPeriod(burstPeriod) {
		r.errorf(MsgInvalidBurstPeriod)
		return ErrInvalidRange
	}

	r.infof("Requesting FTM session with Frm Count - %d, Burst Period - %dmSec (0: No Preference)",
		count, burstPeriod*100)

	ctx, cancel := context.WithTimeout(ctx, s.rangingTimeout)
	defer cancel()

	report, err := s.driver.InitiateFTM(ctx, FTMConfig{
		Responder:   target.MAC,
		Channel:     target.Channel,
		FrameCount:  count,
		BurstPeriod: burstPeriod,
	})
	if err == nil && report == nil {
		err = ErrFailure
	}
	if err != nil {
		err = NormalizeDriverError(s.driver.Name(), err)
		switch {
		case errors.Is(err, ErrTimeout):
			r.infof("FTM Timeout")
		case errors.Is(err, ErrFailure):
			r.infof("FTM Failure")
		default:
			r.errorf("Failed to start FTM session")
		}
		return err
	}

	s.writeReport(r, report)
	r.infof("Estimated RTT - %d nSec, Estimated Distance - %d.%02d meters",
		report.RTTEstimate, report.DistanceEstimate/100, report.DistanceEstimate%100)
	return nil
}

// findResponder looks the SSID up in the last scan, scanning when there is
// no usable result, and rescans once before giving up.
func (s *Station) findResponder(ctx context.Context, ssid string) (AccessPoint, error) {
	if ssid == "" {
		return AccessPoint{}, ErrNotFound
	}
	for attempt := 0; attempt < 2; attempt++ {
		aps := s.remembered()
		if len(aps) == 0 || attempt > 0 {
			s.logger.Info("scanning for responder", zap.String("ssid", ssid))
			found, err := s.driver.ScanAccessPoints(ctx, ssid)
			if err != nil {
				return AccessPoint{}, NormalizeDriverError(s.driver.Name(), err)
			}
			s.remember(found)
			aps = found
		}
		for _, ap := range aps {
			if ap.SSID == ssid {
				return ap, nil
			}
		}
	}
	s.logger.Info("no matching AP found", zap.String("ssid", ssid))
	return AccessPoint{}, ErrNotFound
}

func (s *Station) remember(aps []AccessPoint) {
	s.mu.Lock()
	s.lastScan = aps
	s.mu.Unlock()
}

func (s *Station) remembered() []AccessPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan
}

func (s *Station) writeReport(r reporter, report *FTMReport) {
	if !s.columns.any() {
		return
	}
	c := s.columns

	r.infof("FTM Report:")

	var hdr strings.Builder
	hdr.WriteString("|")
	if c.Diag {
		hdr.WriteString(" Diag |")
	}
	if c.RTT {
		hdr.WriteString("   RTT   |")
	}
	if c.Timestamps {
		hdr.WriteString("       T1       |       T2       |       T3       |       T4       |")
	}
	if c.RSSI {
		hdr.WriteString("  RSSI  |")
	}
	r.infof("%s", hdr.String())

	for _, e := range report.Entries {
		var row strings.Builder
		row.WriteString("|")
		if c.Diag {
			fmt.Fprintf(&row, "%6d|", e.DialogToken)
		}
		if c.RTT {
			fmt.Fprintf(&row, "%7d  |", e.RTT)
		}
		if c.Timestamps {
			fmt.Fprintf(&row, "%14d  |%14d  |%14d  |%14d  |", e.T1, e.T2, e.T3, e.T4)
		}
		if c.RSSI {
			fmt.Fprintf(&row, "%6d  |", e.RSSI)
		}
		r.infof("%s", row.String())
	}
}

// reporter logs every line and forwards it, newline-terminated, to out.
type reporter struct {
	logger *zap.Logger
	out    Sink
}

func (s *Station) reporter(tag string, out Sink) reporter {
	return reporter{logger: s.logger.Named(tag), out: out}
}

func (r reporter) infof(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.logger.Info(line)
	r.forward(line)
}

func (r reporter) errorf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.logger.Error(line)
	r.forward(line)
}

func (r reporter) forward(line string) {
	if r.out == nil {
		return
	}
	r.out.Append([]byte(line + "\n"))
}
