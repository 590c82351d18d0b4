package radio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// fakeDriver scripts scan results and FTM outcomes.
type fakeDriver struct {
	mu        sync.Mutex
	scans     [][]AccessPoint
	scanErr   error
	scanCalls []string
	report    *FTMReport
	ftmErr    error
	ftmCalls  []FTMConfig
	block     bool
}

func (f *fakeDriver) Name() string { return "fake" }

func (f *fakeDriver) ScanAccessPoints(ctx context.Context, ssid string) ([]AccessPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls = append(f.scanCalls, ssid)
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	if len(f.scans) == 0 {
		return nil, nil
	}
	next := f.scans[0]
	if len(f.scans) > 1 {
		f.scans = f.scans[1:]
	}
	return next, nil
}

func (f *fakeDriver) InitiateFTM(ctx context.Context, cfg FTMConfig) (*FTMReport, error) {
	f.mu.Lock()
	f.ftmCalls = append(f.ftmCalls, cfg)
	block, report, err := f.block, f.report, f.ftmErr
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return report, err
}

type captureSink struct {
	lines []string
}

func (c *captureSink) Append(p []byte) {
	c.lines = append(c.lines, string(p))
}

var (
	apLab    = AccessPoint{SSID: "lab", BSSID: MAC{0x24, 0x0a, 0xc4, 0, 0, 1}, Channel: 6, RSSI: -42, FTMResponder: true}
	apOffice = AccessPoint{SSID: "office", BSSID: MAC{0x24, 0x0a, 0xc4, 0, 0, 2}, Channel: 11, RSSI: -70}
)

func TestStationScanReport(t *testing.T) {
	driver := &fakeDriver{scans: [][]AccessPoint{{apLab, apOffice}}}
	station := NewStation(driver, zaptest.NewLogger(t))
	sink := &captureSink{}

	if err := station.Scan(context.Background(), "", sink); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{
		"Scan Report:\n",
		"[lab][rssi -42][ch 6][mac 24:0a:c4:00:00:01][FTM]\n",
		"[office][rssi -70][ch 11][mac 24:0a:c4:00:00:02]\n",
		"sta scan done\n",
	}
	if strings.Join(sink.lines, "") != strings.Join(want, "") {
		t.Errorf("Unexpected scan output:\n%s", strings.Join(sink.lines, ""))
	}
	if driver.scanCalls[0] != "" {
		t.Errorf("Expected wildcard scan, got %q", driver.scanCalls[0])
	}
}

func TestStationScanNoResults(t *testing.T) {
	station := NewStation(&fakeDriver{}, zaptest.NewLogger(t))
	sink := &captureSink{}

	err := station.Scan(context.Background(), "missing", sink)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if len(sink.lines) != 1 || sink.lines[0] != "No matching AP found\n" {
		t.Errorf("Unexpected output %q", sink.lines)
	}
}

func TestStationScanDriverError(t *testing.T) {
	station := NewStation(&fakeDriver{scanErr: errors.New("operation not supported")}, zaptest.NewLogger(t))
	sink := &captureSink{}

	err := station.Scan(context.Background(), "", sink)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
	if len(sink.lines) != 1 || sink.lines[0] != "Scan failed: UNSUPPORTED\n" {
		t.Errorf("Unexpected output %q", sink.lines)
	}
}

func TestStationRangeByMAC(t *testing.T) {
	driver := &fakeDriver{report: &FTMReport{
		RTTEstimate:      33,
		DistanceEstimate: 495,
		Entries: []FTMEntry{
			{DialogToken: 1, RTT: 33000, RSSI: -42},
			{DialogToken: 2, RTT: 34000, RSSI: -43},
		},
	}}
	station := NewStation(driver, zaptest.NewLogger(t))
	sink := &captureSink{}

	target := Target{MAC: apLab.BSSID, Channel: 6}
	if err := station.Range(context.Background(), target, 16, 4, sink); err != nil {
		t.Fatalf("Range failed: %v", err)
	}

	want := []string{
		"Requesting FTM session with Frm Count - 16, Burst Period - 400mSec (0: No Preference)\n",
		"FTM Report:\n",
		"| Diag |   RTT   |  RSSI  |\n",
		"|     1|  33000  |   -42  |\n",
		"|     2|  34000  |   -43  |\n",
		"Estimated RTT - 33 nSec, Estimated Distance - 4.95 meters\n",
	}
	if strings.Join(sink.lines, "") != strings.Join(want, "") {
		t.Errorf("Unexpected ranging output:\n%s", strings.Join(sink.lines, ""))
	}

	cfg := driver.ftmCalls[0]
	if cfg.Responder != apLab.BSSID || cfg.Channel != 6 || cfg.FrameCount != 16 || cfg.BurstPeriod != 4 {
		t.Errorf("Unexpected FTM config %+v", cfg)
	}
}

func TestStationRangeReportColumns(t *testing.T) {
	driver := &fakeDriver{report: &FTMReport{
		RTTEstimate:      10,
		DistanceEstimate: 7,
		Entries:          []FTMEntry{{DialogToken: 1, T1: 1, T2: 2, T3: 3, T4: 4}},
	}}
	station := NewStation(driver, zaptest.NewLogger(t), WithReportColumns(ReportColumns{Timestamps: true}))
	sink := &captureSink{}

	if err := station.Range(context.Background(), Target{MAC: apLab.BSSID, Channel: 6}, 8, 2, sink); err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	out := strings.Join(sink.lines, "")
	if !strings.Contains(out, "|       T1       |       T2       |       T3       |       T4       |\n") {
		t.Errorf("Expected timestamp header, got:\n%s", out)
	}
	if !strings.Contains(out, "|             1  |             2  |             3  |             4  |\n") {
		t.Errorf("Expected timestamp row, got:\n%s", out)
	}
	if !strings.Contains(out, "Estimated Distance - 0.07 meters") {
		t.Errorf("Expected zero-padded centimeters, got:\n%s", out)
	}

	// No columns, no table.
	station = NewStation(driver, zaptest.NewLogger(t), WithReportColumns(ReportColumns{}))
	sink = &captureSink{}
	if err := station.Range(context.Background(), Target{MAC: apLab.BSSID, Channel: 6}, 8, 2, sink); err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if strings.Contains(strings.Join(sink.lines, ""), "FTM Report:") {
		t.Error("Expected report table to be omitted")
	}
}

func TestStationRangeBySSIDUsesCachedScan(t *testing.T) {
	driver := &fakeDriver{
		scans:  [][]AccessPoint{{apLab, apOffice}},
		report: &FTMReport{RTTEstimate: 1, DistanceEstimate: 15},
	}
	station := NewStation(driver, zaptest.NewLogger(t))

	if err := station.Scan(context.Background(), "", &captureSink{}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if err := station.Range(context.Background(), SSIDTarget("lab"), 8, 4, &captureSink{}); err != nil {
		t.Fatalf("Range failed: %v", err)
	}

	if len(driver.scanCalls) != 1 {
		t.Errorf("Expected cached scan to be reused, got %d scans", len(driver.scanCalls))
	}
	if driver.ftmCalls[0].Responder != apLab.BSSID || driver.ftmCalls[0].Channel != apLab.Channel {
		t.Errorf("Expected responder resolved from scan, got %+v", driver.ftmCalls[0])
	}
}

func TestStationRangeBySSIDRescansOnce(t *testing.T) {
	driver := &fakeDriver{
		scans:  [][]AccessPoint{{apOffice}, {apLab}},
		report: &FTMReport{},
	}
	station := NewStation(driver, zaptest.NewLogger(t))

	if err := station.Range(context.Background(), SSIDTarget("lab"), 8, 4, &captureSink{}); err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(driver.scanCalls) != 2 {
		t.Errorf("Expected a second scan after a miss, got %d", len(driver.scanCalls))
	}
	if driver.scanCalls[0] != "lab" {
		t.Errorf("Expected responder scan filtered by SSID, got %q", driver.scanCalls[0])
	}
}

func TestStationRangeBySSIDNotFound(t *testing.T) {
	driver := &fakeDriver{scans: [][]AccessPoint{{apOffice}}}
	station := NewStation(driver, zaptest.NewLogger(t))
	sink := &captureSink{}

	err := station.Range(context.Background(), SSIDTarget("lab"), 8, 4, sink)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if len(sink.lines) != 1 || sink.lines[0] != "No matching AP found\n" {
		t.Errorf("Unexpected output %q", sink.lines)
	}
	if len(driver.ftmCalls) != 0 {
		t.Error("Expected no FTM session without a responder")
	}
}

func TestStationRangeByEmptySSID(t *testing.T) {
	hidden := AccessPoint{BSSID: MAC{0x24, 0x0a, 0xc4, 0, 0, 3}, Channel: 1, FTMResponder: true}
	driver := &fakeDriver{scans: [][]AccessPoint{{hidden}}, report: &FTMReport{}}
	station := NewStation(driver, zaptest.NewLogger(t), WithRangingTimeout(50*time.Millisecond))
	sink := &captureSink{}

	err := station.Range(context.Background(), SSIDTarget(""), 8, 4, sink)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if len(sink.lines) != 1 || sink.lines[0] != "No matching AP found\n" {
		t.Errorf("Unexpected output %q", sink.lines)
	}
	if len(driver.ftmCalls) != 0 {
		t.Errorf("Expected no FTM session, got %+v", driver.ftmCalls)
	}
}

func TestStationRangeValidation(t *testing.T) {
	driver := &fakeDriver{report: &FTMReport{}}
	station := NewStation(driver, zaptest.NewLogger(t))

	sink := &captureSink{}
	if err := station.Range(context.Background(), Target{MAC: apLab.BSSID}, 99, 4, sink); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for count, got %v", err)
	}
	if len(sink.lines) != 1 || sink.lines[0] != MsgInvalidFrameCount+"\n" {
		t.Errorf("Unexpected output %q", sink.lines)
	}

	sink = &captureSink{}
	if err := station.Range(context.Background(), Target{MAC: apLab.BSSID}, 8, 1, sink); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for burst, got %v", err)
	}
	if len(sink.lines) != 1 || sink.lines[0] != MsgInvalidBurstPeriod+"\n" {
		t.Errorf("Unexpected output %q", sink.lines)
	}

	if len(driver.ftmCalls) != 0 {
		t.Error("Expected no FTM session for invalid parameters")
	}
}

func TestStationRangeOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		driver   *fakeDriver
		wantErr  error
		wantLine string
	}{
		{"timeout", &fakeDriver{block: true}, ErrTimeout, "FTM Timeout\n"},
		{"failure", &fakeDriver{ftmErr: ErrFailure}, ErrFailure, "FTM Failure\n"},
		{"nil report", &fakeDriver{}, ErrFailure, "FTM Failure\n"},
		{"start error", &fakeDriver{ftmErr: errors.New("operation not supported")}, ErrUnsupported, "Failed to start FTM session\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			station := NewStation(tt.driver, zaptest.NewLogger(t), WithRangingTimeout(50*time.Millisecond))
			sink := &captureSink{}

			start := time.Now()
			err := station.Range(context.Background(), Target{MAC: apLab.BSSID, Channel: 6}, 8, 4, sink)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if time.Since(start) > 2*time.Second {
				t.Error("Range did not honour its timeout")
			}
			if len(sink.lines) != 2 || sink.lines[1] != tt.wantLine {
				t.Errorf("Unexpected output %q", sink.lines)
			}
		})
	}
}

func TestStationNilSink(t *testing.T) {
	station := NewStation(&fakeDriver{scans: [][]AccessPoint{{apLab}}}, zaptest.NewLogger(t))
	if err := station.Scan(context.Background(), "", nil); err != nil {
		t.Errorf("Expected scan without sink to succeed, got %v", err)
	}
}
