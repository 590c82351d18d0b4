// Package radiotest provides a conformance suite for radio drivers.
package radiotest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cezmen/chronos/internal/radio"
)

// Capabilities describes what the driver under test is expected to see.
type Capabilities struct {
	// Responder is a reachable FTM responder present in every scan.
	Responder radio.AccessPoint

	// NonResponder, when set, is visible in scans but refuses FTM.
	NonResponder *radio.AccessPoint

	// Ranging is false for drivers that cannot initiate FTM.
	Ranging bool

	// MaxDeadlineOverrun bounds how long past its deadline a call may run.
	MaxDeadlineOverrun time.Duration
}

// ConformanceResult is the outcome of one conformance check.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport collects every check run against a driver.
type ConformanceReport struct {
	DriverName    string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// RunConformance runs the suite against drivers built by newDriver.
func RunConformance(t *testing.T, newDriver func() radio.Driver, caps Capabilities) *ConformanceReport {
	t.Helper()
	startTime := time.Now()

	if caps.MaxDeadlineOverrun == 0 {
		caps.MaxDeadlineOverrun = time.Second
	}

	report := &ConformanceReport{
		DriverName:    newDriver().Name(),
		Results:       []ConformanceResult{},
		OverallPassed: true,
	}

	runScanTests(newDriver, caps, report)
	runCancellationTests(newDriver, caps, report)
	if caps.Ranging {
		runRangingTests(newDriver, caps, report)
	} else {
		runUnsupportedRangingTests(newDriver, caps, report)
	}

	report.Duration = time.Since(startTime)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Driver conformance test failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
	return report
}

func runScanTests(newDriver func() radio.Driver, caps Capabilities, report *ConformanceReport) {
	driver := newDriver()
	ctx := context.Background()

	result := newResult("Scan_All")
	start := time.Now()
	aps, err := driver.ScanAccessPoints(ctx, "")
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = fmt.Sprintf("ScanAccessPoints failed: %v", err)
	case !contains(aps, caps.Responder.BSSID):
		result.Error = fmt.Sprintf("responder %s missing from %d results", caps.Responder.BSSID, len(aps))
	default:
		result.Passed = true
		result.Details["results"] = len(aps)
	}
	report.addResult(result)

	result = newResult("Scan_FilteredBySSID")
	start = time.Now()
	aps, err = driver.ScanAccessPoints(ctx, caps.Responder.SSID)
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = fmt.Sprintf("ScanAccessPoints(%q) failed: %v", caps.Responder.SSID, err)
	case len(aps) == 0:
		result.Error = fmt.Sprintf("ScanAccessPoints(%q) returned nothing", caps.Responder.SSID)
	default:
		result.Passed = true
		for _, ap := range aps {
			if ap.SSID != caps.Responder.SSID {
				result.Passed = false
				result.Error = fmt.Sprintf("unexpected SSID %q in filtered scan", ap.SSID)
				break
			}
		}
		result.Details["results"] = len(aps)
	}
	report.addResult(result)
}

func runCancellationTests(newDriver func() radio.Driver, caps Capabilities, report *ConformanceReport) {
	driver := newDriver()

	result := newResult("Cancellation_Scan")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := driver.ScanAccessPoints(ctx, "")
	result.Duration = time.Since(start)

	if err == nil {
		result.Error = "ScanAccessPoints with cancelled context should have failed"
	} else {
		result.Passed = true
		result.Details["error"] = err.Error()
	}
	report.addResult(result)

	result = newResult("Cancellation_FTM")
	start = time.Now()
	_, err = driver.InitiateFTM(ctx, ftmConfig(caps.Responder, radio.DefaultFrameCount))
	result.Duration = time.Since(start)

	if err == nil {
		result.Error = "InitiateFTM with cancelled context should have failed"
	} else {
		result.Passed = true
		result.Details["error"] = err.Error()
	}
	report.addResult(result)
}

func runRangingTests(newDriver func() radio.Driver, caps Capabilities, report *ConformanceReport) {
	driver := newDriver()
	ctx := context.Background()

	for _, count := range []uint{0, radio.DefaultFrameCount, 64} {
		result := newResult(fmt.Sprintf("FTM_Report_Count%d", count))
		start := time.Now()
		rep, err := driver.InitiateFTM(ctx, ftmConfig(caps.Responder, count))
		result.Duration = time.Since(start)

		switch {
		case err != nil:
			result.Error = fmt.Sprintf("InitiateFTM(count=%d) failed: %v", count, err)
		case rep == nil:
			result.Error = "InitiateFTM returned nil report"
		case len(rep.Entries) == 0:
			result.Error = "InitiateFTM returned no entries"
		case count != 0 && len(rep.Entries) > int(count):
			result.Error = fmt.Sprintf("expected at most %d entries, got %d", count, len(rep.Entries))
		default:
			result.Passed = true
			result.Details["entries"] = len(rep.Entries)
			result.Details["rttNs"] = rep.RTTEstimate
			result.Details["distanceCm"] = rep.DistanceEstimate
		}
		report.addResult(result)
	}

	if caps.NonResponder != nil {
		result := newResult("FTM_NonResponder")
		start := time.Now()
		_, err := driver.InitiateFTM(ctx, ftmConfig(*caps.NonResponder, radio.DefaultFrameCount))
		result.Duration = time.Since(start)

		err = radio.NormalizeDriverError(driver.Name(), err)
		if !errors.Is(err, radio.ErrFailure) {
			result.Error = fmt.Sprintf("expected FAILURE, got %s", radio.Code(err))
		} else {
			result.Passed = true
			result.Details["error"] = err.Error()
		}
		report.addResult(result)
	}

	result := newResult("FTM_DeadlineHonored")
	deadline := 100 * time.Millisecond
	dctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	_, err := driver.InitiateFTM(dctx, radio.FTMConfig{
		Responder:   radio.MAC{0x02, 0, 0, 0, 0, 0xfe},
		Channel:     caps.Responder.Channel,
		FrameCount:  radio.DefaultFrameCount,
		BurstPeriod: radio.DefaultBurstPeriod,
	})
	result.Duration = time.Since(start)

	switch {
	case result.Duration > deadline+caps.MaxDeadlineOverrun:
		result.Error = fmt.Sprintf("InitiateFTM ran %v past a %v deadline", result.Duration, deadline)
	case err == nil:
		result.Error = "InitiateFTM to an absent responder should have failed"
	default:
		result.Passed = true
		result.Details["code"] = radio.Code(radio.NormalizeDriverError(driver.Name(), err))
	}
	report.addResult(result)
}

func runUnsupportedRangingTests(newDriver func() radio.Driver, caps Capabilities, report *ConformanceReport) {
	driver := newDriver()

	result := newResult("FTM_Unsupported")
	start := time.Now()
	_, err := driver.InitiateFTM(context.Background(), ftmConfig(caps.Responder, radio.DefaultFrameCount))
	result.Duration = time.Since(start)

	err = radio.NormalizeDriverError(driver.Name(), err)
	if !errors.Is(err, radio.ErrUnsupported) {
		result.Error = fmt.Sprintf("expected UNSUPPORTED, got %s", radio.Code(err))
	} else {
		result.Passed = true
	}
	report.addResult(result)
}

func ftmConfig(ap radio.AccessPoint, count uint) radio.FTMConfig {
	return radio.FTMConfig{
		Responder:   ap.BSSID,
		Channel:     ap.Channel,
		FrameCount:  count,
		BurstPeriod: radio.DefaultBurstPeriod,
	}
}

func contains(aps []radio.AccessPoint, mac radio.MAC) bool {
	for _, ap := range aps {
		if ap.BSSID == mac {
			return true
		}
	}
	return false
}

func newResult(name string) ConformanceResult {
	return ConformanceResult{
		TestName: name,
		Details:  make(map[string]interface{}),
	}
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("DRIVER CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Driver: %s", report.DriverName)
	t.Logf("Passed: %d/%d", report.PassedTests, report.TotalTests)
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))
	t.Logf("%-30s %-8s %-12s %-s", "TEST NAME", "RESULT", "DURATION", "DETAILS")

	for _, result := range report.Results {
		status := "PASS"
		details := result.Error
		if !result.Passed {
			status = "FAIL"
		} else {
			var parts []string
			for k, v := range result.Details {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			details = strings.Join(parts, ", ")
		}
		t.Logf("%-30s %-8s %-12s %-s", result.TestName, status, result.Duration.String(), details)
	}
	t.Logf("%s", strings.Repeat("=", 80))
}
