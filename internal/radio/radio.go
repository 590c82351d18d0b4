package radio

import (
	"context"
)

// Sink receives result text. Each call carries one newline-terminated line.
type Sink interface {
	Append(p []byte)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(p []byte)

// Append calls f(p).
func (f SinkFunc) Append(p []byte) { f(p) }

// Action is the capability the command dispatcher invokes.
type Action interface {
	// Scan lists access points. An empty ssid scans for every network.
	Scan(ctx context.Context, ssid string, out Sink) error

	// Range runs one FTM session against target and reports the estimate.
	// It blocks until a report arrives, the session fails, or the station's
	// ranging timeout expires.
	Range(ctx context.Context, target Target, count, burstPeriod uint, out Sink) error
}

// Driver talks to the radio.
type Driver interface {
	// Name identifies the backend in logs.
	Name() string

	// ScanAccessPoints performs a blocking scan. An empty ssid matches all.
	ScanAccessPoints(ctx context.Context, ssid string) ([]AccessPoint, error)

	// InitiateFTM starts an FTM session and waits for its report.
	// Implementations must return when ctx is done.
	InitiateFTM(ctx context.Context, cfg FTMConfig) (*FTMReport, error)
}

// AccessPoint is one scan result.
type AccessPoint struct {
	SSID         string `yaml:"ssid"`
	BSSID        MAC    `yaml:"bssid"`
	Channel      uint   `yaml:"channel"`
	RSSI         int    `yaml:"rssi"`
	FTMResponder bool   `yaml:"ftmResponder"`
}

// Target selects the FTM responder. When BySSID is set the responder is
// resolved from a scan by SSID and MAC/Channel are ignored.
type Target struct {
	BySSID  bool
	SSID    string
	MAC     MAC
	Channel uint
}

// SSIDTarget returns a Target resolved by ssid.
func SSIDTarget(ssid string) Target {
	return Target{BySSID: true, SSID: ssid}
}

// FTMConfig is the initiator configuration handed to the driver.
type FTMConfig struct {
	Responder   MAC
	Channel     uint
	FrameCount  uint
	BurstPeriod uint // units of 100 ms, 0 = no preference
}

// FTMEntry is one measurement frame of an FTM report.
type FTMEntry struct {
	DialogToken uint8
	RTT         uint32 // picoseconds
	T1          uint64 // picoseconds
	T2          uint64
	T3          uint64
	T4          uint64
	RSSI        int8
}

// FTMReport is the outcome of a successful FTM session.
type FTMReport struct {
	RTTEstimate      uint32 // nanoseconds
	DistanceEstimate uint32 // centimeters
	Entries          []FTMEntry
}

// Valid FTM parameters.
const (
	MinBurstPeriod = 2
	MaxBurstPeriod = 255

	DefaultFrameCount  = 8
	DefaultBurstPeriod = 4

	MsgInvalidFrameCount  = "Invalid Frame Count! Valid options are 0/8/16/24/32/64"
	MsgInvalidBurstPeriod = "Invalid Burst Period! Valid range is 2-255"
)

var validFrameCounts = [...]uint{0, 8, 16, 24, 32, 64}

// ValidFrameCount reports whether n is an accepted frames-per-burst value.
func ValidFrameCount(n uint) bool {
	for _, v := range validFrameCounts {
		if n == v {
			return true
		}
	}
	return false
}

// ValidBurstPeriod reports whether n lies in [MinBurstPeriod, MaxBurstPeriod].
func ValidBurstPeriod(n uint) bool {
	return n >= MinBurstPeriod && n <= MaxBurstPeriod
}
