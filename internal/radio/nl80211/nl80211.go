// Package nl80211 drives a Linux station interface through nl80211.
//
// Scanning is supported. The FTM initiator is not exposed by the netlink
// client, so ranging reports radio.ErrUnsupported.
package nl80211

import (
	"go.uber.org/zap"

	"github.com/cezmen/chronos/internal/radio"
)

// Driver scans through the named station interface, or the first station
// interface found when the name is empty.
type Driver struct {
	iface  string
	logger *zap.Logger
}

var _ radio.Driver = (*Driver)(nil)

// New creates an nl80211 driver.
func New(iface string, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		iface:  iface,
		logger: logger.Named("nl80211"),
	}
}

// Name returns "nl80211".
func (d *Driver) Name() string { return "nl80211" }

// freqToChannel maps a center frequency in MHz to its channel number.
func freqToChannel(freqMHz int) uint {
	switch {
	case freqMHz == 2484:
		return 14
	case freqMHz >= 2412 && freqMHz < 2484:
		return uint((freqMHz-2412)/5 + 1)
	case freqMHz >= 5180 && freqMHz <= 5885:
		return uint((freqMHz-5180)/5 + 36)
	case freqMHz >= 5955 && freqMHz <= 7115:
		return uint((freqMHz-5955)/5 + 1)
	}
	return 0
}
