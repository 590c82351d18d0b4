//go:build !linux

package nl80211

import (
	"context"
	"fmt"

	"github.com/cezmen/chronos/internal/radio"
)

// ScanAccessPoints reports radio.ErrUnsupported outside Linux.
func (d *Driver) ScanAccessPoints(ctx context.Context, ssid string) ([]radio.AccessPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: nl80211 requires linux", radio.ErrUnsupported)
}

// InitiateFTM reports radio.ErrUnsupported outside Linux.
func (d *Driver) InitiateFTM(ctx context.Context, cfg radio.FTMConfig) (*radio.FTMReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: nl80211 requires linux", radio.ErrUnsupported)
}
