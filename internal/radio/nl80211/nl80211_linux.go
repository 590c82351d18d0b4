//go:build linux

package nl80211

import (
	"context"
	"errors"
	"fmt"

	"github.com/mdlayher/wifi"
	"go.uber.org/zap"

	"github.com/cezmen/chronos/internal/radio"
)

// ScanAccessPoints triggers an active scan and reads the BSS list. A
// rejected trigger falls back to the kernel's cached results.
func (d *Driver) ScanAccessPoints(ctx context.Context, ssid string) ([]radio.AccessPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("open wifi client: %w", err)
	}
	defer c.Close()

	ifi, err := d.station(c)
	if err != nil {
		return nil, err
	}

	if scanErr := c.Scan(ctx, ifi); scanErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(scanErr, wifi.ErrScanAborted) {
			d.logger.Debug("active scan failed, using cached results",
				zap.String("interface", ifi.Name), zap.Error(scanErr))
		}
	}

	bssList, err := c.AccessPoints(ifi)
	if err != nil {
		return nil, fmt.Errorf("get access points: %w", err)
	}

	results := make([]radio.AccessPoint, 0, len(bssList))
	for _, bss := range bssList {
		if len(bss.BSSID) != len(radio.MAC{}) {
			continue
		}
		if ssid != "" && bss.SSID != ssid {
			continue
		}

		var mac radio.MAC
		copy(mac[:], bss.BSSID)
		results = append(results, radio.AccessPoint{
			SSID:    bss.SSID,
			BSSID:   mac,
			Channel: freqToChannel(bss.Frequency),
			RSSI:    int(bss.Signal / 100), // mBm to dBm
		})
	}

	d.logger.Debug("scan complete",
		zap.String("interface", ifi.Name),
		zap.String("ssid", ssid),
		zap.Int("results", len(results)))
	return results, nil
}

// InitiateFTM reports radio.ErrUnsupported.
func (d *Driver) InitiateFTM(ctx context.Context, cfg radio.FTMConfig) (*radio.FTMReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: FTM initiator not available on nl80211", radio.ErrUnsupported)
}

func (d *Driver) station(c *wifi.Client) (*wifi.Interface, error) {
	ifaces, err := c.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerate wifi interfaces: %w", err)
	}

	for _, ifi := range ifaces {
		if ifi.Type != wifi.InterfaceTypeStation {
			continue
		}
		if d.iface == "" || ifi.Name == d.iface {
			return ifi, nil
		}
	}

	if d.iface != "" {
		return nil, fmt.Errorf("%w: no station interface %q", radio.ErrNotFound, d.iface)
	}
	return nil, fmt.Errorf("%w: no station interface", radio.ErrNotFound)
}
