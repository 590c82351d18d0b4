package command

import (
	"fmt"

	"github.com/cezmen/chronos/internal/radio"
)

// Function names carried in the "function" field.
const (
	FunctionFTM  = "ftm"
	FunctionScan = "scan"
)

// WildcardSSID selects every access point in a scan.
const WildcardSSID = "?"

// MaxSSIDLen is the longest SSID kept from a frame; longer values are cut.
const MaxSSIDLen = 127

// Command is a parsed console command.
type Command interface {
	fmt.Stringer

	// Function returns the "function" value the command was parsed from.
	Function() string

	// Params returns the parameters for audit records.
	Params() map[string]interface{}
}

// FtmBySSID ranges against the FTM responder advertising SSID.
type FtmBySSID struct {
	SSID        string
	Count       uint
	BurstPeriod uint
}

// FtmByMAC ranges against a responder given by BSSID and channel.
type FtmByMAC struct {
	MAC         radio.MAC
	Channel     uint
	Count       uint
	BurstPeriod uint
}

// Scan lists access points. SSID is WildcardSSID for all of them.
type Scan struct {
	SSID string
}

func (FtmBySSID) Function() string { return FunctionFTM }
func (FtmByMAC) Function() string  { return FunctionFTM }
func (Scan) Function() string      { return FunctionScan }

func (c FtmBySSID) Params() map[string]interface{} {
	return map[string]interface{}{"ssid": c.SSID, "count": c.Count, "burst": c.BurstPeriod}
}

func (c FtmByMAC) Params() map[string]interface{} {
	return map[string]interface{}{"mac": c.MAC.String(), "channel": c.Channel, "count": c.Count, "burst": c.BurstPeriod}
}

func (c Scan) Params() map[string]interface{} {
	return map[string]interface{}{"ssid": c.SSID}
}

func (c FtmBySSID) String() string {
	return fmt.Sprintf("ftm ssid=%q count=%d burst=%d", c.SSID, c.Count, c.BurstPeriod)
}

func (c FtmByMAC) String() string {
	return fmt.Sprintf("ftm mac=%s channel=%d count=%d burst=%d", c.MAC, c.Channel, c.Count, c.BurstPeriod)
}

func (c Scan) String() string {
	return fmt.Sprintf("scan ssid=%q", c.SSID)
}
