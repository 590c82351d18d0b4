package command

import (
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/buger/jsonparser"

	"github.com/cezmen/chronos/internal/radio"
)

const paramsKey = "parameters"

// Parse matches frame against the command grammars in priority order.
//
// It returns ErrNoMatch when no grammar applies, and a *ValidationError when
// an ftm command carries an out-of-range count or burst. Lookup failures of
// any kind count as an absent field. A malformed MAC fails the ftm grammar
// without falling through to scan.
func Parse(frame []byte) (Command, error) {
	if !isObject(frame) {
		return nil, ErrNoMatch
	}

	function, err := jsonparser.GetString(frame, "function")
	if err != nil {
		return nil, ErrNoMatch
	}

	switch function {
	case FunctionFTM:
		return parseFTM(frame)
	case FunctionScan:
		ssid, ok := stringParam(frame, "ssid")
		if !ok || ssid == "" {
			ssid = WildcardSSID
		}
		return Scan{SSID: truncateSSID(ssid)}, nil
	}
	return nil, ErrNoMatch
}

func parseFTM(frame []byte) (Command, error) {
	if ssid, ok := stringParam(frame, "ssid"); ok {
		count, burst, err := rangingParams(frame)
		if err != nil {
			return nil, err
		}
		return FtmBySSID{SSID: truncateSSID(ssid), Count: count, BurstPeriod: burst}, nil
	}

	macText, ok := stringParam(frame, "mac")
	if !ok {
		return nil, ErrNoMatch
	}
	channel, err := jsonparser.GetInt(frame, paramsKey, "channel")
	if err != nil || channel < 0 || channel > math.MaxUint8 {
		return nil, ErrNoMatch
	}
	mac, err := radio.ParseMAC(macText)
	if err != nil {
		return nil, ErrNoMatch
	}

	count, burst, err := rangingParams(frame)
	if err != nil {
		return nil, err
	}
	return FtmByMAC{MAC: mac, Channel: uint(channel), Count: count, BurstPeriod: burst}, nil
}

// rangingParams reads count and burst, applying defaults when absent.
func rangingParams(frame []byte) (count, burst uint, err error) {
	count, err = uintParam(frame, "count", radio.DefaultFrameCount, radio.ValidFrameCount, radio.MsgInvalidFrameCount)
	if err != nil {
		return 0, 0, err
	}
	burst, err = uintParam(frame, "burst", radio.DefaultBurstPeriod, radio.ValidBurstPeriod, radio.MsgInvalidBurstPeriod)
	if err != nil {
		return 0, 0, err
	}
	return count, burst, nil
}

func uintParam(frame []byte, key string, def uint, valid func(uint) bool, msg string) (uint, error) {
	v, err := jsonparser.GetInt(frame, paramsKey, key)
	if err != nil {
		return def, nil
	}
	if v < 0 || v > math.MaxUint32 || !valid(uint(v)) {
		return 0, &ValidationError{Field: key, Message: msg}
	}
	return uint(v), nil
}

func stringParam(frame []byte, key string) (string, bool) {
	s, err := jsonparser.GetString(frame, paramsKey, key)
	if err != nil {
		return "", false
	}
	return s, true
}

// isObject reports whether frame is exactly one well-formed JSON object.
func isObject(frame []byte) bool {
	if !json.Valid(frame) {
		return false
	}
	_, typ, _, err := jsonparser.Get(frame)
	return err == nil && typ == jsonparser.Object
}

// truncateSSID cuts s to MaxSSIDLen bytes without splitting a UTF-8 sequence.
func truncateSSID(s string) string {
	if len(s) <= MaxSSIDLen {
		return s
	}
	n := MaxSSIDLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
