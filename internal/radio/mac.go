package radio

import (
	"encoding/hex"
	"fmt"
)

// MAC is a 48-bit hardware address.
type MAC [6]byte

// ParseMAC parses the aa:bb:cc:dd:ee:ff form. Each octet must be exactly
// two hex digits.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	if len(s) != 17 {
		return m, fmt.Errorf("invalid MAC address %q", s)
	}
	for i := 0; i < 6; i++ {
		off := i * 3
		if i < 5 && s[off+2] != ':' {
			return m, fmt.Errorf("invalid MAC address %q", s)
		}
		if _, err := hex.Decode(m[i:i+1], []byte(s[off:off+2])); err != nil {
			return MAC{}, fmt.Errorf("invalid MAC address %q: %w", s, err)
		}
	}
	return m, nil
}

// String formats m as lowercase aa:bb:cc:dd:ee:ff.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsZero reports whether m is the all-zero address.
func (m MAC) IsZero() bool {
	return m == MAC{}
}

// UnmarshalYAML decodes a MAC from its string form.
func (m *MAC) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseMAC(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalYAML encodes m as a string.
func (m MAC) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}
