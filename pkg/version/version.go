// Package version provides PLDM version parsing, ver32 wire encoding,
// and the embedded platform monitoring command manifests.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the platform monitoring subsystem version implemented by
// this library.
const Current = "1.2"

// NotPresent marks an absent update or alpha field in a ver32 encoding.
const NotPresent = 0xFF

// Version is a PLDM version: major.minor with optional update and alpha
// components.
type Version struct {
	Major  uint8
	Minor  uint8
	Update uint8 // NotPresent when absent
	Alpha  byte  // 0x00 when absent
}

// Parse parses a version string of the form "major.minor",
// "major.minor.update", or "major.minor.update" followed by a single
// alpha character (e.g. "1.2.1a").
func Parse(s string) (Version, error) {
	v := Version{Update: NotPresent}

	parts := strings.Split(s, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q: expected major.minor[.update]", s)
	}

	major, err := parseComponent(parts[0])
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad major component", s)
	}
	minor, err := parseComponent(parts[1])
	if err != nil {
		return Version{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}
	v.Major, v.Minor = major, minor

	if len(parts) == 3 {
		upd := parts[2]
		if n := len(upd); n > 0 && upd[n-1] >= 'a' && upd[n-1] <= 'z' {
			v.Alpha = upd[n-1]
			upd = upd[:n-1]
		}
		update, err := parseComponent(upd)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: bad update component", s)
		}
		v.Update = update
	}

	return v, nil
}

func parseComponent(s string) (uint8, error) {
	if s == "" {
		return 0, fmt.Errorf("empty component")
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n > 99 {
		return 0, fmt.Errorf("component out of range")
	}
	return uint8(n), nil
}

// String renders the version, omitting absent update and alpha fields.
func (v Version) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d", v.Major, v.Minor)
	if v.Update != NotPresent {
		fmt.Fprintf(&b, ".%d", v.Update)
	}
	if v.Alpha != 0 {
		b.WriteByte(v.Alpha)
	}
	return b.String()
}

// Compatible reports whether the two versions share a major version.
func (v Version) Compatible(other Version) bool {
	return v.Major == other.Major
}

// Ver32 encodes the version in the PLDM ver32 wire format: major,
// minor, and update bytes in BCD (single digits carry a 0xF high
// nibble), followed by the alpha byte.
func (v Version) Ver32() uint32 {
	return uint32(bcd(v.Major))<<24 |
		uint32(bcd(v.Minor))<<16 |
		uint32(bcd(v.Update))<<8 |
		uint32(v.Alpha)
}

// FromVer32 decodes a ver32 wire value.
func FromVer32(raw uint32) (Version, error) {
	major, err := unbcd(uint8(raw >> 24))
	if err != nil {
		return Version{}, fmt.Errorf("ver32 %08x: bad major byte: %w", raw, err)
	}
	minor, err := unbcd(uint8(raw >> 16))
	if err != nil {
		return Version{}, fmt.Errorf("ver32 %08x: bad minor byte: %w", raw, err)
	}

	v := Version{Major: major, Minor: minor, Update: NotPresent, Alpha: byte(raw)}
	if b := uint8(raw >> 8); b != NotPresent {
		update, err := unbcd(b)
		if err != nil {
			return Version{}, fmt.Errorf("ver32 %08x: bad update byte: %w", raw, err)
		}
		v.Update = update
	}
	return v, nil
}

func bcd(n uint8) uint8 {
	if n == NotPresent {
		return NotPresent
	}
	if n < 10 {
		return 0xF0 | n
	}
	return (n/10)<<4 | n%10
}

func unbcd(b uint8) (uint8, error) {
	hi, lo := b>>4, b&0x0F
	if lo > 9 {
		return 0, fmt.Errorf("low nibble %x is not a digit", lo)
	}
	if hi == 0xF {
		return lo, nil
	}
	if hi > 9 {
		return 0, fmt.Errorf("high nibble %x is not a digit", hi)
	}
	return hi*10 + lo, nil
}
