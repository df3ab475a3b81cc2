package domain

import (
	"crypto/tls"
	"fmt"
	"math/bits"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Version is a TLS protocol version.
type Version int

const (
	VersionUnknown Version = iota
	VersionTLS10
	VersionTLS11
	VersionTLS12
	VersionTLS13
)

var versionStrings = map[Version]string{
	VersionTLS10: "tls1.0",
	VersionTLS11: "tls1.1",
	VersionTLS12: "tls1.2",
	VersionTLS13: "tls1.3",
}

var stringToVersion = map[string]Version{
	"tls1.0": VersionTLS10,
	"tls10":  VersionTLS10,
	"1.0":    VersionTLS10,
	"tls1.1": VersionTLS11,
	"tls11":  VersionTLS11,
	"1.1":    VersionTLS11,
	"tls1.2": VersionTLS12,
	"tls12":  VersionTLS12,
	"1.2":    VersionTLS12,
	"tls1.3": VersionTLS13,
	"tls13":  VersionTLS13,
	"1.3":    VersionTLS13,
}

var versionWire = map[Version]uint16{
	VersionTLS10: tls.VersionTLS10,
	VersionTLS11: tls.VersionTLS11,
	VersionTLS12: tls.VersionTLS12,
	VersionTLS13: tls.VersionTLS13,
}

// String returns the string representation.
func (v Version) String() string {
	if s, ok := versionStrings[v]; ok {
		return s
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*v = VersionUnknown
		return nil
	}
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVersion parses a string to Version.
func ParseVersion(s string) (Version, error) {
	if v, ok := stringToVersion[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return VersionUnknown, fmt.Errorf("invalid TLS version: %s", s)
}

// IsValid returns true if the version is known.
func (v Version) IsValid() bool {
	_, ok := versionStrings[v]
	return ok
}

// Uint16 returns the crypto/tls constant, or 0 for an unknown version.
func (v Version) Uint16() uint16 {
	return versionWire[v]
}

// VersionFromUint16 maps a crypto/tls version constant back to a Version.
func VersionFromUint16(wire uint16) Version {
	for v, w := range versionWire {
		if w == wire {
			return v
		}
	}
	return VersionUnknown
}

// ProtocolSet is a set of TLS versions. The empty set means unrestricted:
// the crypto/tls defaults apply.
type ProtocolSet uint8

// ProtocolsNone leaves version selection to the platform.
const ProtocolsNone ProtocolSet = 0

// Protocols builds a set from versions.
func Protocols(versions ...Version) ProtocolSet {
	var s ProtocolSet
	for _, v := range versions {
		if v.IsValid() {
			s |= 1 << (v - 1)
		}
	}
	return s
}

// IsNone reports whether the set is unrestricted.
func (s ProtocolSet) IsNone() bool {
	return s == ProtocolsNone
}

// Contains reports whether v is in the set.
func (s ProtocolSet) Contains(v Version) bool {
	return v.IsValid() && s&(1<<(v-1)) != 0
}

// Versions lists the members in ascending order.
func (s ProtocolSet) Versions() []Version {
	var out []Version
	for v := VersionTLS10; v <= VersionTLS13; v++ {
		if s.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

// Intersects reports whether two restricted sets share a version. An
// unrestricted set is never disjoint with anything.
func (s ProtocolSet) Intersects(other ProtocolSet) bool {
	if s.IsNone() || other.IsNone() {
		return true
	}
	return s&other != 0
}

// IsContiguous reports whether the set has no gaps. crypto/tls can only
// express a min/max window.
func (s ProtocolSet) IsContiguous() bool {
	if s.IsNone() {
		return true
	}
	shifted := uint8(s) >> bits.TrailingZeros8(uint8(s))
	return shifted&(shifted+1) == 0
}

// Range returns the crypto/tls min and max versions. Both are zero for an
// unrestricted set.
func (s ProtocolSet) Range() (uint16, uint16, error) {
	if s.IsNone() {
		return 0, 0, nil
	}
	if !s.IsContiguous() {
		return 0, 0, fmt.Errorf("protocol set %s is not contiguous", s)
	}
	versions := s.Versions()
	return versions[0].Uint16(), versions[len(versions)-1].Uint16(), nil
}

// Apply restricts cfg to the set.
func (s ProtocolSet) Apply(cfg *tls.Config) error {
	lo, hi, err := s.Range()
	if err != nil {
		return err
	}
	cfg.MinVersion = lo
	cfg.MaxVersion = hi
	return nil
}

func (s ProtocolSet) String() string {
	if s.IsNone() {
		return "none"
	}
	versions := s.Versions()
	names := make([]string, len(versions))
	for i, v := range versions {
		names[i] = v.String()
	}
	return strings.Join(names, "|")
}

// ParseProtocolSet accepts "none", a single version, or versions separated
// by '|' or ','.
func ParseProtocolSet(s string) (ProtocolSet, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	if trimmed == "" || trimmed == "none" {
		return ProtocolsNone, nil
	}
	var set ProtocolSet
	for _, part := range strings.FieldsFunc(trimmed, func(r rune) bool { return r == '|' || r == ',' }) {
		v, err := ParseVersion(part)
		if err != nil {
			return ProtocolsNone, err
		}
		set |= Protocols(v)
	}
	return set, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s ProtocolSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ProtocolSet) UnmarshalText(text []byte) error {
	parsed, err := ParseProtocolSet(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ProtocolSetDecodeHook converts strings and string lists into a
// ProtocolSet during configuration unmarshalling.
func ProtocolSetDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(ProtocolSet(0)) {
			return data, nil
		}

		switch value := data.(type) {
		case string:
			set, err := ParseProtocolSet(value)
			if err != nil {
				return nil, fmt.Errorf("invalid protocol set %q: %w", value, err)
			}
			return set, nil
		case []interface{}:
			parts := make([]string, 0, len(value))
			for _, item := range value {
				parts = append(parts, fmt.Sprint(item))
			}
			return ParseProtocolSet(strings.Join(parts, "|"))
		case []string:
			return ParseProtocolSet(strings.Join(value, "|"))
		}
		return data, nil
	}
}
