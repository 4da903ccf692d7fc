// Package wire converts between the textual hex representation used in
// configuration and logs and the raw byte sequences sent to devices, and
// packs/unpacks 16-bit values into byte pairs.
package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Endianness selects the byte order for 16-bit values on the wire.
type Endianness int

const (
	// HighFirst places the most significant byte first (big-endian).
	HighFirst Endianness = iota
	// LowFirst places the least significant byte first (little-endian).
	LowFirst
)

// ErrMalformedHex is returned by ParseHex when the input does not contain an
// even number of hex digits after stripping separators.
var ErrMalformedHex = errors.New("malformed hex: odd number of hex digits")

// ParseEndianness parses a configuration string into an Endianness value.
// Accepts "high-first"/"big" and "low-first"/"little"; defaults to HighFirst
// for an empty string.
func ParseEndianness(s string) (Endianness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "high-first", "big":
		return HighFirst, nil
	case "low-first", "little":
		return LowFirst, nil
	}
	return HighFirst, fmt.Errorf("unknown endianness %q", s)
}

// String returns the canonical configuration spelling.
func (e Endianness) String() string {
	if e == LowFirst {
		return "low-first"
	}
	return "high-first"
}

// Encode16 splits a 16-bit value into two bytes in the given byte order.
func Encode16(v uint16, e Endianness) (byte, byte) {
	if e == LowFirst {
		return byte(v & 0xFF), byte(v >> 8)
	}
	return byte(v >> 8), byte(v & 0xFF)
}

// Decode16 reassembles a 16-bit value from two bytes in the given byte order.
func Decode16(b1, b2 byte, e Endianness) uint16 {
	if e == LowFirst {
		return uint16(b2)<<8 | uint16(b1)
	}
	return uint16(b1)<<8 | uint16(b2)
}

// ParseHex converts hex text into bytes. All characters that are not hex
// digits (spaces, commas, 0x prefixes, whatever the user typed) are stripped
// before parsing, so "FF FE" and "ff,fe" are equivalent.
func ParseHex(text string) ([]byte, error) {
	digits := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		if v, ok := hexVal(text[i]); ok {
			digits = append(digits, v)
		}
	}

	if len(digits)%2 != 0 {
		return nil, ErrMalformedHex
	}

	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = digits[2*i]<<4 | digits[2*i+1]
	}
	return out, nil
}

// ToHex renders bytes in the canonical text form: two uppercase hex digits
// per byte, space-separated. Round-trips with ParseHex.
func ToHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(hexDigit(v >> 4))
		sb.WriteByte(hexDigit(v & 0x0F))
	}
	return sb.String()
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'A' + v - 10
}
