package common

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumber parses a decimal, 0x-prefixed or $-prefixed hexadecimal value.
// Underscores are accepted as digit separators ("0x01_8000").
func ParseNumber(s string) (uint32, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if v == "" {
		return 0, fmt.Errorf("empty number")
	}

	base := 10
	switch {
	case strings.HasPrefix(v, "0x"), strings.HasPrefix(v, "0X"):
		v = v[2:]
		base = 16
	case strings.HasPrefix(v, "$"):
		v = v[1:]
		base = 16
	}

	n, err := strconv.ParseUint(v, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(n), nil
}

// Uint24LE decodes a 3-byte little-endian value.
func Uint24LE(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// PutUint24LE encodes the low 24 bits of v as little-endian.
func PutUint24LE(b []byte, v uint32) {
	_ = b[2]
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// Fill sets every byte of b to value.
func Fill(b []byte, value byte) {
	for i := range b {
		b[i] = value
	}
}
