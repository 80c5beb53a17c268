// Package lz implements the byte-oriented LZ scheme used for compressed
// graphics, tilemap, sprite and sequence blocks in the cartridge.
//
// A stream is a sequence of units, each introduced by a control byte:
//
//	0x00-0x7F  literal run: the next c+1 bytes are copied verbatim
//	0x80-0xFB  back-reference: length ((c>>2)&0x1F)+3, distance ((c&3)<<8|next)+1
//	0xFC-0xFE  reserved
//	0xFF       end of stream
//
// Back-references copy from the decoded output one byte at a time, so a
// distance shorter than the length repeats the most recent bytes.
package lz

import (
	"fmt"

	"github.com/hansbonini/issdtools/pkg/common"
)

const (
	EndMarker = 0xFF

	MaxLiteral  = 0x80
	MinMatch    = 3
	MaxMatch    = 33
	MaxDistance = 1024

	backRefFlag  = 0x80
	reservedBase = 0xFC
)

// Decompress decodes the stream that starts at src[cursor]. Decoding ends at
// the end marker or, when limit > 0, as soon as limit bytes are produced (an
// end marker directly after that point is consumed too). It returns the
// decoded bytes and the number of source bytes consumed.
func Decompress(src []byte, cursor, limit int) ([]byte, int, error) {
	if cursor < 0 || cursor > len(src) {
		return nil, 0, fmt.Errorf("cursor %d outside source of %d bytes: %w", cursor, len(src), common.ErrOutOfRange)
	}

	start := cursor
	capacity := limit
	if capacity <= 0 {
		capacity = 256
	}
	out := make([]byte, 0, capacity)

	for {
		if limit > 0 && len(out) == limit {
			if cursor < len(src) && src[cursor] == EndMarker {
				cursor++
			}
			break
		}
		if cursor >= len(src) {
			return nil, 0, fmt.Errorf("stream ends at %d without end marker: %w", cursor, common.ErrMalformedStream)
		}

		control := src[cursor]
		cursor++

		switch {
		case control == EndMarker:
			if limit > 0 && len(out) != limit {
				return nil, 0, fmt.Errorf("end marker after %d bytes, expected %d: %w", len(out), limit, common.ErrMalformedStream)
			}
			common.LogDebug(common.DebugEndMarker, cursor-1, len(out))
			return out, cursor - start, nil

		case control >= reservedBase:
			return nil, 0, fmt.Errorf("reserved control byte 0x%02X at %d: %w", control, cursor-1, common.ErrMalformedStream)

		case control&backRefFlag == 0:
			length := int(control) + 1
			if cursor+length > len(src) {
				return nil, 0, fmt.Errorf("literal run of %d at %d overruns source: %w", length, cursor-1, common.ErrMalformedStream)
			}
			if limit > 0 && len(out)+length > limit {
				return nil, 0, fmt.Errorf("literal run of %d exceeds declared size %d: %w", length, limit, common.ErrMalformedStream)
			}
			out = append(out, src[cursor:cursor+length]...)
			cursor += length

		default:
			if cursor >= len(src) {
				return nil, 0, fmt.Errorf("back-reference at %d is truncated: %w", cursor-1, common.ErrMalformedStream)
			}
			length := int((control>>2)&0x1F) + MinMatch
			distance := (int(control&0x03)<<8 | int(src[cursor])) + 1
			cursor++

			if distance > len(out) {
				return nil, 0, fmt.Errorf("back-reference distance %d exceeds %d decoded bytes: %w", distance, len(out), common.ErrMalformedStream)
			}
			if limit > 0 && len(out)+length > limit {
				return nil, 0, fmt.Errorf("back-reference of %d exceeds declared size %d: %w", length, limit, common.ErrMalformedStream)
			}
			from := len(out) - distance
			for i := 0; i < length; i++ {
				out = append(out, out[from+i])
			}
		}
	}

	return out, cursor - start, nil
}

// Compress encodes src with a greedy longest-match search. budget bounds how
// far back each position looks for a match; zero or anything above
// MaxDistance searches the whole window. The result always ends with the
// end marker and round-trips through Decompress.
func Compress(src []byte, budget int) []byte {
	window := MaxDistance
	if budget > 0 && budget < window {
		window = budget
	}

	out := make([]byte, 0, len(src)/2+8)
	literalStart := 0

	flushLiterals := func(end int) {
		for literalStart < end {
			n := end - literalStart
			if n > MaxLiteral {
				n = MaxLiteral
			}
			out = append(out, byte(n-1))
			out = append(out, src[literalStart:literalStart+n]...)
			literalStart += n
		}
	}

	pos := 0
	for pos < len(src) {
		distance, length := findLongestMatch(src, pos, window)
		if length < MinMatch {
			pos++
			continue
		}

		flushLiterals(pos)
		d := distance - 1
		out = append(out, byte(backRefFlag|(length-MinMatch)<<2|d>>8), byte(d))
		pos += length
		literalStart = pos
	}
	flushLiterals(len(src))

	return append(out, EndMarker)
}

// findLongestMatch returns the closest distance giving the longest match at pos.
// Matches may overlap pos, which is how runs of one value are encoded.
func findLongestMatch(data []byte, pos, window int) (distance, length int) {
	maxLength := len(data) - pos
	if maxLength > MaxMatch {
		maxLength = MaxMatch
	}
	if maxLength < MinMatch {
		return 0, 0
	}

	maxDistance := pos
	if maxDistance > window {
		maxDistance = window
	}

	for d := 1; d <= maxDistance; d++ {
		src := pos - d
		n := 0
		for n < maxLength && data[src+n] == data[pos+n] {
			n++
		}
		if n > length {
			distance, length = d, n
			if n == maxLength {
				break
			}
		}
	}
	return distance, length
}
