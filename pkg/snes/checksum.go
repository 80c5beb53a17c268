package snes

import (
	"encoding/binary"
	"fmt"

	"github.com/hansbonini/issdtools/pkg/common"
)

// Checksum holds the header checksum pair.
type Checksum struct {
	Sum        uint16
	Complement uint16
}

// Valid reports whether the complement is the bitwise NOT of the sum.
func (c Checksum) Valid() bool {
	return c.Sum^c.Complement == 0xFFFF
}

func checkHeader(rom []byte, headerOffset int) error {
	if headerOffset < 0 || headerOffset+HeaderLength > len(rom) {
		return fmt.Errorf("header at 0x%06X needs 0x%X bytes, image has 0x%X: %w",
			headerOffset, headerOffset+HeaderLength, len(rom), common.ErrOutOfRange)
	}
	return nil
}

// StoredChecksum reads the checksum pair from the internal header.
func StoredChecksum(rom []byte, headerOffset int) (Checksum, error) {
	if err := checkHeader(rom, headerOffset); err != nil {
		return Checksum{}, err
	}
	return Checksum{
		Complement: binary.LittleEndian.Uint16(rom[headerOffset+HeaderComplement:]),
		Sum:        binary.LittleEndian.Uint16(rom[headerOffset+HeaderChecksum:]),
	}, nil
}

// ComputeChecksum sums every byte of rom while treating the header checksum
// fields as complement=0xFFFF and checksum=0x0000. Images whose size is not a
// power of two are mirrored the way the console maps them: 0x38000 bytes count
// as 0x20000 + 2*(0x10000 + 2*0x8000).
func ComputeChecksum(rom []byte, headerOffset int) (Checksum, error) {
	if err := checkHeader(rom, headerOffset); err != nil {
		return Checksum{}, err
	}

	sumRange := func(from, to int) uint16 {
		var s uint16
		for i := from; i < to; i++ {
			switch {
			case i >= headerOffset+HeaderComplement && i < headerOffset+HeaderComplement+2:
				s += 0xFF
			case i >= headerOffset+HeaderChecksum && i < headerOffset+HeaderChecksum+2:
				// counted as 0x00
			default:
				s += uint16(rom[i])
			}
		}
		return s
	}

	// the largest power-of-two block is summed once; the remainder is summed
	// the same way and doubled until it is as long as that block
	var mirrorSum func(start, length int) uint16
	mirrorSum = func(start, length int) uint16 {
		block := 1
		for block*2 <= length {
			block *= 2
		}
		sum := sumRange(start, start+block)
		if rest := length - block; rest > 0 {
			tail := mirrorSum(start+block, rest)
			for ; rest < block; rest *= 2 {
				tail *= 2
			}
			sum += tail
		}
		return sum
	}

	sum := mirrorSum(0, len(rom))
	return Checksum{Sum: sum, Complement: ^sum}, nil
}

// Finalize computes the checksum of rom and writes it into the header in place.
func Finalize(rom []byte, headerOffset int) (Checksum, error) {
	c, err := ComputeChecksum(rom, headerOffset)
	if err != nil {
		return Checksum{}, err
	}

	binary.LittleEndian.PutUint16(rom[headerOffset+HeaderComplement:], c.Complement)
	binary.LittleEndian.PutUint16(rom[headerOffset+HeaderChecksum:], c.Sum)
	common.LogDebug(common.InfoChecksumFinalized, c.Sum, c.Complement)
	return c, nil
}

// Verify compares the stored checksum pair with the computed one.
func Verify(rom []byte, headerOffset int) (stored, computed Checksum, ok bool, err error) {
	stored, err = StoredChecksum(rom, headerOffset)
	if err != nil {
		return
	}
	computed, err = ComputeChecksum(rom, headerOffset)
	if err != nil {
		return
	}
	ok = stored == computed
	return
}
