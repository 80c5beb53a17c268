// Package snes provides SNES-specific structures and functionality.
// This file contains the ROM layout description shared by every stage
// of the extraction and rebuild pipeline.
package snes

import (
	"fmt"
)

// ROM geometry constants
const (
	LoROMBankSize       = 0x8000 // LoROM maps 32 KiB of ROM per bank
	LoROMBankWindow     = 0x8000 // ROM appears at $8000-$FFFF of every LoROM bank
	CopierHeaderSize    = 0x200  // 512-byte header prepended by backup units
	DefaultHeaderLoROM  = 0x7FC0 // internal header location for LoROM images
	DefaultHeaderLinear = 0xFFC0 // internal header location for HiROM-style images
	DefaultFastROMBase  = 0x80   // first bank number used by FastROM LoROM code
	HeaderComplement    = 0x1C   // checksum complement, relative to the header
	HeaderChecksum      = 0x1E   // checksum, relative to the header
	HeaderLength        = 0x20
)

// Mapping selects how bank:offset addresses relate to file offsets.
type Mapping string

const (
	// MappingLinear treats the image as consecutive banks of BankSize bytes
	// whose offsets start at zero (HiROM style).
	MappingLinear Mapping = "linear"
	// MappingLoROM maps 32 KiB of ROM into the upper half of each bank.
	MappingLoROM Mapping = "lorom"
)

// Layout describes the fixed geometry of a ROM image.
type Layout struct {
	Mapping      Mapping
	BankSize     int   // power of two; forced to 0x8000 for LoROM
	BankBase     uint8 // bank number of the first ROM bank
	Size         int   // image size without copier header
	CopierHeader bool  // file carries a 512-byte copier header
	HeaderOffset int   // internal header offset inside the image
}

// NewLayout fills in mapping defaults and validates the result.
func NewLayout(mapping Mapping, size int) (Layout, error) {
	l := Layout{Mapping: mapping, Size: size}
	l.ApplyDefaults()
	return l, l.Validate()
}

// ApplyDefaults sets bank size and header offset when they are zero. The bank
// base is left alone since zero is a valid first bank.
func (l *Layout) ApplyDefaults() {
	if l.Mapping == "" {
		l.Mapping = MappingLoROM
	}
	switch l.Mapping {
	case MappingLoROM:
		if l.BankSize == 0 {
			l.BankSize = LoROMBankSize
		}
		if l.HeaderOffset == 0 {
			l.HeaderOffset = DefaultHeaderLoROM
		}
	case MappingLinear:
		if l.BankSize == 0 {
			l.BankSize = 0x10000
		}
		if l.HeaderOffset == 0 {
			l.HeaderOffset = DefaultHeaderLinear
		}
	}
}

// Validate checks the layout invariants.
func (l Layout) Validate() error {
	switch l.Mapping {
	case MappingLoROM:
		if l.BankSize != LoROMBankSize {
			return fmt.Errorf("lorom mapping requires bank size 0x%X, got 0x%X", LoROMBankSize, l.BankSize)
		}
	case MappingLinear:
	default:
		return fmt.Errorf("unknown mapping mode %q", l.Mapping)
	}

	if l.BankSize <= 0 || l.BankSize&(l.BankSize-1) != 0 || l.BankSize > 0x10000 {
		return fmt.Errorf("bank size 0x%X is not a power of two up to 0x10000", l.BankSize)
	}
	if l.Size <= 0 || l.Size%l.BankSize != 0 {
		return fmt.Errorf("image size 0x%X is not a multiple of bank size 0x%X", l.Size, l.BankSize)
	}
	if banks := l.Size / l.BankSize; int(l.BankBase)+banks > 0x100 {
		return fmt.Errorf("%d banks starting at $%02X exceed the 24-bit address space", banks, l.BankBase)
	}
	return nil
}

// Banks returns the number of banks in the image.
func (l Layout) Banks() int {
	return l.Size / l.BankSize
}

// SplitImage separates a copier header from the ROM data. The returned ROM
// slice shares memory with file.
func (l Layout) SplitImage(file []byte) (header, rom []byte, err error) {
	if l.CopierHeader {
		if len(file) < CopierHeaderSize {
			return nil, nil, fmt.Errorf("file is %d bytes, shorter than the copier header", len(file))
		}
		header, rom = file[:CopierHeaderSize], file[CopierHeaderSize:]
	} else {
		rom = file
	}

	if len(rom) != l.Size {
		return nil, nil, fmt.Errorf("image is 0x%X bytes, layout declares 0x%X", len(rom), l.Size)
	}
	return header, rom, nil
}

// JoinImage prepends the copier header (if any) to rom.
func JoinImage(header, rom []byte) []byte {
	out := make([]byte, 0, len(header)+len(rom))
	out = append(out, header...)
	return append(out, rom...)
}
