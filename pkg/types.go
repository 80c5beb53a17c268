package pkg

import (
	"github.com/hansbonini/issdtools/pkg/snes"
)

// Format tags how an asset is stored in the ROM.
type Format string

const (
	FormatRaw          Format = "raw"
	FormatCompressed   Format = "compressed"
	FormatPointerTable Format = "pointer-table"
	FormatText         Format = "text"
)

// TableRef names a pointer table whose entries point at an asset. With no
// explicit entries, every entry holding the asset's address is a reference.
type TableRef struct {
	Table   string
	Entries []int
}

// Preview controls optional PNG rendering of decoded tile data.
type Preview struct {
	BPP     int
	Width   int    // sheet width in tiles
	Scale   int    // integer zoom
	Palette string // raw asset holding BGR555 colors
}

// AssetDescriptor declares where an asset lives and how to decode it.
type AssetDescriptor struct {
	Name    string
	Address snes.Address
	Format  Format

	// Size is the on-ROM span: raw length, or the compressed slot length.
	// Zero for compressed assets means the slot ends at the end marker.
	Size int
	// DecodedSize is the declared output length of a compressed asset (0 = until end marker).
	DecodedSize int
	// Pad fills slack left in a slot when a smaller block is written back.
	Pad byte

	// pointer-table
	Count  int
	Width  int   // 2 (bank implied) or 3 (full bus address)
	Stride int   // distance between entries, at least Width
	Bank   uint8 // bank implied by 2-byte entries

	// text
	Charmap string
	Record  int  // bytes per record
	Fold    bool // fold accented letters the charmap lacks

	ReferencedBy []TableRef
	Preview      *Preview
}

// Span returns the fixed on-ROM length, or 0 when it is only known after decoding.
func (d AssetDescriptor) Span() int {
	switch d.Format {
	case FormatPointerTable:
		if d.Count == 0 {
			return 0
		}
		return (d.Count-1)*d.Stride + d.Width
	case FormatText:
		return d.Record * d.Count
	}
	return d.Size
}

// TableEntry is one decoded pointer-table slot. Entries whose value does not
// resolve to a ROM address (null pointers, RAM addresses) keep only Raw.
type TableEntry struct {
	Index    int
	Raw      uint32
	Target   snes.Address
	Resolved bool
}

// AssetBlob is the decoded content of one asset plus where it came from.
type AssetBlob struct {
	Name        string
	Format      Format
	Data        []byte
	Source      snes.Address
	OnROMLength int
	Entries     []TableEntry // pointer-table only
}

// PointerTableEntry locates a single pointer that references an asset.
type PointerTableEntry struct {
	Table  string
	Index  int
	Slot   int // linear offset of the entry
	Width  int
	Bank   uint8
	Target snes.Address
}

// RelocationRecord describes an asset that moved during a rebuild and the
// pointers that must follow it.
type RelocationRecord struct {
	Asset     string
	Old       snes.Address
	New       snes.Address
	OldLength int
	NewLength int
	Entries   []PointerTableEntry
}
