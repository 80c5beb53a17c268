package snes

import (
	"bytes"
	"fmt"

	alttpo "github.com/alttpo/snes"
)

// extendedHeaderLead is how far the extended header starts before the
// internal header; ReadHeader expects to be positioned there.
const extendedHeaderLead = 0x10

// HeaderInfo summarizes the internal cartridge header.
type HeaderInfo struct {
	MapMode  uint8
	FastROM  bool
	Mapping  string
	Region   string
	Checksum Checksum
}

// ReadHeaderInfo parses the internal header at headerOffset.
func ReadHeaderInfo(rom []byte, headerOffset int) (*HeaderInfo, error) {
	start := headerOffset - extendedHeaderLead
	end := headerOffset + 0x40
	if start < 0 || end > len(rom) {
		return nil, fmt.Errorf("header region 0x%06X-0x%06X outside image of 0x%X bytes", start, end, len(rom))
	}

	var h alttpo.Header
	if err := h.ReadHeader(bytes.NewReader(rom[start:end])); err != nil {
		return nil, fmt.Errorf("failed to read cartridge header: %w", err)
	}

	stored, err := StoredChecksum(rom, headerOffset)
	if err != nil {
		return nil, err
	}

	info := &HeaderInfo{
		MapMode:  h.MapMode,
		FastROM:  h.MapMode&0x10 != 0,
		Checksum: stored,
		Region:   "other",
	}

	switch h.MapMode & ^uint8(0x10) {
	case 0x20:
		info.Mapping = "LoROM"
	case 0x21:
		info.Mapping = "HiROM"
	case 0x22:
		info.Mapping = "ExLoROM"
	case 0x25:
		info.Mapping = "ExHiROM"
	default:
		info.Mapping = fmt.Sprintf("unknown ($%02X)", h.MapMode)
	}

	if h.DestinationCode == alttpo.RegionJapan {
		info.Region = "Japan"
	} else if h.DestinationCode == alttpo.RegionNorthAmerica {
		info.Region = "North America"
	}

	return info, nil
}

// LayoutMapping returns the pipeline mapping that matches the header's map mode.
func (h *HeaderInfo) LayoutMapping() Mapping {
	if h.Mapping == "LoROM" || h.Mapping == "ExLoROM" {
		return MappingLoROM
	}
	return MappingLinear
}
