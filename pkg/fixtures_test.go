package pkg

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/hansbonini/issdtools/pkg/lz"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// The test image is a 64 KiB LoROM cartridge (banks $80-$81):
//
//	0x1000  tiles      compressed, 0x40-byte slot, 256 bytes of 0x11
//	0x2000  gfx_ptrs   4 two-byte pointers in bank $80, all $80:B000
//	0x3000  sprite     raw, 0x100 bytes
//	0x4000  names      text, 3 records of 8 characters
//	0x5000  palette    raw, 16 BGR555 colors
//	0x6000  far_ptrs   2 three-byte pointers to tiles and sprite
//	0x7E00  free space up to the internal header at 0x7FC0
const (
	testROMSize     = 0x10000
	testTilesAt     = 0x1000
	testTilesSlot   = 0x40
	testTableAt     = 0x2000
	testSpriteAt    = 0x3000
	testSpriteSize  = 0x100
	testNamesAt     = 0x4000
	testPaletteAt   = 0x5000
	testFarTableAt  = 0x6000
	testFreeAt      = 0x7E00
	testFreeSize    = snes.DefaultHeaderLoROM - testFreeAt
	testSecondBank  = 0x8000
	testTableTarget = 0xB000 // $80:B000 == 0x3000
)

var testNames = []string{"ROCKETS", "BLAZERS", "ICE"}

func testCharmapText() string {
	var sb strings.Builder
	sb.WriteString("; tall menu font\n00= \n")
	for i := 0; i < 26; i++ {
		fmt.Fprintf(&sb, "%02X=%c\n", i+1, 'A'+i)
	}
	sb.WriteString("1B=..\n")
	return sb.String()
}

func newTestCharmap(t *testing.T) *Charmap {
	t.Helper()
	cm, err := ParseCharmap(strings.NewReader(testCharmapText()))
	if err != nil {
		t.Fatalf("ParseCharmap() failed: %v", err)
	}
	return cm
}

func newTestTranslator(t *testing.T) *snes.Translator {
	t.Helper()
	layout, err := snes.NewLayout(snes.MappingLoROM, testROMSize)
	if err != nil {
		t.Fatalf("NewLayout() failed: %v", err)
	}
	layout.BankBase = snes.DefaultFastROMBase
	tr, err := snes.NewTranslator(layout)
	if err != nil {
		t.Fatalf("NewTranslator() failed: %v", err)
	}
	return tr
}

func mustBanked(t *testing.T, tr *snes.Translator, linear int) snes.Address {
	t.Helper()
	addr, err := tr.ToBanked(linear)
	if err != nil {
		t.Fatalf("ToBanked(0x%X) failed: %v", linear, err)
	}
	return addr
}

func testDescriptors(t *testing.T, tr *snes.Translator) []AssetDescriptor {
	return []AssetDescriptor{
		{
			Name: "tiles", Format: FormatCompressed, Address: mustBanked(t, tr, testTilesAt),
			Size: testTilesSlot, Preview: &Preview{BPP: 4, Width: 8, Scale: 2, Palette: "palette"},
			ReferencedBy: []TableRef{{Table: "far_ptrs", Entries: []int{0}}},
		},
		{
			Name: "gfx_ptrs", Format: FormatPointerTable, Address: mustBanked(t, tr, testTableAt),
			Count: 4, Width: 2, Stride: 2, Bank: 0x80,
		},
		{
			Name: "sprite", Format: FormatRaw, Address: mustBanked(t, tr, testSpriteAt),
			Size: testSpriteSize, Pad: 0xFF,
			ReferencedBy: []TableRef{{Table: "gfx_ptrs"}},
		},
		{
			Name: "names", Format: FormatText, Address: mustBanked(t, tr, testNamesAt),
			Charmap: "tall_menu", Record: 8, Count: len(testNames),
		},
		{
			Name: "palette", Format: FormatRaw, Address: mustBanked(t, tr, testPaletteAt), Size: 0x20,
		},
		{
			Name: "far_ptrs", Format: FormatPointerTable, Address: mustBanked(t, tr, testFarTableAt),
			Count: 2, Width: 3, Stride: 4,
		},
	}
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	tr := newTestTranslator(t)
	c, err := NewCatalog(tr, testDescriptors(t, tr),
		[]FreeRegion{{Start: testFreeAt, Size: testFreeSize}},
		map[string]*Charmap{"tall_menu": newTestCharmap(t)})
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}
	return c
}

func testTiles() []byte {
	return bytes.Repeat([]byte{0x11}, 256)
}

func testSprite() []byte {
	sprite := make([]byte, testSpriteSize)
	for i := range sprite {
		sprite[i] = byte(i * 3)
	}
	return sprite
}

// newTestROM returns an image matching newTestCatalog with a valid checksum.
func newTestROM(t *testing.T) []byte {
	t.Helper()
	rom := make([]byte, testROMSize)

	copy(rom[testTilesAt:], lz.Compress(testTiles(), 0))

	for i := 0; i < 4; i++ {
		rom[testTableAt+i*2] = byte(testTableTarget)
		rom[testTableAt+i*2+1] = byte(testTableTarget >> 8)
	}

	copy(rom[testSpriteAt:], testSprite())

	cm := newTestCharmap(t)
	for i, name := range testNames {
		codes, err := cm.Encode(name)
		if err != nil {
			t.Fatalf("Encode(%q) failed: %v", name, err)
		}
		copy(rom[testNamesAt+i*8:], codes)
	}

	for i := 0; i < 16; i++ {
		c := snes.SNESColorFromRGBA(uint8(i*16), uint8(i*16), 0)
		rom[testPaletteAt+i*2] = byte(c)
		rom[testPaletteAt+i*2+1] = byte(c >> 8)
	}

	// $80:9000 (tiles) and $80:B000 (sprite), one pad byte after each
	copy(rom[testFarTableAt:], []byte{0x00, 0x90, 0x80, 0xEE, 0x00, 0xB0, 0x80, 0xEE})

	// something recognizable in the second bank
	copy(rom[testSecondBank:], []byte("BANK1"))

	if _, err := snes.Finalize(rom, snes.DefaultHeaderLoROM); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	return rom
}

func readWord(rom []byte, at int) uint16 {
	return uint16(rom[at]) | uint16(rom[at+1])<<8
}
