package pkg

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hansbonini/issdtools/pkg/common"
)

func TestCatalog_Relocated(t *testing.T) {
	c := newTestCatalog(t)

	moved, err := c.Relocated([]Relocation{{Asset: "sprite", Address: "$80:FE00", Size: 0x180, Slot: testSpriteSize}})
	if err != nil {
		t.Fatalf("Relocated() failed: %v", err)
	}

	d, err := moved.Resolve("sprite")
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if d.Address.Linear != testFreeAt || d.Size != 0x180 {
		t.Errorf("sprite = 0x%X+0x%X, want 0x%X+0x180", d.Address.Linear, d.Size, testFreeAt)
	}

	want := []FreeRegion{
		{Start: testSpriteAt, Size: testSpriteSize},
		{Start: testFreeAt + 0x180, Size: testFreeSize - 0x180},
	}
	if got := moved.FreeSpace(); !reflect.DeepEqual(got, want) {
		t.Errorf("FreeSpace() = %+v, want %+v", got, want)
	}

	if orig, _ := c.Resolve("sprite"); orig.Address.Linear != testSpriteAt {
		t.Error("Relocated() must not modify the receiver")
	}
}

func TestCatalog_RelocatedIntoFreedSlot(t *testing.T) {
	c := newTestCatalog(t)

	// palette moves into the slot the sprite left behind
	moved, err := c.Relocated([]Relocation{
		{Asset: "palette", Address: "$80:B000", Size: 0x20, Slot: 0x20},
		{Asset: "sprite", Address: "$80:FE00", Size: 0x180, Slot: testSpriteSize},
	})
	if err != nil {
		t.Fatalf("Relocated() failed: %v", err)
	}
	if d, _ := moved.Resolve("palette"); d.Address.Linear != testSpriteAt {
		t.Errorf("palette at 0x%X, want 0x%X", d.Address.Linear, testSpriteAt)
	}
}

func TestCatalog_RelocatedErrors(t *testing.T) {
	testCases := []struct {
		name   string
		reloc  Relocation
		target error
		msg    string
	}{
		{"unknown asset", Relocation{Asset: "missing", Address: "$80:FE00", Size: 1, Slot: 1}, common.ErrUnknownAsset, ""},
		{"fixed format", Relocation{Asset: "names", Address: "$80:FE00", Size: 24, Slot: 24}, nil, "cannot move"},
		{"not free", Relocation{Asset: "sprite", Address: "$80:C000", Size: 0x180, Slot: testSpriteSize}, common.ErrNoFreeSpace, ""},
		{"no size", Relocation{Asset: "sprite", Address: "$80:FE00", Slot: testSpriteSize}, nil, "size 0"},
		{"bad address", Relocation{Asset: "sprite", Address: "$80:0010", Size: 0x10, Slot: testSpriteSize}, nil, "address"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestCatalog(t).Relocated([]Relocation{tc.reloc})
			if err == nil {
				t.Fatal("Relocated() should fail")
			}
			if tc.target != nil && !errors.Is(err, tc.target) {
				t.Errorf("Relocated() = %v, want %v", err, tc.target)
			}
			if tc.msg != "" && !strings.Contains(err.Error(), tc.msg) {
				t.Errorf("Relocated() = %v, want message containing %q", err, tc.msg)
			}
		})
	}
}

func TestMergeRelocations(t *testing.T) {
	tr := newTestTranslator(t)
	base := []Relocation{{Asset: "sprite", Address: "$80:FE00", Size: 0x180, Slot: testSpriteSize}}

	merged := MergeRelocations(base, []RelocationRecord{
		{Asset: "sprite", Old: mustBanked(t, tr, testFreeAt), New: mustBanked(t, tr, testSpriteAt), OldLength: 0x180, NewLength: 0x1C0},
		{Asset: "palette", Old: mustBanked(t, tr, testPaletteAt), New: mustBanked(t, tr, testFreeAt), OldLength: 0x20, NewLength: 0x40},
	})

	want := []Relocation{
		{Asset: "sprite", Address: "$80:B000", Size: 0x1C0, Slot: testSpriteSize},
		{Asset: "palette", Address: "$80:FE00", Size: 0x40, Slot: 0x20},
	}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("MergeRelocations() = %+v, want %+v", merged, want)
	}
	if base[0].Size != 0x180 {
		t.Error("MergeRelocations() must not modify its input")
	}
}

func TestOverlay_WriteAndLoad(t *testing.T) {
	path := OverlayPath(filepath.Join(t.TempDir(), "issd.sfc"))

	relocations, err := LoadOverlay(path)
	if err != nil || relocations != nil {
		t.Fatalf("LoadOverlay() on a missing file = %v, %v", relocations, err)
	}

	want := []Relocation{{Asset: "sprite", Address: "$80:FE00", Size: 0x180, Slot: testSpriteSize}}
	if err := WriteOverlay(path, want); err != nil {
		t.Fatalf("WriteOverlay() failed: %v", err)
	}
	got, err := LoadOverlay(path)
	if err != nil {
		t.Fatalf("LoadOverlay() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadOverlay() = %+v, want %+v", got, want)
	}

	if err := WriteOverlay(path, nil); err != nil {
		t.Fatalf("WriteOverlay(nil) failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("an empty overlay should remove the file")
	}
}
