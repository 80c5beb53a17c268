package common

import (
	"errors"
	"testing"
)

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected uint32
		hasError bool
	}{
		{"decimal", "4096", 4096, false},
		{"hex 0x", "0x1000", 0x1000, false},
		{"hex upper prefix", "0X7FC0", 0x7FC0, false},
		{"hex dollar", "$8000", 0x8000, false},
		{"underscores", "0x01_8000", 0x018000, false},
		{"surrounding spaces", "  $FF ", 0xFF, false},
		{"empty", "", 0, true},
		{"bad digit", "0x12G4", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseNumber(tc.input)

			if tc.hasError {
				if err == nil {
					t.Errorf("ParseNumber(%q) should fail", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNumber(%q) failed: %v", tc.input, err)
			}
			if result != tc.expected {
				t.Errorf("ParseNumber(%q) = 0x%X, want 0x%X", tc.input, result, tc.expected)
			}
		})
	}
}

func TestUint24LE(t *testing.T) {
	data := []byte{0x00, 0x80, 0x8A}
	if got := Uint24LE(data); got != 0x8A8000 {
		t.Errorf("Uint24LE() = 0x%06X, want 0x8A8000", got)
	}

	out := make([]byte, 3)
	PutUint24LE(out, 0x12345678)
	expected := []byte{0x78, 0x56, 0x34}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("PutUint24LE()[%d] = 0x%02X, want 0x%02X", i, out[i], expected[i])
		}
	}
}

func TestFill(t *testing.T) {
	buf := make([]byte, 5)
	Fill(buf, 0xFF)
	for i, b := range buf {
		if b != 0xFF {
			t.Errorf("Fill()[%d] = 0x%02X, want 0xFF", i, b)
		}
	}
}

func TestExtractionError(t *testing.T) {
	err := error(&ExtractionError{Name: "title_tiles", Cause: ErrMalformedStream})

	if !errors.Is(err, ErrMalformedStream) {
		t.Error("ExtractionError should unwrap to its cause")
	}

	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) || extractionErr.Name != "title_tiles" {
		t.Errorf("errors.As() should recover the asset name, got %v", err)
	}
}

func TestNoFreeSpaceError(t *testing.T) {
	err := error(&NoFreeSpaceError{Name: "logo", Required: 0x200, Largest: 0x80})

	if !errors.Is(err, ErrNoFreeSpace) {
		t.Error("NoFreeSpaceError should match ErrNoFreeSpace")
	}

	expected := "no free space for logo: need 512 bytes, largest free region is 128 bytes"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestSafeConversions(t *testing.T) {
	if _, err := SafeIntToUint16(0x10000); err == nil {
		t.Error("SafeIntToUint16(0x10000) should fail")
	}
	if v, err := SafeIntToUint16(0xFFFF); err != nil || v != 0xFFFF {
		t.Errorf("SafeIntToUint16(0xFFFF) = %d, %v", v, err)
	}
	if _, err := SafeIntToUint8(-1); err == nil {
		t.Error("SafeIntToUint8(-1) should fail")
	}
	if got := SafeUint32ToUint8(300); got != 255 {
		t.Errorf("SafeUint32ToUint8(300) = %d, want 255", got)
	}
}
