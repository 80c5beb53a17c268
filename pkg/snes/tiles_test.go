// Package snes provides tests for SNES tile processing functionality.
package snes

import (
	"image/color"
	"testing"
)

func TestSNESColor_ToRGBA(t *testing.T) {
	tests := []struct {
		name      string
		snesColor SNESColor
		expected  color.RGBA
	}{
		{
			name:      "black color",
			snesColor: SNESColor(0),
			expected:  color.RGBA{0, 0, 0, 255},
		},
		{
			name:      "white color",
			snesColor: SNESColor(0x7FFF), // All bits set in 15-bit format
			expected:  color.RGBA{248, 248, 248, 255},
		},
		{
			name:      "red color",
			snesColor: SNESColor(0x001F), // Only red bits set
			expected:  color.RGBA{248, 0, 0, 255},
		},
		{
			name:      "green color",
			snesColor: SNESColor(0x03E0), // Only green bits set
			expected:  color.RGBA{0, 248, 0, 255},
		},
		{
			name:      "blue color",
			snesColor: SNESColor(0x7C00), // Only blue bits set
			expected:  color.RGBA{0, 0, 248, 255},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.snesColor.ToRGBA()
			if result != tt.expected {
				t.Errorf("SNESColor.ToRGBA() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSNESColorFromRGBA(t *testing.T) {
	tests := []struct {
		name     string
		r, g, b  uint8
		expected SNESColor
	}{
		{name: "white color", r: 255, g: 255, b: 255, expected: SNESColor(0x7FFF)},
		{name: "red color", r: 248, g: 0, b: 0, expected: SNESColor(0x001F)},
		{name: "green color", r: 0, g: 248, b: 0, expected: SNESColor(0x03E0)},
		{name: "blue color", r: 0, g: 0, b: 248, expected: SNESColor(0x7C00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SNESColorFromRGBA(tt.r, tt.g, tt.b)
			if result != tt.expected {
				t.Errorf("SNESColorFromRGBA(%d, %d, %d) = 0x%04X, want 0x%04X",
					tt.r, tt.g, tt.b, result, tt.expected)
			}
		})
	}
}

func TestDecodePalette(t *testing.T) {
	palette := DecodePalette([]byte{0x1F, 0x00, 0x00, 0x7C, 0xFF})
	if len(palette) != 2 {
		t.Fatalf("len(palette) = %d, want 2", len(palette))
	}
	if palette[0] != (color.RGBA{248, 0, 0, 255}) {
		t.Errorf("palette[0] = %v, want red", palette[0])
	}
	if palette[1] != (color.RGBA{0, 0, 248, 255}) {
		t.Errorf("palette[1] = %v, want blue", palette[1])
	}
}

func TestDecodeTile_2bpp(t *testing.T) {
	data := make([]byte, 16)
	data[0] = 0x80 // row 0 plane 0: leftmost pixel
	data[1] = 0x80 // row 0 plane 1: leftmost pixel
	data[2] = 0x01 // row 1 plane 0: rightmost pixel

	pixels, err := DecodeTile(data, 2)
	if err != nil {
		t.Fatalf("DecodeTile() failed: %v", err)
	}
	if pixels[0] != 3 {
		t.Errorf("pixel (0,0) = %d, want 3", pixels[0])
	}
	if pixels[8+7] != 1 {
		t.Errorf("pixel (7,1) = %d, want 1", pixels[8+7])
	}
	if pixels[1] != 0 {
		t.Errorf("pixel (1,0) = %d, want 0", pixels[1])
	}
}

func TestDecodeTile_4bpp(t *testing.T) {
	data := make([]byte, 32)
	data[16] = 0x40 // row 0 plane 2: second pixel
	data[17] = 0x40 // row 0 plane 3: second pixel

	pixels, err := DecodeTile(data, 4)
	if err != nil {
		t.Fatalf("DecodeTile() failed: %v", err)
	}
	if pixels[1] != 12 {
		t.Errorf("pixel (1,0) = %d, want 12", pixels[1])
	}
}

func TestDecodeTile_Errors(t *testing.T) {
	if _, err := DecodeTile(make([]byte, 32), 3); err == nil {
		t.Error("DecodeTile should fail for 3bpp")
	}
	if _, err := DecodeTile(make([]byte, 8), 2); err == nil {
		t.Error("DecodeTile should fail with a short tile")
	}
}

func TestRenderTiles(t *testing.T) {
	// three 2bpp tiles, the second one fully set to color 1
	data := make([]byte, 48)
	for y := 0; y < 8; y++ {
		data[16+y*2] = 0xFF
	}

	img, err := RenderTiles(data, 2, 2, nil)
	if err != nil {
		t.Fatalf("RenderTiles() failed: %v", err)
	}

	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Errorf("sheet = %dx%d, want 16x16", b.Dx(), b.Dy())
	}
	if got := img.ColorIndexAt(8, 0); got != 1 {
		t.Errorf("tile 1 pixel = %d, want 1", got)
	}
	if got := img.ColorIndexAt(0, 0); got != 0 {
		t.Errorf("tile 0 pixel = %d, want 0", got)
	}

	if _, err := RenderTiles(make([]byte, 4), 2, 2, nil); err == nil {
		t.Error("RenderTiles should fail without a complete tile")
	}
}

func TestScaleImage(t *testing.T) {
	img, err := RenderTiles(make([]byte, 32), 4, 1, nil)
	if err != nil {
		t.Fatalf("RenderTiles() failed: %v", err)
	}

	scaled := ScaleImage(img, 3)
	if b := scaled.Bounds(); b.Dx() != 24 || b.Dy() != 24 {
		t.Errorf("scaled = %dx%d, want 24x24", b.Dx(), b.Dy())
	}
	if ScaleImage(img, 1) != img {
		t.Error("ScaleImage with factor 1 should return the source")
	}
}
