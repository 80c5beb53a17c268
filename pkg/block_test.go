package pkg

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestBlockProcessor_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.bin")
	packed := filepath.Join(dir, "packed.bin")
	unpacked := filepath.Join(dir, "unpacked.bin")

	data := append(testTiles(), testSprite()...)
	if err := os.WriteFile(plain, data, 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	p := NewBlockProcessor()
	size, err := p.PackBlock(plain, packed)
	if err != nil {
		t.Fatalf("PackBlock() failed: %v", err)
	}
	if size >= len(data) {
		t.Errorf("packed %d bytes into %d", len(data), size)
	}

	consumed, err := p.UnpackBlock(packed, unpacked)
	if err != nil {
		t.Fatalf("UnpackBlock() failed: %v", err)
	}
	if consumed != size {
		t.Errorf("consumed %d bytes, want %d", consumed, size)
	}

	got, _ := os.ReadFile(unpacked)
	if !bytes.Equal(got, data) {
		t.Error("unpacked block differs from the original")
	}
}

func TestBlockProcessor_Offset(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "dump.bin")
	out := filepath.Join(dir, "tiles.bin")

	if err := os.WriteFile(dump, newTestROM(t), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	p := NewBlockProcessor()
	p.Offset = testTilesAt
	consumed, err := p.UnpackBlock(dump, out)
	if err != nil {
		t.Fatalf("UnpackBlock() failed: %v", err)
	}
	if consumed != 19 {
		t.Errorf("consumed %d bytes, want 19", consumed)
	}

	got, _ := os.ReadFile(out)
	if !bytes.Equal(got, testTiles()) {
		t.Errorf("unpacked %d bytes, want the 256-byte tile run", len(got))
	}
}

func TestBlockProcessor_MissingInput(t *testing.T) {
	dir := t.TempDir()
	p := NewBlockProcessor()
	if _, err := p.UnpackBlock(filepath.Join(dir, "none.bin"), filepath.Join(dir, "out.bin")); err == nil {
		t.Error("UnpackBlock() should fail on a missing input")
	}
	if _, err := p.PackBlock(filepath.Join(dir, "none.bin"), filepath.Join(dir, "out.bin")); err == nil {
		t.Error("PackBlock() should fail on a missing input")
	}
}
