package snes

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/hansbonini/issdtools/pkg/common"
)

func TestFinalize_Scenario64K(t *testing.T) {
	rom := make([]byte, 0x10000)
	for i := range rom {
		rom[i] = byte(i * 7)
	}

	c, err := Finalize(rom, DefaultHeaderLoROM)
	if err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	if !c.Valid() {
		t.Errorf("complement 0x%04X is not the NOT of 0x%04X", c.Complement, c.Sum)
	}

	// sum every byte with the fields replaced by their defined constants
	var expected uint16
	for i, b := range rom {
		switch i {
		case DefaultHeaderLoROM + HeaderComplement, DefaultHeaderLoROM + HeaderComplement + 1:
			expected += 0xFF
		case DefaultHeaderLoROM + HeaderChecksum, DefaultHeaderLoROM + HeaderChecksum + 1:
		default:
			expected += uint16(b)
		}
	}

	stored := binary.LittleEndian.Uint16(rom[DefaultHeaderLoROM+HeaderChecksum:])
	complement := binary.LittleEndian.Uint16(rom[DefaultHeaderLoROM+HeaderComplement:])
	if stored != expected {
		t.Errorf("stored checksum = 0x%04X, want 0x%04X", stored, expected)
	}
	if complement != ^stored {
		t.Errorf("stored complement = 0x%04X, want 0x%04X", complement, ^stored)
	}

	// checksum and complement bytes always add up to 0x1FE, the same as the
	// placeholder values, so a plain byte sum of the final image matches too
	var whole uint16
	for _, b := range rom {
		whole += uint16(b)
	}
	if whole != stored {
		t.Errorf("plain byte sum = 0x%04X, want 0x%04X", whole, stored)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x100] = 0x42

	first, err := Finalize(rom, DefaultHeaderLoROM)
	if err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	second, err := Finalize(rom, DefaultHeaderLoROM)
	if err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	if first != second {
		t.Errorf("second Finalize() = %+v, want %+v", second, first)
	}
}

func TestComputeChecksum_MirroredTail(t *testing.T) {
	// 0x18000 bytes: a 0x10000 base plus a 0x8000 tail counted twice
	rom := make([]byte, 0x18000)
	rom[0x10] = 1
	rom[0x10000] = 3

	c, err := ComputeChecksum(rom, DefaultHeaderLoROM)
	if err != nil {
		t.Fatalf("ComputeChecksum() failed: %v", err)
	}
	want := uint16(1 + 0x1FE + 3*2)
	if c.Sum != want {
		t.Errorf("Sum = 0x%04X, want 0x%04X", c.Sum, want)
	}
}

func TestComputeChecksum_NestedMirror(t *testing.T) {
	// 0x38000 bytes: 0x20000 once, 0x10000 twice, the last 0x8000 four times
	rom := make([]byte, 0x38000)
	rom[0x10] = 1
	rom[0x28000] = 1
	rom[0x34000] = 1

	c, err := ComputeChecksum(rom, DefaultHeaderLoROM)
	if err != nil {
		t.Fatalf("ComputeChecksum() failed: %v", err)
	}
	want := uint16(0x1FE + 1 + 2 + 4)
	if c.Sum != want {
		t.Errorf("Sum = 0x%04X, want 0x%04X", c.Sum, want)
	}
}

func TestVerify(t *testing.T) {
	rom := make([]byte, 0x8000)
	if _, _, ok, err := Verify(rom, DefaultHeaderLoROM); err != nil || ok {
		t.Errorf("Verify() on a blank image = %v, %v; want mismatch", ok, err)
	}

	if _, err := Finalize(rom, DefaultHeaderLoROM); err != nil {
		t.Fatalf("Finalize() failed: %v", err)
	}
	stored, computed, ok, err := Verify(rom, DefaultHeaderLoROM)
	if err != nil || !ok {
		t.Errorf("Verify() after Finalize = %v, %v (stored %+v computed %+v)", ok, err, stored, computed)
	}
}

func TestFinalize_ShortImage(t *testing.T) {
	_, err := Finalize(make([]byte, 0x7FD0), DefaultHeaderLoROM)
	if !errors.Is(err, common.ErrOutOfRange) {
		t.Errorf("Finalize() on a short image = %v, want ErrOutOfRange", err)
	}
}
