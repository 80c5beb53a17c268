package snes

import (
	"fmt"
	"strings"

	"github.com/alttpo/snes/mapping/lorom"
	"github.com/hansbonini/issdtools/pkg/common"
)

// Address is a ROM location in both bank:offset and linear form. Values are
// produced by a Translator, which keeps the two forms consistent.
type Address struct {
	Bank   uint8
	Offset uint16
	Linear int
}

// Bus returns the 24-bit bus address.
func (a Address) Bus() uint32 {
	return uint32(a.Bank)<<16 | uint32(a.Offset)
}

func (a Address) String() string {
	return fmt.Sprintf("$%02X:%04X", a.Bank, a.Offset)
}

// Translator converts between linear file offsets and bank:offset addresses
// for one Layout. It holds no mutable state.
type Translator struct {
	layout Layout
}

// NewTranslator validates layout and returns a translator for it.
func NewTranslator(layout Layout) (*Translator, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &Translator{layout: layout}, nil
}

// Layout returns the layout the translator was built for.
func (t *Translator) Layout() Layout {
	return t.layout
}

// ToLinear converts bank:offset into a linear image offset.
func (t *Translator) ToLinear(bank uint8, offset uint16) (int, error) {
	var linear int

	switch t.layout.Mapping {
	case MappingLoROM:
		if offset < LoROMBankWindow {
			return 0, fmt.Errorf("$%02X:%04X is not in the ROM window: %w", bank, offset, common.ErrOutOfRange)
		}
		pak, err := lorom.BusAddressToPak(uint32(bank)<<16 | uint32(offset))
		if err != nil {
			return 0, fmt.Errorf("$%02X:%04X: %v: %w", bank, offset, err, common.ErrOutOfRange)
		}
		linear = int(pak)
	default:
		if int(offset) >= t.layout.BankSize {
			return 0, fmt.Errorf("offset $%04X exceeds bank size 0x%X: %w", offset, t.layout.BankSize, common.ErrOutOfRange)
		}
		if bank < t.layout.BankBase {
			return 0, fmt.Errorf("bank $%02X is below the first ROM bank $%02X: %w", bank, t.layout.BankBase, common.ErrOutOfRange)
		}
		linear = int(bank-t.layout.BankBase)*t.layout.BankSize + int(offset)
	}

	if linear >= t.layout.Size {
		return 0, fmt.Errorf("$%02X:%04X resolves to 0x%06X beyond image size 0x%X: %w",
			bank, offset, linear, t.layout.Size, common.ErrOutOfRange)
	}
	return linear, nil
}

// ToBanked converts a linear offset into its canonical bank:offset address.
func (t *Translator) ToBanked(linear int) (Address, error) {
	if linear < 0 || linear >= t.layout.Size {
		return Address{}, fmt.Errorf("offset 0x%06X outside image of 0x%X bytes: %w", linear, t.layout.Size, common.ErrOutOfRange)
	}

	bank := int(t.layout.BankBase) + linear/t.layout.BankSize
	offset := linear % t.layout.BankSize
	if t.layout.Mapping == MappingLoROM {
		offset += LoROMBankWindow
	}

	return Address{Bank: uint8(bank), Offset: uint16(offset), Linear: linear}, nil
}

// Resolve builds an Address from a bus bank:offset pair.
func (t *Translator) Resolve(bank uint8, offset uint16) (Address, error) {
	linear, err := t.ToLinear(bank, offset)
	if err != nil {
		return Address{}, err
	}
	return Address{Bank: bank, Offset: offset, Linear: linear}, nil
}

// IsValid reports whether a resolves inside the image and its two forms agree.
func (t *Translator) IsValid(a Address) bool {
	linear, err := t.ToLinear(a.Bank, a.Offset)
	return err == nil && linear == a.Linear
}

// BankIndex returns the physical bank a linear offset lives in.
func (t *Translator) BankIndex(linear int) int {
	return linear / t.layout.BankSize
}

// BankStart returns the linear offset of the first ROM byte in a bus bank.
func (t *Translator) BankStart(bank uint8) (int, error) {
	var offset uint16
	if t.layout.Mapping == MappingLoROM {
		offset = LoROMBankWindow
	}
	return t.ToLinear(bank, offset)
}

// CheckSpan validates that [linear, linear+length) lies inside the image and,
// for bank-swapped layouts, inside a single bank.
func (t *Translator) CheckSpan(linear, length int) error {
	if linear < 0 || length < 0 || linear+length > t.layout.Size {
		return fmt.Errorf("span 0x%06X+0x%X outside image of 0x%X bytes: %w", linear, length, t.layout.Size, common.ErrOutOfRange)
	}
	if t.layout.Mapping == MappingLoROM && length > 0 {
		first := linear / t.layout.BankSize
		last := (linear + length - 1) / t.layout.BankSize
		if first != last {
			return fmt.Errorf("span 0x%06X+0x%X covers banks %d-%d: %w", linear, length, first, last, common.ErrInvalidSpan)
		}
	}
	return nil
}

// Parse reads either a bus address ("$8A:8000", "8A:8000") or a linear
// offset ("0x050000", "$50000", "327680").
func (t *Translator) Parse(s string) (Address, error) {
	v := strings.TrimSpace(s)
	if bankPart, offsetPart, ok := strings.Cut(v, ":"); ok {
		bankPart = strings.TrimPrefix(bankPart, "$")
		n, err := common.ParseNumber("0x" + bankPart)
		if err != nil {
			return Address{}, fmt.Errorf("invalid bank in %q", s)
		}
		bank, err := common.SafeIntToUint8(int(n))
		if err != nil {
			return Address{}, fmt.Errorf("invalid bank in %q: %w", s, err)
		}
		if n, err = common.ParseNumber("0x" + strings.TrimPrefix(offsetPart, "$")); err != nil {
			return Address{}, fmt.Errorf("invalid bank offset in %q", s)
		}
		offset, err := common.SafeIntToUint16(int(n))
		if err != nil {
			return Address{}, fmt.Errorf("invalid bank offset in %q: %w", s, err)
		}
		return t.Resolve(bank, offset)
	}

	linear, err := common.ParseNumber(v)
	if err != nil {
		return Address{}, err
	}
	return t.ToBanked(int(linear))
}
