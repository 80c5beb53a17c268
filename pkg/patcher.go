package pkg

import (
	"fmt"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// Patcher rewrites pointer-table entries so they follow relocated assets.
type Patcher struct {
	translator *snes.Translator
}

// NewPatcher creates a patcher for one layout.
func NewPatcher(translator *snes.Translator) *Patcher {
	return &Patcher{translator: translator}
}

type pointerWrite struct {
	slot  int
	width int
	value snes.Address
}

// Apply updates every entry named by relocations. All entries are checked
// before the first byte is written: an entry that does not currently hold
// the asset's old address is ErrDanglingReference and rom is left untouched.
// It returns the number of entries rewritten.
func (p *Patcher) Apply(rom []byte, relocations []RelocationRecord) (int, error) {
	writes, err := p.plan(rom, relocations)
	if err != nil {
		return 0, err
	}

	for _, w := range writes {
		writePointer(rom[w.slot:], w.width, w.value)
	}

	common.LogInfo(common.InfoRelocationsApplied, len(relocations), len(writes))
	return len(writes), nil
}

func (p *Patcher) plan(rom []byte, relocations []RelocationRecord) ([]pointerWrite, error) {
	var writes []pointerWrite
	planned := make(map[int]snes.Address)

	for _, rec := range relocations {
		for _, entry := range rec.Entries {
			if err := p.translator.CheckSpan(entry.Slot, entry.Width); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", entry.Table, entry.Index, err)
			}

			// entry must point at the old location
			_, bank, offset := readPointer(rom[entry.Slot:], entry.Width, entry.Bank)
			current, err := p.translator.ToLinear(bank, offset)
			if err != nil || current != rec.Old.Linear {
				return nil, fmt.Errorf("%s[%d] at 0x%06X holds $%02X:%04X, expected %s for %s: %w",
					entry.Table, entry.Index, entry.Slot, bank, offset, rec.Old, rec.Asset, common.ErrDanglingReference)
			}

			value, err := p.encode(entry, rec.New)
			if err != nil {
				return nil, fmt.Errorf("%s[%d] -> %s: %w", entry.Table, entry.Index, rec.New, err)
			}

			if prev, dup := planned[entry.Slot]; dup {
				if prev != value {
					return nil, fmt.Errorf("%s[%d] at 0x%06X would be written twice (%s, %s): %w",
						entry.Table, entry.Index, entry.Slot, prev, value, common.ErrDanglingReference)
				}
				continue
			}
			planned[entry.Slot] = value

			common.LogDebug(common.DebugPointerRewrite, entry.Table, entry.Index, entry.Slot, rec.Old, value)
			writes = append(writes, pointerWrite{slot: entry.Slot, width: entry.Width, value: value})
		}
	}
	return writes, nil
}

// encode returns the address an entry must hold to reach target. A 2-byte
// entry can only reach targets inside its table's implied bank.
func (p *Patcher) encode(entry PointerTableEntry, target snes.Address) (snes.Address, error) {
	if entry.Width == 3 {
		return target, nil
	}

	addr, err := p.translator.Resolve(entry.Bank, target.Offset)
	if err != nil || addr.Linear != target.Linear {
		return snes.Address{}, fmt.Errorf("target is not reachable from bank $%02X: %w", entry.Bank, common.ErrInvalidSpan)
	}
	return addr, nil
}
