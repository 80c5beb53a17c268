package pkg

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/lz"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// Rebuilder re-embeds edited assets into a ROM image.
type Rebuilder struct {
	catalog   *Catalog
	extractor *Extractor
	patcher   *Patcher
	budget    int
}

// NewRebuilder creates a rebuilder that searches the full codec window.
func NewRebuilder(catalog *Catalog) *Rebuilder {
	return &Rebuilder{
		catalog:   catalog,
		extractor: NewExtractor(catalog),
		patcher:   NewPatcher(catalog.Translator()),
	}
}

// SetBudget bounds the codec's match search; 0 searches the whole window.
func (r *Rebuilder) SetBudget(budget int) {
	r.budget = budget
}

// Rebuild returns a copy of rom with the edited assets written back and every
// declared pointer to a relocated asset updated. rom itself is not modified.
// Fixed-size tables are placed before raw and compressed blocks so pointer
// edits are visible when relocations are resolved.
func (r *Rebuilder) Rebuild(rom []byte, edited map[string]*AssetBlob) ([]byte, []RelocationRecord, error) {
	if err := r.extractor.checkImage(rom); err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(edited))
	for name := range edited {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := r.catalog.Resolve(name); err != nil {
			return nil, nil, err
		}
	}

	out := append([]byte(nil), rom...)
	pool := NewFreeSpacePool(r.catalog.Translator(), r.catalog.FreeSpace())

	var fixed, movable []AssetDescriptor
	for _, d := range r.catalog.All() {
		if _, ok := edited[d.Name]; !ok {
			continue
		}
		if d.Format == FormatPointerTable || d.Format == FormatText {
			fixed = append(fixed, d)
		} else {
			movable = append(movable, d)
		}
	}

	var relocations []RelocationRecord
	for _, d := range append(fixed, movable...) {
		rec, err := r.place(rom, out, pool, d, edited[d.Name])
		if err != nil {
			return nil, nil, fmt.Errorf("%s %s: %w", common.ErrFailedToPlaceAsset, d.Name, err)
		}
		if rec != nil {
			relocations = append(relocations, *rec)
		}
	}

	if _, err := r.patcher.Apply(out, relocations); err != nil {
		return nil, nil, common.FormatError(common.ErrFailedToApplyRelocations, err)
	}
	return out, relocations, nil
}

// place writes one asset into out and returns a relocation record when it moved.
func (r *Rebuilder) place(rom, out []byte, pool *FreeSpacePool, d AssetDescriptor, blob *AssetBlob) (*RelocationRecord, error) {
	current, err := r.extractor.decode(rom, d)
	if err != nil {
		return nil, err
	}

	payload, err := r.encode(d, blob, current)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		common.LogInfo(common.InfoAssetUnchanged, d.Name)
		return nil, nil
	}

	t := r.catalog.Translator()
	old := current.Source
	slot := current.OnROMLength
	common.LogDebug(common.DebugEncodingAsset, d.Name, d.Format, len(blob.Data), len(payload), slot)

	if len(payload) <= slot {
		copy(out[old.Linear:], payload)
		common.Fill(out[old.Linear+len(payload):old.Linear+slot], d.Pad)
		common.LogInfo(common.InfoAssetPlacedInPlace, d.Name, old, len(payload), slot)
		return nil, nil
	}

	if d.Format != FormatRaw && d.Format != FormatCompressed {
		return nil, fmt.Errorf("%s assets cannot grow (%d bytes, slot %d)", d.Format, len(payload), slot)
	}

	bank, err := r.requiredBank(d)
	if err != nil {
		return nil, err
	}
	start, err := pool.Allocate(d.Name, len(payload), bank)
	if err != nil {
		return nil, err
	}
	moved, err := t.ToBanked(start)
	if err != nil {
		return nil, err
	}

	copy(out[start:], payload)
	common.Fill(out[old.Linear:old.Linear+slot], d.Pad)
	pool.Release(old.Linear, slot)

	entries, err := r.references(out, d, old)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		common.LogWarn(common.WarnRelocationNoTables, d.Name)
	}

	common.LogInfo(common.InfoAssetRelocated, d.Name, old, moved, len(payload), slot)
	return &RelocationRecord{
		Asset:     d.Name,
		Old:       old,
		New:       moved,
		OldLength: slot,
		NewLength: len(payload),
		Entries:   entries,
	}, nil
}

// encode returns the on-ROM bytes for blob, or nil when they would equal
// what the image already holds.
func (r *Rebuilder) encode(d AssetDescriptor, blob *AssetBlob, current *AssetBlob) ([]byte, error) {
	switch d.Format {
	case FormatCompressed:
		if d.DecodedSize > 0 && len(blob.Data) != d.DecodedSize {
			return nil, fmt.Errorf("decoded size is %d bytes, catalog declares %d", len(blob.Data), d.DecodedSize)
		}
		if bytes.Equal(blob.Data, current.Data) {
			return nil, nil
		}
		payload := lz.Compress(blob.Data, r.budget)
		common.LogDebug(common.InfoCompressionFinished, len(blob.Data), len(payload))
		return payload, nil

	case FormatPointerTable:
		payload, err := r.encodeTable(d, blob, current)
		if err != nil || bytes.Equal(payload, current.Data) {
			return nil, err
		}
		return payload, nil

	case FormatText:
		if len(blob.Data) != d.Span() {
			return nil, fmt.Errorf("text table is %d bytes, catalog declares %d", len(blob.Data), d.Span())
		}
		fallthrough

	default:
		if bytes.Equal(blob.Data, current.Data) {
			return nil, nil
		}
		return append([]byte(nil), blob.Data...), nil
	}
}

// encodeTable writes edited entries over the current table image, keeping
// any bytes between entries.
func (r *Rebuilder) encodeTable(d AssetDescriptor, blob *AssetBlob, current *AssetBlob) ([]byte, error) {
	if len(blob.Entries) != d.Count {
		return nil, fmt.Errorf("%s: got %d entries, catalog declares %d", common.ErrPointerTableCountMismatch, len(blob.Entries), d.Count)
	}

	out := append([]byte(nil), current.Data...)
	for i, e := range blob.Entries {
		b := out[i*d.Stride:]
		if !e.Resolved {
			if d.Width == 3 {
				common.PutUint24LE(b, e.Raw)
			} else {
				b[0], b[1] = byte(e.Raw), byte(e.Raw>>8)
			}
			continue
		}

		value, err := r.patcher.encode(PointerTableEntry{Table: d.Name, Index: i, Width: d.Width, Bank: d.Bank}, e.Target)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		writePointer(b, d.Width, value)
	}
	return out, nil
}

// requiredBank returns the physical bank a relocated asset must stay in so
// its 2-byte references still reach it, or AnyBank.
func (r *Rebuilder) requiredBank(d AssetDescriptor) (int, error) {
	t := r.catalog.Translator()
	bank := AnyBank
	for _, ref := range d.ReferencedBy {
		table, err := r.catalog.Resolve(ref.Table)
		if err != nil {
			return 0, err
		}
		if table.Width != 2 {
			continue
		}
		start, err := t.BankStart(table.Bank)
		if err != nil {
			return 0, err
		}
		idx := t.BankIndex(start)
		if bank != AnyBank && bank != idx {
			return 0, fmt.Errorf("referenced from tables in different banks: %w", common.ErrInvalidSpan)
		}
		bank = idx
	}
	return bank, nil
}

// references lists the table entries that point at an asset. Declared entry
// indices are taken as given; otherwise the table is scanned for old.
func (r *Rebuilder) references(image []byte, d AssetDescriptor, old snes.Address) ([]PointerTableEntry, error) {
	t := r.catalog.Translator()
	var entries []PointerTableEntry

	for _, ref := range d.ReferencedBy {
		table, err := r.catalog.Resolve(ref.Table)
		if err != nil {
			return nil, err
		}

		indices := ref.Entries
		if len(indices) == 0 {
			for i := 0; i < table.Count; i++ {
				slot := table.Address.Linear + i*table.Stride
				_, bank, offset := readPointer(image[slot:], table.Width, table.Bank)
				if linear, err := t.ToLinear(bank, offset); err == nil && linear == old.Linear {
					indices = append(indices, i)
				}
			}
			if len(indices) == 0 {
				return nil, fmt.Errorf("no entry of %s points at %s: %w", table.Name, old, common.ErrDanglingReference)
			}
		}

		for _, i := range indices {
			entries = append(entries, PointerTableEntry{
				Table:  table.Name,
				Index:  i,
				Slot:   table.Address.Linear + i*table.Stride,
				Width:  table.Width,
				Bank:   table.Bank,
				Target: old,
			})
		}
	}
	return entries, nil
}
