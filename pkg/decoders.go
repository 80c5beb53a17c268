package pkg

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/lz"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// Extractor reads catalog assets out of a ROM image. It never modifies the
// image, so any number of assets may be decoded concurrently.
type Extractor struct {
	catalog *Catalog
	workers int
}

// NewExtractor creates an extractor using one worker per CPU.
func NewExtractor(catalog *Catalog) *Extractor {
	return &Extractor{catalog: catalog, workers: runtime.NumCPU()}
}

// SetWorkers bounds the number of assets decoded at once.
func (e *Extractor) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	e.workers = n
}

// Extract decodes a single asset by name.
func (e *Extractor) Extract(rom []byte, name string) (*AssetBlob, error) {
	d, err := e.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}
	blob, err := e.decode(rom, d)
	if err != nil {
		return nil, &common.ExtractionError{Name: name, Cause: err}
	}
	return blob, nil
}

// ExtractAll decodes every catalog asset. A failing asset does not stop the
// others; its error is reported as an *ExtractionError.
func (e *Extractor) ExtractAll(rom []byte) (map[string]*AssetBlob, []error) {
	all := e.catalog.All()
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	return e.ExtractNames(rom, names)
}

// ExtractNames decodes the named assets. Every name is resolved before any
// decoding starts, so an unknown name fails the whole call.
func (e *Extractor) ExtractNames(rom []byte, names []string) (map[string]*AssetBlob, []error) {
	descriptors := make([]AssetDescriptor, len(names))
	for i, name := range names {
		d, err := e.catalog.Resolve(name)
		if err != nil {
			return nil, []error{err}
		}
		descriptors[i] = d
	}

	if err := e.checkImage(rom); err != nil {
		return nil, []error{err}
	}

	// each worker writes only its own slot
	blobs := make([]*AssetBlob, len(descriptors))
	failures := make([]error, len(descriptors))

	common.LogDebug(common.DebugWorkerPool, len(descriptors), e.workers)

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, d := range descriptors {
		g.Go(func() error {
			blob, err := e.decode(rom, d)
			if err != nil {
				failures[i] = &common.ExtractionError{Name: d.Name, Cause: err}
				return nil
			}
			blobs[i] = blob
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[string]*AssetBlob, len(descriptors))
	var errs []error
	for i := range descriptors {
		if failures[i] != nil {
			common.LogWarn(common.WarnExtractionFailed, descriptors[i].Name, failures[i])
			errs = append(errs, failures[i])
			continue
		}
		result[blobs[i].Name] = blobs[i]
	}
	return result, errs
}

func (e *Extractor) checkImage(rom []byte) error {
	if size := e.catalog.Layout().Size; len(rom) != size {
		return fmt.Errorf("%s: got 0x%X bytes, layout declares 0x%X", common.ErrImageSizeMismatch, len(rom), size)
	}
	return nil
}

// decode reads one asset without touching shared state.
func (e *Extractor) decode(rom []byte, d AssetDescriptor) (*AssetBlob, error) {
	if err := e.checkImage(rom); err != nil {
		return nil, err
	}
	common.LogDebug(common.DebugExtractingAsset, d.Name, d.Format, d.Address)

	blob := &AssetBlob{
		Name:   d.Name,
		Format: d.Format,
		Source: d.Address,
	}
	t := e.catalog.Translator()
	start := d.Address.Linear

	switch d.Format {
	case FormatCompressed:
		window := e.compressedWindow(d)
		if err := t.CheckSpan(start, window); err != nil {
			return nil, err
		}
		data, consumed, err := lz.Decompress(rom[start:start+window], 0, d.DecodedSize)
		if err != nil {
			return nil, err
		}
		blob.Data = data
		blob.OnROMLength = consumed
		if d.Size > 0 {
			blob.OnROMLength = d.Size
		}

	case FormatPointerTable:
		n := d.Span()
		if err := t.CheckSpan(start, n); err != nil {
			return nil, err
		}
		blob.Data = append([]byte(nil), rom[start:start+n]...)
		blob.OnROMLength = n
		blob.Entries = decodeEntries(t, d, blob.Data)

	default:
		n := d.Span()
		if err := t.CheckSpan(start, n); err != nil {
			return nil, err
		}
		blob.Data = append([]byte(nil), rom[start:start+n]...)
		blob.OnROMLength = n
	}

	common.LogDebug(common.DebugAssetDecoded, d.Name, blob.OnROMLength, len(blob.Data))
	return blob, nil
}

// compressedWindow is the number of source bytes a compressed stream may
// use: the declared slot, or the rest of its bank (rest of the image for
// linear layouts).
func (e *Extractor) compressedWindow(d AssetDescriptor) int {
	if d.Size > 0 {
		return d.Size
	}
	layout := e.catalog.Layout()
	start := d.Address.Linear
	if layout.Mapping == snes.MappingLoROM {
		return (start/layout.BankSize+1)*layout.BankSize - start
	}
	return layout.Size - start
}

// decodeEntries reads every pointer of a table image.
func decodeEntries(t *snes.Translator, d AssetDescriptor, data []byte) []TableEntry {
	entries := make([]TableEntry, d.Count)
	for i := range entries {
		raw, bank, offset := readPointer(data[i*d.Stride:], d.Width, d.Bank)
		entries[i] = TableEntry{Index: i, Raw: raw}
		if target, err := t.Resolve(bank, offset); err == nil {
			entries[i].Target = target
			entries[i].Resolved = true
		}
	}
	return entries
}

// readPointer decodes a 2-byte (bank implied) or 3-byte little-endian pointer.
func readPointer(b []byte, width int, impliedBank uint8) (raw uint32, bank uint8, offset uint16) {
	if width == 3 {
		raw = common.Uint24LE(b)
		return raw, uint8(raw >> 16), uint16(raw)
	}
	raw = uint32(b[0]) | uint32(b[1])<<8
	return raw, impliedBank, uint16(raw)
}

// writePointer stores a bus address in a 2- or 3-byte entry.
func writePointer(b []byte, width int, a snes.Address) {
	if width == 3 {
		common.PutUint24LE(b, a.Bus())
		return
	}
	b[0] = byte(a.Offset)
	b[1] = byte(a.Offset >> 8)
}
