// Package pkg implements the asset pipeline for the cartridge image: catalog
// loading, extraction, rebuilding with pointer relocation and checksum repair.
package pkg

import (
	"fmt"
	"os"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// ROMImage is a loaded ROM file split into its copier header and image.
type ROMImage struct {
	Path   string
	Header []byte
	Data   []byte
	Layout snes.Layout
}

// Bytes returns the file contents with the copier header restored.
func (img *ROMImage) Bytes() []byte {
	return snes.JoinImage(img.Header, img.Data)
}

// LoadROM reads a ROM file and splits it according to layout.
func LoadROM(path string, layout snes.Layout) (*ROMImage, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToReadROM, err)
	}

	header, data, err := layout.SplitImage(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrImageSizeMismatch, err)
	}

	common.LogInfo(common.InfoROMLoaded, path, len(file), layout.Mapping)
	return &ROMImage{
		Path:   path,
		Header: header,
		Data:   append([]byte(nil), data...),
		Layout: layout,
	}, nil
}

// ExtractReport summarizes an extraction run.
type ExtractReport struct {
	Manifest *Manifest
	Failures []error
}

// BuildReport summarizes a rebuild.
type BuildReport struct {
	Edited      int
	Relocations []RelocationRecord
	Checksum    snes.Checksum
	Overlay     string // overlay written next to the output, if any
}

// ROMProcessor runs the pipeline on files.
type ROMProcessor struct {
	Workers int      // extraction workers; 0 uses one per CPU
	Preview bool     // write PNG previews
	Only    []string // extract only these assets
	Budget  int      // codec match search window; 0 = full
}

// NewROMProcessor creates a processor with default settings.
func NewROMProcessor() *ROMProcessor {
	return &ROMProcessor{}
}

// OpenCatalog loads a catalog sized for the given ROM file, with the
// relocation overlay of an earlier build applied when one sits next to it.
func OpenCatalog(catalogFile, romFile string) (*Catalog, error) {
	catalog, _, err := openCatalog(catalogFile, romFile)
	return catalog, err
}

func openCatalog(catalogFile, romFile string) (*Catalog, []Relocation, error) {
	info, err := os.Stat(romFile)
	if err != nil {
		return nil, nil, common.FormatError(common.ErrFailedToReadROM, err)
	}
	catalog, err := LoadCatalog(catalogFile, int(info.Size()))
	if err != nil {
		return nil, nil, err
	}

	overlay := OverlayPath(romFile)
	relocations, err := LoadOverlay(overlay)
	if err != nil {
		return nil, nil, err
	}
	if len(relocations) == 0 {
		return catalog, nil, nil
	}
	relocated, err := catalog.Relocated(relocations)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", overlay, err)
	}
	common.LogInfo(common.InfoOverlayApplied, overlay, len(relocations))
	return relocated, relocations, nil
}

// Extract decodes catalog assets from romFile into outputDir.
func (p *ROMProcessor) Extract(romFile, catalogFile, outputDir string) (*ExtractReport, error) {
	catalog, err := OpenCatalog(catalogFile, romFile)
	if err != nil {
		return nil, err
	}

	rom, err := LoadROM(romFile, catalog.Layout())
	if err != nil {
		return nil, err
	}

	extractor := NewExtractor(catalog)
	if p.Workers > 0 {
		extractor.SetWorkers(p.Workers)
	}

	var blobs map[string]*AssetBlob
	var failures []error
	if len(p.Only) > 0 {
		blobs, failures = extractor.ExtractNames(rom.Data, p.Only)
	} else {
		blobs, failures = extractor.ExtractAll(rom.Data)
	}
	// nothing decoded at all means the request itself was bad
	if blobs == nil && len(failures) > 0 {
		return nil, failures[0]
	}

	exporter := NewExporter(catalog)
	exporter.SetPreview(p.Preview)
	manifest, err := exporter.WriteAll(outputDir, blobs, failures)
	if err != nil {
		return nil, err
	}

	common.LogInfo(common.InfoAssetsExtracted, len(blobs), len(blobs)+len(failures), outputDir)
	return &ExtractReport{Manifest: manifest, Failures: failures}, nil
}

// Build re-embeds the edited files in assetDir, patches pointers, repairs the
// checksum and writes outputFile. Nothing is written when any step fails.
// Assets that have moved since the catalog was written are listed in an
// overlay next to outputFile so later runs find them.
func (p *ROMProcessor) Build(romFile, catalogFile, assetDir, outputFile string) (*BuildReport, error) {
	catalog, base, err := openCatalog(catalogFile, romFile)
	if err != nil {
		return nil, err
	}

	rom, err := LoadROM(romFile, catalog.Layout())
	if err != nil {
		return nil, err
	}

	edited, err := NewImporter(catalog).LoadDir(assetDir)
	if err != nil {
		return nil, err
	}

	rebuilder := NewRebuilder(catalog)
	rebuilder.SetBudget(p.Budget)
	patched, relocations, err := rebuilder.Rebuild(rom.Data, edited)
	if err != nil {
		return nil, err
	}

	sum, err := snes.Finalize(patched, catalog.Layout().HeaderOffset)
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToFinalizeChecksum, err)
	}
	common.LogInfo(common.InfoChecksumFinalized, sum.Sum, sum.Complement)

	rom.Data = patched
	if err := os.WriteFile(outputFile, rom.Bytes(), 0644); err != nil {
		return nil, common.FormatError(common.ErrFailedToWriteROM, err)
	}
	common.LogInfo(common.InfoROMWritten, outputFile)

	report := &BuildReport{Edited: len(edited), Relocations: relocations, Checksum: sum}
	overlay := MergeRelocations(base, relocations)
	if err := WriteOverlay(OverlayPath(outputFile), overlay); err != nil {
		return nil, err
	}
	if len(overlay) > 0 {
		report.Overlay = OverlayPath(outputFile)
	}
	return report, nil
}

// FixChecksum recomputes the checksum of romFile in place.
func (p *ROMProcessor) FixChecksum(romFile string, layout snes.Layout) (snes.Checksum, error) {
	rom, err := LoadROM(romFile, layout)
	if err != nil {
		return snes.Checksum{}, err
	}

	sum, err := snes.Finalize(rom.Data, layout.HeaderOffset)
	if err != nil {
		return snes.Checksum{}, common.FormatError(common.ErrFailedToFinalizeChecksum, err)
	}

	if err := os.WriteFile(romFile, rom.Bytes(), 0644); err != nil {
		return snes.Checksum{}, common.FormatError(common.ErrFailedToWriteROM, err)
	}
	common.LogInfo(common.InfoChecksumFinalized, sum.Sum, sum.Complement)
	return sum, nil
}

// VerifyChecksum reports the stored and computed checksum of romFile.
func (p *ROMProcessor) VerifyChecksum(romFile string, layout snes.Layout) (stored, computed snes.Checksum, ok bool, err error) {
	rom, err := LoadROM(romFile, layout)
	if err != nil {
		return stored, computed, false, err
	}

	stored, computed, ok, err = snes.Verify(rom.Data, layout.HeaderOffset)
	if err != nil {
		return stored, computed, false, err
	}
	if !ok {
		common.LogWarn(common.WarnChecksumMismatch, stored.Sum, stored.Complement, computed.Sum, computed.Complement)
	}
	return stored, computed, ok, nil
}

// Info reads the internal header of romFile.
func (p *ROMProcessor) Info(romFile string, layout snes.Layout) (*snes.HeaderInfo, error) {
	rom, err := LoadROM(romFile, layout)
	if err != nil {
		return nil, err
	}
	return snes.ReadHeaderInfo(rom.Data, layout.HeaderOffset)
}

// DetectLayout builds a layout for a file when no catalog is available. A
// copier header is assumed when the file size is 512 bytes past a bank multiple.
// An empty mapping is taken from the internal header.
func DetectLayout(romFile string, mapping snes.Mapping) (snes.Layout, error) {
	file, err := os.ReadFile(romFile)
	if err != nil {
		return snes.Layout{}, common.FormatError(common.ErrFailedToReadROM, err)
	}

	layout := snes.Layout{Mapping: mapping, Size: len(file)}
	if layout.Size%snes.LoROMBankSize == snes.CopierHeaderSize {
		layout.CopierHeader = true
		layout.Size -= snes.CopierHeaderSize
	}
	if layout.Mapping == "" {
		layout.Mapping = detectMapping(file[len(file)-layout.Size:])
		common.LogDebug(common.DebugMappingDetected, layout.Mapping)
	}

	layout.ApplyDefaults()
	if layout.Mapping == snes.MappingLoROM {
		layout.BankBase = snes.DefaultFastROMBase
	}
	return layout, layout.Validate()
}

// detectMapping looks for a consistent internal header at the LoROM location,
// then at the HiROM one, and falls back to LoROM.
func detectMapping(rom []byte) snes.Mapping {
	candidates := []struct {
		offset  int
		mapping snes.Mapping
	}{
		{snes.DefaultHeaderLoROM, snes.MappingLoROM},
		{snes.DefaultHeaderLinear, snes.MappingLinear},
	}
	for _, c := range candidates {
		info, err := snes.ReadHeaderInfo(rom, c.offset)
		if err != nil || !info.Checksum.Valid() {
			continue
		}
		if info.LayoutMapping() == c.mapping {
			return c.mapping
		}
	}
	return snes.MappingLoROM
}
