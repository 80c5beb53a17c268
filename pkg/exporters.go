package pkg

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// ManifestFile is the name of the extraction index written next to the assets.
const ManifestFile = "manifest.yaml"

// PointerTableYAML is the editable form of a pointer table.
type PointerTableYAML struct {
	Name    string             `yaml:"name"`
	Address string             `yaml:"address"`
	Width   int                `yaml:"width"`
	Bank    string             `yaml:"bank,omitempty"`
	Entries []PointerEntryYAML `yaml:"entries"`
}

// PointerEntryYAML holds one pointer. Target is a bus address; entries that
// do not point into ROM carry their Raw value instead.
type PointerEntryYAML struct {
	Index  int    `yaml:"index"`
	Target string `yaml:"target,omitempty"`
	Linear string `yaml:"linear,omitempty"`
	Raw    string `yaml:"raw,omitempty"`
}

// TextTableYAML is the editable form of a fixed-record text table.
type TextTableYAML struct {
	Name    string   `yaml:"name"`
	Charmap string   `yaml:"charmap"`
	Record  int      `yaml:"record"`
	Records []string `yaml:"records"`
}

// Manifest indexes one extraction run.
type Manifest struct {
	Mapping  string            `yaml:"mapping"`
	Size     string            `yaml:"size"`
	Assets   []ManifestEntry   `yaml:"assets"`
	Failures []ManifestFailure `yaml:"failures,omitempty"`
}

// ManifestEntry describes one extracted asset.
type ManifestEntry struct {
	Name          string `yaml:"name"`
	Format        Format `yaml:"format"`
	Address       string `yaml:"address"`
	Linear        string `yaml:"linear"`
	OnROMLength   int    `yaml:"on_rom_length"`
	DecodedLength int    `yaml:"decoded_length"`
	File          string `yaml:"file"`
	Preview       string `yaml:"preview,omitempty"`
}

// ManifestFailure records an asset that could not be extracted.
type ManifestFailure struct {
	Name  string `yaml:"name"`
	Error string `yaml:"error"`
}

// Exporter writes extracted assets as editable files.
type Exporter struct {
	catalog *Catalog
	preview bool
}

// NewExporter creates an exporter without tile previews.
func NewExporter(catalog *Catalog) *Exporter {
	return &Exporter{catalog: catalog}
}

// SetPreview enables PNG previews for assets that declare one.
func (x *Exporter) SetPreview(enabled bool) {
	x.preview = enabled
}

// AssetFileName returns the file an asset is written to and read back from.
func AssetFileName(d AssetDescriptor) string {
	switch d.Format {
	case FormatPointerTable, FormatText:
		return d.Name + ".yaml"
	}
	return d.Name + ".bin"
}

// WriteAll writes every blob plus the manifest. Assets are written in
// catalog order, so repeated runs produce identical files.
func (x *Exporter) WriteAll(outputDir string, blobs map[string]*AssetBlob, failures []error) (*Manifest, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, common.FormatError(common.ErrFailedToCreateOutputDir, err)
	}

	layout := x.catalog.Layout()
	manifest := &Manifest{
		Mapping: string(layout.Mapping),
		Size:    fmt.Sprintf("0x%X", layout.Size),
	}

	for _, d := range x.catalog.All() {
		blob, ok := blobs[d.Name]
		if !ok {
			continue
		}
		entry, err := x.WriteAsset(outputDir, d, blob, blobs)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", common.ErrFailedToWriteAsset, d.Name, err)
		}
		manifest.Assets = append(manifest.Assets, entry)
	}

	for _, f := range failures {
		failure := ManifestFailure{Error: f.Error()}
		var ee *common.ExtractionError
		if errors.As(f, &ee) {
			failure.Name = ee.Name
			failure.Error = ee.Cause.Error()
		}
		manifest.Failures = append(manifest.Failures, failure)
	}

	path := filepath.Join(outputDir, ManifestFile)
	if err := writeYAML(path, manifest); err != nil {
		return nil, common.FormatError(common.ErrFailedToWriteManifest, err)
	}
	common.LogInfo(common.InfoManifestWritten, path)
	return manifest, nil
}

// WriteAsset writes a single blob. blobs supplies palette assets for previews.
func (x *Exporter) WriteAsset(outputDir string, d AssetDescriptor, blob *AssetBlob, blobs map[string]*AssetBlob) (ManifestEntry, error) {
	entry := ManifestEntry{
		Name:          d.Name,
		Format:        d.Format,
		Address:       blob.Source.String(),
		Linear:        fmt.Sprintf("0x%06X", blob.Source.Linear),
		OnROMLength:   blob.OnROMLength,
		DecodedLength: len(blob.Data),
		File:          AssetFileName(d),
	}
	path := filepath.Join(outputDir, entry.File)

	var err error
	switch d.Format {
	case FormatPointerTable:
		err = writeYAML(path, x.pointerTableYAML(d, blob))
	case FormatText:
		var doc *TextTableYAML
		if doc, err = x.textTableYAML(d, blob); err == nil {
			err = writeYAML(path, doc)
		}
	default:
		err = os.WriteFile(path, blob.Data, 0644)
	}
	if err != nil {
		return entry, err
	}

	if x.preview && d.Preview != nil {
		name, err := x.writePreview(outputDir, d, blob, blobs)
		if err != nil {
			return entry, common.FormatError(common.ErrFailedToRenderPreview, err)
		}
		entry.Preview = name
	}
	return entry, nil
}

func (x *Exporter) pointerTableYAML(d AssetDescriptor, blob *AssetBlob) *PointerTableYAML {
	doc := &PointerTableYAML{
		Name:    d.Name,
		Address: d.Address.String(),
		Width:   d.Width,
	}
	if d.Width == 2 {
		doc.Bank = fmt.Sprintf("$%02X", d.Bank)
	}

	for _, e := range blob.Entries {
		entry := PointerEntryYAML{Index: e.Index}
		if e.Resolved {
			entry.Target = e.Target.String()
			entry.Linear = fmt.Sprintf("0x%06X", e.Target.Linear)
		} else if d.Width == 3 {
			entry.Raw = fmt.Sprintf("0x%06X", e.Raw)
		} else {
			entry.Raw = fmt.Sprintf("0x%04X", e.Raw)
		}
		doc.Entries = append(doc.Entries, entry)
	}
	return doc
}

func (x *Exporter) textTableYAML(d AssetDescriptor, blob *AssetBlob) (*TextTableYAML, error) {
	cm, err := x.catalog.Charmap(d.Charmap)
	if err != nil {
		return nil, err
	}

	doc := &TextTableYAML{Name: d.Name, Charmap: d.Charmap, Record: d.Record}
	pad := cm.Pad()
	for i := 0; i+d.Record <= len(blob.Data); i += d.Record {
		record := blob.Data[i : i+d.Record]
		n := len(record)
		for n > 0 && record[n-1] == pad {
			n--
		}
		doc.Records = append(doc.Records, cm.Decode(record[:n]))
	}
	return doc, nil
}

func (x *Exporter) writePreview(outputDir string, d AssetDescriptor, blob *AssetBlob, blobs map[string]*AssetBlob) (string, error) {
	var palette []byte
	if d.Preview.Palette != "" {
		if p, ok := blobs[d.Preview.Palette]; ok {
			palette = p.Data
		}
	}

	img, err := snes.RenderTiles(blob.Data, d.Preview.BPP, d.Preview.Width, snes.DecodePalette(palette))
	if err != nil {
		return "", err
	}
	scaled := snes.ScaleImage(img, d.Preview.Scale)

	name := d.Name + ".png"
	file, err := os.Create(filepath.Join(outputDir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create PNG file for %s: %w", d.Name, err)
	}
	defer file.Close()

	if err := png.Encode(file, scaled); err != nil {
		return "", fmt.Errorf("failed to encode PNG for %s: %w", d.Name, err)
	}

	b := scaled.Bounds()
	common.LogDebug(common.DebugPreviewWritten, d.Name, b.Dx(), b.Dy(), name)
	return name, nil
}

func writeYAML(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputFile, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
