package pkg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hansbonini/issdtools/pkg/common"
)

// Importer reads edited asset files back into blobs for the Rebuilder.
type Importer struct {
	catalog *Catalog
}

// NewImporter creates an importer for a catalog.
func NewImporter(catalog *Catalog) *Importer {
	return &Importer{catalog: catalog}
}

// LoadDir loads every catalog asset that has a file in dir. Assets without a
// file keep their ROM contents; files without a catalog entry are ignored.
func (im *Importer) LoadDir(dir string) (map[string]*AssetBlob, error) {
	blobs := make(map[string]*AssetBlob)
	known := map[string]bool{ManifestFile: true}

	for _, d := range im.catalog.All() {
		name := AssetFileName(d)
		known[name] = true

		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			common.LogWarn(common.WarnAssetFileMissing, d.Name)
			continue
		}

		blob, err := im.LoadAsset(d, path)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", common.ErrFailedToReadAsset, path, err)
		}
		blobs[d.Name] = blob
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToReadAsset, err)
	}
	var stray []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".bin" && ext != ".yaml") || known[e.Name()] {
			continue
		}
		stray = append(stray, e.Name())
	}
	sort.Strings(stray)
	for _, name := range stray {
		common.LogWarn(common.WarnUnknownAssetFile, name)
	}

	common.LogInfo(common.InfoAssetsLoaded, len(blobs), dir)
	return blobs, nil
}

// LoadAsset reads one edited file in the form the Exporter wrote it.
func (im *Importer) LoadAsset(d AssetDescriptor, path string) (*AssetBlob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	blob := &AssetBlob{Name: d.Name, Format: d.Format, Source: d.Address}
	switch d.Format {
	case FormatPointerTable:
		var doc PointerTableYAML
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, common.FormatError(common.ErrFailedToParseAsset, err)
		}
		if blob.Entries, err = im.parseEntries(d, doc.Entries); err != nil {
			return nil, err
		}

	case FormatText:
		var doc TextTableYAML
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, common.FormatError(common.ErrFailedToParseAsset, err)
		}
		if blob.Data, err = im.encodeText(d, doc.Records); err != nil {
			return nil, err
		}

	default:
		blob.Data = data
	}
	return blob, nil
}

func (im *Importer) parseEntries(d AssetDescriptor, in []PointerEntryYAML) ([]TableEntry, error) {
	if len(in) != d.Count {
		return nil, fmt.Errorf("%s: file has %d entries, catalog declares %d", common.ErrPointerTableCountMismatch, len(in), d.Count)
	}

	t := im.catalog.Translator()
	entries := make([]TableEntry, d.Count)
	seen := make([]bool, d.Count)
	for _, e := range in {
		if e.Index < 0 || e.Index >= d.Count || seen[e.Index] {
			return nil, fmt.Errorf("entry index %d is out of range or repeated", e.Index)
		}
		seen[e.Index] = true

		entry := TableEntry{Index: e.Index}
		if e.Target != "" {
			target, err := t.Parse(e.Target)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", e.Index, err)
			}
			entry.Target = target
			entry.Resolved = true
			entry.Raw = target.Bus()
		} else {
			raw, err := common.ParseNumber(e.Raw)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", e.Index, err)
			}
			entry.Raw = raw
		}
		entries[e.Index] = entry
	}
	return entries, nil
}

// encodeText converts records to codes and pads each to the record width.
func (im *Importer) encodeText(d AssetDescriptor, records []string) ([]byte, error) {
	if len(records) != d.Count {
		return nil, fmt.Errorf("text table has %d records, catalog declares %d", len(records), d.Count)
	}
	cm, err := im.catalog.Charmap(d.Charmap)
	if err != nil {
		return nil, err
	}

	encode := cm.Encode
	if d.Fold {
		encode = cm.EncodeFolded
	}

	out := make([]byte, 0, d.Span())
	for i, s := range records {
		codes, err := encode(s)
		if err != nil {
			return nil, fmt.Errorf("record %d %q: %w", i, s, err)
		}
		if len(codes) > d.Record {
			return nil, fmt.Errorf("record %d %q is %d bytes, limit %d", i, s, len(codes), d.Record)
		}
		out = append(out, codes...)
		for n := len(codes); n < d.Record; n++ {
			out = append(out, cm.Pad())
		}
	}
	return out, nil
}
