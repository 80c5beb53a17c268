package pkg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// Catalog is the declared set of assets for one ROM layout. It is built once
// and passed to every stage; descriptors are never modified after loading.
type Catalog struct {
	translator *snes.Translator
	assets     []AssetDescriptor
	index      map[string]int
	charmaps   map[string]*Charmap
	freeSpace  []FreeRegion
}

// NewCatalog indexes and validates a set of descriptors.
func NewCatalog(translator *snes.Translator, assets []AssetDescriptor, freeSpace []FreeRegion, charmaps map[string]*Charmap) (*Catalog, error) {
	c := &Catalog{
		translator: translator,
		assets:     append([]AssetDescriptor(nil), assets...),
		index:      make(map[string]int, len(assets)),
		charmaps:   charmaps,
		freeSpace:  append([]FreeRegion(nil), freeSpace...),
	}
	if c.charmaps == nil {
		c.charmaps = make(map[string]*Charmap)
	}

	for i, d := range c.assets {
		if d.Name == "" {
			return nil, fmt.Errorf("asset #%d has no name", i)
		}
		if _, dup := c.index[d.Name]; dup {
			return nil, fmt.Errorf("duplicate asset name %q", d.Name)
		}
		c.index[d.Name] = i
	}

	if err := c.Validate(translator); err != nil {
		return nil, err
	}
	return c, nil
}

// Translator returns the address translator for the catalog's layout.
func (c *Catalog) Translator() *snes.Translator {
	return c.translator
}

// Layout returns the ROM layout the catalog was declared for.
func (c *Catalog) Layout() snes.Layout {
	return c.translator.Layout()
}

// Resolve returns the descriptor for name.
func (c *Catalog) Resolve(name string) (AssetDescriptor, error) {
	i, ok := c.index[name]
	if !ok {
		return AssetDescriptor{}, fmt.Errorf("%q: %w", name, common.ErrUnknownAsset)
	}
	return c.assets[i], nil
}

// All returns every descriptor in declaration order.
func (c *Catalog) All() []AssetDescriptor {
	return append([]AssetDescriptor(nil), c.assets...)
}

// AllOfFormat returns the descriptors of one format in declaration order.
func (c *Catalog) AllOfFormat(format Format) []AssetDescriptor {
	var out []AssetDescriptor
	for _, d := range c.assets {
		if d.Format == format {
			out = append(out, d)
		}
	}
	return out
}

// Charmap returns a named character map.
func (c *Catalog) Charmap(name string) (*Charmap, error) {
	cm, ok := c.charmaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown charmap %q", name)
	}
	return cm, nil
}

// FreeSpace returns the declared free regions.
func (c *Catalog) FreeSpace() []FreeRegion {
	return append([]FreeRegion(nil), c.freeSpace...)
}

// Validate checks every declaration against the layout of t. All problems
// are reported together.
func (c *Catalog) Validate(t *snes.Translator) error {
	var errs []error

	type span struct {
		name       string
		start, end int
	}
	var spans []span

	for _, d := range c.assets {
		if err := c.validateDescriptor(t, d); err != nil {
			errs = append(errs, fmt.Errorf("asset %s: %w", d.Name, err))
			continue
		}
		if n := d.Span(); n > 0 {
			spans = append(spans, span{d.Name, d.Address.Linear, d.Address.Linear + n})
		}
	}

	layout := t.Layout()
	size := layout.Size
	if layout.HeaderOffset+snes.HeaderLength <= size {
		spans = append(spans, span{"internal header", layout.HeaderOffset, layout.HeaderOffset + snes.HeaderLength})
	}
	for i, r := range c.freeSpace {
		if r.Size <= 0 || r.Start < 0 || r.Start+r.Size > size {
			errs = append(errs, fmt.Errorf("free region #%d 0x%06X+0x%X: %w", i, r.Start, r.Size, common.ErrOutOfRange))
			continue
		}
		spans = append(spans, span{fmt.Sprintf("free region #%d", i), r.Start, r.Start + r.Size})
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			errs = append(errs, fmt.Errorf("%s overlaps %s at 0x%06X", spans[i].name, spans[i-1].name, spans[i].start))
		}
	}

	return errors.Join(errs...)
}

func (c *Catalog) validateDescriptor(t *snes.Translator, d AssetDescriptor) error {
	if !t.IsValid(d.Address) {
		return fmt.Errorf("address %s (0x%06X) does not resolve: %w", d.Address, d.Address.Linear, common.ErrOutOfRange)
	}

	switch d.Format {
	case FormatRaw:
		if d.Size <= 0 {
			return fmt.Errorf("raw asset needs a size")
		}
	case FormatCompressed:
		if d.Size < 0 || d.DecodedSize < 0 {
			return fmt.Errorf("negative size")
		}
	case FormatPointerTable:
		if d.Width != 2 && d.Width != 3 {
			return fmt.Errorf("pointer width must be 2 or 3, got %d", d.Width)
		}
		if d.Count <= 0 {
			return fmt.Errorf("pointer table needs a count")
		}
		if d.Stride < d.Width {
			return fmt.Errorf("stride %d is smaller than width %d", d.Stride, d.Width)
		}
		if d.Width == 2 {
			if _, err := t.BankStart(d.Bank); err != nil {
				return fmt.Errorf("implied bank $%02X: %w", d.Bank, err)
			}
		}
	case FormatText:
		if d.Record <= 0 || d.Count <= 0 {
			return fmt.Errorf("text table needs record and count")
		}
		if _, ok := c.charmaps[d.Charmap]; !ok {
			return fmt.Errorf("unknown charmap %q", d.Charmap)
		}
	default:
		return fmt.Errorf("unknown format %q", d.Format)
	}

	if n := d.Span(); n > 0 {
		if err := t.CheckSpan(d.Address.Linear, n); err != nil {
			return err
		}
	}

	for _, ref := range d.ReferencedBy {
		i, ok := c.index[ref.Table]
		if !ok {
			return fmt.Errorf("referenced by %q: %w", ref.Table, common.ErrUnknownAsset)
		}
		table := c.assets[i]
		if table.Format != FormatPointerTable {
			return fmt.Errorf("referenced by %s, which is not a pointer table", ref.Table)
		}
		for _, e := range ref.Entries {
			if e < 0 || e >= table.Count {
				return fmt.Errorf("entry %d of %s is outside its %d entries", e, ref.Table, table.Count)
			}
		}
	}

	if p := d.Preview; p != nil {
		if _, err := snes.TileBytes(p.BPP); err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		if p.Palette != "" {
			i, ok := c.index[p.Palette]
			if !ok || c.assets[i].Format != FormatRaw {
				return fmt.Errorf("preview palette %q is not a raw asset", p.Palette)
			}
		}
	}
	return nil
}

// YAML document

type catalogFile struct {
	Layout    layoutYAML        `yaml:"layout"`
	Charmaps  map[string]string `yaml:"charmaps"`
	FreeSpace []freeRegionYAML  `yaml:"free_space"`
	Assets    []assetYAML       `yaml:"assets"`
}

type layoutYAML struct {
	Mapping      string `yaml:"mapping"`
	BankSize     scalar `yaml:"bank_size"`
	BankBase     scalar `yaml:"bank_base"`
	Size         scalar `yaml:"size"`
	CopierHeader bool   `yaml:"copier_header"`
	Header       scalar `yaml:"header"`
}

type freeRegionYAML struct {
	Start scalar `yaml:"start"`
	Size  scalar `yaml:"size"`
}

type previewYAML struct {
	BPP     int    `yaml:"bpp"`
	Width   int    `yaml:"width"`
	Scale   int    `yaml:"scale"`
	Palette string `yaml:"palette"`
}

type tableRefYAML struct {
	Table   string `yaml:"table"`
	Entries []int  `yaml:"entries"`
}

type assetYAML struct {
	Name         string         `yaml:"name"`
	Address      scalar         `yaml:"address"`
	Format       string         `yaml:"format"`
	Size         scalar         `yaml:"size"`
	DecodedSize  scalar         `yaml:"decoded_size"`
	Pad          scalar         `yaml:"pad"`
	Count        scalar         `yaml:"count"`
	Width        scalar         `yaml:"width"`
	Stride       scalar         `yaml:"stride"`
	Bank         scalar         `yaml:"bank"`
	Charmap      string         `yaml:"charmap"`
	Record       scalar         `yaml:"record"`
	Fold         bool           `yaml:"fold"`
	Preview      *previewYAML   `yaml:"preview"`
	ReferencedBy []tableRefYAML `yaml:"referenced_by"`
}

// scalar keeps the literal text of a YAML value so "$8A:8000", "0x7FC0"
// and "$FF" all reach the number parser unchanged.
type scalar string

func (s *scalar) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number or address", node.Line)
	}
	*s = scalar(node.Value)
	return nil
}

func (s scalar) toInt(def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := common.ParseNumber(string(s))
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func (s scalar) toByte(def byte) (byte, error) {
	v, err := s.toInt(int(def))
	if err != nil {
		return 0, err
	}
	return common.SafeIntToUint8(v)
}

// LoadCatalog reads a catalog file. fileSize is the size of the ROM file
// (copier header included) and supplies the image size when the layout
// block omits it.
func LoadCatalog(path string, fileSize int) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToReadCatalog, err)
	}

	c, err := ParseCatalog(data, filepath.Dir(path), fileSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	common.LogInfo(common.InfoCatalogLoaded, path, len(c.assets), len(c.freeSpace))
	return c, nil
}

// ParseCatalog builds a catalog from YAML. Relative charmap paths resolve
// against baseDir.
func ParseCatalog(data []byte, baseDir string, fileSize int) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.FormatError(common.ErrFailedToParseCatalog, err)
	}

	layout, err := doc.Layout.layout(fileSize)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	translator, err := snes.NewTranslator(layout)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	charmaps := make(map[string]*Charmap, len(doc.Charmaps))
	for name, path := range doc.Charmaps {
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		cm, err := LoadCharmap(path)
		if err != nil {
			return nil, fmt.Errorf("charmap %s: %w", name, err)
		}
		charmaps[name] = cm
	}

	free := make([]FreeRegion, 0, len(doc.FreeSpace))
	for i, r := range doc.FreeSpace {
		start, err := translatedOffset(translator, r.Start)
		if err != nil {
			return nil, fmt.Errorf("free region #%d: %w", i, err)
		}
		size, err := r.Size.toInt(0)
		if err != nil {
			return nil, fmt.Errorf("free region #%d: %w", i, err)
		}
		free = append(free, FreeRegion{Start: start, Size: size})
	}

	assets := make([]AssetDescriptor, 0, len(doc.Assets))
	for i, a := range doc.Assets {
		d, err := a.descriptor(translator)
		if err != nil {
			return nil, fmt.Errorf("asset #%d (%s): %w", i, a.Name, err)
		}
		common.LogDebug(common.DebugCatalogDescriptor, d.Name, d.Format, d.Address, d.Span())
		assets = append(assets, d)
	}

	return NewCatalog(translator, assets, free, charmaps)
}

func (l layoutYAML) layout(fileSize int) (snes.Layout, error) {
	layout := snes.Layout{
		Mapping:      snes.Mapping(l.Mapping),
		CopierHeader: l.CopierHeader,
	}

	var err error
	if layout.BankSize, err = l.BankSize.toInt(0); err != nil {
		return layout, fmt.Errorf("bank_size: %w", err)
	}
	if layout.HeaderOffset, err = l.Header.toInt(0); err != nil {
		return layout, fmt.Errorf("header: %w", err)
	}

	defaultSize := fileSize
	if l.CopierHeader {
		defaultSize -= snes.CopierHeaderSize
	}
	if layout.Size, err = l.Size.toInt(defaultSize); err != nil {
		return layout, fmt.Errorf("size: %w", err)
	}

	layout.ApplyDefaults()

	var defaultBase byte
	if layout.Mapping == snes.MappingLoROM {
		defaultBase = snes.DefaultFastROMBase
	}
	if layout.BankBase, err = l.BankBase.toByte(defaultBase); err != nil {
		return layout, fmt.Errorf("bank_base: %w", err)
	}
	return layout, nil
}

func (a assetYAML) descriptor(t *snes.Translator) (AssetDescriptor, error) {
	d := AssetDescriptor{
		Name:    a.Name,
		Format:  Format(a.Format),
		Charmap: a.Charmap,
		Fold:    a.Fold,
	}

	addr, err := t.Parse(string(a.Address))
	if err != nil {
		return d, fmt.Errorf("address %q: %w", a.Address, err)
	}
	d.Address = addr

	fields := []struct {
		name string
		src  scalar
		dst  *int
		def  int
	}{
		{"size", a.Size, &d.Size, 0},
		{"decoded_size", a.DecodedSize, &d.DecodedSize, 0},
		{"count", a.Count, &d.Count, 0},
		{"width", a.Width, &d.Width, 2},
		{"stride", a.Stride, &d.Stride, 0},
		{"record", a.Record, &d.Record, 0},
	}
	for _, f := range fields {
		if *f.dst, err = f.src.toInt(f.def); err != nil {
			return d, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	if d.Stride == 0 {
		d.Stride = d.Width
	}

	if d.Pad, err = a.Pad.toByte(0); err != nil {
		return d, fmt.Errorf("pad: %w", err)
	}
	if d.Bank, err = a.Bank.toByte(addr.Bank); err != nil {
		return d, fmt.Errorf("bank: %w", err)
	}

	for _, r := range a.ReferencedBy {
		d.ReferencedBy = append(d.ReferencedBy, TableRef{Table: r.Table, Entries: r.Entries})
	}

	if p := a.Preview; p != nil {
		d.Preview = &Preview{BPP: p.BPP, Width: p.Width, Scale: p.Scale, Palette: p.Palette}
		if d.Preview.Width <= 0 {
			d.Preview.Width = 16
		}
		if d.Preview.Scale <= 0 {
			d.Preview.Scale = 1
		}
	}

	return d, nil
}

func translatedOffset(t *snes.Translator, s scalar) (int, error) {
	addr, err := t.Parse(string(s))
	if err != nil {
		return 0, err
	}
	return addr.Linear, nil
}
