package pkg

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hansbonini/issdtools/pkg/common"
)

// OverlaySuffix is appended to a ROM file name to find its relocation overlay.
const OverlaySuffix = ".reloc.yaml"

// Relocation records where an asset lives in a rebuilt image, relative to
// the unmodified catalog. Slot is the length of the asset's catalog slot,
// which became free space when the asset moved.
type Relocation struct {
	Asset   string `yaml:"asset"`
	Address string `yaml:"address"`
	Size    int    `yaml:"size"`
	Slot    int    `yaml:"slot"`
}

type overlayFile struct {
	Relocations []Relocation `yaml:"relocations"`
}

// OverlayPath returns the overlay file that accompanies romFile.
func OverlayPath(romFile string) string {
	return romFile + OverlaySuffix
}

// LoadOverlay reads the overlay at path. A missing file is an empty overlay.
func LoadOverlay(path string) ([]Relocation, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToReadOverlay, err)
	}

	var doc overlayFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.FormatError(common.ErrFailedToReadOverlay, err)
	}
	return doc.Relocations, nil
}

// WriteOverlay stores relocations at path. An empty list removes any
// overlay left there by an earlier build.
func WriteOverlay(path string, relocations []Relocation) error {
	if len(relocations) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return common.FormatError(common.ErrFailedToWriteOverlay, err)
		}
		return nil
	}

	data, err := yaml.Marshal(overlayFile{Relocations: relocations})
	if err != nil {
		return common.FormatError(common.ErrFailedToWriteOverlay, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return common.FormatError(common.ErrFailedToWriteOverlay, err)
	}
	common.LogInfo(common.InfoOverlayWritten, path, len(relocations))
	return nil
}

// MergeRelocations folds the moves of one build into the overlay of its
// input image. An asset that moves again keeps the slot of its first move.
func MergeRelocations(base []Relocation, moved []RelocationRecord) []Relocation {
	out := append([]Relocation(nil), base...)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.Asset] = i
	}

	for _, rec := range moved {
		if i, ok := index[rec.Asset]; ok {
			out[i].Address = rec.New.String()
			out[i].Size = rec.NewLength
			continue
		}
		index[rec.Asset] = len(out)
		out = append(out, Relocation{
			Asset:   rec.Asset,
			Address: rec.New.String(),
			Size:    rec.NewLength,
			Slot:    rec.OldLength,
		})
	}
	return out
}

// Relocated returns a catalog in which each relocated asset sits at its new
// address with a fixed span. Every old slot goes back to free space and
// every new span is taken out of it. c itself is unchanged.
func (c *Catalog) Relocated(relocations []Relocation) (*Catalog, error) {
	if len(relocations) == 0 {
		return c, nil
	}

	assets := c.All()
	pool := NewFreeSpacePool(c.translator, c.freeSpace)

	type move struct {
		i     int
		start int
		size  int
	}
	moves := make([]move, 0, len(relocations))
	for _, r := range relocations {
		i, ok := c.index[r.Asset]
		if !ok {
			return nil, fmt.Errorf("overlay: %q: %w", r.Asset, common.ErrUnknownAsset)
		}
		d := assets[i]
		if d.Format != FormatRaw && d.Format != FormatCompressed {
			return nil, fmt.Errorf("overlay: %s assets cannot move (%s)", d.Format, d.Name)
		}
		if r.Size <= 0 || r.Slot <= 0 {
			return nil, fmt.Errorf("overlay: %s has size %d, slot %d", d.Name, r.Size, r.Slot)
		}
		addr, err := c.translator.Parse(r.Address)
		if err != nil {
			return nil, fmt.Errorf("overlay: %s address %q: %w", d.Name, r.Address, err)
		}

		pool.Release(d.Address.Linear, r.Slot)
		d.Address = addr
		d.Size = r.Size
		assets[i] = d
		moves = append(moves, move{i: i, start: addr.Linear, size: r.Size})
	}

	// all slots are released first; one move may land in another's old slot
	for _, m := range moves {
		if err := pool.Reserve(m.start, m.size); err != nil {
			return nil, fmt.Errorf("overlay: %s: %w", assets[m.i].Name, err)
		}
	}

	return NewCatalog(c.translator, assets, pool.Regions(), c.charmaps)
}
