package pkg

import (
	"fmt"
	"sort"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/snes"
)

// FreeRegion is a run of ROM bytes that may be overwritten by relocated assets.
type FreeRegion struct {
	Start int
	Size  int
}

// End returns the first offset after the region.
func (r FreeRegion) End() int {
	return r.Start + r.Size
}

// AnyBank lets Allocate pick a block in any bank.
const AnyBank = -1

// FreeSpacePool hands out first-fit blocks from the declared free regions.
// In bank-swapped layouts a block never crosses a bank boundary.
type FreeSpacePool struct {
	translator *snes.Translator
	regions    []FreeRegion // sorted, non-adjacent
}

// NewFreeSpacePool builds a pool from declared regions.
func NewFreeSpacePool(translator *snes.Translator, regions []FreeRegion) *FreeSpacePool {
	p := &FreeSpacePool{translator: translator}
	for _, r := range regions {
		p.insert(r)
	}
	return p
}

// Regions returns the current free regions in offset order.
func (p *FreeSpacePool) Regions() []FreeRegion {
	return append([]FreeRegion(nil), p.regions...)
}

// Largest returns the size of the biggest block Allocate could return for bank.
func (p *FreeSpacePool) Largest(bank int) int {
	largest := 0
	for _, r := range p.regions {
		for _, piece := range p.pieces(r) {
			if bank != AnyBank && p.translator.BankIndex(piece.Start) != bank {
				continue
			}
			if piece.Size > largest {
				largest = piece.Size
			}
		}
	}
	return largest
}

// Allocate reserves size bytes and returns their linear offset. bank is a
// physical bank index, or AnyBank.
func (p *FreeSpacePool) Allocate(name string, size, bank int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("cannot allocate %d bytes for %s", size, name)
	}

	for i, r := range p.regions {
		for _, piece := range p.pieces(r) {
			if piece.Size < size {
				continue
			}
			if bank != AnyBank && p.translator.BankIndex(piece.Start) != bank {
				continue
			}
			if err := p.translator.CheckSpan(piece.Start, size); err != nil {
				return 0, err
			}

			p.take(i, piece.Start, size)
			common.LogDebug(common.DebugFreeRegionTaken, size, piece.Start, r.Start, r.Size)
			return piece.Start, nil
		}
	}

	return 0, &common.NoFreeSpaceError{Name: name, Required: size, Largest: p.Largest(bank)}
}

// Release returns a span to the pool, merging it with its neighbours.
func (p *FreeSpacePool) Release(start, size int) {
	if size <= 0 {
		return
	}
	p.insert(FreeRegion{Start: start, Size: size})
	common.LogDebug(common.DebugFreeRegionAdded, start, size)
}

// Reserve removes a known span from the pool. The span must lie inside a
// single free region.
func (p *FreeSpacePool) Reserve(start, size int) error {
	for i, r := range p.regions {
		if start >= r.Start && start+size <= r.End() {
			p.take(i, start, size)
			common.LogDebug(common.DebugFreeRegionTaken, size, start, r.Start, r.Size)
			return nil
		}
	}
	return fmt.Errorf("0x%06X+0x%X is not free: %w", start, size, common.ErrNoFreeSpace)
}

// pieces splits a region at bank boundaries when spans may not cross them.
func (p *FreeSpacePool) pieces(r FreeRegion) []FreeRegion {
	layout := p.translator.Layout()
	if layout.Mapping != snes.MappingLoROM {
		return []FreeRegion{r}
	}

	var out []FreeRegion
	for start := r.Start; start < r.End(); {
		end := (start/layout.BankSize + 1) * layout.BankSize
		if end > r.End() {
			end = r.End()
		}
		out = append(out, FreeRegion{Start: start, Size: end - start})
		start = end
	}
	return out
}

// take removes [start, start+size) from region i.
func (p *FreeSpacePool) take(i, start, size int) {
	r := p.regions[i]
	var rest []FreeRegion
	if start > r.Start {
		rest = append(rest, FreeRegion{Start: r.Start, Size: start - r.Start})
	}
	if end := start + size; end < r.End() {
		rest = append(rest, FreeRegion{Start: end, Size: r.End() - end})
	}

	regions := append([]FreeRegion(nil), p.regions[:i]...)
	regions = append(regions, rest...)
	p.regions = append(regions, p.regions[i+1:]...)
}

func (p *FreeSpacePool) insert(r FreeRegion) {
	if r.Size <= 0 {
		return
	}
	p.regions = append(p.regions, r)
	sort.Slice(p.regions, func(i, j int) bool { return p.regions[i].Start < p.regions[j].Start })

	merged := p.regions[:1]
	for _, next := range p.regions[1:] {
		last := &merged[len(merged)-1]
		if next.Start <= last.End() {
			if next.End() > last.End() {
				last.Size = next.End() - last.Start
			}
			continue
		}
		merged = append(merged, next)
	}
	p.regions = merged
}
