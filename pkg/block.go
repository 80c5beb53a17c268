package pkg

import (
	"fmt"
	"os"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/hansbonini/issdtools/pkg/lz"
)

// BlockProcessor runs the codec on loose files, such as a compressed block
// cut out of a dump or a decoded block about to be tested in an emulator.
type BlockProcessor struct {
	Offset int // start of the stream inside the input file
	Limit  int // declared decoded length; 0 reads to the end marker
	Budget int // match search window for packing
}

// NewBlockProcessor creates a block processor reading from offset zero.
func NewBlockProcessor() *BlockProcessor {
	return &BlockProcessor{}
}

// UnpackBlock decodes the stream at p.Offset of inputFile into outputFile and
// returns the number of compressed bytes consumed.
func (p *BlockProcessor) UnpackBlock(inputFile, outputFile string) (int, error) {
	// Read compressed input
	src, err := os.ReadFile(inputFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read input file: %w", err)
	}

	// Decompress from the requested offset
	decoded, consumed, err := lz.Decompress(src, p.Offset, p.Limit)
	if err != nil {
		return 0, fmt.Errorf("failed to decompress block at 0x%X: %w", p.Offset, err)
	}

	if err := os.WriteFile(outputFile, decoded, 0644); err != nil {
		return 0, common.FormatError(common.ErrFailedToCreateOutputFile, err)
	}

	common.LogInfo("Block unpacked: %s -> %s", inputFile, outputFile)
	common.LogInfo("Compressed size: %d bytes, Decompressed size: %d bytes", consumed, len(decoded))
	return consumed, nil
}

// PackBlock compresses inputFile into outputFile and returns the packed size.
func (p *BlockProcessor) PackBlock(inputFile, outputFile string) (int, error) {
	// Read uncompressed input
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return 0, fmt.Errorf("failed to read input file: %w", err)
	}

	packed := lz.Compress(data, p.Budget)

	if err := os.WriteFile(outputFile, packed, 0644); err != nil {
		return 0, common.FormatError(common.ErrFailedToCreateOutputFile, err)
	}

	common.LogInfo("Block packed: %s -> %s", inputFile, outputFile)
	common.LogInfo(common.InfoCompressionFinished, len(data), len(packed))
	return len(packed), nil
}
