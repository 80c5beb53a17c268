// Package cmd provides command-line interface for the LZ codec.
// This file contains commands for unpacking and packing loose blocks
// outside of a catalog.
package cmd

import (
	"fmt"

	"github.com/hansbonini/issdtools/pkg"
	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/spf13/cobra"
)

// lzCmd represents the parent command for all codec operations.
var lzCmd = &cobra.Command{
	Use:   "lz",
	Short: "Compress or decompress loose data blocks",
	Long: `Run the cartridge's LZ codec on loose files.

Commands:
  unpack    Decode a compressed stream found at an offset of a file
  pack      Encode a file into a compressed stream

Examples:
  issdtools lz unpack --offset 0x50000 issd.sfc title.bin
  issdtools lz pack title.bin title.lz`,
}

// lzUnpackCmd decodes a stream from any file, typically the ROM itself.
var lzUnpackCmd = &cobra.Command{
	Use:   "unpack [input_file] [output_file]",
	Short: "Decompress a block",
	Long: `Decompress the stream starting at --offset of the input file.

Decoding stops at the end marker, or once --limit bytes are produced.

Example:
  issdtools lz unpack --offset 0x50000 --limit 0x2000 issd.sfc title.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputFile := args[1]

		if err := setVerbose(cmd); err != nil {
			return err
		}

		processor := pkg.NewBlockProcessor()
		var err error
		if processor.Offset, err = numberFlag(cmd, "offset"); err != nil {
			return err
		}
		if processor.Limit, err = numberFlag(cmd, "limit"); err != nil {
			return err
		}

		fmt.Printf("Input file: %s (offset 0x%X)\n", inputFile, processor.Offset)
		fmt.Printf("Output file: %s\n", outputFile)

		consumed, err := processor.UnpackBlock(inputFile, outputFile)
		if err != nil {
			return fmt.Errorf("failed to unpack block: %w", err)
		}

		fmt.Printf("Block unpacked successfully! (%d compressed bytes)\n", consumed)
		return nil
	},
}

// lzPackCmd compresses a file into a stream ready for insertion.
var lzPackCmd = &cobra.Command{
	Use:   "pack [input_file] [output_file]",
	Short: "Compress a block",
	Long: `Compress a file with the cartridge's LZ codec.

--budget limits how far back matches are searched; 0 searches the whole
1 KiB window.

Example:
  issdtools lz pack title.bin title.lz`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputFile := args[1]

		if err := setVerbose(cmd); err != nil {
			return err
		}

		processor := pkg.NewBlockProcessor()
		var err error
		if processor.Budget, err = numberFlag(cmd, "budget"); err != nil {
			return err
		}

		fmt.Printf("Input file: %s\n", inputFile)
		fmt.Printf("Output file: %s\n", outputFile)

		size, err := processor.PackBlock(inputFile, outputFile)
		if err != nil {
			return fmt.Errorf("failed to pack block: %w", err)
		}

		fmt.Printf("Block packed successfully! (%d bytes)\n", size)
		return nil
	},
}

// numberFlag reads a string flag holding a decimal or hex number.
func numberFlag(cmd *cobra.Command, name string) (int, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return 0, fmt.Errorf("error getting %s flag: %w", name, err)
	}
	v, err := common.ParseNumber(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return int(v), nil
}

// init initializes the lz command and its subcommands with appropriate flags.
func init() {
	rootCmd.AddCommand(lzCmd)

	lzCmd.AddCommand(lzUnpackCmd)
	lzCmd.AddCommand(lzPackCmd)

	lzUnpackCmd.Flags().String("offset", "0", "Start of the stream in the input file")
	lzUnpackCmd.Flags().String("limit", "0", "Stop after this many decoded bytes (0 = end marker)")
	lzPackCmd.Flags().String("budget", "0", "Match search window (0 = full window)")

	addVerboseFlag(lzUnpackCmd, lzPackCmd)
}
