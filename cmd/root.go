// Package cmd provides command-line interface functionality for ISSDTools.
// ISSDTools extracts graphics, pointer tables and text from a SNES
// cartridge image and rebuilds the image from edited files.
package cmd

import (
	"fmt"
	"os"

	"github.com/hansbonini/issdtools/pkg/common"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "issdtools",
	Short: "Asset extraction and reassembly for SNES cartridge images",
	Long: `ISSDTools - extract and reinsert the assets of a SNES cartridge image.

Currently supports:
  - Catalog driven extraction of compressed graphics, raw blocks,
    pointer tables and fixed-width text tables
  - Rebuilding the image from edited files with pointer relocation
  - Header checksum verification and repair
  - Standalone LZ packing and unpacking of loose blocks

Examples:
  issdtools extract issd.sfc catalog.yaml ./assets/
  issdtools build issd.sfc catalog.yaml ./assets/ issd_edited.sfc
  issdtools checksum verify issd_edited.sfc
  issdtools lz unpack --offset 0x50000 issd.sfc title.bin
  issdtools addr catalog.yaml '$8A:8000' 0x050000

Use 'issdtools [command] --help' for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main() and serves as the entry point for command execution.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// setVerbose reads the -v flag of a leaf command and toggles debug logging.
func setVerbose(cmd *cobra.Command) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("error getting verbose flag: %w", err)
	}
	common.SetVerboseMode(verbose)
	return nil
}

// addVerboseFlag registers -v/--verbose on each given command.
func addVerboseFlag(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().BoolP("verbose", "v", false, "Enable verbose output (show debug messages)")
	}
}
