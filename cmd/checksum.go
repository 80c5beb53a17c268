// Package cmd provides command-line interface for header checksum handling.
// This file contains the checksum and info commands, which work on a ROM
// image with or without a catalog.
package cmd

import (
	"fmt"

	"github.com/hansbonini/issdtools/pkg"
	"github.com/hansbonini/issdtools/pkg/snes"
	"github.com/spf13/cobra"
)

// checksumCmd represents the parent command for checksum operations.
var checksumCmd = &cobra.Command{
	Use:   "checksum",
	Short: "Verify or repair the internal header checksum",
	Long: `Verify or repair the checksum stored in the internal cartridge header.

The layout comes from --catalog when given; otherwise it is built from
--mapping (or the internal header when --mapping is empty) and the file
size, assuming a copier header when the file is 512 bytes past a whole
number of banks.

Commands:
  verify    Compare the stored checksum with the computed one
  fix       Recompute the checksum and write it into the image

Examples:
  issdtools checksum verify issd.sfc
  issdtools checksum fix --catalog catalog.yaml issd_edited.sfc`,
}

// checksumVerifyCmd reports whether the stored checksum is current.
var checksumVerifyCmd = &cobra.Command{
	Use:   "verify [rom_file]",
	Short: "Verify the header checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		romFile := args[0]

		if err := setVerbose(cmd); err != nil {
			return err
		}
		layout, err := layoutFromFlags(cmd, romFile)
		if err != nil {
			return err
		}

		stored, computed, ok, err := pkg.NewROMProcessor().VerifyChecksum(romFile, layout)
		if err != nil {
			return fmt.Errorf("failed to verify checksum: %w", err)
		}

		fmt.Printf("Stored:   0x%04X (complement 0x%04X)\n", stored.Sum, stored.Complement)
		fmt.Printf("Computed: 0x%04X (complement 0x%04X)\n", computed.Sum, computed.Complement)
		if !ok {
			return fmt.Errorf("checksum mismatch in %s", romFile)
		}
		fmt.Println("Checksum OK")
		return nil
	},
}

// checksumFixCmd rewrites the checksum in place.
var checksumFixCmd = &cobra.Command{
	Use:   "fix [rom_file]",
	Short: "Recompute and store the header checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		romFile := args[0]

		if err := setVerbose(cmd); err != nil {
			return err
		}
		layout, err := layoutFromFlags(cmd, romFile)
		if err != nil {
			return err
		}

		sum, err := pkg.NewROMProcessor().FixChecksum(romFile, layout)
		if err != nil {
			return fmt.Errorf("failed to fix checksum: %w", err)
		}

		fmt.Printf("Checksum: 0x%04X (complement 0x%04X)\n", sum.Sum, sum.Complement)
		fmt.Println("Checksum written successfully!")
		return nil
	},
}

// infoCmd prints a summary of the internal header.
var infoCmd = &cobra.Command{
	Use:   "info [rom_file]",
	Short: "Show the internal cartridge header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		romFile := args[0]

		if err := setVerbose(cmd); err != nil {
			return err
		}
		layout, err := layoutFromFlags(cmd, romFile)
		if err != nil {
			return err
		}

		processor := pkg.NewROMProcessor()
		info, err := processor.Info(romFile, layout)
		if err != nil {
			return fmt.Errorf("failed to read header: %w", err)
		}
		_, computed, ok, err := processor.VerifyChecksum(romFile, layout)
		if err != nil {
			return fmt.Errorf("failed to verify checksum: %w", err)
		}

		state := "OK"
		if !ok {
			state = fmt.Sprintf("MISMATCH (computed 0x%04X)", computed.Sum)
		}

		fmt.Printf("File:          %s\n", romFile)
		fmt.Printf("Image size:    0x%X bytes\n", layout.Size)
		fmt.Printf("Copier header: %t\n", layout.CopierHeader)
		fmt.Printf("Map mode:      $%02X (%s, fast=%t)\n", info.MapMode, info.Mapping, info.FastROM)
		fmt.Printf("Region:        %s\n", info.Region)
		fmt.Printf("Checksum:      0x%04X / 0x%04X %s\n", info.Checksum.Sum, info.Checksum.Complement, state)
		return nil
	},
}

// layoutFromFlags picks the layout from --catalog, or detects it from the
// file using --mapping and --copier-header.
func layoutFromFlags(cmd *cobra.Command, romFile string) (snes.Layout, error) {
	catalogFile, err := cmd.Flags().GetString("catalog")
	if err != nil {
		return snes.Layout{}, fmt.Errorf("error getting catalog flag: %w", err)
	}
	if catalogFile != "" {
		catalog, err := pkg.OpenCatalog(catalogFile, romFile)
		if err != nil {
			return snes.Layout{}, fmt.Errorf("failed to load catalog: %w", err)
		}
		return catalog.Layout(), nil
	}

	mapping, err := cmd.Flags().GetString("mapping")
	if err != nil {
		return snes.Layout{}, fmt.Errorf("error getting mapping flag: %w", err)
	}
	layout, err := pkg.DetectLayout(romFile, snes.Mapping(mapping))
	if err != nil {
		return snes.Layout{}, fmt.Errorf("failed to detect layout: %w", err)
	}

	// an explicit --copier-header overrides the size heuristic
	if cmd.Flags().Changed("copier-header") {
		copier, err := cmd.Flags().GetBool("copier-header")
		if err != nil {
			return snes.Layout{}, fmt.Errorf("error getting copier-header flag: %w", err)
		}
		if copier != layout.CopierHeader {
			if copier {
				layout.Size -= snes.CopierHeaderSize
			} else {
				layout.Size += snes.CopierHeaderSize
			}
			layout.CopierHeader = copier
		}
	}
	return layout, layout.Validate()
}

// addLayoutFlags registers the layout selection flags on each given command.
func addLayoutFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().String("catalog", "", "Catalog file providing the layout")
		c.Flags().String("mapping", "", "Mapping when no catalog is given (lorom or linear; empty reads the header)")
		c.Flags().Bool("copier-header", false, "Image carries a 512-byte copier header")
	}
}

// init initializes the checksum and info commands with their flags.
func init() {
	rootCmd.AddCommand(checksumCmd)
	rootCmd.AddCommand(infoCmd)

	checksumCmd.AddCommand(checksumVerifyCmd)
	checksumCmd.AddCommand(checksumFixCmd)

	addLayoutFlags(checksumVerifyCmd, checksumFixCmd, infoCmd)
	addVerboseFlag(checksumVerifyCmd, checksumFixCmd, infoCmd)
}
