// Package cmd provides command-line interface for catalog inspection.
// This file contains the catalog and addr commands.
package cmd

import (
	"fmt"

	"github.com/hansbonini/issdtools/pkg"
	"github.com/spf13/cobra"
)

// catalogCmd represents the parent command for catalog operations.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate asset catalogs",
	Long: `Inspect and validate asset catalogs.

The image size comes from --rom, from --size, or from the catalog's own
layout.size entry.

Commands:
  list      Print every declared asset with its location and span
  validate  Check the catalog for overlaps and invalid declarations

Examples:
  issdtools catalog list --rom issd.sfc catalog.yaml
  issdtools catalog validate --size 0x100000 catalog.yaml`,
}

// catalogListCmd prints the declared assets.
var catalogListCmd = &cobra.Command{
	Use:   "list [catalog_file]",
	Short: "List declared assets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setVerbose(cmd); err != nil {
			return err
		}
		catalog, err := catalogFromFlags(cmd, args[0])
		if err != nil {
			return err
		}

		layout := catalog.Layout()
		fmt.Printf("Mapping: %s, bank size 0x%X, image size 0x%X\n", layout.Mapping, layout.BankSize, layout.Size)
		fmt.Printf("%-24s %-14s %-9s %-8s %10s\n", "NAME", "FORMAT", "ADDRESS", "LINEAR", "SPAN")
		for _, d := range catalog.All() {
			span := "-"
			if n := d.Span(); n > 0 {
				span = fmt.Sprintf("0x%X", n)
			}
			fmt.Printf("%-24s %-14s %-9s 0x%06X %10s\n", d.Name, d.Format, d.Address, d.Address.Linear, span)
		}
		for _, r := range catalog.FreeSpace() {
			fmt.Printf("free 0x%06X-0x%06X (%d bytes)\n", r.Start, r.End(), r.Size)
		}
		return nil
	},
}

// catalogValidateCmd loads the catalog and reports whether it is consistent.
var catalogValidateCmd = &cobra.Command{
	Use:   "validate [catalog_file]",
	Short: "Validate a catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setVerbose(cmd); err != nil {
			return err
		}
		catalog, err := catalogFromFlags(cmd, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Catalog OK: %d assets, %d free regions\n", len(catalog.All()), len(catalog.FreeSpace()))
		return nil
	},
}

// addrCmd translates addresses in both directions.
var addrCmd = &cobra.Command{
	Use:   "addr [catalog_file] [address...]",
	Short: "Translate bank:offset addresses and linear offsets",
	Long: `Translate addresses with the layout of a catalog.

Bus addresses ($8A:8000 or 8A:8000) are converted to linear file offsets
and linear offsets (0x050000, $50000 or decimal) to bus addresses.

Example:
  issdtools addr --rom issd.sfc catalog.yaml '$8A:8000' 0x050000`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setVerbose(cmd); err != nil {
			return err
		}
		catalog, err := catalogFromFlags(cmd, args[0])
		if err != nil {
			return err
		}

		t := catalog.Translator()
		for _, arg := range args[1:] {
			a, err := t.Parse(arg)
			if err != nil {
				return fmt.Errorf("failed to translate %s: %w", arg, err)
			}
			fmt.Printf("%-12s %s = 0x%06X\n", arg, a, a.Linear)
		}
		return nil
	},
}

// catalogFromFlags loads a catalog sized by --rom or --size.
func catalogFromFlags(cmd *cobra.Command, catalogFile string) (*pkg.Catalog, error) {
	romFile, err := cmd.Flags().GetString("rom")
	if err != nil {
		return nil, fmt.Errorf("error getting rom flag: %w", err)
	}

	var catalog *pkg.Catalog
	if romFile != "" {
		catalog, err = pkg.OpenCatalog(catalogFile, romFile)
	} else {
		var size int
		if size, err = numberFlag(cmd, "size"); err != nil {
			return nil, err
		}
		catalog, err = pkg.LoadCatalog(catalogFile, size)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return catalog, nil
}

// init registers the catalog and addr commands.
func init() {
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(addrCmd)

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogValidateCmd)

	for _, c := range []*cobra.Command{catalogListCmd, catalogValidateCmd, addrCmd} {
		c.Flags().String("rom", "", "ROM file supplying the image size")
		c.Flags().String("size", "0", "ROM file size when no --rom is given")
	}
	addVerboseFlag(catalogListCmd, catalogValidateCmd, addrCmd)
}
