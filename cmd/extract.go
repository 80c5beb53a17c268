// Package cmd provides command-line interface for asset extraction.
// This file contains the extract and build commands that move assets
// between the ROM image and an editable directory.
package cmd

import (
	"fmt"

	"github.com/hansbonini/issdtools/pkg"
	"github.com/spf13/cobra"
)

// extractCmd decodes every catalog asset into a directory of editable files.
var extractCmd = &cobra.Command{
	Use:   "extract [rom_file] [catalog_file] [output_directory]",
	Short: "Extract catalog assets from a ROM image",
	Long: `Extract the assets declared in a catalog from a ROM image.

Output:
  - <name>.bin for raw and compressed assets (compressed data is decoded)
  - <name>.yaml for pointer tables and text tables
  - <name>.png previews for graphics with a preview block (--preview)
  - manifest.yaml listing every asset and every failure

A failing asset does not stop the others; it is reported in the manifest.
Use --strict to turn any failure into a non-zero exit status.

Examples:
  issdtools extract issd.sfc catalog.yaml ./assets/
  issdtools extract --preview --only title_tiles,team_names issd.sfc catalog.yaml ./assets/`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		romFile := args[0]
		catalogFile := args[1]
		outputDir := args[2]

		if err := setVerbose(cmd); err != nil {
			return err
		}

		only, err := cmd.Flags().GetStringSlice("only")
		if err != nil {
			return fmt.Errorf("error getting only flag: %w", err)
		}
		workers, err := cmd.Flags().GetInt("workers")
		if err != nil {
			return fmt.Errorf("error getting workers flag: %w", err)
		}
		preview, err := cmd.Flags().GetBool("preview")
		if err != nil {
			return fmt.Errorf("error getting preview flag: %w", err)
		}
		strict, err := cmd.Flags().GetBool("strict")
		if err != nil {
			return fmt.Errorf("error getting strict flag: %w", err)
		}

		processor := pkg.NewROMProcessor()
		processor.Only = only
		processor.Workers = workers
		processor.Preview = preview

		fmt.Printf("Processing ROM image: %s\n", romFile)
		fmt.Printf("Catalog: %s\n", catalogFile)
		fmt.Printf("Output directory: %s\n", outputDir)

		report, err := processor.Extract(romFile, catalogFile, outputDir)
		if err != nil {
			return fmt.Errorf("failed to extract assets: %w", err)
		}

		fmt.Printf("Extracted %d assets\n", len(report.Manifest.Assets))
		for _, f := range report.Manifest.Failures {
			fmt.Printf("  FAILED %-24s %s\n", f.Name, f.Error)
		}
		if strict && len(report.Failures) > 0 {
			return fmt.Errorf("%d assets failed to extract", len(report.Failures))
		}
		return nil
	},
}

// buildCmd reinserts edited files and writes a new ROM image.
var buildCmd = &cobra.Command{
	Use:   "build [rom_file] [catalog_file] [asset_directory] [output_file]",
	Short: "Rebuild a ROM image from edited assets",
	Long: `Rebuild a ROM image from the files in an asset directory.

Unchanged assets leave the image untouched. An asset that still fits its
slot is written in place and the remaining bytes are padded. A larger asset
is moved into the catalog's free space and every pointer table entry that
referenced it is rewritten. The header checksum is repaired last.

Moved assets are listed in <output_file>.reloc.yaml. Extract and build read
that file next to their input image, so the catalog keeps working on a
rebuilt image and later builds start from where earlier ones left off.

Nothing is written when any asset fails to encode, place or relocate.

Example:
  issdtools build issd.sfc catalog.yaml ./assets/ issd_edited.sfc`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		romFile := args[0]
		catalogFile := args[1]
		assetDir := args[2]
		outputFile := args[3]

		if err := setVerbose(cmd); err != nil {
			return err
		}

		budget, err := cmd.Flags().GetInt("budget")
		if err != nil {
			return fmt.Errorf("error getting budget flag: %w", err)
		}

		processor := pkg.NewROMProcessor()
		processor.Budget = budget

		fmt.Printf("Base ROM image: %s\n", romFile)
		fmt.Printf("Asset directory: %s\n", assetDir)
		fmt.Printf("Output ROM image: %s\n", outputFile)

		report, err := processor.Build(romFile, catalogFile, assetDir, outputFile)
		if err != nil {
			return fmt.Errorf("failed to build ROM image: %w", err)
		}

		if len(report.Relocations) > 0 {
			fmt.Printf("%-24s %-9s %-9s %8s %8s %s\n", "ASSET", "OLD", "NEW", "OLD LEN", "NEW LEN", "ENTRIES")
			for _, rec := range report.Relocations {
				fmt.Printf("%-24s %-9s %-9s %8d %8d %d\n",
					rec.Asset, rec.Old, rec.New, rec.OldLength, rec.NewLength, len(rec.Entries))
			}
		}
		if report.Overlay != "" {
			fmt.Printf("Relocation overlay: %s\n", report.Overlay)
		}
		fmt.Printf("Checksum: 0x%04X (complement 0x%04X)\n", report.Checksum.Sum, report.Checksum.Complement)
		fmt.Println("ROM image rebuilt successfully!")
		return nil
	},
}

// init registers the extract and build commands.
func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(buildCmd)

	extractCmd.Flags().StringSlice("only", nil, "Extract only the named assets (comma separated)")
	extractCmd.Flags().IntP("workers", "j", 0, "Number of extraction workers (0 = one per CPU)")
	extractCmd.Flags().Bool("preview", false, "Write PNG previews for graphics assets")
	extractCmd.Flags().Bool("strict", false, "Exit with an error when any asset fails")

	buildCmd.Flags().Int("budget", 0, "Match search window for compression (0 = full window)")

	addVerboseFlag(extractCmd, buildCmd)
}
