package common

import (
	"fmt"
	"log"
)

// Global variable to control debug output
var VerboseMode bool = false

// SetVerboseMode enables or disables verbose/debug output
func SetVerboseMode(verbose bool) {
	VerboseMode = verbose
}

// Error messages
const (
	ErrFailedToReadROM           = "failed to read ROM image"
	ErrFailedToWriteROM          = "failed to write ROM image"
	ErrFailedToReadCatalog       = "failed to read catalog file"
	ErrFailedToParseCatalog      = "failed to parse catalog YAML"
	ErrFailedToLoadCharmap       = "failed to load character map"
	ErrFailedToCreateOutputDir   = "failed to create output directory"
	ErrFailedToCreateOutputFile  = "failed to create output file"
	ErrFailedToWriteAsset        = "failed to write asset file"
	ErrFailedToReadAsset         = "failed to read asset file"
	ErrFailedToParseAsset        = "failed to parse asset file"
	ErrFailedToWriteManifest     = "failed to write manifest"
	ErrFailedToRenderPreview     = "failed to render tile preview"
	ErrFailedToPlaceAsset        = "failed to place asset"
	ErrFailedToApplyRelocations  = "failed to apply pointer relocations"
	ErrFailedToFinalizeChecksum  = "failed to finalize checksum"
	ErrFailedToReadOverlay       = "failed to read relocation overlay"
	ErrFailedToWriteOverlay      = "failed to write relocation overlay"
	ErrImageSizeMismatch         = "ROM image size does not match layout"
	ErrUnmappableCharacter       = "character has no entry in the character map"
	ErrPointerTableCountMismatch = "pointer table entry count does not match catalog"
)

// Info messages
const (
	InfoROMLoaded           = "Loaded ROM image: %s (%d bytes, %s mapping)"
	InfoCatalogLoaded       = "Loaded catalog: %s (%d assets, %d free regions)"
	InfoAssetsExtracted     = "Extracted %d of %d assets to: %s"
	InfoManifestWritten     = "Manifest written to: %s"
	InfoAssetsLoaded        = "Loaded %d edited assets from: %s"
	InfoAssetUnchanged      = "Asset %s unchanged, leaving ROM bytes untouched"
	InfoAssetPlacedInPlace  = "Asset %s written in place at %s (%d of %d bytes)"
	InfoAssetRelocated      = "Asset %s relocated %s -> %s (%d bytes, slot was %d)"
	InfoRelocationsApplied  = "Applied %d relocations, %d pointer entries rewritten"
	InfoChecksumFinalized   = "Checksum finalized: checksum=0x%04X complement=0x%04X"
	InfoROMWritten          = "ROM image written: %s"
	InfoOverlayWritten      = "Relocation overlay written: %s (%d assets)"
	InfoOverlayApplied      = "Applied relocation overlay %s (%d assets)"
	InfoCompressionFinished = "Compressed %d -> %d bytes"
)

// Debug messages
const (
	DebugExtractingAsset   = "Extracting %s (%s) from %s"
	DebugAssetDecoded      = "Decoded %s: %d source bytes -> %d bytes"
	DebugEncodingAsset     = "Encoding %s (%s): %d decoded bytes -> %d bytes, slot %d"
	DebugFreeRegionTaken   = "Free space: took %d bytes at 0x%06X (region 0x%06X+0x%X)"
	DebugFreeRegionAdded   = "Free space: released 0x%06X+0x%X"
	DebugPointerRewrite    = "Pointer %s[%d] at 0x%06X: %s -> %s"
	DebugEndMarker         = "End marker at %d, decoded %d bytes"
	DebugPreviewWritten    = "Preview for %s: %dx%d pixels -> %s"
	DebugWorkerPool        = "Extracting %d assets with %d workers"
	DebugCatalogDescriptor = "Descriptor %s: format=%s address=%s slot=%d"
	DebugMappingDetected   = "Mapping taken from internal header: %s"
)

// Warning messages
const (
	WarnExtractionFailed   = "Extraction failed for %s: %v"
	WarnRelocationNoTables = "Asset %s relocated but no pointer table is declared to reference it"
	WarnChecksumMismatch   = "Stored checksum 0x%04X/0x%04X does not match computed 0x%04X/0x%04X"
	WarnAssetFileMissing   = "No edited file for %s, keeping ROM contents"
	WarnUnknownAssetFile   = "Ignoring file %s: no catalog entry"
)

// LogInfo logs an informational message
func LogInfo(message string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[INFO] "+message, args...)
	} else {
		log.Printf("[INFO] %s", message)
	}
}

// LogWarn logs a warning message
func LogWarn(message string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[WARN] "+message, args...)
	} else {
		log.Printf("[WARN] %s", message)
	}
}

// LogError logs an error message
func LogError(message string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[ERROR] "+message, args...)
	} else {
		log.Printf("[ERROR] %s", message)
	}
}

// LogDebug logs a debug message (only if VerboseMode is enabled)
func LogDebug(message string, args ...interface{}) {
	if !VerboseMode {
		return
	}
	if len(args) > 0 {
		log.Printf("[DEBUG] "+message, args...)
	} else {
		log.Printf("[DEBUG] %s", message)
	}
}

// FormatError creates a formatted error with additional context
func FormatError(baseMessage string, details interface{}) error {
	if err, ok := details.(error); ok {
		return fmt.Errorf("%s: %w", baseMessage, err)
	}
	return fmt.Errorf("%s: %v", baseMessage, details)
}
