package common

import (
	"errors"
	"fmt"
)

// Error kinds shared by every stage of the pipeline. Callers match them with
// errors.Is; the wrapping message carries the asset name and addresses.
var (
	ErrOutOfRange        = errors.New("address out of range")
	ErrInvalidSpan       = errors.New("span crosses a bank boundary")
	ErrMalformedStream   = errors.New("malformed compressed stream")
	ErrUnknownAsset      = errors.New("unknown asset")
	ErrNoFreeSpace       = errors.New("no free space")
	ErrDanglingReference = errors.New("dangling pointer reference")
)

// ExtractionError reports a single asset that could not be extracted.
type ExtractionError struct {
	Name  string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Name, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NoFreeSpaceError is returned when a grown asset cannot be placed anywhere.
type NoFreeSpaceError struct {
	Name     string
	Required int
	Largest  int
}

func (e *NoFreeSpaceError) Error() string {
	return fmt.Sprintf("no free space for %s: need %d bytes, largest free region is %d bytes",
		e.Name, e.Required, e.Largest)
}

func (e *NoFreeSpaceError) Is(target error) bool {
	return target == ErrNoFreeSpace
}
