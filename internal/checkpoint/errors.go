package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
	ErrTruncated        = errors.New("file is truncated")
	ErrUnsupportedDType = errors.New("unsupported dtype")
	ErrDuplicateTensor  = errors.New("duplicate tensor name")
	ErrShapeMismatch    = errors.New("shape does not match data length")
)

// ValidationError describes a malformed tensor entry.
type ValidationError struct {
	Type    string // e.g. "offset_overlap", "out_of_bounds", "invalid_name"
	Tensor  string
	Tensor2 string // second tensor for overlap errors
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}
