package checkpoint

import (
	"fmt"
	"slices"
	"strings"
)

// Limits applied when reading.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// entry is one tensor's location in the data section.
type entry struct {
	name       string
	start, end int64
}

// validateName rejects names that could escape a directory when used as a
// file name, and overlong names.
func validateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.Contains(name, ".."):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	case strings.ContainsAny(name, "/\\"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains path separator"}
	case strings.Contains(name, "\x00"):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains null byte"}
	case name == metadataKey:
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "reserved for metadata"}
	}
	return nil
}

// validateOffsets checks that every entry lies inside the data section and
// that no two entries overlap.
func validateOffsets(entries []entry, dataSize int64) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount),
		}
	}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b entry) int {
		switch {
		case a.start < b.start:
			return -1
		case a.start > b.start:
			return 1
		}
		return 0
	})

	for i, e := range sorted {
		if e.start < 0 || e.end < e.start {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  e.name,
				Details: fmt.Sprintf("offsets [%d, %d]", e.start, e.end),
			}
		}
		if e.end > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  e.name,
				Details: fmt.Sprintf("end %d > data_size %d", e.end, dataSize),
			}
		}
		if i < len(sorted)-1 && e.end > sorted[i+1].start {
			next := sorted[i+1]
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  e.name,
				Tensor2: next.name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", e.start, e.end, next.start, next.end),
			}
		}
	}
	return nil
}
