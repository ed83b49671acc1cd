package checkpoint

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strings"
)

const (
	metadataKey = "__metadata__"
	checksumKey = "sha256"
)

// Tensor is one named parameter. A nil or empty Shape is a scalar.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// File is a decoded checkpoint. Tensors are sorted by name.
type File struct {
	Tensors  []Tensor
	Metadata map[string]string
}

// Get returns the tensor with the given name.
func (f *File) Get(name string) (Tensor, bool) {
	i, ok := slices.BinarySearchFunc(f.Tensors, name, func(t Tensor, name string) int {
		return strings.Compare(t.Name, name)
	})
	if !ok {
		return Tensor{}, false
	}
	return f.Tensors[i], true
}

type header struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Save writes tensors and metadata to path.
func Save(path string, tensors []Tensor, metadata map[string]string) (err error) {
	//nolint:gosec // G304: the path is chosen by the user
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()

	w := bufio.NewWriter(file)
	if err := Write(w, tensors, metadata); err != nil {
		return err
	}
	return w.Flush()
}

// Write encodes tensors in name order as F64. metadata is stored alongside
// the data checksum.
func Write(w io.Writer, tensors []Tensor, metadata map[string]string) error {
	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b Tensor) int { return strings.Compare(a.Name, b.Name) })

	var data []byte
	hdr := make(map[string]any, len(sorted)+1)
	for i, t := range sorted {
		if err := validateName(t.Name); err != nil {
			return err
		}
		if i > 0 && sorted[i-1].Name == t.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateTensor, t.Name)
		}
		if n := numElements(t.Shape); n != len(t.Data) {
			return fmt.Errorf("%w: tensor %q has shape %v and %d values", ErrShapeMismatch, t.Name, t.Shape, len(t.Data))
		}

		start := int64(len(data))
		for _, v := range t.Data {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
		shape := make([]int64, len(t.Shape))
		for d, dim := range t.Shape {
			shape[d] = int64(dim)
		}
		hdr[t.Name] = header{
			DType:       "F64",
			Shape:       shape,
			DataOffsets: [2]int64{start, int64(len(data))},
		}
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	sum := sha256.Sum256(data)
	meta[checksumKey] = hex.EncodeToString(sum[:])
	hdr[metadataKey] = meta

	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(hdrJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(hdrJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Load reads the checkpoint at path.
func Load(path string) (*File, error) {
	//nolint:gosec // G304: the path is chosen by the user
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	f, err := Read(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Read decodes a checkpoint from r. F32 tensors are widened to float64.
func Read(r io.Reader) (*File, error) {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, truncated("header size", err)
	}
	if size > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, size)
	}
	hdrJSON := make([]byte, size)
	if _, err := io.ReadFull(r, hdrJSON); err != nil {
		return nil, truncated("header", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(hdrJSON, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	f := &File{Metadata: map[string]string{}}
	if msg, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(msg, &f.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		delete(raw, metadataKey)
	}

	if want, ok := f.Metadata[checksumKey]; ok {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != want {
			return nil, ErrChecksumMismatch
		}
	}

	headers := make(map[string]header, len(raw))
	entries := make([]entry, 0, len(raw))
	for name, msg := range raw {
		if err := validateName(name); err != nil {
			return nil, err
		}
		var h header
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, fmt.Errorf("tensor %q: failed to parse header: %w", name, err)
		}
		headers[name] = h
		entries = append(entries, entry{name: name, start: h.DataOffsets[0], end: h.DataOffsets[1]})
	}
	if err := validateOffsets(entries, int64(len(data))); err != nil {
		return nil, err
	}

	for name, h := range headers {
		t, err := decode(name, h, data)
		if err != nil {
			return nil, err
		}
		f.Tensors = append(f.Tensors, t)
	}
	slices.SortFunc(f.Tensors, func(a, b Tensor) int { return strings.Compare(a.Name, b.Name) })
	return f, nil
}

func decode(name string, h header, data []byte) (Tensor, error) {
	shape := make([]int, len(h.Shape))
	for i, d := range h.Shape {
		if d < 0 {
			return Tensor{}, &ValidationError{Type: "invalid_shape", Tensor: name, Details: fmt.Sprintf("dimension %d is negative", d)}
		}
		shape[i] = int(d)
	}
	n := numElements(shape)
	buf := data[h.DataOffsets[0]:h.DataOffsets[1]]

	values := make([]float64, n)
	switch h.DType {
	case "F64":
		if len(buf) != 8*n {
			return Tensor{}, fmt.Errorf("%w: tensor %q has shape %v and %d bytes", ErrShapeMismatch, name, shape, len(buf))
		}
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
	case "F32":
		if len(buf) != 4*n {
			return Tensor{}, fmt.Errorf("%w: tensor %q has shape %v and %d bytes", ErrShapeMismatch, name, shape, len(buf))
		}
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		}
	default:
		return Tensor{}, fmt.Errorf("%w: tensor %q is %s", ErrUnsupportedDType, name, h.DType)
	}
	return Tensor{Name: name, Shape: shape, Data: values}, nil
}

func numElements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, what)
	}
	return fmt.Errorf("failed to read %s: %w", what, err)
}
