package resource

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4"
)

// Payload is the initial data of a resource. Slices is the number of array slices
// (texture layers) the data covers. Compressed payloads hold an LZ4 frame.
type Payload struct {
	Data       []byte
	Slices     int
	Compressed bool
}

// CompressPayload LZ4-compresses data into a Payload.
//
// Parameters:
//   - data: the uncompressed bytes
//   - slices: the number of array slices data covers
//
// Returns:
//   - Payload: the compressed payload
//   - error: an error if compression fails
func CompressPayload(data []byte, slices int) (Payload, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return Payload{}, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return Payload{}, fmt.Errorf("failed to compress payload: %w", err)
	}
	return Payload{Data: buf.Bytes(), Slices: slices, Compressed: true}, nil
}

// Bytes returns the uncompressed payload data.
//
// Returns:
//   - []byte: the payload bytes, nil for a nil payload
//   - error: an error if the LZ4 frame is corrupt
func (p *Payload) Bytes() ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	if !p.Compressed {
		return p.Data, nil
	}
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(p.Data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress payload: %w", err)
	}
	return out, nil
}

// SliceCount returns the number of slices, treating 0 as 1.
func (p *Payload) SliceCount() int {
	if p == nil || p.Slices <= 0 {
		return 1
	}
	return p.Slices
}

// Equal compares payloads by value; two nil payloads are equal.
func (p *Payload) Equal(o *Payload) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.Slices == o.Slices && p.Compressed == o.Compressed && bytes.Equal(p.Data, o.Data)
}
