package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.Grow(len(v) * 4)
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, fmt.Errorf("cannot encode vector: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob size is not multiple of 4 bytes: %d", len(b))
	}
	out := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("cannot decode vector: %w", err)
	}
	return out, nil
}
