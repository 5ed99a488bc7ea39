package cache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Codec converts values to and from the shared-tier byte representation.
type Codec[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// JSONCodec stores values as JSON. Default for structured payloads.
type JSONCodec[V any] struct{}

// Marshal encodes v as JSON.
func (JSONCodec[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal cache value: %w", err)
	}
	return data, nil
}

// Unmarshal decodes JSON into V.
func (JSONCodec[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("unmarshal cache value: %w", err)
	}
	return v, nil
}

// VectorCodec stores []float32 as packed little-endian bytes, 4 bytes per
// component. Embedding vectors are large and numeric; the binary form is a
// quarter the size of JSON.
type VectorCodec struct{}

// Marshal packs the vector.
func (VectorCodec) Marshal(v []float32) ([]byte, error) {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// Unmarshal unpacks the vector.
func (VectorCodec) Unmarshal(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
