package store

import (
	"encoding/binary"
	"math"
)

// encodeVector serialises v as consecutive little-endian float32 values.
// Returns nil for an empty vector so the embedding column stays NULL.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. Returns nil for empty input;
// a trailing partial value (corrupt blob) is dropped rather than erroring.
func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
