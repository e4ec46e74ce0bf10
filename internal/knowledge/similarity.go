package knowledge

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1].
//
// Two degenerate cases return 0 instead of erroring so that ranking stays
// resilient to schema drift: vectors of different lengths, and vectors with
// zero magnitude. Pure function, no side effects.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / math.Sqrt(normA*normB)
}
