// Package vector holds the similarity math used to compare entry embeddings.
package vector

import (
	"errors"
	"math"
)

// ErrVectorLengthMismatch indicates two vectors have different dimensions.
var ErrVectorLengthMismatch = errors.New("vector length mismatch")

// Cosine computes cosine similarity between two vectors of equal length.
//
// The result is NaN when either vector is empty or has zero norm; NaN never
// compares greater than a threshold, so degenerate vectors cannot match.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return math.NaN(), ErrVectorLengthMismatch
	}
	var dot float64
	var na float64
	var nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	// One square root keeps cosine(v, v) exactly 1: sqrt(na*na) == na.
	den := math.Sqrt(na * nb)
	if den == 0 {
		return math.NaN(), nil
	}
	return math.Max(-1, math.Min(1, dot/den)), nil
}

// NormalizeL2 returns a new vector normalized to unit L2 norm.
func NormalizeL2(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(v))
	if n == 0 {
		copy(out, v)
		return out
	}
	inv := float32(1.0 / n)
	for i := range v {
		out[i] = v[i] * inv
	}
	return out
}
