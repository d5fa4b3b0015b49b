package match

import (
	"fmt"
	"math"
)

// unitNormTolerance is how far ‖v‖₂ may deviate from 1 before an embedding
// is rejected. Dot-product similarity is only cosine similarity for unit
// vectors.
const unitNormTolerance = 1e-3

// Dot returns the dot product of two vectors. For L2-normalized inputs this
// is cosine similarity in [-1, 1].
func Dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize performs L2 normalization in-place.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// ValidateEmbedding checks that v is non-empty, has the expected dimension,
// and is unit-length within tolerance. Stored embeddings must always pass
// this so the matcher's dot product stays a valid cosine similarity.
func ValidateEmbedding(v []float32, dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	if len(v) != dim {
		return fmt.Errorf("embedding dimension %d, want %d", len(v), dim)
	}
	if d := math.Abs(float64(Norm(v)) - 1); d > unitNormTolerance {
		return fmt.Errorf("embedding is not L2-normalized (‖v‖ off by %g)", d)
	}
	return nil
}
