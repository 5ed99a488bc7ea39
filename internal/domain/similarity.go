package domain

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors.
// A length mismatch or a zero-norm vector yields 0 — a degenerate-case
// policy, not an error: callers treat 0 as "no similarity".
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
