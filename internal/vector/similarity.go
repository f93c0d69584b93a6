package vector

import "math"

// InnerProduct returns the dot product of two vectors. Vectors of different or zero length yield 0.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b, in [-1, 1].
// A zero-magnitude vector, a length mismatch, or a non-finite result yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	return Cosine(InnerProduct(a, b), L2Norm(a), L2Norm(b))
}

// Cosine turns a precomputed dot product and the two norms into a cosine score.
func Cosine(dot, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	s := dot / (normA * normB)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, s))
}
