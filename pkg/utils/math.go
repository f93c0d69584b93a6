package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm and reports whether it did.
// A zero vector is left unchanged.
func NormalizeL2(x []float32) bool {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return false
	}
	norm := 1 / math.Sqrt(sum)
	for i := range x {
		x[i] = float32(float64(x[i]) * norm)
	}
	return true
}

// NormalizeRows normalizes every row in place and returns the number of zero rows it skipped.
func NormalizeRows(rows [][]float32) int {
	zero := 0
	for _, r := range rows {
		if !NormalizeL2(r) {
			zero++
		}
	}
	return zero
}
