package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	if !NormalizeL2(x) {
		t.Fatal("expected non-zero vector to be normalized")
	}
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", x)
	}

	z := []float32{0, 0, 0}
	if NormalizeL2(z) {
		t.Error("zero vector should be reported as skipped")
	}
	for _, v := range z {
		if v != 0 {
			t.Errorf("zero vector changed: %v", z)
		}
	}
}

func TestNormalizeRows(t *testing.T) {
	rows := [][]float32{{2, 0}, {0, 0}, {1, 1}}
	if got := NormalizeRows(rows); got != 1 {
		t.Errorf("zero rows = %d, want 1", got)
	}
	if rows[0][0] != 1 {
		t.Errorf("row 0 = %v", rows[0])
	}
	want := float32(1 / math.Sqrt2)
	if math.Abs(float64(rows[2][0]-want)) > 1e-6 {
		t.Errorf("row 2 = %v", rows[2])
	}
}
