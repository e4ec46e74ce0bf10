package knowledge

import (
	"math"
	"testing"
)

func Test_Cosine_IdenticalVector(t *testing.T) {
	t.Parallel()

	v := []float32{0.1, -2.5, 3.7, 0.004}
	got := Cosine(v, v)
	if math.Abs(got-1.0) > 1e-12 {
		t.Errorf("Cosine(v, v): want 1.0, got %v", got)
	}
}

func Test_Cosine_ZeroVector(t *testing.T) {
	t.Parallel()

	zero := []float32{0, 0, 0}
	v := []float32{1, 2, 3}

	if got := Cosine(zero, v); got != 0 {
		t.Errorf("Cosine(zero, v): want 0, got %v", got)
	}
	if got := Cosine(v, zero); got != 0 {
		t.Errorf("Cosine(v, zero): want 0, got %v", got)
	}
	if got := Cosine(zero, zero); got != 0 {
		t.Errorf("Cosine(zero, zero): want 0, got %v", got)
	}
}

func Test_Cosine_LengthMismatchReturnsZero(t *testing.T) {
	t.Parallel()

	a := []float32{1, 2, 3}
	b := []float32{1, 2}
	if got := Cosine(a, b); got != 0 {
		t.Errorf("mismatched lengths: want 0, got %v", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("empty vectors: want 0, got %v", got)
	}
}

func Test_Cosine_OrthogonalAndOpposite(t *testing.T) {
	t.Parallel()

	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := Cosine(a, b); math.Abs(got) > 1e-12 {
		t.Errorf("orthogonal: want 0, got %v", got)
	}

	c := []float32{-1, 0}
	if got := Cosine(a, c); math.Abs(got+1.0) > 1e-12 {
		t.Errorf("opposite: want -1, got %v", got)
	}
}

func Test_Cosine_KnownAngle(t *testing.T) {
	t.Parallel()

	a := []float32{1, 0}
	b := []float32{1, 1}
	want := 1 / math.Sqrt2
	if got := Cosine(a, b); math.Abs(got-want) > 1e-6 {
		t.Errorf("45 degrees: want %v, got %v", want, got)
	}
}
