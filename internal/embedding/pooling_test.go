package embedding

import (
	"math"
	"reflect"
	"testing"
)

func TestPoolMax(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, -2, 3},
		{0, 5, -1},
		{2, 0, 0},
	}

	got, err := Pool(vectors, PoolMax)
	if err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	want := []float32{2, 5, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Pool(max) = %v, want %v", got, want)
	}
}

func TestPoolMean(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, -2, 3},
		{3, 2, 0},
	}

	got, err := Pool(vectors, PoolMean)
	if err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	want := []float32{2, 0, 1.5}
	for d := range want {
		if math.Abs(float64(got[d]-want[d])) > 1e-6 {
			t.Errorf("Pool(mean)[%d] = %v, want %v", d, got[d], want[d])
		}
	}
}

func TestPoolOrderInvariant(t *testing.T) {
	t.Parallel()

	a := [][]float32{{1, 4}, {3, 2}, {-1, 0}}
	b := [][]float32{{-1, 0}, {1, 4}, {3, 2}}

	for _, strategy := range []Strategy{PoolMax, PoolMean} {
		va, err := Pool(a, strategy)
		if err != nil {
			t.Fatalf("Pool(%s) error = %v", strategy, err)
		}
		vb, err := Pool(b, strategy)
		if err != nil {
			t.Fatalf("Pool(%s) error = %v", strategy, err)
		}
		if !reflect.DeepEqual(va, vb) {
			t.Errorf("Pool(%s) is order-sensitive: %v vs %v", strategy, va, vb)
		}
	}
}

func TestPoolErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		vectors  [][]float32
		strategy Strategy
	}{
		{name: "empty sequence", vectors: nil, strategy: PoolMax},
		{name: "ragged widths", vectors: [][]float32{{1, 2}, {1}}, strategy: PoolMean},
		{name: "unknown strategy", vectors: [][]float32{{1}}, strategy: "median"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Pool(tt.vectors, tt.strategy); err == nil {
				t.Errorf("Pool() expected error, got nil")
			}
		})
	}
}
