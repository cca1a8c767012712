package runningstat

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNormalizerConvergesToZeroMeanUnitVariance(t *testing.T) {
	n := New(1)

	samples := []float64{1, 2, 3, 4, 5, 4, 3, 2, 1, 3}
	for _, s := range samples {
		n.Update(mat.NewVecDense(1, []float64{s}))
	}

	normalized := make([]float64, len(samples))
	var sum float64
	for i, s := range samples {
		v := n.Normalize(mat.NewVecDense(1, []float64{s}))
		normalized[i] = v.AtVec(0)
		sum += normalized[i]
	}

	mean := sum / float64(len(samples))
	if math.Abs(mean) > 1e-9 {
		t.Fatalf("normalized mean = %v, want ~0", mean)
	}

	var ss float64
	for _, v := range normalized {
		ss += (v - mean) * (v - mean)
	}
	variance := ss / float64(len(samples)-1)
	if math.Abs(variance-1) > 1e-9 {
		t.Fatalf("normalized variance = %v, want ~1", variance)
	}
}

func TestNormalizerFreezeStopsUpdates(t *testing.T) {
	n := New(1)
	n.Update(mat.NewVecDense(1, []float64{1}))
	n.Update(mat.NewVecDense(1, []float64{2}))
	n.Freeze()

	before := n.Count()
	n.Update(mat.NewVecDense(1, []float64{100}))

	if n.Count() != before {
		t.Fatalf("Update after Freeze changed count: got %v, want %v",
			n.Count(), before)
	}
	if !n.Frozen() {
		t.Fatalf("Frozen() = false, want true")
	}
}
