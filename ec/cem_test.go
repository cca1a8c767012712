package ec

import (
	"math"
	"math/rand"
	"testing"
)

func TestCEMAskRejectsWrongMeanLength(t *testing.T) {
	cem, err := NewCEM(4, 2, 3, 1e-3)
	if err != nil {
		t.Fatalf("NewCEM() error: %v", err)
	}
	state := State{Kind: KindCEM, Mean: []float64{0, 0}, Variance: []float64{1, 1}}

	_, _, err = cem.Ask(state, rand.New(rand.NewSource(0)))
	if !IsConfigurationError(err) {
		t.Fatalf("Ask() with wrong mean length: want Configuration, got %v", err)
	}
}

func TestCEMAskCentersOnMean(t *testing.T) {
	cem, err := NewCEM(512, 64, 2, 1e-6)
	if err != nil {
		t.Fatalf("NewCEM() error: %v", err)
	}
	mean := []float64{1, -2}
	state := State{Kind: KindCEM, Mean: mean, Variance: []float64{0.01, 0.01}}

	candidates, _, err := cem.Ask(state, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	rows, dim := rowsOf(candidates)
	if dim != 2 {
		t.Fatalf("Ask() dim = %d, want 2", dim)
	}
	var sum [2]float64
	for _, r := range rows {
		sum[0] += r[0]
		sum[1] += r[1]
	}
	n := float64(len(rows))
	gotMean := []float64{sum[0] / n, sum[1] / n}
	for d, want := range mean {
		if math.Abs(gotMean[d]-want) > 0.05 {
			t.Fatalf("sampled mean[%d] = %v, want close to %v", d, gotMean[d], want)
		}
	}
}

func TestCEMTellFitsMeanAndVarianceToElites(t *testing.T) {
	cem, err := NewCEM(4, 2, 2, 0)
	if err != nil {
		t.Fatalf("NewCEM() error: %v", err)
	}

	// Four fixed candidates; elites will be rows 1 and 3 (fitness 4, 3).
	state := State{Kind: KindCEM, Mean: []float64{0, 0}, Variance: []float64{1, 1}}
	state.NoiseBuffer = popTensor(4, 2, func(p, d int) float64 { return float64(p) })
	fitnesses := []float64{1, 4, 2, 3}

	info, next, err := cem.Tell(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Tell() error: %v", err)
	}
	if info.BestFitness != 4 {
		t.Fatalf("BestFitness = %v, want 4", info.BestFitness)
	}

	wantMean := (1.0 + 3.0) / 2
	for d, m := range next.Mean {
		if math.Abs(m-wantMean) > 1e-9 {
			t.Fatalf("mean[%d] = %v, want %v", d, m, wantMean)
		}
	}
	for _, v := range next.Variance {
		if v < 0 {
			t.Fatalf("variance must be non-negative, got %v", v)
		}
	}
}

func TestCEMTellRejectsWrongFitnessLength(t *testing.T) {
	cem, _ := NewCEM(4, 2, 2, 0)
	state := State{Kind: KindCEM, Mean: []float64{0, 0}, Variance: []float64{1, 1}}
	state.NoiseBuffer = popTensor(4, 2, func(p, d int) float64 { return 0 })

	_, _, err := cem.Tell(state, []float64{1, 2}, rand.New(rand.NewSource(0)))
	if !IsShapeMismatch(err) {
		t.Fatalf("Tell() with wrong fitness length: want ShapeMismatch, got %v", err)
	}
}

func TestCEMTellWithoutNoiseBufferIsConfigurationError(t *testing.T) {
	cem, _ := NewCEM(4, 2, 2, 0)
	state := State{Kind: KindCEM, Mean: []float64{0, 0}, Variance: []float64{1, 1}}

	_, _, err := cem.Tell(state, []float64{1, 2, 3, 4}, rand.New(rand.NewSource(0)))
	if !IsConfigurationError(err) {
		t.Fatalf("Tell() without NoiseBuffer: want Configuration, got %v", err)
	}
}
