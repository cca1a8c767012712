package ec

import (
	"math"
	"math/rand"
	"testing"
)

func TestNewOpenESRejectsOddPopWithMirroring(t *testing.T) {
	_, err := NewOpenES(3, 2, true)
	if !IsConfigurationError(err) {
		t.Fatalf("NewOpenES(odd, mirrored=true): want Configuration, got %v", err)
	}
}

func TestOpenESAskMirroredPairsAreAntithetic(t *testing.T) {
	o, err := NewOpenES(4, 3, true)
	if err != nil {
		t.Fatalf("NewOpenES() error: %v", err)
	}
	mean := []float64{0, 0, 0}
	state := State{Kind: KindOpenES, Mean: mean, NoiseStd: Schedule{Current: 0.5, Decay: 1, Min: 0}}

	candidates, next, err := o.Ask(state, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}

	rows, dim := rowsOf(candidates)
	noiseRows, _ := rowsOf(next.NoiseBuffer)
	for p := 0; p < 2; p++ {
		mirror := p + 2
		for d := 0; d < dim; d++ {
			if math.Abs(noiseRows[p][d]+noiseRows[mirror][d]) > 1e-9 {
				t.Fatalf("noise pair (%d,%d)[%d] not antithetic: %v vs %v",
					p, mirror, d, noiseRows[p][d], noiseRows[mirror][d])
			}
			wantMirror := mean[d] - (rows[p][d] - mean[d])
			if math.Abs(rows[mirror][d]-wantMirror) > 1e-9 {
				t.Fatalf("candidate pair (%d,%d)[%d] not antithetic", p, mirror, d)
			}
		}
	}
}

func TestOpenESTellMovesMeanTowardBetterCandidates(t *testing.T) {
	o, err := NewOpenES(4, 1, false)
	if err != nil {
		t.Fatalf("NewOpenES() error: %v", err)
	}
	state := State{
		Kind:     KindOpenES,
		Mean:     []float64{0},
		LR:       Schedule{Current: 1, Decay: 1, Min: 0},
		NoiseStd: Schedule{Current: 1, Decay: 1, Min: 0},
	}
	// Candidates with positive noise get higher fitness, so the mean
	// update should move in the positive direction.
	state.NoiseBuffer = popTensor(4, 1, func(p, d int) float64 { return float64(p) - 1.5 })
	fitnesses := []float64{0, 1, 2, 3} // monotonically increasing with noise

	info, next, err := o.Tell(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Tell() error: %v", err)
	}
	if info.BestFitness != 3 {
		t.Fatalf("BestFitness = %v, want 3", info.BestFitness)
	}
	if next.Mean[0] <= state.Mean[0] {
		t.Fatalf("mean did not move toward higher-fitness noise: got %v", next.Mean[0])
	}
}

func TestOpenESTellExternalIncludesExternalCandidates(t *testing.T) {
	o, err := NewOpenES(2, 1, false)
	if err != nil {
		t.Fatalf("NewOpenES() error: %v", err)
	}
	state := State{
		Kind:     KindOpenES,
		Mean:     []float64{0},
		LR:       Schedule{Current: 1, Decay: 0.9, Min: 0},
		NoiseStd: Schedule{Current: 1, Decay: 0.9, Min: 0.1},
	}
	state.NoiseBuffer = popTensor(2, 1, func(p, d int) float64 { return float64(p) })
	state.ExternalPop = popTensor(1, 1, func(p, d int) float64 { return 10 })
	fitnesses := []float64{0, 1, 100} // external candidate dominates

	info, next, err := o.TellExternal(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("TellExternal() error: %v", err)
	}
	if info.BestFitness != 100 {
		t.Fatalf("BestFitness = %v, want 100", info.BestFitness)
	}
	if next.Mean[0] <= state.Mean[0] {
		t.Fatalf("mean should move toward the dominant external candidate, got %v", next.Mean[0])
	}
	if next.LR.Current >= state.LR.Current {
		t.Fatalf("learning-rate schedule did not step down")
	}
}

func TestOpenESTellWithTiedFitnessesLeavesMeanUnchanged(t *testing.T) {
	o, err := NewOpenES(8, 2, true)
	if err != nil {
		t.Fatalf("NewOpenES() error: %v", err)
	}
	state := State{
		Kind:     KindOpenES,
		Mean:     []float64{0, 0},
		LR:       Schedule{Current: 1, Decay: 1, Min: 0},
		NoiseStd: Schedule{Current: 1, Decay: 1, Min: 0},
	}
	state.NoiseBuffer = popTensor(8, 2, func(p, d int) float64 { return float64(p)*0.37 - float64(d) })
	fitnesses := make([]float64, 8)
	for i := range fitnesses {
		fitnesses[i] = 5 // every candidate equally fit
	}

	_, next, err := o.Tell(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Tell() error: %v", err)
	}
	for d := range next.Mean {
		if math.Abs(next.Mean[d]-state.Mean[d]) > 1e-9 {
			t.Fatalf("mean moved under all-tied fitnesses: got %v, want %v",
				next.Mean, state.Mean)
		}
	}
}

func TestOpenESTellRejectsWrongFitnessLength(t *testing.T) {
	o, _ := NewOpenES(4, 2, false)
	state := State{Kind: KindOpenES, Mean: []float64{0, 0}, NoiseStd: Schedule{Current: 1, Decay: 1}}
	state.NoiseBuffer = popTensor(4, 2, func(p, d int) float64 { return 0 })

	_, _, err := o.Tell(state, []float64{1, 2}, rand.New(rand.NewSource(0)))
	if !IsShapeMismatch(err) {
		t.Fatalf("Tell() with wrong fitness length: want ShapeMismatch, got %v", err)
	}
}
