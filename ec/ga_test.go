package ec

import (
	"math/rand"
	"testing"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/erl/ec/mlpops"
)

func mutateCfg() mlpops.MutateConfig {
	return mlpops.MutateConfig{
		ResetProb:          0,
		NumMutationFrac:    0.1,
		SuperMutProb:       0.05,
		MutStrength:        0.01,
		SuperMutStrength:   0.1,
		VecRelativeProb:    0.5,
		WeightMaxMagnitude: 1e6,
	}
}

func popTensor(pop, dim int, fill func(p, d int) float64) *tensor.Dense {
	data := make([]float64, pop*dim)
	for p := 0; p < pop; p++ {
		for d := 0; d < dim; d++ {
			data[p*dim+d] = fill(p, d)
		}
	}
	return tensor.New(tensor.WithShape(pop, dim), tensor.WithBacking(data))
}

func TestGAAskReturnsStoredPopulation(t *testing.T) {
	ga, err := NewGA(4, 2, 2, mutateCfg(), nil, nil)
	if err != nil {
		t.Fatalf("NewGA() error: %v", err)
	}

	pop := popTensor(4, 3, func(p, d int) float64 { return float64(p) })
	state := State{Kind: KindGA, Pop: pop}

	candidates, _, err := ga.Ask(state, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if candidates != pop {
		t.Fatalf("Ask() did not return the stored population")
	}
}

func TestGATellKeepsElitesUnchanged(t *testing.T) {
	ga, err := NewGA(4, 2, 2, mutateCfg(), nil, nil)
	if err != nil {
		t.Fatalf("NewGA() error: %v", err)
	}

	pop := popTensor(4, 3, func(p, d int) float64 { return float64(p) })
	state := State{Kind: KindGA, Pop: pop}

	fitnesses := []float64{1, 4, 2, 3} // individual 1 best, then 3, 2, 0

	info, next, err := ga.Tell(state, fitnesses, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Tell() error: %v", err)
	}
	if info.BestFitness != 4 {
		t.Fatalf("BestFitness = %v, want 4", info.BestFitness)
	}

	rows, _ := rowsOf(next.Pop)
	// Individual 1's row (all elements == 1.0) must survive verbatim
	// as the top elite.
	found := false
	for _, r := range rows {
		if r[0] == 1 && r[1] == 1 && r[2] == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("best individual's row did not survive into the next generation")
	}
}

func TestGATellWiresReinitThroughToMutate(t *testing.T) {
	cfg := mutateCfg()
	cfg.ResetProb = 1 // always reset non-elite offspring
	reinitCalls := 0
	reinit := func(rng *rand.Rand) []float64 {
		reinitCalls++
		return []float64{9, 9, 9}
	}
	ga, err := NewGA(4, 1, 2, cfg, nil, reinit)
	if err != nil {
		t.Fatalf("NewGA() error: %v", err)
	}
	pop := popTensor(4, 3, func(p, d int) float64 { return float64(p) })
	state := State{Kind: KindGA, Pop: pop}
	fitnesses := []float64{1, 4, 2, 3}

	_, next, err := ga.Tell(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Tell() error: %v", err)
	}
	if reinitCalls == 0 {
		t.Fatalf("Tell() with ResetProb=1 never invoked the wired reinit")
	}
	rows, _ := rowsOf(next.Pop)
	found := false
	for _, r := range rows {
		if r[0] == 9 && r[1] == 9 && r[2] == 9 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no offspring row came from the wired reinit: %v", rows)
	}
}

func TestGATellRejectsWrongFitnessLength(t *testing.T) {
	ga, _ := NewGA(4, 2, 2, mutateCfg(), nil, nil)
	pop := popTensor(4, 3, func(p, d int) float64 { return 0 })
	state := State{Kind: KindGA, Pop: pop}

	_, _, err := ga.Tell(state, []float64{1, 2}, rand.New(rand.NewSource(0)))
	if !IsShapeMismatch(err) {
		t.Fatalf("Tell() with wrong fitness length: want ShapeMismatch, got %v", err)
	}
}
