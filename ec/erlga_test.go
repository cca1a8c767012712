package ec

import (
	"math/rand"
	"testing"
)

func TestERLGAAskReturnsStoredPopulation(t *testing.T) {
	erlga, err := NewERLGA(4, 2, 2, 0, false, mutateCfg(), nil, nil)
	if err != nil {
		t.Fatalf("NewERLGA() error: %v", err)
	}
	pop := popTensor(4, 3, func(p, d int) float64 { return float64(p) })
	state := State{Kind: KindERLGA, Pop: pop}

	candidates, _, err := erlga.Ask(state, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if candidates != pop {
		t.Fatalf("Ask() did not return the stored population")
	}
}

func TestERLGAAskRejectsWrongPopSize(t *testing.T) {
	erlga, _ := NewERLGA(4, 2, 2, 0, false, mutateCfg(), nil, nil)
	pop := popTensor(3, 3, func(p, d int) float64 { return 0 })
	state := State{Kind: KindERLGA, Pop: pop}

	_, _, err := erlga.Ask(state, rand.New(rand.NewSource(0)))
	if !IsShapeMismatch(err) {
		t.Fatalf("Ask() with wrong pop size: want ShapeMismatch, got %v", err)
	}
}

func TestERLGATellExternalKeepsExternalEliteOverInternal(t *testing.T) {
	erlga, err := NewERLGA(4, 1, 2, 0, false, mutateCfg(), nil, nil)
	if err != nil {
		t.Fatalf("NewERLGA() error: %v", err)
	}
	pop := popTensor(4, 3, func(p, d int) float64 { return float64(p) })
	external := popTensor(1, 3, func(p, d int) float64 { return 99 })
	state := State{Kind: KindERLGA, Pop: pop, ExternalPop: external}

	// External individual (row of 99s) has the best fitness by far.
	fitnesses := []float64{1, 2, 3, 4, 1000}

	info, next, err := erlga.TellExternal(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("TellExternal() error: %v", err)
	}
	if info.BestFitness != 1000 {
		t.Fatalf("BestFitness = %v, want 1000", info.BestFitness)
	}

	rows, _ := rowsOf(next.Pop)
	found := false
	for _, r := range rows {
		if r[0] == 99 && r[1] == 99 && r[2] == 99 {
			found = true
		}
	}
	if !found {
		t.Fatalf("external elite did not survive into next generation's population")
	}
	if next.ExternalPop != nil {
		t.Fatalf("TellExternal() should clear ExternalPop after consuming it, got %v", next.ExternalPop)
	}
}

func TestERLGATellExternalRejectsMismatchedFitnessLength(t *testing.T) {
	erlga, _ := NewERLGA(4, 1, 2, 0, false, mutateCfg(), nil, nil)
	pop := popTensor(4, 3, func(p, d int) float64 { return 0 })
	external := popTensor(1, 3, func(p, d int) float64 { return 0 })
	state := State{Kind: KindERLGA, Pop: pop, ExternalPop: external}

	_, _, err := erlga.TellExternal(state, []float64{1, 2, 3, 4}, rand.New(rand.NewSource(0)))
	if !IsShapeMismatch(err) {
		t.Fatalf("TellExternal() with missing external fitness: want ShapeMismatch, got %v", err)
	}
}

func TestERLGATellWithoutExternalMatchesGABehaviour(t *testing.T) {
	erlga, err := NewERLGA(4, 2, 2, 0, false, mutateCfg(), nil, nil)
	if err != nil {
		t.Fatalf("NewERLGA() error: %v", err)
	}
	pop := popTensor(4, 3, func(p, d int) float64 { return float64(p) })
	state := State{Kind: KindERLGA, Pop: pop}
	fitnesses := []float64{1, 4, 2, 3}

	info, next, err := erlga.Tell(state, fitnesses, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Tell() error: %v", err)
	}
	if info.BestFitness != 4 {
		t.Fatalf("BestFitness = %v, want 4", info.BestFitness)
	}
	rows, _ := rowsOf(next.Pop)
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
