package ec

import (
	"math/rand"
	"testing"
)

func TestVanillaESModAskCachesNoiseAndCandidates(t *testing.T) {
	v, err := NewVanillaESMod(4, 2, 2, 1, MixAppend)
	if err != nil {
		t.Fatalf("NewVanillaESMod() error: %v", err)
	}
	state := State{Kind: KindVanillaESMod, Mean: []float64{1, -1},
		NoiseStd: Schedule{Current: 0.1, Decay: 1, Min: 0}}

	candidates, next, err := v.Ask(state, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Ask() error: %v", err)
	}
	if next.NoiseBuffer == nil {
		t.Fatalf("Ask() did not cache noise on the returned state")
	}
	rows, dim := rowsOf(candidates)
	if len(rows) != 4 || dim != 2 {
		t.Fatalf("candidates shape = (%d,%d), want (4,2)", len(rows), dim)
	}
}

func TestVanillaESModTellInternalOnlyMatchesTellExternal(t *testing.T) {
	v, err := NewVanillaESMod(4, 2, 2, 0, MixAppend)
	if err != nil {
		t.Fatalf("NewVanillaESMod() error: %v", err)
	}
	state := State{Kind: KindVanillaESMod, Mean: []float64{0, 0},
		NoiseStd: Schedule{Current: 1, Decay: 1, Min: 0}}
	state.NoiseBuffer = popTensor(4, 2, func(p, d int) float64 { return float64(p) })
	fitnesses := []float64{1, 4, 2, 3}

	infoTell, nextTell, err := v.Tell(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Tell() error: %v", err)
	}
	infoExt, nextExt, err := v.TellExternal(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("TellExternal() error: %v", err)
	}

	if infoTell.BestFitness != infoExt.BestFitness {
		t.Fatalf("Tell/TellExternal BestFitness mismatch: %v vs %v",
			infoTell.BestFitness, infoExt.BestFitness)
	}
	for d := range nextTell.Mean {
		if nextTell.Mean[d] != nextExt.Mean[d] {
			t.Fatalf("Tell/TellExternal mean[%d] mismatch: %v vs %v",
				d, nextTell.Mean[d], nextExt.Mean[d])
		}
	}
}

func TestVanillaESModTellExternalMixReplaceOverwritesWorst(t *testing.T) {
	v, err := NewVanillaESMod(3, 2, 3, 1, MixReplace)
	if err != nil {
		t.Fatalf("NewVanillaESMod() error: %v", err)
	}
	state := State{Kind: KindVanillaESMod, Mean: []float64{0, 0},
		NoiseStd: Schedule{Current: 1, Decay: 1, Min: 0}}
	state.NoiseBuffer = popTensor(3, 2, func(p, d int) float64 { return float64(p) })
	state.ExternalPop = popTensor(1, 2, func(p, d int) float64 { return 100 })
	// Internal fitnesses 1,2,3; external fitness 1000 should replace the
	// worst internal individual (fitness 1) in the elite mean.
	fitnesses := []float64{1, 2, 3, 1000}

	info, next, err := v.TellExternal(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("TellExternal() error: %v", err)
	}
	if info.BestFitness != 1000 {
		t.Fatalf("BestFitness = %v, want 1000", info.BestFitness)
	}
	// With all 3 elites and the replacement, mean should be pulled
	// strongly toward the external candidate's noise-implied value.
	if next.Mean[0] <= state.Mean[0] {
		t.Fatalf("mean should move toward the injected external candidate, got %v", next.Mean[0])
	}
}

func TestVanillaESModTellExternalMixReplaceNeverEvictsEarlierExternal(t *testing.T) {
	v, err := NewVanillaESMod(3, 3, 3, 2, MixReplace)
	if err != nil {
		t.Fatalf("NewVanillaESMod() error: %v", err)
	}
	state := State{Kind: KindVanillaESMod, Mean: []float64{0},
		NoiseStd: Schedule{Current: 1, Decay: 1, Min: 0}}
	state.NoiseBuffer = popTensor(3, 1, func(p, d int) float64 { return float64(p) })
	// External rows are 5 and 1, so their noise (row - mean) is 5 and 1.
	state.ExternalPop = popTensor(2, 1, func(p, d int) float64 { return 5 - 4*float64(p) })
	// Internal fitnesses 1,2,3. The first external candidate (fitness
	// 1.5) evicts the weakest internal (fitness 1). The second
	// external candidate (fitness 1.2) must evict the weakest remaining
	// *internal* slot (fitness 2), never the first external's slot it
	// just placed, even though that slot is now the weakest overall.
	fitnesses := []float64{1, 2, 3, 1.5, 1.2}

	_, next, err := v.TellExternal(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("TellExternal() error: %v", err)
	}
	// All 3 survivors (internal noise 2, external noise 5 and 1) are
	// elites, so the mean moves to (2+5+1)/3; evicting the first
	// external would have given (2+1+1)/3 instead.
	want := (2.0 + 5.0 + 1.0) / 3
	if next.Mean[0] != want {
		t.Fatalf("mean = %v, want %v (first external candidate kept)", next.Mean[0], want)
	}
}

func TestVanillaESModTellExternalNilExternalPopSkipsExternal(t *testing.T) {
	v, err := NewVanillaESMod(2, 1, 1, 0, MixAppend)
	if err != nil {
		t.Fatalf("NewVanillaESMod() error: %v", err)
	}
	state := State{Kind: KindVanillaESMod, Mean: []float64{0},
		NoiseStd: Schedule{Current: 1, Decay: 1, Min: 0}}
	state.NoiseBuffer = popTensor(2, 1, func(p, d int) float64 { return float64(p) })
	fitnesses := []float64{1, 2}

	info, _, err := v.TellExternal(state, fitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("TellExternal() error: %v", err)
	}
	if info.BestFitness != 2 {
		t.Fatalf("BestFitness = %v, want 2", info.BestFitness)
	}
}
