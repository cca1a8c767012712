package mlpops

import (
	"math/rand"
	"testing"
)

func baseCfg() MutateConfig {
	return MutateConfig{
		ResetProb:          0,
		NumMutationFrac:    1.0,
		SuperMutProb:       0,
		MutStrength:        1.0,
		SuperMutStrength:   1.0,
		VecRelativeProb:    1.0, // always use the RMS-scaled branch
		WeightMaxMagnitude: 1e6,
	}
}

func TestMutateReachesResetProbViaReinit(t *testing.T) {
	cfg := baseCfg()
	cfg.ResetProb = 1 // always reset
	vec := []float64{1, 2, 3}
	reinit := func(rng *rand.Rand) []float64 { return []float64{9, 9, 9} }

	out := Mutate(vec, nil, cfg, rand.New(rand.NewSource(0)), reinit)
	for i, v := range out {
		if v != 9 {
			t.Fatalf("out[%d] = %v, want 9 (reinit should have fired)", i, v)
		}
	}
}

func TestMutateResetProbIsInertWithoutReinit(t *testing.T) {
	cfg := baseCfg()
	cfg.ResetProb = 1 // would always reset, but no reinit is wired
	cfg.NumMutationFrac = 0
	vec := []float64{1, 2, 3}

	out := Mutate(vec, nil, cfg, rand.New(rand.NewSource(0)), nil)
	for i, v := range out {
		if v != vec[i] {
			t.Fatalf("out[%d] = %v, want unchanged %v", i, v, vec[i])
		}
	}
}

func TestMutateUsesPerLeafRMSNotPooled(t *testing.T) {
	// Leaf 0 has huge magnitude, leaf 1 is all zero. With
	// VecRelativeProb=1, a mutation landing in leaf 1 should be scaled
	// by leaf 1's own (zero) RMS, leaving it exactly at its mutated
	// center (perturbation == 0), never by leaf 0's large pooled RMS.
	cfg := baseCfg()
	cfg.NumMutationFrac = 0.1 // 0.1*3 rounds down to 0 and falls back to exactly 1 mutation
	shapes := [][]int{{2}, {1}}
	vec := []float64{1000, 1000, 0}

	// Force rng.Intn(len(out)) to land on index 2 (leaf 1) by trying
	// enough seeds; the property under test is leaf-scoping, not which
	// index gets hit on a given seed.
	found := false
	for seed := int64(0); seed < 200 && !found; seed++ {
		out := Mutate(vec, shapes, cfg, rand.New(rand.NewSource(seed)), nil)
		if out[2] == 0 && (out[0] != 1000 || out[1] != 1000) {
			// A mutation landed in leaf 0 this draw; not the case we want.
			continue
		}
		if out[0] == 1000 && out[1] == 1000 && out[2] == 0 {
			// Leaf 1's single entry was selected and left unchanged
			// because its own RMS is 0 (sigma=0 means no perturbation
			// regardless of the normal draw).
			found = true
		}
	}
	if !found {
		t.Fatalf("never observed leaf 1 mutated with its own (zero) RMS " +
			"across 200 seeds; pooled RMS would have produced a nonzero " +
			"perturbation instead")
	}
}

func TestMutateWithNilShapesTreatsWholeVectorAsOneLeaf(t *testing.T) {
	cfg := baseCfg()
	cfg.NumMutationFrac = 0 // no perturbations, just exercise the RMS precompute
	vec := []float64{1, 2, 3}

	// Must not panic when shapes is nil/empty.
	out := Mutate(vec, nil, cfg, rand.New(rand.NewSource(0)), nil)
	for i, v := range out {
		if v != vec[i] {
			t.Fatalf("out[%d] = %v, want unchanged %v", i, v, vec[i])
		}
	}
}
