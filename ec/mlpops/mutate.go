// Package mlpops implements the mutation and crossover operators shared
// by the GA and ERLGA optimizers, operating on a network.Codec's flat
// parameter vector but leaf-aware via its per-tensor shapes, grounded
// on the teacher's own reliance on gonum/stat/distuv for Gaussian
// sampling and on network.Polyak's tensor arithmetic idiom for the
// RMS-scaled perturbation.
package mlpops

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// MutateConfig bundles every knob the mutation operator consults.
type MutateConfig struct {
	ResetProb          float64
	NumMutationFrac    float64
	SuperMutProb       float64
	MutStrength        float64
	SuperMutStrength   float64
	VecRelativeProb    float64
	WeightMaxMagnitude float64
}

// Mutate applies the 5-step mutation operator to a copy of vec. shapes
// is the network.Codec's per-leaf shape list (Codec.Shapes()); vec is
// treated as that leaf layout rather than one opaque tensor, so the
// vec_relative_prob RMS scaling in step 4 is computed per layer tensor
// W, not pooled across the whole individual. A nil or empty shapes
// treats vec as a single leaf, which is the right fallback for callers
// (tests, non-network optimizees) that have no layer structure to
// preserve.
//
// reinit, when non-nil, is consulted if the reset_prob draw (step 1)
// decides to re-initialize the individual from scratch rather than
// perturb it in place; it is expected to draw fresh values the same
// way the population was originally built (e.g. a fresh
// network.NeuralNet run back through the same Codec), so ResetProb > 0
// only does something when the caller actually wires a reinit.
func Mutate(vec []float64, shapes [][]int, cfg MutateConfig, rng *rand.Rand,
	reinit func(rng *rand.Rand) []float64) []float64 {
	out := make([]float64, len(vec))
	copy(out, vec)

	// Step 1: whole-individual reinitialization.
	if rng.Float64() < cfg.ResetProb && reinit != nil {
		return reinit(rng)
	}

	offsets, sizes := leafLayout(shapes, len(out))

	// Precompute each leaf tensor's own RMS for the vec_relative_prob
	// scaling, rather than one RMS pooled across every leaf.
	leafRMS := make([]float64, len(offsets))
	for i, off := range offsets {
		leafRMS[i] = rootMeanSquare(out[off : off+sizes[i]])
	}

	// A positive fraction that rounds down to zero weights still
	// mutates one; a zero fraction mutates none.
	numToMutate := int(cfg.NumMutationFrac * float64(len(out)))
	if numToMutate <= 0 && cfg.NumMutationFrac > 0 && len(out) > 0 {
		numToMutate = 1
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	for i := 0; i < numToMutate; i++ {
		idx := rng.Intn(len(out))
		leaf := leafContaining(offsets, idx)

		w := out[idx]
		strength := cfg.MutStrength
		if rng.Float64() < cfg.SuperMutProb {
			strength = cfg.SuperMutStrength
		}

		sigma := strength * math.Abs(w)
		if rng.Float64() < cfg.VecRelativeProb {
			sigma = strength * leafRMS[leaf]
		}

		perturbation := normal.Rand() * sigma
		w += perturbation

		if w > cfg.WeightMaxMagnitude {
			w = cfg.WeightMaxMagnitude
		} else if w < -cfg.WeightMaxMagnitude {
			w = -cfg.WeightMaxMagnitude
		}
		out[idx] = w
	}

	return out
}

// leafLayout returns each leaf's starting offset and element count,
// matching network.Codec's own traversal-order layout. An empty shapes
// (or one whose total size doesn't match dim) falls back to treating
// the whole vector as a single leaf.
func leafLayout(shapes [][]int, dim int) (offsets, sizes []int) {
	offsets = make([]int, len(shapes))
	sizes = make([]int, len(shapes))
	at := 0
	for i, s := range shapes {
		offsets[i] = at
		n := 1
		for _, d := range s {
			n *= d
		}
		sizes[i] = n
		at += n
	}
	if len(shapes) == 0 || at != dim {
		return []int{0}, []int{dim}
	}
	return offsets, sizes
}

// leafContaining returns the index of the leaf whose offset range
// contains the flat index idx.
func leafContaining(offsets []int, idx int) int {
	for i := len(offsets) - 1; i >= 0; i-- {
		if idx >= offsets[i] {
			return i
		}
	}
	return 0
}

func rootMeanSquare(vec []float64) float64 {
	if len(vec) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(vec)))
}
