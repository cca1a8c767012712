package mlpops

import "math/rand"

// Crossover produces a child flat parameter vector via independent
// single-point crossover applied leaf-by-leaf: for every tensor in
// shapes (network.Codec's per-leaf layout, Codec.Shapes()), a random
// split index local to that leaf is chosen, and the leaf's slice of
// the child is parentA[:k] concatenated with parentB[k:]. Splitting
// independently per leaf, rather than once across the whole
// concatenated vector, keeps each weight matrix and bias vector
// spliced along its own boundary instead of a child having, say, half
// of one layer's weights from parentA and the rest of that same
// weight matrix from parentB. A nil or empty shapes falls back to a
// single split across the whole vector. Both parents must have equal
// length.
func Crossover(parentA, parentB []float64, shapes [][]int, rng *rand.Rand) []float64 {
	if len(parentA) != len(parentB) {
		panic("mlpops: crossover: parents have mismatched length")
	}

	offsets, sizes := leafLayout(shapes, len(parentA))

	child := make([]float64, len(parentA))
	for i, off := range offsets {
		size := sizes[i]
		k := rng.Intn(size + 1)
		copy(child[off:off+k], parentA[off:off+k])
		copy(child[off+k:off+size], parentB[off+k:off+size])
	}

	return child
}
