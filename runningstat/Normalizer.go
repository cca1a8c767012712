// Package runningstat implements an online per-feature observation
// normalizer shared across the EC and RL sides of the workflow driver,
// grounded on the teacher's utils/floatutils numeric-helper idiom
// (small, dependency-free arithmetic helpers operating on []float64).
package runningstat

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Normalizer tracks a running per-feature mean and variance via
// Welford's online algorithm and rescales observations to zero mean,
// unit variance. Update is a no-op once the normalizer has been
// frozen, so a driver can warm it up over an initial number of
// environment steps and then hold statistics fixed for the remainder
// of training, avoiding a nonstationary normalization target late in
// a run.
type Normalizer struct {
	dim    int
	count  float64
	mean   []float64
	m2     []float64
	frozen bool
}

// New constructs a Normalizer over observations of dimension dim.
func New(dim int) *Normalizer {
	return &Normalizer{
		dim:  dim,
		mean: make([]float64, dim),
		m2:   make([]float64, dim),
	}
}

// Update folds obs into the running statistics. It is a no-op after
// Freeze has been called.
func (n *Normalizer) Update(obs mat.Vector) {
	if n.frozen {
		return
	}

	n.count++
	for i := 0; i < n.dim; i++ {
		x := obs.AtVec(i)
		delta := x - n.mean[i]
		n.mean[i] += delta / n.count
		delta2 := x - n.mean[i]
		n.m2[i] += delta * delta2
	}
}

// Freeze stops further Update calls from changing the normalizer's
// statistics. Once frozen, Normalize always applies the same affine
// transform.
func (n *Normalizer) Freeze() {
	n.frozen = true
}

// Frozen reports whether the normalizer has been frozen.
func (n *Normalizer) Frozen() bool {
	return n.frozen
}

// Normalize returns a new vector with obs rescaled to zero mean, unit
// variance under the normalizer's current statistics. Before any
// Update call, the normalizer's variance is zero everywhere and
// Normalize returns obs unchanged.
func (n *Normalizer) Normalize(obs mat.Vector) mat.Vector {
	out := make([]float64, n.dim)
	for i := 0; i < n.dim; i++ {
		std := n.std(i)
		if std == 0 {
			out[i] = obs.AtVec(i)
			continue
		}
		out[i] = (obs.AtVec(i) - n.mean[i]) / std
	}
	return mat.NewVecDense(n.dim, out)
}

// std returns the sample standard deviation of feature i.
func (n *Normalizer) std(i int) float64 {
	if n.count < 2 {
		return 0
	}
	variance := n.m2[i] / (n.count - 1)
	return math.Sqrt(variance)
}

// Count returns the number of observations folded into the running
// statistics so far.
func (n *Normalizer) Count() float64 {
	return n.count
}
