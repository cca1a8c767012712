// Package ec implements the ask/tell black-box optimizer family used by
// the EC side of the hybrid workflow driver: GA, ERLGA, CEM, OpenES, and
// VanillaESMod, all operating over flat parameter vectors produced by
// network.Codec.
package ec

import (
	"math/rand"

	"gorgonia.org/tensor"
)

// Kind tags which optimizer variant a State belongs to.
type Kind int

const (
	KindGA Kind = iota
	KindERLGA
	KindCEM
	KindOpenES
	KindVanillaESMod
)

// Schedule is an exponentially decaying scalar: x_{t+1} = max(min, x_t*decay).
type Schedule struct {
	Current float64
	Decay   float64
	Min     float64
}

// Step advances the schedule by one generation and returns the new
// current value.
func (s *Schedule) Step() float64 {
	s.Current = s.Current * s.Decay
	if s.Current < s.Min {
		s.Current = s.Min
	}
	return s.Current
}

// State is a tagged union over every optimizer variant's mutable
// state, matching the data model's ECState. Only the fields relevant
// to State.Kind are populated by a given optimizer.
type State struct {
	Kind Kind

	// GA / ERLGA
	Pop         *tensor.Dense // [pop_size, D]
	EliteCache  *tensor.Dense // [num_elites, D], set after Tell
	ExternalPop *tensor.Dense // [num_rl_agents, D], ERLGA only

	// CEM
	Mean     []float64
	Variance []float64

	// OpenES / VanillaESMod
	LR          Schedule
	NoiseStd    Schedule
	NoiseBuffer *tensor.Dense // [pop_size, D] from the last Ask

	// VanillaESMod
	ExternalSize int
}

// TellInfo reports summary statistics of a completed Tell/TellExternal
// call, useful for logging and for the driver's WorkflowMetrics.
type TellInfo struct {
	BestFitness float64
	MeanFitness float64
	EliteMean   float64
}

// Optimizer is the shared ask/tell contract every EC variant
// implements.
type Optimizer interface {
	// Ask emits exactly pop_size candidates ([pop_size, D]), recording
	// whatever sampling randomness it needs into the returned state.
	Ask(state State, rng *rand.Rand) (candidates *tensor.Dense, next State, err error)

	// Tell updates the optimizer's distribution/population given the
	// fitness of every candidate from the most recent Ask. rng sources
	// any randomness the update itself needs (e.g. GA's mutation
	// draws), kept explicit rather than stored on State so that
	// replaying a Tell with a different rng is always possible.
	Tell(state State, fitnesses []float64, rng *rand.Rand) (info TellInfo, next State, err error)
}

// ExternalOptimizer is implemented by variants with an external slot
// that lets RL-trained actors compete with the EC population.
type ExternalOptimizer interface {
	Optimizer

	// TellExternal consumes fitnesses for the internal population
	// followed by the external candidates (len(fitnesses) ==
	// pop_size + external_size).
	TellExternal(state State, fitnesses []float64, rng *rand.Rand) (info TellInfo, next State, err error)
}
