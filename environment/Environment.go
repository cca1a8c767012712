// Package environment outlines the interfaces and sturcts needed to implement
// concrete environments
package environment

// TODO: Create a start distribution type that each env has and samples start states from

import (
	"gonum.org/v1/gonum/mat"
	"github.com/samuelfneumann/erl/timestep"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() mat.Vector
}

// Task implements the reward scheme for taking actions in some environment,
// plus the start-state distribution it is defined over.
type Task interface {
	Starter
	// fmt.Stringer
	GetReward(t timestep.TimeStep, a mat.Vector) float64
	AtGoal(state mat.Matrix) bool
}

// Ender decides when an episode should terminate outside of the
// environment's own termination condition (e.g. a step limit). End may
// mutate t's StepType to timestep.Last when it decides to end the
// episode.
type Ender interface {
	End(t *timestep.TimeStep) bool
}

// Environment implements a simualted environment, which includes a Task to
// complete
type Environment interface {
	Task
	Starter
	// fmt.Stringer
	New() (Environment, timestep.TimeStep) // Environment starts ready to use
	Reset() timestep.TimeStep              // Resets between episodes
	Step(action mat.Vector) (timestep.TimeStep, bool)
	RewardSpec() Spec
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}
