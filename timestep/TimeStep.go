// Package timestep implements timesteps of the agent-environment interaction
package timestep

import "gonum.org/v1/gonum/mat"

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

// TimeStep packages together a single timestep in an environment
type TimeStep struct {
	StepType    StepType
	Reward      float64
	Discount    float64
	Observation mat.Vector
	Number      int

	// Termination/truncation bookkeeping, populated by autoreset-aware
	// callers (environment/envbank). A TimeStep produced directly by a
	// bare environment.Environment leaves these at their zero values.
	Termination bool
	Truncation  bool
	OriObs      mat.Vector
}

func New(t StepType, r, d float64, o mat.Vector, number int) TimeStep {
	return TimeStep{StepType: t, Reward: r, Discount: d, Observation: o,
		Number: number}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.StepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.StepType == Last
}
