package pendulum

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/erl/environment"
	"github.com/samuelfneumann/erl/timestep"
	"github.com/samuelfneumann/erl/utils/floatutils"
)

// Continuous implements the pendulum environment with continuous,
// 1-dimensional torque actions bounded by [MinContinuousAction,
// MaxContinuousAction]. Continuous implements environment.Environment.
type Continuous struct {
	*base
}

// NewContinuous creates a new Continuous pendulum environment. task
// supplies the reward function and start-state distribution; ender (may
// be nil) additionally truncates episodes (e.g. a step limit).
func NewContinuous(task environment.Task, ender environment.Ender,
	discount float64) (*Continuous, timestep.TimeStep) {
	b, firstStep := newBase(task, ender, discount)
	return &Continuous{b}, firstStep
}

// New satisfies environment.Environment by returning a freshly reset
// copy of the receiver's configuration.
func (p *Continuous) New() (environment.Environment, timestep.TimeStep) {
	return NewContinuous(p.Task, p.ender, p.discount)
}

// Step takes one environmental step given a 1-dimensional continuous
// torque action, clipped to the legal range.
func (p *Continuous) Step(action mat.Vector) (timestep.TimeStep, bool) {
	if action.Len() != ActionDims {
		panic("pendulum: actions must be 1-dimensional")
	}

	torque := floatutils.Clip(action.AtVec(0), MinContinuousAction,
		MaxContinuousAction)
	nextState := p.nextState(p.lastStep, torque)

	return p.update(action, nextState)
}

// ActionSpec returns the action specification of the environment.
func (p *Continuous) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lower := mat.NewVecDense(ActionDims, []float64{p.torqueBounds.Min})
	upper := mat.NewVecDense(ActionDims, []float64{p.torqueBounds.Max})

	return environment.NewSpec(shape, environment.Action, lower, upper,
		environment.Continuous)
}

// String converts the environment to a string representation.
func (p *Continuous) String() string {
	theta := p.lastStep.Observation.AtVec(0)
	thetadot := p.lastStep.Observation.AtVec(1)
	return fmt.Sprintf("Continuous pendulum  |  theta: %v  |  theta dot: %v\n",
		theta, thetadot)
}
