package pendulum

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/erl/environment"
	"github.com/samuelfneumann/erl/timestep"
)

// SwingUp implements a task where the agent must swing the pendulum up
// and hold it in a vertical position. Reward is the cosine of the
// pendulum angle measured from the positive y-axis: 1.0 when upright,
// -1.0 when hanging straight down.
type SwingUp struct {
	environment.Starter
}

// NewSwingUp creates and returns a new SwingUp task, with start states
// drawn from starter.
func NewSwingUp(starter environment.Starter) *SwingUp {
	return &SwingUp{starter}
}

// GetReward returns the reward at the current timestep.
func (s *SwingUp) GetReward(t timestep.TimeStep, _ mat.Vector) float64 {
	return math.Cos(t.Observation.AtVec(0))
}

// AtGoal determines whether the current state is the goal state (the
// pendulum pointing straight up with zero angular velocity).
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0 && state.At(0, 1) == 0
}

// Min returns the minimum possible reward.
func (s *SwingUp) Min() float64 { return -1.0 }

// Max returns the maximum possible reward.
func (s *SwingUp) Max() float64 { return 1.0 }
