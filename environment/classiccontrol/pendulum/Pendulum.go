// Package pendulum implements the pendulum classic control environment,
// used as the reference concrete environment.Environment for exercising
// the vectorized env bank.
package pendulum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/erl/environment"
	"github.com/samuelfneumann/erl/timestep"
	"github.com/samuelfneumann/erl/utils/floatutils"
)

// Physical constants
const (
	AngleBound          float64 = math.Pi // The angle bounds
	SpeedBound          float64 = 8.0     // The angular velocity/speed bounds
	MaxContinuousAction float64 = 2.0     // The torque bounds
	MinContinuousAction float64 = -MaxContinuousAction
	Dt                  float64 = 0.05
	Gravity             float64 = 9.8
	Mass                float64 = 1.0
	Length              float64 = 1.0
	ActionDims          int     = 1
	ObservationDims     int     = 2
)

// base implements the physics shared by all pendulum environment
// variants. base does not implement environment.Environment on its own;
// Continuous embeds base and adds Step/ActionSpec.
type base struct {
	environment.Task
	ender        environment.Ender
	dt           float64
	gravity      float64
	mass         float64
	length       float64
	angleBounds  r1.Interval
	speedBounds  r1.Interval
	torqueBounds r1.Interval
	lastStep     timestep.TimeStep
	discount     float64
}

func newBase(t environment.Task, ender environment.Ender,
	discount float64) (*base, timestep.TimeStep) {
	angleBounds := r1.Interval{Min: -AngleBound, Max: AngleBound}
	speedBounds := r1.Interval{Min: -SpeedBound, Max: SpeedBound}
	torqueBounds := r1.Interval{Min: MinContinuousAction,
		Max: MaxContinuousAction}

	state := t.Start()
	validateState(state, angleBounds, speedBounds)

	firstStep := timestep.New(timestep.First, 0.0, discount, state, 0)

	b := base{t, ender, Dt, Gravity, Mass, Length, angleBounds, speedBounds,
		torqueBounds, firstStep, discount}

	return &b, firstStep
}

// Reset resets the environment and returns a starting state drawn from
// the embedded Task's Starter.
func (b *base) Reset() timestep.TimeStep {
	state := b.Start()
	validateState(state, b.angleBounds, b.speedBounds)
	startStep := timestep.New(timestep.First, 0, b.discount, state, 0)
	b.lastStep = startStep

	return startStep
}

// nextState computes the next pendulum state given the current
// timestep and a clipped torque.
func (b *base) nextState(t timestep.TimeStep, torque float64) mat.Vector {
	obs := t.Observation
	th, thdot := obs.AtVec(0), obs.AtVec(1)

	newthdot := thdot + (-3*b.gravity/(2*b.length)*math.Sin(th+math.Pi)+
		3.0/(b.mass*math.Pow(b.length, 2))*torque)*b.dt
	newthdot = floatutils.Clip(newthdot, b.speedBounds.Min, b.speedBounds.Max)

	newth := th + newthdot*b.dt
	newth = normalizeAngle(newth, b.angleBounds)

	return mat.NewVecDense(2, []float64{newth, newthdot})
}

// update advances lastStep to nextState, computing reward via the
// embedded Task and termination via the embedded Ender.
func (b *base) update(action mat.Vector, nextState mat.Vector) (timestep.TimeStep, bool) {
	stepNum := b.lastStep.Number + 1
	reward := b.GetReward(timestep.New(timestep.Mid, 0, b.discount, nextState,
		stepNum), action)

	step := timestep.New(timestep.Mid, reward, b.discount, nextState, stepNum)
	if b.ender != nil {
		b.ender.End(&step)
	}

	b.lastStep = step
	return step, step.Last()
}

// DiscountSpec returns the discount specification of the environment.
func (b *base) DiscountSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	bound := mat.NewVecDense(1, []float64{b.discount})
	return environment.NewSpec(shape, environment.Discount, bound, bound,
		environment.Continuous)
}

// ObservationSpec returns the observation specification of the
// environment.
func (b *base) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	lower := mat.NewVecDense(ObservationDims,
		[]float64{b.angleBounds.Min, b.speedBounds.Min})
	upper := mat.NewVecDense(ObservationDims,
		[]float64{b.angleBounds.Max, b.speedBounds.Max})

	return environment.NewSpec(shape, environment.Observation, lower, upper,
		environment.Continuous)
}

// RewardSpec returns the reward specification of the environment.
func (b *base) RewardSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lower := mat.NewVecDense(1, []float64{-1.0})
	upper := mat.NewVecDense(1, []float64{1.0})
	return environment.NewSpec(shape, environment.Reward, lower, upper,
		environment.Continuous)
}

// CurrentTimeStep returns the last timestep produced by the
// environment.
func (b *base) CurrentTimeStep() timestep.TimeStep {
	return b.lastStep
}

// String converts the environment to a string representation.
func (b *base) String() string {
	theta := b.lastStep.Observation.AtVec(0)
	thetadot := b.lastStep.Observation.AtVec(1)
	return fmt.Sprintf("Pendulum  |  theta: %v  |  theta dot: %v\n", theta,
		thetadot)
}

// normalizeAngle normalizes the pendulum angle to stay within
// angleBounds, which must be centered around 0.
func normalizeAngle(th float64, angleBounds r1.Interval) float64 {
	if angleBounds.Max != -angleBounds.Min {
		panic("angle bounds should be centered around 0")
	}

	if th > angleBounds.Max {
		divisor := int(th / angleBounds.Max)
		return -math.Pi + th - (angleBounds.Max * float64(divisor))
	} else if th < angleBounds.Min {
		divisor := int(th / angleBounds.Min)
		return math.Pi + th - (angleBounds.Min * float64(divisor))
	}
	return th
}

// validateState validates that the angle and angular velocity are
// within the environmental limits.
func validateState(obs mat.Vector, angleBounds, speedBounds r1.Interval) {
	thWithinBounds := obs.AtVec(0) <= angleBounds.Max &&
		obs.AtVec(0) >= angleBounds.Min
	if !thWithinBounds {
		panic(fmt.Sprintf("theta is not within bounds %v", angleBounds))
	}

	thdotWithinBounds := obs.AtVec(1) <= speedBounds.Max &&
		obs.AtVec(1) >= speedBounds.Min
	if !thdotWithinBounds {
		panic(fmt.Sprintf("theta dot is not within bounds %v", speedBounds))
	}
}
