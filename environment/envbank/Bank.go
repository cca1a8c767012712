// Package envbank implements a vectorized bank of environment.Environment
// copies with selectable autoreset disciplines, grounded on the teacher's
// per-env environment.Environment contract (reset()/step()) and generalized
// to a parallel batch the way the original source's training_wrapper.py
// (EpisodeWrapper/OneEpisodeWrapper/VmapAutoResetWrapper/
// FastVmapAutoResetWrapper) batches a single-env Brax wrapper.
package envbank

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/erl/environment"
	"github.com/samuelfneumann/erl/timestep"
)

// AutoresetMode selects how an environment copy is reset once it
// reports done.
type AutoresetMode int

const (
	// Disabled latches a done env: further Step calls are no-ops that
	// return the same terminal timestep. Used for episodic fitness
	// estimation, so later timesteps never contaminate the next
	// episode (grounded on OneEpisodeWrapper).
	Disabled AutoresetMode = iota
	// Normal resets a done env with fresh Starter randomness on the
	// very next Step call (grounded on VmapAutoResetWrapper).
	Normal
	// Fast resets a done env to the observation captured at the bank's
	// most recent Reset (or at New, before any Reset), injecting no new
	// randomness at episode boundaries
	// (grounded on FastVmapAutoResetWrapper).
	Fast
)

// StepInfo carries the per-env bookkeeping a training loop needs beyond
// the raw next TimeStep.
type StepInfo struct {
	Steps         int
	Termination   bool       // natural episode end
	Truncation    bool       // time-limit hit; false if Termination already set
	OriObs        mat.Vector // pre-autoreset true terminal observation (Normal/Fast only)
	EpisodeReturn float64    // discounted running return, reset on episode boundary
}

// Bank holds numEnvs independent copies of a prototype
// environment.Environment and steps them together as a batch.
type Bank struct {
	envs []environment.Environment
	mode AutoresetMode

	done     []bool
	steps    []int
	epRet    []float64
	discont  float64
	terminal []timestep.TimeStep

	// firstState, used only in Fast mode, is the observation captured
	// at New and overwritten by every Reset().
	firstState []mat.Vector
}

// New constructs a Bank of numEnvs independent copies of proto, each
// created via proto.New() (so every copy gets its own Starter/Task
// draw), reset once.
func New(proto environment.Environment, numEnvs int,
	mode AutoresetMode) (*Bank, error) {
	if numEnvs <= 0 {
		return nil, fmt.Errorf("envbank: numEnvs must be positive, got %d",
			numEnvs)
	}

	envs := make([]environment.Environment, numEnvs)
	firstState := make([]mat.Vector, numEnvs)
	discount := 1.0

	for i := 0; i < numEnvs; i++ {
		env, first := proto.New()
		envs[i] = env
		firstState[i] = first.Observation
		discount = first.Discount
	}

	return &Bank{
		envs:       envs,
		mode:       mode,
		done:       make([]bool, numEnvs),
		steps:      make([]int, numEnvs),
		epRet:      make([]float64, numEnvs),
		discont:    discount,
		firstState: firstState,
		terminal:   make([]timestep.TimeStep, numEnvs),
	}, nil
}

// NumEnvs returns the number of parallel environment copies in the
// bank.
func (b *Bank) NumEnvs() int {
	return len(b.envs)
}

// Reset resets every env in the bank and returns the resulting
// timesteps. In Fast mode, the resulting observations are cached and
// reused at every subsequent auto-reset.
func (b *Bank) Reset() []timestep.TimeStep {
	steps := make([]timestep.TimeStep, len(b.envs))
	for i, env := range b.envs {
		step := env.Reset()
		steps[i] = step
		b.done[i] = false
		b.steps[i] = 0
		b.epRet[i] = 0
		b.firstState[i] = step.Observation
	}
	return steps
}

// Step advances every env in the bank by one timestep given a
// per-env action, honoring the bank's AutoresetMode at episode
// boundaries. len(actions) must equal b.NumEnvs().
func (b *Bank) Step(actions []mat.Vector) ([]timestep.TimeStep, []StepInfo,
	error) {
	if len(actions) != len(b.envs) {
		return nil, nil, fmt.Errorf("envbank: got %d actions, want %d",
			len(actions), len(b.envs))
	}

	steps := make([]timestep.TimeStep, len(b.envs))
	infos := make([]StepInfo, len(b.envs))

	for i, env := range b.envs {
		if b.mode == Disabled && b.done[i] {
			// Latched: no-op, replay the same terminal timestep.
			steps[i] = b.terminal[i]
			infos[i] = StepInfo{
				Steps:       b.steps[i],
				Termination: true,
			}
			continue
		}

		step, last := env.Step(actions[i])
		b.steps[i]++

		discount := step.Discount
		if discount == 0 {
			discount = b.discont
		}
		if b.steps[i] == 1 {
			b.epRet[i] = step.Reward
		} else {
			b.epRet[i] = step.Reward + discount*b.epRet[i]
		}

		termination := last && !step.Truncation
		truncation := step.Truncation
		step.Termination = termination
		step.Truncation = truncation

		info := StepInfo{
			Steps:         b.steps[i],
			Termination:   termination,
			Truncation:    truncation,
			EpisodeReturn: b.epRet[i],
		}

		if last {
			info.OriObs = step.Observation
			b.terminal[i] = step
			steps[i] = b.autoreset(i, step)
		} else {
			steps[i] = step
		}

		infos[i] = info
		b.done[i] = last
	}

	return steps, infos, nil
}

// autoreset applies the bank's AutoresetMode to a just-terminated env,
// returning the timestep the next iteration should observe.
func (b *Bank) autoreset(i int, terminal timestep.TimeStep) timestep.TimeStep {
	switch b.mode {
	case Disabled:
		b.steps[i] = terminal.Number
		return terminal
	case Fast:
		obs := b.firstState[i]
		b.steps[i] = 0
		b.epRet[i] = 0
		return timestep.New(timestep.First, 0, terminal.Discount, obs, 0)
	default: // Normal
		reset := b.envs[i].Reset()
		b.steps[i] = 0
		b.epRet[i] = 0
		return reset
	}
}
