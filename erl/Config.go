// Package erl implements the ERL workflow driver (C7) and evaluator
// (C8): the per-iteration state machine sequencing EC rollouts, RL
// rollouts, TD3 gradient updates, and cross-side injection, following
// the strict ordering and warm-up gating of the original source's
// erl_origin.py/erl_ga.py/erl_es.py step() methods, generalized to a
// single Go Driver parameterized by Variant.
package erl

// Variant selects which of the three ERL injection policies a Driver
// runs: ERL-Origin (fixed-cadence actor overwrite of the weakest
// population members), ERL-GA (tell_external ranking the combined
// pop+RL set every injection iteration), or ERL-ES (every iteration,
// append the RL actor's implied noise and fitness to the mean update).
type Variant int

const (
	Origin Variant = iota
	GA
	ES
)

// MixStrategy mirrors ec.MixStrategy for configuration surfaces that
// don't want to import ec directly. The Driver does not read it: the
// ec.VanillaESMod passed to NewDriver carries its own ec.MixStrategy.
type MixStrategy string

const (
	MixReplace MixStrategy = "replace"
	MixAppend  MixStrategy = "append"
)

// Config bundles every knob the workflow driver's Step/Evaluate
// methods need, matching spec.md's "Configuration surface" table.
type Config struct {
	ObsDim, ActionDim int
	ActionScale       float64
	HiddenSizes       []int

	PopSize            int
	NumRLAgents        int
	NumElites          int
	NumEnvs            int
	EpisodesForFitness int
	RolloutEpisodes    int
	MaxEpisodeSteps    int

	WarmupIters     uint64
	RandomTimesteps uint64

	ReplayBufferCapacity int
	BatchSize            int

	// UpdatesPerIter, if > 0, is used directly as td3.Core.Update's
	// numUpdates. If 0, num_updates follows the "origin" scaling rule:
	// ceil(total_timesteps * RLUpdatesFracPerIter) / ActorUpdateInterval.
	UpdatesPerIter       int
	RLUpdatesFracPerIter float64
	ActorUpdateInterval  int

	RLInjectionInterval uint64
	MixStrategy         MixStrategy

	// ExplorationNoiseStd is the std of the zero-mean Gaussian added to
	// RL agent actions during rlRollout, clipped to the action bounds
	// afterward. EC population members carry no such noise: they rely
	// solely on the environment's own stochasticity.
	ExplorationNoiseStd float64

	EvalInterval int
}
