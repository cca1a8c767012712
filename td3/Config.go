// Package td3 implements the gradient-based RL core of the hybrid
// workflow: one independent twin-delayed DDPG agent per RL slot, each
// descended in structure from the teacher's
// agent/nonlinear/discrete/deepq.DeepQ (graph/VM construction, target
// computation fed in via G.Let, Polyak-averaged target networks) but
// generalized to continuous actions, twin critics, and delayed actor
// updates.
package td3

// Config bundles every TD3 hyperparameter shared by every agent a Core
// manages.
type Config struct {
	ObsDim    int
	ActionDim int
	BatchSize int

	HiddenSizes []int
	ActionScale float64 // actor output is tanh(raw) * ActionScale

	ActorLR  float64
	CriticLR float64

	Gamma float64
	Tau   float64 // Polyak averaging constant for target networks

	PolicySmoothingStd float64 // std of target-action smoothing noise
	NoiseClip          float64 // clip range for smoothing noise

	ActorUpdateInterval int // critic steps between each actor/target update
}
