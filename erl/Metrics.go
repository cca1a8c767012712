package erl

import "github.com/samuelfneumann/erl/td3"

// WorkflowMetrics accumulates counters across the whole run, read by
// the driver's scaling rules (num_updates) and reported to callers
// after every Step.
type WorkflowMetrics struct {
	SampledTimesteps   uint64
	SampledEpisodes    uint64
	RLSampledTimesteps uint64
	Iterations         uint64
}

// TrainMetrics summarizes one Step call.
type TrainMetrics struct {
	ECFitnessBest float64
	ECFitnessMean float64
	TD3           td3.Metrics
	SkippedUpdate bool // true for warm-up iterations or an empty buffer: no RL update ran
	Injected      bool // true if this iteration's injection policy fired
}

// EvalMetrics summarizes one Evaluate call.
type EvalMetrics struct {
	MeanReturn float64
	MeanLength float64
}
