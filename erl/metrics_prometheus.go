package erl

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusReporter exposes WorkflowMetrics as a set of Prometheus
// gauges/counters, grounded on the teacher's metrics.Metrics/newMetrics
// pattern (one struct field per collector, registered once at
// construction, updated from plain Go values after each Step).
type PrometheusReporter struct {
	sampledTimesteps   prometheus.Counter
	sampledEpisodes    prometheus.Counter
	rlSampledTimesteps prometheus.Counter
	iterations         prometheus.Counter

	ecFitnessBest prometheus.Gauge
	ecFitnessMean prometheus.Gauge
	criticLoss    prometheus.Gauge
	skippedUpdate prometheus.Counter
	injections    prometheus.Counter
}

// NewPrometheusReporter constructs a PrometheusReporter and registers
// every collector with reg.
func NewPrometheusReporter(reg prometheus.Registerer) (*PrometheusReporter, error) {
	r := &PrometheusReporter{
		sampledTimesteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erl_sampled_timesteps_total",
			Help: "Total environment timesteps sampled across EC and RL rollouts",
		}),
		sampledEpisodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erl_sampled_episodes_total",
			Help: "Total episodes sampled across EC and RL rollouts",
		}),
		rlSampledTimesteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erl_rl_sampled_timesteps_total",
			Help: "Total environment timesteps sampled by RL-actor rollouts only",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erl_iterations_total",
			Help: "Total workflow Step calls run",
		}),
		ecFitnessBest: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erl_ec_fitness_best",
			Help: "Best EC population fitness from the most recent Step",
		}),
		ecFitnessMean: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erl_ec_fitness_mean",
			Help: "Mean EC population fitness from the most recent Step",
		}),
		criticLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erl_td3_critic_loss",
			Help: "Mean TD3 critic loss from the most recent Step's final batch, agent 0",
		}),
		skippedUpdate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erl_skipped_updates_total",
			Help: "Number of Step calls that skipped the RL update (warm-up or empty buffer)",
		}),
		injections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erl_injections_total",
			Help: "Number of Step calls where RL-to-EC injection fired",
		}),
	}

	collectors := []prometheus.Collector{
		r.sampledTimesteps, r.sampledEpisodes, r.rlSampledTimesteps,
		r.iterations, r.ecFitnessBest, r.ecFitnessMean, r.criticLoss,
		r.skippedUpdate, r.injections,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, &Error{Op: "newprometheusreporter", Kind: KindConfiguration, Err: err}
		}
	}

	return r, nil
}

// Observe folds one Step call's results into the registered
// collectors. sampledDelta/rlSampledDelta/episodesDelta are the
// increase in WorkflowMetrics since the previous Observe call, since
// Prometheus counters only ever increase.
func (r *PrometheusReporter) Observe(sampledDelta, rlSampledDelta, episodesDelta uint64,
	train TrainMetrics) {
	r.sampledTimesteps.Add(float64(sampledDelta))
	r.sampledEpisodes.Add(float64(episodesDelta))
	r.rlSampledTimesteps.Add(float64(rlSampledDelta))
	r.iterations.Inc()

	r.ecFitnessBest.Set(train.ECFitnessBest)
	r.ecFitnessMean.Set(train.ECFitnessMean)
	if len(train.TD3.CriticLoss) > 0 {
		r.criticLoss.Set(train.TD3.CriticLoss[0])
	}
	if train.SkippedUpdate {
		r.skippedUpdate.Inc()
	}
	if train.Injected {
		r.injections.Inc()
	}
}
