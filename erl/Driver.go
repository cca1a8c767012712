package erl

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/erl/buffer/replay"
	"github.com/samuelfneumann/erl/collector"
	"github.com/samuelfneumann/erl/ec"
	"github.com/samuelfneumann/erl/environment/envbank"
	"github.com/samuelfneumann/erl/network"
	"github.com/samuelfneumann/erl/runningstat"
	"github.com/samuelfneumann/erl/td3"
)

// State is the full mutable state threaded through repeated Step
// calls: every Agent's RL parameters, the EC optimizer's own State,
// the shared replay buffer, the observation preprocessor, and the
// root RNG. Rand is never read from a package-global source; Step
// splits it into fresh sub-generators every call and hands one of them
// on as the returned State's Rand, matching the teacher's explicit
// key-threading discipline (Config.Create()/Selectors.go).
type State struct {
	Agents  []*td3.Agent
	ObsPrep *runningstat.Normalizer
	EC      ec.State
	Buffer  *replay.Buffer
	Metrics WorkflowMetrics
	Rand    *rand.Rand
}

// ecInjector implements one Variant's RL-to-EC injection policy,
// folding in the EC Tell/TellExternal call itself since the two are
// inseparable per variant (Origin overwrites population rows before
// an ordinary Tell; GA/ES route through TellExternal instead).
type ecInjector func(d *Driver, ecState ec.State, iteration uint64,
	agents []*td3.Agent, fitnesses, rlFitnesses []float64,
	rng *rand.Rand) (ec.State, ec.TellInfo, bool, error)

// Driver bundles one Variant's fixed policy, the optimizer and TD3
// core it sequences every Step, and the population/collector
// machinery shared by the EC and RL rollouts.
type Driver struct {
	variant Variant
	cfg     Config

	optimizer ec.Optimizer
	core      *td3.Core
	bank      *envbank.Bank

	pop   []*popActor
	codec *network.Codec

	inject ecInjector
}

// NewDriver constructs a Driver for the given Variant, building the EC
// population's actor networks from cfg and wiring the three action
// functions the rollouts need.
func NewDriver(variant Variant, cfg Config, optimizer ec.Optimizer,
	core *td3.Core, bank *envbank.Bank, init G.InitWFn) (*Driver, error) {
	if optimizer == nil || core == nil || bank == nil {
		return nil, &Error{Op: "newdriver", Kind: KindConfiguration,
			Err: fmt.Errorf("optimizer, core and bank must all be non-nil")}
	}
	if variant != Origin {
		if _, ok := optimizer.(ec.ExternalOptimizer); !ok {
			return nil, &Error{Op: "newdriver", Kind: KindConfiguration,
				Err: fmt.Errorf("variant %v requires an ec.ExternalOptimizer", variant)}
		}
	}

	pop, codec, err := buildPopulation(cfg, init, cfg.PopSize)
	if err != nil {
		return nil, &Error{Op: "newdriver", Kind: KindConfiguration, Err: err}
	}

	d := &Driver{
		variant:   variant,
		cfg:       cfg,
		optimizer: optimizer,
		core:      core,
		bank:      bank,
		pop:       pop,
		codec:     codec,
	}

	switch variant {
	case GA:
		d.inject = injectGA
	case ES:
		d.inject = injectES
	default:
		d.inject = injectOrigin
	}

	return d, nil
}

// rolloutActionFns builds the EC and RL rollout action functions
// against s.ObsPrep, folding each observation into the running
// normalizer's statistics as it's seen (both sides of a rollout
// contribute to the same shared preprocessor).
func (d *Driver) rolloutActionFns(s State) (ecFn, rlFn collector.ActionFn) {
	normalize := func(obs mat.Vector) mat.Vector {
		if s.ObsPrep != nil {
			s.ObsPrep.Update(obs)
			return s.ObsPrep.Normalize(obs)
		}
		return obs
	}

	ecFn = func(agent collector.AgentView, obs mat.Vector, rng *rand.Rand) mat.Vector {
		return agent.Act(normalize(obs))
	}

	noiseStd := d.cfg.ExplorationNoiseStd
	scale := d.cfg.ActionScale
	rlFn = func(agent collector.AgentView, obs mat.Vector, rng *rand.Rand) mat.Vector {
		raw := agent.Act(normalize(obs))
		if noiseStd <= 0 {
			return raw
		}
		noise := distuv.Normal{Mu: 0, Sigma: noiseStd, Src: rng}
		out := make([]float64, raw.Len())
		for i := 0; i < raw.Len(); i++ {
			v := raw.AtVec(i) + noise.Rand()
			if v > scale {
				v = scale
			} else if v < -scale {
				v = -scale
			}
			out[i] = v
		}
		return mat.NewVecDense(len(out), out)
	}

	return ecFn, rlFn
}

// evalActionFn builds the deterministic action function Evaluate
// uses: normalizes through a frozen s.ObsPrep but never updates it,
// since C8 must never mutate training state.
func evalActionFn(s State) collector.ActionFn {
	return func(agent collector.AgentView, obs mat.Vector, rng *rand.Rand) mat.Vector {
		o := obs
		if s.ObsPrep != nil {
			o = s.ObsPrep.Normalize(obs)
		}
		return agent.Act(o)
	}
}

// splitRand draws four independent sub-generators from root,
// consuming exactly four int64s from it, so that re-running Step with
// the same State.Rand always reproduces the same split.
func splitRand(root *rand.Rand) (ecRng, rlRng, learnRng, nextRng *rand.Rand) {
	ecRng = rand.New(rand.NewSource(root.Int63()))
	rlRng = rand.New(rand.NewSource(root.Int63()))
	learnRng = rand.New(rand.NewSource(root.Int63()))
	nextRng = rand.New(rand.NewSource(root.Int63()))
	return ecRng, rlRng, learnRng, nextRng
}

// Step implements the 9-point workflow transition: Ask, EC rollout,
// (gated) RL rollout, fitness computation, (gated) RL update, (gated)
// injection + Tell, metrics bookkeeping.
func (d *Driver) Step(s State) (TrainMetrics, State, error) {
	cfg := d.cfg
	next := s
	next.Metrics.Iterations++

	ecRng, rlRng, learnRng, nextRng := splitRand(s.Rand)
	next.Rand = nextRng

	ecActionFn, rlActionFn := d.rolloutActionFns(s)

	// 1. Ask + form the population's agent state.
	candidates, ecState, err := d.optimizer.Ask(s.EC, ecRng)
	if err != nil {
		return TrainMetrics{}, s, &Error{Op: "step: ask", Kind: KindNumericFailure, Err: err}
	}
	if err := applyPopulation(d.codec, d.pop, candidates); err != nil {
		return TrainMetrics{}, s, &Error{Op: "step: applypopulation", Kind: KindShapeMismatch, Err: err}
	}

	// 2. EC rollout; append every genuine transition to the shared buffer.
	ecViews := make([]collector.AgentView, len(d.pop))
	for i, p := range d.pop {
		ecViews[i] = p
	}
	ecMetric, ecTraj, err := collector.Evaluate(d.bank, ecViews,
		cfg.EpisodesForFitness, cfg.MaxEpisodeSteps, ecActionFn, ecRng)
	if err != nil {
		return TrainMetrics{}, s, &Error{Op: "step: ecrollout", Kind: KindNumericFailure, Err: err}
	}
	appendTrajectory(next.Buffer, ecTraj, cfg)

	ecTimesteps, ecEpisodes := rolloutCounts(ecMetric)
	next.Metrics.SampledTimesteps += uint64(ecTimesteps)
	next.Metrics.SampledEpisodes += uint64(ecEpisodes)

	fitnesses := meanReturns(ecMetric.EpisodeReturns)

	// 3-4. RL rollout + update, gated by warm-up for Origin only.
	runRL := d.variant != Origin || next.Metrics.Iterations > cfg.WarmupIters

	var rlFitnesses []float64
	var td3Metrics td3.Metrics
	if runRL {
		rlViews := make([]collector.AgentView, len(s.Agents))
		for i, a := range s.Agents {
			rlViews[i] = a
		}
		rlMetric, rlTraj, err := collector.Evaluate(d.bank, rlViews,
			cfg.RolloutEpisodes, cfg.MaxEpisodeSteps, rlActionFn, rlRng)
		if err != nil {
			return TrainMetrics{}, s, &Error{Op: "step: rlrollout", Kind: KindNumericFailure, Err: err}
		}
		appendTrajectory(next.Buffer, rlTraj, cfg)

		rlTimesteps, rlEpisodes := rolloutCounts(rlMetric)
		next.Metrics.SampledTimesteps += uint64(rlTimesteps)
		next.Metrics.RLSampledTimesteps += uint64(rlTimesteps)
		next.Metrics.SampledEpisodes += uint64(rlEpisodes)
		rlFitnesses = meanReturns(rlMetric.EpisodeReturns)

		numUpdates := cfg.UpdatesPerIter
		if numUpdates <= 0 {
			// total_timesteps includes this iteration's own contribution,
			// already folded into next.Metrics.SampledTimesteps above.
			n := math.Ceil(float64(next.Metrics.SampledTimesteps) * cfg.RLUpdatesFracPerIter)
			numUpdates = int(n) / cfg.ActorUpdateInterval
			if numUpdates < 1 {
				numUpdates = 1
			}
		}

		td3Metrics, err = d.core.Update(next.Buffer, numUpdates, learnRng)
		if err != nil {
			return TrainMetrics{}, s, &Error{Op: "step: rlupdate", Kind: KindNumericFailure, Err: err}
		}
	}

	// 5. Injection + Tell.
	var info ec.TellInfo
	injected := false
	if runRL {
		ecState, info, injected, err = d.inject(d, ecState, next.Metrics.Iterations,
			s.Agents, fitnesses, rlFitnesses, nextRng)
		if err != nil {
			return TrainMetrics{}, s, &Error{Op: "step: inject", Kind: KindNumericFailure, Err: err}
		}
	} else {
		info, ecState, err = d.optimizer.Tell(ecState, fitnesses, ecRng)
		if err != nil {
			return TrainMetrics{}, s, &Error{Op: "step: tell", Kind: KindNumericFailure, Err: err}
		}
	}
	next.EC = ecState

	train := TrainMetrics{
		ECFitnessBest: info.BestFitness,
		ECFitnessMean: info.MeanFitness,
		TD3:           td3Metrics,
		SkippedUpdate: !runRL || td3Metrics.Skipped,
		Injected:      injected,
	}

	return train, next, nil
}

// Evaluate runs deterministic-only rollouts of the current RL actors
// on the driver's bank, in whatever autoreset mode that bank was built
// with, touching neither Buffer nor EC state.
func (d *Driver) Evaluate(s State) (EvalMetrics, error) {
	views := make([]collector.AgentView, len(s.Agents))
	for i, a := range s.Agents {
		views[i] = a
	}

	rng := s.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	metric, _, err := collector.Evaluate(d.bank, views, d.cfg.RolloutEpisodes,
		d.cfg.MaxEpisodeSteps, evalActionFn(s), rng)
	if err != nil {
		return EvalMetrics{}, &Error{Op: "evaluate", Kind: KindNumericFailure, Err: err}
	}

	var sumReturn, sumLength float64
	var count int
	for p := range metric.EpisodeReturns {
		for e := range metric.EpisodeReturns[p] {
			sumReturn += metric.EpisodeReturns[p][e]
			sumLength += float64(metric.EpisodeLengths[p][e])
			count++
		}
	}
	if count == 0 {
		return EvalMetrics{}, nil
	}
	return EvalMetrics{
		MeanReturn: sumReturn / float64(count),
		MeanLength: sumLength / float64(count),
	}, nil
}

// rolloutCounts sums episode lengths and counts the (member, env)
// pairs rolled out, used to advance WorkflowMetrics.
func rolloutCounts(m collector.EpisodeMetric) (timesteps, episodes int) {
	for p := range m.EpisodeLengths {
		for _, l := range m.EpisodeLengths[p] {
			timesteps += l
			episodes++
		}
	}
	return timesteps, episodes
}

// meanReturns averages EpisodeReturns over the env axis, one fitness
// scalar per population member.
func meanReturns(returns [][]float64) []float64 {
	out := make([]float64, len(returns))
	for p, row := range returns {
		var sum float64
		for _, r := range row {
			sum += r
		}
		if len(row) > 0 {
			out[p] = sum / float64(len(row))
		}
	}
	return out
}

// appendTrajectory unpacks a Trajectory's flat per-timestep rows along
// the env axis and inserts every genuine (PerEnvValid) transition into
// buf, attributing reward and termination to the one env it belongs
// to rather than the pooled per-step aggregate.
func appendTrajectory(buf *replay.Buffer, traj collector.Trajectory, cfg Config) {
	obsDim, actionDim := cfg.ObsDim, cfg.ActionDim

	for p := range traj.Obs {
		for t := range traj.Obs[p] {
			obsRow := traj.Obs[p][t]
			actionRow := traj.Actions[p][t]
			nextRow := traj.NextObsOriginal[p][t]
			numEnvs := len(obsRow) / obsDim

			batch := make([]replay.Transition, 0, numEnvs)
			mask := make([]bool, 0, numEnvs)
			for e := 0; e < numEnvs; e++ {
				valid := traj.PerEnvValid[p][t][e]
				term := 0.0
				if traj.PerEnvTermination[p][t][e] {
					term = 1.0
				}
				obs := append([]float64(nil), obsRow[e*obsDim:(e+1)*obsDim]...)
				nextObs := append([]float64(nil), nextRow[e*obsDim:(e+1)*obsDim]...)
				action := append([]float64(nil), actionRow[e*actionDim:(e+1)*actionDim]...)

				batch = append(batch, replay.Transition{
					Obs:         mat.NewVecDense(obsDim, obs),
					NextObs:     mat.NewVecDense(obsDim, nextObs),
					Action:      mat.NewVecDense(actionDim, action),
					Reward:      traj.PerEnvReward[p][t][e],
					Termination: term,
				})
				mask = append(mask, valid)
			}
			buf.Add(batch, mask)
		}
	}
}

// injectOrigin overwrites the NumRLAgents lowest-fitness population
// rows with the current RL actors' params every RLInjectionInterval
// iterations, then runs an ordinary Tell.
func injectOrigin(d *Driver, state ec.State, iteration uint64, agents []*td3.Agent,
	fitnesses, rlFitnesses []float64, rng *rand.Rand) (ec.State, ec.TellInfo, bool, error) {
	injected := false
	if d.cfg.RLInjectionInterval > 0 && iteration%d.cfg.RLInjectionInterval == 0 {
		if err := d.overwriteWeakest(state, agents, fitnesses); err != nil {
			return state, ec.TellInfo{}, false, err
		}
		injected = true
	}
	info, next, err := d.optimizer.Tell(state, fitnesses, rng)
	return next, info, injected, err
}

// overwriteWeakest replaces the NumRLAgents population rows with the
// lowest fitness with the flattened params of agents, via codec —
// agents share the EC population's actor architecture, so the same
// codec applies to both.
func (d *Driver) overwriteWeakest(state ec.State, agents []*td3.Agent, fitnesses []float64) error {
	if state.Pop == nil || len(agents) == 0 {
		return nil
	}
	n := len(agents)
	if n > d.cfg.NumRLAgents {
		n = d.cfg.NumRLAgents
	}
	idx := lowestFitnessIndices(fitnesses, n)

	nets := make([]network.NeuralNet, n)
	for i := 0; i < n; i++ {
		nets[i] = agents[i].Actor
	}
	vecs, err := d.codec.BatchToVector(nets)
	if err != nil {
		return fmt.Errorf("overwriteweakest: %w", err)
	}
	src, ok := vecs.Data().([]float64)
	if !ok {
		return fmt.Errorf("overwriteweakest: agent vectors not backed by []float64")
	}
	dst, ok := state.Pop.Data().([]float64)
	if !ok {
		return fmt.Errorf("overwriteweakest: population not backed by []float64")
	}

	dim := d.codec.Dim()
	for i, target := range idx {
		copy(dst[target*dim:(target+1)*dim], src[i*dim:(i+1)*dim])
	}
	return nil
}

// lowestFitnessIndices returns the indices of the n lowest entries of
// fitnesses, unsorted among themselves.
func lowestFitnessIndices(fitnesses []float64, n int) []int {
	type pair struct {
		idx int
		val float64
	}
	pairs := make([]pair, len(fitnesses))
	for i, v := range fitnesses {
		pairs[i] = pair{i, v}
	}
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].val < pairs[i].val {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = pairs[i].idx
	}
	return out
}

// injectGA ranks the combined population+RL set via TellExternal every
// RLInjectionInterval iterations; on off-iterations it falls back to
// an ordinary Tell so the RL actors never silently compete every step.
func injectGA(d *Driver, state ec.State, iteration uint64, agents []*td3.Agent,
	fitnesses, rlFitnesses []float64, rng *rand.Rand) (ec.State, ec.TellInfo, bool, error) {
	ext, ok := d.optimizer.(ec.ExternalOptimizer)
	if !ok {
		info, next, err := d.optimizer.Tell(state, fitnesses, rng)
		return next, info, false, err
	}
	if d.cfg.RLInjectionInterval == 0 || iteration%d.cfg.RLInjectionInterval != 0 {
		info, next, err := d.optimizer.Tell(state, fitnesses, rng)
		return next, info, false, err
	}

	nets := make([]network.NeuralNet, len(agents))
	for i, a := range agents {
		nets[i] = a.Actor
	}
	extPop, err := d.codec.BatchToVector(nets)
	if err != nil {
		return state, ec.TellInfo{}, false, fmt.Errorf("injectga: %w", err)
	}
	state.ExternalPop = extPop

	combined := append(append([]float64{}, fitnesses...), rlFitnesses...)
	info, next, err := ext.TellExternal(state, combined, rng)
	return next, info, true, err
}

// injectES appends the RL actor's implied candidate and fitness to
// every OpenES/VanillaESMod update, unconditionally (ES has no
// injection cadence: the mean update always sees the RL side).
func injectES(d *Driver, state ec.State, iteration uint64, agents []*td3.Agent,
	fitnesses, rlFitnesses []float64, rng *rand.Rand) (ec.State, ec.TellInfo, bool, error) {
	ext, ok := d.optimizer.(ec.ExternalOptimizer)
	if !ok {
		info, next, err := d.optimizer.Tell(state, fitnesses, rng)
		return next, info, false, err
	}

	nets := make([]network.NeuralNet, len(agents))
	for i, a := range agents {
		nets[i] = a.Actor
	}
	extPop, err := d.codec.BatchToVector(nets)
	if err != nil {
		return state, ec.TellInfo{}, false, fmt.Errorf("injectes: %w", err)
	}
	state.ExternalPop = extPop

	combined := append(append([]float64{}, fitnesses...), rlFitnesses...)
	info, next, err := ext.TellExternal(state, combined, rng)
	return next, info, true, err
}
