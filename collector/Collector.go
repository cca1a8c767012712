// Package collector runs fixed-horizon episodes of a population of
// agents against a vectorized environment.Bank and reports both compact
// episode metrics and the raw padded trajectories needed to feed the
// shared replay buffer, generalizing the teacher's agent-environment
// interaction loops (e.g. agent/nonlinear/discrete/deepq's training
// driver) from a single agent to a population stepped in lockstep.
package collector

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/erl/environment/envbank"
)

// AgentView is the narrow read-only view of an agent (EC population
// member or RL agent) that the collector needs to compute actions. Both
// ec population members and td3.Agent implement it.
type AgentView interface {
	Act(obs mat.Vector) mat.Vector
}

// ActionFn computes the action an agent takes at a given observation,
// optionally injecting exploration randomness via rng. Passing a
// deterministic implementation (ignoring rng) realizes the
// evaluate_actions form used by the evaluator; a stochastic
// implementation realizes the compute_actions form used during EC
// fitness rollouts when exploration is enabled.
type ActionFn func(agent AgentView, obs mat.Vector, rng *rand.Rand) mat.Vector

// EpisodeMetric reports, for every (population member, environment
// copy) pair, the length and undiscounted return of the episode
// collected.
type EpisodeMetric struct {
	EpisodeLengths [][]int     // [pop][env]
	EpisodeReturns [][]float64 // [pop][env]
}

// Trajectory holds the full padded rollout for every population member,
// with one row per timestep up to the fixed horizon. For each
// environment, the row of the step that ended its episode is still a
// genuine transition; rows after it are padding and must be stripped
// by the caller (PerEnvValid marks the genuine rows) before buffer
// insertion.
type Trajectory struct {
	Obs             [][][]float64 // [pop][T][env*obsDim]
	Actions         [][][]float64 // [pop][T][env*actionDim]
	Rewards         [][]float64   // [pop][T] summed over the env axis
	Dones           [][]bool      // [pop][T] any env done this step
	Terminations    [][]bool      // [pop][T]
	NextObsOriginal [][][]float64 // [pop][T][env*obsDim], true terminal obs pre-autoreset

	// PerEnvReward/PerEnvValid break the above per-timestep aggregates
	// back out along the env axis, which the replay buffer needs: a
	// transition is only genuine (PerEnvValid true) if its env had not
	// already finished this rollout's episode before this step, and its
	// reward must be attributed to that one env, not pooled across the
	// bank.
	PerEnvReward      [][][]float64 // [pop][T][env]
	PerEnvValid       [][][]bool    // [pop][T][env]
	PerEnvTermination [][][]bool    // [pop][T][env], natural end (not truncation) of this row's transition
}

// Evaluate resets the bank and steps it for at most
// numEpisodes*maxEpisodeSteps timesteps (bank.NumEnvs() environments
// stepped in parallel) for every agent in pop. It does not change the
// bank's autoreset mode. Only each env's first episode is recorded:
// once an env reports done, its later steps are neither counted in
// EpisodeMetric nor marked valid in PerEnvValid, so every env
// contributes one episode whatever numEpisodes is. The rollout stops
// early once every env has finished its first episode.
func Evaluate(bank *envbank.Bank, pop []AgentView, numEpisodes int,
	maxEpisodeSteps int, actionFn ActionFn, rng *rand.Rand,
) (EpisodeMetric, Trajectory, error) {
	if bank == nil {
		return EpisodeMetric{}, Trajectory{}, fmt.Errorf(
			"collector: evaluate: bank must not be nil")
	}

	metric := EpisodeMetric{
		EpisodeLengths: make([][]int, len(pop)),
		EpisodeReturns: make([][]float64, len(pop)),
	}
	traj := Trajectory{
		Obs:               make([][][]float64, len(pop)),
		Actions:           make([][][]float64, len(pop)),
		Rewards:           make([][]float64, len(pop)),
		Dones:             make([][]bool, len(pop)),
		Terminations:      make([][]bool, len(pop)),
		NextObsOriginal:   make([][][]float64, len(pop)),
		PerEnvReward:      make([][][]float64, len(pop)),
		PerEnvValid:       make([][][]bool, len(pop)),
		PerEnvTermination: make([][][]bool, len(pop)),
	}

	numEnvs := bank.NumEnvs()
	horizon := numEpisodes * maxEpisodeSteps

	for p, agent := range pop {
		steps := bank.Reset()

		obsRows := make([][]float64, 0, horizon)
		actionRows := make([][]float64, 0, horizon)
		rewardRows := make([]float64, 0, horizon)
		doneRows := make([]bool, 0, horizon)
		termRows := make([]bool, 0, horizon)
		nextObsRows := make([][]float64, 0, horizon)
		perEnvRewardRows := make([][]float64, 0, horizon)
		perEnvValidRows := make([][]bool, 0, horizon)
		perEnvTermRows := make([][]bool, 0, horizon)

		lengths := make([]int, numEnvs)
		returns := make([]float64, numEnvs)
		finished := make([]bool, numEnvs)

		for t := 0; t < horizon; t++ {
			actions := make([]mat.Vector, numEnvs)
			obsFlat := make([]float64, 0)
			actionFlat := make([]float64, 0)

			for e := 0; e < numEnvs; e++ {
				a := actionFn(agent, steps[e].Observation, rng)
				actions[e] = a
				obsFlat = append(obsFlat, denseOf(steps[e].Observation)...)
				actionFlat = append(actionFlat, denseOf(a)...)
			}

			next, infos, err := bank.Step(actions)
			if err != nil {
				return EpisodeMetric{}, Trajectory{}, fmt.Errorf(
					"collector: evaluate: %w", err)
			}

			var rewardSum float64
			anyDone := false
			anyTerm := false
			nextObsFlat := make([]float64, 0)
			envReward := make([]float64, numEnvs)
			envValid := make([]bool, numEnvs)
			envTerm := make([]bool, numEnvs)
			for e := 0; e < numEnvs; e++ {
				if !finished[e] {
					rewardSum += next[e].Reward
					lengths[e]++
					returns[e] = next[e].Reward + returns[e]
					envReward[e] = next[e].Reward
					envValid[e] = true
					envTerm[e] = infos[e].Termination
				}
				if infos[e].Termination || infos[e].Truncation {
					anyDone = true
					finished[e] = true
				}
				if infos[e].Termination {
					anyTerm = true
				}
				nextObsFlat = append(nextObsFlat, denseOf(next[e].Observation)...)
			}

			obsRows = append(obsRows, obsFlat)
			actionRows = append(actionRows, actionFlat)
			rewardRows = append(rewardRows, rewardSum)
			doneRows = append(doneRows, anyDone)
			termRows = append(termRows, anyTerm)
			nextObsRows = append(nextObsRows, nextObsFlat)
			perEnvRewardRows = append(perEnvRewardRows, envReward)
			perEnvValidRows = append(perEnvValidRows, envValid)
			perEnvTermRows = append(perEnvTermRows, envTerm)

			steps = next

			allDone := true
			for e := 0; e < numEnvs; e++ {
				if !finished[e] {
					allDone = false
					break
				}
			}
			if allDone {
				break
			}
		}

		metric.EpisodeLengths[p] = lengths
		metric.EpisodeReturns[p] = returns
		traj.Obs[p] = obsRows
		traj.Actions[p] = actionRows
		traj.Rewards[p] = rewardRows
		traj.Dones[p] = doneRows
		traj.Terminations[p] = termRows
		traj.NextObsOriginal[p] = nextObsRows
		traj.PerEnvReward[p] = perEnvRewardRows
		traj.PerEnvValid[p] = perEnvValidRows
		traj.PerEnvTermination[p] = perEnvTermRows
	}

	return metric, traj, nil
}

func denseOf(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

