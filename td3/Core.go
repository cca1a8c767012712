package td3

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/erl/buffer/replay"
	"github.com/samuelfneumann/erl/network"
	"github.com/samuelfneumann/erl/runningstat"
)

// Metrics summarizes one Core.Update call across every managed agent.
type Metrics struct {
	CriticLoss   []float64 // per agent, mean of the final critic-update batch
	ActorUpdated []bool    // per agent, whether an actor/target step ran
	Skipped      bool      // true if the buffer was empty, so no update ran
}

// Core owns num_rl_agents independent Agents plus the shared
// observation preprocessor, and runs TD3 gradient updates against a
// shared replay buffer. Because gorgonia graphs are tied to one
// network instance (no vmap primitive), each agent's graphs/VMs are
// built once in New and iterated over in a Go loop inside Update —
// every agent's gradient step only touches its own G.TapeMachine, so
// losses are naturally independent across the agent axis.
type Core struct {
	agents  []*agentGraphs
	obsPrep *runningstat.Normalizer
	cfg     Config
}

// agentGraphs bundles one Agent with the extra graph machinery needed
// to run a TD3 update: one training graph per critic, each with its
// own VM and solver (descended from DeepQ's gTrain holding both the
// prediction and the MSE-loss nodes), plus the
// target placeholder nodes DeepQ's Step() feeds target values into via
// G.Let.
type agentGraphs struct {
	agent *Agent

	critic1VM, critic2VM             G.VM
	targetCritic1VM, targetCritic2VM G.VM
	targetActorVM                    G.VM
	actorVM                          G.VM // runs agent.Actor + agent.CriticForActorLoss

	critic1Target *G.Node // placeholder fed with y via G.Let
	critic2Target *G.Node

	critic1Solver, critic2Solver G.Solver
	actorSolver                  G.Solver

	gradientSteps int
}

// New constructs a Core managing the given agents, sharing one obsPrep
// normalizer and the given TD3 config.
func New(agents []*Agent, obsPrep *runningstat.Normalizer,
	cfg Config) (*Core, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("td3: new: at least one agent required")
	}

	wrapped := make([]*agentGraphs, len(agents))
	for i, a := range agents {
		g, err := buildAgentGraphs(a, cfg)
		if err != nil {
			return nil, fmt.Errorf("td3: new: agent %d: %w", i, err)
		}
		wrapped[i] = g
	}

	return &Core{agents: wrapped, obsPrep: obsPrep, cfg: cfg}, nil
}

// buildAgentGraphs wires up the per-agent critic training graphs and
// the VMs needed to run targets, matching DeepQ's New(): one VM per
// network role (behavior/target/train), an Adam solver per trainable
// graph, and G.Grad computed once at construction.
func buildAgentGraphs(a *Agent, cfg Config) (*agentGraphs, error) {
	critic1Target := G.NewMatrix(a.Critic1.Graph(), tensor.Float64,
		G.WithShape(cfg.BatchSize, 1), G.WithName("critic1Target"))
	loss1 := G.Must(G.Sub(a.Critic1.Prediction()[0], critic1Target))
	loss1 = G.Must(G.Square(loss1))
	cost1 := G.Must(G.Mean(loss1))
	if _, err := G.Grad(cost1, a.Critic1.Learnables()...); err != nil {
		return nil, fmt.Errorf("buildagentgraphs: critic1 grad: %w", err)
	}

	critic2Target := G.NewMatrix(a.Critic2.Graph(), tensor.Float64,
		G.WithShape(cfg.BatchSize, 1), G.WithName("critic2Target"))
	loss2 := G.Must(G.Sub(a.Critic2.Prediction()[0], critic2Target))
	loss2 = G.Must(G.Square(loss2))
	cost2 := G.Must(G.Mean(loss2))
	if _, err := G.Grad(cost2, a.Critic2.Learnables()...); err != nil {
		return nil, fmt.Errorf("buildagentgraphs: critic2 grad: %w", err)
	}

	// The actor loss is -mean Q(s, pi(s)), computed by CriticForActorLoss,
	// a critic-shaped network sharing a.Actor's own graph. Critic1 lives
	// on a separate graph, so its prediction node can never appear in
	// this cost: gorgonia only differentiates within one graph.
	actorCost := G.Must(G.Mean(a.CriticForActorLoss.Prediction()[0]))
	actorCost = G.Must(G.Neg(actorCost))
	if _, err := G.Grad(actorCost, a.Actor.Learnables()...); err != nil {
		return nil, fmt.Errorf("buildagentgraphs: actor grad: %w", err)
	}

	critic1VM := G.NewTapeMachine(a.Critic1.Graph(),
		G.BindDualValues(a.Critic1.Learnables()...))
	critic2VM := G.NewTapeMachine(a.Critic2.Graph(),
		G.BindDualValues(a.Critic2.Learnables()...))
	targetCritic1VM := G.NewTapeMachine(a.TargetCritic1.Graph())
	targetCritic2VM := G.NewTapeMachine(a.TargetCritic2.Graph())
	targetActorVM := G.NewTapeMachine(a.TargetActor.Graph())
	actorVM := G.NewTapeMachine(a.Actor.Graph(),
		G.BindDualValues(a.Actor.Learnables()...))

	return &agentGraphs{
		agent:           a,
		critic1VM:       critic1VM,
		critic2VM:       critic2VM,
		targetCritic1VM: targetCritic1VM,
		targetCritic2VM: targetCritic2VM,
		targetActorVM:   targetActorVM,
		actorVM:         actorVM,
		critic1Target:   critic1Target,
		critic2Target:   critic2Target,
		critic1Solver:   G.NewAdamSolver(G.WithLearnRate(cfg.CriticLR)),
		critic2Solver:   G.NewAdamSolver(G.WithLearnRate(cfg.CriticLR)),
		actorSolver:     G.NewAdamSolver(G.WithLearnRate(cfg.ActorLR)),
	}, nil
}

// Update runs numUpdates TD3 gradient steps for every managed agent,
// sampling an independent minibatch per agent per step from buf.
func (c *Core) Update(buf *replay.Buffer, numUpdates int,
	rng *rand.Rand) (Metrics, error) {
	metrics := Metrics{
		CriticLoss:   make([]float64, len(c.agents)),
		ActorUpdated: make([]bool, len(c.agents)),
	}

	if buf.Size() == 0 {
		metrics.Skipped = true
		return metrics, nil
	}

	for step := 0; step < numUpdates; step++ {
		for i, ag := range c.agents {
			loss, actorUpdated, err := c.updateOne(ag, buf, rng)
			if err != nil {
				return metrics, fmt.Errorf("td3: update: agent %d: %w", i, err)
			}
			metrics.CriticLoss[i] = loss
			metrics.ActorUpdated[i] = metrics.ActorUpdated[i] || actorUpdated
		}
	}

	return metrics, nil
}

// updateOne runs a single TD3 critic (and, on the appropriate
// interval, actor) update for one agent.
func (c *Core) updateOne(ag *agentGraphs, buf *replay.Buffer,
	rng *rand.Rand) (loss float64, actorUpdated bool, err error) {
	batch, err := buf.Sample(c.cfg.BatchSize, rng)
	if err != nil {
		return 0, false, fmt.Errorf("updateone: sample: %w", err)
	}

	obs := c.maybeNormalize(batch.Obs)
	nextObs := c.maybeNormalize(batch.NextObs)

	// Target action: scale * tanh(targetActor(o') + clip(N(0, sigma), -c, c)).
	if err := ag.agent.TargetActor.SetInput(denseToFlat(nextObs)); err != nil {
		return 0, false, fmt.Errorf("updateone: target actor input: %w", err)
	}
	ag.targetActorVM.RunAll()
	rawTargetAction := append([]float64(nil),
		ag.agent.TargetActor.Output()[0].Data().([]float64)...)
	ag.targetActorVM.Reset()

	noise := distuv.Normal{Mu: 0, Sigma: c.cfg.PolicySmoothingStd, Src: rng}
	for i := range rawTargetAction {
		n := noise.Rand()
		if n > c.cfg.NoiseClip {
			n = c.cfg.NoiseClip
		} else if n < -c.cfg.NoiseClip {
			n = -c.cfg.NoiseClip
		}
		rawTargetAction[i] += n
	}
	targetAction := squash(rawTargetAction, c.cfg.ActionScale)

	targetInput := concatObsAction(nextObs, targetAction, c.cfg.ObsDim,
		c.cfg.ActionDim)

	if err := ag.agent.TargetCritic1.SetInput(targetInput); err != nil {
		return 0, false, fmt.Errorf("updateone: target critic1 input: %w", err)
	}
	ag.targetCritic1VM.RunAll()
	q1 := append([]float64(nil),
		ag.agent.TargetCritic1.Output()[0].Data().([]float64)...)
	ag.targetCritic1VM.Reset()

	if err := ag.agent.TargetCritic2.SetInput(targetInput); err != nil {
		return 0, false, fmt.Errorf("updateone: target critic2 input: %w", err)
	}
	ag.targetCritic2VM.RunAll()
	q2 := append([]float64(nil),
		ag.agent.TargetCritic2.Output()[0].Data().([]float64)...)
	ag.targetCritic2VM.Reset()

	y := make([]float64, c.cfg.BatchSize)
	for i := 0; i < c.cfg.BatchSize; i++ {
		minQ := q1[i]
		if q2[i] < minQ {
			minQ = q2[i]
		}
		y[i] = batch.Reward[i] + c.cfg.Gamma*(1-batch.Termination[i])*minQ
	}
	yTensor := tensor.New(tensor.WithShape(c.cfg.BatchSize, 1),
		tensor.WithBacking(y))

	obsActionFlat := concatObsAction(obs, denseToFlat(batch.Action),
		c.cfg.ObsDim, c.cfg.ActionDim)

	if err := ag.agent.Critic1.SetInput(obsActionFlat); err != nil {
		return 0, false, fmt.Errorf("updateone: critic1 input: %w", err)
	}
	if err := G.Let(ag.critic1Target, yTensor); err != nil {
		return 0, false, fmt.Errorf("updateone: critic1 target: %w", err)
	}
	ag.critic1VM.RunAll()
	critic1Loss := sumSquaredDiff(ag.agent.Critic1.Output()[0].Data().([]float64), y)
	ag.critic1Solver.Step(ag.agent.Critic1.Model())
	ag.critic1VM.Reset()

	if err := ag.agent.Critic2.SetInput(obsActionFlat); err != nil {
		return 0, false, fmt.Errorf("updateone: critic2 input: %w", err)
	}
	if err := G.Let(ag.critic2Target, yTensor); err != nil {
		return 0, false, fmt.Errorf("updateone: critic2 target: %w", err)
	}
	ag.critic2VM.RunAll()
	critic2Loss := sumSquaredDiff(ag.agent.Critic2.Output()[0].Data().([]float64), y)
	ag.critic2Solver.Step(ag.agent.Critic2.Model())
	ag.critic2VM.Reset()

	ag.gradientSteps++

	if ag.gradientSteps%c.cfg.ActorUpdateInterval == 0 {
		// Sync the latest critic weights into the actor's own graph so
		// the gradient below reflects the current Q function, then run
		// the actor forward through its embedded CriticForActorLoss copy
		// and step only the actor's learnables.
		if err := network.Set(ag.agent.CriticForActorLoss,
			ag.agent.Critic1); err != nil {
			return 0, false, fmt.Errorf(
				"updateone: sync critic-for-actor-loss: %w", err)
		}
		if err := ag.agent.Actor.SetInput(denseToFlat(obs)); err != nil {
			return 0, false, fmt.Errorf("updateone: actor input: %w", err)
		}
		ag.actorVM.RunAll()
		ag.actorSolver.Step(ag.agent.Actor.Model())
		ag.actorVM.Reset()

		if err := network.Polyak(ag.agent.TargetActor, ag.agent.Actor,
			c.cfg.Tau); err != nil {
			return 0, false, fmt.Errorf("updateone: polyak actor: %w", err)
		}
		if err := network.Polyak(ag.agent.TargetCritic1, ag.agent.Critic1,
			c.cfg.Tau); err != nil {
			return 0, false, fmt.Errorf("updateone: polyak critic1: %w", err)
		}
		if err := network.Polyak(ag.agent.TargetCritic2, ag.agent.Critic2,
			c.cfg.Tau); err != nil {
			return 0, false, fmt.Errorf("updateone: polyak critic2: %w", err)
		}

		actorUpdated = true
	}

	return (critic1Loss + critic2Loss) / 2, actorUpdated, nil
}

func sumSquaredDiff(pred, target []float64) float64 {
	var sum float64
	for i := range pred {
		d := pred[i] - target[i]
		sum += d * d
	}
	return sum / float64(len(pred))
}

// maybeNormalize applies the shared observation preprocessor if
// present; Core is also usable with obsPrep == nil for tests that
// don't exercise normalization.
func (c *Core) maybeNormalize(obs *mat.Dense) *mat.Dense {
	if c.obsPrep == nil {
		return obs
	}
	rows, cols := obs.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		row := c.obsPrep.Normalize(mat.NewVecDense(cols, obs.RawRowView(r)))
		for col := 0; col < cols; col++ {
			out.Set(r, col, row.AtVec(col))
		}
	}
	return out
}
