package td3

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/erl/network"
)

// Agent bundles one RL slot's full network set: an actor and its
// Polyak-averaged target, and twin critics with their targets. Actor
// and critic networks share their graphs with the rest of a Core's
// per-agent update machinery (see agentGraphs in Core.go); Agent
// itself is the public, checkpointable surface.
type Agent struct {
	Actor, TargetActor           network.NeuralNet
	Critic1, Critic2             network.NeuralNet
	TargetCritic1, TargetCritic2 network.NeuralNet

	// CriticForActorLoss is a critic-shaped network built on the same
	// graph as Actor, fed by Actor's own squashed output concatenated
	// with Actor's input node. gorgonia can only backpropagate a cost
	// into a graph's own nodes, so the actor loss (-mean Q(s, pi(s)))
	// has to be computed by a critic living on the actor's graph rather
	// than by Critic1 itself. Its weights are never trained directly;
	// Core syncs them from Critic1 via network.Set before every actor
	// update, so only the gradient flowing back into Actor's learnables
	// is ever used.
	CriticForActorLoss network.NeuralNet

	actScale float64

	// actNet/actVM are a dedicated batch-1 clone of Actor used only by
	// Act(), so that interaction with the environment never disturbs
	// the batched training graph's input node.
	actNet network.NeuralNet
	actVM  G.VM
}

// hiddenLayerOpts builds the biases/activations slices NewMultiHeadMLP
// needs, one ReLU hidden layer per cfg.HiddenSizes entry.
func hiddenLayerOpts(cfg Config) ([]bool, []*network.Activation) {
	biases := make([]bool, len(cfg.HiddenSizes))
	activations := make([]*network.Activation, len(cfg.HiddenSizes))
	for i := range cfg.HiddenSizes {
		biases[i] = true
		activations[i] = network.ReLU()
	}
	return biases, activations
}

// NewAgent constructs one RL slot's actor/critic/target network set.
// Critics live on their own graphs (targets are never run through the
// training VM, matching DeepQ's separate vm/trainVM/targetVM split),
// but the actor shares its graph with a CriticForActorLoss copy so
// that the actor-loss gradient can flow back through the squash and
// into the actor's own learnables in one backward pass. The actor's
// raw output is bounded to [-ActionScale, ActionScale] via tanh+scale
// built directly into the graph (rather than in Go, as Act() does for
// inference) precisely because this path needs to differentiate
// through the squash.
func NewAgent(cfg Config, init G.InitWFn) (*Agent, error) {
	biases, activations := hiddenLayerOpts(cfg)

	actorGraph := G.NewGraph()
	obsInput := G.NewMatrix(actorGraph, tensor.Float64,
		G.WithShape(cfg.BatchSize, cfg.ObsDim), G.WithName("actorObsInput"),
		G.WithInit(G.Zeroes()))

	actor, err := network.NewMultiHeadMLPFromInput([]*G.Node{obsInput},
		cfg.ActionDim, actorGraph, cfg.HiddenSizes, biases, init, activations)
	if err != nil {
		return nil, fmt.Errorf("newagent: actor: %w", err)
	}

	squashed := G.Must(G.Tanh(actor.Prediction()[0]))
	scaled := G.Must(G.Mul(squashed, G.NewConstant(cfg.ActionScale)))

	criticForActorLoss, err := network.NewMultiHeadMLPFromInput(
		[]*G.Node{obsInput, scaled}, 1, actorGraph, cfg.HiddenSizes, biases,
		init, activations)
	if err != nil {
		return nil, fmt.Errorf("newagent: critic-for-actor-loss: %w", err)
	}

	targetActor, err := actor.CloneWithBatch(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("newagent: target actor: %w", err)
	}

	critic1Graph := G.NewGraph()
	trainCritic1, err := network.NewMultiHeadMLP(cfg.ObsDim+cfg.ActionDim,
		cfg.BatchSize, 1, critic1Graph, cfg.HiddenSizes, biases, init,
		activations)
	if err != nil {
		return nil, fmt.Errorf("newagent: critic1: %w", err)
	}
	targetCritic1, err := trainCritic1.CloneWithBatch(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("newagent: target critic1: %w", err)
	}

	critic2Graph := G.NewGraph()
	trainCritic2, err := network.NewMultiHeadMLP(cfg.ObsDim+cfg.ActionDim,
		cfg.BatchSize, 1, critic2Graph, cfg.HiddenSizes, biases, init,
		activations)
	if err != nil {
		return nil, fmt.Errorf("newagent: critic2: %w", err)
	}
	targetCritic2, err := trainCritic2.CloneWithBatch(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("newagent: target critic2: %w", err)
	}

	actNet, err := actor.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("newagent: act net: %w", err)
	}
	actVM := G.NewTapeMachine(actNet.Graph())

	return &Agent{
		Actor:              actor,
		TargetActor:        targetActor,
		Critic1:            trainCritic1,
		Critic2:            trainCritic2,
		TargetCritic1:      targetCritic1,
		TargetCritic2:      targetCritic2,
		CriticForActorLoss: criticForActorLoss,
		actScale:           cfg.ActionScale,
		actNet:             actNet,
		actVM:              actVM,
	}, nil
}

// Act computes the deterministic action this agent's current actor
// takes at obs: a forward pass through the batch-1 inference clone,
// squashed with tanh and scaled to [-actScale, actScale] in plain Go,
// mirroring the teacher's environments clipping actions outside any
// computational graph.
func (a *Agent) Act(obs mat.Vector) mat.Vector {
	data := make([]float64, obs.Len())
	for i := range data {
		data[i] = obs.AtVec(i)
	}

	if err := network.Set(a.actNet, a.Actor); err != nil {
		panic(fmt.Sprintf("td3: act: could not sync inference net: %v", err))
	}
	if err := a.actNet.SetInput(data); err != nil {
		panic(fmt.Sprintf("td3: act: could not set input: %v", err))
	}

	a.actVM.RunAll()
	raw := a.actNet.Output()[0].Data().([]float64)
	a.actVM.Reset()

	action := make([]float64, len(raw))
	for i, v := range raw {
		action[i] = math.Tanh(v) * a.actScale
	}
	return mat.NewVecDense(len(action), action)
}

// squash applies tanh and scaling to a flat batch of raw actor
// outputs (shape [batch*actionDim]) and returns the result as a new
// slice, used by Core.Update when turning target-actor raw outputs into
// bounded actions fed to the critics.
func squash(raw []float64, scale float64) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = math.Tanh(v) * scale
	}
	return out
}

// concatObsAction lays out a [batch, obsDim+actionDim] flat tensor by
// concatenating each row's observation and action, matching the
// critic networks' combined input layout.
func concatObsAction(obs *mat.Dense, action []float64, obsDim,
	actionDim int) []float64 {
	rows, _ := obs.Dims()
	out := make([]float64, rows*(obsDim+actionDim))
	for r := 0; r < rows; r++ {
		copy(out[r*(obsDim+actionDim):r*(obsDim+actionDim)+obsDim],
			obs.RawRowView(r))
		copy(out[r*(obsDim+actionDim)+obsDim:(r+1)*(obsDim+actionDim)],
			action[r*actionDim:(r+1)*actionDim])
	}
	return out
}

// denseToFlat flattens a *mat.Dense row-major.
func denseToFlat(d *mat.Dense) []float64 {
	rows, cols := d.Dims()
	out := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		copy(out[r*cols:(r+1)*cols], d.RawRowView(r))
	}
	return out
}
