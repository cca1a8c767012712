package erl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/erl/network"
)

// popActor wraps one EC population member's actor-only network as a
// collector.AgentView, squashing its raw output with tanh+scale in Go,
// exactly as td3.Agent.Act does for RL actors — EC and RL population
// members are interchangeable from the collector's point of view.
type popActor struct {
	net   network.NeuralNet
	vm    G.VM
	scale float64
}

func newPopActor(net network.NeuralNet, scale float64) *popActor {
	return &popActor{net: net, vm: G.NewTapeMachine(net.Graph()), scale: scale}
}

func (p *popActor) Act(obs mat.Vector) mat.Vector {
	data := make([]float64, obs.Len())
	for i := range data {
		data[i] = obs.AtVec(i)
	}
	if err := p.net.SetInput(data); err != nil {
		panic(fmt.Sprintf("erl: popactor: act: set input: %v", err))
	}
	p.vm.RunAll()
	raw := p.net.Output()[0].Data().([]float64)
	p.vm.Reset()

	action := make([]float64, len(raw))
	for i, v := range raw {
		action[i] = math.Tanh(v) * p.scale
	}
	return mat.NewVecDense(len(action), action)
}

// buildActorArch constructs one fresh batch-1 actor network on its own
// graph, with the hidden-layer shape and activations the whole run
// shares (one ReLU layer per cfg.HiddenSizes entry, Identity final
// layer, matching td3.hiddenLayerOpts/NewAgent's actor architecture).
func buildActorArch(cfg Config, init G.InitWFn) (network.NeuralNet, error) {
	biases := make([]bool, len(cfg.HiddenSizes))
	activations := make([]*network.Activation, len(cfg.HiddenSizes))
	for i := range cfg.HiddenSizes {
		biases[i] = true
		activations[i] = network.ReLU()
	}
	g := G.NewGraph()
	return network.NewMultiHeadMLP(cfg.ObsDim, 1, cfg.ActionDim, g,
		cfg.HiddenSizes, biases, init, activations)
}

// buildPopulation constructs n fresh popActors sharing cfg's actor
// architecture, each wrapped in its own graph/VM so fitness rollouts
// for different population members never interfere.
func buildPopulation(cfg Config, init G.InitWFn, n int) ([]*popActor, *network.Codec, error) {
	pop := make([]*popActor, n)
	var codec *network.Codec
	for i := 0; i < n; i++ {
		net, err := buildActorArch(cfg, init)
		if err != nil {
			return nil, nil, fmt.Errorf("erl: buildpopulation: individual %d: %w", i, err)
		}
		if codec == nil {
			codec = network.NewCodec(net)
		}
		pop[i] = newPopActor(net, cfg.ActionScale)
	}
	return pop, codec, nil
}

// applyPopulation writes each row of params (shape [len(pop), D]) into
// the corresponding popActor's weights via codec, realizing the "form
// pop_agent_state by replacing only the actor params" step of the
// workflow transition.
func applyPopulation(codec *network.Codec, pop []*popActor,
	params *tensor.Dense) error {
	nets := make([]network.NeuralNet, len(pop))
	for i, p := range pop {
		nets[i] = p.net
	}
	return codec.BatchToTree(params, nets)
}
