package erl

import (
	"math/rand"
	"testing"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/erl/buffer/replay"
	"github.com/samuelfneumann/erl/collector"
	"github.com/samuelfneumann/erl/ec"
	"github.com/samuelfneumann/erl/initwfn"
	"github.com/samuelfneumann/erl/network"
	"github.com/samuelfneumann/erl/td3"
)

func testDriverConfig() Config {
	return Config{
		ObsDim:              3,
		ActionDim:           2,
		ActionScale:         1.0,
		HiddenSizes:         []int{4},
		PopSize:             4,
		NumRLAgents:         1,
		RLInjectionInterval: 2,
	}
}

// fakeOptimizer records how it was called and never touches state.Pop
// beyond what the caller already mutated.
type fakeOptimizer struct {
	tellCalls int
	lastState ec.State
	lastFit   []float64
}

func (f *fakeOptimizer) Ask(state ec.State, rng *rand.Rand) (*tensor.Dense, ec.State, error) {
	return state.Pop, state, nil
}

func (f *fakeOptimizer) Tell(state ec.State, fitnesses []float64, rng *rand.Rand) (ec.TellInfo, ec.State, error) {
	f.tellCalls++
	f.lastState = state
	f.lastFit = fitnesses
	return ec.TellInfo{BestFitness: 1, MeanFitness: 0.5}, state, nil
}

// fakeExternalOptimizer additionally implements TellExternal.
type fakeExternalOptimizer struct {
	fakeOptimizer
	externalCalls int
	lastFit       []float64
}

func (f *fakeExternalOptimizer) TellExternal(state ec.State, fitnesses []float64,
	rng *rand.Rand) (ec.TellInfo, ec.State, error) {
	f.externalCalls++
	f.lastFit = fitnesses
	return ec.TellInfo{BestFitness: 2, MeanFitness: 1.5}, state, nil
}

func testCodecAndAgent(t *testing.T, cfg Config) (*network.Codec, *td3.Agent) {
	t.Helper()
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		t.Fatalf("NewGlorotU() error: %v", err)
	}
	proto, err := buildActorArch(cfg, init.InitWFn())
	if err != nil {
		t.Fatalf("buildActorArch() error: %v", err)
	}
	codec := network.NewCodec(proto)

	agentCfg := td3.Config{
		ObsDim:      cfg.ObsDim,
		ActionDim:   cfg.ActionDim,
		BatchSize:   1,
		HiddenSizes: cfg.HiddenSizes,
		ActionScale: cfg.ActionScale,
	}
	agent, err := td3.NewAgent(agentCfg, init.InitWFn())
	if err != nil {
		t.Fatalf("NewAgent() error: %v", err)
	}
	return codec, agent
}

func zeroPop(codec *network.Codec, popSize int) *tensor.Dense {
	data := make([]float64, popSize*codec.Dim())
	return tensor.New(tensor.WithShape(popSize, codec.Dim()), tensor.WithBacking(data))
}

func TestLowestFitnessIndices(t *testing.T) {
	idx := lowestFitnessIndices([]float64{3, 1, 4, 1, 5}, 2)
	if len(idx) != 2 {
		t.Fatalf("lowestFitnessIndices() returned %d indices, want 2", len(idx))
	}
	seen := map[int]bool{}
	for _, i := range idx {
		seen[i] = true
	}
	if !seen[1] || !seen[3] {
		t.Fatalf("lowestFitnessIndices() = %v, want the two indices of value 1 (1 and 3)", idx)
	}
}

func TestMeanReturns(t *testing.T) {
	got := meanReturns([][]float64{{1, 3}, {2, 2, 2}, {}})
	want := []float64{2, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("meanReturns()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRolloutCounts(t *testing.T) {
	m := collector.EpisodeMetric{
		EpisodeLengths: [][]int{{5, 3}, {10}},
	}
	timesteps, episodes := rolloutCounts(m)
	if timesteps != 18 {
		t.Fatalf("rolloutCounts() timesteps = %d, want 18", timesteps)
	}
	if episodes != 3 {
		t.Fatalf("rolloutCounts() episodes = %d, want 3", episodes)
	}
}

func TestAppendTrajectorySkipsInvalidTransitions(t *testing.T) {
	cfg := testDriverConfig()
	buf := replay.New(10, cfg.ObsDim, cfg.ActionDim)

	traj := collector.Trajectory{
		Obs:             [][][]float64{{make([]float64, 2*cfg.ObsDim)}},
		Actions:         [][][]float64{{make([]float64, 2*cfg.ActionDim)}},
		NextObsOriginal: [][][]float64{{make([]float64, 2*cfg.ObsDim)}},
		PerEnvReward:    [][][]float64{{{1.0, 2.0}}},
		PerEnvValid:     [][][]bool{{{true, false}}},
		PerEnvTermination: [][][]bool{{{false, false}}},
	}

	appendTrajectory(buf, traj, cfg)

	if buf.Size() != 1 {
		t.Fatalf("appendTrajectory() inserted %d transitions, want 1 (only the valid env)", buf.Size())
	}
}

func TestInjectOriginOverwritesWeakestOnCadence(t *testing.T) {
	cfg := testDriverConfig()
	codec, agent := testCodecAndAgent(t, cfg)

	fake := &fakeOptimizer{}
	d := &Driver{cfg: cfg, optimizer: fake, codec: codec}

	pop := zeroPop(codec, cfg.PopSize)
	state := ec.State{Kind: ec.KindGA, Pop: pop}
	fitnesses := []float64{5, 1, 4, 3} // index 1 is weakest

	nextState, info, injected, err := injectOrigin(d, state, 2, []*td3.Agent{agent},
		fitnesses, nil, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("injectOrigin() error: %v", err)
	}
	if !injected {
		t.Fatalf("injectOrigin() at a cadence iteration: want injected = true")
	}
	if info.BestFitness != 1 {
		t.Fatalf("injectOrigin() info = %+v, want the fake optimizer's Tell result", info)
	}
	if fake.tellCalls != 1 {
		t.Fatalf("injectOrigin() called Tell %d times, want 1", fake.tellCalls)
	}

	agentVec, err := codec.BatchToVector([]network.NeuralNet{agent.Actor})
	if err != nil {
		t.Fatalf("BatchToVector() error: %v", err)
	}
	agentData := agentVec.Data().([]float64)
	dim := codec.Dim()
	popData := nextState.Pop.Data().([]float64)
	for d := 0; d < dim; d++ {
		if popData[1*dim+d] != agentData[d] {
			t.Fatalf("weakest row[%d] = %v, want overwritten value %v", d, popData[1*dim+d], agentData[d])
		}
	}
}

func TestInjectOriginSkipsOffCadence(t *testing.T) {
	cfg := testDriverConfig()
	codec, agent := testCodecAndAgent(t, cfg)

	fake := &fakeOptimizer{}
	d := &Driver{cfg: cfg, optimizer: fake, codec: codec}

	pop := zeroPop(codec, cfg.PopSize)
	state := ec.State{Kind: ec.KindGA, Pop: pop}
	fitnesses := []float64{5, 1, 4, 3}

	_, _, injected, err := injectOrigin(d, state, 3, []*td3.Agent{agent},
		fitnesses, nil, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("injectOrigin() error: %v", err)
	}
	if injected {
		t.Fatalf("injectOrigin() at an off-cadence iteration: want injected = false")
	}
	if fake.tellCalls != 1 {
		t.Fatalf("injectOrigin() should still call Tell exactly once, got %d", fake.tellCalls)
	}
}

func TestInjectGAFallsBackWithoutExternalOptimizer(t *testing.T) {
	cfg := testDriverConfig()
	codec, agent := testCodecAndAgent(t, cfg)

	fake := &fakeOptimizer{}
	d := &Driver{cfg: cfg, optimizer: fake, codec: codec}

	pop := zeroPop(codec, cfg.PopSize)
	state := ec.State{Kind: ec.KindERLGA, Pop: pop}
	fitnesses := []float64{1, 2, 3, 4}

	_, _, injected, err := injectGA(d, state, 2, []*td3.Agent{agent}, fitnesses, nil,
		rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("injectGA() error: %v", err)
	}
	if injected {
		t.Fatalf("injectGA() with a non-ExternalOptimizer: want injected = false")
	}
	if fake.tellCalls != 1 {
		t.Fatalf("injectGA() should fall back to Tell exactly once, got %d", fake.tellCalls)
	}
}

func TestInjectGAUsesTellExternalOnCadence(t *testing.T) {
	cfg := testDriverConfig()
	codec, agent := testCodecAndAgent(t, cfg)

	fake := &fakeExternalOptimizer{}
	d := &Driver{cfg: cfg, optimizer: fake, codec: codec}

	pop := zeroPop(codec, cfg.PopSize)
	state := ec.State{Kind: ec.KindERLGA, Pop: pop}
	fitnesses := []float64{1, 2, 3, 4}
	rlFitnesses := []float64{100}

	_, info, injected, err := injectGA(d, state, 2, []*td3.Agent{agent}, fitnesses,
		rlFitnesses, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("injectGA() error: %v", err)
	}
	if !injected {
		t.Fatalf("injectGA() at a cadence iteration: want injected = true")
	}
	if fake.externalCalls != 1 {
		t.Fatalf("injectGA() called TellExternal %d times, want 1", fake.externalCalls)
	}
	if len(fake.lastFit) != len(fitnesses)+len(rlFitnesses) {
		t.Fatalf("injectGA() passed %d fitnesses to TellExternal, want %d",
			len(fake.lastFit), len(fitnesses)+len(rlFitnesses))
	}
	if info.BestFitness != 2 {
		t.Fatalf("injectGA() info = %+v, want the fake's TellExternal result", info)
	}
}

func TestInjectGAOffCadenceFallsBackToTell(t *testing.T) {
	cfg := testDriverConfig()
	codec, agent := testCodecAndAgent(t, cfg)

	fake := &fakeExternalOptimizer{}
	d := &Driver{cfg: cfg, optimizer: fake, codec: codec}

	pop := zeroPop(codec, cfg.PopSize)
	state := ec.State{Kind: ec.KindERLGA, Pop: pop}
	fitnesses := []float64{1, 2, 3, 4}

	_, _, injected, err := injectGA(d, state, 3, []*td3.Agent{agent}, fitnesses,
		[]float64{100}, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("injectGA() error: %v", err)
	}
	if injected {
		t.Fatalf("injectGA() off cadence: want injected = false")
	}
	if fake.externalCalls != 0 || fake.tellCalls != 1 {
		t.Fatalf("injectGA() off cadence should only call Tell, got externalCalls=%d tellCalls=%d",
			fake.externalCalls, fake.tellCalls)
	}
}

func TestInjectESAlwaysInjects(t *testing.T) {
	cfg := testDriverConfig()
	codec, agent := testCodecAndAgent(t, cfg)

	fake := &fakeExternalOptimizer{}
	d := &Driver{cfg: cfg, optimizer: fake, codec: codec}

	pop := zeroPop(codec, cfg.PopSize)
	state := ec.State{Kind: ec.KindOpenES, Pop: pop}
	fitnesses := []float64{1, 2, 3, 4}

	for _, iter := range []uint64{1, 2, 3} {
		_, _, injected, err := injectES(d, state, iter, []*td3.Agent{agent}, fitnesses,
			[]float64{100}, rand.New(rand.NewSource(0)))
		if err != nil {
			t.Fatalf("injectES() iteration %d error: %v", iter, err)
		}
		if !injected {
			t.Fatalf("injectES() iteration %d: want injected = true every iteration", iter)
		}
	}
	if fake.externalCalls != 3 {
		t.Fatalf("injectES() called TellExternal %d times, want 3", fake.externalCalls)
	}
}
