package td3

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/erl/buffer/replay"
	"github.com/samuelfneumann/erl/initwfn"
)

func testConfig() Config {
	return Config{
		ObsDim:              3,
		ActionDim:           2,
		BatchSize:           4,
		HiddenSizes:         []int{8},
		ActionScale:         1.0,
		ActorLR:             1e-3,
		CriticLR:            1e-3,
		Gamma:               0.99,
		Tau:                 0.05,
		PolicySmoothingStd:  0.2,
		NoiseClip:           0.5,
		ActorUpdateInterval: 2,
	}
}

func fillBuffer(t *testing.T, buf *replay.Buffer, cfg Config, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(0))
	trans := make([]replay.Transition, n)
	for i := range trans {
		obs := make([]float64, cfg.ObsDim)
		next := make([]float64, cfg.ObsDim)
		action := make([]float64, cfg.ActionDim)
		for j := range obs {
			obs[j] = rng.NormFloat64()
			next[j] = rng.NormFloat64()
		}
		for j := range action {
			action[j] = rng.NormFloat64()
		}
		trans[i] = replay.Transition{
			Obs:         mat.NewVecDense(cfg.ObsDim, obs),
			NextObs:     mat.NewVecDense(cfg.ObsDim, next),
			Action:      mat.NewVecDense(cfg.ActionDim, action),
			Reward:      rng.NormFloat64(),
			Termination: 0,
		}
	}
	if added := buf.Add(trans, nil); added != n {
		t.Fatalf("buf.Add() added %d transitions, want %d", added, n)
	}
}

func TestCoreUpdateSkipsOnEmptyBuffer(t *testing.T) {
	cfg := testConfig()
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		t.Fatalf("NewGlorotU() error: %v", err)
	}
	agent, err := NewAgent(cfg, init.InitWFn())
	if err != nil {
		t.Fatalf("NewAgent() error: %v", err)
	}
	core, err := New([]*Agent{agent}, nil, cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	buf := replay.New(100, cfg.ObsDim, cfg.ActionDim)
	metrics, err := core.Update(buf, 1, rand.New(rand.NewSource(0)))
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if !metrics.Skipped {
		t.Fatalf("Update() on an empty buffer: want Skipped = true")
	}
}

func TestCoreUpdateRunsCriticAndActorSteps(t *testing.T) {
	cfg := testConfig()
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		t.Fatalf("NewGlorotU() error: %v", err)
	}
	agent, err := NewAgent(cfg, init.InitWFn())
	if err != nil {
		t.Fatalf("NewAgent() error: %v", err)
	}
	core, err := New([]*Agent{agent}, nil, cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	buf := replay.New(100, cfg.ObsDim, cfg.ActionDim)
	fillBuffer(t, buf, cfg, 50)

	rng := rand.New(rand.NewSource(1))
	metrics, err := core.Update(buf, cfg.ActorUpdateInterval, rng)
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if metrics.Skipped {
		t.Fatalf("Update() with a populated buffer: want Skipped = false")
	}
	if !metrics.ActorUpdated[0] {
		t.Fatalf("Update() after ActorUpdateInterval critic steps: want an actor update")
	}
}

func TestAgentActProducesBoundedAction(t *testing.T) {
	cfg := testConfig()
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		t.Fatalf("NewGlorotU() error: %v", err)
	}
	agent, err := NewAgent(cfg, init.InitWFn())
	if err != nil {
		t.Fatalf("NewAgent() error: %v", err)
	}

	obs := mat.NewVecDense(cfg.ObsDim, []float64{0.1, -0.2, 0.3})
	action := agent.Act(obs)
	if action.Len() != cfg.ActionDim {
		t.Fatalf("Act() action length = %d, want %d", action.Len(), cfg.ActionDim)
	}
	for i := 0; i < action.Len(); i++ {
		if action.AtVec(i) < -cfg.ActionScale || action.AtVec(i) > cfg.ActionScale {
			t.Fatalf("Act() action[%d] = %v, out of [-%v, %v]", i,
				action.AtVec(i), cfg.ActionScale, cfg.ActionScale)
		}
	}
}
