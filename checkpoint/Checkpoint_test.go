package checkpoint

import (
	"bytes"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/erl/buffer/replay"
	"github.com/samuelfneumann/erl/ec"
	"github.com/samuelfneumann/erl/erl"
	"github.com/samuelfneumann/erl/initwfn"
	"github.com/samuelfneumann/erl/td3"
)

func testAgentConfig() td3.Config {
	return td3.Config{
		ObsDim:              3,
		ActionDim:           2,
		BatchSize:           1,
		HiddenSizes:         []int{4},
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

func newTestAgent(t *testing.T) *td3.Agent {
	t.Helper()
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		t.Fatalf("NewGlorotU() error: %v", err)
	}
	agent, err := td3.NewAgent(testAgentConfig(), init.InitWFn())
	if err != nil {
		t.Fatalf("NewAgent() error: %v", err)
	}
	return agent
}

func TestCaptureRestoreRoundTripsAgentParams(t *testing.T) {
	src := newTestAgent(t)
	metrics := erl.WorkflowMetrics{SampledTimesteps: 42, Iterations: 3}

	rec, err := Capture([]*td3.Agent{src}, ec.State{}, metrics, nil)
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}
	if rec.Version != version {
		t.Fatalf("Capture() Version = %d, want %d", rec.Version, version)
	}

	dst := newTestAgent(t) // independently initialized, different params
	_, gotMetrics, gotBuf, err := Restore(rec, []*td3.Agent{dst})
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if gotMetrics != metrics {
		t.Fatalf("Restore() metrics = %+v, want %+v", gotMetrics, metrics)
	}
	if gotBuf != nil {
		t.Fatalf("Restore() buffer = %v, want nil (none was captured)", gotBuf)
	}

	obs := mat.NewVecDense(3, []float64{0.1, -0.2, 0.3})
	wantAction := src.Act(obs)
	gotAction := dst.Act(obs)
	for i := 0; i < wantAction.Len(); i++ {
		if wantAction.AtVec(i) != gotAction.AtVec(i) {
			t.Fatalf("restored actor produced a different action at %d: got %v, want %v",
				i, gotAction.AtVec(i), wantAction.AtVec(i))
		}
	}
}

func TestRestoreRejectsAgentCountMismatch(t *testing.T) {
	src := newTestAgent(t)
	rec, err := Capture([]*td3.Agent{src, src}, ec.State{}, erl.WorkflowMetrics{}, nil)
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}

	dst := newTestAgent(t)
	_, _, _, err = Restore(rec, []*td3.Agent{dst})
	restoreErr, ok := err.(*erl.Error)
	if !ok || restoreErr.Kind != erl.KindShapeMismatch {
		t.Fatalf("Restore() with mismatched agent count: want a KindShapeMismatch *erl.Error, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src := newTestAgent(t)
	buf := replay.New(4, testAgentConfig().ObsDim, testAgentConfig().ActionDim)
	metrics := erl.WorkflowMetrics{SampledTimesteps: 7, SampledEpisodes: 2, Iterations: 1}

	rec, err := Capture([]*td3.Agent{src}, ec.State{Kind: ec.KindGA}, metrics, buf)
	if err != nil {
		t.Fatalf("Capture() error: %v", err)
	}

	var wire bytes.Buffer
	if err := Save(&wire, rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(&wire)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Version != rec.Version {
		t.Fatalf("Load() Version = %d, want %d", loaded.Version, rec.Version)
	}
	if loaded.Metrics != metrics {
		t.Fatalf("Load() Metrics = %+v, want %+v", loaded.Metrics, metrics)
	}
	if loaded.Buffer == nil || loaded.Buffer.Size() != buf.Size() {
		t.Fatalf("Load() buffer did not round-trip: got %v", loaded.Buffer)
	}
	if len(loaded.Agents) != 1 {
		t.Fatalf("Load() Agents length = %d, want 1", len(loaded.Agents))
	}
}
