// Package checkpoint persists and restores a training run's full
// state — RL agent parameters, EC optimizer state, workflow metrics,
// and optionally the replay buffer — via encoding/gob, mirroring
// network/FullyConnected.go's fcLayer GobEncode/GobDecode idiom of
// gobbing plain parameter data rather than live gorgonia graphs.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/samuelfneumann/erl/buffer/replay"
	"github.com/samuelfneumann/erl/ec"
	"github.com/samuelfneumann/erl/erl"
	"github.com/samuelfneumann/erl/network"
	"github.com/samuelfneumann/erl/td3"
)

// version is the current Record wire format. Bumped whenever
// AgentRecord's or Record's field set changes incompatibly.
const version = 1

// AgentRecord is one RL slot's flattened parameters: actor, target
// actor, both critics, and both target critics. CriticForActorLoss is
// never persisted — td3.NewAgent rebuilds it on the actor's graph and
// Core resyncs it from Critic1 before every actor update, so it
// carries no state that outlives one Update call.
type AgentRecord struct {
	Actor, TargetActor           *network.FlatParams
	Critic1, Critic2             *network.FlatParams
	TargetCritic1, TargetCritic2 *network.FlatParams
}

// Record is the full persisted snapshot of one training run.
type Record struct {
	Version int
	Agents  []AgentRecord
	EC      ec.State
	Metrics erl.WorkflowMetrics
	Buffer  *replay.Buffer // nil unless the caller chose to persist it
}

// Capture builds a Record from the current agents, EC state, metrics,
// and (optionally, if buf is non-nil) the replay buffer.
func Capture(agents []*td3.Agent, ecState ec.State, metrics erl.WorkflowMetrics,
	buf *replay.Buffer) (Record, error) {
	recs := make([]AgentRecord, len(agents))
	for i, a := range agents {
		rec, err := captureAgent(a)
		if err != nil {
			return Record{}, &erl.Error{Op: "checkpoint: capture", Kind: erl.KindCheckpointIO,
				Err: fmt.Errorf("agent %d: %w", i, err)}
		}
		recs[i] = rec
	}

	return Record{
		Version: version,
		Agents:  recs,
		EC:      ecState,
		Metrics: metrics,
		Buffer:  buf,
	}, nil
}

// Restore writes a Record's agent parameters back into agents, which
// must already be constructed with matching architecture (same
// pattern as fcLayer.GobDecode: the destination must exist and have
// the right shape before decoding fills it in). It returns the EC
// state, metrics, and (possibly nil) buffer the record carried.
func Restore(rec Record, agents []*td3.Agent) (ec.State, erl.WorkflowMetrics, *replay.Buffer, error) {
	if len(rec.Agents) != len(agents) {
		return ec.State{}, erl.WorkflowMetrics{}, nil, &erl.Error{
			Op: "checkpoint: restore", Kind: erl.KindShapeMismatch,
			Err: fmt.Errorf("record has %d agents, want %d", len(rec.Agents), len(agents)),
		}
	}

	for i, a := range agents {
		if err := restoreAgent(rec.Agents[i], a); err != nil {
			return ec.State{}, erl.WorkflowMetrics{}, nil, &erl.Error{
				Op: "checkpoint: restore", Kind: erl.KindCheckpointIO,
				Err: fmt.Errorf("agent %d: %w", i, err),
			}
		}
	}

	return rec.EC, rec.Metrics, rec.Buffer, nil
}

// Save gob-encodes r to w.
func Save(w io.Writer, r Record) error {
	if err := gob.NewEncoder(w).Encode(r); err != nil {
		return &erl.Error{Op: "checkpoint: save", Kind: erl.KindCheckpointIO, Err: err}
	}
	return nil
}

// Load gob-decodes a Record from r.
func Load(r io.Reader) (Record, error) {
	var rec Record
	if err := gob.NewDecoder(r).Decode(&rec); err != nil {
		return Record{}, &erl.Error{Op: "checkpoint: load", Kind: erl.KindCheckpointIO, Err: err}
	}
	return rec, nil
}

func captureAgent(a *td3.Agent) (AgentRecord, error) {
	actor, err := network.Flatten(a.Actor)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("actor: %w", err)
	}
	targetActor, err := network.Flatten(a.TargetActor)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("target actor: %w", err)
	}
	critic1, err := network.Flatten(a.Critic1)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("critic1: %w", err)
	}
	critic2, err := network.Flatten(a.Critic2)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("critic2: %w", err)
	}
	targetCritic1, err := network.Flatten(a.TargetCritic1)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("target critic1: %w", err)
	}
	targetCritic2, err := network.Flatten(a.TargetCritic2)
	if err != nil {
		return AgentRecord{}, fmt.Errorf("target critic2: %w", err)
	}

	return AgentRecord{
		Actor:         actor,
		TargetActor:   targetActor,
		Critic1:       critic1,
		Critic2:       critic2,
		TargetCritic1: targetCritic1,
		TargetCritic2: targetCritic2,
	}, nil
}

func restoreAgent(rec AgentRecord, a *td3.Agent) error {
	if err := network.Unflatten(rec.Actor, a.Actor); err != nil {
		return fmt.Errorf("actor: %w", err)
	}
	if err := network.Unflatten(rec.TargetActor, a.TargetActor); err != nil {
		return fmt.Errorf("target actor: %w", err)
	}
	if err := network.Unflatten(rec.Critic1, a.Critic1); err != nil {
		return fmt.Errorf("critic1: %w", err)
	}
	if err := network.Unflatten(rec.Critic2, a.Critic2); err != nil {
		return fmt.Errorf("critic2: %w", err)
	}
	if err := network.Unflatten(rec.TargetCritic1, a.TargetCritic1); err != nil {
		return fmt.Errorf("target critic1: %w", err)
	}
	if err := network.Unflatten(rec.TargetCritic2, a.TargetCritic2); err != nil {
		return fmt.Errorf("target critic2: %w", err)
	}
	return nil
}
