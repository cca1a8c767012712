package replay

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// gobState is the plain-data snapshot of a Buffer's ring contents,
// mirroring network/FullyConnected.go's fcLayer GobEncode/GobDecode
// idiom: a buffer's unexported fields are gobbed directly rather than
// exposed through exported accessors.
type gobState struct {
	ObsDim, ActionDim int
	Capacity, Size    int
	WriteIdx          int

	Obs, NextObs, Action, Reward, Termination []float64
}

// GobEncode implements gob.GobEncoder.
func (b *Buffer) GobEncode() ([]byte, error) {
	state := gobState{
		ObsDim:      b.obsDim,
		ActionDim:   b.actionDim,
		Capacity:    b.capacity,
		Size:        b.size,
		WriteIdx:    b.writeIdx,
		Obs:         b.obs,
		NextObs:     b.nextObs,
		Action:      b.action,
		Reward:      b.reward,
		Termination: b.termination,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, fmt.Errorf("gobencode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, overwriting the receiver's
// contents in place.
func (b *Buffer) GobDecode(in []byte) error {
	var state gobState
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&state); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}

	b.obsDim = state.ObsDim
	b.actionDim = state.ActionDim
	b.capacity = state.Capacity
	b.size = state.Size
	b.writeIdx = state.WriteIdx
	b.obs = state.Obs
	b.nextObs = state.NextObs
	b.action = state.Action
	b.reward = state.Reward
	b.termination = state.Termination
	return nil
}
