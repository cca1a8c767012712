package network

import (
	"fmt"

	"gorgonia.org/tensor"
)

// FlatParams is a gob-friendly snapshot of one network's learnable
// parameters: a plain []float64, checkpointable without touching the
// network's live gorgonia graph, grounded on Codec's existing
// flatten/unflatten traversal.
type FlatParams struct {
	Data []float64
}

// Flatten snapshots net's current learnable parameters.
func Flatten(net NeuralNet) (*FlatParams, error) {
	codec := NewCodec(net)
	vec, err := codec.ToVector(net)
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	data, ok := vec.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("flatten: vector not backed by []float64")
	}
	return &FlatParams{Data: append([]float64(nil), data...)}, nil
}

// Unflatten writes fp's parameters into dest, which must already have
// the same learnable architecture fp was captured from (same
// requirement as fcLayer.GobDecode: the destination must exist and
// match shape before decoding fills it in).
func Unflatten(fp *FlatParams, dest NeuralNet) error {
	codec := NewCodec(dest)
	if len(fp.Data) != codec.Dim() {
		return fmt.Errorf("unflatten: have %d params, destination wants %d",
			len(fp.Data), codec.Dim())
	}
	vec := tensor.New(tensor.WithShape(codec.Dim()),
		tensor.WithBacking(append([]float64(nil), fp.Data...)))
	if err := codec.ToTree(vec, dest); err != nil {
		return fmt.Errorf("unflatten: %w", err)
	}
	return nil
}
