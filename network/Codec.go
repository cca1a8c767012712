package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Codec implements a bijection between a NeuralNet's structured
// parameter tree (its Learnables(), in traversal order) and a flat
// vector in R^D. The traversal order and per-leaf shapes are fixed at
// construction from a prototype network and are assumed to hold for
// every network subsequently passed to ToVector/ToTree: all networks
// sharing one Codec must have identical architecture.
type Codec struct {
	shapes  [][]int
	offsets []int
	dim     int
}

// NewCodec constructs a Codec from a prototype network, recording the
// deterministic traversal order, shape, and offset of each learnable
// leaf.
func NewCodec(proto NeuralNet) *Codec {
	nodes := proto.Learnables()
	shapes := make([][]int, len(nodes))
	offsets := make([]int, len(nodes))

	dim := 0
	for i, n := range nodes {
		shape := []int(n.Shape())
		shapeCopy := make([]int, len(shape))
		copy(shapeCopy, shape)

		shapes[i] = shapeCopy
		offsets[i] = dim
		dim += product(shapeCopy)
	}

	return &Codec{shapes: shapes, offsets: offsets, dim: dim}
}

// Dim returns D, the flat parameter vector's length.
func (c *Codec) Dim() int {
	return c.dim
}

// Shapes returns the per-leaf learnable shapes in traversal order, so
// that a caller holding only a flat parameter vector (mlpops.Mutate,
// mlpops.Crossover) can still recover the weight/bias tensor
// boundaries the Codec itself flattened away.
func (c *Codec) Shapes() [][]int {
	out := make([][]int, len(c.shapes))
	for i, s := range c.shapes {
		cp := make([]int, len(s))
		copy(cp, s)
		out[i] = cp
	}
	return out
}

// ToVector flattens net's learnable parameters into a single
// contiguous vector of length c.Dim(), in the Codec's traversal order.
func (c *Codec) ToVector(net NeuralNet) (*tensor.Dense, error) {
	nodes := net.Learnables()
	if len(nodes) != len(c.shapes) {
		return nil, fmt.Errorf("codec: tovector: network has %d learnables, "+
			"codec expects %d", len(nodes), len(c.shapes))
	}

	data := make([]float64, c.dim)
	for i, n := range nodes {
		leaf, ok := n.Value().(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("codec: tovector: learnable %d is not a "+
				"*tensor.Dense", i)
		}
		leafData, ok := leaf.Data().([]float64)
		if !ok {
			return nil, fmt.Errorf("codec: tovector: learnable %d is not "+
				"backed by []float64", i)
		}
		copy(data[c.offsets[i]:c.offsets[i]+len(leafData)], leafData)
	}

	return tensor.New(tensor.WithShape(c.dim), tensor.WithBacking(data)), nil
}

// ToTree writes vec (length c.Dim()) back into dest's learnable
// parameters, in the Codec's traversal order. vec is copied leaf-wise,
// so the caller retains ownership of vec.
func (c *Codec) ToTree(vec *tensor.Dense, dest NeuralNet) error {
	data, ok := vec.Data().([]float64)
	if !ok {
		return fmt.Errorf("codec: totree: vec is not backed by []float64")
	}
	if len(data) != c.dim {
		return fmt.Errorf("codec: totree: vec has length %d, want %d",
			len(data), c.dim)
	}

	nodes := dest.Learnables()
	if len(nodes) != len(c.shapes) {
		return fmt.Errorf("codec: totree: network has %d learnables, "+
			"codec expects %d", len(nodes), len(c.shapes))
	}

	for i, n := range nodes {
		size := product(c.shapes[i])
		leaf := make([]float64, size)
		copy(leaf, data[c.offsets[i]:c.offsets[i]+size])

		t := tensor.New(tensor.WithShape(c.shapes[i]...),
			tensor.WithBacking(leaf))
		if err := G.Let(n, t); err != nil {
			return fmt.Errorf("codec: totree: could not set learnable %d: "+
				"%w", i, err)
		}
	}

	return nil
}

// BatchToVector flattens a population of networks, all sharing this
// Codec's architecture, into a [pop, D] tensor.
func (c *Codec) BatchToVector(nets []NeuralNet) (*tensor.Dense, error) {
	pop := len(nets)
	data := make([]float64, pop*c.dim)

	for p, net := range nets {
		vec, err := c.ToVector(net)
		if err != nil {
			return nil, fmt.Errorf("codec: batchtovector: individual %d: "+
				"%w", p, err)
		}
		row, ok := vec.Data().([]float64)
		if !ok {
			return nil, fmt.Errorf("codec: batchtovector: individual %d "+
				"vector is not backed by []float64", p)
		}
		copy(data[p*c.dim:(p+1)*c.dim], row)
	}

	return tensor.New(tensor.WithShape(pop, c.dim), tensor.WithBacking(data)),
		nil
}

// BatchToTree writes each row of vecs (shape [pop, D]) back into the
// corresponding network in dests.
func (c *Codec) BatchToTree(vecs *tensor.Dense, dests []NeuralNet) error {
	shape := vecs.Shape()
	if len(shape) != 2 || shape[1] != c.dim {
		return fmt.Errorf("codec: batchtotree: vecs has shape %v, want "+
			"[pop, %d]", shape, c.dim)
	}
	if shape[0] != len(dests) {
		return fmt.Errorf("codec: batchtotree: vecs has %d rows, got %d "+
			"destination networks", shape[0], len(dests))
	}

	data, ok := vecs.Data().([]float64)
	if !ok {
		return fmt.Errorf("codec: batchtotree: vecs is not backed by " +
			"[]float64")
	}

	for p, dest := range dests {
		row := data[p*c.dim : (p+1)*c.dim]
		rowCopy := make([]float64, c.dim)
		copy(rowCopy, row)
		rowTensor := tensor.New(tensor.WithShape(c.dim),
			tensor.WithBacking(rowCopy))
		if err := c.ToTree(rowTensor, dest); err != nil {
			return fmt.Errorf("codec: batchtotree: individual %d: %w", p,
				err)
		}
	}

	return nil
}

// product computes the element count implied by a tensor shape.
func product(shape []int) int {
	p := 1
	for _, s := range shape {
		p *= s
	}
	return p
}
