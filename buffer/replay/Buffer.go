// Package replay implements a fixed-capacity ring buffer of transitions
// shared by the EC and RL sides of the workflow driver, generalizing the
// teacher's buffer/expreplay cache (ring semantics via an insert-order
// index and uniform random sampling) from single-transition inserts to
// batched, mask-filtered inserts.
package replay

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (s, a, r, s', termination) tuple. Termination
// records a true episode end (AtGoal or task-natural Last), distinct
// from truncation by a time limit: dones, where needed, are
// Termination OR Truncation, but only Termination is stored since a
// bootstrap target needs exactly that bit.
type Transition struct {
	Obs, NextObs mat.Vector
	Action       mat.Vector
	Reward       float64
	Termination  float64 // 1.0 natural end, else 0.0
}

// Batch is a contiguous block of transitions returned by Sample, laid
// out as dense rows so it can be fed directly into a gorgonia input
// node without further copying.
type Batch struct {
	Obs, NextObs *mat.Dense
	Action       *mat.Dense
	Reward       []float64
	Termination  []float64
}

// Buffer is a ring buffer of capacity C over flattened transitions.
// Once full, new inserts overwrite the oldest entries, matching the
// teacher's cache eviction order (orderOfInsert / FIFO eviction of
// emptyIndices).
type Buffer struct {
	obsDim, actionDim int
	capacity          int
	size              int
	writeIdx          int

	obs, nextObs []float64
	action       []float64
	reward       []float64
	termination  []float64
}

// New constructs an empty Buffer of the given capacity for
// observations of dimension obsDim and actions of dimension
// actionDim.
func New(capacity, obsDim, actionDim int) *Buffer {
	return &Buffer{
		obsDim:      obsDim,
		actionDim:   actionDim,
		capacity:    capacity,
		obs:         make([]float64, capacity*obsDim),
		nextObs:     make([]float64, capacity*obsDim),
		action:      make([]float64, capacity*actionDim),
		reward:      make([]float64, capacity),
		termination: make([]float64, capacity),
	}
}

// Add copies each transition in batch whose corresponding mask entry
// is true (or every transition, if mask is nil) into the ring at the
// buffer's current write position, advancing and wrapping as needed.
// It returns the number of transitions actually added.
func (b *Buffer) Add(batch []Transition, mask []bool) int {
	if mask != nil && len(mask) != len(batch) {
		panic(fmt.Sprintf("replay: mask has length %d, batch has length %d",
			len(mask), len(batch)))
	}

	added := 0
	for i, t := range batch {
		if mask != nil && !mask[i] {
			continue
		}
		b.writeOne(t)
		added++
	}
	return added
}

// writeOne writes a single transition at the current ring position.
func (b *Buffer) writeOne(t Transition) {
	idx := b.writeIdx

	copyVec(b.obs[idx*b.obsDim:(idx+1)*b.obsDim], t.Obs)
	copyVec(b.nextObs[idx*b.obsDim:(idx+1)*b.obsDim], t.NextObs)
	copyVec(b.action[idx*b.actionDim:(idx+1)*b.actionDim], t.Action)
	b.reward[idx] = t.Reward
	b.termination[idx] = t.Termination

	b.writeIdx = (b.writeIdx + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// copyVec copies a mat.Vector's elements into dst. A nil source is
// treated as all-zero (only ever used for sentinel/padding rows that
// the caller's mask has already excluded from Add, so this should not
// be reached in practice, but guards against a nil-vector panic).
func copyVec(dst []float64, v mat.Vector) {
	if v == nil {
		return
	}
	for i := 0; i < len(dst); i++ {
		dst[i] = v.AtVec(i)
	}
}

// Size returns the number of valid transitions currently stored.
func (b *Buffer) Size() int {
	return b.size
}

// WriteIdx returns the ring index the next Add call will write to
// first.
func (b *Buffer) WriteIdx() int {
	return b.writeIdx
}

// Capacity returns the buffer's fixed capacity C.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Sample draws batchSize transitions uniformly at random, with
// replacement, from the buffer's current contents, using rng as the
// sole source of randomness (no package-global RNG, matching the
// teacher's Selectors.go discipline of threading a caller-owned
// *rand.Rand through every call). It returns an error if the buffer
// is empty.
func (b *Buffer) Sample(batchSize int, rng *rand.Rand) (Batch, error) {
	if b.size == 0 {
		return Batch{}, fmt.Errorf("replay: sample: buffer is empty")
	}

	obs := mat.NewDense(batchSize, b.obsDim, nil)
	nextObs := mat.NewDense(batchSize, b.obsDim, nil)
	action := mat.NewDense(batchSize, b.actionDim, nil)
	reward := make([]float64, batchSize)
	termination := make([]float64, batchSize)

	for i := 0; i < batchSize; i++ {
		idx := rng.Intn(b.size)

		obs.SetRow(i, b.obs[idx*b.obsDim:(idx+1)*b.obsDim])
		nextObs.SetRow(i, b.nextObs[idx*b.obsDim:(idx+1)*b.obsDim])
		action.SetRow(i, b.action[idx*b.actionDim:(idx+1)*b.actionDim])
		reward[i] = b.reward[idx]
		termination[i] = b.termination[idx]
	}

	return Batch{
		Obs:         obs,
		NextObs:     nextObs,
		Action:      action,
		Reward:      reward,
		Termination: termination,
	}, nil
}
