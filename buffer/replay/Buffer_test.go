package replay

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func transitionAt(v float64) Transition {
	return Transition{
		Obs:         mat.NewVecDense(2, []float64{v, v}),
		NextObs:     mat.NewVecDense(2, []float64{v + 1, v + 1}),
		Action:      mat.NewVecDense(1, []float64{v}),
		Reward:      v,
		Termination: 0,
	}
}

func TestBufferAddRespectsCapacity(t *testing.T) {
	b := New(4, 2, 1)

	batch := []Transition{transitionAt(0), transitionAt(1), transitionAt(2)}
	added := b.Add(batch, nil)

	if added != 3 {
		t.Fatalf("Add() = %d, want 3", added)
	}
	if b.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", b.Size())
	}
}

func TestBufferAddWraps(t *testing.T) {
	b := New(2, 2, 1)

	b.Add([]Transition{transitionAt(0), transitionAt(1), transitionAt(2)}, nil)

	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2 (capacity-bounded)", b.Size())
	}
	if b.WriteIdx() != 1 {
		t.Fatalf("WriteIdx() = %d, want 1", b.WriteIdx())
	}
}

func TestBufferAddHonorsMask(t *testing.T) {
	b := New(4, 2, 1)

	batch := []Transition{transitionAt(0), transitionAt(1), transitionAt(2)}
	mask := []bool{true, false, true}

	added := b.Add(batch, mask)
	if added != 2 {
		t.Fatalf("Add() with mask = %d, want 2", added)
	}
	if b.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", b.Size())
	}
}

func TestBufferSampleEmptyReturnsError(t *testing.T) {
	b := New(4, 2, 1)
	_, err := b.Sample(1, rand.New(rand.NewSource(0)))
	if err == nil {
		t.Fatalf("Sample() on empty buffer: want error, got nil")
	}
}

func TestBufferSampleShape(t *testing.T) {
	b := New(8, 3, 2)
	for i := 0; i < 5; i++ {
		b.Add([]Transition{{
			Obs:         mat.NewVecDense(3, []float64{1, 2, 3}),
			NextObs:     mat.NewVecDense(3, []float64{4, 5, 6}),
			Action:      mat.NewVecDense(2, []float64{0.1, 0.2}),
			Reward:      float64(i),
			Termination: 0,
		}}, nil)
	}

	batch, err := b.Sample(10, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}

	r, c := batch.Obs.Dims()
	if r != 10 || c != 3 {
		t.Fatalf("Obs dims = (%d, %d), want (10, 3)", r, c)
	}
	if len(batch.Reward) != 10 {
		t.Fatalf("len(Reward) = %d, want 10", len(batch.Reward))
	}
}
