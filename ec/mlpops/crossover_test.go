package mlpops

import (
	"math/rand"
	"testing"
)

func TestCrossoverSplitsIndependentlyPerLeaf(t *testing.T) {
	// Two leaves: a 3-element "weight" and a 2-element "bias". A global
	// single-point crossover could splice mid-leaf; leaf-wise crossover
	// must keep each leaf either fully parentA, fully parentB, or split
	// only within its own boundary.
	shapes := [][]int{{3}, {2}}
	parentA := []float64{1, 1, 1, 1, 1}
	parentB := []float64{2, 2, 2, 2, 2}

	for seed := int64(0); seed < 50; seed++ {
		child := Crossover(parentA, parentB, shapes, rand.New(rand.NewSource(seed)))

		leaf0 := child[0:3]
		leaf1 := child[3:5]

		checkLeaf := func(leaf []float64) {
			sawA, sawB := false, false
			for i, v := range leaf {
				if v == 1 {
					sawA = true
				} else if v == 2 {
					sawB = true
				} else {
					t.Fatalf("unexpected value %v at leaf offset %d", v, i)
				}
				if sawB && v == 1 {
					t.Fatalf("leaf reverted from parentB back to parentA mid-leaf: %v", leaf)
				}
			}
			_ = sawA
		}
		checkLeaf(leaf0)
		checkLeaf(leaf1)
	}
}

func TestCrossoverWithNilShapesSplitsWholeVector(t *testing.T) {
	parentA := []float64{1, 1, 1}
	parentB := []float64{2, 2, 2}

	child := Crossover(parentA, parentB, nil, rand.New(rand.NewSource(0)))
	if len(child) != 3 {
		t.Fatalf("len(child) = %d, want 3", len(child))
	}
	for _, v := range child {
		if v != 1 && v != 2 {
			t.Fatalf("unexpected child value %v", v)
		}
	}
}

func TestCrossoverPanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("Crossover() with mismatched lengths did not panic")
		}
	}()
	Crossover([]float64{1, 2}, []float64{1}, nil, rand.New(rand.NewSource(0)))
}
