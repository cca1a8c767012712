package ec

import (
	"math/rand"
	"sort"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/erl/ec/mlpops"
)

// GA is a genetic-algorithm optimizer storing its population
// explicitly as a [pop_size, D] tensor. Ask returns the stored
// population unchanged; Tell sorts by fitness, keeps the top
// num_elites untouched, and fills the remainder by tournament
// selection from the elites followed by MLP mutation.
type GA struct {
	PopSize   int
	NumElites int
	TournSize int
	MutateCfg mlpops.MutateConfig

	// LeafShapes is the network.Codec's per-leaf shape list
	// (Codec.Shapes()) for the population's architecture, letting
	// Mutate scale its perturbations per weight/bias tensor instead of
	// pooling the whole individual. Nil is accepted (falls back to
	// treating an individual as one leaf).
	LeafShapes [][]int

	// Reinit, when non-nil, draws a fresh individual from scratch
	// (e.g. a freshly initialized network run back through the same
	// Codec) for Mutate's reset_prob step. A nil Reinit makes
	// MutateCfg.ResetProb inert, so callers that configure a positive
	// ResetProb must also supply this.
	Reinit func(rng *rand.Rand) []float64
}

// NewGA constructs a GA optimizer, returning a ConfigurationError if
// num_elites is out of range.
func NewGA(popSize, numElites, tournSize int, mutateCfg mlpops.MutateConfig,
	leafShapes [][]int, reinit func(rng *rand.Rand) []float64) (*GA, error) {
	if numElites <= 0 || numElites > popSize {
		return nil, &Error{Op: "newga", Err: errTooFewElites}
	}
	return &GA{
		PopSize:    popSize,
		NumElites:  numElites,
		TournSize:  tournSize,
		MutateCfg:  mutateCfg,
		LeafShapes: leafShapes,
		Reinit:     reinit,
	}, nil
}

// Ask returns the stored population unchanged; GA's candidates are the
// population itself, not a fresh sample.
func (g *GA) Ask(state State, rng *rand.Rand) (*tensor.Dense, State, error) {
	if state.Pop == nil {
		return nil, state, &Error{Op: "ga.ask", Err: errConfiguration}
	}
	if state.Pop.Shape()[0] != g.PopSize {
		return nil, state, &Error{Op: "ga.ask", Err: errShapeMismatch}
	}
	return state.Pop, state, nil
}

// Tell sorts the population by fitness, keeps the top NumElites
// individuals untouched, and replaces the rest with mutated offspring
// of tournament-selected elite parents.
func (g *GA) Tell(state State, fitnesses []float64, rng *rand.Rand) (TellInfo, State, error) {
	if len(fitnesses) != g.PopSize {
		return TellInfo{}, state, &Error{Op: "ga.tell", Err: errShapeMismatch}
	}

	rows, dim := rowsOf(state.Pop)

	order := sortByFitnessDesc(fitnesses)

	elites := make([][]float64, g.NumElites)
	for i := 0; i < g.NumElites; i++ {
		elites[i] = rows[order[i]]
	}

	newRows := make([][]float64, g.PopSize)
	for i := 0; i < g.NumElites; i++ {
		newRows[i] = elites[i]
	}

	for i := g.NumElites; i < g.PopSize; i++ {
		parent := tournamentSelect(elites, fitnesses, order, g.TournSize, rng)
		newRows[i] = mlpops.Mutate(parent, g.LeafShapes, g.MutateCfg, rng, g.Reinit)
	}

	pop := tensor.New(tensor.WithShape(g.PopSize, dim),
		tensor.WithBacking(flatten(newRows)))
	eliteCache := tensor.New(tensor.WithShape(g.NumElites, dim),
		tensor.WithBacking(flatten(elites)))

	next := state
	next.Pop = pop
	next.EliteCache = eliteCache

	best, mean := bestAndMean(fitnesses)
	eliteMean := meanOf(fitnesses, order[:g.NumElites])

	return TellInfo{BestFitness: best, MeanFitness: mean, EliteMean: eliteMean},
		next, nil
}

// rowsOf splits a [pop, D] tensor into per-row float64 slices.
func rowsOf(t *tensor.Dense) ([][]float64, int) {
	shape := t.Shape()
	pop, dim := shape[0], shape[1]
	data := t.Data().([]float64)

	rows := make([][]float64, pop)
	for i := 0; i < pop; i++ {
		row := make([]float64, dim)
		copy(row, data[i*dim:(i+1)*dim])
		rows[i] = row
	}
	return rows, dim
}

func flatten(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	out := make([]float64, len(rows)*dim)
	for i, r := range rows {
		copy(out[i*dim:(i+1)*dim], r)
	}
	return out
}

// sortByFitnessDesc returns the indices of fitnesses in descending
// order.
func sortByFitnessDesc(fitnesses []float64) []int {
	order := make([]int, len(fitnesses))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return fitnesses[order[i]] > fitnesses[order[j]]
	})
	return order
}

func tournamentSelect(elites [][]float64, fitnesses []float64, order []int,
	tournSize int, rng *rand.Rand) []float64 {
	best := -1
	bestFitness := 0.0
	for i := 0; i < tournSize; i++ {
		candidate := rng.Intn(len(elites))
		fit := fitnesses[order[candidate]]
		if best == -1 || fit > bestFitness {
			best = candidate
			bestFitness = fit
		}
	}
	return elites[best]
}

func bestAndMean(fitnesses []float64) (best, mean float64) {
	if len(fitnesses) == 0 {
		return 0, 0
	}
	best = fitnesses[0]
	var sum float64
	for _, f := range fitnesses {
		if f > best {
			best = f
		}
		sum += f
	}
	return best, sum / float64(len(fitnesses))
}

func meanOf(fitnesses []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += fitnesses[i]
	}
	return sum / float64(len(idx))
}
