package ec

import (
	"math/rand"

	"gorgonia.org/tensor"

	"github.com/samuelfneumann/erl/ec/mlpops"
)

// ERLGA extends GA with a crossover phase and an external slot that
// lets RL-trained actors compete with the EC population, grounded on
// the original source's erl_ga.py _rl_injection / ERLGAMod.tell_external:
// TellExternal ranks pop ∪ external_pop together and builds the next
// generation only from the top NumElites individuals of that set.
type ERLGA struct {
	PopSize          int
	NumElites        int
	TournSize        int
	NumCrossoverFrac float64
	EnableCrossover  bool
	MutateCfg        mlpops.MutateConfig

	// LeafShapes is the network.Codec's per-leaf shape list
	// (Codec.Shapes()) for the population's architecture, letting
	// Mutate and Crossover operate per weight/bias tensor instead of
	// treating an individual as one opaque vector. Nil is accepted
	// (falls back to a single leaf).
	LeafShapes [][]int

	// Reinit, when non-nil, draws a fresh individual from scratch for
	// Mutate's reset_prob step. A nil Reinit makes MutateCfg.ResetProb
	// inert, so callers that configure a positive ResetProb must also
	// supply this.
	Reinit func(rng *rand.Rand) []float64
}

// NewERLGA constructs an ERLGA optimizer. NumElites must be positive,
// at most PopSize, and at least the number of RL agents that will ever
// be injected via TellExternal (validated by the caller at setup,
// since that count is not known to ERLGA itself).
func NewERLGA(popSize, numElites, tournSize int, numCrossoverFrac float64,
	enableCrossover bool, mutateCfg mlpops.MutateConfig, leafShapes [][]int,
	reinit func(rng *rand.Rand) []float64) (*ERLGA, error) {
	if numElites <= 0 || numElites > popSize {
		return nil, &Error{Op: "newerlga", Err: errTooFewElites}
	}
	return &ERLGA{
		PopSize:          popSize,
		NumElites:        numElites,
		TournSize:        tournSize,
		NumCrossoverFrac: numCrossoverFrac,
		EnableCrossover:  enableCrossover,
		MutateCfg:        mutateCfg,
		LeafShapes:       leafShapes,
		Reinit:           reinit,
	}, nil
}

// Ask returns the stored population unchanged.
func (e *ERLGA) Ask(state State, rng *rand.Rand) (*tensor.Dense, State, error) {
	if state.Pop == nil {
		return nil, state, &Error{Op: "erlga.ask", Err: errConfiguration}
	}
	if state.Pop.Shape()[0] != e.PopSize {
		return nil, state, &Error{Op: "erlga.ask", Err: errShapeMismatch}
	}
	return state.Pop, state, nil
}

// Tell behaves like GA.Tell: no external individuals are considered.
func (e *ERLGA) Tell(state State, fitnesses []float64, rng *rand.Rand) (TellInfo, State, error) {
	state.ExternalPop = nil
	return e.TellExternal(state, fitnesses, rng)
}

// TellExternal ranks pop ∪ state.ExternalPop together by fitness and
// keeps the top NumElites individuals unchanged, then fills the
// remaining PopSize-NumElites slots from those elites: a
// NumCrossoverFrac share by crossover (when EnableCrossover is set)
// and the rest by tournament selection and mutation as GA does.
func (e *ERLGA) TellExternal(state State, fitnesses []float64,
	rng *rand.Rand) (TellInfo, State, error) {
	rows, dim := rowsOf(state.Pop)
	if state.ExternalPop != nil {
		extRows, extDim := rowsOf(state.ExternalPop)
		if extDim != dim {
			return TellInfo{}, state, &Error{Op: "erlga.tellexternal",
				Err: errShapeMismatch}
		}
		rows = append(rows, extRows...)
	}
	if len(fitnesses) != len(rows) {
		return TellInfo{}, state, &Error{Op: "erlga.tellexternal",
			Err: errShapeMismatch}
	}

	order := sortByFitnessDesc(fitnesses)

	elites := make([][]float64, e.NumElites)
	for i := 0; i < e.NumElites; i++ {
		elites[i] = rows[order[i]]
	}

	newRows := make([][]float64, e.PopSize)
	for i := 0; i < e.NumElites && i < e.PopSize; i++ {
		newRows[i] = elites[i]
	}

	numCrossover := int(e.NumCrossoverFrac * float64(e.PopSize-e.NumElites))
	i := e.NumElites
	if e.EnableCrossover {
		for ; i < e.NumElites+numCrossover && i < e.PopSize; i++ {
			a := elites[rng.Intn(len(elites))]
			b := elites[rng.Intn(len(elites))]
			newRows[i] = mlpops.Crossover(a, b, e.LeafShapes, rng)
		}
	}
	for ; i < e.PopSize; i++ {
		parent := tournamentSelect(elites, fitnesses, order, e.TournSize, rng)
		newRows[i] = mlpops.Mutate(parent, e.LeafShapes, e.MutateCfg, rng, e.Reinit)
	}

	pop := tensor.New(tensor.WithShape(e.PopSize, dim),
		tensor.WithBacking(flatten(newRows)))
	eliteCache := tensor.New(tensor.WithShape(e.NumElites, dim),
		tensor.WithBacking(flatten(elites)))

	next := state
	next.Pop = pop
	next.EliteCache = eliteCache
	next.ExternalPop = nil

	best, mean := bestAndMean(fitnesses)
	eliteMean := meanOf(fitnesses, order[:e.NumElites])

	return TellInfo{BestFitness: best, MeanFitness: mean, EliteMean: eliteMean},
		next, nil
}
