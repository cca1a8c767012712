package ec

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// CEM is a diagonal cross-entropy-method optimizer: Ask samples
// candidates as mean + sqrt(variance) ⊙ N(0, I); Tell fits mean and
// variance to the top NumElites candidates by fitness.
type CEM struct {
	PopSize   int
	NumElites int
	Dim       int
	Epsilon   float64 // variance regularizer added after each Tell
}

// NewCEM constructs a CEM optimizer.
func NewCEM(popSize, numElites, dim int, epsilon float64) (*CEM, error) {
	if numElites <= 0 || numElites > popSize {
		return nil, &Error{Op: "newcem", Err: errTooFewElites}
	}
	return &CEM{PopSize: popSize, NumElites: numElites, Dim: dim,
		Epsilon: epsilon}, nil
}

// Ask draws PopSize candidates from the diagonal Gaussian
// N(state.Mean, diag(state.Variance)).
func (c *CEM) Ask(state State, rng *rand.Rand) (*tensor.Dense, State, error) {
	if len(state.Mean) != c.Dim || len(state.Variance) != c.Dim {
		return nil, state, &Error{Op: "cem.ask", Err: errConfiguration}
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	data := make([]float64, c.PopSize*c.Dim)
	for p := 0; p < c.PopSize; p++ {
		for d := 0; d < c.Dim; d++ {
			std := math.Sqrt(state.Variance[d])
			data[p*c.Dim+d] = state.Mean[d] + std*normal.Rand()
		}
	}

	candidates := tensor.New(tensor.WithShape(c.PopSize, c.Dim),
		tensor.WithBacking(data))

	next := state
	next.NoiseBuffer = candidates
	return candidates, next, nil
}

// Tell selects the top NumElites candidates by fitness, sets mean to
// their average, and sets variance to their variance plus Epsilon.
func (c *CEM) Tell(state State, fitnesses []float64, rng *rand.Rand) (TellInfo, State, error) {
	if len(fitnesses) != c.PopSize {
		return TellInfo{}, state, &Error{Op: "cem.tell", Err: errShapeMismatch}
	}

	// The candidates that produced fitnesses must be recoverable from
	// the caller's own bookkeeping (CEM keeps no per-ask history), so
	// the driver is expected to pass the same candidates tensor back
	// via state.NoiseBuffer's row-reuse convention; CEM repurposes
	// NoiseBuffer to stash the last Ask's raw candidates.
	if state.NoiseBuffer == nil {
		return TellInfo{}, state, &Error{Op: "cem.tell", Err: errConfiguration}
	}

	rows, dim := rowsOf(state.NoiseBuffer)
	order := sortByFitnessDesc(fitnesses)

	mean := make([]float64, dim)
	for i := 0; i < c.NumElites; i++ {
		row := rows[order[i]]
		for d := 0; d < dim; d++ {
			mean[d] += row[d]
		}
	}
	for d := range mean {
		mean[d] /= float64(c.NumElites)
	}

	variance := make([]float64, dim)
	for i := 0; i < c.NumElites; i++ {
		row := rows[order[i]]
		for d := 0; d < dim; d++ {
			diff := row[d] - mean[d]
			variance[d] += diff * diff
		}
	}
	for d := range variance {
		variance[d] = variance[d]/float64(c.NumElites) + c.Epsilon
	}

	next := state
	next.Mean = mean
	next.Variance = variance

	best, meanFit := bestAndMean(fitnesses)
	eliteMean := meanOf(fitnesses, order[:c.NumElites])

	return TellInfo{BestFitness: best, MeanFitness: meanFit, EliteMean: eliteMean},
		next, nil
}
