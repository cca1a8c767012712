package ec

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// OpenES is a natural-gradient evolution strategy with antithetic
// (mirrored) noise sampling and a mean update driven by rank-based
// centered utilities, following the standard OpenAI-ES formulation.
type OpenES struct {
	PopSize        int
	Dim            int
	MirrorSampling bool
}

// NewOpenES constructs an OpenES optimizer. If mirrorSampling is true,
// popSize must be even (each antithetic pair contributes +ε and -ε).
func NewOpenES(popSize, dim int, mirrorSampling bool) (*OpenES, error) {
	if mirrorSampling && popSize%2 != 0 {
		return nil, &Error{Op: "newopenes", Err: errOddPopMirrored}
	}
	return &OpenES{PopSize: popSize, Dim: dim, MirrorSampling: mirrorSampling}, nil
}

// Ask draws PopSize standard-normal noise vectors (antithetic pairs
// if MirrorSampling), and returns mean + sigma*noise as the
// candidates, with sigma = state.NoiseStd.Current. The raw noise is
// cached on the returned state for Tell's gradient estimate.
func (o *OpenES) Ask(state State, rng *rand.Rand) (*tensor.Dense, State, error) {
	if len(state.Mean) != o.Dim {
		return nil, state, &Error{Op: "openes.ask", Err: errConfiguration}
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	noise := make([]float64, o.PopSize*o.Dim)
	candidates := make([]float64, o.PopSize*o.Dim)
	sigma := state.NoiseStd.Current

	draws := o.PopSize
	if o.MirrorSampling {
		draws = o.PopSize / 2
	}

	for p := 0; p < draws; p++ {
		row := make([]float64, o.Dim)
		for d := 0; d < o.Dim; d++ {
			row[d] = normal.Rand()
		}
		copy(noise[p*o.Dim:(p+1)*o.Dim], row)
		for d := 0; d < o.Dim; d++ {
			candidates[p*o.Dim+d] = state.Mean[d] + sigma*row[d]
		}

		if o.MirrorSampling {
			mirror := p + draws
			for d := 0; d < o.Dim; d++ {
				noise[mirror*o.Dim+d] = -row[d]
				candidates[mirror*o.Dim+d] = state.Mean[d] - sigma*row[d]
			}
		}
	}

	next := state
	next.NoiseBuffer = tensor.New(tensor.WithShape(o.PopSize, o.Dim),
		tensor.WithBacking(noise))

	return tensor.New(tensor.WithShape(o.PopSize, o.Dim),
		tensor.WithBacking(candidates)), next, nil
}

// Tell converts fitnesses to centered rank utilities summing to zero,
// updates mean along the utility-weighted noise direction scaled by
// the current learning rate, and steps both the learning-rate and
// noise-std schedules.
func (o *OpenES) Tell(state State, fitnesses []float64, rng *rand.Rand) (TellInfo, State, error) {
	if len(fitnesses) != o.PopSize {
		return TellInfo{}, state, &Error{Op: "openes.tell", Err: errShapeMismatch}
	}
	if state.NoiseBuffer == nil {
		return TellInfo{}, state, &Error{Op: "openes.tell", Err: errConfiguration}
	}

	utilities := centeredRankUtilities(fitnesses)
	noiseRows, dim := rowsOf(state.NoiseBuffer)

	sigma := state.NoiseStd.Current
	alpha := state.LR.Current

	gradient := make([]float64, dim)
	for p := 0; p < o.PopSize; p++ {
		for d := 0; d < dim; d++ {
			gradient[d] += utilities[p] * noiseRows[p][d]
		}
	}

	newMean := make([]float64, dim)
	scale := alpha / (float64(o.PopSize) * sigma)
	for d := 0; d < dim; d++ {
		newMean[d] = state.Mean[d] + scale*gradient[d]
	}

	next := state
	next.Mean = newMean
	next.LR.Current = state.LR.Current
	next.NoiseStd.Current = state.NoiseStd.Current
	next.LR.Step()
	next.NoiseStd.Step()

	best, mean := bestAndMean(fitnesses)
	return TellInfo{BestFitness: best, MeanFitness: mean}, next, nil
}

// TellExternal concatenates external candidates' implied noise
// (external_params - mean, reusing state.ExternalPop the way
// VanillaESMod.TellExternal does) and their fitnesses onto the
// internal Ask population, then runs the same centered-rank-utility
// natural-gradient mean update over the enlarged set. This realizes
// the ERL-ES injection rule: every iteration, the current RL actor(s)
// compete in the mean update alongside the EC population.
func (o *OpenES) TellExternal(state State, fitnesses []float64,
	rng *rand.Rand) (TellInfo, State, error) {
	if len(fitnesses) < o.PopSize {
		return TellInfo{}, state, &Error{Op: "openes.tellexternal", Err: errShapeMismatch}
	}
	if state.NoiseBuffer == nil {
		return TellInfo{}, state, &Error{Op: "openes.tellexternal", Err: errConfiguration}
	}

	noiseRows, dim := rowsOf(state.NoiseBuffer)
	allFitnesses := append([]float64(nil), fitnesses[:o.PopSize]...)
	allNoise := append([][]float64(nil), noiseRows...)

	if len(fitnesses) > o.PopSize {
		external := fitnesses[o.PopSize:]
		extRows, _ := rowsOf(state.ExternalPop)
		for i, f := range external {
			if i >= len(extRows) {
				break
			}
			externalNoise := make([]float64, dim)
			for d := 0; d < dim; d++ {
				externalNoise[d] = extRows[i][d] - state.Mean[d]
			}
			allFitnesses = append(allFitnesses, f)
			allNoise = append(allNoise, externalNoise)
		}
	}

	utilities := centeredRankUtilities(allFitnesses)
	n := len(allFitnesses)
	sigma := state.NoiseStd.Current
	alpha := state.LR.Current

	gradient := make([]float64, dim)
	for p := 0; p < n; p++ {
		for d := 0; d < dim; d++ {
			gradient[d] += utilities[p] * allNoise[p][d]
		}
	}

	newMean := make([]float64, dim)
	scale := alpha / (float64(n) * sigma)
	for d := 0; d < dim; d++ {
		newMean[d] = state.Mean[d] + scale*gradient[d]
	}

	next := state
	next.Mean = newMean
	next.LR.Step()
	next.NoiseStd.Step()

	best, mean := bestAndMean(allFitnesses)
	return TellInfo{BestFitness: best, MeanFitness: mean}, next, nil
}

// centeredRankUtilities converts raw fitnesses into centered utilities
// in [-0.5, 0.5] that sum to (approximately) zero, using fitness rank
// rather than magnitude so the update is invariant to fitness scale.
// Tied fitnesses share the average rank of the positions they span, so
// that a population of entirely equal fitnesses collapses to the same
// utility (0, after centering) for every individual and contributes
// nothing to the gradient — distinct ranks assigned to ties would
// otherwise spread them across the full utility range and produce a
// spurious nonzero update direction.
func centeredRankUtilities(fitnesses []float64) []float64 {
	n := len(fitnesses)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return fitnesses[order[i]] < fitnesses[order[j]]
	})

	utilities := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && fitnesses[order[j]] == fitnesses[order[i]] {
			j++
		}
		// Positions i..j-1 are tied; their shared rank is the mean of
		// the (0-indexed) ranks they'd occupy individually.
		avgRank := float64(i+j-1) / 2
		u := avgRank/float64(n-1) - 0.5
		for k := i; k < j; k++ {
			utilities[order[k]] = u
		}
		i = j
	}
	return utilities
}
