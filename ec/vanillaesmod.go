package ec

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// MixStrategy selects how external (RL-supplied) elites are blended
// into VanillaESMod's mean update.
type MixStrategy string

const (
	// MixReplace overwrites the lowest-ranked internal elite with each
	// external elite, keeping the elite pool size fixed.
	MixReplace MixStrategy = "replace"
	// MixAppend enlarges the elite pool with every external elite for
	// the mean update only.
	MixAppend MixStrategy = "append"
)

// VanillaESMod is a (non-natural) vanilla evolution strategy with an
// external slot: Ask draws noise for the internal population; Tell /
// TellExternal perform a top-NumElites mean update plus a noise-std
// schedule step.
type VanillaESMod struct {
	PopSize      int
	Dim          int
	NumElites    int
	ExternalSize int
	MixStrategy  MixStrategy
}

// NewVanillaESMod constructs a VanillaESMod optimizer.
func NewVanillaESMod(popSize, dim, numElites, externalSize int,
	mix MixStrategy) (*VanillaESMod, error) {
	if numElites <= 0 || numElites > popSize {
		return nil, &Error{Op: "newvanillaesmod", Err: errTooFewElites}
	}
	return &VanillaESMod{
		PopSize:      popSize,
		Dim:          dim,
		NumElites:    numElites,
		ExternalSize: externalSize,
		MixStrategy:  mix,
	}, nil
}

// Ask draws PopSize standard-normal noise vectors, returning
// mean + state.NoiseStd.Current*noise candidates and caching the raw
// noise on state.
func (v *VanillaESMod) Ask(state State, rng *rand.Rand) (*tensor.Dense, State, error) {
	if len(state.Mean) != v.Dim {
		return nil, state, &Error{Op: "vanillaesmod.ask", Err: errConfiguration}
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	sigma := state.NoiseStd.Current

	noise := make([]float64, v.PopSize*v.Dim)
	candidates := make([]float64, v.PopSize*v.Dim)
	for p := 0; p < v.PopSize; p++ {
		for d := 0; d < v.Dim; d++ {
			n := normal.Rand()
			noise[p*v.Dim+d] = n
			candidates[p*v.Dim+d] = state.Mean[d] + sigma*n
		}
	}

	next := state
	next.NoiseBuffer = tensor.New(tensor.WithShape(v.PopSize, v.Dim),
		tensor.WithBacking(noise))

	return tensor.New(tensor.WithShape(v.PopSize, v.Dim),
		tensor.WithBacking(candidates)), next, nil
}

// Tell performs the internal-only top-NumElites mean update (no
// external candidates compete).
func (v *VanillaESMod) Tell(state State, fitnesses []float64, rng *rand.Rand) (TellInfo, State, error) {
	return v.TellExternal(state, fitnesses, rng)
}

// TellExternal concatenates external noise (external_params - mean)
// and external fitnesses onto the internal population, ranks the
// combined set, and applies a top-NumElites mean update. MixReplace
// overwrites the lowest-ranked internal elite with each external
// elite; MixAppend simply enlarges the elite pool used for the mean.
func (v *VanillaESMod) TellExternal(state State, fitnesses []float64,
	rng *rand.Rand) (TellInfo, State, error) {
	noiseRows, dim := rowsOf(state.NoiseBuffer)
	allFitnesses := append([]float64(nil), fitnesses[:v.PopSize]...)
	allNoise := append([][]float64(nil), noiseRows...)

	// internal tracks which allFitnesses/allNoise slots still hold an
	// original internal candidate, so MixReplace only ever evicts the
	// weakest internal elite and never an external candidate placed by
	// an earlier iteration of this same loop.
	internal := make([]int, v.PopSize)
	for i := range internal {
		internal[i] = i
	}

	if len(fitnesses) > v.PopSize {
		external := fitnesses[v.PopSize:]
		extRows, _ := rowsOf(state.ExternalPop)
		for i, f := range external {
			var externalNoise []float64
			if i < len(extRows) {
				externalNoise = make([]float64, dim)
				for d := 0; d < dim; d++ {
					externalNoise[d] = extRows[i][d] - state.Mean[d]
				}
			}
			switch v.MixStrategy {
			case MixReplace:
				if len(internal) == 0 {
					allFitnesses = append(allFitnesses, f)
					allNoise = append(allNoise, externalNoise)
					continue
				}
				worst, worstPos := worstAmong(allFitnesses, internal)
				allFitnesses[worst] = f
				allNoise[worst] = externalNoise
				internal = append(internal[:worstPos], internal[worstPos+1:]...)
			default: // MixAppend
				allFitnesses = append(allFitnesses, f)
				allNoise = append(allNoise, externalNoise)
			}
		}
	}

	order := make([]int, len(allFitnesses))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return allFitnesses[order[i]] > allFitnesses[order[j]]
	})

	numElites := v.NumElites
	if numElites > len(order) {
		numElites = len(order)
	}

	mean := make([]float64, dim)
	for i := 0; i < numElites; i++ {
		row := allNoise[order[i]]
		if row == nil {
			continue
		}
		for d := 0; d < dim; d++ {
			mean[d] += row[d]
		}
	}
	newMean := make([]float64, dim)
	for d := 0; d < dim; d++ {
		newMean[d] = state.Mean[d] + mean[d]/float64(numElites)
	}

	next := state
	next.Mean = newMean
	next.NoiseStd.Step()

	best, meanFit := bestAndMean(allFitnesses)
	eliteMean := meanOf(allFitnesses, order[:numElites])

	return TellInfo{BestFitness: best, MeanFitness: meanFit, EliteMean: eliteMean},
		next, nil
}

// worstAmong returns the allFitnesses index of the lowest-fitness
// entry among candidates (a set of indices into allFitnesses), along
// with candidates' position of that index so the caller can remove it
// from the candidate set.
func worstAmong(allFitnesses []float64, candidates []int) (idx, pos int) {
	idx = candidates[0]
	pos = 0
	for p, c := range candidates {
		if allFitnesses[c] < allFitnesses[idx] {
			idx = c
			pos = p
		}
	}
	return idx, pos
}
