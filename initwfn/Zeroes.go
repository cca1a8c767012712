package initwfn

import G "gorgonia.org/gorgonia"

type ZeroesConfig struct {
}

// NewZeroes returns a new zeroes weight initializer
func NewZeroes() (*InitWFn, error) {
	config := ZeroesConfig{}

	return newInitWFn(Zeroes, config)
}

func (g ZeroesConfig) Create() G.InitWFn {
	return G.Zeroes()
}

func (g ZeroesConfig) ValidType(t Type) bool {
	return t == Zeroes
}
