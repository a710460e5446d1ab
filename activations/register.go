package activations

import (
	"github.com/sharnoff/cohort"
)

func init() {
	list := []func() cohort.Activation{
		func() cohort.Activation { return BipolarSigmoid() },
		func() cohort.Activation { return Sigmoid() },
		func() cohort.Activation { return Tanh() },
		func() cohort.Activation { return Identity() },
		func() cohort.Activation { return LeakyReLU(DefaultLeak) },
	}

	if err := cohort.RegisterAll(list); err != nil {
		panic(err)
	}
	if err := cohort.RegisterParametric("leaky-relu", parseLeakyReLU); err != nil {
		panic(err)
	}
}

// Default returns the Activation that networks are built with when none is named
func Default() cohort.Activation {
	return BipolarSigmoid()
}
