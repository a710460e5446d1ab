package cohort

import (
	"math/rand"
)

// Activation is the elementwise function applied to every node of a Layer after the weighted sum of
// its inputs. Implementations can be found in the subpackage "activations", which registers them
// so that saved Layers can be recovered by their tag.
type Activation interface {
	// TypeString returns the tag that identifies this Activation in saved layer files. It must be
	// unique amongst all registered Activations.
	TypeString() string

	// Value returns f(z)
	Value(z float64) float64

	// Deriv returns f'(z), evaluated at the pre-activation value 'z' - not at f(z).
	Deriv(z float64) float64
}

// Dataset is the read-only source of Samples shared between every worker of a population. No
// method may mutate the underlying storage; all bookkeeping for a mini-batch draw must be local to
// that call, so that a Dataset may be used concurrently by any number of goroutines.
type Dataset interface {
	// All returns every Sample, in order. The returned slice must not be modified.
	All() []Sample

	// Sample returns the Sample at index 'i'
	Sample(i int) Sample

	// Len returns the total number of Samples
	Len() int

	// MiniBatch returns 'size' Samples chosen uniformly at random, with no index selected twice
	// within the same batch. Batches are independent of each other. If 'rng' is nil, the package
	// level source from math/rand is used.
	//
	// MiniBatch panics with ErrBatchSize if size is not within [1, Len()].
	MiniBatch(size int, rng *rand.Rand) []Sample
}

// TrainableTask is a unit of work that a controller can hand a Network to, without knowing
// anything about the data behind it. Evaluate may train the Network in place before scoring it.
// Lower costs are better.
type TrainableTask interface {
	ID() string
	Evaluate(*Network) (float64, error)
}
