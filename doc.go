// Package cohort trains small feed-forward neural networks and searches for good training
// hyperparameters by running a whole population of them at once.
//
// Networks
//
// A Network is an ordered list of fully-connected Layers. Activations are found in the subpackage
// "activations", which must be imported (if only for its side effects) before any saved Network
// can be loaded:
//
//		import _ "github.com/sharnoff/cohort/activations"
//
//		net, err := cohort.NewNetwork(784, []int{32, 10}, activations.BipolarSigmoid(), rng)
//
// Weights start uniformly random in [-1, 1], and biases at zero.
//
// Training
//
// Training is done one mini-batch at a time, with Samples drawn from a Dataset:
//
//		batch := data.MiniBatch(cfg.MiniBatchSize, rng)
//		outputs := net.TrainOnBatch(batch, cfg.LearnRate)
//		cost := cohort.Cost(outputs, batch)
//
// Outputs are returned rather than scored, so that the caller can pick how to measure them. The
// constants of back-propagation that have no single right answer (the saturation threshold and
// whether errors are divided by the width of the layer they came from) are kept in a Tuning,
// which can be set per Network.
//
// Populations
//
// Two strategies are provided for training a population. The subpackage "pbt" runs each Network in
// its own goroutine, periodically replacing the worse ones with perturbed copies of the best
// (Population-Based Training). The subpackage "generational" evaluates the whole population
// through a TrainableTask, then builds the next generation from randomly mutated copies of the
// best few.
//
// Saving and Loading
//
// Networks are written to a directory, with one text file per Layer:
//
//		func (net *Network) Save(dirPath string, overwrite bool) error
//		func Load(dirPath string) (*Network, error)
//
// Missing or malformed files are returned as errors; nothing is filled in with defaults.
package cohort
