package cohort

import (
	"math"
)

// SquaredError returns the average of (target - output)^2 over every value.
//
// SquaredError panics with a SizeMismatchError if the lengths differ.
func SquaredError(outputs, targets []float64) float64 {
	if len(outputs) != len(targets) {
		panic(SizeMismatchError{"SquaredError", len(targets), len(outputs)})
	}

	var total float64
	for i := range outputs {
		total += math.Pow(targets[i]-outputs[i], 2)
	}

	return total / float64(len(outputs))
}

// Cost is the average squared error over a batch, where outputs[i] is the output of the Network for
// samples[i]. Every sample has the same number of outputs, so this is also the mean over samples
// of SquaredError.
//
// Cost panics with a SizeMismatchError if the number of outputs is not the number of samples.
func Cost(outputs [][]float64, samples []Sample) float64 {
	if len(outputs) != len(samples) {
		panic(SizeMismatchError{"Cost", len(samples), len(outputs)})
	} else if len(samples) == 0 {
		return 0
	}

	var total float64
	for i := range samples {
		total += SquaredError(outputs[i], samples[i].Target)
	}

	return total / float64(len(samples))
}
