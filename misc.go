package cohort

import (
	"gonum.org/v1/gonum/floats"
)

// returns -1 if the slice is empty
func argmax(vs []float64) int {
	if len(vs) == 0 {
		return -1
	}
	return floats.MaxIdx(vs)
}

// CorrectHighest returns whether or not the largest value in each is at the same index
func CorrectHighest(outs, targets []float64) bool {
	return argmax(outs) == argmax(targets)
}

// Accuracy returns the fraction of samples for which the largest output is at the same index as the
// largest target.
func Accuracy(outputs [][]float64, samples []Sample) float64 {
	if len(outputs) != len(samples) {
		panic(SizeMismatchError{"Accuracy", len(samples), len(outputs)})
	} else if len(samples) == 0 {
		return 0
	}

	correct := 0
	for i := range samples {
		if CorrectHighest(outputs[i], samples[i].Target) {
			correct++
		}
	}

	return float64(correct) / float64(len(samples))
}
