package cohort

import (
	"math"
)

// Sample is a single labelled input. Once constructed it is never modified, so it may be shared by
// any number of Networks.
type Sample struct {
	Label    int
	Features []float64
	Target   []float64
}

// NewSample copies 'features', scaling them by their largest magnitude (if that is greater than 1)
// so that all features end up in [-1, 1]. The target is the one-hot encoding of 'label' over
// 'numClasses' classes.
//
// NewSample panics with ErrLabelOutOfRange if label is not in [0, numClasses).
func NewSample(label int, features []float64, numClasses int) Sample {
	if label < 0 || label >= numClasses {
		panic(ErrLabelOutOfRange)
	}

	target := make([]float64, numClasses)
	target[label] = 1

	return Sample{
		Label:    label,
		Features: normalize(features),
		Target:   target,
	}
}

// NewSampleWithTarget is like NewSample, but takes the full target vector directly. The label is
// set to the index of the largest target value.
func NewSampleWithTarget(features, target []float64) Sample {
	t := make([]float64, len(target))
	copy(t, target)

	return Sample{
		Label:    argmax(t),
		Features: normalize(features),
		Target:   t,
	}
}

func normalize(features []float64) []float64 {
	max := 1.0
	for _, f := range features {
		max = math.Max(max, math.Abs(f))
	}

	fs := make([]float64, len(features))
	for i, f := range features {
		fs[i] = f / max
	}
	return fs
}
