package cohort

import (
	"fmt"

	"github.com/pkg/errors"
)

// Configuration is the set of hyperparameters that a single worker trains with. It is a plain
// value; copying it is always safe.
type Configuration struct {
	// Epochs is the number of mini-batch steps taken between exploit checks
	Epochs        int
	MiniBatchSize int
	LearnRate     float64

	// Momentum is the fraction of the previous update carried over to the next one. 0 gives plain
	// stochastic gradient descent.
	Momentum float64
}

// Validate returns an error if the Configuration cannot be used on a dataset of the given size.
// The mini-batch size must divide the dataset size.
func (c Configuration) Validate(datasetSize int) error {
	switch {
	case c.Epochs < 1:
		return errors.Wrapf(ErrInvalidConfig, "epochs must be > 0 (got %d)\n", c.Epochs)
	case c.MiniBatchSize < 1:
		return errors.Wrapf(ErrInvalidConfig, "mini-batch size must be > 0 (got %d)\n", c.MiniBatchSize)
	case datasetSize > 0 && datasetSize%c.MiniBatchSize != 0:
		return errors.Wrapf(ErrInvalidConfig, "mini-batch size %d does not divide dataset size %d\n", c.MiniBatchSize, datasetSize)
	case c.LearnRate <= 0:
		return errors.Wrapf(ErrInvalidConfig, "learn rate must be > 0 (got %v)\n", c.LearnRate)
	case c.Momentum < 0 || c.Momentum >= 1:
		return errors.Wrapf(ErrInvalidConfig, "momentum must be in [0, 1) (got %v)\n", c.Momentum)
	}

	return nil
}

func (c Configuration) String() string {
	return fmt.Sprintf("epochs=%d batch=%d rate=%.5f momentum=%.2f", c.Epochs, c.MiniBatchSize, c.LearnRate, c.Momentum)
}

// Tuning holds the constants of back-propagation that have no single accepted value. Every Network
// carries its own Tuning, which is copied along with it on Clone.
type Tuning struct {
	// Saturation is the magnitude beyond which a parameter moving further outwards has its update
	// scaled down by 1/|p|. A value of 0 disables damping.
	Saturation float64

	// NormalizeErrors divides the error propagated back into a layer by the width of the layer
	// that it came from.
	NormalizeErrors bool
}

// DefaultTuning returns the Tuning that new Networks are given
func DefaultTuning() Tuning {
	return Tuning{
		Saturation:      1.0,
		NormalizeErrors: true,
	}
}
