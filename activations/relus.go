package activations

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
)

// DefaultLeak is the slope below zero of the registered "leaky-relu"
const DefaultLeak float64 = 0.1

type lrelu float64

// LeakyReLU returns a 'leaky ReLU', where the slope below zero is given by alpha.
//
// With DefaultLeak, the tag is "leaky-relu". Any other alpha is kept in the tag, as
// "leaky-relu:<alpha>", so that it is loaded back unchanged.
func LeakyReLU(alpha float64) lrelu {
	return lrelu(alpha)
}

func parseLeakyReLU(param string) (cohort.Activation, error) {
	alpha, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "Bad leaky-relu slope %q\n", param)
	}
	return LeakyReLU(alpha), nil
}

func (t lrelu) TypeString() string {
	if float64(t) == DefaultLeak {
		return "leaky-relu"
	}
	return "leaky-relu:" + strconv.FormatFloat(float64(t), 'g', -1, 64)
}

func (t lrelu) Value(z float64) float64 {
	if z < 0 {
		return float64(t) * z
	}
	return z
}

func (t lrelu) Deriv(z float64) float64 {
	if z < 0 {
		return float64(t)
	}
	return 1
}

type identity int8

func Identity() identity {
	return identity(0)
}

func (t identity) TypeString() string {
	return "identity"
}

func (t identity) Value(z float64) float64 {
	return z
}

func (t identity) Deriv(z float64) float64 {
	return 1
}
