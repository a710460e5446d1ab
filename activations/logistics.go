// logistics.go contains the S-shaped activation functions:
// * Bipolar sigmoid
// * Sigmoid
// * Tanh
package activations

import (
	"math"
)

// ****************************************
// Bipolar sigmoid
// ****************************************

type bipolar int8

// BipolarSigmoid returns the logistic function stretched to the range (-1, 1):
// f(x) = -1 + 2/(1 + e^-x)
func BipolarSigmoid() bipolar {
	return bipolar(0)
}

func (t bipolar) TypeString() string {
	return "bipolar-sigmoid"
}

func (t bipolar) Value(z float64) float64 {
	return -1 + 2/(1+math.Exp(-z))
}

func (t bipolar) Deriv(z float64) float64 {
	f := t.Value(z)
	return 0.5 * (1 + f) * (1 - f)
}

// ****************************************
// Sigmoid
// ****************************************

type sigmoid int8

// Sigmoid returns the standard logistic function, with range (0, 1)
func Sigmoid() sigmoid {
	return sigmoid(0)
}

func (t sigmoid) TypeString() string {
	return "sigmoid"
}

func (t sigmoid) Value(z float64) float64 {
	return 0.5 + 0.5*math.Tanh(0.5*z)
}

func (t sigmoid) Deriv(z float64) float64 {
	f := t.Value(z)
	return f * (1 - f)
}

// ****************************************
// Tanh
// ****************************************

type tanh int8

func Tanh() tanh {
	return tanh(0)
}

func (t tanh) TypeString() string {
	return "tanh"
}

func (t tanh) Value(z float64) float64 {
	return math.Tanh(z)
}

func (t tanh) Deriv(z float64) float64 {
	return 1 - math.Pow(math.Tanh(z), 2)
}
