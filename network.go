package cohort

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Network is an ordered list of fully-connected Layers, where the output of each Layer is the input
// to the next. A Network is not safe for concurrent use; to hand a Network to another goroutine,
// give it a Clone.
type Network struct {
	inputWidth int
	layers     []*Layer
	tuning     Tuning
}

// NewNetwork creates a Network taking 'inputWidth' features, with one Layer for each element of
// 'sizes'. All Layers use the same Activation.
func NewNetwork(inputWidth int, sizes []int, act Activation, rng *rand.Rand) (*Network, error) {
	if act == nil {
		return nil, NilArgError{"Activation"}
	} else if len(sizes) == 0 {
		return nil, ErrNoLayers
	} else if inputWidth < 1 {
		return nil, errors.Wrapf(ErrNonPositiveSize, "Can't create network with input width %d\n", inputWidth)
	}

	layers := make([]*Layer, len(sizes))
	width := inputWidth
	for i, s := range sizes {
		if s < 1 {
			return nil, errors.Wrapf(ErrNonPositiveSize, "Can't create network, layer %d has size %d\n", i, s)
		}

		layers[i] = NewLayer(s, width, act, rng)
		width = s
	}

	return NewNetworkFromLayers(inputWidth, layers...)
}

// NewNetworkFromLayers assembles a Network from existing Layers, which are then owned by the
// Network. The input width of each Layer must be the size of the one before it.
func NewNetworkFromLayers(inputWidth int, layers ...*Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, ErrNoLayers
	}

	width := inputWidth
	for i, l := range layers {
		if l == nil {
			return nil, NilArgError{"Layer"}
		} else if l.InputWidth() != width {
			return nil, errors.Errorf("Can't create network, layer %d has input width %d, expected %d", i, l.InputWidth(), width)
		}
		width = l.Size()
	}

	net := &Network{
		inputWidth: inputWidth,
		layers:     layers,
	}
	net.SetTuning(DefaultTuning())

	return net, nil
}

func (net *Network) InputWidth() int {
	return net.inputWidth
}

func (net *Network) OutputWidth() int {
	return net.layers[len(net.layers)-1].Size()
}

// Layers returns the Layers of the Network, in order. The Layers themselves are not copied.
func (net *Network) Layers() []*Layer {
	ls := make([]*Layer, len(net.layers))
	copy(ls, net.layers)
	return ls
}

func (net *Network) Tuning() Tuning {
	return net.tuning
}

func (net *Network) SetTuning(t Tuning) {
	net.tuning = t
	for _, l := range net.layers {
		l.SetSaturation(t.Saturation)
	}
}

// Forward feeds the features through every Layer and returns the output of the last one. It is the
// only way to populate the cached values used by TrainOnBatch.
//
// Forward panics with a SizeMismatchError if len(features) is not the input width.
func (net *Network) Forward(features []float64) []float64 {
	if len(features) != net.inputWidth {
		panic(SizeMismatchError{"Network.Forward", net.inputWidth, len(features)})
	}

	values := features
	for _, l := range net.layers {
		values = l.Forward(values)
	}
	return values
}

// TrainOnBatch runs a single step of gradient descent over the samples, returning the output of the
// Network for each sample (from before the update).
func (net *Network) TrainOnBatch(samples []Sample, learnRate float64) [][]float64 {
	return net.TrainOnBatchMomentum(samples, learnRate, 0)
}

// TrainOnBatchMomentum is TrainOnBatch, with momentum applied to the update.
//
// The error of each output node is 2(o - t)·f'(z). The error of a hidden node c in layer l is the
// weighted sum of the errors in layer l+1 that it feeds into, divided by the width of layer l+1
// (if the Tuning says so), times f'(z) of the node.
//
// TrainOnBatchMomentum panics with ErrEmptyBatch if there are no samples, and with a
// SizeMismatchError if any sample does not fit the Network.
func (net *Network) TrainOnBatchMomentum(samples []Sample, learnRate, momentum float64) [][]float64 {
	if len(samples) == 0 {
		panic(ErrEmptyBatch)
	}

	last := len(net.layers) - 1
	outputs := make([][]float64, len(samples))
	errs := make([][]float64, len(net.layers))

	for s, sample := range samples {
		if len(sample.Target) != net.OutputWidth() {
			panic(SizeMismatchError{"Network.TrainOnBatch (target)", net.OutputWidth(), len(sample.Target)})
		}

		out := net.Forward(sample.Features)
		outputs[s] = out

		outLayer := net.layers[last]
		e := make([]float64, len(out))
		for o := range out {
			e[o] = 2 * (out[o] - sample.Target[o]) * outLayer.act.Deriv(outLayer.z.AtVec(o))
		}
		errs[last] = e

		for l := last - 1; l >= 0; l-- {
			layer, next := net.layers[l], net.layers[l+1]

			sum := mat.NewVecDense(layer.Size(), nil)
			sum.MulVec(next.weights.T(), mat.NewVecDense(len(errs[l+1]), errs[l+1]))

			div := 1.0
			if net.tuning.NormalizeErrors {
				div = float64(next.Size())
			}

			e := make([]float64, layer.Size())
			for c := range e {
				e[c] = sum.AtVec(c) / div * layer.act.Deriv(layer.z.AtVec(c))
			}
			errs[l] = e
		}

		for l, layer := range net.layers {
			prev := sample.Features
			if l > 0 {
				prev = net.layers[l-1].a.RawVector().Data
			}
			layer.AccumulateGradient(errs[l], prev)
		}
	}

	for _, l := range net.layers {
		l.ApplyGradientMomentum(len(samples), learnRate, momentum)
	}

	return outputs
}

// Clone returns a deep copy of the Network, sharing no mutable state with the original.
func (net *Network) Clone() *Network {
	layers := make([]*Layer, len(net.layers))
	for i, l := range net.layers {
		layers[i] = l.Clone()
	}

	return &Network{
		inputWidth: net.inputWidth,
		layers:     layers,
		tuning:     net.tuning,
	}
}

// Perturb adds a value drawn uniformly from [-magnitude, magnitude] to every weight and bias.
func (net *Network) Perturb(magnitude float64, rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	for _, l := range net.layers {
		l.perturb(magnitude, rng)
	}
}

// Evaluate runs Forward on every sample without training, returning the outputs
func (net *Network) Evaluate(samples []Sample) [][]float64 {
	outputs := make([][]float64, len(samples))
	for i, s := range samples {
		outputs[i] = net.Forward(s.Features)
	}
	return outputs
}
