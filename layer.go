package cohort

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer is a fully-connected set of nodes, each with a bias and one weight per input. The
// dimensions of a Layer are fixed at construction.
//
// A Layer is not safe for concurrent use. It is always owned by exactly one Network.
type Layer struct {
	act Activation

	weights *mat.Dense    // size x inputWidth
	biases  *mat.VecDense // size

	// gradient accumulators, summed over a mini-batch and reset by ApplyGradient
	weightGrad *mat.Dense
	biasGrad   *mat.VecDense

	// previous updates, for momentum
	weightVel *mat.Dense
	biasVel   *mat.VecDense

	// nil until the first call to Forward
	z *mat.VecDense
	a *mat.VecDense

	saturation float64
}

// NewLayer creates a Layer with weights drawn uniformly from [-1, 1] and biases of zero. If 'rng'
// is nil, the package-level source from math/rand is used.
//
// NewLayer panics if either size is less than 1, or if act is nil.
func NewLayer(size, inputWidth int, act Activation, rng *rand.Rand) *Layer {
	if size < 1 || inputWidth < 1 {
		panic(ErrNonPositiveSize)
	} else if act == nil {
		panic(NilArgError{"Activation"})
	}

	float := rand.Float64
	if rng != nil {
		float = rng.Float64
	}

	ws := make([]float64, size*inputWidth)
	for i := range ws {
		ws[i] = 2*float() - 1
	}

	return newLayer(act, mat.NewDense(size, inputWidth, ws), mat.NewVecDense(size, nil))
}

func newLayer(act Activation, weights *mat.Dense, biases *mat.VecDense) *Layer {
	size, inputWidth := weights.Dims()

	return &Layer{
		act:        act,
		weights:    weights,
		biases:     biases,
		weightGrad: mat.NewDense(size, inputWidth, nil),
		biasGrad:   mat.NewVecDense(size, nil),
		weightVel:  mat.NewDense(size, inputWidth, nil),
		biasVel:    mat.NewVecDense(size, nil),
		saturation: DefaultTuning().Saturation,
	}
}

// Size returns the number of nodes in the Layer
func (l *Layer) Size() int {
	r, _ := l.weights.Dims()
	return r
}

// InputWidth returns the number of values that Forward expects
func (l *Layer) InputWidth() int {
	_, c := l.weights.Dims()
	return c
}

func (l *Layer) Activation() Activation {
	return l.act
}

// SetSaturation sets the magnitude beyond which outward updates are damped. 0 disables damping.
func (l *Layer) SetSaturation(s float64) {
	l.saturation = s
}

// Forward computes z = b + W·x for every node, caches both z and f(z), and returns a copy of f(z).
//
// Forward panics with a SizeMismatchError if len(inputs) is not the input width of the Layer.
func (l *Layer) Forward(inputs []float64) []float64 {
	if len(inputs) != l.InputWidth() {
		panic(SizeMismatchError{"Layer.Forward", l.InputWidth(), len(inputs)})
	}

	z := mat.NewVecDense(l.Size(), nil)
	z.MulVec(l.weights, mat.NewVecDense(len(inputs), inputs))
	z.AddVec(z, l.biases)

	a := make([]float64, l.Size())
	for i := range a {
		a[i] = l.act.Value(z.AtVec(i))
	}

	l.z = z
	l.a = mat.NewVecDense(len(a), a)

	return l.Activations()
}

// AccumulateGradient adds the gradient from a single sample to the accumulators. 'nodeErrors' is
// the error of each node of this Layer; 'previousActivations' are the values that were given to
// Forward for that sample.
//
// AccumulateGradient panics with a SizeMismatchError if either length is wrong.
func (l *Layer) AccumulateGradient(nodeErrors, previousActivations []float64) {
	if len(nodeErrors) != l.Size() {
		panic(SizeMismatchError{"Layer.AccumulateGradient (node errors)", l.Size(), len(nodeErrors)})
	} else if len(previousActivations) != l.InputWidth() {
		panic(SizeMismatchError{"Layer.AccumulateGradient (previous activations)", l.InputWidth(), len(previousActivations)})
	}

	e := mat.NewVecDense(len(nodeErrors), nodeErrors)

	l.biasGrad.AddVec(l.biasGrad, e)
	l.weightGrad.RankOne(l.weightGrad, 1, e, mat.NewVecDense(len(previousActivations), previousActivations))
}

// ApplyGradient moves every parameter against its accumulated gradient, averaged over
// 'batchSize', and then resets the accumulators. It must be called exactly once per mini-batch.
//
// A parameter beyond the saturation threshold whose update would push it further from zero has
// that update scaled by 1/|p|. Updates back towards zero are never damped.
func (l *Layer) ApplyGradient(batchSize int, learnRate float64) {
	l.ApplyGradientMomentum(batchSize, learnRate, 0)
}

// ApplyGradientMomentum is ApplyGradient, but with a fraction of the previous update added to
// the current one before damping.
func (l *Layer) ApplyGradientMomentum(batchSize int, learnRate, momentum float64) {
	if batchSize < 1 {
		panic(ErrNonPositiveSize)
	}

	scale := learnRate / float64(batchSize)
	size, inputWidth := l.weights.Dims()

	for n := 0; n < size; n++ {
		b, v := l.step(l.biases.AtVec(n), l.biasGrad.AtVec(n)*scale, l.biasVel.AtVec(n), momentum)
		l.biases.SetVec(n, b)
		l.biasVel.SetVec(n, v)

		for w := 0; w < inputWidth; w++ {
			p, v := l.step(l.weights.At(n, w), l.weightGrad.At(n, w)*scale, l.weightVel.At(n, w), momentum)
			l.weights.Set(n, w, p)
			l.weightVel.Set(n, w, v)
		}
	}

	l.weightGrad.Zero()
	l.biasGrad.Zero()
}

// step returns the updated parameter and the new velocity
func (l *Layer) step(p, delta, vel, momentum float64) (float64, float64) {
	if momentum != 0 {
		delta += momentum * vel
	}

	newVel := delta

	s := l.saturation
	// p -= delta, so damping applies when -delta has the sign of p
	if s > 0 && ((p > s && delta < 0) || (p < -s && delta > 0)) {
		delta /= math.Abs(p)
	}

	return p - delta, newVel
}

// Weights returns a copy of the weights, indexed by [node][input]
func (l *Layer) Weights() [][]float64 {
	size, inputWidth := l.weights.Dims()

	ws := make([][]float64, size)
	for n := range ws {
		ws[n] = make([]float64, inputWidth)
		mat.Row(ws[n], n, l.weights)
	}
	return ws
}

// Biases returns a copy of the biases
func (l *Layer) Biases() []float64 {
	bs := make([]float64, l.Size())
	copy(bs, l.biases.RawVector().Data)
	return bs
}

func (l *Layer) Weight(node, input int) float64 {
	return l.weights.At(node, input)
}

func (l *Layer) SetWeight(node, input int, w float64) {
	l.weights.Set(node, input, w)
}

func (l *Layer) Bias(node int) float64 {
	return l.biases.AtVec(node)
}

func (l *Layer) SetBias(node int, b float64) {
	l.biases.SetVec(node, b)
}

// PreActivations returns a copy of the z values from the last call to Forward, or nil if Forward
// has not been called.
func (l *Layer) PreActivations() []float64 {
	return vecCopy(l.z)
}

// Activations returns a copy of the output from the last call to Forward, or nil if Forward has
// not been called.
func (l *Layer) Activations() []float64 {
	return vecCopy(l.a)
}

func vecCopy(v *mat.VecDense) []float64 {
	if v == nil {
		return nil
	}

	c := make([]float64, v.Len())
	copy(c, v.RawVector().Data)
	return c
}

// Clone returns a deep copy of the Layer. None of the buffers are shared.
func (l *Layer) Clone() *Layer {
	c := newLayer(l.act, mat.DenseCopyOf(l.weights), mat.VecDenseCopyOf(l.biases))
	c.saturation = l.saturation

	c.weightGrad.Copy(l.weightGrad)
	c.biasGrad.CopyVec(l.biasGrad)
	c.weightVel.Copy(l.weightVel)
	c.biasVel.CopyVec(l.biasVel)

	if l.z != nil {
		c.z = mat.VecDenseCopyOf(l.z)
		c.a = mat.VecDenseCopyOf(l.a)
	}

	return c
}

// perturb adds a uniform random value from [-mag, mag] to every weight and bias
func (l *Layer) perturb(mag float64, rng *rand.Rand) {
	size, inputWidth := l.weights.Dims()
	for n := 0; n < size; n++ {
		l.biases.SetVec(n, l.biases.AtVec(n)+mag*(2*rng.Float64()-1))
		for w := 0; w < inputWidth; w++ {
			l.weights.Set(n, w, l.weights.At(n, w)+mag*(2*rng.Float64()-1))
		}
	}
}
