// Package generational trains a population of Networks in synchronous generations. Every network is
// evaluated, the best few graduate, and the next generation is made from randomly perturbed copies
// of the graduates.
package generational

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
	"github.com/sharnoff/cohort/utils"
)

// ErrGraduationSize is returned by New when the number of graduates is not less than the size of
// the population.
var ErrGraduationSize = errors.New("graduation size must be at least 1 and less than the population size")

// Recorder receives the ranking of every generation
type Recorder interface {
	RecordGeneration(generation, rank int, network string, cost float64) error
}

// Generation is the result of evaluating one generation
type Generation struct {
	Index int

	// Costs[i] is the cost of the network in slot i
	Costs []float64

	// Ranking lists slots from best to worst
	Ranking []int

	// IDs[i] is the id of the network in slot i
	IDs []string
}

// Best returns the lowest cost in the generation
func (g Generation) Best() float64 {
	return g.Costs[g.Ranking[0]]
}

// Controller holds the population between generations
type Controller struct {
	networks       []*cohort.Network
	ids            []string
	task           cohort.TrainableTask
	graduationSize int

	mutationScale float64
	saturation    float64
	threadsPerCPU int
	rng           *rand.Rand
	logger        *log.Logger
	recorder      Recorder
	saveDir       string

	generation int
}

// Option configures a Controller
type Option func(*Controller)

// WithMutationScale sets the factor between a graduate's cost and the magnitude of the
// perturbation given to its copies. The default is 1.
func WithMutationScale(s float64) Option {
	return func(c *Controller) {
		c.mutationScale = s
	}
}

// WithSaturation bounds the magnitude of perturbations. The default is 1.
func WithSaturation(s float64) Option {
	return func(c *Controller) {
		c.saturation = s
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = rng
	}
}

// WithLogger sets where each generation is logged. A nil logger discards it.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		c.logger = l
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithSaveDir makes the Controller save the graduates of each generation under 'dir', as
// generation_XXX/network_YYY.
func WithSaveDir(dir string) Option {
	return func(c *Controller) {
		c.saveDir = dir
	}
}

// WithThreadsPerCPU sets the number of goroutines per CPU used to evaluate a generation
func WithThreadsPerCPU(n int) Option {
	return func(c *Controller) {
		c.threadsPerCPU = n
	}
}

// New creates a Controller, which takes ownership of the Networks. The task must be safe to call
// from multiple goroutines at once.
func New(networks []*cohort.Network, task cohort.TrainableTask, graduationSize int, opts ...Option) (*Controller, error) {
	if task == nil {
		return nil, cohort.NilArgError{Arg: "TrainableTask"}
	} else if graduationSize < 1 || graduationSize >= len(networks) {
		return nil, errors.Wrapf(ErrGraduationSize, "Can't create controller with %d graduates from %d networks\n", graduationSize, len(networks))
	}

	ids := make([]string, len(networks))
	for i, n := range networks {
		if n == nil {
			return nil, errors.Errorf("Can't create controller, network %d is nil", i)
		}
		ids[i] = uuid.NewString()
	}

	c := &Controller{
		networks:       networks,
		ids:            ids,
		task:           task,
		graduationSize: graduationSize,
		mutationScale:  1,
		saturation:     cohort.DefaultTuning().Saturation,
		threadsPerCPU:  1,
		logger:         log.Default(),
	}

	for _, o := range opts {
		o(c)
	}

	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return c, nil
}

// Networks returns the current population. The Networks are not copied.
func (c *Controller) Networks() []*cohort.Network {
	ns := make([]*cohort.Network, len(c.networks))
	copy(ns, c.networks)
	return ns
}

// Generation returns the index of the next generation to be evaluated
func (c *Controller) Generation() int {
	return c.generation
}

// Best returns a copy of the Network in the first slot, which is the best graduate of the last
// generation (or the first network given, before any generation has run).
func (c *Controller) Best() *cohort.Network {
	return c.networks[0].Clone()
}

// Step evaluates every Network, waits for all of them, and replaces the population with the next
// generation. Slot 0 holds the best graduate unchanged; slot i holds a perturbed copy of graduate
// i % graduationSize.
func (c *Controller) Step(ctx context.Context) (Generation, error) {
	if err := ctx.Err(); err != nil {
		return Generation{}, err
	}

	costs := make([]float64, len(c.networks))
	err := utils.MultiThread(0, len(c.networks), func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		cost, err := c.task.Evaluate(c.networks[i])
		if err != nil {
			return errors.Wrapf(err, "Failed to evaluate network %d (%s)\n", i, c.ids[i])
		}
		costs[i] = cost
		return nil
	}, 1, c.threadsPerCPU)
	if err != nil {
		return Generation{}, err
	}

	ranking := make([]int, len(costs))
	for i := range ranking {
		ranking[i] = i
	}
	sort.SliceStable(ranking, func(a, b int) bool {
		return costs[ranking[a]] < costs[ranking[b]]
	})

	gen := Generation{
		Index:   c.generation,
		Costs:   costs,
		Ranking: ranking,
		IDs:     append([]string(nil), c.ids...),
	}

	graduates := ranking[:c.graduationSize]

	c.logger.Printf("generation=%d best=%.10f worst=%.10f graduates=%d", c.generation, costs[ranking[0]], costs[ranking[len(ranking)-1]], len(graduates))

	if err := c.saveGraduates(graduates); err != nil {
		return gen, err
	}
	c.record(gen)

	next := make([]*cohort.Network, len(c.networks))
	nextIDs := make([]string, len(c.networks))

	next[0] = c.networks[graduates[0]]
	nextIDs[0] = c.ids[graduates[0]]

	for i := 1; i < len(next); i++ {
		g := graduates[i%len(graduates)]

		net := c.networks[g].Clone()
		net.Perturb(c.magnitude(costs[g]), c.rng)

		next[i] = net
		nextIDs[i] = uuid.NewString()
	}

	c.networks = next
	c.ids = nextIDs
	c.generation++

	return gen, nil
}

// magnitude is the perturbation for copies of a graduate with the given cost
func (c *Controller) magnitude(cost float64) float64 {
	m := cost * c.mutationScale
	if math.IsNaN(m) || m < 0 {
		return 0
	}
	return math.Min(m, c.saturation)
}

// Run calls Step the given number of times, returning the last Generation
func (c *Controller) Run(ctx context.Context, generations int) (Generation, error) {
	var last Generation
	for i := 0; i < generations; i++ {
		gen, err := c.Step(ctx)
		if err != nil {
			return last, err
		}
		last = gen
	}
	return last, nil
}

func (c *Controller) saveGraduates(graduates []int) error {
	if c.saveDir == "" {
		return nil
	}

	for rank, slot := range graduates {
		dir := filepath.Join(c.saveDir, fmt.Sprintf("generation_%03d", c.generation), fmt.Sprintf("network_%03d", rank))
		if err := c.networks[slot].Save(dir, true); err != nil {
			return errors.Wrapf(err, "Failed to save graduate %d of generation %d\n", rank, c.generation)
		}
	}
	return nil
}

func (c *Controller) record(gen Generation) {
	if c.recorder == nil {
		return
	}

	for rank, slot := range gen.Ranking {
		if err := c.recorder.RecordGeneration(gen.Index, rank, gen.IDs[slot], gen.Costs[slot]); err != nil {
			c.logger.Printf("msg=%q err=%q", "failed to record generation", err)
			return
		}
	}
}
