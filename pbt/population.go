package pbt

import (
	"context"
	"io"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
	"github.com/sharnoff/cohort/datasets"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is the time between passes of the control loop
const DefaultPollInterval = 200 * time.Millisecond

// Recorder receives the history of a Population. Its methods are only called from the control
// loop.
type Recorder interface {
	RecordScore(worker string, step int64, score, testScore float64, cfg cohort.Configuration) error
	RecordExploit(worker, winner string, from, to cohort.Configuration) error
	RecordFailure(worker string, err error) error
}

// Population runs Population-Based Training over a fixed set of Workers. One goroutine runs each
// Worker, and one more runs the control loop, which is the only place that Workers are compared
// or modified.
type Population struct {
	workers    []*Worker
	batchSizes []int

	interval     time.Duration
	maxLearnRate float64
	rng          *rand.Rand
	logger       *log.Logger
	recorder     Recorder
	reportEvery  int

	ticks    int
	failures chan Failure

	stopOnce sync.Once
	stopped  chan struct{}
}

// Option configures a Population
type Option func(*Population)

func WithPollInterval(d time.Duration) Option {
	return func(p *Population) {
		p.interval = d
	}
}

func WithMaxLearnRate(r float64) Option {
	return func(p *Population) {
		p.maxLearnRate = r
	}
}

// WithRand sets the source of randomness for exploration
func WithRand(rng *rand.Rand) Option {
	return func(p *Population) {
		p.rng = rng
	}
}

// WithLogger sets the destination of the progress table. A nil logger discards it.
func WithLogger(l *log.Logger) Option {
	return func(p *Population) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		p.logger = l
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Population) {
		p.recorder = r
	}
}

// WithReportEvery sets the number of ticks between progress reports
func WithReportEvery(n int) Option {
	return func(p *Population) {
		p.reportEvery = n
	}
}

// NewPopulation creates a Population from the given Workers, all of which must be training on a
// dataset of 'datasetSize' samples. The valid mini-batch sizes are the divisors of datasetSize.
func NewPopulation(workers []*Worker, datasetSize int, opts ...Option) (*Population, error) {
	if len(workers) == 0 {
		return nil, errors.Errorf("Can't create population, no workers given")
	}

	for i, w := range workers {
		if w == nil {
			return nil, errors.Errorf("Can't create population, worker %d is nil", i)
		} else if err := w.cfg.Validate(datasetSize); err != nil {
			return nil, errors.Wrapf(err, "Can't create population, worker %d has a bad configuration\n", i)
		}
	}

	p := &Population{
		workers:      workers,
		batchSizes:   datasets.Divisors(datasetSize),
		interval:     DefaultPollInterval,
		maxLearnRate: DefaultMaxLearnRate,
		logger:       log.Default(),
		reportEvery:  1,
		failures:     make(chan Failure, len(workers)),
		stopped:      make(chan struct{}),
	}

	for _, o := range opts {
		o(p)
	}

	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.reportEvery < 1 {
		p.reportEvery = 1
	}

	for _, w := range workers {
		w.failures = p.failures
	}

	return p, nil
}

// Workers returns the Workers of the Population, in order
func (p *Population) Workers() []*Worker {
	ws := make([]*Worker, len(p.workers))
	copy(ws, p.workers)
	return ws
}

// BatchSizes returns the valid mini-batch sizes, in increasing order
func (p *Population) BatchSizes() []int {
	bs := make([]int, len(p.batchSizes))
	copy(bs, p.batchSizes)
	return bs
}

// Run starts every Worker and runs the control loop until the context is cancelled or Stop is
// called. Every Worker has returned by the time Run does.
func (p *Population) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, w := range p.workers {
		w := w
		g.Go(func() error {
			// failures are reported through p.failures, and shouldn't end the group
			w.Run(ctx)
			return nil
		})
	}

	g.Go(func() error {
		defer p.Stop()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-p.stopped:
				return nil
			case <-ticker.C:
			}

			if err := p.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			if p.allStopped() {
				p.logger.Printf("msg=%q", "every worker has stopped")
				return nil
			}
		}
	})

	return g.Wait()
}

// Stop marks every Worker as Stopped. Each Worker returns at its next step boundary.
func (p *Population) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	for _, w := range p.workers {
		w.Stop()
	}
}

func (p *Population) allStopped() bool {
	for _, w := range p.workers {
		if w.State() != Stopped {
			return false
		}
	}
	return true
}

// Tick is a single pass of the control loop: every Worker that is ready to exploit is taken by the
// Population and either resumed as it was, or given a perturbed copy of the best Worker.
func (p *Population) Tick(ctx context.Context) error {
	p.drainFailures()

	for _, w := range p.workers {
		if !w.casState(ReadyToExploit, Waiting) {
			continue
		}

		if err := p.exploit(ctx, w); err != nil {
			return err
		}
	}

	p.ticks++
	if p.ticks%p.reportEvery == 0 {
		p.report()
	}

	return nil
}

// winner returns the Worker with the lowest non-zero score, starting from 'ready'. Workers with a
// score of zero have not finished a mini-batch yet, and are skipped. A NaN score is treated the
// same as no score.
func (p *Population) winner(ready *Worker) *Worker {
	best := ready
	bestScore := ready.Score()
	if !scored(bestScore) {
		bestScore = 0
	}

	for _, w := range p.workers {
		if w == ready || w.State() == Stopped {
			continue
		}

		s := w.Score()
		if scored(s) && (bestScore == 0 || s < bestScore) {
			best, bestScore = w, s
		}
	}

	return best
}

// scored is false for workers that have not finished a mini-batch, or whose cost has diverged
func scored(s float64) bool {
	return s != 0 && !math.IsNaN(s)
}

func (p *Population) exploit(ctx context.Context, w *Worker) error {
	winner := p.winner(w)

	if winner == w {
		p.logger.Printf("worker=%s exploit=self score=%.10f", w.id, w.Score())
		w.resumeRunning()
		return nil
	}

	snap, err := winner.requestSnapshot(ctx)
	if err != nil {
		return errors.Wrapf(err, "Can't exploit worker %s\n", winner.id)
	}

	from := w.cfg
	snap.cfg = p.explore(snap.cfg)
	snap.cfg.Epochs = from.Epochs

	p.logger.Printf("worker=%s exploit=%s score=%.10f winner_score=%.10f %s", w.id, winner.id, w.Score(), winner.Score(), snap.cfg)

	w.replace(snap)

	if p.recorder != nil {
		if err := p.recorder.RecordExploit(w.id, winner.id, from, snap.cfg); err != nil {
			p.logger.Printf("msg=%q err=%q", "failed to record exploit", err)
		}
	}

	w.resumeRunning()
	return nil
}

func (p *Population) drainFailures() {
	for {
		select {
		case f := <-p.failures:
			p.logger.Printf("worker=%s state=stopped err=%q", f.Worker, f.Err)
			if p.recorder != nil {
				if err := p.recorder.RecordFailure(f.Worker, f.Err); err != nil {
					p.logger.Printf("msg=%q err=%q", "failed to record failure", err)
				}
			}
		default:
			return
		}
	}
}

// report logs a line for each Worker, and passes the same to the Recorder
func (p *Population) report() {
	for i, w := range p.workers {
		cfg := w.Config()
		p.logger.Printf("worker=%d id=%s state=%s steps=%d score=%.10f test=%.4f %s",
			i+1, w.id, w.State(), w.Steps(), w.Score(), w.TestScore(), cfg)

		if p.recorder != nil {
			if err := p.recorder.RecordScore(w.id, w.Steps(), w.Score(), w.TestScore(), cfg); err != nil {
				p.logger.Printf("msg=%q err=%q", "failed to record score", err)
			}
		}
	}
}

// Best returns a copy of the Network and Configuration of the Worker with the lowest non-zero
// score. It must only be called once Run has returned.
func (p *Population) Best() (*cohort.Network, cohort.Configuration) {
	best := p.workers[0]
	for _, w := range p.workers[1:] {
		s, b := w.Score(), best.Score()
		if scored(s) && (!scored(b) || s < b) {
			best = w
		}
	}

	return best.Network(), best.cfg
}
