package pbt

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
)

// Failure is reported by a Worker that stopped because of a panic during training
type Failure struct {
	Worker string
	Err    error
}

// snapshot is a deep copy of the training state of a Worker
type snapshot struct {
	net *cohort.Network
	cfg cohort.Configuration
}

// Worker trains a single Network, handing control to its Population after every
// Configuration.Epochs mini-batch steps.
type Worker struct {
	id   string
	data cohort.Dataset
	test cohort.Dataset
	rng  *rand.Rand

	// owned by the Worker, except while Waiting
	net *cohort.Network
	cfg cohort.Configuration

	state     int32
	score     atomicFloat
	testScore atomicFloat
	steps     int64
	active    int32

	resume    chan struct{}
	snapshots chan chan snapshot
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	failures chan<- Failure
}

// WorkerOption configures a Worker
type WorkerOption func(*Worker)

// WithTestData gives the Worker a held-out set, on which it measures its accuracy at the end of
// every cycle of epochs.
func WithTestData(d cohort.Dataset) WorkerOption {
	return func(w *Worker) {
		w.test = d
	}
}

// WithSeed sets the seed for mini-batch selection. By default, the seed is random.
func WithSeed(seed int64) WorkerOption {
	return func(w *Worker) {
		w.rng = rand.New(rand.NewSource(seed))
	}
}

// WithID replaces the generated id of the Worker
func WithID(id string) WorkerOption {
	return func(w *Worker) {
		w.id = id
	}
}

// NewWorker creates a Worker that will train 'net' on 'data'. The Worker takes ownership of the
// Network.
//
// NewWorker panics if either the Network or Dataset is nil.
func NewWorker(net *cohort.Network, cfg cohort.Configuration, data cohort.Dataset, opts ...WorkerOption) *Worker {
	if net == nil {
		panic(cohort.NilArgError{Arg: "Network"})
	} else if data == nil {
		panic(cohort.NilArgError{Arg: "Dataset"})
	}

	w := &Worker{
		id:        uuid.NewString(),
		data:      data,
		net:       net,
		cfg:       cfg,
		state:     int32(Running),
		resume:    make(chan struct{}, 1),
		snapshots: make(chan chan snapshot),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, o := range opts {
		o(w)
	}

	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(rand.Int63()))
	}

	return w
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) State() State {
	return State(atomic.LoadInt32(&w.state))
}

func (w *Worker) casState(old, new State) bool {
	return atomic.CompareAndSwapInt32(&w.state, int32(old), int32(new))
}

// Score returns the cost of the most recent mini-batch, or 0 if there has not been one since the
// Worker started or was last replaced. It may be called at any time; the value may be stale.
func (w *Worker) Score() float64 {
	return w.score.load()
}

// TestScore returns the accuracy on the test set at the end of the last cycle, or 0 if there is no
// test set.
func (w *Worker) TestScore() float64 {
	return w.testScore.load()
}

// Steps returns the total number of mini-batch steps the Worker has taken
func (w *Worker) Steps() int64 {
	return atomic.LoadInt64(&w.steps)
}

// Config returns the current Configuration of the Worker. It is only replaced while the Worker is
// Waiting.
func (w *Worker) Config() cohort.Configuration {
	return w.cfg
}

// Done is closed once Run has returned
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Stop marks the Worker as Stopped. Run returns at the next step boundary, or immediately if the
// Worker is waiting for its Population.
func (w *Worker) Stop() {
	atomic.StoreInt32(&w.state, int32(Stopped))
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Worker) stopped(ctx context.Context) bool {
	if w.State() == Stopped {
		return true
	}

	select {
	case <-ctx.Done():
		w.Stop()
		return true
	default:
		return false
	}
}

// Run trains the Network until the Worker is stopped or the context is cancelled. It may only be
// called once.
//
// A panic while training stops the Worker; it is returned as an error and reported to the
// Population, if there is one.
func (w *Worker) Run(ctx context.Context) (err error) {
	atomic.StoreInt32(&w.active, 1)

	defer close(w.done)
	defer atomic.StoreInt32(&w.active, 0)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("worker %s stopped during training: %v", w.id, r)
			w.Stop()
			w.report(err)
		}
	}()

	for {
		for e := 0; e < w.cfg.Epochs; e++ {
			if w.stopped(ctx) {
				return nil
			}

			w.serveSnapshot()
			w.step()
		}

		if w.test != nil {
			samples := w.test.All()
			w.testScore.store(cohort.Accuracy(w.net.Evaluate(samples), samples))
		}

		if !w.casState(Running, ReadyToExploit) || !w.wait(ctx) {
			return nil
		}
	}
}

func (w *Worker) step() {
	batch := w.data.MiniBatch(w.cfg.MiniBatchSize, w.rng)
	outputs := w.net.TrainOnBatchMomentum(batch, w.cfg.LearnRate, w.cfg.Momentum)

	w.score.store(cohort.Cost(outputs, batch))
	atomic.AddInt64(&w.steps, 1)
}

// wait blocks until the Population resumes the Worker. It returns false if the Worker was stopped
// instead.
func (w *Worker) wait(ctx context.Context) bool {
	for {
		select {
		case <-w.resume:
			return w.State() != Stopped
		case req := <-w.snapshots:
			req <- w.snapshot()
		case <-w.stop:
			return false
		case <-ctx.Done():
			w.Stop()
			return false
		}
	}
}

func (w *Worker) serveSnapshot() {
	select {
	case req := <-w.snapshots:
		req <- w.snapshot()
	default:
	}
}

func (w *Worker) snapshot() snapshot {
	return snapshot{net: w.net.Clone(), cfg: w.cfg}
}

// requestSnapshot returns a copy of the Network and Configuration of the Worker. If the Worker is
// not being run, the copy is taken directly; otherwise the Worker is asked for one between steps.
func (w *Worker) requestSnapshot(ctx context.Context) (snapshot, error) {
	if atomic.LoadInt32(&w.active) == 0 || w.State() == Waiting {
		return w.snapshot(), nil
	}

	req := make(chan snapshot, 1)
	select {
	case w.snapshots <- req:
		return <-req, nil
	case <-w.done:
		return w.snapshot(), nil
	case <-ctx.Done():
		return snapshot{}, ctx.Err()
	}
}

// replace installs a new Network and Configuration. It may only be called while Waiting.
func (w *Worker) replace(s snapshot) {
	w.net = s.net
	w.cfg = s.cfg
	w.score.store(0)
	w.testScore.store(0)
}

// resumeRunning hands the Worker back from Waiting. It does nothing if the Worker was stopped in
// the meantime.
func (w *Worker) resumeRunning() bool {
	if !w.casState(Waiting, Running) {
		return false
	}

	select {
	case w.resume <- struct{}{}:
	default:
	}
	return true
}

func (w *Worker) report(err error) {
	if w.failures == nil {
		return
	}

	select {
	case w.failures <- Failure{Worker: w.id, Err: err}:
	default:
	}
}

// Network returns a copy of the Network of the Worker. It may only be called while the Worker is
// not being run.
func (w *Worker) Network() *cohort.Network {
	return w.net.Clone()
}
