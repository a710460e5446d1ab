package pbt

import (
	"context"
	"io"
	"log"
	"math"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sharnoff/cohort"
	"github.com/sharnoff/cohort/activations"
	"github.com/sharnoff/cohort/datasets"
)

var quiet = log.New(io.Discard, "", 0)

func dataset(n int) *datasets.Memory {
	rng := rand.New(rand.NewSource(5))
	samples := make([]cohort.Sample, n)
	for i := range samples {
		x, y := 2*rng.Float64()-1, 2*rng.Float64()-1
		t := 0.0
		if x*y > 0 {
			t = 1
		}
		samples[i] = cohort.NewSampleWithTarget([]float64{x, y}, []float64{t})
	}
	return datasets.NewMemory(samples)
}

func network(t *testing.T, seed int64) *cohort.Network {
	t.Helper()
	net, err := cohort.NewNetwork(2, []int{3, 1}, activations.BipolarSigmoid(), rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func population(t *testing.T, data cohort.Dataset, cfgs []cohort.Configuration, opts ...Option) (*Population, []*Worker) {
	t.Helper()

	workers := make([]*Worker, len(cfgs))
	for i, c := range cfgs {
		workers[i] = NewWorker(network(t, int64(i)), c, data, WithSeed(int64(i)))
	}

	p, err := NewPopulation(workers, data.Len(), append([]Option{WithLogger(quiet)}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create population: %v", err)
	}
	return p, workers
}

func sameConfigs(n int, c cohort.Configuration) []cohort.Configuration {
	cs := make([]cohort.Configuration, n)
	for i := range cs {
		cs[i] = c
	}
	return cs
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWinnerIsReadyWorker(t *testing.T) {
	cfg := cohort.Configuration{Epochs: 5, MiniBatchSize: 10, LearnRate: 0.1}
	p, ws := population(t, dataset(100), sameConfigs(3, cfg))

	for i, s := range []float64{0.9, 0.1, 0.5} {
		ws[i].score.store(s)
	}
	ws[1].casState(Running, ReadyToExploit)

	net := ws[1].net
	weights := net.Layers()[0].Weights()

	if err := p.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ws[1].State() != Running {
		t.Fatalf("expected worker 2 to be running; got %s", ws[1].State())
	}
	if ws[1].net != net || !reflect.DeepEqual(weights, ws[1].net.Layers()[0].Weights()) {
		t.Fatalf("expected the winner's network to be left unchanged")
	}
	if ws[1].cfg != cfg {
		t.Fatalf("expected the winner's configuration to be left unchanged; got %v", ws[1].cfg)
	}
	if ws[1].Score() != 0.1 {
		t.Fatalf("expected the winner's score to be kept; got %v", ws[1].Score())
	}

	select {
	case <-ws[1].resume:
	default:
		t.Fatalf("expected worker 2 to have been resumed")
	}
}

func TestExploitCopiesAndExplores(t *testing.T) {
	data := dataset(100)
	divisors := map[int]bool{}
	for _, d := range datasets.Divisors(100) {
		divisors[d] = true
	}

	for seed := int64(0); seed < 200; seed++ {
		cfgs := []cohort.Configuration{
			{Epochs: 7, MiniBatchSize: 50, LearnRate: 0.05},
			{Epochs: 3, MiniBatchSize: 20, LearnRate: 0.3, Momentum: 0.5},
			{Epochs: 3, MiniBatchSize: 4, LearnRate: 0.2},
		}
		p, ws := population(t, data, cfgs, WithRand(rand.New(rand.NewSource(seed))))

		for i, s := range []float64{0.9, 0.1, 0.5} {
			ws[i].score.store(s)
		}
		ws[0].casState(Running, ReadyToExploit)

		if err := p.Tick(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, winner := ws[0].cfg, ws[1].cfg
		if !divisors[got.MiniBatchSize] {
			t.Fatalf("seed %d: batch size %d does not divide 100", seed, got.MiniBatchSize)
		}
		if got.LearnRate < winner.LearnRate*0.8 || got.LearnRate > winner.LearnRate*1.2 {
			t.Fatalf("seed %d: learn rate %v outside of [%v, %v]", seed, got.LearnRate, winner.LearnRate*0.8, winner.LearnRate*1.2)
		}
		if got.Epochs != 7 {
			t.Fatalf("seed %d: expected epochs to be kept at 7; got %d", seed, got.Epochs)
		}
		if got.Momentum != 0.5 {
			t.Fatalf("seed %d: expected momentum copied from winner; got %v", seed, got.Momentum)
		}
		if ws[0].net == ws[1].net {
			t.Fatalf("seed %d: network was aliased rather than copied", seed)
		}
		if !reflect.DeepEqual(ws[0].net.Layers()[0].Weights(), ws[1].net.Layers()[0].Weights()) {
			t.Fatalf("seed %d: expected a copy of the winner's network", seed)
		}
		if ws[0].Score() != 0 {
			t.Fatalf("seed %d: expected the score to be reset; got %v", seed, ws[0].Score())
		}
		if ws[0].State() != Running {
			t.Fatalf("seed %d: expected the worker to be running; got %s", seed, ws[0].State())
		}
	}
}

func TestExploreBounds(t *testing.T) {
	cfg := cohort.Configuration{Epochs: 1, MiniBatchSize: 1, LearnRate: 0.1}
	p, _ := population(t, dataset(100), sameConfigs(1, cfg), WithRand(rand.New(rand.NewSource(1))))

	sizes := p.BatchSizes()
	for i := 0; i < 1000; i++ {
		for _, start := range []int{sizes[0], sizes[len(sizes)-1]} {
			c := p.explore(cohort.Configuration{Epochs: 1, MiniBatchSize: start, LearnRate: DefaultMaxLearnRate})
			if c.LearnRate > DefaultMaxLearnRate {
				t.Fatalf("learn rate %v raised above the cap", c.LearnRate)
			}
			if c.MiniBatchSize < sizes[0] || c.MiniBatchSize > sizes[len(sizes)-1] {
				t.Fatalf("batch size %d outside of the list", c.MiniBatchSize)
			}
		}

		c := p.explore(cohort.Configuration{Epochs: 1, MiniBatchSize: 10, LearnRate: 0.7})
		if c.LearnRate > DefaultMaxLearnRate || c.LearnRate < 0.7*0.8 {
			t.Fatalf("learn rate %v outside of [0.56, cap]", c.LearnRate)
		}
	}
}

func TestUnscoredWorkersAreSkipped(t *testing.T) {
	cfg := cohort.Configuration{Epochs: 1, MiniBatchSize: 10, LearnRate: 0.1}
	p, ws := population(t, dataset(100), sameConfigs(3, cfg))

	ws[0].score.store(0.5)
	ws[2].score.store(0.7)
	ws[2].Stop()

	// worker 2 has no score, worker 3 has stopped
	if w := p.winner(ws[0]); w != ws[0] {
		t.Fatalf("expected the ready worker to win")
	}

	ws[0].score.store(0)
	ws[1].score.store(0.8)
	if w := p.winner(ws[0]); w != ws[1] {
		t.Fatalf("expected the only scored worker to win")
	}
}

func TestNaNScoresAreSkipped(t *testing.T) {
	cfg := cohort.Configuration{Epochs: 1, MiniBatchSize: 10, LearnRate: 0.1}
	p, ws := population(t, dataset(100), sameConfigs(3, cfg))

	ws[0].score.store(math.NaN())
	ws[1].score.store(math.NaN())
	ws[2].score.store(0.9)

	if w := p.winner(ws[0]); w != ws[2] {
		t.Fatalf("expected the worker with a real score to beat a diverged one")
	}

	ws[0].score.store(0.5)
	if w := p.winner(ws[0]); w != ws[0] {
		t.Fatalf("expected a diverged worker never to win")
	}

	ws[0].score.store(math.NaN())
	if _, cfg := p.Best(); cfg != ws[2].Config() {
		t.Fatalf("expected Best to skip diverged workers")
	}
}

func TestWorkerCycle(t *testing.T) {
	cfg := cohort.Configuration{Epochs: 3, MiniBatchSize: 10, LearnRate: 0.1}
	p, ws := population(t, dataset(100), sameConfigs(1, cfg))
	w := ws[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	eventually(t, "first cycle", func() bool { return w.State() == ReadyToExploit })
	if w.Steps() != 3 {
		t.Fatalf("expected 3 steps; got %d", w.Steps())
	}
	if w.Score() == 0 {
		t.Fatalf("expected a score after the first cycle")
	}

	if err := p.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	eventually(t, "second cycle", func() bool { return w.State() == ReadyToExploit && w.Steps() == 6 })

	p.Stop()
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("worker did not stop")
	}
	if err := <-errc; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.State() != Stopped {
		t.Fatalf("expected stopped; got %s", w.State())
	}
}

func TestWorkerSnapshotWhileRunning(t *testing.T) {
	cfg := cohort.Configuration{Epochs: 1000000, MiniBatchSize: 10, LearnRate: 0.1}
	_, ws := population(t, dataset(100), sameConfigs(1, cfg))
	w := ws[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	eventually(t, "a step", func() bool { return w.Steps() > 0 })

	snap, err := w.requestSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.net == nil || snap.cfg != cfg {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	cancel()
	<-w.Done()
}

type recorder struct {
	mu       sync.Mutex
	scores   int
	exploits int
	failures []string
}

func (r *recorder) RecordScore(string, int64, float64, float64, cohort.Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores++
	return nil
}

func (r *recorder) RecordExploit(string, string, cohort.Configuration, cohort.Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exploits++
	return nil
}

func (r *recorder) RecordFailure(worker string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, worker)
	return nil
}

func TestFailingWorkerIsIsolated(t *testing.T) {
	data := dataset(100)
	cfg := cohort.Configuration{Epochs: 2, MiniBatchSize: 10, LearnRate: 0.1}

	bad, err := cohort.NewNetwork(5, []int{1}, activations.Identity(), nil)
	if err != nil {
		t.Fatal(err)
	}

	good := NewWorker(network(t, 1), cfg, data)
	broken := NewWorker(bad, cfg, data)

	rec := &recorder{}
	p, err := NewPopulation([]*Worker{good, broken}, data.Len(), WithLogger(quiet), WithRecorder(rec))
	if err != nil {
		t.Fatal(err)
	}

	if err := broken.Run(context.Background()); err == nil {
		t.Fatalf("expected an error from a mismatched network")
	}
	if broken.State() != Stopped {
		t.Fatalf("expected the broken worker to be stopped; got %s", broken.State())
	}
	if good.State() != Running {
		t.Fatalf("expected the other worker to be unaffected; got %s", good.State())
	}

	if err := p.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.failures) != 1 || rec.failures[0] != broken.ID() {
		t.Fatalf("expected one recorded failure for %s; got %v", broken.ID(), rec.failures)
	}
	if rec.scores != 2 {
		t.Fatalf("expected a score for each worker; got %d", rec.scores)
	}
}

func TestPopulationRun(t *testing.T) {
	data := dataset(100)
	cfgs := []cohort.Configuration{
		{Epochs: 5, MiniBatchSize: 10, LearnRate: 0.3},
		{Epochs: 5, MiniBatchSize: 20, LearnRate: 0.05},
		{Epochs: 5, MiniBatchSize: 5, LearnRate: 0.1},
		{Epochs: 5, MiniBatchSize: 25, LearnRate: 0.2},
	}
	rec := &recorder{}
	p, ws := population(t, data, cfgs, WithPollInterval(5*time.Millisecond), WithRecorder(rec))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, w := range ws {
		if w.State() != Stopped {
			t.Fatalf("worker %d: expected stopped; got %s", i, w.State())
		}
		if w.Steps() == 0 {
			t.Fatalf("worker %d: expected some training", i)
		}
	}

	net, cfg := p.Best()
	if net == nil || cfg.Validate(data.Len()) != nil {
		t.Fatalf("expected a valid best network and configuration; got %v", cfg)
	}
	if rec.exploits == 0 && rec.scores == 0 {
		t.Fatalf("expected the recorder to have been used")
	}
}

func TestNewPopulationValidates(t *testing.T) {
	data := dataset(100)
	w := NewWorker(network(t, 1), cohort.Configuration{Epochs: 1, MiniBatchSize: 30, LearnRate: 0.1}, data)
	if _, err := NewPopulation([]*Worker{w}, data.Len()); err == nil {
		t.Fatalf("expected an error for a batch size that doesn't divide 100")
	}
	if _, err := NewPopulation(nil, data.Len()); err == nil {
		t.Fatalf("expected an error for an empty population")
	}
}
