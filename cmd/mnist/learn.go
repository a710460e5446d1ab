package main

import (
	"context"
	"log"
	"math/rand"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
	"github.com/sharnoff/cohort/config"
	"github.com/sharnoff/cohort/datasets"
	"github.com/sharnoff/cohort/generational"
	"github.com/sharnoff/cohort/history"
	"github.com/sharnoff/cohort/pbt"
	"github.com/sharnoff/cohort/tasks"
)

type run struct {
	cfg      *config.Config
	train    *datasets.Memory
	test     *datasets.Memory
	act      cohort.Activation
	rng      *rand.Rand
	recorder *history.Recorder
}

func (r run) network() (*cohort.Network, error) {
	net, err := cohort.NewNetwork(len(r.train.Sample(0).Features), r.cfg.Layers, r.act, r.rng)
	if err != nil {
		return nil, err
	}

	net.SetTuning(cohort.Tuning{
		Saturation:      r.cfg.Saturation,
		NormalizeErrors: r.cfg.NormalizeErrors,
	})
	return net, nil
}

// initial gives each network its own starting point: a random mini-batch size no smaller than the
// configured minimum, and a random learn rate
func (r run) initial() cohort.Configuration {
	sizes := datasets.Divisors(r.train.Len())

	large := sizes[:0:0]
	for _, s := range sizes {
		if s >= r.cfg.MinBatchSize {
			large = append(large, s)
		}
	}
	if len(large) == 0 {
		large = sizes[len(sizes)-1:]
	}

	return cohort.Configuration{
		Epochs:        r.cfg.Epochs,
		MiniBatchSize: large[r.rng.Intn(len(large))],
		LearnRate:     r.cfg.LearnRateMin + r.rng.Float64()*(r.cfg.LearnRateMax-r.cfg.LearnRateMin),
		Momentum:      r.cfg.Momentum,
	}
}

func (r run) pbt(ctx context.Context) (*cohort.Network, error) {
	workers := make([]*pbt.Worker, r.cfg.Population)
	for i := range workers {
		net, err := r.network()
		if err != nil {
			return nil, errors.Wrapf(err, "Can't create network %d\n", i)
		}

		workers[i] = pbt.NewWorker(net, r.initial(), r.train, pbt.WithTestData(r.test), pbt.WithSeed(r.rng.Int63()))
	}

	opts := []pbt.Option{
		pbt.WithPollInterval(r.cfg.PollInterval),
		pbt.WithReportEvery(r.cfg.ReportEvery),
		pbt.WithRand(rand.New(rand.NewSource(r.rng.Int63()))),
	}
	if r.recorder != nil {
		opts = append(opts, pbt.WithRecorder(r.recorder))
	}

	p, err := pbt.NewPopulation(workers, r.train.Len(), opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Duration)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		return nil, err
	}

	best, cfg := p.Best()
	if r.cfg.SaveDir != "" {
		if err := best.Save(filepath.Join(r.cfg.SaveDir, "pbt"), true); err != nil {
			return nil, err
		}
	}
	log.Printf("best %s", cfg)

	return best, nil
}

func (r run) generational(ctx context.Context) (*cohort.Network, error) {
	nets := make([]*cohort.Network, r.cfg.Population)
	for i := range nets {
		var err error
		if nets[i], err = r.network(); err != nil {
			return nil, errors.Wrapf(err, "Can't create network %d\n", i)
		}
	}

	task, err := tasks.NewClassification(r.train, r.test, r.initial(), r.rng.Int63())
	if err != nil {
		return nil, err
	}

	opts := []generational.Option{
		generational.WithMutationScale(r.cfg.MutationScale),
		generational.WithRand(rand.New(rand.NewSource(r.rng.Int63()))),
	}
	if r.cfg.Saturation > 0 {
		opts = append(opts, generational.WithSaturation(r.cfg.Saturation))
	}
	if r.cfg.SaveDir != "" {
		opts = append(opts, generational.WithSaveDir(r.cfg.SaveDir))
	}
	if r.recorder != nil {
		opts = append(opts, generational.WithRecorder(r.recorder))
	}

	c, err := generational.New(nets, task, r.cfg.GraduationSize, opts...)
	if err != nil {
		return nil, err
	}

	if _, err := c.Run(ctx, r.cfg.Generations); err != nil && ctx.Err() == nil {
		return nil, err
	}

	log.Printf("best generation=%d %s", c.Generation(), task.Config())
	return c.Best(), nil
}
