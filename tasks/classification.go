// Package tasks provides implementations of cohort.TrainableTask
package tasks

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
)

// Classification trains a Network for one full pass over its training set, in mini-batches, and
// scores it by the average squared cost on its test set.
//
// A Classification may be used by many goroutines at once.
type Classification struct {
	id string

	train  cohort.Dataset
	test   cohort.Dataset
	config cohort.Configuration

	rngMux sync.Mutex
	rng    *rand.Rand
}

// NewClassification creates a Classification task. If 'train' is nil, Evaluate only scores the
// Network. If 'test' is nil, the Network is scored on the training set.
func NewClassification(train, test cohort.Dataset, config cohort.Configuration, seed int64) (*Classification, error) {
	if train == nil && test == nil {
		return nil, errors.Errorf("Can't create classification task, no datasets given")
	}

	if train != nil {
		if err := config.Validate(train.Len()); err != nil {
			return nil, errors.Wrapf(err, "Can't create classification task\n")
		}
	}

	return &Classification{
		id:     uuid.NewString(),
		train:  train,
		test:   test,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (c *Classification) ID() string {
	return c.id
}

func (c *Classification) Config() cohort.Configuration {
	return c.config
}

// Evaluate trains the Network in place for a single pass over the training set and returns its
// average squared cost over the test set.
func (c *Classification) Evaluate(net *cohort.Network) (cost float64, err error) {
	if net == nil {
		return 0, errors.Errorf("Can't evaluate task %s, network is nil", c.id)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("Can't evaluate task %s: %v", c.id, r)
		}
	}()

	if c.train != nil {
		rng := c.childRand()

		steps := c.train.Len() / c.config.MiniBatchSize
		for i := 0; i < steps; i++ {
			batch := c.train.MiniBatch(c.config.MiniBatchSize, rng)
			net.TrainOnBatchMomentum(batch, c.config.LearnRate, c.config.Momentum)
		}
	}

	samples := c.scoringSet().All()
	return cohort.Cost(net.Evaluate(samples), samples), nil
}

// Accuracy returns the fraction of the test set that the Network classifies correctly
func (c *Classification) Accuracy(net *cohort.Network) float64 {
	samples := c.scoringSet().All()
	return cohort.Accuracy(net.Evaluate(samples), samples)
}

func (c *Classification) scoringSet() cohort.Dataset {
	if c.test != nil {
		return c.test
	}
	return c.train
}

// each evaluation gets its own source, so that concurrent evaluations don't contend
func (c *Classification) childRand() *rand.Rand {
	c.rngMux.Lock()
	defer c.rngMux.Unlock()
	return rand.New(rand.NewSource(c.rng.Int63()))
}
