// Package datasets provides implementations of cohort.Dataset
package datasets

import (
	"math/rand"

	"github.com/sharnoff/cohort"
)

// Memory is a cohort.Dataset held entirely in memory. It is never modified after construction, so
// it can be shared by every worker of a population.
type Memory struct {
	samples []cohort.Sample
}

// NewMemory copies the list of samples into a new Memory dataset
func NewMemory(samples []cohort.Sample) *Memory {
	s := make([]cohort.Sample, len(samples))
	copy(s, samples)
	return &Memory{samples: s}
}

func (m *Memory) All() []cohort.Sample {
	return m.samples
}

func (m *Memory) Sample(i int) cohort.Sample {
	return m.samples[i]
}

func (m *Memory) Len() int {
	return len(m.samples)
}

// MiniBatch draws 'size' distinct samples uniformly at random. Indexes that have already been
// drawn for this batch are rejected and drawn again.
func (m *Memory) MiniBatch(size int, rng *rand.Rand) []cohort.Sample {
	if size < 1 || size > len(m.samples) {
		panic(cohort.ErrBatchSize)
	}

	intn := rand.Intn
	if rng != nil {
		intn = rng.Intn
	}

	seen := make(map[int]struct{}, size)
	batch := make([]cohort.Sample, 0, size)
	for len(batch) < size {
		i := intn(len(m.samples))
		if _, ok := seen[i]; ok {
			continue
		}

		seen[i] = struct{}{}
		batch = append(batch, m.samples[i])
	}

	return batch
}

// Split divides the dataset into two, with the first 'n' samples in the first
func (m *Memory) Split(n int) (*Memory, *Memory) {
	if n < 0 || n > len(m.samples) {
		panic(cohort.ErrBatchSize)
	}
	return &Memory{m.samples[:n:n]}, &Memory{m.samples[n:]}
}
