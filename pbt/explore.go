package pbt

import (
	"math"

	"github.com/sharnoff/cohort"
)

// DefaultMaxLearnRate is the learn rate above which exploration will no longer raise it
const DefaultMaxLearnRate float64 = 0.714285

// explore perturbs a Configuration copied from a winning Worker. The mini-batch size moves along
// the list of valid sizes, and the learn rate is scaled up or down by up to 20%. Epochs are left
// alone.
func (p *Population) explore(cfg cohort.Configuration) cohort.Configuration {
	pos := len(p.batchSizes) / 2
	for i, s := range p.batchSizes {
		if s == cfg.MiniBatchSize {
			pos = i
			break
		}
	}

	switch r := p.rng.Float64(); {
	case r > 0.9:
		pos += 2
	case r > 0.55:
		pos += 1
	case r < 0.1:
		pos -= 2
	case r < 0.45:
		pos -= 1
	}

	if pos < 0 {
		pos = 0
	} else if pos >= len(p.batchSizes) {
		pos = len(p.batchSizes) - 1
	}
	cfg.MiniBatchSize = p.batchSizes[pos]

	switch r := p.rng.Float64(); {
	case r < 0.4:
		// [0.8, 1.0)
		cfg.LearnRate *= 0.8 + 0.2*p.rng.Float64()
	case r < 0.8 && cfg.LearnRate < p.maxLearnRate:
		// (1.0, 1.2]
		cfg.LearnRate = math.Min(cfg.LearnRate*(1.2-0.2*p.rng.Float64()), p.maxLearnRate)
	}

	return cfg
}
