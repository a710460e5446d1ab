// Package config loads the settings of a training run from YAML
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ModePBT          = "pbt"
	ModeGenerational = "generational"
)

// Config captures the knobs of a training run
type Config struct {
	Mode string `yaml:"mode"`

	// Data
	MNISTDir   string `yaml:"mnist_dir"`
	TrainLimit int    `yaml:"train_limit"`
	TestLimit  int    `yaml:"test_limit"`

	// Networks
	Layers     []int  `yaml:"layers"`
	Activation string `yaml:"activation"`
	Population int    `yaml:"population"`

	// Back-propagation
	Saturation      float64 `yaml:"saturation"`
	NormalizeErrors bool    `yaml:"normalize_errors"`

	// Initial hyperparameters. Each worker draws its learn rate uniformly from
	// [learn_rate_min, learn_rate_max), and its mini-batch size from the valid sizes that are at
	// least min_batch_size.
	Epochs       int     `yaml:"epochs"`
	LearnRateMin float64 `yaml:"learn_rate_min"`
	LearnRateMax float64 `yaml:"learn_rate_max"`
	MinBatchSize int     `yaml:"min_batch_size"`
	Momentum     float64 `yaml:"momentum"`

	// PBT
	PollInterval time.Duration `yaml:"poll_interval"`
	Duration     time.Duration `yaml:"duration"`
	ReportEvery  int           `yaml:"report_every"`

	// Generational
	Generations    int     `yaml:"generations"`
	GraduationSize int     `yaml:"graduation_size"`
	MutationScale  float64 `yaml:"mutation_scale"`

	// Output
	SaveDir   string `yaml:"save_dir"`
	HistoryDB string `yaml:"history_db"`
	Seed      int64  `yaml:"seed"`
}

// Overrides captures CLI supplied values
type Overrides struct {
	Mode        string
	MNISTDir    string
	Population  int
	Duration    time.Duration
	Generations int
	SaveDir     string
	HistoryDB   string
	Seed        int64
}

// Default returns the settings used for any key that a file leaves out
func Default() *Config {
	return &Config{
		Mode:            ModePBT,
		Layers:          []int{32, 10},
		Activation:      "bipolar-sigmoid",
		Population:      8,
		Saturation:      1.0,
		NormalizeErrors: true,
		Epochs:          15,
		LearnRateMin:    0.01,
		LearnRateMax:    0.40,
		MinBatchSize:    1,
		PollInterval:    200 * time.Millisecond,
		Duration:        10 * time.Minute,
		ReportEvery:     5,
		Generations:     20,
		GraduationSize:  2,
		MutationScale:   1.0,
	}
}

// Load reads and validates a Config from YAML. Unknown keys are an error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config\n")
	}
	defer f.Close()

	cfg := Default()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s\n", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Mode != "" {
		c.Mode = o.Mode
	}
	if o.MNISTDir != "" {
		c.MNISTDir = o.MNISTDir
	}
	if o.Population > 0 {
		c.Population = o.Population
	}
	if o.Duration > 0 {
		c.Duration = o.Duration
	}
	if o.Generations > 0 {
		c.Generations = o.Generations
	}
	if o.SaveDir != "" {
		c.SaveDir = o.SaveDir
	}
	if o.HistoryDB != "" {
		c.HistoryDB = o.HistoryDB
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
}

// Validate verifies the config is runnable
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch c.Mode {
	case ModePBT, ModeGenerational:
	default:
		return errors.Errorf("mode must be %q or %q (got %q)", ModePBT, ModeGenerational, c.Mode)
	}

	if c.MNISTDir == "" {
		return errors.New("mnist_dir must be set")
	}
	if len(c.Layers) == 0 {
		return errors.New("layers must list at least one layer size")
	}
	for i, s := range c.Layers {
		if s <= 0 {
			return errors.Errorf("layers[%d] must be > 0 (got %d)", i, s)
		}
	}
	if c.Population <= 0 {
		return errors.Errorf("population must be > 0 (got %d)", c.Population)
	}
	if c.Saturation < 0 {
		return errors.Errorf("saturation must be >= 0 (got %v)", c.Saturation)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.LearnRateMin <= 0 || c.LearnRateMax < c.LearnRateMin {
		return errors.Errorf("learn rates must satisfy 0 < learn_rate_min <= learn_rate_max (got %v, %v)", c.LearnRateMin, c.LearnRateMax)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return errors.Errorf("momentum must be in [0, 1) (got %v)", c.Momentum)
	}

	if c.Mode == ModeGenerational {
		if c.Generations <= 0 {
			return errors.Errorf("generations must be > 0 (got %d)", c.Generations)
		}
		if c.GraduationSize < 1 || c.GraduationSize >= c.Population {
			return errors.Errorf("graduation_size must be in [1, population) (got %d with population %d)", c.GraduationSize, c.Population)
		}
	}

	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	if c.ReportEvery <= 0 {
		c.ReportEvery = 5
	}
	if c.MinBatchSize <= 0 {
		c.MinBatchSize = 1
	}
	return nil
}
