// requires the MNIST idx files (train-images-idx3-ubyte.gz, train-labels-idx1-ubyte.gz,
// t10k-images-idx3-ubyte.gz, t10k-labels-idx1-ubyte.gz) to be in the directory given by
// mnist_dir in the config, or by -mnist-dir
//
// the last layer given in the config must have one node per digit

package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sharnoff/cohort"
	_ "github.com/sharnoff/cohort/activations"
	"github.com/sharnoff/cohort/config"
	"github.com/sharnoff/cohort/datasets"
	"github.com/sharnoff/cohort/history"
)

func main() {
	cfgPath := flag.String("config", "configs/mnist.yaml", "Path to YAML config")
	mode := flag.String("mode", "", "Override the search strategy (pbt or generational)")
	mnistDir := flag.String("mnist-dir", "", "Override the directory of MNIST files")
	population := flag.Int("population", 0, "Override the number of networks")
	duration := flag.Duration("duration", 0, "Override how long to run population-based training")
	generations := flag.Int("generations", 0, "Override the number of generations")
	saveDir := flag.String("save-dir", "", "Override where networks are saved")
	historyDB := flag.String("history", "", "Override the sqlite file that the run is recorded to")
	seed := flag.Int64("seed", 0, "PRNG seed")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		Mode:        *mode,
		MNISTDir:    *mnistDir,
		Population:  *population,
		Duration:    *duration,
		Generations: *generations,
		SaveDir:     *saveDir,
		HistoryDB:   *historyDB,
		Seed:        *seed,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if out := cfg.Layers[len(cfg.Layers)-1]; out != datasets.MNISTClasses {
		log.Fatalf("invalid config: last layer has %d nodes, expected %d", out, datasets.MNISTClasses)
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	train, test, err := datasets.LoadMNISTDir(cfg.MNISTDir, cfg.TrainLimit, cfg.TestLimit)
	if err != nil {
		log.Fatalf("failed to load MNIST: %v", err)
	}
	log.Printf("train=%d test=%d seed=%d", train.Len(), test.Len(), cfg.Seed)

	act, err := cohort.ActivationByTag(cfg.Activation)
	if err != nil {
		log.Fatalf("invalid activation: %v", err)
	}

	var rec *history.Recorder
	if cfg.HistoryDB != "" {
		if rec, err = history.Open(cfg.HistoryDB); err != nil {
			log.Fatalf("failed to open history: %v", err)
		}
		defer rec.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := run{
		cfg:      cfg,
		train:    train,
		test:     test,
		act:      act,
		rng:      rng,
		recorder: rec,
	}

	var best *cohort.Network
	switch cfg.Mode {
	case config.ModePBT:
		best, err = r.pbt(ctx)
	case config.ModeGenerational:
		best, err = r.generational(ctx)
	}
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	samples := test.All()
	outputs := best.Evaluate(samples)
	log.Printf("best test_cost=%.6f test_accuracy=%.4f", cohort.Cost(outputs, samples), cohort.Accuracy(outputs, samples))

	if cfg.SaveDir != "" {
		path := filepath.Join(cfg.SaveDir, "best")
		if err := best.Save(path, true); err != nil {
			log.Fatalf("failed to save: %v", err)
		}
		log.Printf("saved=%s", path)
	}
}
