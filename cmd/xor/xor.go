package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/sharnoff/cohort"
	"github.com/sharnoff/cohort/activations"
	"github.com/sharnoff/cohort/datasets"
	"github.com/sharnoff/cohort/generational"
	"github.com/sharnoff/cohort/pbt"
	"github.com/sharnoff/cohort/tasks"
)

const (
	populationSize int           = 4
	runFor         time.Duration = 2 * time.Second
	generations    int           = 200
	graduates      int           = 1

	// where to save/load the network
	path string = "xor save"
)

func dataset() *datasets.Memory {
	var samples []cohort.Sample
	for _, p := range [][]float64{{-1, -1, -1}, {-1, 1, 1}, {1, -1, 1}, {1, 1, -1}} {
		samples = append(samples, cohort.NewSampleWithTarget(p[:2], p[2:]))
	}
	return datasets.NewMemory(samples)
}

func network(rng *rand.Rand) *cohort.Network {
	net, err := cohort.NewNetwork(2, []int{3, 1}, activations.BipolarSigmoid(), rng)
	if err != nil {
		panic(err.Error())
	}
	return net
}

func trainPBT(data *datasets.Memory, rng *rand.Rand) *cohort.Network {
	workers := make([]*pbt.Worker, populationSize)
	for i := range workers {
		cfg := cohort.Configuration{
			Epochs:        50,
			MiniBatchSize: 4,
			LearnRate:     0.05 + 0.5*rng.Float64(),
		}
		workers[i] = pbt.NewWorker(network(rng), cfg, data, pbt.WithSeed(rng.Int63()))
	}

	p, err := pbt.NewPopulation(workers, data.Len(), pbt.WithReportEvery(5))
	if err != nil {
		panic(err.Error())
	}

	fmt.Println("Starting population-based training...")
	ctx, cancel := context.WithTimeout(context.Background(), runFor)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		panic(err.Error())
	}

	net, cfg := p.Best()
	fmt.Println("Done training! Best configuration:", cfg)
	return net
}

func trainGenerational(data *datasets.Memory, rng *rand.Rand) *cohort.Network {
	nets := make([]*cohort.Network, populationSize)
	for i := range nets {
		nets[i] = network(rng)
	}

	task, err := tasks.NewClassification(data, nil, cohort.Configuration{Epochs: 1, MiniBatchSize: 4, LearnRate: 0.3}, rng.Int63())
	if err != nil {
		panic(err.Error())
	}

	c, err := generational.New(nets, task, graduates, generational.WithLogger(nil), generational.WithRand(rng))
	if err != nil {
		panic(err.Error())
	}

	fmt.Println("Starting generational training...")
	gen, err := c.Run(context.Background(), generations)
	if err != nil {
		panic(err.Error())
	}

	fmt.Printf("Done training! Best cost in generation %d: %v\n", gen.Index, gen.Best())
	return c.Best()
}

func test(net *cohort.Network, data *datasets.Memory) {
	fmt.Println("Testing...")
	for _, s := range data.All() {
		fmt.Printf("%v -> %.4f (want %v)\n", s.Features, net.Forward(s.Features), s.Target)
	}

	samples := data.All()
	fmt.Println("Cost:", cohort.Cost(net.Evaluate(samples), samples))
}

func save(net *cohort.Network) {
	fmt.Println("Saving...")
	if err := net.Save(path, true); err != nil {
		panic(err.Error())
	}
	fmt.Println("Done!")
}

func load() *cohort.Network {
	fmt.Println("Loading...")
	net, err := cohort.Load(path)
	if err != nil {
		panic(err.Error())
	}
	fmt.Println("Done!")
	return net
}

func main() {
	log.SetFlags(log.Ltime)

	data := dataset()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	net := trainPBT(data, rng)
	test(net, data)
	save(net)

	net = load()
	test(net, data)

	net = trainGenerational(data, rng)
	test(net, data)
}
