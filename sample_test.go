package cohort_test

import (
	"reflect"
	"testing"

	"github.com/sharnoff/cohort"
)

func TestNewSampleNormalizes(t *testing.T) {
	features := []float64{0, 127.5, 255}
	s := cohort.NewSample(2, features, 4)

	if !reflect.DeepEqual(s.Features, []float64{0, 0.5, 1}) {
		t.Fatalf("expected features scaled by 255; got %v", s.Features)
	}
	if !reflect.DeepEqual(s.Target, []float64{0, 0, 1, 0}) {
		t.Fatalf("expected one-hot target; got %v", s.Target)
	}
	if features[2] != 255 {
		t.Fatalf("NewSample modified its input")
	}
}

func TestNewSampleLeavesSmallValues(t *testing.T) {
	s := cohort.NewSample(0, []float64{0.25, -0.5}, 1)
	if !reflect.DeepEqual(s.Features, []float64{0.25, -0.5}) {
		t.Fatalf("expected features in [-1, 1] to be left alone; got %v", s.Features)
	}
}

func TestNewSampleLabelOutOfRange(t *testing.T) {
	defer func() {
		if r := recover(); r != cohort.ErrLabelOutOfRange {
			t.Fatalf("expected ErrLabelOutOfRange; got %v", r)
		}
	}()
	cohort.NewSample(10, []float64{1}, 10)
}

func TestAccuracy(t *testing.T) {
	samples := []cohort.Sample{
		cohort.NewSample(0, []float64{1}, 3),
		cohort.NewSample(1, []float64{1}, 3),
		cohort.NewSample(2, []float64{1}, 3),
		cohort.NewSample(2, []float64{1}, 3),
	}
	outputs := [][]float64{
		{0.9, 0.1, 0.0},
		{0.2, 0.3, 0.1},
		{0.5, 0.1, 0.2},
		{0.0, 0.0, 0.7},
	}

	if a := cohort.Accuracy(outputs, samples); a != 0.75 {
		t.Fatalf("expected accuracy 0.75; got %v", a)
	}
}

func TestCost(t *testing.T) {
	samples := []cohort.Sample{
		cohort.NewSampleWithTarget([]float64{0}, []float64{1, 0}),
		cohort.NewSampleWithTarget([]float64{0}, []float64{0, 0}),
	}
	outputs := [][]float64{{0, 0}, {1, 1}}

	// (1 + 0)/2 and (1 + 1)/2, averaged
	if c := cohort.Cost(outputs, samples); c != 0.75 {
		t.Fatalf("expected cost 0.75; got %v", c)
	}
}

func TestConfigurationValidate(t *testing.T) {
	good := cohort.Configuration{Epochs: 15, MiniBatchSize: 20, LearnRate: 0.1}
	if err := good.Validate(100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []cohort.Configuration{
		{Epochs: 0, MiniBatchSize: 20, LearnRate: 0.1},
		{Epochs: 1, MiniBatchSize: 30, LearnRate: 0.1},
		{Epochs: 1, MiniBatchSize: 20, LearnRate: 0},
		{Epochs: 1, MiniBatchSize: 20, LearnRate: 0.1, Momentum: 1},
	}
	for _, c := range bad {
		if err := c.Validate(100); err == nil {
			t.Errorf("expected %v to be invalid", c)
		}
	}
}
