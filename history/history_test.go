package history

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"
)

func open(t *testing.T) *Recorder {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndQuery(t *testing.T) {
	r := open(t)
	cfg := cohort.Configuration{Epochs: 15, MiniBatchSize: 20, LearnRate: 0.1}

	for _, s := range []struct {
		worker string
		score  float64
	}{{"a", 0.4}, {"b", 0.2}, {"c", 0}, {"a", 0.3}} {
		if err := r.RecordScore(s.worker, 10, s.score, 0, cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	worker, score, err := r.BestScore()
	if err != nil {
		t.Fatal(err)
	}
	if worker != "b" || score != 0.2 {
		t.Fatalf("expected b with 0.2; got %s with %v", worker, score)
	}

	if err := r.RecordExploit("a", "b", cfg, cfg); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordGeneration(0, 0, "n", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := r.RecordFailure("c", errors.New("size mismatch")); err != nil {
		t.Fatal(err)
	}

	for table, want := range map[string]int{"scores": 4, "exploits": 1, "generations": 1, "failures": 1} {
		n, err := r.Count(table)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("%s: expected %d rows; got %d", table, want, n)
		}
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RecordGeneration(1, 0, "x", 0.1); err != nil {
		t.Fatal(err)
	}
	r.Close()

	r, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if n, _ := r.Count("generations"); n != 1 {
		t.Fatalf("expected 1 row after reopening; got %d", n)
	}
}

func TestCountUnknownTable(t *testing.T) {
	if _, err := open(t).Count("scores; DROP TABLE scores"); err == nil {
		t.Fatalf("expected an error for an unknown table")
	}
}
