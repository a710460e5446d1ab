// Package history records the progress of a training run in a sqlite database
package history

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/sharnoff/cohort"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scores(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL NOT NULL,
		worker TEXT NOT NULL,
		step INTEGER NOT NULL,
		score REAL NOT NULL,
		test_score REAL NOT NULL,
		epochs INTEGER NOT NULL,
		batch_size INTEGER NOT NULL,
		learn_rate REAL NOT NULL,
		momentum REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS exploits(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL NOT NULL,
		worker TEXT NOT NULL,
		winner TEXT NOT NULL,
		old_batch_size INTEGER NOT NULL,
		old_learn_rate REAL NOT NULL,
		new_batch_size INTEGER NOT NULL,
		new_learn_rate REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS generations(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL NOT NULL,
		generation INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		network TEXT NOT NULL,
		cost REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS failures(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL NOT NULL,
		worker TEXT NOT NULL,
		err TEXT NOT NULL
	)`,
}

// Recorder writes events to a sqlite database. It satisfies both pbt.Recorder and
// generational.Recorder.
type Recorder struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at 'path', creating any missing tables
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open history database %s\n", path)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "Can't create history tables in %s\n", path)
		}
	}

	return &Recorder{db: db, now: time.Now}, nil
}

func (r *Recorder) ts() float64 {
	return float64(r.now().UnixNano()) / 1e9
}

func (r *Recorder) RecordScore(worker string, step int64, score, testScore float64, cfg cohort.Configuration) error {
	_, err := r.db.Exec(
		`INSERT INTO scores(ts, worker, step, score, test_score, epochs, batch_size, learn_rate, momentum)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ts(), worker, step, score, testScore, cfg.Epochs, cfg.MiniBatchSize, cfg.LearnRate, cfg.Momentum,
	)
	return errors.Wrapf(err, "Can't record score\n")
}

func (r *Recorder) RecordExploit(worker, winner string, from, to cohort.Configuration) error {
	_, err := r.db.Exec(
		`INSERT INTO exploits(ts, worker, winner, old_batch_size, old_learn_rate, new_batch_size, new_learn_rate)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		r.ts(), worker, winner, from.MiniBatchSize, from.LearnRate, to.MiniBatchSize, to.LearnRate,
	)
	return errors.Wrapf(err, "Can't record exploit\n")
}

func (r *Recorder) RecordGeneration(generation, rank int, network string, cost float64) error {
	_, err := r.db.Exec(
		`INSERT INTO generations(ts, generation, rank, network, cost) VALUES(?, ?, ?, ?, ?)`,
		r.ts(), generation, rank, network, cost,
	)
	return errors.Wrapf(err, "Can't record generation\n")
}

func (r *Recorder) RecordFailure(worker string, failure error) error {
	msg := ""
	if failure != nil {
		msg = failure.Error()
	}

	_, err := r.db.Exec(`INSERT INTO failures(ts, worker, err) VALUES(?, ?, ?)`, r.ts(), worker, msg)
	return errors.Wrapf(err, "Can't record failure\n")
}

// BestScore returns the lowest non-zero score recorded for any worker, and that worker
func (r *Recorder) BestScore() (worker string, score float64, err error) {
	row := r.db.QueryRow(`SELECT worker, score FROM scores WHERE score > 0 ORDER BY score ASC LIMIT 1`)
	if err = row.Scan(&worker, &score); err != nil {
		return "", 0, errors.Wrapf(err, "Can't find best score\n")
	}
	return worker, score, nil
}

// Count returns the number of rows in one of the tables: "scores", "exploits", "generations" or
// "failures".
func (r *Recorder) Count(table string) (int, error) {
	switch table {
	case "scores", "exploits", "generations", "failures":
	default:
		return 0, errors.Errorf("Unknown history table %q", table)
	}

	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "Can't count rows of %s\n", table)
	}
	return n, nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
