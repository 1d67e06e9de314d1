package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id has no ledger row.
var ErrRunNotFound = errors.New("run not found")

// Run is one counting pass over a detection stream.
type Run struct {
	RunID        string
	Source       string
	ConfigJSON   json.RawMessage
	StartedAtNs  int64
	FinishedAtNs int64 // 0 while the run is open
	Frames       int
	TotalCount   int
}

// Finished reports whether FinishRun was called for the run.
func (r Run) Finished() bool {
	return r.FinishedAtNs != 0
}

// StartRun opens a ledger row for a new run and returns its id. cfgJSON is
// the resolved counting configuration and may be nil.
func (db *DB) StartRun(source string, cfgJSON []byte) (string, error) {
	runID := uuid.New().String()
	startedAt := db.Clock.Now().UnixNano()

	var cfg interface{}
	if len(cfgJSON) > 0 {
		cfg = string(cfgJSON)
	}

	err := retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO count_runs (run_id, source, config_json, started_at_ns)
			VALUES (?, ?, ?, ?)`,
			runID, source, cfg, startedAt,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// FinishRun records the final frame count and total of a run.
func (db *DB) FinishRun(runID string, frames, total int) error {
	finishedAt := db.Clock.Now().UnixNano()

	var affected int64
	err := retryOnBusy(func() error {
		res, err := db.Exec(`
			UPDATE count_runs
			SET finished_at_ns = ?, frames = ?, total_count = ?
			WHERE run_id = ?`,
			finishedAt, frames, total, runID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// Runs returns every run, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, source, config_json, started_at_ns, finished_at_ns, frames, total_count
		FROM count_runs
		ORDER BY started_at_ns DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run.
func (db *DB) GetRun(runID string) (Run, error) {
	rows, err := db.Query(`
		SELECT run_id, source, config_json, started_at_ns, finished_at_ns, frames, total_count
		FROM count_runs
		WHERE run_id = ?`, runID)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Run{}, fmt.Errorf("query run: %w", err)
		}
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return scanRun(rows)
}

func scanRun(rows *sql.Rows) (Run, error) {
	var r Run
	var cfg sql.NullString
	var finished sql.NullInt64
	if err := rows.Scan(&r.RunID, &r.Source, &cfg, &r.StartedAtNs, &finished, &r.Frames, &r.TotalCount); err != nil {
		return Run{}, fmt.Errorf("scan run row: %w", err)
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	if finished.Valid {
		r.FinishedAtNs = finished.Int64
	}
	return r, nil
}
