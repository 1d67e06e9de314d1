package db

import (
	"fmt"

	"github.com/banshee-data/vehicle.count/internal/counting/crossing"
	"github.com/banshee-data/vehicle.count/internal/counting/geom"
)

// RecordCrossing appends one crossing event to a run.
func (db *DB) RecordCrossing(runID string, ev crossing.Event) error {
	recordedAt := db.Clock.Now().UnixNano()

	err := retryOnBusy(func() error {
		_, err := db.Exec(`
			INSERT INTO crossing_events (
				run_id, frame, track_id, line, center_x, center_y, age, total_count, recorded_at_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, ev.Frame, ev.TrackID, ev.Line, ev.Center.X, ev.Center.Y, ev.Age, ev.TotalCount, recordedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert crossing for track %d: %w", ev.TrackID, err)
	}
	return nil
}

// Crossings returns the events of a run in emission order.
func (db *DB) Crossings(runID string) ([]crossing.Event, error) {
	rows, err := db.Query(`
		SELECT frame, track_id, line, center_x, center_y, age, total_count
		FROM crossing_events
		WHERE run_id = ?
		ORDER BY total_count`, runID)
	if err != nil {
		return nil, fmt.Errorf("query crossings: %w", err)
	}
	defer rows.Close()

	var events []crossing.Event
	for rows.Next() {
		var ev crossing.Event
		var c geom.Point
		if err := rows.Scan(&ev.Frame, &ev.TrackID, &ev.Line, &c.X, &c.Y, &ev.Age, &ev.TotalCount); err != nil {
			return nil, fmt.Errorf("scan crossing row: %w", err)
		}
		ev.Center = c
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crossings: %w", err)
	}
	return events, nil
}

// RunRecorder writes a counter's events into one run of the ledger.
type RunRecorder struct {
	DB    *DB
	RunID string
}

// RecordCrossing implements pipeline.EventSink.
func (r RunRecorder) RecordCrossing(ev crossing.Event) error {
	return r.DB.RecordCrossing(r.RunID, ev)
}
