package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/engine"
)

// RecordDecision persists one per-tick decision record.
func (db *DB) RecordDecision(rec engine.DecisionRecord) error {
	_, err := db.Exec(
		`INSERT INTO decision_records (
			ts, presence, delta_mag, delta_mag_smoothed, inactive_seconds,
			state, confidence, alerted, degraded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC(), boolInt(rec.Presence), rec.DeltaMag, rec.SmoothedDelta,
		rec.InactiveSeconds, string(rec.State), rec.Confidence,
		boolInt(rec.Alerted), boolInt(rec.Degraded),
	)
	if err != nil {
		return fmt.Errorf("insert decision record: %w", err)
	}
	return nil
}

// Record implements the engine's record sink.
func (db *DB) Record(rec engine.DecisionRecord) error {
	return db.RecordDecision(rec)
}

// RecentRecords returns the newest limit decision records in chronological
// order.
func (db *DB) RecentRecords(limit int) ([]engine.DecisionRecord, error) {
	rows, err := db.Query(
		`SELECT ts, presence, delta_mag, delta_mag_smoothed, inactive_seconds,
			state, confidence, alerted, degraded
		FROM decision_records ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanDecisionRecords(rows)
	if err != nil {
		return nil, err
	}

	// newest-first from the query, oldest-first for callers
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

// Timeline returns all decision records at or after since, oldest first.
func (db *DB) Timeline(since time.Time) ([]engine.DecisionRecord, error) {
	rows, err := db.Query(
		`SELECT ts, presence, delta_mag, delta_mag_smoothed, inactive_seconds,
			state, confidence, alerted, degraded
		FROM decision_records WHERE ts >= ? ORDER BY ts ASC, id ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDecisionRecords(rows)
}

func scanDecisionRecords(rows *sql.Rows) ([]engine.DecisionRecord, error) {
	var records []engine.DecisionRecord
	for rows.Next() {
		var (
			rec      engine.DecisionRecord
			state    string
			presence int
			alerted  int
			degraded int
		)
		if err := rows.Scan(
			&rec.Timestamp,
			&presence,
			&rec.DeltaMag,
			&rec.SmoothedDelta,
			&rec.InactiveSeconds,
			&state,
			&rec.Confidence,
			&alerted,
			&degraded,
		); err != nil {
			return nil, err
		}
		rec.Presence = presence != 0
		rec.State = engine.State(state)
		rec.Alerted = alerted != 0
		rec.Degraded = degraded != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
