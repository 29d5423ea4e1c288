package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/engine"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(ts time.Time, state engine.State, deltaMag float64, inactive int) engine.DecisionRecord {
	return engine.DecisionRecord{
		Timestamp:       ts,
		Presence:        state == engine.StateActive,
		DeltaMag:        deltaMag,
		SmoothedDelta:   deltaMag / 2,
		InactiveSeconds: inactive,
		State:           state,
		Confidence:      0.9,
		Alerted:         false,
	}
}

func TestNewDBCreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"decision_records", "alert_episodes"} {
		var count int
		err := db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).
			Scan(&count)
		if err != nil {
			t.Fatalf("schema query failed: %v", err)
		}
		if count != 1 {
			t.Errorf("table %s not created", table)
		}
	}
}

func TestNewDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	db.Close()

	db, err = NewDB(path)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	db.Close()
}
