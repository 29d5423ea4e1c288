package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/stillwatch-data/sedentary.report/internal/engine"
	"github.com/stillwatch-data/sedentary.report/internal/monitoring"
)

// EpisodeRow is a persisted alert episode. ClosedAt is zero while the
// episode is still open.
type EpisodeRow struct {
	ID              string    `json:"id"`
	OpenedAt        time.Time `json:"opened_at"`
	ClosedAt        time.Time `json:"closed_at,omitzero"`
	Open            bool      `json:"open"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// OpenEpisode inserts a newly opened alert episode.
func (db *DB) OpenEpisode(ep engine.Episode) error {
	_, err := db.Exec(
		`INSERT INTO alert_episodes (id, opened_at, duration_seconds) VALUES (?, ?, ?)`,
		ep.ID, ep.OpenedAt.UTC(), ep.Duration.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("insert alert episode %s: %w", ep.ID, err)
	}
	return nil
}

// CloseEpisode records the close time and final duration of an episode.
func (db *DB) CloseEpisode(ep engine.Episode) error {
	res, err := db.Exec(
		`UPDATE alert_episodes SET closed_at = ?, duration_seconds = ? WHERE id = ?`,
		ep.ClosedAt.UTC(), ep.Duration.Seconds(), ep.ID,
	)
	if err != nil {
		return fmt.Errorf("close alert episode %s: %w", ep.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("close alert episode %s: no such episode", ep.ID)
	}
	return nil
}

// EpisodeOpened implements the engine's episode hook. Persistence failures
// are logged, not fatal; the alert state lives in the engine.
func (db *DB) EpisodeOpened(ep engine.Episode) {
	if err := db.OpenEpisode(ep); err != nil {
		monitoring.Logf("failed to persist opened episode: %v", err)
	}
}

// EpisodeClosed implements the engine's episode hook.
func (db *DB) EpisodeClosed(ep engine.Episode) {
	if err := db.CloseEpisode(ep); err != nil {
		monitoring.Logf("failed to persist closed episode: %v", err)
	}
}

// RecentEpisodes returns the newest limit episodes, newest first.
func (db *DB) RecentEpisodes(limit int) ([]EpisodeRow, error) {
	rows, err := db.Query(
		`SELECT id, opened_at, closed_at, duration_seconds
		FROM alert_episodes ORDER BY opened_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []EpisodeRow
	for rows.Next() {
		var (
			ep       EpisodeRow
			closedAt sql.NullTime
		)
		if err := rows.Scan(&ep.ID, &ep.OpenedAt, &closedAt, &ep.DurationSeconds); err != nil {
			return nil, err
		}
		if closedAt.Valid {
			ep.ClosedAt = closedAt.Time
		} else {
			ep.Open = true
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return episodes, nil
}
