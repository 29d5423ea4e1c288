package db

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DailySummary aggregates one calendar day of decision records.
type DailySummary struct {
	Date                   string  `json:"date"`
	Records                int     `json:"records"`
	ActivePercent          float64 `json:"active_percent"`
	LongestInactiveSeconds int     `json:"longest_inactive_seconds"`
	AlertCount             int     `json:"alert_count"`
}

// GetDailySummary computes the summary for one day, given as YYYY-MM-DD.
func (db *DB) GetDailySummary(date string) (DailySummary, error) {
	summary := DailySummary{Date: date}

	var active int
	err := db.QueryRow(
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN state = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(inactive_seconds), 0)
		FROM decision_records WHERE date(ts) = ?`, date).
		Scan(&summary.Records, &active, &summary.LongestInactiveSeconds)
	if err != nil {
		return DailySummary{}, fmt.Errorf("daily summary for %s: %w", date, err)
	}
	if summary.Records > 0 {
		summary.ActivePercent = 100 * float64(active) / float64(summary.Records)
	}

	err = db.QueryRow(
		`SELECT COUNT(*) FROM alert_episodes WHERE date(opened_at) = ?`, date).
		Scan(&summary.AlertCount)
	if err != nil {
		return DailySummary{}, fmt.Errorf("daily summary for %s: %w", date, err)
	}

	return summary, nil
}

// MagnitudeRollup is a per-day distribution of raw delta magnitudes.
type MagnitudeRollup struct {
	Day   string  `json:"day"`
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P85   float64 `json:"p85"`
	P98   float64 `json:"p98"`
}

// GetMagnitudeRollup computes per-day delta magnitude quantiles over the
// last days days, oldest day first.
func (db *DB) GetMagnitudeRollup(days int) ([]MagnitudeRollup, error) {
	rows, err := db.Query(
		`SELECT date(ts), delta_mag FROM decision_records
		WHERE ts >= datetime('now', ?) ORDER BY date(ts) ASC`,
		fmt.Sprintf("-%d days", days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDay := make(map[string][]float64)
	var order []string
	for rows.Next() {
		var day string
		var mag float64
		if err := rows.Scan(&day, &mag); err != nil {
			return nil, err
		}
		if _, ok := byDay[day]; !ok {
			order = append(order, day)
		}
		byDay[day] = append(byDay[day], mag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rollups := make([]MagnitudeRollup, 0, len(order))
	for _, day := range order {
		mags := byDay[day]
		sort.Float64s(mags)
		rollups = append(rollups, MagnitudeRollup{
			Day:   day,
			Count: len(mags),
			P50:   stat.Quantile(0.50, stat.Empirical, mags, nil),
			P85:   stat.Quantile(0.85, stat.Empirical, mags, nil),
			P98:   stat.Quantile(0.98, stat.Empirical, mags, nil),
		})
	}

	return rollups, nil
}
