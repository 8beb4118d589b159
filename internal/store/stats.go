// ABOUTME: SQLite aggregation queries for the AI conversation dashboard
// ABOUTME: Produces per-user totals, averages and trailing daily activity

package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// TurnStats returns aggregate statistics for the user's history.
// Comparisons run on the stored RFC3339 strings; UTC keeps them ordered
// lexicographically so no parsing happens inside the query.
func (s *SQLiteStore) TurnStats(ctx context.Context, userID string) (*Stats, error) {
	now := time.Now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.AddDate(0, 0, -7)

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(LENGTH(prompt)), 0),
			COALESCE(AVG(LENGTH(response)), 0),
			MIN(created_at),
			MAX(created_at)
		FROM ai_turns
		WHERE user_id = ?
	`

	var stats Stats
	var avgPrompt, avgResponse float64
	var first, last sql.NullString

	err := s.db.QueryRowContext(ctx, query,
		todayStart.Format(time.RFC3339Nano),
		weekStart.Format(time.RFC3339Nano),
		userID,
	).Scan(
		&stats.TotalTurns,
		&stats.TodayTurns,
		&stats.WeekTurns,
		&avgPrompt,
		&avgResponse,
		&first,
		&last,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turn stats: %w", err)
	}

	stats.AvgPromptLength = int(math.Round(avgPrompt))
	stats.AvgResponseLength = int(math.Round(avgResponse))

	if first.Valid {
		t, err := time.Parse(time.RFC3339Nano, first.String)
		if err != nil {
			return nil, fmt.Errorf("parsing first turn timestamp: %w", err)
		}
		stats.FirstTurnAt = &t
	}
	if last.Valid {
		t, err := time.Parse(time.RFC3339Nano, last.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last turn timestamp: %w", err)
		}
		stats.LastTurnAt = &t
	}

	return &stats, nil
}

// DailyActivity returns per-day turn counts for the trailing windowDays,
// newest day first. Days without turns are omitted.
func (s *SQLiteStore) DailyActivity(ctx context.Context, userID string, windowDays int) ([]DayActivity, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -windowDays)

	query := `
		SELECT substr(created_at, 1, 10) AS day, COUNT(*)
		FROM ai_turns
		WHERE user_id = ? AND created_at >= ?
		GROUP BY day
		ORDER BY day DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, since.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("querying daily activity: %w", err)
	}
	defer rows.Close()

	var activity []DayActivity
	for rows.Next() {
		var day DayActivity
		if err := rows.Scan(&day.Date, &day.Count); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		activity = append(activity, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity rows: %w", err)
	}

	return activity, nil
}
