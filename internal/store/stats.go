package store

import (
	"context"
	"os"
	"time"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string          `json:"db_path"`
	DBSizeBytes    int64           `json:"db_size_bytes"`
	TotalSessions  int             `json:"total_sessions"`
	LiveSessions   int             `json:"live_sessions"`
	TotalInsights  int             `json:"total_insights"`
	ActiveInsights int             `json:"active_insights"`
	TotalMessages  int             `json:"total_messages"`
	Categories     []CategoryStats `json:"categories"`
}

// CategoryStats holds per-category counts of active insights.
type CategoryStats struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Sessions int    `json:"sessions"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	// DB file size
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.TotalSessions)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions
		WHERE deleted_at IS NULL AND (expires_at IS NULL OR expires_at > ?)`, now).Scan(&st.LiveSessions)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM insights`).Scan(&st.TotalInsights)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM insights WHERE superseded_at IS NULL`).Scan(&st.ActiveInsights)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.TotalMessages)

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) as cnt, COUNT(DISTINCT session_id) as sessions
		FROM insights WHERE superseded_at IS NULL
		GROUP BY category ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var c CategoryStats
		rows.Scan(&c.Category, &c.Count, &c.Sessions)
		st.Categories = append(st.Categories, c)
	}

	return st, nil
}
