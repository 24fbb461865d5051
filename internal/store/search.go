package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/insight-sync/internal/model"
)

// SearchParams holds parameters for searching committed insights.
type SearchParams struct {
	Query     string
	SessionID string
	Category  string
	Priority  model.Priority
	Limit     int
}

// Search finds active insights of live sessions whose text or field key
// contains the query, newest first.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Insight, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "%" + p.Query + "%"

	now := time.Now().UTC().Format(time.RFC3339)
	where := []string{
		"i.superseded_at IS NULL",
		"s.deleted_at IS NULL",
		"(s.expires_at IS NULL OR s.expires_at > ?)",
		"(i.text LIKE ? OR i.field_key LIKE ?)",
	}
	args := []interface{}{now, query, query}

	if p.SessionID != "" {
		where = append(where, "i.session_id = ?")
		args = append(args, p.SessionID)
	}
	if p.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, p.Category)
	}
	if p.Priority != "" {
		where = append(where, "i.priority = ?")
		args = append(args, string(p.Priority))
	}

	sql := fmt.Sprintf(`
		SELECT i.id, i.session_id, i.field_key, i.text, i.category, i.priority, i.origin,
		       i.version, i.supersedes, i.created_at
		FROM insights i
		INNER JOIN sessions s ON s.id = i.session_id
		WHERE %s
		ORDER BY i.created_at DESC, i.rowid DESC
		LIMIT ?`, strings.Join(where, " AND "))

	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.Insight
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, in)
	}
	return results, rows.Err()
}
