package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/model"
)

// FetchHistory returns the session's messages, its active insights and the
// profile completion derived from them.
func (s *SQLiteStore) FetchHistory(ctx context.Context, id string) (*model.Profile, error) {
	ok, err := alive(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrSessionNotFound, id)
	}

	insights, err := s.listInsights(ctx, id, false)
	if err != nil {
		return nil, err
	}
	messages, err := s.listMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &model.Profile{
		SessionID: id,
		Messages:  messages,
		Insights:  insights,
	}
	if p.Messages == nil {
		p.Messages = []model.Message{}
	}
	if p.Insights == nil {
		p.Insights = []model.Insight{}
	}
	p.CompletionPercentage, p.ProfileCompleted = model.Completion(insights)
	return p, nil
}

// InsightHistory returns every committed insight of a session, superseded
// versions included, oldest first.
func (s *SQLiteStore) InsightHistory(ctx context.Context, id string) ([]model.Insight, error) {
	return s.listInsights(ctx, id, true)
}

func (s *SQLiteStore) listInsights(ctx context.Context, id string, all bool) ([]model.Insight, error) {
	where := []string{"session_id = ?"}
	if !all {
		where = append(where, "superseded_at IS NULL")
	}

	query := `SELECT id, session_id, field_key, text, category, priority, origin, version, supersedes, created_at
	          FROM insights WHERE ` + strings.Join(where, " AND ") + ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []model.Insight
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

// AddMessage stores one chat message on a live session.
func (s *SQLiteStore) AddMessage(ctx context.Context, p MessageParams) (*model.Message, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, &gateway.ValidationError{Reason: "message content is required"}
	}
	role := p.Role
	if role == "" {
		role = "user"
	}

	ok, err := alive(ctx, s.db, p.SessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrSessionNotFound, p.SessionID)
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ID:        s.newID(),
		SessionID: p.SessionID,
		Role:      role,
		Content:   p.Content,
		CreatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) listMessages(ctx context.Context, id string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM messages
		 WHERE session_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
