package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	ttl  time.Duration
	path string

	entropyMu sync.Mutex
	entropy   *rand.Rand
}

var _ gateway.Gateway = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		ttl:     opts.SessionTTL,
		path:    dbPath,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		created_at  TEXT NOT NULL,
		expires_at  TEXT,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);

	CREATE TABLE IF NOT EXISTS insights (
		id            TEXT PRIMARY KEY,
		session_id    TEXT NOT NULL REFERENCES sessions(id),
		field_key     TEXT,
		text          TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		priority      TEXT NOT NULL,
		origin        TEXT NOT NULL,
		source_type   TEXT NOT NULL DEFAULT '',
		version       INTEGER NOT NULL DEFAULT 1,
		supersedes    TEXT,
		superseded_at TEXT,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_insights_session ON insights(session_id);
	CREATE INDEX IF NOT EXISTS idx_insights_field ON insights(session_id, field_key);

	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL REFERENCES sessions(id),
		role        TEXT NOT NULL,
		content     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession mints a new session, expiring after the configured TTL.
func (s *SQLiteStore) CreateSession(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	id := s.newID()

	var expiresAt *string
	if s.ttl > 0 {
		exp := now.Add(s.ttl).Format(time.RFC3339)
		expiresAt = &exp
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at, expires_at) VALUES (?, ?, ?)`,
		id, now.Format(time.RFC3339), expiresAt)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// ValidateSession reports whether id is neither deleted nor expired.
func (s *SQLiteStore) ValidateSession(ctx context.Context, id string) (bool, error) {
	return alive(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func alive(ctx context.Context, q querier, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions
		 WHERE id = ? AND deleted_at IS NULL
		   AND (expires_at IS NULL OR expires_at > ?)`, id, now).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSessions returns live sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, p ListSessionsParams) ([]model.SessionInfo, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}
	now := time.Now().UTC().Format(time.RFC3339)
	where := "deleted_at IS NULL AND (expires_at IS NULL OR expires_at > ?)"
	args := []interface{}{now}
	if p.ID != "" {
		where += " AND id = ?"
		args = append(args, p.ID)
		limit = 1
	}
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, expires_at FROM sessions
		 WHERE `+where+`
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionInfo
	for rows.Next() {
		var info model.SessionInfo
		var createdAt string
		var expiresAt sql.NullString
		if err := rows.Scan(&info.ID, &createdAt, &expiresAt); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if expiresAt.Valid {
			t, _ := time.Parse(time.RFC3339, expiresAt.String)
			info.ExpiresAt = &t
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteSession soft-deletes a session. Later calls against it fail with
// gateway.ErrSessionNotFound.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", gateway.ErrSessionNotFound, id)
	}
	return nil
}

// CommitInsights stores a batch atomically. An insight with a field key
// supersedes the session's previous active insight for that key.
func (s *SQLiteStore) CommitInsights(ctx context.Context, id string, insights []model.Insight, source model.SourceType) ([]model.Insight, error) {
	if err := gateway.ValidateBatch(insights); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ok, err := alive(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrSessionNotFound, id)
	}

	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339)
	out := make([]model.Insight, 0, len(insights))
	for _, in := range insights {
		version := 1
		var supersedes *string
		var fieldKey *string
		if in.FieldKey != "" {
			fieldKey = &in.FieldKey

			var prevID string
			var prevVersion int
			err := tx.QueryRowContext(ctx,
				`SELECT id, version FROM insights
				 WHERE session_id = ? AND field_key = ? AND superseded_at IS NULL
				 ORDER BY version DESC LIMIT 1`, id, in.FieldKey).Scan(&prevID, &prevVersion)
			switch {
			case err == nil:
				version = prevVersion + 1
				supersedes = &prevID
				if _, err := tx.ExecContext(ctx,
					`UPDATE insights SET superseded_at = ? WHERE id = ?`, stamp, prevID); err != nil {
					return nil, fmt.Errorf("supersede insight: %w", err)
				}
			case !errors.Is(err, sql.ErrNoRows):
				return nil, err
			}
		}

		newID := s.newID()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO insights (id, session_id, field_key, text, category, priority, origin, source_type, version, supersedes, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newID, id, fieldKey, in.Text, in.Category, string(in.Priority), string(in.Origin),
			string(source), version, supersedes, stamp)
		if err != nil {
			return nil, fmt.Errorf("insert insight: %w", err)
		}

		in.ID = newID
		in.SessionID = id
		in.Committed = true
		in.Version = version
		in.CreatedAt = now
		in.Supersedes = ""
		if supersedes != nil {
			in.Supersedes = *supersedes
		}
		out = append(out, in)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInsight(row scanner) (model.Insight, error) {
	var in model.Insight
	var fieldKey, supersedes sql.NullString
	var priority, origin, createdAt string

	err := row.Scan(
		&in.ID, &in.SessionID, &fieldKey, &in.Text, &in.Category,
		&priority, &origin, &in.Version, &supersedes, &createdAt,
	)
	if err != nil {
		return in, err
	}

	in.Priority = model.Priority(priority)
	in.Origin = model.Origin(origin)
	in.Committed = true
	in.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if fieldKey.Valid {
		in.FieldKey = fieldKey.String
	}
	if supersedes.Valid {
		in.Supersedes = supersedes.String
	}
	return in, nil
}

// ParseTTL parses a TTL string like "7d", "24h", "30m" into a time.Duration.
var ttlRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

func ParseTTL(s string) (time.Duration, error) {
	m := ttlRegex.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid format %q (use e.g. 7d, 24h, 30m, 60s)", s)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("unknown unit %q", m[2])
}
