// Package store provides SQLite persistence for sessions, committed insights
// and messages. SQLiteStore satisfies gateway.Gateway directly, so it can
// back both the HTTP server and a local (in-process) client.
package store

import (
	"context"
	"time"

	"github.com/rcliao/insight-sync/internal/model"
)

// Options configures a SQLiteStore.
type Options struct {
	// SessionTTL bounds how long a session lives. Zero means forever.
	SessionTTL time.Duration
}

// MessageParams holds parameters for storing a chat message.
type MessageParams struct {
	SessionID string
	Role      string
	Content   string
}

// ListSessionsParams holds parameters for listing sessions.
type ListSessionsParams struct {
	// ID restricts the listing to one session; the limit does not apply.
	ID    string
	Limit int
}

// Store defines the server-side persistence interface.
type Store interface {
	CreateSession(ctx context.Context) (string, error)
	ValidateSession(ctx context.Context, id string) (bool, error)
	ListSessions(ctx context.Context, p ListSessionsParams) ([]model.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	CommitInsights(ctx context.Context, id string, insights []model.Insight, source model.SourceType) ([]model.Insight, error)
	FetchHistory(ctx context.Context, id string) (*model.Profile, error)
	AddMessage(ctx context.Context, p MessageParams) (*model.Message, error)

	// Close closes the store.
	Close() error
}
