// Package gateway defines the remote boundary the session core talks to.
package gateway

import (
	"context"

	"github.com/rcliao/insight-sync/internal/model"
)

// Gateway is the network boundary owning conversations and committed insights.
type Gateway interface {
	// ValidateSession reports whether id currently exists server-side.
	ValidateSession(ctx context.Context, id string) (bool, error)

	// CreateSession mints a new conversation id.
	CreateSession(ctx context.Context) (string, error)

	// CommitInsights stores a batch and returns one committed record per
	// input, in input order. Fails with ErrSessionNotFound for a stale id.
	CommitInsights(ctx context.Context, id string, insights []model.Insight, source model.SourceType) ([]model.Insight, error)

	// FetchHistory returns the conversation profile. Fails with
	// ErrSessionNotFound for a stale id.
	FetchHistory(ctx context.Context, id string) (*model.Profile, error)
}
