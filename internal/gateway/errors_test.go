package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rcliao/insight-sync/internal/model"
)

func TestValidateBatch(t *testing.T) {
	ok := model.Insight{Text: "2 bedrooms", Priority: model.PriorityMust, Origin: model.OriginUser}
	if err := ValidateBatch([]model.Insight{ok}); err != nil {
		t.Fatalf("expected valid batch, got %v", err)
	}

	bad := []model.Insight{
		ok,
		{Text: "", Priority: model.PriorityMust, Origin: model.OriginUser},
		{Text: "x", Priority: "SOON", Origin: model.OriginUser},
		{Text: "y", Priority: model.PriorityMust},
	}
	err := ValidateBatch(bad)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Entries) != 3 {
		t.Errorf("expected 3 offending entries, got %d", len(verr.Entries))
	}
}

func TestErrorWrapping(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", ErrSessionNotFound)
	if !IsSessionNotFound(wrapped) {
		t.Error("expected wrapped not-found to be detected")
	}

	cause := errors.New("dial tcp: refused")
	nerr := error(&NetworkError{Op: "commit", Err: cause})
	if !errors.Is(nerr, cause) {
		t.Error("NetworkError must unwrap to its cause")
	}
	if IsSessionNotFound(nerr) {
		t.Error("a network error is never not-found")
	}

	cerr := error(&CreateSessionError{Err: cause})
	if !errors.Is(cerr, cause) {
		t.Error("CreateSessionError must unwrap to its cause")
	}
}

func TestMemoryGateway(t *testing.T) {
	m := NewMemory(42)
	id, _ := m.CreateSession(context.Background())
	if id != "42" {
		t.Fatalf("expected 42, got %q", id)
	}
	m.Delete(id)
	if ok, _ := m.ValidateSession(context.Background(), id); ok {
		t.Error("deleted session must not validate")
	}
	if _, err := m.FetchHistory(context.Background(), id); !IsSessionNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
