package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), Options{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fieldInsight(key, text string) model.Insight {
	return model.Insight{
		FieldKey: key,
		Text:     text,
		Category: model.CategoryRequirements,
		Priority: model.PriorityMust,
		Origin:   model.OriginUser,
	}
}

func TestCreateAndValidateSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty ID")
	}

	ok, err := s.ValidateSession(ctx, id)
	if err != nil || !ok {
		t.Errorf("expected session to be valid, got %v %v", ok, err)
	}
	ok, _ = s.ValidateSession(ctx, "nope")
	if ok {
		t.Error("unknown id must not validate")
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, _ := s.CreateSession(ctx)
	if err := s.DeleteSession(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := s.ValidateSession(ctx, id); ok {
		t.Error("deleted session must not validate")
	}
	if err := s.DeleteSession(ctx, id); !errors.Is(err, gateway.ErrSessionNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}

	_, err := s.CommitInsights(ctx, id, []model.Insight{fieldInsight("bedrooms", "2 bedrooms")}, model.SourceFilterPanel)
	if !errors.Is(err, gateway.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on commit, got %v", err)
	}
}

func TestExpiredSessionIsNotFound(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), Options{SessionTTL: time.Hour})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	id, _ := s.CreateSession(ctx)
	if ok, _ := s.ValidateSession(ctx, id); !ok {
		t.Fatal("expected fresh session to be valid")
	}

	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)
	if _, err := s.db.Exec(`UPDATE sessions SET expires_at = ? WHERE id = ?`, past, id); err != nil {
		t.Fatalf("expire: %v", err)
	}

	if ok, _ := s.ValidateSession(ctx, id); ok {
		t.Error("expired session must not validate")
	}
	if _, err := s.FetchHistory(ctx, id); !errors.Is(err, gateway.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCommitInsightsPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id, _ := s.CreateSession(ctx)

	batch := []model.Insight{
		fieldInsight("bedrooms", "3 bedrooms"),
		{Text: "Close to a park", Priority: model.PriorityNiceToHave, Origin: model.OriginAI, Category: model.CategoryLifestyle},
		fieldInsight("bathrooms", "2 bathrooms"),
	}
	got, err := s.CommitInsights(ctx, id, batch, model.SourceRegularChat)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(got) != len(batch) {
		t.Fatalf("expected %d, got %d", len(batch), len(got))
	}
	for i := range batch {
		if got[i].Text != batch[i].Text {
			t.Errorf("position %d: expected %q, got %q", i, batch[i].Text, got[i].Text)
		}
		if !got[i].Committed || got[i].ID == "" || got[i].SessionID != id {
			t.Errorf("expected committed insight, got %+v", got[i])
		}
	}
}

func TestCommitSupersedesSameField(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id, _ := s.CreateSession(ctx)

	first, _ := s.CommitInsights(ctx, id, []model.Insight{fieldInsight("bedrooms", "2 bedrooms")}, model.SourceFilterPanel)
	second, err := s.CommitInsights(ctx, id, []model.Insight{fieldInsight("bedrooms", "3 bedrooms")}, model.SourceFilterPanel)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if second[0].Version != 2 {
		t.Errorf("expected version 2, got %d", second[0].Version)
	}
	if second[0].Supersedes != first[0].ID {
		t.Errorf("expected supersedes %q, got %q", first[0].ID, second[0].Supersedes)
	}

	p, _ := s.FetchHistory(ctx, id)
	if len(p.Insights) != 1 || p.Insights[0].Text != "3 bedrooms" {
		t.Errorf("expected only the latest bedrooms insight active, got %+v", p.Insights)
	}

	all, _ := s.InsightHistory(ctx, id)
	if len(all) != 2 {
		t.Errorf("expected 2 versions in history, got %d", len(all))
	}
}

func TestCommitRejectsMalformedBatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id, _ := s.CreateSession(ctx)

	batch := []model.Insight{
		fieldInsight("bedrooms", "2 bedrooms"),
		{Text: "", Priority: model.PriorityMust, Origin: model.OriginUser},
	}
	_, err := s.CommitInsights(ctx, id, batch, model.SourceFilterPanel)
	var verr *gateway.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Entries) != 1 {
		t.Errorf("expected 1 offending entry, got %d", len(verr.Entries))
	}

	p, _ := s.FetchHistory(ctx, id)
	if len(p.Insights) != 0 {
		t.Error("a rejected batch must not be partially stored")
	}
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, _ := s.CreateSession(ctx)
	b, _ := s.CreateSession(ctx)
	c, _ := s.CreateSession(ctx)
	s.DeleteSession(ctx, b)

	list, err := s.ListSessions(ctx, ListSessionsParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 live sessions, got %d", len(list))
	}
	if list[0].ID != c || list[1].ID != a {
		t.Errorf("expected newest first [%s %s], got [%s %s]", c, a, list[0].ID, list[1].ID)
	}
}

func TestListSessionsByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	oldest, _ := s.CreateSession(ctx)
	for i := 0; i < 100; i++ {
		s.CreateSession(ctx)
	}

	list, _ := s.ListSessions(ctx, ListSessionsParams{})
	for _, info := range list {
		if info.ID == oldest {
			t.Fatal("default listing should stop at the newest 100")
		}
	}

	list, err := s.ListSessions(ctx, ListSessionsParams{ID: oldest})
	if err != nil {
		t.Fatalf("list by id: %v", err)
	}
	if len(list) != 1 || list[0].ID != oldest {
		t.Errorf("expected only %s, got %+v", oldest, list)
	}

	s.DeleteSession(ctx, oldest)
	list, _ = s.ListSessions(ctx, ListSessionsParams{ID: oldest})
	if len(list) != 0 {
		t.Errorf("expected deleted session to be filtered, got %+v", list)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath, Options{})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestParseTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"24h": 24 * time.Hour,
		"30m": 30 * time.Minute,
		"60s": time.Minute,
	}
	for in, want := range cases {
		got, err := ParseTTL(in)
		if err != nil || got != want {
			t.Errorf("ParseTTL(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseTTL("1w"); err == nil {
		t.Error("expected error for unknown unit")
	}
}
