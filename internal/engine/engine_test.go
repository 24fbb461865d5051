package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/insight"
	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/reconcile"
)

func TestSetOverlayFieldNeedsPriority(t *testing.T) {
	e := New(gateway.NewMemory(1), Options{})

	if err := e.SetOverlayField(insight.FieldBedrooms, "2", "", ""); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if !e.NeedsPriority(insight.FieldBedrooms) {
		t.Error("expected needs-priority marker")
	}
	if len(e.PendingInsights()) != 0 {
		t.Error("no insight may exist before a priority is known")
	}

	if err := e.SetFieldPriority(insight.FieldBedrooms, model.PriorityMust); err != nil {
		t.Fatalf("set priority: %v", err)
	}
	pending := e.PendingInsights()
	if len(pending) != 1 || pending[0].Text != "2 bedrooms" || pending[0].Priority != model.PriorityMust {
		t.Errorf("expected '2 bedrooms' MUST, got %+v", pending)
	}
	if e.NeedsPriority(insight.FieldBedrooms) {
		t.Error("marker should be gone")
	}
}

func TestSetOverlayFieldReplacesAndClears(t *testing.T) {
	e := New(gateway.NewMemory(1), Options{})

	e.SetOverlayField(insight.FieldBedrooms, "2", model.PriorityMust, model.CategoryRequirements)
	e.SetOverlayField(insight.FieldBedrooms, "3", model.PriorityMust, "")

	pending := e.PendingInsights()
	if len(pending) != 1 || pending[0].Text != "3 bedrooms" {
		t.Fatalf("expected single '3 bedrooms', got %+v", pending)
	}

	e.SetOverlayField(insight.FieldBedrooms, "", model.PriorityMust, "")
	if len(e.PendingInsights()) != 0 {
		t.Error("empty value should clear the field")
	}

	if err := e.SetOverlayField(insight.FieldBedrooms, "many", model.PriorityMust, ""); err == nil {
		t.Error("expected invalid value to be rejected")
	}
}

func TestSetOverlayFieldRejectsUnknownPriority(t *testing.T) {
	e := New(gateway.NewMemory(1), Options{})

	err := e.SetOverlayField(insight.FieldBedrooms, "2", model.Priority("URGENT"), "")
	if err == nil {
		t.Fatal("expected unknown priority to be rejected")
	}
	if !strings.Contains(err.Error(), `invalid priority "URGENT"`) {
		t.Errorf("expected the priority to be named, got %v", err)
	}
	if len(e.PendingInsights()) != 0 || e.NeedsPriority(insight.FieldBedrooms) {
		t.Error("a rejected call must leave the overlay untouched")
	}
}

func TestCategoryIsRemembered(t *testing.T) {
	e := New(gateway.NewMemory(1), Options{})

	e.SetOverlayField("garden", "yes", "", "Lifestyle")
	e.SetFieldPriority("garden", model.PriorityNiceToHave)

	in := e.PendingInsights()[0]
	if in.Category != "Lifestyle" {
		t.Errorf("expected remembered category, got %q", in.Category)
	}
}

func TestSetFieldPriorityChangesPriority(t *testing.T) {
	e := New(gateway.NewMemory(1), Options{})

	e.SetOverlayField(insight.FieldLocation, "Bern", model.PriorityMust, "")
	if err := e.SetFieldPriority(insight.FieldLocation, model.PriorityNiceToHave); err != nil {
		t.Fatalf("set priority: %v", err)
	}
	if got := e.PendingInsights()[0].Priority; got != model.PriorityNiceToHave {
		t.Errorf("expected NICE_TO_HAVE, got %q", got)
	}
	if err := e.SetFieldPriority("unknown", model.PriorityMust); err == nil {
		t.Error("expected error for a field without value")
	}
	if err := e.SetFieldPriority(insight.FieldLocation, "SOMEDAY"); err == nil {
		t.Error("expected error for an invalid priority")
	}
}

func TestSubmitAndHistory(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory(1)
	e := New(gw, Options{Renderer: insight.Renderer{Currency: "EUR"}})

	e.SetOverlayField(insight.FieldPrice, "1000-2000", model.PriorityMust, "")
	e.SetOverlayField(insight.FieldLocation, "Vienna", model.PriorityImportant, "")
	e.SetOverlayField(insight.FieldBedrooms, "2", model.PriorityMust, "")

	got, err := e.SubmitInsights(ctx, nil, model.SourceFilterPanel)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 committed, got %d", len(got))
	}
	if e.Phase() != reconcile.PhaseDone {
		t.Errorf("expected DONE and idle, got %s", e.Phase())
	}

	p, err := e.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !p.ProfileCompleted || p.CompletionPercentage != 100 {
		t.Errorf("expected complete profile, got %d%%", p.CompletionPercentage)
	}
	found := false
	for _, in := range p.Insights {
		if in.Text == "Budget: EUR 1000 - EUR 2000" {
			found = true
		}
	}
	if !found {
		t.Error("expected EUR budget insight in history")
	}
}

func TestNewConversationDropsPending(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory(1)
	e := New(gw, Options{})

	var events [][2]string
	e.OnSessionReplaced(func(o, n string) { events = append(events, [2]string{o, n}) })

	first, _ := e.EnsureValidSession(ctx)
	e.SetOverlayField(insight.FieldLocation, "Thun", model.PriorityMust, "")

	second, err := e.NewConversation(ctx)
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	if second == first {
		t.Error("expected a fresh session id")
	}
	if len(e.PendingInsights()) != 0 {
		t.Error("pending insights belong to the old conversation")
	}
	if len(events) != 2 || events[1] != [2]string{first, second} {
		t.Errorf("unexpected replacement events %v", events)
	}
}

func TestResumeSession(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory(10)
	gw.Seed("3")
	e := New(gw, Options{})

	id, err := e.ResumeSession(ctx, "3")
	if err != nil || id != "3" {
		t.Fatalf("expected resumed 3, got %q %v", id, err)
	}

	gw.Delete("3")
	e2 := New(gw, Options{})
	id, err = e2.ResumeSession(ctx, "3")
	if err != nil || id != "10" {
		t.Fatalf("expected replacement 10, got %q %v", id, err)
	}
}
