// Package engine is the entry point the UI/state layer talks to. It wires the
// session store, the insight overlay and the reconciler around one gateway.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/insight"
	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/overlay"
	"github.com/rcliao/insight-sync/internal/reconcile"
	"github.com/rcliao/insight-sync/internal/session"
)

// Options configures an Engine.
type Options struct {
	Renderer insight.Renderer
	Logger   *slog.Logger
}

// Engine keeps one conversation and its pending insights consistent with the server.
type Engine struct {
	sessions   *session.Store
	overlay    *overlay.Overlay
	reconciler *reconcile.Reconciler
	renderer   insight.Renderer

	mu         sync.Mutex
	categories map[string]string
}

// New builds an Engine over gw.
func New(gw gateway.Gateway, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Renderer.Currency == "" {
		opts.Renderer.Currency = insight.DefaultCurrency
	}
	ov := overlay.New()
	sessions := session.NewStore(gw, ov, log.With("component", "session"))
	return &Engine{
		sessions:   sessions,
		overlay:    ov,
		reconciler: reconcile.New(sessions, gw, log.With("component", "reconciler")),
		renderer:   opts.Renderer,
		categories: make(map[string]string),
	}
}

// SessionID returns the held session id, empty when none is held.
func (e *Engine) SessionID() string {
	return e.sessions.ID()
}

// EnsureValidSession returns a usable session id, creating one if needed.
func (e *Engine) EnsureValidSession(ctx context.Context) (string, error) {
	return e.sessions.EnsureValid(ctx)
}

// ResumeSession adopts a previously listed conversation id. When the server
// no longer has it, a replacement is created and its id returned.
func (e *Engine) ResumeSession(ctx context.Context, id string) (string, error) {
	return e.sessions.SetExplicit(ctx, id)
}

// NewConversation discards the current session and its pending insights and
// creates a fresh one.
func (e *Engine) NewConversation(ctx context.Context) (string, error) {
	if err := e.sessions.Reset(ctx); err != nil {
		return "", err
	}
	return e.sessions.EnsureValid(ctx)
}

// OnSessionReplaced registers fn to run whenever the held session id changes.
func (e *Engine) OnSessionReplaced(fn func(oldID, newID string)) {
	e.sessions.OnReplaced(fn)
}

// SetOverlayField records the value of a UI control. With no priority yet only
// a needs-priority marker is kept; an empty value clears the field.
func (e *Engine) SetOverlayField(fieldKey, value string, priority model.Priority, category string) error {
	if value == "" {
		e.ClearOverlayField(fieldKey)
		return nil
	}
	if priority != "" && !priority.Valid() {
		return fmt.Errorf("invalid priority %q for field %q", priority, fieldKey)
	}
	e.mu.Lock()
	if category != "" {
		e.categories[fieldKey] = category
	}
	category = e.categories[fieldKey]
	e.mu.Unlock()

	if priority == "" {
		e.overlay.SetPending(fieldKey, value)
		return nil
	}
	in, ok := e.renderer.MakeInsight(fieldKey, value, priority, category)
	if !ok {
		return fmt.Errorf("invalid value %q for field %q", value, fieldKey)
	}
	e.overlay.SetField(fieldKey, in)
	return nil
}

// SetFieldPriority completes a pending value with its priority.
func (e *Engine) SetFieldPriority(fieldKey string, priority model.Priority) error {
	if !priority.Valid() {
		return fmt.Errorf("invalid priority %q", priority)
	}
	if value, ok := e.overlay.Pending(fieldKey); ok {
		return e.SetOverlayField(fieldKey, value, priority, "")
	}
	in, ok := e.overlay.Get(fieldKey)
	if !ok {
		return fmt.Errorf("field %q has no value", fieldKey)
	}
	in.Priority = priority
	e.overlay.SetField(fieldKey, in)
	return nil
}

// ClearOverlayField resets a control to empty.
func (e *Engine) ClearOverlayField(fieldKey string) {
	e.overlay.ClearField(fieldKey)
}

// NeedsPriority reports whether a field has a value awaiting a priority.
func (e *Engine) NeedsPriority(fieldKey string) bool {
	return e.overlay.NeedsPriority(fieldKey)
}

// PendingInsights returns the uncommitted insights.
func (e *Engine) PendingInsights() []model.Insight {
	return e.overlay.All()
}

// SubmitInsights commits explicit candidates together with all pending
// field insights. It returns an error on terminal failure.
func (e *Engine) SubmitInsights(ctx context.Context, explicit []model.Insight, source model.SourceType) ([]model.Insight, error) {
	return e.reconciler.Submit(ctx, explicit, source)
}

// History returns the conversation profile.
func (e *Engine) History(ctx context.Context) (*model.Profile, error) {
	return e.reconciler.History(ctx)
}

// Phase reports where the current or last submit cycle stands.
func (e *Engine) Phase() reconcile.Phase {
	return e.reconciler.Phase()
}
