// Package reconcile merges overlay and explicit insight candidates and
// commits them as one batch against a valid session.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/model"
	"github.com/rcliao/insight-sync/internal/overlay"
	"github.com/rcliao/insight-sync/internal/session"
)

// ErrPartialCommit means the gateway accepted a different number of insights
// than were sent. The whole batch is treated as failed.
var ErrPartialCommit = errors.New("partial commit")

// Phase is the state of the current submit cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResolvingSession
	PhaseCommitting
	PhaseRetrying
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseResolvingSession:
		return "RESOLVING_SESSION"
	case PhaseCommitting:
		return "COMMITTING"
	case PhaseRetrying:
		return "RETRYING"
	case PhaseDone:
		return "DONE"
	case PhaseFailed:
		return "FAILED"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Reconciler is the single write path for insights. Submissions are
// serialized, so at most one cycle runs against the session at a time.
type Reconciler struct {
	sessions *session.Store
	overlay  *overlay.Overlay
	gw       gateway.Gateway
	log      *slog.Logger
	queue    *semaphore.Weighted

	mu    sync.Mutex
	phase Phase
}

// New returns a Reconciler over the store's session and overlay.
func New(sessions *session.Store, gw gateway.Gateway, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		sessions: sessions,
		overlay:  sessions.Overlay(),
		gw:       gw,
		log:      log,
		queue:    semaphore.NewWeighted(1),
	}
}

// Phase returns the state of the current or last submit cycle.
func (r *Reconciler) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Reconciler) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
	r.log.Debug("submit phase", "phase", p.String())
}

// Submit commits explicit candidates together with every uncommitted overlay
// insight. A SessionNotFound answer is recovered from exactly once by
// replacing the session; every other failure is returned unchanged and
// leaves the overlay intact.
func (r *Reconciler) Submit(ctx context.Context, explicit []model.Insight, source model.SourceType) ([]model.Insight, error) {
	if err := r.queue.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.queue.Release(1)

	if len(explicit) == 0 && r.overlay.Len() == 0 {
		r.setPhase(PhaseDone)
		return []model.Insight{}, nil
	}

	r.setPhase(PhaseResolvingSession)
	id, err := r.sessions.EnsureValid(ctx)
	if err != nil {
		r.setPhase(PhaseFailed)
		return nil, err
	}

	pending := r.overlay.All()
	batch := Merge(explicit, pending)
	if len(batch) == 0 {
		r.setPhase(PhaseDone)
		return []model.Insight{}, nil
	}

	r.setPhase(PhaseCommitting)
	committed, err := r.commit(ctx, id, batch, source)
	if gateway.IsSessionNotFound(err) {
		r.setPhase(PhaseRetrying)
		r.log.Info("session not found during commit, replacing", "id", id)
		r.sessions.InvalidateID(id)
		// the user's pending choices carry over to the replacement session
		for _, in := range pending {
			r.overlay.Restore(in)
		}

		id, err = r.sessions.EnsureValid(ctx)
		if err != nil {
			r.setPhase(PhaseFailed)
			return nil, err
		}

		r.setPhase(PhaseCommitting)
		committed, err = r.commit(ctx, id, batch, source)
	}
	if err != nil {
		r.setPhase(PhaseFailed)
		r.log.Warn("submit failed", "id", id, "error", err)
		return nil, err
	}

	done := make(map[string]bool, len(pending))
	for _, in := range pending {
		done[in.ID] = true
	}
	r.overlay.ClearCommitted(done)

	r.setPhase(PhaseDone)
	r.log.Info("insights committed", "id", id, "count", len(committed), "source", string(source))
	return committed, nil
}

func (r *Reconciler) commit(ctx context.Context, id string, batch []model.Insight, source model.SourceType) ([]model.Insight, error) {
	tagged := make([]model.Insight, len(batch))
	for i, in := range batch {
		in.SessionID = id
		tagged[i] = in
	}
	committed, err := r.gw.CommitInsights(ctx, id, tagged, source)
	if err != nil {
		return nil, err
	}
	if len(committed) != len(tagged) {
		return nil, fmt.Errorf("%w: sent %d, accepted %d", ErrPartialCommit, len(tagged), len(committed))
	}
	return committed, nil
}

// History fetches the conversation profile, replacing the session once if
// the server no longer knows it.
func (r *Reconciler) History(ctx context.Context) (*model.Profile, error) {
	id, err := r.sessions.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}
	p, err := r.gw.FetchHistory(ctx, id)
	if !gateway.IsSessionNotFound(err) {
		return p, err
	}

	r.log.Info("session not found during fetch, replacing", "id", id)
	r.sessions.InvalidateID(id)
	if id, err = r.sessions.EnsureValid(ctx); err != nil {
		return nil, err
	}
	return r.gw.FetchHistory(ctx, id)
}
