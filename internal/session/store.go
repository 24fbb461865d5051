// Package session keeps the client's reference to a server-owned conversation valid.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rcliao/insight-sync/internal/gateway"
	"github.com/rcliao/insight-sync/internal/overlay"
)

// State is the validity of the held session id.
type State int

const (
	StateEmpty State = iota
	StateValidating
	StateValid
	StateInvalid
	StateCreating
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateValidating:
		return "VALIDATING"
	case StateValid:
		return "VALID"
	case StateInvalid:
		return "INVALID"
	case StateCreating:
		return "CREATING"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ReplacedFunc is called after the held id changes. oldID is "" the first
// time a session is obtained.
type ReplacedFunc func(oldID, newID string)

// flightKey is shared by every resolution so at most one validate or create
// is in flight at a time.
const flightKey = "session"

// Store owns the current session id and its validity.
type Store struct {
	gw      gateway.Gateway
	overlay *overlay.Overlay
	log     *slog.Logger
	group   singleflight.Group

	mu        sync.Mutex
	id        string
	state     State
	busy      bool
	announced string
	hooks     []ReplacedFunc
}

// NewStore returns an EMPTY store. The overlay is scoped to whatever id the
// store holds; a nil logger discards output.
func NewStore(gw gateway.Gateway, ov *overlay.Overlay, log *slog.Logger) *Store {
	if ov == nil {
		ov = overlay.New()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Store{gw: gw, overlay: ov, log: log}
}

// Overlay returns the overlay scoped to this store's session.
func (s *Store) Overlay() *overlay.Overlay {
	return s.overlay
}

// ID returns the held id, which may be "" or not yet validated.
func (s *Store) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Valid reports whether a validated id is held.
func (s *Store) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateValid && s.id != ""
}

// OnReplaced registers fn to run whenever the held id changes.
func (s *Store) OnReplaced(fn ReplacedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// EnsureValid returns a usable session id. A VALID id is returned without a
// network call; otherwise the id is validated or a new session is created.
// Concurrent callers share a single in-flight resolution.
func (s *Store) EnsureValid(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state == StateValid && s.id != "" {
		id := s.id
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()
	return s.do(ctx, s.resolve)
}

// SetExplicit adopts a known server id, validating it first. A stale id is
// invalidated and replaced by a freshly created session, whose id is returned.
func (s *Store) SetExplicit(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", errors.New("session id is required")
	}
	if err := s.waitIdle(ctx); err != nil {
		return "", err
	}
	// waitIdle returns with s.mu held
	if s.state == StateValid && s.id == id {
		s.mu.Unlock()
		return id, nil
	}
	s.id = id
	s.state = StateValidating
	// the caller already points at id; only a replacement is announced
	s.announced = id
	s.mu.Unlock()

	s.log.Debug("validating explicit session", "id", id)
	return s.do(ctx, s.resolve)
}

// Invalidate marks the held id as dead and drops its overlay. The next
// EnsureValid creates a replacement.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
}

// InvalidateID invalidates only if id is still the held VALID id. It reports
// whether anything changed, so a stale report cannot kill a fresh replacement.
func (s *Store) InvalidateID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != id || s.state != StateValid {
		return false
	}
	s.invalidateLocked()
	return true
}

func (s *Store) invalidateLocked() {
	s.log.Info("session invalidated", "id", s.id)
	s.state = StateInvalid
	s.overlay.Reset()
}

// Reset forgets the held session, as when the user starts a new conversation.
// The old id is never reused.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.waitIdle(ctx); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.log.Info("session reset", "id", s.id)
	s.id = ""
	s.state = StateEmpty
	s.overlay.Reset()
	return nil
}

// waitIdle blocks until no resolution is in flight and returns with s.mu held.
func (s *Store) waitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.busy {
			return nil
		}
		s.mu.Unlock()
		if _, err := s.do(ctx, s.current); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// do runs fn as the shared in-flight resolution, or joins the one already
// running. The flight itself is not cancelled when ctx is; only this caller
// stops waiting.
func (s *Store) do(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey, func() (any, error) {
		return fn(flightCtx)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Store) current(context.Context) (string, error) {
	return s.ID(), nil
}

// resolve drives the state machine until a VALID id is held or a step fails.
func (s *Store) resolve(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.busy = true
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if s.state == StateValidating {
		id := s.id
		s.mu.Unlock()

		ok, err := s.gw.ValidateSession(ctx, id)

		s.mu.Lock()
		if err != nil {
			// validity stays unknown; the next EnsureValid retries
			s.mu.Unlock()
			return "", fmt.Errorf("validate session %s: %w", id, err)
		}
		if ok {
			s.state = StateValid
			s.overlay.Bind(id)
			s.log.Info("session validated", "id", id)
			hooks, old := s.announceLocked()
			s.mu.Unlock()
			fire(hooks, old, id)
			return id, nil
		}
		s.invalidateLocked()
	}

	if s.state == StateValid && s.id != "" {
		id := s.id
		s.mu.Unlock()
		return id, nil
	}

	prev := s.state
	s.state = StateCreating
	s.mu.Unlock()

	id, err := s.gw.CreateSession(ctx)

	s.mu.Lock()
	if err != nil {
		s.state = prev
		s.mu.Unlock()
		s.log.Warn("create session failed", "error", err)
		var cerr *gateway.CreateSessionError
		if errors.As(err, &cerr) {
			return "", err
		}
		return "", &gateway.CreateSessionError{Err: err}
	}
	s.id = id
	s.state = StateValid
	s.overlay.Bind(id)
	s.log.Info("session created", "id", id)
	hooks, old := s.announceLocked()
	s.mu.Unlock()
	fire(hooks, old, id)
	return id, nil
}

// announceLocked returns the hooks to fire if the held id differs from the
// last one announced.
func (s *Store) announceLocked() ([]ReplacedFunc, string) {
	if s.id == s.announced {
		return nil, ""
	}
	old := s.announced
	s.announced = s.id
	if old != "" {
		s.log.Info("session replaced", "old", old, "new", s.id)
	}
	return append([]ReplacedFunc(nil), s.hooks...), old
}

func fire(hooks []ReplacedFunc, oldID, newID string) {
	for _, fn := range hooks {
		fn(oldID, newID)
	}
}
