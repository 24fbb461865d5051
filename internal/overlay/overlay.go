// Package overlay holds insights created locally but not yet committed.
package overlay

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/insight-sync/internal/model"
)

// Overlay maps a field key to at most one uncommitted insight. It is scoped
// to a single session id; rebinding to a different id drops its contents.
type Overlay struct {
	mu        sync.Mutex
	sessionID string
	entries   map[string]model.Insight
	pending   map[string]string
	entropy   *rand.Rand
}

// New returns an empty, unbound overlay.
func New() *Overlay {
	return &Overlay{
		entries: make(map[string]model.Insight),
		pending: make(map[string]string),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (o *Overlay) newTempID() string {
	return model.TempIDPrefix + ulid.MustNew(ulid.Timestamp(time.Now()), o.entropy).String()
}

// SessionID returns the session the overlay is scoped to, or "" when unbound.
func (o *Overlay) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Bind scopes the overlay to id. An unbound overlay adopts id and keeps its
// entries; a different bound id discards them.
func (o *Overlay) Bind(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessionID != "" && o.sessionID != id {
		o.clearLocked()
	}
	o.sessionID = id
	for k, in := range o.entries {
		in.SessionID = id
		o.entries[k] = in
	}
}

// SetField replaces whatever uncommitted insight fieldKey had with in, and
// returns the stored copy carrying a fresh temporary id.
func (o *Overlay) SetField(fieldKey string, in model.Insight) model.Insight {
	o.mu.Lock()
	defer o.mu.Unlock()
	in.FieldKey = fieldKey
	in.ID = o.newTempID()
	in.SessionID = o.sessionID
	in.Committed = false
	o.entries[fieldKey] = in
	delete(o.pending, fieldKey)
	return in
}

// Restore puts in back under its field key unless that slot already holds a
// newer entry. It keeps the insight's temporary id. Returns whether it was stored.
func (o *Overlay) Restore(in model.Insight) bool {
	if in.FieldKey == "" {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, taken := o.entries[in.FieldKey]; taken {
		return false
	}
	in.SessionID = o.sessionID
	o.entries[in.FieldKey] = in
	return true
}

// ClearField removes the uncommitted insight and any pending value for fieldKey.
func (o *Overlay) ClearField(fieldKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, fieldKey)
	delete(o.pending, fieldKey)
}

// Get returns the uncommitted insight for fieldKey.
func (o *Overlay) Get(fieldKey string) (model.Insight, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	in, ok := o.entries[fieldKey]
	return in, ok
}

// All returns a snapshot of every uncommitted insight.
func (o *Overlay) All() []model.Insight {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.Insight, 0, len(o.entries))
	for _, in := range o.entries {
		out = append(out, in)
	}
	return out
}

// Len returns the number of uncommitted insights.
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// ClearCommitted drops entries whose temporary id is in ids. An entry that was
// replaced after the batch was taken keeps its slot.
func (o *Overlay) ClearCommitted(ids map[string]bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, in := range o.entries {
		if ids[in.ID] {
			delete(o.entries, k)
		}
	}
}

// ClearAll drops every entry and pending value.
func (o *Overlay) ClearAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked()
}

// Reset clears the overlay and unbinds it from its session.
func (o *Overlay) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked()
	o.sessionID = ""
}

func (o *Overlay) clearLocked() {
	o.entries = make(map[string]model.Insight)
	o.pending = make(map[string]string)
}

// SetPending records a value that has no priority yet. Any uncommitted
// insight for the field is dropped since it no longer reflects the control.
func (o *Overlay) SetPending(fieldKey, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, fieldKey)
	o.pending[fieldKey] = value
}

// Pending returns the value waiting for a priority.
func (o *Overlay) Pending(fieldKey string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.pending[fieldKey]
	return v, ok
}

// NeedsPriority reports whether fieldKey has a value but no priority.
func (o *Overlay) NeedsPriority(fieldKey string) bool {
	_, ok := o.Pending(fieldKey)
	return ok
}
