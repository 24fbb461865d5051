package gateway

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rcliao/insight-sync/internal/model"
)

// Memory is an in-process Gateway. Session ids are sequential integers.
type Memory struct {
	mu       sync.Mutex
	next     int
	sessions map[string]*memSession
	seq      int

	// BeforeCommit, if set, runs before each commit; a non-nil error aborts it.
	BeforeCommit func(id string, attempt int) error
	// BeforeCreate, if set, runs before each create; a non-nil error aborts it.
	BeforeCreate func() error

	creates   int
	validates int
	commits   int
	commitIDs []string
	batches   [][]model.Insight
}

type memSession struct {
	createdAt time.Time
	insights  []model.Insight
	messages  []model.Message
}

// NewMemory returns an empty gateway whose first created session id is firstID.
func NewMemory(firstID int) *Memory {
	if firstID <= 0 {
		firstID = 1
	}
	return &Memory{next: firstID, sessions: make(map[string]*memSession)}
}

func (m *Memory) ValidateSession(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validates++
	_, ok := m.sessions[id]
	return ok, nil
}

func (m *Memory) CreateSession(_ context.Context) (string, error) {
	m.mu.Lock()
	hook := m.BeforeCreate
	m.creates++
	m.mu.Unlock()

	if hook != nil {
		if err := hook(); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	id := strconv.Itoa(m.next)
	m.next++
	m.sessions[id] = &memSession{createdAt: time.Now().UTC()}
	return id, nil
}

func (m *Memory) CommitInsights(_ context.Context, id string, insights []model.Insight, _ model.SourceType) ([]model.Insight, error) {
	m.mu.Lock()
	m.commits++
	attempt := m.commits
	m.commitIDs = append(m.commitIDs, id)
	m.batches = append(m.batches, append([]model.Insight(nil), insights...))
	hook := m.BeforeCommit
	m.mu.Unlock()

	if hook != nil {
		if err := hook(id, attempt); err != nil {
			return nil, err
		}
	}
	if err := ValidateBatch(insights); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]model.Insight, len(insights))
	for i, in := range insights {
		m.seq++
		in.ID = "ins_" + strconv.Itoa(m.seq)
		in.SessionID = id
		in.Committed = true
		in.CreatedAt = time.Now().UTC()
		out[i] = in
		s.insights = append(s.insights, in)
	}
	return out, nil
}

func (m *Memory) FetchHistory(_ context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	p := &model.Profile{
		SessionID: id,
		Messages:  append([]model.Message(nil), s.messages...),
		Insights:  append([]model.Insight(nil), s.insights...),
	}
	p.CompletionPercentage, p.ProfileCompleted = model.Completion(p.Insights)
	return p, nil
}

// Delete removes a session, simulating out-of-band invalidation.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Seed registers an existing session id.
func (m *Memory) Seed(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &memSession{createdAt: time.Now().UTC()}
}

// Creates returns the number of CreateSession calls.
func (m *Memory) Creates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// Validates returns the number of ValidateSession calls.
func (m *Memory) Validates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validates
}

// Commits returns the number of CommitInsights calls.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// CommitIDs returns the session id used by each commit call, in order.
func (m *Memory) CommitIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commitIDs...)
}

// Batches returns the payload of each commit call, in order.
func (m *Memory) Batches() [][]model.Insight {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]model.Insight(nil), m.batches...)
}
