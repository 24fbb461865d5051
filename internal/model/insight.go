// Package model defines the core insight and session data types.
package model

import (
	"strings"
	"time"
)

// Priority ranks how strongly the user cares about an insight.
type Priority string

const (
	PriorityMust       Priority = "MUST"
	PriorityImportant  Priority = "IMPORTANT"
	PriorityNiceToHave Priority = "NICE_TO_HAVE"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return ValidPriorities[p]
}

// ParsePriority accepts the canonical names case-insensitively, with '-' or ' ' for '_'.
func ParsePriority(s string) (Priority, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	p := Priority(norm)
	return p, p.Valid()
}

// Origin records who produced an insight.
type Origin string

const (
	OriginUser   Origin = "USER"
	OriginAI     Origin = "AI"
	OriginSystem Origin = "SYSTEM"
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	return ValidOrigins[o]
}

// Categories used for profile-completion accounting.
const (
	CategoryLocation     = "Location"
	CategoryBudget       = "Budget"
	CategoryRequirements = "Property Requirements"
	CategoryLifestyle    = "Lifestyle"
)

// RequiredCategories must all be covered before a profile counts as complete.
var RequiredCategories = []string{
	CategoryLocation,
	CategoryBudget,
	CategoryRequirements,
}

// SourceType tags which UI flow submitted a batch.
type SourceType string

const (
	SourceRegularChat SourceType = "regular_chat"
	SourceFilterPanel SourceType = "filter_panel"
	SourceOnboarding  SourceType = "onboarding"
)

// TempIDPrefix marks locally generated insight ids.
const TempIDPrefix = "tmp_"

// Insight is one discrete user-preference fact.
type Insight struct {
	ID         string    `json:"id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	FieldKey   string    `json:"field_key,omitempty"`
	Text       string    `json:"text"`
	Category   string    `json:"category"`
	Priority   Priority  `json:"priority"`
	Origin     Origin    `json:"origin"`
	Committed  bool      `json:"committed"`
	Version    int       `json:"version,omitempty"`
	Supersedes string    `json:"supersedes,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// IsTemp reports whether the insight still carries a locally generated id.
func (i Insight) IsTemp() bool {
	return !i.Committed && strings.HasPrefix(i.ID, TempIDPrefix)
}

// NewTextInsight builds an uncommitted free-text insight, typically derived from chat.
// It returns false when text is blank or priority is unknown.
func NewTextInsight(text string, priority Priority, category string, origin Origin) (Insight, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !priority.Valid() {
		return Insight{}, false
	}
	if origin == "" {
		origin = OriginUser
	}
	return Insight{
		Text:     text,
		Category: category,
		Priority: priority,
		Origin:   origin,
	}, true
}

// Message is one chat turn stored with a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the server's view of a conversation.
type Profile struct {
	SessionID            string    `json:"session_id"`
	Messages             []Message `json:"messages"`
	Insights             []Insight `json:"insights"`
	ProfileCompleted     bool      `json:"profile_completed"`
	CompletionPercentage int       `json:"completion_percentage"`
}

// SessionInfo describes a listed session.
type SessionInfo struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ValidPriorities are the allowed priority levels.
var ValidPriorities = map[Priority]bool{
	PriorityMust:       true,
	PriorityImportant:  true,
	PriorityNiceToHave: true,
}

// ValidOrigins are the allowed insight origins.
var ValidOrigins = map[Origin]bool{
	OriginUser:   true,
	OriginAI:     true,
	OriginSystem: true,
}

// Completion computes the completion percentage for a set of committed insights.
func Completion(insights []Insight) (int, bool) {
	covered := map[string]bool{}
	for _, in := range insights {
		covered[in.Category] = true
	}
	n := 0
	for _, c := range RequiredCategories {
		if covered[c] {
			n++
		}
	}
	pct := n * 100 / len(RequiredCategories)
	return pct, pct == 100
}
