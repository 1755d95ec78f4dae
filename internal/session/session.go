package session

import (
	"time"

	"github.com/google/uuid"
)

// Role tags a message in the conversation history.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the state accumulated by one pipeline run. It is owned
// exclusively by the run's orchestrator; each stage writes only its own
// field, exactly once, so no locking is needed.
//
// Plan distinguishes absent (nil) from committed-but-empty (non-nil, zero
// length): a structured decomposition that yields zero sub-questions is still
// a committed plan, and downstream stages treat it as the soft-failure path.
type Session struct {
	ID      string    `json:"id"`
	History []Message `json:"history"`
	Plan    []string  `json:"plan,omitempty"`
	Drafts  []string  `json:"drafts,omitempty"`
	Report  string    `json:"report,omitempty"`

	planSet   bool
	draftsSet bool
	reportSet bool
}

// New creates a session for a single question, seeding the history with the
// user's message.
func New(question string) *Session {
	s := &Session{ID: uuid.NewString()}
	s.AddMessage(RoleUser, question)
	return s
}

// AddMessage appends a message to the history. History is append-only; there
// is no way to remove or rewrite earlier entries.
func (s *Session) AddMessage(role Role, content string) {
	s.History = append(s.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// LastUserMessage returns the most recent user message content, or "" if the
// history holds none.
func (s *Session) LastUserMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Content
		}
	}
	return ""
}

// SetPlan commits the decomposed sub-questions. It is a no-op after the first
// call; the plan stage is the only writer.
func (s *Session) SetPlan(questions []string) {
	if s.planSet {
		return
	}
	if questions == nil {
		questions = []string{}
	}
	s.Plan = questions
	s.planSet = true
}

// HasPlan reports whether the plan stage committed a non-empty plan.
func (s *Session) HasPlan() bool {
	return s.planSet && len(s.Plan) > 0
}

// SetDrafts commits the per-sub-question analyses. First call wins.
func (s *Session) SetDrafts(drafts []string) {
	if s.draftsSet {
		return
	}
	s.Drafts = drafts
	s.draftsSet = true
}

// HasDrafts reports whether the research stage committed drafts.
func (s *Session) HasDrafts() bool {
	return s.draftsSet && len(s.Drafts) > 0
}

// SetReport commits the final synthesized report. First call wins.
func (s *Session) SetReport(report string) {
	if s.reportSet {
		return
	}
	s.Report = report
	s.reportSet = true
}

// HasReport reports whether the report stage committed a report.
func (s *Session) HasReport() bool {
	return s.reportSet
}

// MessageContents returns the history contents in order, without role tags.
// Used by the synchronous API response.
func (s *Session) MessageContents() []string {
	out := make([]string, 0, len(s.History))
	for _, m := range s.History {
		out = append(out, m.Content)
	}
	return out
}
