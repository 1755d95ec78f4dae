package events

import "errors"

// ErrSinkClosed is returned by a Sink once its transport is gone. A run must
// stop producing events (and upstream generation work) when it sees this.
var ErrSinkClosed = errors.New("event sink closed")

// Type identifies an outbound event on the wire.
type Type string

const (
	TypeStart    Type = "start"
	TypeStatus   Type = "status"
	TypePlan     Type = "plan"
	TypeResearch Type = "research"
	TypeReport   Type = "report"
	TypeComplete Type = "complete"
	TypeError    Type = "error"
	TypePong     Type = "pong"
)

// Stage identifies which pipeline phase produced an event.
type Stage string

const (
	StageStart     Stage = "start"
	StagePlan      Stage = "plan"
	StageResearch  Stage = "research"
	StageReport    Stage = "report"
	StageComplete  Stage = "complete"
	StageError     Stage = "error"
	StageHeartbeat Stage = "heartbeat"
)

// Event is a single outbound protocol record. The JSON shape is the wire
// contract with clients; field order and names must stay stable.
type Event struct {
	Type           Type   `json:"type"`
	Content        string `json:"content,omitempty"`
	Stage          Stage  `json:"stage,omitempty"`
	QuestionIndex  int    `json:"question_index,omitempty"`
	Question       string `json:"question,omitempty"`
	TotalQuestions int    `json:"total_questions,omitempty"`
}

// Sink receives events in emission order. Implementations must serialize
// writes themselves; callers may invoke Send from a single goroutine only.
type Sink interface {
	Send(ev Event) error
}
