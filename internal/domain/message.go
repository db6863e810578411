package domain

import "time"

// MessageKind classifies inter-agent messages.
type MessageKind string

const (
	KindRequest       MessageKind = "request"
	KindResponse      MessageKind = "response"
	KindBroadcast     MessageKind = "broadcast"
	KindStatus        MessageKind = "status"
	KindError         MessageKind = "error"
	KindCollaboration MessageKind = "collaboration"
	KindReview        MessageKind = "review"
	KindApproval      MessageKind = "approval"
)

// AgentMessage is one entry on the shared message bus. Messages are
// immutable after creation: they are consumed from the pending queue exactly
// once per targeted recipient but retained forever in history.
type AgentMessage struct {
	ID               string         `json:"id"`
	Sender           AgentRole      `json:"sender"`
	Recipient        AgentRole      `json:"recipient,omitempty"` // empty = broadcast
	Kind             MessageKind    `json:"kind"`
	Content          TaskPayload    `json:"content"`
	Timestamp        time.Time      `json:"timestamp"`
	RequiresResponse bool           `json:"requires_response,omitempty"`
	ParentMessageID  string         `json:"parent_message_id,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Broadcast reports whether the message is addressed to every role.
func (m AgentMessage) Broadcast() bool { return m.Recipient == "" }

// TaskPayload is the structured content of an agent message. Task dispatch
// reads Kind; collaboration dispatch reads RequestType; everything else is
// carried in Fields.
type TaskPayload struct {
	Kind        TaskKind       `json:"type,omitempty"`
	RequestType string         `json:"request_type,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// Field returns a named payload field, or nil when absent.
func (p TaskPayload) Field(name string) any {
	if p.Fields == nil {
		return nil
	}
	return p.Fields[name]
}

// StringField returns a named payload field as a string, or "" when absent
// or not a string.
func (p TaskPayload) StringField(name string) string {
	s, _ := p.Field(name).(string)
	return s
}

// ResultEnvelope is the immutable value an agent returns per processed task.
// Agents never write to the shared state; the orchestrator merges envelopes
// into it via per-field merge functions.
type ResultEnvelope struct {
	Role         AgentRole      `json:"role"`
	TaskKind     TaskKind       `json:"task_kind"`
	Content      map[string]any `json:"content"`
	QualityScore float64        `json:"quality_score"`
	Timestamp    time.Time      `json:"timestamp"`
	Err          error          `json:"-"`

	// Outbox carries messages the agent wants delivered (responses,
	// collaboration requests, error broadcasts). The orchestrator posts
	// them to the shared state; agents hold no write handle themselves.
	Outbox []AgentMessage `json:"-"`
}

// ContentField returns a named entry from the envelope content, or nil.
func (e ResultEnvelope) ContentField(name string) any {
	if e.Content == nil {
		return nil
	}
	return e.Content[name]
}
