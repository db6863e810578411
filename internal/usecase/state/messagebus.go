package state

import (
	"time"

	"github.com/oklog/ulid/v2"

	"coursecraft/internal/domain"
)

// NewMessage builds a bus message with a fresh ID and timestamp. An empty
// recipient makes it a broadcast.
func NewMessage(sender, recipient domain.AgentRole, kind domain.MessageKind, content domain.TaskPayload) domain.AgentMessage {
	return domain.AgentMessage{
		ID:        ulid.Make().String(),
		Sender:    sender,
		Recipient: recipient,
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// AddMessage appends msg to both the pending queue and the permanent
// history. Messages are immutable once posted.
func (s *DesignState) AddMessage(msg domain.AgentMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, msg)
	s.history = append(s.history, msg)
	s.updatedAt = time.Now()
}

// MessagesFor returns pending messages addressed to role or to everyone
// (broadcast), in insertion order.
func (s *DesignState) MessagesFor(role domain.AgentRole) []domain.AgentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AgentMessage
	for _, m := range s.pending {
		if m.Recipient == role || m.Broadcast() {
			out = append(out, m)
		}
	}
	return out
}

// Consume removes messages addressed specifically to role from the pending
// queue. Broadcasts stay pending so other roles still see them.
func (s *DesignState) Consume(role domain.AgentRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.pending[:0]
	for _, m := range s.pending {
		if m.Recipient == role {
			continue
		}
		kept = append(kept, m)
	}
	s.pending = kept
	s.updatedAt = time.Now()
}

// History returns every message ever posted, in insertion order.
func (s *DesignState) History() []domain.AgentMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AgentMessage, len(s.history))
	copy(out, s.history)
	return out
}

// PendingCount reports the current pending-queue length.
func (s *DesignState) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}
