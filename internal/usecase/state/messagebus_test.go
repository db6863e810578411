package state

import (
	"testing"

	"coursecraft/internal/domain"
)

func post(s *DesignState, sender, recipient domain.AgentRole, kind domain.MessageKind) domain.AgentMessage {
	msg := NewMessage(sender, recipient, kind, domain.TaskPayload{})
	s.AddMessage(msg)
	return msg
}

func TestMessagesForReturnsAddressedAndBroadcast(t *testing.T) {
	s := New(testRequirements())
	post(s, domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest)
	post(s, domain.RoleOrchestrator, domain.RoleArchitect, domain.KindRequest)
	post(s, domain.RoleOrchestrator, "", domain.KindBroadcast)

	msgs := s.MessagesFor(domain.RoleTheorist)
	if len(msgs) != 2 {
		t.Fatalf("theorist messages = %d, want 2 (request + broadcast)", len(msgs))
	}
	if msgs[0].Kind != domain.KindRequest || msgs[1].Kind != domain.KindBroadcast {
		t.Errorf("order wrong: %v, %v", msgs[0].Kind, msgs[1].Kind)
	}
}

func TestConsumeRemovesOnlyAddressedMessages(t *testing.T) {
	s := New(testRequirements())
	post(s, domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest)
	post(s, domain.RoleOrchestrator, "", domain.KindBroadcast)

	s.Consume(domain.RoleTheorist)

	if got := s.MessagesFor(domain.RoleTheorist); len(got) != 1 || !got[0].Broadcast() {
		t.Errorf("theorist still sees %v after consume, want broadcast only", got)
	}
	// Broadcast stays visible to roles that have not consumed.
	if got := s.MessagesFor(domain.RoleArchitect); len(got) != 1 {
		t.Errorf("architect messages = %d, want 1", len(got))
	}
}

func TestConsumePreservesOtherRolesQueues(t *testing.T) {
	s := New(testRequirements())
	post(s, domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest)
	post(s, domain.RoleOrchestrator, domain.RoleArchitect, domain.KindRequest)

	s.Consume(domain.RoleTheorist)

	if got := s.MessagesFor(domain.RoleArchitect); len(got) != 1 {
		t.Errorf("architect lost its message: %v", got)
	}
	if s.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", s.PendingCount())
	}
}

func TestHistoryRetainsConsumedMessages(t *testing.T) {
	s := New(testRequirements())
	msg := post(s, domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest)
	s.Consume(domain.RoleTheorist)

	hist := s.History()
	if len(hist) != 1 || hist[0].ID != msg.ID {
		t.Errorf("history = %v, want the consumed message retained", hist)
	}
}

func TestMessagesInInsertionOrder(t *testing.T) {
	s := New(testRequirements())
	first := post(s, domain.RoleArchitect, domain.RoleTheorist, domain.KindCollaboration)
	second := post(s, domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest)

	msgs := s.MessagesFor(domain.RoleTheorist)
	if len(msgs) != 2 || msgs[0].ID != first.ID || msgs[1].ID != second.ID {
		t.Errorf("order = %v", msgs)
	}
}

func TestNewMessageFields(t *testing.T) {
	msg := NewMessage(domain.RoleArchitect, domain.RoleTheorist, domain.KindCollaboration,
		domain.TaskPayload{RequestType: "validate_learning_objectives"})
	if msg.ID == "" {
		t.Error("missing id")
	}
	if msg.Timestamp.IsZero() {
		t.Error("missing timestamp")
	}
	if msg.Broadcast() {
		t.Error("addressed message reported as broadcast")
	}
	if msg.Content.RequestType != "validate_learning_objectives" {
		t.Errorf("request type = %q", msg.Content.RequestType)
	}
}
