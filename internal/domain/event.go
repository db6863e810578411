package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventRunStarted        EventType = "run.started"
	EventRunCompleted      EventType = "run.completed"
	EventRunFailed         EventType = "run.failed"
	EventPhaseStarted      EventType = "phase.started"
	EventPhaseCompleted    EventType = "phase.completed"
	EventAgentTaskStarted  EventType = "agent.task.started"
	EventAgentTaskDone     EventType = "agent.task.completed"
	EventAgentCollaborated EventType = "agent.collaborated"
	EventAgentError        EventType = "agent.error"
	EventLLMCallStarted    EventType = "llm.call.started"
	EventLLMCallCompleted  EventType = "llm.call.completed"
	EventLLMFallback       EventType = "llm.fallback"
	EventCacheHit          EventType = "cache.hit"
	EventCheckpointCreated EventType = "checkpoint.created"
	EventMetricsSnapshot   EventType = "metrics.snapshot"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for run observability.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// PublishJSON marshals payload and publishes it under the given type.
	// Marshal failures must not drop the event; it goes out with a nil
	// payload instead.
	PublishJSON(ctx context.Context, typ EventType, sessionID string, payload any)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
