package scheduling

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coursecraft/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.Start(context.Background())
	s.Stop()
	// Stopping twice is a no-op.
	s.Stop()
}

func TestSchedulerActionFires(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCacheStats, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	if err := s.AddTask(Task{Name: "stats", Schedule: "50ms", Action: ActionCacheStats}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if c := count.Load(); c < 1 {
		t.Errorf("action fired %d times, expected at least 1", c)
	}
}

func TestSchedulerUnknownAction(t *testing.T) {
	s := NewScheduler(newTestLogger())
	if err := s.AddTask(Task{Name: "x", Schedule: "100ms", Action: "does_not_exist"}); err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestSchedulerInvalidSchedule(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCacheStats, func(context.Context) error { return nil })
	if err := s.AddTask(Task{Name: "x", Schedule: "whenever", Action: ActionCacheStats}); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

type stubMetrics struct{}

func (stubMetrics) Metrics() map[string]any {
	return map[string]any{"orchestrator": map[string]any{"total_runs": 1}}
}

type captureBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *captureBus) Publish(_ context.Context, ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *captureBus) PublishJSON(ctx context.Context, typ domain.EventType, sessionID string, payload any) {
	raw, _ := json.Marshal(payload)
	b.Publish(ctx, domain.Event{Type: typ, Timestamp: time.Now(), SessionID: sessionID, Payload: raw})
}

func (b *captureBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *captureBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *captureBus) Close()                                                 {}

func TestMetricsSnapshotActionPublishes(t *testing.T) {
	bus := &captureBus{}
	action := MetricsSnapshotAction(stubMetrics{}, bus)

	if err := action(context.Background()); err != nil {
		t.Fatalf("action: %v", err)
	}
	if len(bus.events) != 1 {
		t.Fatalf("events = %d, want 1", len(bus.events))
	}
	ev := bus.events[0]
	if ev.Type != domain.EventMetricsSnapshot {
		t.Errorf("type = %q", ev.Type)
	}
	if len(ev.Payload) == 0 {
		t.Error("empty payload")
	}
}

type stubCache struct{ n int }

func (c stubCache) Len() int { return c.n }

func TestCacheStatsActionLogs(t *testing.T) {
	action := CacheStatsAction(stubCache{n: 7}, newTestLogger())
	if err := action(context.Background()); err != nil {
		t.Fatalf("action: %v", err)
	}
}

func TestParseScheduleForms(t *testing.T) {
	if _, err := parseSchedule("*/5 * * * *"); err != nil {
		t.Errorf("cron form: %v", err)
	}
	if _, err := parseSchedule("30m"); err != nil {
		t.Errorf("duration form: %v", err)
	}
	if _, err := parseSchedule("-1s"); err == nil {
		t.Error("negative duration accepted")
	}
	if _, err := parseSchedule(""); err == nil {
		t.Error("empty schedule accepted")
	}
}
