// Package scheduling runs recurring maintenance work: metrics snapshots
// published on the event bus and cache statistics logging.
package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"coursecraft/internal/domain"
)

// Action identifies a type of scheduled maintenance work.
type Action string

const (
	ActionMetricsSnapshot Action = "metrics_snapshot"
	ActionCacheStats      Action = "cache_stats"
)

// Task defines one recurring maintenance task.
type Task struct {
	Name     string
	Schedule string // cron expression "*/5 * * * *" or duration "30m"
	Action   Action
}

// Scheduler runs maintenance tasks on cron or fixed-interval schedules.
type Scheduler struct {
	cron    *cron.Cron
	actions map[Action]func(ctx context.Context) error
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates an empty scheduler. Register actions before adding
// tasks.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		actions: make(map[Action]func(ctx context.Context) error),
		logger:  logger,
	}
}

// RegisterAction binds a handler to an action type.
func (s *Scheduler) RegisterAction(action Action, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action] = fn
}

// AddTask schedules one recurring task.
func (s *Scheduler) AddTask(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.actions[task.Action]
	if !ok {
		return fmt.Errorf("scheduler: unknown action %q for task %q", task.Action, task.Name)
	}
	schedule, err := parseSchedule(task.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q for task %q: %w", task.Schedule, task.Name, err)
	}

	name := task.Name
	logger := s.logger
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			logger.Debug("scheduler stopped, skipping task", "task", name)
			return
		}

		taskCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		start := time.Now()
		if err := fn(taskCtx); err != nil {
			logger.Warn("scheduled task failed", "task", name, "error", err, "duration", time.Since(start))
			return
		}
		logger.Info("scheduled task completed", "task", name, "duration", time.Since(start))
	}))

	logger.Info("maintenance task added", "name", task.Name, "schedule", task.Schedule)
	return nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
}

// Stop cancels the task context and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	s.ctx = nil
	<-s.cron.Stop().Done()
	s.started = false
}

// MetricsSource yields the counters a snapshot publishes.
type MetricsSource interface {
	Metrics() map[string]any
}

// MetricsSnapshotAction publishes the engine's metrics tree on the event
// bus so subscribers (and the CLI) can observe long-running processes.
func MetricsSnapshotAction(src MetricsSource, bus domain.EventBus) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		snapshot := src.Metrics()
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("marshal metrics snapshot: %w", err)
		}
		bus.Publish(ctx, domain.Event{
			Type:      domain.EventMetricsSnapshot,
			Timestamp: time.Now(),
			Payload:   payload,
		})
		return nil
	}
}

// CacheSizer reports the live entry count of the response cache.
type CacheSizer interface {
	Len() int
}

// CacheStatsAction logs response-cache occupancy.
func CacheStatsAction(cache CacheSizer, logger *slog.Logger) func(ctx context.Context) error {
	return func(context.Context) error {
		logger.Info("response cache stats", "entries", cache.Len())
		return nil
	}
}

// parseSchedule accepts a standard cron expression or a Go duration.
func parseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}
	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return constantDelay{delay: dur}, nil
}

// constantDelay fires at a fixed interval; unlike cron.Every it allows
// sub-second durations, which the tests rely on.
type constantDelay struct {
	delay time.Duration
}

func (d constantDelay) Next(t time.Time) time.Time {
	return t.Add(d.delay)
}
