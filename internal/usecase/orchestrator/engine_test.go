package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"testing"

	"coursecraft/internal/domain"
	"coursecraft/internal/usecase/router"
)

// scriptedCaller serves every structured call from one reply map, with an
// optional per-prompt failure predicate.
type scriptedCaller struct {
	mu          sync.Mutex
	structCalls int
	genCalls    int
	failWhen    func(prompt string) bool
	reply       map[string]any
}

func universalReply() map[string]any {
	return map[string]any{
		"theories":            []any{"constructivism"},
		"learning_objectives": []any{"explain bias"},
		"overview":            "a four-week project arc",
		"modules": []any{
			map[string]any{"title": "Module 1"},
			map[string]any{"title": "Module 2"},
		},
		"title":         "Module 1",
		"sections":      []any{map[string]any{"heading": "Intro"}},
		"strategy":      "portfolio-based",
		"tools":         []any{"rubric"},
		"material_type": "generic",
		"items":         []any{map[string]any{"name": "sheet 1"}},
	}
}

func (c *scriptedCaller) GenerateStructured(_ context.Context, req router.StructuredRequest) (map[string]any, *router.GenerateResult, error) {
	c.mu.Lock()
	c.structCalls++
	c.mu.Unlock()
	if c.failWhen != nil && c.failWhen(req.Prompt) {
		return nil, nil, errors.New("scripted failure")
	}
	reply := c.reply
	if reply == nil {
		reply = universalReply()
	}
	return maps.Clone(reply), &router.GenerateResult{Model: "claude-3-5-sonnet-20241022",
		Usage: domain.Usage{TotalTokens: 20}}, nil
}

func (c *scriptedCaller) Generate(_ context.Context, req router.GenerateRequest) (*router.GenerateResult, error) {
	c.mu.Lock()
	c.genCalls++
	c.mu.Unlock()
	if c.failWhen != nil && c.failWhen(req.Prompt) {
		return nil, errors.New("scripted failure")
	}
	return &router.GenerateResult{Text: "advice", Model: "claude-3-5-haiku-20241022",
		Usage: domain.Usage{TotalTokens: 5}}, nil
}

func aiEthicsRequirements() domain.CourseRequirements {
	return domain.CourseRequirements{
		"topic":    "AI Ethics",
		"audience": "high school",
		"duration": "4 weeks",
		"goals":    []any{"understand bias"},
	}
}

func newTestEngine(t *testing.T, cfg Config, caller *scriptedCaller, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, caller, slog.Default(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(Config{Mode: "freestyle"}, &scriptedCaller{}, slog.Default())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDesignCourseFullRunTerminates(t *testing.T) {
	caller := &scriptedCaller{}
	e := newTestEngine(t, Config{Mode: ModeFullCourse}, caller)

	bundle, s, err := e.run(context.Background(), aiEthicsRequirements(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.CurrentPhase() != domain.PhaseFinalization {
		t.Errorf("terminal phase = %q", s.CurrentPhase())
	}
	if s.IterationCount() > 3 {
		t.Errorf("iterations = %d, want <= 3", s.IterationCount())
	}
	if bundle.Content.TotalModules != len(bundle.Content.Modules) {
		t.Errorf("total_modules = %d, modules = %d",
			bundle.Content.TotalModules, len(bundle.Content.Modules))
	}
	if len(bundle.Assessment.Strategy) == 0 {
		t.Error("assessment strategy empty")
	}
	if bundle.Metadata.Iterations < 0 {
		t.Errorf("iterations = %d", bundle.Metadata.Iterations)
	}
	if bundle.Metadata.SessionID != s.SessionID() {
		t.Errorf("session = %q", bundle.Metadata.SessionID)
	}
	if bundle.Metadata.QualityScore <= 0 {
		t.Errorf("quality = %v", bundle.Metadata.QualityScore)
	}
}

func TestDesignCourseIterationCapTerminatesLoop(t *testing.T) {
	caller := &scriptedCaller{}
	// An unreachable threshold forces iteration until the cap.
	e := newTestEngine(t, Config{Mode: ModeFullCourse, MaxIterations: 2, QualityThreshold: 0.99}, caller)

	_, s, err := e.run(context.Background(), aiEthicsRequirements(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.IterationCount() != 2 {
		t.Errorf("iterations = %d, want 2", s.IterationCount())
	}
	if s.CurrentPhase() != domain.PhaseFinalization {
		t.Errorf("terminal phase = %q", s.CurrentPhase())
	}
}

func TestRunDrainsPendingResponses(t *testing.T) {
	caller := &scriptedCaller{}
	// Force review iterations so collaboration answers flow back too.
	e := newTestEngine(t, Config{Mode: ModeFullCourse, MaxIterations: 2, QualityThreshold: 0.99}, caller)

	_, s, err := e.run(context.Background(), aiEthicsRequirements(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Every addressed message must have been consumed; only the
	// workflow-started broadcast stays pending.
	if got := s.PendingCount(); got != 1 {
		t.Errorf("pending messages = %d, want 1 (the broadcast)", got)
	}
	for _, m := range s.MessagesFor(domain.RoleOrchestrator) {
		if !m.Broadcast() {
			t.Errorf("unconsumed message addressed to orchestrator: %+v", m)
		}
	}
}

func TestDesignCourseRequiresTopic(t *testing.T) {
	e := newTestEngine(t, Config{}, &scriptedCaller{})
	_, err := e.DesignCourse(context.Background(), domain.CourseRequirements{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestQuickDesignSkipsAssessment(t *testing.T) {
	caller := &scriptedCaller{}
	e := newTestEngine(t, Config{Mode: ModeQuickDesign}, caller)

	bundle, s, err := e.run(context.Background(), aiEthicsRequirements(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(bundle.Assessment.Strategy) != 0 {
		t.Error("quick design should not produce an assessment")
	}
	hist := s.PhaseHistory()
	for _, p := range hist {
		if p == domain.PhaseAssessmentDesign || p == domain.PhaseMaterialProduction {
			t.Errorf("unexpected phase %q in quick design", p)
		}
	}
	if bundle.Content.TotalModules == 0 {
		t.Error("quick design produced no content")
	}
}

func TestCustomModeGoesStraightToFinalization(t *testing.T) {
	caller := &scriptedCaller{}
	e := newTestEngine(t, Config{Mode: ModeCustom}, caller)

	_, s, err := e.run(context.Background(), aiEthicsRequirements(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	hist := s.PhaseHistory()
	if len(hist) != 2 {
		t.Errorf("history = %v", hist)
	}
}

func TestDesignCourseStreamEmitsProgressAndCompletion(t *testing.T) {
	caller := &scriptedCaller{}
	e := newTestEngine(t, Config{Mode: ModeQuickDesign}, caller)

	var updates []ProgressUpdate
	for u := range e.DesignCourseStream(context.Background(), aiEthicsRequirements()) {
		updates = append(updates, u)
	}
	if len(updates) < 4 {
		t.Fatalf("updates = %d, want at least one per phase plus completion", len(updates))
	}
	last := updates[len(updates)-1]
	if last.Type != "completed" || last.Bundle == nil || last.Progress != 100 {
		t.Errorf("terminal update = %+v", last)
	}
	for _, u := range updates[:len(updates)-1] {
		if u.Type != "progress" {
			t.Errorf("update type = %q", u.Type)
		}
		if u.Progress < 0 || u.Progress > 100 {
			t.Errorf("progress = %v", u.Progress)
		}
	}
}

func TestDesignCourseStreamYieldsTerminalErrorRecord(t *testing.T) {
	caller := &scriptedCaller{failWhen: func(prompt string) bool {
		return strings.Contains(prompt, "theoretical framework")
	}}
	e := newTestEngine(t, Config{Mode: ModeFullCourse}, caller)

	var updates []ProgressUpdate
	for u := range e.DesignCourseStream(context.Background(), aiEthicsRequirements()) {
		updates = append(updates, u)
	}
	if len(updates) == 0 {
		t.Fatal("no updates")
	}
	last := updates[len(updates)-1]
	if last.Type != "error" || last.Error == "" {
		t.Errorf("terminal update = %+v, want error record", last)
	}
}

func TestMetricsAfterRun(t *testing.T) {
	caller := &scriptedCaller{}
	e := newTestEngine(t, Config{Mode: ModeQuickDesign}, caller)

	if _, err := e.DesignCourse(context.Background(), aiEthicsRequirements()); err != nil {
		t.Fatalf("DesignCourse: %v", err)
	}

	m := e.Metrics()
	orch := m["orchestrator"].(map[string]any)
	if orch["total_runs"].(int) != 1 || orch["successful_runs"].(int) != 1 {
		t.Errorf("run counts = %v", orch)
	}
	agents := m["agents"].(map[string]any)
	arch := agents[string(domain.RoleArchitect)].(map[string]any)
	if arch["tasks_completed"].(int) == 0 {
		t.Error("architect completed no tasks")
	}
}

type memStore struct {
	mu          sync.Mutex
	runs        []domain.RunRecord
	checkpoints []domain.Checkpoint
}

func (m *memStore) SaveRun(_ context.Context, run domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) SaveCheckpoint(_ context.Context, _ string, cp domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

func (m *memStore) SaveCallRecord(context.Context, domain.ModelCallRecord) error { return nil }
func (m *memStore) Close() error                                                 { return nil }

func TestRunPersistsRecordsAndCheckpoints(t *testing.T) {
	store := &memStore{}
	caller := &scriptedCaller{}
	e := newTestEngine(t, Config{Mode: ModeFullCourse}, caller, WithStore(store))

	if _, err := e.DesignCourse(context.Background(), aiEthicsRequirements()); err != nil {
		t.Fatalf("DesignCourse: %v", err)
	}

	if len(store.runs) < 2 {
		t.Fatalf("run records = %d, want running + completed", len(store.runs))
	}
	if store.runs[0].Status != "running" {
		t.Errorf("first record status = %q", store.runs[0].Status)
	}
	final := store.runs[len(store.runs)-1]
	if final.Status != "completed" || len(final.Deliverables) == 0 {
		t.Errorf("final record = %+v", final)
	}
	if len(store.checkpoints) < 2 {
		t.Errorf("checkpoints = %d, want init + finalization at least", len(store.checkpoints))
	}
}

type fakeExporter struct {
	format domain.ExportFormat
	err    error
	calls  int
}

func (f *fakeExporter) Export(context.Context, domain.DeliverablesBundle) (*domain.ExportResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ExportResult{Format: f.format, FilePath: "/tmp/out"}, nil
}

func (f *fakeExporter) Format() domain.ExportFormat { return f.format }

func TestExportFailureDoesNotFailRun(t *testing.T) {
	broken := &fakeExporter{format: domain.ExportJSON, err: errors.New("disk full")}
	good := &fakeExporter{format: domain.ExportHTML}
	caller := &scriptedCaller{}
	e := newTestEngine(t, Config{Mode: ModeQuickDesign}, caller,
		WithExporters(broken, good), WithQualityChecker(HeuristicChecker{}))

	if _, err := e.DesignCourse(context.Background(), aiEthicsRequirements()); err != nil {
		t.Fatalf("DesignCourse: %v", err)
	}
	if broken.calls != 1 || good.calls != 1 {
		t.Errorf("export calls = (%d, %d), want both attempted", broken.calls, good.calls)
	}
}
