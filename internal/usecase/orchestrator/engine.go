// Package orchestrator drives the course-design workflow: a directed graph
// of phases, each dispatching tasks to one specialist agent and merging the
// results into the shared design state.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"coursecraft/internal/domain"
	"coursecraft/internal/infra/tracer"
	"coursecraft/internal/usecase/agents"
	"coursecraft/internal/usecase/state"
)

// Mode selects the workflow graph at construction time. A running workflow
// never changes mode.
type Mode string

const (
	ModeFullCourse  Mode = "full_course"
	ModeQuickDesign Mode = "quick_design"
	ModeIteration   Mode = "iteration"
	ModeCustom      Mode = "custom"
)

// edge is one outgoing transition in a mode graph. cond routes through
// shouldIterate instead of a fixed successor.
type edge struct {
	next domain.WorkflowPhase
	cond bool
}

var modeGraphs = map[Mode]map[domain.WorkflowPhase]edge{
	ModeFullCourse: {
		domain.PhaseInitialization:     {next: domain.PhaseTheory},
		domain.PhaseTheory:             {next: domain.PhaseArchitecture},
		domain.PhaseArchitecture:       {next: domain.PhaseContentCreation},
		domain.PhaseContentCreation:    {next: domain.PhaseAssessmentDesign},
		domain.PhaseAssessmentDesign:   {next: domain.PhaseMaterialProduction},
		domain.PhaseMaterialProduction: {cond: true},
		domain.PhaseReviewIteration:    {next: domain.PhaseArchitecture},
	},
	ModeQuickDesign: {
		domain.PhaseInitialization:  {next: domain.PhaseArchitecture},
		domain.PhaseArchitecture:    {next: domain.PhaseContentCreation},
		domain.PhaseContentCreation: {next: domain.PhaseFinalization},
	},
	ModeIteration: {
		domain.PhaseReviewIteration:  {next: domain.PhaseArchitecture},
		domain.PhaseArchitecture:     {next: domain.PhaseContentCreation},
		domain.PhaseContentCreation:  {next: domain.PhaseAssessmentDesign},
		domain.PhaseAssessmentDesign: {next: domain.PhaseFinalization},
	},
	ModeCustom: {
		domain.PhaseInitialization: {next: domain.PhaseFinalization},
	},
}

func startPhase(mode Mode) domain.WorkflowPhase {
	if mode == ModeIteration {
		return domain.PhaseReviewIteration
	}
	return domain.PhaseInitialization
}

// MetricsSource exposes the LLM layer's counters for get-metrics reporting.
type MetricsSource interface {
	Snapshot() map[string]any
}

// Config tunes one engine instance.
type Config struct {
	Mode             Mode
	MaxIterations    int
	QualityThreshold float64
	PhaseTimeout     time.Duration
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = ModeFullCourse
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 3
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = 0.85
	}
	if c.PhaseTimeout <= 0 {
		c.PhaseTimeout = 5 * time.Minute
	}
}

// Engine owns the workflow run: it holds the only write handle to the
// design state and applies every agent envelope itself.
type Engine struct {
	cfg       Config
	agents    map[domain.AgentRole]*agents.Agent
	logger    *slog.Logger
	bus       domain.EventBus
	store     domain.RunStore
	exporters []domain.Exporter
	checker   domain.QualityChecker
	llm       MetricsSource

	mu        sync.Mutex
	runs      int
	succeeded int
	failed    int
}

// Option configures optional engine collaborators.
type Option func(*Engine)

func WithEventBus(bus domain.EventBus) Option {
	return func(e *Engine) { e.bus = bus }
}

func WithStore(store domain.RunStore) Option {
	return func(e *Engine) { e.store = store }
}

func WithExporters(exporters ...domain.Exporter) Option {
	return func(e *Engine) { e.exporters = exporters }
}

func WithQualityChecker(checker domain.QualityChecker) Option {
	return func(e *Engine) { e.checker = checker }
}

func WithMetricsSource(src MetricsSource) Option {
	return func(e *Engine) { e.llm = src }
}

// New builds an engine with its five specialist agents.
func New(cfg Config, caller agents.ModelCaller, logger *slog.Logger, opts ...Option) (*Engine, error) {
	cfg.defaults()
	if _, ok := modeGraphs[cfg.Mode]; !ok {
		return nil, domain.NewDomainError("orchestrator.New", domain.ErrInvalidInput,
			fmt.Sprintf("unknown workflow mode %q", cfg.Mode))
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		agents: map[domain.AgentRole]*agents.Agent{
			domain.RoleTheorist:        agents.NewTheorist(caller, logger),
			domain.RoleArchitect:       agents.NewArchitect(caller, logger),
			domain.RoleContentDesigner: agents.NewContentDesigner(caller, logger),
			domain.RoleAssessmentExp:   agents.NewAssessmentExpert(caller, logger),
			domain.RoleMaterialCreator: agents.NewMaterialCreator(caller, logger),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// DesignCourse runs the configured workflow graph to completion and returns
// the compiled deliverables. Fatal phase failures propagate as errors.
func (e *Engine) DesignCourse(ctx context.Context, requirements domain.CourseRequirements) (*domain.DeliverablesBundle, error) {
	bundle, _, err := e.run(ctx, requirements, nil)
	return bundle, err
}

// ProgressUpdate is one record of a streaming run.
type ProgressUpdate struct {
	Type     string                     `json:"type"` // "progress", "completed", "error"
	Phase    domain.WorkflowPhase       `json:"phase,omitempty"`
	Progress float64                    `json:"progress"`
	Partial  map[string]any             `json:"partial,omitempty"`
	Bundle   *domain.DeliverablesBundle `json:"bundle,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// DesignCourseStream runs the same graph but yields a progress record after
// every phase. An internal failure ends the stream with one terminal error
// record instead of an error return.
func (e *Engine) DesignCourseStream(ctx context.Context, requirements domain.CourseRequirements) <-chan ProgressUpdate {
	ch := make(chan ProgressUpdate, 16)
	go func() {
		defer close(ch)
		emit := func(u ProgressUpdate) {
			select {
			case ch <- u:
			case <-ctx.Done():
			}
		}
		bundle, _, err := e.run(ctx, requirements, emit)
		if err != nil {
			emit(ProgressUpdate{Type: "error", Error: err.Error()})
			return
		}
		emit(ProgressUpdate{Type: "completed", Progress: 100, Bundle: bundle})
	}()
	return ch
}

// run executes the graph over a fresh state. emit is nil for non-streaming
// runs.
func (e *Engine) run(ctx context.Context, requirements domain.CourseRequirements, emit func(ProgressUpdate)) (*domain.DeliverablesBundle, *state.DesignState, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.run",
		trace.WithAttributes(tracer.StringAttr("mode", string(e.cfg.Mode))),
	)
	defer span.End()

	s := state.New(requirements)
	e.countRunStart()
	e.publish(ctx, domain.EventRunStarted, s.SessionID(), map[string]any{
		"mode": string(e.cfg.Mode), "topic": requirements.Topic(),
	})
	e.saveRun(ctx, s, "running", nil, nil)

	completed := make([]domain.WorkflowPhase, 0, 8)
	var bundle *domain.DeliverablesBundle

	phase := startPhase(e.cfg.Mode)
	for {
		e.publish(ctx, domain.EventPhaseStarted, s.SessionID(), map[string]any{"phase": string(phase)})
		if emit != nil {
			emit(ProgressUpdate{
				Type:     "progress",
				Phase:    phase,
				Progress: progressPercent(completed, phase),
				Partial:  partialSummary(s),
			})
		}

		var err error
		bundle, err = e.runPhase(ctx, s, phase)
		if err != nil {
			s.RecordError(domain.RoleOrchestrator, err, map[string]any{"phase": string(phase)})
			e.countRunEnd(false)
			e.publish(ctx, domain.EventRunFailed, s.SessionID(), map[string]any{
				"phase": string(phase), "error": err.Error(),
			})
			e.saveRun(ctx, s, "failed", nil, err)
			tracer.RecordError(span, err)
			return nil, s, domain.WrapOp("orchestrator.run", err)
		}

		completed = append(completed, phase)
		e.publish(ctx, domain.EventPhaseCompleted, s.SessionID(), map[string]any{
			"phase": string(phase), "progress": progressPercent(completed, ""),
		})

		if phase == domain.PhaseFinalization {
			break
		}
		phase = e.next(phase, s)
	}

	e.countRunEnd(true)
	e.publish(ctx, domain.EventRunCompleted, s.SessionID(), map[string]any{
		"iterations": s.IterationCount(),
		"quality":    s.QualityScores()["final"],
	})
	e.saveRun(ctx, s, "completed", bundle, nil)
	tracer.SetOK(span)
	return bundle, s, nil
}

// next resolves the outgoing edge for the current phase.
func (e *Engine) next(phase domain.WorkflowPhase, s *state.DesignState) domain.WorkflowPhase {
	edge, ok := modeGraphs[e.cfg.Mode][phase]
	if !ok {
		return domain.PhaseFinalization
	}
	if edge.cond {
		if e.shouldIterate(s) {
			return domain.PhaseReviewIteration
		}
		return domain.PhaseFinalization
	}
	return edge.next
}

func (e *Engine) runPhase(ctx context.Context, s *state.DesignState, phase domain.WorkflowPhase) (*domain.DeliverablesBundle, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeout)
	defer cancel()
	ctx, span := tracer.StartSpan(ctx, "orchestrator.phase",
		trace.WithAttributes(
			tracer.StringAttr("phase", string(phase)),
			tracer.IntAttr("iteration", s.IterationCount()),
		),
	)
	defer span.End()

	s.TransitionPhase(phase)
	e.logger.Info("phase started", "phase", phase, "session", s.SessionID())

	var bundle *domain.DeliverablesBundle
	var err error
	switch phase {
	case domain.PhaseInitialization:
		err = e.phaseInitialization(ctx, s)
	case domain.PhaseTheory:
		err = e.phaseTheory(ctx, s)
	case domain.PhaseArchitecture:
		err = e.phaseArchitecture(ctx, s)
	case domain.PhaseContentCreation:
		err = e.phaseContent(ctx, s)
	case domain.PhaseAssessmentDesign:
		err = e.phaseAssessment(ctx, s)
	case domain.PhaseMaterialProduction:
		_, err = e.phaseMaterials(ctx, s)
	case domain.PhaseReviewIteration:
		err = e.phaseReview(ctx, s)
	case domain.PhaseFinalization:
		bundle, err = e.phaseFinalization(ctx, s)
	default:
		err = domain.NewDomainError("orchestrator.runPhase", domain.ErrInvalidInput, string(phase))
	}
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	tracer.SetOK(span)
	return bundle, nil
}

// dispatch posts one task to a role, runs the agent, delivers its outbox,
// and consumes the role's queue. The returned envelopes include failures.
func (e *Engine) dispatch(ctx context.Context, s *state.DesignState, role domain.AgentRole, task domain.TaskPayload) ([]domain.ResultEnvelope, error) {
	agent, ok := e.agents[role]
	if !ok {
		return nil, domain.NewDomainError("orchestrator.dispatch", domain.ErrNotFound, string(role))
	}

	s.AddMessage(state.NewMessage(domain.RoleOrchestrator, role, domain.KindRequest, task))
	s.SetAgentStatus(role, domain.AgentProcessing)
	e.publish(ctx, domain.EventAgentTaskStarted, s.SessionID(), map[string]any{
		"role": string(role), "task": string(task.Kind),
	})

	envs, err := agent.RunOnce(ctx, s)
	for _, env := range envs {
		for _, msg := range env.Outbox {
			s.AddMessage(msg)
		}
	}
	s.Consume(role)
	// The engine reads results from envelopes, not the bus; sweep the
	// responses agents address back to it so the pending queue drains.
	s.Consume(domain.RoleOrchestrator)

	if err != nil {
		s.SetAgentStatus(role, domain.AgentError)
		s.RecordError(role, err, map[string]any{
			"phase": string(s.CurrentPhase()), "task": string(task.Kind),
		})
		e.publish(ctx, domain.EventAgentError, s.SessionID(), map[string]any{
			"role": string(role), "task": string(task.Kind), "error": err.Error(),
		})
		return envs, err
	}

	s.SetAgentStatus(role, domain.AgentCompleted)
	e.publish(ctx, domain.EventAgentTaskDone, s.SessionID(), map[string]any{
		"role": string(role), "task": string(task.Kind),
	})
	return envs, nil
}

// drainCollaborations lets roles answer pending collaboration requests.
// Collaboration answers never fail the run; unknown requests acknowledge.
func (e *Engine) drainCollaborations(ctx context.Context, s *state.DesignState) {
	for role, agent := range e.agents {
		pending := false
		for _, msg := range s.MessagesFor(role) {
			if msg.Kind == domain.KindCollaboration {
				pending = true
				break
			}
		}
		if !pending {
			continue
		}
		s.SetAgentStatus(role, domain.AgentCollaborating)
		envs, _ := agent.RunOnce(ctx, s)
		for _, env := range envs {
			for _, msg := range env.Outbox {
				s.AddMessage(msg)
			}
		}
		s.Consume(role)
		s.Consume(domain.RoleOrchestrator)
		s.SetAgentStatus(role, domain.AgentCompleted)
		e.publish(ctx, domain.EventAgentCollaborated, s.SessionID(), map[string]any{
			"role": string(role),
		})
	}
}

// lastContent returns the named field from the last envelope carrying it.
// Earlier partial results are observability only; the final one wins.
func lastContent(envs []domain.ResultEnvelope, key string) any {
	for i := len(envs) - 1; i >= 0; i-- {
		if v := envs[i].ContentField(key); v != nil {
			return v
		}
	}
	return nil
}

// lastScore returns the self-score of the last envelope that carries key.
func lastScore(envs []domain.ResultEnvelope, key string) float64 {
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].ContentField(key) != nil {
			return envs[i].QualityScore
		}
	}
	return 0
}

func partialSummary(s *state.DesignState) map[string]any {
	return map[string]any{
		"session_id":      s.SessionID(),
		"phase":           string(s.CurrentPhase()),
		"iteration":       s.IterationCount(),
		"modules":         len(s.ContentModules()),
		"materials":       len(s.Materials()),
		"quality_scores":  s.QualityScores(),
		"warnings":        s.Warnings(),
		"framework_ready": len(s.Framework()) > 0,
	}
}

func (e *Engine) publish(ctx context.Context, typ domain.EventType, sessionID string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.PublishJSON(ctx, typ, sessionID, payload)
}

func (e *Engine) saveRun(ctx context.Context, s *state.DesignState, status string, bundle *domain.DeliverablesBundle, runErr error) {
	if e.store == nil {
		return
	}
	rec := domain.RunRecord{
		SessionID: s.SessionID(),
		Mode:      string(e.cfg.Mode),
		Status:    status,
	}
	if bundle != nil {
		if raw, err := json.Marshal(bundle); err == nil {
			rec.Deliverables = raw
		}
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := e.store.SaveRun(ctx, rec); err != nil {
		e.logger.Warn("run record save failed", "session", s.SessionID(), "error", err)
	}
}

func (e *Engine) saveCheckpoint(ctx context.Context, s *state.DesignState, cp domain.Checkpoint) {
	e.publish(ctx, domain.EventCheckpointCreated, s.SessionID(), map[string]any{
		"checkpoint_id": cp.ID, "phase": string(cp.Phase),
	})
	if e.store == nil {
		return
	}
	if err := e.store.SaveCheckpoint(ctx, s.SessionID(), cp); err != nil {
		e.logger.Warn("checkpoint save failed", "session", s.SessionID(), "error", err)
	}
}

func (e *Engine) countRunStart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs++
}

func (e *Engine) countRunEnd(success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if success {
		e.succeeded++
	} else {
		e.failed++
	}
}
