package agents

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"

	"coursecraft/internal/domain"
	"coursecraft/internal/usecase/router"
	"coursecraft/internal/usecase/state"
)

type fakeCaller struct {
	mu          sync.Mutex
	genCalls    int
	structCalls int
	genErr      error
	structErr   error
	structReply map[string]any
	genReply    string
	lastPrompt  string
}

func (f *fakeCaller) Generate(_ context.Context, req router.GenerateRequest) (*router.GenerateResult, error) {
	f.mu.Lock()
	f.genCalls++
	f.lastPrompt = req.Prompt
	f.mu.Unlock()
	if f.genErr != nil {
		return nil, f.genErr
	}
	text := f.genReply
	if text == "" {
		text = "advice"
	}
	return &router.GenerateResult{Text: text, Model: "claude-3-5-haiku-20241022",
		Usage: domain.Usage{TotalTokens: 10}}, nil
}

func (f *fakeCaller) GenerateStructured(_ context.Context, req router.StructuredRequest) (map[string]any, *router.GenerateResult, error) {
	f.mu.Lock()
	f.structCalls++
	f.lastPrompt = req.Prompt
	f.mu.Unlock()
	if f.structErr != nil {
		return nil, nil, f.structErr
	}
	reply := f.structReply
	if reply == nil {
		reply = map[string]any{"ok": true}
	}
	return reply, &router.GenerateResult{Model: "claude-3-5-sonnet-20241022",
		Usage: domain.Usage{TotalTokens: 20}}, nil
}

func testView() *state.DesignState {
	return state.New(domain.CourseRequirements{
		"topic":    "AI Ethics",
		"audience": "high school",
		"duration": "4 weeks",
		"goals":    []any{"understand bias"},
	})
}

func TestSelfScoreBlend(t *testing.T) {
	got := selfScore(map[string]float64{"completeness": 0.9, "accuracy": 0.9})
	// .3*.9 + .3*.9 + .2*.7 + .2*.7
	if math.Abs(got-0.82) > 1e-9 {
		t.Errorf("selfScore = %v, want 0.82", got)
	}
	if got := selfScore(nil); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("empty metrics score = %v, want 0.7", got)
	}
}

func TestUnknownTaskFallsThroughToConsultation(t *testing.T) {
	caller := &fakeCaller{}
	a := NewTheorist(caller, slog.Default())

	env, err := a.ProcessTask(context.Background(), testView(), domain.TaskPayload{
		Kind: domain.TaskKind("summon_dragons"),
	})
	if err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if env.ContentField("consultation") == nil {
		t.Errorf("content = %v, want consultation text", env.Content)
	}
	if caller.structCalls != 0 || caller.genCalls != 1 {
		t.Errorf("calls = (struct %d, gen %d), want (0, 1)", caller.structCalls, caller.genCalls)
	}
}

func TestValidationRunsBeforeModelCall(t *testing.T) {
	caller := &fakeCaller{}
	a := NewTheorist(caller, slog.Default())

	_, err := a.ProcessTask(context.Background(), testView(), domain.TaskPayload{
		Kind: domain.TaskValidatePedagogy, // requires "design"
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if caller.structCalls != 0 || caller.genCalls != 0 {
		t.Error("model called despite invalid input")
	}
}

func TestRunOnceProducesEnvelopeAndResponse(t *testing.T) {
	caller := &fakeCaller{structReply: map[string]any{
		"theories":            []any{"constructivism"},
		"learning_objectives": []any{"explain bias"},
	}}
	a := NewTheorist(caller, slog.Default())
	s := testView()

	req := state.NewMessage(domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest,
		domain.TaskPayload{Kind: domain.TaskDevelopFramework})
	s.AddMessage(req)

	envs, err := a.RunOnce(context.Background(), s)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(envs) != 1 {
		t.Fatalf("envelopes = %d, want 1", len(envs))
	}
	env := envs[0]
	if env.ContentField("framework") == nil {
		t.Errorf("content = %v", env.Content)
	}
	if env.QualityScore <= 0 || env.QualityScore > 1 {
		t.Errorf("quality = %v", env.QualityScore)
	}
	if len(env.Outbox) != 1 {
		t.Fatalf("outbox = %d, want 1 response", len(env.Outbox))
	}
	resp := env.Outbox[0]
	if resp.Kind != domain.KindResponse || resp.Recipient != domain.RoleOrchestrator {
		t.Errorf("response = %+v", resp)
	}
	if resp.ParentMessageID != req.ID {
		t.Errorf("parent = %q, want %q", resp.ParentMessageID, req.ID)
	}
}

func TestRunOnceErrorEmitsBroadcastAndReturns(t *testing.T) {
	caller := &fakeCaller{structErr: errors.New("model down")}
	a := NewTheorist(caller, slog.Default())
	s := testView()
	s.AddMessage(state.NewMessage(domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest,
		domain.TaskPayload{Kind: domain.TaskDevelopFramework}))

	envs, err := a.RunOnce(context.Background(), s)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(envs) != 1 || envs[0].Err == nil {
		t.Fatalf("envelopes = %+v", envs)
	}
	var broadcast bool
	for _, m := range envs[0].Outbox {
		if m.Kind == domain.KindError && m.Broadcast() {
			broadcast = true
		}
	}
	if !broadcast {
		t.Error("missing error broadcast in outbox")
	}
}

func TestRunStreamingErrorEndsStreamWithoutReturning(t *testing.T) {
	caller := &fakeCaller{structErr: errors.New("model down")}
	a := NewTheorist(caller, slog.Default())
	s := testView()
	s.AddMessage(state.NewMessage(domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest,
		domain.TaskPayload{Kind: domain.TaskDevelopFramework}))
	// A second request that must never run after the failure.
	s.AddMessage(state.NewMessage(domain.RoleOrchestrator, domain.RoleTheorist, domain.KindRequest,
		domain.TaskPayload{Kind: domain.TaskAnalyzeRequirements}))

	ch, err := a.RunStreaming(context.Background(), s)
	if err != nil {
		t.Fatalf("RunStreaming: %v", err)
	}
	var envs []domain.ResultEnvelope
	for env := range ch {
		envs = append(envs, env)
	}
	if len(envs) != 1 {
		t.Fatalf("streamed %d envelopes, want 1", len(envs))
	}
	if envs[0].Err == nil {
		t.Error("terminal envelope missing error")
	}
}

func TestCollaborateUnknownRequestAcknowledges(t *testing.T) {
	caller := &fakeCaller{}
	a := NewArchitect(caller, slog.Default())
	msg := state.NewMessage(domain.RoleTheorist, domain.RoleArchitect, domain.KindCollaboration,
		domain.TaskPayload{RequestType: "paint_the_walls"})

	resp := a.Collaborate(context.Background(), testView(), msg)
	if resp.Kind != domain.KindResponse {
		t.Errorf("kind = %q", resp.Kind)
	}
	if resp.Recipient != domain.RoleTheorist {
		t.Errorf("recipient = %q", resp.Recipient)
	}
	if resp.ParentMessageID != msg.ID {
		t.Errorf("parent = %q", resp.ParentMessageID)
	}
	if resp.Content.Fields["status"] != "acknowledged" {
		t.Errorf("fields = %v", resp.Content.Fields)
	}
	if caller.genCalls != 0 {
		t.Error("generic ack must not call the model")
	}
}

func TestCollaborateKnownRequestAnswers(t *testing.T) {
	caller := &fakeCaller{genReply: "looks sound"}
	a := NewTheorist(caller, slog.Default())
	msg := state.NewMessage(domain.RoleArchitect, domain.RoleTheorist, domain.KindCollaboration,
		domain.TaskPayload{RequestType: "validate_learning_objectives",
			Fields: map[string]any{"objectives": []any{"explain bias"}}})

	resp := a.Collaborate(context.Background(), testView(), msg)
	if resp.Content.Fields["status"] != "validated" {
		t.Errorf("fields = %v", resp.Content.Fields)
	}
	if resp.Content.Fields["feedback"] != "looks sound" {
		t.Errorf("feedback = %v", resp.Content.Fields["feedback"])
	}
}

func TestPerformanceTracksScores(t *testing.T) {
	caller := &fakeCaller{structReply: map[string]any{
		"theories": []any{"x"}, "learning_objectives": []any{"y"},
	}}
	a := NewTheorist(caller, slog.Default())
	ctx := context.Background()
	view := testView()

	a.ProcessTask(ctx, view, domain.TaskPayload{Kind: domain.TaskDevelopFramework})
	a.ProcessTask(ctx, view, domain.TaskPayload{Kind: domain.TaskAnalyzeRequirements})

	tasks, avg := a.Performance()
	if tasks != 2 {
		t.Errorf("tasks = %d, want 2", tasks)
	}
	if avg <= 0 || avg > 1 {
		t.Errorf("avg = %v", avg)
	}
}
