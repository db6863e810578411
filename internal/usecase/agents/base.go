// Package agents implements the five role-specialized design agents.
//
// Each agent owns a closed dispatch table from task kind to handler. Task
// kinds outside the table route to the generic consultation handler, so a
// misrouted task degrades to free-text advice instead of failing silently.
// Agents never write to the shared state: they read a state.View and return
// result envelopes whose Outbox carries any messages to deliver.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coursecraft/internal/domain"
	"coursecraft/internal/usecase/router"
	"coursecraft/internal/usecase/state"
)

// ModelCaller is the slice of the router the agents use.
type ModelCaller interface {
	Generate(ctx context.Context, req router.GenerateRequest) (*router.GenerateResult, error)
	GenerateStructured(ctx context.Context, req router.StructuredRequest) (map[string]any, *router.GenerateResult, error)
}

// taskHandler produces a task's content plus its heuristic quality metrics.
type taskHandler func(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error)

// collabHandler answers one collaboration request type.
type collabHandler func(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error)

// followUp lets a role emit extra messages after a task succeeds, such as
// the architect asking the theorist to validate learning objectives.
type followUp func(view state.View, env domain.ResultEnvelope) []domain.AgentMessage

// Self-scoring blend. Criteria a handler does not score default to 0.7.
var selfScoreWeights = map[string]float64{
	"completeness": 0.3,
	"accuracy":     0.3,
	"relevance":    0.2,
	"innovation":   0.2,
}

const defaultCriterionScore = 0.7

// Agent is the shared machinery behind all five roles.
type Agent struct {
	role         domain.AgentRole
	system       string
	capabilities []string
	tier         string
	caller       ModelCaller
	logger       *slog.Logger

	handlers  map[domain.TaskKind]taskHandler
	collab    map[string]collabHandler
	followUps map[domain.TaskKind]followUp

	mu     sync.Mutex
	tasks  int
	scores []float64
}

func (a *Agent) Role() domain.AgentRole { return a.role }

// Performance reports completed task count and mean self-score.
func (a *Agent) Performance() (tasks int, avgQuality float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.scores) == 0 {
		return a.tasks, 0
	}
	var sum float64
	for _, s := range a.scores {
		sum += s
	}
	return a.tasks, sum / float64(len(a.scores))
}

// ProcessTask runs one task through the role's dispatch table and wraps the
// outcome in an envelope. Unknown kinds fall through to consultation.
func (a *Agent) ProcessTask(ctx context.Context, view state.View, task domain.TaskPayload) (domain.ResultEnvelope, error) {
	handler, ok := a.handlers[task.Kind]
	if !ok {
		handler = a.consult
	}

	env := domain.ResultEnvelope{
		Role:      a.role,
		TaskKind:  task.Kind,
		Timestamp: time.Now(),
	}

	content, metrics, err := handler(ctx, view, task)
	if err != nil {
		env.Err = err
		return env, domain.WrapOp(string(a.role)+".ProcessTask", err)
	}

	env.Content = content
	env.QualityScore = selfScore(metrics)
	a.recordScore(env.QualityScore)
	return env, nil
}

// RunOnce drains the agent's pending messages in order: requests run through
// the task table, collaborations through the collaboration table. The first
// handler error stops processing; the returned envelopes include the failed
// one so the orchestrator can merge partial progress before aborting.
func (a *Agent) RunOnce(ctx context.Context, view state.View) ([]domain.ResultEnvelope, error) {
	var out []domain.ResultEnvelope
	for _, msg := range view.MessagesFor(a.role) {
		env, err := a.handleMessage(ctx, view, msg)
		if env != nil {
			out = append(out, *env)
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// RunStreaming emits each envelope as it is produced. A handler error ends
// the stream with an envelope whose Err is set instead of returning it.
func (a *Agent) RunStreaming(ctx context.Context, view state.View) (<-chan domain.ResultEnvelope, error) {
	msgs := view.MessagesFor(a.role)
	ch := make(chan domain.ResultEnvelope, len(msgs))
	go func() {
		defer close(ch)
		for _, msg := range msgs {
			env, err := a.handleMessage(ctx, view, msg)
			if env != nil {
				select {
				case ch <- *env:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch, nil
}

func (a *Agent) handleMessage(ctx context.Context, view state.View, msg domain.AgentMessage) (*domain.ResultEnvelope, error) {
	switch msg.Kind {
	case domain.KindRequest:
		env, err := a.ProcessTask(ctx, view, msg.Content)
		if err != nil {
			a.logger.Error("task failed", "role", a.role, "task", msg.Content.Kind, "error", err)
			env.Outbox = append(env.Outbox, a.errorBroadcast(msg, err))
			return &env, err
		}
		env.Outbox = append(env.Outbox, a.responseTo(msg, env))
		if fu, ok := a.followUps[msg.Content.Kind]; ok {
			env.Outbox = append(env.Outbox, fu(view, env)...)
		}
		a.logger.Info("task completed",
			"role", a.role, "task", msg.Content.Kind, "quality", env.QualityScore)
		return &env, nil

	case domain.KindCollaboration:
		resp := a.Collaborate(ctx, view, msg)
		env := domain.ResultEnvelope{
			Role:      a.role,
			TaskKind:  msg.Content.Kind,
			Timestamp: time.Now(),
			Outbox:    []domain.AgentMessage{resp},
		}
		return &env, nil

	default:
		// Status and broadcast traffic is informational for agents.
		return nil, nil
	}
}

// Collaborate answers an incoming collaboration message. Unknown request
// types get a generic acknowledgement rather than an error. The response is
// always addressed back to the sender with the parent id set.
func (a *Agent) Collaborate(ctx context.Context, view state.View, msg domain.AgentMessage) domain.AgentMessage {
	reqType := msg.Content.RequestType
	var fields map[string]any
	if handler, ok := a.collab[reqType]; ok {
		var err error
		fields, err = handler(ctx, view, msg)
		if err != nil {
			a.logger.Warn("collaboration failed", "role", a.role, "request", reqType, "error", err)
			fields = map[string]any{"status": "error", "error": err.Error()}
		}
	} else {
		fields = map[string]any{"status": "acknowledged", "request_type": reqType}
	}

	resp := state.NewMessage(a.role, msg.Sender, domain.KindResponse, domain.TaskPayload{
		RequestType: reqType,
		Fields:      fields,
	})
	resp.ParentMessageID = msg.ID
	return resp
}

func (a *Agent) responseTo(msg domain.AgentMessage, env domain.ResultEnvelope) domain.AgentMessage {
	resp := state.NewMessage(a.role, msg.Sender, domain.KindResponse, domain.TaskPayload{
		Kind:   env.TaskKind,
		Fields: env.Content,
	})
	resp.ParentMessageID = msg.ID
	return resp
}

func (a *Agent) errorBroadcast(msg domain.AgentMessage, err error) domain.AgentMessage {
	b := state.NewMessage(a.role, "", domain.KindError, domain.TaskPayload{
		Kind: msg.Content.Kind,
		Fields: map[string]any{
			"error": err.Error(),
		},
	})
	b.ParentMessageID = msg.ID
	return b
}

// consult is the fallthrough for task kinds outside the role's table.
func (a *Agent) consult(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("As the %s, advise on the following request for the course %q.\n\nRequest type: %s\nDetails: %s",
		a.role, view.Requirements().Topic(), task.Kind, compactJSON(task.Fields))
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt:       prompt,
		Capabilities: a.capabilities,
		Tier:         a.tier,
	})
	if err != nil {
		return nil, nil, err
	}
	content := map[string]any{"consultation": res.Text}
	return content, map[string]float64{"relevance": 0.75}, nil
}

// structured issues a schema-validated generation with the role's
// capability profile.
func (a *Agent) structured(ctx context.Context, prompt string, schema json.RawMessage) (map[string]any, error) {
	parsed, _, err := a.caller.GenerateStructured(ctx, router.StructuredRequest{
		SystemPrompt: a.system,
		Prompt:       prompt,
		Capabilities: a.capabilities,
		Tier:         a.tier,
		Schema:       schema,
	})
	return parsed, err
}

func (a *Agent) recordScore(score float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks++
	a.scores = append(a.scores, score)
}

// selfScore blends the handler's heuristic metrics into one [0,1] score.
func selfScore(metrics map[string]float64) float64 {
	var total float64
	for criterion, weight := range selfScoreWeights {
		score, ok := metrics[criterion]
		if !ok {
			score = defaultCriterionScore
		}
		total += weight * score
	}
	return total
}

// requireFields validates task inputs before any model call is made.
func requireFields(op string, task domain.TaskPayload, names ...string) error {
	for _, n := range names {
		if task.Field(n) == nil {
			return domain.NewDomainError(op, domain.ErrInvalidInput, fmt.Sprintf("missing task field %q", n))
		}
	}
	return nil
}

func compactJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// requirementsSummary renders the course requirements for prompt use.
func requirementsSummary(view state.View) string {
	return compactJSON(map[string]any(view.Requirements()))
}
