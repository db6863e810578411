package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"coursecraft/internal/domain"
	"coursecraft/internal/usecase/router"
	"coursecraft/internal/usecase/state"
)

var assessmentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"strategy": {"type": "string"},
		"formative": {"type": "array", "items": {"type": "object"}},
		"summative": {"type": "array", "items": {"type": "object"}},
		"tools": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["strategy"]
}`)

// NewAssessmentExpert builds the assessment expert. It designs how learner
// progress is measured across the project arc.
func NewAssessmentExpert(caller ModelCaller, logger *slog.Logger) *Agent {
	a := &Agent{
		role:         domain.RoleAssessmentExp,
		system:       "You are an assessment expert for project-based learning. Favor authentic assessment tied to project deliverables over written exams.",
		capabilities: []string{router.CapAnalysis, router.CapReasoning, router.CapLanguage},
		tier:         router.TierQuality,
		caller:       caller,
		logger:       logger,
	}

	a.handlers = map[domain.TaskKind]taskHandler{
		domain.TaskDesignStrategy:       a.designStrategy,
		domain.TaskCreateRubrics:        a.createRubrics,
		domain.TaskDesignPortfolio:      a.designPortfolio,
		domain.TaskCreateFeedbackSystem: a.createFeedbackSystem,
	}
	a.collab = map[string]collabHandler{
		"validate_assessment": a.validateAssessment,
		"align_content":       a.alignContent,
		"timing_requirements": a.timingRequirements,
	}
	return a
}

func (a *Agent) designStrategy(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Design an assessment strategy for this course.\nRequirements: %s\nArchitecture: %s\nContent modules: %d\n\nCover formative and summative assessment and the tools used.",
		requirementsSummary(view), compactJSON(map[string]any(view.Architecture())), len(view.ContentModules()))
	parsed, err := a.structured(ctx, prompt, assessmentSchema)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"assessment": parsed},
		map[string]float64{"completeness": 0.9, "accuracy": 0.88, "relevance": 0.9}, nil
}

func (a *Agent) createRubrics(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	if err := requireFields("assessment.createRubrics", task, "deliverable"); err != nil {
		return nil, nil, err
	}
	prompt := fmt.Sprintf("Create a grading rubric for this deliverable:\n%s", compactJSON(task.Field("deliverable")))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"rubric": {"type": "object"}},
		"required": ["rubric"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"rubric": parsed["rubric"]},
		map[string]float64{"accuracy": 0.9, "completeness": 0.87}, nil
}

func (a *Agent) designPortfolio(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Design a learner portfolio structure for the course %q with modules:\n%s",
		view.Requirements().Topic(), compactJSON(view.ContentModules()))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"portfolio": {"type": "object"}},
		"required": ["portfolio"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"portfolio": parsed["portfolio"]},
		map[string]float64{"completeness": 0.86, "innovation": 0.84}, nil
}

func (a *Agent) createFeedbackSystem(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Design a feedback system (peer, instructor, self) for the assessment strategy:\n%s",
		compactJSON(map[string]any(view.Assessment())))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"feedback_system": {"type": "object"}},
		"required": ["feedback_system"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"feedback_system": parsed["feedback_system"]},
		map[string]float64{"completeness": 0.85, "relevance": 0.88}, nil
}

func (a *Agent) validateAssessment(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Validate this assessment design against the course content:\n%s",
			compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "validated", "feedback": res.Text}, nil
}

func (a *Agent) alignContent(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Check alignment between assessments and these content modules:\n%s",
			compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "aligned", "feedback": res.Text}, nil
}

func (a *Agent) timingRequirements(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("State assessment timing requirements for the course duration %v:\n%s",
			view.Requirements()["duration"], compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "provided", "timing": res.Text}, nil
}
