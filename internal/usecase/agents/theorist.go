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

var frameworkSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"theories": {"type": "array", "items": {"type": "string"}},
		"design_principles": {"type": "array", "items": {"type": "string"}},
		"learning_objectives": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["theories", "learning_objectives"]
}`)

var requirementsAnalysisSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"learner_profile": {"type": "object"},
		"key_competencies": {"type": "array", "items": {"type": "string"}},
		"constraints": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["key_competencies"]
}`)

// NewTheorist builds the education theorist. It grounds the course in
// pedagogical theory and validates other agents' work against it.
func NewTheorist(caller ModelCaller, logger *slog.Logger) *Agent {
	a := &Agent{
		role:         domain.RoleTheorist,
		system:       "You are an education theorist specializing in project-based learning. Ground every recommendation in established pedagogical theory.",
		capabilities: []string{router.CapReasoning, router.CapAnalysis, router.CapLanguage},
		tier:         router.TierQuality,
		caller:       caller,
		logger:       logger,
	}

	a.handlers = map[domain.TaskKind]taskHandler{
		domain.TaskAnalyzeRequirements: a.analyzeRequirements,
		domain.TaskDevelopFramework:    a.developFramework,
		domain.TaskValidatePedagogy:    a.validatePedagogy,
		domain.TaskSuggestTheories:     a.suggestTheories,
	}
	a.collab = map[string]collabHandler{
		"validate_learning_objectives": a.validateObjectives,
		"review_assessment_alignment":  a.reviewAlignment,
		"suggest_scaffolding":          a.suggestScaffolding,
	}
	return a
}

func (a *Agent) analyzeRequirements(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Analyze these course requirements for a project-based course and identify the learner profile, key competencies, and constraints:\n%s",
		requirementsSummary(view))
	parsed, err := a.structured(ctx, prompt, requirementsAnalysisSchema)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"analysis": parsed},
		map[string]float64{"completeness": 0.88, "accuracy": 0.9, "relevance": 0.92}, nil
}

func (a *Agent) developFramework(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Develop a theoretical framework for a project-based course with these requirements:\n%s\n\nName the pedagogical theories applied, the design principles derived from them, and measurable learning objectives.",
		requirementsSummary(view))
	parsed, err := a.structured(ctx, prompt, frameworkSchema)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"framework": parsed},
		map[string]float64{"completeness": 0.9, "accuracy": 0.88, "relevance": 0.92, "innovation": 0.8}, nil
}

func (a *Agent) validatePedagogy(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	if err := requireFields("theorist.validatePedagogy", task, "design"); err != nil {
		return nil, nil, err
	}
	prompt := fmt.Sprintf("Validate the pedagogical soundness of this course design element against the framework %s:\n%s",
		compactJSON(map[string]any(view.Framework())), compactJSON(task.Field("design")))
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system, Prompt: prompt,
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"validation": res.Text},
		map[string]float64{"accuracy": 0.9, "relevance": 0.88}, nil
}

func (a *Agent) suggestTheories(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	if err := requireFields("theorist.suggestTheories", task, "context"); err != nil {
		return nil, nil, err
	}
	prompt := fmt.Sprintf("Suggest pedagogical theories suited to this teaching context for the course %q:\n%s",
		view.Requirements().Topic(), compactJSON(task.Field("context")))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"theories": {"type": "array", "items": {"type": "string"}}},
		"required": ["theories"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"theories": parsed["theories"]},
		map[string]float64{"relevance": 0.9, "innovation": 0.85}, nil
}

func (a *Agent) validateObjectives(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Check whether these learning objectives are measurable and aligned with the framework %s:\n%s",
			compactJSON(map[string]any(view.Framework())), compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "validated", "feedback": res.Text}, nil
}

func (a *Agent) reviewAlignment(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Review the alignment between the assessment strategy %s and the learning objectives in %s.",
			compactJSON(map[string]any(view.Assessment())), compactJSON(map[string]any(view.Framework()))),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "reviewed", "feedback": res.Text}, nil
}

func (a *Agent) suggestScaffolding(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Suggest scaffolding strategies for this request in the course %q:\n%s",
			view.Requirements().Topic(), compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "suggested", "scaffolding": res.Text}, nil
}
