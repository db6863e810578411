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

var moduleContentSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"sections": {"type": "array", "items": {"type": "object"}},
		"activities": {"type": "array", "items": {"type": "object"}},
		"resources": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["title", "sections"]
}`)

// NewContentDesigner builds the content designer. It fills each
// architectural module with teachable content, activities, and scenarios.
func NewContentDesigner(caller ModelCaller, logger *slog.Logger) *Agent {
	a := &Agent{
		role:         domain.RoleContentDesigner,
		system:       "You are a content designer for project-based learning. Produce concrete, age-appropriate learning content anchored in realistic projects.",
		capabilities: []string{router.CapCreativity, router.CapLanguage, router.CapAnalysis},
		tier:         router.TierQuality,
		caller:       caller,
		logger:       logger,
	}

	a.handlers = map[domain.TaskKind]taskHandler{
		domain.TaskCreateContent:    a.createContent,
		domain.TaskDesignActivities: a.designActivities,
		domain.TaskCreateScenarios:  a.createScenarios,
		domain.TaskDevelopResources: a.developResources,
	}
	a.collab = map[string]collabHandler{
		"adapt_content":     a.adaptContent,
		"enhance_materials": a.enhanceMaterials,
		"create_examples":   a.createExamples,
	}
	return a
}

func (a *Agent) createContent(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	if err := requireFields("content.createContent", task, "module"); err != nil {
		return nil, nil, err
	}
	prompt := fmt.Sprintf("Create the full learning content for this module of the course %q.\nModule: %s\nAudience: %v\n\nProvide titled sections, hands-on activities, and supporting resources.",
		view.Requirements().Topic(), compactJSON(task.Field("module")), view.Requirements()["audience"])
	parsed, err := a.structured(ctx, prompt, moduleContentSchema)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"module_content": parsed},
		map[string]float64{"completeness": 0.88, "accuracy": 0.85, "relevance": 0.9, "innovation": 0.82}, nil
}

func (a *Agent) designActivities(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	if err := requireFields("content.designActivities", task, "module"); err != nil {
		return nil, nil, err
	}
	prompt := fmt.Sprintf("Design project-based activities for this module:\n%s", compactJSON(task.Field("module")))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"activities": {"type": "array", "items": {"type": "object"}}},
		"required": ["activities"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"activities": parsed["activities"]},
		map[string]float64{"relevance": 0.9, "innovation": 0.88}, nil
}

func (a *Agent) createScenarios(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Create realistic project scenarios for the course %q with requirements %s.",
		view.Requirements().Topic(), requirementsSummary(view))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"scenarios": {"type": "array", "items": {"type": "object"}}},
		"required": ["scenarios"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"scenarios": parsed["scenarios"]},
		map[string]float64{"innovation": 0.9, "relevance": 0.87}, nil
}

func (a *Agent) developResources(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("List learning resources supporting the modules:\n%s",
		compactJSON(view.ContentModules()))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"resources": {"type": "array", "items": {"type": "string"}}},
		"required": ["resources"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"resources": parsed["resources"]},
		map[string]float64{"completeness": 0.85, "relevance": 0.86}, nil
}

func (a *Agent) adaptContent(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Adapt existing course content according to this request:\n%s",
			compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "adapted", "content": res.Text}, nil
}

func (a *Agent) enhanceMaterials(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Suggest content enhancements for these materials:\n%s",
			compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "enhanced", "suggestions": res.Text}, nil
}

func (a *Agent) createExamples(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Create worked examples for the course %q matching this request:\n%s",
			view.Requirements().Topic(), compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "created", "examples": res.Text}, nil
}
