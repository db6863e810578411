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

var materialSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"material_type": {"type": "string"},
		"title": {"type": "string"},
		"items": {"type": "array", "items": {"type": "object"}}
	},
	"required": ["material_type", "items"]
}`)

// NewMaterialCreator builds the material creator. Bulk material generation
// runs on the speed tier; the designs it renders are already fixed by the
// upstream agents.
func NewMaterialCreator(caller ModelCaller, logger *slog.Logger) *Agent {
	a := &Agent{
		role:         domain.RoleMaterialCreator,
		system:       "You are a learning-material creator. Turn course designs into ready-to-use classroom materials.",
		capabilities: []string{router.CapCreativity, router.CapLanguage, router.CapCoding},
		tier:         router.TierSpeed,
		caller:       caller,
		logger:       logger,
	}

	a.handlers = map[domain.TaskKind]taskHandler{
		domain.TaskCreateWorksheets:    a.materialHandler("worksheets", "printable worksheets with exercises and answer keys"),
		domain.TaskCreatePresentations: a.materialHandler("presentations", "slide outlines for each module"),
		domain.TaskCreateTemplates:     a.materialHandler("templates", "project and reflection templates learners fill in"),
		domain.TaskCreateGuides:        a.materialHandler("guides", "step-by-step instructor and learner guides"),
		domain.TaskCreateDigital:       a.materialHandler("digital", "digital and interactive material descriptions"),
	}
	a.collab = map[string]collabHandler{
		"format_content":  a.formatContent,
		"create_visuals":  a.createVisuals,
		"adapt_materials": a.adaptMaterials,
	}
	return a
}

// materialHandler builds one handler per material family; all five share
// the same shape and differ only in what they ask for.
func (a *Agent) materialHandler(materialType, description string) taskHandler {
	return func(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
		prompt := fmt.Sprintf("Create %s for the course %q.\nModules: %s\nAssessment strategy: %s",
			description, view.Requirements().Topic(),
			compactJSON(view.ContentModules()), compactJSON(map[string]any(view.Assessment())))
		parsed, err := a.structured(ctx, prompt, materialSchema)
		if err != nil {
			return nil, nil, err
		}
		parsed["material_type"] = materialType
		return map[string]any{"material": parsed},
			map[string]float64{"completeness": 0.85, "relevance": 0.88, "innovation": 0.8}, nil
	}
}

func (a *Agent) formatContent(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Reformat this content for classroom use:\n%s",
			compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "formatted", "content": res.Text}, nil
}

func (a *Agent) createVisuals(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Describe visual aids (diagrams, charts) for this request:\n%s",
			compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "created", "visuals": res.Text}, nil
}

func (a *Agent) adaptMaterials(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Adapt existing materials per this request for audience %v:\n%s",
			view.Requirements()["audience"], compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "adapted", "materials": res.Text}, nil
}
