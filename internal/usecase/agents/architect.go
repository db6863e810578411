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

var architectureSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"overview": {"type": "string"},
		"modules": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"description": {"type": "string"},
					"duration": {"type": "string"}
				},
				"required": ["title"]
			}
		},
		"project_phases": {"type": "array", "items": {"type": "string"}},
		"assessment_checkpoints": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["overview", "modules"]
}`)

var modulesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"modules": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"title": {"type": "string"},
					"description": {"type": "string"},
					"learning_outcomes": {"type": "array", "items": {"type": "string"}}
				},
				"required": ["title"]
			}
		}
	},
	"required": ["modules"]
}`)

// NewArchitect builds the course architect. It turns the theoretical
// framework into a concrete course structure and module breakdown.
func NewArchitect(caller ModelCaller, logger *slog.Logger) *Agent {
	a := &Agent{
		role:         domain.RoleArchitect,
		system:       "You are a course architect for project-based learning. Design structures where every module advances a running project.",
		capabilities: []string{router.CapReasoning, router.CapCreativity, router.CapAnalysis},
		tier:         router.TierQuality,
		caller:       caller,
		logger:       logger,
	}

	a.handlers = map[domain.TaskKind]taskHandler{
		domain.TaskDesignStructure: a.designStructure,
		domain.TaskCreateModules:   a.createModules,
		domain.TaskDesignPathway:   a.designPathway,
		domain.TaskPlanMilestones:  a.planMilestones,
	}
	a.collab = map[string]collabHandler{
		"adjust_structure": a.adjustStructure,
		"optimize_timing":  a.optimizeTiming,
		"add_resources":    a.addResources,
	}
	// A fresh structure goes to the theorist for objective validation.
	a.followUps = map[domain.TaskKind]followUp{
		domain.TaskDesignStructure: a.requestObjectiveValidation,
	}
	return a
}

func (a *Agent) designStructure(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Design the structure of a project-based course.\nRequirements: %s\nTheoretical framework: %s\n\nProvide an overview, a module breakdown, project phases, and assessment checkpoints.",
		requirementsSummary(view), compactJSON(map[string]any(view.Framework())))
	parsed, err := a.structured(ctx, prompt, architectureSchema)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"architecture": parsed},
		map[string]float64{"completeness": 0.9, "accuracy": 0.85, "relevance": 0.9, "innovation": 0.85}, nil
}

func (a *Agent) createModules(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	arch := view.Architecture()
	if len(arch) == 0 {
		return nil, nil, domain.NewDomainError("architect.createModules", domain.ErrInvalidInput,
			"no course architecture to derive modules from")
	}
	prompt := fmt.Sprintf("Expand this course architecture into detailed modules with learning outcomes:\n%s",
		compactJSON(map[string]any(arch)))
	parsed, err := a.structured(ctx, prompt, modulesSchema)
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"modules": parsed["modules"]},
		map[string]float64{"completeness": 0.88, "accuracy": 0.86, "relevance": 0.9}, nil
}

func (a *Agent) designPathway(ctx context.Context, view state.View, _ domain.TaskPayload) (map[string]any, map[string]float64, error) {
	prompt := fmt.Sprintf("Design the learning pathway through this course, ordering modules and naming prerequisites:\n%s",
		compactJSON(map[string]any(view.Architecture())))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"pathway": {"type": "array", "items": {"type": "object"}}},
		"required": ["pathway"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"pathway": parsed["pathway"]},
		map[string]float64{"completeness": 0.85, "relevance": 0.88}, nil
}

func (a *Agent) planMilestones(ctx context.Context, view state.View, task domain.TaskPayload) (map[string]any, map[string]float64, error) {
	if err := requireFields("architect.planMilestones", task, "duration"); err != nil {
		return nil, nil, err
	}
	prompt := fmt.Sprintf("Plan project milestones for a course lasting %v, given the architecture:\n%s",
		task.Field("duration"), compactJSON(map[string]any(view.Architecture())))
	parsed, err := a.structured(ctx, prompt, json.RawMessage(`{
		"type": "object",
		"properties": {"milestones": {"type": "array", "items": {"type": "object"}}},
		"required": ["milestones"]
	}`))
	if err != nil {
		return nil, nil, err
	}
	return map[string]any{"milestones": parsed["milestones"]},
		map[string]float64{"completeness": 0.87, "accuracy": 0.85}, nil
}

func (a *Agent) requestObjectiveValidation(view state.View, env domain.ResultEnvelope) []domain.AgentMessage {
	arch, _ := env.ContentField("architecture").(map[string]any)
	msg := state.NewMessage(a.role, domain.RoleTheorist, domain.KindCollaboration, domain.TaskPayload{
		RequestType: "validate_learning_objectives",
		Fields:      map[string]any{"architecture": arch},
	})
	msg.RequiresResponse = true
	return []domain.AgentMessage{msg}
}

func (a *Agent) adjustStructure(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Adjust the course structure %s according to this feedback:\n%s",
			compactJSON(map[string]any(view.Architecture())), compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "adjusted", "proposal": res.Text}, nil
}

func (a *Agent) optimizeTiming(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Optimize module timing for the course %q given these constraints:\n%s",
			view.Requirements().Topic(), compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "optimized", "timing": res.Text}, nil
}

func (a *Agent) addResources(ctx context.Context, view state.View, msg domain.AgentMessage) (map[string]any, error) {
	res, err := a.caller.Generate(ctx, router.GenerateRequest{
		SystemPrompt: a.system,
		Prompt: fmt.Sprintf("Recommend structural resource slots for this request:\n%s",
			compactJSON(msg.Content.Fields)),
		Capabilities: a.capabilities, Tier: a.tier,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "added", "resources": res.Text}, nil
}
