package agents

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"coursecraft/internal/domain"
	"coursecraft/internal/usecase/state"
)

func TestArchitectRequestsObjectiveValidation(t *testing.T) {
	caller := &fakeCaller{structReply: map[string]any{
		"overview": "four-week arc",
		"modules":  []any{map[string]any{"title": "Week 1"}},
	}}
	a := NewArchitect(caller, slog.Default())
	s := testView()
	s.AddMessage(state.NewMessage(domain.RoleOrchestrator, domain.RoleArchitect, domain.KindRequest,
		domain.TaskPayload{Kind: domain.TaskDesignStructure}))

	envs, err := a.RunOnce(context.Background(), s)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(envs) != 1 {
		t.Fatalf("envelopes = %d", len(envs))
	}

	var collab *domain.AgentMessage
	for i, m := range envs[0].Outbox {
		if m.Kind == domain.KindCollaboration {
			collab = &envs[0].Outbox[i]
		}
	}
	if collab == nil {
		t.Fatal("no collaboration request in outbox")
	}
	if collab.Recipient != domain.RoleTheorist {
		t.Errorf("recipient = %q, want theorist", collab.Recipient)
	}
	if collab.Content.RequestType != "validate_learning_objectives" {
		t.Errorf("request type = %q", collab.Content.RequestType)
	}
	if !collab.RequiresResponse {
		t.Error("validation request should require a response")
	}
}

func TestArchitectCreateModulesRequiresArchitecture(t *testing.T) {
	caller := &fakeCaller{}
	a := NewArchitect(caller, slog.Default())

	_, err := a.ProcessTask(context.Background(), testView(), domain.TaskPayload{
		Kind: domain.TaskCreateModules,
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if caller.structCalls != 0 {
		t.Error("model called without an architecture")
	}
}

func TestMaterialCreatorTagsMaterialType(t *testing.T) {
	caller := &fakeCaller{structReply: map[string]any{
		"items": []any{map[string]any{"name": "worksheet 1"}},
	}}
	a := NewMaterialCreator(caller, slog.Default())

	for _, kind := range domain.MaterialTaskKinds() {
		env, err := a.ProcessTask(context.Background(), testView(), domain.TaskPayload{Kind: kind})
		if err != nil {
			t.Fatalf("ProcessTask(%s): %v", kind, err)
		}
		material, ok := env.ContentField("material").(map[string]any)
		if !ok {
			t.Fatalf("content = %v", env.Content)
		}
		if material["material_type"] == "" || material["material_type"] == nil {
			t.Errorf("%s: missing material_type", kind)
		}
	}
}

func TestContentDesignerRequiresModuleField(t *testing.T) {
	caller := &fakeCaller{}
	a := NewContentDesigner(caller, slog.Default())

	_, err := a.ProcessTask(context.Background(), testView(), domain.TaskPayload{
		Kind: domain.TaskCreateContent,
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestAssessmentExpertDesignStrategy(t *testing.T) {
	caller := &fakeCaller{structReply: map[string]any{
		"strategy": "portfolio-based",
		"tools":    []any{"rubric"},
	}}
	a := NewAssessmentExpert(caller, slog.Default())

	env, err := a.ProcessTask(context.Background(), testView(), domain.TaskPayload{
		Kind: domain.TaskDesignStrategy,
	})
	if err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	assess, ok := env.ContentField("assessment").(map[string]any)
	if !ok || assess["strategy"] != "portfolio-based" {
		t.Errorf("content = %v", env.Content)
	}
}

func TestEveryRoleHasClosedDispatchTable(t *testing.T) {
	caller := &fakeCaller{}
	logger := slog.Default()
	cases := []struct {
		agent *Agent
		kinds []domain.TaskKind
	}{
		{NewTheorist(caller, logger), []domain.TaskKind{
			domain.TaskAnalyzeRequirements, domain.TaskDevelopFramework,
			domain.TaskValidatePedagogy, domain.TaskSuggestTheories}},
		{NewArchitect(caller, logger), []domain.TaskKind{
			domain.TaskDesignStructure, domain.TaskCreateModules,
			domain.TaskDesignPathway, domain.TaskPlanMilestones}},
		{NewContentDesigner(caller, logger), []domain.TaskKind{
			domain.TaskCreateContent, domain.TaskDesignActivities,
			domain.TaskCreateScenarios, domain.TaskDevelopResources}},
		{NewAssessmentExpert(caller, logger), []domain.TaskKind{
			domain.TaskDesignStrategy, domain.TaskCreateRubrics,
			domain.TaskDesignPortfolio, domain.TaskCreateFeedbackSystem}},
		{NewMaterialCreator(caller, logger), []domain.TaskKind{
			domain.TaskCreateWorksheets, domain.TaskCreatePresentations,
			domain.TaskCreateTemplates, domain.TaskCreateGuides, domain.TaskCreateDigital}},
	}
	for _, tc := range cases {
		if len(tc.agent.handlers) != len(tc.kinds) {
			t.Errorf("%s: table size = %d, want %d", tc.agent.Role(), len(tc.agent.handlers), len(tc.kinds))
		}
		for _, k := range tc.kinds {
			if _, ok := tc.agent.handlers[k]; !ok {
				t.Errorf("%s: missing handler for %s", tc.agent.Role(), k)
			}
		}
	}
}
