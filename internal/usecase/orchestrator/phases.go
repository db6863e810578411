package orchestrator

import (
	"context"
	"fmt"

	"coursecraft/internal/domain"
	"coursecraft/internal/usecase/state"
)

// minMaterials is the minimum number of successful material tasks before a
// run is considered below its viable output.
const minMaterials = 2

func (e *Engine) phaseInitialization(ctx context.Context, s *state.DesignState) error {
	req := s.Requirements()
	if len(req) == 0 || req.Topic() == "" {
		return domain.NewDomainError("orchestrator.initialization", domain.ErrInvalidInput,
			"course requirements must include a topic")
	}

	// Announce the run to every agent; the broadcast stays pending until
	// each role next executes.
	s.AddMessage(state.NewMessage(domain.RoleOrchestrator, "", domain.KindBroadcast, domain.TaskPayload{
		Fields: map[string]any{
			"event":      "workflow_started",
			"topic":      req.Topic(),
			"session_id": s.SessionID(),
		},
	}))

	cp := s.Checkpoint()
	e.saveCheckpoint(ctx, s, cp)
	return nil
}

func (e *Engine) phaseTheory(ctx context.Context, s *state.DesignState) error {
	envs, err := e.dispatch(ctx, s, domain.RoleTheorist,
		domain.TaskPayload{Kind: domain.TaskDevelopFramework})
	if err != nil {
		return err
	}

	fw, ok := lastContent(envs, "framework").(map[string]any)
	if !ok {
		return domain.NewDomainError("orchestrator.theory", domain.ErrParseFailed,
			"theorist produced no framework")
	}
	s.SetFramework(fw)
	s.SetQualityScore("framework", lastScore(envs, "framework"))
	return nil
}

func (e *Engine) phaseArchitecture(ctx context.Context, s *state.DesignState) error {
	envs, err := e.dispatch(ctx, s, domain.RoleArchitect,
		domain.TaskPayload{Kind: domain.TaskDesignStructure})
	if err != nil {
		return err
	}
	arch, ok := lastContent(envs, "architecture").(map[string]any)
	if !ok {
		return domain.NewDomainError("orchestrator.architecture", domain.ErrParseFailed,
			"architect produced no architecture")
	}
	s.SetArchitecture(arch)
	s.SetQualityScore("architecture", lastScore(envs, "architecture"))

	// The structure request may have spawned a validation ask for the
	// theorist; answer it before building on the structure.
	e.drainCollaborations(ctx, s)

	modEnvs, err := e.dispatch(ctx, s, domain.RoleArchitect,
		domain.TaskPayload{Kind: domain.TaskCreateModules})
	if err != nil {
		return err
	}
	if mods := lastContent(modEnvs, "modules"); mods != nil {
		detailed := s.Architecture()
		detailed["modules"] = mods
		s.SetArchitecture(detailed)
	}
	return nil
}

func (e *Engine) phaseContent(ctx context.Context, s *state.DesignState) error {
	modules := s.Architecture().Modules()
	if len(modules) == 0 {
		// Nothing structured to fill; design one module from the raw
		// requirements so the run still produces content.
		modules = []map[string]any{{"title": s.Requirements().Topic()}}
	}

	// A review iteration regenerates content from scratch.
	s.SetContentModules(nil)

	var total float64
	for _, module := range modules {
		envs, err := e.dispatch(ctx, s, domain.RoleContentDesigner, domain.TaskPayload{
			Kind:   domain.TaskCreateContent,
			Fields: map[string]any{"module": module},
		})
		if err != nil {
			return err
		}
		content, ok := lastContent(envs, "module_content").(map[string]any)
		if !ok {
			return domain.NewDomainError("orchestrator.content", domain.ErrParseFailed,
				fmt.Sprintf("no content for module %v", module["title"]))
		}
		s.AddContentModule(content)
		total += lastScore(envs, "module_content")
	}

	s.SetQualityScore("content", total/float64(len(modules)))
	return nil
}

func (e *Engine) phaseAssessment(ctx context.Context, s *state.DesignState) error {
	envs, err := e.dispatch(ctx, s, domain.RoleAssessmentExp,
		domain.TaskPayload{Kind: domain.TaskDesignStrategy})
	if err != nil {
		return err
	}
	assess, ok := lastContent(envs, "assessment").(map[string]any)
	if !ok {
		return domain.NewDomainError("orchestrator.assessment", domain.ErrParseFailed,
			"assessment expert produced no strategy")
	}
	s.SetAssessment(assess)
	s.SetQualityScore("assessment", lastScore(envs, "assessment"))
	return nil
}

// MaterialOutcome summarizes the material-production phase.
type MaterialOutcome struct {
	Attempted int
	Succeeded int
	Failed    []domain.TaskKind
}

// phaseMaterials attempts the four fixed material tasks in order. All four
// are tried even if early ones fail; the outcome is judged over the whole
// set. Zero successes is fatal for the run.
func (e *Engine) phaseMaterials(ctx context.Context, s *state.DesignState) (MaterialOutcome, error) {
	kinds := domain.MaterialTaskKinds()
	outcome := MaterialOutcome{Attempted: len(kinds)}
	var total float64

	for _, kind := range kinds {
		envs, err := e.dispatch(ctx, s, domain.RoleMaterialCreator, domain.TaskPayload{Kind: kind})
		if err != nil {
			outcome.Failed = append(outcome.Failed, kind)
			e.logger.Warn("material task failed", "task", kind, "error", err)
			continue
		}
		material, ok := lastContent(envs, "material").(map[string]any)
		if !ok {
			outcome.Failed = append(outcome.Failed, kind)
			continue
		}
		s.AddMaterial(material)
		outcome.Succeeded++
		total += lastScore(envs, "material")
	}

	switch {
	case outcome.Succeeded == 0:
		return outcome, domain.NewDomainError("orchestrator.materials", domain.ErrNoMaterials,
			fmt.Sprintf("all %d material tasks failed", outcome.Attempted))
	case outcome.Succeeded < minMaterials:
		s.AddWarning("material production below minimum: %d of %d tasks succeeded",
			outcome.Succeeded, outcome.Attempted)
	case outcome.Succeeded < outcome.Attempted:
		s.AddWarning("material production incomplete: %d of %d tasks succeeded",
			outcome.Succeeded, outcome.Attempted)
	}

	s.SetQualityScore("materials", total/float64(outcome.Succeeded))
	return outcome, nil
}

func (e *Engine) phaseReview(ctx context.Context, s *state.DesignState) error {
	iteration := s.IncrementIteration()
	e.logger.Info("review iteration", "iteration", iteration, "session", s.SessionID())

	assessment := e.assessComponents(s)
	for component, score := range assessment.Components {
		s.SetQualityScore(component, score)
	}

	for _, imp := range improvements(assessment) {
		msg := state.NewMessage(domain.RoleOrchestrator, imp.Role, domain.KindCollaboration, domain.TaskPayload{
			RequestType: "improve",
			Fields: map[string]any{
				"component":     imp.Component,
				"current_score": imp.CurrentScore,
				"target_score":  imp.TargetScore,
				"priority":      imp.Priority,
				"feedback":      imp.Feedback,
			},
		})
		msg.RequiresResponse = true
		s.AddMessage(msg)
	}
	e.drainCollaborations(ctx, s)

	cp := s.Checkpoint()
	e.saveCheckpoint(ctx, s, cp)
	return nil
}

func (e *Engine) phaseFinalization(ctx context.Context, s *state.DesignState) (*domain.DeliverablesBundle, error) {
	final := finalQualityScore(s)
	s.SetQualityScore("final", final)

	e.captureUsage(s)
	bundle := compileBundle(s, string(e.cfg.Mode))

	cp := s.Checkpoint()
	e.saveCheckpoint(ctx, s, cp)

	// Exports and the quality report are advisory; neither can fail the run.
	for _, exp := range e.exporters {
		res, err := exp.Export(ctx, *bundle)
		if err != nil {
			e.logger.Warn("export failed", "format", exp.Format(), "error", err)
			continue
		}
		e.logger.Info("deliverables exported", "format", res.Format, "path", res.FilePath)
	}
	if e.checker != nil {
		report := e.checker.Score(*bundle)
		e.logger.Info("quality report",
			"overall", report.OverallScore, "issues", len(report.Issues))
	}

	return bundle, nil
}

// captureUsage copies the LLM layer's cumulative counters into the run
// state for the bundle metadata.
func (e *Engine) captureUsage(s *state.DesignState) {
	if e.llm == nil {
		return
	}
	snap := e.llm.Snapshot()
	var tokens int
	if byModel, ok := snap["tokens_by_model"].(map[string]int); ok {
		for _, n := range byModel {
			tokens += n
		}
	}
	var calls int
	if reqs, ok := snap["requests"].(int64); ok {
		calls = int(reqs)
	}
	haveTokens, haveCalls := s.Usage()
	s.AddUsage(tokens-haveTokens, calls-haveCalls)
}
