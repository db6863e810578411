package orchestrator

import (
	"sort"
	"time"

	"coursecraft/internal/domain"
	"coursecraft/internal/usecase/state"
)

// Review weights over the five design components.
var reviewWeights = map[string]float64{
	"framework":    0.20,
	"architecture": 0.25,
	"content":      0.25,
	"assessment":   0.15,
	"materials":    0.15,
}

// Score credited to a component when its field is populated.
var presenceScores = map[string]float64{
	"framework":    0.90,
	"architecture": 0.85,
	"content":      0.88,
	"assessment":   0.87,
	"materials":    0.90,
}

// improvementThreshold marks components needing rework; below highPriority
// the finding is urgent.
const (
	improvementThreshold = 0.85
	highPriority         = 0.70
)

var componentOwners = map[string]domain.AgentRole{
	"framework":    domain.RoleTheorist,
	"architecture": domain.RoleArchitect,
	"content":      domain.RoleContentDesigner,
	"assessment":   domain.RoleAssessmentExp,
	"materials":    domain.RoleMaterialCreator,
}

// assessComponents scores each design component by presence.
func (e *Engine) assessComponents(s *state.DesignState) domain.QualityAssessment {
	populated := map[string]bool{
		"framework":    len(s.Framework()) > 0,
		"architecture": len(s.Architecture()) > 0,
		"content":      len(s.ContentModules()) > 0,
		"assessment":   len(s.Assessment()) > 0,
		"materials":    len(s.Materials()) > 0,
	}
	components := make(map[string]float64, len(reviewWeights))
	for name := range reviewWeights {
		if populated[name] {
			components[name] = presenceScores[name]
		} else {
			components[name] = 0
		}
	}
	return domain.QualityAssessment{Components: components, AssessedAt: time.Now()}
}

// improvements derives review findings for weak components, each routed to
// the role that owns the component. Sorted for deterministic dispatch order.
func improvements(qa domain.QualityAssessment) []domain.Improvement {
	names := make([]string, 0, len(qa.Components))
	for name := range qa.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []domain.Improvement
	for _, name := range names {
		score := qa.Components[name]
		if score >= improvementThreshold {
			continue
		}
		priority := "medium"
		if score < highPriority {
			priority = "high"
		}
		out = append(out, domain.Improvement{
			Role:         componentOwners[name],
			Component:    name,
			CurrentScore: score,
			TargetScore:  improvementThreshold,
			Priority:     priority,
			Feedback:     "component scored below the review threshold",
		})
	}
	return out
}

// shouldIterate decides the conditional edge after material production: a
// run at its iteration cap always finalizes; otherwise the mean recorded
// quality must reach the threshold.
func (e *Engine) shouldIterate(s *state.DesignState) bool {
	if s.IterationCount() >= e.cfg.MaxIterations {
		return false
	}
	scores := s.QualityScores()
	if len(scores) == 0 {
		return false
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return sum/float64(len(scores)) < e.cfg.QualityThreshold
}

// Final quality factors and weights.
var finalWeights = map[string]float64{
	"completeness": 0.25,
	"coherence":    0.20,
	"alignment":    0.25,
	"innovation":   0.15,
	"practicality": 0.15,
}

// finalQualityScore blends five deterministic heuristics over the finished
// design. Each factor depends only on which fields are populated and how
// many items they hold.
func finalQualityScore(s *state.DesignState) float64 {
	populated := 0
	for _, present := range []bool{
		len(s.Framework()) > 0,
		len(s.Architecture()) > 0,
		len(s.ContentModules()) > 0,
		len(s.Assessment()) > 0,
		len(s.Materials()) > 0,
	} {
		if present {
			populated++
		}
	}

	factors := map[string]float64{
		"completeness": float64(populated) / 5.0,
		"coherence":    0.70,
		"alignment":    0.60,
		"innovation":   0.75,
		"practicality": 0.80,
	}
	if len(s.Framework()) > 0 && len(s.Architecture()) > 0 {
		factors["coherence"] = 0.90
	}
	if len(s.Assessment()) > 0 {
		factors["alignment"] = 0.92
	}
	if len(s.ContentModules()) > 3 {
		factors["innovation"] = 0.88
	}
	if len(s.Materials()) > 5 {
		factors["practicality"] = 0.91
	}

	var total float64
	for name, weight := range finalWeights {
		total += weight * factors[name]
	}
	return total
}

// Phase weights for progress reporting. They sum to 1.0 over a straight
// full-course pass.
var phaseWeights = map[domain.WorkflowPhase]float64{
	domain.PhaseInitialization:     0.05,
	domain.PhaseTheory:             0.15,
	domain.PhaseArchitecture:       0.20,
	domain.PhaseContentCreation:    0.25,
	domain.PhaseAssessmentDesign:   0.15,
	domain.PhaseMaterialProduction: 0.15,
	domain.PhaseReviewIteration:    0.03,
	domain.PhaseFinalization:       0.02,
}

// progressPercent reports 0..100 given finished phases and the phase in
// flight (half-credited). Iteration loops revisit phases, so the value is
// capped rather than normalized.
func progressPercent(completed []domain.WorkflowPhase, current domain.WorkflowPhase) float64 {
	var sum float64
	for _, p := range completed {
		sum += phaseWeights[p]
	}
	sum += phaseWeights[current] * 0.5
	pct := sum * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// compileBundle assembles the deliverables from the finished state.
func compileBundle(s *state.DesignState, mode string) *domain.DeliverablesBundle {
	modules := s.ContentModules()
	materials := s.Materials()
	assessment := s.Assessment()

	var tools []string
	if raw, ok := assessment["tools"].([]any); ok {
		for _, t := range raw {
			if str, ok := t.(string); ok {
				tools = append(tools, str)
			}
		}
	}

	tokens, calls := s.Usage()
	return &domain.DeliverablesBundle{
		CourseOverview: domain.BundleOverview{
			Requirements:          s.Requirements(),
			TheoreticalFoundation: s.Framework(),
			Architecture:          s.Architecture(),
		},
		Content: domain.BundleContent{
			Modules:      modules,
			TotalModules: len(modules),
		},
		Assessment: domain.BundleAssess{
			Strategy: assessment,
			Tools:    tools,
		},
		Materials: domain.BundleMaterials{
			Resources:      materials,
			TotalResources: len(materials),
		},
		Metadata: domain.BundleMetadata{
			SessionID:    s.SessionID(),
			Iterations:   s.IterationCount(),
			QualityScore: s.QualityScores()["final"],
			TotalTokens:  tokens,
			APICalls:     calls,
			CreatedAt:    s.CreatedAt(),
			CompletedAt:  time.Now(),
		},
	}
}
