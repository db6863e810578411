package orchestrator

import (
	"fmt"

	"coursecraft/internal/domain"
)

// HeuristicChecker is a local quality checker over a compiled bundle. It
// inspects structure only, never content: category scores come from field
// presence and item counts.
type HeuristicChecker struct{}

var _ domain.QualityChecker = HeuristicChecker{}

func (HeuristicChecker) Score(bundle domain.DeliverablesBundle) domain.QualityReport {
	report := domain.QualityReport{
		CategoryScores: make(map[string]float64, 4),
	}

	report.CategoryScores["overview"] = presenceScore(
		len(bundle.CourseOverview.Requirements) > 0,
		len(bundle.CourseOverview.TheoreticalFoundation) > 0,
		len(bundle.CourseOverview.Architecture) > 0,
	)
	if len(bundle.CourseOverview.TheoreticalFoundation) == 0 {
		report.Issues = append(report.Issues, "missing theoretical foundation")
	}

	switch {
	case bundle.Content.TotalModules == 0:
		report.CategoryScores["content"] = 0
		report.Issues = append(report.Issues, "course has no content modules")
	case bundle.Content.TotalModules < 3:
		report.CategoryScores["content"] = 0.6
		report.Issues = append(report.Issues,
			fmt.Sprintf("only %d content modules", bundle.Content.TotalModules))
	default:
		report.CategoryScores["content"] = 0.9
	}

	if len(bundle.Assessment.Strategy) == 0 {
		report.CategoryScores["assessment"] = 0
		report.Issues = append(report.Issues, "missing assessment strategy")
	} else {
		report.CategoryScores["assessment"] = 0.85
	}

	switch {
	case bundle.Materials.TotalResources == 0:
		report.CategoryScores["materials"] = 0
		report.Issues = append(report.Issues, "no learning materials produced")
	case bundle.Materials.TotalResources < minMaterials:
		report.CategoryScores["materials"] = 0.5
		report.Issues = append(report.Issues, "learning materials below minimum")
	default:
		report.CategoryScores["materials"] = 0.88
	}

	var sum float64
	for _, s := range report.CategoryScores {
		sum += s
	}
	report.OverallScore = sum / float64(len(report.CategoryScores))
	return report
}

func presenceScore(present ...bool) float64 {
	var n int
	for _, p := range present {
		if p {
			n++
		}
	}
	return float64(n) / float64(len(present))
}
