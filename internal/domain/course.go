package domain

import "time"

// CourseRequirements captures the requested topic, audience, duration, and
// goals. Set once at workflow start and immutable afterward.
type CourseRequirements map[string]any

// Topic returns the requested course topic, or "".
func (r CourseRequirements) Topic() string {
	s, _ := r["topic"].(string)
	return s
}

// TheoreticalFramework is the education theorist's output: pedagogical
// theories, design principles, and learning objectives for the course.
type TheoreticalFramework map[string]any

// CourseArchitecture is the course architect's output: overview, module
// breakdown, project phases, and assessment checkpoints.
type CourseArchitecture map[string]any

// Modules returns the architecture's module list. Each entry is the
// structured module descriptor produced by the architect.
func (a CourseArchitecture) Modules() []map[string]any {
	raw, ok := a["modules"].([]any)
	if !ok {
		return nil
	}
	mods := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		if mm, ok := m.(map[string]any); ok {
			mods = append(mods, mm)
		}
	}
	return mods
}

// ContentModule is one designed unit of course content.
type ContentModule map[string]any

// AssessmentStrategy is the assessment expert's output.
type AssessmentStrategy map[string]any

// LearningMaterial is one produced teaching resource.
type LearningMaterial map[string]any

// QualityAssessment holds weighted per-component scores used to decide
// iterate-vs-finalize. Scores are in [0,1] and already weighted.
type QualityAssessment struct {
	Components map[string]float64 `json:"components"`
	AssessedAt time.Time          `json:"assessed_at"`
}

// Improvement is one review finding routed back to the responsible agent.
type Improvement struct {
	Role         AgentRole `json:"role"`
	Component    string    `json:"component"`
	CurrentScore float64   `json:"current_score"`
	TargetScore  float64   `json:"target_score"`
	Priority     string    `json:"priority"` // "high" or "medium"
	Feedback     string    `json:"feedback"`
}

// DeliverablesBundle is the compiled output of a completed run.
type DeliverablesBundle struct {
	CourseOverview BundleOverview  `json:"course_overview"`
	Content        BundleContent   `json:"content"`
	Assessment     BundleAssess    `json:"assessment"`
	Materials      BundleMaterials `json:"materials"`
	Metadata       BundleMetadata  `json:"metadata"`
}

// BundleOverview groups the design-level artifacts.
type BundleOverview struct {
	Requirements          CourseRequirements   `json:"requirements"`
	TheoreticalFoundation TheoreticalFramework `json:"theoretical_foundation"`
	Architecture          CourseArchitecture   `json:"architecture"`
}

// BundleContent groups the produced content modules.
type BundleContent struct {
	Modules      []ContentModule `json:"modules"`
	TotalModules int             `json:"total_modules"`
}

// BundleAssess groups the assessment strategy.
type BundleAssess struct {
	Strategy AssessmentStrategy `json:"strategy"`
	Tools    []string           `json:"tools"`
}

// BundleMaterials groups the produced learning materials.
type BundleMaterials struct {
	Resources      []LearningMaterial `json:"resources"`
	TotalResources int                `json:"total_resources"`
}

// BundleMetadata carries run-level audit figures.
type BundleMetadata struct {
	SessionID    string    `json:"session_id"`
	Iterations   int       `json:"iterations"`
	QualityScore float64   `json:"quality_score"`
	TotalTokens  int       `json:"total_tokens"`
	APICalls     int       `json:"api_calls"`
	CreatedAt    time.Time `json:"created_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Checkpoint is an immutable, timestamped snapshot of the design fields.
// Used for audit only; the current design has no rollback path.
type Checkpoint struct {
	ID             string               `json:"id"`
	Timestamp      time.Time            `json:"timestamp"`
	Phase          WorkflowPhase        `json:"phase"`
	Requirements   CourseRequirements   `json:"requirements"`
	Framework      TheoreticalFramework `json:"framework"`
	Architecture   CourseArchitecture   `json:"architecture"`
	Content        []ContentModule      `json:"content"`
	Assessment     AssessmentStrategy   `json:"assessment"`
	Materials      []LearningMaterial   `json:"materials"`
	QualityScores  map[string]float64   `json:"quality_scores"`
	IterationCount int                  `json:"iteration"`
}

// ErrorEntry is one record in the shared state's error log.
type ErrorEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Role      AgentRole      `json:"role"`
	Error     string         `json:"error"`
	Context   map[string]any `json:"context,omitempty"`
}
