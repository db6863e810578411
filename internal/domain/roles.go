package domain

// AgentRole identifies a participant in the course-design workflow.
// Exactly one live agent exists per role per run.
type AgentRole string

const (
	RoleTheorist        AgentRole = "education_theorist"
	RoleArchitect       AgentRole = "course_architect"
	RoleContentDesigner AgentRole = "content_designer"
	RoleAssessmentExp   AgentRole = "assessment_expert"
	RoleMaterialCreator AgentRole = "material_creator"
	RoleOrchestrator    AgentRole = "orchestrator"
)

// SpecialistRoles lists the five agent roles the orchestrator dispatches to,
// in workflow order.
func SpecialistRoles() []AgentRole {
	return []AgentRole{
		RoleTheorist,
		RoleArchitect,
		RoleContentDesigner,
		RoleAssessmentExp,
		RoleMaterialCreator,
	}
}

// WorkflowPhase is one named stage of the course-design graph.
type WorkflowPhase string

const (
	PhaseInitialization     WorkflowPhase = "initialization"
	PhaseTheory             WorkflowPhase = "theoretical_foundation"
	PhaseArchitecture       WorkflowPhase = "architecture_design"
	PhaseContentCreation    WorkflowPhase = "content_creation"
	PhaseAssessmentDesign   WorkflowPhase = "assessment_design"
	PhaseMaterialProduction WorkflowPhase = "material_production"
	PhaseReviewIteration    WorkflowPhase = "review_iteration"
	PhaseFinalization       WorkflowPhase = "finalization"
)

// AgentStatusValue is the operational status recorded per agent in the run state.
type AgentStatusValue string

const (
	AgentIdle          AgentStatusValue = "idle"
	AgentProcessing    AgentStatusValue = "processing"
	AgentCollaborating AgentStatusValue = "collaborating"
	AgentError         AgentStatusValue = "error"
	AgentCompleted     AgentStatusValue = "completed"
)

// TaskKind is a closed, per-role identifier for a dispatchable agent task.
// Each role owns a static dispatch table keyed by TaskKind; kinds outside a
// role's table route to that role's generic consultation handler.
type TaskKind string

const (
	// Education theorist tasks.
	TaskAnalyzeRequirements TaskKind = "analyze_requirements"
	TaskDevelopFramework    TaskKind = "develop_framework"
	TaskValidatePedagogy    TaskKind = "validate_pedagogy"
	TaskSuggestTheories     TaskKind = "suggest_theories"

	// Course architect tasks.
	TaskDesignStructure TaskKind = "design_structure"
	TaskCreateModules   TaskKind = "create_modules"
	TaskDesignPathway   TaskKind = "design_pathway"
	TaskPlanMilestones  TaskKind = "plan_milestones"

	// Content designer tasks.
	TaskCreateContent    TaskKind = "create_content"
	TaskDesignActivities TaskKind = "design_activities"
	TaskCreateScenarios  TaskKind = "create_scenarios"
	TaskDevelopResources TaskKind = "develop_resources"

	// Assessment expert tasks.
	TaskDesignStrategy       TaskKind = "design_strategy"
	TaskCreateRubrics        TaskKind = "create_rubrics"
	TaskDesignPortfolio      TaskKind = "design_portfolio"
	TaskCreateFeedbackSystem TaskKind = "create_feedback_system"

	// Material creator tasks.
	TaskCreateWorksheets     TaskKind = "create_worksheets"
	TaskCreatePresentations  TaskKind = "create_presentations"
	TaskCreateTemplates      TaskKind = "create_templates"
	TaskCreateGuides         TaskKind = "create_guides"
	TaskCreateDigital        TaskKind = "create_digital"

	// Shared tasks.
	TaskImprove      TaskKind = "improve"
	TaskConsultation TaskKind = "consultation"
)

// MaterialTaskKinds is the fixed, ordered set of tasks the material
// production phase attempts. The order is load-bearing: all four are tried
// sequentially and the phase outcome is judged over the whole set.
func MaterialTaskKinds() []TaskKind {
	return []TaskKind{
		TaskCreateWorksheets,
		TaskCreateTemplates,
		TaskCreateGuides,
		TaskCreateDigital,
	}
}
