// Package state holds the shared course-design record for one workflow run.
//
// A DesignState has exactly one writer: the workflow engine that created it.
// Agents receive the read-only View and hand results back as envelopes; the
// engine applies them. This keeps the record consistent even if agent calls
// are later parallelized.
package state

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"coursecraft/internal/domain"
)

// View is the read-only surface agents see. All returned collections are
// copies; mutating them does not touch the run state.
type View interface {
	SessionID() string
	CurrentPhase() domain.WorkflowPhase
	Requirements() domain.CourseRequirements
	Framework() domain.TheoreticalFramework
	Architecture() domain.CourseArchitecture
	ContentModules() []domain.ContentModule
	Assessment() domain.AssessmentStrategy
	Materials() []domain.LearningMaterial
	QualityScores() map[string]float64
	IterationCount() int
	MessagesFor(role domain.AgentRole) []domain.AgentMessage
}

// DesignState is the single mutable record of an in-progress course design.
type DesignState struct {
	mu sync.RWMutex

	sessionID string
	createdAt time.Time
	updatedAt time.Time

	currentPhase domain.WorkflowPhase
	phaseHistory []domain.WorkflowPhase

	requirements   domain.CourseRequirements
	framework      domain.TheoreticalFramework
	architecture   domain.CourseArchitecture
	contentModules []domain.ContentModule
	assessment     domain.AssessmentStrategy
	materials      []domain.LearningMaterial

	agentStatus map[domain.AgentRole]domain.AgentStatusValue

	pending []domain.AgentMessage
	history []domain.AgentMessage

	qualityScores map[string]float64
	iterations    int
	checkpoints   []domain.Checkpoint
	errorLog      []domain.ErrorEntry
	warnings      []string

	totalTokens int
	apiCalls    int
}

// New creates the state for one run. Requirements are fixed for the life of
// the run; every phase reads them.
func New(requirements domain.CourseRequirements) *DesignState {
	now := time.Now()
	s := &DesignState{
		sessionID:     ulid.Make().String(),
		createdAt:     now,
		updatedAt:     now,
		currentPhase:  domain.PhaseInitialization,
		requirements:  maps.Clone(requirements),
		agentStatus:   make(map[domain.AgentRole]domain.AgentStatusValue),
		qualityScores: make(map[string]float64),
	}
	for _, role := range domain.SpecialistRoles() {
		s.agentStatus[role] = domain.AgentIdle
	}
	return s
}

func (s *DesignState) SessionID() string { return s.sessionID }

func (s *DesignState) CreatedAt() time.Time { return s.createdAt }

func (s *DesignState) CurrentPhase() domain.WorkflowPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPhase
}

// PhaseHistory returns the append-only visit log: one entry per phase
// entered, in order, revisits included.
func (s *DesignState) PhaseHistory() []domain.WorkflowPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.phaseHistory)
}

// TransitionPhase makes next current and records the visit. Edge legality
// lives in the workflow graph, not here.
func (s *DesignState) TransitionPhase(next domain.WorkflowPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPhase = next
	s.phaseHistory = append(s.phaseHistory, next)
	s.updatedAt = time.Now()
}

func (s *DesignState) Requirements() domain.CourseRequirements {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.requirements)
}

func (s *DesignState) Framework() domain.TheoreticalFramework {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.framework)
}

func (s *DesignState) SetFramework(fw domain.TheoreticalFramework) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framework = maps.Clone(fw)
	s.updatedAt = time.Now()
}

func (s *DesignState) Architecture() domain.CourseArchitecture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.architecture)
}

func (s *DesignState) SetArchitecture(arch domain.CourseArchitecture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.architecture = maps.Clone(arch)
	s.updatedAt = time.Now()
}

func (s *DesignState) ContentModules() []domain.ContentModule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.contentModules)
}

func (s *DesignState) AddContentModule(m domain.ContentModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentModules = append(s.contentModules, maps.Clone(m))
	s.updatedAt = time.Now()
}

// SetContentModules replaces the module list wholesale, used when a review
// iteration regenerates content.
func (s *DesignState) SetContentModules(mods []domain.ContentModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentModules = slices.Clone(mods)
	s.updatedAt = time.Now()
}

func (s *DesignState) Assessment() domain.AssessmentStrategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.assessment)
}

func (s *DesignState) SetAssessment(a domain.AssessmentStrategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessment = maps.Clone(a)
	s.updatedAt = time.Now()
}

func (s *DesignState) Materials() []domain.LearningMaterial {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.materials)
}

func (s *DesignState) AddMaterial(m domain.LearningMaterial) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials = append(s.materials, maps.Clone(m))
	s.updatedAt = time.Now()
}

func (s *DesignState) QualityScores() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.qualityScores)
}

func (s *DesignState) SetQualityScore(name string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qualityScores[name] = score
	s.updatedAt = time.Now()
}

func (s *DesignState) IterationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iterations
}

// IncrementIteration bumps the review-iteration counter and returns the new
// count. Only the review phase calls this.
func (s *DesignState) IncrementIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iterations++
	s.updatedAt = time.Now()
	return s.iterations
}

func (s *DesignState) AgentStatus(role domain.AgentRole) domain.AgentStatusValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentStatus[role]
}

func (s *DesignState) SetAgentStatus(role domain.AgentRole, status domain.AgentStatusValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentStatus[role] = status
	s.updatedAt = time.Now()
}

// AddUsage accumulates the run's token and call counters.
func (s *DesignState) AddUsage(tokens, calls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTokens += tokens
	s.apiCalls += calls
}

// Usage returns the cumulative token and call counts.
func (s *DesignState) Usage() (tokens, calls int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalTokens, s.apiCalls
}

// Checkpoint snapshots the design fields, phase, quality scores, and
// iteration count as an immutable audit record and returns it.
func (s *DesignState) Checkpoint() domain.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := domain.Checkpoint{
		ID:             ulid.Make().String(),
		Timestamp:      time.Now(),
		Phase:          s.currentPhase,
		Requirements:   maps.Clone(s.requirements),
		Framework:      maps.Clone(s.framework),
		Architecture:   maps.Clone(s.architecture),
		Content:        slices.Clone(s.contentModules),
		Assessment:     maps.Clone(s.assessment),
		Materials:      slices.Clone(s.materials),
		QualityScores:  maps.Clone(s.qualityScores),
		IterationCount: s.iterations,
	}
	s.checkpoints = append(s.checkpoints, cp)
	return cp
}

func (s *DesignState) Checkpoints() []domain.Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.checkpoints)
}

// RecordError appends to the error log. It never fails; a nil err records
// the context alone.
func (s *DesignState) RecordError(role domain.AgentRole, err error, context map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := domain.ErrorEntry{
		Timestamp: time.Now(),
		Role:      role,
		Context:   maps.Clone(context),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.errorLog = append(s.errorLog, entry)
}

func (s *DesignState) Errors() []domain.ErrorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.errorLog)
}

// AddWarning records a non-fatal run condition, such as a material phase
// finishing below its minimum output.
func (s *DesignState) AddWarning(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *DesignState) Warnings() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.warnings)
}
