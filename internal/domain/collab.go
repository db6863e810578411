package domain

import "context"

// ExportFormat names a deliverables export target.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportHTML ExportFormat = "html"
	ExportPDF  ExportFormat = "pdf"
	ExportDOCX ExportFormat = "docx"
)

// ExportResult describes one produced export artifact.
type ExportResult struct {
	Format   ExportFormat `json:"format"`
	FilePath string       `json:"file_path"`
}

// Exporter renders a deliverables bundle into one output format. Exports are
// fire-and-forget at finalization: an individual format failure never aborts
// the run.
type Exporter interface {
	Export(ctx context.Context, bundle DeliverablesBundle) (*ExportResult, error)
	Format() ExportFormat
}

// QualityReport is the quality checker's verdict over a compiled course.
type QualityReport struct {
	OverallScore   float64            `json:"overall_score"`
	Issues         []string           `json:"issues"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

// QualityChecker scores a compiled course. Consumed only for
// finalization-adjacent reporting, never by the workflow state machine.
type QualityChecker interface {
	Score(bundle DeliverablesBundle) QualityReport
}

// RunRecord summarizes one workflow run for the audit store.
type RunRecord struct {
	SessionID    string `json:"session_id"`
	Mode         string `json:"mode"`
	Status       string `json:"status"` // "running", "completed", "failed"
	Deliverables []byte `json:"deliverables,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RunStore persists run records, checkpoints, and model-call records for
// audit. Write-only from the engine's perspective; nothing is read back for
// control flow.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	SaveCheckpoint(ctx context.Context, sessionID string, cp Checkpoint) error
	SaveCallRecord(ctx context.Context, rec ModelCallRecord) error
	Close() error
}
