// Package export renders completed course deliverables to files.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"coursecraft/internal/domain"
)

// JSONExporter writes the full deliverables bundle as pretty-printed JSON.
type JSONExporter struct {
	dir    string
	logger *slog.Logger
}

// NewJSONExporter creates an exporter writing into dir.
func NewJSONExporter(dir string, logger *slog.Logger) *JSONExporter {
	return &JSONExporter{dir: dir, logger: logger}
}

// Format implements domain.Exporter.
func (e *JSONExporter) Format() domain.ExportFormat { return domain.ExportJSON }

// Export implements domain.Exporter.
func (e *JSONExporter) Export(ctx context.Context, bundle domain.DeliverablesBundle) (*domain.ExportResult, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}

	path := filepath.Join(e.dir, fmt.Sprintf("course_%s.json", bundle.Metadata.SessionID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write export: %w", err)
	}

	e.logger.Info("deliverables exported", "format", "json", "path", path)
	return &domain.ExportResult{Format: domain.ExportJSON, FilePath: path}, nil
}

var _ domain.Exporter = (*JSONExporter)(nil)
