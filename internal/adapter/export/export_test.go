package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"coursecraft/internal/domain"
)

func sampleBundle() domain.DeliverablesBundle {
	return domain.DeliverablesBundle{
		CourseOverview: domain.BundleOverview{
			Requirements: domain.CourseRequirements{"topic": "AI Ethics"},
		},
		Content: domain.BundleContent{
			Modules:      []domain.ContentModule{{"title": "Module 1"}},
			TotalModules: 1,
		},
		Materials: domain.BundleMaterials{
			Resources:      []domain.LearningMaterial{{"type": "worksheet"}},
			TotalResources: 1,
		},
		Metadata: domain.BundleMetadata{
			SessionID:    "sess-42",
			Iterations:   1,
			QualityScore: 0.91,
			CreatedAt:    time.Now(),
		},
	}
}

func TestJSONExport(t *testing.T) {
	dir := t.TempDir()
	e := NewJSONExporter(dir, slog.Default())

	res, err := e.Export(context.Background(), sampleBundle())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Format != domain.ExportJSON {
		t.Errorf("format = %q", res.Format)
	}

	data, err := os.ReadFile(res.FilePath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var round domain.DeliverablesBundle
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if round.Metadata.SessionID != "sess-42" {
		t.Errorf("session = %q", round.Metadata.SessionID)
	}
	if round.Content.TotalModules != 1 {
		t.Errorf("modules = %d", round.Content.TotalModules)
	}
}

func TestHTMLExport(t *testing.T) {
	dir := t.TempDir()
	e := NewHTMLExporter(dir, slog.Default())

	res, err := e.Export(context.Background(), sampleBundle())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(res.FilePath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	html := string(data)
	if !strings.Contains(html, "AI Ethics") {
		t.Error("topic missing from HTML")
	}
	if !strings.Contains(html, "sess-42") {
		t.Error("session id missing from HTML")
	}
}
