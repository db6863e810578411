package export

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"

	"coursecraft/internal/domain"
)

// HTMLExporter renders a human-readable course summary page.
type HTMLExporter struct {
	dir    string
	logger *slog.Logger
	tmpl   *template.Template
}

// NewHTMLExporter creates an exporter writing into dir.
func NewHTMLExporter(dir string, logger *slog.Logger) *HTMLExporter {
	return &HTMLExporter{
		dir:    dir,
		logger: logger,
		tmpl:   template.Must(template.New("course").Parse(courseTemplate)),
	}
}

// Format implements domain.Exporter.
func (e *HTMLExporter) Format() domain.ExportFormat { return domain.ExportHTML }

// Export implements domain.Exporter.
func (e *HTMLExporter) Export(ctx context.Context, bundle domain.DeliverablesBundle) (*domain.ExportResult, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(e.dir, fmt.Sprintf("course_%s.html", bundle.Metadata.SessionID))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := e.tmpl.Execute(f, bundle); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	e.logger.Info("deliverables exported", "format", "html", "path", path)
	return &domain.ExportResult{Format: domain.ExportHTML, FilePath: path}, nil
}

var _ domain.Exporter = (*HTMLExporter)(nil)

const courseTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Course {{.Metadata.SessionID}}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
h1, h2 { color: #2c3e50; }
.meta { color: #7f8c8d; font-size: 0.9em; }
.module { border: 1px solid #ddd; border-radius: 4px; padding: 1em; margin: 0.5em 0; }
</style>
</head>
<body>
<h1>Course Design: {{.CourseOverview.Requirements.Topic}}</h1>
<p class="meta">
Session {{.Metadata.SessionID}} &middot;
{{.Metadata.Iterations}} iteration(s) &middot;
quality {{printf "%.2f" .Metadata.QualityScore}} &middot;
{{.Metadata.TotalTokens}} tokens / {{.Metadata.APICalls}} API calls
</p>

<h2>Content ({{.Content.TotalModules}} modules)</h2>
{{range .Content.Modules}}<div class="module"><pre>{{printf "%v" .}}</pre></div>{{end}}

<h2>Assessment</h2>
<div class="module"><pre>{{printf "%v" .Assessment.Strategy}}</pre></div>

<h2>Materials ({{.Materials.TotalResources}} resources)</h2>
{{range .Materials.Resources}}<div class="module"><pre>{{printf "%v" .}}</pre></div>{{end}}
</body>
</html>
`
