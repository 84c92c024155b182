package export

import (
	"bytes"
	"fmt"
	"html/template"
)

// Export renders the report in the requested format.
func Export(report Report, format Format) (*Result, error) {
	html, err := RenderReportHTML(report)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatPDF:
		return exportPDF(html, report.Name)
	case FormatDOCX:
		return exportDOCX(html, report.Name)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

var reportTemplate = template.Must(template.New("report").Parse(reportTemplateHTML))

// RenderReportHTML renders the report template.
func RenderReportHTML(report Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}} Compliance Report</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
    th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
    th { background: #f5f5f5; }
    .empty { color: #666; font-style: italic; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  <div class="meta">
    PWSID {{.PWSID}} | Population served: {{.Population}} | Primary source: {{.PrimarySource}}
    | Active violations: {{.ActiveViolations}}
    | Generated {{.GeneratedAt.Format "Jan 2, 2006 15:04 MST"}}
  </div>

  {{define "bucket"}}
  {{if .}}
  <table>
    <thead><tr><th>Violation</th><th>Code</th><th>Contaminant</th><th>Period</th><th>Status</th></tr></thead>
    <tbody>
    {{range .}}<tr><td>{{.Name}}</td><td>{{.Code}}</td><td>{{.Contaminant}}</td><td>{{.Period}}</td><td>{{.Status}}</td></tr>
    {{end}}
    </tbody>
  </table>
  {{else}}<p class="empty">None on record.</p>{{end}}
  {{end}}

  <h2>Pending Violations</h2>
  {{template "bucket" .Pending}}

  <h2>Active Violations</h2>
  {{template "bucket" .Active}}

  <h2>Resolved Violations</h2>
  {{template "bucket" .Resolved}}
</body>
</html>`
