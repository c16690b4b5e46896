// Package report renders printable and shareable treatment reports.
package report

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/franckalain/cropguard/internal/projector"
)

// Title is used by both the printable page and share sheets
const Title = "CropGuard AI Treatment Report"

var printTemplate = template.Must(template.New("report").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>CropGuard AI - Treatment Report</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 20px; line-height: 1.6; }
    .header { text-align: center; margin-bottom: 30px; border-bottom: 2px solid #19ad50; padding-bottom: 10px; }
    .disease-info { background-color: #f8f9fa; padding: 15px; border-radius: 8px; margin-bottom: 20px; }
    .section { margin-bottom: 25px; }
    .section-title { color: #19ad50; font-size: 18px; font-weight: bold; margin-bottom: 10px; }
    ul { list-style-type: none; padding: 0; }
    li { padding: 5px 0; border-bottom: 1px solid #eee; }
    .footer { margin-top: 30px; text-align: center; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="header">
    <h1>🌱 CropGuard AI</h1>
    <h2>Plant Disease Treatment Report</h2>
  </div>

  <div class="disease-info">
    <h3>Disease: {{or .View.Disease "N/A"}}</h3>
    <p><strong>Confidence:</strong> {{or .View.ConfidenceLabel "N/A"}}</p>
    <p><strong>Severity:</strong> {{or .View.Severity "N/A"}}</p>
    <p><strong>Scanned on:</strong> {{or .View.Date "N/A"}}</p>
  </div>
{{template "section" (section "🏥 Treatment Recommendations" .View.Treatments "No treatment information available")}}
{{template "section" (section "💡 Prevention & Care Tips" .View.Tips "No tips available")}}
{{template "section" (section "📅 Care Schedule" .View.Schedule "No schedule available")}}
  <div class="footer">
    <p>Generated by CropGuard AI - Empowering farmers with AI technology</p>
    <p>Report generated on: {{.GeneratedAt}}</p>
  </div>
</body>
</html>
{{define "section"}}
  <div class="section">
    <h3 class="section-title">{{.Title}}</h3>
    <ul>
    {{- range .Items}}
      <li>• {{.}}</li>
    {{- else}}
      <li>{{.Empty}}</li>
    {{- end}}
    </ul>
  </div>
{{end}}`))

type sectionData struct {
	Title string
	Items []string
	Empty string
}

var funcs = template.FuncMap{
	"section": func(title string, items []string, empty string) sectionData {
		return sectionData{Title: title, Items: items, Empty: empty}
	},
}

// TimestampLayout formats the "generated on" footer
const TimestampLayout = "Jan 2, 2006, 3:04:05 PM"

// RenderHTML writes a printable report for v
func RenderHTML(w io.Writer, v projector.View, generatedAt time.Time) error {
	data := struct {
		View        projector.View
		GeneratedAt string
	}{
		View:        v,
		GeneratedAt: generatedAt.Format(TimestampLayout),
	}
	if err := printTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// ShareText is the message handed to share sheets and clipboards
func ShareText(v projector.View) string {
	disease := v.Disease
	if disease == "" {
		disease = "Plant Disease"
	}
	return fmt.Sprintf("🌱 %s\n\nDisease: %s\n\nGet detailed treatment recommendations and care tips with CropGuard AI!", Title, disease)
}
