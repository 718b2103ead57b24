// Package reporting renders the run summary into the report artifact.
package reporting

import (
	"embed"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/movefuzz/fuzz-acceptor/results"
)

//go:embed templates/*.md.tmpl
var templateFS embed.FS

const reportTemplate = "report.md.tmpl"

type reportRow struct {
	Name string
	Mark string
	Time string
}

type reportData struct {
	Timestamp string
	PackageID string
	Overall   string
	Rows      []reportRow
}

// WriteMarkdown renders the markdown report for summary into path. Rows
// follow the summary's case order.
func WriteMarkdown(path string, summary *results.Summary) error {
	tmpl, err := template.ParseFS(templateFS, "templates/"+reportTemplate)
	if err != nil {
		return fmt.Errorf("parsing report template: %w", err)
	}

	data := reportData{
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		PackageID: summary.PackageID,
		Overall:   overall(summary.AllPassed),
		Rows:      make([]reportRow, 0, len(summary.Results)),
	}
	for i := range summary.Results {
		r := &summary.Results[i]
		data.Rows = append(data.Rows, reportRow{
			Name: r.Name,
			Mark: mark(r.Passed()),
			Time: fmt.Sprintf("%.1fs", r.Duration.Seconds()),
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

func overall(allPassed bool) string {
	if allPassed {
		return "PASSED"
	}
	return "FAILED"
}

func mark(passed bool) string {
	if passed {
		return "✓"
	}
	return "✗"
}
