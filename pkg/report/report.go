// Package report renders grading results: JSON for machines, Markdown and
// HTML for people, and a styled terminal summary.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ormasoftchile/webgrade/pkg/runner"
	"github.com/ormasoftchile/webgrade/pkg/score"
)

// WriteJSON encodes the run result.
func WriteJSON(w io.Writer, res *runner.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// ReadJSON decodes a report written by WriteJSON.
func ReadJSON(r io.Reader) (*runner.Result, error) {
	var res runner.Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &res, nil
}

// LoadFile reads a JSON report.
func LoadFile(path string) (*runner.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// Markdown renders the result as a Markdown document with one table row per
// check in run order.
func Markdown(res *runner.Result) string {
	var b strings.Builder

	title := fmt.Sprintf("Assignment %d", res.Assignment)
	if res.Title != "" {
		title += ": " + res.Title
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if res.BaseURL != "" {
		fmt.Fprintf(&b, "Graded `%s`", res.BaseURL)
		if !res.StartedAt.IsZero() {
			fmt.Fprintf(&b, " on %s", res.StartedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
		b.WriteString(".\n\n")
	}

	s := res.Summary
	fmt.Fprintf(&b, "**Score: %g / %g (%.2f%%)**, %d passed, %d not passed", s.TotalEarned, s.TotalPossible, s.Percentage, s.PassedCount, s.FailedCount)
	if res.Strict {
		fmt.Fprintf(&b, ", strict run %s", res.Status)
	}
	b.WriteString("\n\n")

	b.WriteString("| # | Criterion | Points | Result | Details |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i, r := range res.Results {
		fmt.Fprintf(&b, "| %d | %s | %g / %g | %s | %s |\n",
			i+1, cell(r.Criterion), r.Points.Earned, r.Points.Possible, verdict(r), cell(r.Details))
	}

	if res.Strict && len(res.Shortfalls) > 0 {
		b.WriteString("\n## Shortfalls\n\n")
		for _, r := range res.Shortfalls {
			fmt.Fprintf(&b, "- %s: %g of %g\n", cell(r.Criterion), r.Points.Earned, r.Points.Possible)
		}
	}
	return b.String()
}

func verdict(r score.CheckResult) string {
	switch {
	case r.Passed:
		return "pass"
	case r.Points.Earned > 0:
		return "partial"
	}
	return "fail"
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func cell(s string) string { return cellEscaper.Replace(s) }

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

var page = template.Must(template.New("report").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 72rem; padding: 0 1rem; color: #222; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: .4rem .6rem; text-align: left; vertical-align: top; }
th { background: #f3f3f3; }
tr:nth-child(even) td { background: #fafafa; }
code { background: #f3f3f3; padding: 0 .2rem; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// WriteHTML renders the Markdown report to a standalone HTML page.
func WriteHTML(w io.Writer, res *runner.Result) error {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(res)), &body); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return page.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: fmt.Sprintf("Assignment %d report", res.Assignment),
		Body:  template.HTML(body.String()),
	})
}

// Paths are the files Save wrote.
type Paths struct {
	JSON string `json:"json"`
	HTML string `json:"html"`
}

// Save writes the JSON and HTML reports into dir, named after the assignment
// and run ID.
func Save(dir string, res *runner.Result) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create report dir: %w", err)
	}
	stem := filepath.Join(dir, fmt.Sprintf("assignment-%d-%s", res.Assignment, res.RunID))
	paths := Paths{JSON: stem + ".json", HTML: stem + ".html"}

	write := func(path string, render func(io.Writer, *runner.Result) error) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if err := render(f, res); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	if err := write(paths.JSON, WriteJSON); err != nil {
		return Paths{}, err
	}
	if err := write(paths.HTML, WriteHTML); err != nil {
		return Paths{}, err
	}
	return paths, nil
}
