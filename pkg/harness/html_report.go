package harness

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// tagGroup holds scenarios sharing the same tag combination.
type tagGroup struct {
	TagLabel  string           // e.g. "@smoke, @lists" or "Untagged"
	Count     int              // number of scenarios in this tag group
	Duration  time.Duration    // sum of scenario durations in this tag group
	Scenarios []ScenarioReport // scenarios in this tag group
}

// statusSection holds a top-level section (one per status) with tag sub-groups.
type statusSection struct {
	Label     string
	CSSClass  string
	Count     int
	Duration  time.Duration
	TagGroups []tagGroup
}

// reportData is the view model passed to the HTML template.
type reportData struct {
	RunID         string
	Summary       ReporterSummary
	TotalDuration time.Duration
	ExecutedAt    time.Time
	Aborted       bool
	Sections      []statusSection
}

var sectionOrder = []struct {
	status Status
	label  string
}{
	{StatusErrored, "Errored Scenarios"},
	{StatusFailed, "Failed Scenarios"},
	{StatusCancelled, "Cancelled Scenarios"},
	{StatusSkipped, "Skipped Scenarios"},
	{StatusPassed, "Passed Scenarios"},
}

// sumDurations returns the total duration across a slice of scenarios.
func sumDurations(scenarios []ScenarioReport) time.Duration {
	var total time.Duration
	for _, s := range scenarios {
		total += s.Duration
	}
	return total
}

// buildReportData groups and sorts scenarios for the HTML report.
// Problem sections come first, passed scenarios last. Within each section,
// scenarios are grouped by their tag set.
func buildReportData(result RunResult) reportData {
	byStatus := make(map[Status][]ScenarioReport)
	for _, s := range result.Scenarios {
		byStatus[s.Status] = append(byStatus[s.Status], s)
	}

	var sections []statusSection
	for _, entry := range sectionOrder {
		scenarios := byStatus[entry.status]
		if len(scenarios) == 0 {
			continue
		}
		sections = append(sections, statusSection{
			Label:     entry.label,
			CSSClass:  string(entry.status),
			Count:     len(scenarios),
			Duration:  sumDurations(scenarios),
			TagGroups: groupByTags(scenarios),
		})
	}

	return reportData{
		RunID:         result.ID,
		Summary:       result.Summary,
		TotalDuration: result.Duration,
		ExecutedAt:    result.StartedAt,
		Aborted:       result.Aborted,
		Sections:      sections,
	}
}

// groupByTags groups scenarios by their sorted tag set.
// Scenarios with no tags go into an "Untagged" group shown last.
func groupByTags(scenarios []ScenarioReport) []tagGroup {
	groups := make(map[string][]ScenarioReport)
	for _, s := range scenarios {
		key := tagKey(s.Tags)
		groups[key] = append(groups[key], s)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]tagGroup, 0, len(keys))
	var untagged *tagGroup
	for _, k := range keys {
		scenarios := groups[k]
		tg := tagGroup{TagLabel: k, Count: len(scenarios), Duration: sumDurations(scenarios), Scenarios: scenarios}
		if k == "Untagged" {
			untagged = &tg
		} else {
			result = append(result, tg)
		}
	}
	if untagged != nil {
		result = append(result, *untagged)
	}
	return result
}

// tagKey builds a deterministic label from a scenario's tags.
func tagKey(tags []string) string {
	if len(tags) == 0 {
		return "Untagged"
	}
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}

// stepStatusClass returns the CSS class name for a step status.
func stepStatusClass(s StepStatus) string {
	return s.String()
}

// createReportFile creates path and its parent directory.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create report directory %q: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create report file %q: %w", path, err)
	}
	return f, nil
}

// GenerateHTMLReport writes a self-contained HTML report to the given path.
// The report includes every scenario with its steps, assertions, network
// events and console log, styled with inline CSS.
func GenerateHTMLReport(path string, result RunResult) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"statusClass": stepStatusClass,
		"summaryClass": func(s ReporterSummary) string {
			if s.ScenariosFailed+s.ScenariosErrored+s.ScenariosCancelled > 0 {
				return "has-failures"
			}
			return "all-passed"
		},
		"statusSymbol": func(s StepStatus) string {
			switch s {
			case StepPassed:
				return "\u2713" // ✓
			case StepFailed:
				return "\u2717" // ✗
			case StepSkipped:
				return "\u2013" // –
			default:
				return "?"
			}
		},
		"passClass": func(passed bool) string {
			if passed {
				return "passed"
			}
			return "failed"
		},
		"formatDuration": FormatDuration,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04:05")
		},
		"clock": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("15:04:05.000")
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("could not parse HTML template: %w", err)
	}

	f, err := createReportFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := buildReportData(result)
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("could not render HTML report: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>UI Scenario Report</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Oxygen,
                 Ubuntu, Cantarell, "Fira Sans", "Droid Sans", "Helvetica Neue", sans-serif;
    background: #f8f9fa; color: #212529; line-height: 1.6; padding: 2rem;
  }
  h1 { font-size: 1.5rem; margin-bottom: 0.25rem; font-weight: 700; }
  .executed-at { font-size: 0.8rem; color: #868e96; margin-bottom: 1.5rem; }
  .aborted {
    color: #c92a2a; font-weight: 600; margin-bottom: 1rem;
    padding: 0.5rem 1rem; border: 1px solid #ffa8a8; background: #fff5f5; border-radius: 6px;
  }

  .summary {
    display: flex; gap: 1rem; flex-wrap: wrap;
    margin-bottom: 2rem; padding: 1rem 1.25rem; background: #fff;
    border-radius: 10px; border: 1px solid #e9ecef;
  }
  .summary.all-passed { border: 2px solid #2b8a3e; background: #f6fef7; }
  .summary.has-failures { border: 2px solid #c92a2a; background: #fff5f5; }
  .summary-item { text-align: center; min-width: 90px; }
  .summary-item .number { font-size: 1.8rem; font-weight: 700; }
  .summary-item .label {
    font-size: 0.7rem; text-transform: uppercase; letter-spacing: 0.05em; color: #868e96;
  }
  .number.green  { color: #2b8a3e; }
  .number.red    { color: #c92a2a; }
  .number.yellow { color: #e67700; }
  .number.blue   { color: #1864ab; }

  .section { margin-bottom: 2rem; }
  .section-header {
    font-size: 1.1rem; font-weight: 700; margin-bottom: 0.75rem;
    padding-bottom: 0.4rem; border-bottom: 2px solid #dee2e6;
    display: flex; align-items: center; gap: 0.5rem;
  }
  .section-header .dot { width: 10px; height: 10px; border-radius: 50%; display: inline-block; }
  .section-header .section-meta { font-size: 0.8rem; font-weight: 500; color: #868e96; }
  .section.failed .section-header, .section.errored .section-header { color: #c92a2a; }
  .section.failed .dot, .section.errored .dot { background: #c92a2a; }
  .section.cancelled .section-header, .section.skipped .section-header { color: #e67700; }
  .section.cancelled .dot, .section.skipped .dot { background: #e67700; }
  .section.passed .section-header { color: #2b8a3e; }
  .section.passed .dot { background: #2b8a3e; }

  .tag-group { margin-bottom: 1.25rem; margin-left: 0.25rem; }
  .tag-group-label {
    font-size: 0.8rem; font-weight: 600; color: #495057;
    margin-bottom: 0.4rem; padding-left: 0.25rem;
  }
  .tag-group-meta { font-size: 0.75rem; font-weight: 400; color: #868e96; }

  .toggle-bar { display: flex; gap: 0.5rem; margin-bottom: 1rem; }
  .toggle-btn {
    background: #fff; border: 1px solid #dee2e6; border-radius: 6px;
    padding: 0.3rem 0.75rem; font-size: 0.75rem; color: #495057; cursor: pointer;
  }

  .scenario {
    margin-bottom: 0.5rem; background: #fff; border-radius: 8px;
    overflow: hidden; border: 1px solid #e9ecef;
  }
  .scenario.passed { border-left: 4px solid #69db7c; }
  .scenario.failed, .scenario.errored { border-left: 4px solid #ff6b6b; }
  .scenario.cancelled, .scenario.skipped { border-left: 4px solid #ffd43b; }
  .scenario-header {
    display: flex; justify-content: space-between; align-items: center;
    padding: 0.6rem 1rem; cursor: pointer; user-select: none;
  }
  .scenario-header:hover { background: #f1f3f5; }
  .scenario-name { font-weight: 600; font-size: 0.9rem; }
  .scenario-meta { display: flex; gap: 0.75rem; font-size: 0.78rem; color: #868e96; }
  .source-label { color: #495057; font-size: 0.78rem; }
  .tag {
    background: #e9ecef; border-radius: 4px; padding: 0.1rem 0.45rem;
    font-size: 0.68rem; color: #495057; font-weight: 500;
  }
  .scenario-error { color: #c92a2a; font-size: 0.8rem; padding: 0 1rem 0.5rem 1rem; }

  .details { display: none; padding: 0.5rem 1rem 1rem 1rem; }
  .scenario.open .details { display: block; }
  .details h3 { font-size: 0.8rem; text-transform: uppercase; color: #868e96; margin: 0.75rem 0 0.25rem 0; }

  .steps { background: #1e1f22; border-radius: 6px; padding: 0.5rem 0.75rem; }
  .step {
    display: flex; align-items: baseline; gap: 0.5rem; padding: 0.2rem 0;
    font-family: "JetBrains Mono", "Fira Code", "SF Mono", monospace; font-size: 0.82rem;
  }
  .step-symbol { width: 1.2rem; text-align: center; flex-shrink: 0; font-weight: 700; }
  .step-symbol.passed  { color: #32cd32; }
  .step-symbol.failed  { color: #ff4444; }
  .step-symbol.skipped { color: #e6b800; }
  .step-kind { color: #CF8E6D; font-weight: 600; min-width: 9rem; }
  .step-text { color: #BCBEC4; }
  .step-text.skipped, .step-kind.skipped { color: #6F737A; }
  .step-duration { margin-left: auto; color: #6F737A; font-size: 0.72rem; white-space: nowrap; }
  .step-error {
    color: #ff4444; background: #2c1a1a; border-radius: 4px;
    padding: 0.3rem 0.5rem; margin: 0.15rem 0 0.15rem 1.7rem;
    font-size: 0.78rem; white-space: pre-wrap; border: 1px solid #4a2020;
  }

  table { width: 100%; border-collapse: collapse; font-size: 0.78rem; }
  th, td { text-align: left; padding: 0.2rem 0.4rem; border-bottom: 1px solid #f1f3f5; vertical-align: top; }
  th { color: #868e96; font-weight: 600; }
  td.passed { color: #2b8a3e; font-weight: 700; }
  td.failed { color: #c92a2a; font-weight: 700; }
  td.mono { font-family: "JetBrains Mono", "Fira Code", "SF Mono", monospace; word-break: break-all; }
  .warning { color: #e67700; font-size: 0.8rem; }

  .chevron { transition: transform 0.2s; font-size: 0.7rem; color: #adb5bd; }
  .scenario.open .chevron { transform: rotate(90deg); }
  .empty-msg { color: #868e96; font-style: italic; padding: 1rem 0; text-align: center; }
</style>
</head>
<body>
<h1>UI Scenario Report</h1>
{{if not .ExecutedAt.IsZero}}<div class="executed-at">Run {{.RunID}} executed at {{formatTime .ExecutedAt}}</div>{{end}}
{{if .Aborted}}<div class="aborted">The run was aborted because a browser could not be launched.</div>{{end}}

<div class="summary {{summaryClass .Summary}}">
  <div class="summary-item"><div class="number blue">{{.Summary.ScenariosTotal}}</div><div class="label">Scenarios</div></div>
  <div class="summary-item"><div class="number green">{{.Summary.ScenariosPassed}}</div><div class="label">Passed</div></div>
  <div class="summary-item"><div class="number red">{{.Summary.ScenariosFailed}}</div><div class="label">Failed</div></div>
  <div class="summary-item"><div class="number red">{{.Summary.ScenariosErrored}}</div><div class="label">Errored</div></div>
  <div class="summary-item"><div class="number yellow">{{.Summary.ScenariosCancelled}}</div><div class="label">Cancelled</div></div>
  <div class="summary-item"><div class="number blue">{{.Summary.StepsTotal}}</div><div class="label">Steps</div></div>
  <div class="summary-item"><div class="number red">{{.Summary.StepsFailed}}</div><div class="label">Steps Failed</div></div>
  <div class="summary-item"><div class="number yellow">{{.Summary.StepsSkipped}}</div><div class="label">Steps Skipped</div></div>
  <div class="summary-item"><div class="number blue">{{formatDuration .TotalDuration}}</div><div class="label">Duration</div></div>
</div>

{{if not .Sections}}
<div class="empty-msg">No scenarios were executed.</div>
{{else}}
<div class="toggle-bar">
  <button class="toggle-btn" onclick="expandAll()">Expand All</button>
  <button class="toggle-btn" onclick="collapseAll()">Collapse All</button>
</div>
{{end}}

{{range .Sections}}
<div class="section {{.CSSClass}}">
  <div class="section-header"><span class="dot"></span> {{.Label}} <span class="section-meta">{{.Count}} scenarios, {{formatDuration .Duration}}</span></div>
  {{range .TagGroups}}
  <div class="tag-group">
    <div class="tag-group-label"># {{.TagLabel}} <span class="tag-group-meta">({{.Count}} scenarios, {{formatDuration .Duration}})</span></div>
    {{range .Scenarios}}
    <div class="scenario {{.Status}}">
      <div class="scenario-header" onclick="this.parentElement.classList.toggle('open')">
        <div>
          {{if .Source}}<span class="source-label">{{.Source}}</span><br>{{end}}
          <span class="scenario-name">{{.Name}}</span>
          {{range .Tags}}<span class="tag">{{.}}</span> {{end}}
        </div>
        <div class="scenario-meta">
          <span>{{len .Assertions}} assertions</span>
          <span>{{len .Network}} network events</span>
          <span>{{formatDuration .Duration}}</span>
          <span class="chevron">&#9654;</span>
        </div>
      </div>
      {{if .Error}}<div class="scenario-error">{{.Error}}</div>{{end}}
      <div class="details">
        <h3>Steps</h3>
        <div class="steps">
        {{range .Steps}}
          <div class="step">
            <span class="step-symbol {{statusClass .Status}}">{{statusSymbol .Status}}</span>
            <span class="step-kind {{statusClass .Status}}">{{.Kind}}</span>
            <span class="step-text {{statusClass .Status}}">{{.Description}}</span>
            <span class="step-duration">{{formatDuration .Duration}}</span>
          </div>
          {{if .Error}}<div class="step-error">{{.Error}}</div>{{end}}
        {{end}}
        </div>
        {{if .Warnings}}
        <h3>Warnings</h3>
        {{range .Warnings}}<div class="warning">{{.}}</div>{{end}}
        {{end}}
        {{if .Assertions}}
        <h3>Assertions</h3>
        <table>
          <tr><th></th><th>Step</th><th>Description</th><th>Expected</th><th>Actual</th><th>Time</th></tr>
          {{range .Assertions}}
          <tr><td class="{{passClass .Passed}}">{{if .Passed}}&#10003;{{else}}&#10007;{{end}}</td><td>{{.Step}}</td><td>{{.Description}}</td><td class="mono">{{.Expected}}</td><td class="mono">{{.Actual}}</td><td>{{clock .Timestamp}}</td></tr>
          {{end}}
        </table>
        {{end}}
        {{if .Panels}}
        <h3>Panel transitions</h3>
        <table>
          <tr><th>Panel</th><th>From</th><th>To</th><th>Time</th></tr>
          {{range .Panels}}<tr><td>{{.Panel}}</td><td>{{.From}}</td><td>{{.To}}{{if .Detected}} (detected){{end}}</td><td>{{clock .Timestamp}}</td></tr>{{end}}
        </table>
        {{end}}
        {{if .Network}}
        <h3>Network</h3>
        <table>
          <tr><th>Phase</th><th>Method</th><th>Status</th><th>URL</th><th>Time</th></tr>
          {{range .Network}}<tr><td>{{.Phase}}</td><td>{{.Method}}</td><td>{{if .Status}}{{.Status}}{{end}}{{.ErrorText}}</td><td class="mono">{{.URL}}</td><td>{{clock .Timestamp}}</td></tr>{{end}}
        </table>
        {{end}}
        {{if .Console}}
        <h3>Console</h3>
        <table>
          <tr><th>Source</th><th>Level</th><th>Message</th><th>Time</th></tr>
          {{range .Console}}<tr><td>{{.Source}}</td><td>{{.Level}}</td><td class="mono">{{.Text}}</td><td>{{clock .Timestamp}}</td></tr>{{end}}
        </table>
        {{end}}
        {{if .Screenshot}}<h3>Screenshot</h3><div class="source-label">{{.Screenshot}}</div>{{end}}
      </div>
    </div>
    {{end}}
  </div>
  {{end}}
</div>
{{end}}

<script>
document.querySelectorAll('.scenario.failed, .scenario.errored').forEach(function(el) { el.classList.add('open'); });

function expandAll() {
  document.querySelectorAll('.scenario').forEach(function(el) { el.classList.add('open'); });
}
function collapseAll() {
  document.querySelectorAll('.scenario').forEach(function(el) { el.classList.remove('open'); });
}
</script>
</body>
</html>
`
