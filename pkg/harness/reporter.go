package harness

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorBlue  = "\033[34m"

	colorKeyword = "\033[38;2;207;142;109m" // #CF8E6D - Scenario:, summary labels
	colorText    = "\033[38;2;188;190;196m" // #BCBEC4 - step text, scenario names
	colorTag     = "\033[38;2;199;125;187m" // #C77DBB - tags
	colorSkipped = "\033[38;2;111;115;122m" // #6F737A - skipped step text
	colorYellow  = "\033[33m"               // skipped step symbol, warnings
)

// Symbols for step status
const (
	symbolPass = "✓"
	symbolFail = "✗"
	symbolSkip = "-"
	symbolWarn = "!"
)

// Reporter handles human-facing run output.
type Reporter interface {
	ScenarioStart(name string, tags []string)

	StepPassed(description string)
	StepFailed(description, errMsg string)
	StepSkipped(description string)
	Warning(msg string)

	// ScenarioEnd prints the per-scenario summary line.
	ScenarioEnd(report ScenarioReport)

	// Summary
	AddScenarioResult(status Status)
	AddStepResult(status StepStatus)

	// Output control
	Flush() // For buffered reporters - prints accumulated output
}

// ReporterSummary tracks test execution statistics
type ReporterSummary struct {
	ScenariosTotal     int `json:"scenarios_total"`
	ScenariosPassed    int `json:"scenarios_passed"`
	ScenariosFailed    int `json:"scenarios_failed"`
	ScenariosCancelled int `json:"scenarios_cancelled"`
	ScenariosErrored   int `json:"scenarios_errored"`
	ScenariosSkipped   int `json:"scenarios_skipped"`
	StepsTotal         int `json:"steps_total"`
	StepsPassed        int `json:"steps_passed"`
	StepsFailed        int `json:"steps_failed"`
	StepsSkipped       int `json:"steps_skipped"`
}

// Add folds other into s.
func (s *ReporterSummary) Add(other ReporterSummary) {
	s.ScenariosTotal += other.ScenariosTotal
	s.ScenariosPassed += other.ScenariosPassed
	s.ScenariosFailed += other.ScenariosFailed
	s.ScenariosCancelled += other.ScenariosCancelled
	s.ScenariosErrored += other.ScenariosErrored
	s.ScenariosSkipped += other.ScenariosSkipped
	s.StepsTotal += other.StepsTotal
	s.StepsPassed += other.StepsPassed
	s.StepsFailed += other.StepsFailed
	s.StepsSkipped += other.StepsSkipped
}

// ConsoleReporter prints colored output to a writer (stdout by default)
type ConsoleReporter struct {
	out       io.Writer
	useColors bool
	buffer    *strings.Builder
	buffered  bool
	disabled  bool
	mu        sync.Mutex
	summary   ReporterSummary
}

// NewConsoleReporter creates a reporter that prints directly to out.
// A nil out means os.Stdout.
func NewConsoleReporter(out io.Writer, useColors bool) *ConsoleReporter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleReporter{
		out:       out,
		useColors: useColors,
	}
}

// NewBufferedReporter creates a reporter that buffers output for atomic printing.
// Used for parallel execution to prevent interleaved output.
func NewBufferedReporter(out io.Writer, useColors bool) *ConsoleReporter {
	r := NewConsoleReporter(out, useColors)
	r.buffer = &strings.Builder{}
	r.buffered = true
	return r
}

// NewNoopConsoleReporter creates a ConsoleReporter that suppresses all output.
// Summary statistics are still tracked.
func NewNoopConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		out:      io.Discard,
		disabled: true,
	}
}

func (r *ConsoleReporter) write(s string) {
	if r.disabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buffered {
		r.buffer.WriteString(s)
	} else {
		fmt.Fprint(r.out, s)
	}
}

func (r *ConsoleReporter) writeln(s string) {
	r.write(s + "\n")
}

func (r *ConsoleReporter) color(c, s string) string {
	if r.useColors {
		return c + s + colorReset
	}
	return s
}

// ScenarioStart prints the scenario header with its tags.
func (r *ConsoleReporter) ScenarioStart(name string, tags []string) {
	r.writeln("")
	line := r.color(colorKeyword, "Scenario:") + " " + r.color(colorText, name)
	if len(tags) > 0 {
		line += " " + r.color(colorTag, strings.Join(tags, " "))
	}
	r.writeln(line)
}

func (r *ConsoleReporter) formatStep(description string) string {
	return "  " + r.color(colorText, description)
}

// StepPassed prints a passed step with green checkmark
func (r *ConsoleReporter) StepPassed(description string) {
	symbol := r.color(colorGreen, symbolPass)
	r.writeln(fmt.Sprintf("%-60s %s", r.formatStep(description), symbol))
}

// StepFailed prints a failed step with red X and error message
func (r *ConsoleReporter) StepFailed(description, errMsg string) {
	symbol := r.color(colorRed, symbolFail)
	r.writeln(fmt.Sprintf("%-60s %s", r.formatStep(description), symbol))

	// Print error message indented
	if errMsg != "" {
		for _, line := range strings.Split(errMsg, "\n") {
			r.writeln(r.color(colorRed, "      "+line))
		}
	}
}

// StepSkipped prints a skipped step with dimmed text and yellow dash
func (r *ConsoleReporter) StepSkipped(description string) {
	step := "  " + r.color(colorSkipped, description)
	symbol := r.color(colorYellow, symbolSkip)
	r.writeln(fmt.Sprintf("%-60s %s", step, symbol))
}

// Warning prints a non-fatal diagnostic under the current step.
func (r *ConsoleReporter) Warning(msg string) {
	r.writeln(r.color(colorYellow, "    "+symbolWarn+" "+msg))
}

// ScenarioEnd prints the one-line outcome of a scenario.
func (r *ConsoleReporter) ScenarioEnd(report ScenarioReport) {
	var label string
	switch report.Status {
	case StatusPassed:
		label = r.color(colorGreen, "PASS")
	case StatusFailed:
		label = r.color(colorRed, "FAIL")
	case StatusCancelled:
		label = r.color(colorYellow, "CANCELLED")
	case StatusSkipped:
		label = r.color(colorSkipped, "SKIP")
	default:
		label = r.color(colorRed, "ERROR")
	}

	failed := len(report.FailedAssertions())
	line := fmt.Sprintf("%s %s (%s, %d assertion(s), %d failed, %d network event(s))",
		label, report.Name, FormatDuration(report.Duration), len(report.Assertions), failed, len(report.Network))
	r.writeln(line)
	if report.Error != "" && report.Status != StatusPassed {
		r.writeln(r.color(colorRed, "  "+report.Error))
	}
}

// AddScenarioResult tracks scenario outcomes for summary
func (r *ConsoleReporter) AddScenarioResult(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.ScenariosTotal++
	switch status {
	case StatusPassed:
		r.summary.ScenariosPassed++
	case StatusFailed:
		r.summary.ScenariosFailed++
	case StatusCancelled:
		r.summary.ScenariosCancelled++
	case StatusSkipped:
		r.summary.ScenariosSkipped++
	default:
		r.summary.ScenariosErrored++
	}
}

// AddStepResult tracks step pass/fail/skip for summary
func (r *ConsoleReporter) AddStepResult(status StepStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.StepsTotal++
	switch status {
	case StepSkipped:
		r.summary.StepsSkipped++
	case StepPassed:
		r.summary.StepsPassed++
	default:
		r.summary.StepsFailed++
	}
}

// GetSummary returns the current summary statistics
func (r *ConsoleReporter) GetSummary() ReporterSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// PrintSummary prints the final run summary
func (r *ConsoleReporter) PrintSummary(duration time.Duration) {
	summary := r.GetSummary()

	r.writeln("")

	scenarioLine := fmt.Sprintf("%d scenario(s)", summary.ScenariosTotal)
	if summary.ScenariosTotal > 0 {
		parts := []string{}
		if summary.ScenariosPassed > 0 {
			parts = append(parts, r.color(colorGreen, fmt.Sprintf("%d passed", summary.ScenariosPassed)))
		}
		if summary.ScenariosFailed > 0 {
			parts = append(parts, r.color(colorRed, fmt.Sprintf("%d failed", summary.ScenariosFailed)))
		}
		if summary.ScenariosErrored > 0 {
			parts = append(parts, r.color(colorRed, fmt.Sprintf("%d errored", summary.ScenariosErrored)))
		}
		if summary.ScenariosCancelled > 0 {
			parts = append(parts, r.color(colorYellow, fmt.Sprintf("%d cancelled", summary.ScenariosCancelled)))
		}
		if summary.ScenariosSkipped > 0 {
			parts = append(parts, r.color(colorYellow, fmt.Sprintf("%d skipped", summary.ScenariosSkipped)))
		}
		if len(parts) > 0 {
			scenarioLine += " (" + strings.Join(parts, ", ") + ")"
		}
	}
	r.writeln(scenarioLine)

	stepLine := fmt.Sprintf("%d step(s)", summary.StepsTotal)
	if summary.StepsTotal > 0 {
		parts := []string{}
		if summary.StepsPassed > 0 {
			parts = append(parts, r.color(colorGreen, fmt.Sprintf("%d passed", summary.StepsPassed)))
		}
		if summary.StepsFailed > 0 {
			parts = append(parts, r.color(colorRed, fmt.Sprintf("%d failed", summary.StepsFailed)))
		}
		if summary.StepsSkipped > 0 {
			parts = append(parts, r.color(colorYellow, fmt.Sprintf("%d skipped", summary.StepsSkipped)))
		}
		if len(parts) > 0 {
			stepLine += " (" + strings.Join(parts, ", ") + ")"
		}
	}
	r.writeln(stepLine)
	r.writeln(r.color(colorBlue, FormatDuration(duration)))
}

// Flush prints buffered output atomically (for parallel execution)
func (r *ConsoleReporter) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buffered && r.buffer.Len() > 0 {
		fmt.Fprint(r.out, r.buffer.String())
		r.buffer.Reset()
	}
}

// MergeSummary merges another reporter's summary into this one (for parallel execution)
func (r *ConsoleReporter) MergeSummary(other *ConsoleReporter) {
	otherSummary := other.GetSummary()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Add(otherSummary)
}

// FormatDuration renders d the way reports show it.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d)/float64(time.Microsecond))
	}
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// noopReporter discards all output
type noopReporter struct{}

// NewNoopReporter creates a reporter that discards all output
func NewNoopReporter() Reporter {
	return &noopReporter{}
}

func (r *noopReporter) ScenarioStart(name string, tags []string) {}
func (r *noopReporter) StepPassed(description string)            {}
func (r *noopReporter) StepFailed(description, errMsg string)    {}
func (r *noopReporter) StepSkipped(description string)           {}
func (r *noopReporter) Warning(msg string)                       {}
func (r *noopReporter) ScenarioEnd(report ScenarioReport)        {}
func (r *noopReporter) AddScenarioResult(status Status)          {}
func (r *noopReporter) AddStepResult(status StepStatus)          {}
func (r *noopReporter) Flush()                                   {}
