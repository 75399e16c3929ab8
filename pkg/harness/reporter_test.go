package harness

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConsoleReporter(t *testing.T) {
	t.Run("prints steps and the scenario summary line", func(t *testing.T) {
		var out bytes.Buffer
		r := NewConsoleReporter(&out, false)

		r.ScenarioStart("Create a list", []string{"@smoke"})
		r.StepPassed("navigate to /negative-keywords/")
		r.StepFailed(`click role=button name="Löschen"`, "element not found\nafter 5s")
		r.StepSkipped("assert panel create-list is closed")
		r.Warning("2 elements matched, using the first")
		r.ScenarioEnd(ScenarioReport{
			Name:       "Create a list",
			Status:     StatusFailed,
			Error:      "element not found",
			Duration:   1500 * time.Millisecond,
			Assertions: []AssertionResult{{Passed: false}},
		})

		text := out.String()
		require.Contains(t, text, "Scenario: Create a list @smoke")
		require.Contains(t, text, "✓")
		require.Contains(t, text, "✗")
		require.Contains(t, text, "      after 5s")
		require.Contains(t, text, "! 2 elements matched")
		require.Contains(t, text, "FAIL Create a list (1.50s, 1 assertion(s), 1 failed, 0 network event(s))")
		require.NotContains(t, text, "\033[")
	})

	t.Run("buffers until flushed", func(t *testing.T) {
		var out bytes.Buffer
		r := NewBufferedReporter(&out, true)
		r.StepPassed("hover text=\"Hilfe\"")
		require.Zero(t, out.Len())

		r.Flush()
		require.Contains(t, out.String(), colorGreen)
		out.Reset()
		r.Flush()
		require.Zero(t, out.Len())
	})

	t.Run("noop reporter still counts", func(t *testing.T) {
		r := NewNoopConsoleReporter()
		r.StepPassed("x")
		r.AddScenarioResult(StatusPassed)
		r.AddScenarioResult(StatusCancelled)
		r.AddStepResult(StepSkipped)
		summary := r.GetSummary()
		require.Equal(t, 2, summary.ScenariosTotal)
		require.Equal(t, 1, summary.ScenariosCancelled)
		require.Equal(t, 1, summary.StepsSkipped)
	})

	t.Run("merges summaries and prints totals", func(t *testing.T) {
		var out bytes.Buffer
		root := NewConsoleReporter(&out, false)
		worker := NewBufferedReporter(&out, false)
		worker.AddScenarioResult(StatusFailed)
		worker.AddScenarioResult(StatusErrored)
		worker.AddStepResult(StepPassed)
		worker.AddStepResult(StepFailed)
		root.MergeSummary(worker)

		root.PrintSummary(2 * time.Second)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Equal(t, "2 scenario(s) (1 failed, 1 errored)", lines[0])
		require.Equal(t, "2 step(s) (1 passed, 1 failed)", lines[1])
		require.Equal(t, "2.00s", lines[2])
	})
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "500µs", FormatDuration(500*time.Microsecond))
	require.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	require.Equal(t, "1.25s", FormatDuration(1250*time.Millisecond))
}
