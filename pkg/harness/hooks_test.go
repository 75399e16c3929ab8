package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortHooks(t *testing.T) {
	t.Run("sorts hooks by Order ascending", func(t *testing.T) {
		sorted := SortHooks([]*Hooks{{Order: 3}, {Order: 1}, {Order: 2}})
		require.Equal(t, 1, sorted[0].Order)
		require.Equal(t, 2, sorted[1].Order)
		require.Equal(t, 3, sorted[2].Order)
	})

	t.Run("does not modify original slice", func(t *testing.T) {
		original := []*Hooks{{Order: 2}, {Order: 1}}
		sorted := SortHooks(original)
		require.Equal(t, 2, original[0].Order)
		require.Equal(t, 1, sorted[0].Order)
	})
}

func TestHookExecutor(t *testing.T) {
	t.Run("runs every hook kind in order and skips nil entries", func(t *testing.T) {
		var calls []string
		late := &Hooks{
			Order:     10,
			BeforeAll: func() { calls = append(calls, "late:before-all") },
			AfterStep: func(s StepInfo, err error) {
				calls = append(calls, "late:after-step:"+s.Kind+":"+err.Error())
			},
		}
		early := &Hooks{
			Order:          -1,
			BeforeAll:      func() { calls = append(calls, "early:before-all") },
			BeforeScenario: func(s ScenarioInfo) { calls = append(calls, "early:before-scenario:"+s.Name) },
			AfterScenario: func(s ScenarioInfo, r ScenarioReport) {
				calls = append(calls, "early:after-scenario:"+string(r.Status))
			},
			BeforeStep: func(s StepInfo) { calls = append(calls, "early:before-step:"+s.Kind) },
			AfterAll:   func(r RunResult) { calls = append(calls, "early:after-all:"+r.ID) },
		}

		exec := NewHookExecutor(late, nil, early)
		exec.ExecuteBeforeAll()
		exec.ExecuteBeforeScenario(ScenarioInfo{Name: "Create a list"})
		exec.ExecuteBeforeStep(StepInfo{Kind: "click"})
		exec.ExecuteAfterStep(StepInfo{Kind: "click"}, errors.New("boom"))
		exec.ExecuteAfterScenario(ScenarioInfo{Name: "Create a list"}, ScenarioReport{Status: StatusFailed})
		exec.ExecuteAfterAll(RunResult{ID: "run-1"})

		require.Equal(t, []string{
			"early:before-all",
			"late:before-all",
			"early:before-scenario:Create a list",
			"early:before-step:click",
			"late:after-step:click:boom",
			"early:after-scenario:failed",
			"early:after-all:run-1",
		}, calls)
	})

	t.Run("empty executor is a no-op", func(t *testing.T) {
		exec := NewHookExecutor()
		exec.ExecuteBeforeAll()
		exec.ExecuteAfterStep(StepInfo{}, nil)
	})
}
