package harness

import "sort"

// ScenarioInfo identifies a scenario to lifecycle hooks.
type ScenarioInfo struct {
	Name   string
	Source string
	Tags   []string
}

// StepInfo identifies a step to lifecycle hooks.
type StepInfo struct {
	Index       int
	Kind        string
	Description string
}

// Hooks holds lifecycle hooks for a run.
// All registered hook functions are executed, sorted by Order.
// With Parallel > 1 the scenario and step hooks run concurrently for
// different scenarios and must be safe for that.
type Hooks struct {
	// Order determines execution order (lower = runs first).
	// Default is 0. Hooks with same Order run in registration order.
	Order int

	// BeforeAll runs once before all scenarios.
	BeforeAll func()

	// AfterAll runs once after all scenarios.
	AfterAll func(RunResult)

	// BeforeScenario runs before each scenario, before its browser is launched.
	BeforeScenario func(ScenarioInfo)

	// AfterScenario runs after each scenario with its final report.
	AfterScenario func(ScenarioInfo, ScenarioReport)

	// BeforeStep runs before each executed step.
	BeforeStep func(StepInfo)

	// AfterStep runs after each executed step.
	// The error is nil when the step passed, non-nil on failure.
	AfterStep func(StepInfo, error)
}

// SortHooks sorts hooks by Order (ascending).
// Hooks with the same Order maintain their relative order (stable sort).
func SortHooks(hooks []*Hooks) []*Hooks {
	sorted := make([]*Hooks, len(hooks))
	copy(sorted, hooks)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	return sorted
}

// HookExecutor manages execution of multiple hooks.
type HookExecutor struct {
	hooks []*Hooks // sorted by Order
}

// NewHookExecutor creates a new HookExecutor with sorted hooks.
func NewHookExecutor(hooks ...*Hooks) *HookExecutor {
	validHooks := make([]*Hooks, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			validHooks = append(validHooks, h)
		}
	}

	return &HookExecutor{
		hooks: SortHooks(validHooks),
	}
}

// ExecuteBeforeAll executes all BeforeAll hooks in order.
func (e *HookExecutor) ExecuteBeforeAll() {
	for _, h := range e.hooks {
		if h.BeforeAll != nil {
			h.BeforeAll()
		}
	}
}

// ExecuteAfterAll executes all AfterAll hooks in order.
func (e *HookExecutor) ExecuteAfterAll(result RunResult) {
	for _, h := range e.hooks {
		if h.AfterAll != nil {
			h.AfterAll(result)
		}
	}
}

// ExecuteBeforeScenario executes all BeforeScenario hooks in order.
func (e *HookExecutor) ExecuteBeforeScenario(info ScenarioInfo) {
	for _, h := range e.hooks {
		if h.BeforeScenario != nil {
			h.BeforeScenario(info)
		}
	}
}

// ExecuteAfterScenario executes all AfterScenario hooks in order.
func (e *HookExecutor) ExecuteAfterScenario(info ScenarioInfo, report ScenarioReport) {
	for _, h := range e.hooks {
		if h.AfterScenario != nil {
			h.AfterScenario(info, report)
		}
	}
}

// ExecuteBeforeStep executes all BeforeStep hooks in order.
func (e *HookExecutor) ExecuteBeforeStep(step StepInfo) {
	for _, h := range e.hooks {
		if h.BeforeStep != nil {
			h.BeforeStep(step)
		}
	}
}

// ExecuteAfterStep executes all AfterStep hooks in order.
func (e *HookExecutor) ExecuteAfterStep(step StepInfo, err error) {
	for _, h := range e.hooks {
		if h.AfterStep != nil {
			h.AfterStep(step, err)
		}
	}
}
