package harness

import (
	"encoding/json"
	"time"
)

// Status is the overall outcome of a scenario.
type Status string

const (
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	// StatusErrored means the harness itself failed (browser launch, panic),
	// as opposed to the application under test.
	StatusErrored Status = "errored"
	// StatusSkipped is given to scenarios that never started because the run
	// was aborted or stopped early.
	StatusSkipped Status = "skipped"
)

// StepStatus represents the execution outcome of a step.
type StepStatus int

const (
	// StepPassed indicates the step executed successfully.
	StepPassed StepStatus = iota
	// StepFailed indicates the step failed (assertion, panic, or returned error).
	StepFailed
	// StepSkipped indicates the step was skipped due to an earlier failure.
	StepSkipped
)

// String returns a human-readable label for the step status.
func (s StepStatus) String() string {
	switch s {
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the status label instead of its ordinal.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// PanelState is the lifecycle state of a slide-in panel.
type PanelState int

const (
	PanelClosed PanelState = iota
	PanelOpening
	PanelOpen
	PanelClosing
)

func (s PanelState) String() string {
	switch s {
	case PanelClosed:
		return "closed"
	case PanelOpening:
		return "opening"
	case PanelOpen:
		return "open"
	case PanelClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the state label instead of its ordinal.
func (s PanelState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParsePanelState accepts "open" and "closed" (and the transient names).
func ParsePanelState(s string) (PanelState, bool) {
	for _, st := range []PanelState{PanelClosed, PanelOpening, PanelOpen, PanelClosing} {
		if st.String() == s {
			return st, true
		}
	}
	return PanelClosed, false
}

// NetworkPhase identifies which part of an HTTP exchange an event describes.
type NetworkPhase string

const (
	PhaseRequest  NetworkPhase = "request"
	PhaseResponse NetworkPhase = "response"
	PhaseError    NetworkPhase = "error"
)

// NetworkEvent is one observed request, response or transport failure.
type NetworkEvent struct {
	RequestID string       `json:"request_id,omitempty"`
	URL       string       `json:"url"`
	Method    string       `json:"method,omitempty"`
	Status    int          `json:"status,omitempty"`
	Phase     NetworkPhase `json:"phase"`
	ErrorText string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Console entry sources.
const (
	SourceConsole   = "console"
	SourcePageError = "pageerror"
)

// ConsoleEntry is a console message or uncaught page error.
type ConsoleEntry struct {
	// Source is SourceConsole or SourcePageError.
	Source    string    `json:"source"`
	Level     string    `json:"level,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// PanelTransition is one recorded panel state change.
type PanelTransition struct {
	Panel string     `json:"panel"`
	From  PanelState `json:"from"`
	To    PanelState `json:"to"`
	// Detected is set when the change was observed in the DOM rather than
	// driven by an open or close call.
	Detected  bool      `json:"detected,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AssertionResult is one recorded check. Values are never mutated after
// they are recorded.
type AssertionResult struct {
	Description string    `json:"description"`
	Passed      bool      `json:"passed"`
	Actual      string    `json:"actual,omitempty"`
	Expected    string    `json:"expected,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	// Step is the index of the step that produced the assertion.
	Step  int  `json:"step"`
	Fatal bool `json:"fatal"`
}

// ActionRecord describes one executed UI action.
type ActionRecord struct {
	Action    string        `json:"action"`
	Target    string        `json:"target,omitempty"`
	Value     string        `json:"value,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Warning   string        `json:"warning,omitempty"`
}

// StepResult holds the execution result of a single step.
type StepResult struct {
	Index int `json:"index"`

	// Kind is the step kind, e.g. "click" or "assert_panel".
	Kind string `json:"kind"`

	// Description is the human-readable step line shown by reporters.
	Description string `json:"description"`

	// Status is the execution outcome (passed, failed, or skipped).
	Status StepStatus `json:"status"`

	// Fatal is false for continue-on-failure steps.
	Fatal bool `json:"fatal"`

	// Error is the error message when the step failed. Empty for passed/skipped.
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Duration is the wall-clock execution time. Zero for skipped steps.
	Duration time.Duration `json:"duration"`

	// StartedAt is when the step started executing. Zero for skipped steps.
	StartedAt time.Time `json:"started_at,omitzero"`
}

// ScenarioReport is the immutable outcome of one scenario run.
type ScenarioReport struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Source string   `json:"source,omitempty"`
	Tags   []string `json:"tags,omitempty"`

	Status Status `json:"status"`
	// Passed is true only for StatusPassed.
	Passed bool `json:"passed"`
	// Error is the message of the failure that decided the status.
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	Steps      []StepResult      `json:"steps"`
	Assertions []AssertionResult `json:"assertions"`
	Actions    []ActionRecord    `json:"actions"`
	Network    []NetworkEvent    `json:"network"`
	Console    []ConsoleEntry    `json:"console"`
	Panels     []PanelTransition `json:"panels,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`

	// Screenshot is the path of the failure screenshot, if one was taken.
	Screenshot string `json:"screenshot,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// FailedAssertions returns the assertions that did not pass.
func (r ScenarioReport) FailedAssertions() []AssertionResult {
	var failed []AssertionResult
	for _, a := range r.Assertions {
		if !a.Passed {
			failed = append(failed, a)
		}
	}
	return failed
}

// RunResult holds the complete results of a batch run.
type RunResult struct {
	ID string `json:"id"`

	// Scenarios contains one report per scenario, in input order.
	Scenarios []ScenarioReport `json:"scenarios"`

	// Summary holds aggregate pass/fail/skip counters.
	Summary ReporterSummary `json:"summary"`

	// Aborted is set when a launch failure stopped the batch.
	Aborted bool `json:"aborted,omitempty"`

	// Duration is the total wall-clock time for the entire run.
	Duration time.Duration `json:"duration"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`
}

// Passed reports whether every scenario passed.
func (r RunResult) Passed() bool {
	for _, s := range r.Scenarios {
		if !s.Passed {
			return false
		}
	}
	return len(r.Scenarios) > 0
}

// Count returns how many scenarios finished with status.
func (r RunResult) Count(status Status) int {
	n := 0
	for _, s := range r.Scenarios {
		if s.Status == status {
			n++
		}
	}
	return n
}
