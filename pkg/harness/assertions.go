package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

// Collector accumulates assertion outcomes for one scenario. Unlike a test
// framework it never aborts: every check is recorded and the caller decides
// what a failure means. A Collector is used by one goroutine at a time.
type Collector struct {
	now     func() time.Time
	step    int
	fatal   bool
	results []AssertionResult
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithClock sets the time source used for assertion timestamps.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		c.now = now
	}
}

// NewCollector creates an empty Collector.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{now: time.Now, fatal: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin attributes subsequent assertions to step index with the given fatality.
func (c *Collector) Begin(step int, fatal bool) {
	c.step = step
	c.fatal = fatal
}

// Record appends an assertion result and returns it.
func (c *Collector) Record(description string, passed bool, expected, actual string) AssertionResult {
	result := AssertionResult{
		Description: description,
		Passed:      passed,
		Expected:    expected,
		Actual:      actual,
		Timestamp:   c.now(),
		Step:        c.step,
		Fatal:       c.fatal,
	}
	c.results = append(c.results, result)
	return result
}

// Add appends a result built elsewhere, stamping it with the current step.
func (c *Collector) Add(result AssertionResult) AssertionResult {
	if result.Timestamp.IsZero() {
		result.Timestamp = c.now()
	}
	result.Step = c.step
	result.Fatal = c.fatal
	c.results = append(c.results, result)
	return result
}

// Equal records whether expected == actual (using reflect.DeepEqual).
func (c *Collector) Equal(description string, expected, actual any) bool {
	passed := reflect.DeepEqual(expected, actual)
	c.Record(description, passed, fmt.Sprintf("%v", expected), fmt.Sprintf("%v", actual))
	return passed
}

// Contains records whether s contains the element/substring.
// For strings: checks if s contains substr.
// For slices/arrays: checks if collection contains element.
func (c *Collector) Contains(description string, s, contains any) bool {
	ok, found := containsElement(s, contains)
	if !ok {
		c.Record(description, false, fmt.Sprintf("contains %v", contains), fmt.Sprintf("cannot check containment on type %T", s))
		return false
	}
	c.Record(description, found, fmt.Sprintf("contains %v", contains), fmt.Sprintf("%v", s))
	return found
}

// True records whether condition holds.
func (c *Collector) True(description string, condition bool) bool {
	c.Record(description, condition, "true", fmt.Sprintf("%t", condition))
	return condition
}

// NoError records whether err is nil; the error message becomes the actual value.
func (c *Collector) NoError(description string, err error) bool {
	if err != nil {
		c.Record(description, false, "no error", err.Error())
		return false
	}
	c.Record(description, true, "no error", "no error")
	return true
}

// Results returns a copy of the recorded assertions in order.
func (c *Collector) Results() []AssertionResult {
	return slices.Clone(c.results)
}

// Failures returns the assertions that did not pass.
func (c *Collector) Failures() []AssertionResult {
	var failed []AssertionResult
	for _, r := range c.results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Passed reports whether every recorded assertion passed.
func (c *Collector) Passed() bool {
	return len(c.Failures()) == 0
}

// Err converts a failed result into an AssertionFailure. It returns nil for
// passing results.
func (r AssertionResult) Err() error {
	if r.Passed {
		return nil
	}
	return &AssertionFailure{Description: r.Description, Expected: r.Expected, Actual: r.Actual}
}

// containsElement checks if s contains the element.
func containsElement(s, elem any) (ok bool, found bool) {
	sv := reflect.ValueOf(s)

	switch sv.Kind() {
	case reflect.String:
		return true, strings.Contains(sv.String(), reflect.ValueOf(elem).String())
	case reflect.Slice, reflect.Array:
		for i := 0; i < sv.Len(); i++ {
			if reflect.DeepEqual(sv.Index(i).Interface(), elem) {
				return true, true
			}
		}
		return true, false
	case reflect.Map:
		for _, key := range sv.MapKeys() {
			if reflect.DeepEqual(key.Interface(), elem) {
				return true, true
			}
		}
		return true, false
	}
	return false, false
}
