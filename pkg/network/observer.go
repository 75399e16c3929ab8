// Package network records the requests, responses and console output of a
// page during a bounded capture window.
package network

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// Predicate selects network events.
type Predicate func(harness.NetworkEvent) bool

// URLContains matches events whose URL contains substr.
func URLContains(substr string) Predicate {
	return func(ev harness.NetworkEvent) bool {
		return strings.Contains(ev.URL, substr)
	}
}

// Method matches events of the given HTTP method, case-insensitively.
func Method(method string) Predicate {
	return func(ev harness.NetworkEvent) bool {
		return strings.EqualFold(ev.Method, method)
	}
}

// Phase matches events of one phase.
func Phase(phase harness.NetworkPhase) Predicate {
	return func(ev harness.NetworkEvent) bool {
		return ev.Phase == phase
	}
}

// StatusIs matches responses with the given status code.
func StatusIs(code int) Predicate {
	return func(ev harness.NetworkEvent) bool {
		return ev.Phase == harness.PhaseResponse && ev.Status == code
	}
}

// All matches events accepted by every predicate. Nil predicates are ignored.
func All(preds ...Predicate) Predicate {
	return func(ev harness.NetworkEvent) bool {
		for _, p := range preds {
			if p != nil && !p(ev) {
				return false
			}
		}
		return true
	}
}

type request struct {
	url    string
	method string
}

// Observer captures page events between StartCapture and StopCapture.
// Handlers run on the driver's event goroutine, so the buffers are guarded.
type Observer struct {
	driver   browser.Driver
	logger   *zap.Logger
	limit    int
	interval time.Duration
	timeout  time.Duration

	mu          sync.Mutex
	capturing   bool
	events      []harness.NetworkEvent
	console     []harness.ConsoleEntry
	requests    map[string]request
	dropped     int
	warnings    []string
	unsubscribe func()
}

// Option configures an Observer.
type Option func(*Observer)

// WithLogger sets the observer logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// WithCaptureLimit bounds the number of buffered network events and console
// entries. The oldest entries are dropped first.
func WithCaptureLimit(n int) Option {
	return func(o *Observer) {
		if n > 0 {
			o.limit = n
		}
	}
}

// WithPollInterval sets how often WaitFor inspects the buffer.
func WithPollInterval(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTimeout sets the default wait of AssertCalled.
func WithTimeout(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// New creates an Observer over driver. Capture starts with StartCapture.
func New(driver browser.Driver, opts ...Option) *Observer {
	o := &Observer{
		driver:   driver,
		logger:   zap.NewNop(),
		limit:    harness.DefaultCaptureLimit,
		interval: harness.DefaultPollInterval,
		timeout:  harness.DefaultNetworkTimeout,
		requests: map[string]request{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartCapture clears the buffers and opens a new capture window. A failed
// subscription is logged and kept as a warning; the window stays open but
// records nothing.
func (o *Observer) StartCapture() error {
	o.StopCapture()

	o.mu.Lock()
	o.events, o.console, o.warnings = nil, nil, nil
	o.requests = map[string]request{}
	o.dropped = 0
	o.capturing = true
	o.mu.Unlock()

	unsubscribe, err := o.driver.Subscribe(o.handle)
	if err != nil {
		o.logger.Warn("capture_detached", zap.Error(err))
		o.mu.Lock()
		o.warnings = append(o.warnings, fmt.Sprintf("network capture unavailable: %v", err))
		o.mu.Unlock()
		return err
	}

	o.mu.Lock()
	o.unsubscribe = unsubscribe
	o.mu.Unlock()
	return nil
}

// StopCapture closes the window. The buffers keep what was captured.
func (o *Observer) StopCapture() {
	o.mu.Lock()
	o.capturing = false
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	// Unsubscribing may wait for an in-flight handler, which needs o.mu.
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Capturing reports whether a window is open.
func (o *Observer) Capturing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.capturing
}

func (o *Observer) handle(ev browser.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.capturing {
		return
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	switch ev.Kind {
	case browser.EventRequest:
		o.requests[ev.RequestID] = request{url: ev.URL, method: ev.Method}
		o.appendEvent(harness.NetworkEvent{RequestID: ev.RequestID, URL: ev.URL, Method: ev.Method, Phase: harness.PhaseRequest, Timestamp: ts})
	case browser.EventResponse:
		req := o.requests[ev.RequestID]
		url := ev.URL
		if url == "" {
			url = req.url
		}
		o.appendEvent(harness.NetworkEvent{RequestID: ev.RequestID, URL: url, Method: req.method, Status: ev.Status, Phase: harness.PhaseResponse, Timestamp: ts})
	case browser.EventRequestFailed:
		req := o.requests[ev.RequestID]
		o.appendEvent(harness.NetworkEvent{RequestID: ev.RequestID, URL: req.url, Method: req.method, Phase: harness.PhaseError, ErrorText: ev.ErrorText, Timestamp: ts})
	case browser.EventConsole:
		o.appendConsole(harness.ConsoleEntry{Source: harness.SourceConsole, Level: ev.Level, Text: ev.Text, Timestamp: ts})
	case browser.EventPageError:
		o.appendConsole(harness.ConsoleEntry{Source: harness.SourcePageError, Level: "error", Text: ev.Text, Timestamp: ts})
	}
}

func (o *Observer) appendEvent(ev harness.NetworkEvent) {
	if len(o.events) >= o.limit {
		o.events = slices.Delete(o.events, 0, 1)
		o.dropped++
	}
	o.events = append(o.events, ev)
}

func (o *Observer) appendConsole(entry harness.ConsoleEntry) {
	if len(o.console) >= o.limit {
		o.console = slices.Delete(o.console, 0, 1)
		o.dropped++
	}
	o.console = append(o.console, entry)
}

// Events returns a copy of the captured network events in arrival order.
func (o *Observer) Events() []harness.NetworkEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.events)
}

// Console returns a copy of the captured console messages and page errors.
func (o *Observer) Console() []harness.ConsoleEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.console)
}

// Dropped counts entries discarded because the buffer was full.
func (o *Observer) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Warnings returns capture problems worth surfacing in a report.
func (o *Observer) Warnings() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := slices.Clone(o.warnings)
	if o.dropped > 0 {
		out = append(out, fmt.Sprintf("capture buffer full, %d oldest entries dropped", o.dropped))
	}
	return out
}

// EventsMatching returns the captured events accepted by pred. The sequence
// is lazy and can be ranged over repeatedly; each pass sees the buffer as
// it is when the pass starts. A nil pred matches everything.
func (o *Observer) EventsMatching(pred Predicate) iter.Seq[harness.NetworkEvent] {
	return func(yield func(harness.NetworkEvent) bool) {
		for _, ev := range o.Events() {
			if pred != nil && !pred(ev) {
				continue
			}
			if !yield(ev) {
				return
			}
		}
	}
}

func (o *Observer) first(pred Predicate) (harness.NetworkEvent, bool) {
	for ev := range o.EventsMatching(pred) {
		return ev, true
	}
	return harness.NetworkEvent{}, false
}

// WaitFor polls the buffer until an event matches pred. A zero timeout uses
// the observer default.
func (o *Observer) WaitFor(ctx context.Context, pred Predicate, timeout time.Duration) (harness.NetworkEvent, error) {
	if timeout <= 0 {
		timeout = o.timeout
	}
	var found harness.NetworkEvent
	_, err := harness.Poll(ctx, timeout, o.interval, func(context.Context) (bool, error) {
		ev, ok := o.first(pred)
		found = ev
		return ok, nil
	})
	return found, err
}

// CallOptions narrow AssertCalled.
type CallOptions struct {
	// Description names the assertion in the report.
	Description string
	// WithStatus requires a response with this status code. Zero accepts
	// any matching event.
	WithStatus int
	Timeout    time.Duration
}

// AssertCalled waits for at least one event matching pred and reports the
// outcome as an assertion result. It never returns an error: cancellation
// and timeouts become failed results.
func (o *Observer) AssertCalled(ctx context.Context, pred Predicate, opts CallOptions) harness.AssertionResult {
	desc := opts.Description
	if desc == "" {
		desc = "network call"
	}
	match, expected := pred, "a matching request"
	if opts.WithStatus > 0 {
		match = All(pred, StatusIs(opts.WithStatus))
		expected = fmt.Sprintf("a matching response with status %d", opts.WithStatus)
	}

	ev, err := o.WaitFor(ctx, match, opts.Timeout)
	result := harness.AssertionResult{Description: desc, Expected: expected, Timestamp: time.Now()}
	switch {
	case err == nil:
		result.Passed = true
		result.Actual = describeEvent(ev)
	case errors.Is(err, harness.ErrPollTimeout):
		result.Actual = o.describeMisses(pred)
	default:
		result.Actual = err.Error()
	}
	return result
}

func (o *Observer) describeMisses(pred Predicate) string {
	var statuses []string
	requests := 0
	for ev := range o.EventsMatching(pred) {
		switch ev.Phase {
		case harness.PhaseRequest:
			requests++
		case harness.PhaseResponse:
			statuses = append(statuses, fmt.Sprint(ev.Status))
		case harness.PhaseError:
			statuses = append(statuses, "error: "+ev.ErrorText)
		}
	}
	if requests == 0 && len(statuses) == 0 {
		return fmt.Sprintf("no matching event among %d captured", len(o.Events()))
	}
	if len(statuses) == 0 {
		return fmt.Sprintf("%d matching request(s) without response", requests)
	}
	return "matching responses: " + strings.Join(statuses, ", ")
}

func describeEvent(ev harness.NetworkEvent) string {
	switch ev.Phase {
	case harness.PhaseResponse:
		return fmt.Sprintf("%s %s -> %d", ev.Method, ev.URL, ev.Status)
	case harness.PhaseError:
		return fmt.Sprintf("%s %s failed: %s", ev.Method, ev.URL, ev.ErrorText)
	default:
		return fmt.Sprintf("%s %s", ev.Method, ev.URL)
	}
}
