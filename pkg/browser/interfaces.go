//go:generate mockgen -source=interfaces.go -destination=interfaces_mock.go -package=browser
package browser

import (
	"context"
	"encoding/json"
	"time"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// LoadState is a built-in page readiness condition.
type LoadState string

const (
	WaitDOMReady    LoadState = "domready"
	WaitLoad        LoadState = "load"
	WaitNetworkIdle LoadState = "networkidle"
)

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless       bool
	BrowserBin     string
	ViewportWidth  int
	ViewportHeight int
}

// EventKind tells what a driver Event reports.
type EventKind int

const (
	EventRequest EventKind = iota
	EventResponse
	EventRequestFailed
	EventConsole
	EventPageError
)

// Event is a raw page event forwarded by a driver.
type Event struct {
	Kind      EventKind
	RequestID string
	URL       string
	Method    string
	Status    int
	ErrorText string
	// Level and Text describe console messages and page errors.
	Level string
	Text  string
	Time  time.Time
}

type (
	// Launcher starts a browser engine.
	Launcher interface {
		// Name identifies the engine in logs and errors.
		Name() string
		Launch(ctx context.Context, opts LaunchOptions) (Driver, error)
	}

	// Driver controls one page of a launched browser.
	Driver interface {
		// Navigate loads url and waits for state. Cancelling ctx aborts the wait.
		Navigate(ctx context.Context, url string, state LoadState) error
		// Query resolves loc against the current DOM without waiting.
		// Matches are returned in document order.
		Query(ctx context.Context, loc harness.Locator) ([]Element, error)
		// PressKey sends a key press to the focused element of the page.
		PressKey(ctx context.Context, key string) error
		// Evaluate runs a JavaScript function expression such as
		// "() => document.title" and returns its JSON encoded result.
		Evaluate(ctx context.Context, script string) (json.RawMessage, error)
		// Subscribe forwards network and console events to handler until the
		// returned function is called. handler may be called from another goroutine.
		Subscribe(handler func(Event)) (unsubscribe func(), err error)
		Screenshot(ctx context.Context) ([]byte, error)
		// Close tears down the page, the browser and its process.
		Close() error
	}

	// Element is a handle to a DOM node. Handles are only valid until the
	// DOM changes and are never kept across steps.
	Element interface {
		Click(ctx context.Context) error
		Hover(ctx context.Context) error
		// Fill replaces the value of an input, textarea or contenteditable node.
		Fill(ctx context.Context, value string) error
		// Select picks the options of a select element by visible text or value.
		Select(ctx context.Context, values ...string) error
		Press(ctx context.Context, key string) error
		Value(ctx context.Context) (string, error)
		Text(ctx context.Context) (string, error)
		Visible(ctx context.Context) (bool, error)
		Attribute(ctx context.Context, name string) (value string, ok bool, err error)
		// Describe returns a short human-readable label for logs.
		Describe() string
	}
)
