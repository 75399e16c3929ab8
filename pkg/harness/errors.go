package harness

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned by Poll when the condition was not met in time.
var ErrPollTimeout = errors.New("condition not met before timeout")

// ErrorKind classifies harness failures for reports and exit codes.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindLaunch           ErrorKind = "launch"
	KindNavigation       ErrorKind = "navigation"
	KindElementNotFound  ErrorKind = "element_not_found"
	KindFillVerification ErrorKind = "fill_verification"
	KindPanelTimeout     ErrorKind = "panel_timeout"
	KindAssertion        ErrorKind = "assertion"
	KindCancelled        ErrorKind = "cancelled"
	KindInternal         ErrorKind = "internal"
)

// LaunchError means the browser engine could not be started.
type LaunchError struct {
	Engine string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("could not launch %s browser: %v", e.Engine, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// NavigationError means a page did not reach its readiness condition.
type NavigationError struct {
	URL       string
	WaitUntil string
	Timeout   time.Duration
	Err       error
}

func (e *NavigationError) Error() string {
	if e.TimedOut() {
		return fmt.Sprintf("navigation to %s did not reach %s within %s", e.URL, e.WaitUntil, e.Timeout)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// TimedOut reports whether the navigation failed because its deadline passed.
func (e *NavigationError) TimedOut() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, ErrPollTimeout)
}

// ElementNotFoundError means a locator did not resolve to the expected
// number of elements before its timeout.
type ElementNotFoundError struct {
	Locator  Locator
	Waited   time.Duration
	Expected string
	Found    int
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element %s not found: expected %s, found %d after %s",
		e.Locator, e.Expected, e.Found, e.Waited.Round(time.Millisecond))
}

// FillVerificationError means a field did not hold the submitted value after a fill.
type FillVerificationError struct {
	Locator  Locator
	Expected string
	Actual   string
}

func (e *FillVerificationError) Error() string {
	return fmt.Sprintf("field %s holds %q after fill, expected %q", e.Locator, e.Actual, e.Expected)
}

// PanelTimeoutError means a panel transition was not confirmed in time.
type PanelTimeoutError struct {
	Panel  string
	From   PanelState
	To     PanelState
	Waited time.Duration
	Reason string
}

func (e *PanelTimeoutError) Error() string {
	msg := fmt.Sprintf("panel %q did not reach %s from %s within %s", e.Panel, e.To, e.From, e.Waited.Round(time.Millisecond))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// AssertionFailure is an explicit check that did not hold.
type AssertionFailure struct {
	Description string
	Expected    string
	Actual      string
}

func (e *AssertionFailure) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Description, e.Expected, e.Actual)
}

// KindOf classifies err. Wrapped errors are inspected with errors.As.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		launchErr *LaunchError
		navErr    *NavigationError
		notFound  *ElementNotFoundError
		fillErr   *FillVerificationError
		panelErr  *PanelTimeoutError
		assertErr *AssertionFailure
	)
	switch {
	case errors.As(err, &launchErr):
		return KindLaunch
	case errors.As(err, &navErr):
		return KindNavigation
	case errors.As(err, &notFound):
		return KindElementNotFound
	case errors.As(err, &fillErr):
		return KindFillVerification
	case errors.As(err, &panelErr):
		return KindPanelTimeout
	case errors.As(err, &assertErr):
		return KindAssertion
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindInternal
	}
}

// IsLaunchError reports whether err is or wraps a LaunchError.
func IsLaunchError(err error) bool {
	return KindOf(err) == KindLaunch
}

// IsNotFound reports whether err is or wraps an ElementNotFoundError.
func IsNotFound(err error) bool {
	var notFound *ElementNotFoundError
	return errors.As(err, &notFound)
}

// IsAssertion reports whether err is or wraps an AssertionFailure.
func IsAssertion(err error) bool {
	var failure *AssertionFailure
	return errors.As(err, &failure)
}
