// Package locate resolves harness locators against a live page with bounded
// polling.
package locate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

type expectKind int

const (
	expectDefault expectKind = iota
	expectAtLeast
	expectExactly
)

// Expectation is the number of matches a Find waits for. The zero value
// means AtLeast(1).
type Expectation struct {
	kind expectKind
	n    int
}

// AtLeast waits for n or more matches.
func AtLeast(n int) Expectation {
	return Expectation{kind: expectAtLeast, n: n}
}

// Exactly waits for exactly n matches.
func Exactly(n int) Expectation {
	return Expectation{kind: expectExactly, n: n}
}

// Absent waits until nothing matches.
func Absent() Expectation {
	return Exactly(0)
}

func (e Expectation) normalized() Expectation {
	if e.kind == expectDefault {
		return AtLeast(1)
	}
	return e
}

// IsAbsent reports whether e waits for no match.
func (e Expectation) IsAbsent() bool {
	e = e.normalized()
	return e.kind == expectExactly && e.n == 0
}

// Satisfied reports whether count matches meet e.
func (e Expectation) Satisfied(count int) bool {
	e = e.normalized()
	if e.kind == expectExactly {
		return count == e.n
	}
	return count >= e.n
}

func (e Expectation) String() string {
	e = e.normalized()
	switch {
	case e.IsAbsent():
		return "no match"
	case e.kind == expectExactly:
		return fmt.Sprintf("exactly %d", e.n)
	default:
		return fmt.Sprintf("at least %d", e.n)
	}
}

// Options bound a single lookup. Zero values fall back to the Finder's defaults.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
	Expect   Expectation
}

// Finder resolves locators against the current DOM of a driver.
type Finder struct {
	driver   browser.Driver
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// Option configures a Finder.
type Option func(*Finder)

// WithTimeout sets the default lookup timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Finder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithInterval sets the default poll interval.
func WithInterval(d time.Duration) Option {
	return func(f *Finder) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithLogger sets the finder logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Finder) {
		f.logger = logger
	}
}

// New creates a Finder over driver.
func New(driver browser.Driver, opts ...Option) *Finder {
	f := &Finder{
		driver:   driver,
		timeout:  harness.DefaultElementTimeout,
		interval: harness.DefaultPollInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Finder) bounds(opts Options) (time.Duration, time.Duration) {
	timeout, interval := opts.Timeout, opts.Interval
	if timeout <= 0 {
		timeout = f.timeout
	}
	if interval <= 0 {
		interval = f.interval
	}
	return timeout, interval
}

// Find polls until the number of matches satisfies opts.Expect. The first
// probe is immediate, so a satisfied expectation returns without waiting.
//
// When matches never appear the error is a *harness.ElementNotFoundError.
// When an Absent expectation is not met the error is a
// *harness.AssertionFailure and the lingering matches are returned.
func (f *Finder) Find(ctx context.Context, loc harness.Locator, opts Options) ([]browser.Element, error) {
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("locator %s: %w", loc, err)
	}
	expect := opts.Expect.normalized()
	timeout, interval := f.bounds(opts)

	var (
		found   []browser.Element
		lastErr error
	)
	waited, err := harness.Poll(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		els, err := f.driver.Query(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			// The page may be between documents; try again on the next tick.
			lastErr = err
			return false, nil
		}
		found, lastErr = els, nil
		return expect.Satisfied(len(els)), nil
	})

	switch {
	case err == nil:
		f.logger.Debug("find", zap.Stringer("locator", loc), zap.Int("matches", len(found)), zap.Duration("waited", waited))
		return found, nil
	case !errors.Is(err, harness.ErrPollTimeout):
		return nil, err
	}

	if lastErr != nil {
		f.logger.Debug("find", zap.Stringer("locator", loc), zap.Error(lastErr))
	}
	if expect.IsAbsent() {
		return found, &harness.AssertionFailure{
			Description: fmt.Sprintf("element %s should be absent", loc),
			Expected:    expect.String(),
			Actual:      fmt.Sprintf("%d match(es) after %s", len(found), waited.Round(time.Millisecond)),
		}
	}
	return found, &harness.ElementNotFoundError{Locator: loc, Waited: waited, Expected: expect.String(), Found: len(found)}
}

// FindOne waits for at least one match and returns the first in document
// order. When several elements match, warning describes the ambiguity.
func (f *Finder) FindOne(ctx context.Context, loc harness.Locator, opts Options) (el browser.Element, warning string, err error) {
	if opts.Expect.normalized().n < 1 {
		opts.Expect = AtLeast(1)
	}
	els, err := f.Find(ctx, loc, opts)
	if err != nil {
		return nil, "", err
	}
	return els[0], ambiguity(loc, len(els)), nil
}

// WaitVisible waits until at least one match is visible and returns the
// first visible one in document order.
func (f *Finder) WaitVisible(ctx context.Context, loc harness.Locator, opts Options) (el browser.Element, warning string, err error) {
	if err := loc.Validate(); err != nil {
		return nil, "", fmt.Errorf("locator %s: %w", loc, err)
	}
	timeout, interval := f.bounds(opts)

	var (
		matched int
		visible []browser.Element
	)
	waited, err := harness.Poll(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		els, err := f.driver.Query(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, nil
		}
		matched, visible = len(els), visible[:0]
		for _, candidate := range els {
			// A node detached since the query counts as not visible.
			if ok, err := candidate.Visible(ctx); err == nil && ok {
				visible = append(visible, candidate)
			}
		}
		return len(visible) > 0, nil
	})
	switch {
	case err == nil:
		return visible[0], ambiguity(loc, len(visible)), nil
	case errors.Is(err, harness.ErrPollTimeout):
		return nil, "", &harness.ElementNotFoundError{Locator: loc, Waited: waited, Expected: "at least 1 visible", Found: matched}
	default:
		return nil, "", err
	}
}

func ambiguity(loc harness.Locator, n int) string {
	if n <= 1 {
		return ""
	}
	return fmt.Sprintf("locator %s matched %d elements, using the first in document order", loc, n)
}
