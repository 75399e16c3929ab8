// Package action executes UI actions against freshly resolved elements and
// keeps a record of each one.
package action

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/locate"
)

// Recorder runs click, fill, select, hover and key actions. Every action
// resolves its locator again right before it runs; handles are never reused
// across actions. A Recorder is used by one goroutine at a time.
type Recorder struct {
	driver  browser.Driver
	finder  *locate.Finder
	logger  *zap.Logger
	now     func() time.Time
	records []harness.ActionRecord
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithClock sets the time source of action timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// New creates a Recorder that resolves targets with finder.
func New(driver browser.Driver, finder *locate.Finder, opts ...Option) *Recorder {
	r := &Recorder{driver: driver, finder: finder, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) record(rec harness.ActionRecord, err error) {
	rec.Duration = r.now().Sub(rec.Timestamp)
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
		r.logger.Debug("action", zap.String("action", rec.Action), zap.String("target", rec.Target), zap.Error(err))
	} else {
		r.logger.Debug("action", zap.String("action", rec.Action), zap.String("target", rec.Target), zap.Duration("took", rec.Duration))
	}
	r.records = append(r.records, rec)
}

func (r *Recorder) onElement(ctx context.Context, action string, loc harness.Locator, value string, opts locate.Options, fn func(context.Context, browser.Element) error) error {
	rec := harness.ActionRecord{Action: action, Target: loc.String(), Value: value, Timestamp: r.now()}
	el, warning, err := r.finder.WaitVisible(ctx, loc, opts)
	rec.Warning = warning
	if err == nil {
		err = fn(ctx, el)
	}
	r.record(rec, err)
	return err
}

// Click clicks the first visible element matched by loc.
func (r *Recorder) Click(ctx context.Context, loc harness.Locator, opts locate.Options) error {
	return r.onElement(ctx, "click", loc, "", opts, func(ctx context.Context, el browser.Element) error {
		return el.Click(ctx)
	})
}

// Hover moves the pointer over the first visible element matched by loc.
func (r *Recorder) Hover(ctx context.Context, loc harness.Locator, opts locate.Options) error {
	return r.onElement(ctx, "hover", loc, "", opts, func(ctx context.Context, el browser.Element) error {
		return el.Hover(ctx)
	})
}

// Fill replaces the value of the matched field and reads it back. A field
// that does not hold value afterwards fails with *harness.FillVerificationError.
func (r *Recorder) Fill(ctx context.Context, loc harness.Locator, value string, opts locate.Options) error {
	return r.onElement(ctx, "fill", loc, value, opts, func(ctx context.Context, el browser.Element) error {
		if err := el.Fill(ctx, value); err != nil {
			return err
		}
		actual, err := el.Value(ctx)
		if err != nil {
			return err
		}
		if actual != value {
			return &harness.FillVerificationError{Locator: loc, Expected: value, Actual: actual}
		}
		return nil
	})
}

// Select picks options of the matched select element by text or value.
func (r *Recorder) Select(ctx context.Context, loc harness.Locator, values []string, opts locate.Options) error {
	return r.onElement(ctx, "select", loc, strings.Join(values, ", "), opts, func(ctx context.Context, el browser.Element) error {
		return el.Select(ctx, values...)
	})
}

// PressOn sends key to the matched element.
func (r *Recorder) PressOn(ctx context.Context, loc harness.Locator, key string, opts locate.Options) error {
	return r.onElement(ctx, "press", loc, key, opts, func(ctx context.Context, el browser.Element) error {
		return el.Press(ctx, key)
	})
}

// Press sends key to whatever element of the page has focus.
func (r *Recorder) Press(ctx context.Context, key string) error {
	rec := harness.ActionRecord{Action: "press", Value: key, Timestamp: r.now()}
	err := r.driver.PressKey(ctx, key)
	r.record(rec, err)
	return err
}

// Records returns a copy of the actions executed so far.
func (r *Recorder) Records() []harness.ActionRecord {
	return slices.Clone(r.records)
}
