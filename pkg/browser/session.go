package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// ErrSessionClosed is returned by a Session after Close.
var ErrSessionClosed = errors.New("browser session closed")

// ReadyCondition decides whether a freshly navigated page is ready.
type ReadyCondition func(ctx context.Context, d Driver) (bool, error)

// WaitUntil selects the readiness condition of a navigation: a built-in
// LoadState or a custom condition polled after DOM ready.
type WaitUntil struct {
	State     LoadState
	Name      string
	Condition ReadyCondition
	// Timeout replaces the session navigation timeout when positive.
	Timeout time.Duration
}

// Until waits for a built-in load state.
func Until(state LoadState) WaitUntil {
	return WaitUntil{State: state}
}

// UntilCondition waits for DOM ready and then until cond holds.
func UntilCondition(name string, cond ReadyCondition) WaitUntil {
	return WaitUntil{State: WaitDOMReady, Name: name, Condition: cond}
}

func (w WaitUntil) String() string {
	if w.Condition != nil {
		if w.Name != "" {
			return "condition " + w.Name
		}
		return "custom condition"
	}
	if w.State == "" {
		return string(WaitLoad)
	}
	return string(w.State)
}

// Session owns one browser and page for the lifetime of a scenario.
type Session struct {
	driver Driver
	engine string
	logger *zap.Logger

	navigationTimeout time.Duration
	pollInterval      time.Duration

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithNavigationTimeout bounds every Navigate call.
func WithNavigationTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.navigationTimeout = d
		}
	}
}

// WithPollInterval sets how often custom ready conditions are probed.
func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// Open launches a browser through launcher and wraps it in a Session.
// Launch failures are returned as *harness.LaunchError.
func Open(ctx context.Context, launcher Launcher, opts LaunchOptions, sessionOpts ...SessionOption) (*Session, error) {
	s := &Session{
		engine:            launcher.Name(),
		logger:            zap.NewNop(),
		navigationTimeout: harness.DefaultNavigationTimeout,
		pollInterval:      harness.DefaultPollInterval,
	}
	for _, opt := range sessionOpts {
		opt(s)
	}

	started := time.Now()
	driver, err := launcher.Launch(ctx, opts)
	if err != nil {
		s.logger.Error("launch", zap.String("engine", s.engine), zap.Error(err))
		return nil, &harness.LaunchError{Engine: s.engine, Err: err}
	}
	s.driver = driver
	s.logger.Debug("launch",
		zap.String("engine", s.engine),
		zap.Bool("headless", opts.Headless),
		zap.Duration("took", time.Since(started)),
	)
	return s, nil
}

// Driver returns the page driver.
func (s *Session) Driver() Driver {
	return s.driver
}

// Engine returns the launcher name.
func (s *Session) Engine() string {
	return s.engine
}

// Navigate loads url and waits until the page satisfies wait, bounded by the
// navigation timeout. Failures are returned as *harness.NavigationError;
// cancellation of ctx is returned as is.
func (s *Session) Navigate(ctx context.Context, url string, wait WaitUntil) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	timeout := s.navigationTimeout
	if wait.Timeout > 0 {
		timeout = wait.Timeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	state := wait.State
	if state == "" {
		state = WaitLoad
	}

	started := time.Now()
	err := s.driver.Navigate(navCtx, url, state)
	if err == nil && wait.Condition != nil {
		_, err = harness.Poll(navCtx, time.Until(started.Add(timeout)), s.pollInterval, func(ctx context.Context) (bool, error) {
			return wait.Condition(ctx, s.driver)
		})
	}
	if err == nil {
		s.logger.Debug("navigate", zap.String("url", url), zap.String("wait", wait.String()), zap.Duration("took", time.Since(started)))
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("navigate %s: %w", url, ctx.Err())
	}
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	s.logger.Warn("navigate", zap.String("url", url), zap.String("wait", wait.String()), zap.Error(err))
	return &harness.NavigationError{URL: url, WaitUntil: wait.String(), Timeout: timeout, Err: err}
}

// Screenshot captures the current page.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.driver.Screenshot(ctx)
}

// Close tears the browser down. It is safe to call from several goroutines
// and more than once; the driver is closed exactly once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.driver.Close()
		if s.closeErr != nil {
			s.logger.Warn("close", zap.String("engine", s.engine), zap.Error(s.closeErr))
			return
		}
		s.logger.Debug("close", zap.String("engine", s.engine))
	})
	return s.closeErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
