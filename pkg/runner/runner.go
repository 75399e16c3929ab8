// Package runner executes scenarios against isolated browser sessions and
// turns every outcome into a report.
package runner

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/scenario"
)

// Runner executes scenarios. Each scenario gets its own browser session,
// opened before its first step and closed after its last.
type Runner struct {
	launcher browser.Launcher
	config   harness.Config
	hooks    []*harness.Hooks
	logger   *zap.Logger
	out      io.Writer
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithConfig merges configs over harness.DefaultConfig, last non-zero wins.
func WithConfig(configs ...*harness.Config) Option {
	return func(r *Runner) {
		r.config = harness.MergeConfigs(configs...)
	}
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks ...*harness.Hooks) Option {
	return func(r *Runner) {
		r.hooks = append(r.hooks, hooks...)
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithOutput sets where the console reporter writes. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.out = w
	}
}

// NewRunner creates a Runner that launches browsers through launcher.
func NewRunner(launcher browser.Launcher, opts ...Option) *Runner {
	r := &Runner{
		launcher: launcher,
		config:   harness.DefaultConfig(),
		logger:   zap.NewNop(),
		out:      os.Stdout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Runner) Config() harness.Config {
	return r.config
}

func (r *Runner) newReporter(buffered bool) *harness.ConsoleReporter {
	switch {
	case r.config.DisableReporter:
		return harness.NewNoopConsoleReporter()
	case buffered:
		return harness.NewBufferedReporter(r.out, !r.config.NoColor)
	default:
		return harness.NewConsoleReporter(r.out, !r.config.NoColor)
	}
}

// Run executes one scenario and returns its report. It never panics and
// never returns an error: launch failures, cancellation and step failures
// all end up in the report.
func (r *Runner) Run(ctx context.Context, sc scenario.Scenario) harness.ScenarioReport {
	hooks := harness.NewHookExecutor(r.hooks...)
	return r.run(ctx, sc, hooks, r.newReporter(false))
}

// RunAll executes scenarios with up to Config.Parallel sessions at a time.
// One scenario's failure never stops the others, except with FailFast or
// when the browser cannot be launched at all; scenarios that never started
// are reported as skipped. Reports keep the input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []scenario.Scenario) harness.RunResult {
	started := r.now()
	result := harness.RunResult{
		ID:        uuid.NewString(),
		Scenarios: make([]harness.ScenarioReport, len(scenarios)),
		StartedAt: started,
	}
	hooks := harness.NewHookExecutor(r.hooks...)
	summary := r.newReporter(false)

	hooks.ExecuteBeforeAll()

	parallel := max(r.config.Parallel, 1)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		mu      sync.Mutex
		aborted bool
		ran     = make([]bool, len(scenarios))
	)
	halt := func(report harness.ScenarioReport) {
		mu.Lock()
		defer mu.Unlock()
		if report.ErrorKind == harness.KindLaunch {
			aborted = true
		}
		if aborted || (r.config.FailFast && !report.Passed) {
			stop()
		}
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(parallel)
	for i, sc := range scenarios {
		// Scenarios not yet started when the batch stops stay skipped.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rep := r.newReporter(parallel > 1)
			report := r.run(gctx, sc, hooks, rep)
			rep.Flush()
			summary.MergeSummary(rep)

			mu.Lock()
			result.Scenarios[i] = report
			ran[i] = true
			mu.Unlock()
			halt(report)
			return nil
		})
	}
	_ = g.Wait()

	for i, sc := range scenarios {
		if ran[i] {
			continue
		}
		report := skippedReport(sc, r.now())
		// A batch cancelled from outside is reported as such, not as a halt.
		if ctx.Err() != nil {
			report.Status = harness.StatusCancelled
			report.ErrorKind = harness.KindCancelled
		}
		result.Scenarios[i] = report
		summary.AddScenarioResult(report.Status)
		for range report.Steps {
			summary.AddStepResult(harness.StepSkipped)
		}
	}

	result.Aborted = aborted
	result.Summary = summary.GetSummary()
	result.Duration = r.now().Sub(started)
	if !r.config.DisableReporter {
		summary.PrintSummary(result.Duration)
	}
	r.logger.Info("run_finished",
		zap.String("run", result.ID),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("passed", result.Count(harness.StatusPassed)),
		zap.Bool("aborted", aborted),
		zap.Duration("took", result.Duration))

	hooks.ExecuteAfterAll(result)
	return result
}

func skippedReport(sc scenario.Scenario, now time.Time) harness.ScenarioReport {
	report := harness.ScenarioReport{
		ID:        uuid.NewString(),
		Name:      sc.Name,
		Source:    sc.Location(),
		Tags:      sc.Tags,
		Status:    harness.StatusSkipped,
		StartedAt: now,
	}
	for i, st := range sc.Steps {
		report.Steps = append(report.Steps, harness.StepResult{
			Index:       i,
			Kind:        string(st.Kind),
			Description: st.Describe(),
			Status:      harness.StepSkipped,
			Fatal:       st.Fatal(),
		})
	}
	return report
}

func (r *Runner) launchOptions() browser.LaunchOptions {
	return browser.LaunchOptions{
		Headless:       !r.config.Headed,
		BrowserBin:     r.config.BrowserBin,
		ViewportWidth:  r.config.ViewportWidth,
		ViewportHeight: r.config.ViewportHeight,
	}
}

// watchCancel closes the session as soon as ctx is cancelled, so a step
// blocked inside the browser returns right away. The returned function
// stops the watcher and waits for it.
func watchCancel(ctx context.Context, session *browser.Session, logger *zap.Logger) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			logger.Info("cancel", zap.Error(ctx.Err()))
			_ = session.Close()
		case <-done:
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
