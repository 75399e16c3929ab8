// Package uitest runs scenario files from go test. Each scenario becomes a
// subtest with its own browser session:
//
//	func TestUI(t *testing.T) {
//		uitest.Run(t, []string{"scenarios"}, uitest.WithTags("@smoke"))
//	}
//
// The test is skipped when no Chromium binary can be found.
package uitest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser/rodriver"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/runner"
	"github.com/guldbach/google-ads-builder-sub001/pkg/scenario"
)

type options struct {
	configs  []*harness.Config
	hooks    []*harness.Hooks
	tags     string
	library  *scenario.StepLibrary
	launcher browser.Launcher
	out      io.Writer
}

// Option configures Run.
type Option func(*options)

// WithConfig merges configs over harness.DefaultConfig, last non-zero wins.
func WithConfig(configs ...*harness.Config) Option {
	return func(o *options) {
		o.configs = append(o.configs, configs...)
	}
}

// WithHooks registers lifecycle hooks. BeforeAll runs before the first
// subtest and AfterAll once every subtest has finished.
func WithHooks(hooks ...*harness.Hooks) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hooks...)
	}
}

// WithTags keeps only scenarios matching a cucumber tag expression.
func WithTags(expr string) Option {
	return func(o *options) {
		o.tags = expr
	}
}

// WithLibrary replaces the step library used for feature files.
func WithLibrary(lib *scenario.StepLibrary) Option {
	return func(o *options) {
		o.library = lib
	}
}

// WithLauncher replaces the engine chosen by Config.Engine. Browser
// discovery is then left to the launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(o *options) {
		o.launcher = l
	}
}

// WithOutput sets where the console reporter writes with go test -v.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// Run loads the scenarios under paths and runs each one as a subtest of t.
// With Config.Parallel > 1 the subtests run in parallel, bounded by
// go test -parallel.
func Run(t *testing.T, paths []string, opts ...Option) {
	t.Helper()

	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}
	cfg := harness.MergeConfigs(o.configs...)
	if !testing.Verbose() {
		cfg.DisableReporter = true
	}

	scenarios, err := scenario.Load(paths, scenario.LoadOptions{Tags: o.tags, Library: o.library, BaseURL: cfg.BaseURL})
	if err != nil {
		t.Fatalf("load scenarios: %v", err)
	}

	launcher := o.launcher
	if launcher == nil {
		launcher, err = launcherFor(cfg)
		if errors.Is(err, rodriver.ErrNoBrowser) {
			t.Skipf("skipping UI scenarios: %v", err)
		}
		if err != nil {
			t.Fatalf("browser engine: %v", err)
		}
	}

	r := runner.NewRunner(launcher,
		runner.WithConfig(&cfg),
		runner.WithHooks(o.hooks...),
		runner.WithLogger(zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))),
		runner.WithOutput(o.out))

	hooks := harness.NewHookExecutor(o.hooks...)
	batch := newBatch(len(scenarios))
	hooks.ExecuteBeforeAll()
	t.Cleanup(func() {
		hooks.ExecuteAfterAll(batch.result())
	})

	for i, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			if cfg.Parallel > 1 {
				t.Parallel()
			}
			report := r.Run(t.Context(), sc)
			batch.set(i, report)
			Report(t, report)
		})
	}
}

// launcherFor resolves the configured engine. Rod needs a local binary,
// which is checked up front so a machine without Chromium skips instead
// of failing every scenario.
func launcherFor(cfg harness.Config) (browser.Launcher, error) {
	l, err := runner.LauncherFor(cfg.Engine)
	if err != nil {
		return nil, err
	}
	if _, ok := l.(rodriver.Launcher); ok {
		if _, err := rodriver.FindBrowser(cfg.BrowserBin, false); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Report turns a scenario report into test results on tb: failed
// assertions become errors, skipped scenarios skip, warnings are logged.
func Report(tb testing.TB, report harness.ScenarioReport) {
	tb.Helper()
	for _, w := range report.Warnings {
		tb.Logf("warning: %s", w)
	}
	if report.Screenshot != "" {
		tb.Logf("screenshot: %s", report.Screenshot)
	}

	switch report.Status {
	case harness.StatusPassed:
		return
	case harness.StatusSkipped:
		tb.Skipf("scenario %q did not run", report.Name)
		return
	}

	failed := report.FailedAssertions()
	for _, a := range failed {
		tb.Errorf("step %d: %s: expected %s, got %s", a.Step+1, a.Description, a.Expected, a.Actual)
	}
	if len(failed) == 0 || report.Status != harness.StatusFailed {
		tb.Errorf("%s: %s", report.Status, describeError(report))
	}
}

func describeError(report harness.ScenarioReport) string {
	if report.Error == "" {
		return "no error recorded"
	}
	if report.ErrorKind == "" {
		return report.Error
	}
	return fmt.Sprintf("%s (%s)", report.Error, report.ErrorKind)
}

// batch collects subtest reports for the AfterAll hook.
type batch struct {
	mu      sync.Mutex
	started time.Time
	reports []harness.ScenarioReport
	ran     []bool
}

func newBatch(n int) *batch {
	return &batch{started: time.Now(), reports: make([]harness.ScenarioReport, n), ran: make([]bool, n)}
}

func (b *batch) set(i int, report harness.ScenarioReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports[i] = report
	b.ran[i] = true
}

func (b *batch) result() harness.RunResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := harness.RunResult{ID: uuid.NewString(), StartedAt: b.started, Duration: time.Since(b.started)}
	for i, report := range b.reports {
		if b.ran[i] {
			result.Scenarios = append(result.Scenarios, report)
		}
	}
	return result
}
