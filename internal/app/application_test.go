package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/guldbach/google-ads-builder-sub001/internal/generator"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser/browsertest"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/runner"
	"github.com/guldbach/google-ads-builder-sub001/pkg/scenario"
)

var listScenarios = []scenario.Scenario{
	{Name: "Create a list", BaseURL: "http://localhost:8000", Steps: []scenario.Step{{Kind: scenario.KindNavigate, URL: "/negative-keywords/"}}},
}

func passedResult() harness.RunResult {
	return harness.RunResult{ID: "run", Scenarios: []harness.ScenarioReport{{Name: "Create a list", Status: harness.StatusPassed, Passed: true}}}
}

func resultWith(status harness.Status) harness.RunResult {
	return harness.RunResult{ID: "run", Scenarios: []harness.ScenarioReport{{Name: "Create a list", Status: status}}}
}

type fixture struct {
	app    *Application
	loader *MockScenarioLoader
	batch  *MockBatchRunner
	gen    *MockTestFileGenerator
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	// config is the effective runner configuration of the last run.
	config harness.Config
}

func newFixture(t *testing.T) *fixture {
	controller := gomock.NewController(t)
	f := &fixture{
		loader: NewMockScenarioLoader(controller),
		batch:  NewMockBatchRunner(controller),
		gen:    NewMockTestFileGenerator(controller),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	f.app = NewApplication().
		WithLoader(f.loader).
		WithGenerator(f.gen).
		WithOutput(f.stdout, f.stderr).
		WithLauncherResolver(func(string) (browser.Launcher, error) {
			return browsertest.NewLauncher(nil), nil
		}).
		WithRunnerFactory(func(launcher browser.Launcher, opts ...runner.Option) BatchRunner {
			f.config = runner.NewRunner(launcher, opts...).Config()
			return f.batch
		})
	return f
}

func (f *fixture) expectRun(result harness.RunResult) {
	f.loader.EXPECT().Load(gomock.Any(), gomock.Any()).Return(listScenarios, nil).Times(1)
	f.batch.EXPECT().RunAll(gomock.Any(), gomock.Any()).Return(result).Times(1)
}

func TestApplication_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("should load the given paths with the tag expression", func(t *testing.T) {
		f := newFixture(t)
		f.loader.
			EXPECT().
			Load([]string{"scenarios/lists.yaml", "features"}, scenario.LoadOptions{Tags: "@smoke and not @slow"}).
			Return(listScenarios, nil).
			Times(1)
		f.batch.EXPECT().RunAll(gomock.Any(), listScenarios).Return(passedResult()).Times(1)

		code := f.app.Execute(ctx, []string{"run", "--tags", "@smoke and not @slow", "scenarios/lists.yaml", "features"})

		require.Equal(t, ExitPassed, code)
		require.Empty(t, f.stderr.String())
	})

	t.Run("should map the run outcome to the exit code", func(t *testing.T) {
		tests := []struct {
			name   string
			result harness.RunResult
			code   int
		}{
			{"passed", passedResult(), ExitPassed},
			{"failed", resultWith(harness.StatusFailed), ExitFailed},
			{"errored", resultWith(harness.StatusErrored), ExitHarnessError},
			{"aborted", harness.RunResult{Aborted: true, Scenarios: []harness.ScenarioReport{{Status: harness.StatusSkipped}}}, ExitHarnessError},
			{"cancelled", resultWith(harness.StatusCancelled), ExitCancelled},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				f.expectRun(tt.result)

				require.Equal(t, tt.code, f.app.Execute(ctx, []string{"run"}))
				require.Empty(t, f.stderr.String())
			})
		}
	})

	t.Run("should exit with the usage code when scenarios fail to load", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, scenario.ErrNoScenarios).Times(1)

		code := f.app.Execute(ctx, []string{"run", "missing"})

		require.Equal(t, ExitUsage, code)
		require.Contains(t, f.stderr.String(), scenario.ErrNoScenarios.Error())
	})

	t.Run("should exit with the usage code on an unknown flag", func(t *testing.T) {
		f := newFixture(t)
		require.Equal(t, ExitUsage, f.app.Execute(ctx, []string{"run", "--slow-mo", "1s"}))
	})

	t.Run("should exit with the usage code on an unknown engine", func(t *testing.T) {
		f := newFixture(t)
		f.app.WithLauncherResolver(runner.LauncherFor)
		f.loader.EXPECT().Load(gomock.Any(), gomock.Any()).Return(listScenarios, nil).Times(1)

		code := f.app.Execute(ctx, []string{"run", "--engine", "webkit"})

		require.Equal(t, ExitUsage, code)
		require.Contains(t, f.stderr.String(), `unknown engine "webkit"`)
	})

	t.Run("should reject negative timeouts", func(t *testing.T) {
		f := newFixture(t)
		require.Equal(t, ExitUsage, f.app.Execute(ctx, []string{"run", "--panel-timeout=-1s"}))
		require.Contains(t, f.stderr.String(), "--panel-timeout")
	})

	t.Run("should pass flags to the runner configuration", func(t *testing.T) {
		f := newFixture(t)
		f.expectRun(passedResult())

		code := f.app.Execute(ctx, []string{"run",
			"--headed", "--browser-bin", "/opt/chromium",
			"--timeout", "2s", "--navigation-timeout", "45s", "--poll-interval", "50ms",
			"--parallel", "4", "--fail-fast", "--no-color", "--screenshot-dir", "shots", "--skip-visual"})

		require.Equal(t, ExitPassed, code)
		require.True(t, f.config.Headed)
		require.Equal(t, "/opt/chromium", f.config.BrowserBin)
		require.Equal(t, 2*time.Second, f.config.ElementTimeout)
		require.Equal(t, 45*time.Second, f.config.NavigationTimeout)
		require.Equal(t, 50*time.Millisecond, f.config.PollInterval)
		require.Equal(t, harness.DefaultPanelTimeout, f.config.PanelTimeout)
		require.Equal(t, 4, f.config.Parallel)
		require.True(t, f.config.FailFast)
		require.True(t, f.config.NoColor)
		require.Equal(t, "shots", f.config.ScreenshotDir)
		require.True(t, f.config.SkipVisual)
	})

	t.Run("should layer config file, environment and flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "uiharness.yaml")
		require.NoError(t, os.WriteFile(path, []byte("parallel: 2\nfail-fast: true\nnavigation-timeout: 10s\nengine: chromedp\n"), 0o644))
		t.Setenv("UIHARNESS_PARALLEL", "3")
		t.Setenv("UIHARNESS_NETWORK_TIMEOUT", "7s")

		f := newFixture(t)
		var engine string
		f.app.WithLauncherResolver(func(name string) (browser.Launcher, error) {
			engine = name
			return browsertest.NewLauncher(nil), nil
		})
		f.expectRun(passedResult())

		code := f.app.Execute(ctx, []string{"run", "--config", path, "--navigation-timeout", "20s"})

		require.Equal(t, ExitPassed, code)
		require.Equal(t, "chromedp", engine)
		require.Equal(t, 3, f.config.Parallel)
		require.True(t, f.config.FailFast)
		require.Equal(t, 7*time.Second, f.config.NetworkTimeout)
		require.Equal(t, 20*time.Second, f.config.NavigationTimeout)
	})

	t.Run("should fail on an unreadable config file", func(t *testing.T) {
		f := newFixture(t)
		code := f.app.Execute(ctx, []string{"run", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
		require.Equal(t, ExitUsage, code)
	})

	t.Run("should let the base URL flag override the scenario files", func(t *testing.T) {
		f := newFixture(t)
		f.loader.EXPECT().Load(gomock.Any(), gomock.Any()).Return([]scenario.Scenario{
			{Name: "a", BaseURL: "http://localhost:8000"},
			{Name: "b"},
		}, nil).Times(1)
		f.batch.
			EXPECT().
			RunAll(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, scenarios []scenario.Scenario) harness.RunResult {
				for _, sc := range scenarios {
					require.Equal(t, "https://staging.example.com", sc.BaseURL)
				}
				return passedResult()
			}).
			Times(1)

		code := f.app.Execute(ctx, []string{"run", "--base-url", "https://staging.example.com"})
		require.Equal(t, ExitPassed, code)
	})

	t.Run("should write JSON and HTML reports", func(t *testing.T) {
		dir := t.TempDir()
		f := newFixture(t)
		f.expectRun(resultWith(harness.StatusFailed))

		code := f.app.Execute(ctx, []string{"run",
			"--report-json", filepath.Join(dir, "report.json"),
			"--report-html", filepath.Join(dir, "report.html")})

		require.Equal(t, ExitFailed, code)
		data, err := os.ReadFile(filepath.Join(dir, "report.json"))
		require.NoError(t, err)
		var decoded harness.RunResult
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, "run", decoded.ID)
		require.FileExists(t, filepath.Join(dir, "report.html"))
	})

	t.Run("should exit with the harness code when a report cannot be written", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))
		f := newFixture(t)
		f.expectRun(passedResult())

		code := f.app.Execute(ctx, []string{"run", "--report-json", filepath.Join(blocker, "report.json")})

		require.Equal(t, ExitHarnessError, code)
		require.Contains(t, f.stderr.String(), "json report")
	})

	t.Run("should report cancellation when the context is done", func(t *testing.T) {
		f := newFixture(t)
		f.expectRun(passedResult())
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		require.Equal(t, ExitCancelled, f.app.Execute(cancelled, []string{"run"}))
	})
}

func TestApplication_Generate(t *testing.T) {
	t.Run("should generate into the working directory by default", func(t *testing.T) {
		f := newFixture(t)
		dir, err := os.Getwd()
		require.NoError(t, err)
		f.gen.
			EXPECT().
			Generate(gomock.Any(), generator.Options{Dir: dir, Scenarios: []string{"features", "scenarios"}, Tags: "@smoke", Output: generator.DefaultOutput}).
			Return(filepath.Join(dir, generator.DefaultOutput), nil).
			Times(1)

		code := f.app.Execute(context.Background(), []string{"generate", "--scenarios", "features,scenarios", "--tags", "@smoke"})

		require.Equal(t, ExitPassed, code)
		require.Contains(t, f.stdout.String(), "wrote "+filepath.Join(dir, generator.DefaultOutput))
	})

	t.Run("should surface generator errors as usage errors", func(t *testing.T) {
		f := newFixture(t)
		f.gen.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("", errors.New("scenarios: no such file")).Times(1)

		code := f.app.Execute(context.Background(), []string{"generate", "--dir", t.TempDir()})

		require.Equal(t, ExitUsage, code)
		require.Contains(t, f.stderr.String(), "no such file")
	})
}

func TestExitCodeFor(t *testing.T) {
	t.Run("should prefer cancellation over everything", func(t *testing.T) {
		result := harness.RunResult{Aborted: true, Scenarios: []harness.ScenarioReport{{Status: harness.StatusFailed}}}
		require.Equal(t, ExitCancelled, ExitCodeFor(result, true))
	})

	t.Run("should prefer harness errors over failures", func(t *testing.T) {
		result := harness.RunResult{Scenarios: []harness.ScenarioReport{{Status: harness.StatusFailed}, {Status: harness.StatusErrored}}}
		require.Equal(t, ExitHarnessError, ExitCodeFor(result, false))
	})

	t.Run("should fail when a scenario was skipped by fail fast", func(t *testing.T) {
		result := harness.RunResult{Scenarios: []harness.ScenarioReport{{Status: harness.StatusPassed, Passed: true}, {Status: harness.StatusSkipped}}}
		require.Equal(t, ExitFailed, ExitCodeFor(result, false))
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("should build json and console loggers", func(t *testing.T) {
		for _, format := range []string{"json", "console"} {
			logger, err := newLogger("debug", format)
			require.NoError(t, err)
			require.NotNil(t, logger)
		}
	})

	t.Run("should reject unknown levels and formats", func(t *testing.T) {
		_, err := newLogger("loud", "json")
		require.Error(t, err)
		_, err = newLogger("info", "xml")
		require.ErrorContains(t, err, "unknown format")
	})
}
