// Package app is the uiharness command line application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/guldbach/google-ads-builder-sub001/internal/generator"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/runner"
	"github.com/guldbach/google-ads-builder-sub001/pkg/scenario"
)

const (
	commandUseName           = "uiharness"
	commandShortDescription  = "Drive a browser through UI scenarios and report what happened"
	runUseName               = "run [paths...]"
	runShortDescription      = "Run scenario files (.yaml, .yml, .json, .feature)"
	generateUseName          = "generate"
	generateShortDescription = "Write a go test file that runs scenario files"
	defaultScenariosDir      = "scenarios"
)

type (
	// RunnerFactory builds the batch runner for a resolved launcher.
	RunnerFactory func(launcher browser.Launcher, opts ...runner.Option) BatchRunner
	// LauncherResolver maps an engine name to its launcher.
	LauncherResolver func(engine string) (browser.Launcher, error)
)

// Application builds and executes the uiharness commands.
type Application struct {
	loader      ScenarioLoader
	newRunner   RunnerFactory
	launcherFor LauncherResolver
	generator   TestFileGenerator
	stdout      io.Writer
	stderr      io.Writer
}

// NewApplication creates an Application with the real browser engines.
func NewApplication() *Application {
	return &Application{
		loader: scenarioFiles{},
		newRunner: func(launcher browser.Launcher, opts ...runner.Option) BatchRunner {
			return runner.NewRunner(launcher, opts...)
		},
		launcherFor: runner.LauncherFor,
		generator:   generator.New(),
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
}

// WithLoader overrides how scenario files are loaded.
func (a *Application) WithLoader(loader ScenarioLoader) *Application {
	a.loader = loader
	return a
}

// WithRunnerFactory overrides how the batch runner is built.
func (a *Application) WithRunnerFactory(factory RunnerFactory) *Application {
	a.newRunner = factory
	return a
}

// WithLauncherResolver overrides engine selection.
func (a *Application) WithLauncherResolver(resolver LauncherResolver) *Application {
	a.launcherFor = resolver
	return a
}

// WithGenerator overrides the test file generator.
func (a *Application) WithGenerator(g TestFileGenerator) *Application {
	a.generator = g
	return a
}

// WithOutput redirects the reporter and error output.
func (a *Application) WithOutput(stdout, stderr io.Writer) *Application {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// Execute runs the command line args and returns the process exit code.
func (a *Application) Execute(ctx context.Context, args []string) int {
	root := a.Command()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	var exitErr *ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && exitErr.Err == nil:
	default:
		fmt.Fprintf(a.stderr, "%s: %v\n", commandUseName, err)
	}
	return exitCodeOf(err)
}

// Command builds the cobra command tree. Each call gets fresh viper state.
func (a *Application) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           commandUseName,
		Short:         commandShortDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.AddCommand(a.runCommand(), a.generateCommand())
	return root
}

func (a *Application) runCommand() *cobra.Command {
	loader := viper.New()
	command := &cobra.Command{
		Use:   runUseName,
		Short: runShortDescription,
		RunE: func(command *cobra.Command, args []string) error {
			return a.run(command.Context(), loader, args)
		},
	}
	defineRunFlags(command.Flags())
	command.PreRunE = func(command *cobra.Command, _ []string) error {
		if err := bindFlags(loader, command.Flags()); err != nil {
			return usageError(err)
		}
		if err := readConfigFile(loader); err != nil {
			return usageError(err)
		}
		return nil
	}
	return command
}

func (a *Application) run(ctx context.Context, loader *viper.Viper, paths []string) error {
	cfg, err := harnessConfig(loader)
	if err != nil {
		return usageError(err)
	}
	settings := readRunSettings(loader)

	logger, err := newLogger(settings.LogLevel, settings.LogFormat)
	if err != nil {
		return usageError(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	scenarios, err := a.loader.Load(paths, scenario.LoadOptions{Tags: settings.Tags})
	if err != nil {
		return usageError(err)
	}
	if cfg.BaseURL != "" {
		for i := range scenarios {
			scenarios[i].BaseURL = cfg.BaseURL
		}
	}

	launcher, err := a.launcherFor(cfg.Engine)
	if err != nil {
		return usageError(err)
	}
	logger.Info("run_started",
		zap.String("engine", launcher.Name()),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("parallel", cfg.Parallel))

	batch := a.newRunner(launcher,
		runner.WithConfig(&cfg),
		runner.WithLogger(logger),
		runner.WithOutput(a.stdout))
	result := batch.RunAll(ctx, scenarios)

	if err := writeReports(settings, result, logger); err != nil {
		return &ExitError{Code: ExitHarnessError, Err: err}
	}

	if code := ExitCodeFor(result, ctx.Err() != nil); code != ExitPassed {
		return &ExitError{Code: code}
	}
	return nil
}

func writeReports(settings runSettings, result harness.RunResult, logger *zap.Logger) error {
	var errs []error
	if settings.ReportJSON != "" {
		if err := harness.GenerateJSONReport(settings.ReportJSON, result); err != nil {
			errs = append(errs, fmt.Errorf("json report: %w", err))
		} else {
			logger.Info("report_written", zap.String("format", "json"), zap.String("path", settings.ReportJSON))
		}
	}
	if settings.ReportHTML != "" {
		if err := harness.GenerateHTMLReport(settings.ReportHTML, result); err != nil {
			errs = append(errs, fmt.Errorf("html report: %w", err))
		} else {
			logger.Info("report_written", zap.String("format", "html"), zap.String("path", settings.ReportHTML))
		}
	}
	return errors.Join(errs...)
}

func (a *Application) generateCommand() *cobra.Command {
	var opts generator.Options
	command := &cobra.Command{
		Use:   generateUseName,
		Short: generateShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			if opts.Dir == "" {
				dir, err := os.Getwd()
				if err != nil {
					return usageError(err)
				}
				opts.Dir = dir
			}
			path, err := a.generator.Generate(command.Context(), opts)
			if err != nil {
				return usageError(err)
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", path)
			return nil
		},
	}
	flags := command.Flags()
	flags.StringSliceVar(&opts.Scenarios, flagNameScenarios, []string{defaultScenariosDir}, "scenario files or directories, relative to the package")
	flags.StringVar(&opts.Tags, flagNameTags, "", "tag expression baked into the generated test")
	flags.StringVar(&opts.Output, flagNameOutput, generator.DefaultOutput, "generated file name")
	flags.StringVar(&opts.Dir, flagNameDir, "", "package directory (default: the working directory)")
	return command
}

// scenarioFiles loads scenarios from disk.
type scenarioFiles struct{}

func (scenarioFiles) Load(paths []string, opts scenario.LoadOptions) ([]scenario.Scenario, error) {
	return scenario.Load(paths, opts)
}
