package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

const (
	environmentPrefix = "UIHARNESS"

	flagNameConfig            = "config"
	flagNameHeaded            = "headed"
	flagNameEngine            = "engine"
	flagNameBrowserBin        = "browser-bin"
	flagNameBaseURL           = "base-url"
	flagNameTimeout           = "timeout"
	flagNameNavigationTimeout = "navigation-timeout"
	flagNamePanelTimeout      = "panel-timeout"
	flagNameNetworkTimeout    = "network-timeout"
	flagNamePollInterval      = "poll-interval"
	flagNameTags              = "tags"
	flagNameParallel          = "parallel"
	flagNameFailFast          = "fail-fast"
	flagNameNoColor           = "no-color"
	flagNameReportJSON        = "report-json"
	flagNameReportHTML        = "report-html"
	flagNameScreenshotDir     = "screenshot-dir"
	flagNameCaptureLimit      = "capture-limit"
	flagNameLogLevel          = "log-level"
	flagNameLogFormat         = "log-format"
	flagNameViewportWidth     = "viewport-width"
	flagNameViewportHeight    = "viewport-height"
	flagNameSkipVisual        = "skip-visual"

	flagNameScenarios = "scenarios"
	flagNameOutput    = "output"
	flagNameDir       = "dir"

	defaultLogLevel  = "warn"
	defaultLogFormat = "json"
)

// runSettings is everything the run command reads from viper besides the
// harness configuration itself.
type runSettings struct {
	Tags       string
	ReportJSON string
	ReportHTML string
	LogLevel   string
	LogFormat  string
}

// defineRunFlags declares the run command flags. Their defaults mirror
// harness.DefaultConfig so --help shows the effective values.
func defineRunFlags(flags *pflag.FlagSet) {
	defaults := harness.DefaultConfig()

	flags.String(flagNameConfig, "", "YAML config file")
	flags.Bool(flagNameHeaded, false, "show the browser window")
	flags.String(flagNameEngine, defaults.Engine, "browser engine: rod or chromedp")
	flags.String(flagNameBrowserBin, "", "Chromium binary (default: CHROME_PATH or a discovered install)")
	flags.String(flagNameBaseURL, "", "base URL for relative navigation, overrides the scenario files")
	flags.Duration(flagNameTimeout, defaults.ElementTimeout, "element wait timeout")
	flags.Duration(flagNameNavigationTimeout, defaults.NavigationTimeout, "page load timeout")
	flags.Duration(flagNamePanelTimeout, defaults.PanelTimeout, "panel transition timeout")
	flags.Duration(flagNameNetworkTimeout, defaults.NetworkTimeout, "network assertion timeout")
	flags.Duration(flagNamePollInterval, defaults.PollInterval, "interval between condition checks")
	flags.String(flagNameTags, "", `tag expression, e.g. "@smoke and not @slow"`)
	flags.Int(flagNameParallel, defaults.Parallel, "scenarios run at once, each in its own browser")
	flags.Bool(flagNameFailFast, false, "stop after the first failed scenario")
	flags.Bool(flagNameNoColor, false, "disable colored output")
	flags.String(flagNameReportJSON, "", "write the JSON report to this path")
	flags.String(flagNameReportHTML, "", "write the HTML report to this path")
	flags.String(flagNameScreenshotDir, "", "save a screenshot of every scenario halted by a fatal failure")
	flags.Int(flagNameCaptureLimit, defaults.CaptureLimit, "network events kept per scenario")
	flags.Int(flagNameViewportWidth, defaults.ViewportWidth, "viewport width")
	flags.Int(flagNameViewportHeight, defaults.ViewportHeight, "viewport height")
	flags.Bool(flagNameSkipVisual, false, "skip presentation-only checks such as CSS class assertions")
	flags.String(flagNameLogLevel, defaultLogLevel, "log level: debug, info, warn or error")
	flags.String(flagNameLogFormat, defaultLogFormat, "log format: json or console")
}

// bindFlags makes every flag readable through loader under its own name,
// with UIHARNESS_<NAME> environment variables and config file keys as
// lower precedence sources.
func bindFlags(loader *viper.Viper, flags *pflag.FlagSet) error {
	loader.SetEnvPrefix(environmentPrefix)
	loader.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	loader.AutomaticEnv()

	var bindErr error
	flags.VisitAll(func(flag *pflag.Flag) {
		if bindErr != nil {
			return
		}
		if err := loader.BindPFlag(flag.Name, flag); err != nil {
			bindErr = fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	})
	return bindErr
}

// readConfigFile loads the --config file, if any. Keys use the flag names.
func readConfigFile(loader *viper.Viper) error {
	path := loader.GetString(flagNameConfig)
	if path == "" {
		return nil
	}
	loader.SetConfigFile(path)
	if err := loader.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func harnessConfig(loader *viper.Viper) (harness.Config, error) {
	cfg := harness.Config{
		Engine:            strings.TrimSpace(loader.GetString(flagNameEngine)),
		BrowserBin:        strings.TrimSpace(loader.GetString(flagNameBrowserBin)),
		Headed:            loader.GetBool(flagNameHeaded),
		ViewportWidth:     loader.GetInt(flagNameViewportWidth),
		ViewportHeight:    loader.GetInt(flagNameViewportHeight),
		BaseURL:           strings.TrimSpace(loader.GetString(flagNameBaseURL)),
		NavigationTimeout: loader.GetDuration(flagNameNavigationTimeout),
		ElementTimeout:    loader.GetDuration(flagNameTimeout),
		PanelTimeout:      loader.GetDuration(flagNamePanelTimeout),
		NetworkTimeout:    loader.GetDuration(flagNameNetworkTimeout),
		PollInterval:      loader.GetDuration(flagNamePollInterval),
		Parallel:          loader.GetInt(flagNameParallel),
		FailFast:          loader.GetBool(flagNameFailFast),
		NoColor:           loader.GetBool(flagNameNoColor),
		ScreenshotDir:     strings.TrimSpace(loader.GetString(flagNameScreenshotDir)),
		CaptureLimit:      loader.GetInt(flagNameCaptureLimit),
		SkipVisual:        loader.GetBool(flagNameSkipVisual),
	}
	if err := validateConfig(cfg); err != nil {
		return harness.Config{}, err
	}
	return harness.MergeConfigs(&cfg), nil
}

func validateConfig(cfg harness.Config) error {
	var problems []error
	durations := []struct {
		flag  string
		value time.Duration
	}{
		{flagNameTimeout, cfg.ElementTimeout},
		{flagNameNavigationTimeout, cfg.NavigationTimeout},
		{flagNamePanelTimeout, cfg.PanelTimeout},
		{flagNameNetworkTimeout, cfg.NetworkTimeout},
		{flagNamePollInterval, cfg.PollInterval},
	}
	for _, d := range durations {
		if d.value < 0 {
			problems = append(problems, fmt.Errorf("--%s must not be negative", d.flag))
		}
	}
	if cfg.Parallel < 0 {
		problems = append(problems, fmt.Errorf("--%s must not be negative", flagNameParallel))
	}
	if cfg.CaptureLimit < 0 {
		problems = append(problems, fmt.Errorf("--%s must not be negative", flagNameCaptureLimit))
	}
	return errors.Join(problems...)
}

func readRunSettings(loader *viper.Viper) runSettings {
	return runSettings{
		Tags:       strings.TrimSpace(loader.GetString(flagNameTags)),
		ReportJSON: strings.TrimSpace(loader.GetString(flagNameReportJSON)),
		ReportHTML: strings.TrimSpace(loader.GetString(flagNameReportHTML)),
		LogLevel:   loader.GetString(flagNameLogLevel),
		LogFormat:  loader.GetString(flagNameLogFormat),
	}
}
