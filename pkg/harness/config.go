package harness

import "time"

const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultElementTimeout    = 5 * time.Second
	DefaultPanelTimeout      = 5 * time.Second
	DefaultNetworkTimeout    = 5 * time.Second
	DefaultPollInterval      = 200 * time.Millisecond
	DefaultCaptureLimit      = 5000
)

// Config holds runtime configuration settings for a run.
// Settings are merged from code, config file, environment and flags (last wins).
type Config struct {
	// Engine selects the browser driver: "rod" (default) or "chromedp".
	Engine string

	// BrowserBin is an explicit Chromium binary. Empty means discover one.
	BrowserBin string

	// Headed shows the browser window. The zero value runs headless.
	Headed bool

	// ViewportWidth and ViewportHeight size the page. Zero keeps 1280x720.
	ViewportWidth  int
	ViewportHeight int

	// BaseURL resolves relative navigation targets.
	BaseURL string

	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	PanelTimeout      time.Duration
	NetworkTimeout    time.Duration
	PollInterval      time.Duration

	// Parallel is the number of scenarios run at once, each with its own browser.
	Parallel int

	// FailFast stops the batch on first scenario failure.
	FailFast bool

	// NoColor disables colored output.
	NoColor bool

	// DisableReporter disables the console reporter output.
	DisableReporter bool

	// ScreenshotDir receives a PNG for each scenario halted by a fatal failure.
	ScreenshotDir string

	// CaptureLimit bounds the per-scenario network buffer.
	CaptureLimit int

	// SkipVisual reports presentation-only checks, like CSS class
	// assertions, as skipped instead of running them.
	SkipVisual bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Engine:            "rod",
		ViewportWidth:     1280,
		ViewportHeight:    720,
		NavigationTimeout: DefaultNavigationTimeout,
		ElementTimeout:    DefaultElementTimeout,
		PanelTimeout:      DefaultPanelTimeout,
		NetworkTimeout:    DefaultNetworkTimeout,
		PollInterval:      DefaultPollInterval,
		Parallel:          1,
		CaptureLimit:      DefaultCaptureLimit,
	}
}

// MergeConfigs combines multiple configs into one, starting from DefaultConfig.
// Later configs override earlier ones (last non-zero value wins).
func MergeConfigs(configs ...*Config) Config {
	result := DefaultConfig()

	for _, cfg := range configs {
		if cfg == nil {
			continue
		}

		if cfg.Engine != "" {
			result.Engine = cfg.Engine
		}
		if cfg.BrowserBin != "" {
			result.BrowserBin = cfg.BrowserBin
		}
		if cfg.Headed {
			result.Headed = true
		}
		if cfg.ViewportWidth > 0 {
			result.ViewportWidth = cfg.ViewportWidth
		}
		if cfg.ViewportHeight > 0 {
			result.ViewportHeight = cfg.ViewportHeight
		}
		if cfg.BaseURL != "" {
			result.BaseURL = cfg.BaseURL
		}
		if cfg.NavigationTimeout > 0 {
			result.NavigationTimeout = cfg.NavigationTimeout
		}
		if cfg.ElementTimeout > 0 {
			result.ElementTimeout = cfg.ElementTimeout
		}
		if cfg.PanelTimeout > 0 {
			result.PanelTimeout = cfg.PanelTimeout
		}
		if cfg.NetworkTimeout > 0 {
			result.NetworkTimeout = cfg.NetworkTimeout
		}
		if cfg.PollInterval > 0 {
			result.PollInterval = cfg.PollInterval
		}
		if cfg.Parallel > 0 {
			result.Parallel = cfg.Parallel
		}
		if cfg.FailFast {
			result.FailFast = true
		}
		if cfg.NoColor {
			result.NoColor = true
		}
		if cfg.DisableReporter {
			result.DisableReporter = true
		}
		if cfg.ScreenshotDir != "" {
			result.ScreenshotDir = cfg.ScreenshotDir
		}
		if cfg.CaptureLimit > 0 {
			result.CaptureLimit = cfg.CaptureLimit
		}
		if cfg.SkipVisual {
			result.SkipVisual = true
		}
	}

	return result
}
