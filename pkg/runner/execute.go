package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guldbach/google-ads-builder-sub001/pkg/action"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/locate"
	"github.com/guldbach/google-ads-builder-sub001/pkg/network"
	"github.com/guldbach/google-ads-builder-sub001/pkg/panel"
	"github.com/guldbach/google-ads-builder-sub001/pkg/scenario"
)

// PanicError is a step that panicked. It is classified as an internal error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// execution holds the components wired to one session for one scenario.
type execution struct {
	sc       scenario.Scenario
	config   harness.Config
	logger   *zap.Logger
	session  *browser.Session
	finder   *locate.Finder
	recorder *action.Recorder
	observer *network.Observer
	panels   *panel.Controller
	checks   *harness.Collector
	warnings []string
}

func (r *Runner) newExecution(sc scenario.Scenario, session *browser.Session, logger *zap.Logger) *execution {
	cfg := r.config
	driver := session.Driver()
	finder := locate.New(driver,
		locate.WithTimeout(cfg.ElementTimeout),
		locate.WithInterval(cfg.PollInterval),
		locate.WithLogger(logger))
	recorder := action.New(driver, finder, action.WithLogger(logger), action.WithClock(r.now))
	return &execution{
		sc:       sc,
		config:   cfg,
		logger:   logger,
		session:  session,
		finder:   finder,
		recorder: recorder,
		observer: network.New(driver,
			network.WithLogger(logger),
			network.WithCaptureLimit(cfg.CaptureLimit),
			network.WithPollInterval(cfg.PollInterval),
			network.WithTimeout(cfg.NetworkTimeout)),
		panels: panel.New(driver, recorder,
			panel.WithLogger(logger),
			panel.WithTimeout(cfg.PanelTimeout),
			panel.WithInterval(cfg.PollInterval),
			panel.WithClock(r.now)),
		checks: harness.NewCollector(harness.WithClock(r.now)),
	}
}

// run executes sc and builds its report. The session, when one could be
// opened, is closed exactly once on every path.
func (r *Runner) run(ctx context.Context, sc scenario.Scenario, hooks *harness.HookExecutor, rep harness.Reporter) (report harness.ScenarioReport) {
	sc = sc.Clone()
	started := r.now()
	report = harness.ScenarioReport{
		ID:        uuid.NewString(),
		Name:      sc.Name,
		Source:    sc.Location(),
		Tags:      slices.Clone(sc.Tags),
		StartedAt: started,
	}
	logger := r.logger.With(zap.String("scenario", sc.Name), zap.String("scenario_id", report.ID))
	info := sc.Info()

	hooks.ExecuteBeforeScenario(info)
	rep.ScenarioStart(sc.Name, sc.Tags)
	defer func() {
		report.Duration = r.now().Sub(started)
		rep.ScenarioEnd(report)
		rep.AddScenarioResult(report.Status)
		logger.Info("scenario_finished",
			zap.String("status", string(report.Status)),
			zap.Int("assertions", len(report.Assertions)),
			zap.Duration("took", report.Duration))
		hooks.ExecuteAfterScenario(info, report)
	}()

	abort := func(status harness.Status, err error) harness.ScenarioReport {
		report.Status = status
		report.Error = err.Error()
		report.ErrorKind = harness.KindOf(err)
		for i, st := range sc.Steps {
			report.Steps = append(report.Steps, harness.StepResult{
				Index: i, Kind: string(st.Kind), Description: st.Describe(), Status: harness.StepSkipped, Fatal: st.Fatal(),
			})
			rep.StepSkipped(st.Describe())
			rep.AddStepResult(harness.StepSkipped)
		}
		return report
	}

	if err := sc.Validate(); err != nil {
		return abort(harness.StatusErrored, err)
	}
	if err := ctx.Err(); err != nil {
		return abort(harness.StatusCancelled, err)
	}

	session, err := browser.Open(ctx, r.launcher, r.launchOptions(),
		browser.WithLogger(logger),
		browser.WithNavigationTimeout(r.config.NavigationTimeout),
		browser.WithPollInterval(r.config.PollInterval))
	if err != nil {
		if ctx.Err() != nil {
			return abort(harness.StatusCancelled, ctx.Err())
		}
		return abort(harness.StatusErrored, err)
	}
	stopWatch := watchCancel(ctx, session, logger)
	defer func() {
		stopWatch()
		if err := session.Close(); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("browser close: %v", err))
		}
	}()

	x := r.newExecution(sc, session, logger)
	if err := x.definePanels(); err != nil {
		return abort(harness.StatusErrored, err)
	}
	if err := x.observer.StartCapture(); err != nil {
		rep.Warning(fmt.Sprintf("network capture unavailable: %v", err))
	}

	var (
		decisive  error
		nonFatal  bool
		cancelErr error
	)
	for i, st := range sc.Steps {
		desc := st.Describe()
		if decisive == nil && cancelErr == nil && ctx.Err() != nil {
			cancelErr = ctx.Err()
		}
		if decisive != nil || cancelErr != nil || (r.config.SkipVisual && st.Kind.Visual()) {
			report.Steps = append(report.Steps, harness.StepResult{
				Index: i, Kind: string(st.Kind), Description: desc, Status: harness.StepSkipped, Fatal: st.Fatal(),
			})
			rep.StepSkipped(desc)
			rep.AddStepResult(harness.StepSkipped)
			continue
		}

		stepInfo := harness.StepInfo{Index: i, Kind: string(st.Kind), Description: desc}
		hooks.ExecuteBeforeStep(stepInfo)
		x.checks.Begin(i, st.Fatal())
		before := len(x.checks.Results())
		actionsBefore := len(x.recorder.Records())

		stepStart := r.now()
		err := x.safeStep(ctx, st)
		result := harness.StepResult{
			Index:       i,
			Kind:        string(st.Kind),
			Description: desc,
			Fatal:       st.Fatal(),
			StartedAt:   stepStart,
			Duration:    r.now().Sub(stepStart),
		}

		for _, rec := range x.recorder.Records()[actionsBefore:] {
			if rec.Warning != "" {
				x.warnings = append(x.warnings, rec.Warning)
				rep.Warning(rec.Warning)
			}
		}

		cancelledNow := err != nil && ctx.Err() != nil
		if cancelledNow {
			// The watcher tore the browser down under the step.
			err = fmt.Errorf("%s: %w", desc, ctx.Err())
		}
		switch {
		case err == nil:
			result.Status = harness.StepPassed
			rep.StepPassed(desc)
		default:
			result.Status = harness.StepFailed
			result.Error = err.Error()
			result.ErrorKind = harness.KindOf(err)
			if cancelledNow {
				result.ErrorKind = harness.KindCancelled
			}
			if len(x.checks.Results()) == before && !cancelledNow {
				x.recordImplicit(st, err)
			}
			rep.StepFailed(desc, err.Error())
			switch {
			case cancelledNow:
				cancelErr = ctx.Err()
			case st.Fatal():
				decisive = err
			default:
				nonFatal = true
				if report.Error == "" {
					report.Error = err.Error()
					report.ErrorKind = result.ErrorKind
				}
			}
		}
		rep.AddStepResult(result.Status)
		report.Steps = append(report.Steps, result)
		hooks.ExecuteAfterStep(stepInfo, err)
	}

	if decisive != nil && r.config.ScreenshotDir != "" {
		path, err := x.screenshot(ctx, report.ID)
		if err != nil {
			logger.Warn("screenshot", zap.Error(err))
			x.warnings = append(x.warnings, fmt.Sprintf("screenshot: %v", err))
		} else {
			report.Screenshot = path
		}
	}

	x.observer.StopCapture()
	report.Network = x.observer.Events()
	report.Console = x.observer.Console()
	report.Assertions = x.checks.Results()
	report.Actions = x.recorder.Records()
	report.Panels = x.panels.Transitions()
	report.Warnings = append(report.Warnings, x.warnings...)
	report.Warnings = append(report.Warnings, x.observer.Warnings()...)

	switch {
	case cancelErr != nil:
		report.Status = harness.StatusCancelled
		report.Error = cancelErr.Error()
		report.ErrorKind = harness.KindCancelled
	case decisive != nil:
		report.Status = harness.StatusFailed
		report.Error = decisive.Error()
		report.ErrorKind = harness.KindOf(decisive)
		if report.ErrorKind == harness.KindInternal || report.ErrorKind == harness.KindLaunch {
			report.Status = harness.StatusErrored
		}
	case nonFatal || !x.checks.Passed():
		report.Status = harness.StatusFailed
	default:
		report.Status = harness.StatusPassed
		report.Passed = true
	}
	return report
}

// safeStep runs one step and turns a panic into a *PanicError.
func (x *execution) safeStep(ctx context.Context, st scenario.Step) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			x.logger.Error("step_panic", zap.Any("panic", rec), zap.ByteString("stack", stack))
			err = &PanicError{Value: rec, Stack: stack}
		}
	}()
	return x.step(ctx, st)
}

func (x *execution) locateOptions(st scenario.Step) locate.Options {
	return locate.Options{Timeout: st.Timeout}
}

func (x *execution) step(ctx context.Context, st scenario.Step) error {
	opts := x.locateOptions(st)

	switch st.Kind {
	case scenario.KindNavigate:
		return x.navigate(ctx, st)
	case scenario.KindClick:
		return x.recorder.Click(ctx, st.Target, opts)
	case scenario.KindHover:
		return x.recorder.Hover(ctx, st.Target, opts)
	case scenario.KindFill:
		return x.recorder.Fill(ctx, st.Target, st.Value, opts)
	case scenario.KindSelect:
		return x.recorder.Select(ctx, st.Target, st.SelectValues(), opts)
	case scenario.KindPress:
		if st.Target.IsZero() {
			return x.recorder.Press(ctx, st.Key)
		}
		return x.recorder.PressOn(ctx, st.Target, st.Key, opts)
	case scenario.KindWaitFor:
		opts.Expect = locate.AtLeast(1)
		if st.Count > 0 {
			opts.Expect = locate.Exactly(st.Count)
		}
		_, err := x.finder.Find(ctx, st.Target, opts)
		return err
	case scenario.KindAssertVisible:
		return x.assertVisible(ctx, st, opts)
	case scenario.KindAssertAbsent:
		opts.Expect = locate.Absent()
		found, err := x.finder.Find(ctx, st.Target, opts)
		if err != nil && !harness.IsAssertion(err) {
			return err
		}
		return x.checks.Record(st.Describe(), err == nil, "no match", fmt.Sprintf("%d match(es)", len(found))).Err()
	case scenario.KindAssertText:
		return x.expect(ctx, st, func(ctx context.Context, el browser.Element) (bool, string, error) {
			text, err := el.Text(ctx)
			if err != nil {
				return false, "", err
			}
			want := browser.NormalizeText(st.Text)
			if st.Exact {
				return text == want, fmt.Sprintf("%q", text), nil
			}
			return strings.Contains(text, want), fmt.Sprintf("%q", text), nil
		}, fmt.Sprintf("text %q", st.Text))
	case scenario.KindAssertAttribute:
		return x.expect(ctx, st, func(ctx context.Context, el browser.Element) (bool, string, error) {
			value, ok, err := el.Attribute(ctx, st.Attribute)
			if err != nil {
				return false, "", err
			}
			actual := "absent"
			if ok {
				actual = fmt.Sprintf("%s=%q", st.Attribute, value)
			}
			matched := ok && (st.Value == "" || value == st.Value)
			return matched != st.Negate, actual, nil
		}, attributeExpectation(st))
	case scenario.KindAssertClass:
		return x.expect(ctx, st, func(ctx context.Context, el browser.Element) (bool, string, error) {
			class, _, err := el.Attribute(ctx, "class")
			if err != nil {
				return false, "", err
			}
			has := slices.Contains(strings.Fields(class), st.Class)
			return has != st.Negate, fmt.Sprintf("class=%q", class), nil
		}, classExpectation(st))
	case scenario.KindAssertNetworkCall:
		pred := network.URLContains(st.Network.URL)
		if st.Network.Method != "" {
			pred = network.All(pred, network.Method(st.Network.Method))
		}
		result := x.observer.AssertCalled(ctx, pred, network.CallOptions{
			Description: st.Describe(),
			WithStatus:  st.Network.Status,
			Timeout:     st.Timeout,
		})
		return x.checks.Add(result).Err()
	case scenario.KindDefinePanel:
		spec := *st.Define
		if spec.Name == "" {
			spec.Name = st.Panel
		}
		return x.panels.Register(spec)
	case scenario.KindOpenPanel:
		return x.panels.Open(ctx, st.PanelName(), st.Target)
	case scenario.KindClosePanel:
		method, err := st.CloseMethod()
		if err != nil {
			return err
		}
		return x.panels.Close(ctx, st.PanelName(), method)
	case scenario.KindAssertPanel:
		return x.assertPanel(ctx, st)
	}
	return fmt.Errorf("unknown step kind %q", st.Kind)
}

func (x *execution) navigate(ctx context.Context, st scenario.Step) error {
	target, err := x.sc.ResolveURL(st.URL)
	if err != nil {
		return err
	}
	state, err := st.LoadState()
	if err != nil {
		return err
	}
	wait := browser.Until(state)
	if !st.WaitFor.IsZero() {
		loc := st.WaitFor
		wait = browser.UntilCondition(loc.String(), func(ctx context.Context, d browser.Driver) (bool, error) {
			els, err := d.Query(ctx, loc)
			if err != nil {
				return false, nil
			}
			return len(els) > 0, nil
		})
	}
	wait.Timeout = st.Timeout
	if err := x.session.Navigate(ctx, target, wait); err != nil {
		return err
	}

	// A new document starts every panel from what the DOM shows.
	for _, name := range x.panels.Names() {
		if _, err := x.panels.Sync(ctx, name); err != nil {
			x.logger.Debug("panel_sync", zap.String("panel", name), zap.Error(err))
		}
	}
	return nil
}

// definePanels registers the panels declared on the scenario.
func (x *execution) definePanels() error {
	for _, spec := range x.sc.Panels {
		if err := x.panels.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) assertVisible(ctx context.Context, st scenario.Step, opts locate.Options) error {
	desc := st.Describe()
	if st.Count > 0 {
		opts.Expect = locate.Exactly(st.Count)
		found, err := x.finder.Find(ctx, st.Target, opts)
		if err != nil {
			x.checks.Record(desc, false, opts.Expect.String(), fmt.Sprintf("%d match(es)", len(found)))
			return err
		}
		visible := 0
		for _, el := range found {
			if ok, err := el.Visible(ctx); err == nil && ok {
				visible++
			}
		}
		return x.checks.Record(desc, visible == st.Count, fmt.Sprintf("%d visible", st.Count), fmt.Sprintf("%d visible", visible)).Err()
	}

	el, _, err := x.finder.WaitVisible(ctx, st.Target, opts)
	if err != nil {
		var notFound *harness.ElementNotFoundError
		actual := err.Error()
		if errors.As(err, &notFound) {
			actual = fmt.Sprintf("%d match(es), none visible", notFound.Found)
		}
		x.checks.Record(desc, false, "visible", actual)
		return err
	}
	x.checks.Record(desc, true, "visible", el.Describe())
	return nil
}

type check func(ctx context.Context, el browser.Element) (ok bool, actual string, err error)

// expect polls until the first element matched by the step target passes
// fn. The element is looked up again on every probe, since an AJAX update
// may have replaced it.
func (x *execution) expect(ctx context.Context, st scenario.Step, fn check, expected string) error {
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = x.config.ElementTimeout
	}
	var (
		matched int
		actual  string
	)
	waited, err := harness.Poll(ctx, timeout, x.config.PollInterval, func(ctx context.Context) (bool, error) {
		els, err := x.session.Driver().Query(ctx, st.Target)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, nil
		}
		matched = len(els)
		if matched == 0 {
			return false, nil
		}
		ok, got, err := fn(ctx, els[0])
		if err != nil {
			// Detached between query and check.
			return false, nil
		}
		actual = got
		return ok, nil
	})

	desc := st.Describe()
	switch {
	case err == nil:
		x.checks.Record(desc, true, expected, actual)
		return nil
	case !errors.Is(err, harness.ErrPollTimeout):
		return err
	case matched == 0:
		x.checks.Record(desc, false, expected, "no matching element")
		return &harness.ElementNotFoundError{Locator: st.Target, Waited: waited, Expected: locate.AtLeast(1).String()}
	default:
		return x.checks.Record(desc, false, expected, actual).Err()
	}
}

func (x *execution) assertPanel(ctx context.Context, st scenario.Step) error {
	want, err := st.PanelState()
	if err != nil {
		return err
	}
	name := st.PanelName()
	desc := st.Describe()
	err = x.panels.WaitState(ctx, name, want, st.Timeout)
	got, _ := x.panels.State(name)
	if err != nil {
		var timeout *harness.PanelTimeoutError
		actual := got.String()
		if errors.As(err, &timeout) && timeout.Reason != "" {
			actual += ": " + timeout.Reason
		}
		x.checks.Record(desc, false, want.String(), actual)
		return err
	}
	x.checks.Record(desc, true, want.String(), got.String())
	return nil
}

// recordImplicit turns the failure of a step that made no explicit check
// into an assertion, so reports show what the step expected.
func (x *execution) recordImplicit(st scenario.Step, err error) {
	var (
		notFound *harness.ElementNotFoundError
		fill     *harness.FillVerificationError
		panelErr *harness.PanelTimeoutError
		nav      *harness.NavigationError
	)
	switch {
	case errors.As(err, &notFound):
		x.checks.Record(fmt.Sprintf("element %s found", notFound.Locator), false, notFound.Expected,
			fmt.Sprintf("%d match(es) after %s", notFound.Found, notFound.Waited.Round(time.Millisecond)))
	case errors.As(err, &fill):
		x.checks.Record(fmt.Sprintf("field %s holds the submitted value", fill.Locator), false, fmt.Sprintf("%q", fill.Expected), fmt.Sprintf("%q", fill.Actual))
	case errors.As(err, &panelErr):
		x.checks.Record(fmt.Sprintf("panel %q is %s", panelErr.Panel, panelErr.To), false, panelErr.To.String(), panelErr.Reason)
	case errors.As(err, &nav):
		x.checks.Record(fmt.Sprintf("page %s loads", nav.URL), false, nav.WaitUntil, err.Error())
	default:
		x.checks.Record(st.Describe(), false, "step succeeds", err.Error())
	}
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (x *execution) screenshot(ctx context.Context, id string) (string, error) {
	png, err := x.session.Screenshot(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(x.config.ScreenshotDir, 0o755); err != nil {
		return "", err
	}
	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(x.sc.Name), "-"), "-")
	path := filepath.Join(x.config.ScreenshotDir, fmt.Sprintf("%s-%s.png", name, id[:8]))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func attributeExpectation(st scenario.Step) string {
	switch {
	case st.Negate:
		return fmt.Sprintf("no %s attribute%s", st.Attribute, valueOf(st.Value))
	default:
		return st.Attribute + valueOf(st.Value)
	}
}

func classExpectation(st scenario.Step) string {
	if st.Negate {
		return fmt.Sprintf("without class %q", st.Class)
	}
	return fmt.Sprintf("with class %q", st.Class)
}

func valueOf(v string) string {
	if v == "" {
		return ""
	}
	return fmt.Sprintf("=%q", v)
}
