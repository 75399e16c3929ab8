// Package rodriver drives Chromium through go-rod.
package rodriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// ErrNoBrowser is returned when no Chromium binary could be found.
var ErrNoBrowser = errors.New("no chromium binary found; set --browser-bin or CHROME_PATH")

// Launcher starts Chromium with go-rod.
type Launcher struct {
	// AllowDownload lets the launcher fetch a Chromium build when none is
	// installed.
	AllowDownload bool
}

var _ browser.Launcher = Launcher{}

func (Launcher) Name() string {
	return "rod"
}

// FindBrowser resolves the Chromium binary: explicit path first, then
// CHROME_PATH or CHROMEDP_BROWSER, then the usual install locations.
func FindBrowser(explicit string, allowDownload bool) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	for _, env := range []string{"CHROME_PATH", "CHROMEDP_BROWSER"} {
		if bin := os.Getenv(env); bin != "" {
			return bin, nil
		}
	}
	if found, ok := launcher.LookPath(); ok {
		return found, nil
	}
	if allowDownload {
		return launcher.NewBrowser().Get()
	}
	return "", ErrNoBrowser
}

func (l Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
	bin, err := FindBrowser(opts.BrowserBin, l.AllowDownload)
	if err != nil {
		return nil, err
	}

	proc := launcher.New().Bin(bin).Headless(opts.Headless).Context(ctx)
	controlURL, err := proc.Launch()
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		proc.Kill()
		return nil, fmt.Errorf("connect to %s: %w", controlURL, err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		proc.Cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.ViewportWidth,
			Height:            opts.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = b.Close()
			proc.Cleanup()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}
	return &Driver{browser: b, page: page, proc: proc}, nil
}

// Driver is a browser.Driver over one rod page.
type Driver struct {
	browser *rod.Browser
	page    *rod.Page
	proc    *launcher.Launcher

	closeOnce sync.Once
	closeErr  error
}

var _ browser.Driver = (*Driver)(nil)

var lifecycleEvents = map[browser.LoadState]proto.PageLifecycleEventName{
	browser.WaitDOMReady:    proto.PageLifecycleEventNameDOMContentLoaded,
	browser.WaitLoad:        proto.PageLifecycleEventNameLoad,
	browser.WaitNetworkIdle: proto.PageLifecycleEventNameNetworkIdle,
}

func (d *Driver) Navigate(ctx context.Context, url string, state browser.LoadState) error {
	event, ok := lifecycleEvents[state]
	if !ok {
		return fmt.Errorf("unknown load state %q", state)
	}
	page := d.page.Context(ctx)
	wait := page.WaitNavigation(event)
	if err := page.Navigate(url); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) Query(ctx context.Context, loc harness.Locator) ([]browser.Element, error) {
	els, err := d.page.Context(ctx).ElementsByJS(rod.Eval(browser.LocatorScript, loc.Normalized(), browser.ImplicitRoles))
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &element{el: el, page: d.page})
	}
	return out, nil
}

func (d *Driver) PressKey(ctx context.Context, key string) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	return d.page.Context(ctx).Keyboard.Press(k)
}

func (d *Driver) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	res, err := d.page.Context(ctx).Evaluate(rod.Eval(script).ByPromise())
	if err != nil {
		return nil, err
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Subscribe enables the Network and Runtime domains and forwards their
// events until unsubscribe is called.
func (d *Driver) Subscribe(handler func(browser.Event)) (func(), error) {
	if err := (proto.NetworkEnable{}).Call(d.page); err != nil {
		return nil, fmt.Errorf("enable network events: %w", err)
	}
	if err := (proto.RuntimeEnable{}).Call(d.page); err != nil {
		return nil, fmt.Errorf("enable runtime events: %w", err)
	}

	ctx, cancel := context.WithCancel(d.page.GetContext())
	wait := d.page.Context(ctx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			handler(browser.Event{
				Kind:      browser.EventRequest,
				RequestID: string(ev.RequestID),
				URL:       ev.Request.URL,
				Method:    ev.Request.Method,
				Time:      time.Now(),
			})
		},
		func(ev *proto.NetworkResponseReceived) {
			handler(browser.Event{
				Kind:      browser.EventResponse,
				RequestID: string(ev.RequestID),
				URL:       ev.Response.URL,
				Status:    ev.Response.Status,
				Time:      time.Now(),
			})
		},
		func(ev *proto.NetworkLoadingFailed) {
			handler(browser.Event{
				Kind:      browser.EventRequestFailed,
				RequestID: string(ev.RequestID),
				ErrorText: ev.ErrorText,
				Time:      time.Now(),
			})
		},
		func(ev *proto.RuntimeConsoleAPICalled) {
			handler(browser.Event{
				Kind:  browser.EventConsole,
				Level: string(ev.Type),
				Text:  consoleText(ev.Args),
				Time:  time.Now(),
			})
		},
		func(ev *proto.RuntimeExceptionThrown) {
			text := ev.ExceptionDetails.Text
			if ex := ev.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
				text = ex.Description
			}
			handler(browser.Event{Kind: browser.EventPageError, Level: "error", Text: text, Time: time.Now()})
		},
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func consoleText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.page.Context(ctx).Screenshot(false, nil)
}

// Close closes the browser and waits for its process to exit.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.browser.Close()
		d.proc.Cleanup()
	})
	return d.closeErr
}

type element struct {
	el   *rod.Element
	page *rod.Page
}

func (e *element) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *element) Hover(ctx context.Context) error {
	return e.el.Context(ctx).Hover()
}

func (e *element) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if value == "" {
		return el.Type(input.Backspace)
	}
	return el.Input(value)
}

func (e *element) Select(ctx context.Context, values ...string) error {
	return e.el.Context(ctx).Select(values, true, rod.SelectorTypeText)
}

func (e *element) Press(ctx context.Context, key string) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	return e.el.Context(ctx).Type(k)
}

func (e *element) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", err
	}
	if v.Nil() {
		return "", nil
	}
	return v.Str(), nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", err
	}
	return browser.NormalizeText(text), nil
}

func (e *element) Visible(ctx context.Context) (bool, error) {
	return e.el.Context(ctx).Visible()
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) Describe() string {
	return e.el.String()
}
