// Package cdpdriver drives Chromium through chromedp.
//
// chromedp addresses nodes by selector, so every element returned by Query
// is tagged with a data-uih-ref attribute and later actions select it again
// by that attribute.
package cdpdriver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// RefAttr is the attribute Query uses to tag matched nodes.
const RefAttr = "data-uih-ref"

// ErrStale is returned when a tagged node is no longer in the document.
var ErrStale = errors.New("element is no longer attached to the document")

// idleWindow is how long the page must have no request in flight to count
// as network idle.
const idleWindow = 500 * time.Millisecond

// Launcher starts Chromium with chromedp.
type Launcher struct{}

var _ browser.Launcher = Launcher{}

func (Launcher) Name() string {
	return "chromedp"
}

func (Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight))
	}
	if opts.BrowserBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.BrowserBin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	d := &Driver{ctx: tabCtx, cancel: tabCancel, allocCancel: allocCancel, inflight: map[network.RequestID]struct{}{}}
	chromedp.ListenTarget(tabCtx, d.track)

	stop := context.AfterFunc(ctx, tabCancel)
	err := chromedp.Run(tabCtx, network.Enable())
	stop()
	if err != nil {
		tabCancel()
		allocCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return d, nil
}

// Driver is a browser.Driver over one chromedp tab.
type Driver struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	lastBusy time.Time

	closeOnce sync.Once
	closeErr  error
}

var _ browser.Driver = (*Driver)(nil)

func (d *Driver) track(ev any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		d.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(d.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(d.inflight, e.RequestID)
	default:
		return
	}
	d.lastBusy = time.Now()
}

func (d *Driver) idle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight) == 0 && time.Since(d.lastBusy) >= idleWindow
}

// run executes actions on the tab, bounded by ctx.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Navigate waits for the load event for both domready and load; chromedp
// does not expose an earlier navigation signal.
func (d *Driver) Navigate(ctx context.Context, url string, state browser.LoadState) error {
	switch state {
	case browser.WaitDOMReady, browser.WaitLoad, browser.WaitNetworkIdle:
	default:
		return fmt.Errorf("unknown load state %q", state)
	}
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}
	if state != browser.WaitNetworkIdle {
		return nil
	}
	_, err := harness.Poll(ctx, time.Until(deadline(ctx)), 50*time.Millisecond, func(context.Context) (bool, error) {
		return d.idle(), nil
	})
	return err
}

func deadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(harness.DefaultNavigationTimeout)
}

type ref struct {
	Ref  string `json:"ref"`
	Desc string `json:"desc"`
}

func (d *Driver) Query(ctx context.Context, loc harness.Locator) ([]browser.Element, error) {
	script, err := queryScript(loc)
	if err != nil {
		return nil, err
	}
	var refs []ref
	if err := d.run(ctx, chromedp.Evaluate(script, &refs)); err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(refs))
	for _, r := range refs {
		out = append(out, &element{driver: d, ref: r.Ref, desc: r.Desc})
	}
	return out, nil
}

func queryScript(loc harness.Locator) (string, error) {
	locJSON, err := json.Marshal(loc.Normalized())
	if err != nil {
		return "", err
	}
	rolesJSON, err := json.Marshal(browser.ImplicitRoles)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`(() => {
  const found = (%s)(%s, %s);
  window.__uihRef = window.__uihRef || 0;
  return found.map(el => {
    if (!el.hasAttribute(%q)) el.setAttribute(%q, String(++window.__uihRef));
    return {ref: el.getAttribute(%q), desc: el.tagName.toLowerCase() + (el.id ? '#' + el.id : '')};
  });
})()`, browser.LocatorScript, locJSON, rolesJSON, RefAttr, RefAttr, RefAttr), nil
}

func (d *Driver) PressKey(ctx context.Context, key string) error {
	k, err := Key(key)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.KeyEvent(k))
}

func (d *Driver) Evaluate(ctx context.Context, script string) (json.RawMessage, error) {
	var raw []byte
	err := d.run(ctx, chromedp.Evaluate("("+script+")()", &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (d *Driver) Subscribe(handler func(browser.Event)) (func(), error) {
	if err := d.run(context.Background(), network.Enable(), runtime.Enable()); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(d.ctx)
	chromedp.ListenTarget(ctx, func(ev any) {
		if converted, ok := convert(ev); ok {
			handler(converted)
		}
	})
	return cancel, nil
}

func convert(ev any) (browser.Event, bool) {
	now := time.Now()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		return browser.Event{Kind: browser.EventRequest, RequestID: string(e.RequestID), URL: e.Request.URL, Method: e.Request.Method, Time: now}, true
	case *network.EventResponseReceived:
		return browser.Event{Kind: browser.EventResponse, RequestID: string(e.RequestID), URL: e.Response.URL, Status: int(e.Response.Status), Time: now}, true
	case *network.EventLoadingFailed:
		return browser.Event{Kind: browser.EventRequestFailed, RequestID: string(e.RequestID), ErrorText: e.ErrorText, Time: now}, true
	case *runtime.EventConsoleAPICalled:
		return browser.Event{Kind: browser.EventConsole, Level: string(e.Type), Text: consoleText(e.Args), Time: now}, true
	case *runtime.EventExceptionThrown:
		text := e.ExceptionDetails.Text
		if ex := e.ExceptionDetails.Exception; ex != nil && ex.Description != "" {
			text = ex.Description
		}
		return browser.Event{Kind: browser.EventPageError, Level: "error", Text: text, Time: now}, true
	}
	return browser.Event{}, false
}

func consoleText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if len(a.Value) > 0 {
			var s string
			if err := json.Unmarshal([]byte(a.Value), &s); err == nil {
				parts = append(parts, s)
			} else {
				parts = append(parts, string(a.Value))
			}
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close closes the tab and kills the browser process.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = chromedp.Cancel(d.ctx)
		d.allocCancel()
	})
	return d.closeErr
}
