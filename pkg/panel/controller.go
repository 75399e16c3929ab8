// Package panel drives slide-in panels through an explicit
// Closed, Opening, Open, Closing state machine.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/locate"
)

// DefaultHiddenClass marks a closed panel root unless Spec.HiddenClass overrides it.
const DefaultHiddenClass = "hidden"

var ErrUnknownPanel = errors.New("unknown panel")

// CloseMethod is the affordance used to close a panel.
type CloseMethod string

const (
	CloseButton  CloseMethod = "button"
	CloseOverlay CloseMethod = "overlay"
	CloseEscape  CloseMethod = "escape"
)

// ParseCloseMethod accepts the method names and the phrasing used in
// feature files ("close button", "escape key").
func ParseCloseMethod(s string) (CloseMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "button", "close button", "close_button":
		return CloseButton, nil
	case "overlay":
		return CloseOverlay, nil
	case "escape", "escape key", "esc":
		return CloseEscape, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unknown close method %q", s)
}

// Spec describes how a panel shows its state in the DOM.
type Spec struct {
	Name string `yaml:"name" json:"name"`
	// Root carries HiddenClass while the panel is closed.
	Root        harness.Locator `yaml:"root" json:"root"`
	HiddenClass string          `yaml:"hidden_class" json:"hidden_class"`
	Overlay     harness.Locator `yaml:"overlay" json:"overlay"`
	CloseButton harness.Locator `yaml:"close_button" json:"close_button"`
	// ScrollLock means the page blocks body scrolling while the panel is open.
	ScrollLock bool `yaml:"scroll_lock" json:"scroll_lock"`
}

// Validate checks the locators of s.
func (s Spec) Validate() error {
	if s.Name == "" {
		return errors.New("panel without a name")
	}
	if err := s.Root.Validate(); err != nil {
		return fmt.Errorf("panel %q root: %w", s.Name, err)
	}
	for label, loc := range map[string]harness.Locator{"overlay": s.Overlay, "close button": s.CloseButton} {
		if loc.IsZero() {
			continue
		}
		if err := loc.Validate(); err != nil {
			return fmt.Errorf("panel %q %s: %w", s.Name, label, err)
		}
	}
	return nil
}

func (s Spec) hiddenClass() string {
	if s.HiddenClass == "" {
		return DefaultHiddenClass
	}
	return s.HiddenClass
}

// defaultClose is the affordance used when another panel has to make room.
func (s Spec) defaultClose() CloseMethod {
	switch {
	case !s.CloseButton.IsZero():
		return CloseButton
	case !s.Overlay.IsZero():
		return CloseOverlay
	default:
		return CloseEscape
	}
}

// Actions performs the clicks and key presses that move a panel.
type Actions interface {
	Click(ctx context.Context, loc harness.Locator, opts locate.Options) error
	Press(ctx context.Context, key string) error
}

type tracked struct {
	spec  Spec
	state harness.PanelState
}

// Controller tracks the panels of one page. At most one registered panel is
// Open at a time. Like the page it drives, it is used by one goroutine.
type Controller struct {
	driver   browser.Driver
	actions  Actions
	logger   *zap.Logger
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time

	panels      map[string]*tracked
	transitions []harness.PanelTransition
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithTimeout bounds every transition.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInterval sets how often the DOM is checked during a transition.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock sets the time source of transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates a Controller that reads panel state from driver and moves
// panels with actions.
func New(driver browser.Driver, actions Actions, opts ...Option) *Controller {
	c := &Controller{
		driver:   driver,
		actions:  actions,
		logger:   zap.NewNop(),
		timeout:  harness.DefaultPanelTimeout,
		interval: harness.DefaultPollInterval,
		now:      time.Now,
		panels:   map[string]*tracked{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a panel in the Closed state. Registering a known name
// replaces its spec and keeps its state.
func (c *Controller) Register(spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if p, ok := c.panels[spec.Name]; ok {
		p.spec = spec
		return nil
	}
	c.panels[spec.Name] = &tracked{spec: spec, state: harness.PanelClosed}
	return nil
}

// Names lists the registered panels in sorted order.
func (c *Controller) Names() []string {
	names := make([]string, 0, len(c.panels))
	for name := range c.panels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// State returns the tracked state of a panel.
func (c *Controller) State(name string) (harness.PanelState, bool) {
	p, ok := c.panels[name]
	if !ok {
		return harness.PanelClosed, false
	}
	return p.state, true
}

// Transitions returns a copy of the recorded state changes.
func (c *Controller) Transitions() []harness.PanelTransition {
	return slices.Clone(c.transitions)
}

func (c *Controller) lookup(name string) (*tracked, error) {
	p, ok := c.panels[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownPanel, name)
	}
	return p, nil
}

func (c *Controller) move(p *tracked, to harness.PanelState, detected bool) {
	if p.state == to {
		return
	}
	t := harness.PanelTransition{Panel: p.spec.Name, From: p.state, To: to, Detected: detected, Timestamp: c.now()}
	c.transitions = append(c.transitions, t)
	c.logger.Info("panel_transition",
		zap.String("panel", t.Panel),
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
		zap.Bool("detected", detected))
	p.state = to
}

// Open clicks trigger and waits until the panel root drops its hidden
// class. Another open panel is closed first with its default affordance.
// Opening an open panel does nothing.
func (c *Controller) Open(ctx context.Context, name string, trigger harness.Locator) error {
	p, err := c.lookup(name)
	if err != nil {
		return err
	}
	if p.state == harness.PanelOpen {
		return nil
	}
	for _, other := range c.Names() {
		if o := c.panels[other]; other != name && o.state == harness.PanelOpen {
			if err := c.Close(ctx, other, o.spec.defaultClose()); err != nil {
				return fmt.Errorf("close %q before opening %q: %w", other, name, err)
			}
		}
	}

	c.move(p, harness.PanelOpening, false)
	if err := c.actions.Click(ctx, trigger, c.clickOptions()); err != nil {
		c.move(p, harness.PanelClosed, false)
		return err
	}
	return c.await(ctx, p, harness.PanelClosed, harness.PanelOpen)
}

// Close closes an open panel with method and waits until every closed
// post-condition holds: root hidden, overlay hidden and scrolling unlocked.
// Closing a closed panel does nothing. An empty method uses the panel's
// default affordance.
func (c *Controller) Close(ctx context.Context, name string, method CloseMethod) error {
	p, err := c.lookup(name)
	if err != nil {
		return err
	}
	if p.state == harness.PanelClosed {
		return nil
	}
	if method == "" {
		method = p.spec.defaultClose()
	}

	c.move(p, harness.PanelClosing, false)
	if err := c.trigger(ctx, p.spec, method); err != nil {
		c.move(p, harness.PanelOpen, false)
		return err
	}
	return c.await(ctx, p, harness.PanelOpen, harness.PanelClosed)
}

func (c *Controller) trigger(ctx context.Context, spec Spec, method CloseMethod) error {
	switch method {
	case CloseButton:
		if spec.CloseButton.IsZero() {
			return fmt.Errorf("panel %q has no close button", spec.Name)
		}
		return c.actions.Click(ctx, spec.CloseButton, c.clickOptions())
	case CloseOverlay:
		if spec.Overlay.IsZero() {
			return fmt.Errorf("panel %q has no overlay", spec.Name)
		}
		return c.actions.Click(ctx, spec.Overlay, c.clickOptions())
	case CloseEscape:
		return c.actions.Press(ctx, "Escape")
	default:
		return fmt.Errorf("unknown close method %q", method)
	}
}

func (c *Controller) clickOptions() locate.Options {
	return locate.Options{Timeout: c.timeout, Interval: c.interval}
}

// await polls until the DOM shows to. On timeout the panel falls back to
// from, the last confirmed state.
func (c *Controller) await(ctx context.Context, p *tracked, from, to harness.PanelState) error {
	waited, reason, err := c.poll(ctx, p.spec, to, c.timeout)
	switch {
	case err == nil:
		c.move(p, to, false)
		return nil
	case errors.Is(err, harness.ErrPollTimeout):
		c.move(p, from, false)
		return &harness.PanelTimeoutError{Panel: p.spec.Name, From: from, To: to, Waited: waited, Reason: reason}
	default:
		c.move(p, from, false)
		return err
	}
}

// poll waits until reached holds and keeps the last mismatch as reason.
func (c *Controller) poll(ctx context.Context, spec Spec, state harness.PanelState, timeout time.Duration) (time.Duration, string, error) {
	var reason string
	waited, err := harness.Poll(ctx, timeout, c.interval, func(ctx context.Context) (bool, error) {
		ok, why, err := c.reached(ctx, spec, state)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			reason = err.Error()
			return false, nil
		}
		reason = why
		return ok, nil
	})
	return waited, reason, err
}

// reached checks the DOM for a stable state and explains a mismatch.
func (c *Controller) reached(ctx context.Context, spec Spec, state harness.PanelState) (bool, string, error) {
	hidden, err := c.rootHidden(ctx, spec)
	if err != nil {
		return false, "", err
	}
	if state == harness.PanelOpen {
		if hidden {
			return false, fmt.Sprintf("root %s is hidden", spec.Root), nil
		}
		return true, "", nil
	}

	if !hidden {
		return false, fmt.Sprintf("root %s lacks class %q", spec.Root, spec.hiddenClass()), nil
	}
	if !spec.Overlay.IsZero() {
		shown, err := c.anyVisible(ctx, spec.Overlay)
		if err != nil {
			return false, "", err
		}
		if shown {
			return false, fmt.Sprintf("overlay %s still visible", spec.Overlay), nil
		}
	}
	if spec.ScrollLock {
		locked, err := c.scrollLocked(ctx)
		if err != nil {
			return false, "", err
		}
		if locked {
			return false, "body scroll still locked", nil
		}
	}
	return true, "", nil
}

// rootHidden reports whether the panel root is missing or carries the
// hidden class.
func (c *Controller) rootHidden(ctx context.Context, spec Spec) (bool, error) {
	roots, err := c.driver.Query(ctx, spec.Root)
	if err != nil {
		return false, err
	}
	if len(roots) == 0 {
		return true, nil
	}
	class, _, err := roots[0].Attribute(ctx, "class")
	if err != nil {
		return false, err
	}
	return slices.Contains(strings.Fields(class), spec.hiddenClass()), nil
}

func (c *Controller) anyVisible(ctx context.Context, loc harness.Locator) (bool, error) {
	els, err := c.driver.Query(ctx, loc)
	if err != nil {
		return false, err
	}
	for _, el := range els {
		if ok, err := el.Visible(ctx); err == nil && ok {
			return true, nil
		}
	}
	return false, nil
}

func (c *Controller) scrollLocked(ctx context.Context) (bool, error) {
	raw, err := c.driver.Evaluate(ctx, browser.ScrollLockScript)
	if err != nil {
		return false, err
	}
	var locked bool
	if err := json.Unmarshal(raw, &locked); err != nil {
		return false, fmt.Errorf("scroll lock probe: %w", err)
	}
	return locked, nil
}

// Sync reads the panel state from the DOM once and records a detected
// transition when the page moved the panel on its own.
func (c *Controller) Sync(ctx context.Context, name string) (harness.PanelState, error) {
	p, err := c.lookup(name)
	if err != nil {
		return harness.PanelClosed, err
	}
	hidden, err := c.rootHidden(ctx, p.spec)
	if err != nil {
		return p.state, err
	}
	observed := harness.PanelOpen
	if hidden {
		observed = harness.PanelClosed
	}
	c.move(p, observed, true)
	return p.state, nil
}

// WaitState polls until the panel shows state, recording the change as
// detected. A zero timeout uses the controller default.
func (c *Controller) WaitState(ctx context.Context, name string, state harness.PanelState, timeout time.Duration) error {
	p, err := c.lookup(name)
	if err != nil {
		return err
	}
	if state != harness.PanelOpen && state != harness.PanelClosed {
		return fmt.Errorf("panel %q: cannot wait for transient state %s", name, state)
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	from := p.state
	waited, reason, err := c.poll(ctx, p.spec, state, timeout)
	switch {
	case err == nil:
		c.move(p, state, true)
		return nil
	case errors.Is(err, harness.ErrPollTimeout):
		return &harness.PanelTimeoutError{Panel: name, From: from, To: state, Waited: waited, Reason: reason}
	default:
		return err
	}
}
