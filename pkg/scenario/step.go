package scenario

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/panel"
)

// Kind names what a step does.
type Kind string

const (
	KindNavigate          Kind = "navigate"
	KindClick             Kind = "click"
	KindFill              Kind = "fill"
	KindSelect            Kind = "select"
	KindHover             Kind = "hover"
	KindPress             Kind = "press"
	KindWaitFor           Kind = "wait_for"
	KindAssertVisible     Kind = "assert_visible"
	KindAssertAbsent      Kind = "assert_absent"
	KindAssertText        Kind = "assert_text"
	KindAssertAttribute   Kind = "assert_attribute"
	KindAssertClass       Kind = "assert_class"
	KindAssertNetworkCall Kind = "assert_network_call"
	KindDefinePanel       Kind = "define_panel"
	KindOpenPanel         Kind = "open_panel"
	KindClosePanel        Kind = "close_panel"
	KindAssertPanel       Kind = "assert_panel"
)

var kinds = []Kind{
	KindNavigate, KindClick, KindFill, KindSelect, KindHover, KindPress, KindWaitFor,
	KindAssertVisible, KindAssertAbsent, KindAssertText, KindAssertAttribute, KindAssertClass,
	KindAssertNetworkCall, KindDefinePanel, KindOpenPanel, KindClosePanel, KindAssertPanel,
}

// Kinds lists every step kind.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// IsAssertion reports whether the kind is an explicit check.
func (k Kind) IsAssertion() bool {
	return strings.HasPrefix(string(k), "assert_")
}

// Visual reports whether the kind checks presentation rather than behavior.
func (k Kind) Visual() bool {
	return k == KindAssertClass
}

// NetworkExpect describes an expected request.
type NetworkExpect struct {
	URL    string `yaml:"url" json:"url"`
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	// Status requires a response with this code. Zero accepts the request alone.
	Status int `yaml:"status,omitempty" json:"status,omitempty"`
}

func (n NetworkExpect) String() string {
	var b strings.Builder
	if n.Method != "" {
		b.WriteString(strings.ToUpper(n.Method) + " ")
	}
	b.WriteString(n.URL)
	if n.Status > 0 {
		fmt.Fprintf(&b, " -> %d", n.Status)
	}
	return b.String()
}

// Step is one instruction of a scenario. Only the fields of its Kind are used.
type Step struct {
	// Name replaces the generated description in reports.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	Kind Kind   `yaml:"kind" json:"kind"`

	// Target is the element a step acts on or checks. For open_panel it is
	// the trigger.
	Target harness.Locator `yaml:"target,omitempty" json:"target,omitempty"`

	// URL is resolved against the scenario base URL.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// WaitUntil is domready, load (default) or networkidle.
	WaitUntil string `yaml:"wait_until,omitempty" json:"wait_until,omitempty"`
	// WaitFor additionally holds a navigation until the locator matches.
	WaitFor harness.Locator `yaml:"wait_for,omitempty" json:"wait_for,omitempty"`

	Value     string   `yaml:"value,omitempty" json:"value,omitempty"`
	Values    []string `yaml:"values,omitempty" json:"values,omitempty"`
	Key       string   `yaml:"key,omitempty" json:"key,omitempty"`
	Text      string   `yaml:"text,omitempty" json:"text,omitempty"`
	Exact     bool     `yaml:"exact,omitempty" json:"exact,omitempty"`
	Attribute string   `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Class     string   `yaml:"class,omitempty" json:"class,omitempty"`
	// Negate inverts assert_attribute and assert_class.
	Negate bool `yaml:"negate,omitempty" json:"negate,omitempty"`
	// Count requires exactly this many matches for wait_for and assert_visible.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	Network NetworkExpect `yaml:"network,omitempty" json:"network,omitempty"`

	Panel  string      `yaml:"panel,omitempty" json:"panel,omitempty"`
	Define *panel.Spec `yaml:"define,omitempty" json:"define,omitempty"`
	// Via is the close affordance of close_panel: button, overlay or escape.
	Via   string `yaml:"via,omitempty" json:"via,omitempty"`
	State string `yaml:"state,omitempty" json:"state,omitempty"`

	Timeout           time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	ContinueOnFailure bool          `yaml:"continue_on_failure,omitempty" json:"continue_on_failure,omitempty"`

	// Line is the source line, zero when unknown.
	Line int `yaml:"-" json:"line,omitempty"`
}

// Fatal reports whether a failure of the step halts the scenario.
func (s Step) Fatal() bool {
	return !s.ContinueOnFailure
}

// LoadState returns the readiness condition of a navigate step.
func (s Step) LoadState() (browser.LoadState, error) {
	switch strings.ToLower(s.WaitUntil) {
	case "", "load":
		return browser.WaitLoad, nil
	case "domready", "domcontentloaded":
		return browser.WaitDOMReady, nil
	case "networkidle":
		return browser.WaitNetworkIdle, nil
	}
	return "", fmt.Errorf("unknown wait_until %q", s.WaitUntil)
}

// CloseMethod returns the affordance of a close_panel step.
func (s Step) CloseMethod() (panel.CloseMethod, error) {
	return panel.ParseCloseMethod(s.Via)
}

// PanelState returns the expected state of an assert_panel step.
func (s Step) PanelState() (harness.PanelState, error) {
	state, ok := harness.ParsePanelState(s.State)
	if !ok || (state != harness.PanelOpen && state != harness.PanelClosed) {
		return harness.PanelClosed, fmt.Errorf("panel state must be open or closed, got %q", s.State)
	}
	return state, nil
}

// PanelName returns the panel a step refers to.
func (s Step) PanelName() string {
	if s.Panel == "" && s.Define != nil {
		return s.Define.Name
	}
	return s.Panel
}

// Validate checks that the fields required by the step kind are present.
func (s Step) Validate() error {
	needTarget := func() error {
		if s.Target.IsZero() {
			return errors.New("target is required")
		}
		return s.Target.Validate()
	}
	needPanel := func() error {
		if s.PanelName() == "" {
			return errors.New("panel is required")
		}
		return nil
	}
	if s.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}

	switch s.Kind {
	case KindNavigate:
		if s.URL == "" {
			return errors.New("url is required")
		}
		if !s.WaitFor.IsZero() {
			if err := s.WaitFor.Validate(); err != nil {
				return fmt.Errorf("wait_for: %w", err)
			}
		}
		_, err := s.LoadState()
		return err
	case KindClick, KindFill, KindHover, KindWaitFor, KindAssertVisible, KindAssertAbsent:
		return needTarget()
	case KindSelect:
		if len(s.Values) == 0 && s.Value == "" {
			return errors.New("value or values is required")
		}
		return needTarget()
	case KindPress:
		if s.Key == "" {
			return errors.New("key is required")
		}
		if s.Target.IsZero() {
			return nil
		}
		return s.Target.Validate()
	case KindAssertText:
		if s.Text == "" {
			return errors.New("text is required")
		}
		return needTarget()
	case KindAssertAttribute:
		if s.Attribute == "" {
			return errors.New("attribute is required")
		}
		return needTarget()
	case KindAssertClass:
		if s.Class == "" {
			return errors.New("class is required")
		}
		return needTarget()
	case KindAssertNetworkCall:
		if s.Network.URL == "" {
			return errors.New("network.url is required")
		}
		return nil
	case KindDefinePanel:
		if s.Define == nil {
			return errors.New("define is required")
		}
		spec := *s.Define
		if spec.Name == "" {
			spec.Name = s.Panel
		}
		return spec.Validate()
	case KindOpenPanel:
		if err := needPanel(); err != nil {
			return err
		}
		return needTarget()
	case KindClosePanel:
		if err := needPanel(); err != nil {
			return err
		}
		_, err := s.CloseMethod()
		return err
	case KindAssertPanel:
		if err := needPanel(); err != nil {
			return err
		}
		_, err := s.PanelState()
		return err
	case "":
		return errors.New("kind is required")
	}
	return fmt.Errorf("unknown step kind %q", s.Kind)
}

// SelectValues returns the options a select step picks.
func (s Step) SelectValues() []string {
	if len(s.Values) > 0 {
		return s.Values
	}
	return []string{s.Value}
}

// Describe renders the step for reports.
func (s Step) Describe() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case KindNavigate:
		return "navigate to " + s.URL
	case KindFill:
		return fmt.Sprintf("fill %s with %q", s.Target, s.Value)
	case KindSelect:
		return fmt.Sprintf("select %q in %s", strings.Join(s.SelectValues(), ", "), s.Target)
	case KindPress:
		if s.Target.IsZero() {
			return "press " + s.Key
		}
		return fmt.Sprintf("press %s on %s", s.Key, s.Target)
	case KindWaitFor:
		return "wait for " + s.Target.String()
	case KindAssertVisible:
		if s.Count > 0 {
			return fmt.Sprintf("%s is visible %d times", s.Target, s.Count)
		}
		return s.Target.String() + " is visible"
	case KindAssertAbsent:
		return s.Target.String() + " is absent"
	case KindAssertText:
		if s.Exact {
			return fmt.Sprintf("%s has text %q", s.Target, s.Text)
		}
		return fmt.Sprintf("%s contains text %q", s.Target, s.Text)
	case KindAssertAttribute:
		return fmt.Sprintf("%s %s attribute %s%s", s.Target, negated(s.Negate, "has", "lacks"), s.Attribute, valueSuffix(s.Value))
	case KindAssertClass:
		return fmt.Sprintf("%s %s class %q", s.Target, negated(s.Negate, "has", "lacks"), s.Class)
	case KindAssertNetworkCall:
		return "network call " + s.Network.String()
	case KindDefinePanel:
		return fmt.Sprintf("define panel %q", s.PanelName())
	case KindOpenPanel:
		return fmt.Sprintf("open panel %q with %s", s.Panel, s.Target)
	case KindClosePanel:
		if s.Via == "" {
			return fmt.Sprintf("close panel %q", s.Panel)
		}
		return fmt.Sprintf("close panel %q via %s", s.Panel, s.Via)
	case KindAssertPanel:
		return fmt.Sprintf("panel %q is %s", s.Panel, s.State)
	default:
		return fmt.Sprintf("%s %s", s.Kind, s.Target)
	}
}

func negated(negate bool, yes, no string) string {
	if negate {
		return no
	}
	return yes
}

func valueSuffix(v string) string {
	if v == "" {
		return ""
	}
	return fmt.Sprintf("=%q", v)
}
