package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/panel"
)

// Quoted groups: "..." holds plain text, '...' holds a locator in the
// compact form, so locators may contain double quotes:
//
//	When I click 'role=button name="Neue Liste"'
const (
	quotedText    = `"([^"]*)"`
	quotedLocator = `'([^']*)'`
)

// DefaultLibrary returns the built-in step definitions.
func DefaultLibrary() *StepLibrary {
	l := NewStepLibrary()

	l.MustRegisterStep(`^(?:I )?(?:navigate|go) to `+quotedText+`$`, func(url string) Step {
		return Step{Kind: KindNavigate, URL: url}
	})
	l.MustRegisterStep(`^(?:I )?(?:navigate|go) to `+quotedText+` and wait for (domready|load|networkidle)$`, func(url, state string) Step {
		return Step{Kind: KindNavigate, URL: url, WaitUntil: state}
	})
	l.MustRegisterStep(`^(?:I )?(?:navigate|go) to `+quotedText+` and wait for `+quotedLocator+`$`, func(url string, loc harness.Locator) Step {
		return Step{Kind: KindNavigate, URL: url, WaitFor: loc}
	})
	l.MustRegisterStep(`^the base URL is `+quotedText+`$`, func(sc *Scenario, url string) {
		sc.BaseURL = url
	})

	l.MustRegisterStep(`^(?:I )?click `+quotedLocator+`$`, func(loc harness.Locator) Step {
		return Step{Kind: KindClick, Target: loc}
	})
	l.MustRegisterStep(`^(?:I )?click the `+quotedText+` (button|link|tab|checkbox|radio|menuitem|option)$`, func(name, role string) Step {
		return Step{Kind: KindClick, Target: harness.ByRole(role, name)}
	})
	l.MustRegisterStep(`^(?:I )?click the text `+quotedText+`$`, func(s string) Step {
		return Step{Kind: KindClick, Target: harness.ByText(s)}
	})
	l.MustRegisterStep(`^(?:I )?hover over `+quotedLocator+`$`, func(loc harness.Locator) Step {
		return Step{Kind: KindHover, Target: loc}
	})
	l.MustRegisterStep(`^(?:I )?fill `+quotedLocator+` with `+quotedText+`$`, func(loc harness.Locator, value string) Step {
		return Step{Kind: KindFill, Target: loc, Value: value}
	})
	l.MustRegisterStep(`^(?:I )?fill the `+quotedText+` field with `+quotedText+`$`, func(name, value string) Step {
		return Step{Kind: KindFill, Target: harness.ByRole("textbox", name), Value: value}
	})
	l.MustRegisterStep(`^(?:I )?select `+quotedText+` in `+quotedLocator+`$`, func(value string, loc harness.Locator) Step {
		return Step{Kind: KindSelect, Target: loc, Values: splitValues(value)}
	})
	l.MustRegisterStep(`^(?:I )?press `+quotedText+`$`, func(key string) Step {
		return Step{Kind: KindPress, Key: key}
	})
	l.MustRegisterStep(`^(?:I )?press `+quotedText+` on `+quotedLocator+`$`, func(key string, loc harness.Locator) Step {
		return Step{Kind: KindPress, Key: key, Target: loc}
	})
	l.MustRegisterStep(`^(?:I )?wait for `+quotedLocator+`$`, func(loc harness.Locator) Step {
		return Step{Kind: KindWaitFor, Target: loc}
	})

	l.MustRegisterStep(`^`+quotedLocator+` should be visible$`, func(loc harness.Locator) Step {
		return Step{Kind: KindAssertVisible, Target: loc}
	})
	l.MustRegisterStep(`^`+quotedLocator+` should be visible (\d+) times?$`, func(loc harness.Locator, n int) Step {
		return Step{Kind: KindAssertVisible, Target: loc, Count: n}
	})
	l.MustRegisterStep(`^the text `+quotedText+` should be visible$`, func(s string) Step {
		return Step{Kind: KindAssertVisible, Target: harness.ByText(s)}
	})
	l.MustRegisterStep(`^`+quotedLocator+` should (?:be absent|not exist)$`, func(loc harness.Locator) Step {
		return Step{Kind: KindAssertAbsent, Target: loc}
	})
	l.MustRegisterStep(`^the text `+quotedText+` should not be visible$`, func(s string) Step {
		return Step{Kind: KindAssertAbsent, Target: harness.ByText(s)}
	})
	l.MustRegisterStep(`^`+quotedLocator+` should (have|contain) the text `+quotedText+`$`, func(loc harness.Locator, mode, s string) Step {
		return Step{Kind: KindAssertText, Target: loc, Text: s, Exact: mode == "have"}
	})
	l.MustRegisterStep(`^`+quotedLocator+` should (have|not have) the attribute `+quotedText+`(?: with value `+quotedText+`)?$`, func(loc harness.Locator, mode, attr, value string) Step {
		return Step{Kind: KindAssertAttribute, Target: loc, Attribute: attr, Value: value, Negate: mode == "not have"}
	})
	l.MustRegisterStep(`^`+quotedLocator+` should (have|not have) the class `+quotedText+`$`, func(loc harness.Locator, mode, class string) Step {
		return Step{Kind: KindAssertClass, Target: loc, Class: class, Negate: mode == "not have"}
	})

	l.MustRegisterStep(`^an? (GET|POST|PUT|PATCH|DELETE) request to `+quotedText+` should be sent$`, func(method, url string) Step {
		return Step{Kind: KindAssertNetworkCall, Network: NetworkExpect{URL: url, Method: method}}
	})
	l.MustRegisterStep(`^an? (GET|POST|PUT|PATCH|DELETE) request to `+quotedText+` should succeed with status (\d{3})$`, func(method, url string, status int) Step {
		return Step{Kind: KindAssertNetworkCall, Network: NetworkExpect{URL: url, Method: method, Status: status}}
	})

	l.MustRegisterStep(`^the panel `+quotedText+` is defined as:$`, func(name string, table Table) (Step, error) {
		spec, err := panelFromTable(name, table)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: KindDefinePanel, Panel: name, Define: &spec}, nil
	})
	l.MustRegisterStep(`^(?:I )?open the panel `+quotedText+` with `+quotedLocator+`$`, func(name string, trigger harness.Locator) Step {
		return Step{Kind: KindOpenPanel, Panel: name, Target: trigger}
	})
	l.MustRegisterStep(`^(?:I )?open the panel `+quotedText+` with the `+quotedText+` button$`, func(name, label string) Step {
		return Step{Kind: KindOpenPanel, Panel: name, Target: harness.ByRole("button", label)}
	})
	l.MustRegisterStep(`^(?:I )?close the panel `+quotedText+`(?: via the (close button|overlay|escape key))?$`, func(name, via string) Step {
		return Step{Kind: KindClosePanel, Panel: name, Via: via}
	})
	l.MustRegisterStep(`^the panel `+quotedText+` should be (open|closed)$`, func(name, state string) Step {
		return Step{Kind: KindAssertPanel, Panel: name, State: state}
	})

	return l
}

func splitValues(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func panelFromTable(name string, table Table) (panel.Spec, error) {
	spec := panel.Spec{Name: name}
	for key, value := range table.Pairs() {
		var err error
		switch key {
		case "root":
			spec.Root, err = harness.ParseLocator(value)
		case "overlay":
			spec.Overlay, err = harness.ParseLocator(value)
		case "close_button":
			spec.CloseButton, err = harness.ParseLocator(value)
		case "hidden_class":
			spec.HiddenClass = value
		case "scroll_lock":
			spec.ScrollLock, err = strconv.ParseBool(value)
		default:
			err = fmt.Errorf("unknown panel property %q", key)
		}
		if err != nil {
			return panel.Spec{}, fmt.Errorf("panel %q %s: %w", name, key, err)
		}
	}
	return spec, spec.Validate()
}
