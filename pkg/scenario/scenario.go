// Package scenario defines UI scenarios and loads them from YAML, JSON and
// Gherkin feature files.
package scenario

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/panel"
)

// Scenario is an ordered list of steps run against one browser session.
type Scenario struct {
	Name string `yaml:"name" json:"name"`
	// Feature is the name of the enclosing file or feature.
	Feature string `yaml:"-" json:"feature,omitempty"`
	// Source is the file the scenario was loaded from.
	Source  string       `yaml:"-" json:"source,omitempty"`
	Line    int          `yaml:"-" json:"line,omitempty"`
	BaseURL string       `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Tags    []string     `yaml:"tags,omitempty" json:"tags,omitempty"`
	Panels  []panel.Spec `yaml:"panels,omitempty" json:"panels,omitempty"`
	Steps   []Step       `yaml:"steps" json:"steps"`
}

// Location renders source:line for messages.
func (s Scenario) Location() string {
	if s.Line > 0 {
		return fmt.Sprintf("%s:%d", s.Source, s.Line)
	}
	return s.Source
}

// Info identifies the scenario to lifecycle hooks.
func (s Scenario) Info() harness.ScenarioInfo {
	return harness.ScenarioInfo{Name: s.Name, Source: s.Location(), Tags: slices.Clone(s.Tags)}
}

// Clone returns a deep copy, so a runner never shares step data with the
// caller.
func (s Scenario) Clone() Scenario {
	c := s
	c.Tags = slices.Clone(s.Tags)
	c.Panels = slices.Clone(s.Panels)
	c.Steps = make([]Step, len(s.Steps))
	for i, st := range s.Steps {
		st.Values = slices.Clone(st.Values)
		if st.Define != nil {
			spec := *st.Define
			st.Define = &spec
		}
		c.Steps[i] = st
	}
	return c
}

// Validate checks every step and that panel steps refer to panels declared
// on the scenario or defined by an earlier step.
func (s Scenario) Validate() error {
	if s.Name == "" {
		return errors.New("scenario without a name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	if s.BaseURL != "" {
		if _, err := url.Parse(s.BaseURL); err != nil {
			return fmt.Errorf("scenario %q base_url: %w", s.Name, err)
		}
	}

	known := map[string]bool{}
	for _, spec := range s.Panels {
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		known[spec.Name] = true
	}
	for i, st := range s.Steps {
		if err := st.Validate(); err != nil {
			return &StepError{Scenario: s.Name, Index: i, Step: st, Err: err}
		}
		switch st.Kind {
		case KindDefinePanel:
			known[st.PanelName()] = true
		case KindOpenPanel, KindClosePanel, KindAssertPanel:
			if !known[st.PanelName()] {
				return &StepError{Scenario: s.Name, Index: i, Step: st, Err: fmt.Errorf("%w %q", panel.ErrUnknownPanel, st.PanelName())}
			}
		}
	}
	return nil
}

// ResolveURL resolves ref against the base URL. Without a base URL ref is
// returned unchanged.
func (s Scenario) ResolveURL(ref string) (string, error) {
	if s.BaseURL == "" {
		return ref, nil
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("base url %q: %w", s.BaseURL, err)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("url %q: %w", ref, err)
	}
	return base.ResolveReference(rel).String(), nil
}

// StepError is a step that failed validation.
type StepError struct {
	Scenario string
	Index    int
	Step     Step
	Err      error
}

func (e *StepError) Error() string {
	if e.Step.Line > 0 {
		return fmt.Sprintf("scenario %q step %d (line %d, %s): %v", e.Scenario, e.Index+1, e.Step.Line, e.Step.Kind, e.Err)
	}
	return fmt.Sprintf("scenario %q step %d (%s): %v", e.Scenario, e.Index+1, e.Step.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
