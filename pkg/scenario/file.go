package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/guldbach/google-ads-builder-sub001/pkg/panel"
)

// document is the layout of a YAML or JSON scenario file. File level tags,
// panels and base URL apply to every scenario of the file.
type document struct {
	Name      string       `yaml:"name"`
	BaseURL   string       `yaml:"base_url"`
	Tags      []string     `yaml:"tags"`
	Panels    []panel.Spec `yaml:"panels"`
	Scenarios []struct {
		Name    string       `yaml:"name"`
		BaseURL string       `yaml:"base_url"`
		Tags    []string     `yaml:"tags"`
		Panels  []panel.Spec `yaml:"panels"`
		Steps   []Step       `yaml:"steps"`
		Line    int          `yaml:"-"`
	} `yaml:"scenarios"`
}

var stepFields = yamlFields(reflect.TypeFor[Step]())

func yamlFields(t reflect.Type) map[string]bool {
	fields := map[string]bool{}
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			fields[name] = true
		}
	}
	return fields
}

// UnmarshalYAML records the source line and rejects unknown keys.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: step must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if key := node.Content[i].Value; !stepFields[key] {
			return fmt.Errorf("line %d: unknown step field %q", node.Content[i].Line, key)
		}
	}
	type plain Step
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Step(p)
	s.Line = node.Line
	return nil
}

// ParseYAML reads a YAML or JSON scenario file.
func ParseYAML(r io.Reader, source string) ([]Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(source, ".json") {
		// Tabs are only whitespace in JSON but YAML rejects them as indentation.
		data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
	}

	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Source: source, Err: errors.New("empty scenario file")}
		}
		return nil, &LoadError{Source: source, Err: err}
	}

	var doc document
	strict := yaml.NewDecoder(bytes.NewReader(data))
	strict.KnownFields(true)
	if err := strict.Decode(&doc); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	lines := scenarioLines(&root)

	scenarios := make([]Scenario, 0, len(doc.Scenarios))
	for i, raw := range doc.Scenarios {
		sc := Scenario{
			Name:    raw.Name,
			Feature: doc.Name,
			Source:  source,
			BaseURL: raw.BaseURL,
			Tags:    mergeTags(doc.Tags, raw.Tags),
			Panels:  append(slices.Clone(doc.Panels), raw.Panels...),
			Steps:   raw.Steps,
		}
		if i < len(lines) {
			sc.Line = lines[i]
		}
		if sc.BaseURL == "" {
			sc.BaseURL = doc.BaseURL
		}
		if err := sc.Validate(); err != nil {
			return nil, &LoadError{Source: source, Line: sc.Line, Err: err}
		}
		scenarios = append(scenarios, sc)
	}
	if len(scenarios) == 0 {
		return nil, &LoadError{Source: source, Err: errors.New("no scenarios defined")}
	}
	return scenarios, nil
}

// scenarioLines returns the line of every entry of the scenarios list.
func scenarioLines(root *yaml.Node) []int {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "scenarios" {
			continue
		}
		var lines []int
		for _, item := range root.Content[i+1].Content {
			lines = append(lines, item.Line)
		}
		return lines
	}
	return nil
}

// mergeTags combines inherited and own tags, normalized to a leading @
// and without duplicates.
func mergeTags(parent, child []string) []string {
	var out []string
	for _, tag := range append(slices.Clone(parent), child...) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "@") {
			tag = "@" + tag
		}
		if !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}
