package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	tagexpressions "github.com/cucumber/tag-expressions/go/v6"
)

// ErrNoScenarios is returned when discovery and filtering leave nothing to run.
var ErrNoScenarios = errors.New("no scenarios found")

// Extensions lists the file types Load understands.
var Extensions = []string{FeatureExtension, ".yaml", ".yml", ".json"}

// LoadError is a scenario file that could not be read or parsed.
type LoadError struct {
	Source string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions controls Load.
type LoadOptions struct {
	// Tags is a cucumber tag expression such as "@smoke and not @slow".
	Tags string
	// Library builds feature file steps. Nil uses DefaultLibrary.
	Library *StepLibrary
	// BaseURL applies to scenarios that do not set their own.
	BaseURL string
}

// SearchScenarioFilesIn walks paths and returns the scenario files found,
// in lexical order per path. Files named explicitly are returned as is.
func SearchScenarioFilesIn(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !supported(root) {
				return nil, fmt.Errorf("%s: unsupported scenario file type", root)
			}
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func supported(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// LoadFile parses one scenario file, choosing the format by extension.
func LoadFile(path string, lib *StepLibrary) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	if strings.EqualFold(filepath.Ext(path), FeatureExtension) {
		return ParseFeature(bytes.NewReader(data), path, lib)
	}
	return ParseYAML(bytes.NewReader(data), path)
}

// Load discovers, parses and filters scenarios. An empty path list means
// the current directory.
func Load(paths []string, opts LoadOptions) ([]Scenario, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	files, err := SearchScenarioFilesIn(paths)
	if err != nil {
		return nil, err
	}
	lib := opts.Library
	if lib == nil {
		lib = DefaultLibrary()
	}

	var all []Scenario
	for _, file := range files {
		scenarios, err := LoadFile(file, lib)
		if err != nil {
			return nil, err
		}
		all = append(all, scenarios...)
	}
	for i := range all {
		if all[i].BaseURL == "" {
			all[i].BaseURL = opts.BaseURL
		}
	}

	filtered, err := FilterByTags(all, opts.Tags)
	if err != nil {
		return nil, err
	}
	if len(filtered) == 0 {
		return nil, ErrNoScenarios
	}
	return filtered, nil
}

// FilterByTags keeps the scenarios whose tags satisfy expr. An empty
// expression keeps everything.
func FilterByTags(scenarios []Scenario, expr string) ([]Scenario, error) {
	if strings.TrimSpace(expr) == "" {
		return scenarios, nil
	}
	evaluator, err := tagexpressions.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid tag expression %q: %w", expr, err)
	}
	var out []Scenario
	for _, sc := range scenarios {
		if evaluator.Evaluate(sc.Tags) {
			out = append(out, sc)
		}
	}
	return out, nil
}
