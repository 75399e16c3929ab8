package scenario

import (
	"fmt"
	"io"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"
	"github.com/google/uuid"
)

// FeatureExtension is the file extension of Gherkin feature files.
const FeatureExtension = ".feature"

// ParseGherkinFile parses a feature file into its AST.
func ParseGherkinFile(reader io.Reader) (*messages.GherkinDocument, error) {
	id := (&messages.Incrementing{}).NewId
	return gherkin.ParseGherkinDocument(reader, id)
}

// ParseFeature reads a feature file and turns each pickle (a scenario with
// its backgrounds applied and outline rows expanded) into a Scenario. Every
// step text must match a definition of lib.
func ParseFeature(r io.Reader, source string, lib *StepLibrary) ([]Scenario, error) {
	doc, err := ParseGherkinFile(r)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	if doc.Feature == nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("no feature defined")}
	}
	if lib == nil {
		lib = DefaultLibrary()
	}

	lines := astLines(doc)
	pickles := gherkin.Pickles(*doc, source, uuid.NewString)

	scenarios := make([]Scenario, 0, len(pickles))
	for _, pickle := range pickles {
		sc := Scenario{
			Name:    pickle.Name,
			Feature: doc.Feature.Name,
			Source:  source,
			Tags:    pickleTags(pickle.Tags),
		}
		if len(pickle.AstNodeIds) > 0 {
			sc.Line = lines[pickle.AstNodeIds[0]]
		}
		for _, ps := range pickle.Steps {
			line := 0
			if len(ps.AstNodeIds) > 0 {
				line = lines[ps.AstNodeIds[0]]
			}
			steps, err := lib.Build(&sc, ps.Text, pickleArgument(ps.Argument))
			if err != nil {
				return nil, &LoadError{Source: source, Line: line, Err: err}
			}
			for _, st := range steps {
				st.Line = line
				sc.Steps = append(sc.Steps, st)
			}
		}
		if err := sc.Validate(); err != nil {
			return nil, &LoadError{Source: source, Line: sc.Line, Err: err}
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func pickleTags(tags []*messages.PickleTag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return mergeTags(nil, names)
}

func pickleArgument(arg *messages.PickleStepArgument) Argument {
	if arg == nil {
		return Argument{}
	}
	out := Argument{Table: NewTableFromPickle(arg.DataTable)}
	if arg.DocString != nil {
		out.DocString = strings.TrimSpace(arg.DocString.Content)
	}
	return out
}

// astLines maps the AST node ids referenced by pickles to source lines.
func astLines(doc *messages.GherkinDocument) map[string]int {
	lines := map[string]int{}
	addSteps := func(steps []*messages.Step) {
		for _, st := range steps {
			lines[st.Id] = int(st.Location.Line)
		}
	}
	addScenario := func(sc *messages.Scenario) {
		lines[sc.Id] = int(sc.Location.Line)
		addSteps(sc.Steps)
		for _, ex := range sc.Examples {
			for _, row := range ex.TableBody {
				lines[row.Id] = int(row.Location.Line)
			}
		}
	}
	for _, child := range doc.Feature.Children {
		switch {
		case child.Background != nil:
			addSteps(child.Background.Steps)
		case child.Scenario != nil:
			addScenario(child.Scenario)
		case child.Rule != nil:
			for _, rc := range child.Rule.Children {
				if rc.Background != nil {
					addSteps(rc.Background.Steps)
				}
				if rc.Scenario != nil {
					addScenario(rc.Scenario)
				}
			}
		}
	}
	return lines
}
