package scenario

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// OptionalSuffix marks a feature file step as continue-on-failure.
const OptionalSuffix = " (optional)"

// ErrNoStepMatch is returned when no definition matches a step text.
var ErrNoStepMatch = errors.New("no matching step definition")

// StepDefinition pairs a compiled pattern with the function that builds
// steps from its capture groups.
type StepDefinition struct {
	Pattern  *regexp.Regexp
	Function any
}

// Argument is the data table or doc string attached to a step.
type Argument struct {
	Table     Table
	DocString string
}

// StepLibrary turns feature file step texts into Steps.
//
// A step function receives the capture groups converted to its parameter
// types (string, bool, integers, floats, time.Duration, harness.Locator).
// Parameters of type *Scenario, Table and Argument are injected instead.
// It returns any combination of Step, []Step and error.
type StepLibrary struct {
	steps      []StepDefinition
	patternSet map[string]bool
}

// NewStepLibrary creates an empty library.
func NewStepLibrary() *StepLibrary {
	return &StepLibrary{patternSet: make(map[string]bool)}
}

var (
	scenarioType = reflect.TypeFor[*Scenario]()
	tableType    = reflect.TypeFor[Table]()
	argumentType = reflect.TypeFor[Argument]()
	contextTypes = map[reflect.Type]bool{scenarioType: true, tableType: true, argumentType: true}
	stepType     = reflect.TypeFor[Step]()
	stepsType    = reflect.TypeFor[[]Step]()
	errorType    = reflect.TypeFor[error]()
	locatorType  = reflect.TypeFor[harness.Locator]()
	durationType = reflect.TypeFor[time.Duration]()
)

// RegisterStep adds a step definition. Patterns are anchored by the caller.
func (l *StepLibrary) RegisterStep(pattern string, fn any) error {
	if l.patternSet[pattern] {
		return fmt.Errorf("duplicate step pattern: %s", pattern)
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid step pattern %q: %w", pattern, err)
	}

	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return fmt.Errorf("step handler must be a function, got %T", fn)
	}
	captured := 0
	for i := range fnType.NumIn() {
		if !contextTypes[fnType.In(i)] {
			captured++
		}
	}
	if captured > compiled.NumSubexp() {
		return fmt.Errorf("step pattern %q has %d groups, handler needs %d", pattern, compiled.NumSubexp(), captured)
	}
	for i := range fnType.NumOut() {
		switch fnType.Out(i) {
		case stepType, stepsType, errorType:
		default:
			return fmt.Errorf("step handler for %q returns unsupported type %s", pattern, fnType.Out(i))
		}
	}

	l.steps = append(l.steps, StepDefinition{Pattern: compiled, Function: fn})
	l.patternSet[pattern] = true
	return nil
}

// MustRegisterStep is RegisterStep for static definitions.
func (l *StepLibrary) MustRegisterStep(pattern string, fn any) *StepLibrary {
	if err := l.RegisterStep(pattern, fn); err != nil {
		panic(err)
	}
	return l
}

// Len counts the registered definitions.
func (l *StepLibrary) Len() int {
	return len(l.steps)
}

// Build matches text against the definitions in registration order and
// returns the steps of the first match. A trailing " (optional)" makes
// the steps continue-on-failure.
func (l *StepLibrary) Build(sc *Scenario, text string, arg Argument) ([]Step, error) {
	text = strings.TrimSpace(text)
	optional := strings.HasSuffix(text, OptionalSuffix)
	text = strings.TrimSuffix(text, OptionalSuffix)

	for _, def := range l.steps {
		matches := def.Pattern.FindStringSubmatch(text)
		if matches == nil {
			continue
		}
		steps, err := l.invoke(def.Function, sc, matches[1:], arg)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", text, err)
		}
		for i := range steps {
			if optional {
				steps[i].ContinueOnFailure = true
			}
		}
		return steps, nil
	}
	return nil, fmt.Errorf("%w for: %s", ErrNoStepMatch, text)
}

func (l *StepLibrary) invoke(fn any, sc *Scenario, captured []string, arg Argument) ([]Step, error) {
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()

	callArgs := make([]reflect.Value, 0, fnType.NumIn())
	next := 0
	for i := range fnType.NumIn() {
		paramType := fnType.In(i)
		switch paramType {
		case scenarioType:
			callArgs = append(callArgs, reflect.ValueOf(sc))
			continue
		case tableType:
			callArgs = append(callArgs, reflect.ValueOf(arg.Table))
			continue
		case argumentType:
			callArgs = append(callArgs, reflect.ValueOf(arg))
			continue
		}
		if next >= len(captured) {
			return nil, fmt.Errorf("not enough captured arguments: have %d", len(captured))
		}
		raw := captured[next]
		next++
		converted, err := convertArg(raw, paramType)
		if err != nil {
			return nil, fmt.Errorf("failed to convert argument %q to %s: %w", raw, paramType, err)
		}
		callArgs = append(callArgs, converted)
	}

	var steps []Step
	for i, result := range fnValue.Call(callArgs) {
		switch fnType.Out(i) {
		case errorType:
			if !result.IsNil() {
				return nil, result.Interface().(error)
			}
		case stepType:
			steps = append(steps, result.Interface().(Step))
		case stepsType:
			steps = append(steps, result.Interface().([]Step)...)
		}
	}
	return steps, nil
}

// convertArg converts a capture group to the parameter type.
func convertArg(arg string, targetType reflect.Type) (reflect.Value, error) {
	switch targetType {
	case locatorType:
		loc, err := harness.ParseLocator(arg)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(loc), nil
	case durationType:
		d, err := time.ParseDuration(arg)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(d), nil
	}

	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(arg).Convert(targetType), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(arg, 10, targetType.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v).Convert(targetType), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(arg, 10, targetType.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v).Convert(targetType), nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(arg, targetType.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v).Convert(targetType), nil
	case reflect.Bool:
		v, err := strconv.ParseBool(arg)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v), nil
	default:
		return reflect.Value{}, fmt.Errorf("unsupported parameter type: %s", targetType)
	}
}
