package harness

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LocatorKind identifies which variant of a Locator is populated.
type LocatorKind string

const (
	LocatorRole LocatorKind = "role"
	LocatorText LocatorKind = "text"
	LocatorAttr LocatorKind = "attr"
)

// AttrOp is the comparison used by an attribute predicate.
type AttrOp string

const (
	AttrExists   AttrOp = "exists"
	AttrEquals   AttrOp = "equals"
	AttrContains AttrOp = "contains"
	AttrPrefix   AttrOp = "prefix"
	AttrSuffix   AttrOp = "suffix"
	AttrWord     AttrOp = "word"
)

var attrOpTokens = map[AttrOp]string{
	AttrEquals:   "=",
	AttrContains: "*=",
	AttrPrefix:   "^=",
	AttrSuffix:   "$=",
	AttrWord:     "~=",
}

// Locator is a semantic description of how to find DOM elements.
// Exactly one of Role, Text or Attr must be set. A Locator is never resolved
// when it is built; resolution happens against the live page at execution time.
type Locator struct {
	// Role matches the explicit or implicit ARIA role, optionally narrowed
	// by the accessible Name.
	Role string `yaml:"role,omitempty" json:"role,omitempty"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Text matches the innermost elements whose normalized text equals
	// (Exact) or contains Text.
	Text  string `yaml:"text,omitempty" json:"text,omitempty"`
	Exact bool   `yaml:"exact,omitempty" json:"exact,omitempty"`

	// Attr is a CSS-like attribute predicate: [Attr Op Value].
	Attr  string `yaml:"attr,omitempty" json:"attr,omitempty"`
	Op    AttrOp `yaml:"op,omitempty" json:"op,omitempty"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// ByRole locates elements by ARIA role and accessible name.
func ByRole(role, name string) Locator {
	return Locator{Role: role, Name: name}
}

// ByText locates the innermost elements whose text equals text.
func ByText(text string) Locator {
	return Locator{Text: text, Exact: true}
}

// ByTextContaining locates the innermost elements whose text contains text.
func ByTextContaining(text string) Locator {
	return Locator{Text: text}
}

// ByAttr locates elements whose attribute name equals value.
func ByAttr(name, value string) Locator {
	return Locator{Attr: name, Op: AttrEquals, Value: value}
}

// ByAttrMatch locates elements with an attribute predicate.
func ByAttrMatch(name string, op AttrOp, value string) Locator {
	return Locator{Attr: name, Op: op, Value: value}
}

// HasAttr locates elements carrying the attribute name.
func HasAttr(name string) Locator {
	return Locator{Attr: name, Op: AttrExists}
}

// ByID locates the element with the given id.
func ByID(id string) Locator {
	return ByAttr("id", id)
}

// ByTestID locates elements by their data-testid attribute.
func ByTestID(id string) Locator {
	return ByAttr("data-testid", id)
}

// Kind reports the populated variant, or "" when none or several are set.
func (l Locator) Kind() LocatorKind {
	var kinds []LocatorKind
	if l.Role != "" {
		kinds = append(kinds, LocatorRole)
	}
	if l.Text != "" {
		kinds = append(kinds, LocatorText)
	}
	if l.Attr != "" {
		kinds = append(kinds, LocatorAttr)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// IsZero reports whether no variant is populated.
func (l Locator) IsZero() bool {
	return l == Locator{}
}

// Validate checks that exactly one variant is populated and its fields are consistent.
func (l Locator) Validate() error {
	switch l.Kind() {
	case LocatorRole:
		if l.Text != "" || l.Exact || l.Op != "" || l.Value != "" {
			return fmt.Errorf("role locator %q carries fields of another variant", l.Role)
		}
	case LocatorText:
		if l.Name != "" || l.Op != "" || l.Value != "" {
			return fmt.Errorf("text locator %q carries fields of another variant", l.Text)
		}
	case LocatorAttr:
		if l.Name != "" || l.Exact {
			return fmt.Errorf("attribute locator %q carries fields of another variant", l.Attr)
		}
		op := l.effectiveOp()
		if op == AttrExists {
			if l.Value != "" {
				return fmt.Errorf("attribute locator %q: exists predicate takes no value", l.Attr)
			}
			return nil
		}
		if _, ok := attrOpTokens[op]; !ok {
			return fmt.Errorf("attribute locator %q: unknown operator %q", l.Attr, l.Op)
		}
	default:
		if l.IsZero() {
			return errors.New("empty locator")
		}
		return errors.New("locator must set exactly one of role, text or attr")
	}
	return nil
}

// effectiveOp defaults the operator: a value without an operator means equals.
func (l Locator) effectiveOp() AttrOp {
	if l.Op != "" {
		return l.Op
	}
	if l.Value != "" {
		return AttrEquals
	}
	return AttrExists
}

// Normalized returns the locator with defaults filled in.
func (l Locator) Normalized() Locator {
	if l.Kind() == LocatorAttr {
		l.Op = l.effectiveOp()
	}
	return l
}

// String renders the compact form accepted by ParseLocator.
func (l Locator) String() string {
	switch l.Kind() {
	case LocatorRole:
		if l.Name == "" {
			return "role=" + l.Role
		}
		return "role=" + l.Role + " name=" + strconv.Quote(l.Name)
	case LocatorText:
		if l.Exact {
			return "text=" + strconv.Quote(l.Text)
		}
		return "text~=" + strconv.Quote(l.Text)
	case LocatorAttr:
		op := l.effectiveOp()
		if op == AttrExists {
			return "[" + l.Attr + "]"
		}
		return "[" + l.Attr + attrOpTokens[op] + strconv.Quote(l.Value) + "]"
	default:
		return "<invalid locator>"
	}
}

// ParseLocator parses the compact locator syntax:
//
//	role=button name="Neue Liste"
//	text="Speichern"        exact text
//	text~="Liste"           text contains
//	[data-count]            attribute present
//	[id="panel"]            also *= ^= $= ~=
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "role="):
		return parseRoleLocator(strings.TrimPrefix(s, "role="))
	case strings.HasPrefix(s, "text~="):
		text, rest, err := readValue(strings.TrimPrefix(s, "text~="))
		if err != nil || rest != "" {
			return Locator{}, fmt.Errorf("invalid text locator %q", s)
		}
		return ByTextContaining(text), nil
	case strings.HasPrefix(s, "text="):
		text, rest, err := readValue(strings.TrimPrefix(s, "text="))
		if err != nil || rest != "" {
			return Locator{}, fmt.Errorf("invalid text locator %q", s)
		}
		return ByText(text), nil
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		return parseAttrLocator(s, s[1:len(s)-1])
	default:
		return Locator{}, fmt.Errorf("invalid locator %q: expected role=, text=, text~= or [attr]", s)
	}
}

// MustParseLocator is ParseLocator for literals; it panics on error.
func MustParseLocator(s string) Locator {
	loc, err := ParseLocator(s)
	if err != nil {
		panic(err)
	}
	return loc
}

func parseRoleLocator(s string) (Locator, error) {
	role, rest, _ := strings.Cut(s, " ")
	if role == "" {
		return Locator{}, fmt.Errorf("invalid role locator %q", s)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return ByRole(role, ""), nil
	}
	if !strings.HasPrefix(rest, "name=") {
		return Locator{}, fmt.Errorf("invalid role locator %q: expected name=", s)
	}
	name, tail, err := readValue(strings.TrimPrefix(rest, "name="))
	if err != nil || tail != "" {
		return Locator{}, fmt.Errorf("invalid role locator %q", s)
	}
	return ByRole(role, name), nil
}

func parseAttrLocator(full, body string) (Locator, error) {
	idx := strings.IndexAny(body, "=*^$~")
	if idx < 0 {
		name := strings.TrimSpace(body)
		if name == "" {
			return Locator{}, fmt.Errorf("invalid attribute locator %q", full)
		}
		return HasAttr(name), nil
	}
	name := strings.TrimSpace(body[:idx])
	rest := body[idx:]
	var op AttrOp
	for candidate, token := range attrOpTokens {
		if strings.HasPrefix(rest, token) && (op == "" || len(token) > len(attrOpTokens[op])) {
			op = candidate
		}
	}
	if name == "" || op == "" {
		return Locator{}, fmt.Errorf("invalid attribute locator %q", full)
	}
	value, tail, err := readValue(strings.TrimPrefix(rest, attrOpTokens[op]))
	if err != nil || tail != "" {
		return Locator{}, fmt.Errorf("invalid attribute locator %q", full)
	}
	return ByAttrMatch(name, op, value), nil
}

// readValue reads a quoted or bare value and returns the remainder.
func readValue(s string) (string, string, error) {
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return "", "", errors.New("missing value")
	}
	if s[0] == '"' || s[0] == '\'' {
		quote := s[0]
		escaped := false
		for i := 1; i < len(s); i++ {
			switch {
			case escaped:
				escaped = false
			case s[i] == '\\':
				escaped = true
			case s[i] == quote:
				raw := s[:i+1]
				if quote == '\'' {
					raw = `"` + strings.ReplaceAll(s[1:i], `"`, `\"`) + `"`
				}
				value, err := strconv.Unquote(raw)
				if err != nil {
					return "", "", err
				}
				return value, strings.TrimSpace(s[i+1:]), nil
			}
		}
		return "", "", errors.New("unterminated quote")
	}
	value, rest, _ := strings.Cut(s, " ")
	return value, strings.TrimSpace(rest), nil
}

// UnmarshalYAML accepts either the compact string form or a mapping.
func (l *Locator) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		loc, err := ParseLocator(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*l = loc
		return nil
	}
	type plain Locator
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*l = Locator(p)
	if err := l.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}
