package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseLocator(t *testing.T) {
	cases := []struct {
		in   string
		want Locator
	}{
		{`role=button name="Neue Liste"`, ByRole("button", "Neue Liste")},
		{`role=dialog`, ByRole("dialog", "")},
		{`role=link name=Home`, ByRole("link", "Home")},
		{`text="Speichern"`, ByText("Speichern")},
		{`text~='Liste'`, ByTextContaining("Liste")},
		{`[data-count]`, HasAttr("data-count")},
		{`[id="create-list-panel"]`, ByID("create-list-panel")},
		{`[name*="keyword"]`, ByAttrMatch("name", AttrContains, "keyword")},
		{`[href^="/lists"]`, ByAttrMatch("href", AttrPrefix, "/lists")},
		{`[href$=".xlsx"]`, ByAttrMatch("href", AttrSuffix, ".xlsx")},
		{`[class~="hidden"]`, ByAttrMatch("class", AttrWord, "hidden")},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLocator(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.NoError(t, got.Validate())
		})
	}

	t.Run("rejects unknown prefixes", func(t *testing.T) {
		for _, in := range []string{"", ".bg-white.rounded-2xl", "role=", `text="unterminated`, "[=x]", `role=button label="x"`} {
			_, err := ParseLocator(in)
			require.Error(t, err, in)
		}
	})
}

func TestLocatorStringRoundTrip(t *testing.T) {
	locs := []Locator{
		ByRole("button", "Schließen"),
		ByRole("textbox", ""),
		ByText(`Say "hi"`),
		ByTextContaining("Liste"),
		HasAttr("data-count"),
		ByTestID("submit"),
		ByAttrMatch("class", AttrWord, "translate-x-full"),
	}
	for _, loc := range locs {
		parsed, err := ParseLocator(loc.String())
		require.NoError(t, err, loc.String())
		require.Equal(t, loc, parsed)
	}
}

func TestLocatorValidate(t *testing.T) {
	t.Run("rejects an empty locator", func(t *testing.T) {
		require.EqualError(t, Locator{}.Validate(), "empty locator")
	})

	t.Run("rejects several variants at once", func(t *testing.T) {
		err := Locator{Role: "button", Text: "Speichern"}.Validate()
		require.ErrorContains(t, err, "exactly one")
	})

	t.Run("rejects stray fields", func(t *testing.T) {
		require.Error(t, Locator{Role: "button", Value: "x"}.Validate())
		require.Error(t, Locator{Text: "x", Name: "y"}.Validate())
		require.Error(t, Locator{Attr: "id", Exact: true}.Validate())
		require.Error(t, Locator{Attr: "id", Op: AttrExists, Value: "x"}.Validate())
		require.Error(t, Locator{Attr: "id", Op: "matches", Value: "x"}.Validate())
	})

	t.Run("defaults the attribute operator", func(t *testing.T) {
		require.Equal(t, AttrEquals, Locator{Attr: "id", Value: "x"}.Normalized().Op)
		require.Equal(t, AttrExists, Locator{Attr: "hidden"}.Normalized().Op)
	})
}

func TestLocatorUnmarshalYAML(t *testing.T) {
	type holder struct {
		Target Locator `yaml:"target"`
	}

	t.Run("accepts the compact string form", func(t *testing.T) {
		var h holder
		require.NoError(t, yaml.Unmarshal([]byte(`target: 'role=button name="Speichern"'`), &h))
		require.Equal(t, ByRole("button", "Speichern"), h.Target)
	})

	t.Run("accepts a mapping", func(t *testing.T) {
		var h holder
		require.NoError(t, yaml.Unmarshal([]byte("target: {role: button, name: Speichern}"), &h))
		require.Equal(t, ByRole("button", "Speichern"), h.Target)
	})

	t.Run("reports invalid locators with their line", func(t *testing.T) {
		var h holder
		err := yaml.Unmarshal([]byte("target: {role: button, text: Speichern}"), &h)
		require.ErrorContains(t, err, "line 1")
	})
}
