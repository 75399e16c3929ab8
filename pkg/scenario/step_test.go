package scenario

import (
	"errors"
	"testing"
	"time"

	messages "github.com/cucumber/messages/go/v21"
	"github.com/stretchr/testify/require"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/panel"
)

func TestStepValidate(t *testing.T) {
	save := harness.ByRole("button", "Speichern")
	tests := []struct {
		name    string
		step    Step
		wantErr string
	}{
		{"navigate", Step{Kind: KindNavigate, URL: "/lists/"}, ""},
		{"navigate without url", Step{Kind: KindNavigate}, "url is required"},
		{"navigate with unknown wait", Step{Kind: KindNavigate, URL: "/", WaitUntil: "idle"}, "unknown wait_until"},
		{"click", Step{Kind: KindClick, Target: save}, ""},
		{"click without target", Step{Kind: KindClick}, "target is required"},
		{"fill with empty value", Step{Kind: KindFill, Target: save}, ""},
		{"select without values", Step{Kind: KindSelect, Target: save}, "value or values is required"},
		{"page level press", Step{Kind: KindPress, Key: "Escape"}, ""},
		{"press without key", Step{Kind: KindPress}, "key is required"},
		{"text without text", Step{Kind: KindAssertText, Target: save}, "text is required"},
		{"attribute", Step{Kind: KindAssertAttribute, Target: save, Attribute: "disabled"}, ""},
		{"class without class", Step{Kind: KindAssertClass, Target: save}, "class is required"},
		{"network without url", Step{Kind: KindAssertNetworkCall}, "network.url is required"},
		{"define", Step{Kind: KindDefinePanel, Panel: "p", Define: &panel.Spec{Root: harness.ByID("p")}}, ""},
		{"define without spec", Step{Kind: KindDefinePanel, Panel: "p"}, "define is required"},
		{"open without trigger", Step{Kind: KindOpenPanel, Panel: "p"}, "target is required"},
		{"close with unknown method", Step{Kind: KindClosePanel, Panel: "p", Via: "swipe"}, "unknown close method"},
		{"assert transient panel state", Step{Kind: KindAssertPanel, Panel: "p", State: "opening"}, "open or closed"},
		{"negative timeout", Step{Kind: KindClick, Target: save, Timeout: -time.Second}, "timeout"},
		{"missing kind", Step{}, "kind is required"},
		{"unknown kind", Step{Kind: "drag"}, "unknown step kind"},
	}
	for _, tt := range tests {
		t.Run("should validate "+tt.name, func(t *testing.T) {
			err := tt.step.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestStepHelpers(t *testing.T) {
	state, err := Step{WaitUntil: "domcontentloaded"}.LoadState()
	require.NoError(t, err)
	require.Equal(t, browser.WaitDOMReady, state)
	state, _ = Step{}.LoadState()
	require.Equal(t, browser.WaitLoad, state)

	require.Equal(t, []string{"a"}, Step{Value: "a"}.SelectValues())
	require.Equal(t, []string{"a", "b"}, Step{Value: "x", Values: []string{"a", "b"}}.SelectValues())
	require.Equal(t, "p", Step{Define: &panel.Spec{Name: "p"}}.PanelName())
	require.True(t, KindAssertNetworkCall.IsAssertion())
	require.False(t, KindClick.IsAssertion())
	require.Len(t, Kinds(), 17)

	require.Equal(t, `fill [name="name"] with "Test Liste"`, Step{Kind: KindFill, Target: harness.ByAttr("name", "name"), Value: "Test Liste"}.Describe())
	require.Equal(t, "network call POST /create-list/ -> 200", Step{Kind: KindAssertNetworkCall, Network: NetworkExpect{URL: "/create-list/", Method: "post", Status: 200}}.Describe())
	require.Equal(t, `panel "create-list" is closed`, Step{Kind: KindAssertPanel, Panel: "create-list", State: "closed"}.Describe())
	require.Equal(t, "Submit", Step{Name: "Submit", Kind: KindClick}.Describe())
}

func TestScenario(t *testing.T) {
	sc := Scenario{
		Name:    "Create a list",
		BaseURL: "http://localhost:8000/app/",
		Tags:    []string{"@smoke"},
		Steps: []Step{
			{Kind: KindSelect, Target: harness.ByAttr("name", "match"), Values: []string{"exact"}},
			{Kind: KindDefinePanel, Define: &panel.Spec{Name: "p", Root: harness.ByID("p")}},
			{Kind: KindAssertPanel, Panel: "p", State: "closed"},
		},
	}

	t.Run("should accept panels defined by earlier steps", func(t *testing.T) {
		require.NoError(t, sc.Validate())
	})

	t.Run("should resolve urls against the base url", func(t *testing.T) {
		u, err := sc.ResolveURL("lists/")
		require.NoError(t, err)
		require.Equal(t, "http://localhost:8000/app/lists/", u)
		u, _ = sc.ResolveURL("/negative-keywords/")
		require.Equal(t, "http://localhost:8000/negative-keywords/", u)
		u, _ = Scenario{}.ResolveURL("http://example.com/")
		require.Equal(t, "http://example.com/", u)
	})

	t.Run("should deep copy on clone", func(t *testing.T) {
		c := sc.Clone()
		c.Tags[0] = "@changed"
		c.Steps[0].Values[0] = "broad"
		c.Steps[1].Define.Name = "q"
		require.Equal(t, "@smoke", sc.Tags[0])
		require.Equal(t, "exact", sc.Steps[0].Values[0])
		require.Equal(t, "p", sc.Steps[1].Define.Name)
	})

	t.Run("should reject scenarios without steps", func(t *testing.T) {
		require.Error(t, Scenario{Name: "empty"}.Validate())
		require.Error(t, Scenario{Steps: sc.Steps}.Validate())
	})
}

func TestStepLibrary(t *testing.T) {
	t.Run("should reject invalid definitions", func(t *testing.T) {
		l := NewStepLibrary()
		require.NoError(t, l.RegisterStep(`^I wait (\d+)ms$`, func(n int) Step { return Step{} }))
		require.ErrorContains(t, l.RegisterStep(`^I wait (\d+)ms$`, func(n int) Step { return Step{} }), "duplicate")
		require.Error(t, l.RegisterStep(`^(`, func() {}))
		require.Error(t, l.RegisterStep(`^x$`, "not a function"))
		require.ErrorContains(t, l.RegisterStep(`^y$`, func(s string) Step { return Step{} }), "groups")
		require.ErrorContains(t, l.RegisterStep(`^z$`, func() string { return "" }), "unsupported type")
		require.Equal(t, 1, l.Len())
	})

	t.Run("should convert captured arguments", func(t *testing.T) {
		l := NewStepLibrary()
		l.MustRegisterStep(`^wait (\S+) for '([^']*)' (\d+) times, strict (true|false)$`,
			func(d time.Duration, loc harness.Locator, n int, strict bool) Step {
				return Step{Kind: KindAssertVisible, Target: loc, Count: n, Timeout: d, Exact: strict}
			})

		steps, err := l.Build(&Scenario{}, `wait 3s for 'text="Gespeichert"' 2 times, strict true`, Argument{})
		require.NoError(t, err)
		require.Equal(t, []Step{{Kind: KindAssertVisible, Target: harness.ByText("Gespeichert"), Count: 2, Timeout: 3 * time.Second, Exact: true}}, steps)

		_, err = l.Build(&Scenario{}, `wait soon for 'text="x"' 2 times, strict true`, Argument{})
		require.ErrorContains(t, err, "failed to convert")
	})

	t.Run("should return handler errors", func(t *testing.T) {
		l := NewStepLibrary()
		boom := errors.New("boom")
		l.MustRegisterStep(`^fail$`, func() (Step, error) { return Step{}, boom })
		_, err := l.Build(&Scenario{}, "fail", Argument{})
		require.ErrorIs(t, err, boom)
	})

	t.Run("should mark optional steps", func(t *testing.T) {
		steps, err := DefaultLibrary().Build(&Scenario{}, `I press "Escape" (optional)`, Argument{})
		require.NoError(t, err)
		require.Equal(t, []Step{{Kind: KindPress, Key: "Escape", ContinueOnFailure: true}}, steps)
	})

	t.Run("should build panel definitions from tables", func(t *testing.T) {
		arg := pickleArgument(&messages.PickleStepArgument{DataTable: &messages.PickleTable{Rows: []*messages.PickleTableRow{
			{Cells: []*messages.PickleTableCell{{Value: "root"}, {Value: `[id="edit-panel"]`}}},
			{Cells: []*messages.PickleTableCell{{Value: "Close Button"}, {Value: `role=button name="Abbrechen"`}}},
		}}})
		steps, err := DefaultLibrary().Build(&Scenario{}, `the panel "edit" is defined as:`, arg)
		require.NoError(t, err)
		require.Equal(t, &panel.Spec{Name: "edit", Root: harness.ByID("edit-panel"), CloseButton: harness.ByRole("button", "Abbrechen")}, steps[0].Define)

		bad := NewTable([][]string{{"root", `[id="edit-panel"]`}, {"color", "red"}})
		_, err = DefaultLibrary().Build(&Scenario{}, `the panel "edit" is defined as:`, Argument{Table: bad})
		require.ErrorContains(t, err, "unknown panel property")
	})

	t.Run("should cover the default phrasings", func(t *testing.T) {
		lib := DefaultLibrary()
		for text, want := range map[string]Step{
			`I go to "/lists/" and wait for networkidle`:                       {Kind: KindNavigate, URL: "/lists/", WaitUntil: "networkidle"},
			`I navigate to "/lists/" and wait for '[data-loaded]'`:             {Kind: KindNavigate, URL: "/lists/", WaitFor: harness.HasAttr("data-loaded")},
			`I click the text "Alle"`:                                          {Kind: KindClick, Target: harness.ByText("Alle")},
			`I hover over 'role=row'`:                                          {Kind: KindHover, Target: harness.ByRole("row", "")},
			`I fill the "Name" field with "Test"`:                              {Kind: KindFill, Target: harness.ByRole("textbox", "Name"), Value: "Test"},
			`I select "exact, phrase" in '[name="match"]'`:                     {Kind: KindSelect, Target: harness.ByAttr("name", "match"), Values: []string{"exact", "phrase"}},
			`I press "Enter" on '[name="name"]'`:                               {Kind: KindPress, Key: "Enter", Target: harness.ByAttr("name", "name")},
			`I wait for 'text~="Gespeichert"'`:                                 {Kind: KindWaitFor, Target: harness.ByTextContaining("Gespeichert")},
			`'role=listitem' should be visible 3 times`:                        {Kind: KindAssertVisible, Target: harness.ByRole("listitem", ""), Count: 3},
			`the text "Fehler" should not be visible`:                          {Kind: KindAssertAbsent, Target: harness.ByText("Fehler")},
			`'[data-count]' should contain the text "3"`:                       {Kind: KindAssertText, Target: harness.HasAttr("data-count"), Text: "3"},
			`'[data-count]' should have the attribute "data-count" with value "3"`: {Kind: KindAssertAttribute, Target: harness.HasAttr("data-count"), Attribute: "data-count", Value: "3"},
			`'role=button' should not have the attribute "disabled"`:           {Kind: KindAssertAttribute, Target: harness.ByRole("button", ""), Attribute: "disabled", Negate: true},
			`a DELETE request to "/lists/4/" should be sent`:                   {Kind: KindAssertNetworkCall, Network: NetworkExpect{URL: "/lists/4/", Method: "DELETE"}},
			`I close the panel "create-list"`:                                  {Kind: KindClosePanel, Panel: "create-list"},
			`the panel "create-list" should be open`:                           {Kind: KindAssertPanel, Panel: "create-list", State: "open"},
		} {
			steps, err := lib.Build(&Scenario{}, text, Argument{})
			require.NoError(t, err, text)
			require.Equal(t, []Step{want}, steps, text)
		}
	})

	t.Run("should set the base url without adding a step", func(t *testing.T) {
		sc := &Scenario{}
		steps, err := DefaultLibrary().Build(sc, `the base URL is "http://localhost:8000"`, Argument{})
		require.NoError(t, err)
		require.Empty(t, steps)
		require.Equal(t, "http://localhost:8000", sc.BaseURL)
	})
}

func TestTable(t *testing.T) {
	table := NewTable([][]string{{"name", "match"}, {"Marke", "exact"}, {"Konkurrenz", "broad"}})
	require.Equal(t, 3, table.Len())
	require.Equal(t, []string{"name", "match"}, table.Headers())

	var rows []string
	for i, row := range table.SkipHeader() {
		rows = append(rows, row.Get("MATCH"))
		require.Equal(t, row.Cell(0), table.rows[i+1].Cell(0))
	}
	require.Equal(t, []string{"exact", "broad"}, rows)
	require.Empty(t, NewTable(nil).Headers())
	require.Equal(t, "", table.rows[1].Cell(5))
	require.Equal(t, map[string]string{"name": "match", "marke": "exact", "konkurrenz": "broad"}, table.Pairs())
	require.Equal(t, 0, NewTableFromPickle(nil).Len())
}
