package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/browser/browsertest"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/locate"
)

const form = `<body>
<form>
  <label for="name">Name</label><input id="name" name="name">
  <input id="slug" name="slug" readonly value="auto">
  <select name="match"><option value="exact">Exact</option><option value="broad">Broad</option></select>
  <button type="button" class="save">Speichern</button>
  <button type="button" class="save">Speichern</button>
</form>
</body>`

var quick = locate.Options{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}

func newRecorder(p *browsertest.Page) *Recorder {
	return New(p, locate.New(p))
}

func TestFill(t *testing.T) {
	ctx := context.Background()

	t.Run("should fill and verify the value", func(t *testing.T) {
		p := browsertest.NewPage(form)
		r := newRecorder(p)
		require.NoError(t, r.Fill(ctx, harness.ByRole("textbox", "Name"), "Test Liste", quick))

		records := r.Records()
		require.Len(t, records, 1)
		require.Equal(t, "fill", records[0].Action)
		require.Equal(t, `role=textbox name="Name"`, records[0].Target)
		require.Equal(t, "Test Liste", records[0].Value)
		require.True(t, records[0].Success)

		el, _, err := locate.New(p).FindOne(ctx, harness.ByAttr("name", "name"), quick)
		require.NoError(t, err)
		value, err := el.Value(ctx)
		require.NoError(t, err)
		require.Equal(t, "Test Liste", value)
	})

	t.Run("should fail verification on readonly fields", func(t *testing.T) {
		r := newRecorder(browsertest.NewPage(form))
		err := r.Fill(ctx, harness.ByAttr("name", "slug"), "custom", quick)

		var fillErr *harness.FillVerificationError
		require.ErrorAs(t, err, &fillErr)
		require.Equal(t, "custom", fillErr.Expected)
		require.Equal(t, "auto", fillErr.Actual)
		require.False(t, r.Records()[0].Success)
		require.NotEmpty(t, r.Records()[0].Error)
	})
}

func TestClick(t *testing.T) {
	ctx := context.Background()

	t.Run("should record the ambiguity warning", func(t *testing.T) {
		p := browsertest.NewPage(form)
		clicks := 0
		p.OnClick(harness.ByAttrMatch("class", harness.AttrWord, "save"), func(*browsertest.Page) { clicks++ })
		r := newRecorder(p)

		require.NoError(t, r.Click(ctx, harness.ByRole("button", "Speichern"), quick))
		require.Equal(t, 1, clicks)
		require.Contains(t, r.Records()[0].Warning, "matched 2 elements")
	})

	t.Run("should record missing targets as failed actions", func(t *testing.T) {
		r := newRecorder(browsertest.NewPage(form))
		err := r.Click(ctx, harness.ByRole("button", "Löschen"), quick)
		require.True(t, harness.IsNotFound(err))
		require.False(t, r.Records()[0].Success)
	})

	t.Run("should resolve the locator again for every action", func(t *testing.T) {
		controller := gomock.NewController(t)
		driver := browser.NewMockDriver(controller)
		first := browser.NewMockElement(controller)
		second := browser.NewMockElement(controller)
		loc := harness.ByRole("button", "Speichern")

		gomock.InOrder(
			driver.EXPECT().Query(gomock.Any(), loc).Return([]browser.Element{first}, nil),
			first.EXPECT().Visible(gomock.Any()).Return(true, nil),
			first.EXPECT().Click(gomock.Any()).Return(nil),
			driver.EXPECT().Query(gomock.Any(), loc).Return([]browser.Element{second}, nil),
			second.EXPECT().Visible(gomock.Any()).Return(true, nil),
			second.EXPECT().Click(gomock.Any()).Return(nil),
		)

		r := New(driver, locate.New(driver))
		require.NoError(t, r.Click(ctx, loc, quick))
		require.NoError(t, r.Click(ctx, loc, quick))
		require.Len(t, r.Records(), 2)
	})
}

func TestSelectAndKeys(t *testing.T) {
	ctx := context.Background()
	p := browsertest.NewPage(form)
	escapes := 0
	p.OnKey("Escape", func(*browsertest.Page) { escapes++ })
	r := newRecorder(p)

	require.NoError(t, r.Select(ctx, harness.ByAttr("name", "match"), []string{"Broad"}, quick))
	require.Error(t, r.Select(ctx, harness.ByAttr("name", "match"), []string{"Phrase"}, quick))
	require.NoError(t, r.Hover(ctx, harness.ByRole("textbox", "Name"), quick))
	require.NoError(t, r.Press(ctx, "Escape"))
	require.NoError(t, r.PressOn(ctx, harness.ByRole("textbox", "Name"), "Escape", quick))

	require.Equal(t, 2, escapes)
	records := r.Records()
	require.Len(t, records, 5)
	require.Equal(t, "Broad", records[0].Value)
	require.False(t, records[1].Success)
	require.Equal(t, "press", records[3].Action)
	require.Empty(t, records[3].Target)
}
