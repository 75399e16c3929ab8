package cdpdriver

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/require"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

func TestKey(t *testing.T) {
	k, err := Key("Escape")
	require.NoError(t, err)
	require.Equal(t, kb.Escape, k)

	k, err = Key("x")
	require.NoError(t, err)
	require.Equal(t, "x", k)

	_, err = Key("Hyper")
	require.Error(t, err)
}

func TestConvert(t *testing.T) {
	t.Run("should convert requests and responses", func(t *testing.T) {
		ev, ok := convert(&network.EventRequestWillBeSent{
			RequestID: "7",
			Request:   &network.Request{URL: "http://app/api/lists/", Method: "POST"},
		})
		require.True(t, ok)
		require.Equal(t, browser.EventRequest, ev.Kind)
		require.Equal(t, "7", ev.RequestID)
		require.Equal(t, "POST", ev.Method)

		ev, ok = convert(&network.EventResponseReceived{
			RequestID: "7",
			Response:  &network.Response{URL: "http://app/api/lists/", Status: 201},
		})
		require.True(t, ok)
		require.Equal(t, browser.EventResponse, ev.Kind)
		require.Equal(t, 201, ev.Status)
	})

	t.Run("should join console arguments", func(t *testing.T) {
		ev, ok := convert(&runtime.EventConsoleAPICalled{
			Type: runtime.APITypeWarning,
			Args: []*runtime.RemoteObject{
				{Value: []byte(`"list"`)},
				{Value: []byte(`3`)},
				{Description: "Object"},
			},
		})
		require.True(t, ok)
		require.Equal(t, browser.EventConsole, ev.Kind)
		require.Equal(t, "warning", ev.Level)
		require.Equal(t, "list 3 Object", ev.Text)
	})

	t.Run("should ignore unrelated events", func(t *testing.T) {
		_, ok := convert(&network.EventDataReceived{})
		require.False(t, ok)
	})
}

func TestQueryScript(t *testing.T) {
	script, err := queryScript(harness.ByAttr("data-testid", "save"))
	require.NoError(t, err)
	require.Contains(t, script, browser.LocatorScript)
	require.Contains(t, script, `"op":"equals"`)
	require.Contains(t, script, RefAttr)
}
