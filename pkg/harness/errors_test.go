package harness

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("exec: chromium not found")
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"launch", &LaunchError{Engine: "rod", Err: cause}, KindLaunch},
		{"wrapped navigation", fmt.Errorf("step 1: %w", &NavigationError{URL: "/x", Err: cause}), KindNavigation},
		{"not found", &ElementNotFoundError{Locator: ByText("x")}, KindElementNotFound},
		{"fill", &FillVerificationError{Locator: ByAttr("name", "name")}, KindFillVerification},
		{"panel", &PanelTimeoutError{Panel: "create-list"}, KindPanelTimeout},
		{"assertion", &AssertionFailure{Description: "x"}, KindAssertion},
		{"cancelled", fmt.Errorf("click: %w", context.Canceled), KindCancelled},
		{"anything else", errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	t.Run("launch error unwraps its cause", func(t *testing.T) {
		cause := errors.New("no binary")
		err := &LaunchError{Engine: "chromedp", Err: cause}
		require.ErrorIs(t, err, cause)
		require.Equal(t, "could not launch chromedp browser: no binary", err.Error())
		require.True(t, IsLaunchError(fmt.Errorf("open: %w", err)))
	})

	t.Run("navigation error reports timeouts distinctly", func(t *testing.T) {
		err := &NavigationError{URL: "http://app/lists/", WaitUntil: "networkidle", Timeout: 30 * time.Second, Err: context.DeadlineExceeded}
		require.True(t, err.TimedOut())
		require.Equal(t, "navigation to http://app/lists/ did not reach networkidle within 30s", err.Error())

		err = &NavigationError{URL: "http://app/lists/", WaitUntil: "load", Err: errors.New("net::ERR_CONNECTION_REFUSED")}
		require.False(t, err.TimedOut())
		require.Contains(t, err.Error(), "ERR_CONNECTION_REFUSED")
	})

	t.Run("element not found names the locator and wait", func(t *testing.T) {
		err := &ElementNotFoundError{Locator: ByRole("button", "Löschen"), Waited: 1203 * time.Millisecond, Expected: "at least 1", Found: 0}
		require.Equal(t, `element role=button name="Löschen" not found: expected at least 1, found 0 after 1.203s`, err.Error())
		require.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	})

	t.Run("panel timeout includes the reason", func(t *testing.T) {
		err := &PanelTimeoutError{Panel: "edit", From: PanelOpen, To: PanelClosed, Waited: time.Second, Reason: "body scroll still locked"}
		require.Equal(t, `panel "edit" did not reach closed from open within 1s: body scroll still locked`, err.Error())
	})
}
