package network

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/guldbach/google-ads-builder-sub001/pkg/browser/browsertest"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newObserver(t *testing.T, opts ...Option) (*Observer, *browsertest.Page) {
	t.Helper()
	p := browsertest.NewPage(`<body></body>`)
	o := New(p, append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)...)
	t.Cleanup(o.StopCapture)
	return o, p
}

func TestCaptureWindow(t *testing.T) {
	t.Run("should only keep events inside the window", func(t *testing.T) {
		o, p := newObserver(t)
		p.Request("GET", "http://app/before", 200)

		require.NoError(t, o.StartCapture())
		require.True(t, o.Capturing())
		p.Request("POST", "http://app/create-list/", 200)
		o.StopCapture()
		p.Request("GET", "http://app/after", 200)

		events := o.Events()
		require.Len(t, events, 2)
		require.Equal(t, harness.PhaseRequest, events[0].Phase)
		require.Equal(t, harness.PhaseResponse, events[1].Phase)
		require.Zero(t, p.Subscribers())
	})

	t.Run("should clear the buffer when a new window starts", func(t *testing.T) {
		o, p := newObserver(t)
		require.NoError(t, o.StartCapture())
		p.Request("GET", "http://app/first", 200)
		p.Console("log", "first scenario")

		require.NoError(t, o.StartCapture())
		require.Empty(t, o.Events())
		require.Empty(t, o.Console())
		require.Equal(t, 1, p.Subscribers())
	})

	t.Run("should let responses inherit the request method", func(t *testing.T) {
		o, p := newObserver(t)
		require.NoError(t, o.StartCapture())
		p.Request("POST", "http://app/update-negative-keyword/", 204)
		p.FailRequest("DELETE", "http://app/lists/4/", "net::ERR_ABORTED")

		events := o.Events()
		require.Len(t, events, 4)
		require.Equal(t, "POST", events[1].Method)
		require.Equal(t, 204, events[1].Status)
		require.Equal(t, harness.PhaseError, events[3].Phase)
		require.Equal(t, "DELETE", events[3].Method)
		require.Equal(t, "http://app/lists/4/", events[3].URL)
		require.Equal(t, "net::ERR_ABORTED", events[3].ErrorText)
	})

	t.Run("should drop the oldest entries beyond the limit", func(t *testing.T) {
		o, p := newObserver(t, WithCaptureLimit(3))
		require.NoError(t, o.StartCapture())
		p.Request("GET", "http://app/1", 200)
		p.Request("GET", "http://app/2", 200)

		events := o.Events()
		require.Len(t, events, 3)
		require.Equal(t, "http://app/1", events[0].URL)
		require.Equal(t, harness.PhaseResponse, events[0].Phase)
		require.Equal(t, 1, o.Dropped())
		require.Len(t, o.Warnings(), 1)
	})

	t.Run("should capture console output and page errors", func(t *testing.T) {
		o, p := newObserver(t)
		require.NoError(t, o.StartCapture())
		p.Console("warning", "slow response")
		p.PageError("TypeError: x is undefined")

		console := o.Console()
		require.Len(t, console, 2)
		require.Equal(t, harness.SourceConsole, console[0].Source)
		require.Equal(t, "warning", console[0].Level)
		require.Equal(t, harness.SourcePageError, console[1].Source)
	})

	t.Run("should keep going when the subscription fails", func(t *testing.T) {
		p := browsertest.NewPage(`<body></body>`).FailSubscribe(errors.New("target detached"))
		o := New(p)
		require.Error(t, o.StartCapture())
		require.Equal(t, []string{"network capture unavailable: target detached"}, o.Warnings())
		require.Empty(t, o.Events())
		o.StopCapture()
	})
}

func TestEventsMatching(t *testing.T) {
	o, p := newObserver(t)
	require.NoError(t, o.StartCapture())
	p.Request("GET", "http://app/lists/", 200)
	p.Request("POST", "http://app/create-list/", 201)

	posts := o.EventsMatching(All(URLContains("create-list"), Method("post")))
	first := slices.Collect(posts)
	second := slices.Collect(posts)
	require.Len(t, first, 2)
	require.Equal(t, first, second)
	require.Len(t, o.Events(), 4)

	for ev := range o.EventsMatching(nil) {
		require.Equal(t, "http://app/lists/", ev.URL)
		break
	}

	responses := slices.Collect(o.EventsMatching(Phase(harness.PhaseResponse)))
	require.Len(t, responses, 2)
	require.Len(t, slices.Collect(o.EventsMatching(StatusIs(201))), 1)
}

func TestAssertCalled(t *testing.T) {
	ctx := context.Background()

	t.Run("should pass for a matching response", func(t *testing.T) {
		o, p := newObserver(t)
		require.NoError(t, o.StartCapture())
		p.Request("POST", "http://app/create-list/", 200)

		result := o.AssertCalled(ctx, All(Method("POST"), URLContains("/create-list/")), CallOptions{WithStatus: 200})
		require.True(t, result.Passed)
		require.Equal(t, "POST http://app/create-list/ -> 200", result.Actual)
	})

	t.Run("should wait for the request to complete", func(t *testing.T) {
		o, p := newObserver(t)
		require.NoError(t, o.StartCapture())
		p.After(30*time.Millisecond, func(p *browsertest.Page) {
			p.Request("POST", "http://app/create-list/", 200)
		})

		result := o.AssertCalled(ctx, URLContains("/create-list/"), CallOptions{WithStatus: 200, Timeout: time.Second})
		require.True(t, result.Passed)
	})

	t.Run("should report the statuses that did not match", func(t *testing.T) {
		o, p := newObserver(t)
		require.NoError(t, o.StartCapture())
		p.Request("POST", "http://app/create-list/", 500)

		result := o.AssertCalled(ctx, URLContains("/create-list/"), CallOptions{
			Description: "create list",
			WithStatus:  200,
			Timeout:     30 * time.Millisecond,
		})
		require.False(t, result.Passed)
		require.Equal(t, "create list", result.Description)
		require.Equal(t, "a matching response with status 200", result.Expected)
		require.Equal(t, "matching responses: 500", result.Actual)
	})

	t.Run("should fail when nothing matched", func(t *testing.T) {
		o, _ := newObserver(t)
		require.NoError(t, o.StartCapture())
		result := o.AssertCalled(ctx, URLContains("/create-list/"), CallOptions{Timeout: 20 * time.Millisecond})
		require.False(t, result.Passed)
		require.Equal(t, "no matching event among 0 captured", result.Actual)
	})

	t.Run("should fail on cancellation", func(t *testing.T) {
		o, _ := newObserver(t)
		require.NoError(t, o.StartCapture())
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		result := o.AssertCalled(ctx, URLContains("/create-list/"), CallOptions{})
		require.False(t, result.Passed)
		require.Equal(t, context.Canceled.Error(), result.Actual)
	})
}
