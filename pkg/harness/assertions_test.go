package harness

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newCollector := func() *Collector {
		return NewCollector(WithClock(func() time.Time { return fixed }))
	}

	t.Run("records every outcome in order with the current step", func(t *testing.T) {
		c := newCollector()
		c.Begin(2, true)
		require.True(t, c.Equal("row count", 3, 3))
		c.Begin(3, false)
		require.False(t, c.Contains("toast text", "Liste gespeichert", "Fehler"))

		results := c.Results()
		require.Len(t, results, 2)
		require.Equal(t, AssertionResult{Description: "row count", Passed: true, Expected: "3", Actual: "3", Timestamp: fixed, Step: 2, Fatal: true}, results[0])
		require.Equal(t, 3, results[1].Step)
		require.False(t, results[1].Fatal)
		require.False(t, c.Passed())
		require.Len(t, c.Failures(), 1)
	})

	t.Run("returns copies so recorded results stay immutable", func(t *testing.T) {
		c := newCollector()
		c.True("visible", true)
		results := c.Results()
		results[0].Passed = false
		require.True(t, c.Results()[0].Passed)
	})

	t.Run("records errors as actual values", func(t *testing.T) {
		c := newCollector()
		require.False(t, c.NoError("element found", errors.New("timeout")))
		require.Equal(t, "timeout", c.Results()[0].Actual)
	})

	t.Run("handles containment on unsupported types", func(t *testing.T) {
		c := newCollector()
		require.False(t, c.Contains("weird", 42, 4))
		require.Contains(t, c.Results()[0].Actual, "cannot check containment")
	})

	t.Run("Add stamps external results", func(t *testing.T) {
		c := newCollector()
		c.Begin(5, true)
		got := c.Add(AssertionResult{Description: "POST /create-list/", Passed: true})
		require.Equal(t, 5, got.Step)
		require.Equal(t, fixed, got.Timestamp)
	})
}

func TestAssertionResultErr(t *testing.T) {
	require.NoError(t, AssertionResult{Passed: true}.Err())

	err := AssertionResult{Description: "panel state", Expected: "closed", Actual: "open"}.Err()
	var failure *AssertionFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "panel state: expected closed, got open", err.Error())
}
