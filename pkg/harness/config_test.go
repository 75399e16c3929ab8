package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMergeConfigs(t *testing.T) {
	t.Run("starts from defaults", func(t *testing.T) {
		cfg := MergeConfigs()
		require.Equal(t, DefaultConfig(), cfg)
		require.Equal(t, 30*time.Second, cfg.NavigationTimeout)
		require.Equal(t, 5*time.Second, cfg.ElementTimeout)
		require.Equal(t, 200*time.Millisecond, cfg.PollInterval)
		require.False(t, cfg.Headed)
	})

	t.Run("last non-zero value wins", func(t *testing.T) {
		cfg := MergeConfigs(
			&Config{BaseURL: "http://localhost:8000", ElementTimeout: time.Second, Engine: "chromedp"},
			nil,
			&Config{BaseURL: "http://staging", Headed: true, Parallel: 4},
		)
		require.Equal(t, "http://staging", cfg.BaseURL)
		require.Equal(t, time.Second, cfg.ElementTimeout)
		require.Equal(t, "chromedp", cfg.Engine)
		require.True(t, cfg.Headed)
		require.Equal(t, 4, cfg.Parallel)
		require.Equal(t, DefaultCaptureLimit, cfg.CaptureLimit)
	})
}
