package rodriver

import (
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		want input.Key
	}{
		{"Escape", input.Escape},
		{"esc", input.Escape},
		{"Enter", input.Enter},
		{"ArrowDown", input.ArrowDown},
		{"a", input.Key('a')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	t.Run("should reject unknown names", func(t *testing.T) {
		_, err := Key("Hyper")
		require.Error(t, err)
	})
}

func TestFindBrowser(t *testing.T) {
	t.Run("should prefer the explicit binary", func(t *testing.T) {
		t.Setenv("CHROME_PATH", "/from/env")
		bin, err := FindBrowser("/usr/bin/chromium", false)
		require.NoError(t, err)
		require.Equal(t, "/usr/bin/chromium", bin)
	})

	t.Run("should fall back to CHROME_PATH", func(t *testing.T) {
		t.Setenv("CHROME_PATH", "/from/env")
		bin, err := FindBrowser("", false)
		require.NoError(t, err)
		require.Equal(t, "/from/env", bin)
	})
}
