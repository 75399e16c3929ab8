package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// copyPackage copies testdata/shop into a temporary module so generated
// files never land in the source tree.
func copyPackage(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/shop\n\ngo 1.25\n"), 0o644))
	require.NoError(t, os.CopyFS(root, os.DirFS("testdata/shop")))
	return root
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("should write the test file with the scanned functions", func(t *testing.T) {
		dir := copyPackage(t)

		path, err := New().Generate(ctx, Options{Dir: dir, Scenarios: []string{"scenarios"}, Tags: "@smoke"})
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, DefaultOutput), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out := string(data)
		require.True(t, strings.HasPrefix(out, "// "+generatedHeader))
		require.Contains(t, out, "package shop\n")
		require.Contains(t, out, "func TestUIHarness(t *testing.T)")
		require.Contains(t, out, `[]string{"scenarios"}`)
		require.Contains(t, out, "uitest.WithConfig(Config(), slowConfig())")
		require.Contains(t, out, "uitest.WithHooks(hooks())")
		require.Contains(t, out, `uitest.WithTags("@smoke")`)
		require.NotContains(t, out, "ConfigFor")
	})

	t.Run("should skip its own output when regenerating", func(t *testing.T) {
		dir := copyPackage(t)
		_, err := New().Generate(ctx, Options{Dir: dir, Scenarios: []string{"scenarios"}})
		require.NoError(t, err)

		path, err := New().Generate(ctx, Options{Dir: dir, Scenarios: []string{"scenarios"}})
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, 1, strings.Count(string(data), "func TestUIHarness"))
	})

	t.Run("should pass scan results to the output", func(t *testing.T) {
		controller := gomock.NewController(t)
		scanner := NewMockPackageScanner(controller)
		dir := copyPackage(t)

		scanner.
			EXPECT().
			Scan(gomock.Any(), dir, "ui_test.go").
			Return(&Output{}, nil).
			Times(1)

		path, err := NewWithScanner(scanner).Generate(ctx, Options{Dir: dir, Scenarios: []string{"scenarios/checkout.yaml"}, Output: "ui_test.go"})
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(data), `[]string{"scenarios/checkout.yaml"}`)
		require.NotContains(t, string(data), "WithConfig")
	})

	t.Run("should reject a missing scenario path", func(t *testing.T) {
		dir := copyPackage(t)
		_, err := New().Generate(ctx, Options{Dir: dir, Scenarios: []string{"features"}})
		require.ErrorContains(t, err, "scenarios")
	})

	t.Run("should reject output outside the package or not a test file", func(t *testing.T) {
		dir := copyPackage(t)
		for _, name := range []string{"../escape_test.go", "ui.go"} {
			_, err := New().Generate(ctx, Options{Dir: dir, Scenarios: []string{"scenarios"}, Output: name})
			require.Error(t, err, name)
		}
	})
}

func TestSourceScanner_Scan(t *testing.T) {
	t.Run("should find config and hooks functions of the package", func(t *testing.T) {
		output, err := NewSourceScanner().Scan(context.Background(), "testdata/shop", DefaultOutput)
		require.NoError(t, err)

		names := func(fns []*FunctionLocator) []string {
			var out []string
			for _, fn := range fns {
				out = append(out, fn.FunctionName)
			}
			return out
		}
		require.Equal(t, []string{"Config", "slowConfig"}, names(output.ConfigFunctions))
		require.Equal(t, []string{"hooks"}, names(output.HooksFunctions))
	})
}

func TestDetectPackageName(t *testing.T) {
	t.Run("detects package name from Go files in directory", func(t *testing.T) {
		// This test runs in the generator package directory, which has Go files
		// with "package generator"
		dir, err := os.Getwd()
		require.NoError(t, err)

		pkgName, err := detectPackageName(dir, DefaultOutput)
		require.NoError(t, err)
		require.Equal(t, "generator", pkgName)
	})

	t.Run("ignores external test packages", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a_test.go"), []byte("package shop_test\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.go"), []byte("package shop\n"), 0o644))

		pkgName, err := detectPackageName(dir, DefaultOutput)
		require.NoError(t, err)
		require.Equal(t, "shop", pkgName)
	})

	t.Run("falls back to directory name when no Go files exist", func(t *testing.T) {
		tmpDir := t.TempDir()
		// Create a subdirectory with a known name
		subDir := tmpDir + "/myfeatures"
		require.NoError(t, os.Mkdir(subDir, 0o755))

		pkgName, err := detectPackageName(subDir, DefaultOutput)
		require.NoError(t, err)
		require.Equal(t, "myfeatures", pkgName)
	})

	t.Run("sanitizes hyphens in directory name", func(t *testing.T) {
		tmpDir := t.TempDir()
		subDir := tmpDir + "/my-cool-app"
		require.NoError(t, os.Mkdir(subDir, 0o755))

		pkgName, err := detectPackageName(subDir, DefaultOutput)
		require.NoError(t, err)
		require.Equal(t, "my_cool_app", pkgName)
	})

	t.Run("uses module path at module root with no Go files", func(t *testing.T) {
		tmpDir := t.TempDir()
		// Create a go.mod in the temp dir
		goMod := "module github.com/example/myproject\n\ngo 1.21\n"
		require.NoError(t, os.WriteFile(tmpDir+"/go.mod", []byte(goMod), 0o644))

		pkgName, err := detectPackageName(tmpDir, DefaultOutput)
		require.NoError(t, err)
		require.Equal(t, "myproject", pkgName)
	})
}

func TestDetectImportPath(t *testing.T) {
	t.Run("detects import path from go.mod", func(t *testing.T) {
		// This test runs from the generator package directory
		dir, err := os.Getwd()
		require.NoError(t, err)

		pkgPath, err := detectImportPath(dir)
		require.NoError(t, err)
		require.Equal(t, "github.com/guldbach/google-ads-builder-sub001/internal/generator", pkgPath)
	})

	t.Run("returns error for directory without go.mod ancestor", func(t *testing.T) {
		_, err := detectImportPath(t.TempDir())
		require.Error(t, err)
		require.Contains(t, err.Error(), "go.mod not found")
	})
}

func TestSanitizePackageName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"myapp", "myapp"},
		{"my-app", "my_app"},
		{"my.app", "my_app"},
		{"MyApp", "myapp"},
		{"123app", "_123app"},
		{"", ""},
		{"a", "a"},
		{"-leading", "leading"},
		{"with spaces", "withspaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizePackageName(tt.input)
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestOutput_Generate(t *testing.T) {
	t.Run("should qualify functions from other packages", func(t *testing.T) {
		output := &Output{
			ConfigFunctions:    []*FunctionLocator{{FullPackageName: "example.com/shop/uiconfig", FunctionName: "Staging"}},
			HooksFunctions:     []*FunctionLocator{{FullPackageName: "example.com/shop", FunctionName: "Hooks"}},
			CurrentPackagePath: "example.com/shop",
			PackageName:        "shop",
		}
		builder := &strings.Builder{}
		require.NoError(t, output.Generate(builder))

		out := builder.String()
		require.Contains(t, out, `"example.com/shop/uiconfig"`)
		require.Contains(t, out, "uitest.WithConfig(uiconfig.Staging())")
		require.Contains(t, out, "uitest.WithHooks(Hooks())")
		require.Contains(t, out, `[]string{"scenarios"}`)
	})

	t.Run("should default to package main", func(t *testing.T) {
		builder := &strings.Builder{}
		require.NoError(t, (&Output{}).Generate(builder))
		require.Contains(t, builder.String(), "package main\n")
	})
}
