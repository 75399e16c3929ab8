package generator

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// DefaultOutput is the file name generate writes unless told otherwise.
const DefaultOutput = "uiharness_test.go"

// Options controls one generate call.
type Options struct {
	// Dir is the package directory the test file is written to.
	Dir string
	// Scenarios are scenario files or directories, relative to Dir.
	Scenarios []string
	// Tags is an optional tag expression baked into the test.
	Tags string
	// Output is the file name, DefaultOutput when empty.
	Output string
}

type Generator struct {
	scanner PackageScanner
}

// New returns a Generator that scans package sources with go/parser.
func New() *Generator {
	return NewWithScanner(NewSourceScanner())
}

func NewWithScanner(scanner PackageScanner) *Generator {
	return &Generator{scanner: scanner}
}

// Generate writes the test file into opts.Dir and returns its path.
func (g *Generator) Generate(ctx context.Context, opts Options) (string, error) {
	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return "", err
	}
	name := opts.Output
	if name == "" {
		name = DefaultOutput
	}
	if filepath.Base(name) != name || !strings.HasSuffix(name, "_test.go") {
		return "", fmt.Errorf("output %q must be a _test.go file name inside the package", name)
	}
	for _, p := range opts.Scenarios {
		if filepath.IsAbs(p) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, p)); err != nil {
			return "", fmt.Errorf("scenarios: %w", err)
		}
	}

	output, err := g.scanner.Scan(ctx, dir, name)
	if err != nil {
		return "", err
	}

	// Detect package name and full import path for dir
	pkgName, pkgPath, detectErr := detectPackage(dir, name)
	if detectErr != nil && pkgName == "" {
		return "", detectErr
	}
	output.PackageName = pkgName
	if pkgPath != "" {
		output.CurrentPackagePath = pkgPath
	}
	output.ScenarioPaths = opts.Scenarios
	output.Tags = opts.Tags

	path := filepath.Join(dir, name)
	create, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := output.Generate(create); err != nil {
		_ = create.Close()
		return "", err
	}
	if err := create.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// detectPackage detects the Go package name from Go files in dir and the full import path by combining the module path from go.mod
// with the relative directory.
func detectPackage(dir, skip string) (pkgName string, pkgPath string, err error) {

	// 1. Detect package name from Go files in CWD
	pkgName, err = detectPackageName(dir, skip)
	if err != nil {
		return "", "", err
	}

	// 2. Detect full import path from go.mod
	pkgPath, err = detectImportPath(dir)
	if err != nil {
		return pkgName, "", err
	}

	return pkgName, pkgPath, nil
}

// detectPackageName detects the Go package name for the given directory.
// It first tries to read the package clause from existing Go files.
// If no Go files exist, it falls back to deriving the name from the directory
// path (or the module path for the module root).
func detectPackageName(dir, skip string) (string, error) {
	fset := token.NewFileSet()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if name == skip {
			continue
		}

		filePath := filepath.Join(dir, name)
		f, parseErr := parser.ParseFile(fset, filePath, nil, parser.PackageClauseOnly)
		if parseErr != nil {
			continue
		}
		// External test packages cannot hold the generated test.
		if f.Name != nil && f.Name.Name != "" && !strings.HasSuffix(f.Name.Name, "_test") {
			return f.Name.Name, nil
		}
	}

	// No Go files found, derive package name from directory or module path.
	return packageNameFromDir(dir)
}

// packageNameFromDir derives a valid Go package name from the directory path.
// At the module root it uses the last segment of the module path from go.mod.
// Otherwise it uses the directory name, sanitising characters that are invalid
// in Go identifiers (hyphens, dots, etc.).
func packageNameFromDir(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	// Try to use the module path when we're at the module root.
	goModPath := filepath.Join(absDir, "go.mod")
	if data, readErr := os.ReadFile(goModPath); readErr == nil {
		modFile, parseErr := modfile.Parse(goModPath, data, nil)
		if parseErr == nil && modFile.Module != nil {
			base := filepath.Base(modFile.Module.Mod.Path)
			if name := sanitizePackageName(base); name != "" {
				return name, nil
			}
		}
	}

	// Fall back to the directory name.
	base := filepath.Base(absDir)
	if name := sanitizePackageName(base); name != "" {
		return name, nil
	}

	return "", fmt.Errorf("cannot derive package name from directory %s", dir)
}

// sanitizePackageName turns a raw name (directory segment or module path
// segment) into a valid Go package name. Invalid characters such as hyphens
// and dots are replaced with underscores, and leading digits are prefixed
// with an underscore.
func sanitizePackageName(raw string) string {
	if raw == "" || raw == "." || raw == "/" {
		return ""
	}

	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			// Go package names are conventionally lowercase.
			b.WriteRune(r - 'A' + 'a')
		case r == '-' || r == '.':
			if i == 0 {
				continue // drop leading separator
			}
			b.WriteRune('_')
		default:
			// Drop other characters.
		}
	}

	name := b.String()
	if name == "" {
		return ""
	}
	// A package name must not start with a digit.
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// detectImportPath walks up from dir looking for go.mod, then computes the
// full import path as module_path + relative_directory.
func detectImportPath(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	// Walk up looking for go.mod
	current := absDir
	for {
		goModPath := filepath.Join(current, "go.mod")
		data, readErr := os.ReadFile(goModPath)
		if readErr == nil {
			modFile, parseErr := modfile.Parse(goModPath, data, nil)
			if parseErr != nil {
				return "", fmt.Errorf("cannot parse go.mod: %w", parseErr)
			}

			modulePath := modFile.Module.Mod.Path
			rel, relErr := filepath.Rel(current, absDir)
			if relErr != nil {
				return "", relErr
			}

			if rel == "." {
				return modulePath, nil
			}
			return modulePath + "/" + filepath.ToSlash(rel), nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("go.mod not found in any parent of %s", dir)
		}
		current = parent
	}
}
