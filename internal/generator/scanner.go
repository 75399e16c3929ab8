package generator

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceScanner reads the Go files of one package directory and picks up
// functions shaped like
//
//	func Config() *harness.Config
//	func Hooks() *harness.Hooks
//
// Methods, generic functions and functions with parameters are ignored.
type SourceScanner struct{}

func NewSourceScanner() *SourceScanner {
	return &SourceScanner{}
}

func (s *SourceScanner) Scan(ctx context.Context, dir, skip string) (*Output, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}
	pkgName, err := detectPackageName(dir, skip)
	if err != nil {
		return nil, err
	}
	pkgPath, _ := detectImportPath(dir)

	output := &Output{
		ConfigFunctions: make([]*FunctionLocator, 0),
		HooksFunctions:  make([]*FunctionLocator, 0),
	}
	fset := token.NewFileSet()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || name == skip {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, err
		}
		if file.Name.Name != pkgName || ast.IsGenerated(file) {
			continue
		}

		aliases := harnessAliases(file.Imports)
		if len(aliases) == 0 {
			continue
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			locator := &FunctionLocator{FullPackageName: pkgPath, FunctionName: fn.Name.Name}
			switch returnedHarnessType(fn, aliases) {
			case "Config":
				output.ConfigFunctions = append(output.ConfigFunctions, locator)
			case "Hooks":
				output.HooksFunctions = append(output.HooksFunctions, locator)
			}
		}
	}
	return output, nil
}

// harnessAliases returns the names the harness package is imported under.
func harnessAliases(imports []*ast.ImportSpec) map[string]bool {
	aliases := make(map[string]bool)
	for _, spec := range imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil || path != HarnessPackage {
			continue
		}
		name := "harness"
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		aliases[name] = true
	}
	return aliases
}

// returnedHarnessType returns "Config" or "Hooks" when fn takes nothing and
// returns a single *harness.Config or *harness.Hooks, and "" otherwise.
func returnedHarnessType(fn *ast.FuncDecl, aliases map[string]bool) string {
	if fn.Recv != nil || fn.Type.TypeParams != nil || fn.Type.Params.NumFields() > 0 {
		return ""
	}
	results := fn.Type.Results
	if results.NumFields() != 1 {
		return ""
	}
	star, ok := results.List[0].Type.(*ast.StarExpr)
	if !ok {
		return ""
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return ""
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || !aliases[pkg.Name] {
		return ""
	}
	switch sel.Sel.Name {
	case "Config", "Hooks":
		return sel.Sel.Name
	}
	return ""
}
