package generator

import (
	"io"

	"github.com/dave/jennifer/jen"
)

const (
	HarnessPackage = "github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	UITestPackage  = "github.com/guldbach/google-ads-builder-sub001/pkg/uitest"

	// TestName is the test function the generated file declares.
	TestName = "TestUIHarness"

	generatedHeader = "Code generated by uiharness generate. DO NOT EDIT."
)

type (
	FunctionLocator struct {
		FullPackageName string
		FunctionName    string
	}

	Output struct {
		ConfigFunctions    []*FunctionLocator // Functions returning *harness.Config
		HooksFunctions     []*FunctionLocator // Functions returning *harness.Hooks
		ScenarioPaths      []string           // Scenario files or directories, relative to the package
		Tags               string             // Tag expression passed to uitest.WithTags
		CurrentPackagePath string             // Full import path of the package where the test file is generated
		PackageName        string             // Short package name; if empty, defaults to "main"
	}
)

// isSamePackage returns true when the function is in the same package as the
// generated test file and therefore should be called without an import qualifier.
func (o *Output) isSamePackage(fullPkg string) bool {
	return fullPkg == "" || fullPkg == o.CurrentPackagePath
}

// qualOrLocal returns a jen.Statement that either qualifies the function call with
// its package path (for external packages) or calls it directly (for same-package).
func (o *Output) qualOrLocal(fullPkg, funcName string) *jen.Statement {
	if o.isSamePackage(fullPkg) {
		return jen.Id(funcName)
	}
	return jen.Qual(fullPkg, funcName)
}

func (o *Output) calls(functions []*FunctionLocator) []jen.Code {
	out := make([]jen.Code, 0, len(functions))
	for _, fn := range functions {
		out = append(out, o.qualOrLocal(fn.FullPackageName, fn.FunctionName).Call())
	}
	return out
}

// Generate writes a test file whose single test runs the scenario paths
// through uitest.Run with the discovered configs and hooks.
func (o *Output) Generate(writer io.Writer) error {
	pkgName := o.PackageName
	if pkgName == "" {
		pkgName = "main"
	}
	testFile := jen.NewFile(pkgName)
	testFile.HeaderComment(generatedHeader)

	paths := o.ScenarioPaths
	if len(paths) == 0 {
		paths = []string{"scenarios"}
	}
	pathLits := make([]jen.Code, 0, len(paths))
	for _, p := range paths {
		pathLits = append(pathLits, jen.Lit(p))
	}

	args := []jen.Code{
		jen.Id("t"),
		jen.Index().String().Values(pathLits...),
	}
	if len(o.ConfigFunctions) > 0 {
		args = append(args, jen.Qual(UITestPackage, "WithConfig").Call(o.calls(o.ConfigFunctions)...))
	}
	if len(o.HooksFunctions) > 0 {
		args = append(args, jen.Qual(UITestPackage, "WithHooks").Call(o.calls(o.HooksFunctions)...))
	}
	if o.Tags != "" {
		args = append(args, jen.Qual(UITestPackage, "WithTags").Call(jen.Lit(o.Tags)))
	}

	testFile.Func().Id(TestName).Params(
		jen.Id("t").Op("*").Qual("testing", "T"),
	).Block(
		jen.Qual(UITestPackage, "Run").Custom(jen.Options{
			Open:      "(",
			Close:     ")",
			Separator: ",",
			Multi:     true,
		}, args...),
	)

	_, err := writer.Write([]byte(testFile.GoString()))

	return err
}
