//go:generate mockgen -source=interfaces.go -destination=interface_mock.go -package=app
package app

import (
	"context"

	"github.com/guldbach/google-ads-builder-sub001/internal/generator"
	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
	"github.com/guldbach/google-ads-builder-sub001/pkg/scenario"
)

type (
	ScenarioLoader interface {
		Load(paths []string, opts scenario.LoadOptions) ([]scenario.Scenario, error)
	}
	BatchRunner interface {
		RunAll(ctx context.Context, scenarios []scenario.Scenario) harness.RunResult
	}
	TestFileGenerator interface {
		Generate(ctx context.Context, opts generator.Options) (string, error)
	}
)
