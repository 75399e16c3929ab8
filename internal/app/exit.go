package app

import (
	"errors"
	"fmt"

	"github.com/guldbach/google-ads-builder-sub001/pkg/harness"
)

// Process exit codes.
const (
	ExitPassed       = 0
	ExitFailed       = 1
	ExitHarnessError = 2
	ExitUsage        = 3
	ExitCancelled    = 4
)

// ExitError carries the exit code of a finished command. A nil Err means
// the outcome was already reported and nothing more should be printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// ExitCodeFor maps a finished batch to an exit code. Cancellation wins over
// harness errors, which win over scenario failures.
func ExitCodeFor(result harness.RunResult, cancelled bool) int {
	switch {
	case cancelled || result.Count(harness.StatusCancelled) > 0:
		return ExitCancelled
	case result.Aborted || result.Count(harness.StatusErrored) > 0:
		return ExitHarnessError
	case !result.Passed():
		return ExitFailed
	default:
		return ExitPassed
	}
}

// exitCodeOf maps a command error to an exit code. Errors cobra raises
// itself, such as unknown flags, are usage errors.
func exitCodeOf(err error) int {
	if err == nil {
		return ExitPassed
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}
