package cli

import (
	"errors"

	"github.com/temirov/pageaudit/internal/audit"
)

// Process exit codes.
const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	ExitCodeUsage   = 2
)

// ExitCode maps a command error to the process exit code: usage and
// configuration errors yield 2, every other error yields 1.
func ExitCode(executionError error) int {
	if executionError == nil {
		return ExitCodeSuccess
	}
	var usageError audit.UsageError
	if errors.As(executionError, &usageError) {
		return ExitCodeUsage
	}
	var configurationError audit.ConfigurationError
	if errors.As(executionError, &configurationError) {
		return ExitCodeUsage
	}
	return ExitCodeFailure
}
