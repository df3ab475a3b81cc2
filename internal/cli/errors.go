package cli

import "errors"

// Sentinel errors for exit code classification
var (
	// ErrUsage indicates invalid command usage, flags, or arguments
	ErrUsage = errors.New("usage error")

	// ErrConfig indicates an unreadable or invalid configuration file
	ErrConfig = errors.New("configuration error")

	// ErrRuntime indicates a probe that could not complete
	ErrRuntime = errors.New("runtime error")

	// ErrScenarioFailed indicates at least one scenario did not match its expectation
	ErrScenarioFailed = errors.New("scenario failed")

	// ErrInternal indicates internal system errors
	ErrInternal = errors.New("internal error")
)

// Exit codes returned by the tlsprobe binary.
const (
	ExitOK             = 0
	ExitRuntime        = 1
	ExitUsage          = 2
	ExitConfig         = 3
	ExitScenarioFailed = 4
	ExitInternal       = 70
)

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrScenarioFailed):
		return ExitScenarioFailed
	case errors.Is(err, ErrInternal):
		return ExitInternal
	default:
		return ExitRuntime
	}
}
