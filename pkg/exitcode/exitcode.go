// Package exitcode provides standardized exit codes for hookgate
package exitcode

// Exit codes for hookgate CLI
const (
	// Success means every applicable check passed, or only issues the
	// configured policy treats as advisory were found.
	Success = 0
	// ChecksFailed means the exit policy turned recorded issues into a failure.
	ChecksFailed = 1
	// EnvironmentError means the run could not start, e.g. outside a git repository.
	EnvironmentError = 2
	// ConfigError means the command line could not be honored.
	ConfigError = 3
	// GeneralError covers unexpected internal failures.
	GeneralError = 4
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case ChecksFailed:
		return "Checks failed"
	case EnvironmentError:
		return "Environment error"
	case ConfigError:
		return "Configuration error"
	case GeneralError:
		return "General error"
	default:
		return "Unknown error"
	}
}
