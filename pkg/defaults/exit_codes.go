package defaults

// Exit codes for the CLI.
const (
	ExitSuccess        = 0 // Audit collected and rendered
	ExitUnauthorized   = 1 // Credential rejected
	ExitUserError      = 2 // Invalid arguments or configuration
	ExitExecutionError = 3 // Script failed, timed out or produced nothing
	ExitInternalError  = 4 // Unexpected internal error
)
