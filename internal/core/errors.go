package core

import "errors"

// Errors returned by Manager operations.
var (
	ErrDuplicateID            = errors.New("id already exists")
	ErrNotFound               = errors.New("not found")
	ErrDisabled               = errors.New("repository is disabled")
	ErrOutOfAttempts          = errors.New("repository ran out of sync attempts and was disabled")
	ErrCredentialInUse        = errors.New("credential is in use")
	ErrIncompatibleCredential = errors.New("HTTP/HTTPS URLs require credentials with username/password, not SSH keys")
	ErrEmptyID                = errors.New("id cannot be empty")
	ErrEmptyURL               = errors.New("repository url cannot be empty")
	ErrInvalidUser            = errors.New("username and password are required")
	ErrInvalidLogin           = errors.New("invalid username or password")
	ErrNoHistory              = errors.New("sync history is not enabled")

	// ErrExecution marks a sync that could not run to completion for reasons
	// other than git, such as a panic or an abandoned wait. No retry
	// transition is applied for it.
	ErrExecution = errors.New("sync execution failed")
)

// ExecutionError wraps the cause of an ErrExecution.
type ExecutionError struct {
	RepositoryID string
	Err          error
}

func (e *ExecutionError) Error() string {
	return "sync execution failed for " + e.RepositoryID + ": " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is matches ErrExecution.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}
