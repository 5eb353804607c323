package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/inovacc/gitsafe/internal/giturl"
)

// Operations reported by GitError.
const (
	OpAuth  = "auth"
	OpProbe = "probe"
	OpOpen  = "open"
	OpClone = "clone"
	OpFetch = "fetch"
	OpReset = "reset"
	OpRead  = "read"
)

var (
	// ErrNoSSHKey is returned when an SSH remote is paired with a credential without a key.
	ErrNoSSHKey = errors.New("authentication failed: no SSH key provided for git repository; have you chosen the correct credential or passed the correct repository URL?")

	// ErrNoPassword is returned when an HTTP remote is paired with a credential without a password.
	ErrNoPassword = errors.New("authentication failed: no password provided for HTTP/HTTPS git repository; have you chosen the correct credential or passed the correct repository URL?")

	// ErrNoMatchingCredential is returned when the remote transport accepts none of the credential's secrets.
	ErrNoMatchingCredential = errors.New("authentication failed: no matching credentials available; have you chosen the correct credential or passed the correct repository URL?")

	// ErrInvalidSSHKey is returned when an encrypted SSH key cannot be decrypted or parsed.
	ErrInvalidSSHKey = errors.New("invalid SSH key: decryption failed and key does not appear to be valid SSH key content")

	// ErrNoRemoteBranch is returned by Probe when the remote advertises no branch.
	ErrNoRemoteBranch = errors.New("could not find any branch reference on remote; the repository may be empty or inaccessible")

	// ErrDetachedHead is returned when a mirror has no current branch to pull.
	ErrDetachedHead = errors.New("mirror HEAD is detached")
)

// GitError describes a failed git operation against a mirror.
type GitError struct {
	Op  string
	URL string
	Err error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s failed for %s: %v", e.Op, giturl.Sanitize(e.URL), e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

func newError(op, url string, err error) *GitError {
	return &GitError{Op: op, URL: url, Err: err}
}

// IsAuthError checks if the error indicates missing or rejected credentials
func IsAuthError(err error) bool {
	return errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) ||
		errors.Is(err, ErrNoSSHKey) ||
		errors.Is(err, ErrNoPassword) ||
		errors.Is(err, ErrNoMatchingCredential) ||
		errors.Is(err, ErrInvalidSSHKey)
}

// IsEmptyRemote checks if the remote repository has no commits
func IsEmptyRemote(err error) bool {
	return errors.Is(err, transport.ErrEmptyRemoteRepository) || errors.Is(err, ErrNoRemoteBranch)
}

// IsNotFound checks if the remote repository does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, transport.ErrRepositoryNotFound)
}
