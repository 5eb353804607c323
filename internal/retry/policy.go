// Package retry implements the failure counting policy that disables a
// repository after too many consecutive failed syncs.
//
// A repository is in one of three states:
//
//	Healthy      attempts_left unset, enabled
//	Degraded(n)  attempts_left = n, enabled, counting down
//	Disabled     enabled = false, waiting for a human
//
// Any success moves Degraded back to Healthy without partial credit.
package retry

import (
	"fmt"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
)

// Phase names a retry state.
type Phase int

const (
	Healthy Phase = iota
	Degraded
	Disabled
)

func (p Phase) String() string {
	switch p {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the retry state of one repository.
type State struct {
	Phase Phase
	// Remaining is the number of failures left while Degraded
	Remaining int
}

func (s State) String() string {
	if s.Phase == Degraded {
		return fmt.Sprintf("degraded(%d)", s.Remaining)
	}

	return s.Phase.String()
}

// StateOf reads the state from a repository record.
func StateOf(repo *model.Repository) State {
	switch {
	case !repo.Enabled:
		return State{Phase: Disabled}
	case repo.AttemptsLeft != nil:
		return State{Phase: Degraded, Remaining: *repo.AttemptsLeft}
	default:
		return State{Phase: Healthy}
	}
}

// Fail returns the state after one failed attempt with the given budget.
// A budget below one behaves like one.
func (s State) Fail(budget int) State {
	var remaining int

	switch s.Phase {
	case Disabled:
		return s
	case Healthy:
		remaining = max(budget, 1) - 1
	case Degraded:
		remaining = max(s.Remaining-1, 0)
	}

	if remaining == 0 {
		return State{Phase: Disabled}
	}

	return State{Phase: Degraded, Remaining: remaining}
}

// Succeed returns the state after a successful attempt.
func (s State) Succeed() State {
	if s.Phase == Disabled {
		return s
	}

	return State{Phase: Healthy}
}

// apply writes s back onto the record.
func (s State) apply(repo *model.Repository) {
	switch s.Phase {
	case Healthy:
		repo.AttemptsLeft = nil
	case Degraded:
		repo.AttemptsLeft = model.Ptr(s.Remaining)
	case Disabled:
		repo.AttemptsLeft = nil
		repo.Enabled = false
	}
}

// ApplyFailure records a failed sync on repo and reports whether the
// repository has just been disabled.
func ApplyFailure(repo *model.Repository, message string, budget int) bool {
	before := StateOf(repo)
	after := before.Fail(budget)

	repo.Error = model.Ptr(message)
	after.apply(repo)

	return before.Phase != Disabled && after.Phase == Disabled
}

// ApplySuccess records a successful sync on repo and reports whether the
// repository recovered from a failure streak.
func ApplySuccess(repo *model.Repository, result *model.SyncResult, at time.Time) bool {
	before := StateOf(repo)
	before.Succeed().apply(repo)

	repo.Error = nil
	repo.LastSync = model.Ptr(at.UTC())

	if result != nil {
		repo.Size = model.Ptr(result.Size)

		if result.CommitHash != "" {
			repo.LastSyncCommitHash = model.Ptr(result.CommitHash)
			repo.LastSyncMessage = model.Ptr(result.CommitMessage)
		}
	}

	return before.Phase == Degraded
}
