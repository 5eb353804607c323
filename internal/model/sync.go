package model

import (
	"errors"
	"strings"
	"time"
)

// Status strings reported by a sync attempt.
const (
	StatusUpToDate = "Repository already up-to-date"
	StatusSynced   = "Repository synced successfully"
)

// SyncResult is the outcome of one successful sync attempt.
type SyncResult struct {
	// Path is the absolute path of the stored artifact
	Path string `json:"path"`

	// Size is the artifact size in bytes
	Size int64 `json:"size"`

	CommitHash    string `json:"commit_hash"`
	CommitMessage string `json:"commit_message"`

	// Skipped is true when the remote was already at the recorded commit
	Skipped bool   `json:"skipped"`
	Status  string `json:"status"`
}

// Outcome classifies a recorded sync run.
type Outcome string

const (
	OutcomeSynced  Outcome = "synced"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// SyncRun is one entry of the sync history.
type SyncRun struct {
	ID           string        `json:"id"`
	RepositoryID string        `json:"repository_id"`
	Trigger      string        `json:"trigger"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Outcome      Outcome       `json:"outcome"`
	CommitHash   string        `json:"commit_hash,omitempty"`
	Size         int64         `json:"size,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// ErrInvalidRun is returned for runs without a repository id.
var ErrInvalidRun = errors.New("sync run requires a repository id")

// Validate checks that the run can be stored.
func (r *SyncRun) Validate() error {
	if strings.TrimSpace(r.RepositoryID) == "" {
		return ErrInvalidRun
	}

	return nil
}

// Triggers recorded on sync runs.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)
