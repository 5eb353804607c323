package model

import "time"

// Repository is a remote mirrored by gitsafe.
type Repository struct {
	// ID is the unique, stable identifier
	ID string `yaml:"id" json:"id"`

	// URL is the remote repository URL
	URL string `yaml:"url" json:"url"`

	// CredentialID refers to an entry of Config.Credentials; a dangling value
	// is treated as no credential
	CredentialID *string `yaml:"credential_id,omitempty" json:"credential_id,omitempty"`

	// Enabled repositories are picked up by the scheduler
	Enabled bool `yaml:"enabled" json:"enabled"`

	// LastSync is the time of the last successful sync
	LastSync *time.Time `yaml:"last_sync,omitempty" json:"last_sync,omitempty"`

	// LastSyncCommitHash is the commit the mirror was at after LastSync
	LastSyncCommitHash *string `yaml:"last_sync_commit_hash,omitempty" json:"last_sync_commit_hash,omitempty"`

	// LastSyncMessage is the first line of that commit's message
	LastSyncMessage *string `yaml:"last_sync_message,omitempty" json:"last_sync_message,omitempty"`

	// Error is the text of the most recent failure
	Error *string `yaml:"error,omitempty" json:"error,omitempty"`

	// Size is the stored artifact size in bytes (archive or folder)
	Size *int64 `yaml:"size,omitempty" json:"size,omitempty"`

	// AttemptsLeft counts down the remaining failures before the repository
	// is disabled; nil while healthy
	AttemptsLeft *int `yaml:"attempts_left,omitempty" json:"attempts_left,omitempty"`
}

// CredentialRef returns the credential id or "" when unset.
func (r *Repository) CredentialRef() string {
	if r.CredentialID == nil {
		return ""
	}

	return *r.CredentialID
}

// Clone returns a deep copy of the repository. Cloning nil returns nil.
func (r *Repository) Clone() *Repository {
	if r == nil {
		return nil
	}

	out := *r
	out.CredentialID = clonePtr(r.CredentialID)
	out.LastSync = clonePtr(r.LastSync)
	out.LastSyncCommitHash = clonePtr(r.LastSyncCommitHash)
	out.LastSyncMessage = clonePtr(r.LastSyncMessage)
	out.Error = clonePtr(r.Error)
	out.Size = clonePtr(r.Size)
	out.AttemptsLeft = clonePtr(r.AttemptsLeft)

	return &out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	v := *p

	return &v
}
