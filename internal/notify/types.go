// Package notify delivers sync failure notifications to webhook endpoints.
package notify

import (
	"context"
	"time"

	"github.com/inovacc/gitsafe/internal/model"
)

// Operation names carried in failure payloads.
const (
	OperationSync = "sync"
)

// RepoInfo identifies the repository a payload is about.
type RepoInfo struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// ErrorPayload is posted when a sync attempt fails.
type ErrorPayload struct {
	// Time is RFC 3339 in UTC
	Time         string   `json:"time"`
	Repo         RepoInfo `json:"repo"`
	Operation    string   `json:"operation"`
	CredentialID *string  `json:"credential_id,omitempty"`
	ErrorMessage string   `json:"error_message"`
}

// OutOfAttemptsPayload is posted when a repository exhausts its attempts and
// is disabled.
type OutOfAttemptsPayload struct {
	Time         string   `json:"time"`
	Repo         RepoInfo `json:"repo"`
	CredentialID *string  `json:"credential_id,omitempty"`
	ErrorMessage string   `json:"error_message"`
	SyncAttempts int      `json:"sync_attempts"`
}

// Sender delivers one payload to one endpoint.
type Sender interface {
	// Send posts payload to url and returns an error for transport failures
	// and unsuccessful responses.
	Send(ctx context.Context, url string, payload any) error

	// Name returns the sender's name for logging purposes.
	Name() string
}

func repoInfo(repo *model.Repository) RepoInfo {
	return RepoInfo{ID: repo.ID, URL: repo.URL, Enabled: repo.Enabled}
}

func timestamp(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

func copyString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	v := *s

	return &v
}
