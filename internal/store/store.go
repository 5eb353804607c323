package store

import (
	"context"

	"github.com/inovacc/gitsafe/internal/model"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 50

// History stores one record per sync attempt.
type History interface {
	// RecordRun stores run, assigning an id when it has none.
	RecordRun(ctx context.Context, run *model.SyncRun) error

	// ListRuns returns the newest runs first. An empty repositoryID lists
	// runs of every repository.
	ListRuns(ctx context.Context, repositoryID string, limit int) ([]model.SyncRun, error)

	// DeleteRuns removes the history of one repository.
	DeleteRuns(ctx context.Context, repositoryID string) error

	Close() error
}

// Open opens the history database inside dataDir, creating it if needed.
func Open(dataDir string) (History, error) {
	return openHistory(dataDir)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}

	return limit
}
