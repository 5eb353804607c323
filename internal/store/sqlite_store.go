//go:build !bolt

package store

import (
	"path/filepath"

	"github.com/inovacc/gitsafe/internal/store/sqlite"
)

// DatabaseFile is the history database name inside the data directory.
const DatabaseFile = "gitsafe.db"

func openHistory(dataDir string) (History, error) {
	return sqlite.New(filepath.Join(dataDir, DatabaseFile))
}
