package core

import (
	"context"
	"path/filepath"

	"github.com/inovacc/gitsafe/internal/archive"
	"github.com/inovacc/gitsafe/internal/model"
)

// StoredMirror is an artifact under the archive root and the repository it
// belongs to, if any still does.
type StoredMirror struct {
	archive.Info

	RepositoryID string `json:"repository_id,omitempty"`
}

// ListArchives lists the artifacts in the archive directory.
func (m *Manager) ListArchives() ([]StoredMirror, error) {
	root := m.engine.ArchiveDir()

	infos, err := archive.List(root)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string)

	m.store.Read(func(cfg *model.Config) {
		for i := range cfg.Repositories {
			rel, err := filepath.Rel(root, m.engine.StoragePath(cfg.Repositories[i].URL))
			if err == nil {
				owners[filepath.ToSlash(rel)] = cfg.Repositories[i].ID
			}
		}
	})

	out := make([]StoredMirror, 0, len(infos))
	for _, info := range infos {
		out = append(out, StoredMirror{Info: info, RepositoryID: owners[info.Path]})
	}

	return out, nil
}

// ListRuns returns recorded sync runs of repositoryID, newest first. An
// empty id lists every repository.
func (m *Manager) ListRuns(ctx context.Context, repositoryID string, limit int) ([]model.SyncRun, error) {
	if m.history == nil {
		return nil, ErrNoHistory
	}

	return m.history.ListRuns(ctx, repositoryID, limit)
}
