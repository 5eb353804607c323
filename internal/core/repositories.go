package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/inovacc/gitsafe/internal/giturl"
	"github.com/inovacc/gitsafe/internal/model"
)

// AddRepositoryRequest describes a repository to add. An empty ID is
// derived from the URL.
type AddRepositoryRequest struct {
	ID           string
	URL          string
	CredentialID *string
}

// UpdateRepositoryRequest changes selected fields. A nil field is left as
// is; an empty CredentialID removes the credential.
type UpdateRepositoryRequest struct {
	Enabled      *bool
	CredentialID *string
}

// ListRepositories returns copies of all repositories in configuration order.
func (m *Manager) ListRepositories() []model.Repository {
	cfg := m.store.Snapshot()
	return cfg.Repositories
}

// GetRepository returns a copy of one repository.
func (m *Manager) GetRepository(id string) (*model.Repository, error) {
	var repo *model.Repository

	m.store.Read(func(cfg *model.Config) {
		repo = cfg.FindRepository(id).Clone()
	})

	if repo == nil {
		return nil, fmt.Errorf("repository %s: %w", id, ErrNotFound)
	}

	return repo, nil
}

// AddRepository adds an enabled repository.
func (m *Manager) AddRepository(req AddRepositoryRequest) (*model.Repository, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, ErrEmptyURL
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		if req.ID != "" {
			return nil, fmt.Errorf("repository %w", ErrEmptyID)
		}

		id = giturl.DeriveID(url)
	}

	credID := trimmedRef(req.CredentialID)

	repo := &model.Repository{
		ID:           id,
		URL:          url,
		CredentialID: credID,
		Enabled:      true,
	}

	err := m.mutate(func(cfg *model.Config) error {
		if cfg.FindRepository(id) != nil {
			return fmt.Errorf("repository %s: %w", id, ErrDuplicateID)
		}

		if err := checkCredential(cfg, url, credID); err != nil {
			return err
		}

		cfg.Repositories = append(cfg.Repositories, *repo.Clone())

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("repository added",
		slog.String("repository", id),
		slog.String("url", giturl.Sanitize(url)),
	)

	return repo, nil
}

// UpdateRepository applies req to repository id. Re-enabling a repository
// starts it with a fresh attempt budget.
func (m *Manager) UpdateRepository(id string, req UpdateRepositoryRequest) (*model.Repository, error) {
	var updated *model.Repository

	err := m.mutate(func(cfg *model.Config) error {
		repo := cfg.FindRepository(id)
		if repo == nil {
			return fmt.Errorf("repository %s: %w", id, ErrNotFound)
		}

		credID := repo.CredentialID
		if req.CredentialID != nil {
			credID = trimmedRef(req.CredentialID)

			if err := checkCredential(cfg, repo.URL, credID); err != nil {
				return err
			}
		}

		repo.CredentialID = credID

		if req.Enabled != nil {
			if *req.Enabled && !repo.Enabled {
				repo.AttemptsLeft = nil
			}

			repo.Enabled = *req.Enabled
		}

		updated = repo.Clone()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// RemoveRepository deletes the repository from configuration. Its stored
// artifact is removed too when purge is set, and its history is dropped.
func (m *Manager) RemoveRepository(ctx context.Context, id string, purge bool) error {
	var url string

	err := m.mutate(func(cfg *model.Config) error {
		for i := range cfg.Repositories {
			if cfg.Repositories[i].ID == id {
				url = cfg.Repositories[i].URL
				cfg.Repositories = append(cfg.Repositories[:i], cfg.Repositories[i+1:]...)

				return nil
			}
		}

		return fmt.Errorf("repository %s: %w", id, ErrNotFound)
	})
	if err != nil {
		return err
	}

	if m.history != nil {
		if err := m.history.DeleteRuns(ctx, id); err != nil {
			m.logger.Warn("failed to delete sync history", slog.String("repository", id), slog.Any("error", err))
		}
	}

	if purge {
		unlock := m.locks.Lock(id)
		defer unlock()

		if err := os.RemoveAll(m.engine.StoragePath(url)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stored repository: %w", err)
		}
	}

	return nil
}

// checkCredential verifies that credID exists and suits the URL's transport.
// Non-SSH remotes cannot use credentials that carry an SSH key.
func checkCredential(cfg *model.Config, url string, credID *string) error {
	if credID == nil {
		return nil
	}

	cred := cfg.Credential(*credID)
	if cred == nil {
		return fmt.Errorf("credential %s: %w", *credID, ErrNotFound)
	}

	return credentialFits(cred, url)
}

func credentialFits(cred *model.Credential, url string) error {
	if cred.IsSSHKey() && giturl.TransportOf(url) != giturl.TransportSSH {
		return ErrIncompatibleCredential
	}

	return nil
}

func trimmedRef(s *string) *string {
	if s == nil {
		return nil
	}

	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}

	return &v
}
