package core

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/inovacc/gitsafe/internal/crypto"
	"github.com/inovacc/gitsafe/internal/model"
)

// CredentialRequest carries plaintext secrets; they are encrypted with the
// configured key before they are stored.
type CredentialRequest struct {
	ID       string
	Username string
	Password string
	SSHKey   string
}

// ListCredentials returns the masked view of every credential sorted by id.
func (m *Manager) ListCredentials() []model.CredentialView {
	var views []model.CredentialView

	m.store.Read(func(cfg *model.Config) {
		for _, id := range cfg.CredentialIDs() {
			views = append(views, cfg.Credentials[id].View())
		}
	})

	return views
}

// AddCredential stores a new credential. An empty ID gets a random UUID.
func (m *Manager) AddCredential(req CredentialRequest) (*model.CredentialView, error) {
	if req.Password == "" && req.SSHKey == "" {
		return nil, model.ErrCredentialEmpty
	}

	if req.SSHKey != "" && !model.LooksLikeKeyMaterial(req.SSHKey) {
		return nil, model.ErrSSHKeyNotContent
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		if req.ID != "" {
			return nil, fmt.Errorf("credential %w", ErrEmptyID)
		}

		id = uuid.New().String()
	}

	var view model.CredentialView

	err := m.mutate(func(cfg *model.Config) error {
		if cfg.Credential(id) != nil {
			return fmt.Errorf("credential %s: %w", id, ErrDuplicateID)
		}

		password, err := sealOptional(req.Password, cfg.Server.EncryptionKey)
		if err != nil {
			return err
		}

		sshKey, err := sealOptional(req.SSHKey, cfg.Server.EncryptionKey)
		if err != nil {
			return err
		}

		cred, err := model.NewCredential(id, req.Username, password, sshKey)
		if err != nil {
			return err
		}

		if cfg.Credentials == nil {
			cfg.Credentials = make(map[string]*model.Credential)
		}

		cfg.Credentials[id] = cred
		view = cred.View()

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("credential added", slog.String("credential", id), slog.Bool("ssh_key", view.IsSSHKey))

	return &view, nil
}

// UpdateCredential replaces the username and any secret given in req. A new
// password without a new SSH key drops the stored key; with neither, the
// stored secrets are kept.
func (m *Manager) UpdateCredential(id string, req CredentialRequest) (*model.CredentialView, error) {
	if req.SSHKey != "" && !model.LooksLikeKeyMaterial(req.SSHKey) {
		return nil, model.ErrSSHKeyNotContent
	}

	var view model.CredentialView

	err := m.mutate(func(cfg *model.Config) error {
		existing := cfg.Credential(id)
		if existing == nil {
			return fmt.Errorf("credential %s: %w", id, ErrNotFound)
		}

		password := existing.Password.Clone()
		sshKey := existing.SSHKey.Clone()

		if req.Password != "" {
			sealed, err := crypto.Encrypt(req.Password, cfg.Server.EncryptionKey)
			if err != nil {
				return fmt.Errorf("failed to encrypt password: %w", err)
			}

			password = model.Encrypted(sealed)
			sshKey = nil
		}

		if req.SSHKey != "" {
			sealed, err := crypto.Encrypt(req.SSHKey, cfg.Server.EncryptionKey)
			if err != nil {
				return fmt.Errorf("failed to encrypt ssh key: %w", err)
			}

			sshKey = model.Encrypted(sealed)
		}

		cred, err := model.NewCredential(id, req.Username, password, sshKey)
		if err != nil {
			return err
		}

		for i := range cfg.Repositories {
			if cfg.Repositories[i].CredentialRef() != id {
				continue
			}

			if err := credentialFits(cred, cfg.Repositories[i].URL); err != nil {
				return fmt.Errorf("repository %s: %w", cfg.Repositories[i].ID, err)
			}
		}

		cfg.Credentials[id] = cred
		view = cred.View()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &view, nil
}

// RemoveCredential deletes a credential no repository refers to.
func (m *Manager) RemoveCredential(id string) error {
	return m.mutate(func(cfg *model.Config) error {
		var users []string

		for i := range cfg.Repositories {
			if cfg.Repositories[i].CredentialRef() == id {
				users = append(users, cfg.Repositories[i].ID)
			}
		}

		if len(users) > 0 {
			sort.Strings(users)
			return fmt.Errorf("credential %s used by %s: %w", id, strings.Join(users, ", "), ErrCredentialInUse)
		}

		if cfg.Credential(id) == nil {
			return fmt.Errorf("credential %s: %w", id, ErrNotFound)
		}

		delete(cfg.Credentials, id)

		return nil
	})
}

func sealOptional(value, key string) (*model.Secret, error) {
	if value == "" {
		return nil, nil
	}

	sealed, err := crypto.Encrypt(value, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	return model.Encrypted(sealed), nil
}
