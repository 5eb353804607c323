package model

import (
	"errors"
	"strings"
)

var (
	// ErrCredentialEmpty is returned when neither a password nor an SSH key is given.
	ErrCredentialEmpty = errors.New("at least one of password or SSH key must be provided")

	// ErrSSHKeyNotContent is returned when a plaintext SSH key is not key material.
	ErrSSHKeyNotContent = errors.New("ssh key must be the private key content, not a file path")

	// ErrCredentialID is returned for a blank credential id.
	ErrCredentialID = errors.New("credential id must not be empty")
)

// Credential holds the secrets used to authenticate against a remote.
type Credential struct {
	ID       string  `yaml:"id"`
	Username string  `yaml:"username"`
	Password *Secret `yaml:"password,omitempty"`
	SSHKey   *Secret `yaml:"ssh_key,omitempty"`
}

// NewCredential validates and builds a credential. At least one of password
// or sshKey must be non-nil, and a plaintext SSH key must be key content.
func NewCredential(id, username string, password, sshKey *Secret) (*Credential, error) {
	c := &Credential{
		ID:       strings.TrimSpace(id),
		Username: username,
		Password: password,
		SSHKey:   sshKey,
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks the credential invariants.
func (c *Credential) Validate() error {
	if c.ID == "" {
		return ErrCredentialID
	}

	if c.Password == nil && c.SSHKey == nil {
		return ErrCredentialEmpty
	}

	if c.SSHKey != nil && c.SSHKey.Kind == SecretPlaintext && !LooksLikeKeyMaterial(c.SSHKey.Value) {
		return ErrSSHKeyNotContent
	}

	return nil
}

// IsSSHKey reports whether the credential carries an SSH key.
func (c *Credential) IsSSHKey() bool {
	return c.SSHKey != nil
}

// Clone returns a deep copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}

	return &Credential{
		ID:       c.ID,
		Username: c.Username,
		Password: c.Password.Clone(),
		SSHKey:   c.SSHKey.Clone(),
	}
}

// CredentialView is the masked form of a credential shown to users.
type CredentialView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
	IsSSHKey    bool   `json:"is_ssh_key"`
}

// View returns the masked form of c.
func (c *Credential) View() CredentialView {
	return CredentialView{
		ID:          c.ID,
		Username:    c.Username,
		HasPassword: c.Password != nil,
		IsSSHKey:    c.IsSSHKey(),
	}
}
