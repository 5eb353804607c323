package git

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/inovacc/gitsafe/internal/giturl"
	"github.com/inovacc/gitsafe/internal/model"
	gossh "golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Decrypter opens a secret sealed with the configured encryption key.
type Decrypter func(ciphertext, key string) (string, error)

// KnownHostsCallback builds a host key verifier from known_hosts files.
func KnownHostsCallback(files ...string) (gossh.HostKeyCallback, error) {
	cb, err := knownhosts.New(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}

	return cb, nil
}

// authFor picks the authentication method the remote's transport speaks.
// SSH remotes authenticate with the credential's key and HTTP remotes with
// its password; a credential lacking the matching secret is an error. The SSH
// login is the user named in the URL, then the credential's username.
func (e *Engine) authFor(rawURL string, cred *model.Credential, encryptionKey string) (transport.AuthMethod, error) {
	if cred == nil {
		return nil, nil
	}

	switch giturl.TransportOf(rawURL) {
	case giturl.TransportSSH:
		if cred.SSHKey == nil {
			return nil, ErrNoSSHKey
		}

		key, err := e.revealKey(cred.SSHKey, encryptionKey)
		if err != nil {
			return nil, err
		}

		user := sshUser(rawURL)
		if user == "" {
			user = cred.Username
		}

		if user == "" {
			user = "git"
		}

		keys, err := ssh.NewPublicKeys(user, []byte(key), "")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSSHKey, err)
		}

		keys.HostKeyCallback = e.hostKeys

		return keys, nil
	case giturl.TransportHTTP:
		password := e.revealPassword(cred.Password, encryptionKey)
		if password == "" {
			return nil, ErrNoPassword
		}

		return &http.BasicAuth{Username: cred.Username, Password: password}, nil
	case giturl.TransportFile:
		return nil, nil
	default:
		return nil, ErrNoMatchingCredential
	}
}

// revealKey returns SSH key material. An encrypted key that fails to decrypt
// is fatal.
func (e *Engine) revealKey(s *model.Secret, encryptionKey string) (string, error) {
	if !s.IsEncrypted() {
		return s.Value, nil
	}

	key, err := e.decrypt(s.Value, encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSSHKey, err)
	}

	return key, nil
}

// revealPassword returns the password. Values that fail to decrypt were
// stored before encryption existed and are used as they are.
func (e *Engine) revealPassword(s *model.Secret, encryptionKey string) string {
	if s == nil {
		return ""
	}

	if !s.IsEncrypted() {
		return s.Value
	}

	password, err := e.decrypt(s.Value, encryptionKey)
	if err != nil {
		e.logger.Debug("password did not decrypt, using stored value")
		return s.Value
	}

	return password
}

func sshUser(rawURL string) string {
	if u, err := giturl.Parse(rawURL); err == nil && u.User != nil && u.User.Username() != "" {
		return u.User.Username()
	}

	return ""
}
