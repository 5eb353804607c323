package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/inovacc/gitsafe/internal/crypto"
	"github.com/inovacc/gitsafe/internal/model"
)

// ListUsers returns the usernames in configuration order.
func (m *Manager) ListUsers() []string {
	var names []string

	m.store.Read(func(cfg *model.Config) {
		for _, u := range cfg.Users {
			names = append(names, u.Username)
		}
	})

	return names
}

// AddUser stores username with a bcrypt hash of password.
func (m *Manager) AddUser(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrInvalidUser
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	return m.mutate(func(cfg *model.Config) error {
		if findUser(cfg, username) >= 0 {
			return fmt.Errorf("user %s: %w", username, ErrDuplicateID)
		}

		cfg.Users = append(cfg.Users, model.User{Username: username, PasswordHash: hash})

		return nil
	})
}

// SetUserPassword replaces the password of an existing user.
func (m *Manager) SetUserPassword(username, password string) error {
	if password == "" {
		return ErrInvalidUser
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	return m.mutate(func(cfg *model.Config) error {
		i := findUser(cfg, username)
		if i < 0 {
			return fmt.Errorf("user %s: %w", username, ErrNotFound)
		}

		cfg.Users[i].PasswordHash = hash

		return nil
	})
}

// VerifyUser checks a username and password pair.
func (m *Manager) VerifyUser(username, password string) error {
	var hash string

	m.store.Read(func(cfg *model.Config) {
		if i := findUser(cfg, username); i >= 0 {
			hash = cfg.Users[i].PasswordHash
		}
	})

	if hash == "" {
		return ErrInvalidLogin
	}

	if err := crypto.VerifyPassword(hash, password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return ErrInvalidLogin
		}

		return err
	}

	return nil
}

// RemoveUser deletes a user.
func (m *Manager) RemoveUser(username string) error {
	return m.mutate(func(cfg *model.Config) error {
		i := findUser(cfg, username)
		if i < 0 {
			return fmt.Errorf("user %s: %w", username, ErrNotFound)
		}

		cfg.Users = slices.Delete(cfg.Users, i, i+1)

		return nil
	})
}

func findUser(cfg *model.Config, username string) int {
	return slices.IndexFunc(cfg.Users, func(u model.User) bool { return u.Username == username })
}
