// Package config loads, validates and atomically saves the gitsafe YAML
// configuration file, and provides the lock guarded Store shared by the
// scheduler and the command layer.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is used when neither a flag nor CONFIG_PATH is set.
	DefaultPath = "config.yaml"

	// PathEnv names the environment variable holding the config path.
	PathEnv = "CONFIG_PATH"
)

// ResolvePath picks the configuration path from the flag value, CONFIG_PATH,
// or DefaultPath in that order.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if p := os.Getenv(PathEnv); p != "" {
		return p
	}

	return DefaultPath
}

// LoadDotEnv loads a .env file from the working directory when present.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("failed to load .env: %w", err)
}

// Load reads the configuration at path and applies GITSAFE__ environment
// overrides. A missing file is created from DefaultConfig; created reports
// whether that happened.
func Load(path string) (cfg *model.Config, created bool, err error) {
	data, err := os.ReadFile(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		def := model.DefaultConfig()
		cfg = &def

		if err := Save(path, cfg); err != nil {
			return nil, false, err
		}

		created = true
	case err != nil:
		return nil, false, fmt.Errorf("failed to read config: %w", err)
	default:
		cfg, err = Parse(data)
		if err != nil {
			return nil, false, err
		}
	}

	if err := ApplyEnv(cfg, os.Environ()); err != nil {
		return nil, false, err
	}

	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, false, err
	}

	return cfg, created, nil
}

// Parse decodes YAML on top of DefaultConfig so omitted settings keep their
// defaults.
func Parse(data []byte) (*model.Config, error) {
	cfg := model.DefaultConfig()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	normalize(&cfg)

	return &cfg, nil
}

func normalize(cfg *model.Config) {
	if cfg.Repositories == nil {
		cfg.Repositories = []model.Repository{}
	}

	if cfg.Credentials == nil {
		cfg.Credentials = map[string]*model.Credential{}
	}

	if cfg.Users == nil {
		cfg.Users = []model.User{}
	}

	for id, cred := range cfg.Credentials {
		if cred == nil {
			delete(cfg.Credentials, id)
			continue
		}

		if cred.ID == "" {
			cred.ID = id
		}
	}

	if cfg.Server.SyncAttempts <= 0 {
		cfg.Server.SyncAttempts = model.DefaultSyncAttempts
	}

	if cfg.Server.SyncConcurrency <= 0 {
		cfg.Server.SyncConcurrency = model.DefaultSyncConcurrency
	}

	if cfg.Scheduler.CronExpression == "" {
		cfg.Scheduler.CronExpression = model.DefaultCronExpression
	}

	if cfg.Storage.ArchiveDir == "" {
		cfg.Storage.ArchiveDir = model.DefaultArchiveDir
	}
}

// Save writes cfg to a temporary file next to path and renames it over path,
// so a crash never leaves a truncated configuration behind.
func Save(path string, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}

	tmpPath := tmp.Name()

	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return err
	}

	if err := tmp.Chmod(0o600); err != nil {
		return cleanup(fmt.Errorf("failed to set config permissions: %w", err))
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("failed to write temp config: %w", err))
	}

	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("failed to sync temp config: %w", err))
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	return nil
}
