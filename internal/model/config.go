package model

import (
	"maps"
	"slices"
)

// Default values applied to a fresh configuration.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8080
	DefaultJWTSecret       = "change-me-in-production"
	DefaultEncryptionKey   = "change-me-in-production-use-a-long-random-string-for-encryption"
	DefaultSyncAttempts    = 3
	DefaultSyncConcurrency = 4
	DefaultArchiveDir      = "./archives"
	DefaultCronExpression  = "0 0 * * * *"
)

// Config holds the complete gitsafe state persisted to disk.
type Config struct {
	Server       ServerConfig           `yaml:"server"`
	Storage      StorageConfig          `yaml:"storage"`
	Scheduler    SchedulerConfig        `yaml:"scheduler"`
	Repositories []Repository           `yaml:"repositories"`
	Credentials  map[string]*Credential `yaml:"credentials"`
	Users        []User                 `yaml:"users"`
}

// ServerConfig holds process wide settings.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`

	// EncryptionKey protects stored credential secrets.
	EncryptionKey string `yaml:"encryption_key"`

	// ErrorWebhooks receive a JSON POST for every failed sync.
	ErrorWebhooks []string `yaml:"error_webhooks,omitempty"`

	// SyncAttempts is the number of consecutive failures tolerated before a
	// repository is disabled.
	SyncAttempts int `yaml:"sync_attempts"`

	// SyncConcurrency bounds how many repositories sync at the same time.
	SyncConcurrency int `yaml:"sync_concurrency"`
}

// StorageConfig controls where and how mirrors are stored.
type StorageConfig struct {
	ArchiveDir string `yaml:"archive_dir"`

	// Compact stores each mirror as a single .tar.gz instead of a directory.
	Compact bool `yaml:"compact"`

	// KnownHosts is an optional known_hosts file used to verify SSH remotes.
	KnownHosts string `yaml:"known_hosts,omitempty"`
}

// SchedulerConfig holds the cron schedule for batch syncs.
type SchedulerConfig struct {
	// CronExpression uses six fields: sec min hour dom month dow.
	CronExpression string `yaml:"cron_expression"`
}

// User is a local account allowed to manage the service.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			JWTSecret:       DefaultJWTSecret,
			EncryptionKey:   DefaultEncryptionKey,
			SyncAttempts:    DefaultSyncAttempts,
			SyncConcurrency: DefaultSyncConcurrency,
		},
		Storage: StorageConfig{
			ArchiveDir: DefaultArchiveDir,
			Compact:    true,
		},
		Scheduler: SchedulerConfig{
			CronExpression: DefaultCronExpression,
		},
		Repositories: []Repository{},
		Credentials:  map[string]*Credential{},
		Users:        []User{},
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Server.ErrorWebhooks = slices.Clone(c.Server.ErrorWebhooks)
	out.Users = slices.Clone(c.Users)

	out.Repositories = make([]Repository, len(c.Repositories))
	for i := range c.Repositories {
		out.Repositories[i] = *c.Repositories[i].Clone()
	}

	out.Credentials = make(map[string]*Credential, len(c.Credentials))
	for id, cred := range c.Credentials {
		out.Credentials[id] = cred.Clone()
	}

	return &out
}

// FindRepository returns the repository with the given id, or nil.
func (c *Config) FindRepository(id string) *Repository {
	for i := range c.Repositories {
		if c.Repositories[i].ID == id {
			return &c.Repositories[i]
		}
	}

	return nil
}

// Credential returns the credential with the given id, or nil when id is
// empty or unknown.
func (c *Config) Credential(id string) *Credential {
	if id == "" {
		return nil
	}

	return c.Credentials[id]
}

// CredentialIDs returns the credential ids in sorted order.
func (c *Config) CredentialIDs() []string {
	return slices.Sorted(maps.Keys(c.Credentials))
}
