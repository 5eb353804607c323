package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/inovacc/gitsafe/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, created, err := Load(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.DefaultPort, cfg.Server.Port)
	assert.True(t, cfg.Storage.Compact)
	assert.Equal(t, model.DefaultCronExpression, cfg.Scheduler.CronExpression)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, created, err := Load(path)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, cfg.Server, again.Server)
}

func TestParseKeepsDefaults(t *testing.T) {
	doc := `
server:
  host: 0.0.0.0
  port: 9000
  jwt_secret: s
  encryption_key: k
storage:
  archive_dir: /data
scheduler:
  cron_expression: "0 */5 * * * *"
repositories:
  - id: github_com-example-repo1
    url: https://github.com/example/repo1
    enabled: true
    attempts_left: 2
credentials:
  c1:
    username: git
    password: legacy-plain
users: []
`

	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, model.DefaultSyncAttempts, cfg.Server.SyncAttempts)
	assert.Equal(t, model.DefaultSyncConcurrency, cfg.Server.SyncConcurrency)
	assert.True(t, cfg.Storage.Compact, "compact defaults to true when omitted")
	require.Len(t, cfg.Repositories, 1)
	assert.Equal(t, 2, *cfg.Repositories[0].AttemptsLeft)
	require.Contains(t, cfg.Credentials, "c1")
	assert.Equal(t, "c1", cfg.Credentials["c1"].ID)
	require.NoError(t, Validate(cfg))
}

func TestApplyEnv(t *testing.T) {
	cfg := model.DefaultConfig()

	err := ApplyEnv(&cfg, []string{
		"GITSAFE__SERVER__HOST=0.0.0.0",
		"GITSAFE__SERVER__PORT=9090",
		"GITSAFE__SERVER__ERROR_WEBHOOKS=http://a, http://b",
		"GITSAFE__STORAGE__ARCHIVE_DIR=/tmp/archives",
		"GITSAFE__STORAGE__COMPACT=false",
		"GITSAFE__SCHEDULER__CRON_EXPRESSION=0 30 * * * *",
		"GITSAFE__UNKNOWN__FIELD=ignored",
		"PATH=/usr/bin",
	})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.ErrorWebhooks)
	assert.Equal(t, "/tmp/archives", cfg.Storage.ArchiveDir)
	assert.False(t, cfg.Storage.Compact)
	assert.Equal(t, "0 30 * * * *", cfg.Scheduler.CronExpression)

	err = ApplyEnv(&cfg, []string{"GITSAFE__SERVER__PORT=eighty"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := model.DefaultConfig()
	require.NoError(t, Validate(&cfg))

	cfg.Scheduler.CronExpression = "every hour"
	cfg.Server.Port = 0
	cfg.Repositories = []model.Repository{{ID: "a"}, {ID: "a"}}
	cfg.Credentials["c1"] = &model.Credential{ID: "c1", Username: "git"}

	err := Validate(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrCredentialEmpty)
	assert.Contains(t, err.Error(), "cron_expression")
	assert.Contains(t, err.Error(), "duplicate repository id")
	assert.Contains(t, err.Error(), "out of range")
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := model.DefaultConfig()
	cfg.Repositories = append(cfg.Repositories, model.Repository{ID: "r1", URL: "https://example.com/r1", Enabled: true})
	require.NoError(t, Save(path, &cfg))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "r1", loaded.Repositories[0].ID)
}

func TestResolvePath(t *testing.T) {
	t.Setenv(PathEnv, "/etc/gitsafe.yaml")
	assert.Equal(t, "flag.yaml", ResolvePath("flag.yaml"))
	assert.Equal(t, "/etc/gitsafe.yaml", ResolvePath(""))

	t.Setenv(PathEnv, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))
}

func TestStoreUpdateReturnsIndependentClone(t *testing.T) {
	cfg := model.DefaultConfig()
	store := NewStore(&cfg)

	snap, err := store.Update(func(c *model.Config) error {
		c.Repositories = append(c.Repositories, model.Repository{ID: "r1", Enabled: true})
		return nil
	})
	require.NoError(t, err)

	snap.Repositories[0].Enabled = false

	store.Read(func(c *model.Config) {
		assert.True(t, c.Repositories[0].Enabled)
	})

	_, err = store.Update(func(*model.Config) error { return assert.AnError })
	require.ErrorIs(t, err, assert.AnError)
}

func TestStoreConcurrentAccess(t *testing.T) {
	cfg := model.DefaultConfig()
	store := NewStore(&cfg)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Go(func() {
			if i%2 == 0 {
				_ = store.Snapshot()
				return
			}

			_, _ = store.Update(func(c *model.Config) error {
				c.Users = append(c.Users, model.User{Username: "u"})
				return nil
			})
		})
	}

	wg.Wait()
	assert.Len(t, store.Snapshot().Users, 10)
}
