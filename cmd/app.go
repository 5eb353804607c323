package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/inovacc/gitsafe/internal/application"
	"github.com/inovacc/gitsafe/internal/config"
	"github.com/inovacc/gitsafe/internal/core"
	"github.com/inovacc/gitsafe/internal/daemon"
	"github.com/inovacc/gitsafe/internal/git"
	"github.com/inovacc/gitsafe/internal/model"
	"github.com/inovacc/gitsafe/internal/notify"
	"github.com/inovacc/gitsafe/internal/persist"
	"github.com/inovacc/gitsafe/internal/store"
)

var errServerRunning = errors.New("the gitsafe server is running; stop it with 'gitsafe server stop' before changing configuration")

// app is the wired set of components shared by every command.
type app struct {
	configPath string
	dataDir    string
	logger     *slog.Logger

	store     *config.Store
	engine    *git.Engine
	debouncer *persist.Debouncer
	notifier  *notify.Notifier
	history   store.History
	manager   *core.Manager
}

type appOptions struct {
	// history opens the sync history database
	history bool

	// mutates refuses to run while a server owns the configuration
	mutates bool
}

func openApp(opts appOptions) (*app, error) {
	logger := slog.Default()

	configPath, err := filepath.Abs(config.ResolvePath(configFlag))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	dataDir, err := application.EnsureDirectory(dataDirFlag)
	if err != nil {
		return nil, err
	}

	if opts.mutates && daemon.Running(dataDir) != nil {
		return nil, errServerRunning
	}

	cfg, created, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if created {
		logger.Info("created default configuration", slog.String("path", configPath))
	}

	if cfg.Server.EncryptionKey == model.DefaultEncryptionKey {
		logger.Warn("using the default encryption key; set server.encryption_key or GITSAFE__SERVER__ENCRYPTION_KEY")
	}

	engine, err := newEngine(cfg, filepath.Dir(configPath), logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		configPath: configPath,
		dataDir:    dataDir,
		logger:     logger,
		store:      config.NewStore(cfg),
		engine:     engine,
		notifier:   notify.NewNotifier(notify.WithLogger(logger)),
	}

	a.debouncer = persist.New(func(c *model.Config) error {
		return config.Save(configPath, c)
	}, persist.WithLogger(logger))

	managerOpts := []core.Option{
		core.WithPersister(a.debouncer),
		core.WithNotifier(a.notifier),
		core.WithLogger(logger),
	}

	if opts.history {
		h, err := store.Open(dataDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open sync history: %w", err)
		}

		a.history = h
		managerOpts = append(managerOpts, core.WithHistory(h))
	}

	a.manager = core.NewManager(a.store, engine, managerOpts...)

	return a, nil
}

// newEngine resolves a relative archive_dir against the directory of the
// configuration file.
func newEngine(cfg *model.Config, baseDir string, logger *slog.Logger) (*git.Engine, error) {
	opts := []git.Option{git.WithLogger(logger)}

	archiveDir := cfg.Storage.ArchiveDir
	if !filepath.IsAbs(archiveDir) {
		archiveDir = filepath.Join(baseDir, archiveDir)
	}

	if cfg.Storage.KnownHosts != "" {
		cb, err := git.KnownHostsCallback(cfg.Storage.KnownHosts)
		if err != nil {
			return nil, err
		}

		opts = append(opts, git.WithHostKeyCallback(cb))
	}

	return git.NewEngine(archiveDir, cfg.Storage.Compact, opts...)
}

// Close waits for running syncs and pending webhooks, flushes the
// configuration and closes the history database.
func (a *app) Close() {
	a.manager.Wait()
	a.notifier.Wait()
	a.debouncer.Close()

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("failed to close sync history", slog.Any("error", err))
		}
	}
}
