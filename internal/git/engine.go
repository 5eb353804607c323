// Package git mirrors remote repositories into the archive directory using
// go-git. One call to Engine.Sync is one attempt; retries live above it.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/inovacc/gitsafe/internal/archive"
	"github.com/inovacc/gitsafe/internal/crypto"
	"github.com/inovacc/gitsafe/internal/giturl"
	"github.com/inovacc/gitsafe/internal/model"
	gossh "golang.org/x/crypto/ssh"
)

// Engine syncs repositories into archiveDir, either as one .tar.gz per
// repository (compact) or as plain working trees.
type Engine struct {
	archiveDir string
	compact    bool
	tempDir    string
	hostKeys   gossh.HostKeyCallback
	decrypt    Decrypter
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHostKeyCallback verifies SSH host keys. Without it host keys are not checked.
func WithHostKeyCallback(cb gossh.HostKeyCallback) Option {
	return func(e *Engine) {
		e.hostKeys = cb
	}
}

// WithDecrypter replaces crypto.Decrypt for opening stored secrets.
func WithDecrypter(d Decrypter) Option {
	return func(e *Engine) {
		e.decrypt = d
	}
}

// WithTempDir sets where compact mode unpacks working trees.
func WithTempDir(dir string) Option {
	return func(e *Engine) {
		e.tempDir = dir
	}
}

// NewEngine creates the archive directory if needed.
func NewEngine(archiveDir string, compact bool, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(archiveDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}

	e := &Engine{
		archiveDir: abs,
		compact:    compact,
		hostKeys:   gossh.InsecureIgnoreHostKey(),
		decrypt:    crypto.Decrypt,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// ArchiveDir returns the absolute archive root.
func (e *Engine) ArchiveDir() string {
	return e.archiveDir
}

// Compact reports whether mirrors are stored as archives.
func (e *Engine) Compact() bool {
	return e.compact
}

// StoragePath returns the absolute artifact path for a remote URL.
func (e *Engine) StoragePath(rawURL string) string {
	return filepath.Join(e.archiveDir, filepath.FromSlash(giturl.DeriveStoragePath(rawURL, e.compact)))
}

// Probe returns the remote's default branch tip without fetching objects.
func (e *Engine) Probe(ctx context.Context, repo *model.Repository, cred *model.Credential, encryptionKey string) (*RemoteHead, error) {
	auth, err := e.authFor(repo.URL, cred, encryptionKey)
	if err != nil {
		return nil, newError(OpAuth, repo.URL, err)
	}

	head, err := probe(ctx, repo.URL, auth)
	if err != nil {
		return nil, newError(OpProbe, repo.URL, err)
	}

	return head, nil
}

// Sync brings the stored mirror of repo up to date. When the remote is still
// at the recorded commit nothing is touched and the result is Skipped.
func (e *Engine) Sync(ctx context.Context, repo *model.Repository, cred *model.Credential, encryptionKey string) (*model.SyncResult, error) {
	auth, err := e.authFor(repo.URL, cred, encryptionKey)
	if err != nil {
		return nil, newError(OpAuth, repo.URL, err)
	}

	target := e.StoragePath(repo.URL)
	logger := e.logger.With(slog.String("repository", repo.ID))

	if recorded := repo.LastSyncCommitHash; recorded != nil && *recorded != "" {
		head, err := probe(ctx, repo.URL, auth)

		switch {
		case err != nil:
			logger.Info("remote probe failed, running full sync", slog.Any("error", err))
		case head.Hash == *recorded:
			logger.Debug("repository already up to date", slog.String("commit", head.Hash))

			message := ""
			if repo.LastSyncMessage != nil {
				message = *repo.LastSyncMessage
			}

			return &model.SyncResult{
				Path:          target,
				Size:          e.artifactSize(target),
				CommitHash:    head.Hash,
				CommitMessage: message,
				Skipped:       true,
				Status:        model.StatusUpToDate,
			}, nil
		}
	}

	var (
		info *CommitInfo
		size int64
	)

	if e.compact {
		info, size, err = e.syncArchive(ctx, repo.URL, target, auth)
	} else {
		info, size, err = e.syncDirectory(ctx, repo.URL, target, auth)
	}

	if err != nil {
		return nil, err
	}

	logger.Info("repository synced",
		slog.String("commit", info.Hash),
		slog.Int64("size", size),
	)

	return &model.SyncResult{
		Path:          target,
		Size:          size,
		CommitHash:    info.Hash,
		CommitMessage: info.Message,
		Status:        model.StatusSynced,
	}, nil
}

func (e *Engine) artifactSize(path string) int64 {
	if e.compact {
		return archive.FileSize(path)
	}

	return archive.FolderSize(path)
}

// syncArchive unpacks the existing archive into a scratch directory, updates
// it and atomically replaces the archive with a repacked copy.
func (e *Engine) syncArchive(ctx context.Context, rawURL, target string, auth transport.AuthMethod) (*CommitInfo, int64, error) {
	name := strings.TrimSuffix(filepath.Base(target), giturl.ArchiveSuffix)

	scratch, err := os.MkdirTemp(e.tempDir, "gitsafe-sync-*")
	if err != nil {
		return nil, 0, &archive.Error{Op: "workdir", Path: e.tempDir, Err: err}
	}

	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			e.logger.Warn("failed to remove scratch directory", slog.String("path", scratch), slog.Any("error", err))
		}
	}()

	if _, err := os.Stat(target); err == nil {
		if err := archive.Unpack(target, scratch); err != nil {
			return nil, 0, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, 0, &archive.Error{Op: "stat", Path: target, Err: err}
	}

	workDir := filepath.Join(scratch, name)

	r, err := openOrClone(ctx, workDir, rawURL, auth)
	if err != nil {
		return nil, 0, err
	}

	info, err := commitInfo(r)
	if err != nil {
		return nil, 0, newError(OpRead, rawURL, err)
	}

	tmp, err := archive.Pack(workDir, name, filepath.Dir(target))
	if err != nil {
		return nil, 0, err
	}

	if err := archive.Replace(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return nil, 0, err
	}

	return info, archive.FileSize(target), nil
}

// syncDirectory keeps a persistent working tree at target.
func (e *Engine) syncDirectory(ctx context.Context, rawURL, target string, auth transport.AuthMethod) (*CommitInfo, int64, error) {
	r, err := openOrClone(ctx, target, rawURL, auth)
	if err != nil {
		return nil, 0, err
	}

	info, err := commitInfo(r)
	if err != nil {
		return nil, 0, newError(OpRead, rawURL, err)
	}

	return info, archive.FolderSize(target), nil
}
