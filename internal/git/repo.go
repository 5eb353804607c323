package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// FetchHead records the commit fetched by the last pull.
const FetchHead plumbing.ReferenceName = "FETCH_HEAD"

const noMessage = "(no message)"

// CommitInfo identifies the commit a mirror is at.
type CommitInfo struct {
	Hash    string
	Message string
}

// openOrClone makes dir an up to date mirror of rawURL. An existing
// repository in dir is pulled, anything else is replaced by a fresh clone.
func openOrClone(ctx context.Context, dir, rawURL string, auth transport.AuthMethod) (*gogit.Repository, error) {
	if _, err := os.Stat(filepath.Join(dir, gogit.GitDirName)); err == nil {
		r, err := gogit.PlainOpen(dir)
		if err == nil {
			if err := pull(ctx, r, rawURL, auth); err != nil {
				return nil, err
			}

			return r, nil
		}

		if !errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, newError(OpOpen, rawURL, err)
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, newError(OpClone, rawURL, err)
	}

	return clone(ctx, dir, rawURL, auth)
}

func clone(ctx context.Context, dir, rawURL string, auth transport.AuthMethod) (*gogit.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, newError(OpClone, rawURL, err)
	}

	r, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:        rawURL,
		Auth:       auth,
		RemoteName: gogit.DefaultRemoteName,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, newError(OpClone, rawURL, err)
	}

	return r, nil
}

// pull fetches only the checked out branch into its local ref and hard
// resets the worktree onto it. Local commits and edits are discarded.
func pull(ctx context.Context, r *gogit.Repository, rawURL string, auth transport.AuthMethod) error {
	head, err := r.Reference(plumbing.HEAD, false)
	if err != nil {
		return newError(OpRead, rawURL, err)
	}

	if head.Type() != plumbing.SymbolicReference {
		return newError(OpFetch, rawURL, ErrDetachedHead)
	}

	branch := head.Target()
	spec := config.RefSpec("+" + branch.String() + ":" + branch.String())

	err = r.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: gogit.DefaultRemoteName,
		RemoteURL:  rawURL,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       auth,
		Tags:       gogit.NoTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return newError(OpFetch, rawURL, err)
	}

	fetched, err := r.Reference(branch, true)
	if err != nil {
		return newError(OpRead, rawURL, err)
	}

	if err := r.Storer.SetReference(plumbing.NewHashReference(FetchHead, fetched.Hash())); err != nil {
		return newError(OpFetch, rawURL, err)
	}

	wt, err := r.Worktree()
	if err != nil {
		return newError(OpReset, rawURL, err)
	}

	if err := wt.Reset(&gogit.ResetOptions{Commit: fetched.Hash(), Mode: gogit.HardReset}); err != nil {
		return newError(OpReset, rawURL, err)
	}

	if err := wt.Clean(&gogit.CleanOptions{Dir: true}); err != nil {
		return newError(OpReset, rawURL, err)
	}

	return nil
}

// commitInfo resolves the mirror's commit from FETCH_HEAD, then the current
// branch, then HEAD.
func commitInfo(r *gogit.Repository) (*CommitInfo, error) {
	hash := plumbing.ZeroHash

	if ref, err := r.Reference(FetchHead, true); err == nil {
		hash = ref.Hash()
	}

	if hash.IsZero() {
		if head, err := r.Reference(plumbing.HEAD, false); err == nil && head.Type() == plumbing.SymbolicReference {
			if branch, err := r.Reference(head.Target(), true); err == nil {
				hash = branch.Hash()
			}
		}
	}

	if hash.IsZero() {
		head, err := r.Head()
		if err != nil {
			return nil, err
		}

		hash = head.Hash()
	}

	commit, err := r.CommitObject(hash)
	if err != nil {
		return nil, err
	}

	return &CommitInfo{Hash: hash.String(), Message: firstLine(commit.Message)}, nil
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(strings.TrimLeft(msg, "\r\n"), "\n")
	line = strings.TrimSpace(line)

	if line == "" {
		return noMessage
	}

	return line
}
