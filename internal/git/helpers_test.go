package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// serve file:// remotes in process so tests do not depend on a git binary
	client.InstallProtocol("file", server.DefaultServer)

	os.Exit(m.Run())
}

// testRemote is a local repository used as the remote of a mirror.
type testRemote struct {
	dir  string
	repo *gogit.Repository
}

func newTestRemote(t *testing.T) *testRemote {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "upstream")

	r, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	return &testRemote{dir: dir, repo: r}
}

func (tr *testRemote) URL() string {
	return "file://" + filepath.ToSlash(filepath.Join(tr.dir, ".git"))
}

func (tr *testRemote) commit(t *testing.T, file, content, message string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(tr.dir, file)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tr.dir, file), []byte(content), 0o644))

	wt, err := tr.repo.Worktree()
	require.NoError(t, err)

	_, err = wt.Add(file)
	require.NoError(t, err)

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return hash.String()
}
