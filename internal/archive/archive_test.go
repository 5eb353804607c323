package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string][]byte) {
	t.Helper()

	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, content, 0o644))
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "repo1")
	files := map[string][]byte{
		"README.md":             []byte("# repo1\n"),
		"src/main.go":           []byte("package main\n\nfunc main() {}\n"),
		".git/HEAD":             []byte("ref: refs/heads/main\n"),
		".git/objects/ab/cdef0": {0x00, 0x01, 0xff, 0xfe},
		"deep/a/b/c/d.txt":      bytes.Repeat([]byte("x"), 70000),
	}
	writeTree(t, src, files)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	destDir := t.TempDir()
	tmp, err := Pack(src, "repo1", destDir)
	require.NoError(t, err)
	assert.Equal(t, destDir, filepath.Dir(tmp))
	assert.True(t, filepath.Ext(tmp) == ".gz")

	out := t.TempDir()
	require.NoError(t, Unpack(tmp, out))

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(out, "repo1", filepath.FromSlash(name)))
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	info, err := os.Stat(filepath.Join(out, "repo1", "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, FolderSize(src), FolderSize(filepath.Join(out, "repo1")))
}

func TestPackMissingSource(t *testing.T) {
	destDir := t.TempDir()

	_, err := Pack(filepath.Join(t.TempDir(), "missing"), "x", destDir)
	require.Error(t, err)

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "pack", aerr.Op)

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary archive must be removed on failure")
}

func TestUnpackRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil.txt", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "bad.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o644))

	out := filepath.Join(dir, "out")
	err = Unpack(archivePath, out)
	require.ErrorIs(t, err, ErrUnsafePath)

	_, statErr := os.Stat(filepath.Join(dir, "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackRejectsWritesThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "link", Linkname: outside, Typeflag: tar.TypeSymlink}))

	body := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "link/evil.txt", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	archivePath := filepath.Join(dir, "bad.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o644))

	err = Unpack(archivePath, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, ErrUnsafePath)

	_, statErr := os.Stat(filepath.Join(outside, "evil.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnpackCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "corrupt.tar.gz")
	require.NoError(t, os.WriteFile(p, []byte("definitely not gzip"), 0o644))

	require.Error(t, Unpack(p, filepath.Join(dir, "out")))
}

func TestReplaceIsAtomic(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "repo.tar.gz")

	small := bytes.Repeat([]byte("a"), 1024)
	large := bytes.Repeat([]byte("b"), 256*1024)
	require.NoError(t, os.WriteFile(final, small, 0o644))

	var (
		stop int32
		bad  int32
		wg   sync.WaitGroup
	)

	wg.Add(1)

	go func() {
		defer wg.Done()

		for atomic.LoadInt32(&stop) == 0 {
			data, err := os.ReadFile(final)
			if err != nil {
				continue
			}

			if len(data) != len(small) && len(data) != len(large) {
				atomic.AddInt32(&bad, 1)
			}
		}
	}()

	for i := range 50 {
		content := small
		if i%2 == 0 {
			content = large
		}

		tmp := filepath.Join(dir, "next"+TempSuffix)
		require.NoError(t, os.WriteFile(tmp, content, 0o644))
		require.NoError(t, Replace(tmp, final))
	}

	atomic.StoreInt32(&stop, 1)
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&bad), "reader observed a partial archive")
}

func TestFolderSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"a":     make([]byte, 10),
		"b/c":   make([]byte, 20),
		"b/d/e": make([]byte, 30),
	})

	assert.Equal(t, int64(60), FolderSize(root))
	assert.Zero(t, FolderSize(filepath.Join(root, "missing")))
	assert.Zero(t, FileSize(filepath.Join(root, "missing")))
	assert.Equal(t, int64(10), FileSize(filepath.Join(root, "a")))
}

func TestList(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string][]byte{
		"github_com/example/repo1.tar.gz":     []byte("archive"),
		"github_com/example/abc" + TempSuffix: []byte("partial"),
		"gitlab_com/group/project/.git/HEAD":  []byte("ref: refs/heads/main\n"),
		"gitlab_com/group/project/README":     []byte("hello"),
		"notes.txt":                           []byte("ignored"),
	})

	infos, err := List(root)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "github_com/example/repo1.tar.gz", infos[0].Path)
	assert.False(t, infos[0].Directory)
	assert.Equal(t, int64(7), infos[0].Size)

	assert.Equal(t, "gitlab_com/group/project", infos[1].Path)
	assert.True(t, infos[1].Directory)

	missing, err := List(filepath.Join(root, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
