// Package archive packs mirror working trees into single-file .tar.gz
// artifacts and unpacks them again. It knows nothing about Git.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// TempSuffix marks archives that are still being written.
const TempSuffix = ".tmp.tar.gz"

// Error describes a failed archive operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnsafePath is returned when an archive entry would land outside the
// extraction directory.
var ErrUnsafePath = errors.New("entry escapes destination directory")

// Pack writes sourceDir as a gzip compressed tar with a single root entry
// named entryName. The archive is created under a random name inside destDir
// and its path is returned; callers move it into place with Replace.
func Pack(sourceDir, entryName, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", &Error{Op: "pack", Path: destDir, Err: err}
	}

	tmpPath := filepath.Join(destDir, uuid.NewString()+TempSuffix)

	if err := writeArchive(sourceDir, entryName, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", &Error{Op: "pack", Path: sourceDir, Err: err}
	}

	return tmpPath, nil
}

func writeArchive(sourceDir, entryName, tmpPath string) (err error) {
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	gz, err := gzip.NewWriterLevel(f, gzip.DefaultCompression)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		name := entryName
		if rel != "." {
			name = entryName + "/" + filepath.ToSlash(rel)
		}

		return addEntry(tw, path, name, d)
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return err
	}

	if err := gz.Close(); err != nil {
		return err
	}

	return f.Sync()
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if info.Mode()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	hdr.Name = name
	if info.IsDir() {
		hdr.Name += "/"
	}

	// keep archives independent of the packing host
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}

	defer func() { _ = src.Close() }()

	_, err = io.Copy(tw, src)

	return err
}

// Unpack extracts every entry of archivePath below destDir. Any failure
// aborts the extraction; partial output is left for the caller to remove.
func Unpack(archivePath, destDir string) error {
	if err := unpack(archivePath, destDir); err != nil {
		return &Error{Op: "unpack", Path: archivePath, Err: err}
	}

	return nil
}

func unpack(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}

	defer func() { _ = gz.Close() }()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	realRoot, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return err
	}

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))

		// Ensure path is within output directory (prevent tar slip)
		if !strings.HasPrefix(filepath.Clean(target)+string(os.PathSeparator), root) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}

		// symlinks extracted earlier must not carry later entries outside
		if filepath.Clean(target) != filepath.Clean(destDir) {
			if err := checkParents(realRoot, filepath.Dir(target)); err != nil {
				return fmt.Errorf("%w: %s", err, hdr.Name)
			}
		}

		if err := extractEntry(tr, hdr, target); err != nil {
			return err
		}
	}
}

// checkParents resolves the nearest existing ancestor of dir and fails when
// it lies outside realRoot.
func checkParents(realRoot, dir string) error {
	for p := dir; ; p = filepath.Dir(p) {
		real, err := filepath.EvalSymlinks(p)
		if err == nil {
			if real != realRoot && !strings.HasPrefix(real, realRoot+string(os.PathSeparator)) {
				return ErrUnsafePath
			}

			return nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if parent := filepath.Dir(p); parent == p {
			return nil
		}
	}
}

func extractEntry(tr *tar.Reader, hdr *tar.Header, target string) error {
	// never write through a link recorded at the entry's own path
	if fi, err := os.Lstat(target); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, hdr.FileInfo().Mode().Perm()|0o700)
	case tar.TypeSymlink:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		return os.Symlink(hdr.Linkname, target)
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode().Perm())
		if err != nil {
			return err
		}

		_, err = io.Copy(dst, tr)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}

		return err
	default:
		// devices, fifos and hard links never appear in a git checkout
		return nil
	}
}

// Replace moves a freshly packed archive over finalPath. Readers of
// finalPath see either the previous archive or the new one.
func Replace(tmpPath, finalPath string) error {
	if err := os.Rename(tmpPath, finalPath); err == nil {
		return nil
	}

	// some platforms refuse to rename over an existing file
	if err := os.Remove(finalPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "replace", Path: finalPath, Err: err}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return &Error{Op: "replace", Path: finalPath, Err: err}
	}

	return nil
}
