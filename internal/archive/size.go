package archive

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FolderSize returns the total size of the regular files below path.
// Entries that cannot be read count as zero.
func FolderSize(path string) int64 {
	var total int64

	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if info, err := d.Info(); err == nil {
			total += info.Size()
		}

		return nil
	})

	return total
}

// FileSize returns the size of path, or 0 when it cannot be read.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}

	return info.Size()
}

// Info describes one stored mirror.
type Info struct {
	// Path is relative to the archive root, using forward slashes
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	// Directory is true for non-compact mirrors
	Directory bool `json:"directory"`
}

// List returns the mirrors stored below root: .tar.gz files and directories
// holding a .git folder. In-progress temporary archives are skipped.
func List(root string) ([]Info, error) {
	var out []Info

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}

			if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil && rel != "." {
				out = append(out, Info{
					Path:      filepath.ToSlash(rel),
					Size:      FolderSize(path),
					ModTime:   modTime(d),
					Directory: true,
				})

				return fs.SkipDir
			}

			return nil
		}

		name := d.Name()
		if !strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, TempSuffix) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}

		out = append(out, Info{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})

		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out, nil
}

func modTime(d fs.DirEntry) time.Time {
	info, err := d.Info()
	if err != nil {
		return time.Time{}
	}

	return info.ModTime()
}
