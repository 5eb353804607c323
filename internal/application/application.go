package application

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// AppName is the application name used for directories and identification
	AppName = "gitsafe"

	// ServiceName identifies the installed system service
	ServiceName = "GitSafe"

	// ServiceDisplayName is shown by the service manager
	ServiceDisplayName = "GitSafe Repository Mirror"

	// DataDirEnv overrides the data directory
	DataDirEnv = "GITSAFE_DATA_DIR"
)

var (
	once   sync.Once
	appDir string
	errDir error
)

// GetApplicationDirectory returns the directory holding the sync history and
// the daemon info file. GITSAFE_DATA_DIR wins when set.
// Linux: ~/.config/gitsafe (via os.UserConfigDir)
// Windows: C:\Users\{username}\AppData\Local\gitsafe (via os.UserCacheDir)
func GetApplicationDirectory() (string, error) {
	once.Do(lazyLoad)

	if errDir != nil {
		return "", errDir
	}

	return appDir, nil
}

// EnsureDirectory returns dir, or the application directory when dir is
// empty, after creating it.
func EnsureDirectory(dir string) (string, error) {
	if dir == "" {
		var err error

		if dir, err = GetApplicationDirectory(); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dir, nil
}

func lazyLoad() {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		appDir = dir
		return
	}

	var (
		baseDir string
		err     error
	)

	switch runtime.GOOS {
	case "windows":
		baseDir, err = os.UserCacheDir()
	default:
		baseDir, err = os.UserConfigDir()
	}

	if err != nil {
		errDir = fmt.Errorf("failed to get config directory: %w", err)
		return
	}

	appDir = filepath.Join(baseDir, AppName)
}
