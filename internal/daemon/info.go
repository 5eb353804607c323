// Package daemon tracks the running gitsafe server through an info file in
// the data directory.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/inovacc/gitsafe/internal/process"
)

// InfoFile is the name of the info file inside the data directory.
const InfoFile = "server.json"

// ErrNoInfo indicates no info file exists.
var ErrNoInfo = errors.New("no server info file")

// Info describes a running server.
type Info struct {
	PID            int       `json:"pid"`
	StartedAt      time.Time `json:"started_at"`
	ConfigPath     string    `json:"config_path"`
	ArchiveDir     string    `json:"archive_dir"`
	CronExpression string    `json:"cron_expression"`
}

// Uptime returns how long the server has been running.
func (i *Info) Uptime() time.Duration {
	return time.Since(i.StartedAt).Round(time.Second)
}

// Path returns the info file path for dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, InfoFile)
}

// Write stores info in dataDir.
func Write(dataDir string, info *Info) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal server info: %w", err)
	}

	if err := os.WriteFile(Path(dataDir), data, 0o600); err != nil {
		return fmt.Errorf("failed to write server info file: %w", err)
	}

	return nil
}

// Read loads the info file from dataDir.
func Read(dataDir string) (*Info, error) {
	data, err := os.ReadFile(Path(dataDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoInfo
		}

		return nil, fmt.Errorf("failed to read server info: %w", err)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse server info: %w", err)
	}

	return &info, nil
}

// Remove deletes the info file. A missing file is not an error.
func Remove(dataDir string) {
	_ = os.Remove(Path(dataDir))
}

// Running returns the info of a live server, or nil. A stale file left by a
// dead process is removed.
func Running(dataDir string) *Info {
	info, err := Read(dataDir)
	if err != nil {
		return nil
	}

	if process.IsRunning(info.PID) {
		return info
	}

	Remove(dataDir)

	return nil
}
