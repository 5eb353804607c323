package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirectoryExplicit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	got, err := EnsureDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGetApplicationDirectory(t *testing.T) {
	dir, err := GetApplicationDirectory()
	if err != nil {
		t.Skipf("no user config directory: %v", err)
	}

	assert.NotEmpty(t, dir)
}
