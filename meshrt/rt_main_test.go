package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenegeom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunHostDevice(t *testing.T) {
	path := writeConfig(t, `
frames:
  swapchain_images: 2
logging:
  level: error
`)
	assert.NoError(t, run(options{configPath: path, frames: 6, models: 2}))
	assert.NoError(t, run(options{configPath: path, frames: 3, models: 1, noCull: true}))
}

func TestRunReturnsErrors(t *testing.T) {
	err := run(options{configPath: filepath.Join(t.TempDir(), "missing.yaml"), frames: 1, models: 1})
	assert.Error(t, err)

	path := writeConfig(t, `
frames:
  swapchain_images: 0
logging:
  level: error
`)
	assert.Error(t, run(options{configPath: path, frames: 1, models: 1}))
}
