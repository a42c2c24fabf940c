package scenegeom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.False(t, s.Culling.Disabled)
	assert.Equal(t, 20, s.Culling.CullsPerTask)
	assert.Equal(t, 2, s.Culling.FanoutDepth)
	assert.GreaterOrEqual(t, s.Culling.Workers, 1)
	assert.Equal(t, 3, s.Frames.SwapchainImages)
	assert.NoError(t, s.Validate())
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenegeom.yaml")
	content := `
culling:
  disabled: true
  culls_per_task: 0
frames:
  swapchain_images: 2
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.True(t, s.Culling.Disabled)
	assert.Equal(t, 1, s.Culling.CullsPerTask)
	assert.Equal(t, 2, s.Culling.FanoutDepth)
	assert.Equal(t, 2, s.Frames.SwapchainImages)
	assert.Equal(t, "debug", s.Logging.Level)

	opts := s.CullOptions()
	assert.True(t, opts.Disabled)
	assert.Equal(t, 1, opts.CullsPerTask)
}

func TestLoadSettingsErrors(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("culling: [1, 2"), 0644))
	_, err = LoadSettings(bad)
	assert.Error(t, err)

	frames := filepath.Join(dir, "frames.yaml")
	require.NoError(t, os.WriteFile(frames, []byte("frames:\n  swapchain_images: 0\n"), 0644))
	_, err = LoadSettings(frames)
	assert.ErrorContains(t, err, "swapchain_images")

	level := filepath.Join(dir, "level.yaml")
	require.NoError(t, os.WriteFile(level, []byte("logging:\n  level: loud\n"), 0644))
	_, err = LoadSettings(level)
	assert.ErrorContains(t, err, "loud")
}
