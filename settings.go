package scenegeom

import (
	"fmt"
	"os"
	"runtime"

	"github.com/gekko3d/scenegeom/meshrt/rt/cull"
	"gopkg.in/yaml.v3"
)

// Settings holds the tunables of the geometry pipeline.
type Settings struct {
	Culling CullingSettings `yaml:"culling"`
	Frames  FrameSettings   `yaml:"frames"`
	Logging LoggingSettings `yaml:"logging"`
}

type CullingSettings struct {
	Disabled     bool `yaml:"disabled"`
	CullsPerTask int  `yaml:"culls_per_task"` // primitives per batch task
	FanoutDepth  int  `yaml:"fanout_depth"`   // node depth handled by one leaf task
	Workers      int  `yaml:"workers"`
}

type FrameSettings struct {
	SwapchainImages int `yaml:"swapchain_images"`
}

type LoggingSettings struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultSettings() *Settings {
	return &Settings{
		Culling: CullingSettings{
			CullsPerTask: cull.DefaultCullsPerTask,
			FanoutDepth:  cull.DefaultFanoutDepth,
			Workers:      max(runtime.NumCPU()-1, 1),
		},
		Frames:  FrameSettings{SwapchainImages: 3},
		Logging: LoggingSettings{Level: "info"},
	}
}

// LoadSettings reads path over the defaults.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading settings from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate clamps counts to their minimum and rejects values that cannot be
// clamped.
func (s *Settings) Validate() error {
	s.Culling.CullsPerTask = max(s.Culling.CullsPerTask, 1)
	s.Culling.FanoutDepth = max(s.Culling.FanoutDepth, 0)
	s.Culling.Workers = max(s.Culling.Workers, 1)
	if s.Frames.SwapchainImages < 1 {
		return fmt.Errorf("frames.swapchain_images must be positive, got %d", s.Frames.SwapchainImages)
	}
	switch s.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", s.Logging.Level)
	}
	return nil
}

func (s *Settings) CullOptions() cull.Options {
	return cull.Options{
		Disabled:     s.Culling.Disabled,
		CullsPerTask: s.Culling.CullsPerTask,
		FanoutDepth:  s.Culling.FanoutDepth,
	}
}
