// Package config handles viewer configuration loading and management.
package config

import "fmt"

// Render modes.
const (
	ModeRaster   = "raster"
	ModeRayTrace = "raytrace"
	ModeHybrid   = "hybrid"
)

// Device backends.
const (
	BackendOpenGL = "opengl"
	BackendSoft   = "soft"
)

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics" toml:"graphics"`
	Renderer RendererConfig `yaml:"renderer" toml:"renderer"`
	Scene    SceneConfig    `yaml:"scene" toml:"scene"`
	Capture  CaptureConfig  `yaml:"capture" toml:"capture"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width      int    `yaml:"width" toml:"width"`
	Height     int    `yaml:"height" toml:"height"`
	Fullscreen bool   `yaml:"fullscreen" toml:"fullscreen"`
	VSync      bool   `yaml:"vsync" toml:"vsync"`
	Backend    string `yaml:"backend" toml:"backend"` // opengl or soft
}

// RendererConfig holds GPU pipeline sizing and mode.
type RendererConfig struct {
	Mode               string     `yaml:"mode" toml:"mode"` // raster, raytrace or hybrid
	MaxConstantBuffers int        `yaml:"max_constant_buffers" toml:"max_constant_buffers"`
	DescriptorHeapSize int        `yaml:"descriptor_heap_size" toml:"descriptor_heap_size"`
	MaxHitGroups       int        `yaml:"max_hit_groups" toml:"max_hit_groups"`
	RaysPerPixel       int        `yaml:"rays_per_pixel" toml:"rays_per_pixel"`
	MaxDepth           int        `yaml:"max_depth" toml:"max_depth"`
	ClearColor         [4]float32 `yaml:"clear_color" toml:"clear_color"`
}

// SceneConfig selects the scene description file.
type SceneConfig struct {
	Path  string `yaml:"path" toml:"path"` // empty means the built-in showcase scene
	Watch bool   `yaml:"watch" toml:"watch"`
}

// CaptureConfig controls frame capture.
type CaptureConfig struct {
	Dir    string `yaml:"dir" toml:"dir"`
	Frames int    `yaml:"frames" toml:"frames"` // stop after this many frames, 0 runs until quit
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			Backend:    BackendOpenGL,
		},
		Renderer: RendererConfig{
			Mode:               ModeHybrid,
			MaxConstantBuffers: 1000,
			DescriptorHeapSize: 4096,
			MaxHitGroups:       64,
			RaysPerPixel:       1,
			MaxDepth:           10,
			ClearColor:         [4]float32{0.4, 0.6, 0.75, 1},
		},
		Scene: SceneConfig{
			Path:  "",
			Watch: false,
		},
		Capture: CaptureConfig{
			Dir:    "screenshots",
			Frames: 0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports configuration values the renderer cannot run with.
func (c *Config) Validate() error {
	switch c.Renderer.Mode {
	case ModeRaster, ModeRayTrace, ModeHybrid:
	default:
		return fmt.Errorf("renderer.mode %q: want raster, raytrace or hybrid", c.Renderer.Mode)
	}
	switch c.Graphics.Backend {
	case BackendOpenGL, BackendSoft:
	default:
		return fmt.Errorf("graphics.backend %q: want opengl or soft", c.Graphics.Backend)
	}
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics size %dx%d must be positive", c.Graphics.Width, c.Graphics.Height)
	}
	if c.Renderer.MaxConstantBuffers <= 0 {
		return fmt.Errorf("renderer.max_constant_buffers must be positive")
	}
	// CBV region + two geometry slots per hit group + output UAV must leave room for the SRV ring.
	reserved := c.Renderer.MaxConstantBuffers + 2*c.Renderer.MaxHitGroups + 1
	if c.Renderer.DescriptorHeapSize <= reserved {
		return fmt.Errorf("renderer.descriptor_heap_size %d leaves no SRV ring (reserved %d)",
			c.Renderer.DescriptorHeapSize, reserved)
	}
	if c.Renderer.RaysPerPixel < 1 {
		return fmt.Errorf("renderer.rays_per_pixel must be at least 1")
	}
	return nil
}
