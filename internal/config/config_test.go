package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test graphics defaults
	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if !cfg.Graphics.VSync {
		t.Error("expected vsync to be true by default")
	}
	if cfg.Graphics.Backend != BackendOpenGL {
		t.Errorf("expected backend opengl, got %s", cfg.Graphics.Backend)
	}

	// Test renderer defaults
	if cfg.Renderer.MaxConstantBuffers != 1000 {
		t.Errorf("expected 1000 constant buffers, got %d", cfg.Renderer.MaxConstantBuffers)
	}
	if cfg.Renderer.Mode != ModeHybrid {
		t.Errorf("expected hybrid mode, got %s", cfg.Renderer.Mode)
	}
	if cfg.Renderer.RaysPerPixel != 1 {
		t.Errorf("expected 1 ray per pixel, got %d", cfg.Renderer.RaysPerPixel)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false
  backend: soft

renderer:
  mode: raytrace
  max_constant_buffers: 500
  descriptor_heap_size: 2048
  rays_per_pixel: 4
  clear_color: [0, 0, 0, 1]

scene:
  path: scenes/showcase.toml
  watch: true

logging:
  level: "debug"
  log_file: "prism.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Graphics.Width != 1920 || cfg.Graphics.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if !cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Graphics.VSync {
		t.Error("expected vsync to be false")
	}
	if cfg.Graphics.Backend != BackendSoft {
		t.Errorf("expected soft backend, got %s", cfg.Graphics.Backend)
	}
	if cfg.Renderer.Mode != ModeRayTrace {
		t.Errorf("expected raytrace mode, got %s", cfg.Renderer.Mode)
	}
	if cfg.Renderer.MaxConstantBuffers != 500 {
		t.Errorf("expected 500 constant buffers, got %d", cfg.Renderer.MaxConstantBuffers)
	}
	if cfg.Renderer.RaysPerPixel != 4 {
		t.Errorf("expected 4 rays per pixel, got %d", cfg.Renderer.RaysPerPixel)
	}
	if cfg.Renderer.ClearColor != [4]float32{0, 0, 0, 1} {
		t.Errorf("expected black clear color, got %v", cfg.Renderer.ClearColor)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Renderer.MaxDepth != 10 {
		t.Errorf("expected default max depth 10, got %d", cfg.Renderer.MaxDepth)
	}
	if cfg.Scene.Path != "scenes/showcase.toml" || !cfg.Scene.Watch {
		t.Errorf("unexpected scene config %+v", cfg.Scene)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "prism.log" {
		t.Errorf("expected log file 'prism.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
graphics:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Renderer.Mode = "wireframe" }},
		{"unknown backend", func(c *Config) { c.Graphics.Backend = "vulkan" }},
		{"zero width", func(c *Config) { c.Graphics.Width = 0 }},
		{"no constant buffers", func(c *Config) { c.Renderer.MaxConstantBuffers = 0 }},
		{"heap too small", func(c *Config) { c.Renderer.DescriptorHeapSize = 1000 }},
		{"zero rays", func(c *Config) { c.Renderer.RaysPerPixel = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("graphics:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "prism.toml"), []byte("[graphics]\nwidth = 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}
	if path := findConfigFile(); filepath.Base(path) != "prism.toml" {
		t.Errorf("expected prism.toml to win over config.yaml, got %s", path)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Width != 2560 || cfg.Graphics.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name:  "novsync flag",
			setup: func() { *flagNoVSync = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.VSync {
					t.Error("expected vsync to be disabled")
				}
			},
			teardown: func() { *flagNoVSync = false },
		},
		{
			name:  "headless flag",
			setup: func() { *flagHeadless = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Backend != BackendSoft {
					t.Errorf("expected soft backend, got %s", cfg.Graphics.Backend)
				}
			},
			teardown: func() { *flagHeadless = false },
		},
		{
			name: "mode, scene and frames flags",
			setup: func() {
				*flagMode = ModeRaster
				*flagScene = "demo.yaml"
				*flagFrames = 3
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Renderer.Mode != ModeRaster {
					t.Errorf("expected raster mode, got %s", cfg.Renderer.Mode)
				}
				if cfg.Scene.Path != "demo.yaml" {
					t.Errorf("expected scene demo.yaml, got %s", cfg.Scene.Path)
				}
				if cfg.Capture.Frames != 3 {
					t.Errorf("expected 3 frames, got %d", cfg.Capture.Frames)
				}
			},
			teardown: func() {
				*flagMode = ""
				*flagScene = ""
				*flagFrames = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width comes from the flag, height from the file.
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("renderer:\n  mode: wireframe\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected Load to reject an unknown render mode")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Renderer.Mode = ModeRaster
	cfg.Scene.Path = "room.toml"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload saved config: %v", err)
	}
	if loaded.Renderer.Mode != ModeRaster || loaded.Scene.Path != "room.toml" {
		t.Errorf("saved values not restored: %+v", loaded)
	}
}

func TestLoadFromTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "prism.toml")
	content := `
[graphics]
width = 640
height = 360
backend = "soft"

[renderer]
mode = "raster"
clear_color = [0.0, 0.0, 0.0, 1.0]

[capture]
dir = "shots"
frames = 3
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load TOML config: %v", err)
	}
	if cfg.Graphics.Width != 640 || cfg.Graphics.Height != 360 {
		t.Errorf("expected 640x360, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if cfg.Graphics.Backend != BackendSoft || cfg.Renderer.Mode != ModeRaster {
		t.Errorf("unexpected backend/mode %s/%s", cfg.Graphics.Backend, cfg.Renderer.Mode)
	}
	if cfg.Capture.Dir != "shots" || cfg.Capture.Frames != 3 {
		t.Errorf("unexpected capture config %+v", cfg.Capture)
	}
	if !cfg.Graphics.VSync {
		t.Error("vsync absent from the file should keep its default")
	}
}

func TestLoadFromFileRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"typo.yaml": "graphics:\n  widht: 800\n",
		"typo.toml": "[graphics]\nwidht = 800\n",
		"conf.ini":  "width=800\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
		if err := loadFromFile(Default(), path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestLoadFromEmptyYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		t.Errorf("empty file should keep defaults, got %v", err)
	}
	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected default width, got %d", cfg.Graphics.Width)
	}
}

func TestSaveToTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prism.toml")

	cfg := Default()
	cfg.Renderer.RaysPerPixel = 8
	cfg.Renderer.ClearColor = [4]float32{0.25, 0.5, 0.75, 1}
	cfg.Scene.Watch = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("failed to reload saved config: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}

	if _, err := cfg.Marshal(".json"); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}
