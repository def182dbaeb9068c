package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagNoVSync    = flag.Bool("novsync", false, "Disable vsync and allow tearing")
	flagHeadless   = flag.Bool("headless", false, "Render with the software device, no window")
	flagMode       = flag.String("mode", "", "Render mode: raster, raytrace or hybrid")
	flagScene      = flag.String("scene", "", "Scene description file (.yaml or .toml)")
	flagWatch      = flag.Bool("watch", false, "Reload the scene file when it changes")
	flagFrames     = flag.Int("frames", 0, "Stop after rendering this many frames")
	flagCapture    = flag.String("capture", "", "Directory for screenshots and the final frame")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagNoVSync {
		cfg.Graphics.VSync = false
	}
	if *flagHeadless {
		cfg.Graphics.Backend = BackendSoft
	}
	if *flagMode != "" {
		cfg.Renderer.Mode = *flagMode
	}
	if *flagScene != "" {
		cfg.Scene.Path = *flagScene
	}
	if *flagWatch {
		cfg.Scene.Watch = true
	}
	if *flagFrames > 0 {
		cfg.Capture.Frames = *flagFrames
	}
	if *flagCapture != "" {
		cfg.Capture.Dir = *flagCapture
	}
}
