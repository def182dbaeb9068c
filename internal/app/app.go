// Package app runs the viewer: it owns the renderer and the scene, polls
// input, applies scene reloads between frames and captures screenshots.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/config"
	"github.com/Faultbox/prism/internal/engine/capture"
	"github.com/Faultbox/prism/internal/engine/input"
	"github.com/Faultbox/prism/internal/engine/renderer"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
	"github.com/Faultbox/prism/internal/scene"
)

// Keys handled by the loop. Everything else goes to the camera.
const (
	KeyRaster     = '1'
	KeyRayTrace   = '2'
	KeyHybrid     = '3'
	KeyScreenshot = 'P'
)

// headlessStep is the fixed time step of runs without a platform.
const headlessStep = float32(1) / 60

// Platform is the window side of the loop. Headless runs have none.
type Platform interface {
	Poll(s *input.State)
	DrawableSize() (int, int)
	SetTitle(title string)
}

// App is one viewer session.
type App struct {
	cfg      *config.Config
	dev      gpu.Device
	platform Platform
	renderer *renderer.Renderer
	scene    *scene.Scene
	input    *input.State
	watcher  *scene.Watcher
	shots    *capture.Screenshots
	log      *zap.Logger

	frames   int
	lastShot string
}

// RendererConfig maps the configuration file onto renderer settings.
func RendererConfig(cfg *config.Config) (renderer.Config, error) {
	mode, err := renderer.ParseMode(cfg.Renderer.Mode)
	if err != nil {
		return renderer.Config{}, err
	}
	rc := renderer.DefaultConfig()
	rc.Mode = mode
	rc.VSync = cfg.Graphics.VSync
	rc.MaxConstantBuffers = cfg.Renderer.MaxConstantBuffers
	rc.DescriptorHeapSize = cfg.Renderer.DescriptorHeapSize
	rc.MaxHitGroups = cfg.Renderer.MaxHitGroups
	rc.RaysPerPixel = cfg.Renderer.RaysPerPixel
	rc.MaxDepth = cfg.Renderer.MaxDepth
	rc.ClearColor = cfg.Renderer.ClearColor
	return rc, nil
}

// New creates the renderer on dev and loads the configured scene. platform
// may be nil for headless runs.
func New(cfg *config.Config, dev gpu.Device, platform Platform) (*App, error) {
	rc, err := RendererConfig(cfg)
	if err != nil {
		return nil, err
	}
	width, height := cfg.Graphics.Width, cfg.Graphics.Height
	if platform != nil {
		width, height = platform.DrawableSize()
	}
	r, err := renderer.New(dev, rc, width, height)
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	a := &App{
		cfg:      cfg,
		dev:      dev,
		platform: platform,
		renderer: r,
		input:    input.New(),
		shots:    capture.New(cfg.Capture.Dir, "prism"),
		log:      logger.Named("app"),
	}

	var desc *scene.Description
	if cfg.Scene.Path == "" {
		desc = scene.ShowcaseDescription()
	} else if desc, err = scene.Load(cfg.Scene.Path); err != nil {
		return nil, err
	}
	if a.scene, err = desc.Instantiate(r); err != nil {
		return nil, fmt.Errorf("instantiate scene: %w", err)
	}

	if cfg.Scene.Watch && cfg.Scene.Path != "" {
		if a.watcher, err = scene.Watch(cfg.Scene.Path, scene.DefaultDebounce); err != nil {
			return nil, err
		}
	}
	a.log.Info("viewer ready",
		zap.String("scene", a.scene.Name),
		zap.String("device", dev.Name()),
		zap.Bool("headless", platform == nil))
	return a, nil
}

// Renderer returns the session's renderer.
func (a *App) Renderer() *renderer.Renderer { return a.renderer }

// Scene returns the scene currently drawn.
func (a *App) Scene() *scene.Scene { return a.scene }

// Input returns the input state fed by the platform.
func (a *App) Input() *input.State { return a.input }

// Frames returns the number of frames stepped.
func (a *App) Frames() int { return a.frames }

// LastScreenshot returns the path of the most recent capture.
func (a *App) LastScreenshot() string { return a.lastShot }

// Run steps frames until quit, ctx is done or the configured frame count is
// reached. The last frame of a frame-limited run is captured.
func (a *App) Run(ctx context.Context) error {
	last := time.Now()
	fpsTimer, fpsFrames := last, 0
	limit := a.cfg.Capture.Frames

	a.log.Info("starting render loop", zap.Int("frameLimit", limit))
	for {
		if err := ctx.Err(); err != nil {
			a.log.Info("render loop cancelled")
			return nil
		}

		dt := headlessStep
		if a.platform != nil {
			now := time.Now()
			dt = float32(now.Sub(last).Seconds())
			last = now
		}
		if err := a.Step(dt); err != nil {
			return err
		}
		if a.input.Quit() {
			a.log.Info("quit requested")
			return nil
		}
		if limit > 0 && a.frames >= limit {
			if a.cfg.Capture.Dir != "" {
				if err := a.screenshot(); err != nil {
					return err
				}
			}
			return nil
		}

		fpsFrames++
		if a.platform != nil && time.Since(fpsTimer) >= time.Second {
			a.platform.SetTitle(fmt.Sprintf("prism - %s - %d fps", a.renderer.Mode(), fpsFrames))
			a.log.Debug("fps", zap.Int("count", fpsFrames), zap.Float32("dtMs", dt*1000))
			fpsFrames = 0
			fpsTimer = time.Now()
		}
	}
}

// Step runs one frame: input, resize, pending reload, update and render.
func (a *App) Step(dt float32) error {
	a.input.BeginFrame()
	if a.platform != nil {
		a.platform.Poll(a.input)
	}
	if _, _, ok := a.input.Resized(); ok && a.platform != nil {
		if err := a.resize(a.platform.DrawableSize()); err != nil {
			return err
		}
	}
	a.handleKeys()
	if err := a.reloadIfChanged(); err != nil {
		return err
	}

	a.scene.Camera.Update(dt, a.input)
	a.scene.Update(dt)
	if err := a.renderer.Render(a.scene.Frame()); err != nil {
		return fmt.Errorf("render frame %d: %w", a.frames, err)
	}
	a.frames++
	return nil
}

func (a *App) handleKeys() {
	switch {
	case a.input.Pressed(KeyRaster):
		a.renderer.SetMode(renderer.ModeRaster)
	case a.input.Pressed(KeyRayTrace):
		a.renderer.SetMode(renderer.ModeRayTrace)
	case a.input.Pressed(KeyHybrid):
		a.renderer.SetMode(renderer.ModeHybrid)
	}
	if a.input.Pressed(KeyScreenshot) {
		if err := a.screenshot(); err != nil {
			a.log.Warn("screenshot failed", zap.Error(err))
		}
	}
}

func (a *App) screenshot() error {
	path, err := a.shots.SavePresented(a.dev.SwapChain(), a.renderer.Frames())
	if err != nil {
		return err
	}
	a.lastShot = path
	a.log.Info("screenshot saved", zap.String("path", path))
	return nil
}

// resize follows the drawable size and keeps the camera aspect in step.
func (a *App) resize(width, height int) error {
	if err := a.renderer.Resize(width, height); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	w, h := a.renderer.Size()
	a.scene.Camera.UpdateProjectionMatrix(float32(w) / float32(max(h, 1)))
	return nil
}

// Resize is the headless counterpart of a window resize event.
func (a *App) Resize(width, height int) error { return a.resize(width, height) }

// reloadIfChanged applies at most one pending reload. A file that fails to
// load keeps the current scene running.
func (a *App) reloadIfChanged() error {
	if a.watcher == nil {
		return nil
	}
	select {
	case path := <-a.watcher.Events():
		return a.Reload(path)
	default:
		return nil
	}
}

// Reload replaces the scene with the file at path and keeps the current
// camera. Load errors are logged and leave the scene untouched; errors
// while instantiating are returned because the previous scene's views are
// already released by then.
func (a *App) Reload(path string) error {
	desc, err := scene.Load(path)
	if err != nil {
		a.log.Warn("scene reload failed, keeping current scene", zap.Error(err))
		return nil
	}
	if err := a.renderer.WaitForGPU(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	next, err := desc.Instantiate(a.renderer)
	if err != nil {
		return fmt.Errorf("reload %s: %w", path, err)
	}
	next.Camera = a.scene.Camera
	a.scene = next
	a.log.Info("scene reloaded", zap.String("path", path))
	return nil
}

// Close stops the watcher and waits for outstanding GPU work.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.log.Warn("closing scene watcher", zap.Error(err))
		}
	}
	if err := a.renderer.WaitForGPU(); err != nil {
		a.log.Warn("waiting for GPU on close", zap.Error(err))
	}
}
