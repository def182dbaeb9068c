// Package main is the entry point for the Prism scene viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/app"
	"github.com/Faultbox/prism/internal/config"
	"github.com/Faultbox/prism/internal/engine/window"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/opengl"
	"github.com/Faultbox/prism/internal/gpu/soft"
	"github.com/Faultbox/prism/internal/logger"
	"github.com/Faultbox/prism/internal/scene"
)

var (
	flagWriteScene  = flag.String("write-scene", "", "Write the built-in showcase scene to this file and exit")
	flagWriteConfig = flag.String("write-config", "", "Write the effective config (.yaml or .toml) to this file and exit")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *flagWriteScene != "" {
		if err := writeShowcase(*flagWriteScene); err != nil {
			logger.Error("failed to write scene", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("scene written", zap.String("path", *flagWriteScene))
		return
	}

	if *flagWriteConfig != "" {
		if err := cfg.SaveTo(*flagWriteConfig); err != nil {
			logger.Error("failed to write config", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("config written", zap.String("path", *flagWriteConfig))
		return
	}

	logger.Info("=== Prism ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		dev      gpu.Device
		platform app.Platform
	)
	switch cfg.Graphics.Backend {
	case config.BackendSoft:
		d, err := soft.New(cfg.Graphics.Width, cfg.Graphics.Height)
		if err != nil {
			return fmt.Errorf("create software device: %w", err)
		}
		dev = d

	default:
		win, err := window.New(window.Config{
			Title:      "Prism",
			Width:      cfg.Graphics.Width,
			Height:     cfg.Graphics.Height,
			Fullscreen: cfg.Graphics.Fullscreen,
			VSync:      cfg.Graphics.VSync,
		})
		if err != nil {
			return err
		}
		defer win.Close()

		d, err := opengl.New(win)
		if err != nil {
			return fmt.Errorf("create OpenGL device: %w", err)
		}
		dev, platform = d, win
	}
	defer dev.Close()

	a, err := app.New(cfg, dev, platform)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

func writeShowcase(path string) error {
	data, err := scene.Showcase().Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
