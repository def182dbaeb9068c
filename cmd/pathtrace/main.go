// Package main renders a sphere scene with the CPU path tracer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/logger"
	"github.com/Faultbox/prism/internal/pathtracer"
)

var (
	flagScene   = flag.String("scene", "", "Sphere scene file (.yaml or .toml); empty renders the showcase")
	flagOut     = flag.String("o", "image.ppm", "Output image (.ppm, .png, .bmp, .tif); - writes PPM to stdout")
	flagWidth   = flag.Int("width", 0, "Override the image width")
	flagSamples = flag.Int("samples", 0, "Override samples per pixel")
	flagDepth   = flag.Int("depth", 0, "Override the maximum bounce depth")
	flagSeed    = flag.Int64("seed", -1, "Override the random seed")
	flagWorkers = flag.Int("workers", 0, "Rows rendered concurrently, 0 uses every CPU")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	level := "info"
	if *flagDebug {
		level = "debug"
	}
	// stdout is reserved for streamed images.
	if err := logger.Setup(logger.Options{Level: level, Console: os.Stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error("path trace failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	world, cam, err := load(*flagScene)
	if err != nil {
		return err
	}
	if *flagWidth > 0 {
		cam.ImageWidth = *flagWidth
	}
	if *flagSamples > 0 {
		cam.SamplesPerPixel = *flagSamples
	}
	if *flagDepth > 0 {
		cam.MaxDepth = *flagDepth
	}
	if *flagSeed >= 0 {
		cam.Seed = *flagSeed
	}
	cam.Workers = *flagWorkers

	img, err := cam.Render(ctx, world)
	if err != nil {
		return err
	}

	if *flagOut == "-" {
		w := bufio.NewWriter(os.Stdout)
		if err := img.WritePPM(w); err != nil {
			return err
		}
		return w.Flush()
	}
	if err := img.Save(*flagOut); err != nil {
		return err
	}
	logger.Info("image written", zap.String("path", *flagOut))
	return nil
}

func load(path string) (*pathtracer.HittableList, *pathtracer.Camera, error) {
	if path == "" {
		world, cam := pathtracer.Showcase()
		return world, cam, nil
	}
	sf, err := pathtracer.LoadSceneFile(path)
	if err != nil {
		return nil, nil, err
	}
	return sf.Build()
}
