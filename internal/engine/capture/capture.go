// Package capture writes presented frames to PNG files.
package capture

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/Faultbox/prism/internal/gpu"
)

// Screenshots names and writes capture files. Names combine a prefix, a
// timestamp and the frame number so bursts within one second stay distinct.
type Screenshots struct {
	dir    string
	prefix string
	now    func() time.Time
}

// New creates a writer for dir. An empty dir means the working directory.
func New(dir, prefix string) *Screenshots {
	if prefix == "" {
		prefix = "frame"
	}
	return &Screenshots{dir: dir, prefix: prefix, now: time.Now}
}

// Filename returns the path a capture of frame would be written to.
func (s *Screenshots) Filename(frame uint64) string {
	name := fmt.Sprintf("%s_%s_%06d.png", s.prefix, s.now().Format("2006-01-02_15-04-05"), frame)
	return filepath.Join(s.dir, name)
}

// Save writes img as frame and returns the path.
func (s *Screenshots) Save(img image.Image, frame uint64) (string, error) {
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	path := s.Filename(frame)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return path, nil
}

// SavePresented reads the last presented frame from swap and saves it.
func (s *Screenshots) SavePresented(swap gpu.SwapChain, frame uint64) (string, error) {
	fr, ok := swap.(gpu.FrameReader)
	if !ok {
		return "", fmt.Errorf("capture: %w", gpu.ErrUnsupported)
	}
	img, err := fr.PresentedImage()
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	return s.Save(img, frame)
}

// FlipRows builds an image from bottom-up RGBA rows as read back from
// OpenGL.
func FlipRows(pixels []byte, width, height int) (*image.RGBA, error) {
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return img, nil
}
