package soft

import (
	"fmt"
	"image"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/core"
)

// SwapChain rotates CPU back buffers. Present keeps a copy of the presented
// image so headless runs can capture it.
type SwapChain struct {
	dev       *Device
	buffers   []*core.Texture
	index     int
	presented *image.RGBA
}

func newSwapChain(d *Device, width, height, count int) (*SwapChain, error) {
	s := &SwapChain{dev: d}
	if err := s.allocate(width, height, count); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SwapChain) allocate(width, height, count int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("swap chain size %dx%d must be positive", width, height)
	}
	for _, b := range s.buffers {
		delete(s.dev.states, b)
	}
	s.buffers = s.buffers[:0]
	for i := 0; i < count; i++ {
		t, err := s.dev.Store.NewTexture(gpu.TextureDesc{Width: width, Height: height, Format: gpu.FormatRGBA8}, nil)
		if err != nil {
			return err
		}
		s.dev.states[t] = gpu.StatePresent
		s.buffers = append(s.buffers, t)
	}
	s.index = 0
	return nil
}

func (s *SwapChain) current() *core.Texture { return s.buffers[s.index] }

// BufferCount implements gpu.SwapChain.
func (s *SwapChain) BufferCount() int { return len(s.buffers) }

// CurrentIndex implements gpu.SwapChain.
func (s *SwapChain) CurrentIndex() int { return s.index }

// BackBuffer implements gpu.SwapChain.
func (s *SwapChain) BackBuffer(i int) gpu.Texture { return s.buffers[i] }

// Present implements gpu.SwapChain. The current buffer must be in the
// present state.
func (s *SwapChain) Present(syncInterval int, allowTearing bool) error {
	bb := s.current()
	if st := s.dev.states[bb]; st != gpu.StatePresent {
		return fmt.Errorf("present of back buffer %d in state %d", s.index, st)
	}
	img := image.NewRGBA(image.Rect(0, 0, bb.Width(), bb.Height()))
	copy(img.Pix, bb.Pix)
	s.presented = img

	s.index = (s.index + 1) % len(s.buffers)
	s.dev.stats.Presents++
	return nil
}

// Resize implements gpu.SwapChain.
func (s *SwapChain) Resize(width, height int) error {
	return s.allocate(width, height, len(s.buffers))
}

// Presented returns the most recently presented frame, or nil before the
// first present.
func (s *SwapChain) Presented() *image.RGBA { return s.presented }

// PresentedImage implements gpu.FrameReader.
func (s *SwapChain) PresentedImage() (*image.RGBA, error) {
	if s.presented == nil {
		return nil, fmt.Errorf("nothing presented yet")
	}
	return s.presented, nil
}
