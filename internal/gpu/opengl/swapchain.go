package opengl

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/engine/capture"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/core"
)

// SwapChain presents the default framebuffer of the surface. Back buffers
// are CPU textures that track state and receive ray-traced copies, which
// are blitted onto the framebuffer.
type SwapChain struct {
	dev     *Device
	buffers []*core.Texture
	index   int
	width   int
	height  int

	// blit source for CopyToBackBuffer
	texture uint32
	fbo     uint32
	vsync   int
}

func newSwapChain(d *Device, width, height, count int) (*SwapChain, error) {
	s := &SwapChain{dev: d, vsync: -1}
	gl.GenFramebuffers(1, &s.fbo)
	if err := s.allocate(width, height, count); err != nil {
		s.destroy()
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
	s.width, s.height = width, height
	return nil
}

func (s *SwapChain) current() *core.Texture { return s.buffers[s.index] }

// blit uploads a back buffer and copies it onto the default framebuffer.
// Back-buffer rows run top to bottom, so the copy flips vertically.
func (s *SwapChain) blit(bb *core.Texture) {
	s.texture = uploadTexture(s.texture, bb)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, s.fbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, s.texture, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)

	w, h := int32(bb.Width()), int32(bb.Height())
	gl.BlitFramebuffer(0, 0, w, h, 0, h, w, 0, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// BufferCount implements gpu.SwapChain.
func (s *SwapChain) BufferCount() int { return len(s.buffers) }

// CurrentIndex implements gpu.SwapChain.
func (s *SwapChain) CurrentIndex() int { return s.index }

// BackBuffer implements gpu.SwapChain.
func (s *SwapChain) BackBuffer(i int) gpu.Texture { return s.buffers[i] }

// Present implements gpu.SwapChain. A sync interval of 0 disables vsync;
// tearing is then up to the driver.
func (s *SwapChain) Present(syncInterval int, allowTearing bool) error {
	bb := s.current()
	if st := s.dev.states[bb]; st != gpu.StatePresent {
		return fmt.Errorf("present of back buffer %d in state %d", s.index, st)
	}
	if syncInterval != s.vsync {
		s.dev.surface.SetVSync(syncInterval > 0)
		s.vsync = syncInterval
		s.dev.log.Debug("swap interval changed",
			zap.Int("interval", syncInterval),
			zap.Bool("allowTearing", allowTearing),
		)
	}
	s.dev.surface.SwapBuffers()
	s.index = (s.index + 1) % len(s.buffers)
	return nil
}

// Resize implements gpu.SwapChain.
func (s *SwapChain) Resize(width, height int) error {
	return s.allocate(width, height, len(s.buffers))
}

// PresentedImage implements gpu.FrameReader by reading the front buffer.
func (s *SwapChain) PresentedImage() (*image.RGBA, error) {
	pixels := make([]byte, s.width*s.height*4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.ReadBuffer(gl.FRONT)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(s.width), int32(s.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.ReadBuffer(gl.BACK)
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("read pixels: GL error 0x%x", code)
	}
	return capture.FlipRows(pixels, s.width, s.height)
}

func (s *SwapChain) destroy() {
	if s.texture != 0 {
		gl.DeleteTextures(1, &s.texture)
		s.texture = 0
	}
	if s.fbo != 0 {
		gl.DeleteFramebuffers(1, &s.fbo)
		s.fbo = 0
	}
}
