// Package opengl implements gpu.Device on an OpenGL 4.1 core context.
//
// Resources keep a CPU mirror in a core.Store so descriptor heaps, ray
// dispatches and acceleration structures behave exactly as on the software
// device. Raster draws are replayed as GL calls: static buffers become
// vertex and index buffers, CBVs are streamed into uniform buffers and
// buffer SRVs into RGBA32F texture buffers.
package opengl

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/core"
	"github.com/Faultbox/prism/internal/logger"
)

// Surface is the window side of the swap chain. Its context must be current
// on the calling thread for every Device method.
type Surface interface {
	SwapBuffers()
	SetVSync(on bool)
	DrawableSize() (int, int)
}

// texBuffer streams a buffer SRV range into a texture buffer.
type texBuffer struct {
	buffer  uint32
	texture uint32
}

// Device is a gpu.Device backed by OpenGL.
type Device struct {
	*core.Store

	log     *zap.Logger
	surface Surface
	cl      *core.CommandList
	swap    *SwapChain
	states  map[gpu.Texture]gpu.ResourceState

	buffers    map[*core.Buffer]uint32
	textures   map[*core.Texture]uint32
	texBuffers map[*core.Buffer]*texBuffer
	uniforms   []uint32
	pipelines  []*Pipeline
	emptyVAO   uint32

	version string
}

// New loads the GL entry points and creates a device presenting to surface.
func New(surface Surface) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl.Init failed: %w", err)
	}

	d := &Device{
		Store:      core.NewStore(),
		log:        logger.Named("gpu.opengl"),
		surface:    surface,
		cl:         core.NewCommandList(),
		states:     make(map[gpu.Texture]gpu.ResourceState),
		buffers:    make(map[*core.Buffer]uint32),
		textures:   make(map[*core.Texture]uint32),
		texBuffers: make(map[*core.Buffer]*texBuffer),
		version:    gl.GoStr(gl.GetString(gl.VERSION)),
	}
	gl.GenVertexArrays(1, &d.emptyVAO)

	width, height := surface.DrawableSize()
	swap, err := newSwapChain(d, width, height, 2)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.swap = swap

	d.log.Info("device created",
		zap.String("version", d.version),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return d, nil
}

// Name implements gpu.Device.
func (d *Device) Name() string { return "opengl" }

// Version returns the GL version string of the context.
func (d *Device) Version() string { return d.version }

// CreateStaticBuffer implements gpu.Device. The data is uploaded once.
func (d *Device) CreateStaticBuffer(data []byte) (gpu.Buffer, error) {
	b, err := d.Store.NewStaticBuffer(data)
	if err != nil {
		return nil, err
	}
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.ARRAY_BUFFER, id)
	gl.BufferData(gl.ARRAY_BUFFER, len(data), glPtr(data), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	d.buffers[b] = id
	return b, nil
}

// CreateTexture implements gpu.Device. UAV textures stay on the CPU since
// ray dispatches write them there; they reach the screen through
// CopyToBackBuffer.
func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Texture, error) {
	t, err := d.Store.NewTexture(desc, pixels)
	if err != nil {
		return nil, err
	}
	if desc.UnorderedAccess {
		d.states[t] = gpu.StateUnorderedAccess
		return t, nil
	}
	d.states[t] = gpu.StateCommon
	d.textures[t] = uploadTexture(0, t)
	return t, nil
}

// uploadTexture writes t into the GL texture id, creating it when id is 0.
func uploadTexture(id uint32, t *core.Texture) uint32 {
	if id == 0 {
		gl.GenTextures(1, &id)
	}
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)

	internal, typ := int32(gl.RGBA8), uint32(gl.UNSIGNED_BYTE)
	if t.Format() == gpu.FormatRGBA32F {
		internal, typ = gl.RGBA32F, gl.FLOAT
	}
	pix := t.View().Pix
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(t.Width()), int32(t.Height()), 0, gl.RGBA, typ, glPtr(pix))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}

// CreatePipeline implements gpu.Device.
func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	p, err := newPipeline(desc)
	if err != nil {
		return nil, err
	}
	if n := len(desc.RootParameters); n > len(d.uniforms) {
		grow := make([]uint32, n-len(d.uniforms))
		gl.GenBuffers(int32(len(grow)), &grow[0])
		d.uniforms = append(d.uniforms, grow...)
	}
	d.pipelines = append(d.pipelines, p)
	d.log.Debug("pipeline created",
		zap.String("name", desc.Name),
		zap.Int("textureUnits", p.units),
	)
	return p, nil
}

// CreateFence implements gpu.Device.
func (d *Device) CreateFence() (gpu.Fence, error) {
	return &Fence{}, nil
}

// CommandList implements gpu.Device.
func (d *Device) CommandList() gpu.CommandList { return d.cl }

// SwapChain implements gpu.Device.
func (d *Device) SwapChain() gpu.SwapChain { return d.swap }

// Signal implements gpu.Device by inserting a sync object after the work
// submitted so far.
func (d *Device) Signal(f gpu.Fence, value uint64) error {
	gf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("%w: foreign fence %T", gpu.ErrUnsupported, f)
	}
	gf.signal(value)
	return nil
}

// State returns the tracked state of a texture.
func (d *Device) State(t gpu.Texture) gpu.ResourceState { return d.states[t] }

// Close implements gpu.Device.
func (d *Device) Close() {
	for _, id := range d.buffers {
		gl.DeleteBuffers(1, &id)
	}
	for _, id := range d.textures {
		gl.DeleteTextures(1, &id)
	}
	for _, tb := range d.texBuffers {
		gl.DeleteBuffers(1, &tb.buffer)
		gl.DeleteTextures(1, &tb.texture)
	}
	for _, p := range d.pipelines {
		p.destroy()
	}
	if len(d.uniforms) > 0 {
		gl.DeleteBuffers(int32(len(d.uniforms)), &d.uniforms[0])
	}
	if d.emptyVAO != 0 {
		gl.DeleteVertexArrays(1, &d.emptyVAO)
	}
	if d.swap != nil {
		d.swap.destroy()
	}
	d.log.Info("device closed")
}

func glPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return gl.Ptr(b)
}
