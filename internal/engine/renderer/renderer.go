// Package renderer records one frame at a time against a gpu.Device: lit
// entities, particle emitters and an optional ray-traced pass, then presents
// and waits for the GPU before the next frame starts.
package renderer

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/engine/camera"
	"github.com/Faultbox/prism/internal/engine/entity"
	"github.com/Faultbox/prism/internal/engine/lighting"
	"github.com/Faultbox/prism/internal/engine/material"
	"github.com/Faultbox/prism/internal/engine/mesh"
	"github.com/Faultbox/prism/internal/engine/particles"
	"github.com/Faultbox/prism/internal/engine/raytracing"
	"github.com/Faultbox/prism/internal/engine/renderer/shaders"
	"github.com/Faultbox/prism/internal/engine/ring"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
)

// Mode selects which passes a frame records.
type Mode int

const (
	// ModeRaster draws entities and particles only.
	ModeRaster Mode = iota
	// ModeRayTrace replaces the frame with the ray-traced image.
	ModeRayTrace
	// ModeHybrid rasterizes, then the ray-traced pass overwrites the back buffer.
	ModeHybrid
)

func (m Mode) String() string {
	switch m {
	case ModeRayTrace:
		return "raytrace"
	case ModeHybrid:
		return "hybrid"
	default:
		return "raster"
	}
}

// ParseMode parses raster, raytrace or hybrid.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "raster":
		return ModeRaster, nil
	case "raytrace", "rt":
		return ModeRayTrace, nil
	case "hybrid":
		return ModeHybrid, nil
	}
	return ModeRaster, fmt.Errorf("unknown render mode %q", s)
}

// Config holds renderer configuration.
type Config struct {
	Mode  Mode
	VSync bool

	MaxConstantBuffers int
	DescriptorHeapSize int
	MaxHitGroups       int
	StagingSize        int

	RaysPerPixel int
	MaxDepth     int
	ClearColor   [4]float32
}

// DefaultConfig returns the sizes the viewer runs with.
func DefaultConfig() Config {
	return Config{
		Mode:               ModeHybrid,
		VSync:              true,
		MaxConstantBuffers: 1000,
		DescriptorHeapSize: 4096,
		MaxHitGroups:       64,
		StagingSize:        1024,
		RaysPerPixel:       1,
		MaxDepth:           10,
		ClearColor:         [4]float32{0.4, 0.6, 0.75, 1},
	}
}

// Frame is everything one Render call draws.
type Frame struct {
	Camera   *camera.Camera
	Entities []*entity.Entity
	Emitters []*particles.Emitter
	// Time is the scene clock in seconds, used by particle shaders.
	Time float32
}

// Renderer owns the per-frame allocators and the frame fence.
type Renderer struct {
	config Config
	dev    gpu.Device
	cl     gpu.CommandList
	swap   gpu.SwapChain

	fence      gpu.Fence
	fenceValue uint64

	staging *ring.StagingHeap
	heap    *ring.DescriptorHeapRing
	cbs     *ring.ConstantBufferRing
	rt      *raytracing.Scene

	opaque    gpu.Pipeline
	particles gpu.Pipeline
	fallback  [material.SlotCount]gpu.CPUDescriptorHandle
	lights    *lighting.Buffer

	sceneBase     int
	width, height int
	frames        uint64
	log           *zap.Logger
}

// New creates the pipelines, allocators and fallback textures on dev. The
// back buffers are width x height.
func New(dev gpu.Device, cfg Config, width, height int) (*Renderer, error) {
	def := DefaultConfig()
	if cfg.MaxConstantBuffers <= 0 {
		cfg.MaxConstantBuffers = def.MaxConstantBuffers
	}
	if cfg.DescriptorHeapSize <= 0 {
		cfg.DescriptorHeapSize = def.DescriptorHeapSize
	}
	if cfg.MaxHitGroups <= 0 {
		cfg.MaxHitGroups = def.MaxHitGroups
	}
	if cfg.StagingSize <= 0 {
		cfg.StagingSize = def.StagingSize
	}

	r := &Renderer{
		config: cfg,
		dev:    dev,
		cl:     dev.CommandList(),
		swap:   dev.SwapChain(),
		lights: lighting.NewBuffer(),
		width:  width,
		height: height,
		log:    logger.Named("renderer"),
	}

	var err error
	if r.fence, err = dev.CreateFence(); err != nil {
		return nil, fmt.Errorf("create frame fence: %w", err)
	}
	if r.staging, err = ring.NewStagingHeap(dev, cfg.StagingSize); err != nil {
		return nil, err
	}
	r.heap, err = ring.NewDescriptorHeapRing(dev, cfg.DescriptorHeapSize, cfg.MaxConstantBuffers,
		raytracing.FixedSlots(cfg.MaxHitGroups))
	if err != nil {
		return nil, err
	}
	if r.cbs, err = ring.NewConstantBufferRing(dev, r.heap, cfg.MaxConstantBuffers); err != nil {
		return nil, err
	}
	r.rt, err = raytracing.NewScene(dev, r.heap, r.cbs, cfg.MaxHitGroups, raytracing.Options{
		RaysPerPixel: cfg.RaysPerPixel,
		MaxDepth:     cfg.MaxDepth,
	})
	if err != nil {
		return nil, err
	}
	if err := r.rt.Resize(width, height); err != nil {
		return nil, err
	}

	r.opaque, err = dev.CreatePipeline(gpu.PipelineDesc{
		Name:           "opaque",
		Kind:           gpu.PipelineOpaque,
		VertexShader:   shaders.OpaqueVertexShader,
		PixelShader:    shaders.OpaqueFragmentShader,
		VertexStride:   mesh.VertexStride,
		InputLayout:    mesh.InputLayout,
		RootParameters: entity.RootLayout,
	})
	if err != nil {
		return nil, fmt.Errorf("create opaque pipeline: %w", err)
	}
	r.particles, err = dev.CreatePipeline(gpu.PipelineDesc{
		Name:           "particles",
		Kind:           gpu.PipelineParticles,
		VertexShader:   shaders.ParticleVertexShader,
		PixelShader:    shaders.ParticleFragmentShader,
		RootParameters: particles.RootLayout,
	})
	if err != nil {
		return nil, fmt.Errorf("create particle pipeline: %w", err)
	}

	if err := r.createFallbackTextures(); err != nil {
		return nil, err
	}
	r.sceneBase = r.staging.Used()

	r.log.Info("renderer initialized",
		zap.String("device", dev.Name()),
		zap.Stringer("mode", cfg.Mode),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("constantBuffers", cfg.MaxConstantBuffers),
		zap.Int("descriptors", cfg.DescriptorHeapSize),
	)
	return r, nil
}

// Texels used for material slots without a texture.
var fallbackTexels = [material.SlotCount][4]byte{
	material.SlotAlbedo:    {255, 255, 255, 255},
	material.SlotNormal:    {128, 128, 255, 255},
	material.SlotRoughness: {255, 255, 255, 255},
	material.SlotMetal:     {0, 0, 0, 255},
}

func (r *Renderer) createFallbackTextures() error {
	for slot, texel := range fallbackTexels {
		tex, err := r.dev.CreateTexture(gpu.TextureDesc{Width: 1, Height: 1}, texel[:])
		if err != nil {
			return fmt.Errorf("create fallback texture %d: %w", slot, err)
		}
		h, err := r.staging.Allocate(1)
		if err != nil {
			return err
		}
		if err := r.dev.CreateTextureSRV(tex, h); err != nil {
			return fmt.Errorf("create fallback view %d: %w", slot, err)
		}
		r.fallback[slot] = h
	}
	return nil
}

// Device returns the device the renderer records against.
func (r *Renderer) Device() gpu.Device { return r.dev }

// Staging returns the CPU-only heap that mesh, texture and emitter views are
// created in.
func (r *Renderer) Staging() *ring.StagingHeap { return r.staging }

// OpaquePipeline returns the pipeline for lit meshes.
func (r *Renderer) OpaquePipeline() gpu.Pipeline { return r.opaque }

// ParticlePipeline returns the pipeline for particle emitters.
func (r *Renderer) ParticlePipeline() gpu.Pipeline { return r.particles }

// Fallback returns the views bound for material slots without a texture.
func (r *Renderer) Fallback() [material.SlotCount]gpu.CPUDescriptorHandle { return r.fallback }

// Lights returns the light list uploaded with every draw.
func (r *Renderer) Lights() *lighting.Buffer { return r.lights }

// RayTracing returns the ray-tracing scene.
func (r *Renderer) RayTracing() *raytracing.Scene { return r.rt }

// Mode returns the current render mode.
func (r *Renderer) Mode() Mode { return r.config.Mode }

// SetMode switches the passes recorded from the next frame on.
func (r *Renderer) SetMode(m Mode) {
	if m != r.config.Mode {
		r.log.Info("render mode changed", zap.Stringer("mode", m))
	}
	r.config.Mode = m
}

// FenceValue returns the last signalled frame fence value.
func (r *Renderer) FenceValue() uint64 { return r.fenceValue }

// Frames returns the number of presented frames.
func (r *Renderer) Frames() uint64 { return r.frames }

// BeginScene releases the staging views of the previous scene. Call it
// after WaitForGPU and before creating the next scene's meshes, textures
// and emitters.
func (r *Renderer) BeginScene() {
	r.staging.Rewind(r.sceneBase)
}

// Seal finalizes the materials of a scene and makes their texture runs
// persistent. Descriptors and ray-tracing hit groups of a previously sealed
// scene are released, so call it after WaitForGPU with every material the
// next frames use.
func (r *Renderer) Seal(materials []*material.Material) error {
	r.heap.ClearPersistent()
	r.rt.Reset()
	for _, m := range materials {
		if _, err := m.Finalize(r.heap, r.fallback); err != nil {
			return err
		}
	}
	r.heap.MarkFrameBase()
	r.log.Debug("materials sealed", zap.Int("count", len(materials)))
	return nil
}

// Resize waits for the GPU, then resizes the back buffers and the ray-traced
// output.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if err := r.WaitForGPU(); err != nil {
		return err
	}
	if err := r.swap.Resize(width, height); err != nil {
		return fmt.Errorf("resize swap chain: %w", err)
	}
	if err := r.rt.Resize(width, height); err != nil {
		return err
	}
	r.width, r.height = width, height
	r.log.Debug("resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// Size returns the back-buffer size.
func (r *Renderer) Size() (width, height int) { return r.width, r.height }

// WaitForGPU signals the next fence value and blocks until the GPU reaches it.
func (r *Renderer) WaitForGPU() error {
	r.fenceValue++
	if err := r.dev.Signal(r.fence, r.fenceValue); err != nil {
		return fmt.Errorf("signal frame fence: %w", err)
	}
	if err := r.fence.Wait(r.fenceValue); err != nil {
		return fmt.Errorf("wait for frame fence: %w", err)
	}
	return nil
}

// Render records, submits and presents one frame, then waits for it to
// finish. Errors from Present or the fence mean the device is gone.
func (r *Renderer) Render(f Frame) error {
	if f.Camera == nil {
		return fmt.Errorf("render without camera")
	}

	r.cl.Reset()
	r.cbs.Reset()
	r.heap.ResetFrame()

	bb := r.swap.BackBuffer(r.swap.CurrentIndex())
	r.cl.Transition(bb, gpu.StatePresent, gpu.StateRenderTarget)
	r.cl.SetDescriptorHeap(r.heap.Heap())
	r.cl.SetViewport(gpu.Viewport{
		Width:    float32(r.width),
		Height:   float32(r.height),
		MaxDepth: 1,
	})
	r.cl.ClearRenderTarget(r.config.ClearColor)
	r.cl.ClearDepth(1)

	view, projection := f.Camera.View(), f.Camera.Projection()

	if r.config.Mode != ModeRayTrace {
		if err := r.drawEntities(f, view, projection); err != nil {
			return err
		}
		for _, e := range f.Emitters {
			if err := e.Draw(r.cl, r.cbs, r.heap, view, projection, f.Time); err != nil {
				return err
			}
		}
	}

	if r.config.Mode != ModeRaster {
		if err := r.rt.BuildTLAS(r.cl, f.Entities); err != nil {
			return err
		}
		err := r.rt.Dispatch(r.cl, f.Camera.InverseViewProjection(), f.Camera.Position(), bb, gpu.StateRenderTarget)
		if err != nil {
			return err
		}
	}

	r.cl.Transition(bb, gpu.StateRenderTarget, gpu.StatePresent)
	r.cl.Close()
	if err := r.dev.Submit(r.cl); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}

	sync, tearing := 1, false
	if !r.config.VSync {
		sync, tearing = 0, true
	}
	if err := r.swap.Present(sync, tearing); err != nil {
		return fmt.Errorf("%w: present: %v", gpu.ErrDeviceLost, err)
	}
	r.frames++
	return r.WaitForGPU()
}

func (r *Renderer) drawEntities(f Frame, view, projection mgl32.Mat4) error {
	cameraPos := f.Camera.Position()
	for _, e := range f.Entities {
		if !e.Material.Finalized() {
			return fmt.Errorf("entity %q: material %q is not sealed", e.Name, e.Material.Name())
		}
		vs, err := r.cbs.FillAndGetGPUHandle(encodeVS(e, view, projection))
		if err != nil {
			return fmt.Errorf("entity %q vertex constants: %w", e.Name, err)
		}
		ps, err := r.cbs.FillAndGetGPUHandle(encodePS(e, cameraPos, r.lights))
		if err != nil {
			return fmt.Errorf("entity %q pixel constants: %w", e.Name, err)
		}
		e.Draw(r.cl, vs, ps)
	}
	return nil
}
