// Package material groups a pipeline with surface parameters and up to four
// texture views.
package material

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
)

// Texture slots in the order the pixel stage expects them (t0..t3).
const (
	SlotAlbedo = iota
	SlotNormal
	SlotRoughness
	SlotMetal

	SlotCount
)

// SRVCopier places a contiguous run of descriptors on the shader-visible
// heap. The descriptor ring implements it.
type SRVCopier interface {
	CopySRVRun(srcs []gpu.CPUDescriptorHandle) (gpu.GPUDescriptorHandle, error)
}

// Material is mutable until Finalize. After that every setter is ignored.
type Material struct {
	name      string
	pipeline  gpu.Pipeline
	colorTint mgl32.Vec3
	uvScale   mgl32.Vec2
	uvOffset  mgl32.Vec2
	roughness float32
	metal     float32

	textures  [SlotCount]gpu.CPUDescriptorHandle
	finalized bool
	srvs      gpu.GPUDescriptorHandle
}

// New creates a material with unit UV scale and no textures.
func New(name string, pipeline gpu.Pipeline, colorTint mgl32.Vec3, roughness, metal float32) *Material {
	return &Material{
		name:      name,
		pipeline:  pipeline,
		colorTint: colorTint,
		uvScale:   mgl32.Vec2{1, 1},
		roughness: clamp01(roughness),
		metal:     clamp01(metal),
	}
}

func clamp01(v float32) float32 {
	return max(0, min(v, 1))
}

func (m *Material) frozen(setter string) bool {
	if m.finalized {
		logger.Debug("ignored change to finalized material",
			zap.String("material", m.name), zap.String("setter", setter))
	}
	return m.finalized
}

// AddTexture assigns a staging SRV to a slot. Slots outside the canonical
// four are ignored.
func (m *Material) AddTexture(srv gpu.CPUDescriptorHandle, slot int) {
	if m.frozen("AddTexture") || slot < 0 || slot >= SlotCount {
		return
	}
	m.textures[slot] = srv
}

// SetColorTint sets the tint.
func (m *Material) SetColorTint(c mgl32.Vec3) {
	if !m.frozen("SetColorTint") {
		m.colorTint = c
	}
}

// SetUVScale sets the UV scale.
func (m *Material) SetUVScale(s mgl32.Vec2) {
	if !m.frozen("SetUVScale") {
		m.uvScale = s
	}
}

// SetUVOffset sets the UV offset.
func (m *Material) SetUVOffset(o mgl32.Vec2) {
	if !m.frozen("SetUVOffset") {
		m.uvOffset = o
	}
}

// SetRoughness sets roughness, clamped to [0, 1].
func (m *Material) SetRoughness(r float32) {
	if !m.frozen("SetRoughness") {
		m.roughness = clamp01(r)
	}
}

// SetMetal sets metalness, clamped to [0, 1].
func (m *Material) SetMetal(v float32) {
	if !m.frozen("SetMetal") {
		m.metal = clamp01(v)
	}
}

// SetPipeline replaces the pipeline.
func (m *Material) SetPipeline(p gpu.Pipeline) {
	if !m.frozen("SetPipeline") {
		m.pipeline = p
	}
}

// Finalize copies the four texture views into one contiguous run on the
// shader-visible heap. Slots without a texture take the matching fallback.
// Calling it again does nothing and keeps the first handle.
func (m *Material) Finalize(heap SRVCopier, fallback [SlotCount]gpu.CPUDescriptorHandle) (gpu.GPUDescriptorHandle, error) {
	if m.finalized {
		return m.srvs, nil
	}

	srcs := make([]gpu.CPUDescriptorHandle, SlotCount)
	for i, h := range m.textures {
		if h.IsNull() {
			h = fallback[i]
		}
		if h.IsNull() {
			return gpu.GPUDescriptorHandle{}, fmt.Errorf("material %q: texture slot %d has no view", m.name, i)
		}
		srcs[i] = h
	}

	srvs, err := heap.CopySRVRun(srcs)
	if err != nil {
		return gpu.GPUDescriptorHandle{}, fmt.Errorf("finalize material %q: %w", m.name, err)
	}
	m.srvs = srvs
	m.finalized = true
	return srvs, nil
}

// Name returns the material name.
func (m *Material) Name() string { return m.name }

// Pipeline returns the pipeline draws with this material use.
func (m *Material) Pipeline() gpu.Pipeline { return m.pipeline }

// ColorTint returns the tint.
func (m *Material) ColorTint() mgl32.Vec3 { return m.colorTint }

// UVScale returns the UV scale.
func (m *Material) UVScale() mgl32.Vec2 { return m.uvScale }

// UVOffset returns the UV offset.
func (m *Material) UVOffset() mgl32.Vec2 { return m.uvOffset }

// Roughness returns the roughness.
func (m *Material) Roughness() float32 { return m.roughness }

// Metal returns the metalness.
func (m *Material) Metal() float32 { return m.metal }

// Finalized reports whether Finalize succeeded.
func (m *Material) Finalized() bool { return m.finalized }

// SRVs returns the GPU handle of the first of the four texture views. It is
// null before Finalize.
func (m *Material) SRVs() gpu.GPUDescriptorHandle { return m.srvs }
