// Package core holds the CPU-side resource model shared by the gpu backends:
// buffers with virtual addresses, textures, descriptor heaps, recorded
// command lists and acceleration structures.
package core

import (
	"encoding/binary"
	"math"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/accel"
	"github.com/go-gl/mathgl/mgl32"
)

// Buffer is a linear allocation. Native holds the backend object name.
type Buffer struct {
	data   []byte
	addr   gpu.GPUVirtualAddress
	upload bool
	Native uint32
}

// Size implements gpu.Buffer.
func (b *Buffer) Size() int { return len(b.data) }

// GPUAddress implements gpu.Buffer.
func (b *Buffer) GPUAddress() gpu.GPUVirtualAddress { return b.addr }

// Mapped implements gpu.Buffer.
func (b *Buffer) Mapped() []byte {
	if !b.upload {
		return nil
	}
	return b.data
}

// Bytes returns the backing store regardless of heap type.
func (b *Buffer) Bytes() []byte { return b.data }

// Upload reports whether the buffer lives in the upload heap.
func (b *Buffer) Upload() bool { return b.upload }

// Texture is a 2D image with CPU-resident texels.
type Texture struct {
	width, height int
	format        gpu.Format
	uav           bool
	Pix           []byte
	Native        uint32
}

// Width implements gpu.Texture.
func (t *Texture) Width() int { return t.width }

// Height implements gpu.Texture.
func (t *Texture) Height() int { return t.height }

// Format implements gpu.Texture.
func (t *Texture) Format() gpu.Format { return t.format }

// UnorderedAccess reports whether dispatches may write the texture.
func (t *Texture) UnorderedAccess() bool { return t.uav }

// View returns read-only access to the texels.
func (t *Texture) View() gpu.TextureView {
	return gpu.TextureView{Width: t.width, Height: t.height, Format: t.format, Pix: t.Pix}
}

// SetPixel stores linear RGBA at (x, y) in the texture's format.
func (t *Texture) SetPixel(x, y int, c mgl32.Vec4) {
	i := (y*t.width + x) * t.format.BytesPerPixel()
	switch t.format {
	case gpu.FormatRGBA32F:
		for k := 0; k < 4; k++ {
			binary.LittleEndian.PutUint32(t.Pix[i+4*k:], math.Float32bits(c[k]))
		}
	default:
		for k := 0; k < 4; k++ {
			t.Pix[i+k] = unorm8(c[k])
		}
	}
}

// Pixel returns the texel at (x, y) as linear RGBA.
func (t *Texture) Pixel(x, y int) mgl32.Vec4 {
	return t.View().At(x, y)
}


func unorm8(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

// AccelerationStructure wraps a software BLAS or TLAS.
type AccelerationStructure struct {
	level gpu.ASLevel
	addr  gpu.GPUVirtualAddress
	BLAS  *accel.BLAS
	TLAS  *accel.TLAS
}

// Level implements gpu.AccelerationStructure.
func (a *AccelerationStructure) Level() gpu.ASLevel { return a.level }

// GPUAddress implements gpu.AccelerationStructure.
func (a *AccelerationStructure) GPUAddress() gpu.GPUVirtualAddress { return a.addr }

// Pipeline is a graphics pipeline description plus the backend program.
type Pipeline struct {
	desc   gpu.PipelineDesc
	Native uint32
}

// NewPipeline wraps a validated description.
func NewPipeline(desc gpu.PipelineDesc) *Pipeline {
	return &Pipeline{desc: desc}
}

// Name implements gpu.Pipeline.
func (p *Pipeline) Name() string { return p.desc.Name }

// Desc implements gpu.Pipeline.
func (p *Pipeline) Desc() gpu.PipelineDesc { return p.desc }
