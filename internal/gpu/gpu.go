// Package gpu defines the device abstraction the renderer records against:
// upload heaps, descriptor heaps with CPU and GPU handles, command lists,
// fences, swap chains and acceleration structures.
//
// Backends live in subpackages. soft executes everything on the CPU and is
// used headless and in tests; opengl drives a windowed OpenGL 4.1 context.
package gpu

import (
	"encoding/binary"
	"errors"
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Constant-buffer views must start on and span multiples of this size.
const ConstantBufferAlignment = 256

// Sentinel errors returned by devices.
var (
	ErrDeviceLost         = errors.New("gpu: device lost")
	ErrOutOfDescriptors   = errors.New("gpu: descriptor heap exhausted")
	ErrUnsupported        = errors.New("gpu: operation not supported by device")
	ErrCommandListOpen    = errors.New("gpu: command list submitted before Close")
	ErrInvalidHandle      = errors.New("gpu: descriptor handle does not belong to a heap")
	ErrInvalidAddress     = errors.New("gpu: virtual address does not belong to a resource")
	ErrMisalignedConstant = errors.New("gpu: constant buffer view is not 256-byte aligned")
)

// GPUVirtualAddress locates bytes inside a buffer or acceleration structure.
type GPUVirtualAddress uint64

// CPUDescriptorHandle addresses a descriptor for writing from the CPU.
type CPUDescriptorHandle struct {
	Ptr uint64
}

// Offset returns the handle n descriptors further along.
func (h CPUDescriptorHandle) Offset(n int, increment uint32) CPUDescriptorHandle {
	return CPUDescriptorHandle{Ptr: uint64(int64(h.Ptr) + int64(n)*int64(increment))}
}

// IsNull reports whether the handle is unset.
func (h CPUDescriptorHandle) IsNull() bool {
	return h.Ptr == 0
}

// GPUDescriptorHandle addresses a descriptor in a shader-visible heap.
type GPUDescriptorHandle struct {
	Ptr uint64
}

// Offset returns the handle n descriptors further along.
func (h GPUDescriptorHandle) Offset(n int, increment uint32) GPUDescriptorHandle {
	return GPUDescriptorHandle{Ptr: uint64(int64(h.Ptr) + int64(n)*int64(increment))}
}

// IsNull reports whether the handle is unset.
func (h GPUDescriptorHandle) IsNull() bool {
	return h.Ptr == 0
}

// Format is a texel format.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA32F
)

// BytesPerPixel returns the texel size.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRGBA32F:
		return 16
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatRGBA32F:
		return "RGBA32F"
	default:
		return "RGBA8"
	}
}

// ResourceState is the usage a resource is transitioned into.
type ResourceState int

const (
	StateCommon ResourceState = iota
	StateRenderTarget
	StatePresent
	StateUnorderedAccess
	StateShaderResource
	StateCopySource
	StateCopyDest
)

// Buffer is a linear GPU allocation.
type Buffer interface {
	Size() int
	GPUAddress() GPUVirtualAddress
	// Mapped returns the persistent CPU mapping of an upload buffer and nil
	// for device-local buffers.
	Mapped() []byte
}

// Texture is a 2D image.
type Texture interface {
	Width() int
	Height() int
	Format() Format
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Width, Height int
	Format        Format
	// UnorderedAccess allows the texture to be written by ray dispatches.
	UnorderedAccess bool
}

// DescriptorHeap is a contiguous array of descriptors.
type DescriptorHeap interface {
	Len() int
	ShaderVisible() bool
	CPUStart() CPUDescriptorHandle
	// GPUStart returns the null handle for heaps that are not shader visible.
	GPUStart() GPUDescriptorHandle
}

// ConstantBufferViewDesc describes a CBV over an upload buffer range.
type ConstantBufferViewDesc struct {
	BufferLocation GPUVirtualAddress
	SizeInBytes    int
}

// BufferSRVDesc describes a structured-buffer SRV.
type BufferSRVDesc struct {
	Buffer              Buffer
	FirstElement        int
	NumElements         int
	StructureByteStride int
}

// TriangleGeometry describes indexed triangles for a bottom-level build.
// Positions are three float32 at the start of each vertex.
type TriangleGeometry struct {
	VertexBuffer Buffer
	VertexStride int
	VertexCount  int
	IndexBuffer  Buffer
	IndexCount   int
	Opaque       bool
}

// BuildFlags tune an acceleration-structure build.
type BuildFlags int

const (
	BuildPreferFastTrace BuildFlags = 1 << iota
	BuildPreferFastBuild
	BuildAllowUpdate
)

// InstanceDesc is one top-level instance record.
type InstanceDesc struct {
	Transform             [3][4]float32 // object to world, row major
	InstanceID            uint32
	InstanceMask          uint8
	HitGroupIndex         uint32
	AccelerationStructure GPUVirtualAddress
}

// ASLevel distinguishes bottom- and top-level structures.
type ASLevel int

const (
	BottomLevel ASLevel = iota
	TopLevel
)

// AccelerationStructure is a built BLAS or TLAS.
type AccelerationStructure interface {
	Level() ASLevel
	GPUAddress() GPUVirtualAddress
}

// Viewport is the raster target rectangle.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// PipelineKind selects the fixed-function state of a pipeline.
type PipelineKind int

const (
	// PipelineOpaque draws depth-tested, non-blended triangles.
	PipelineOpaque PipelineKind = iota
	// PipelineParticles draws alpha-blended quads without depth writes.
	PipelineParticles
)

// PipelineDesc describes a graphics pipeline and its root layout. Shader
// sources are backend-specific and ignored by devices that do not compile
// shaders.
type PipelineDesc struct {
	Name           string
	Kind           PipelineKind
	VertexShader   string
	PixelShader    string
	VertexStride   int
	InputLayout    []InputElement
	RootParameters []RootParameter
}

// InputElement binds float32 vertex components at a byte offset to a vertex
// shader input location.
type InputElement struct {
	Location   int
	Components int
	Offset     int
}

// RootParameterType is the kind of binding a root parameter holds.
type RootParameterType int

const (
	RootCBVTable RootParameterType = iota
	RootSRVTable
)

// RootParameter is one descriptor table slot of a root layout.
type RootParameter struct {
	Type RootParameterType
	// Count is the number of descriptors in the table.
	Count int
}

// Pipeline is a compiled graphics pipeline.
type Pipeline interface {
	Name() string
	Desc() PipelineDesc
}

// RayKernel computes the color of one pixel of a ray dispatch. It stands
// where a ray-generation shader would run.
type RayKernel interface {
	Shade(ctx RayContext, x, y int) mgl32.Vec4
}

// Ray is a world-space ray.
type Ray struct {
	Origin, Direction mgl32.Vec3
}

// RayHit is the closest hit reported by TraceRay.
type RayHit struct {
	T             float32
	InstanceID    uint32
	HitGroupIndex uint32
	Primitive     uint32
	Barycentrics  mgl32.Vec2
	ObjectToWorld mgl32.Mat4
	WorldToObject mgl32.Mat4
}

// TextureView is read-only access to texel data.
type TextureView struct {
	Width, Height int
	Format        Format
	Pix           []byte
}

// At returns the texel at (x, y) as linear RGBA.
func (v TextureView) At(x, y int) mgl32.Vec4 {
	i := (y*v.Width + x) * v.Format.BytesPerPixel()
	var c mgl32.Vec4
	switch v.Format {
	case FormatRGBA32F:
		for k := 0; k < 4; k++ {
			c[k] = math.Float32frombits(binary.LittleEndian.Uint32(v.Pix[i+4*k:]))
		}
	default:
		for k := 0; k < 4; k++ {
			c[k] = float32(v.Pix[i+k]) / 255
		}
	}
	return c
}

// RayContext is what a kernel can read during a dispatch.
type RayContext interface {
	DispatchSize() (width, height int)
	// Constants returns the bytes of the i-th constant buffer of the dispatch.
	Constants(i int) []byte
	// BufferAt returns the structured buffer SRV at an absolute index of the
	// bound heap.
	BufferAt(index int) (data []byte, stride int, ok bool)
	// TextureAt returns the texture SRV at an absolute index of the bound heap.
	TextureAt(index int) (TextureView, bool)
	TraceRay(ray Ray, tmin, tmax float32, mask uint8) (RayHit, bool)
}

// DispatchRaysDesc describes a ray dispatch over a width x height grid.
type DispatchRaysDesc struct {
	Kernel        RayKernel
	Width, Height int
	Scene         AccelerationStructure
	// Output is a texture UAV in the bound heap.
	Output GPUDescriptorHandle
	// Constants are CBVs in the bound heap, exposed as RayContext.Constants.
	Constants []GPUDescriptorHandle
}

// CommandList records GPU work. Recording is single threaded.
type CommandList interface {
	Reset()
	Close()
	SetPipeline(p Pipeline)
	SetDescriptorHeap(h DescriptorHeap)
	SetRootDescriptorTable(param int, base GPUDescriptorHandle)
	SetViewport(v Viewport)
	ClearRenderTarget(color [4]float32)
	ClearDepth(depth float32)
	SetVertexBuffer(b Buffer, stride int)
	SetIndexBuffer(b Buffer)
	DrawIndexed(indexCount, startIndex, baseVertex int)
	BuildBottomLevel(dst AccelerationStructure, geometry []TriangleGeometry, flags BuildFlags)
	BuildTopLevel(dst AccelerationStructure, instances []InstanceDesc, flags BuildFlags)
	DispatchRays(desc DispatchRaysDesc)
	UAVBarrier(t Texture)
	Transition(t Texture, before, after ResourceState)
	// CopyToBackBuffer copies src into the current back buffer, tonemapping
	// float formats.
	CopyToBackBuffer(src Texture)
}

// Fence orders CPU waits against submitted GPU work.
type Fence interface {
	CompletedValue() uint64
	// Wait blocks until the fence reaches value.
	Wait(value uint64) error
}

// SwapChain owns the presentable back buffers.
type SwapChain interface {
	BufferCount() int
	CurrentIndex() int
	BackBuffer(i int) Texture
	Present(syncInterval int, allowTearing bool) error
	Resize(width, height int) error
}

// FrameReader is implemented by swap chains that can read back the most
// recently presented frame. Rows are top to bottom.
type FrameReader interface {
	PresentedImage() (*image.RGBA, error)
}

// Device creates resources and executes command lists.
type Device interface {
	Name() string
	DescriptorIncrement() uint32

	CreateUploadBuffer(size int) (Buffer, error)
	CreateStaticBuffer(data []byte) (Buffer, error)
	CreateTexture(desc TextureDesc, pixels []byte) (Texture, error)
	CreateDescriptorHeap(count int, shaderVisible bool) (DescriptorHeap, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateAccelerationStructure(level ASLevel) (AccelerationStructure, error)
	CreateFence() (Fence, error)

	CreateConstantBufferView(desc ConstantBufferViewDesc, dst CPUDescriptorHandle) error
	CreateTextureSRV(t Texture, dst CPUDescriptorHandle) error
	CreateBufferSRV(desc BufferSRVDesc, dst CPUDescriptorHandle) error
	CreateTextureUAV(t Texture, dst CPUDescriptorHandle) error
	CopyDescriptorsSimple(count int, dst, src CPUDescriptorHandle) error

	CommandList() CommandList
	Submit(cl CommandList) error
	Signal(f Fence, value uint64) error
	SwapChain() SwapChain

	Close()
}
