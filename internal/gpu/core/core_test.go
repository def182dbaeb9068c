package core

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/prism/internal/gpu"
)

func TestResolveAddress(t *testing.T) {
	s := NewStore()
	a, err := s.NewUploadBuffer(100)
	require.NoError(t, err)
	b, err := s.NewUploadBuffer(300)
	require.NoError(t, err)

	assert.NotZero(t, a.GPUAddress())
	assert.Zero(t, uint64(b.GPUAddress())%addressAlign)

	buf, off, err := s.ResolveAddress(b.GPUAddress() + 10)
	require.NoError(t, err)
	assert.Same(t, b, buf)
	assert.Equal(t, 10, off)

	// Past the end of a but before b.
	_, _, err = s.ResolveAddress(a.GPUAddress() + 200)
	assert.ErrorIs(t, err, gpu.ErrInvalidAddress)

	_, _, err = s.ResolveAddress(1)
	assert.ErrorIs(t, err, gpu.ErrInvalidAddress)
}

func TestStaticBufferIsNotMapped(t *testing.T) {
	s := NewStore()
	b, err := s.NewStaticBuffer([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Nil(t, b.Mapped())
	assert.Equal(t, []byte{1, 2, 3}, b.Bytes())

	_, err = s.NewStaticBuffer(nil)
	assert.Error(t, err)
}

func TestConstantBufferViewAlignment(t *testing.T) {
	s := NewStore()
	buf, err := s.NewUploadBuffer(1024)
	require.NoError(t, err)
	h, err := s.CreateDescriptorHeap(4, true)
	require.NoError(t, err)
	dst := h.CPUStart()

	tests := []struct {
		name    string
		offset  int
		size    int
		wantErr error
	}{
		{"aligned", 256, 256, nil},
		{"multi slot", 0, 768, nil},
		{"misaligned address", 16, 256, gpu.ErrMisalignedConstant},
		{"misaligned size", 0, 100, gpu.ErrMisalignedConstant},
		{"overrun", 768, 512, gpu.ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CreateConstantBufferView(gpu.ConstantBufferViewDesc{
				BufferLocation: buf.GPUAddress() + gpu.GPUVirtualAddress(tt.offset),
				SizeInBytes:    tt.size,
			}, dst)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			d := h.(*Heap).At(0)
			assert.Equal(t, DescriptorCBV, d.Kind)
			assert.Len(t, d.Bytes(), tt.size)
		})
	}
}

func TestDescriptorHandles(t *testing.T) {
	s := NewStore()
	visible, err := s.CreateDescriptorHeap(8, true)
	require.NoError(t, err)
	staging, err := s.CreateDescriptorHeap(8, false)
	require.NoError(t, err)

	heap, idx, err := s.ResolveCPU(visible.CPUStart().Offset(3, DescriptorIncrement))
	require.NoError(t, err)
	assert.Same(t, visible, heap)
	assert.Equal(t, 3, idx)

	heap, idx, err = s.ResolveGPU(visible.GPUStart().Offset(7, DescriptorIncrement))
	require.NoError(t, err)
	assert.Same(t, visible, heap)
	assert.Equal(t, 7, idx)

	assert.True(t, staging.GPUStart().IsNull())
	_, _, err = s.ResolveGPU(gpu.GPUDescriptorHandle{Ptr: staging.CPUStart().Ptr})
	assert.ErrorIs(t, err, gpu.ErrInvalidHandle)

	_, _, err = s.ResolveCPU(gpu.CPUDescriptorHandle{Ptr: visible.CPUStart().Ptr + 1})
	assert.ErrorIs(t, err, gpu.ErrInvalidHandle)

	_, _, err = s.ResolveCPU(visible.CPUStart().Offset(8, DescriptorIncrement))
	assert.ErrorIs(t, err, gpu.ErrInvalidHandle)
}

func TestCopyDescriptorsSimple(t *testing.T) {
	s := NewStore()
	staging, _ := s.CreateDescriptorHeap(4, false)
	visible, _ := s.CreateDescriptorHeap(4, true)
	tex, err := s.NewTexture(gpu.TextureDesc{Width: 2, Height: 2}, nil)
	require.NoError(t, err)

	require.NoError(t, s.CreateTextureSRV(tex, staging.CPUStart().Offset(1, DescriptorIncrement)))
	require.NoError(t, s.CopyDescriptorsSimple(2, visible.CPUStart().Offset(2, DescriptorIncrement), staging.CPUStart()))

	v := visible.(*Heap)
	assert.Equal(t, DescriptorEmpty, v.At(2).Kind)
	assert.Equal(t, DescriptorTextureSRV, v.At(3).Kind)
	assert.Same(t, tex, v.At(3).Texture)

	err = s.CopyDescriptorsSimple(3, visible.CPUStart().Offset(2, DescriptorIncrement), staging.CPUStart())
	assert.ErrorIs(t, err, gpu.ErrOutOfDescriptors)
}

func TestTextureUAVRequiresFlag(t *testing.T) {
	s := NewStore()
	h, _ := s.CreateDescriptorHeap(1, true)
	tex, err := s.NewTexture(gpu.TextureDesc{Width: 1, Height: 1}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateTextureUAV(tex, h.CPUStart()), gpu.ErrUnsupported)
}

type coordKernel struct{}

func (coordKernel) Shade(ctx gpu.RayContext, x, y int) mgl32.Vec4 {
	return mgl32.Vec4{float32(x), float32(y), float32(len(ctx.Constants(0))), 1}
}

func TestDispatchWritesEveryPixel(t *testing.T) {
	s := NewStore()
	heap, _ := s.CreateDescriptorHeap(2, true)
	out, err := s.NewTexture(gpu.TextureDesc{Width: 5, Height: 3, Format: gpu.FormatRGBA32F, UnorderedAccess: true}, nil)
	require.NoError(t, err)
	cb, err := s.NewUploadBuffer(512)
	require.NoError(t, err)

	require.NoError(t, s.CreateTextureUAV(out, heap.CPUStart()))
	require.NoError(t, s.CreateConstantBufferView(gpu.ConstantBufferViewDesc{
		BufferLocation: cb.GPUAddress(),
		SizeInBytes:    512,
	}, heap.CPUStart().Offset(1, DescriptorIncrement)))

	got, err := s.Dispatch(heap.(*Heap), gpu.DispatchRaysDesc{
		Kernel:    coordKernel{},
		Width:     5,
		Height:    3,
		Output:    heap.GPUStart(),
		Constants: []gpu.GPUDescriptorHandle{heap.GPUStart().Offset(1, DescriptorIncrement)},
	})
	require.NoError(t, err)
	assert.Same(t, out, got)

	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			assert.Equal(t, mgl32.Vec4{float32(x), float32(y), 512, 1}, out.Pixel(x, y))
		}
	}
}

func TestDispatchRejectsNonUAVOutput(t *testing.T) {
	s := NewStore()
	heap, _ := s.CreateDescriptorHeap(1, true)
	cb, _ := s.NewUploadBuffer(256)
	require.NoError(t, s.CreateConstantBufferView(gpu.ConstantBufferViewDesc{
		BufferLocation: cb.GPUAddress(), SizeInBytes: 256,
	}, heap.CPUStart()))

	_, err := s.Dispatch(heap.(*Heap), gpu.DispatchRaysDesc{Kernel: coordKernel{}, Width: 1, Height: 1, Output: heap.GPUStart()})
	assert.Error(t, err)
}

func TestAccelerationStructureBuild(t *testing.T) {
	s := NewStore()
	vertices := make([]byte, 0, 4*12)
	for _, p := range []mgl32.Vec3{{-1, -1, 0}, {-1, 1, 0}, {1, 1, 0}, {1, -1, 0}} {
		vertices = appendVec3(vertices, p)
	}
	indices := []byte{0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	vb, _ := s.NewStaticBuffer(vertices)
	ib, _ := s.NewStaticBuffer(indices)

	blas, _ := s.CreateAccelerationStructure(gpu.BottomLevel)
	require.NoError(t, s.BuildBottomLevel(blas, []gpu.TriangleGeometry{{
		VertexBuffer: vb, VertexStride: 12, VertexCount: 4,
		IndexBuffer: ib, IndexCount: 6, Opaque: true,
	}}))

	tlas, _ := s.CreateAccelerationStructure(gpu.TopLevel)
	require.NoError(t, s.BuildTopLevel(tlas, []gpu.InstanceDesc{{
		Transform:             [3][4]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 5}},
		InstanceID:            9,
		InstanceMask:          0xFF,
		AccelerationStructure: blas.GPUAddress(),
	}}))

	as, err := s.Structure(tlas.GPUAddress())
	require.NoError(t, err)
	hit, ok := as.TLAS.Intersect(mgl32.Vec3{0.1, -0.2, 0}, mgl32.Vec3{0, 0, 1}, 0, 100, 0xFF)
	require.True(t, ok)
	assert.InDelta(t, 5, hit.T, 1e-5)
	assert.Equal(t, uint32(9), hit.InstanceID)

	// A top-level structure is not a valid instance target.
	err = s.BuildTopLevel(tlas, []gpu.InstanceDesc{{AccelerationStructure: tlas.GPUAddress()}})
	assert.ErrorIs(t, err, gpu.ErrInvalidAddress)
}

func TestGammaByte(t *testing.T) {
	assert.Equal(t, float32(0), GammaByte(-1))
	assert.Equal(t, float32(128)/255, GammaByte(0.25))
	assert.Equal(t, float32(1), GammaByte(4))
}

func TestClosedCommandListPanics(t *testing.T) {
	cl := NewCommandList()
	cl.ClearDepth(1)
	cl.Close()
	assert.Len(t, cl.Commands(), 1)
	assert.Panics(t, func() { cl.ClearDepth(1) })

	cl.Reset()
	assert.False(t, cl.Closed())
	assert.Empty(t, cl.Commands())
}

func appendVec3(b []byte, v mgl32.Vec3) []byte {
	for _, f := range v {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}
