package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/accel"
	pmath "github.com/Faultbox/prism/pkg/math"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Virtual addresses start above zero so the zero address stays invalid.
	addressBase = 1 << 16
	// Each resource gets its own 64 KiB aligned range.
	addressAlign = 1 << 16
)

type region struct {
	base   gpu.GPUVirtualAddress
	buffer *Buffer
}

// Store owns every resource of a device and resolves addresses and
// descriptor handles back to them. Backends embed it and add native objects.
type Store struct {
	nextAddr   uint64
	regions    []region
	heaps      []*Heap
	structures map[gpu.GPUVirtualAddress]*AccelerationStructure
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		nextAddr:   addressBase,
		structures: make(map[gpu.GPUVirtualAddress]*AccelerationStructure),
	}
}

func (s *Store) allocAddress(size int) gpu.GPUVirtualAddress {
	addr := gpu.GPUVirtualAddress(s.nextAddr)
	if size < 1 {
		size = 1
	}
	s.nextAddr += uint64(pmath.AlignUp(size, addressAlign))
	return addr
}

func (s *Store) newBuffer(size int, upload bool) *Buffer {
	b := &Buffer{data: make([]byte, size), upload: upload}
	b.addr = s.allocAddress(size)
	// Addresses only grow, so appending keeps regions sorted.
	s.regions = append(s.regions, region{base: b.addr, buffer: b})
	return b
}

// DescriptorIncrement implements gpu.Device.
func (s *Store) DescriptorIncrement() uint32 { return DescriptorIncrement }

// CreateUploadBuffer implements gpu.Device.
func (s *Store) CreateUploadBuffer(size int) (gpu.Buffer, error) {
	return s.NewUploadBuffer(size)
}

// NewUploadBuffer is CreateUploadBuffer returning the concrete type.
func (s *Store) NewUploadBuffer(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("upload buffer size %d must be positive", size)
	}
	return s.newBuffer(size, true), nil
}

// CreateStaticBuffer implements gpu.Device.
func (s *Store) CreateStaticBuffer(data []byte) (gpu.Buffer, error) {
	return s.NewStaticBuffer(data)
}

// NewStaticBuffer is CreateStaticBuffer returning the concrete type.
func (s *Store) NewStaticBuffer(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("static buffer needs initial data")
	}
	b := s.newBuffer(len(data), false)
	copy(b.data, data)
	return b, nil
}

// CreateTexture implements gpu.Device.
func (s *Store) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Texture, error) {
	return s.NewTexture(desc, pixels)
}

// NewTexture is CreateTexture returning the concrete type.
func (s *Store) NewTexture(desc gpu.TextureDesc, pixels []byte) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("texture size %dx%d must be positive", desc.Width, desc.Height)
	}
	size := desc.Width * desc.Height * desc.Format.BytesPerPixel()
	if pixels != nil && len(pixels) != size {
		return nil, fmt.Errorf("texture data is %d bytes, want %d", len(pixels), size)
	}
	t := &Texture{
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		uav:    desc.UnorderedAccess,
		Pix:    make([]byte, size),
	}
	copy(t.Pix, pixels)
	return t, nil
}

// CreateDescriptorHeap implements gpu.Device.
func (s *Store) CreateDescriptorHeap(count int, shaderVisible bool) (gpu.DescriptorHeap, error) {
	if count <= 0 {
		return nil, fmt.Errorf("descriptor heap size %d must be positive", count)
	}
	h := &Heap{
		records: make([]Descriptor, count),
		visible: shaderVisible,
		base:    uint64(len(s.heaps)+1) << 32,
	}
	s.heaps = append(s.heaps, h)
	return h, nil
}

// CreateAccelerationStructure implements gpu.Device.
func (s *Store) CreateAccelerationStructure(level gpu.ASLevel) (gpu.AccelerationStructure, error) {
	as := &AccelerationStructure{level: level, addr: s.allocAddress(1)}
	s.structures[as.addr] = as
	return as, nil
}

// ResolveAddress maps a virtual address to its buffer and byte offset.
func (s *Store) ResolveAddress(addr gpu.GPUVirtualAddress) (*Buffer, int, error) {
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].base > addr }) - 1
	if i < 0 {
		return nil, 0, fmt.Errorf("%w: %#x", gpu.ErrInvalidAddress, addr)
	}
	r := s.regions[i]
	off := int(addr - r.base)
	if off >= len(r.buffer.data) {
		return nil, 0, fmt.Errorf("%w: %#x", gpu.ErrInvalidAddress, addr)
	}
	return r.buffer, off, nil
}

// Structure returns the acceleration structure at addr.
func (s *Store) Structure(addr gpu.GPUVirtualAddress) (*AccelerationStructure, error) {
	as, ok := s.structures[addr]
	if !ok {
		return nil, fmt.Errorf("%w: no acceleration structure at %#x", gpu.ErrInvalidAddress, addr)
	}
	return as, nil
}

func (s *Store) heapFor(ptr uint64) (*Heap, int, error) {
	id := int(ptr>>32) - 1
	if id < 0 || id >= len(s.heaps) {
		return nil, 0, fmt.Errorf("%w: %#x", gpu.ErrInvalidHandle, ptr)
	}
	h := s.heaps[id]
	idx, ok := h.indexOf(ptr)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %#x", gpu.ErrInvalidHandle, ptr)
	}
	return h, idx, nil
}

// ResolveCPU maps a CPU handle to its heap and slot.
func (s *Store) ResolveCPU(h gpu.CPUDescriptorHandle) (*Heap, int, error) {
	return s.heapFor(h.Ptr)
}

// ResolveGPU maps a GPU handle to its heap and slot.
func (s *Store) ResolveGPU(h gpu.GPUDescriptorHandle) (*Heap, int, error) {
	heap, idx, err := s.heapFor(h.Ptr)
	if err != nil {
		return nil, 0, err
	}
	if !heap.visible {
		return nil, 0, fmt.Errorf("%w: heap is not shader visible", gpu.ErrInvalidHandle)
	}
	return heap, idx, nil
}

func (s *Store) write(dst gpu.CPUDescriptorHandle, d Descriptor) error {
	heap, idx, err := s.ResolveCPU(dst)
	if err != nil {
		return err
	}
	heap.records[idx] = d
	return nil
}

// CreateConstantBufferView implements gpu.Device.
func (s *Store) CreateConstantBufferView(desc gpu.ConstantBufferViewDesc, dst gpu.CPUDescriptorHandle) error {
	if desc.SizeInBytes <= 0 || desc.SizeInBytes%gpu.ConstantBufferAlignment != 0 ||
		uint64(desc.BufferLocation)%gpu.ConstantBufferAlignment != 0 {
		return fmt.Errorf("%w: %#x+%d", gpu.ErrMisalignedConstant, desc.BufferLocation, desc.SizeInBytes)
	}
	buf, off, err := s.ResolveAddress(desc.BufferLocation)
	if err != nil {
		return err
	}
	if off+desc.SizeInBytes > len(buf.data) {
		return fmt.Errorf("%w: view of %d bytes at offset %d overruns %d byte buffer",
			gpu.ErrInvalidAddress, desc.SizeInBytes, off, len(buf.data))
	}
	return s.write(dst, Descriptor{Kind: DescriptorCBV, Buffer: buf, Offset: off, Size: desc.SizeInBytes})
}

// CreateTextureSRV implements gpu.Device.
func (s *Store) CreateTextureSRV(t gpu.Texture, dst gpu.CPUDescriptorHandle) error {
	tex, ok := t.(*Texture)
	if !ok {
		return fmt.Errorf("%w: foreign texture %T", gpu.ErrUnsupported, t)
	}
	return s.write(dst, Descriptor{Kind: DescriptorTextureSRV, Texture: tex})
}

// CreateTextureUAV implements gpu.Device.
func (s *Store) CreateTextureUAV(t gpu.Texture, dst gpu.CPUDescriptorHandle) error {
	tex, ok := t.(*Texture)
	if !ok {
		return fmt.Errorf("%w: foreign texture %T", gpu.ErrUnsupported, t)
	}
	if !tex.uav {
		return fmt.Errorf("%w: texture was not created for unordered access", gpu.ErrUnsupported)
	}
	return s.write(dst, Descriptor{Kind: DescriptorTextureUAV, Texture: tex})
}

// CreateBufferSRV implements gpu.Device.
func (s *Store) CreateBufferSRV(desc gpu.BufferSRVDesc, dst gpu.CPUDescriptorHandle) error {
	buf, ok := desc.Buffer.(*Buffer)
	if !ok {
		return fmt.Errorf("%w: foreign buffer %T", gpu.ErrUnsupported, desc.Buffer)
	}
	if desc.StructureByteStride <= 0 {
		return fmt.Errorf("buffer SRV stride %d must be positive", desc.StructureByteStride)
	}
	off := desc.FirstElement * desc.StructureByteStride
	size := desc.NumElements * desc.StructureByteStride
	if off < 0 || size < 0 || off+size > len(buf.data) {
		return fmt.Errorf("%w: SRV of %d elements overruns %d byte buffer",
			gpu.ErrInvalidAddress, desc.NumElements, len(buf.data))
	}
	return s.write(dst, Descriptor{
		Kind:   DescriptorBufferSRV,
		Buffer: buf,
		Offset: off,
		Size:   size,
		Stride: desc.StructureByteStride,
	})
}

// CopyDescriptorsSimple implements gpu.Device.
func (s *Store) CopyDescriptorsSimple(count int, dst, src gpu.CPUDescriptorHandle) error {
	dstHeap, dstIdx, err := s.ResolveCPU(dst)
	if err != nil {
		return err
	}
	srcHeap, srcIdx, err := s.ResolveCPU(src)
	if err != nil {
		return err
	}
	if dstIdx+count > len(dstHeap.records) || srcIdx+count > len(srcHeap.records) {
		return fmt.Errorf("%w: copy of %d descriptors overruns heap", gpu.ErrOutOfDescriptors, count)
	}
	copy(dstHeap.records[dstIdx:dstIdx+count], srcHeap.records[srcIdx:srcIdx+count])
	return nil
}

// BuildBottomLevel builds a BLAS from triangle geometry. Multiple geometry
// descriptions are merged into one structure.
func (s *Store) BuildBottomLevel(dst gpu.AccelerationStructure, geometry []gpu.TriangleGeometry) error {
	as, err := s.Structure(dst.GPUAddress())
	if err != nil {
		return err
	}

	var positions []mgl32.Vec3
	var indices []uint32
	for _, g := range geometry {
		vb, ok := g.VertexBuffer.(*Buffer)
		if !ok {
			return fmt.Errorf("%w: foreign vertex buffer %T", gpu.ErrUnsupported, g.VertexBuffer)
		}
		ib, ok := g.IndexBuffer.(*Buffer)
		if !ok {
			return fmt.Errorf("%w: foreign index buffer %T", gpu.ErrUnsupported, g.IndexBuffer)
		}
		if g.VertexCount*g.VertexStride > len(vb.data) || g.IndexCount*4 > len(ib.data) {
			return fmt.Errorf("%w: geometry exceeds its buffers", gpu.ErrInvalidAddress)
		}

		base := uint32(len(positions))
		for v := 0; v < g.VertexCount; v++ {
			positions = append(positions, ReadVec3(vb.data[v*g.VertexStride:]))
		}
		for i := 0; i < g.IndexCount; i++ {
			indices = append(indices, base+binary.LittleEndian.Uint32(ib.data[i*4:]))
		}
	}

	blas, err := accel.BuildBLAS(positions, indices)
	if err != nil {
		return err
	}
	as.BLAS = blas
	return nil
}

// BuildTopLevel rebuilds a TLAS from instance records.
func (s *Store) BuildTopLevel(dst gpu.AccelerationStructure, instances []gpu.InstanceDesc) error {
	as, err := s.Structure(dst.GPUAddress())
	if err != nil {
		return err
	}

	list := make([]accel.Instance, len(instances))
	for i, inst := range instances {
		blas, err := s.Structure(inst.AccelerationStructure)
		if err != nil {
			return fmt.Errorf("instance %d: %w", i, err)
		}
		if blas.level != gpu.BottomLevel || blas.BLAS == nil {
			return fmt.Errorf("instance %d: %w: not a built bottom-level structure", i, gpu.ErrInvalidAddress)
		}
		list[i] = accel.Instance{
			Transform:  MatrixFromRows(inst.Transform),
			InstanceID: inst.InstanceID,
			Mask:       inst.InstanceMask,
			HitGroup:   inst.HitGroupIndex,
			BLAS:       blas.BLAS,
		}
	}
	as.TLAS = accel.BuildTLAS(list)
	return nil
}

// MatrixFromRows expands a 3x4 row-major affine matrix.
func MatrixFromRows(rows [3][4]float32) mgl32.Mat4 {
	m := mgl32.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, rows[r][c])
		}
	}
	return m
}

// ReadVec3 decodes three little-endian float32 values.
func ReadVec3(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}
