package core

import "github.com/Faultbox/prism/internal/gpu"

// DescriptorIncrement is the handle distance between adjacent descriptors.
const DescriptorIncrement = 32

// DescriptorKind tags what a descriptor views.
type DescriptorKind int

const (
	DescriptorEmpty DescriptorKind = iota
	DescriptorCBV
	DescriptorTextureSRV
	DescriptorBufferSRV
	DescriptorTextureUAV
)

// Descriptor is one heap entry.
type Descriptor struct {
	Kind    DescriptorKind
	Buffer  *Buffer
	Offset  int // byte offset into Buffer
	Size    int // byte size of the view
	Stride  int // element stride of buffer SRVs
	Texture *Texture
}

// Bytes returns the viewed buffer range.
func (d *Descriptor) Bytes() []byte {
	if d.Buffer == nil {
		return nil
	}
	return d.Buffer.data[d.Offset : d.Offset+d.Size]
}

// Heap is a descriptor heap. Handles encode the heap in the upper bits so a
// handle can be traced back to its heap and slot.
type Heap struct {
	records []Descriptor
	visible bool
	base    uint64
}

// Len implements gpu.DescriptorHeap.
func (h *Heap) Len() int { return len(h.records) }

// ShaderVisible implements gpu.DescriptorHeap.
func (h *Heap) ShaderVisible() bool { return h.visible }

// CPUStart implements gpu.DescriptorHeap.
func (h *Heap) CPUStart() gpu.CPUDescriptorHandle {
	return gpu.CPUDescriptorHandle{Ptr: h.base}
}

// GPUStart implements gpu.DescriptorHeap.
func (h *Heap) GPUStart() gpu.GPUDescriptorHandle {
	if !h.visible {
		return gpu.GPUDescriptorHandle{}
	}
	return gpu.GPUDescriptorHandle{Ptr: h.base}
}

// At returns the descriptor at index, or nil when out of range.
func (h *Heap) At(index int) *Descriptor {
	if index < 0 || index >= len(h.records) {
		return nil
	}
	return &h.records[index]
}

func (h *Heap) indexOf(ptr uint64) (int, bool) {
	if ptr < h.base {
		return 0, false
	}
	off := ptr - h.base
	if off%DescriptorIncrement != 0 {
		return 0, false
	}
	idx := int(off / DescriptorIncrement)
	if idx >= len(h.records) {
		return 0, false
	}
	return idx, true
}
