package ring

import (
	"fmt"

	"github.com/Faultbox/prism/internal/gpu"
	pmath "github.com/Faultbox/prism/pkg/math"
)

// SlotSize is the size and alignment of one constant-buffer slot.
const SlotSize = gpu.ConstantBufferAlignment

// Allocation is one constant-buffer allocation.
type Allocation struct {
	Handle  gpu.GPUDescriptorHandle
	Address gpu.GPUVirtualAddress
	Slot    int
	Slots   int
}

// ConstantBufferRing is a bump allocator over one persistently mapped upload
// buffer. Slot i is viewed by CBV i of the descriptor ring.
//
// Slots are reused without checks once the cursor wraps; the one-frame fence
// wait is what keeps the GPU from still reading them.
type ConstantBufferRing struct {
	dev     gpu.Device
	heap    *DescriptorHeapRing
	buffer  gpu.Buffer
	mapped  []byte
	slots   int
	next    int
	wrapped int
}

// NewConstantBufferRing allocates slots 256-byte slots. The descriptor ring
// must reserve at least that many CBVs.
func NewConstantBufferRing(dev gpu.Device, heap *DescriptorHeapRing, slots int) (*ConstantBufferRing, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("constant buffer ring needs at least one slot")
	}
	if heap.CBVCount() < slots {
		return nil, fmt.Errorf("descriptor ring reserves %d CBVs, ring needs %d", heap.CBVCount(), slots)
	}
	buf, err := dev.CreateUploadBuffer(slots * SlotSize)
	if err != nil {
		return nil, fmt.Errorf("create constant buffer upload heap: %w", err)
	}
	return &ConstantBufferRing{
		dev:    dev,
		heap:   heap,
		buffer: buf,
		mapped: buf.Mapped(),
		slots:  slots,
	}, nil
}

// FillAndGetGPUHandle copies data into the next slot and returns the GPU
// handle of a CBV over it.
func (r *ConstantBufferRing) FillAndGetGPUHandle(data []byte) (gpu.GPUDescriptorHandle, error) {
	a, err := r.Allocate(data)
	return a.Handle, err
}

// Allocate copies data into the next free slots. Requests above 256 bytes
// take consecutive slots under a single view; a request that does not fit
// the remaining tail wraps to slot 0.
func (r *ConstantBufferRing) Allocate(data []byte) (Allocation, error) {
	size := pmath.AlignUp(max(len(data), 1), SlotSize)
	n := size / SlotSize
	if n > r.slots {
		return Allocation{}, fmt.Errorf("constant buffer of %d bytes exceeds ring of %d slots", len(data), r.slots)
	}
	if r.next+n > r.slots {
		r.next = 0
		r.wrapped++
	}

	slot := r.next
	off := slot * SlotSize
	copy(r.mapped[off:], data)
	clear(r.mapped[off+len(data) : off+size])

	addr := r.buffer.GPUAddress() + gpu.GPUVirtualAddress(off)
	if err := r.dev.CreateConstantBufferView(gpu.ConstantBufferViewDesc{
		BufferLocation: addr,
		SizeInBytes:    size,
	}, r.heap.CPUHandle(slot)); err != nil {
		return Allocation{}, fmt.Errorf("constant buffer view: %w", err)
	}

	r.next += n
	return Allocation{Handle: r.heap.GPUHandle(slot), Address: addr, Slot: slot, Slots: n}, nil
}

// Reset rewinds the cursor at the start of a frame.
func (r *ConstantBufferRing) Reset() { r.next = 0 }

// Cursor returns the next slot to be written.
func (r *ConstantBufferRing) Cursor() int { return r.next }

// Capacity returns the slot count.
func (r *ConstantBufferRing) Capacity() int { return r.slots }

// Wraps returns how many times the cursor wrapped to slot 0.
func (r *ConstantBufferRing) Wraps() int { return r.wrapped }

// Buffer returns the backing upload buffer.
func (r *ConstantBufferRing) Buffer() gpu.Buffer { return r.buffer }
