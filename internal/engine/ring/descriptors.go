// Package ring holds the per-frame GPU allocators: a constant-buffer ring
// over one upload buffer and a shader-visible descriptor heap that descriptors
// are copied into each frame.
package ring

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
)

// DescriptorHeapRing owns the shader-visible heap. Its slots are split into
// three regions:
//
//	[0, cbv)                constant-buffer views, one per ConstantBufferRing slot
//	[cbv, cbv+fixed)        fixed slots addressed by index
//	[cbv+fixed, len)        SRV ring
//
// Descriptors copied into the SRV ring before MarkFrameBase persist; later
// copies are per frame and are overwritten after ResetFrame.
type DescriptorHeapRing struct {
	dev  gpu.Device
	heap gpu.DescriptorHeap
	inc  uint32

	cbvCount   int
	fixedCount int
	srvBase    int
	frameBase  int
	next       int
	log        *zap.Logger
}

// NewDescriptorHeapRing creates a shader-visible heap of size descriptors.
func NewDescriptorHeapRing(dev gpu.Device, size, cbvCount, fixedCount int) (*DescriptorHeapRing, error) {
	if cbvCount < 0 || fixedCount < 0 || cbvCount+fixedCount >= size {
		return nil, fmt.Errorf("descriptor heap of %d leaves no room for SRVs after %d CBVs and %d fixed slots",
			size, cbvCount, fixedCount)
	}
	heap, err := dev.CreateDescriptorHeap(size, true)
	if err != nil {
		return nil, fmt.Errorf("create descriptor heap: %w", err)
	}
	base := cbvCount + fixedCount
	return &DescriptorHeapRing{
		dev:        dev,
		heap:       heap,
		inc:        dev.DescriptorIncrement(),
		cbvCount:   cbvCount,
		fixedCount: fixedCount,
		srvBase:    base,
		frameBase:  base,
		next:       base,
		log:        logger.Named("ring.descriptors"),
	}, nil
}

// Heap returns the underlying heap for binding.
func (r *DescriptorHeapRing) Heap() gpu.DescriptorHeap { return r.heap }

// CPUHandle returns the CPU handle of slot i.
func (r *DescriptorHeapRing) CPUHandle(i int) gpu.CPUDescriptorHandle {
	return r.heap.CPUStart().Offset(i, r.inc)
}

// GPUHandle returns the GPU handle of slot i.
func (r *DescriptorHeapRing) GPUHandle(i int) gpu.GPUDescriptorHandle {
	return r.heap.GPUStart().Offset(i, r.inc)
}

// IndexOf maps a GPU handle of this heap back to its slot index.
func (r *DescriptorHeapRing) IndexOf(h gpu.GPUDescriptorHandle) int {
	return int((h.Ptr - r.heap.GPUStart().Ptr) / uint64(r.inc))
}

// CBVCount returns the size of the constant-buffer region.
func (r *DescriptorHeapRing) CBVCount() int { return r.cbvCount }

// CopySRVs copies count descriptors starting at src into the SRV ring and
// returns the GPU handle of the first copy. When the tail of the ring is too
// short the cursor wraps back to the frame base.
func (r *DescriptorHeapRing) CopySRVs(src gpu.CPUDescriptorHandle, count int) (gpu.GPUDescriptorHandle, error) {
	dst, err := r.reserve(count)
	if err != nil {
		return gpu.GPUDescriptorHandle{}, err
	}
	if err := r.dev.CopyDescriptorsSimple(count, r.CPUHandle(dst), src); err != nil {
		return gpu.GPUDescriptorHandle{}, err
	}
	return r.GPUHandle(dst), nil
}

// CopySRVRun copies scattered descriptors into one contiguous run, in order,
// and returns the GPU handle of the first.
func (r *DescriptorHeapRing) CopySRVRun(srcs []gpu.CPUDescriptorHandle) (gpu.GPUDescriptorHandle, error) {
	dst, err := r.reserve(len(srcs))
	if err != nil {
		return gpu.GPUDescriptorHandle{}, err
	}
	for i, src := range srcs {
		if err := r.dev.CopyDescriptorsSimple(1, r.CPUHandle(dst+i), src); err != nil {
			return gpu.GPUDescriptorHandle{}, err
		}
	}
	return r.GPUHandle(dst), nil
}

func (r *DescriptorHeapRing) reserve(count int) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("copy of %d descriptors", count)
	}
	if count > r.heap.Len()-r.frameBase {
		return 0, fmt.Errorf("%w: %d descriptors do not fit the frame region of %d",
			gpu.ErrOutOfDescriptors, count, r.heap.Len()-r.frameBase)
	}
	if r.next+count > r.heap.Len() {
		r.log.Debug("descriptor ring wrapped", zap.Int("cursor", r.next))
		r.next = r.frameBase
	}
	dst := r.next
	r.next += count
	return dst, nil
}

// CopyToFixed copies count descriptors into the fixed region at slot.
func (r *DescriptorHeapRing) CopyToFixed(slot int, src gpu.CPUDescriptorHandle, count int) (gpu.GPUDescriptorHandle, error) {
	if slot < 0 || slot+count > r.fixedCount {
		return gpu.GPUDescriptorHandle{}, fmt.Errorf("%w: fixed slots [%d, %d) outside region of %d",
			gpu.ErrOutOfDescriptors, slot, slot+count, r.fixedCount)
	}
	dst := r.cbvCount + slot
	if err := r.dev.CopyDescriptorsSimple(count, r.CPUHandle(dst), src); err != nil {
		return gpu.GPUDescriptorHandle{}, err
	}
	return r.GPUHandle(dst), nil
}

// FixedCPU returns the CPU handle of a fixed slot, for creating views
// directly in place.
func (r *DescriptorHeapRing) FixedCPU(slot int) gpu.CPUDescriptorHandle {
	return r.CPUHandle(r.cbvCount + slot)
}

// FixedGPU returns the GPU handle of a fixed slot.
func (r *DescriptorHeapRing) FixedGPU(slot int) gpu.GPUDescriptorHandle {
	return r.GPUHandle(r.cbvCount + slot)
}

// FixedIndex returns the heap index of a fixed slot.
func (r *DescriptorHeapRing) FixedIndex(slot int) int { return r.cbvCount + slot }

// MarkFrameBase makes everything copied so far persistent.
func (r *DescriptorHeapRing) MarkFrameBase() {
	r.frameBase = r.next
	r.log.Debug("persistent descriptors", zap.Int("count", r.frameBase-r.srvBase))
}

// ClearPersistent drops every persistent descriptor so a new scene can be
// sealed. Views handed out before the call must no longer be bound.
func (r *DescriptorHeapRing) ClearPersistent() {
	r.frameBase = r.srvBase
	r.next = r.srvBase
}

// ResetFrame rewinds the SRV cursor to the frame base. Call only after the
// previous frame's fence has been waited on.
func (r *DescriptorHeapRing) ResetFrame() {
	r.next = r.frameBase
}

// Cursor returns the next SRV slot that CopySRVs will write.
func (r *DescriptorHeapRing) Cursor() int { return r.next }
