package ring

import (
	"fmt"

	"github.com/Faultbox/prism/internal/gpu"
)

// StagingHeap hands out descriptors in a CPU-only heap. Views are created
// here once at load time and copied into the shader-visible ring when bound.
type StagingHeap struct {
	dev  gpu.Device
	heap gpu.DescriptorHeap
	inc  uint32
	next int
}

// NewStagingHeap creates a non-shader-visible heap of size descriptors.
func NewStagingHeap(dev gpu.Device, size int) (*StagingHeap, error) {
	heap, err := dev.CreateDescriptorHeap(size, false)
	if err != nil {
		return nil, fmt.Errorf("create staging heap: %w", err)
	}
	return &StagingHeap{dev: dev, heap: heap, inc: dev.DescriptorIncrement()}, nil
}

// Allocate reserves n consecutive descriptors and returns the first.
func (s *StagingHeap) Allocate(n int) (gpu.CPUDescriptorHandle, error) {
	if n <= 0 || s.next+n > s.heap.Len() {
		return gpu.CPUDescriptorHandle{}, fmt.Errorf("%w: staging heap has %d of %d free, need %d",
			gpu.ErrOutOfDescriptors, s.heap.Len()-s.next, s.heap.Len(), n)
	}
	h := s.heap.CPUStart().Offset(s.next, s.inc)
	s.next += n
	return h, nil
}

// Used returns the number of allocated descriptors.
func (s *StagingHeap) Used() int { return s.next }

// Rewind releases every descriptor allocated after the first used ones.
// Views in the released range must no longer be copied from.
func (s *StagingHeap) Rewind(used int) {
	s.next = max(0, min(used, s.next))
}
