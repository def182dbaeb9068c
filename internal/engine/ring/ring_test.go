package ring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/core"
	"github.com/Faultbox/prism/internal/gpu/soft"
)

func newRings(t *testing.T, slots, fixed, size int) (*soft.Device, *DescriptorHeapRing, *ConstantBufferRing) {
	t.Helper()
	dev, err := soft.New(8, 8)
	require.NoError(t, err)
	heap, err := NewDescriptorHeapRing(dev, size, slots, fixed)
	require.NoError(t, err)
	cb, err := NewConstantBufferRing(dev, heap, slots)
	require.NoError(t, err)
	return dev, heap, cb
}

func TestConstantBufferRingWrapsAfterCapacity(t *testing.T) {
	dev, _, cb := newRings(t, 1000, 4, 1100)
	data := bytes.Repeat([]byte{7}, 128)

	first, err := cb.FillAndGetGPUHandle(data)
	require.NoError(t, err)
	for i := 1; i < 1000; i++ {
		_, err := cb.FillAndGetGPUHandle(data)
		require.NoError(t, err)
	}
	assert.Equal(t, 1000, cb.Cursor())

	fence, err := dev.CreateFence()
	require.NoError(t, err)
	require.NoError(t, dev.Signal(fence, 1))
	require.NoError(t, fence.Wait(1))

	again, err := cb.FillAndGetGPUHandle(data)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, cb.Wraps())
}

func TestConstantBufferSlotsAre256Apart(t *testing.T) {
	dev, _, cb := newRings(t, 4, 0, 8)
	var prev Allocation
	for i := 0; i < 10; i++ {
		a, err := cb.Allocate(make([]byte, 1+i*25))
		require.NoError(t, err)
		if i > 0 {
			want := (uint64(prev.Address-cb.Buffer().GPUAddress()) + SlotSize) % uint64(4*SlotSize)
			assert.Equal(t, want, uint64(a.Address-cb.Buffer().GPUAddress()))
			wantSlot := (prev.Slot + 1) % 4
			assert.Equal(t, prev.Handle.Offset(1, dev.DescriptorIncrement()).Ptr == a.Handle.Ptr, wantSlot != 0)
		}
		prev = a
	}
}

func TestConstantBufferMultiSlot(t *testing.T) {
	dev, heap, cb := newRings(t, 8, 0, 16)
	small, err := cb.Allocate([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, 1, small.Slots)

	payload := bytes.Repeat([]byte{0xAB}, 600)
	big, err := cb.Allocate(payload)
	require.NoError(t, err)
	assert.Equal(t, 1, big.Slot)
	assert.Equal(t, 3, big.Slots)
	assert.Equal(t, 4, cb.Cursor())

	h, idx, err := dev.ResolveGPU(big.Handle)
	require.NoError(t, err)
	assert.Equal(t, heap.IndexOf(big.Handle), idx)
	view := h.At(idx).Bytes()
	assert.Len(t, view, 768)
	assert.Equal(t, payload, view[:600])
	assert.Equal(t, make([]byte, 168), view[600:])

	// Slots 4 and 5 are taken; three more do not fit after slot 6.
	_, err = cb.Allocate(make([]byte, 512))
	require.NoError(t, err)
	wrapped, err := cb.Allocate(make([]byte, 700))
	require.NoError(t, err)
	assert.Equal(t, 0, wrapped.Slot)

	_, err = cb.Allocate(make([]byte, 9*SlotSize))
	assert.Error(t, err)
}

func TestConstantBufferReset(t *testing.T) {
	_, _, cb := newRings(t, 4, 0, 8)
	first, err := cb.Allocate([]byte{1})
	require.NoError(t, err)
	_, err = cb.Allocate([]byte{2})
	require.NoError(t, err)
	cb.Reset()
	again, err := cb.Allocate([]byte{3})
	require.NoError(t, err)
	assert.Equal(t, first.Handle, again.Handle)
	assert.Equal(t, byte(3), cb.Buffer().Mapped()[0])
}

func TestConstantBufferRingNeedsCBVRegion(t *testing.T) {
	dev, err := soft.New(1, 1)
	require.NoError(t, err)
	heap, err := NewDescriptorHeapRing(dev, 16, 4, 0)
	require.NoError(t, err)
	_, err = NewConstantBufferRing(dev, heap, 5)
	assert.Error(t, err)
}

func stagedTextures(t *testing.T, dev *soft.Device, n int) (*StagingHeap, gpu.CPUDescriptorHandle, []gpu.Texture) {
	t.Helper()
	staging, err := NewStagingHeap(dev, 16)
	require.NoError(t, err)
	first, err := staging.Allocate(n)
	require.NoError(t, err)
	var textures []gpu.Texture
	for i := 0; i < n; i++ {
		tex, err := dev.CreateTexture(gpu.TextureDesc{Width: 1, Height: 1}, nil)
		require.NoError(t, err)
		require.NoError(t, dev.CreateTextureSRV(tex, first.Offset(i, dev.DescriptorIncrement())))
		textures = append(textures, tex)
	}
	return staging, first, textures
}

func TestCopySRVs(t *testing.T) {
	dev, heap, _ := newRings(t, 2, 2, 12)
	_, src, textures := stagedTextures(t, dev, 4)

	h, err := heap.CopySRVs(src, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, heap.IndexOf(h))
	assert.Equal(t, 8, heap.Cursor())

	vis, idx, err := dev.ResolveGPU(h)
	require.NoError(t, err)
	for i, tex := range textures {
		d := vis.At(idx + i)
		assert.Equal(t, core.DescriptorTextureSRV, d.Kind)
		assert.Same(t, tex, d.Texture)
	}
}

func TestCopySRVsWrapsToFrameBase(t *testing.T) {
	dev, heap, _ := newRings(t, 2, 2, 12)
	_, src, _ := stagedTextures(t, dev, 4)

	persistent, err := heap.CopySRVs(src, 4)
	require.NoError(t, err)
	heap.MarkFrameBase()

	frame, err := heap.CopySRVs(src, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, heap.IndexOf(frame))

	// The ring is full after the next copy, so the one after restarts at the base.
	_, err = heap.CopySRVs(src, 2)
	require.NoError(t, err)
	wrapped, err := heap.CopySRVs(src, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, heap.IndexOf(wrapped))
	assert.Equal(t, 4, heap.IndexOf(persistent))

	heap.ResetFrame()
	assert.Equal(t, 8, heap.Cursor())

	_, err = heap.CopySRVs(src, 5)
	assert.ErrorIs(t, err, gpu.ErrOutOfDescriptors)
}

func TestClearPersistent(t *testing.T) {
	dev, heap, _ := newRings(t, 2, 2, 12)
	_, src, _ := stagedTextures(t, dev, 4)

	_, err := heap.CopySRVs(src, 4)
	require.NoError(t, err)
	heap.MarkFrameBase()
	heap.ResetFrame()
	assert.Equal(t, 8, heap.Cursor())

	heap.ClearPersistent()
	assert.Equal(t, 4, heap.Cursor())
	first, err := heap.CopySRVs(src, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, heap.IndexOf(first))
}

func TestCopyToFixed(t *testing.T) {
	dev, heap, _ := newRings(t, 2, 3, 12)
	_, src, textures := stagedTextures(t, dev, 2)

	h, err := heap.CopyToFixed(1, src, 2)
	require.NoError(t, err)
	assert.Equal(t, heap.FixedGPU(1), h)
	assert.Equal(t, 3, heap.FixedIndex(1))

	vis, idx, err := dev.ResolveGPU(h)
	require.NoError(t, err)
	assert.Same(t, textures[1], vis.At(idx+1).Texture)

	_, err = heap.CopyToFixed(2, src, 2)
	assert.ErrorIs(t, err, gpu.ErrOutOfDescriptors)
}

func TestStagingHeapExhaustion(t *testing.T) {
	dev, err := soft.New(1, 1)
	require.NoError(t, err)
	staging, err := NewStagingHeap(dev, 3)
	require.NoError(t, err)

	a, err := staging.Allocate(2)
	require.NoError(t, err)
	b, err := staging.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, a.Offset(2, dev.DescriptorIncrement()), b)
	assert.Equal(t, 3, staging.Used())

	_, err = staging.Allocate(1)
	assert.ErrorIs(t, err, gpu.ErrOutOfDescriptors)

	staging.Rewind(2)
	c, err := staging.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, b, c)

	staging.Rewind(10)
	assert.Equal(t, 3, staging.Used())
}

func TestDescriptorHeapRingRejectsFullLayout(t *testing.T) {
	dev, err := soft.New(1, 1)
	require.NoError(t, err)
	_, err = NewDescriptorHeapRing(dev, 8, 6, 2)
	assert.Error(t, err)
}
