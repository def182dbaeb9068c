package soft

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/prism/internal/gpu"
)

type fixture struct {
	dev      *Device
	heap     gpu.DescriptorHeap
	cb       gpu.Buffer
	vb, ib   gpu.Buffer
	pipeline gpu.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev, err := New(4, 2)
	require.NoError(t, err)

	f := &fixture{dev: dev}
	f.heap, err = dev.CreateDescriptorHeap(4, true)
	require.NoError(t, err)
	f.cb, err = dev.CreateUploadBuffer(256)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(f.cb.Mapped(), 0xCAFE)
	require.NoError(t, dev.CreateConstantBufferView(gpu.ConstantBufferViewDesc{
		BufferLocation: f.cb.GPUAddress(),
		SizeInBytes:    256,
	}, f.heap.CPUStart()))

	f.vb, err = dev.CreateStaticBuffer(make([]byte, 3*12))
	require.NoError(t, err)
	f.ib, err = dev.CreateStaticBuffer(make([]byte, 3*4))
	require.NoError(t, err)
	f.pipeline, err = dev.CreatePipeline(gpu.PipelineDesc{
		Name:           "test",
		VertexStride:   12,
		RootParameters: []gpu.RootParameter{{Type: gpu.RootCBVTable, Count: 1}},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) recordDraw(cl gpu.CommandList) {
	bb := f.dev.SwapChain().BackBuffer(f.dev.SwapChain().CurrentIndex())
	cl.Transition(bb, gpu.StatePresent, gpu.StateRenderTarget)
	cl.ClearRenderTarget([4]float32{1, 0, 0, 1})
	cl.SetPipeline(f.pipeline)
	cl.SetDescriptorHeap(f.heap)
	cl.SetRootDescriptorTable(0, f.heap.GPUStart())
	cl.SetVertexBuffer(f.vb, 12)
	cl.SetIndexBuffer(f.ib)
	cl.DrawIndexed(3, 0, 0)
	cl.Transition(bb, gpu.StateRenderTarget, gpu.StatePresent)
}

func TestSubmitRecordsDraws(t *testing.T) {
	f := newFixture(t)
	cl := f.dev.CommandList()
	cl.Reset()
	f.recordDraw(cl)
	cl.Close()
	require.NoError(t, f.dev.Submit(cl))

	draws := f.dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "test", draws[0].Pipeline)
	assert.Equal(t, 3, draws[0].IndexCount)
	assert.Equal(t, uint32(0xCAFE), binary.LittleEndian.Uint32(draws[0].Constants[0]))

	stats := f.dev.Stats()
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 3, stats.IndicesDrawn)

	require.NoError(t, f.dev.SwapChain().Present(1, false))
	img := f.dev.swap.Presented()
	require.NotNil(t, img)
	assert.Equal(t, []byte{255, 0, 0, 255}, img.Pix[:4])
	assert.Equal(t, 1, f.dev.SwapChain().CurrentIndex())
}

func TestSubmitOpenListFails(t *testing.T) {
	f := newFixture(t)
	cl := f.dev.CommandList()
	cl.Reset()
	assert.ErrorIs(t, f.dev.Submit(cl), gpu.ErrCommandListOpen)
}

func TestDrawWithoutBindingFails(t *testing.T) {
	f := newFixture(t)
	cl := f.dev.CommandList()
	cl.Reset()
	bb := f.dev.SwapChain().BackBuffer(0)
	cl.Transition(bb, gpu.StatePresent, gpu.StateRenderTarget)
	cl.SetPipeline(f.pipeline)
	cl.SetDescriptorHeap(f.heap)
	cl.SetVertexBuffer(f.vb, 12)
	cl.SetIndexBuffer(f.ib)
	cl.DrawIndexed(3, 0, 0)
	cl.Close()
	assert.Error(t, f.dev.Submit(cl))
}

func TestTransitionMismatchFails(t *testing.T) {
	f := newFixture(t)
	cl := f.dev.CommandList()
	cl.Reset()
	cl.Transition(f.dev.SwapChain().BackBuffer(0), gpu.StateRenderTarget, gpu.StatePresent)
	cl.Close()
	assert.Error(t, f.dev.Submit(cl))
}

func TestPresentRequiresPresentState(t *testing.T) {
	f := newFixture(t)
	cl := f.dev.CommandList()
	cl.Reset()
	cl.Transition(f.dev.SwapChain().BackBuffer(0), gpu.StatePresent, gpu.StateRenderTarget)
	cl.Close()
	require.NoError(t, f.dev.Submit(cl))
	assert.Error(t, f.dev.SwapChain().Present(1, false))
}

type solidKernel struct{ c mgl32.Vec4 }

func (k solidKernel) Shade(gpu.RayContext, int, int) mgl32.Vec4 { return k.c }

func TestDispatchAndCopyToBackBuffer(t *testing.T) {
	f := newFixture(t)
	out, err := f.dev.CreateTexture(gpu.TextureDesc{Width: 4, Height: 2, Format: gpu.FormatRGBA32F, UnorderedAccess: true}, nil)
	require.NoError(t, err)
	uav := f.heap.CPUStart().Offset(1, f.dev.DescriptorIncrement())
	require.NoError(t, f.dev.CreateTextureUAV(out, uav))

	bb := f.dev.SwapChain().BackBuffer(0)
	cl := f.dev.CommandList()
	cl.Reset()
	cl.SetDescriptorHeap(f.heap)
	cl.DispatchRays(gpu.DispatchRaysDesc{
		Kernel: solidKernel{mgl32.Vec4{0.25, 1, 0, 1}},
		Width:  4,
		Height: 2,
		Output: f.heap.GPUStart().Offset(1, f.dev.DescriptorIncrement()),
	})
	cl.Transition(out, gpu.StateUnorderedAccess, gpu.StateCopySource)
	cl.Transition(bb, gpu.StatePresent, gpu.StateCopyDest)
	cl.CopyToBackBuffer(out)
	cl.Transition(bb, gpu.StateCopyDest, gpu.StatePresent)
	cl.Transition(out, gpu.StateCopySource, gpu.StateUnorderedAccess)
	cl.Close()
	require.NoError(t, f.dev.Submit(cl))
	require.NoError(t, f.dev.SwapChain().Present(0, true))

	// sqrt(0.25) = 0.5 -> 128; 1 clamps to 0.999 -> 255.
	img := f.dev.swap.Presented()
	assert.Equal(t, []byte{128, 255, 0, 255}, img.Pix[:4])
	assert.Equal(t, 1, f.dev.Stats().Dispatches)
}

func TestFenceSignal(t *testing.T) {
	f := newFixture(t)
	fence, err := f.dev.CreateFence()
	require.NoError(t, err)
	assert.Error(t, fence.Wait(1))
	require.NoError(t, f.dev.Signal(fence, 1))
	assert.Equal(t, uint64(1), fence.CompletedValue())
	assert.NoError(t, fence.Wait(1))
}

func TestResize(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dev.SwapChain().Resize(8, 6))
	bb := f.dev.SwapChain().BackBuffer(1)
	assert.Equal(t, 8, bb.Width())
	assert.Equal(t, 6, bb.Height())
	assert.Equal(t, gpu.StatePresent, f.dev.State(bb))
	assert.Error(t, f.dev.SwapChain().Resize(0, 6))
}
