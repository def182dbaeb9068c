package core

import "github.com/Faultbox/prism/internal/gpu"

// Recorded commands. Backends replay them in order at submit time.

type CmdSetPipeline struct{ Pipeline gpu.Pipeline }

type CmdSetHeap struct{ Heap gpu.DescriptorHeap }

type CmdSetTable struct {
	Param int
	Base  gpu.GPUDescriptorHandle
}

type CmdSetViewport struct{ Viewport gpu.Viewport }

type CmdClearTarget struct{ Color [4]float32 }

type CmdClearDepth struct{ Depth float32 }

type CmdSetVertexBuffer struct {
	Buffer gpu.Buffer
	Stride int
}

type CmdSetIndexBuffer struct{ Buffer gpu.Buffer }

type CmdDrawIndexed struct{ IndexCount, StartIndex, BaseVertex int }

type CmdBuildBottom struct {
	Dst      gpu.AccelerationStructure
	Geometry []gpu.TriangleGeometry
	Flags    gpu.BuildFlags
}

type CmdBuildTop struct {
	Dst       gpu.AccelerationStructure
	Instances []gpu.InstanceDesc
	Flags     gpu.BuildFlags
}

type CmdDispatchRays struct{ Desc gpu.DispatchRaysDesc }

type CmdUAVBarrier struct{ Texture gpu.Texture }

type CmdTransition struct {
	Texture       gpu.Texture
	Before, After gpu.ResourceState
}

type CmdCopyToBackBuffer struct{ Src gpu.Texture }

// CommandList records commands for later replay.
type CommandList struct {
	commands []any
	closed   bool
}

// NewCommandList returns an open, empty list.
func NewCommandList() *CommandList {
	return &CommandList{commands: make([]any, 0, 256)}
}

// Commands returns the recorded commands.
func (c *CommandList) Commands() []any { return c.commands }

// Closed reports whether Close was called since the last Reset.
func (c *CommandList) Closed() bool { return c.closed }

func (c *CommandList) record(cmd any) {
	if c.closed {
		panic("gpu: recording into a closed command list")
	}
	c.commands = append(c.commands, cmd)
}

// Reset implements gpu.CommandList.
func (c *CommandList) Reset() {
	clear(c.commands)
	c.commands = c.commands[:0]
	c.closed = false
}

// Close implements gpu.CommandList.
func (c *CommandList) Close() { c.closed = true }

// SetPipeline implements gpu.CommandList.
func (c *CommandList) SetPipeline(p gpu.Pipeline) { c.record(CmdSetPipeline{p}) }

// SetDescriptorHeap implements gpu.CommandList.
func (c *CommandList) SetDescriptorHeap(h gpu.DescriptorHeap) { c.record(CmdSetHeap{h}) }

// SetRootDescriptorTable implements gpu.CommandList.
func (c *CommandList) SetRootDescriptorTable(param int, base gpu.GPUDescriptorHandle) {
	c.record(CmdSetTable{Param: param, Base: base})
}

// SetViewport implements gpu.CommandList.
func (c *CommandList) SetViewport(v gpu.Viewport) { c.record(CmdSetViewport{v}) }

// ClearRenderTarget implements gpu.CommandList.
func (c *CommandList) ClearRenderTarget(color [4]float32) { c.record(CmdClearTarget{color}) }

// ClearDepth implements gpu.CommandList.
func (c *CommandList) ClearDepth(depth float32) { c.record(CmdClearDepth{depth}) }

// SetVertexBuffer implements gpu.CommandList.
func (c *CommandList) SetVertexBuffer(b gpu.Buffer, stride int) {
	c.record(CmdSetVertexBuffer{Buffer: b, Stride: stride})
}

// SetIndexBuffer implements gpu.CommandList.
func (c *CommandList) SetIndexBuffer(b gpu.Buffer) { c.record(CmdSetIndexBuffer{b}) }

// DrawIndexed implements gpu.CommandList.
func (c *CommandList) DrawIndexed(indexCount, startIndex, baseVertex int) {
	c.record(CmdDrawIndexed{IndexCount: indexCount, StartIndex: startIndex, BaseVertex: baseVertex})
}

// BuildBottomLevel implements gpu.CommandList.
func (c *CommandList) BuildBottomLevel(dst gpu.AccelerationStructure, geometry []gpu.TriangleGeometry, flags gpu.BuildFlags) {
	c.record(CmdBuildBottom{Dst: dst, Geometry: append([]gpu.TriangleGeometry(nil), geometry...), Flags: flags})
}

// BuildTopLevel implements gpu.CommandList. The instance slice is copied so
// callers may reuse it while the list is pending.
func (c *CommandList) BuildTopLevel(dst gpu.AccelerationStructure, instances []gpu.InstanceDesc, flags gpu.BuildFlags) {
	c.record(CmdBuildTop{Dst: dst, Instances: append([]gpu.InstanceDesc(nil), instances...), Flags: flags})
}

// DispatchRays implements gpu.CommandList.
func (c *CommandList) DispatchRays(desc gpu.DispatchRaysDesc) {
	desc.Constants = append([]gpu.GPUDescriptorHandle(nil), desc.Constants...)
	c.record(CmdDispatchRays{desc})
}

// UAVBarrier implements gpu.CommandList.
func (c *CommandList) UAVBarrier(t gpu.Texture) { c.record(CmdUAVBarrier{t}) }

// Transition implements gpu.CommandList.
func (c *CommandList) Transition(t gpu.Texture, before, after gpu.ResourceState) {
	c.record(CmdTransition{Texture: t, Before: before, After: after})
}

// CopyToBackBuffer implements gpu.CommandList.
func (c *CommandList) CopyToBackBuffer(src gpu.Texture) { c.record(CmdCopyToBackBuffer{src}) }
