package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/core"
)

type replayState struct {
	heap     *core.Heap
	pipeline *Pipeline
	tables   []gpu.GPUDescriptorHandle
	vb       *core.Buffer
	stride   int
	ib       *core.Buffer
}

// Submit implements gpu.Device. Raster commands are issued to GL in order;
// acceleration-structure builds and ray dispatches run on the CPU mirror.
func (d *Device) Submit(list gpu.CommandList) error {
	cl, ok := list.(*core.CommandList)
	if !ok {
		return fmt.Errorf("%w: foreign command list %T", gpu.ErrUnsupported, list)
	}
	if !cl.Closed() {
		return gpu.ErrCommandListOpen
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.FrontFace(gl.CW)

	var st replayState
	for i, cmd := range cl.Commands() {
		if err := d.execute(&st, cmd); err != nil {
			return fmt.Errorf("command %d (%T): %w", i, cmd, err)
		}
	}
	gl.BindVertexArray(0)
	gl.UseProgram(0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%w: GL error 0x%x", gpu.ErrDeviceLost, code)
	}
	return nil
}

func (d *Device) execute(st *replayState, cmd any) error {
	switch c := cmd.(type) {
	case core.CmdSetPipeline:
		p, ok := c.Pipeline.(*Pipeline)
		if !ok {
			return fmt.Errorf("%w: foreign pipeline %T", gpu.ErrUnsupported, c.Pipeline)
		}
		st.pipeline = p
		st.tables = make([]gpu.GPUDescriptorHandle, len(p.desc.RootParameters))
		gl.UseProgram(p.program)
		applyFixedFunction(p.desc.Kind)

	case core.CmdSetHeap:
		h, ok := c.Heap.(*core.Heap)
		if !ok || !h.ShaderVisible() {
			return fmt.Errorf("%w: bound heap must be a shader-visible device heap", gpu.ErrInvalidHandle)
		}
		st.heap = h

	case core.CmdSetTable:
		if st.pipeline == nil {
			return fmt.Errorf("root table set before pipeline")
		}
		if c.Param < 0 || c.Param >= len(st.tables) {
			return fmt.Errorf("root parameter %d outside layout of %d", c.Param, len(st.tables))
		}
		st.tables[c.Param] = c.Base

	case core.CmdSetViewport:
		gl.Viewport(int32(c.Viewport.X), int32(c.Viewport.Y), int32(c.Viewport.Width), int32(c.Viewport.Height))
		gl.DepthRange(float64(c.Viewport.MinDepth), float64(c.Viewport.MaxDepth))

	case core.CmdClearTarget:
		if s := d.states[d.swap.current()]; s != gpu.StateRenderTarget {
			return fmt.Errorf("clearing back buffer in state %d", s)
		}
		gl.ClearColor(c.Color[0], c.Color[1], c.Color[2], c.Color[3])
		gl.Clear(gl.COLOR_BUFFER_BIT)

	case core.CmdClearDepth:
		gl.DepthMask(true)
		gl.ClearDepth(float64(c.Depth))
		gl.Clear(gl.DEPTH_BUFFER_BIT)

	case core.CmdSetVertexBuffer:
		b, ok := c.Buffer.(*core.Buffer)
		if !ok {
			return fmt.Errorf("%w: foreign vertex buffer", gpu.ErrUnsupported)
		}
		st.vb, st.stride = b, c.Stride

	case core.CmdSetIndexBuffer:
		b, ok := c.Buffer.(*core.Buffer)
		if !ok {
			return fmt.Errorf("%w: foreign index buffer", gpu.ErrUnsupported)
		}
		st.ib = b

	case core.CmdDrawIndexed:
		return d.draw(st, c)

	case core.CmdBuildBottom:
		return d.Store.BuildBottomLevel(c.Dst, c.Geometry)

	case core.CmdBuildTop:
		return d.Store.BuildTopLevel(c.Dst, c.Instances)

	case core.CmdDispatchRays:
		out, err := d.Store.Dispatch(st.heap, c.Desc)
		if err != nil {
			return err
		}
		if d.states[out] != gpu.StateUnorderedAccess {
			return fmt.Errorf("ray output written in state %d", d.states[out])
		}

	case core.CmdUAVBarrier:
		// Dispatches complete synchronously.

	case core.CmdTransition:
		if cur := d.states[c.Texture]; cur != c.Before {
			return fmt.Errorf("transition expects state %d, resource is in %d", c.Before, cur)
		}
		d.states[c.Texture] = c.After

	case core.CmdCopyToBackBuffer:
		src, ok := c.Src.(*core.Texture)
		if !ok {
			return fmt.Errorf("%w: foreign texture", gpu.ErrUnsupported)
		}
		bb := d.swap.current()
		if d.states[src] != gpu.StateCopySource || d.states[bb] != gpu.StateCopyDest {
			return fmt.Errorf("copy needs source in copy-source and back buffer in copy-dest")
		}
		core.Resolve(src, bb)
		d.swap.blit(bb)

	default:
		return fmt.Errorf("%w: unknown command", gpu.ErrUnsupported)
	}
	return nil
}

func applyFixedFunction(kind gpu.PipelineKind) {
	switch kind {
	case gpu.PipelineParticles:
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthMask(false)
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
		gl.Disable(gl.CULL_FACE)
	default:
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LESS)
		gl.DepthMask(true)
		gl.Disable(gl.BLEND)
		gl.Enable(gl.CULL_FACE)
		gl.CullFace(gl.BACK)
	}
}

func (d *Device) draw(st *replayState, c core.CmdDrawIndexed) error {
	p := st.pipeline
	if p == nil || st.heap == nil {
		return fmt.Errorf("draw without pipeline or descriptor heap")
	}
	if st.ib == nil {
		return fmt.Errorf("draw without index buffer")
	}
	if st.vb == nil && p.desc.VertexStride > 0 {
		return fmt.Errorf("draw without vertex buffer")
	}
	if (c.StartIndex+c.IndexCount)*4 > st.ib.Size() {
		return fmt.Errorf("draw of %d indices overruns index buffer", c.IndexCount)
	}
	if bb := d.swap.current(); d.states[bb] != gpu.StateRenderTarget {
		return fmt.Errorf("drawing into back buffer in state %d", d.states[bb])
	}

	for param, rp := range p.desc.RootParameters {
		base := st.tables[param]
		if base.IsNull() {
			return fmt.Errorf("root parameter %d not bound", param)
		}
		heap, idx, err := d.Store.ResolveGPU(base)
		if err != nil {
			return fmt.Errorf("root parameter %d: %w", param, err)
		}
		if heap != st.heap {
			return fmt.Errorf("root parameter %d points outside the bound heap", param)
		}
		for k := 0; k < rp.Count; k++ {
			if !p.active[param][k] {
				continue
			}
			desc := heap.At(idx + k)
			if desc == nil || desc.Kind == core.DescriptorEmpty {
				return fmt.Errorf("root parameter %d descriptor %d is empty", param, idx+k)
			}
			if err := d.bindDescriptor(param, p.unitMap[param][k], desc); err != nil {
				return fmt.Errorf("root parameter %d: %w", param, err)
			}
		}
	}

	if p.desc.VertexStride == 0 {
		gl.BindVertexArray(d.emptyVAO)
	} else {
		gl.BindVertexArray(d.vertexArray(p))
		gl.BindBuffer(gl.ARRAY_BUFFER, d.glBuffer(st.vb))
		for _, el := range p.desc.InputLayout {
			loc := uint32(el.Location)
			gl.EnableVertexAttribArray(loc)
			gl.VertexAttribPointerWithOffset(loc, int32(el.Components), gl.FLOAT, false, int32(st.stride), uintptr(el.Offset))
		}
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.glBuffer(st.ib))
	gl.DrawElementsBaseVertex(gl.TRIANGLES, int32(c.IndexCount), gl.UNSIGNED_INT, gl.PtrOffset(c.StartIndex*4), int32(c.BaseVertex))
	return nil
}

// bindDescriptor makes one descriptor visible to the current program.
func (d *Device) bindDescriptor(param, unit int, desc *core.Descriptor) error {
	switch desc.Kind {
	case core.DescriptorCBV:
		ubo := d.uniforms[param]
		data := desc.Bytes()
		gl.BindBuffer(gl.UNIFORM_BUFFER, ubo)
		gl.BufferData(gl.UNIFORM_BUFFER, len(data), glPtr(data), gl.STREAM_DRAW)
		gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(param), ubo)

	case core.DescriptorTextureSRV:
		id, ok := d.textures[desc.Texture]
		if !ok {
			return fmt.Errorf("texture has no GL object")
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_2D, id)

	case core.DescriptorBufferSRV:
		tb := d.texBuffer(desc.Buffer)
		data := desc.Bytes()
		gl.BindBuffer(gl.TEXTURE_BUFFER, tb.buffer)
		gl.BufferData(gl.TEXTURE_BUFFER, len(data), glPtr(data), gl.STREAM_DRAW)
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_BUFFER, tb.texture)
		gl.TexBuffer(gl.TEXTURE_BUFFER, gl.RGBA32F, tb.buffer)

	default:
		return fmt.Errorf("descriptor kind %d cannot be bound to a draw", desc.Kind)
	}
	return nil
}

func (d *Device) texBuffer(b *core.Buffer) *texBuffer {
	if tb, ok := d.texBuffers[b]; ok {
		return tb
	}
	tb := &texBuffer{}
	gl.GenBuffers(1, &tb.buffer)
	gl.GenTextures(1, &tb.texture)
	d.texBuffers[b] = tb
	return tb
}

// glBuffer returns the GL buffer of b. Upload buffers are rewritten before
// each use since the CPU may have changed them.
func (d *Device) glBuffer(b *core.Buffer) uint32 {
	id, ok := d.buffers[b]
	if !ok {
		gl.GenBuffers(1, &id)
		d.buffers[b] = id
	}
	if !ok || b.Upload() {
		gl.BindBuffer(gl.COPY_WRITE_BUFFER, id)
		gl.BufferData(gl.COPY_WRITE_BUFFER, b.Size(), glPtr(b.Bytes()), gl.STREAM_DRAW)
		gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	}
	return id
}

// vertexArray returns the VAO of a pipeline with a vertex layout.
func (d *Device) vertexArray(p *Pipeline) uint32 {
	if p.vao == 0 {
		gl.GenVertexArrays(1, &p.vao)
	}
	return p.vao
}
