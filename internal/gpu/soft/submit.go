package soft

import (
	"fmt"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/core"
)

// replayState is the pipeline state while a list executes.
type replayState struct {
	heap     *core.Heap
	pipeline gpu.Pipeline
	tables   []gpu.GPUDescriptorHandle
	vb       *core.Buffer
	stride   int
	ib       *core.Buffer
}

// Submit implements gpu.Device. Commands execute synchronously in order.
func (d *Device) Submit(list gpu.CommandList) error {
	cl, ok := list.(*core.CommandList)
	if !ok {
		return fmt.Errorf("%w: foreign command list %T", gpu.ErrUnsupported, list)
	}
	if !cl.Closed() {
		return gpu.ErrCommandListOpen
	}

	d.stats.Submits++
	d.draws = d.draws[:0]

	var st replayState
	for i, cmd := range cl.Commands() {
		if err := d.execute(&st, cmd); err != nil {
			return fmt.Errorf("command %d (%T): %w", i, cmd, err)
		}
	}
	return nil
}

func (d *Device) execute(st *replayState, cmd any) error {
	switch c := cmd.(type) {
	case core.CmdSetPipeline:
		st.pipeline = c.Pipeline
		st.tables = make([]gpu.GPUDescriptorHandle, len(c.Pipeline.Desc().RootParameters))

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
		// Nothing is rasterized.

	case core.CmdClearTarget:
		bb := d.swap.current()
		if d.states[bb] != gpu.StateRenderTarget {
			return fmt.Errorf("clearing back buffer in state %d", d.states[bb])
		}
		for y := 0; y < bb.Height(); y++ {
			for x := 0; x < bb.Width(); x++ {
				bb.SetPixel(x, y, c.Color)
			}
		}

	case core.CmdClearDepth:

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
		if err := d.Store.BuildBottomLevel(c.Dst, c.Geometry); err != nil {
			return err
		}
		d.stats.BottomLevelBuilds++

	case core.CmdBuildTop:
		if err := d.Store.BuildTopLevel(c.Dst, c.Instances); err != nil {
			return err
		}
		d.stats.TopLevelBuilds++

	case core.CmdDispatchRays:
		out, err := d.Store.Dispatch(st.heap, c.Desc)
		if err != nil {
			return err
		}
		if d.states[out] != gpu.StateUnorderedAccess {
			return fmt.Errorf("ray output written in state %d", d.states[out])
		}
		d.stats.Dispatches++

	case core.CmdUAVBarrier:

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

	default:
		return fmt.Errorf("%w: unknown command", gpu.ErrUnsupported)
	}
	return nil
}

func (d *Device) draw(st *replayState, c core.CmdDrawIndexed) error {
	if st.pipeline == nil || st.heap == nil {
		return fmt.Errorf("draw without pipeline or descriptor heap")
	}
	if st.ib == nil {
		return fmt.Errorf("draw without index buffer")
	}
	// Pipelines with no vertex stride pull their vertices from an SRV.
	if st.vb == nil && st.pipeline.Desc().VertexStride > 0 {
		return fmt.Errorf("draw without vertex buffer")
	}
	if (c.StartIndex+c.IndexCount)*4 > st.ib.Size() {
		return fmt.Errorf("draw of %d indices overruns index buffer", c.IndexCount)
	}
	if bb := d.swap.current(); d.states[bb] != gpu.StateRenderTarget {
		return fmt.Errorf("drawing into back buffer in state %d", d.states[bb])
	}

	rec := DrawRecord{
		Pipeline:   st.pipeline.Name(),
		IndexCount: c.IndexCount,
		Tables:     append([]gpu.GPUDescriptorHandle(nil), st.tables...),
		Constants:  make(map[int][]byte),
	}
	for param, rp := range st.pipeline.Desc().RootParameters {
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
			desc := heap.At(idx + k)
			if desc == nil || desc.Kind == core.DescriptorEmpty {
				return fmt.Errorf("root parameter %d descriptor %d is empty", param, idx+k)
			}
			if rp.Type == gpu.RootCBVTable && desc.Kind != core.DescriptorCBV {
				return fmt.Errorf("root parameter %d expects a CBV", param)
			}
		}
		if rp.Type == gpu.RootCBVTable {
			rec.Constants[param] = append([]byte(nil), heap.At(idx).Bytes()...)
		}
	}

	d.draws = append(d.draws, rec)
	d.stats.DrawCalls++
	d.stats.IndicesDrawn += c.IndexCount
	return nil
}
