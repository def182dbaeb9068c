package core

import (
	"fmt"
	"runtime"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// rayContext serves one dispatch. It is read-only while rows run, so worker
// goroutines share it.
type rayContext struct {
	width, height int
	heap          *Heap
	tlas          *AccelerationStructure
	constants     [][]byte
}

func (c *rayContext) DispatchSize() (int, int) { return c.width, c.height }

func (c *rayContext) Constants(i int) []byte {
	if i < 0 || i >= len(c.constants) {
		return nil
	}
	return c.constants[i]
}

func (c *rayContext) BufferAt(index int) ([]byte, int, bool) {
	d := c.heap.At(index)
	if d == nil || d.Kind != DescriptorBufferSRV {
		return nil, 0, false
	}
	return d.Bytes(), d.Stride, true
}

func (c *rayContext) TextureAt(index int) (gpu.TextureView, bool) {
	d := c.heap.At(index)
	if d == nil || d.Kind != DescriptorTextureSRV || d.Texture == nil {
		return gpu.TextureView{}, false
	}
	return d.Texture.View(), true
}

func (c *rayContext) TraceRay(ray gpu.Ray, tmin, tmax float32, mask uint8) (gpu.RayHit, bool) {
	if c.tlas == nil || c.tlas.TLAS == nil {
		return gpu.RayHit{}, false
	}
	h, ok := c.tlas.TLAS.Intersect(ray.Origin, ray.Direction, tmin, tmax, mask)
	if !ok {
		return gpu.RayHit{}, false
	}
	return gpu.RayHit{
		T:             h.T,
		InstanceID:    h.InstanceID,
		HitGroupIndex: h.HitGroup,
		Primitive:     h.Primitive,
		Barycentrics:  h.Barycentrics,
		ObjectToWorld: h.ObjectToWorld,
		WorldToObject: h.WorldToObject,
	}, true
}

// Dispatch runs desc.Kernel for every pixel against the bound heap and
// writes the result into the output UAV. Rows are shaded concurrently.
func (s *Store) Dispatch(heap *Heap, desc gpu.DispatchRaysDesc) (*Texture, error) {
	if heap == nil {
		return nil, fmt.Errorf("dispatch rays: no descriptor heap bound")
	}
	if desc.Kernel == nil {
		return nil, fmt.Errorf("dispatch rays: no kernel")
	}

	outHeap, outIdx, err := s.ResolveGPU(desc.Output)
	if err != nil {
		return nil, fmt.Errorf("dispatch rays output: %w", err)
	}
	out := outHeap.At(outIdx)
	if out.Kind != DescriptorTextureUAV {
		return nil, fmt.Errorf("dispatch rays output: descriptor %d is not a texture UAV", outIdx)
	}
	target := out.Texture

	ctx := &rayContext{width: desc.Width, height: desc.Height, heap: heap}
	if desc.Scene != nil {
		if ctx.tlas, err = s.Structure(desc.Scene.GPUAddress()); err != nil {
			return nil, fmt.Errorf("dispatch rays scene: %w", err)
		}
	}
	for i, h := range desc.Constants {
		cbHeap, idx, err := s.ResolveGPU(h)
		if err != nil {
			return nil, fmt.Errorf("dispatch rays constants %d: %w", i, err)
		}
		d := cbHeap.At(idx)
		if d.Kind != DescriptorCBV {
			return nil, fmt.Errorf("dispatch rays constants %d: descriptor %d is not a CBV", i, idx)
		}
		ctx.constants = append(ctx.constants, d.Bytes())
	}

	w := min(desc.Width, target.width)
	h := min(desc.Height, target.height)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < h; y++ {
		g.Go(func() error {
			for x := 0; x < w; x++ {
				c := desc.Kernel.Shade(ctx, x, y)
				target.SetPixel(x, y, c)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return target, nil
}

// Resolve converts a linear float image into 8-bit display values with the
// same gamma curve the CPU path tracer writes: sqrt, clamp to [0, 0.999],
// scale by 256.
func Resolve(src, dst *Texture) {
	w := min(src.width, dst.width)
	h := min(src.height, dst.height)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.Pixel(x, y)
			if src.format == gpu.FormatRGBA32F {
				c = mgl32.Vec4{GammaByte(c[0]), GammaByte(c[1]), GammaByte(c[2]), 1}
			}
			dst.SetPixel(x, y, c)
		}
	}
}

// GammaByte maps a linear channel to the display value as a [0,1] float.
func GammaByte(v float32) float32 {
	if v > 0 {
		v = math32.Sqrt(v)
	} else {
		v = 0
	}
	if v > 0.999 {
		v = 0.999
	}
	return float32(int(256*v)) / 255
}
