package particles

import (
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/prism/internal/gpu"
)

// Root parameters of the particle pipeline.
const (
	ParamConstants = iota // b0: view, projection, timing
	ParamParticles        // t0: structured particle buffer
	ParamTextures         // t1..t4: material texture run
)

// RootLayout is the root layout particle pipelines are created with.
var RootLayout = []gpu.RootParameter{
	{Type: gpu.RootCBVTable, Count: 1},
	{Type: gpu.RootSRVTable, Count: 1},
	{Type: gpu.RootSRVTable, Count: 4},
}

// ConstantAllocator places per-draw constants in the frame's ring.
type ConstantAllocator interface {
	FillAndGetGPUHandle(data []byte) (gpu.GPUDescriptorHandle, error)
}

// DescriptorCopier copies staging descriptors onto the shader-visible heap.
type DescriptorCopier interface {
	CopySRVs(src gpu.CPUDescriptorHandle, count int) (gpu.GPUDescriptorHandle, error)
}

type vsConstants struct {
	View            [16]float32
	Projection      [16]float32
	ColorTint       [4]float32
	BaseOrientation [3]float32
	Lifetime        float32
	CurrentTime     float32
	Scale           float32
	_               [2]float32
}

// Constants returns the vertex-stage constants for a draw at time now.
func (e *Emitter) Constants(view, projection mgl32.Mat4, now float32) []byte {
	tint := mgl32.Vec4{1, 1, 1, 1}
	if e.Material != nil {
		tint = e.Material.ColorTint().Vec4(1)
	}
	b, err := binary.Append(nil, binary.LittleEndian, vsConstants{
		View:            view,
		Projection:      projection,
		ColorTint:       tint,
		BaseOrientation: e.Transform.Rotation(),
		Lifetime:        e.lifetime,
		CurrentTime:     now,
		Scale:           e.Transform.ScaleFactors().X(),
	})
	if err != nil {
		panic(err) // fixed-size struct
	}
	return b
}

// Draw uploads the live particles and records one indexed draw of
// Count()*6 indices. Nothing is recorded when no particle is alive.
func (e *Emitter) Draw(cl gpu.CommandList, cb ConstantAllocator, heap DescriptorCopier, view, projection mgl32.Mat4, now float32) error {
	n := e.Upload()
	if n == 0 {
		return nil
	}
	if e.Material == nil || !e.Material.Finalized() {
		return fmt.Errorf("emitter material is not finalized")
	}

	constants, err := cb.FillAndGetGPUHandle(e.Constants(view, projection, now))
	if err != nil {
		return fmt.Errorf("particle constants: %w", err)
	}
	particles, err := heap.CopySRVs(e.srv, 1)
	if err != nil {
		return fmt.Errorf("particle view: %w", err)
	}

	cl.SetPipeline(e.Material.Pipeline())
	cl.SetRootDescriptorTable(ParamConstants, constants)
	cl.SetRootDescriptorTable(ParamParticles, particles)
	cl.SetRootDescriptorTable(ParamTextures, e.Material.SRVs())
	cl.SetIndexBuffer(e.indexBuffer)
	cl.DrawIndexed(n*6, 0, 0)
	return nil
}
