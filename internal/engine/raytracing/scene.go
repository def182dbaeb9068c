// Package raytracing keeps the acceleration structures of a scene and
// dispatches the path-tracing ray kernel into an output texture.
package raytracing

import (
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/engine/entity"
	"github.com/Faultbox/prism/internal/engine/mesh"
	"github.com/Faultbox/prism/internal/engine/ring"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
	pmath "github.com/Faultbox/prism/pkg/math"
)

// MaxInstances is the number of per-instance material records uploaded with
// every dispatch. Entities past it are left out of the TLAS.
const MaxInstances = 100

// Fixed descriptor slots. The output UAV comes first, then two geometry
// views (vertices, indices) per hit group.
const (
	OutputSlot   = 0
	GeometryBase = 1
)

// FixedSlots returns how many fixed descriptors a scene with up to
// hitGroups distinct meshes needs.
func FixedSlots(hitGroups int) int {
	return GeometryBase + 2*hitGroups
}

// Options tunes the ray kernel.
type Options struct {
	RaysPerPixel int
	MaxDepth     int
}

type blasEntry struct {
	as       gpu.AccelerationStructure
	hitGroup int
}

// Scene owns one BLAS per mesh, built the first time an entity using the
// mesh is seen, and a TLAS rebuilt from the entity list every frame.
type Scene struct {
	dev  gpu.Device
	heap *ring.DescriptorHeapRing
	cbs  *ring.ConstantBufferRing
	opts Options

	blas         map[uuid.UUID]*blasEntry
	maxHitGroups int
	tlas         gpu.AccelerationStructure
	instances    []gpu.InstanceDesc
	materials    []byte

	output gpu.Texture
	kernel Kernel
	frame  uint32
	log    *zap.Logger
}

// NewScene creates a scene whose geometry views use the fixed region of
// heap. The region must hold FixedSlots(maxHitGroups) descriptors.
func NewScene(dev gpu.Device, heap *ring.DescriptorHeapRing, cbs *ring.ConstantBufferRing, maxHitGroups int, opts Options) (*Scene, error) {
	if maxHitGroups <= 0 {
		return nil, fmt.Errorf("ray tracing scene needs at least one hit group")
	}
	if opts.RaysPerPixel <= 0 {
		opts.RaysPerPixel = 1
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	tlas, err := dev.CreateAccelerationStructure(gpu.TopLevel)
	if err != nil {
		return nil, fmt.Errorf("create TLAS: %w", err)
	}
	return &Scene{
		dev:          dev,
		heap:         heap,
		cbs:          cbs,
		opts:         opts,
		blas:         make(map[uuid.UUID]*blasEntry),
		maxHitGroups: maxHitGroups,
		tlas:         tlas,
		instances:    make([]gpu.InstanceDesc, 0, MaxInstances),
		materials:    make([]byte, MaxInstances*MaterialRecordSize),
		log:          logger.Named("raytracing"),
	}, nil
}

// Resize recreates the output texture and its UAV for a new back-buffer size.
func (s *Scene) Resize(width, height int) error {
	tex, err := s.dev.CreateTexture(gpu.TextureDesc{
		Width:           width,
		Height:          height,
		Format:          gpu.FormatRGBA32F,
		UnorderedAccess: true,
	}, nil)
	if err != nil {
		return fmt.Errorf("create ray tracing output: %w", err)
	}
	if err := s.dev.CreateTextureUAV(tex, s.heap.FixedCPU(OutputSlot)); err != nil {
		return fmt.Errorf("create ray tracing output view: %w", err)
	}
	s.output = tex
	s.log.Debug("output resized", zap.Int("width", width), zap.Int("height", height))
	return nil
}

// Output returns the output texture.
func (s *Scene) Output() gpu.Texture { return s.output }

// HitGroups returns the number of meshes with a BLAS.
func (s *Scene) HitGroups() int { return len(s.blas) }

// Instances returns the instance records of the last BuildTLAS.
func (s *Scene) Instances() []gpu.InstanceDesc { return s.instances }

// TLAS returns the top-level structure.
func (s *Scene) TLAS() gpu.AccelerationStructure { return s.tlas }

// HitGroup returns the hit group of a mesh and whether its BLAS exists.
func (s *Scene) HitGroup(m *mesh.Mesh) (int, bool) {
	e, ok := s.blas[m.ID()]
	if !ok {
		return 0, false
	}
	return e.hitGroup, true
}

// Reset forgets every BLAS so the hit groups and geometry slots can be
// reused by a new set of meshes.
func (s *Scene) Reset() {
	clear(s.blas)
	s.instances = s.instances[:0]
}

func (s *Scene) ensureBLAS(cl gpu.CommandList, m *mesh.Mesh) (*blasEntry, error) {
	if e, ok := s.blas[m.ID()]; ok {
		return e, nil
	}
	hg := len(s.blas)
	if hg >= s.maxHitGroups {
		return nil, fmt.Errorf("%w: mesh %q needs hit group %d of %d",
			gpu.ErrOutOfDescriptors, m.Name(), hg, s.maxHitGroups)
	}

	as, err := s.dev.CreateAccelerationStructure(gpu.BottomLevel)
	if err != nil {
		return nil, fmt.Errorf("create BLAS for %q: %w", m.Name(), err)
	}
	cl.BuildBottomLevel(as, []gpu.TriangleGeometry{m.Geometry()}, gpu.BuildPreferFastTrace)

	if _, err := s.heap.CopyToFixed(GeometryBase+2*hg, m.GeometrySRVs(), 2); err != nil {
		return nil, fmt.Errorf("geometry views for %q: %w", m.Name(), err)
	}

	e := &blasEntry{as: as, hitGroup: hg}
	s.blas[m.ID()] = e
	s.log.Debug("built BLAS", zap.String("mesh", m.Name()), zap.Int("hitGroup", hg),
		zap.Int("triangles", m.IndexCount()/3))
	return e, nil
}

// BuildTLAS records a full rebuild of the TLAS over entities, building the
// BLAS of any mesh seen for the first time. The instance ID of an entity is
// its index in the slice.
func (s *Scene) BuildTLAS(cl gpu.CommandList, entities []*entity.Entity) error {
	s.instances = s.instances[:0]
	clear(s.materials)

	if len(entities) > MaxInstances {
		s.log.Warn("too many ray tracing instances",
			zap.Int("entities", len(entities)), zap.Int("max", MaxInstances))
		entities = entities[:MaxInstances]
	}

	for i, e := range entities {
		blas, err := s.ensureBLAS(cl, e.Mesh)
		if err != nil {
			return err
		}
		s.instances = append(s.instances, gpu.InstanceDesc{
			Transform:             pmath.Rows3x4(e.Transform.WorldMatrix()),
			InstanceID:            uint32(i),
			InstanceMask:          0xFF,
			HitGroupIndex:         uint32(blas.hitGroup),
			AccelerationStructure: blas.as.GPUAddress(),
		})
		rec := materialRecordFor(e.Material, s.heap)
		copy(s.materials[i*MaterialRecordSize:], rec.encode())
	}

	cl.BuildTopLevel(s.tlas, s.instances, gpu.BuildPreferFastTrace)
	return nil
}

// Dispatch writes the frame constants, traces width x height rays into the
// output texture and copies the result into the back buffer. The back buffer
// must be in bbState and is returned to it; the output ends in unordered
// access again.
func (s *Scene) Dispatch(cl gpu.CommandList, invViewProj mgl32.Mat4, cameraPos mgl32.Vec3, backBuffer gpu.Texture, bbState gpu.ResourceState) error {
	if s.output == nil {
		return fmt.Errorf("dispatch before Resize")
	}
	width, height := s.output.Width(), s.output.Height()

	data := SceneData{
		InverseViewProjection: invViewProj,
		CameraPosition:        cameraPos,
		RaysPerPixel:          int32(s.opts.RaysPerPixel),
		FrameIndex:            s.frame,
		MaxDepth:              uint32(s.opts.MaxDepth),
		GeometryBase:          uint32(s.heap.FixedIndex(GeometryBase)),
		InstanceCount:         uint32(len(s.instances)),
	}
	sceneCB, err := s.cbs.FillAndGetGPUHandle(data.encode())
	if err != nil {
		return fmt.Errorf("scene constants: %w", err)
	}
	materialCB, err := s.cbs.FillAndGetGPUHandle(s.materials)
	if err != nil {
		return fmt.Errorf("instance materials: %w", err)
	}
	s.frame++

	cl.SetDescriptorHeap(s.heap.Heap())
	cl.DispatchRays(gpu.DispatchRaysDesc{
		Kernel:    s.kernel,
		Width:     width,
		Height:    height,
		Scene:     s.tlas,
		Output:    s.heap.FixedGPU(OutputSlot),
		Constants: []gpu.GPUDescriptorHandle{sceneCB, materialCB},
	})
	cl.UAVBarrier(s.output)

	cl.Transition(s.output, gpu.StateUnorderedAccess, gpu.StateCopySource)
	cl.Transition(backBuffer, bbState, gpu.StateCopyDest)
	cl.CopyToBackBuffer(s.output)
	cl.Transition(backBuffer, gpu.StateCopyDest, bbState)
	cl.Transition(s.output, gpu.StateCopySource, gpu.StateUnorderedAccess)
	return nil
}

// SceneData is the first constant buffer of a dispatch.
type SceneData struct {
	InverseViewProjection mgl32.Mat4
	CameraPosition        mgl32.Vec3
	RaysPerPixel          int32
	FrameIndex            uint32
	MaxDepth              uint32
	GeometryBase          uint32
	InstanceCount         uint32
}

type sceneDataGPU struct {
	InverseViewProjection [16]float32
	CameraPosition        [3]float32
	RaysPerPixel          int32
	FrameIndex            uint32
	MaxDepth              uint32
	GeometryBase          uint32
	InstanceCount         uint32
}

// SceneDataSize is the packed size of SceneData.
const SceneDataSize = 96

func (d SceneData) encode() []byte {
	b, err := binary.Append(nil, binary.LittleEndian, sceneDataGPU{
		InverseViewProjection: d.InverseViewProjection,
		CameraPosition:        d.CameraPosition,
		RaysPerPixel:          d.RaysPerPixel,
		FrameIndex:            d.FrameIndex,
		MaxDepth:              d.MaxDepth,
		GeometryBase:          d.GeometryBase,
		InstanceCount:         d.InstanceCount,
	})
	if err != nil {
		panic(err) // fixed-size struct
	}
	return b
}

func decodeSceneData(b []byte) (SceneData, bool) {
	var g sceneDataGPU
	if _, err := binary.Decode(b, binary.LittleEndian, &g); err != nil {
		return SceneData{}, false
	}
	return SceneData{
		InverseViewProjection: g.InverseViewProjection,
		CameraPosition:        g.CameraPosition,
		RaysPerPixel:          g.RaysPerPixel,
		FrameIndex:            g.FrameIndex,
		MaxDepth:              g.MaxDepth,
		GeometryBase:          g.GeometryBase,
		InstanceCount:         g.InstanceCount,
	}, true
}
