// Package mesh holds indexed triangle geometry and its GPU buffers.
package mesh

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/engine/ring"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
)

// Mesh is immutable after construction. Its ID identifies it across the
// engine, most importantly as the key of the ray tracer's BLAS cache.
type Mesh struct {
	id   uuid.UUID
	name string

	vertices []Vertex
	indices  []uint32

	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer

	// Staging SRVs over the vertex (first) and index (second) buffers.
	geometrySRVs gpu.CPUDescriptorHandle
}

// New uploads geometry into static buffers and creates the staging SRVs the
// ray tracer copies into its geometry table.
func New(dev gpu.Device, staging *ring.StagingHeap, name string, data *Data) (*Mesh, error) {
	if len(data.Vertices) == 0 || len(data.Indices) == 0 {
		return nil, fmt.Errorf("mesh %q: empty geometry", name)
	}
	for _, i := range data.Indices {
		if int(i) >= len(data.Vertices) {
			return nil, fmt.Errorf("mesh %q: index %d out of range of %d vertices", name, i, len(data.Vertices))
		}
	}

	m := &Mesh{
		id:       uuid.New(),
		name:     name,
		vertices: data.Vertices,
		indices:  data.Indices,
	}

	var err error
	if m.vertexBuffer, err = dev.CreateStaticBuffer(EncodeVertices(m.vertices)); err != nil {
		return nil, fmt.Errorf("mesh %q vertex buffer: %w", name, err)
	}
	if m.indexBuffer, err = dev.CreateStaticBuffer(EncodeIndices(m.indices)); err != nil {
		return nil, fmt.Errorf("mesh %q index buffer: %w", name, err)
	}

	if m.geometrySRVs, err = staging.Allocate(2); err != nil {
		return nil, fmt.Errorf("mesh %q: %w", name, err)
	}
	if err := dev.CreateBufferSRV(gpu.BufferSRVDesc{
		Buffer:              m.vertexBuffer,
		NumElements:         len(m.vertices),
		StructureByteStride: VertexStride,
	}, m.geometrySRVs); err != nil {
		return nil, fmt.Errorf("mesh %q vertex SRV: %w", name, err)
	}
	if err := dev.CreateBufferSRV(gpu.BufferSRVDesc{
		Buffer:              m.indexBuffer,
		NumElements:         len(m.indices),
		StructureByteStride: 4,
	}, m.geometrySRVs.Offset(1, dev.DescriptorIncrement())); err != nil {
		return nil, fmt.Errorf("mesh %q index SRV: %w", name, err)
	}

	logger.Debug("mesh created",
		zap.String("name", name),
		zap.Stringer("id", m.id),
		zap.Int("vertices", len(m.vertices)),
		zap.Int("triangles", len(m.indices)/3))
	return m, nil
}

// ID returns the mesh identity.
func (m *Mesh) ID() uuid.UUID { return m.id }

// Name returns the mesh name.
func (m *Mesh) Name() string { return m.name }

// Vertices returns the CPU copy of the vertices. Callers must not modify it.
func (m *Mesh) Vertices() []Vertex { return m.vertices }

// Indices returns the CPU copy of the indices. Callers must not modify it.
func (m *Mesh) Indices() []uint32 { return m.indices }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.vertices) }

// IndexCount returns the number of indices.
func (m *Mesh) IndexCount() int { return len(m.indices) }

// VertexBuffer returns the GPU vertex buffer.
func (m *Mesh) VertexBuffer() gpu.Buffer { return m.vertexBuffer }

// IndexBuffer returns the GPU index buffer.
func (m *Mesh) IndexBuffer() gpu.Buffer { return m.indexBuffer }

// GeometrySRVs returns the first of two consecutive staging descriptors:
// the vertex buffer SRV followed by the index buffer SRV.
func (m *Mesh) GeometrySRVs() gpu.CPUDescriptorHandle { return m.geometrySRVs }

// Geometry describes the mesh for a bottom-level acceleration structure build.
func (m *Mesh) Geometry() gpu.TriangleGeometry {
	return gpu.TriangleGeometry{
		VertexBuffer: m.vertexBuffer,
		VertexStride: VertexStride,
		VertexCount:  len(m.vertices),
		IndexBuffer:  m.indexBuffer,
		IndexCount:   len(m.indices),
		Opaque:       true,
	}
}

// Draw records the buffer bindings and an indexed draw of the whole mesh.
func (m *Mesh) Draw(cl gpu.CommandList) {
	cl.SetVertexBuffer(m.vertexBuffer, VertexStride)
	cl.SetIndexBuffer(m.indexBuffer)
	cl.DrawIndexed(len(m.indices), 0, 0)
}
