// Package entity binds a transform, a mesh and a material into a drawable
// scene object.
package entity

import (
	"github.com/google/uuid"

	"github.com/Faultbox/prism/internal/engine/material"
	"github.com/Faultbox/prism/internal/engine/mesh"
	"github.com/Faultbox/prism/internal/engine/transform"
	"github.com/Faultbox/prism/internal/gpu"
)

// Entity is a named Transform, Mesh and Material triple. Meshes and materials
// are shared by pointer between entities; each entity gets its own transform
// unless one is passed in.
type Entity struct {
	ID        uuid.UUID
	Name      string
	Transform *transform.Transform
	Mesh      *mesh.Mesh
	Material  *material.Material
}

// New creates an entity with an identity transform.
func New(name string, m *mesh.Mesh, mat *material.Material) *Entity {
	return &Entity{
		ID:        uuid.New(),
		Name:      name,
		Transform: transform.New(),
		Mesh:      m,
		Material:  mat,
	}
}

// Root parameters of the opaque pipeline.
const (
	ParamVertexConstants = iota // b0 of the vertex stage
	ParamPixelConstants         // b0 of the pixel stage
	ParamTextures               // t0..t3, the material's texture run
)

// RootLayout is the root layout opaque pipelines are created with.
var RootLayout = []gpu.RootParameter{
	{Type: gpu.RootCBVTable, Count: 1},
	{Type: gpu.RootCBVTable, Count: 1},
	{Type: gpu.RootSRVTable, Count: 4},
}

// Draw binds the material pipeline, the two constant buffers and the
// material's texture run, then draws the mesh.
func (e *Entity) Draw(cl gpu.CommandList, vs, ps gpu.GPUDescriptorHandle) {
	cl.SetPipeline(e.Material.Pipeline())
	cl.SetRootDescriptorTable(ParamVertexConstants, vs)
	cl.SetRootDescriptorTable(ParamPixelConstants, ps)
	cl.SetRootDescriptorTable(ParamTextures, e.Material.SRVs())
	e.Mesh.Draw(cl)
}

// Manager keeps entities in insertion order. The order is stable, so an
// entity's index can serve as its ray-tracing instance ID.
type Manager struct {
	entities []*Entity
	byName   map[string]*Entity
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{byName: make(map[string]*Entity)}
}

// Add appends an entity. A later entity with the same name shadows the
// earlier one in Get.
func (m *Manager) Add(e *Entity) {
	m.entities = append(m.entities, e)
	m.byName[e.Name] = e
}

// Remove deletes an entity by ID and reports whether it was present.
func (m *Manager) Remove(id uuid.UUID) bool {
	for i, e := range m.entities {
		if e.ID != id {
			continue
		}
		m.entities = append(m.entities[:i], m.entities[i+1:]...)
		if m.byName[e.Name] == e {
			delete(m.byName, e.Name)
		}
		return true
	}
	return false
}

// Get returns an entity by name.
func (m *Manager) Get(name string) *Entity {
	return m.byName[name]
}

// All returns the entities in order. Callers must not modify the slice.
func (m *Manager) All() []*Entity {
	return m.entities
}

// Count returns the number of entities.
func (m *Manager) Count() int {
	return len(m.entities)
}

// ClearAll removes every entity.
func (m *Manager) ClearAll() {
	m.entities = nil
	m.byName = make(map[string]*Entity)
}
