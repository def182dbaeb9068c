package accel

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrBadGeometry reports index data that does not describe whole triangles
// inside the vertex range.
var ErrBadGeometry = errors.New("accel: malformed triangle geometry")

// BLAS is a bottom-level structure over one mesh's triangles in object space.
type BLAS struct {
	positions []mgl32.Vec3
	indices   []uint32
	nodes     []node
	order     []int32
	bounds    AABB
}

// BuildBLAS builds the structure. The inputs are copied.
func BuildBLAS(positions []mgl32.Vec3, indices []uint32) (*BLAS, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d indices is not a multiple of 3", ErrBadGeometry, len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= len(positions) {
			return nil, fmt.Errorf("%w: index %d at %d exceeds %d vertices", ErrBadGeometry, idx, i, len(positions))
		}
	}

	b := &BLAS{
		positions: append([]mgl32.Vec3(nil), positions...),
		indices:   append([]uint32(nil), indices...),
		bounds:    EmptyAABB(),
	}

	items := make([]boundedItem, len(indices)/3)
	for tri := range items {
		box := EmptyAABB()
		for k := 0; k < 3; k++ {
			box = box.Extend(b.positions[b.indices[tri*3+k]])
		}
		items[tri] = boundedItem{bounds: box, center: box.Center(), index: int32(tri)}
		b.bounds = b.bounds.Union(box)
	}
	b.nodes, b.order = buildBVH(items)
	return b, nil
}

// Bounds returns the object-space bounds.
func (b *BLAS) Bounds() AABB {
	return b.bounds
}

// TriangleCount returns the number of triangles.
func (b *BLAS) TriangleCount() int {
	return len(b.indices) / 3
}

// NodeCount returns the number of BVH nodes.
func (b *BLAS) NodeCount() int {
	return len(b.nodes)
}

// triangleHit is the closest hit found inside one BLAS.
type triangleHit struct {
	t         float32
	u, v      float32
	primitive int32
}

// intersect returns the closest triangle hit in (tmin, tmax).
func (b *BLAS) intersect(origin, dir mgl32.Vec3, tmin, tmax float32) (triangleHit, bool) {
	var best triangleHit
	found := false

	traverse(b.nodes, origin, dir, tmin, tmax, func(n *node, closest float32) float32 {
		for _, tri := range b.order[n.first : n.first+n.count] {
			p0 := b.positions[b.indices[tri*3]]
			p1 := b.positions[b.indices[tri*3+1]]
			p2 := b.positions[b.indices[tri*3+2]]
			if t, u, v, ok := intersectTriangle(origin, dir, p0, p1, p2, tmin, closest); ok {
				closest = t
				best = triangleHit{t: t, u: u, v: v, primitive: tri}
				found = true
			}
		}
		return closest
	})
	return best, found
}

// intersectTriangle is the Möller–Trumbore test without back-face culling.
// u and v weight the second and third vertex.
func intersectTriangle(origin, dir, p0, p1, p2 mgl32.Vec3, tmin, tmax float32) (t, u, v float32, ok bool) {
	const epsilon = 1e-8

	e1 := p1.Sub(p0)
	e2 := p2.Sub(p0)
	pv := dir.Cross(e2)
	det := e1.Dot(pv)
	if math32.Abs(det) < epsilon {
		return 0, 0, 0, false
	}
	invDet := 1 / det

	tv := origin.Sub(p0)
	u = tv.Dot(pv) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	qv := tv.Cross(e1)
	v = dir.Dot(qv) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = e2.Dot(qv) * invDet
	if t <= tmin || t >= tmax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
