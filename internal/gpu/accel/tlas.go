package accel

import "github.com/go-gl/mathgl/mgl32"

// Instance places a BLAS in the world.
type Instance struct {
	Transform  mgl32.Mat4 // object to world
	InstanceID uint32
	Mask       uint8
	HitGroup   uint32
	BLAS       *BLAS
}

type instanceRecord struct {
	Instance
	worldToObject mgl32.Mat4
	bounds        AABB
}

// TLAS is a top-level structure over instances. It is immutable once built.
type TLAS struct {
	instances []instanceRecord
	nodes     []node
	order     []int32
}

// Hit describes the closest intersection of a ray with a TLAS.
type Hit struct {
	T             float32
	InstanceIndex int
	InstanceID    uint32
	HitGroup      uint32
	Primitive     uint32
	// Barycentrics weight the second and third vertex of the triangle.
	Barycentrics  mgl32.Vec2
	ObjectToWorld mgl32.Mat4
	WorldToObject mgl32.Mat4
}

// BuildTLAS builds the structure. Instances without geometry are skipped but
// keep their position in the input for InstanceIndex.
func BuildTLAS(instances []Instance) *TLAS {
	t := &TLAS{instances: make([]instanceRecord, len(instances))}

	items := make([]boundedItem, 0, len(instances))
	for i, inst := range instances {
		rec := instanceRecord{Instance: inst, worldToObject: inst.Transform.Inv(), bounds: EmptyAABB()}
		if inst.BLAS != nil && inst.BLAS.TriangleCount() > 0 {
			rec.bounds = inst.BLAS.Bounds().Transform(inst.Transform)
			items = append(items, boundedItem{bounds: rec.bounds, center: rec.bounds.Center(), index: int32(i)})
		}
		t.instances[i] = rec
	}
	t.nodes, t.order = buildBVH(items)
	return t
}

// InstanceCount returns the number of instances given to BuildTLAS.
func (t *TLAS) InstanceCount() int {
	return len(t.instances)
}

// Intersect returns the closest hit in (tmin, tmax) among instances whose
// mask shares a bit with mask.
func (t *TLAS) Intersect(origin, dir mgl32.Vec3, tmin, tmax float32, mask uint8) (Hit, bool) {
	var best Hit
	found := false

	traverse(t.nodes, origin, dir, tmin, tmax, func(n *node, closest float32) float32 {
		for _, idx := range t.order[n.first : n.first+n.count] {
			rec := &t.instances[idx]
			if rec.Mask&mask == 0 {
				continue
			}

			// The object-space direction is not renormalized so distances
			// stay in world units.
			o := mgl32.TransformCoordinate(origin, rec.worldToObject)
			d := mgl32.TransformNormal(dir, rec.worldToObject)
			h, ok := rec.BLAS.intersect(o, d, tmin, closest)
			if !ok {
				continue
			}

			closest = h.t
			best = Hit{
				T:             h.t,
				InstanceIndex: int(idx),
				InstanceID:    rec.InstanceID,
				HitGroup:      rec.HitGroup,
				Primitive:     uint32(h.primitive),
				Barycentrics:  mgl32.Vec2{h.u, h.v},
				ObjectToWorld: rec.Transform,
				WorldToObject: rec.worldToObject,
			}
			found = true
		}
		return closest
	})
	return best, found
}
