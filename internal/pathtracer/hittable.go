package pathtracer

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// HitRecord describes the closest intersection found so far. Normal always
// faces against the incoming ray; FrontFace reports whether that is the
// outward side.
type HitRecord struct {
	Point     mgl64.Vec3
	Normal    mgl64.Vec3
	Material  Material
	T         float64
	FrontFace bool
}

// SetFaceNormal orients the record's normal against r. outward must be unit
// length.
func (h *HitRecord) SetFaceNormal(r Ray, outward mgl64.Vec3) {
	h.FrontFace = r.Direction.Dot(outward) < 0
	if h.FrontFace {
		h.Normal = outward
	} else {
		h.Normal = outward.Mul(-1)
	}
}

// Hittable is anything a ray can intersect.
type Hittable interface {
	Hit(r Ray, rayT Interval) (HitRecord, bool)
}

// HittableList intersects its members linearly and keeps the closest hit.
type HittableList struct {
	Objects []Hittable
}

// Add appends an object.
func (l *HittableList) Add(h Hittable) {
	l.Objects = append(l.Objects, h)
}

// Len returns the number of objects.
func (l *HittableList) Len() int { return len(l.Objects) }

// Hit implements Hittable.
func (l *HittableList) Hit(r Ray, rayT Interval) (HitRecord, bool) {
	var closest HitRecord
	hit := false
	closestSoFar := rayT.Max
	for _, o := range l.Objects {
		if rec, ok := o.Hit(r, Interval{rayT.Min, closestSoFar}); ok {
			hit = true
			closestSoFar = rec.T
			closest = rec
		}
	}
	return closest, hit
}

// Sphere is a sphere with a material. Negative radii are treated as zero.
type Sphere struct {
	Center   mgl64.Vec3
	Radius   float64
	Material Material
}

// NewSphere creates a sphere.
func NewSphere(center mgl64.Vec3, radius float64, m Material) *Sphere {
	return &Sphere{Center: center, Radius: math.Max(0, radius), Material: m}
}

// Hit implements Hittable. It solves |O + tD - C|^2 = r^2 in the half-b
// form and takes the nearer root strictly inside rayT, then the farther one.
func (s *Sphere) Hit(r Ray, rayT Interval) (HitRecord, bool) {
	oc := s.Center.Sub(r.Origin)
	a := r.Direction.Dot(r.Direction)
	h := r.Direction.Dot(oc)
	c := oc.Dot(oc) - s.Radius*s.Radius

	discriminant := h*h - a*c
	if discriminant < 0 {
		return HitRecord{}, false
	}
	sqrtd := math.Sqrt(discriminant)

	root := (h - sqrtd) / a
	if !rayT.Surrounds(root) {
		root = (h + sqrtd) / a
		if !rayT.Surrounds(root) {
			return HitRecord{}, false
		}
	}

	rec := HitRecord{T: root, Point: r.At(root), Material: s.Material}
	rec.SetFaceNormal(r, rec.Point.Sub(s.Center).Mul(1/s.Radius))
	return rec, true
}
