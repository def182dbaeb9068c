package pathtracer

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Material decides how a ray continues after a hit. ok is false when the ray
// is absorbed.
type Material interface {
	Scatter(in Ray, rec HitRecord, rng *rand.Rand) (attenuation mgl64.Vec3, scattered Ray, ok bool)
}

// Lambertian is an ideal diffuse surface.
type Lambertian struct {
	Albedo mgl64.Vec3
}

// Scatter implements Material.
func (l Lambertian) Scatter(_ Ray, rec HitRecord, rng *rand.Rand) (mgl64.Vec3, Ray, bool) {
	dir := rec.Normal.Add(randomUnitVector(rng))
	if nearZero(dir) {
		dir = rec.Normal
	}
	return l.Albedo, Ray{Origin: rec.Point, Direction: dir}, true
}

// Metal reflects with a fuzz in [0, 1].
type Metal struct {
	Albedo mgl64.Vec3
	Fuzz   float64
}

// NewMetal clamps fuzz to 1.
func NewMetal(albedo mgl64.Vec3, fuzz float64) Metal {
	return Metal{Albedo: albedo, Fuzz: math.Min(fuzz, 1)}
}

// Scatter implements Material. Rays fuzzed below the surface are absorbed.
func (m Metal) Scatter(in Ray, rec HitRecord, rng *rand.Rand) (mgl64.Vec3, Ray, bool) {
	reflected := reflect(in.Direction, rec.Normal).Normalize()
	reflected = reflected.Add(randomUnitVector(rng).Mul(m.Fuzz))
	scattered := Ray{Origin: rec.Point, Direction: reflected}
	return m.Albedo, scattered, scattered.Direction.Dot(rec.Normal) > 0
}

// Dielectric refracts or reflects by Schlick's approximation and never
// absorbs.
type Dielectric struct {
	RefractionIndex float64
}

// Scatter implements Material.
func (d Dielectric) Scatter(in Ray, rec HitRecord, rng *rand.Rand) (mgl64.Vec3, Ray, bool) {
	ri := d.RefractionIndex
	if rec.FrontFace {
		ri = 1 / ri
	}

	unit := in.Direction.Normalize()
	cosTheta := math.Min(unit.Mul(-1).Dot(rec.Normal), 1)
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)

	var dir mgl64.Vec3
	if cannotRefract(ri, sinTheta) || reflectance(cosTheta, ri) > rng.Float64() {
		dir = reflect(unit, rec.Normal)
	} else {
		dir = refract(unit, rec.Normal, ri)
	}
	return mgl64.Vec3{1, 1, 1}, Ray{Origin: rec.Point, Direction: dir}, true
}

// cannotRefract reports total internal reflection.
func cannotRefract(etaRatio, sinTheta float64) bool {
	return etaRatio*sinTheta > 1
}

// reflectance is Schlick's approximation of the Fresnel factor.
func reflectance(cosine, etaRatio float64) float64 {
	r0 := (1 - etaRatio) / (1 + etaRatio)
	r0 *= r0
	return r0 + (1-r0)*math.Pow(1-cosine, 5)
}
