// Package pathtracer is the offline reference integrator: spheres with
// Lambertian, metal and dielectric materials, a thin-lens camera and a
// Monte-Carlo ray colour loop. Its output defines what the real-time ray
// kernel aims to match.
package pathtracer

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is a half line from Origin along Direction. Direction need not be unit
// length.
type Ray struct {
	Origin, Direction mgl64.Vec3
}

// At returns the point at parameter t.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Interval is a range of ray parameters.
type Interval struct {
	Min, Max float64
}

// Universe contains every finite value.
var Universe = Interval{math.Inf(-1), math.Inf(1)}

// Contains reports whether min <= x <= max.
func (i Interval) Contains(x float64) bool { return i.Min <= x && x <= i.Max }

// Surrounds reports whether min < x < max.
func (i Interval) Surrounds(x float64) bool { return i.Min < x && x < i.Max }

// Clamp limits x to the interval.
func (i Interval) Clamp(x float64) float64 {
	return max(i.Min, min(x, i.Max))
}

func mul(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func nearZero(v mgl64.Vec3) bool {
	const s = 1e-8
	return math.Abs(v[0]) < s && math.Abs(v[1]) < s && math.Abs(v[2]) < s
}

func reflect(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}

// refract bends the unit vector uv through a surface with normal n, where
// etaRatio is the incident over the transmitted index.
func refract(uv, n mgl64.Vec3, etaRatio float64) mgl64.Vec3 {
	cosTheta := math.Min(uv.Mul(-1).Dot(n), 1)
	perp := uv.Add(n.Mul(cosTheta)).Mul(etaRatio)
	parallel := n.Mul(-math.Sqrt(math.Abs(1 - perp.Dot(perp))))
	return perp.Add(parallel)
}

// randomUnitVector samples the unit sphere uniformly by rejection.
func randomUnitVector(rng *rand.Rand) mgl64.Vec3 {
	for {
		p := mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		lensq := p.Dot(p)
		if 1e-160 < lensq && lensq <= 1 {
			return p.Mul(1 / math.Sqrt(lensq))
		}
	}
}

func randomInUnitDisk(rng *rand.Rand) mgl64.Vec3 {
	for {
		p := mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, 0}
		if p.Dot(p) < 1 {
			return p
		}
	}
}
