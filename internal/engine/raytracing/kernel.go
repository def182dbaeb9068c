package raytracing

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/prism/internal/engine/mesh"
	"github.com/Faultbox/prism/internal/gpu"
	pmath "github.com/Faultbox/prism/pkg/math"
)

// Sky gradient, bottom to top. The CPU path tracer uses the same colours.
var (
	SkyBottom = mgl32.Vec3{1, 1, 0.5}
	SkyTop    = mgl32.Vec3{1, 0.7, 0.5}
)

// Sky returns the miss colour for a ray direction.
func Sky(dir mgl32.Vec3) mgl32.Vec3 {
	a := 0.5 * (dir.Normalize().Y() + 1)
	return SkyBottom.Mul(1 - a).Add(SkyTop.Mul(a))
}

const (
	rayTMin    = 0.001
	rayTMax    = 1e30
	surfaceEps = 1e-3
)

// Kernel is the ray-generation program: a jittered camera ray per sample,
// Lambertian or metal bounces up to MaxDepth, sky on miss. It writes linear
// colour; tonemapping happens on copy to the back buffer.
type Kernel struct{}

// Shade implements gpu.RayKernel.
func (Kernel) Shade(ctx gpu.RayContext, x, y int) mgl32.Vec4 {
	data, ok := decodeSceneData(ctx.Constants(0))
	if !ok {
		return mgl32.Vec4{1, 0, 1, 1}
	}
	materials := ctx.Constants(1)
	w, h := ctx.DispatchSize()
	rng := newPixelRNG(uint32(x), uint32(y), data.FrameIndex)

	var sum mgl32.Vec3
	n := max(int(data.RaysPerPixel), 1)
	for range n {
		u := (float32(x)+rng.float())/float32(w)*2 - 1
		v := 1 - (float32(y)+rng.float())/float32(h)*2
		near := pmath.TransformPoint(data.InverseViewProjection, mgl32.Vec3{u, v, 0})
		far := pmath.TransformPoint(data.InverseViewProjection, mgl32.Vec3{u, v, 1})
		ray := gpu.Ray{Origin: near, Direction: far.Sub(near).Normalize()}
		sum = sum.Add(trace(ctx, &data, materials, ray, &rng))
	}
	c := sum.Mul(1 / float32(n))
	return c.Vec4(1)
}

// trace follows one path. The colour is the product of the attenuations
// along the path times the sky, or black if the path runs out of bounces or
// is absorbed.
func trace(ctx gpu.RayContext, data *SceneData, materials []byte, ray gpu.Ray, rng *pixelRNG) mgl32.Vec3 {
	throughput := mgl32.Vec3{1, 1, 1}
	for range data.MaxDepth {
		hit, ok := ctx.TraceRay(ray, rayTMin, rayTMax, 0xFF)
		if !ok {
			return mul(throughput, Sky(ray.Direction))
		}

		mat := defaultMaterial
		if off := int(hit.InstanceID) * MaterialRecordSize; off+MaterialRecordSize <= len(materials) {
			mat = decodeMaterial(materials[off:])
		}
		normal, uv, ok := surface(ctx, data, hit)
		if !ok {
			return mgl32.Vec3{}
		}
		if normal.Dot(ray.Direction) > 0 {
			normal = normal.Mul(-1)
		}

		albedo := mat.Color
		if idx := mat.TextureIndex[0]; idx >= 0 {
			if tex, ok := ctx.TextureAt(int(idx)); ok {
				st := mgl32.Vec2{
					uv[0]*mat.UVScale[0] + mat.UVOffset[0],
					uv[1]*mat.UVScale[1] + mat.UVOffset[1],
				}
				albedo = mul(albedo, sample(tex, st))
			}
		}

		point := ray.Origin.Add(ray.Direction.Mul(hit.T))
		var dir mgl32.Vec3
		if mat.Metal > 0.5 {
			dir = reflect(ray.Direction, normal).Add(rng.unitVector().Mul(mat.Roughness))
			if dir.Dot(normal) <= 0 {
				return mgl32.Vec3{}
			}
		} else {
			dir = normal.Add(rng.unitVector())
			if nearZero(dir) {
				dir = normal
			}
		}

		throughput = mul(throughput, albedo)
		ray = gpu.Ray{Origin: point.Add(normal.Mul(surfaceEps)), Direction: dir.Normalize()}
	}
	return mgl32.Vec3{}
}

// surface interpolates the world-space normal and the uv at a hit from the
// hit group's geometry views.
func surface(ctx gpu.RayContext, data *SceneData, hit gpu.RayHit) (mgl32.Vec3, mgl32.Vec2, bool) {
	base := int(data.GeometryBase) + 2*int(hit.HitGroupIndex)
	vb, vstride, ok := ctx.BufferAt(base)
	if !ok || vstride < mesh.VertexStride {
		return mgl32.Vec3{}, mgl32.Vec2{}, false
	}
	ib, _, ok := ctx.BufferAt(base + 1)
	if !ok || int(hit.Primitive)*12+12 > len(ib) {
		return mgl32.Vec3{}, mgl32.Vec2{}, false
	}

	b1, b2 := hit.Barycentrics.X(), hit.Barycentrics.Y()
	weights := [3]float32{1 - b1 - b2, b1, b2}
	var n mgl32.Vec3
	var uv mgl32.Vec2
	for k := range 3 {
		vi := int(binary.LittleEndian.Uint32(ib[int(hit.Primitive)*12+4*k:]))
		off := vi * vstride
		if off+mesh.VertexStride > len(vb) {
			return mgl32.Vec3{}, mgl32.Vec2{}, false
		}
		n = n.Add(readVec3(vb[off+mesh.OffsetNormal:]).Mul(weights[k]))
		uv = uv.Add(mgl32.Vec2{readF32(vb[off+mesh.OffsetUV:]), readF32(vb[off+mesh.OffsetUV+4:])}.Mul(weights[k]))
	}

	// Normals go through the inverse transpose of object-to-world.
	world := pmath.TransformDirection(hit.WorldToObject.Transpose(), n)
	if nearZero(world) {
		return mgl32.Vec3{}, mgl32.Vec2{}, false
	}
	return world.Normalize(), uv, true
}

func sample(tex gpu.TextureView, uv mgl32.Vec2) mgl32.Vec3 {
	if tex.Width == 0 || tex.Height == 0 {
		return mgl32.Vec3{1, 1, 1}
	}
	u := uv.X() - math32.Floor(uv.X())
	v := uv.Y() - math32.Floor(uv.Y())
	x := min(int(u*float32(tex.Width)), tex.Width-1)
	y := min(int(v*float32(tex.Height)), tex.Height-1)
	return tex.At(x, y).Vec3()
}

func reflect(v, n mgl32.Vec3) mgl32.Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}

func mul(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func nearZero(v mgl32.Vec3) bool {
	const s = 1e-8
	return math32.Abs(v[0]) < s && math32.Abs(v[1]) < s && math32.Abs(v[2]) < s
}

func readF32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func readVec3(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{readF32(b), readF32(b[4:]), readF32(b[8:])}
}
