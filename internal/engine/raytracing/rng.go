package raytracing

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// pixelRNG is a PCG generator seeded per pixel and frame, the way a shader
// would seed one, so dispatch rows need no shared state.
type pixelRNG struct {
	state uint32
}

func newPixelRNG(x, y, frame uint32) pixelRNG {
	r := pixelRNG{state: pcgHash(x ^ pcgHash(y^pcgHash(frame)))}
	return r
}

func pcgHash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}

func (r *pixelRNG) next() uint32 {
	r.state = pcgHash(r.state)
	return r.state
}

// float returns a value in [0, 1).
func (r *pixelRNG) float() float32 {
	return float32(r.next()>>8) / (1 << 24)
}

func (r *pixelRNG) unitVector() mgl32.Vec3 {
	z := r.float()*2 - 1
	phi := r.float() * 2 * math32.Pi
	s := math32.Sqrt(max(0, 1-z*z))
	return mgl32.Vec3{s * math32.Cos(phi), s * math32.Sin(phi), z}
}
