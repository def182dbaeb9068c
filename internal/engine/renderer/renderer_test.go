package renderer

import (
	"encoding/binary"
	"image/color"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/prism/internal/engine/camera"
	"github.com/Faultbox/prism/internal/engine/entity"
	"github.com/Faultbox/prism/internal/engine/lighting"
	"github.com/Faultbox/prism/internal/engine/material"
	"github.com/Faultbox/prism/internal/engine/mesh"
	"github.com/Faultbox/prism/internal/engine/particles"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/soft"
)

func f32(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

type fixture struct {
	dev  *soft.Device
	r    *Renderer
	cam  *camera.Camera
	cube *entity.Entity
}

func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()
	dev, err := soft.New(8, 8)
	require.NoError(t, err)
	r, err := New(dev, Config{
		Mode:               mode,
		VSync:              true,
		MaxConstantBuffers: 16,
		DescriptorHeapSize: 128,
		MaxHitGroups:       4,
		StagingSize:        64,
		RaysPerPixel:       1,
		MaxDepth:           4,
	}, 8, 8)
	require.NoError(t, err)

	m, err := mesh.New(dev, r.Staging(), "cube", mesh.Cube(2))
	require.NoError(t, err)
	red := material.New("red", r.OpaquePipeline(), mgl32.Vec3{1, 0, 0}, 1, 0)
	cube := entity.New("cube", m, red)
	cube.Transform.SetPosition(mgl32.Vec3{0, 0, 5})

	return &fixture{dev: dev, r: r, cam: camera.New(mgl32.Vec3{}, 0, 0, 1), cube: cube}
}

func (f *fixture) frame() Frame {
	return Frame{Camera: f.cam, Entities: []*entity.Entity{f.cube}}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"raster", ModeRaster, true},
		{"RayTrace", ModeRayTrace, true},
		{"rt", ModeRayTrace, true},
		{"hybrid", ModeHybrid, true},
		{"wireframe", ModeRaster, false},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, must(ParseMode(got.String())))
	}
}

func must(m Mode, err error) Mode {
	if err != nil {
		panic(err)
	}
	return m
}

func TestRasterFrame(t *testing.T) {
	f := newFixture(t, ModeRaster)
	require.NoError(t, f.r.Seal([]*material.Material{f.cube.Material}))
	f.r.Lights().Add(lighting.NewDirectional(mgl32.Vec3{0, -1, 1}, mgl32.Vec3{1, 1, 1}, 1))
	f.r.Lights().Add(lighting.NewPoint(mgl32.Vec3{0, 2, 3}, mgl32.Vec3{1, 0.5, 0}, 2, 6))

	require.NoError(t, f.r.Render(f.frame()))

	draws := f.dev.Draws()
	require.Len(t, draws, 1)
	d := draws[0]
	assert.Equal(t, "opaque", d.Pipeline)
	assert.Equal(t, f.cube.Mesh.IndexCount(), d.IndexCount)

	vs := d.Constants[entity.ParamVertexConstants]
	require.Len(t, vs, VSConstantsSize)
	assert.Equal(t, float32(5), f32(vs, 14*4), "world translation z")

	ps := d.Constants[entity.ParamPixelConstants]
	require.Len(t, ps, PSConstantsSize)
	assert.Equal(t, float32(1), f32(ps, 0), "uv scale")
	assert.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(ps[28:])), "light count")
	assert.Equal(t, float32(1), f32(ps, 32), "tint red")
	assert.Equal(t, int32(lighting.Point), int32(binary.LittleEndian.Uint32(ps[64+lighting.RecordSize:])))

	stats := f.dev.Stats()
	assert.Equal(t, 1, stats.Presents)
	assert.Zero(t, stats.Dispatches)
	assert.Equal(t, uint64(1), f.r.FenceValue())
	assert.Equal(t, uint64(1), f.r.Frames())
	assert.Equal(t, 1, f.dev.SwapChain().CurrentIndex())
	assert.Equal(t, gpu.StatePresent, f.dev.State(f.dev.SwapChain().BackBuffer(0)))
}

func TestRayTraceFrameReplacesBackBuffer(t *testing.T) {
	f := newFixture(t, ModeRayTrace)
	require.NoError(t, f.r.Seal([]*material.Material{f.cube.Material}))

	require.NoError(t, f.r.Render(f.frame()))

	assert.Empty(t, f.dev.Draws())
	stats := f.dev.Stats()
	assert.Equal(t, 1, stats.Dispatches)
	assert.Equal(t, 1, stats.BottomLevelBuilds)
	assert.Equal(t, 1, stats.TopLevelBuilds)

	img := f.dev.SwapChain().(*soft.SwapChain).Presented()
	require.NotNil(t, img)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(4, 4))
}

func TestHybridFrameRecordsBothPasses(t *testing.T) {
	f := newFixture(t, ModeHybrid)
	require.NoError(t, f.r.Seal([]*material.Material{f.cube.Material}))

	for range 3 {
		require.NoError(t, f.r.Render(f.frame()))
	}
	stats := f.dev.Stats()
	assert.Equal(t, 3, stats.DrawCalls)
	assert.Equal(t, 3, stats.Dispatches)
	assert.Equal(t, 1, stats.BottomLevelBuilds, "BLAS is built once per mesh")
	assert.Equal(t, 3, stats.TopLevelBuilds, "TLAS is rebuilt every frame")
	assert.Equal(t, 3, stats.Presents)
	assert.Equal(t, uint64(3), f.r.FenceValue())
	assert.Equal(t, 1, f.dev.SwapChain().CurrentIndex())
}

func TestEmittersDrawAfterEntities(t *testing.T) {
	f := newFixture(t, ModeRaster)
	spark := material.New("spark", f.r.ParticlePipeline(), mgl32.Vec3{1, 1, 1}, 1, 0)
	require.NoError(t, f.r.Seal([]*material.Material{f.cube.Material, spark}))

	em, err := particles.New(f.dev, f.r.Staging(), particles.Options{ParticlesPerSecond: 10, Lifetime: 1}, spark)
	require.NoError(t, err)
	em.Update(0.3, 0.3)

	fr := f.frame()
	fr.Emitters = []*particles.Emitter{em}
	fr.Time = 0.3
	require.NoError(t, f.r.Render(fr))

	draws := f.dev.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, "opaque", draws[0].Pipeline)
	assert.Equal(t, "particles", draws[1].Pipeline)
	assert.Equal(t, em.Count()*6, draws[1].IndexCount)
}

func TestUnsealedMaterialFails(t *testing.T) {
	f := newFixture(t, ModeRaster)
	err := f.r.Render(f.frame())
	assert.ErrorContains(t, err, "not sealed")
}

func TestRenderNeedsCamera(t *testing.T) {
	f := newFixture(t, ModeRaster)
	assert.Error(t, f.r.Render(Frame{}))
}

func TestSealReleasesPreviousScene(t *testing.T) {
	f := newFixture(t, ModeHybrid)
	for range 50 {
		mat := material.New("red", f.r.OpaquePipeline(), mgl32.Vec3{1, 0, 0}, 1, 0)
		require.NoError(t, f.r.Seal([]*material.Material{mat}))
		f.cube.Material = mat
		require.NoError(t, f.r.Render(f.frame()))
	}
	assert.Equal(t, 50, f.dev.Stats().BottomLevelBuilds)
}

func TestBeginSceneKeepsFallbacks(t *testing.T) {
	f := newFixture(t, ModeRaster)
	used := f.r.Staging().Used()
	require.Greater(t, used, len(f.r.Fallback()))

	f.r.BeginScene()
	assert.Equal(t, len(f.r.Fallback()), f.r.Staging().Used())
}

func TestResize(t *testing.T) {
	f := newFixture(t, ModeRayTrace)
	require.NoError(t, f.r.Resize(16, 4))
	w, h := f.r.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, 16, f.r.RayTracing().Output().Width())
	assert.Equal(t, 16, f.dev.SwapChain().BackBuffer(0).Width())

	require.NoError(t, f.r.Resize(0, 10))
	w, _ = f.r.Size()
	assert.Equal(t, 16, w)
}

func TestSetMode(t *testing.T) {
	f := newFixture(t, ModeRaster)
	require.NoError(t, f.r.Seal([]*material.Material{f.cube.Material}))
	f.r.SetMode(ModeRayTrace)
	assert.Equal(t, ModeRayTrace, f.r.Mode())
	require.NoError(t, f.r.Render(f.frame()))
	assert.Empty(t, f.dev.Draws())
}

func TestFallbackTexturesAreDistinct(t *testing.T) {
	f := newFixture(t, ModeRaster)
	fb := f.r.Fallback()
	for i := range fb {
		assert.False(t, fb[i].IsNull())
		for j := i + 1; j < len(fb); j++ {
			assert.NotEqual(t, fb[i], fb[j])
		}
	}
}
