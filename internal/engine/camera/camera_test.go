package camera

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	pmath "github.com/Faultbox/prism/pkg/math"
)

type scripted struct {
	keys   map[rune]bool
	left   bool
	dx, dy float32
}

func (s *scripted) KeyDown(k rune) bool           { return s.keys[k] }
func (s *scripted) MouseLeftDown() bool           { return s.left }
func (s *scripted) MouseDelta() (float32, float32) { return s.dx, s.dy }

func vecNear(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	assert.True(t, want.ApproxEqualThreshold(got, 1e-4), "want %v, got %v", want, got)
}

func TestPitchStaysClamped(t *testing.T) {
	c := New(mgl32.Vec3{}, 0, 0, 16.0/9.0)
	rng := rand.New(rand.NewSource(7))
	in := &scripted{left: true}

	for range 2000 {
		in.dx = (rng.Float32() - 0.5) * 2000
		in.dy = (rng.Float32() - 0.5) * 2000
		c.Update(1.0/60.0, in)
		assert.LessOrEqual(t, math32.Abs(c.Pitch()), math32.Pi/2)
	}
}

func TestPitchClampAtLimit(t *testing.T) {
	c := New(mgl32.Vec3{}, 0, 0, 1)
	c.Update(0, &scripted{left: true, dy: 1e6})
	assert.Equal(t, math32.Pi/2, c.Pitch())

	c.Update(0, &scripted{left: true, dy: -1e6})
	assert.Equal(t, -math32.Pi/2, c.Pitch())
}

func TestNewClampsInitialPitch(t *testing.T) {
	c := New(mgl32.Vec3{}, 4, 0, 1)
	assert.Equal(t, math32.Pi/2, c.Pitch())
}

func TestMovement(t *testing.T) {
	tests := []struct {
		key  rune
		want mgl32.Vec3
	}{
		{'W', mgl32.Vec3{0, 0, 1}},
		{'S', mgl32.Vec3{0, 0, -1}},
		{'D', mgl32.Vec3{1, 0, 0}},
		{'A', mgl32.Vec3{-1, 0, 0}},
		{'R', mgl32.Vec3{0, 2, 0}},
		{'F', mgl32.Vec3{0, -2, 0}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			c := New(mgl32.Vec3{}, 0, 0, 1)
			c.Update(0.1, &scripted{keys: map[rune]bool{tt.key: true}})
			vecNear(t, tt.want, c.Position())
		})
	}
}

func TestMovementFollowsYaw(t *testing.T) {
	c := New(mgl32.Vec3{}, 0, math32.Pi/2, 1)
	c.Update(0.1, &scripted{keys: map[rune]bool{'W': true}})
	vecNear(t, mgl32.Vec3{1, 0, 0}, c.Position())
}

func TestDragNeedsLeftButton(t *testing.T) {
	c := New(mgl32.Vec3{}, 0, 0, 1)
	c.Update(0.1, &scripted{dx: 100, dy: 100})
	assert.Equal(t, mgl32.Vec3{}, c.Transform.Rotation())

	c.Update(0.1, &scripted{left: true, dx: 100})
	assert.InDelta(t, 0.5, c.Transform.Rotation().Y(), 1e-6)
}

func TestViewMatrix(t *testing.T) {
	eye := mgl32.Vec3{1, 2, 3}
	c := New(eye, 0.3, -0.7, 1)

	vecNear(t, mgl32.Vec3{}, pmath.TransformPoint(c.View(), eye))
	ahead := eye.Add(c.Transform.Forward().Mul(5))
	vecNear(t, mgl32.Vec3{0, 0, 5}, pmath.TransformPoint(c.View(), ahead))
}

func TestProjection(t *testing.T) {
	c := New(mgl32.Vec3{}, 0, 0, 2)
	p := c.Projection()
	assert.InDelta(t, p[5]/2, p[0], 1e-6)

	c.SetOrthographic(true)
	p = c.Projection()
	assert.InDelta(t, 1.0, p[0], 1e-6)
	assert.InDelta(t, 2.0, p[5], 1e-6)

	c.UpdateProjectionMatrix(4)
	assert.InDelta(t, 0.5, c.Projection()[0], 1e-6)
	assert.Equal(t, float32(4), c.Aspect())
}

func TestInverseViewProjectionRoundTrip(t *testing.T) {
	c := New(mgl32.Vec3{0, 1, -5}, 0.1, 0.2, 16.0/9.0)
	world := mgl32.Vec4{0.5, 1.2, 3, 1}

	clip := c.Projection().Mul4(c.View()).Mul4x1(world)
	back := c.InverseViewProjection().Mul4x1(clip)
	back = back.Mul(1 / back.W())
	vecNear(t, world.Vec3(), back.Vec3())
}
