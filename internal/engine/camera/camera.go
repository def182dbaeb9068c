// Package camera provides the first-person fly camera used by the viewer.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/prism/internal/engine/transform"
	pmath "github.com/Faultbox/prism/pkg/math"
)

// Clip planes shared by both projections.
const (
	NearPlane = 0.1
	FarPlane  = 100.0
)

// Defaults for New.
const (
	DefaultMoveSpeed   = 10.0
	DefaultSensitivity = 0.005
)

// Input is the per-frame input state the camera reads. Keys are the upper
// case letters of the movement keys: W, S, A, D, R and F.
type Input interface {
	KeyDown(key rune) bool
	MouseLeftDown() bool
	// MouseDelta is the cursor motion since the previous frame in pixels.
	MouseDelta() (dx, dy float32)
}

// Camera flies freely: WASD moves in the view plane, R and F move along world
// up, and dragging with the left button looks around.
type Camera struct {
	Transform *transform.Transform

	FOV          float32 // vertical, radians
	MoveSpeed    float32
	Sensitivity  float32
	Orthographic bool

	aspect     float32
	view       mgl32.Mat4
	projection mgl32.Mat4
}

// New creates a camera at position with the given rotation and aspect ratio.
func New(position mgl32.Vec3, pitch, yaw float32, aspect float32) *Camera {
	c := &Camera{
		Transform:   transform.New(),
		FOV:         math32.Pi / 4,
		MoveSpeed:   DefaultMoveSpeed,
		Sensitivity: DefaultSensitivity,
	}
	c.Transform.SetPosition(position)
	c.Transform.SetRotation(pitch, yaw, 0)
	c.clampPitch()
	c.UpdateViewMatrix()
	c.UpdateProjectionMatrix(aspect)
	return c
}

// Update integrates one frame of input and rebuilds the view matrix.
func (c *Camera) Update(dt float32, in Input) {
	step := c.MoveSpeed * dt

	if in.KeyDown('W') {
		c.Transform.MoveRelative(mgl32.Vec3{0, 0, step})
	}
	if in.KeyDown('S') {
		c.Transform.MoveRelative(mgl32.Vec3{0, 0, -step})
	}
	if in.KeyDown('D') {
		c.Transform.MoveRelative(mgl32.Vec3{step, 0, 0})
	}
	if in.KeyDown('A') {
		c.Transform.MoveRelative(mgl32.Vec3{-step, 0, 0})
	}
	if in.KeyDown('R') {
		c.Transform.MoveAbsolute(mgl32.Vec3{0, 2 * step, 0})
	}
	if in.KeyDown('F') {
		c.Transform.MoveAbsolute(mgl32.Vec3{0, -2 * step, 0})
	}

	if in.MouseLeftDown() {
		dx, dy := in.MouseDelta()
		c.Transform.Rotate(dy*c.Sensitivity, dx*c.Sensitivity, 0)
		c.clampPitch()
	}

	c.UpdateViewMatrix()
}

func (c *Camera) clampPitch() {
	r := c.Transform.Rotation()
	pitch := pmath.Clamp(r.X(), -math32.Pi/2, math32.Pi/2)
	if pitch != r.X() {
		c.Transform.SetRotation(pitch, r.Y(), r.Z())
	}
}

// UpdateViewMatrix rebuilds the view from the transform. The up vector is the
// transform's own, which stays orthogonal to forward at the pitch limits.
func (c *Camera) UpdateViewMatrix() {
	c.view = pmath.LookToLH(c.Transform.Position(), c.Transform.Forward(), c.Transform.Up())
}

// UpdateProjectionMatrix rebuilds the projection for a new aspect ratio.
func (c *Camera) UpdateProjectionMatrix(aspect float32) {
	c.aspect = aspect
	if c.Orthographic {
		c.projection = pmath.OrthographicLH(aspect, 1, NearPlane, FarPlane)
		return
	}
	c.projection = pmath.PerspectiveFovLH(c.FOV, aspect, NearPlane, FarPlane)
}

// SetOrthographic switches projection type and rebuilds the projection.
func (c *Camera) SetOrthographic(on bool) {
	c.Orthographic = on
	c.UpdateProjectionMatrix(c.aspect)
}

// View returns the view matrix.
func (c *Camera) View() mgl32.Mat4 { return c.view }

// Projection returns the projection matrix.
func (c *Camera) Projection() mgl32.Mat4 { return c.projection }

// Aspect returns the aspect ratio of the current projection.
func (c *Camera) Aspect() float32 { return c.aspect }

// Position returns the eye position.
func (c *Camera) Position() mgl32.Vec3 { return c.Transform.Position() }

// Pitch returns the current pitch in radians.
func (c *Camera) Pitch() float32 { return c.Transform.Rotation().X() }

// InverseViewProjection returns (projection * view)^-1, which carries clip
// space points back to world space for ray generation.
func (c *Camera) InverseViewProjection() mgl32.Mat4 {
	return c.projection.Mul4(c.view).Inv()
}
