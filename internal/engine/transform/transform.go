// Package transform holds position, rotation and scale state and the world
// matrices derived from it.
package transform

import (
	"github.com/go-gl/mathgl/mgl32"

	pmath "github.com/Faultbox/prism/pkg/math"
)

// Transform is a TRS transform. Rotation holds Euler angles in radians as
// (pitch, yaw, roll).
//
// The derived matrices are cached. Mutators mark them dirty; SetWorldMatrices
// recomputes them explicitly and the matrix getters recompute lazily.
type Transform struct {
	position mgl32.Vec3
	rotation mgl32.Vec3
	scale    mgl32.Vec3

	world                 mgl32.Mat4
	worldInverseTranspose mgl32.Mat4
	dirty                 bool
}

// New returns an identity transform.
func New() *Transform {
	return &Transform{
		scale:                 mgl32.Vec3{1, 1, 1},
		world:                 mgl32.Ident4(),
		worldInverseTranspose: mgl32.Ident4(),
	}
}

// SetPosition replaces the position.
func (t *Transform) SetPosition(p mgl32.Vec3) {
	t.position = p
	t.dirty = true
}

// SetRotation replaces the Euler angles.
func (t *Transform) SetRotation(pitch, yaw, roll float32) {
	t.rotation = mgl32.Vec3{pitch, yaw, roll}
	t.dirty = true
}

// SetScale replaces the scale.
func (t *Transform) SetScale(s mgl32.Vec3) {
	t.scale = s
	t.dirty = true
}

// MoveAbsolute offsets the position in world space.
func (t *Transform) MoveAbsolute(offset mgl32.Vec3) {
	t.position = t.position.Add(offset)
	t.dirty = true
}

// MoveRelative offsets the position along the transform's own axes, so
// (0, 0, 1) moves one unit forward whichever way the transform faces.
func (t *Transform) MoveRelative(offset mgl32.Vec3) {
	t.position = t.position.Add(t.orientation().Rotate(offset))
	t.dirty = true
}

// Rotate adds to the Euler angles.
func (t *Transform) Rotate(pitch, yaw, roll float32) {
	t.rotation = t.rotation.Add(mgl32.Vec3{pitch, yaw, roll})
	t.dirty = true
}

// Scale multiplies the scale component-wise.
func (t *Transform) Scale(factor mgl32.Vec3) {
	t.scale = mgl32.Vec3{t.scale[0] * factor[0], t.scale[1] * factor[1], t.scale[2] * factor[2]}
	t.dirty = true
}

// Position returns the position.
func (t *Transform) Position() mgl32.Vec3 { return t.position }

// Rotation returns (pitch, yaw, roll).
func (t *Transform) Rotation() mgl32.Vec3 { return t.rotation }

// ScaleFactors returns the scale.
func (t *Transform) ScaleFactors() mgl32.Vec3 { return t.scale }

// SetWorldMatrices recomputes the world matrix (scale, then rotation, then
// translation) and its inverse transpose.
func (t *Transform) SetWorldMatrices() {
	translation := pmath.Translate(t.position)
	rotation := pmath.RotationRollPitchYaw(t.rotation[0], t.rotation[1], t.rotation[2])
	scale := pmath.Scale(t.scale)

	t.world = translation.Mul4(rotation).Mul4(scale)
	t.worldInverseTranspose = pmath.InverseTranspose(t.world)
	t.dirty = false
}

// WorldMatrix returns the world matrix, recomputing it if stale.
func (t *Transform) WorldMatrix() mgl32.Mat4 {
	if t.dirty {
		t.SetWorldMatrices()
	}
	return t.world
}

// WorldInverseTransposeMatrix returns the normal matrix, recomputing it if
// stale.
func (t *Transform) WorldInverseTransposeMatrix() mgl32.Mat4 {
	if t.dirty {
		t.SetWorldMatrices()
	}
	return t.worldInverseTranspose
}

// Dirty reports whether the cached matrices are stale.
func (t *Transform) Dirty() bool { return t.dirty }

// Right returns the local +X axis in world space.
func (t *Transform) Right() mgl32.Vec3 { return t.orientation().Rotate(pmath.Right) }

// Up returns the local +Y axis in world space.
func (t *Transform) Up() mgl32.Vec3 { return t.orientation().Rotate(pmath.Up) }

// Forward returns the local +Z axis in world space.
func (t *Transform) Forward() mgl32.Vec3 { return t.orientation().Rotate(pmath.Forward) }

func (t *Transform) orientation() mgl32.Quat {
	return pmath.QuatRollPitchYaw(t.rotation[0], t.rotation[1], t.rotation[2])
}
