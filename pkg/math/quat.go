package math

import "github.com/go-gl/mathgl/mgl32"

// Basis vectors of the left-handed frame.
var (
	Right   = mgl32.Vec3{1, 0, 0}
	Up      = mgl32.Vec3{0, 1, 0}
	Forward = mgl32.Vec3{0, 0, 1}
)

// QuatRollPitchYaw builds an orientation from Euler angles in radians.
// Roll (about Z) is applied first, then pitch (about X), then yaw (about Y).
func QuatRollPitchYaw(pitch, yaw, roll float32) mgl32.Quat {
	qx := mgl32.QuatRotate(pitch, Right)
	qy := mgl32.QuatRotate(yaw, Up)
	qz := mgl32.QuatRotate(roll, Forward)
	return qy.Mul(qx).Mul(qz).Normalize()
}

// RotationRollPitchYaw returns the rotation matrix for QuatRollPitchYaw.
func RotationRollPitchYaw(pitch, yaw, roll float32) mgl32.Mat4 {
	return QuatRollPitchYaw(pitch, yaw, roll).Mat4()
}
