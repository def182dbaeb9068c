package math

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestQuatRollPitchYawIdentity(t *testing.T) {
	q := QuatRollPitchYaw(0, 0, 0)
	if !q.ApproxEqualThreshold(mgl32.QuatIdent(), 1e-6) {
		t.Errorf("zero angles should give identity, got %v", q)
	}
}

func TestQuatRollPitchYawAxes(t *testing.T) {
	const halfPi = gomath.Pi / 2

	tests := []struct {
		name              string
		pitch, yaw, roll  float32
		in, want          mgl32.Vec3
	}{
		{"yaw turns right to -Z", 0, halfPi, 0, Right, mgl32.Vec3{0, 0, -1}},
		{"yaw turns forward to +X", 0, halfPi, 0, Forward, mgl32.Vec3{1, 0, 0}},
		{"pitch tips forward down", halfPi, 0, 0, Forward, mgl32.Vec3{0, -1, 0}},
		{"roll turns right to up", 0, 0, halfPi, Right, mgl32.Vec3{0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuatRollPitchYaw(tt.pitch, tt.yaw, tt.roll).Rotate(tt.in)
			if !vecNear(got, tt.want, 1e-5) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuatRollPitchYawOrder(t *testing.T) {
	// Roll is applied before yaw: rolling right onto up, then yawing,
	// leaves it on up.
	got := QuatRollPitchYaw(0, gomath.Pi/2, gomath.Pi/2).Rotate(Right)
	if !vecNear(got, Up, 1e-5) {
		t.Errorf("got %v, want %v", got, Up)
	}
}

func TestRotationMatchesQuat(t *testing.T) {
	q := QuatRollPitchYaw(0.2, -0.7, 1.3)
	m := RotationRollPitchYaw(0.2, -0.7, 1.3)

	v := mgl32.Vec3{0.3, -1, 2}
	if a, b := q.Rotate(v), TransformDirection(m, v); !vecNear(a, b, 1e-5) {
		t.Errorf("quat %v and matrix %v disagree", a, b)
	}
}
