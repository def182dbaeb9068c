package math

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func vecNear(a, b mgl32.Vec3, eps float32) bool {
	return abs(a.X()-b.X()) < eps && abs(a.Y()-b.Y()) < eps && abs(a.Z()-b.Z()) < eps
}

func TestTranslate(t *testing.T) {
	m := Translate(mgl32.Vec3{5, 10, 15})

	// Translation lives in column 4 (indices 12, 13, 14)
	if m[12] != 5 || m[13] != 10 || m[14] != 15 {
		t.Errorf("Translate: got (%f, %f, %f), want (5, 10, 15)", m[12], m[13], m[14])
	}
}

func TestScale(t *testing.T) {
	m := Scale(mgl32.Vec3{2, 3, 4})

	if m[0] != 2 || m[5] != 3 || m[10] != 4 {
		t.Errorf("Scale diagonal: got (%f, %f, %f), want (2, 3, 4)", m[0], m[5], m[10])
	}
}

func TestLookToLH(t *testing.T) {
	eye := mgl32.Vec3{0, 0, -10}
	view := LookToLH(eye, mgl32.Vec3{0, 0, 1}, Up)

	// The eye maps to the origin.
	if got := TransformPoint(view, eye); !vecNear(got, mgl32.Vec3{}, 1e-5) {
		t.Errorf("eye in view space = %v, want origin", got)
	}

	// A point in front of the eye lands on +Z.
	if got := TransformPoint(view, mgl32.Vec3{0, 0, 0}); !vecNear(got, mgl32.Vec3{0, 0, 10}, 1e-5) {
		t.Errorf("target in view space = %v, want (0,0,10)", got)
	}

	// World +X stays on view +X for an unrotated camera.
	if got := TransformPoint(view, mgl32.Vec3{1, 0, -10}); !vecNear(got, mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("right point in view space = %v, want (1,0,0)", got)
	}
}

func TestLookAtLHMatchesLookTo(t *testing.T) {
	eye := mgl32.Vec3{3, 2, -4}
	target := mgl32.Vec3{0, 1, 5}

	a := LookAtLH(eye, target, Up)
	b := LookToLH(eye, target.Sub(eye), Up)
	if !ApproxEqual(a, b, 1e-6) {
		t.Errorf("LookAtLH and LookToLH disagree:\n%v\n%v", a, b)
	}
}

func TestPerspectiveFovLHDepthRange(t *testing.T) {
	const near, far = 0.1, 100
	proj := PerspectiveFovLH(gomath.Pi/4, 16.0/9.0, near, far)

	tests := []struct {
		name  string
		z     float32
		depth float32
	}{
		{"near plane", near, 0},
		{"far plane", far, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := proj.Mul4x1(mgl32.Vec4{0, 0, tt.z, 1})
			if abs(clip.W()-tt.z) > 1e-5 {
				t.Errorf("w = %f, want %f", clip.W(), tt.z)
			}
			if got := clip.Z() / clip.W(); abs(got-tt.depth) > 1e-4 {
				t.Errorf("depth = %f, want %f", got, tt.depth)
			}
		})
	}
}

func TestOrthographicLH(t *testing.T) {
	proj := OrthographicLH(2, 1, 0.1, 100)

	p := TransformPoint(proj, mgl32.Vec3{1, 0.5, 0.1})
	if !vecNear(p, mgl32.Vec3{1, 1, 0}, 1e-5) {
		t.Errorf("corner on near plane = %v, want (1,1,0)", p)
	}
	p = TransformPoint(proj, mgl32.Vec3{-1, -0.5, 100})
	if !vecNear(p, mgl32.Vec3{-1, -1, 1}, 1e-5) {
		t.Errorf("corner on far plane = %v, want (-1,-1,1)", p)
	}
}

func TestInverseTranspose(t *testing.T) {
	world := Translate(mgl32.Vec3{3, -2, 7}).
		Mul4(RotationRollPitchYaw(0.3, 1.1, -0.4)).
		Mul4(Scale(mgl32.Vec3{2, 0.5, 3}))

	invT := InverseTranspose(world)
	if got := world.Mul4(invT.Transpose()); !ApproxEqual(got, Identity(), 1e-4) {
		t.Errorf("world * (invT)^T should be identity, got %v", got)
	}
}

func TestRows3x4(t *testing.T) {
	m := Translate(mgl32.Vec3{4, 5, 6})
	rows := Rows3x4(m)

	want := [3][4]float32{
		{1, 0, 0, 4},
		{0, 1, 0, 5},
		{0, 0, 1, 6},
	}
	if rows != want {
		t.Errorf("Rows3x4 = %v, want %v", rows, want)
	}
}
