// Package math provides left-handed matrix and quaternion helpers on top of mgl32.
//
// Matrices are mgl32.Mat4 values in column-major order and are applied to
// column vectors (M * v). Composition therefore reads right to left:
// world = T * R * S scales first, then rotates, then translates.
// Clip-space depth follows the [0, 1] convention.
package math

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// Identity returns an identity matrix.
func Identity() mgl32.Mat4 {
	return mgl32.Ident4()
}

// Translate returns a translation matrix.
func Translate(v mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(v.X(), v.Y(), v.Z())
}

// Scale returns a non-uniform scale matrix.
func Scale(v mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Scale3D(v.X(), v.Y(), v.Z())
}

// LookToLH returns a left-handed view matrix for an eye looking along dir.
func LookToLH(eye, dir, up mgl32.Vec3) mgl32.Mat4 {
	z := dir.Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)

	// Column-major: each group of four is one column.
	return mgl32.Mat4{
		x.X(), y.X(), z.X(), 0,
		x.Y(), y.Y(), z.Y(), 0,
		x.Z(), y.Z(), z.Z(), 0,
		-x.Dot(eye), -y.Dot(eye), -z.Dot(eye), 1,
	}
}

// LookAtLH returns a left-handed view matrix for an eye looking at target.
func LookAtLH(eye, target, up mgl32.Vec3) mgl32.Mat4 {
	return LookToLH(eye, target.Sub(eye), up)
}

// PerspectiveFovLH returns a left-handed perspective projection.
// fovY is the vertical field of view in radians, aspect is width/height.
func PerspectiveFovLH(fovY, aspect, near, far float32) mgl32.Mat4 {
	yScale := float32(1.0 / gomath.Tan(float64(fovY)/2.0))
	xScale := yScale / aspect
	rangeZ := far / (far - near)

	return mgl32.Mat4{
		xScale, 0, 0, 0,
		0, yScale, 0, 0,
		0, 0, rangeZ, 1,
		0, 0, -near * rangeZ, 0,
	}
}

// OrthographicLH returns a left-handed orthographic projection of a
// width x height view volume centered on the view axis.
func OrthographicLH(width, height, near, far float32) mgl32.Mat4 {
	rangeZ := 1.0 / (far - near)

	return mgl32.Mat4{
		2 / width, 0, 0, 0,
		0, 2 / height, 0, 0,
		0, 0, rangeZ, 0,
		0, 0, -near * rangeZ, 1,
	}
}

// InverseTranspose returns (M^-1)^T, the matrix that carries normals
// through M. A singular matrix yields the zero matrix.
func InverseTranspose(m mgl32.Mat4) mgl32.Mat4 {
	return m.Inv().Transpose()
}

// Rows3x4 returns the top three rows of an affine matrix. This is the
// layout acceleration-structure instance records expect.
func Rows3x4(m mgl32.Mat4) [3][4]float32 {
	var rows [3][4]float32
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			rows[r][c] = m.At(r, c)
		}
	}
	return rows
}

// TransformPoint transforms a point (w = 1) by m.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, m)
}

// TransformDirection transforms a direction (w = 0) by m.
func TransformDirection(m mgl32.Mat4, d mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformNormal(d, m)
}

// ApproxEqual reports whether two matrices match element-wise within eps.
func ApproxEqual(a, b mgl32.Mat4, eps float32) bool {
	for i := range a {
		if gomath.Abs(float64(a[i]-b[i])) > float64(eps) {
			return false
		}
	}
	return true
}
