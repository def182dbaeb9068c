package transform

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pmath "github.com/Faultbox/prism/pkg/math"
)

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, "component %d of %v", i, got)
	}
}

func TestNewIsIdentity(t *testing.T) {
	tr := New()
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, tr.ScaleFactors())
	assert.Equal(t, mgl32.Ident4(), tr.WorldMatrix())
	assert.Equal(t, mgl32.Ident4(), tr.WorldInverseTransposeMatrix())
}

func TestScaledRotatedTranslated(t *testing.T) {
	tr := New()
	tr.SetScale(mgl32.Vec3{2, 1, 1})
	tr.SetRotation(0, math.Pi/2, 0)
	tr.SetPosition(mgl32.Vec3{3, 0, 0})
	tr.SetWorldMatrices()

	assertVec3(t, mgl32.Vec3{0, 0, -1}, tr.Right())
	assertVec3(t, mgl32.Vec3{0, 1, 0}, tr.Up())
	assertVec3(t, mgl32.Vec3{1, 0, 0}, tr.Forward())

	p := tr.WorldMatrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assertVec3(t, mgl32.Vec3{3, 0, -2}, p.Vec3())
	assert.InDelta(t, 1, p.W(), 1e-5)
}

func TestWorldTimesInverseTransposeTransposeIsIdentity(t *testing.T) {
	cases := []struct {
		pos, rot, scale mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}},
		{mgl32.Vec3{3, -2, 7}, mgl32.Vec3{0.3, 1.2, -0.7}, mgl32.Vec3{2, 0.5, 3}},
		{mgl32.Vec3{-10, 4, 1}, mgl32.Vec3{-1.4, 2.9, 0.1}, mgl32.Vec3{0.25, 0.25, 4}},
		{mgl32.Vec3{1, 1, 1}, mgl32.Vec3{math.Pi / 2, 0, math.Pi}, mgl32.Vec3{1, 5, 1}},
	}
	for _, c := range cases {
		tr := New()
		tr.SetPosition(c.pos)
		tr.SetRotation(c.rot[0], c.rot[1], c.rot[2])
		tr.SetScale(c.scale)
		tr.SetWorldMatrices()

		// (M^-1)^T transposed back is M^-1.
		product := tr.WorldMatrix().Mul4(tr.WorldInverseTransposeMatrix().Transpose())
		assert.True(t, pmath.ApproxEqual(mgl32.Ident4(), product, 1e-5), "case %+v: %v", c, product)
	}
}

func TestNormalsStayPerpendicularUnderNonUniformScale(t *testing.T) {
	tr := New()
	tr.SetScale(mgl32.Vec3{4, 1, 1})
	tr.SetRotation(0, 0, math.Pi/4)

	// Tangent and normal of a 45 degree slope in the XY plane.
	tangent := mgl32.Vec3{1, 1, 0}
	normal := mgl32.Vec3{-1, 1, 0}

	wt := pmath.TransformDirection(tr.WorldMatrix(), tangent)
	wn := pmath.TransformDirection(tr.WorldInverseTransposeMatrix(), normal)
	assert.InDelta(t, 0, wt.Dot(wn), 1e-4)
}

func TestPositionRoundTrip(t *testing.T) {
	tr := New()
	for _, p := range []mgl32.Vec3{{0, 0, 0}, {1.5, -2.25, 1e6}, {-0.001, 3, 7}} {
		tr.SetPosition(p)
		assert.Equal(t, p, tr.Position())
	}
}

func TestMoveRelativeFollowsOrientation(t *testing.T) {
	tr := New()
	tr.SetRotation(0, math.Pi/2, 0)
	tr.MoveRelative(mgl32.Vec3{0, 0, 2})
	assertVec3(t, mgl32.Vec3{2, 0, 0}, tr.Position())

	tr.MoveAbsolute(mgl32.Vec3{0, 1, 0})
	assertVec3(t, mgl32.Vec3{2, 1, 0}, tr.Position())
}

func TestRotateAndScaleAccumulate(t *testing.T) {
	tr := New()
	tr.Rotate(0.1, 0.2, 0.3)
	tr.Rotate(0.1, 0.2, 0.3)
	assertVec3(t, mgl32.Vec3{0.2, 0.4, 0.6}, tr.Rotation())

	tr.Scale(mgl32.Vec3{2, 3, 4})
	tr.Scale(mgl32.Vec3{2, 1, 0.5})
	assert.Equal(t, mgl32.Vec3{4, 3, 2}, tr.ScaleFactors())
}

func TestLazyRecompute(t *testing.T) {
	tr := New()
	tr.SetPosition(mgl32.Vec3{1, 2, 3})
	require.True(t, tr.Dirty())

	w := tr.WorldMatrix()
	assert.False(t, tr.Dirty())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, w.Col(3).Vec3())
}
