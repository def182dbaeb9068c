package mesh

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Procedural primitives used by the default scenes when no OBJ files are
// present. All are centred on the origin with outward normals and the same
// winding and tangent conventions as loaded meshes.

// Sphere returns a UV sphere.
func Sphere(radius float32, slices, stacks int) *Data {
	var d Data
	for st := 0; st <= stacks; st++ {
		theta := math32.Pi * float32(st) / float32(stacks)
		for sl := 0; sl <= slices; sl++ {
			phi := 2 * math32.Pi * float32(sl) / float32(slices)
			n := mgl32.Vec3{
				math32.Sin(theta) * math32.Cos(phi),
				math32.Cos(theta),
				math32.Sin(theta) * math32.Sin(phi),
			}
			d.Vertices = append(d.Vertices, Vertex{
				Position: n.Mul(radius),
				UV:       mgl32.Vec2{float32(sl) / float32(slices), float32(st) / float32(stacks)},
				Normal:   n,
			})
		}
	}
	grid(&d, slices+1, stacks)
	return finish(&d)
}

// Torus returns a ring around the Y axis.
func Torus(major, minor float32, segments, sides int) *Data {
	var d Data
	for s := 0; s <= segments; s++ {
		u := 2 * math32.Pi * float32(s) / float32(segments)
		center := mgl32.Vec3{major * math32.Cos(u), 0, major * math32.Sin(u)}
		for k := 0; k <= sides; k++ {
			v := 2 * math32.Pi * float32(k) / float32(sides)
			n := mgl32.Vec3{
				math32.Cos(v) * math32.Cos(u),
				math32.Sin(v),
				math32.Cos(v) * math32.Sin(u),
			}
			d.Vertices = append(d.Vertices, Vertex{
				Position: center.Add(n.Mul(minor)),
				UV:       mgl32.Vec2{float32(s) / float32(segments), float32(k) / float32(sides)},
				Normal:   n,
			})
		}
	}
	grid(&d, sides+1, segments)
	return finish(&d)
}

// Helix returns a tube of radius minor wound turns times around the Y axis
// at radius major, spanning height.
func Helix(major, minor, height, turns float32, segments, sides int) *Data {
	var d Data
	span := 2 * math32.Pi * turns
	rise := height / span
	for s := 0; s <= segments; s++ {
		t := span * float32(s) / float32(segments)
		center := mgl32.Vec3{major * math32.Cos(t), rise*t - height/2, major * math32.Sin(t)}
		tangent := mgl32.Vec3{-major * math32.Sin(t), rise, major * math32.Cos(t)}.Normalize()
		inward := mgl32.Vec3{-math32.Cos(t), 0, -math32.Sin(t)}
		binormal := tangent.Cross(inward)
		for k := 0; k <= sides; k++ {
			v := 2 * math32.Pi * float32(k) / float32(sides)
			n := inward.Mul(math32.Cos(v)).Add(binormal.Mul(math32.Sin(v)))
			d.Vertices = append(d.Vertices, Vertex{
				Position: center.Add(n.Mul(minor)),
				UV:       mgl32.Vec2{float32(s) / float32(segments), float32(k) / float32(sides)},
				Normal:   n,
			})
		}
	}
	grid(&d, sides+1, segments)
	return finish(&d)
}

// Cube returns an axis-aligned cube with hard edges.
func Cube(size float32) *Data {
	h := size / 2
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}
	var d Data
	for _, f := range faces {
		base := uint32(len(d.Vertices))
		for _, c := range [4][2]float32{{-1, -1}, {-1, 1}, {1, 1}, {1, -1}} {
			p := f.n.Add(f.u.Mul(c[0])).Add(f.v.Mul(c[1])).Mul(h)
			d.Vertices = append(d.Vertices, Vertex{
				Position: p,
				UV:       mgl32.Vec2{(c[0] + 1) / 2, (1 - c[1]) / 2},
				Normal:   f.n,
			})
		}
		d.Indices = append(d.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return finish(&d)
}

// Quad returns a square in the XZ plane facing +Y.
func Quad(size float32) *Data {
	h := size / 2
	d := Data{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-h, 0, -h}, UV: mgl32.Vec2{0, 1}, Normal: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec3{-h, 0, h}, UV: mgl32.Vec2{0, 0}, Normal: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec3{h, 0, h}, UV: mgl32.Vec2{1, 0}, Normal: mgl32.Vec3{0, 1, 0}},
			{Position: mgl32.Vec3{h, 0, -h}, UV: mgl32.Vec2{1, 1}, Normal: mgl32.Vec3{0, 1, 0}},
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	return finish(&d)
}

// DoubleSidedQuad returns Quad plus a copy facing -Y.
func DoubleSidedQuad(size float32) *Data {
	d := Quad(size)
	n := uint32(len(d.Vertices))
	for i := range n {
		v := d.Vertices[i]
		v.Normal = v.Normal.Mul(-1)
		d.Vertices = append(d.Vertices, v)
	}
	d.Indices = append(d.Indices, n, n+2, n+1, n, n+3, n+2)
	return finish(d)
}

// grid indexes rows of a (cols x rows+1) vertex lattice.
func grid(d *Data, cols, rows int) {
	for r := 0; r < rows; r++ {
		for c := 0; c+1 < cols; c++ {
			i := uint32(r*cols + c)
			j := i + uint32(cols)
			d.Indices = append(d.Indices, i, j, j+1, i, j+1, i+1)
		}
	}
}

// finish fixes the winding so each triangle's edge cross product points along
// its vertex normals, drops triangles collapsed at poles and computes tangents.
func finish(d *Data) *Data {
	kept := d.Indices[:0]
	for i := 0; i+2 < len(d.Indices); i += 3 {
		a, b, c := d.Indices[i], d.Indices[i+1], d.Indices[i+2]
		pa, pb, pc := d.Vertices[a].Position, d.Vertices[b].Position, d.Vertices[c].Position
		face := pb.Sub(pa).Cross(pc.Sub(pa))
		if face.Dot(face) < 1e-12 {
			continue
		}
		n := d.Vertices[a].Normal.Add(d.Vertices[b].Normal).Add(d.Vertices[c].Normal)
		if face.Dot(n) < 0 {
			b, c = c, b
		}
		kept = append(kept, a, b, c)
	}
	d.Indices = kept
	ComputeTangents(d.Vertices, d.Indices)
	return d
}
