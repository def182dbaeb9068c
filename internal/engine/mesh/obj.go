package mesh

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrMalformedOBJ is returned for OBJ input that cannot be parsed.
var ErrMalformedOBJ = errors.New("mesh: malformed OBJ")

// LoadOBJ reads a Wavefront OBJ file.
func LoadOBJ(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mesh: %w", err)
	}
	defer f.Close()

	data, err := ParseOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

type objCorner struct{ v, t, n int }

// ParseOBJ reads the v, vt, vn and f statements of an OBJ stream. Faces may
// use v, v/t, v//n or v/t/n corners, negative (relative) indices and more
// than three corners, which are fan-triangulated.
//
// OBJ files are right-handed with V pointing up. Geometry is converted to the
// engine's left-handed frame: Z is negated, V is flipped and the winding is
// reversed. Identical corners share one vertex. Tangents are computed from
// scratch.
func ParseOBJ(r io.Reader) (*Data, error) {
	var (
		positions []mgl32.Vec3
		uvs       []mgl32.Vec2
		normals   []mgl32.Vec3
		data      Data
		seen      = make(map[objCorner]uint32)
	)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
			continue
		}

		switch tokens[0] {
		case "v":
			v, err := parseFloats(tokens[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedOBJ, line, err)
			}
			positions = append(positions, mgl32.Vec3{v[0], v[1], -v[2]})
		case "vt":
			v, err := parseFloats(tokens[1:], 2)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedOBJ, line, err)
			}
			uvs = append(uvs, mgl32.Vec2{v[0], 1 - v[1]})
		case "vn":
			v, err := parseFloats(tokens[1:], 3)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedOBJ, line, err)
			}
			normals = append(normals, mgl32.Vec3{v[0], v[1], -v[2]})
		case "f":
			if len(tokens) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs at least 3 corners", ErrMalformedOBJ, line)
			}
			face := make([]uint32, 0, len(tokens)-1)
			for _, tok := range tokens[1:] {
				c, err := parseCorner(tok, len(positions), len(uvs), len(normals))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedOBJ, line, err)
				}
				idx, ok := seen[c]
				if !ok {
					vert := Vertex{Position: positions[c.v]}
					if c.t >= 0 {
						vert.UV = uvs[c.t]
					}
					if c.n >= 0 {
						vert.Normal = normals[c.n]
					}
					idx = uint32(len(data.Vertices))
					data.Vertices = append(data.Vertices, vert)
					seen[c] = idx
				}
				face = append(face, idx)
			}
			for k := 1; k+1 < len(face); k++ {
				data.Indices = append(data.Indices, face[0], face[k+1], face[k])
			}
		default:
			// Groups, objects, materials and smoothing are not used.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read OBJ: %w", err)
	}
	if len(data.Indices) == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrMalformedOBJ)
	}

	if len(normals) == 0 {
		computeFlatNormals(&data)
	}
	ComputeTangents(data.Vertices, data.Indices)
	return &data, nil
}

func parseFloats(tokens []string, n int) ([]float32, error) {
	if len(tokens) < n {
		return nil, fmt.Errorf("expected %d values, got %d", n, len(tokens))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(tokens[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

// parseCorner resolves one face corner to zero-based indices; -1 marks a
// missing uv or normal.
func parseCorner(tok string, nv, nt, nn int) (objCorner, error) {
	parts := strings.Split(tok, "/")
	if len(parts) > 3 || parts[0] == "" {
		return objCorner{}, fmt.Errorf("bad face corner %q", tok)
	}
	c := objCorner{t: -1, n: -1}
	var err error
	if c.v, err = resolveIndex(parts[0], nv); err != nil {
		return objCorner{}, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.t, err = resolveIndex(parts[1], nt); err != nil {
			return objCorner{}, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.n, err = resolveIndex(parts[2], nn); err != nil {
			return objCorner{}, err
		}
	}
	return c, nil
}

func resolveIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i = count + i
	} else {
		i--
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("index %s out of range 1..%d", s, count)
	}
	return i, nil
}

// computeFlatNormals assigns face normals for files without vn statements.
// Vertices shared between faces receive the normalized sum.
func computeFlatNormals(d *Data) {
	for i := 0; i+2 < len(d.Indices); i += 3 {
		a, b, c := d.Indices[i], d.Indices[i+1], d.Indices[i+2]
		e1 := d.Vertices[b].Position.Sub(d.Vertices[a].Position)
		e2 := d.Vertices[c].Position.Sub(d.Vertices[a].Position)
		n := e1.Cross(e2)
		for _, v := range []uint32{a, b, c} {
			d.Vertices[v].Normal = d.Vertices[v].Normal.Add(n)
		}
	}
	for i := range d.Vertices {
		if n := d.Vertices[i].Normal; n.Dot(n) > 0 {
			d.Vertices[i].Normal = n.Normalize()
		}
	}
}
