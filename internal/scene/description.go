package scene

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/prism/internal/engine/lighting"
	"github.com/Faultbox/prism/internal/engine/material"
	"github.com/Faultbox/prism/internal/engine/mesh"
	"github.com/Faultbox/prism/internal/engine/texture"
)

// ErrInvalid wraps every validation failure of a scene file.
var ErrInvalid = errors.New("invalid scene")

// Description is a validated scene with its CPU-side assets decoded. Nothing
// in it touches the GPU, so a failed reload leaves the running scene intact.
type Description struct {
	File *File

	dir    string
	meshes map[string]*mesh.Data
	images map[string]*image.RGBA
	lights []lighting.Light
}

// Load reads a scene file and resolves its assets relative to its directory.
func Load(path string) (*Description, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Resolve(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return d, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Resolve validates f and decodes its meshes and textures. Relative asset
// paths are joined to dir.
func Resolve(f *File, dir string) (*Description, error) {
	d := &Description{
		File:   f,
		dir:    dir,
		meshes: make(map[string]*mesh.Data),
		images: make(map[string]*image.RGBA),
	}

	materials := make(map[string]*MaterialFile, len(f.Materials))
	for i := range f.Materials {
		m := &f.Materials[i]
		if m.Name == "" {
			return nil, invalid("material %d has no name", i)
		}
		if _, dup := materials[m.Name]; dup {
			return nil, invalid("duplicate material %q", m.Name)
		}
		materials[m.Name] = m
		for _, p := range m.texturePaths() {
			if p == "" {
				continue
			}
			if err := d.loadImage(dir, p); err != nil {
				return nil, fmt.Errorf("material %s: %w", m.Name, err)
			}
		}
	}

	for _, mf := range f.Meshes {
		if mf.Name == "" {
			return nil, invalid("mesh without a name")
		}
		if _, dup := d.meshes[mf.Name]; dup {
			return nil, invalid("duplicate mesh %q", mf.Name)
		}
		data, err := mf.build(dir)
		if err != nil {
			return nil, fmt.Errorf("mesh %s: %w", mf.Name, err)
		}
		d.meshes[mf.Name] = data
	}

	for i, e := range f.Entities {
		if _, ok := d.meshes[e.Mesh]; !ok {
			return nil, invalid("entity %d (%s) uses unknown mesh %q", i, e.Name, e.Mesh)
		}
		m, ok := materials[e.Material]
		if !ok {
			return nil, invalid("entity %d (%s) uses unknown material %q", i, e.Name, e.Material)
		}
		if m.Particle {
			return nil, invalid("entity %d (%s) uses particle material %q", i, e.Name, e.Material)
		}
	}

	for i, em := range f.Emitters {
		m, ok := materials[em.Material]
		if !ok {
			return nil, invalid("emitter %d uses unknown material %q", i, em.Material)
		}
		if !m.Particle {
			return nil, invalid("emitter %d material %q is not a particle material", i, em.Material)
		}
		if em.Rate <= 0 || em.Lifetime <= 0 {
			return nil, invalid("emitter %d needs a positive rate and lifetime", i)
		}
	}

	if len(f.Lights) > lighting.MaxLights {
		return nil, invalid("%d lights, at most %d are supported", len(f.Lights), lighting.MaxLights)
	}
	for i, lf := range f.Lights {
		l, err := lf.build()
		if err != nil {
			return nil, invalid("light %d: %v", i, err)
		}
		d.lights = append(d.lights, l)
	}
	return d, nil
}

func (d *Description) loadImage(dir, p string) error {
	path := resolvePath(dir, p)
	if _, ok := d.images[path]; ok {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read texture: %w", err)
	}
	img, err := texture.Decode(path, data)
	if err != nil {
		return err
	}
	d.images[path] = img
	return nil
}

// Mesh returns the decoded geometry of a named mesh.
func (d *Description) Mesh(name string) (*mesh.Data, bool) {
	data, ok := d.meshes[name]
	return data, ok
}

// Lights returns the scene's lights.
func (d *Description) Lights() []lighting.Light { return d.lights }

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

func (m *MaterialFile) texturePaths() [material.SlotCount]string {
	return [material.SlotCount]string{
		material.SlotAlbedo:    m.Albedo,
		material.SlotNormal:    m.NormalMap,
		material.SlotRoughness: m.RoughnessMap,
		material.SlotMetal:     m.MetalMap,
	}
}

func (m *MaterialFile) color() mgl32.Vec3 {
	if m.Color == nil {
		return mgl32.Vec3{1, 1, 1}
	}
	return *m.Color
}

func orDefault[T float32 | int](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (mf MeshFile) build(dir string) (*mesh.Data, error) {
	if mf.OBJ != "" {
		if mf.Shape != "" {
			return nil, invalid("set either obj or shape, not both")
		}
		return mesh.LoadOBJ(resolvePath(dir, mf.OBJ))
	}
	switch strings.ToLower(mf.Shape) {
	case "sphere":
		return mesh.Sphere(orDefault(mf.Radius, 1), orDefault(mf.Segments, 32), orDefault(mf.Sides, 16)), nil
	case "torus":
		return mesh.Torus(orDefault(mf.Radius, 1), orDefault(mf.Tube, 0.35), orDefault(mf.Segments, 48), orDefault(mf.Sides, 24)), nil
	case "helix":
		return mesh.Helix(orDefault(mf.Radius, 1), orDefault(mf.Tube, 0.25), orDefault(mf.Height, 4),
			orDefault(mf.Turns, 3), orDefault(mf.Segments, 192), orDefault(mf.Sides, 16)), nil
	case "cube":
		return mesh.Cube(orDefault(mf.Size, 2)), nil
	case "quad":
		return mesh.Quad(orDefault(mf.Size, 2)), nil
	case "mirror":
		return mesh.DoubleSidedQuad(orDefault(mf.Size, 2)), nil
	case "":
		return nil, invalid("no obj path or shape")
	default:
		return nil, invalid("unknown shape %q", mf.Shape)
	}
}

func (lf LightFile) build() (lighting.Light, error) {
	t, err := lighting.ParseType(orDefaultString(lf.Type, "directional"))
	if err != nil {
		return lighting.Light{}, err
	}
	color := mgl32.Vec3(lf.Color)
	if color == (mgl32.Vec3{}) {
		color = mgl32.Vec3{1, 1, 1}
	}
	intensity := orDefault(lf.Intensity, 1)
	dir := mgl32.Vec3(lf.Direction)
	switch t {
	case lighting.Directional:
		if dir.Len() == 0 {
			return lighting.Light{}, fmt.Errorf("directional light needs a direction")
		}
		return lighting.NewDirectional(dir, color, intensity), nil
	case lighting.Spot:
		if dir.Len() == 0 {
			return lighting.Light{}, fmt.Errorf("spot light needs a direction")
		}
		return lighting.NewSpot(lf.Position, dir, color, intensity, lf.Range), nil
	default:
		return lighting.NewPoint(lf.Position, color, intensity, lf.Range), nil
	}
}

func orDefaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
