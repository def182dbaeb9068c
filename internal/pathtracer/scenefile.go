package pathtracer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SceneFile is the on-disk description of a path-traced scene. It reads
// from YAML or TOML with the same keys.
type SceneFile struct {
	Camera  CameraFile   `yaml:"camera" toml:"camera"`
	Spheres []SphereFile `yaml:"spheres" toml:"spheres"`
}

// CameraFile mirrors the Camera fields. Zero values take the defaults of
// NewCamera.
type CameraFile struct {
	AspectRatio     float64     `yaml:"aspect_ratio" toml:"aspect_ratio"`
	ImageWidth      int         `yaml:"image_width" toml:"image_width"`
	SamplesPerPixel int         `yaml:"samples_per_pixel" toml:"samples_per_pixel"`
	MaxDepth        int         `yaml:"max_depth" toml:"max_depth"`
	VerticalFOV     float64     `yaml:"vertical_fov" toml:"vertical_fov"`
	LookFrom        *[3]float64 `yaml:"look_from" toml:"look_from"`
	LookAt          *[3]float64 `yaml:"look_at" toml:"look_at"`
	Up              *[3]float64 `yaml:"up" toml:"up"`
	DefocusAngle    float64     `yaml:"defocus_angle" toml:"defocus_angle"`
	FocusDistance   float64     `yaml:"focus_distance" toml:"focus_distance"`
	Seed            int64       `yaml:"seed" toml:"seed"`
}

// SphereFile is one sphere.
type SphereFile struct {
	Center   [3]float64   `yaml:"center" toml:"center"`
	Radius   float64      `yaml:"radius" toml:"radius"`
	Material MaterialFile `yaml:"material" toml:"material"`
}

// MaterialFile selects a material by type: lambertian, metal or dielectric.
type MaterialFile struct {
	Type            string     `yaml:"type" toml:"type"`
	Albedo          [3]float64 `yaml:"albedo" toml:"albedo"`
	Fuzz            float64    `yaml:"fuzz" toml:"fuzz"`
	RefractionIndex float64    `yaml:"refraction_index" toml:"refraction_index"`
}

// LoadSceneFile reads a .yaml, .yml or .toml scene.
func LoadSceneFile(path string) (*SceneFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	sf, err := ParseSceneFile(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return sf, nil
}

// ParseSceneFile decodes data in the format named by ext.
func ParseSceneFile(data []byte, ext string) (*SceneFile, error) {
	var sf SceneFile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&sf); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&sf); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scene format %q", ext)
	}
	return &sf, nil
}

// Build turns the description into a world and a configured camera.
func (sf *SceneFile) Build() (*HittableList, *Camera, error) {
	world := &HittableList{}
	for i, s := range sf.Spheres {
		m, err := s.Material.build()
		if err != nil {
			return nil, nil, fmt.Errorf("sphere %d: %w", i, err)
		}
		world.Add(NewSphere(s.Center, s.Radius, m))
	}

	cam := NewCamera()
	cf := sf.Camera
	if cf.AspectRatio > 0 {
		cam.AspectRatio = cf.AspectRatio
	}
	if cf.ImageWidth > 0 {
		cam.ImageWidth = cf.ImageWidth
	}
	if cf.SamplesPerPixel > 0 {
		cam.SamplesPerPixel = cf.SamplesPerPixel
	}
	if cf.MaxDepth > 0 {
		cam.MaxDepth = cf.MaxDepth
	}
	if cf.VerticalFOV > 0 {
		cam.VerticalFOV = cf.VerticalFOV
	}
	if cf.LookFrom != nil {
		cam.LookFrom = *cf.LookFrom
	}
	if cf.LookAt != nil {
		cam.LookAt = *cf.LookAt
	}
	if cf.Up != nil {
		cam.Up = *cf.Up
	}
	cam.DefocusAngle = cf.DefocusAngle
	if cf.FocusDistance > 0 {
		cam.FocusDistance = cf.FocusDistance
	}
	cam.Seed = cf.Seed
	return world, cam, nil
}

func (m MaterialFile) build() (Material, error) {
	switch strings.ToLower(m.Type) {
	case "lambertian", "diffuse", "":
		return Lambertian{Albedo: m.Albedo}, nil
	case "metal":
		return NewMetal(m.Albedo, m.Fuzz), nil
	case "dielectric", "glass":
		if m.RefractionIndex <= 0 {
			return nil, fmt.Errorf("dielectric needs a positive refraction index")
		}
		return Dielectric{RefractionIndex: m.RefractionIndex}, nil
	}
	return nil, fmt.Errorf("unknown material type %q", m.Type)
}

// Showcase returns the default scene: a ground sphere, a large mirror, a
// large diamond ball and four diffuse spheres, seen from behind and above.
func Showcase() (*HittableList, *Camera) {
	world := &HittableList{}
	world.Add(NewSphere(mgl64.Vec3{0, -100.5, -11}, 100, Lambertian{Albedo: mgl64.Vec3{0.2, 0.2, 0.1}}))
	world.Add(NewSphere(mgl64.Vec3{-6, 1, 4}, 5.5, NewMetal(mgl64.Vec3{0.4, 0.6, 1}, 0)))
	world.Add(NewSphere(mgl64.Vec3{6, 1, 4}, 5.5, Dielectric{RefractionIndex: 2.4}))
	world.Add(NewSphere(mgl64.Vec3{2.6, -0.2, -4}, 1, Lambertian{Albedo: mgl64.Vec3{0.537, 0.92, 0.794}}))
	world.Add(NewSphere(mgl64.Vec3{0.8, -0.3, -4}, 0.7, Lambertian{Albedo: mgl64.Vec3{0.47, 0.66, 0.98}}))
	world.Add(NewSphere(mgl64.Vec3{-0.8, -0.3, -4}, 0.7, Lambertian{Albedo: mgl64.Vec3{0.945, 0.78, 0.85}}))
	world.Add(NewSphere(mgl64.Vec3{-2.6, 0, -4}, 1, Lambertian{Albedo: mgl64.Vec3{0.96, 0.86, 0.43}}))

	cam := NewCamera()
	cam.AspectRatio = 16.0 / 9.0
	cam.ImageWidth = 1200
	cam.SamplesPerPixel = 500
	cam.MaxDepth = 50
	cam.VerticalFOV = 60
	cam.LookFrom = mgl64.Vec3{0, 3, -10}
	cam.LookAt = mgl64.Vec3{0, 0.6, 10}
	cam.Up = mgl64.Vec3{0, 9, 0}
	cam.DefocusAngle = 0.6
	cam.FocusDistance = 10
	return world, cam
}
