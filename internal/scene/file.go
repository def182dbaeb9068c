// Package scene loads real-time scene descriptions and instantiates them on
// a renderer. Files are YAML or TOML with the same keys; angles are degrees.
package scene

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File is the on-disk scene.
type File struct {
	Name      string         `yaml:"name" toml:"name"`
	Camera    CameraFile     `yaml:"camera" toml:"camera"`
	Materials []MaterialFile `yaml:"materials" toml:"materials"`
	Meshes    []MeshFile     `yaml:"meshes" toml:"meshes"`
	Entities  []EntityFile   `yaml:"entities" toml:"entities"`
	Lights    []LightFile    `yaml:"lights" toml:"lights"`
	Emitters  []EmitterFile  `yaml:"emitters" toml:"emitters"`
}

// CameraFile places the fly camera. A zero FOV keeps the camera default.
type CameraFile struct {
	Position  [3]float32 `yaml:"position" toml:"position"`
	Pitch     float32    `yaml:"pitch" toml:"pitch"`
	Yaw       float32    `yaml:"yaw" toml:"yaw"`
	FOV       float32    `yaml:"fov" toml:"fov"`
	MoveSpeed float32    `yaml:"move_speed" toml:"move_speed"`
}

// MaterialFile describes a surface. Texture paths are relative to the scene
// file. Particle materials use the particle pipeline.
type MaterialFile struct {
	Name         string      `yaml:"name" toml:"name"`
	Color        *[3]float32 `yaml:"color" toml:"color"`
	Roughness    float32     `yaml:"roughness" toml:"roughness"`
	Metal        float32     `yaml:"metal" toml:"metal"`
	UVScale      *[2]float32 `yaml:"uv_scale" toml:"uv_scale"`
	UVOffset     [2]float32  `yaml:"uv_offset" toml:"uv_offset"`
	Albedo       string      `yaml:"albedo" toml:"albedo"`
	NormalMap    string      `yaml:"normal_map" toml:"normal_map"`
	RoughnessMap string      `yaml:"roughness_map" toml:"roughness_map"`
	MetalMap     string      `yaml:"metal_map" toml:"metal_map"`
	Particle     bool        `yaml:"particle" toml:"particle"`
}

// MeshFile is either an OBJ path or a procedural shape: sphere, torus,
// helix, cube, quad or mirror (a double-sided quad).
type MeshFile struct {
	Name     string  `yaml:"name" toml:"name"`
	OBJ      string  `yaml:"obj" toml:"obj"`
	Shape    string  `yaml:"shape" toml:"shape"`
	Size     float32 `yaml:"size" toml:"size"`
	Radius   float32 `yaml:"radius" toml:"radius"`
	Tube     float32 `yaml:"tube" toml:"tube"`
	Height   float32 `yaml:"height" toml:"height"`
	Turns    float32 `yaml:"turns" toml:"turns"`
	Segments int     `yaml:"segments" toml:"segments"`
	Sides    int     `yaml:"sides" toml:"sides"`
}

// EntityFile places a mesh with a material. Spin is in degrees per second
// around each axis.
type EntityFile struct {
	Name     string      `yaml:"name" toml:"name"`
	Mesh     string      `yaml:"mesh" toml:"mesh"`
	Material string      `yaml:"material" toml:"material"`
	Position [3]float32  `yaml:"position" toml:"position"`
	Rotation [3]float32  `yaml:"rotation" toml:"rotation"`
	Scale    *[3]float32 `yaml:"scale" toml:"scale"`
	Spin     [3]float32  `yaml:"spin" toml:"spin"`
}

// LightFile is a directional, point or spot light.
type LightFile struct {
	Type      string     `yaml:"type" toml:"type"`
	Direction [3]float32 `yaml:"direction" toml:"direction"`
	Position  [3]float32 `yaml:"position" toml:"position"`
	Color     [3]float32 `yaml:"color" toml:"color"`
	Intensity float32    `yaml:"intensity" toml:"intensity"`
	Range     float32    `yaml:"range" toml:"range"`
}

// EmitterFile configures a particle emitter drawn with a particle material.
type EmitterFile struct {
	Material       string     `yaml:"material" toml:"material"`
	Position       [3]float32 `yaml:"position" toml:"position"`
	Rotation       float32    `yaml:"rotation" toml:"rotation"`
	RandomRotation bool       `yaml:"random_rotation" toml:"random_rotation"`
	Scale          float32    `yaml:"scale" toml:"scale"`
	Lifetime       float32    `yaml:"lifetime" toml:"lifetime"`
	Rate           int        `yaml:"rate" toml:"rate"`
	Dispersal      float32    `yaml:"dispersal" toml:"dispersal"`
	RandomColor    bool       `yaml:"random_color" toml:"random_color"`
	MaxParticles   int        `yaml:"max_particles" toml:"max_particles"`
	Seed           int64      `yaml:"seed" toml:"seed"`
}

// IsSceneFile reports whether path has an extension Parse understands.
func IsSceneFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// ReadFile reads and parses a scene file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes data in the format named by ext. Unknown keys are errors.
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scene format %q", ext)
	}
	return &f, nil
}

// Marshal encodes f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}
