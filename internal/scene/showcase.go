package scene

import "github.com/go-gl/mathgl/mgl32"

func vec3(x, y, z float32) *[3]float32 { return &[3]float32{x, y, z} }

// Showcase returns the built-in scene: a spinning helix, a sphere, a
// metallic cube, a tumbling torus and a green mirror lit by a yellow sun and
// a red point light, with three particle emitters above and below.
func Showcase() *File {
	spinRate := mgl32.RadToDeg(2)
	return &File{
		Name:   "showcase",
		Camera: CameraFile{Position: [3]float32{0, 0, -25}},
		Materials: []MaterialFile{
			{Name: "floor", Color: vec3(0.7, 0.7, 0.7), Roughness: 0, Metal: 1},
			{Name: "wood", Color: vec3(1, 0.78, 0.36), Roughness: 1},
			{Name: "paint", Color: vec3(0.75, 0.38, 0.95), Roughness: 1},
			{Name: "redBlank", Color: vec3(0.8, 0, 0), Roughness: 1},
			{Name: "greenMirror", Color: vec3(0.3, 1, 0.3), Roughness: 0, Metal: 1},
			{Name: "whiteParticle", Color: vec3(1, 1, 1), Roughness: 0.1, Particle: true},
			{Name: "orangeParticle", Color: vec3(1, 0.6, 0), Roughness: 0.1, Particle: true},
		},
		Meshes: []MeshFile{
			{Name: "helix", Shape: "helix", Radius: 1.5, Tube: 0.4, Height: 5, Turns: 3},
			{Name: "sphere", Shape: "sphere", Radius: 2},
			{Name: "cube", Shape: "cube", Size: 3},
			{Name: "torus", Shape: "torus", Radius: 2, Tube: 0.6},
			{Name: "mirror", Shape: "mirror", Size: 4},
		},
		Entities: []EntityFile{
			{Name: "Helix", Mesh: "helix", Material: "wood", Position: [3]float32{-10, 0, 0}, Spin: [3]float32{0, spinRate, 0}},
			{Name: "Sphere", Mesh: "sphere", Material: "paint", Position: [3]float32{10, 0, 0}},
			{Name: "Cube", Mesh: "cube", Material: "floor"},
			{Name: "Torus", Mesh: "torus", Material: "redBlank", Position: [3]float32{0, 0, -10}, Spin: [3]float32{spinRate, 0, 0}},
			{Name: "Mirror", Mesh: "mirror", Material: "greenMirror", Position: [3]float32{5, 0, 0}, Rotation: [3]float32{0, 0, 90}},
		},
		Lights: []LightFile{
			{Type: "directional", Direction: [3]float32{0, -1, 1}, Color: [3]float32{1, 1, 0}, Intensity: 3.3},
			{Type: "point", Position: [3]float32{3, 0, -2}, Color: [3]float32{1, 0, 0}, Intensity: 4, Range: 15},
		},
		Emitters: []EmitterFile{
			{Material: "whiteParticle", Position: [3]float32{0, 6, 0}, Scale: 0.5, Lifetime: 2, Rate: 4, Dispersal: 0.5, RandomColor: true},
			{Material: "orangeParticle", Position: [3]float32{1, -4, 0}, RandomRotation: true, Scale: 4, Lifetime: 4, Rate: 6, Dispersal: 0.3},
			{Material: "whiteParticle", Position: [3]float32{-2, -3, 0}, RandomRotation: true, Scale: 1, Lifetime: 1, Rate: 10, Dispersal: 1},
		},
	}
}

// ShowcaseDescription resolves Showcase. It needs no files.
func ShowcaseDescription() *Description {
	d, err := Resolve(Showcase(), "")
	if err != nil {
		panic(err) // built-in scene
	}
	return d
}
