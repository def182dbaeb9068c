package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/engine/camera"
	"github.com/Faultbox/prism/internal/engine/entity"
	"github.com/Faultbox/prism/internal/engine/lighting"
	"github.com/Faultbox/prism/internal/engine/material"
	"github.com/Faultbox/prism/internal/engine/mesh"
	"github.com/Faultbox/prism/internal/engine/particles"
	"github.com/Faultbox/prism/internal/engine/renderer"
	"github.com/Faultbox/prism/internal/engine/texture"
	"github.com/Faultbox/prism/internal/logger"
)

type spin struct {
	entity *entity.Entity
	rate   mgl32.Vec3 // radians per second
}

// Scene is a description instantiated on a renderer.
type Scene struct {
	Name      string
	Camera    *camera.Camera
	Entities  *entity.Manager
	Emitters  []*particles.Emitter
	Lights    []lighting.Light
	Materials []*material.Material

	spins []spin
	time  float32
}

// Instantiate uploads the description's meshes, textures and emitters
// through r, seals the materials and installs the lights. It releases the
// previous scene's views, so call it after r.WaitForGPU.
func (d *Description) Instantiate(r *renderer.Renderer) (*Scene, error) {
	log := logger.Named("scene")
	dev, staging := r.Device(), r.Staging()
	r.BeginScene()

	textures := make(map[string]*texture.Texture, len(d.images))
	for path, img := range d.images {
		t, err := texture.Upload(dev, staging, path, img)
		if err != nil {
			return nil, err
		}
		textures[path] = t
	}

	meshes := make(map[string]*mesh.Mesh, len(d.meshes))
	for _, mf := range d.File.Meshes {
		m, err := mesh.New(dev, staging, mf.Name, d.meshes[mf.Name])
		if err != nil {
			return nil, fmt.Errorf("upload mesh %s: %w", mf.Name, err)
		}
		meshes[mf.Name] = m
	}

	s := &Scene{Name: d.File.Name, Entities: entity.NewManager(), Lights: d.lights}
	materials := make(map[string]*material.Material, len(d.File.Materials))
	for i := range d.File.Materials {
		mf := &d.File.Materials[i]
		pipeline := r.OpaquePipeline()
		if mf.Particle {
			pipeline = r.ParticlePipeline()
		}
		m := material.New(mf.Name, pipeline, mf.color(), mf.Roughness, mf.Metal)
		if mf.UVScale != nil {
			m.SetUVScale(*mf.UVScale)
		}
		m.SetUVOffset(mf.UVOffset)
		for slot, p := range mf.texturePaths() {
			if p != "" {
				m.AddTexture(textures[resolvePath(d.dir, p)].SRV, slot)
			}
		}
		materials[mf.Name] = m
		s.Materials = append(s.Materials, m)
	}

	for _, ef := range d.File.Entities {
		e := entity.New(ef.Name, meshes[ef.Mesh], materials[ef.Material])
		e.Transform.SetPosition(ef.Position)
		rot := radians(ef.Rotation)
		e.Transform.SetRotation(rot[0], rot[1], rot[2])
		if ef.Scale != nil {
			e.Transform.SetScale(*ef.Scale)
		}
		s.Entities.Add(e)
		if ef.Spin != ([3]float32{}) {
			s.spins = append(s.spins, spin{entity: e, rate: radians(ef.Spin)})
		}
	}

	for i, ef := range d.File.Emitters {
		rotation := mgl32.DegToRad(ef.Rotation)
		if ef.RandomRotation {
			rotation = -1
		}
		em, err := particles.New(dev, staging, particles.Options{
			Position:           ef.Position,
			Rotation:           rotation,
			Scale:              ef.Scale,
			Lifetime:           ef.Lifetime,
			ParticlesPerSecond: ef.Rate,
			DispersalRange:     ef.Dispersal,
			RandomColor:        ef.RandomColor,
			MaxParticles:       ef.MaxParticles,
			Seed:               ef.Seed + int64(i),
		}, materials[ef.Material])
		if err != nil {
			return nil, fmt.Errorf("emitter %d: %w", i, err)
		}
		s.Emitters = append(s.Emitters, em)
	}

	if err := r.Seal(s.Materials); err != nil {
		return nil, fmt.Errorf("seal scene materials: %w", err)
	}
	r.Lights().Set(s.Lights)

	w, h := r.Size()
	cf := d.File.Camera
	s.Camera = camera.New(cf.Position, mgl32.DegToRad(cf.Pitch), mgl32.DegToRad(cf.Yaw), float32(w)/float32(max(h, 1)))
	if cf.FOV > 0 {
		s.Camera.FOV = mgl32.DegToRad(cf.FOV)
		s.Camera.UpdateProjectionMatrix(s.Camera.Aspect())
	}
	if cf.MoveSpeed > 0 {
		s.Camera.MoveSpeed = cf.MoveSpeed
	}

	log.Info("scene instantiated",
		zap.String("name", s.Name),
		zap.Int("entities", s.Entities.Count()),
		zap.Int("emitters", len(s.Emitters)),
		zap.Int("lights", len(s.Lights)),
		zap.Int("textures", len(textures)),
		zap.Int("stagingViews", staging.Used()),
	)
	return s, nil
}

func radians(deg [3]float32) mgl32.Vec3 {
	return mgl32.Vec3{mgl32.DegToRad(deg[0]), mgl32.DegToRad(deg[1]), mgl32.DegToRad(deg[2])}
}

// Update advances the scene clock by dt, turns spinning entities and
// steps every emitter.
func (s *Scene) Update(dt float32) {
	s.time += dt
	for _, sp := range s.spins {
		r := sp.rate.Mul(dt)
		sp.entity.Transform.Rotate(r[0], r[1], r[2])
	}
	for _, em := range s.Emitters {
		em.Update(dt, s.time)
	}
}

// Time returns the scene clock in seconds.
func (s *Scene) Time() float32 { return s.time }

// Frame returns the renderer input for the current state.
func (s *Scene) Frame() renderer.Frame {
	return renderer.Frame{
		Camera:   s.Camera,
		Entities: s.Entities.All(),
		Emitters: s.Emitters,
		Time:     s.time,
	}
}
