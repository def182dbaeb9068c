// Package particles simulates fixed-capacity particle emitters on the CPU and
// uploads the live particles for drawing as camera-facing quads.
package particles

import (
	"encoding/binary"
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/engine/material"
	"github.com/Faultbox/prism/internal/engine/ring"
	"github.com/Faultbox/prism/internal/engine/transform"
	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/logger"
)

// DefaultMaxParticles is the capacity used when Options.MaxParticles is 0.
const DefaultMaxParticles = 40

// RecordSize is the size of one particle in the structured buffer.
const RecordSize = 48

// Slack for comparing accumulated float32 time against whole intervals.
const timeEpsilon = 1e-4

// Particle is one live particle.
type Particle struct {
	EmitTime      float32
	StartPosition mgl32.Vec3
	Orientation   float32
	Color         mgl32.Vec4
}

type gpuParticle struct {
	EmitTime      float32
	StartPosition [3]float32
	Orientation   float32
	_             [3]float32
	Color         [4]float32
}

// Options configures an emitter.
type Options struct {
	Position mgl32.Vec3
	// Rotation is the base roll of every particle in radians. A negative
	// value gives each particle a random orientation instead.
	Rotation           float32
	Scale              float32
	Lifetime           float32
	ParticlesPerSecond int
	// DispersalRange is half the side of the spawn cube around Position.
	DispersalRange float32
	RandomColor    bool
	MaxParticles   int
	Seed           int64
}

// Emitter owns a ring of particles. The live particles occupy
// [firstLiving, firstLiving+count) modulo the capacity, oldest first.
type Emitter struct {
	Transform *transform.Transform
	Material  *material.Material

	lifetime       float32
	interval       float32
	dispersal      float32
	randomRotation bool
	randomColor    bool
	rng            *rand.Rand

	particles   []Particle
	firstLiving int
	firstDead   int
	count       int
	sinceEmit   float32

	buffer      gpu.Buffer
	indexBuffer gpu.Buffer
	srv         gpu.CPUDescriptorHandle
	scratch     []byte
	log         *zap.Logger
}

// New creates an emitter and its GPU buffers: a persistently mapped
// structured buffer of particle records with a staging SRV, and a fixed
// index buffer of one quad per particle.
func New(dev gpu.Device, staging *ring.StagingHeap, opts Options, mat *material.Material) (*Emitter, error) {
	if opts.ParticlesPerSecond <= 0 {
		return nil, fmt.Errorf("emitter needs a positive emission rate, got %d", opts.ParticlesPerSecond)
	}
	if opts.Lifetime <= 0 {
		return nil, fmt.Errorf("emitter needs a positive lifetime, got %g", opts.Lifetime)
	}
	capacity := opts.MaxParticles
	if capacity <= 0 {
		capacity = DefaultMaxParticles
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}

	e := &Emitter{
		Transform:   transform.New(),
		Material:    mat,
		lifetime:    opts.Lifetime,
		interval:    1 / float32(opts.ParticlesPerSecond),
		dispersal:   opts.DispersalRange,
		randomColor: opts.RandomColor,
		rng:         rand.New(rand.NewSource(opts.Seed)),
		particles:   make([]Particle, capacity),
		scratch:     make([]byte, 0, RecordSize),
		log:         logger.Named("particles"),
	}
	e.Transform.MoveAbsolute(opts.Position)
	if opts.Rotation >= 0 {
		e.Transform.SetRotation(0, 0, opts.Rotation)
	} else {
		e.randomRotation = true
	}
	e.Transform.Scale(mgl32.Vec3{scale, scale, scale})

	var err error
	e.buffer, err = dev.CreateUploadBuffer(capacity * RecordSize)
	if err != nil {
		return nil, fmt.Errorf("create particle buffer: %w", err)
	}
	e.indexBuffer, err = dev.CreateStaticBuffer(QuadIndices(capacity))
	if err != nil {
		return nil, fmt.Errorf("create particle index buffer: %w", err)
	}
	e.srv, err = staging.Allocate(1)
	if err != nil {
		return nil, fmt.Errorf("allocate particle view: %w", err)
	}
	err = dev.CreateBufferSRV(gpu.BufferSRVDesc{
		Buffer:              e.buffer,
		NumElements:         capacity,
		StructureByteStride: RecordSize,
	}, e.srv)
	if err != nil {
		return nil, fmt.Errorf("create particle view: %w", err)
	}
	return e, nil
}

// QuadIndices returns the little-endian index data for n quads:
// (0,1,2,0,2,3) offset by 4 per quad.
func QuadIndices(n int) []byte {
	b := make([]byte, 0, n*6*4)
	for i := 0; i < n; i++ {
		base := uint32(4 * i)
		for _, k := range [6]uint32{0, 1, 2, 0, 2, 3} {
			b = binary.LittleEndian.AppendUint32(b, base+k)
		}
	}
	return b
}

// Update ages the emitter by dt at time now: expired particles retire from
// the oldest end, then new particles are emitted while the rate allows and
// the ring has room.
func (e *Emitter) Update(dt, now float32) {
	e.sinceEmit += dt

	for e.count > 0 && now-e.particles[e.firstLiving].EmitTime+timeEpsilon >= e.lifetime {
		e.firstLiving = (e.firstLiving + 1) % len(e.particles)
		e.count--
	}

	for e.sinceEmit+timeEpsilon >= e.interval && e.count < len(e.particles) {
		e.emit(now)
		e.sinceEmit -= e.interval
	}
	// A full ring drops emissions rather than banking them.
	e.sinceEmit = min(e.sinceEmit, e.interval)
}

func (e *Emitter) emit(now float32) {
	p := &e.particles[e.firstDead]
	p.EmitTime = now

	r := e.dispersal
	p.StartPosition = e.Transform.Position().Add(mgl32.Vec3{
		(e.rng.Float32()*2 - 1) * r,
		(e.rng.Float32()*2 - 1) * r,
		(e.rng.Float32()*2 - 1) * r,
	})

	p.Orientation = 0
	if e.randomRotation {
		p.Orientation = e.rng.Float32() * 2 * math32.Pi
	}

	if e.randomColor || e.Material == nil {
		p.Color = mgl32.Vec4{e.rng.Float32(), e.rng.Float32(), e.rng.Float32(), 1}
	} else {
		p.Color = e.Material.ColorTint().Vec4(1)
	}

	e.firstDead = (e.firstDead + 1) % len(e.particles)
	e.count++
}

// Upload packs the live particles, oldest first, at the start of the mapped
// buffer and returns how many were written.
func (e *Emitter) Upload() int {
	dst := e.buffer.Mapped()
	n := len(e.particles)
	for i := 0; i < e.count; i++ {
		p := e.particles[(e.firstLiving+i)%n]
		rec, err := binary.Append(e.scratch[:0], binary.LittleEndian, gpuParticle{
			EmitTime:      p.EmitTime,
			StartPosition: p.StartPosition,
			Orientation:   p.Orientation,
			Color:         p.Color,
		})
		if err != nil {
			panic(err) // fixed-size struct
		}
		copy(dst[i*RecordSize:], rec)
	}
	return e.count
}

// Live returns copies of the live particles, oldest first.
func (e *Emitter) Live() []Particle {
	out := make([]Particle, e.count)
	for i := range out {
		out[i] = e.particles[(e.firstLiving+i)%len(e.particles)]
	}
	return out
}

// Count returns the number of live particles.
func (e *Emitter) Count() int { return e.count }

// Capacity returns the ring size.
func (e *Emitter) Capacity() int { return len(e.particles) }

// Cursors returns the first living index, the first dead index and the count.
func (e *Emitter) Cursors() (firstLiving, firstDead, count int) {
	return e.firstLiving, e.firstDead, e.count
}

// Lifetime returns the particle lifetime in seconds.
func (e *Emitter) Lifetime() float32 { return e.lifetime }

// Buffer returns the structured particle buffer.
func (e *Emitter) Buffer() gpu.Buffer { return e.buffer }

// IndexBuffer returns the quad index buffer.
func (e *Emitter) IndexBuffer() gpu.Buffer { return e.indexBuffer }

// SRV returns the staging view of the particle buffer.
func (e *Emitter) SRV() gpu.CPUDescriptorHandle { return e.srv }
