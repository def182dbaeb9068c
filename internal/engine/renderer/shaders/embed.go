// Package shaders provides the embedded GLSL sources of the raster pipelines.
// Uniform blocks are named Root<param> and samplers root<param>_<index> so a
// backend can bind them from the root layout alone.
package shaders

import _ "embed"

// OpaqueVertexShader transforms mesh vertices and passes the tangent frame.
//
//go:embed opaque.vert
var OpaqueVertexShader string

// OpaqueFragmentShader lights a surface with up to four lights.
//
//go:embed opaque.frag
var OpaqueFragmentShader string

// ParticleVertexShader expands each particle record into a camera-facing quad.
//
//go:embed particles.vert
var ParticleVertexShader string

//go:embed particles.frag
var ParticleFragmentShader string
