package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/prism/internal/gpu"
)

// BlockName is the uniform block a CBV-table root parameter binds to.
func BlockName(param int) string {
	return fmt.Sprintf("Root%d", param)
}

// SamplerName is the sampler uniform of descriptor index within an SRV-table
// root parameter.
func SamplerName(param, index int) string {
	return fmt.Sprintf("root%d_%d", param, index)
}

// TextureUnits assigns consecutive texture units to every SRV descriptor of
// a root layout. units[param][index] is -1 for CBV tables.
func TextureUnits(params []gpu.RootParameter) (units [][]int, total int) {
	units = make([][]int, len(params))
	for p, rp := range params {
		units[p] = make([]int, rp.Count)
		for i := range units[p] {
			if rp.Type == gpu.RootSRVTable {
				units[p][i] = total
				total++
			} else {
				units[p][i] = -1
			}
		}
	}
	return units, total
}

// Pipeline is a linked program plus its root-layout bindings.
type Pipeline struct {
	desc    gpu.PipelineDesc
	program uint32
	vao     uint32
	units   int
	unitMap [][]int
	// active reports whether a sampler exists in the linked program.
	// Inactive samplers are optimized away by the compiler and skipped.
	active [][]bool
}

// Name implements gpu.Pipeline.
func (p *Pipeline) Name() string { return p.desc.Name }

// Desc implements gpu.Pipeline.
func (p *Pipeline) Desc() gpu.PipelineDesc { return p.desc }

// Program returns the GL program object.
func (p *Pipeline) Program() uint32 { return p.program }

func newPipeline(desc gpu.PipelineDesc) (*Pipeline, error) {
	if len(desc.RootParameters) == 0 {
		return nil, fmt.Errorf("pipeline %q: empty root layout", desc.Name)
	}
	program, err := compileProgram(desc.VertexShader, desc.PixelShader)
	if err != nil {
		return nil, fmt.Errorf("pipeline %q: %w", desc.Name, err)
	}

	p := &Pipeline{desc: desc, program: program}
	p.unitMap, p.units = TextureUnits(desc.RootParameters)
	p.active = make([][]bool, len(desc.RootParameters))

	gl.UseProgram(program)
	for param, rp := range desc.RootParameters {
		p.active[param] = make([]bool, rp.Count)
		if rp.Type == gpu.RootCBVTable {
			idx := gl.GetUniformBlockIndex(program, gl.Str(BlockName(param)+"\x00"))
			if idx == gl.INVALID_INDEX || rp.Count == 0 {
				continue
			}
			gl.UniformBlockBinding(program, idx, uint32(param))
			p.active[param][0] = true
			continue
		}
		for i := 0; i < rp.Count; i++ {
			loc := gl.GetUniformLocation(program, gl.Str(SamplerName(param, i)+"\x00"))
			if loc < 0 {
				continue
			}
			gl.Uniform1i(loc, int32(p.unitMap[param][i]))
			p.active[param][i] = true
		}
	}
	gl.UseProgram(0)
	return p, nil
}

func (p *Pipeline) destroy() {
	if p.program != 0 {
		gl.DeleteProgram(p.program)
		p.program = 0
	}
	if p.vao != 0 {
		gl.DeleteVertexArrays(1, &p.vao)
		p.vao = 0
	}
}

// compileProgram compiles vertex and fragment shaders and links them.
func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vert, err := compileShader(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)

	frag, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	program := gl.CreateProgram()
	gl.AttachShader(program, vert)
	gl.AttachShader(program, frag)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", gl.GoStr(&log[0]))
	}
	return program, nil
}

func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, gl.GoStr(&log[0]))
	}
	return shader, nil
}
