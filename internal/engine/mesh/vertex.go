package mesh

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/prism/internal/gpu"
)

// Vertex is the interleaved vertex layout shared by the raster pipelines
// and the ray kernel's geometry buffers.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
	Normal   mgl32.Vec3
	Tangent  mgl32.Vec3
}

// VertexStride is the encoded size of a Vertex.
const VertexStride = 44

// Byte offsets of the vertex attributes.
const (
	OffsetPosition = 0
	OffsetUV       = 12
	OffsetNormal   = 20
	OffsetTangent  = 32
)

// InputLayout maps the vertex attributes to shader locations 0 to 3.
var InputLayout = []gpu.InputElement{
	{Location: 0, Components: 3, Offset: OffsetPosition},
	{Location: 1, Components: 2, Offset: OffsetUV},
	{Location: 2, Components: 3, Offset: OffsetNormal},
	{Location: 3, Components: 3, Offset: OffsetTangent},
}

// Data is CPU-side geometry before it is uploaded.
type Data struct {
	Vertices []Vertex
	Indices  []uint32
}

// EncodeVertices packs vertices little-endian.
func EncodeVertices(vertices []Vertex) []byte {
	b, _ := binary.Append(make([]byte, 0, len(vertices)*VertexStride), binary.LittleEndian, vertices)
	return b
}

// EncodeIndices packs indices little-endian.
func EncodeIndices(indices []uint32) []byte {
	b := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		b = binary.LittleEndian.AppendUint32(b, i)
	}
	return b
}
