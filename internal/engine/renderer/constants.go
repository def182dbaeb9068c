package renderer

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/prism/internal/engine/entity"
	"github.com/Faultbox/prism/internal/engine/lighting"
)

// Sizes of the per-draw constant buffers. Both fill one ring slot.
const (
	VSConstantsSize = 256
	PSConstantsSize = 256
)

type vsConstants struct {
	World             [16]float32
	View              [16]float32
	Projection        [16]float32
	WorldInvTranspose [16]float32
}

// psHeader precedes the light records in the pixel constants.
type psHeader struct {
	UVScale    [2]float32
	UVOffset   [2]float32
	CameraPos  [3]float32
	LightCount int32
	ColorTint  [3]float32
	Roughness  float32
	Metal      float32
	_          [3]float32
}

func encodeVS(e *entity.Entity, view, projection mgl32.Mat4) []byte {
	b, err := binary.Append(make([]byte, 0, VSConstantsSize), binary.LittleEndian, vsConstants{
		World:             e.Transform.WorldMatrix(),
		View:              view,
		Projection:        projection,
		WorldInvTranspose: e.Transform.WorldInverseTransposeMatrix(),
	})
	if err != nil {
		panic(err) // fixed-size struct
	}
	return b
}

func encodePS(e *entity.Entity, cameraPos mgl32.Vec3, lights *lighting.Buffer) []byte {
	m := e.Material
	b, err := binary.Append(make([]byte, 0, PSConstantsSize), binary.LittleEndian, psHeader{
		UVScale:    m.UVScale(),
		UVOffset:   m.UVOffset(),
		CameraPos:  cameraPos,
		LightCount: int32(lights.Count()),
		ColorTint:  m.ColorTint(),
		Roughness:  m.Roughness(),
		Metal:      m.Metal(),
	})
	if err != nil {
		panic(err) // fixed-size struct
	}
	return lights.AppendRecords(b)
}
