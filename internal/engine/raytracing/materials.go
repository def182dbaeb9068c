package raytracing

import (
	"encoding/binary"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/prism/internal/engine/material"
	"github.com/Faultbox/prism/internal/engine/ring"
)

// MaterialRecordSize is the packed size of one per-instance material.
const MaterialRecordSize = 64

// MaterialRecord is what the ray kernel knows about an instance's surface.
// TextureIndex holds absolute heap indices of the material's four views, or
// -1 when the material was never finalized.
type MaterialRecord struct {
	Color        mgl32.Vec3
	Roughness    float32
	UVScale      mgl32.Vec2
	UVOffset     mgl32.Vec2
	Metal        float32
	_            [3]float32
	TextureIndex [material.SlotCount]int32
}

var defaultMaterial = MaterialRecord{
	Color:        mgl32.Vec3{1, 1, 1},
	Roughness:    1,
	UVScale:      mgl32.Vec2{1, 1},
	TextureIndex: [material.SlotCount]int32{-1, -1, -1, -1},
}

func materialRecordFor(m *material.Material, heap *ring.DescriptorHeapRing) MaterialRecord {
	rec := defaultMaterial
	if m == nil {
		return rec
	}
	rec.Color = m.ColorTint()
	rec.Roughness = m.Roughness()
	rec.UVScale = m.UVScale()
	rec.UVOffset = m.UVOffset()
	rec.Metal = m.Metal()
	if m.Finalized() {
		base := int32(heap.IndexOf(m.SRVs()))
		for i := range rec.TextureIndex {
			rec.TextureIndex[i] = base + int32(i)
		}
	}
	return rec
}

func (r MaterialRecord) encode() []byte {
	b, err := binary.Append(nil, binary.LittleEndian, r)
	if err != nil {
		panic(err) // fixed-size struct
	}
	return b
}

func decodeMaterial(b []byte) MaterialRecord {
	var r MaterialRecord
	if _, err := binary.Decode(b, binary.LittleEndian, &r); err != nil {
		return defaultMaterial
	}
	return r
}
