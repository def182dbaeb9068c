// Package lighting holds the analytic lights of a scene and their GPU
// packing.
package lighting

import (
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxLights is the number of lights the pixel stage reads per draw.
const MaxLights = 4

// RecordSize is the packed size of one light in a constant buffer.
const RecordSize = 48

// Type selects how a Light is evaluated.
type Type int32

const (
	Directional Type = iota
	Point
	Spot
)

func (t Type) String() string {
	switch t {
	case Directional:
		return "directional"
	case Point:
		return "point"
	case Spot:
		return "spot"
	default:
		return fmt.Sprintf("Type(%d)", int32(t))
	}
}

// ParseType maps a scene-file name to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "directional", "sun":
		return Directional, nil
	case "point":
		return Point, nil
	case "spot":
		return Spot, nil
	}
	return 0, fmt.Errorf("unknown light type %q", s)
}

// Light is one light source. Direction is used by directional and spot
// lights, Position and Range by point and spot lights.
type Light struct {
	Type      Type
	Direction mgl32.Vec3
	Range     float32
	Position  mgl32.Vec3
	Intensity float32
	Color     mgl32.Vec3
}

// NewDirectional returns a directional light shining along dir.
func NewDirectional(dir, color mgl32.Vec3, intensity float32) Light {
	return Light{Type: Directional, Direction: dir.Normalize(), Color: color, Intensity: intensity}
}

// NewPoint returns a point light. A non-positive range falls back to 10.
func NewPoint(pos, color mgl32.Vec3, intensity, rng float32) Light {
	if rng <= 0 {
		rng = 10
	}
	return Light{Type: Point, Position: pos, Color: color, Intensity: intensity, Range: rng}
}

// NewSpot returns a spot light at pos shining along dir.
func NewSpot(pos, dir, color mgl32.Vec3, intensity, rng float32) Light {
	l := NewPoint(pos, color, intensity, rng)
	l.Type = Spot
	l.Direction = dir.Normalize()
	return l
}

// gpuLight mirrors the shader struct: four 16-byte rows.
type gpuLight struct {
	Type      int32
	Direction [3]float32
	Range     float32
	Position  [3]float32
	Intensity float32
	Color     [3]float32
}

// AppendRecord appends the 48-byte packed form of l to b.
func (l Light) AppendRecord(b []byte) []byte {
	out, err := binary.Append(b, binary.LittleEndian, gpuLight{
		Type:      int32(l.Type),
		Direction: l.Direction,
		Range:     l.Range,
		Position:  l.Position,
		Intensity: l.Intensity,
		Color:     l.Color,
	})
	if err != nil {
		panic(err) // fixed-size struct
	}
	return out
}
