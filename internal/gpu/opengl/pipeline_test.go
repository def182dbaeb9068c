package opengl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/prism/internal/gpu"
)

func TestBindingNames(t *testing.T) {
	assert.Equal(t, "Root0", BlockName(0))
	assert.Equal(t, "Root1", BlockName(1))
	assert.Equal(t, "root2_3", SamplerName(2, 3))
	assert.Equal(t, "root1_0", SamplerName(1, 0))
}

func TestTextureUnits(t *testing.T) {
	tests := []struct {
		name   string
		params []gpu.RootParameter
		units  [][]int
		total  int
	}{
		{
			name: "opaque",
			params: []gpu.RootParameter{
				{Type: gpu.RootCBVTable, Count: 1},
				{Type: gpu.RootCBVTable, Count: 1},
				{Type: gpu.RootSRVTable, Count: 4},
			},
			units: [][]int{{-1}, {-1}, {0, 1, 2, 3}},
			total: 4,
		},
		{
			name: "particles",
			params: []gpu.RootParameter{
				{Type: gpu.RootCBVTable, Count: 1},
				{Type: gpu.RootSRVTable, Count: 1},
				{Type: gpu.RootSRVTable, Count: 1},
			},
			units: [][]int{{-1}, {0}, {1}},
			total: 2,
		},
		{
			name:  "empty",
			units: [][]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, total := TextureUnits(tt.params)
			assert.Equal(t, tt.units, units)
			assert.Equal(t, tt.total, total)
		})
	}
}
