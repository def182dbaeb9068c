// Package soft implements gpu.Device entirely on the CPU. Draws are validated
// and accounted rather than rasterized; ray dispatches run their kernel over
// the software acceleration structures. It backs headless runs and tests.
package soft

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/prism/internal/gpu"
	"github.com/Faultbox/prism/internal/gpu/core"
	"github.com/Faultbox/prism/internal/logger"
)

// Stats counts executed work since the device was created.
type Stats struct {
	Submits           int
	DrawCalls         int
	IndicesDrawn      int
	Dispatches        int
	BottomLevelBuilds int
	TopLevelBuilds    int
	Presents          int
}

// DrawRecord captures the bindings of one executed draw.
type DrawRecord struct {
	Pipeline   string
	IndexCount int
	// Tables holds the base handle bound to each root parameter.
	Tables []gpu.GPUDescriptorHandle
	// Constants holds a copy of the CBV bytes for CBV-table parameters.
	Constants map[int][]byte
}

// Device is a CPU-only gpu.Device.
type Device struct {
	*core.Store

	log    *zap.Logger
	cl     *core.CommandList
	swap   *SwapChain
	states map[gpu.Texture]gpu.ResourceState
	stats  Stats
	draws  []DrawRecord
}

// New creates a device with a two-buffer swap chain of the given size.
func New(width, height int) (*Device, error) {
	d := &Device{
		Store:  core.NewStore(),
		log:    logger.Named("gpu.soft"),
		cl:     core.NewCommandList(),
		states: make(map[gpu.Texture]gpu.ResourceState),
	}
	swap, err := newSwapChain(d, width, height, 2)
	if err != nil {
		return nil, err
	}
	d.swap = swap
	d.log.Debug("device created", zap.Int("width", width), zap.Int("height", height))
	return d, nil
}

// Name implements gpu.Device.
func (d *Device) Name() string { return "soft" }

// CreateTexture implements gpu.Device. UAV textures start in the
// unordered-access state, everything else in the common state.
func (d *Device) CreateTexture(desc gpu.TextureDesc, pixels []byte) (gpu.Texture, error) {
	t, err := d.Store.NewTexture(desc, pixels)
	if err != nil {
		return nil, err
	}
	if desc.UnorderedAccess {
		d.states[t] = gpu.StateUnorderedAccess
	} else {
		d.states[t] = gpu.StateCommon
	}
	return t, nil
}

// CreatePipeline implements gpu.Device.
func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if len(desc.RootParameters) == 0 {
		return nil, fmt.Errorf("pipeline %q: empty root layout", desc.Name)
	}
	return core.NewPipeline(desc), nil
}

// CreateFence implements gpu.Device.
func (d *Device) CreateFence() (gpu.Fence, error) {
	return &Fence{}, nil
}

// CommandList implements gpu.Device.
func (d *Device) CommandList() gpu.CommandList { return d.cl }

// SwapChain implements gpu.Device.
func (d *Device) SwapChain() gpu.SwapChain { return d.swap }

// Signal implements gpu.Device. Work completes during Submit, so the fence
// reaches value immediately.
func (d *Device) Signal(f gpu.Fence, value uint64) error {
	sf, ok := f.(*Fence)
	if !ok {
		return fmt.Errorf("%w: foreign fence %T", gpu.ErrUnsupported, f)
	}
	sf.completed = value
	return nil
}

// Close implements gpu.Device.
func (d *Device) Close() {
	d.log.Debug("device closed", zap.Int("presents", d.stats.Presents))
}

// Stats returns the work counters.
func (d *Device) Stats() Stats { return d.stats }

// Draws returns the draws executed by the most recent Submit.
func (d *Device) Draws() []DrawRecord { return d.draws }

// State returns the tracked state of a texture.
func (d *Device) State(t gpu.Texture) gpu.ResourceState { return d.states[t] }

// Fence is an immediately signalled fence.
type Fence struct {
	completed uint64
}

// CompletedValue implements gpu.Fence.
func (f *Fence) CompletedValue() uint64 { return f.completed }

// Wait implements gpu.Fence.
func (f *Fence) Wait(value uint64) error {
	if f.completed < value {
		return fmt.Errorf("%w: waiting for fence value %d that was never signalled", gpu.ErrDeviceLost, value)
	}
	return nil
}
