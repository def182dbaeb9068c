package opengl

import (
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/prism/internal/gpu"
)

// FenceTimeout bounds a single Wait.
const FenceTimeout = 5 * time.Second

// pendingSync is a GL sync object that completes a fence value.
type pendingSync struct {
	value uint64
	sync  uintptr
}

// Fence tracks GL sync objects inserted by Device.Signal.
type Fence struct {
	completed uint64
	signalled uint64
	pending   []pendingSync
}

func (f *Fence) signal(value uint64) {
	f.pending = append(f.pending, pendingSync{value: value, sync: gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)})
	f.signalled = value
}

// poll retires sync objects that have completed, waiting up to timeout for
// each one when wait is set.
func (f *Fence) poll(wait bool) error {
	var timeout uint64
	if wait {
		timeout = uint64(FenceTimeout.Nanoseconds())
	}
	for len(f.pending) > 0 {
		p := f.pending[0]
		switch gl.ClientWaitSync(p.sync, gl.SYNC_FLUSH_COMMANDS_BIT, timeout) {
		case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		case gl.TIMEOUT_EXPIRED:
			if wait {
				return fmt.Errorf("%w: fence value %d timed out", gpu.ErrDeviceLost, p.value)
			}
			return nil
		default:
			return fmt.Errorf("%w: waiting for fence value %d failed", gpu.ErrDeviceLost, p.value)
		}
		gl.DeleteSync(p.sync)
		f.completed = p.value
		f.pending = f.pending[1:]
	}
	return nil
}

// CompletedValue implements gpu.Fence.
func (f *Fence) CompletedValue() uint64 {
	_ = f.poll(false)
	return f.completed
}

// Wait implements gpu.Fence.
func (f *Fence) Wait(value uint64) error {
	if value > f.signalled {
		return fmt.Errorf("%w: waiting for fence value %d that was never signalled", gpu.ErrDeviceLost, value)
	}
	for f.completed < value {
		if err := f.poll(true); err != nil {
			return err
		}
	}
	return nil
}
