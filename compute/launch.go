package compute

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LaunchConfig configures the execution of a kernel over an N-dimensional range of work-items.
// Create it with Queue.Launch.
type LaunchConfig struct {
	queue  *Queue
	kernel *Kernel
	global []int
	local  []int
	err    error
}

// Launch returns the configuration to enqueue the execution of kernel. The kernel arguments must be set before
// calling Done.
func (q *Queue) Launch(kernel *Kernel) *LaunchConfig {
	cfg := &LaunchConfig{queue: q, kernel: kernel}
	switch {
	case !q.IsValid():
		cfg.err = errors.New("Launch: Queue is nil or has already been destroyed")
	case !kernel.IsValid():
		cfg.err = errors.New("Launch: Kernel is nil or has already been destroyed")
	case kernel.program.ctx != q.ctx:
		cfg.err = errors.WithStack(&Error{Op: "EnqueueNDRangeKernel", Status: InvalidContext,
			Detail: "kernel and queue belong to different contexts"})
	}
	return cfg
}

// WithGlobalSize sets the number of work-items for each dimension (1 to 3 dimensions).
func (cfg *LaunchConfig) WithGlobalSize(sizes ...int) *LaunchConfig {
	cfg.global = slices.Clone(sizes)
	return cfg
}

// WithLocalSize sets the work-group size for each dimension. If not set the driver chooses it.
func (cfg *LaunchConfig) WithLocalSize(sizes ...int) *LaunchConfig {
	cfg.local = slices.Clone(sizes)
	return cfg
}

// Done enqueues the kernel execution and returns the event that completes when all work-items finished.
// The caller owns the event.
func (cfg *LaunchConfig) Done() (*Event, error) {
	if cfg.err != nil {
		return nil, cfg.err
	}
	if len(cfg.global) == 0 {
		return nil, errors.WithStack(&Error{Op: "EnqueueNDRangeKernel", Status: InvalidWorkDimension,
			Detail: "global size not set, use WithGlobalSize"})
	}
	if cfg.local != nil && len(cfg.local) != len(cfg.global) {
		return nil, errors.WithStack(&Error{Op: "EnqueueNDRangeKernel", Status: InvalidWorkDimension,
			Detail: fmt.Sprintf("local size has %d dimensions, global size has %d", len(cfg.local), len(cfg.global))})
	}
	q, k := cfg.queue, cfg.kernel
	id, status := q.ctx.platform.driver.EnqueueNDRangeKernel(q.wrapper.id, k.wrapper.id, cfg.global, cfg.local)
	if status.IsError() {
		return nil, errors.WithStack(&Error{Op: "EnqueueNDRangeKernel", Status: status,
			Detail: fmt.Sprintf("kernel %q, global=%v, local=%v", k.name, cfg.global, cfg.local)})
	}
	klog.V(2).Infof("compute: launched %q global=%v local=%v", k.name, cfg.global, cfg.local)
	return newEvent(q, id, fmt.Sprintf("EnqueueNDRangeKernel(%s)", k.name), nil), nil
}
