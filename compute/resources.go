package compute

import (
	"runtime"
	"sync/atomic"

	"k8s.io/klog/v2"
)

var (
	contextsAlive, programsAlive, kernelsAlive atomic.Int64
	queuesAlive, buffersAlive, eventsAlive     atomic.Int64
)

// ContextsAlive returns the number of contexts created and not yet destroyed.
func ContextsAlive() int64 { return contextsAlive.Load() }

// ProgramsAlive returns the number of programs created and not yet destroyed.
func ProgramsAlive() int64 { return programsAlive.Load() }

// KernelsAlive returns the number of kernels created and not yet destroyed.
func KernelsAlive() int64 { return kernelsAlive.Load() }

// QueuesAlive returns the number of command queues created and not yet destroyed.
func QueuesAlive() int64 { return queuesAlive.Load() }

// BuffersAlive returns the number of device buffers created and not yet destroyed.
func BuffersAlive() int64 { return buffersAlive.Load() }

// EventsAlive returns the number of events created and not yet destroyed.
func EventsAlive() int64 { return eventsAlive.Load() }

// wrapper holds a driver handle that requires clean up.
//
// It must not reference the Go object that owns it, so the owner can be garbage collected and the
// cleanup run.
type wrapper[ID ~uintptr] struct {
	id      ID
	op      string
	release func(ID) Status
	alive   *atomic.Int64
}

func newWrapper[ID ~uintptr](id ID, op string, release func(ID) Status, alive *atomic.Int64) *wrapper[ID] {
	alive.Add(1)
	return &wrapper[ID]{id: id, op: op, release: release, alive: alive}
}

func (w *wrapper[ID]) IsValid() bool {
	return w != nil && w.id != 0
}

// Destroy releases the handle. It is a no-op if it has already been released.
func (w *wrapper[ID]) Destroy() error {
	if !w.IsValid() {
		return nil
	}
	status := w.release(w.id)
	w.id = 0
	w.release = nil
	w.alive.Add(-1)
	return toError(w.op, status)
}

// addCleanup registers the release of the wrapper when owner is garbage collected.
func addCleanup[T any, ID ~uintptr](owner *T, w *wrapper[ID], name string) {
	runtime.AddCleanup(owner, func(w *wrapper[ID]) {
		if err := w.Destroy(); err != nil {
			klog.Errorf("compute.%s.Destroy failed: %v", name, err)
		}
	}, w)
}
