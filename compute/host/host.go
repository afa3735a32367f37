// Package host implements a compute.Driver that runs kernels on the CPU, in pure Go.
//
// Kernels are compiled from OpenCL C source with the clc package, and the work-items of a launch are split in
// chunks executed by a bounded pool of goroutines.
//
// Importing the package registers the platform "host":
//
//	import _ "github.com/gomlx/clvec/compute/host"
//
// Context options (compute.NamedValuesMap):
//
//   - "max_workers" (int64): maximum number of goroutines running chunks of a launch. Default is runtime.NumCPU().
//   - "chunk_size" (int64): number of work-items per chunk. Default is chosen from the size of the launch.
package host

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/gomlx/clvec/compute"
	"k8s.io/klog/v2"
)

// PlatformName under which the driver registers itself.
const PlatformName = "host"

// Priority of the host platform: the lowest, any other platform is preferred.
const Priority = 0

// MaxWorkGroupSize reported for the host device.
const MaxWorkGroupSize = 1024

// deviceID of the only device of the platform.
const deviceID compute.DeviceID = 1

func init() {
	if err := compute.RegisterPlatform(PlatformName, Priority, New()); err != nil {
		klog.Errorf("host: failed to register platform: %+v", err)
	}
}

// Driver implements compute.Driver for the host CPU.
//
// Resources are kept in maps from their ids, all guarded by mu.
type Driver struct {
	mu     sync.Mutex
	nextID uintptr

	contexts map[compute.ContextID]*hostContext
	programs map[compute.ProgramID]*hostProgram
	queues   map[compute.QueueID]*hostQueue
	kernels  map[compute.KernelID]*hostKernel
	buffers  map[compute.BufferID]*hostBuffer
	events   map[compute.EventID]*hostEvent

	device compute.DeviceInfo
}

var _ compute.Driver = (*Driver)(nil)
var _ compute.EventDetailer = (*Driver)(nil)

// New creates a new host driver. Usually one doesn't need to call it: the package registers one driver as the
// "host" platform.
func New() *Driver {
	return &Driver{
		contexts: make(map[compute.ContextID]*hostContext),
		programs: make(map[compute.ProgramID]*hostProgram),
		queues:   make(map[compute.QueueID]*hostQueue),
		kernels:  make(map[compute.KernelID]*hostKernel),
		buffers:  make(map[compute.BufferID]*hostBuffer),
		events:   make(map[compute.EventID]*hostEvent),
		device: compute.DeviceInfo{
			Name:             fmt.Sprintf("Go CPU (%s/%s)", runtime.GOOS, runtime.GOARCH),
			Vendor:           "clvec",
			Version:          "OpenCL C subset (host)",
			Type:             compute.DeviceTypeCPU,
			MaxComputeUnits:  runtime.NumCPU(),
			MaxWorkGroupSize: MaxWorkGroupSize,
			Extensions:       cpuFeatures(),
		},
	}
}

// newID returns a new resource id. It must be called with mu locked.
func (d *Driver) newID() uintptr {
	d.nextID++
	return d.nextID
}

// PlatformInfo implements compute.Driver.
func (d *Driver) PlatformInfo() compute.PlatformInfo {
	return compute.PlatformInfo{
		Name:    "Go host",
		Vendor:  "clvec",
		Version: runtime.Version(),
	}
}

// Devices implements compute.Driver. The only device is of type CPU.
func (d *Driver) Devices(deviceType compute.DeviceType) ([]compute.DeviceID, compute.Status) {
	if deviceType&(compute.DeviceTypeCPU|compute.DeviceTypeDefault) == 0 {
		return nil, compute.DeviceNotFound
	}
	return []compute.DeviceID{deviceID}, compute.Success
}

// DeviceInfo implements compute.Driver.
func (d *Driver) DeviceInfo(device compute.DeviceID) (compute.DeviceInfo, compute.Status) {
	if device != deviceID {
		return compute.DeviceInfo{}, compute.InvalidDevice
	}
	return d.device, compute.Success
}

// Alive returns the number of resources currently held by the driver, of all types.
// It is mostly used for testing.
func (d *Driver) Alive() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contexts) + len(d.programs) + len(d.queues) + len(d.kernels) + len(d.buffers) + len(d.events)
}
