package host

import (
	"runtime"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/compute/host/clc"
	"k8s.io/klog/v2"
)

type hostContext struct {
	maxWorkers int
	chunkSize  int
}

type hostProgram struct {
	ctx      *hostContext
	source   string
	compiled *clc.Program
	buildLog string
}

type hostKernel struct {
	program *hostProgram
	kernel  *clc.Kernel

	// Arguments set so far: scalars hold their raw bytes, pointers the id of the buffer.
	scalars [][]byte
	buffers []compute.BufferID
	set     []bool
}

type hostBuffer struct {
	ctx   *hostContext
	flags compute.MemFlags
	data  []byte
}

// CreateContext implements compute.Driver.
func (d *Driver) CreateContext(device compute.DeviceID, options compute.NamedValuesMap) (compute.ContextID, compute.Status) {
	if device != deviceID {
		return 0, compute.InvalidDevice
	}
	c := &hostContext{
		maxWorkers: int(options.Int64("max_workers", int64(runtime.NumCPU()))),
		chunkSize:  int(options.Int64("chunk_size", 0)),
	}
	if c.maxWorkers <= 0 || c.chunkSize < 0 {
		klog.Errorf("host: invalid context options %s", options)
		return 0, compute.InvalidValue
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := compute.ContextID(d.newID())
	d.contexts[id] = c
	return id, compute.Success
}

// ReleaseContext implements compute.Driver.
func (d *Driver) ReleaseContext(ctx compute.ContextID) compute.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, found := d.contexts[ctx]; !found {
		return compute.InvalidContext
	}
	delete(d.contexts, ctx)
	return compute.Success
}

// CreateBuffer implements compute.Driver.
func (d *Driver) CreateBuffer(ctx compute.ContextID, flags compute.MemFlags, size int) (compute.BufferID, compute.Status) {
	switch flags {
	case 0:
		flags = compute.MemReadWrite
	case compute.MemReadWrite, compute.MemReadOnly, compute.MemWriteOnly:
	default:
		return 0, compute.InvalidValue
	}
	if size <= 0 {
		return 0, compute.InvalidBufferSize
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, found := d.contexts[ctx]
	if !found {
		return 0, compute.InvalidContext
	}
	id := compute.BufferID(d.newID())
	d.buffers[id] = &hostBuffer{ctx: c, flags: flags, data: make([]byte, size)}
	return id, compute.Success
}

// ReleaseBuffer implements compute.Driver. Commands already enqueued keep using the memory.
func (d *Driver) ReleaseBuffer(buffer compute.BufferID) compute.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, found := d.buffers[buffer]; !found {
		return compute.InvalidMemObject
	}
	delete(d.buffers, buffer)
	return compute.Success
}
