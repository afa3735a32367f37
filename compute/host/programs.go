package host

import (
	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/compute/host/clc"
	"k8s.io/klog/v2"
)

// sourceName is the file name used in the diagnostics of the build log.
const sourceName = "<source>"

// CreateProgramWithSource implements compute.Driver.
func (d *Driver) CreateProgramWithSource(ctx compute.ContextID, source string) (compute.ProgramID, compute.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, found := d.contexts[ctx]
	if !found {
		return 0, compute.InvalidContext
	}
	id := compute.ProgramID(d.newID())
	d.programs[id] = &hostProgram{ctx: c, source: source}
	return id, compute.Success
}

// BuildProgram implements compute.Driver. It compiles the program with clc; on failure the diagnostics are
// kept as the build log.
func (d *Driver) BuildProgram(program compute.ProgramID, device compute.DeviceID, options string) compute.Status {
	if device != deviceID {
		return compute.InvalidDevice
	}
	d.mu.Lock()
	p, found := d.programs[program]
	d.mu.Unlock()
	if !found {
		return compute.InvalidProgram
	}

	opts, err := clc.ParseOptions(options)
	if err != nil {
		d.setBuildResult(p, nil, err.Error())
		return compute.InvalidBuildOptions
	}
	compiled, err := clc.Compile(sourceName, p.source, opts)
	if err != nil {
		log := err.Error()
		d.setBuildResult(p, nil, log)
		klog.V(1).Infof("host: program build failed:\n%s", log)
		return compute.BuildProgramFailure
	}
	d.setBuildResult(p, compiled, "")
	return compute.Success
}

func (d *Driver) setBuildResult(p *hostProgram, compiled *clc.Program, log string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p.compiled = compiled
	p.buildLog = log
}

// ProgramBuildLog implements compute.Driver.
func (d *Driver) ProgramBuildLog(program compute.ProgramID, device compute.DeviceID) (string, compute.Status) {
	if device != deviceID {
		return "", compute.InvalidDevice
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, found := d.programs[program]
	if !found {
		return "", compute.InvalidProgram
	}
	return p.buildLog, compute.Success
}

// ProgramKernelNames implements compute.Driver.
func (d *Driver) ProgramKernelNames(program compute.ProgramID) ([]string, compute.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, found := d.programs[program]
	if !found {
		return nil, compute.InvalidProgram
	}
	if p.compiled == nil {
		return nil, compute.InvalidProgramExecutable
	}
	return p.compiled.KernelNames(), compute.Success
}

// ReleaseProgram implements compute.Driver.
func (d *Driver) ReleaseProgram(program compute.ProgramID) compute.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, found := d.programs[program]; !found {
		return compute.InvalidProgram
	}
	delete(d.programs, program)
	return compute.Success
}

// CreateKernel implements compute.Driver.
func (d *Driver) CreateKernel(program compute.ProgramID, name string) (compute.KernelID, compute.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, found := d.programs[program]
	if !found {
		return 0, compute.InvalidProgram
	}
	if p.compiled == nil {
		return 0, compute.InvalidProgramExecutable
	}
	k := p.compiled.Kernel(name)
	if k == nil {
		return 0, compute.InvalidKernelName
	}
	numParams := len(k.Params)
	id := compute.KernelID(d.newID())
	d.kernels[id] = &hostKernel{
		program: p,
		kernel:  k,
		scalars: make([][]byte, numParams),
		buffers: make([]compute.BufferID, numParams),
		set:     make([]bool, numParams),
	}
	return id, compute.Success
}

// ReleaseKernel implements compute.Driver.
func (d *Driver) ReleaseKernel(kernel compute.KernelID) compute.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, found := d.kernels[kernel]; !found {
		return compute.InvalidKernel
	}
	delete(d.kernels, kernel)
	return compute.Success
}

// KernelNumArgs implements compute.Driver.
func (d *Driver) KernelNumArgs(kernel compute.KernelID) (int, compute.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, found := d.kernels[kernel]
	if !found {
		return 0, compute.InvalidKernel
	}
	return len(k.kernel.Params), compute.Success
}

// KernelArgInfo implements compute.Driver.
func (d *Driver) KernelArgInfo(kernel compute.KernelID, index int) (compute.ArgInfo, compute.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, found := d.kernels[kernel]
	if !found {
		return compute.ArgInfo{}, compute.InvalidKernel
	}
	if index < 0 || index >= len(k.kernel.Params) {
		return compute.ArgInfo{}, compute.InvalidArgIndex
	}
	param := k.kernel.Params[index]
	return compute.ArgInfo{
		Name:      param.Name,
		TypeName:  param.TypeName,
		DType:     param.DType,
		IsPointer: param.IsPointer,
		IsConst:   param.IsConst,
	}, compute.Success
}

// SetKernelArg implements compute.Driver.
func (d *Driver) SetKernelArg(kernel compute.KernelID, index int, value []byte) compute.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, param, status := d.kernelParam(kernel, index)
	if status.IsError() {
		return status
	}
	if param.IsPointer {
		return compute.InvalidArgValue
	}
	if len(value) != param.DType.Size() {
		return compute.InvalidArgSize
	}
	k.scalars[index] = append([]byte(nil), value...)
	k.set[index] = true
	return compute.Success
}

// SetKernelArgBuffer implements compute.Driver.
func (d *Driver) SetKernelArgBuffer(kernel compute.KernelID, index int, buffer compute.BufferID) compute.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, param, status := d.kernelParam(kernel, index)
	if status.IsError() {
		return status
	}
	if !param.IsPointer {
		return compute.InvalidArgValue
	}
	b, found := d.buffers[buffer]
	if !found {
		return compute.InvalidMemObject
	}
	if b.ctx != k.program.ctx {
		return compute.InvalidContext
	}
	k.buffers[index] = buffer
	k.set[index] = true
	return compute.Success
}

// kernelParam must be called with mu locked.
func (d *Driver) kernelParam(kernel compute.KernelID, index int) (*hostKernel, clc.Param, compute.Status) {
	k, found := d.kernels[kernel]
	if !found {
		return nil, clc.Param{}, compute.InvalidKernel
	}
	if index < 0 || index >= len(k.kernel.Params) {
		return nil, clc.Param{}, compute.InvalidArgIndex
	}
	return k, k.kernel.Params[index], compute.Success
}

// bindArgs collects the kernel arguments set so far. It must be called with mu locked.
func (d *Driver) bindArgs(k *hostKernel) ([]clc.Arg, compute.Status) {
	args := make([]clc.Arg, len(k.kernel.Params))
	for ii, param := range k.kernel.Params {
		if !k.set[ii] {
			return nil, compute.InvalidKernelArgs
		}
		if !param.IsPointer {
			args[ii].Scalar = k.scalars[ii]
			continue
		}
		b, found := d.buffers[k.buffers[ii]]
		if !found {
			return nil, compute.InvalidMemObject
		}
		if len(b.data)%param.DType.Size() != 0 {
			klog.Warningf("host: buffer of %d bytes bound to %s argument %q", len(b.data),
				param.DType, param.Name)
		}
		args[ii].Buffer = b.data
	}
	return args, compute.Success
}
