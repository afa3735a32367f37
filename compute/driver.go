package compute

import (
	"fmt"
	"strings"

	"github.com/gomlx/clvec/dtypes"
)

// Opaque identifiers of driver resources. Zero is never a valid identifier.
type (
	DeviceID  uintptr
	ContextID uintptr
	ProgramID uintptr
	QueueID   uintptr
	KernelID  uintptr
	BufferID  uintptr
	EventID   uintptr
)

// DeviceType describes the class of a compute device. It can be combined as a bit mask to query devices.
type DeviceType uint32

const (
	DeviceTypeDefault     DeviceType = 1 << 0
	DeviceTypeCPU         DeviceType = 1 << 1
	DeviceTypeGPU         DeviceType = 1 << 2
	DeviceTypeAccelerator DeviceType = 1 << 3
	DeviceTypeAll         DeviceType = 0xFFFFFFFF
)

// String implements fmt.Stringer.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeDefault:
		return "Default"
	case DeviceTypeCPU:
		return "CPU"
	case DeviceTypeGPU:
		return "GPU"
	case DeviceTypeAccelerator:
		return "Accelerator"
	case DeviceTypeAll:
		return "All"
	}
	var parts []string
	for _, single := range []DeviceType{DeviceTypeDefault, DeviceTypeCPU, DeviceTypeGPU, DeviceTypeAccelerator} {
		if t&single != 0 {
			parts = append(parts, single.String())
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("DeviceType(%d)", uint32(t))
	}
	return strings.Join(parts, "|")
}

// ParseDeviceType converts "gpu", "cpu", "accelerator", "default" or "all" (any casing) to a DeviceType.
func ParseDeviceType(name string) (DeviceType, bool) {
	switch strings.ToLower(name) {
	case "gpu":
		return DeviceTypeGPU, true
	case "cpu":
		return DeviceTypeCPU, true
	case "accelerator":
		return DeviceTypeAccelerator, true
	case "default":
		return DeviceTypeDefault, true
	case "all":
		return DeviceTypeAll, true
	}
	return 0, false
}

// MemFlags configures how a buffer is used by kernels.
type MemFlags uint64

const (
	MemReadWrite MemFlags = 1 << 0
	MemWriteOnly MemFlags = 1 << 1
	MemReadOnly  MemFlags = 1 << 2
)

// String implements fmt.Stringer.
func (f MemFlags) String() string {
	switch f {
	case MemReadWrite:
		return "ReadWrite"
	case MemWriteOnly:
		return "WriteOnly"
	case MemReadOnly:
		return "ReadOnly"
	}
	return fmt.Sprintf("MemFlags(%d)", uint64(f))
}

// EventStatus is the execution status of the command associated with an event.
// Negative values mean the command terminated abnormally.
type EventStatus int32

const (
	EventComplete  EventStatus = 0
	EventRunning   EventStatus = 1
	EventSubmitted EventStatus = 2
	EventQueued    EventStatus = 3
)

// String implements fmt.Stringer.
func (s EventStatus) String() string {
	switch s {
	case EventComplete:
		return "Complete"
	case EventRunning:
		return "Running"
	case EventSubmitted:
		return "Submitted"
	case EventQueued:
		return "Queued"
	}
	return fmt.Sprintf("Error(%s)", Status(s))
}

// PlatformInfo describes a platform, as reported by its driver.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
}

// DeviceInfo describes a device, as reported by its driver.
type DeviceInfo struct {
	Name             string
	Vendor           string
	Version          string
	Type             DeviceType
	MaxComputeUnits  int
	MaxWorkGroupSize int
	Extensions       []string
}

// ArgInfo describes one argument of a kernel signature.
type ArgInfo struct {
	Name     string
	TypeName string

	// DType of the scalar argument, or of the elements pointed by a pointer argument.
	DType dtypes.DType

	// IsPointer is true for `__global T *` arguments, which must be bound to a Buffer.
	IsPointer bool

	// IsConst is true if the argument (or the memory it points to) is read-only.
	IsConst bool
}

// String returns the argument in OpenCL C syntax.
func (a ArgInfo) String() string {
	if a.IsPointer {
		prefix := "__global "
		if a.IsConst {
			prefix += "const "
		}
		return fmt.Sprintf("%s%s *%s", prefix, a.DType.CLName(), a.Name)
	}
	if a.IsConst {
		return fmt.Sprintf("const %s %s", a.DType.CLName(), a.Name)
	}
	return fmt.Sprintf("%s %s", a.DType.CLName(), a.Name)
}

// Driver is the table of low-level calls of a compute runtime. Each registered Platform is backed by one Driver.
//
// All calls return a Status: negative values are errors. Resources returned by the Create* calls are owned by the
// caller and must be released with the matching Release* call.
//
// Commands enqueued on a queue execute in submission order. Blocking transfers return only after the data was
// copied; non-blocking ones require the host memory to stay untouched until their event completes.
type Driver interface {
	// PlatformInfo describes the platform.
	PlatformInfo() PlatformInfo

	// Devices lists the devices whose type matches the deviceType mask. It returns DeviceNotFound if there are none.
	Devices(deviceType DeviceType) ([]DeviceID, Status)

	// DeviceInfo describes a device.
	DeviceInfo(device DeviceID) (DeviceInfo, Status)

	CreateContext(device DeviceID, options NamedValuesMap) (ContextID, Status)
	ReleaseContext(ctx ContextID) Status

	// CreateProgramWithSource creates a program from source text, it must be built before creating kernels.
	CreateProgramWithSource(ctx ContextID, source string) (ProgramID, Status)

	// BuildProgram compiles the program for the device. It returns BuildProgramFailure if the compilation fails,
	// and the details are available with ProgramBuildLog.
	BuildProgram(program ProgramID, device DeviceID, options string) Status
	ProgramBuildLog(program ProgramID, device DeviceID) (string, Status)
	ProgramKernelNames(program ProgramID) ([]string, Status)
	ReleaseProgram(program ProgramID) Status

	CreateCommandQueue(ctx ContextID, device DeviceID) (QueueID, Status)
	Finish(queue QueueID) Status
	ReleaseCommandQueue(queue QueueID) Status

	// CreateKernel returns InvalidKernelName if the program has no kernel with the given name.
	CreateKernel(program ProgramID, name string) (KernelID, Status)
	KernelNumArgs(kernel KernelID) (int, Status)

	// KernelArgInfo may return KernelArgInfoNotAvailable.
	KernelArgInfo(kernel KernelID, index int) (ArgInfo, Status)

	// SetKernelArg binds the raw bytes of a scalar value to the argument at the given ordinal position.
	SetKernelArg(kernel KernelID, index int, value []byte) Status

	// SetKernelArgBuffer binds a buffer to the pointer argument at the given ordinal position.
	SetKernelArgBuffer(kernel KernelID, index int, buffer BufferID) Status
	ReleaseKernel(kernel KernelID) Status

	CreateBuffer(ctx ContextID, flags MemFlags, size int) (BufferID, Status)
	ReleaseBuffer(buffer BufferID) Status

	EnqueueWriteBuffer(queue QueueID, buffer BufferID, blocking bool, offset int, data []byte) (EventID, Status)
	EnqueueReadBuffer(queue QueueID, buffer BufferID, blocking bool, offset int, dst []byte) (EventID, Status)

	// EnqueueNDRangeKernel enqueues the execution of the kernel over len(global) dimensions.
	// If local is nil, the work-group size is chosen by the driver.
	EnqueueNDRangeKernel(queue QueueID, kernel KernelID, global, local []int) (EventID, Status)

	// WaitForEvents blocks until all the events complete. It returns ExecStatusErrorInWaitList if any of the
	// commands failed.
	WaitForEvents(events ...EventID) Status
	EventStatus(event EventID) (EventStatus, Status)
	ReleaseEvent(event EventID) Status
}

// EventDetailer is optionally implemented by drivers that can explain why the command of an event failed.
type EventDetailer interface {
	EventDetail(event EventID) string
}
