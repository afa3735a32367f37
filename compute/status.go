package compute

import "fmt"

// Status is the numeric status code returned by driver calls. Negative values are errors.
//
// The values match the OpenCL error codes, so drivers over OpenCL can pass them through unchanged.
type Status int32

const (
	Success                    Status = 0
	DeviceNotFound             Status = -1
	DeviceNotAvailable         Status = -2
	CompilerNotAvailable       Status = -3
	MemObjectAllocationFailure Status = -4
	OutOfResources             Status = -5
	OutOfHostMemory            Status = -6
	MemCopyOverlap             Status = -8
	BuildProgramFailure        Status = -11
	ExecStatusErrorInWaitList  Status = -14
	KernelArgInfoNotAvailable  Status = -19
	InvalidValue               Status = -30
	InvalidDeviceType          Status = -31
	InvalidPlatform            Status = -32
	InvalidDevice              Status = -33
	InvalidContext             Status = -34
	InvalidQueueProperties     Status = -35
	InvalidCommandQueue        Status = -36
	InvalidHostPtr             Status = -37
	InvalidMemObject           Status = -38
	InvalidBinary              Status = -42
	InvalidBuildOptions        Status = -43
	InvalidProgram             Status = -44
	InvalidProgramExecutable   Status = -45
	InvalidKernelName          Status = -46
	InvalidKernelDefinition    Status = -47
	InvalidKernel              Status = -48
	InvalidArgIndex            Status = -49
	InvalidArgValue            Status = -50
	InvalidArgSize             Status = -51
	InvalidKernelArgs          Status = -52
	InvalidWorkDimension       Status = -53
	InvalidWorkGroupSize       Status = -54
	InvalidWorkItemSize        Status = -55
	InvalidGlobalOffset        Status = -56
	InvalidEventWaitList       Status = -57
	InvalidEvent               Status = -58
	InvalidOperation           Status = -59
	InvalidBufferSize          Status = -61
	InvalidGlobalWorkSize      Status = -63
	PlatformNotFoundKHR        Status = -1001
)

var statusNames = map[Status]string{
	Success:                    "SUCCESS",
	DeviceNotFound:             "DEVICE_NOT_FOUND",
	DeviceNotAvailable:         "DEVICE_NOT_AVAILABLE",
	CompilerNotAvailable:       "COMPILER_NOT_AVAILABLE",
	MemObjectAllocationFailure: "MEM_OBJECT_ALLOCATION_FAILURE",
	OutOfResources:             "OUT_OF_RESOURCES",
	OutOfHostMemory:            "OUT_OF_HOST_MEMORY",
	MemCopyOverlap:             "MEM_COPY_OVERLAP",
	BuildProgramFailure:        "BUILD_PROGRAM_FAILURE",
	ExecStatusErrorInWaitList:  "EXEC_STATUS_ERROR_FOR_EVENTS_IN_WAIT_LIST",
	KernelArgInfoNotAvailable:  "KERNEL_ARG_INFO_NOT_AVAILABLE",
	InvalidValue:               "INVALID_VALUE",
	InvalidDeviceType:          "INVALID_DEVICE_TYPE",
	InvalidPlatform:            "INVALID_PLATFORM",
	InvalidDevice:              "INVALID_DEVICE",
	InvalidContext:             "INVALID_CONTEXT",
	InvalidQueueProperties:     "INVALID_QUEUE_PROPERTIES",
	InvalidCommandQueue:        "INVALID_COMMAND_QUEUE",
	InvalidHostPtr:             "INVALID_HOST_PTR",
	InvalidMemObject:           "INVALID_MEM_OBJECT",
	InvalidBinary:              "INVALID_BINARY",
	InvalidBuildOptions:        "INVALID_BUILD_OPTIONS",
	InvalidProgram:             "INVALID_PROGRAM",
	InvalidProgramExecutable:   "INVALID_PROGRAM_EXECUTABLE",
	InvalidKernelName:          "INVALID_KERNEL_NAME",
	InvalidKernelDefinition:    "INVALID_KERNEL_DEFINITION",
	InvalidKernel:              "INVALID_KERNEL",
	InvalidArgIndex:            "INVALID_ARG_INDEX",
	InvalidArgValue:            "INVALID_ARG_VALUE",
	InvalidArgSize:             "INVALID_ARG_SIZE",
	InvalidKernelArgs:          "INVALID_KERNEL_ARGS",
	InvalidWorkDimension:       "INVALID_WORK_DIMENSION",
	InvalidWorkGroupSize:       "INVALID_WORK_GROUP_SIZE",
	InvalidWorkItemSize:        "INVALID_WORK_ITEM_SIZE",
	InvalidGlobalOffset:        "INVALID_GLOBAL_OFFSET",
	InvalidEventWaitList:       "INVALID_EVENT_WAIT_LIST",
	InvalidEvent:               "INVALID_EVENT",
	InvalidOperation:           "INVALID_OPERATION",
	InvalidBufferSize:          "INVALID_BUFFER_SIZE",
	InvalidGlobalWorkSize:      "INVALID_GLOBAL_WORK_SIZE",
	PlatformNotFoundKHR:        "PLATFORM_NOT_FOUND_KHR",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if name, found := statusNames[s]; found {
		return name
	}
	return fmt.Sprintf("UNKNOWN_STATUS_%d", int32(s))
}

// IsError returns whether the status represents a failure.
func (s Status) IsError() bool {
	return s < 0
}
