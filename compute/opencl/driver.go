//go:build opencl

package opencl

/*
#cgo LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>

static cl_program clvec_create_program(cl_context ctx, const char *source, cl_int *status) {
	return clCreateProgramWithSource(ctx, 1, &source, NULL, status);
}

static cl_int clvec_enqueue_ndrange(cl_command_queue queue, cl_kernel kernel, cl_uint dims,
		const size_t *global, const size_t *local, cl_event *event) {
	return clEnqueueNDRangeKernel(queue, kernel, dims, NULL, global, local, 0, NULL, event);
}
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/dtypes"
	"k8s.io/klog/v2"
)

// kernelArgInfoOption makes clGetKernelArgInfo available for the built programs.
const kernelArgInfoOption = "-cl-kernel-arg-info"

func init() {
	platforms, err := Platforms()
	if err != nil {
		klog.V(1).Infof("opencl: no platforms available: %v", err)
		return
	}
	for ii, d := range platforms {
		name := PlatformName
		if ii > 0 {
			name = fmt.Sprintf("%s:%d", PlatformName, ii)
		}
		if err := compute.RegisterPlatform(name, Priority, d); err != nil {
			klog.Errorf("opencl: failed to register platform %q: %+v", name, err)
		}
	}
}

// Driver implements compute.Driver for one OpenCL platform.
type Driver struct {
	platform C.cl_platform_id
	info     compute.PlatformInfo
}

var _ compute.Driver = (*Driver)(nil)

// Platforms returns one driver per OpenCL platform installed.
func Platforms() ([]*Driver, error) {
	var count C.cl_uint
	if status := C.clGetPlatformIDs(0, nil, &count); status != C.CL_SUCCESS {
		return nil, &compute.Error{Op: "clGetPlatformIDs", Status: compute.Status(status)}
	}
	if count == 0 {
		return nil, nil
	}
	ids := make([]C.cl_platform_id, int(count))
	if status := C.clGetPlatformIDs(count, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, &compute.Error{Op: "clGetPlatformIDs", Status: compute.Status(status)}
	}
	drivers := make([]*Driver, 0, len(ids))
	for _, id := range ids {
		drivers = append(drivers, &Driver{
			platform: id,
			info: compute.PlatformInfo{
				Name:    platformString(id, C.CL_PLATFORM_NAME),
				Vendor:  platformString(id, C.CL_PLATFORM_VENDOR),
				Version: platformString(id, C.CL_PLATFORM_VERSION),
			},
		})
	}
	return drivers, nil
}

func platformString(id C.cl_platform_id, param C.cl_platform_info) string {
	var size C.size_t
	if status := C.clGetPlatformInfo(id, param, 0, nil, &size); status != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, int(size))
	if status := C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return ""
	}
	return trimNull(buf)
}

func deviceString(id C.cl_device_id, param C.cl_device_info) string {
	var size C.size_t
	if status := C.clGetDeviceInfo(id, param, 0, nil, &size); status != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, int(size))
	if status := C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return ""
	}
	return trimNull(buf)
}

func trimNull(buf []byte) string {
	if len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

// Handle conversions: OpenCL handles are opaque pointers owned by the runtime.

func toDevice(id compute.DeviceID) C.cl_device_id   { return C.cl_device_id(unsafe.Pointer(id)) }
func toContext(id compute.ContextID) C.cl_context   { return C.cl_context(unsafe.Pointer(id)) }
func toProgram(id compute.ProgramID) C.cl_program   { return C.cl_program(unsafe.Pointer(id)) }
func toQueue(id compute.QueueID) C.cl_command_queue { return C.cl_command_queue(unsafe.Pointer(id)) }
func toKernel(id compute.KernelID) C.cl_kernel      { return C.cl_kernel(unsafe.Pointer(id)) }
func toBuffer(id compute.BufferID) C.cl_mem         { return C.cl_mem(unsafe.Pointer(id)) }
func toEvent(id compute.EventID) C.cl_event         { return C.cl_event(unsafe.Pointer(id)) }

// PlatformInfo implements compute.Driver.
func (d *Driver) PlatformInfo() compute.PlatformInfo { return d.info }

// Devices implements compute.Driver.
func (d *Driver) Devices(deviceType compute.DeviceType) ([]compute.DeviceID, compute.Status) {
	var count C.cl_uint
	clType := C.cl_device_type(deviceType)
	if status := C.clGetDeviceIDs(d.platform, clType, 0, nil, &count); status != C.CL_SUCCESS {
		return nil, compute.Status(status)
	}
	if count == 0 {
		return nil, compute.DeviceNotFound
	}
	ids := make([]C.cl_device_id, int(count))
	if status := C.clGetDeviceIDs(d.platform, clType, count, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, compute.Status(status)
	}
	devices := make([]compute.DeviceID, len(ids))
	for ii, id := range ids {
		devices[ii] = compute.DeviceID(uintptr(unsafe.Pointer(id)))
	}
	return devices, compute.Success
}

// DeviceInfo implements compute.Driver.
func (d *Driver) DeviceInfo(device compute.DeviceID) (compute.DeviceInfo, compute.Status) {
	id := toDevice(device)
	var rawType C.cl_device_type
	status := C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(rawType)), unsafe.Pointer(&rawType), nil)
	if status != C.CL_SUCCESS {
		return compute.DeviceInfo{}, compute.Status(status)
	}
	var computeUnits C.cl_uint
	C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(computeUnits)), unsafe.Pointer(&computeUnits), nil)
	var groupSize C.size_t
	C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_WORK_GROUP_SIZE, C.size_t(unsafe.Sizeof(groupSize)), unsafe.Pointer(&groupSize), nil)
	return compute.DeviceInfo{
		Name:             deviceString(id, C.CL_DEVICE_NAME),
		Vendor:           deviceString(id, C.CL_DEVICE_VENDOR),
		Version:          deviceString(id, C.CL_DEVICE_VERSION),
		Type:             compute.DeviceType(rawType) &^ compute.DeviceTypeDefault,
		MaxComputeUnits:  int(computeUnits),
		MaxWorkGroupSize: int(groupSize),
		Extensions:       strings.Fields(deviceString(id, C.CL_DEVICE_EXTENSIONS)),
	}, compute.Success
}

// CreateContext implements compute.Driver. Options are ignored.
func (d *Driver) CreateContext(device compute.DeviceID, _ compute.NamedValuesMap) (compute.ContextID, compute.Status) {
	var status C.cl_int
	id := toDevice(device)
	ctx := C.clCreateContext(nil, 1, &id, nil, nil, &status)
	return compute.ContextID(uintptr(unsafe.Pointer(ctx))), compute.Status(status)
}

// ReleaseContext implements compute.Driver.
func (d *Driver) ReleaseContext(ctx compute.ContextID) compute.Status {
	return compute.Status(C.clReleaseContext(toContext(ctx)))
}

// CreateProgramWithSource implements compute.Driver.
func (d *Driver) CreateProgramWithSource(ctx compute.ContextID, source string) (compute.ProgramID, compute.Status) {
	cSource := C.CString(source)
	defer C.free(unsafe.Pointer(cSource))
	var status C.cl_int
	program := C.clvec_create_program(toContext(ctx), cSource, &status)
	return compute.ProgramID(uintptr(unsafe.Pointer(program))), compute.Status(status)
}

// BuildProgram implements compute.Driver. It always adds the option to keep the kernel argument information.
func (d *Driver) BuildProgram(program compute.ProgramID, device compute.DeviceID, options string) compute.Status {
	cOptions := C.CString(strings.TrimSpace(options + " " + kernelArgInfoOption))
	defer C.free(unsafe.Pointer(cOptions))
	id := toDevice(device)
	return compute.Status(C.clBuildProgram(toProgram(program), 1, &id, cOptions, nil, nil))
}

// ProgramBuildLog implements compute.Driver.
func (d *Driver) ProgramBuildLog(program compute.ProgramID, device compute.DeviceID) (string, compute.Status) {
	var size C.size_t
	status := C.clGetProgramBuildInfo(toProgram(program), toDevice(device), C.CL_PROGRAM_BUILD_LOG, 0, nil, &size)
	if status != C.CL_SUCCESS || size == 0 {
		return "", compute.Status(status)
	}
	buf := make([]byte, int(size))
	status = C.clGetProgramBuildInfo(toProgram(program), toDevice(device), C.CL_PROGRAM_BUILD_LOG, size,
		unsafe.Pointer(&buf[0]), nil)
	return trimNull(buf), compute.Status(status)
}

// ProgramKernelNames implements compute.Driver.
func (d *Driver) ProgramKernelNames(program compute.ProgramID) ([]string, compute.Status) {
	var size C.size_t
	status := C.clGetProgramInfo(toProgram(program), C.CL_PROGRAM_KERNEL_NAMES, 0, nil, &size)
	if status != C.CL_SUCCESS || size == 0 {
		return nil, compute.Status(status)
	}
	buf := make([]byte, int(size))
	status = C.clGetProgramInfo(toProgram(program), C.CL_PROGRAM_KERNEL_NAMES, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return nil, compute.Status(status)
	}
	names := trimNull(buf)
	if names == "" {
		return nil, compute.Success
	}
	return strings.Split(names, ";"), compute.Success
}

// ReleaseProgram implements compute.Driver.
func (d *Driver) ReleaseProgram(program compute.ProgramID) compute.Status {
	return compute.Status(C.clReleaseProgram(toProgram(program)))
}

// CreateCommandQueue implements compute.Driver, with an in-order queue.
func (d *Driver) CreateCommandQueue(ctx compute.ContextID, device compute.DeviceID) (compute.QueueID, compute.Status) {
	var status C.cl_int
	queue := C.clCreateCommandQueue(toContext(ctx), toDevice(device), 0, &status)
	return compute.QueueID(uintptr(unsafe.Pointer(queue))), compute.Status(status)
}

// Finish implements compute.Driver.
func (d *Driver) Finish(queue compute.QueueID) compute.Status {
	return compute.Status(C.clFinish(toQueue(queue)))
}

// ReleaseCommandQueue implements compute.Driver.
func (d *Driver) ReleaseCommandQueue(queue compute.QueueID) compute.Status {
	return compute.Status(C.clReleaseCommandQueue(toQueue(queue)))
}

// CreateKernel implements compute.Driver.
func (d *Driver) CreateKernel(program compute.ProgramID, name string) (compute.KernelID, compute.Status) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	var status C.cl_int
	kernel := C.clCreateKernel(toProgram(program), cName, &status)
	return compute.KernelID(uintptr(unsafe.Pointer(kernel))), compute.Status(status)
}

// KernelNumArgs implements compute.Driver.
func (d *Driver) KernelNumArgs(kernel compute.KernelID) (int, compute.Status) {
	var numArgs C.cl_uint
	status := C.clGetKernelInfo(toKernel(kernel), C.CL_KERNEL_NUM_ARGS, C.size_t(unsafe.Sizeof(numArgs)),
		unsafe.Pointer(&numArgs), nil)
	return int(numArgs), compute.Status(status)
}

func kernelArgString(kernel C.cl_kernel, index C.cl_uint, param C.cl_kernel_arg_info) (string, C.cl_int) {
	var size C.size_t
	status := C.clGetKernelArgInfo(kernel, index, param, 0, nil, &size)
	if status != C.CL_SUCCESS || size == 0 {
		return "", status
	}
	buf := make([]byte, int(size))
	status = C.clGetKernelArgInfo(kernel, index, param, size, unsafe.Pointer(&buf[0]), nil)
	return trimNull(buf), status
}

// KernelArgInfo implements compute.Driver.
func (d *Driver) KernelArgInfo(kernel compute.KernelID, index int) (compute.ArgInfo, compute.Status) {
	k, ii := toKernel(kernel), C.cl_uint(index)
	typeName, status := kernelArgString(k, ii, C.CL_KERNEL_ARG_TYPE_NAME)
	if status != C.CL_SUCCESS {
		return compute.ArgInfo{}, compute.Status(status)
	}
	name, _ := kernelArgString(k, ii, C.CL_KERNEL_ARG_NAME)
	var addrQualifier C.cl_kernel_arg_address_qualifier
	C.clGetKernelArgInfo(k, ii, C.CL_KERNEL_ARG_ADDRESS_QUALIFIER, C.size_t(unsafe.Sizeof(addrQualifier)),
		unsafe.Pointer(&addrQualifier), nil)
	var typeQualifier C.cl_kernel_arg_type_qualifier
	C.clGetKernelArgInfo(k, ii, C.CL_KERNEL_ARG_TYPE_QUALIFIER, C.size_t(unsafe.Sizeof(typeQualifier)),
		unsafe.Pointer(&typeQualifier), nil)

	isPointer := strings.HasSuffix(typeName, "*")
	baseName := strings.TrimSpace(strings.TrimSuffix(typeName, "*"))
	return compute.ArgInfo{
		Name:      name,
		TypeName:  baseName,
		DType:     dtypes.FromCLName(baseName),
		IsPointer: isPointer,
		IsConst: typeQualifier&C.CL_KERNEL_ARG_TYPE_CONST != 0 ||
			addrQualifier == C.CL_KERNEL_ARG_ADDRESS_CONSTANT,
	}, compute.Success
}

// SetKernelArg implements compute.Driver.
func (d *Driver) SetKernelArg(kernel compute.KernelID, index int, value []byte) compute.Status {
	if len(value) == 0 {
		return compute.InvalidArgValue
	}
	cValue := C.CBytes(value)
	defer C.free(cValue)
	return compute.Status(C.clSetKernelArg(toKernel(kernel), C.cl_uint(index), C.size_t(len(value)), cValue))
}

// SetKernelArgBuffer implements compute.Driver.
func (d *Driver) SetKernelArgBuffer(kernel compute.KernelID, index int, buffer compute.BufferID) compute.Status {
	mem := (*C.cl_mem)(C.malloc(C.size_t(unsafe.Sizeof(C.cl_mem(nil)))))
	defer C.free(unsafe.Pointer(mem))
	*mem = toBuffer(buffer)
	return compute.Status(C.clSetKernelArg(toKernel(kernel), C.cl_uint(index), C.size_t(unsafe.Sizeof(*mem)),
		unsafe.Pointer(mem)))
}

// ReleaseKernel implements compute.Driver.
func (d *Driver) ReleaseKernel(kernel compute.KernelID) compute.Status {
	return compute.Status(C.clReleaseKernel(toKernel(kernel)))
}

// CreateBuffer implements compute.Driver.
func (d *Driver) CreateBuffer(ctx compute.ContextID, flags compute.MemFlags, size int) (compute.BufferID, compute.Status) {
	var clFlags C.cl_mem_flags
	switch flags {
	case compute.MemReadOnly:
		clFlags = C.CL_MEM_READ_ONLY
	case compute.MemWriteOnly:
		clFlags = C.CL_MEM_WRITE_ONLY
	default:
		clFlags = C.CL_MEM_READ_WRITE
	}
	var status C.cl_int
	mem := C.clCreateBuffer(toContext(ctx), clFlags, C.size_t(size), nil, &status)
	return compute.BufferID(uintptr(unsafe.Pointer(mem))), compute.Status(status)
}

// ReleaseBuffer implements compute.Driver.
func (d *Driver) ReleaseBuffer(buffer compute.BufferID) compute.Status {
	return compute.Status(C.clReleaseMemObject(toBuffer(buffer)))
}

// EnqueueWriteBuffer implements compute.Driver. The write is always blocking.
func (d *Driver) EnqueueWriteBuffer(queue compute.QueueID, buffer compute.BufferID, _ bool, offset int, data []byte) (compute.EventID, compute.Status) {
	if len(data) == 0 {
		return 0, compute.InvalidValue
	}
	var event C.cl_event
	status := C.clEnqueueWriteBuffer(toQueue(queue), toBuffer(buffer), C.CL_TRUE, C.size_t(offset),
		C.size_t(len(data)), unsafe.Pointer(&data[0]), 0, nil, &event)
	return compute.EventID(uintptr(unsafe.Pointer(event))), compute.Status(status)
}

// EnqueueReadBuffer implements compute.Driver. The read is always blocking.
func (d *Driver) EnqueueReadBuffer(queue compute.QueueID, buffer compute.BufferID, _ bool, offset int, dst []byte) (compute.EventID, compute.Status) {
	if len(dst) == 0 {
		return 0, compute.InvalidValue
	}
	var event C.cl_event
	status := C.clEnqueueReadBuffer(toQueue(queue), toBuffer(buffer), C.CL_TRUE, C.size_t(offset),
		C.size_t(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, &event)
	return compute.EventID(uintptr(unsafe.Pointer(event))), compute.Status(status)
}

// EnqueueNDRangeKernel implements compute.Driver.
func (d *Driver) EnqueueNDRangeKernel(queue compute.QueueID, kernel compute.KernelID, global, local []int) (compute.EventID, compute.Status) {
	if len(global) < 1 || len(global) > 3 {
		return 0, compute.InvalidWorkDimension
	}
	sizes := (*[6]C.size_t)(C.malloc(C.size_t(unsafe.Sizeof([6]C.size_t{}))))
	defer C.free(unsafe.Pointer(sizes))
	for ii, g := range global {
		sizes[ii] = C.size_t(g)
	}
	var localPtr *C.size_t
	if local != nil {
		for ii, l := range local {
			sizes[3+ii] = C.size_t(l)
		}
		localPtr = &sizes[3]
	}
	var event C.cl_event
	status := C.clvec_enqueue_ndrange(toQueue(queue), toKernel(kernel), C.cl_uint(len(global)), &sizes[0], localPtr, &event)
	return compute.EventID(uintptr(unsafe.Pointer(event))), compute.Status(status)
}

// WaitForEvents implements compute.Driver.
func (d *Driver) WaitForEvents(events ...compute.EventID) compute.Status {
	if len(events) == 0 {
		return compute.InvalidValue
	}
	list := (*C.cl_event)(C.malloc(C.size_t(len(events)) * C.size_t(unsafe.Sizeof(C.cl_event(nil)))))
	defer C.free(unsafe.Pointer(list))
	for ii, event := range events {
		unsafe.Slice(list, len(events))[ii] = toEvent(event)
	}
	return compute.Status(C.clWaitForEvents(C.cl_uint(len(events)), list))
}

// EventStatus implements compute.Driver.
func (d *Driver) EventStatus(event compute.EventID) (compute.EventStatus, compute.Status) {
	var execStatus C.cl_int
	status := C.clGetEventInfo(toEvent(event), C.CL_EVENT_COMMAND_EXECUTION_STATUS,
		C.size_t(unsafe.Sizeof(execStatus)), unsafe.Pointer(&execStatus), nil)
	return compute.EventStatus(execStatus), compute.Status(status)
}

// ReleaseEvent implements compute.Driver.
func (d *Driver) ReleaseEvent(event compute.EventID) compute.Status {
	return compute.Status(C.clReleaseEvent(toEvent(event)))
}
