package host

import (
	"encoding/binary"
	"testing"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

const addSource = `
__kernel void add(const int size, __global const int *a, __global const int *b, __global int *c) {
    int i = get_global_id(0);
    if (i < size)
        c[i] = a[i] + b[i];
}

__kernel void fill(__global int *v, const int value) {
    v[get_global_id(0)] = value;
}
`

func int32Bytes(values ...int32) []byte {
	return must.M1(binary.Append(nil, binary.NativeEndian, values))
}

func bytesInt32(data []byte) []int32 {
	out := make([]int32, len(data)/4)
	must.M1(binary.Decode(data, binary.NativeEndian, out))
	return out
}

func requireSuccess(t *testing.T, status compute.Status) {
	t.Helper()
	require.Equalf(t, compute.Success, status, "got status %s", status)
}

// newTestContext creates a driver, a context, a queue and a built program from source.
func newTestContext(t *testing.T, options compute.NamedValuesMap, source string) (*Driver, compute.ContextID, compute.QueueID, compute.ProgramID) {
	d := New()
	ctx, status := d.CreateContext(deviceID, options)
	requireSuccess(t, status)
	queue, status := d.CreateCommandQueue(ctx, deviceID)
	requireSuccess(t, status)
	program, status := d.CreateProgramWithSource(ctx, source)
	requireSuccess(t, status)
	requireSuccess(t, d.BuildProgram(program, deviceID, ""))
	return d, ctx, queue, program
}

func TestRegistration(t *testing.T) {
	platform, err := compute.GetPlatform(PlatformName)
	require.NoError(t, err)
	require.Equal(t, Priority, platform.Priority())
	devices, err := platform.Devices(compute.DeviceTypeCPU)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, compute.DeviceTypeCPU, devices[0].Info().Type)
	require.Equal(t, MaxWorkGroupSize, devices[0].Info().MaxWorkGroupSize)

	_, err = platform.Devices(compute.DeviceTypeGPU)
	require.True(t, compute.IsStatus(err, compute.DeviceNotFound))
}

func TestDriver_Add(t *testing.T) {
	for _, options := range []compute.NamedValuesMap{
		nil,
		{"max_workers": int64(1)},
		{"max_workers": int64(3), "chunk_size": int64(7)},
	} {
		d, ctx, queue, program := newTestContext(t, options, addSource)

		names, status := d.ProgramKernelNames(program)
		requireSuccess(t, status)
		require.Equal(t, []string{"add", "fill"}, names)

		kernel, status := d.CreateKernel(program, "add")
		requireSuccess(t, status)
		numArgs, status := d.KernelNumArgs(kernel)
		requireSuccess(t, status)
		require.Equal(t, 4, numArgs)
		info, status := d.KernelArgInfo(kernel, 1)
		requireSuccess(t, status)
		require.Equal(t, compute.ArgInfo{Name: "a", TypeName: "int", DType: dtypes.Int32, IsPointer: true, IsConst: true}, info)

		const n = 1000
		a, b := make([]int32, n), make([]int32, n)
		for ii := range n {
			a[ii], b[ii] = int32(ii), int32(2*ii)
		}
		var buffers [3]compute.BufferID
		for ii := range buffers {
			buffers[ii], status = d.CreateBuffer(ctx, compute.MemReadWrite, 4*n)
			requireSuccess(t, status)
		}
		for ii, data := range [][]int32{a, b} {
			event, status := d.EnqueueWriteBuffer(queue, buffers[ii], true, 0, int32Bytes(data...))
			requireSuccess(t, status)
			requireSuccess(t, d.ReleaseEvent(event))
		}

		requireSuccess(t, d.SetKernelArg(kernel, 0, int32Bytes(n)))
		for ii, buffer := range buffers {
			requireSuccess(t, d.SetKernelArgBuffer(kernel, ii+1, buffer))
		}
		event, status := d.EnqueueNDRangeKernel(queue, kernel, []int{n}, nil)
		requireSuccess(t, status)
		requireSuccess(t, d.WaitForEvents(event))
		eventStatus, status := d.EventStatus(event)
		requireSuccess(t, status)
		require.Equal(t, compute.EventComplete, eventStatus)
		requireSuccess(t, d.ReleaseEvent(event))

		c := make([]byte, 4*n)
		event, status = d.EnqueueReadBuffer(queue, buffers[2], true, 0, c)
		requireSuccess(t, status)
		requireSuccess(t, d.ReleaseEvent(event))
		got := bytesInt32(c)
		for ii := range n {
			require.Equal(t, int32(3*ii), got[ii])
		}

		for _, buffer := range buffers {
			requireSuccess(t, d.ReleaseBuffer(buffer))
		}
		requireSuccess(t, d.ReleaseKernel(kernel))
		requireSuccess(t, d.ReleaseCommandQueue(queue))
		requireSuccess(t, d.ReleaseProgram(program))
		requireSuccess(t, d.ReleaseContext(ctx))
		require.Zero(t, d.Alive())
	}
}

func TestDriver_InOrderQueue(t *testing.T) {
	d, ctx, queue, program := newTestContext(t, nil, addSource)
	kernel, status := d.CreateKernel(program, "fill")
	requireSuccess(t, status)
	buffer, status := d.CreateBuffer(ctx, compute.MemReadWrite, 4*64)
	requireSuccess(t, status)
	requireSuccess(t, d.SetKernelArgBuffer(kernel, 0, buffer))

	// Non-blocking launches: the last one enqueued wins, and the read sees it.
	var events []compute.EventID
	for value := range int32(10) {
		requireSuccess(t, d.SetKernelArg(kernel, 1, int32Bytes(value)))
		event, status := d.EnqueueNDRangeKernel(queue, kernel, []int{64}, []int{16})
		requireSuccess(t, status)
		events = append(events, event)
	}
	out := make([]byte, 4*64)
	readEvent, status := d.EnqueueReadBuffer(queue, buffer, false, 0, out)
	requireSuccess(t, status)
	requireSuccess(t, d.WaitForEvents(append(events, readEvent)...))
	for _, v := range bytesInt32(out) {
		require.Equal(t, int32(9), v)
	}
	requireSuccess(t, d.Finish(queue))
}

func TestDriver_Errors(t *testing.T) {
	d, ctx, queue, program := newTestContext(t, nil, addSource)

	_, status := d.CreateKernel(program, "sub")
	require.Equal(t, compute.InvalidKernelName, status)
	_, status = d.CreateBuffer(ctx, compute.MemReadWrite, 0)
	require.Equal(t, compute.InvalidBufferSize, status)
	_, status = d.CreateContext(deviceID, compute.NamedValuesMap{"max_workers": int64(0)})
	require.Equal(t, compute.InvalidValue, status)
	_, status = d.DeviceInfo(2)
	require.Equal(t, compute.InvalidDevice, status)

	kernel, status := d.CreateKernel(program, "add")
	requireSuccess(t, status)
	buffer, status := d.CreateBuffer(ctx, compute.MemReadWrite, 16)
	requireSuccess(t, status)
	require.Equal(t, compute.InvalidArgIndex, d.SetKernelArg(kernel, 4, int32Bytes(1)))
	require.Equal(t, compute.InvalidArgSize, d.SetKernelArg(kernel, 0, []byte{1}))
	require.Equal(t, compute.InvalidArgValue, d.SetKernelArg(kernel, 1, int32Bytes(1)))
	require.Equal(t, compute.InvalidArgValue, d.SetKernelArgBuffer(kernel, 0, buffer))
	require.Equal(t, compute.InvalidMemObject, d.SetKernelArgBuffer(kernel, 1, 12345))

	// Not all arguments set.
	requireSuccess(t, d.SetKernelArg(kernel, 0, int32Bytes(4)))
	_, status = d.EnqueueNDRangeKernel(queue, kernel, []int{4}, nil)
	require.Equal(t, compute.InvalidKernelArgs, status)
	for ii := 1; ii <= 3; ii++ {
		requireSuccess(t, d.SetKernelArgBuffer(kernel, ii, buffer))
	}
	_, status = d.EnqueueNDRangeKernel(queue, kernel, []int{4}, []int{3})
	require.Equal(t, compute.InvalidWorkGroupSize, status)
	_, status = d.EnqueueNDRangeKernel(queue, kernel, []int{4, 1, 1, 1}, nil)
	require.Equal(t, compute.InvalidWorkDimension, status)
	_, status = d.EnqueueNDRangeKernel(queue, kernel, []int{-1}, nil)
	require.Equal(t, compute.InvalidGlobalWorkSize, status)

	// Transfers out of range.
	_, status = d.EnqueueWriteBuffer(queue, buffer, true, 0, make([]byte, 20))
	require.Equal(t, compute.InvalidValue, status)
	_, status = d.EnqueueReadBuffer(queue, buffer, true, 12, make([]byte, 8))
	require.Equal(t, compute.InvalidValue, status)

	// Released resources.
	requireSuccess(t, d.ReleaseBuffer(buffer))
	require.Equal(t, compute.InvalidMemObject, d.ReleaseBuffer(buffer))
	_, status = d.EnqueueNDRangeKernel(queue, kernel, []int{4}, nil)
	require.Equal(t, compute.InvalidMemObject, status)
	requireSuccess(t, d.ReleaseCommandQueue(queue))
	_, status = d.EnqueueWriteBuffer(queue, buffer, true, 0, make([]byte, 4))
	require.NotEqual(t, compute.Success, status)
	require.Equal(t, compute.InvalidCommandQueue, d.Finish(queue))
}

func TestDriver_BuildFailure(t *testing.T) {
	d := New()
	ctx, status := d.CreateContext(deviceID, nil)
	requireSuccess(t, status)
	program, status := d.CreateProgramWithSource(ctx, "__kernel void k(__global int *v) {\n  v[0] = undefined_name;\n}\n")
	requireSuccess(t, status)
	require.Equal(t, compute.BuildProgramFailure, d.BuildProgram(program, deviceID, ""))
	log, status := d.ProgramBuildLog(program, deviceID)
	requireSuccess(t, status)
	require.Contains(t, log, "<source>:2:10: error: use of undeclared identifier 'undefined_name'")
	_, status = d.CreateKernel(program, "k")
	require.Equal(t, compute.InvalidProgramExecutable, status)

	require.Equal(t, compute.InvalidBuildOptions, d.BuildProgram(program, deviceID, "-O3"))
	log, _ = d.ProgramBuildLog(program, deviceID)
	require.Contains(t, log, "unsupported build option")
}

func TestDriver_KernelFailure(t *testing.T) {
	d, ctx, queue, program := newTestContext(t, compute.NamedValuesMap{"max_workers": int64(2)}, `
__kernel void overflow(__global int *v) {
    v[get_global_id(0) * 2] = 1;
}`)
	kernel, status := d.CreateKernel(program, "overflow")
	requireSuccess(t, status)
	buffer, status := d.CreateBuffer(ctx, compute.MemReadWrite, 4*100)
	requireSuccess(t, status)
	requireSuccess(t, d.SetKernelArgBuffer(kernel, 0, buffer))
	event, status := d.EnqueueNDRangeKernel(queue, kernel, []int{100}, nil)
	requireSuccess(t, status)
	require.Equal(t, compute.ExecStatusErrorInWaitList, d.WaitForEvents(event))
	eventStatus, status := d.EventStatus(event)
	requireSuccess(t, status)
	require.Equal(t, compute.EventStatus(compute.OutOfResources), eventStatus)
	require.Contains(t, d.EventDetail(event), `kernel "overflow"`)

	// The queue keeps working after a failed command.
	requireSuccess(t, d.Finish(queue))
}

func TestDefaultLocalSize(t *testing.T) {
	require.Equal(t, []int{256}, defaultLocalSize([]int{1024}))
	require.Equal(t, []int{250}, defaultLocalSize([]int{1000}))
	require.Equal(t, []int{1}, defaultLocalSize([]int{257}))
	require.Equal(t, []int{8, 1}, defaultLocalSize([]int{8, 3}))
	require.Equal(t, []int{1}, defaultLocalSize([]int{0}))
}
