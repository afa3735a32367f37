package compute_test

import (
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/compute/host"
	"github.com/gomlx/clvec/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const vectorOpsSource = `
__kernel void square_magnitude(const int size, __global int *v) {
    int i = get_global_id(0);
    if (i < size)
        v[i] = v[i] * v[i];
}

__kernel void scale(__global const float *x, __global float *y, const float factor, const long offset) {
    int i = get_global_id(0);
    y[i] = x[i] * factor + offset;
}
`

// aliveCounts returns the number of live resources of each type.
func aliveCounts() []int64 {
	return []int64{compute.ContextsAlive(), compute.ProgramsAlive(), compute.KernelsAlive(),
		compute.QueuesAlive(), compute.BuffersAlive(), compute.EventsAlive()}
}

func newHostContext(t *testing.T) *compute.Context {
	device, err := compute.SelectDevice(host.PlatformName)
	require.NoError(t, err)
	ctx, err := device.Platform().NewContext(device, nil)
	require.NoError(t, err)
	return ctx
}

func TestPlatforms(t *testing.T) {
	platforms := compute.Platforms()
	require.NotEmpty(t, platforms)
	var names []string
	for _, p := range platforms {
		names = append(names, p.Name())
	}
	require.Contains(t, names, host.PlatformName)

	_, err := compute.GetPlatform("no_such_platform")
	require.True(t, compute.IsStatus(err, compute.PlatformNotFoundKHR))

	require.Error(t, compute.RegisterPlatform(host.PlatformName, 1, host.New()))
	require.NoError(t, compute.RegisterPlatform("second_host", -1, host.New()))
	defer compute.UnregisterPlatform("second_host")
	platforms = compute.Platforms()
	require.Equal(t, "second_host", platforms[len(platforms)-1].Name())
}

func TestSelectDevice(t *testing.T) {
	device, err := compute.SelectDevice("")
	require.NoError(t, err)
	require.NotNil(t, device)

	device, err = compute.SelectDevice(host.PlatformName, compute.DeviceTypeGPU, compute.DeviceTypeCPU)
	require.NoError(t, err)
	require.Equal(t, compute.DeviceTypeCPU, device.Type())
	require.Equal(t, host.PlatformName, device.Platform().Name())

	_, err = compute.SelectDevice(host.PlatformName, compute.DeviceTypeGPU, compute.DeviceTypeAccelerator)
	require.True(t, compute.IsStatus(err, compute.DeviceNotFound))
	require.Contains(t, err.Error(), "no device of type GPU or Accelerator found")
}

func TestLifecycle(t *testing.T) {
	before := aliveCounts()
	ctx := newHostContext(t)
	program, err := ctx.Compile().WithSource(vectorOpsSource).WithName("vector_ops.cl").Done()
	require.NoError(t, err)
	require.Equal(t, []string{"square_magnitude", "scale"}, program.KernelNames())
	queue, err := ctx.NewQueue()
	require.NoError(t, err)
	kernel, err := program.Kernel("square_magnitude")
	require.NoError(t, err)
	require.Equal(t, 2, kernel.NumArgs())
	require.Equal(t, "square_magnitude(const int size, __global int *v)", kernel.String())

	v := []int32{1, 2, 3, 4, 5, 6, 7, 8}
	buffer, err := ctx.NewBuffer(compute.MemReadWrite, dtypes.Int32, len(v))
	require.NoError(t, err)
	require.Equal(t, 4*len(v), buffer.Size())
	require.NoError(t, compute.WriteFlat(queue, buffer, v))
	require.NoError(t, kernel.SetArgs(len(v), buffer))
	event, err := queue.Launch(kernel).WithGlobalSize(len(v)).Done()
	require.NoError(t, err)
	require.NoError(t, event.AwaitAndFree())
	got := make([]int32, len(v))
	require.NoError(t, compute.ReadFlat(queue, buffer, got))
	require.Equal(t, []int32{1, 4, 9, 16, 25, 36, 49, 64}, got)

	require.NoError(t, buffer.Destroy())
	require.NoError(t, kernel.Destroy())
	require.NoError(t, queue.Destroy())
	require.NoError(t, program.Destroy())
	require.NoError(t, ctx.Destroy())
	// Destroy is idempotent.
	require.NoError(t, ctx.Destroy())
	require.Equal(t, before, aliveCounts())
}

func TestScalarArgs(t *testing.T) {
	ctx := newHostContext(t)
	defer func() { must.M(ctx.Destroy()) }()
	program := must.M1(ctx.Compile().WithSource(vectorOpsSource).Done())
	defer func() { must.M(program.Destroy()) }()
	queue := must.M1(ctx.NewQueue())
	defer func() { must.M(queue.Destroy()) }()
	kernel := must.M1(program.Kernel("scale"))
	defer func() { must.M(kernel.Destroy()) }()

	args := kernel.Args()
	require.Len(t, args, 4)
	require.Equal(t, dtypes.Float32, args[2].DType)
	require.Equal(t, dtypes.Int64, args[3].DType)

	x := []float32{1, 2, 3}
	xBuf := must.M1(ctx.NewBuffer(compute.MemReadOnly, dtypes.Float32, len(x)))
	defer func() { must.M(xBuf.Destroy()) }()
	yBuf := must.M1(ctx.NewBuffer(compute.MemWriteOnly, dtypes.Float32, len(x)))
	defer func() { must.M(yBuf.Destroy()) }()
	require.NoError(t, compute.WriteFlat(queue, xBuf, x))

	// Go ints are converted to the declared type of the argument.
	require.NoError(t, kernel.SetArgs(xBuf, yBuf, float32(0.5), 10))
	event := must.M1(queue.Launch(kernel).WithGlobalSize(len(x)).WithLocalSize(1).Done())
	require.NoError(t, event.AwaitAndFree())
	y := make([]float32, len(x))
	require.NoError(t, compute.ReadFlat(queue, yBuf, y))
	require.Equal(t, []float32{10.5, 11, 11.5}, y)

	// Asynchronous read.
	event = must.M1(queue.Read(yBuf).ToFlat(y).Async().Done())
	require.NoError(t, event.AwaitAndFree())
	require.NoError(t, queue.Finish())

	// Argument errors.
	err := kernel.SetArg(0, float32(1))
	require.True(t, compute.IsStatus(err, compute.InvalidArgValue))
	err = kernel.SetArg(2, xBuf)
	require.True(t, compute.IsStatus(err, compute.InvalidArgValue))
	err = kernel.SetArg(4, 1)
	require.True(t, compute.IsStatus(err, compute.InvalidArgIndex))
	err = kernel.SetArg(2, float64(1))
	require.True(t, compute.IsStatus(err, compute.InvalidArgSize))
	err = kernel.SetArg(2, "x")
	require.True(t, compute.IsStatus(err, compute.InvalidArgValue))

	// Transfer errors.
	_, err = queue.Write(xBuf).FromFlat([]float32{1, 2}).Done()
	require.True(t, compute.IsStatus(err, compute.InvalidValue))
	_, err = queue.Write(xBuf).FromFlat([]int32{1, 2, 3}).Done()
	require.True(t, compute.IsStatus(err, compute.InvalidValue))
	_, err = queue.Write(xBuf).Done()
	require.Error(t, err)
}

func TestIntArgRange(t *testing.T) {
	ctx := newHostContext(t)
	defer func() { must.M(ctx.Destroy()) }()
	program := must.M1(ctx.Compile().WithSource(vectorOpsSource).Done())
	defer func() { must.M(program.Destroy()) }()
	square := must.M1(program.Kernel("square_magnitude"))
	defer func() { must.M(square.Destroy()) }()
	scale := must.M1(program.Kernel("scale"))
	defer func() { must.M(scale.Destroy()) }()

	// The size is declared "const int": a Go int must fit in an int32.
	require.NoError(t, square.SetArg(0, math.MaxInt32))
	require.NoError(t, square.SetArg(0, math.MinInt32))
	err := square.SetArg(0, math.MaxInt32+1)
	require.True(t, compute.IsStatus(err, compute.InvalidArgValue))
	require.Contains(t, err.Error(), "overflows argument type int")
	err = square.SetArg(0, math.MinInt32-1)
	require.True(t, compute.IsStatus(err, compute.InvalidArgValue))

	// "const long" takes any Go int.
	require.NoError(t, scale.SetArg(3, math.MaxInt64))
	require.NoError(t, scale.SetArg(3, math.MinInt64))
}

func TestBuildErrors(t *testing.T) {
	before := aliveCounts()
	ctx := newHostContext(t)

	// Missing source file.
	_, err := ctx.Compile().WithSourceFile(filepath.Join(t.TempDir(), "missing.cl")).Done()
	require.Error(t, err)
	require.Contains(t, err.Error(), "source file not found")
	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))

	// Malformed source.
	badPath := filepath.Join(t.TempDir(), "bad.cl")
	require.NoError(t, os.WriteFile(badPath, []byte("__kernel void k(__global int *v) {\n    v[0] = ;\n}\n"), 0o644))
	_, err = ctx.Compile().WithSourceFile(badPath).Done()
	require.Error(t, err)
	var buildErr *compute.BuildError
	require.True(t, errors.As(err, &buildErr))
	require.Equal(t, "bad.cl", buildErr.Name)
	require.Contains(t, buildErr.Log, "2:12: error: expected expression")
	require.True(t, compute.IsStatus(err, compute.BuildProgramFailure))

	// Invalid build options.
	_, err = ctx.Compile().WithSource(vectorOpsSource).WithOptions("-O3").Done()
	require.True(t, compute.IsStatus(err, compute.InvalidBuildOptions))

	// Unknown kernel name.
	program := must.M1(ctx.Compile().WithSource(vectorOpsSource).WithOptions("-DUNUSED=1", "").Done())
	require.Equal(t, "-DUNUSED=1", program.Options())
	_, err = program.Kernel("vector_add")
	require.True(t, compute.IsStatus(err, compute.InvalidKernelName))
	require.Contains(t, err.Error(), `kernel "vector_add"`)

	require.NoError(t, program.Destroy())
	require.NoError(t, ctx.Destroy())
	require.Equal(t, before, aliveCounts())
}

func TestKernelFailure(t *testing.T) {
	ctx := newHostContext(t)
	defer func() { must.M(ctx.Destroy()) }()
	program := must.M1(ctx.Compile().WithSource(`
__kernel void overflow(__global int *v) {
    v[get_global_id(0) + 1] = 0;
}`).Done())
	defer func() { must.M(program.Destroy()) }()
	queue := must.M1(ctx.NewQueue())
	defer func() { must.M(queue.Destroy()) }()
	kernel := must.M1(program.Kernel("overflow"))
	defer func() { must.M(kernel.Destroy()) }()
	buffer := must.M1(ctx.NewBuffer(compute.MemReadWrite, dtypes.Int32, 4))
	defer func() { must.M(buffer.Destroy()) }()

	require.NoError(t, kernel.SetArg(0, buffer))
	event := must.M1(queue.Launch(kernel).WithGlobalSize(4).Done())
	err := event.AwaitAndFree()
	require.Error(t, err)
	require.True(t, compute.IsStatus(err, compute.OutOfResources))
	require.Contains(t, err.Error(), "out-of-bounds")

	_, err = queue.Launch(kernel).Done()
	require.True(t, compute.IsStatus(err, compute.InvalidWorkDimension))
	_, err = queue.Launch(kernel).WithGlobalSize(4).WithLocalSize(2, 2).Done()
	require.True(t, compute.IsStatus(err, compute.InvalidWorkDimension))
}

func TestContextOptions(t *testing.T) {
	device := must.M1(compute.SelectDevice(host.PlatformName))
	_, err := device.Platform().NewContext(device, compute.NamedValuesMap{"max_workers": int64(-1)})
	require.True(t, compute.IsStatus(err, compute.InvalidValue))
	_, err = device.Platform().NewContext(device, compute.NamedValuesMap{"max_workers": struct{}{}})
	require.Error(t, err)

	ctx, err := device.Platform().NewContext(device, compute.NamedValuesMap{"max_workers": int64(2), "chunk_size": int64(1)})
	require.NoError(t, err)
	require.Equal(t, int64(2), ctx.Options().Int64("max_workers", 0))
	require.NoError(t, ctx.Destroy())

	_, err = ctx.NewQueue()
	require.Error(t, err)
}

func TestStatus(t *testing.T) {
	require.Equal(t, "BUILD_PROGRAM_FAILURE", compute.BuildProgramFailure.String())
	require.True(t, compute.InvalidKernelName.IsError())
	require.False(t, compute.Success.IsError())
	require.Equal(t, compute.Success, compute.StatusOf(nil))
	require.Equal(t, compute.InvalidOperation, compute.StatusOf(errors.New("plain")))
	err := errors.WithStack(&compute.Error{Op: "CreateKernel", Status: compute.InvalidKernelName, Detail: "kernel \"x\""})
	require.Equal(t, compute.InvalidKernelName, compute.StatusOf(err))
	require.Equal(t, `CreateKernel failed: INVALID_KERNEL_NAME (-46): kernel "x"`, err.Error())

	dt, ok := compute.ParseDeviceType("GPU")
	require.True(t, ok)
	require.Equal(t, compute.DeviceTypeGPU, dt)
	_, ok = compute.ParseDeviceType("fpga")
	require.False(t, ok)
}
