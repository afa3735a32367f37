// Package compute implements a small Go API over compute runtimes (OpenCL-like): platforms, devices, contexts,
// programs compiled from source at runtime, kernels, command queues, device buffers and events.
//
// Each platform is backed by a Driver, the table of low-level calls of the runtime. Drivers register themselves
// when their package is imported:
//
//	import _ "github.com/gomlx/clvec/compute/host"   // Pure Go CPU device, always available.
//	import _ "github.com/gomlx/clvec/compute/opencl" // System OpenCL, requires building with -tags opencl.
//
// Typical use:
//
//	device := must.M1(compute.SelectDevice("", compute.DeviceTypeGPU, compute.DeviceTypeCPU))
//	ctx := must.M1(device.Platform().NewContext(device, nil))
//	defer ctx.Destroy()
//	program := must.M1(ctx.Compile().WithSourceFile("vector_ops.cl").Done())
//	kernel := must.M1(program.Kernel("square_magnitude"))
//	queue := must.M1(ctx.NewQueue())
//	buf := must.M1(ctx.NewBuffer(compute.MemReadWrite, dtypes.Int32, len(v)))
//	must.M(compute.WriteFlat(queue, buf, v))
//	must.M(kernel.SetArgs(int32(len(v)), buf))
//	event := must.M1(queue.Launch(kernel).WithGlobalSize(len(v)).Done())
//	must.M(event.AwaitAndFree())
//	must.M(compute.ReadFlat(queue, buf, v))
//
// All objects have an explicit Destroy method, which should be called in dependency order (buffers, kernels,
// queues, programs and finally the context). They are also destroyed when garbage collected, as a safety net.
package compute
