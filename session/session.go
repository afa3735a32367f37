// Package session runs one kernel invocation over a compute device, from device selection to the release of
// every resource it acquired.
//
// The stages are: select a device, build the program and the kernel (Open); allocate and write the buffers,
// bind the arguments, launch the kernel and wait for it, read the results back (Run); and release the resources
// in dependency order (Close).
//
// Example:
//
//	v := []int32{1, 2, 3}
//	err := session.Execute(session.Plan{
//		KernelPath: "vector_ops.cl",
//		KernelName: "square_magnitude",
//		Size:       len(v),
//		Buffers:    []session.BufferSpec{{Name: "v", Direction: session.InOut, Data: v}},
//	})
package session

import (
	"fmt"

	"github.com/gomlx/clvec/compute"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LaunchState of the kernel launch of a session.
type LaunchState int

const (
	// Unsubmitted is the state before the kernel is enqueued.
	Unsubmitted LaunchState = iota

	// Submitted means the kernel was enqueued and its completion not yet confirmed.
	Submitted

	// Completed means the kernel execution finished successfully.
	Completed

	// Failed means the submission or the execution failed.
	Failed
)

// String implements fmt.Stringer.
func (s LaunchState) String() string {
	switch s {
	case Unsubmitted:
		return "Unsubmitted"
	case Submitted:
		return "Submitted"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("LaunchState(%d)", int(s))
}

// Session owns the resources of one kernel invocation. Create it with Open, and always Close it.
//
// A Session is not safe for concurrent use.
type Session struct {
	plan Plan

	device  *compute.Device
	ctx     *compute.Context
	program *compute.Program
	queue   *compute.Queue
	kernel  *compute.Kernel
	buffers []*compute.Buffer

	state    LaunchState
	ran      bool
	closed   bool
	closeErr error
}

// Open selects the device, builds the program, and creates the queue and the kernel.
//
// On failure it releases what it acquired and returns a *Error: KindEnvironment if no device was found, KindIO
// if the kernel file can't be read, KindCompile if the build failed, KindAPI for other runtime failures.
func Open(plan Plan) (*Session, error) {
	if err := plan.Validate(); err != nil {
		return nil, newError(KindUsage, "Validate", err)
	}
	s := &Session{plan: plan}
	if err := s.open(); err != nil {
		if closeErr := s.Close(); closeErr != nil {
			klog.Errorf("session: releasing resources after failed Open: %+v", closeErr)
		}
		return nil, err
	}
	return s, nil
}

func (s *Session) open() error {
	plan := &s.plan
	var err error
	s.device, err = compute.SelectDevice(plan.Platform, plan.Preference...)
	if err != nil {
		return newError(classify(err), "SelectDevice", err)
	}
	s.ctx, err = s.device.Platform().NewContext(s.device, plan.ContextOptions)
	if err != nil {
		return newError(KindAPI, "CreateContext", err)
	}

	build := s.ctx.Compile()
	if plan.KernelPath != "" {
		build = build.WithSourceFile(plan.KernelPath)
	} else {
		build = build.WithSource(plan.KernelSource).WithName(plan.KernelName)
	}
	s.program, err = build.WithOptions(plan.BuildOptions).Done()
	if err != nil {
		return newError(classify(err), "Build", err)
	}
	if log := s.program.BuildLog(); log != "" {
		klog.V(1).Infof("session: build log of %q:\n%s", s.program.Name(), log)
	}

	s.queue, err = s.ctx.NewQueue()
	if err != nil {
		return newError(KindAPI, "CreateCommandQueue", err)
	}
	s.kernel, err = s.program.Kernel(plan.KernelName)
	if err != nil {
		return newError(KindAPI, "CreateKernel", err)
	}
	if err = s.checkSignature(); err != nil {
		return newError(KindAPI, "CreateKernel", err)
	}
	klog.V(1).Infof("session: opened %s on %s", s.kernel, s.device)
	return nil
}

// checkSignature verifies the kernel takes the size followed by one pointer per buffer, with matching dtypes.
// Drivers that don't report argument information are only checked for the number of arguments.
func (s *Session) checkSignature() error {
	buffers := s.plan.Buffers
	if want := 1 + len(buffers); s.kernel.NumArgs() != want {
		return errors.WithStack(&compute.Error{Op: "CheckSignature", Status: compute.InvalidKernelArgs,
			Detail: fmt.Sprintf("kernel %s takes %d arguments, the plan binds the size and %d buffers",
				s.kernel, s.kernel.NumArgs(), len(buffers))})
	}
	args := s.kernel.Args()
	if args == nil {
		return nil
	}
	if args[0].IsPointer || !args[0].DType.IsInt() {
		return errors.WithStack(&compute.Error{Op: "CheckSignature", Status: compute.InvalidKernelArgs,
			Detail: fmt.Sprintf("argument #0 (%s) of kernel %q must be the integer size", args[0], s.kernel.Name())})
	}
	for ii, b := range buffers {
		arg := args[ii+1]
		if !arg.IsPointer || arg.DType != b.DType() {
			return errors.WithStack(&compute.Error{Op: "CheckSignature", Status: compute.InvalidKernelArgs,
				Detail: fmt.Sprintf("argument #%d (%s) of kernel %q doesn't match buffer %q of %s",
					ii+1, arg, s.kernel.Name(), b.Name, b.DType())})
		}
	}
	return nil
}

// Run allocates and writes the buffers, binds the arguments, launches the kernel over Plan.Size work-items and
// waits for it, and reads the Out and InOut buffers back into their host slices.
//
// It can only be called once. If Plan.Size is 0 there is nothing to compute: no buffer is allocated and the
// launch is considered completed.
func (s *Session) Run() error {
	if s.closed {
		return newError(KindUsage, "Run", errors.New("session is closed"))
	}
	if s.ran {
		return newError(KindUsage, "Run", errors.New("session can only be run once"))
	}
	s.ran = true
	if s.plan.Size == 0 {
		klog.V(1).Infof("session: size is 0, nothing to launch")
		s.state = Completed
		return nil
	}
	if err := s.setupBuffers(); err != nil {
		s.state = Failed
		return err
	}
	if err := s.launch(); err != nil {
		s.state = Failed
		return err
	}
	return s.readResults()
}

// setupBuffers allocates one read/write buffer per BufferSpec, writes the host data (blocking), and binds the
// size and the buffers to the kernel arguments.
func (s *Session) setupBuffers() error {
	plan := &s.plan
	for _, spec := range plan.Buffers {
		buffer, err := s.ctx.NewBuffer(compute.MemReadWrite, spec.DType(), plan.Size)
		if err != nil {
			return newError(KindAPI, "CreateBuffer", errors.WithMessagef(err, "buffer %q", spec.Name))
		}
		s.buffers = append(s.buffers, buffer)
		if spec.Direction == Out && plan.SkipOutputWrite {
			continue
		}
		event, err := s.queue.Write(buffer).FromFlat(spec.Data).Done()
		if err == nil {
			err = event.AwaitAndFree()
		}
		if err != nil {
			return newError(KindAPI, "WriteBuffer", errors.WithMessagef(err, "buffer %q", spec.Name))
		}
	}

	if err := s.kernel.SetArg(0, plan.Size); err != nil {
		return newError(KindAPI, "SetKernelArg", err)
	}
	for ii, buffer := range s.buffers {
		if err := s.kernel.SetArg(ii+1, buffer); err != nil {
			return newError(KindAPI, "SetKernelArg", errors.WithMessagef(err, "buffer %q", plan.Buffers[ii].Name))
		}
	}
	return nil
}

// launch enqueues the kernel with the global size set to Plan.Size, leaving the work-group size to the
// runtime, and blocks until it completes.
func (s *Session) launch() error {
	event, err := s.queue.Launch(s.kernel).WithGlobalSize(s.plan.Size).Done()
	if err != nil {
		return newError(KindAPI, "Launch", err)
	}
	s.state = Submitted
	if err = event.AwaitAndFree(); err != nil {
		return newError(KindAPI, "Launch", err)
	}
	s.state = Completed
	klog.V(1).Infof("session: kernel %q completed over %d work-items", s.kernel.Name(), s.plan.Size)
	return nil
}

func (s *Session) readResults() error {
	for ii, spec := range s.plan.Buffers {
		if spec.Direction == In {
			continue
		}
		event, err := s.queue.Read(s.buffers[ii]).ToFlat(spec.Data).Done()
		if err == nil {
			err = event.AwaitAndFree()
		}
		if err != nil {
			return newError(KindAPI, "ReadBuffer", errors.WithMessagef(err, "buffer %q", spec.Name))
		}
	}
	return nil
}

// LaunchState returns the state of the kernel launch.
func (s *Session) LaunchState() LaunchState { return s.state }

// Device selected for the session, nil if the selection failed.
func (s *Session) Device() *compute.Device { return s.device }

// Platform of the selected device, nil if the selection failed.
func (s *Session) Platform() *compute.Platform {
	if s.device == nil {
		return nil
	}
	return s.device.Platform()
}

// BuildLog returns the log of the program build, usually empty or with warnings only.
func (s *Session) BuildLog() string {
	if s.program == nil {
		return ""
	}
	return s.program.BuildLog()
}

// Close releases the buffers, the kernel, the queue, the program and the context, in that order.
// Every resource is released even if some release fails, and the first error is returned.
//
// Close is idempotent: only the first call releases the resources, later calls return the same result.
func (s *Session) Close() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	release := func(name string, destroy func() error) {
		klog.V(1).Infof("session: releasing %s", name)
		if err := destroy(); err != nil {
			klog.Errorf("session: failed to release %s: %v", name, err)
			if s.closeErr == nil {
				s.closeErr = errors.WithMessagef(err, "releasing %s", name)
			}
		}
	}
	for ii, buffer := range s.buffers {
		release(fmt.Sprintf("buffer %q", s.plan.Buffers[ii].Name), buffer.Destroy)
	}
	s.buffers = nil
	if s.kernel != nil {
		release("kernel", s.kernel.Destroy)
	}
	if s.queue != nil {
		release("queue", s.queue.Destroy)
	}
	if s.program != nil {
		release("program", s.program.Destroy)
	}
	if s.ctx != nil {
		release("context", s.ctx.Destroy)
	}
	return s.closeErr
}

// Execute opens a session for the plan, runs it and closes it. Results are read back into the host slices of
// the Out and InOut buffers.
func Execute(plan Plan) (err error) {
	s, err := Open(plan)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); err == nil && closeErr != nil {
			err = newError(KindAPI, "Close", closeErr)
		}
	}()
	return s.Run()
}
