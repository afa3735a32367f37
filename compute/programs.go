package compute

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
)

// Program is a built program, holding one or more kernels.
type Program struct {
	wrapper     *wrapper[ProgramID]
	ctx         *Context
	name        string
	source      string
	options     string
	buildLog    string
	kernelNames []string
}

// Destroy the program. It is a no-op if the program was already destroyed.
func (p *Program) Destroy() error {
	if p == nil {
		return nil
	}
	return p.wrapper.Destroy()
}

// IsValid returns whether the program was created and not yet destroyed.
func (p *Program) IsValid() bool {
	return p != nil && p.wrapper.IsValid() && p.ctx.IsValid()
}

// Name of the program, the source file base name if built with WithSourceFile.
func (p *Program) Name() string { return p.name }

// Source used to build the program.
func (p *Program) Source() string { return p.source }

// Options used to build the program.
func (p *Program) Options() string { return p.options }

// BuildLog returns the log of the compiler. It may hold warnings even if the build succeeded.
func (p *Program) BuildLog() string { return p.buildLog }

// KernelNames returns the names of the kernels defined in the program.
func (p *Program) KernelNames() []string { return slices.Clone(p.kernelNames) }

// Context the program belongs to.
func (p *Program) Context() *Context { return p.ctx }

// String implements fmt.Stringer.
func (p *Program) String() string {
	return fmt.Sprintf("Program(%s, kernels=%v)", p.name, p.kernelNames)
}

// Kernel creates the kernel with the given name. It returns an error with status InvalidKernelName if the
// program doesn't define it.
func (p *Program) Kernel(name string) (*Kernel, error) {
	if !p.IsValid() {
		return nil, errors.New("Program.Kernel: Program is nil or has already been destroyed")
	}
	driver := p.ctx.platform.driver
	id, status := driver.CreateKernel(p.wrapper.id, name)
	if status.IsError() {
		return nil, errors.WithStack(&Error{Op: "CreateKernel", Status: status,
			Detail: fmt.Sprintf("kernel %q in program %q", name, p.name)})
	}
	k := &Kernel{
		wrapper: newWrapper(id, "ReleaseKernel", driver.ReleaseKernel, &kernelsAlive),
		program: p,
		name:    name,
	}
	addCleanup(k, k.wrapper, "Kernel")

	numArgs, status := driver.KernelNumArgs(id)
	if err := toError("KernelNumArgs", status); err != nil {
		_ = k.Destroy()
		return nil, err
	}
	k.numArgs = numArgs
	args := make([]ArgInfo, numArgs)
	for ii := range args {
		info, status := driver.KernelArgInfo(id, ii)
		if status == KernelArgInfoNotAvailable {
			args = nil
			break
		}
		if err := toError("KernelArgInfo", status); err != nil {
			_ = k.Destroy()
			return nil, err
		}
		args[ii] = info
	}
	k.args = args
	return k, nil
}
