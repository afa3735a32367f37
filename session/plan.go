package session

import (
	"fmt"
	"reflect"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/dtypes"
	"github.com/pkg/errors"
)

// Direction of the data of a buffer, from the kernel's point of view.
type Direction int

const (
	// In buffers are written to the device before the launch, and not read back.
	In Direction = iota

	// Out buffers are read back after the launch. Their host contents are written to the device before the
	// launch, unless Plan.SkipOutputWrite is set.
	Out

	// InOut buffers are written before the launch and read back after it.
	InOut
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case In:
		return "In"
	case Out:
		return "Out"
	case InOut:
		return "InOut"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// BufferSpec describes one device buffer of a session and the host slice it is copied from or to.
type BufferSpec struct {
	// Name used in errors and logs.
	Name string

	Direction Direction

	// Data is a flat slice of one of the dtypes.Supported types, with exactly Plan.Size elements.
	// Out and InOut buffers are read back into it.
	Data any
}

// DType of the buffer elements, or dtypes.InvalidDType if Data is not a slice of a supported type.
func (b BufferSpec) DType() dtypes.DType {
	t := reflect.TypeOf(b.Data)
	if t == nil || t.Kind() != reflect.Slice {
		return dtypes.InvalidDType
	}
	return dtypes.FromGoType(t.Elem())
}

// Plan of one kernel invocation: where the kernel comes from, which device runs it and the buffers it uses.
//
// The kernel signature must be the size (an integer scalar) followed by one pointer per buffer, in the order
// of Buffers.
type Plan struct {
	// KernelPath is the file with the kernel source. Exactly one of KernelPath or KernelSource must be set.
	KernelPath string

	// KernelSource is the kernel source text.
	KernelSource string

	// KernelName is the name of the kernel function to run.
	KernelName string

	// BuildOptions passed to the compiler, e.g. "-DSCALE=2".
	BuildOptions string

	// Platform restricts the device search to one platform. If empty all platforms are searched.
	Platform string

	// Preference of device types, defaults to compute.DefaultPreference.
	Preference []compute.DeviceType

	// Size is the number of elements of every buffer, and the global work size of the launch.
	Size int

	Buffers []BufferSpec

	// SkipOutputWrite skips writing Out buffers to the device before the launch.
	SkipOutputWrite bool

	// ContextOptions are passed to the driver when creating the context.
	ContextOptions compute.NamedValuesMap
}

// Validate checks that the plan is consistent, it doesn't access the kernel source.
func (p *Plan) Validate() error {
	if p.KernelName == "" {
		return errors.New("plan has no KernelName")
	}
	if (p.KernelPath == "") == (p.KernelSource == "") {
		return errors.New("plan must have exactly one of KernelPath or KernelSource")
	}
	if p.Size < 0 {
		return errors.Errorf("invalid plan Size %d, it must be >= 0", p.Size)
	}
	if len(p.Buffers) == 0 {
		return errors.New("plan has no Buffers")
	}
	names := make(map[string]bool, len(p.Buffers))
	for ii, b := range p.Buffers {
		if b.Name == "" {
			return errors.Errorf("plan buffer #%d has no Name", ii)
		}
		if names[b.Name] {
			return errors.Errorf("plan buffer %q is defined more than once", b.Name)
		}
		names[b.Name] = true
		if b.Direction < In || b.Direction > InOut {
			return errors.Errorf("plan buffer %q has invalid direction %s", b.Name, b.Direction)
		}
		if b.DType() == dtypes.InvalidDType {
			return errors.Errorf("plan buffer %q data must be a slice of a supported type, got %T", b.Name, b.Data)
		}
		if n := reflect.ValueOf(b.Data).Len(); n != p.Size {
			return errors.Errorf("plan buffer %q has %d elements, plan Size is %d", b.Name, n, p.Size)
		}
	}
	return p.ContextOptions.Validate()
}
