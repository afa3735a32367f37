package compute

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/clvec/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Kernel is an entry point of a Program, with its arguments bound by ordinal position.
type Kernel struct {
	wrapper *wrapper[KernelID]
	program *Program
	name    string
	numArgs int

	// args is nil if the driver doesn't report argument information.
	args []ArgInfo
}

// Destroy the kernel. It is a no-op if the kernel was already destroyed.
func (k *Kernel) Destroy() error {
	if k == nil {
		return nil
	}
	return k.wrapper.Destroy()
}

// IsValid returns whether the kernel was created and not yet destroyed.
func (k *Kernel) IsValid() bool {
	return k != nil && k.wrapper.IsValid()
}

// Name of the kernel function.
func (k *Kernel) Name() string { return k.name }

// Program the kernel belongs to.
func (k *Kernel) Program() *Program { return k.program }

// NumArgs returns the number of arguments of the kernel function.
func (k *Kernel) NumArgs() int { return k.numArgs }

// Args returns the description of the kernel arguments, or nil if the driver doesn't report them.
func (k *Kernel) Args() []ArgInfo { return slices.Clone(k.args) }

// String implements fmt.Stringer.
func (k *Kernel) String() string {
	if k.args == nil {
		return fmt.Sprintf("%s(<%d args>)", k.name, k.numArgs)
	}
	s := k.name + "("
	for ii, arg := range k.args {
		if ii > 0 {
			s += ", "
		}
		s += arg.String()
	}
	return s + ")"
}

// SetArg binds value to the argument at the given ordinal position.
//
// The value is either a *Buffer, for pointer arguments, or a scalar of one of the dtypes.Supported types.
// A Go int is converted to the declared type of the argument, if the driver reports it, or to int32 otherwise.
func (k *Kernel) SetArg(index int, value any) error {
	if !k.IsValid() {
		return errors.New("Kernel.SetArg: Kernel is nil or has already been destroyed")
	}
	if index < 0 || index >= k.numArgs {
		return errors.WithStack(&Error{Op: "SetKernelArg", Status: InvalidArgIndex,
			Detail: fmt.Sprintf("kernel %q has %d arguments, got index %d", k.name, k.numArgs, index)})
	}
	driver := k.program.ctx.platform.driver
	var info *ArgInfo
	if k.args != nil {
		info = &k.args[index]
	}

	if buffer, ok := value.(*Buffer); ok {
		if !buffer.IsValid() {
			return errors.Errorf("Kernel.SetArg(%d): Buffer is nil or has already been destroyed", index)
		}
		if info != nil && !info.IsPointer {
			return errors.WithStack(&Error{Op: "SetKernelArg", Status: InvalidArgValue,
				Detail: fmt.Sprintf("argument #%d (%s) of kernel %q is not a pointer", index, info, k.name)})
		}
		return toError("SetKernelArgBuffer", driver.SetKernelArgBuffer(k.wrapper.id, index, buffer.wrapper.id))
	}

	if info != nil && info.IsPointer {
		return errors.WithStack(&Error{Op: "SetKernelArg", Status: InvalidArgValue,
			Detail: fmt.Sprintf("argument #%d (%s) of kernel %q requires a buffer, got %T", index, info, k.name, value)})
	}
	if v, ok := value.(int); ok {
		dtype := dtypes.Int32
		if info != nil {
			dtype = info.DType
		}
		var err error
		value, err = convertInt(v, dtype)
		if err != nil {
			return errors.WithMessagef(err, "Kernel.SetArg(%d)", index)
		}
	}
	if dtypes.FromAny(value) == dtypes.InvalidDType {
		return errors.WithStack(&Error{Op: "SetKernelArg", Status: InvalidArgValue,
			Detail: fmt.Sprintf("unsupported value type %T for argument #%d of kernel %q", value, index, k.name)})
	}
	raw, err := binary.Append(nil, binary.NativeEndian, value)
	if err != nil {
		return errors.Wrapf(err, "Kernel.SetArg(%d): encoding %T", index, value)
	}
	return toError("SetKernelArg", driver.SetKernelArg(k.wrapper.id, index, raw))
}

// SetArgs binds the values to the arguments in ordinal order, starting at 0.
func (k *Kernel) SetArgs(values ...any) error {
	for ii, value := range values {
		if err := k.SetArg(ii, value); err != nil {
			return err
		}
	}
	return nil
}

// intRanges are the bounds of the integer dtypes a Go int can be converted to.
var intRanges = map[dtypes.DType][2]int64{
	dtypes.Int8:   {math.MinInt8, math.MaxInt8},
	dtypes.Int16:  {math.MinInt16, math.MaxInt16},
	dtypes.Int32:  {math.MinInt32, math.MaxInt32},
	dtypes.Int64:  {math.MinInt64, math.MaxInt64},
	dtypes.Uint8:  {0, math.MaxUint8},
	dtypes.Uint16: {0, math.MaxUint16},
	dtypes.Uint32: {0, math.MaxUint32},
	dtypes.Uint64: {0, math.MaxInt64},
}

// convertInt converts v to dtype. Values out of the range of an integer dtype fail with InvalidArgValue.
func convertInt(v int, dtype dtypes.DType) (any, error) {
	if bounds, ok := intRanges[dtype]; ok && (int64(v) < bounds[0] || int64(v) > bounds[1]) {
		return nil, errors.WithStack(&Error{Op: "SetKernelArg", Status: InvalidArgValue,
			Detail: fmt.Sprintf("value %d overflows argument type %s", v, dtype.CLName())})
	}
	switch dtype {
	case dtypes.Int8:
		return int8(v), nil
	case dtypes.Int16:
		return int16(v), nil
	case dtypes.Int32:
		return int32(v), nil
	case dtypes.Int64:
		return int64(v), nil
	case dtypes.Uint8:
		return uint8(v), nil
	case dtypes.Uint16:
		return uint16(v), nil
	case dtypes.Uint32:
		return uint32(v), nil
	case dtypes.Uint64:
		return uint64(v), nil
	case dtypes.Float16:
		return float16.Fromfloat32(float32(v)), nil
	case dtypes.Float32:
		return float32(v), nil
	case dtypes.Float64:
		return float64(v), nil
	}
	return nil, errors.Errorf("can't convert int to dtype %s", dtype)
}
