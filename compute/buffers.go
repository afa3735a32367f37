package compute

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/gomlx/clvec/dtypes"
	"github.com/pkg/errors"
)

// Buffer is a reference to device memory holding a flat array of one dtype.
type Buffer struct {
	wrapper *wrapper[BufferID]
	ctx     *Context
	flags   MemFlags
	dtype   dtypes.DType
	length  int
}

// Destroy the buffer and free its device memory. It is a no-op if the buffer was already destroyed.
func (b *Buffer) Destroy() error {
	if b == nil {
		return nil
	}
	return b.wrapper.Destroy()
}

// IsValid returns whether the buffer was created and not yet destroyed.
func (b *Buffer) IsValid() bool {
	return b != nil && b.wrapper.IsValid()
}

// DType of the elements.
func (b *Buffer) DType() dtypes.DType { return b.dtype }

// Len returns the number of elements.
func (b *Buffer) Len() int { return b.length }

// Size in bytes.
func (b *Buffer) Size() int { return b.dtype.SizeForElements(b.length) }

// Flags used at creation.
func (b *Buffer) Flags() MemFlags { return b.flags }

// Context the buffer belongs to.
func (b *Buffer) Context() *Context { return b.ctx }

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer(%s[%d], %s)", b.dtype, b.length, b.flags)
}

// flatBytes returns the bytes backing a flat slice, and checks that it matches the buffer dtype and length.
func (b *Buffer) flatBytes(op string, flat any) ([]byte, error) {
	v := reflect.ValueOf(flat)
	if v.Kind() != reflect.Slice {
		return nil, errors.Errorf("%s: flat value must be a slice, got %T", op, flat)
	}
	dtype := dtypes.FromGoType(v.Type().Elem())
	if dtype != b.dtype {
		return nil, errors.WithStack(&Error{Op: op, Status: InvalidValue,
			Detail: fmt.Sprintf("flat value of type %T doesn't match buffer dtype %s", flat, b.dtype)})
	}
	if v.Len() != b.length {
		return nil, errors.WithStack(&Error{Op: op, Status: InvalidValue,
			Detail: fmt.Sprintf("flat value has %d elements, buffer has %d", v.Len(), b.length)})
	}
	if b.length == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(v.UnsafePointer()), b.Size()), nil
}
