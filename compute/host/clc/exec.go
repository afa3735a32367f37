package clc

import (
	"fmt"

	"github.com/pkg/errors"
)

// NDRange is the N-dimensional range of work-items of a kernel execution.
type NDRange struct {
	// Dims is the number of dimensions used, from 1 to 3.
	Dims int

	// Global is the number of work-items in each dimension. Unused dimensions must be 1.
	Global [3]int

	// Local is the work-group size in each dimension. It must divide Global. Unused dimensions must be 1.
	Local [3]int
}

// NewNDRange creates an NDRange from the global and local sizes. If local is nil, the work-group size is 1 on
// every dimension.
func NewNDRange(global, local []int) (NDRange, error) {
	r := NDRange{Dims: len(global), Global: [3]int{1, 1, 1}, Local: [3]int{1, 1, 1}}
	if r.Dims < 1 || r.Dims > 3 {
		return r, errors.Errorf("invalid number of dimensions %d, it must be 1, 2 or 3", r.Dims)
	}
	if local != nil && len(local) != len(global) {
		return r, errors.Errorf("local size has %d dimensions, global size has %d", len(local), len(global))
	}
	for d, g := range global {
		if g < 0 {
			return r, errors.Errorf("negative global size %d in dimension %d", g, d)
		}
		r.Global[d] = g
		if local != nil {
			if local[d] <= 0 || (g > 0 && g%local[d] != 0) {
				return r, errors.Errorf("local size %d doesn't divide global size %d in dimension %d", local[d], g, d)
			}
			r.Local[d] = local[d]
		}
	}
	return r, nil
}

// Size returns the total number of work-items.
func (r NDRange) Size() int {
	return r.Global[0] * r.Global[1] * r.Global[2]
}

// frame holds the state of one work-item. Each goroutine running work-items owns its frame.
type frame struct {
	ints   []int64
	floats []float64
	bufs   [][]byte
	nd     *NDRange
	gid    [3]int
	lid    [3]int
	group  [3]int
}

// ctrl tells how a statement completed.
type ctrl int

const (
	ctrlNext ctrl = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

type stmtFunc func(f *frame) ctrl

// Arg is the value bound to a kernel argument: Buffer for pointer parameters, Scalar holding the raw
// (native endian) bytes of the value for scalar parameters.
type Arg struct {
	Buffer []byte
	Scalar []byte
}

// Invocation is a kernel with its arguments bound, ready to run over work-items.
type Invocation struct {
	kernel *Kernel
	ints   []int64
	floats []float64
	bufs   [][]byte
}

// Bind the arguments of the kernel, one per parameter in order. Buffers are not copied: the kernel reads and
// writes them in place.
func (k *Kernel) Bind(args []Arg) (*Invocation, error) {
	if len(args) != len(k.Params) {
		return nil, errors.Errorf("kernel %q takes %d arguments, got %d", k.Name, len(k.Params), len(args))
	}
	inv := &Invocation{
		kernel: k,
		ints:   make([]int64, k.numInts),
		floats: make([]float64, k.numFloats),
		bufs:   make([][]byte, len(k.Params)),
	}
	for ii, param := range k.Params {
		arg := args[ii]
		if param.IsPointer {
			if arg.Buffer == nil && arg.Scalar != nil {
				return nil, errors.Errorf("argument #%d (%s) of kernel %q requires a buffer", ii, param.Name, k.Name)
			}
			inv.bufs[ii] = arg.Buffer
			continue
		}
		if len(arg.Scalar) != param.DType.Size() {
			return nil, errors.Errorf("argument #%d (%s) of kernel %q requires %d bytes, got %d",
				ii, param.Name, k.Name, param.DType.Size(), len(arg.Scalar))
		}
		i, f := decodeScalar(param.DType, arg.Scalar)
		if param.DType.IsFloat() {
			inv.floats[k.paramSlots[ii]] = f
		} else {
			inv.ints[k.paramSlots[ii]] = i
		}
	}
	return inv, nil
}

// RuntimeError is returned when a work-item fails, e.g. on an out-of-bounds access of global memory.
type RuntimeError struct {
	Kernel string
	Pos    Pos
	Msg    string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("kernel %q at %d:%d: %s", e.Kernel, e.Pos.Line, e.Pos.Col, e.Msg)
}

// boundsError is raised (with panic) by out-of-bounds accesses, and recovered by Run.
type boundsError struct {
	pos   Pos
	name  string
	index int64
	len   int
}

// Run executes the work-items with linear index in [from, to) of the range. Work-items are linearized with
// dimension 0 varying fastest.
//
// Run can be called concurrently on disjoint intervals.
func (inv *Invocation) Run(nd NDRange, from, to int) (err error) {
	k := inv.kernel
	f := &frame{
		ints:   make([]int64, len(inv.ints)),
		floats: make([]float64, len(inv.floats)),
		bufs:   inv.bufs,
		nd:     &nd,
	}
	defer func() {
		if r := recover(); r != nil {
			be, ok := r.(*boundsError)
			if !ok {
				panic(r)
			}
			err = &RuntimeError{Kernel: k.Name, Pos: be.pos,
				Msg: fmt.Sprintf("out-of-bounds access %s[%d] of buffer with %d elements (work-item %v)",
					be.name, be.index, be.len, f.gid[:nd.Dims])}
		}
	}()
	g0, g1 := nd.Global[0], nd.Global[1]
	for linear := from; linear < to; linear++ {
		f.gid[0] = linear % g0
		f.gid[1] = (linear / g0) % g1
		f.gid[2] = linear / (g0 * g1)
		for d := range 3 {
			f.lid[d] = f.gid[d] % nd.Local[d]
			f.group[d] = f.gid[d] / nd.Local[d]
		}
		copy(f.ints, inv.ints)
		copy(f.floats, inv.floats)
		k.body(f)
	}
	return nil
}
