package clc

import (
	"encoding/binary"
	"testing"

	"github.com/gomlx/clvec/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func toBytes[T any](values ...T) []byte {
	return must.M1(binary.Append(nil, binary.NativeEndian, values))
}

func fromBytes[T any](data []byte) []T {
	var zero T
	out := make([]T, len(data)/binary.Size(zero))
	must.M1(binary.Decode(data, binary.NativeEndian, out))
	return out
}

// compileKernel compiles source and returns the kernel with the given name.
func compileKernel(t *testing.T, source, name string) *Kernel {
	prog, err := Compile("test.cl", source, Options{})
	require.NoError(t, err)
	k := prog.Kernel(name)
	require.NotNilf(t, k, "kernel %q not found in %v", name, prog.KernelNames())
	return k
}

// runKernel runs all work-items of the range given by global, with the default local size.
func runKernel(t *testing.T, k *Kernel, global []int, args ...Arg) {
	inv, err := k.Bind(args)
	require.NoError(t, err)
	nd, err := NewNDRange(global, nil)
	require.NoError(t, err)
	require.NoError(t, inv.Run(nd, 0, nd.Size()))
}

const squareMagnitudeSource = `
// Squares each element in place.
__kernel void square_magnitude(const int size, __global int *v) {
    int i = get_global_id(0);
    if (i < size) {
        v[i] = v[i] * v[i];
    }
}
`

func TestCompile_Signature(t *testing.T) {
	prog, err := Compile("vector_ops.cl", squareMagnitudeSource+`
kernel void add(global const float * restrict a, global const float *b, global float *c) {
    size_t i = get_global_id(0);
    c[i] = a[i] + b[i];
}`, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"square_magnitude", "add"}, prog.KernelNames())

	k := prog.Kernel("square_magnitude")
	require.Len(t, k.Params, 2)
	require.Equal(t, Param{Name: "size", TypeName: "int", DType: dtypes.Int32, IsConst: true}, k.Params[0])
	require.Equal(t, "v", k.Params[1].Name)
	require.True(t, k.Params[1].IsPointer)
	require.False(t, k.Params[1].IsConst)
	require.Equal(t, dtypes.Int32, k.Params[1].DType)

	k = prog.Kernel("add")
	require.Len(t, k.Params, 3)
	require.True(t, k.Params[0].IsConst)
	require.True(t, k.Params[0].IsPointer)
	require.Equal(t, dtypes.Float32, k.Params[2].DType)
	require.Nil(t, prog.Kernel("sub"))
}

func TestRun_SquareMagnitude(t *testing.T) {
	k := compileKernel(t, squareMagnitudeSource, "square_magnitude")
	buf := toBytes[int32](1, 2, 3, -4, 5)
	// Global size larger than the vector: the extra work-items are filtered by the kernel.
	runKernel(t, k, []int{8}, Arg{Scalar: toBytes[int32](5)}, Arg{Buffer: append(buf, make([]byte, 12)...)})

	buf = toBytes[int32](1, 2, 3, -4, 5)
	runKernel(t, k, []int{5}, Arg{Scalar: toBytes[int32](5)}, Arg{Buffer: buf})
	require.Equal(t, []int32{1, 4, 9, 16, 25}, fromBytes[int32](buf))
}

func TestRun_PartialRanges(t *testing.T) {
	k := compileKernel(t, `
__kernel void add(__global const int *a, __global const int *b, __global int *c) {
    int i = get_global_id(0);
    c[i] = a[i] + b[i];
}`, "add")
	const n = 100
	a, b := make([]int32, n), make([]int32, n)
	for ii := range n {
		a[ii], b[ii] = int32(ii), int32(1000*ii)
	}
	c := make([]byte, 4*n)
	inv, err := k.Bind([]Arg{{Buffer: toBytes(a...)}, {Buffer: toBytes(b...)}, {Buffer: c}})
	require.NoError(t, err)
	nd, err := NewNDRange([]int{n}, []int{10})
	require.NoError(t, err)
	// Disjoint intervals, run concurrently.
	done := make(chan error)
	for from := 0; from < n; from += 30 {
		go func() { done <- inv.Run(nd, from, min(from+30, n)) }()
	}
	for range 4 {
		require.NoError(t, <-done)
	}
	got := fromBytes[int32](c)
	for ii := range n {
		require.Equal(t, int32(1001*ii), got[ii])
	}
}

func TestRun_Statements(t *testing.T) {
	k := compileKernel(t, `
#define STEPS 10
__kernel void stmts(__global int *out) {
    int sum = 0;
    for (int i = 0; i < STEPS; i++) {
        if (i == 3) continue;
        if (i == 8) break;
        sum += i;          // 0+1+2+4+5+6+7 = 25
    }
    out[0] = sum;

    int n = 0, w = 100;
    while (w > 1) { w /= 2; n++; }
    out[1] = n;            // 100 50 25 12 6 3 1: 6 iterations

    int d = 0;
    do { d += 3; } while (d < 10);
    out[2] = d;

    out[3] = sum > 20 ? 1 : -1;
    out[4] = (7 & 3) | (1 << 4) ^ 2;
    out[5] = !sum + ~0;
    int m = 17;
    m %= 5;
    m <<= 3;
    out[6] = m;
    out[7] = -7 / 2 + -7 % 2;
    return;
    out[0] = -1;
}`, "stmts")
	out := make([]byte, 4*8)
	runKernel(t, k, []int{1}, Arg{Buffer: out})
	require.Equal(t, []int32{25, 6, 12, 1, 3 | (16 ^ 2), -1, 16, -4}, fromBytes[int32](out))
}

func TestRun_IntegerSemantics(t *testing.T) {
	k := compileKernel(t, `
__kernel void ints(__global int *out, __global uchar *small) {
    uchar x = 250;
    x += 10;
    small[0] = x;              // wraps to 4
    char c = (char)200;
    out[0] = c;                // -56
    int zero = 0;
    out[1] = 7 / zero;         // division by zero yields 0
    out[2] = 7 % zero;
    out[3] = INT_MAX + 1;      // wraps
    uint u = 0;
    u--;
    out[4] = u == UINT_MAX;
    out[5] = min(3, -2) + max(10, 4) + abs(-5) + clamp(20, 0, 15);
    out[6] = (int)3.9f + (int)-3.9f;
}`, "ints")
	out := make([]byte, 4*7)
	small := make([]byte, 1)
	runKernel(t, k, []int{1}, Arg{Buffer: out}, Arg{Buffer: small})
	require.Equal(t, []byte{4}, small)
	require.Equal(t, []int32{-56, 0, 0, -2147483648, 1, -2 + 10 + 5 + 15, 0}, fromBytes[int32](out))
}

func TestRun_Float(t *testing.T) {
	k := compileKernel(t, `
__kernel void floats(__global const float *x, __global float *y, const float scale) {
    int i = get_global_id(0);
    float v = x[i];
    y[i] = scale * sqrt(v) + fmax(v, 2.0f) - floor(1.5f) + mad(v, 2.0f, 0.5f);
}`, "floats")
	x := toBytes[float32](1, 4, 9)
	y := make([]byte, 4*3)
	runKernel(t, k, []int{3}, Arg{Buffer: x}, Arg{Buffer: y}, Arg{Scalar: toBytes[float32](10)})
	require.InDeltaSlice(t,
		[]float32{10*1 + 2 - 1 + 2.5, 10*2 + 4 - 1 + 8.5, 10*3 + 9 - 1 + 18.5},
		fromBytes[float32](y), 1e-5)
}

func TestRun_WorkItemFunctions(t *testing.T) {
	k := compileKernel(t, `
__kernel void ids(__global int *out) {
    size_t x = get_global_id(0), y = get_global_id(1);
    size_t idx = y * get_global_size(0) + x;
    out[idx] = get_work_dim() * 1000 + get_group_id(0) * 100 + get_local_id(0) * 10 + get_num_groups(1);
}`, "ids")
	out := make([]byte, 4*8)
	inv, err := k.Bind([]Arg{{Buffer: out}})
	require.NoError(t, err)
	nd, err := NewNDRange([]int{4, 2}, []int{2, 1})
	require.NoError(t, err)
	require.Equal(t, 8, nd.Size())
	require.NoError(t, inv.Run(nd, 0, nd.Size()))
	row := []int32{2002, 2012, 2102, 2112}
	require.Equal(t, append(row, row...), fromBytes[int32](out))
}

func TestRun_OutOfBounds(t *testing.T) {
	k := compileKernel(t, `
__kernel void overflow(__global int *v) {
    int i = get_global_id(0);
    v[i + 1] = i;
}`, "overflow")
	inv, err := k.Bind([]Arg{{Buffer: make([]byte, 4*4)}})
	require.NoError(t, err)
	nd, err := NewNDRange([]int{4}, nil)
	require.NoError(t, err)
	err = inv.Run(nd, 0, 4)
	require.Error(t, err)
	var rtErr *RuntimeError
	require.True(t, errors.As(err, &rtErr))
	require.Equal(t, "overflow", rtErr.Kernel)
	require.Equal(t, 4, rtErr.Pos.Line)
	require.Contains(t, err.Error(), "out-of-bounds")
}

func TestBind(t *testing.T) {
	k := compileKernel(t, squareMagnitudeSource, "square_magnitude")
	_, err := k.Bind([]Arg{{Scalar: toBytes[int32](1)}})
	require.ErrorContains(t, err, "takes 2 arguments")
	_, err = k.Bind([]Arg{{Scalar: toBytes[int64](1)}, {Buffer: make([]byte, 4)}})
	require.ErrorContains(t, err, "requires 4 bytes")
	_, err = k.Bind([]Arg{{Scalar: toBytes[int32](1)}, {Scalar: toBytes[int32](1)}})
	require.ErrorContains(t, err, "requires a buffer")
}

func TestNewNDRange(t *testing.T) {
	nd, err := NewNDRange([]int{16}, nil)
	require.NoError(t, err)
	require.Equal(t, NDRange{Dims: 1, Global: [3]int{16, 1, 1}, Local: [3]int{1, 1, 1}}, nd)

	_, err = NewNDRange(nil, nil)
	require.Error(t, err)
	_, err = NewNDRange([]int{1, 2, 3, 4}, nil)
	require.Error(t, err)
	_, err = NewNDRange([]int{10}, []int{3})
	require.Error(t, err)
	_, err = NewNDRange([]int{10, 2}, []int{5})
	require.Error(t, err)
	_, err = NewNDRange([]int{-1}, nil)
	require.Error(t, err)
}

func TestCompile_Defines(t *testing.T) {
	source := `
#ifndef OFFSET
#define OFFSET 100
#endif
#ifdef DOUBLE
#define FACTOR 2
#else
#define FACTOR 1
#endif
__kernel void shift(__global int *v) {
    v[get_global_id(0)] = v[get_global_id(0)] * FACTOR + OFFSET;
}`
	for _, tc := range []struct {
		options string
		want    int32
	}{
		{"", 103},
		{"-DOFFSET=5", 8},
		{"-D DOUBLE -cl-fast-relaxed-math", 106},
		{"-DDOUBLE -DOFFSET=-1 -w", 5},
	} {
		opts, err := ParseOptions(tc.options)
		require.NoError(t, err)
		prog, err := Compile("shift.cl", source, opts)
		require.NoError(t, err)
		buf := toBytes[int32](3)
		inv, err := prog.Kernel("shift").Bind([]Arg{{Buffer: buf}})
		require.NoError(t, err)
		nd, _ := NewNDRange([]int{1}, nil)
		require.NoError(t, inv.Run(nd, 0, 1))
		require.Equalf(t, tc.want, fromBytes[int32](buf)[0], "options %q", tc.options)
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions("-DA -D B=2 -DC=x -I include -Iinc -Werror")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"A": "1", "B": "2", "C": "x"}, opts.Defines)

	_, err = ParseOptions("-O3")
	require.ErrorContains(t, err, "unsupported build option")
	_, err = ParseOptions("-D")
	require.ErrorContains(t, err, "missing argument")
	_, err = ParseOptions("-D1A")
	require.ErrorContains(t, err, "invalid macro name")
}

func TestCompile_Diagnostics(t *testing.T) {
	for _, tc := range []struct {
		name, source string
		want         []string
	}{
		{"undeclared", `__kernel void k(__global int *v) {
    v[0] = y;
}`, []string{"bad.cl:2:12: error: use of undeclared identifier 'y'", "1 error generated."}},
		{"missing semicolon", `__kernel void k(__global int *v) {
    v[0] = 1
}`, []string{"bad.cl:3:1: error:", "1 error generated."}},
		{"const target", `__kernel void k(__global const int *v) {
    v[0] = 1;
}`, []string{"bad.cl:2:"}},
		{"arity", `__kernel void k(__global int *v) {
    v[0] = min(1);
}`, []string{"too few arguments to function call 'min'"}},
		{"index scalar", `__kernel void k(const int n, __global int *v) {
    v[0] = n[1];
}`, []string{"subscripted value is not an array or pointer"}},
		{"several errors", `__kernel void k(__global int *v) {
    v[0] = a;
    v[1] = b;
}`, []string{"'a'", "'b'", "2 errors generated."}},
		{"unsupported", `__kernel void k(__global int *v) {
    barrier(0);
}`, []string{"function 'barrier' is not supported"}},
		{"not a kernel", `int f(int x) { return x; }`, []string{"missing '__kernel'"}},
		{"unterminated if", "#ifdef X\n__kernel void k() {}\n", []string{"unterminated conditional directive"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile("bad.cl", tc.source, Options{})
			require.Error(t, err)
			var diags Diagnostics
			require.True(t, errors.As(err, &diags))
			require.NotEmpty(t, diags)
			for _, want := range tc.want {
				require.Contains(t, err.Error(), want)
			}
		})
	}
}
