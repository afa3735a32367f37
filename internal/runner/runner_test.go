package runner

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/clvec/compute"
	_ "github.com/gomlx/clvec/compute/host"
	"github.com/gomlx/clvec/internal/report"
	"github.com/gomlx/clvec/session"
	"github.com/gomlx/clvec/vecfmt"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

const vectorOpsSource = `__kernel void square_magnitude(const int size, __global int *v) {
    int i = get_global_id(0);
    if (i < size)
        v[i] = v[i] * v[i];
}
`

const vaddSource = `__kernel void add(const int size, __global int *v1, __global int *v2, __global int *v3) {
    int i = get_global_id(0);
    if (i < size)
        v3[i] = v1[i] + v2[i];
}
`

func writeKernel(t *testing.T, name, source string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

var squareMagnitude = Example{
	Name:         "square_magnitude",
	KernelFile:   "./vector_ops.cl",
	KernelName:   "square_magnitude",
	DefaultSize:  8,
	Vectors:      []Vector{{Name: "v", Direction: session.InOut}},
	DefaultPrint: vecfmt.Truncated,
}

var vectorAdd = Example{
	Name:        "vector_add",
	KernelFile:  "./vadd_ocl.cl",
	KernelName:  "add",
	DefaultSize: 1000,
	Vectors: []Vector{
		{Name: "v1", Direction: session.In},
		{Name: "v2", Direction: session.In},
		{Name: "v3", Direction: session.Out},
	},
	DefaultPrint: vecfmt.None,
	Timed:        true,
}

func run(example Example, args ...string) (code int, stdout, stderr string) {
	var outBuf, errBuf bytes.Buffer
	code = Run(example, args, &outBuf, &errBuf)
	return code, outBuf.String(), errBuf.String()
}

func TestSquareMagnitude(t *testing.T) {
	kernel := writeKernel(t, "vector_ops.cl", vectorOpsSource)
	code, stdout, stderr := run(squareMagnitude, "-kernel="+kernel, "-platform=host", "-seed=7")
	require.Equalf(t, ExitSuccess, code, "stderr: %s", stderr)

	rng := rand.New(rand.NewPCG(7, 7))
	var before, after strings.Builder
	for range 8 {
		v := rng.Int32N(MaxValue)
		fmt.Fprintf(&before, "%d ", v)
		fmt.Fprintf(&after, "%d ", v*v)
	}
	require.Equal(t, before.String()+vecfmt.Separator+after.String()+vecfmt.Separator, stdout)
	require.NotContains(t, stdout, "Time taken")

	// Same seed, same output.
	_, again, _ := run(squareMagnitude, "-kernel="+kernel, "-platform=host", "-seed=7")
	require.Equal(t, stdout, again)
}

func TestVectorAdd(t *testing.T) {
	kernel := writeKernel(t, "vadd_ocl.cl", vaddSource)
	code, stdout, stderr := run(vectorAdd, "-kernel="+kernel, "-platform=host", "-max_workers=3")
	require.Equalf(t, ExitSuccess, code, "stderr: %s", stderr)
	require.True(t, strings.HasPrefix(stdout, "Time taken by function: "))
	require.True(t, strings.HasSuffix(stdout, " microseconds\n"))

	code, stdout, _ = run(vectorAdd, "-kernel="+kernel, "-platform=host", "-print=truncated", "-skip_output_write", "40")
	require.Equal(t, ExitSuccess, code)
	lines := strings.Split(stdout, vecfmt.Separator)
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], vecfmt.Ellipsis)

	// Check the sums of the printed heads.
	var heads [3][5]int32
	for ii, line := range lines[:3] {
		fields := strings.Fields(line)
		for jj := range heads[ii] {
			_, err := fmt.Sscan(fields[jj], &heads[ii][jj])
			require.NoError(t, err)
		}
	}
	for jj := range heads[2] {
		require.Equal(t, heads[0][jj]+heads[1][jj], heads[2][jj])
	}
}

func TestTimedWindow(t *testing.T) {
	kernel := writeKernel(t, "vadd_ocl.cl", vaddSource)
	code, stdout, _ := run(vectorAdd, "-kernel="+kernel, "-platform=host", "-print=full", "4")
	require.Equal(t, ExitSuccess, code)
	parts := strings.Split(stdout, vecfmt.Separator)
	require.Len(t, parts, 4)
	require.True(t, strings.HasPrefix(parts[3], "Time taken by function: "), "timing is printed after the results")

	// The completion callback runs before the resources are released.
	n := 8
	plan := session.Plan{KernelPath: kernel, KernelName: "add", Platform: "host", Size: n,
		Buffers: []session.BufferSpec{
			{Name: "v1", Direction: session.In, Data: make([]int32, n)},
			{Name: "v2", Direction: session.In, Data: make([]int32, n)},
			{Name: "v3", Direction: session.Out, Data: make([]int32, n)},
		}}
	before := compute.BuffersAlive()
	var aliveAtCompletion int64
	require.NoError(t, runSession(plan, &report.Run{}, func() { aliveAtCompletion = compute.BuffersAlive() }))
	require.Equal(t, before+3, aliveAtCompletion)
	require.Equal(t, before, compute.BuffersAlive())

	// Not called on failures.
	plan.KernelName = "sub"
	called := false
	require.Error(t, runSession(plan, &report.Run{}, func() { called = true }))
	require.False(t, called)
}

func TestReport(t *testing.T) {
	kernel := writeKernel(t, "vadd_ocl.cl", vaddSource)
	reportPath := filepath.Join(t.TempDir(), "run.json")
	code, _, _ := run(vectorAdd, "-kernel="+kernel, "-platform=host", "-report="+reportPath, "16")
	require.Equal(t, ExitSuccess, code)
	fields := must.M1(report.Read(reportPath)).AsMap()
	require.Equal(t, "vector_add", fields["example"])
	require.Equal(t, "host", fields["platform"])
	require.Equal(t, float64(16), fields["size"])
	require.Equal(t, "ok", fields["status"])

	code, _, _ = run(vectorAdd, "-kernel="+filepath.Join(t.TempDir(), "missing.cl"), "-report="+reportPath)
	require.Equal(t, ExitFailure, code)
	fields = must.M1(report.Read(reportPath)).AsMap()
	require.Equal(t, "failed", fields["status"])
	require.Equal(t, "io", fields["error_kind"])
}

func TestFailures(t *testing.T) {
	goodKernel := writeKernel(t, "vector_ops.cl", vectorOpsSource)
	badKernel := writeKernel(t, "bad.cl", strings.Replace(vectorOpsSource, "v[i] * v[i]", "v[i] * ", 1))

	// Missing kernel source file.
	code, stdout, stderr := run(squareMagnitude, "-kernel="+filepath.Join(t.TempDir(), "vector_ops.cl"))
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "io error")
	require.Contains(t, stdout, vecfmt.Separator, "inputs are printed before the failure")

	// Malformed kernel: the build log goes to stdout.
	code, stdout, stderr = run(squareMagnitude, "-kernel="+badKernel, "-platform=host", "-print=none")
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stdout, ":4:")
	require.Contains(t, stdout, "error: expected expression")
	require.Contains(t, stderr, "compile error")

	// Kernel not in the program.
	example := squareMagnitude
	example.KernelName = "cube_magnitude"
	code, _, stderr = run(example, "-kernel="+goodKernel)
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "api error")
	require.Contains(t, stderr, "INVALID_KERNEL_NAME (-46)")

	// No such device.
	code, _, stderr = run(squareMagnitude, "-kernel="+goodKernel, "-platform=host", "-device=gpu,accelerator")
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "environment error")

	// Command line errors.
	for _, args := range [][]string{{"abc"}, {"-3"}, {"4", "5"}, {"-device=tpu"}, {"-print=loud"}, {"-no_such_flag"}} {
		code, _, stderr = run(squareMagnitude, append([]string{"-kernel=" + goodKernel}, args...)...)
		require.Equalf(t, ExitFailure, code, "args %q", args)
		require.NotEmptyf(t, stderr, "args %q", args)
	}
	code, _, stderr = run(squareMagnitude, "-h")
	require.Equal(t, ExitSuccess, code)
	require.Contains(t, stderr, "Usage: square_magnitude")
}

func TestEmptyVector(t *testing.T) {
	kernel := writeKernel(t, "vector_ops.cl", vectorOpsSource)
	code, stdout, _ := run(squareMagnitude, "-kernel="+kernel, "-platform=host", "0")
	require.Equal(t, ExitSuccess, code)
	require.Equal(t, vecfmt.Separator+vecfmt.Separator, stdout)
}
