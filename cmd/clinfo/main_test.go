package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/clvec/compute"
	"github.com/stretchr/testify/require"
)

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd := newRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlatforms(t *testing.T) {
	out, err := execute("platforms", "--extensions")
	require.NoError(t, err)
	require.Contains(t, out, `Platform "host" (priority 0)`)
	require.Contains(t, out, "Type:")
	require.Contains(t, out, "CPU")
	require.Contains(t, out, "Extensions:")

	_, err = execute("platforms", "extra")
	require.Error(t, err)
}

func TestBuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scale.cl")
	require.NoError(t, os.WriteFile(path, []byte(`
__kernel void scale(const int size, __global float *v) {
    int i = get_global_id(0);
    if (i < size)
        v[i] = v[i] * FACTOR;
}
`), 0o644))

	before := compute.ContextsAlive()
	out, err := execute("build", "--platform=host", "-D", "FACTOR=2.0f", path)
	require.NoError(t, err)
	require.Contains(t, out, `Built "scale.cl" on host/`)
	require.Contains(t, out, "__kernel void scale(const int size, __global float *v)")
	require.Equal(t, before, compute.ContextsAlive())

	// FACTOR undefined.
	out, err = execute("build", "--platform=host", "--device=cpu", path)
	require.Error(t, err)
	require.Contains(t, out, "use of undeclared identifier 'FACTOR'")
	require.Equal(t, before, compute.ContextsAlive())

	_, err = execute("build", "--platform=host", filepath.Join(t.TempDir(), "missing.cl"))
	require.Error(t, err)
	_, err = execute("build", "--device=tpu", path)
	require.Error(t, err)
	_, err = execute("build")
	require.Error(t, err)
}
