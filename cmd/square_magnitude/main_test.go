package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/clvec/internal/runner"
	"github.com/gomlx/clvec/vecfmt"
	"github.com/stretchr/testify/require"
)

const runMainEnv = "CLVEC_RUN_MAIN"

// TestMain runs the program main instead of the tests when runMainEnv is set, so the tests can check the exit codes.
func TestMain(m *testing.M) {
	if os.Getenv(runMainEnv) == "1" {
		main()
		return
	}
	os.Exit(m.Run())
}

func runMain(t *testing.T, args ...string) (code int, stdout, stderr string) {
	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = append(os.Environ(), runMainEnv+"=1")
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout, cmd.Stderr = &outBuf, &errBuf
	err := cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), outBuf.String(), errBuf.String()
	}
	require.NoError(t, err)
	return 0, outBuf.String(), errBuf.String()
}

func TestSquareMagnitude(t *testing.T) {
	code, stdout, stderr := runMain(t, "-platform=host")
	require.Equalf(t, runner.ExitSuccess, code, "stderr: %s", stderr)
	parts := strings.Split(stdout, vecfmt.Separator)
	require.Len(t, parts, 3)
	before, after := strings.Fields(parts[0]), strings.Fields(parts[1])
	require.Len(t, before, Example.DefaultSize)
	require.Len(t, after, Example.DefaultSize)

	// The host platform has no GPU: the fallback to the CPU is reported by default.
	require.Contains(t, stderr, "GPU not found, trying CPU")

	// Long vectors are truncated.
	code, stdout, _ = runMain(t, "-platform=host", "100")
	require.Equal(t, runner.ExitSuccess, code)
	require.Equal(t, 2, strings.Count(stdout, vecfmt.Ellipsis))
}

func TestFatalPaths(t *testing.T) {
	badKernel := filepath.Join(t.TempDir(), "vector_ops.cl")
	require.NoError(t, os.WriteFile(badKernel, []byte("__kernel void square_magnitude(const int size, __global int *v) {\n    v[0] = ;\n}\n"), 0o644))

	for name, args := range map[string][]string{
		"missing file":   {"-kernel=" + filepath.Join(t.TempDir(), "vector_ops.cl")},
		"malformed":      {"-kernel=" + badKernel, "-platform=host"},
		"missing kernel": {"-kernel=../vector_add/vadd_ocl.cl", "-platform=host"},
		"bad size":       {"eight"},
	} {
		code, _, stderr := runMain(t, args...)
		require.Equalf(t, runner.ExitFailure, code, "case %q", name)
		require.NotEmptyf(t, stderr, "case %q", name)
	}
}
