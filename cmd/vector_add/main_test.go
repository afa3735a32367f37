package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/clvec/internal/report"
	"github.com/gomlx/clvec/internal/runner"
	"github.com/gomlx/clvec/vecfmt"
	"github.com/janpfeifer/must"
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

func TestVectorAdd(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "report.txtpb")
	code, stdout, stderr := runMain(t, "-platform=host", "-report="+reportPath)
	require.Equalf(t, runner.ExitSuccess, code, "stderr: %s", stderr)
	require.True(t, strings.HasPrefix(stdout, "Time taken by function: "))
	require.NotContains(t, stdout, vecfmt.Separator)

	fields := must.M1(report.Read(reportPath)).AsMap()
	require.Equal(t, float64(Example.DefaultSize), fields["size"])
	require.Equal(t, "ok", fields["status"])

	code, stdout, _ = runMain(t, "-platform=host", "-print=full", "3")
	require.Equal(t, runner.ExitSuccess, code)
	require.Equal(t, 3, strings.Count(stdout, vecfmt.Separator))
}

func TestFatalPaths(t *testing.T) {
	badKernel := filepath.Join(t.TempDir(), "vadd_ocl.cl")
	require.NoError(t, os.WriteFile(badKernel, []byte("__kernel void add(const int size, __global int *a) {\n    a[0] = ;\n}\n"), 0o644))

	for name, args := range map[string][]string{
		"missing file":   {"-kernel=" + filepath.Join(t.TempDir(), "vadd_ocl.cl")},
		"malformed":      {"-kernel=" + badKernel, "-platform=host"},
		"missing kernel": {"-kernel=../square_magnitude/vector_ops.cl", "-platform=host"},
		"no gpu":         {"-platform=host", "-device=gpu"},
	} {
		code, _, stderr := runMain(t, args...)
		require.Equalf(t, runner.ExitFailure, code, "case %q", name)
		require.NotEmptyf(t, stderr, "case %q", name)
	}
}
