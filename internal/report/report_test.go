package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/session"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStruct(t *testing.T) {
	run := &Run{Example: "vector_add", Platform: "host", Device: "Go CPU", Size: 1000, Elapsed: 1500 * time.Microsecond}
	s := must.M1(run.Struct())
	fields := s.AsMap()
	require.Equal(t, "vector_add", fields["example"])
	require.Equal(t, float64(1000), fields["size"])
	require.Equal(t, "0.001500s", fields["elapsed"])
	require.Equal(t, float64(1500), fields["elapsed_us"])
	require.Equal(t, "ok", fields["status"])
	require.NotContains(t, fields, "error")

	run.Err = &session.Error{Kind: session.KindCompile, Op: "Build",
		Err: &compute.Error{Op: "BuildProgram", Status: compute.BuildProgramFailure}}
	fields = must.M1(run.Struct()).AsMap()
	require.Equal(t, "failed", fields["status"])
	require.Equal(t, "compile", fields["error_kind"])
	require.Contains(t, fields["error"], "Build: ")

	run.Err = errors.New("plain")
	require.Equal(t, "api", must.M1(run.Struct()).AsMap()["error_kind"])
}

func TestWriteRead(t *testing.T) {
	run := &Run{Example: "square_magnitude", Platform: "host", Size: 8, Elapsed: 2 * time.Second}
	for _, name := range []string{"report.json", "report.pb", "report.txtpb"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, run.Write(path))
		fields := must.M1(Read(path)).AsMap()
		require.Equalf(t, "square_magnitude", fields["example"], "file %s", name)
		require.Equalf(t, "2s", fields["elapsed"], "file %s", name)
	}
	require.Contains(t, string(must.M1(run.Marshal("r.json"))), "square_magnitude")

	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.Error(t, run.Write(filepath.Join(t.TempDir(), "no_dir", "r.json")))
}
