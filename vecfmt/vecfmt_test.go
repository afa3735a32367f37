package vecfmt

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func sequence(n int) []int32 {
	v := make([]int32, n)
	for ii := range v {
		v[ii] = int32(ii)
	}
	return v
}

func TestFprint(t *testing.T) {
	require.Equal(t, "", Sprint(None, sequence(20)))
	require.Equal(t, "0 1 2 \n----------------------------\n", Sprint(Truncated, sequence(3)))
	require.Equal(t, Separator, Sprint(Full, []int32{}))

	// 15 values are still printed in full.
	require.Equal(t, "0 1 2 3 4 5 6 7 8 9 10 11 12 13 14 "+Separator, Sprint(Truncated, sequence(15)))
	require.Equal(t, "0 1 2 3 4  ..... 11 12 13 14 15 "+Separator, Sprint(Truncated, sequence(16)))
	require.Equal(t, "0 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 "+Separator, Sprint(Full, sequence(16)))
	require.Equal(t, Sprint(Full, sequence(16)), Sprint(Mode(7), sequence(16)))

	require.Equal(t, "0.5 -2 "+Separator, Sprint(Full, []float32{0.5, -2}))
	require.Equal(t, "1.5 "+Separator, Sprint(Full, []float16.Float16{float16.Fromfloat32(1.5)}))
}

func TestIdempotent(t *testing.T) {
	v := sequence(1000)
	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, Truncated, v))
	first := buf.String()
	buf.Reset()
	require.NoError(t, Fprint(&buf, Truncated, v))
	require.Equal(t, first, buf.String())
	require.Equal(t, sequence(1000), v)
}

func TestModeFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	mode := Truncated
	fs.Var(&mode, "print", "print mode")
	require.NoError(t, fs.Parse([]string{"-print=full"}))
	require.Equal(t, Full, mode)
	require.NoError(t, fs.Parse([]string{"-print=0"}))
	require.Equal(t, None, mode)
	require.Equal(t, "none", mode.String())
	require.Error(t, mode.Set("verbose"))
	require.NoError(t, mode.Set("Truncated"))
	require.Equal(t, Truncated, mode)
}
