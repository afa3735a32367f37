package dtypes

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestMapOfNames(t *testing.T) {
	require.Equal(t, Float16, MapOfNames["Float16"])
	require.Equal(t, Float16, MapOfNames["float16"])
	require.Equal(t, Float16, MapOfNames["F16"])
	require.Equal(t, Float16, MapOfNames["f16"])
	require.Equal(t, Float16, MapOfNames["half"])

	require.Equal(t, Int32, MapOfNames["int"])
	require.Equal(t, Int32, MapOfNames["i32"])
	require.Equal(t, Uint64, MapOfNames["ulong"])
}

func TestSizes(t *testing.T) {
	require.Equal(t, 4, Int32.Size())
	require.Equal(t, 2, Float16.Size())
	require.Equal(t, 8, Uint64.Size())
	require.Equal(t, 0, InvalidDType.Size())
	require.Equal(t, 4000, Int32.SizeForElements(1000))
	require.Equal(t, 16, Int16.Bits())
}

func TestGoTypes(t *testing.T) {
	for dtype := Int8; dtype <= Float64; dtype++ {
		goType := dtype.GoType()
		require.NotNilf(t, goType, "dtype %s has no Go type", dtype)
		require.Equalf(t, dtype, FromGoType(goType), "round trip of %s through %s", dtype, goType)
		require.Equal(t, int(goType.Size()), dtype.Size())
	}
	require.Equal(t, InvalidDType, FromGoType(reflect.TypeOf("")))
	require.Equal(t, Int32, FromGenericsType[int32]())
	require.Equal(t, Float16, FromGenericsType[float16.Float16]())
	require.Equal(t, InvalidDType, FromAny(3))
}

func TestCLNames(t *testing.T) {
	for dtype := Int8; dtype <= Float64; dtype++ {
		require.Equal(t, dtype, FromCLName(dtype.CLName()))
	}
	require.Equal(t, Uint64, FromCLName("size_t"))
	require.Equal(t, InvalidDType, FromCLName("int4"))
	require.True(t, Float32.IsFloat())
	require.True(t, Uint8.IsUnsigned())
	require.False(t, Float16.IsInt())
}
