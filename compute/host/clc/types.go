package clc

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/gomlx/clvec/dtypes"
	"github.com/x448/float16"
)

// ctype is the type of an expression: a scalar dtype, or a pointer to global memory holding it.
type ctype struct {
	dt  dtypes.DType
	ptr bool

	// constTarget is set for pointers to read-only memory.
	constTarget bool
}

func (t ctype) String() string {
	if t.ptr {
		if t.constTarget {
			return "__global const " + t.dt.CLName() + " *"
		}
		return "__global " + t.dt.CLName() + " *"
	}
	return t.dt.CLName()
}

func (t ctype) isFloat() bool { return !t.ptr && t.dt.IsFloat() }

// scalarTypes maps the type keywords to their dtypes.
var scalarTypes = map[string]dtypes.DType{
	"char":   dtypes.Int8,
	"uchar":  dtypes.Uint8,
	"short":  dtypes.Int16,
	"ushort": dtypes.Uint16,
	"int":    dtypes.Int32,
	"uint":   dtypes.Uint32,
	"long":   dtypes.Int64,
	"ulong":  dtypes.Uint64,
	"size_t": dtypes.Uint64,
	"half":   dtypes.Float16,
	"float":  dtypes.Float32,
	"double": dtypes.Float64,
}

// isVectorType returns whether the name is an OpenCL vector type, like float4.
func isVectorType(name string) bool {
	for base := range scalarTypes {
		if suffix, found := strings.CutPrefix(name, base); found {
			switch suffix {
			case "2", "3", "4", "8", "16":
				return true
			}
		}
	}
	return false
}

// promote applies the integer promotions: small integers become int, and half becomes float.
func promote(dt dtypes.DType) dtypes.DType {
	switch dt {
	case dtypes.Int8, dtypes.Uint8, dtypes.Int16, dtypes.Uint16:
		return dtypes.Int32
	case dtypes.Float16:
		return dtypes.Float32
	}
	return dt
}

// arithType returns the common type of a binary arithmetic operation (the usual arithmetic conversions).
func arithType(a, b dtypes.DType) dtypes.DType {
	if a == dtypes.Float64 || b == dtypes.Float64 {
		return dtypes.Float64
	}
	if a.IsFloat() || b.IsFloat() {
		return dtypes.Float32
	}
	a, b = promote(a), promote(b)
	if a == b {
		return a
	}
	if a.IsUnsigned() == b.IsUnsigned() {
		if a.Size() >= b.Size() {
			return a
		}
		return b
	}
	unsigned, signed := a, b
	if b.IsUnsigned() {
		unsigned, signed = b, a
	}
	if unsigned.Size() >= signed.Size() {
		return unsigned
	}
	return signed
}

// Integer values of all widths are carried as int64, wrapped to the width of their type: signed types are
// sign-extended, unsigned ones zero-extended, except 64 bits unsigned values which keep their bit pattern.
// Floating point values are carried as float64, rounded to the precision of their type.

// wrapFunc returns the function that wraps an int64 to the width of dt, or nil for 64 bits types.
func wrapFunc(dt dtypes.DType) func(int64) int64 {
	switch dt {
	case dtypes.Int8:
		return func(v int64) int64 { return int64(int8(v)) }
	case dtypes.Uint8:
		return func(v int64) int64 { return int64(uint8(v)) }
	case dtypes.Int16:
		return func(v int64) int64 { return int64(int16(v)) }
	case dtypes.Uint16:
		return func(v int64) int64 { return int64(uint16(v)) }
	case dtypes.Int32:
		return func(v int64) int64 { return int64(int32(v)) }
	case dtypes.Uint32:
		return func(v int64) int64 { return int64(uint32(v)) }
	}
	return nil
}

func wrapInt(dt dtypes.DType, v int64) int64 {
	if w := wrapFunc(dt); w != nil {
		return w(v)
	}
	return v
}

// roundFunc returns the function that rounds a float64 to the precision of dt, or nil for double.
func roundFunc(dt dtypes.DType) func(float64) float64 {
	switch dt {
	case dtypes.Float32:
		return func(v float64) float64 { return float64(float32(v)) }
	case dtypes.Float16:
		return func(v float64) float64 { return float64(float16.Fromfloat32(float32(v)).Float32()) }
	}
	return nil
}

func roundFloat(dt dtypes.DType, v float64) float64 {
	if r := roundFunc(dt); r != nil {
		return r(v)
	}
	return v
}

func intToFloat(from dtypes.DType, v int64) float64 {
	if from == dtypes.Uint64 {
		return float64(uint64(v))
	}
	return float64(v)
}

func floatToInt(to dtypes.DType, v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if to == dtypes.Uint64 && v >= math.MaxInt64 {
		return int64(uint64(v))
	}
	return wrapInt(to, int64(v))
}

// Element load and store functions of global memory, indexed by element.
var ne = binary.NativeEndian

func loadIntFunc(dt dtypes.DType) func(b []byte, i int) int64 {
	switch dt {
	case dtypes.Int8:
		return func(b []byte, i int) int64 { return int64(int8(b[i])) }
	case dtypes.Uint8:
		return func(b []byte, i int) int64 { return int64(b[i]) }
	case dtypes.Int16:
		return func(b []byte, i int) int64 { return int64(int16(ne.Uint16(b[2*i:]))) }
	case dtypes.Uint16:
		return func(b []byte, i int) int64 { return int64(ne.Uint16(b[2*i:])) }
	case dtypes.Int32:
		return func(b []byte, i int) int64 { return int64(int32(ne.Uint32(b[4*i:]))) }
	case dtypes.Uint32:
		return func(b []byte, i int) int64 { return int64(ne.Uint32(b[4*i:])) }
	case dtypes.Int64, dtypes.Uint64:
		return func(b []byte, i int) int64 { return int64(ne.Uint64(b[8*i:])) }
	}
	panic(fmt.Sprintf("loadIntFunc: not an integer dtype %s", dt))
}

func storeIntFunc(dt dtypes.DType) func(b []byte, i int, v int64) {
	switch dt {
	case dtypes.Int8, dtypes.Uint8:
		return func(b []byte, i int, v int64) { b[i] = byte(v) }
	case dtypes.Int16, dtypes.Uint16:
		return func(b []byte, i int, v int64) { ne.PutUint16(b[2*i:], uint16(v)) }
	case dtypes.Int32, dtypes.Uint32:
		return func(b []byte, i int, v int64) { ne.PutUint32(b[4*i:], uint32(v)) }
	case dtypes.Int64, dtypes.Uint64:
		return func(b []byte, i int, v int64) { ne.PutUint64(b[8*i:], uint64(v)) }
	}
	panic(fmt.Sprintf("storeIntFunc: not an integer dtype %s", dt))
}

func loadFloatFunc(dt dtypes.DType) func(b []byte, i int) float64 {
	switch dt {
	case dtypes.Float16:
		return func(b []byte, i int) float64 { return float64(float16.Frombits(ne.Uint16(b[2*i:])).Float32()) }
	case dtypes.Float32:
		return func(b []byte, i int) float64 { return float64(math.Float32frombits(ne.Uint32(b[4*i:]))) }
	case dtypes.Float64:
		return func(b []byte, i int) float64 { return math.Float64frombits(ne.Uint64(b[8*i:])) }
	}
	panic(fmt.Sprintf("loadFloatFunc: not a float dtype %s", dt))
}

func storeFloatFunc(dt dtypes.DType) func(b []byte, i int, v float64) {
	switch dt {
	case dtypes.Float16:
		return func(b []byte, i int, v float64) { ne.PutUint16(b[2*i:], float16.Fromfloat32(float32(v)).Bits()) }
	case dtypes.Float32:
		return func(b []byte, i int, v float64) { ne.PutUint32(b[4*i:], math.Float32bits(float32(v))) }
	case dtypes.Float64:
		return func(b []byte, i int, v float64) { ne.PutUint64(b[8*i:], math.Float64bits(v)) }
	}
	panic(fmt.Sprintf("storeFloatFunc: not a float dtype %s", dt))
}

// decodeScalar converts the raw bytes of a scalar argument to its carried representation.
func decodeScalar(dt dtypes.DType, raw []byte) (i int64, f float64) {
	if dt.IsFloat() {
		return 0, loadFloatFunc(dt)(raw, 0)
	}
	return loadIntFunc(dt)(raw, 0), 0
}
