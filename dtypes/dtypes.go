// Package dtypes defines the element types of device buffers and kernel scalar arguments.
package dtypes

import (
	"reflect"
	"strings"

	"github.com/x448/float16"
)

// DType is the element type of a device buffer or of a scalar kernel argument.
type DType int32

const (
	// InvalidDType represents an invalid (or not set) dtype.
	InvalidDType DType = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float16
	Float32
	Float64
)

// Aliases.
const (
	Invalid = InvalidDType
	S8      = Int8
	S16     = Int16
	S32     = Int32
	S64     = Int64
	U8      = Uint8
	U16     = Uint16
	U32     = Uint32
	U64     = Uint64
	F16     = Float16
	F32     = Float32
	F64     = Float64
)

var dtypeNames = [...]string{
	InvalidDType: "InvalidDType",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if dtype < 0 || int(dtype) >= len(dtypeNames) {
		return "InvalidDType"
	}
	return dtypeNames[dtype]
}

// IsValid returns whether dtype is one of the known element types.
func (dtype DType) IsValid() bool {
	return dtype > InvalidDType && int(dtype) < len(dtypeNames)
}

// Size returns the number of bytes used by one element of the dtype, 0 for an invalid dtype.
func (dtype DType) Size() int {
	switch dtype {
	case Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// SizeForElements returns the number of bytes needed to store numElements values of dtype.
func (dtype DType) SizeForElements(numElements int) int {
	return dtype.Size() * numElements
}

// IsFloat returns whether dtype is a floating point type.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// IsUnsigned returns whether dtype is an unsigned integer type.
func (dtype DType) IsUnsigned() bool {
	return dtype == Uint8 || dtype == Uint16 || dtype == Uint32 || dtype == Uint64
}

// IsInt returns whether dtype is an integer type (signed or unsigned).
func (dtype DType) IsInt() bool {
	switch dtype {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	}
	return false
}

// Bits returns the number of bits of one element.
func (dtype DType) Bits() int {
	return dtype.Size() * 8
}

// GoType returns the Go type used to hold values of dtype on the host. It returns nil for an invalid dtype.
func (dtype DType) GoType() reflect.Type {
	switch dtype {
	case Int8:
		return reflect.TypeOf(int8(0))
	case Int16:
		return reflect.TypeOf(int16(0))
	case Int32:
		return reflect.TypeOf(int32(0))
	case Int64:
		return reflect.TypeOf(int64(0))
	case Uint8:
		return reflect.TypeOf(uint8(0))
	case Uint16:
		return reflect.TypeOf(uint16(0))
	case Uint32:
		return reflect.TypeOf(uint32(0))
	case Uint64:
		return reflect.TypeOf(uint64(0))
	case Float16:
		return reflect.TypeOf(float16.Float16(0))
	case Float32:
		return reflect.TypeOf(float32(0))
	case Float64:
		return reflect.TypeOf(float64(0))
	}
	return nil
}

// CLName returns the OpenCL C spelling of the type used in kernel sources, e.g. "int" for Int32.
func (dtype DType) CLName() string {
	switch dtype {
	case Int8:
		return "char"
	case Int16:
		return "short"
	case Int32:
		return "int"
	case Int64:
		return "long"
	case Uint8:
		return "uchar"
	case Uint16:
		return "ushort"
	case Uint32:
		return "uint"
	case Uint64:
		return "ulong"
	case Float16:
		return "half"
	case Float32:
		return "float"
	case Float64:
		return "double"
	}
	return ""
}

// FromCLName converts the OpenCL C spelling of a scalar type to a DType.
// It returns InvalidDType if the name is not known.
func FromCLName(name string) DType {
	switch name {
	case "char":
		return Int8
	case "short":
		return Int16
	case "int":
		return Int32
	case "long":
		return Int64
	case "uchar":
		return Uint8
	case "ushort":
		return Uint16
	case "uint":
		return Uint32
	case "ulong", "size_t":
		return Uint64
	case "half":
		return Float16
	case "float":
		return Float32
	case "double":
		return Float64
	}
	return InvalidDType
}

// Supported lists the Go types that can be used as flat host data of a buffer, or as scalar kernel arguments.
type Supported interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float16.Float16 | float32 | float64
}

// FromGenericsType returns the DType corresponding to the generic type T.
func FromGenericsType[T Supported]() DType {
	var t T
	return FromAny(t)
}

// FromAny returns the DType of the given scalar value, or InvalidDType if it is not a supported type.
func FromAny(value any) DType {
	switch value.(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float16.Float16:
		return Float16
	case float32:
		return Float32
	case float64:
		return Float64
	}
	return InvalidDType
}

// FromGoType returns the DType for the given Go type, or InvalidDType if it is not supported.
func FromGoType(t reflect.Type) DType {
	if t == nil {
		return InvalidDType
	}
	if t == reflect.TypeOf(float16.Float16(0)) {
		return Float16
	}
	switch t.Kind() {
	case reflect.Int8:
		return Int8
	case reflect.Int16:
		return Int16
	case reflect.Int32:
		return Int32
	case reflect.Int64:
		return Int64
	case reflect.Uint8:
		return Uint8
	case reflect.Uint16:
		return Uint16
	case reflect.Uint32:
		return Uint32
	case reflect.Uint64:
		return Uint64
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	}
	return InvalidDType
}

// MapOfNames maps names and aliases (in different casings) to DTypes.
var MapOfNames = make(map[string]DType)

func init() {
	for dtype := Int8; int(dtype) < len(dtypeNames); dtype++ {
		name := dtype.String()
		MapOfNames[name] = dtype
		MapOfNames[strings.ToLower(name)] = dtype
		MapOfNames[dtype.CLName()] = dtype
	}
	aliases := map[string]DType{
		"S8": Int8, "S16": Int16, "S32": Int32, "S64": Int64,
		"U8": Uint8, "U16": Uint16, "U32": Uint32, "U64": Uint64,
		"F16": Float16, "F32": Float32, "F64": Float64,
		"I8": Int8, "I16": Int16, "I32": Int32, "I64": Int64,
	}
	for alias, dtype := range aliases {
		MapOfNames[alias] = dtype
		MapOfNames[strings.ToLower(alias)] = dtype
	}
}
