// Package clc compiles a subset of OpenCL C kernels to Go closures, to be executed on the CPU.
//
// The subset covers scalar kernels: `__kernel void` functions taking scalar and `__global` pointer parameters,
// with local scalar variables, the usual C statements and expressions, object-like macros and the most common
// work-item and math builtins. Vector types, local memory, barriers and helper functions are not supported.
//
// Integer arithmetic wraps around on the width of its type, and integer division by zero yields 0.
// Out-of-bounds accesses of global memory stop the work-item and are reported by Invocation.Run.
package clc

import (
	"slices"
	"strings"

	"github.com/gomlx/clvec/dtypes"
	"github.com/pkg/errors"
)

// Param is a kernel parameter.
type Param struct {
	Name string

	// TypeName as spelled in the source, e.g. "int" or "size_t".
	TypeName string

	// DType of the scalar, or of the elements pointed by a pointer parameter.
	DType dtypes.DType

	// IsPointer is set for `__global T *` (or `__constant T *`) parameters.
	IsPointer bool

	// IsConst is set if the value (for scalars) or the memory pointed (for pointers) is read-only.
	IsConst bool
}

// Kernel is a compiled kernel function.
type Kernel struct {
	Name   string
	Params []Param
	Pos    Pos

	numInts, numFloats int
	paramSlots         []int
	body               stmtFunc
}

// Program is the result of a compilation: a list of kernels.
type Program struct {
	Name    string
	Kernels []*Kernel
}

// Kernel returns the kernel with the given name, or nil if there is none.
func (p *Program) Kernel(name string) *Kernel {
	for _, k := range p.Kernels {
		if k.Name == name {
			return k
		}
	}
	return nil
}

// KernelNames returns the names of the kernels in source order.
func (p *Program) KernelNames() []string {
	names := make([]string, 0, len(p.Kernels))
	for _, k := range p.Kernels {
		names = append(names, k.Name)
	}
	return names
}

// Options of the compilation, parsed from the build options string.
type Options struct {
	// Defines are the macros set with -D.
	Defines map[string]string
}

// ParseOptions parses a build options string. Supported options are "-D NAME", "-DNAME" and "-DNAME=value";
// "-I <dir>", "-w", "-Werror" and "-cl-*" options are accepted and ignored.
func ParseOptions(options string) (Options, error) {
	opts := Options{Defines: make(map[string]string)}
	fields := strings.Fields(options)
	for ii := 0; ii < len(fields); ii++ {
		field := fields[ii]
		switch {
		case field == "-D" || field == "-I":
			if ii+1 >= len(fields) {
				return opts, errors.Errorf("missing argument to build option %q", field)
			}
			ii++
			if field == "-D" {
				if err := opts.define(fields[ii]); err != nil {
					return opts, err
				}
			}
		case strings.HasPrefix(field, "-D"):
			if err := opts.define(field[2:]); err != nil {
				return opts, err
			}
		case strings.HasPrefix(field, "-I"), field == "-w", field == "-Werror", strings.HasPrefix(field, "-cl-"):
			// Ignored.
		default:
			return opts, errors.Errorf("unsupported build option %q", field)
		}
	}
	return opts, nil
}

func (opts *Options) define(definition string) error {
	name, value, found := strings.Cut(definition, "=")
	if !isIdentifier(name) {
		return errors.Errorf("invalid macro name in -D%s", definition)
	}
	if !found {
		value = "1"
	}
	opts.Defines[name] = value
	return nil
}

// Compile the source of a program. The name is used in diagnostics, usually it is the source file name.
//
// If the compilation fails the returned error is of type Diagnostics, whose Error method returns the build log.
func Compile(name, source string, opts Options) (*Program, error) {
	var diags Diagnostics
	macros := make(map[string]*macro)
	defineNames := make([]string, 0, len(opts.Defines))
	for defName := range opts.Defines {
		defineNames = append(defineNames, defName)
	}
	slices.Sort(defineNames)
	for _, defName := range defineNames {
		macros[defName] = &macro{name: defName, body: tokenize("<command line>", opts.Defines[defName], 0, &diags)}
	}

	source = preprocess(name, source, macros, &diags)
	tokens := expandMacros(tokenize(name, source, 0, &diags), macros)
	if len(diags) > 0 {
		return nil, diags
	}
	p := newParser(name, tokens)
	kernels := p.parseProgram()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return &Program{Name: name, Kernels: kernels}, nil
}
