// vector_add adds, on a compute device, two vectors of random integers, and prints the time taken.
//
// Usage:
//
//	vector_add [flags] [size]
//
// The kernel is read from ./vadd_ocl.cl by default (see -kernel), and size defaults to 1000.
// Vectors are not printed by default, use -print=truncated or -print=full.
package main

import (
	_ "github.com/gomlx/clvec/compute/host"
	// Registers the system OpenCL platforms when built with -tags opencl, no-op otherwise.
	_ "github.com/gomlx/clvec/compute/opencl"
	"github.com/gomlx/clvec/internal/runner"
	"github.com/gomlx/clvec/session"
	"github.com/gomlx/clvec/vecfmt"
)

// Example run by this program.
var Example = runner.Example{
	Name:        "vector_add",
	KernelFile:  "./vadd_ocl.cl",
	KernelName:  "add",
	DefaultSize: 1000,
	Vectors: []runner.Vector{
		{Name: "v1", Direction: session.In},
		{Name: "v2", Direction: session.In},
		{Name: "v3", Direction: session.Out},
	},
	DefaultPrint: vecfmt.None,
	Timed:        true,
}

func main() {
	runner.Main(Example)
}
