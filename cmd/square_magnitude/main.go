// square_magnitude squares, on a compute device, each element of a vector of random integers.
//
// Usage:
//
//	square_magnitude [flags] [size]
//
// The kernel is read from ./vector_ops.cl by default (see -kernel), and size defaults to 8.
// The vector is printed before and after the computation. Build with "-tags opencl" to run on the system OpenCL
// devices, otherwise the pure Go host platform is used.
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
	Name:         "square_magnitude",
	KernelFile:   "./vector_ops.cl",
	KernelName:   "square_magnitude",
	DefaultSize:  8,
	Vectors:      []runner.Vector{{Name: "v", Direction: session.InOut}},
	DefaultPrint: vecfmt.Truncated,
}

func main() {
	runner.Main(Example)
}
