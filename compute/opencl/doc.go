// Package opencl implements a compute.Driver over the system OpenCL runtime (libOpenCL, through cgo).
//
// The driver is only compiled with the build tag "opencl", it requires the OpenCL headers and an ICD loader:
//
//	go build -tags opencl ./...
//
// Importing the package registers one platform per OpenCL platform found: the first one as "opencl", the others
// as "opencl:<index>". They have higher priority than the pure Go "host" platform, so compute.SelectDevice
// prefers them. Without the build tag importing the package has no effect.
//
// Transfers are always executed as blocking calls, since Go memory can't be retained by the runtime after the
// call returns. The returned events are already complete.
package opencl

// PlatformName of the first OpenCL platform.
const PlatformName = "opencl"

// Priority of the OpenCL platforms, higher than the "host" platform.
const Priority = 10
