package session

import (
	"fmt"
	"io/fs"

	"github.com/gomlx/clvec/compute"
	"github.com/pkg/errors"
)

// Kind classifies the errors of a session.
type Kind int

const (
	// KindAPI is a failed runtime call: a negative status from a resource creation, argument binding, transfer
	// or launch.
	KindAPI Kind = iota

	// KindEnvironment means no compatible platform or device was found.
	KindEnvironment

	// KindIO means the kernel source file could not be read.
	KindIO

	// KindCompile means the kernel source failed to build. The build log is available with BuildLog.
	KindCompile

	// KindUsage is an invalid Plan, or a Session used out of order.
	KindUsage
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindEnvironment:
		return "environment"
	case KindIO:
		return "io"
	case KindCompile:
		return "compile"
	case KindUsage:
		return "usage"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error of a session stage.
type Error struct {
	Kind Kind

	// Op is the session stage that failed, e.g. "SelectDevice" or "Build".
	Op string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a session error. Errors not created by a session are KindAPI.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindAPI
}

// BuildLog returns the build log of a KindCompile error, or "" for other errors.
func BuildLog(err error) string {
	var buildErr *compute.BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Log
	}
	return ""
}

// newError wraps err with the stage and its kind, and a stack trace.
func newError(kind Kind, op string, err error) error {
	return errors.WithStack(&Error{Kind: kind, Op: op, Err: err})
}

// classify returns the kind of the errors of the device selection and the build.
func classify(err error) Kind {
	var buildErr *compute.BuildError
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &buildErr):
		return KindCompile
	case errors.As(err, &pathErr):
		return KindIO
	case compute.IsStatus(err, compute.DeviceNotFound), compute.IsStatus(err, compute.PlatformNotFoundKHR):
		return KindEnvironment
	}
	return KindAPI
}
