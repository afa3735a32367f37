package compute

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is returned when a driver call fails with a negative Status.
type Error struct {
	// Op is the driver call that failed, e.g. "CreateKernel".
	Op string

	// Status returned by the driver.
	Status Status

	// Detail is an optional driver provided message.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s failed: %s (%d)", e.Op, e.Status, int32(e.Status))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// BuildError is returned when the compilation of a program fails. Log holds the full build log reported by the
// runtime's compiler.
type BuildError struct {
	// Name of the program source, usually the file name.
	Name string

	// Log is the build log as reported by the compiler.
	Log string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("program build failed:\n%s", e.Log)
	}
	return fmt.Sprintf("program build of %q failed:\n%s", e.Name, e.Log)
}

// Unwrap returns the equivalent *Error, so IsStatus(err, BuildProgramFailure) works for build errors.
func (e *BuildError) Unwrap() error {
	return &Error{Op: "BuildProgram", Status: BuildProgramFailure}
}

// toError converts a driver status to an error with a stack trace (see github.com/pkg/errors).
// It returns nil if the status is not an error.
func toError(op string, status Status) error {
	if !status.IsError() {
		return nil
	}
	return errors.WithStack(&Error{Op: op, Status: status})
}

// StatusOf returns the driver Status associated with err, Success if err is nil, or InvalidOperation if err
// doesn't carry a Status.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return InvalidOperation
}

// IsStatus returns whether err was caused by a driver call that returned status.
func IsStatus(err error, status Status) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Status == status
}
