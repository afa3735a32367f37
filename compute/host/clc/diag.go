package clc

import (
	"fmt"
	"strings"
)

// Pos is a position in the program source. Line and Col start at 1.
type Pos struct {
	Line, Col int
}

// Diagnostic is one compilation error.
type Diagnostic struct {
	File string
	Pos  Pos
	Msg  string
}

// String formats the diagnostic as "<file>:<line>:<col>: error: <message>".
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: error: %s", d.File, d.Pos.Line, d.Pos.Col, d.Msg)
}

// Diagnostics is the list of errors of a failed compilation. Its Error method returns the build log.
type Diagnostics []Diagnostic

// Error implements the error interface: one line per diagnostic and a summary line.
func (ds Diagnostics) Error() string {
	var sb strings.Builder
	for _, d := range ds {
		sb.WriteString(d.String())
		sb.WriteByte('\n')
	}
	if len(ds) == 1 {
		sb.WriteString("1 error generated.\n")
	} else {
		fmt.Fprintf(&sb, "%d errors generated.\n", len(ds))
	}
	return sb.String()
}

// syntaxError aborts the parsing, it is recovered at the top level.
type syntaxError struct {
	diag Diagnostic
}
