// Package report writes a machine-readable summary of a run of an example program.
//
// The report is a google.protobuf.Struct, so it can be read back by any protobuf tool without a custom schema.
// The format is chosen by the file extension: ".json" for protojson, ".pb" for the binary wire format and
// anything else for prototext.
package report

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gomlx/clvec/session"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Run summarizes one run of an example.
type Run struct {
	Example  string
	Platform string
	Device   string
	Size     int
	Elapsed  time.Duration

	// Err is the error that ended the run, nil if it succeeded.
	Err error
}

// Struct converts the run to a google.protobuf.Struct.
//
// Fields: example, platform, device, size, elapsed (a google.protobuf.Duration in its JSON form, e.g. "0.001s"),
// elapsed_us, status ("ok" or "failed") and, for failed runs, error_kind and error.
func (r *Run) Struct() (*structpb.Struct, error) {
	elapsed, err := formatDuration(r.Elapsed)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"example":    r.Example,
		"platform":   r.Platform,
		"device":     r.Device,
		"size":       r.Size,
		"elapsed":    elapsed,
		"elapsed_us": r.Elapsed.Microseconds(),
		"status":     "ok",
	}
	if r.Err != nil {
		fields["status"] = "failed"
		fields["error_kind"] = session.KindOf(r.Err).String()
		fields["error"] = r.Err.Error()
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert run report")
	}
	return s, nil
}

// formatDuration returns the canonical JSON form of a google.protobuf.Duration.
func formatDuration(d time.Duration) (string, error) {
	quoted, err := protojson.Marshal(durationpb.New(d))
	if err != nil {
		return "", errors.Wrap(err, "failed to format duration")
	}
	s, err := strconv.Unquote(string(quoted))
	if err != nil {
		return "", errors.Wrapf(err, "unexpected duration format %s", quoted)
	}
	return s, nil
}

// Marshal serializes the run in the format given by the file extension of path.
func (r *Run) Marshal(path string) ([]byte, error) {
	s, err := r.Struct()
	if err != nil {
		return nil, err
	}
	var contents []byte
	switch filepath.Ext(path) {
	case ".json":
		contents, err = protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	case ".pb":
		contents, err = proto.MarshalOptions{Deterministic: true}.Marshal(s)
	default:
		contents, err = prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize run report for %q", path)
	}
	return contents, nil
}

// Write serializes the run and writes it to path.
func (r *Run) Write(path string) error {
	contents, err := r.Marshal(path)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, contents, 0o644), "failed to write run report to %q", path)
}

// Read parses a report written by Write.
func Read(path string) (*structpb.Struct, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read run report %q", path)
	}
	s := &structpb.Struct{}
	switch filepath.Ext(path) {
	case ".json":
		err = protojson.Unmarshal(contents, s)
	case ".pb":
		err = proto.Unmarshal(contents, s)
	default:
		err = prototext.Unmarshal(contents, s)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse run report %q", path)
	}
	return s, nil
}
