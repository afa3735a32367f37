// Package vecfmt formats the vector dumps printed by the example programs.
//
// Long vectors can be truncated to their head and tail, and printing can be turned off entirely, so that timed
// runs are not dominated by the output.
package vecfmt

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gomlx/clvec/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Mode of printing vectors.
type Mode int

const (
	// None prints nothing.
	None Mode = iota

	// Truncated prints only the first and last EdgeItems values of vectors longer than MaxFullLen.
	Truncated

	// Full prints every value. Any Mode value other than None or Truncated behaves as Full.
	Full
)

const (
	// MaxFullLen is the longest vector printed in full in Truncated mode.
	MaxFullLen = 15

	// EdgeItems is the number of values printed at each end of a truncated vector.
	EdgeItems = 5

	// Ellipsis separates the head and the tail of a truncated vector.
	Ellipsis = " ..... "

	// Separator is printed after each vector.
	Separator = "\n----------------------------\n"
)

// String implements fmt.Stringer and flag.Value.
func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Truncated:
		return "truncated"
	}
	return "full"
}

// Set implements flag.Value. It accepts the mode names or their numeric values.
func (m *Mode) Set(value string) error {
	switch strings.ToLower(value) {
	case "none", "off":
		*m = None
		return nil
	case "truncated", "short":
		*m = Truncated
		return nil
	case "full", "all":
		*m = Full
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return errors.Errorf("invalid print mode %q, valid values are none, truncated, full or an integer", value)
	}
	*m = Mode(n)
	return nil
}

// Fprint writes the values of v to w according to mode: each value followed by a space, then Separator.
func Fprint[T dtypes.Supported](w io.Writer, mode Mode, v []T) error {
	if mode == None {
		return nil
	}
	var buf bytes.Buffer
	if mode == Truncated && len(v) > MaxFullLen {
		writeValues(&buf, v[:EdgeItems])
		buf.WriteString(Ellipsis)
		writeValues(&buf, v[len(v)-EdgeItems:])
	} else {
		writeValues(&buf, v)
	}
	buf.WriteString(Separator)
	_, err := w.Write(buf.Bytes())
	return errors.Wrap(err, "failed to print vector")
}

// Sprint returns what Fprint would write.
func Sprint[T dtypes.Supported](mode Mode, v []T) string {
	var sb strings.Builder
	_ = Fprint(&sb, mode, v)
	return sb.String()
}

func writeValues[T dtypes.Supported](buf *bytes.Buffer, v []T) {
	for _, value := range v {
		if h, ok := any(value).(float16.Float16); ok {
			fmt.Fprintf(buf, "%v ", h.Float32())
			continue
		}
		fmt.Fprintf(buf, "%v ", value)
	}
}
