// Package runner is the top-level driver shared by the example programs: it parses the command line, creates the
// input vectors, runs the compute session, prints the vectors and reports failures.
//
// Every failure is returned by the session after it released what it had acquired, so the process always exits
// with the runtime resources freed.
package runner

import (
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gomlx/clvec/compute"
	"github.com/gomlx/clvec/internal/report"
	"github.com/gomlx/clvec/session"
	"github.com/gomlx/clvec/vecfmt"
	"github.com/janpfeifer/gonb/common"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Exit codes of the example programs.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// MaxValue bounds the random values of the input vectors: they are in [0, MaxValue).
const MaxValue = 100

// Vector is one int32 vector of an example, bound to one kernel buffer argument.
type Vector struct {
	Name      string
	Direction session.Direction
}

// Example describes one example program.
type Example struct {
	// Name of the program, used in usage and error messages.
	Name string

	// KernelFile is the default path of the kernel source, relative to the working directory.
	KernelFile string

	// KernelName is the kernel function to run.
	KernelName string

	// DefaultSize is the vector length used if no positional argument is given.
	DefaultSize int

	// Vectors bound to the kernel after the size argument, in order.
	Vectors []Vector

	// DefaultPrint is the default of the -print flag.
	DefaultPrint vecfmt.Mode

	// Timed examples print the time taken by the whole run, in microseconds.
	Timed bool
}

// Main runs the example with the process command line and exits with its exit code.
func Main(example Example) {
	os.Exit(Run(example, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	kernelPath      string
	buildOptions    string
	platform        string
	devices         string
	print           vecfmt.Mode
	seed            uint64
	skipOutputWrite bool
	reportPath      string
	maxWorkers      int64
	size            int
}

func (e *Example) parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{print: e.DefaultPrint}
	fs := flag.NewFlagSet(e.Name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	klog.InitFlags(fs)
	fs.StringVar(&opts.kernelPath, "kernel", e.KernelFile, "Path of the kernel source file. \"~\" is expanded to the home directory.")
	fs.StringVar(&opts.buildOptions, "build_options", "", "Options passed to the kernel compiler, e.g. \"-DSCALE=2\".")
	fs.StringVar(&opts.platform, "platform", "", "Platform to use, e.g. \"host\". If empty all registered platforms are searched.")
	fs.StringVar(&opts.devices, "device", "", "Comma-separated device types in order of preference, e.g. \"gpu,cpu\". "+
		"Defaults to GPU, then CPU.")
	fs.Var(&opts.print, "print", "Printing of the vectors: none, truncated (first and last 5 values of long vectors) or full.")
	fs.Uint64Var(&opts.seed, "seed", 1, "Seed of the random input values.")
	fs.BoolVar(&opts.skipOutputWrite, "skip_output_write", false,
		"Don't write the output vectors to the device before the launch.")
	fs.StringVar(&opts.reportPath, "report", "", "If set, write a run report to this file: .json, .pb or prototext otherwise.")
	fs.Int64Var(&opts.maxWorkers, "max_workers", 0, "Maximum number of goroutines used by the host platform. 0 uses all CPUs.")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] [size]\n\nRuns kernel %q over vectors of the given size (default %d).\n\nFlags:\n",
			e.Name, e.KernelName, e.DefaultSize)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.size = e.DefaultSize
	switch fs.NArg() {
	case 0:
	case 1:
		n, err := strconv.Atoi(fs.Arg(0))
		if err != nil || n < 0 {
			fs.Usage()
			return nil, errors.Errorf("invalid size %q, it must be a non-negative integer", fs.Arg(0))
		}
		opts.size = n
	default:
		fs.Usage()
		return nil, errors.Errorf("expected at most one positional argument (size), got %q", fs.Args())
	}
	return opts, nil
}

func (opts *options) preference() ([]compute.DeviceType, error) {
	if opts.devices == "" {
		return nil, nil
	}
	var preference []compute.DeviceType
	for _, name := range strings.Split(opts.devices, ",") {
		deviceType, ok := compute.ParseDeviceType(strings.TrimSpace(name))
		if !ok {
			return nil, errors.Errorf("unknown device type %q in -device=%q", name, opts.devices)
		}
		preference = append(preference, deviceType)
	}
	return preference, nil
}

// Run runs the example with the given command line arguments (without the program name), and returns the exit
// code.
func Run(example Example, args []string, stdout, stderr io.Writer) int {
	start := time.Now()
	opts, err := example.parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintf(stderr, "%s: %v\n", example.Name, err)
		return ExitFailure
	}
	preference, err := opts.preference()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", example.Name, err)
		return ExitFailure
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed))
	plan := session.Plan{
		KernelPath:      common.ReplaceTildeInDir(opts.kernelPath),
		KernelName:      example.KernelName,
		BuildOptions:    opts.buildOptions,
		Platform:        opts.platform,
		Preference:      preference,
		Size:            opts.size,
		SkipOutputWrite: opts.skipOutputWrite,
	}
	if opts.maxWorkers > 0 {
		plan.ContextOptions = compute.NamedValuesMap{"max_workers": opts.maxWorkers}
	}
	data := make([][]int32, len(example.Vectors))
	for ii, v := range example.Vectors {
		data[ii] = make([]int32, opts.size)
		if v.Direction != session.Out {
			for jj := range data[ii] {
				data[ii][jj] = rng.Int32N(MaxValue)
			}
		}
		plan.Buffers = append(plan.Buffers, session.BufferSpec{Name: v.Name, Direction: v.Direction, Data: data[ii]})
	}
	printVectors := func(wantInputs bool) {
		for ii, v := range example.Vectors {
			isInput := v.Direction != session.Out
			isOutput := v.Direction != session.In
			if (wantInputs && isInput) || (!wantInputs && isOutput) {
				if err := vecfmt.Fprint(stdout, opts.print, data[ii]); err != nil {
					klog.Errorf("%s: %v", example.Name, err)
				}
			}
		}
	}
	printVectors(true)

	run := &report.Run{Example: example.Name, Size: opts.size}
	err = runSession(plan, run, func() {
		// The clock stops after the results are printed, before the resources are released.
		printVectors(false)
		run.Elapsed = time.Since(start)
		if example.Timed {
			fmt.Fprintf(stdout, "Time taken by function: %d microseconds\n", run.Elapsed.Microseconds())
		}
	})
	if err != nil {
		if run.Elapsed == 0 {
			run.Elapsed = time.Since(start)
		}
		run.Err = err
		printDiagnostic(example.Name, err, stdout, stderr)
	}

	if opts.reportPath != "" {
		if reportErr := run.Write(common.ReplaceTildeInDir(opts.reportPath)); reportErr != nil {
			fmt.Fprintf(stderr, "%s: %v\n", example.Name, reportErr)
			return ExitFailure
		}
	}
	if err != nil {
		return ExitFailure
	}
	return ExitSuccess
}

// runSession opens and runs the session, recording the selected device in run, calls completed if the run
// succeeded, and closes the session.
func runSession(plan session.Plan, run *report.Run, completed func()) error {
	s, err := session.Open(plan)
	if err != nil {
		return err
	}
	run.Platform = s.Platform().Name()
	run.Device = s.Device().Name()
	err = s.Run()
	if err == nil {
		completed()
	}
	if closeErr := s.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	return err
}

// printDiagnostic prints the build log of compilation errors to stdout, and a short message to stderr.
func printDiagnostic(name string, err error, stdout, stderr io.Writer) {
	klog.V(1).Infof("%s: %+v", name, err)
	kind := session.KindOf(err)
	if kind == session.KindCompile {
		fmt.Fprintln(stdout, session.BuildLog(err))
		fmt.Fprintf(stderr, "%s: %s error: failed to build the kernel (status %d)\n",
			name, kind, int32(compute.StatusOf(err)))
		return
	}
	fmt.Fprintf(stderr, "%s: %s error: %v\n", name, kind, err)
}
