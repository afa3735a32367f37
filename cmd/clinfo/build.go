package main

import (
	"fmt"
	"strings"

	"github.com/gomlx/clvec/compute"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

type buildFlags struct {
	platform string
	device   string
	defines  []string
	options  string
}

func newBuildCmd() *cobra.Command {
	flags := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build <file.cl>",
		Short: "Build a kernel source file and list its kernels",
		Long: `Build a kernel source file on the selected device. On success it lists the kernels
with their signatures, otherwise it prints the build log and exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return build(cmd, args[0], flags)
		},
	}
	cmd.Flags().StringVar(&flags.platform, "platform", "", "Platform to use. If empty all platforms are searched")
	cmd.Flags().StringVar(&flags.device, "device", "", "Device type to use: cpu, gpu, accelerator or default")
	cmd.Flags().StringArrayVarP(&flags.defines, "define", "D", nil, "Define a macro, NAME or NAME=VALUE")
	cmd.Flags().StringVar(&flags.options, "options", "", "Other build options passed to the compiler")
	return cmd
}

func (f *buildFlags) buildOptions() string {
	parts := make([]string, 0, len(f.defines)+1)
	for _, define := range f.defines {
		parts = append(parts, "-D"+define)
	}
	if f.options != "" {
		parts = append(parts, f.options)
	}
	return strings.Join(parts, " ")
}

func build(cmd *cobra.Command, path string, flags *buildFlags) error {
	var preference []compute.DeviceType
	if flags.device != "" {
		deviceType, ok := compute.ParseDeviceType(flags.device)
		if !ok {
			return errors.Errorf("unknown device type %q", flags.device)
		}
		preference = append(preference, deviceType)
	}
	device, err := compute.SelectDevice(flags.platform, preference...)
	if err != nil {
		return err
	}
	ctx, err := device.Platform().NewContext(device, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := ctx.Destroy(); err != nil {
			klog.Errorf("clinfo: %v", err)
		}
	}()

	out := cmd.OutOrStdout()
	program, err := ctx.Compile().WithSourceFile(path).WithOptions(flags.buildOptions()).Done()
	if err != nil {
		var buildErr *compute.BuildError
		if errors.As(err, &buildErr) {
			fmt.Fprintln(out, buildErr.Log)
			return errors.Errorf("build of %q on %s failed", path, device)
		}
		return err
	}
	defer func() {
		if err := program.Destroy(); err != nil {
			klog.Errorf("clinfo: %v", err)
		}
	}()

	fmt.Fprintf(out, "Built %q on %s\n", program.Name(), device)
	if log := program.BuildLog(); log != "" {
		fmt.Fprintf(out, "Build log:\n%s\n", log)
	}
	for _, name := range program.KernelNames() {
		kernel, err := program.Kernel(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  __kernel void %s\n", kernel)
		if err := kernel.Destroy(); err != nil {
			return err
		}
	}
	return nil
}
