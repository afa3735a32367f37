// clinfo lists the compute platforms and devices, and builds kernel files offline to check them.
//
// Usage:
//
//	clinfo platforms
//	clinfo build [--platform=host] [-D NAME=VALUE]... <file.cl>
//
// Build with "-tags opencl" to include the system OpenCL platforms.
package main

import (
	"flag"
	"os"

	_ "github.com/gomlx/clvec/compute/host"
	// Registers the system OpenCL platforms when built with -tags opencl, no-op otherwise.
	_ "github.com/gomlx/clvec/compute/opencl"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clinfo",
		Short: "Inspect compute platforms and kernels",
		Long: `clinfo lists the registered compute platforms with their devices, and builds
kernel source files to report their kernels or their build log.`,
		SilenceUsage: true,
	}
	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(goFlags)

	rootCmd.AddCommand(newPlatformsCmd())
	rootCmd.AddCommand(newBuildCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
