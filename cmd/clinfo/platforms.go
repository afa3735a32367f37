package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/gomlx/clvec/compute"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPlatformsCmd() *cobra.Command {
	var showExtensions bool
	cmd := &cobra.Command{
		Use:   "platforms",
		Short: "List the compute platforms and their devices",
		Long:  `List the registered platforms, in order of priority, with all their devices.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPlatforms(cmd, showExtensions)
		},
	}
	cmd.Flags().BoolVar(&showExtensions, "extensions", false, "Also list the extensions of each device")
	return cmd
}

func listPlatforms(cmd *cobra.Command, showExtensions bool) error {
	platforms := compute.Platforms()
	if len(platforms) == 0 {
		return errors.New("no compute platforms registered")
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, p := range platforms {
		info := p.Info()
		fmt.Fprintf(w, "Platform %q (priority %d)\n", p.Name(), p.Priority())
		fmt.Fprintf(w, "  Name:\t%s\n", info.Name)
		fmt.Fprintf(w, "  Vendor:\t%s\n", info.Vendor)
		fmt.Fprintf(w, "  Version:\t%s\n", info.Version)
		devices, err := p.Devices(compute.DeviceTypeAll)
		if err != nil {
			fmt.Fprintf(w, "  Devices:\tnone (%v)\n", err)
			continue
		}
		for ii, d := range devices {
			dInfo := d.Info()
			fmt.Fprintf(w, "  Device #%d:\t%s\n", ii, dInfo.Name)
			fmt.Fprintf(w, "    Type:\t%s\n", dInfo.Type)
			fmt.Fprintf(w, "    Vendor:\t%s\n", dInfo.Vendor)
			fmt.Fprintf(w, "    Version:\t%s\n", dInfo.Version)
			fmt.Fprintf(w, "    Compute units:\t%d\n", dInfo.MaxComputeUnits)
			fmt.Fprintf(w, "    Max work-group size:\t%d\n", dInfo.MaxWorkGroupSize)
			if showExtensions {
				fmt.Fprintf(w, "    Extensions:\t%s\n", strings.Join(dInfo.Extensions, " "))
			}
		}
	}
	return w.Flush()
}
