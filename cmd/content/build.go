package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newBuildCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Index every source and print the build report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, err := flags.openModule()
			if err != nil {
				return err
			}
			defer module.Close()

			report, err := module.Build(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("indexed %d, reused %d, ignored %d, skipped %d, removed %d, failed %d (version %d, %s)\n",
				report.Indexed, report.Reused, report.Ignored, report.Skipped, report.Removed,
				len(report.Failed), report.Version, report.Duration.Round(time.Millisecond))
			for _, failure := range report.Failed {
				cmd.Printf("  failed: %v\n", failure)
			}
			return nil
		},
	}
}
