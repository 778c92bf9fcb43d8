package main

import (
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build, watch and serve the content API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			cfg.Watcher.Enabled = watch

			module, err := moduleBuilder(cfg)
			if err != nil {
				return err
			}
			defer module.Close()

			cmd.Printf("serving %s on %s\n", cfg.HTTP.BasePath, cfg.HTTP.Address)
			return module.Serve(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reindex files as they change")
	return cmd
}
