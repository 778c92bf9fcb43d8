package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "query [descriptor]",
		Short: "Build the index and run one JSON query descriptor",
		Long: `Runs a query descriptor such as '{"where":{"_locale":"en"},"only":["title"]}'
against a fresh build. Pass "-" or no argument to read the descriptor from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readDescriptorArg(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if flags.logLevel == "" {
				// keep stdout clean for the JSON result
				cfg.Logging.Level = "error"
			}
			module, err := moduleBuilder(cfg)
			if err != nil {
				return err
			}
			defer module.Close()

			if _, err := module.Build(cmd.Context()); err != nil {
				return err
			}
			result, err := module.Query(cmd.Context(), raw)
			if err != nil {
				return err
			}

			var out []byte
			if pretty {
				out, err = json.MarshalIndent(result, "", "  ")
			} else {
				out, err = json.Marshal(result)
			}
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func readDescriptorArg(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return []byte("{}"), nil
	}
	return data, nil
}
