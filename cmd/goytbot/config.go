package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate configuration and optionally print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if !dump {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
				return err
			}

			redacted := *cfg
			if redacted.Telegram.Token != "" {
				redacted.Telegram.Token = "<redacted>"
			}
			if redacted.Store.DSN != "" {
				redacted.Store.DSN = "<redacted>"
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(&redacted)
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "print the effective configuration as YAML")
	return cmd
}
