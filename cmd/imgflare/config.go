package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lewtec/imgflare/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and where each value comes from",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := a.settings.Resolve(cmd.Context())
			if err != nil {
				return &storeError{err: fmt.Errorf("while reading configuration: %w", err)}
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE\tDESCRIPTION")
			for _, r := range resolved {
				value := r.Value
				switch {
				case r.Source == config.SourceNone:
					value = "-"
				case r.Key == config.KeyAPIToken:
					value = config.Mask(value)
				}
				source := string(r.Source)
				if r.Source == config.SourceEnv {
					source = config.EnvName(r.Key)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Key, value, source, r.Description)
			}
			fmt.Fprintf(tw, "data_dir\t%s\t-\tDirectory holding the local database\n", a.dataDir)
			return tw.Flush()
		},
	}
}
