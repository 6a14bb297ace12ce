package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lewtec/imgflare/internal/report"
	"github.com/lewtec/imgflare/internal/workflow"
)

func newVariantsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variants <id>",
		Short: "Show the delivery URLs of every variant of an image",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			out := cmd.OutOrStdout()
			copyOnly, _ := cmd.Flags().GetBool("copy")
			refresh, _ := cmd.Flags().GetBool("refresh")

			catalog := a.catalog()
			var res *workflow.VariantsResult
			var err error
			if refresh {
				res, err = catalog.RefreshVariants(cmd.Context(), id)
			} else {
				res, err = catalog.Variants(cmd.Context(), id)
			}
			if err != nil {
				return err
			}

			switch res.State {
			case workflow.VariantsNotFound:
				fmt.Fprintf(out, "Image %s not found\n", id)
				return nil
			case workflow.VariantsNone:
				if copyOnly {
					fmt.Fprintln(out, res.Default)
					return nil
				}
				fmt.Fprintf(out, "No variants recorded for %s\n", id)
				fmt.Fprintf(out, "Default URL: %s\n", res.Default)
				return nil
			}

			if copyOnly {
				urls := make([]string, 0, len(res.Variants))
				for _, v := range res.Variants {
					urls = append(urls, v.URL)
				}
				return report.Lines(out, urls)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VARIANT\tURL")
			for _, v := range res.Variants {
				fmt.Fprintf(tw, "%s\t%s\n", v.Name, v.URL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("copy", false, "Print only the URLs, one per line")
	cmd.Flags().Bool("refresh", false, "Fetch the current variants from Cloudflare first")
	return cmd
}
