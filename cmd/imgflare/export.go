package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/imgflare/internal/report"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "export <json|csv|yaml|html>",
		Short:     "Export the local catalog",
		Args:      exactArgs(1),
		ValidArgs: report.Formats,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := strings.ToLower(args[0])
			known := false
			for _, f := range report.Formats {
				known = known || f == format
			}
			if !known {
				return &usageError{err: fmt.Errorf("%w: %q", report.ErrUnknownFormat, args[0])}
			}
			status, err := parseStatusFlag(cmd)
			if err != nil {
				return err
			}
			records, err := a.catalog().All(cmd.Context(), status)
			if err != nil {
				return err
			}

			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return report.Export(cmd.OutOrStdout(), format, records)
			}
			f, err := os.Create(file)
			if err != nil {
				return fmt.Errorf("while creating %s: %w", file, err)
			}
			w := bufio.NewWriter(f)
			if err := report.Export(w, format, records); err != nil {
				f.Close()
				return fmt.Errorf("while writing %s: %w", file, err)
			}
			if err := w.Flush(); err != nil {
				f.Close()
				return fmt.Errorf("while writing %s: %w", file, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("while writing %s: %w", file, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d images to %s\n", len(records), file)
			return nil
		},
	}
	cmd.Flags().StringP("file", "o", "", "Write to this file instead of stdout")
	cmd.Flags().StringP("status", "s", "", "Only images with this status")
	return cmd
}
