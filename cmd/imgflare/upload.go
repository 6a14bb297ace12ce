package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/imgflare/internal/config"
	"github.com/lewtec/imgflare/internal/report"
	"github.com/lewtec/imgflare/internal/workflow"
)

func newUploadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <url>",
		Short: "Upload an image from a URL",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.uploader().UploadURL(cmd.Context(), args[0], uploadOptions(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Image uploaded successfully")
			return report.Details(cmd.OutOrStdout(), rec)
		},
	}
	addUploadFlags(cmd.Flags(), true)
	return cmd
}

func newUploadLocalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload-local <path>",
		Short: "Upload an image from a local file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.uploader().UploadLocal(cmd.Context(), args[0], uploadOptions(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Image uploaded successfully")
			return report.Details(cmd.OutOrStdout(), rec)
		},
	}
	addUploadFlags(cmd.Flags(), false)
	return cmd
}

// batchError reports a batch run where some items failed
type batchError struct {
	failed, total int
}

func (e *batchError) Error() string {
	return fmt.Sprintf("%d of %d uploads failed", e.failed, e.total)
}

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Upload every URL listed in a JSON or YAML file",
		Long: strings.TrimSpace(`
Upload every URL listed in a JSON or YAML file. The file holds a list of
objects, each with a "url" property:

  [{"url": "https://example.com/a.png"}, {"url": "https://example.com/b.jpg"}]

Items are uploaded concurrently; a failing item does not stop the others.
    `),
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")
			if concurrency < 1 {
				return usageErrorf("--concurrency must be at least 1")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return &workflow.ValidationError{Input: args[0], Reason: err.Error()}
			}
			items, err := config.ParseBatch(args[0], data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			res := a.uploader().Batch(cmd.Context(), items, workflow.BatchOptions{
				Concurrency: concurrency,
				Upload:      uploadOptions(cmd),
			})
			for _, item := range res.Results {
				if item.Err != nil {
					fmt.Fprintf(out, "FAIL  %s: %v\n", item.URL, item.Err)
					continue
				}
				fmt.Fprintf(out, "OK    %s -> %s\n", item.URL, item.Record.ID)
			}
			fmt.Fprintf(out, "\n%d uploaded, %d failed\n", res.Succeeded(), res.Failed())
			if res.Failed() > 0 {
				return &batchError{failed: res.Failed(), total: len(res.Results)}
			}
			return nil
		},
	}
	addUploadFlags(cmd.Flags(), true)
	cmd.Flags().IntP("concurrency", "c", workflow.DefaultConcurrency, "Number of uploads running at once")
	return cmd
}
