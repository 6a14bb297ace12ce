package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/imgflare/internal/domain"
	"github.com/lewtec/imgflare/internal/report"
	"github.com/lewtec/imgflare/internal/workflow"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [id]",
		Short: "Show one image, or every image still pending or failed",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			catalog := a.catalog()

			if len(args) == 1 {
				rec, err := catalog.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					fmt.Fprintf(out, "Image %s not found\n", args[0])
					return nil
				}
				return report.Details(out, rec)
			}

			records, err := catalog.Open(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No pending or failed images")
				return nil
			}
			return report.Table(out, records)
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the local catalog",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.catalog().Stats(cmd.Context())
			if err != nil {
				return err
			}
			return report.Stats(cmd.OutOrStdout(), stats)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded images, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if remote, _ := cmd.Flags().GetBool("remote"); remote {
				page, _ := cmd.Flags().GetInt("page")
				perPage, _ := cmd.Flags().GetInt("per-page")
				images, err := a.catalog().Remote(ctx, page, perPage)
				if err != nil {
					return err
				}
				if len(images) == 0 {
					fmt.Fprintln(out, "No images found in the Cloudflare account")
					return nil
				}
				return report.RemoteTable(out, images)
			}

			filter, err := listFilter(cmd)
			if err != nil {
				return err
			}
			records, err := a.catalog().List(ctx, filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No images found")
				return nil
			}
			return report.Table(out, records)
		},
	}
	cmd.Flags().StringP("status", "s", "", "Only images with this status")
	cmd.Flags().IntP("limit", "l", workflow.DefaultListLimit, "Maximum number of images")
	cmd.Flags().String("order", string(domain.OrderDesc), "Sort order by upload time: asc or desc")
	cmd.Flags().Bool("remote", false, "List the images stored in the Cloudflare account instead")
	cmd.Flags().Int("page", 1, "Page of the remote listing")
	cmd.Flags().Int("per-page", 50, "Images per page of the remote listing")
	return cmd
}

func parseStatusFlag(cmd *cobra.Command) (domain.Status, error) {
	raw, _ := cmd.Flags().GetString("status")
	if raw == "" {
		return "", nil
	}
	status, err := domain.ParseStatus(strings.ToLower(raw))
	if err != nil {
		return "", usageErrorf("%v", err)
	}
	return status, nil
}

func listFilter(cmd *cobra.Command) (domain.ImageFilter, error) {
	var filter domain.ImageFilter
	status, err := parseStatusFlag(cmd)
	if err != nil {
		return filter, err
	}
	filter.Status = status

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return filter, usageErrorf("--limit must be at least 1")
	}
	filter.Limit = limit

	order, _ := cmd.Flags().GetString("order")
	switch domain.SortOrder(strings.ToLower(order)) {
	case domain.OrderAsc:
		filter.Order = domain.OrderAsc
	case domain.OrderDesc:
		filter.Order = domain.OrderDesc
	default:
		return filter, usageErrorf("--order must be asc or desc, got %q", order)
	}
	filter.OrderBy = "uploaded_at"
	return filter, nil
}

func newSearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find images whose id, URLs or content type contain the query",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if limit < 1 {
				return usageErrorf("--limit must be at least 1")
			}
			records, err := a.catalog().Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No images matching %q\n", args[0])
				return nil
			}
			return report.Table(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntP("limit", "l", workflow.DefaultListLimit, "Maximum number of images")
	return cmd
}
