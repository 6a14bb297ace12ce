package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/imgflare/internal/domain"
	"github.com/lewtec/imgflare/internal/report"
	"github.com/lewtec/imgflare/internal/workflow"
)

// promptConfirmer shows the record and asks on the command input; only y or
// yes confirms
type promptConfirmer struct {
	p *prompter
}

func (c promptConfirmer) Confirm(rec *domain.ImageRecord) (bool, error) {
	if err := report.Details(c.p.out, rec); err != nil {
		return false, err
	}
	answer, err := c.p.ask(fmt.Sprintf("Delete image %s from Cloudflare? [y/N]: ", rec.ID))
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an image from Cloudflare and from the local catalog",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			keep, _ := cmd.Flags().GetBool("keep-record")
			out := cmd.OutOrStdout()

			deleter := workflow.NewDeleter(a.images, a.settings, a.remote, promptConfirmer{p: newPrompter(cmd)}, a.log)
			res, err := deleter.Delete(cmd.Context(), args[0], workflow.DeleteOptions{Force: force, KeepRecord: keep})
			if err != nil {
				return err
			}
			switch res.Outcome {
			case workflow.OutcomeNotFound:
				fmt.Fprintf(out, "Image %s not found\n", args[0])
			case workflow.OutcomeCancelled:
				fmt.Fprintln(out, "Deletion cancelled")
			case workflow.OutcomeSoftDeleted:
				fmt.Fprintf(out, "Image %s deleted from Cloudflare, local record marked as deleted\n", args[0])
			default:
				fmt.Fprintf(out, "Image %s deleted\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")
	cmd.Flags().Bool("keep-record", false, "Keep the local record with status deleted")
	return cmd
}
