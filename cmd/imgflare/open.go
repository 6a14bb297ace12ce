package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/lewtec/imgflare/internal/domain"
)

// browserURL turns a stored URL into one a browser can open
func browserURL(stored string) string {
	if strings.HasPrefix(stored, domain.LocalURLPrefix) {
		u := url.URL{Scheme: "file", Path: strings.TrimPrefix(stored, domain.LocalURLPrefix)}
		return u.String()
	}
	return stored
}

func newOpenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "open <original|cloudflare> <id>",
		Short:     "Open the original or the Cloudflare URL of an image in the browser",
		Args:      exactArgs(2),
		ValidArgs: []string{"original", "cloudflare"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id := args[0], args[1]
			if kind != "original" && kind != "cloudflare" {
				return usageErrorf("unknown URL type %q, expected original or cloudflare", kind)
			}
			out := cmd.OutOrStdout()

			rec, err := a.catalog().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rec == nil {
				fmt.Fprintf(out, "Image %s not found\n", id)
				return nil
			}

			target := rec.OriginalURL
			if kind == "cloudflare" {
				target = rec.CloudflareURL
			}
			if target == "" {
				fmt.Fprintf(out, "Image %s has no %s URL\n", id, kind)
				return nil
			}
			target = browserURL(target)

			if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
				fmt.Fprintln(out, target)
				return nil
			}
			browser.Stdout = cmd.ErrOrStderr()
			browser.Stderr = cmd.ErrOrStderr()
			if err := browser.OpenURL(target); err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
			fmt.Fprintf(out, "Opened %s\n", target)
			return nil
		},
	}
	cmd.Flags().Bool("print", false, "Print the URL instead of opening it")
	return cmd
}
