package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lewtec/imgflare/internal/config"
)

// prompter reads answers from the command input. Secrets are read without
// echo when the input is a terminal.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, out: cmd.OutOrStdout(), reader: bufio.NewReader(in)}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (p *prompter) askSecret(question string) (string, error) {
	if f, ok := p.in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(p.out, question)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	return p.ask(question)
}

func newSetupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Store the Cloudflare credentials used by every other command",
		Long: strings.TrimSpace(`
Store the API token, account id and optional delivery URL prefix in the local
database. Without --api-token and --account-id the values are asked for.
    `),
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			token, _ := cmd.Flags().GetString("api-token")
			accountID, _ := cmd.Flags().GetString("account-id")
			deliveryURL, _ := cmd.Flags().GetString("delivery-url")

			if token == "" || accountID == "" {
				p := newPrompter(cmd)
				var err error
				if token == "" {
					if token, err = p.askSecret("Cloudflare API token: "); err != nil {
						return fmt.Errorf("while reading API token: %w", err)
					}
				}
				if err := config.ValidateAPIToken(token); err != nil {
					return err
				}
				if accountID == "" {
					if accountID, err = p.ask("Cloudflare Account ID: "); err != nil {
						return fmt.Errorf("while reading account id: %w", err)
					}
				}
				if err := config.ValidateAccountID(accountID); err != nil {
					return err
				}
				if !cmd.Flags().Changed("delivery-url") {
					if deliveryURL, err = p.ask("Delivery URL prefix (optional): "); err != nil {
						return fmt.Errorf("while reading delivery URL: %w", err)
					}
				}
			}

			if err := config.ValidateAPIToken(token); err != nil {
				return err
			}
			if err := config.ValidateAccountID(accountID); err != nil {
				return err
			}
			if err := config.ValidateDeliveryURL(deliveryURL); err != nil {
				return err
			}

			if err := a.settings.Set(ctx, config.KeyAPIToken, token); err != nil {
				return &storeError{err: fmt.Errorf("while saving configuration: %w", err)}
			}
			if err := a.settings.Set(ctx, config.KeyAccountID, accountID); err != nil {
				return &storeError{err: fmt.Errorf("while saving configuration: %w", err)}
			}
			// an explicit empty --delivery-url clears the stored prefix
			if deliveryURL != "" || cmd.Flags().Changed("delivery-url") {
				if err := a.settings.Set(ctx, config.KeyDeliveryURL, deliveryURL); err != nil {
					return &storeError{err: fmt.Errorf("while saving configuration: %w", err)}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved in %s\n", a.dataDir)
			return nil
		},
	}
	cmd.Flags().String("api-token", "", "Cloudflare API token")
	cmd.Flags().String("account-id", "", "Cloudflare account id (32 hex characters)")
	cmd.Flags().String("delivery-url", "", `Custom delivery URL prefix, --delivery-url "" clears it`)
	return cmd
}
