package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/slotwise/internal/google"
	"github.com/teemow/slotwise/internal/logging"
)

func newAuthCmd(opts *rootOptions) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Calendar access",
		Long: `Authorize slotwise to read and write events in Google Calendar.

The OAuth client is read from SLOTWISE_GOOGLE_CLIENT_ID and
SLOTWISE_GOOGLE_CLIENT_SECRET. Open the printed URL, grant access and paste
the code. The token is stored per account in the user cache directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			account := opts.cfg.Google.Account
			if os.Getenv(google.EnvClientID) == "" {
				return fmt.Errorf("%s is not set", google.EnvClientID)
			}

			out := cmd.OutOrStdout()
			if google.HasTokenForAccount(account) {
				_, _ = fmt.Fprintf(out, "A token for account %q already exists and will be replaced.\n", account)
			}

			if code == "" {
				_, _ = fmt.Fprintf(out, "Visit this URL to authorize account %q:\n\n  %s\n\n", account, google.GetAuthURL(account))
				_, _ = fmt.Fprint(out, "Authorization code: ")
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if !scanner.Scan() {
					return fmt.Errorf("no authorization code entered")
				}
				code = strings.TrimSpace(scanner.Text())
			}

			opts.logger.Debug("exchanging authorization code",
				"account", account,
				"code", logging.SanitizeToken(code))
			if err := google.SaveTokenForAccount(cmd.Context(), account, code); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s account %q\n", success.Sprint("Authorized"), account)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code (prompted when empty)")
	return cmd
}
