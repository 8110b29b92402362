package cli

import (
	"fmt"

	"checkin-gate/internal/checkin/qr"
	"checkin-gate/internal/provision"

	"github.com/spf13/cobra"
)

func newTokensCmd(a *app) *cobra.Command {
	var opts provision.TokenOptions

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Issue QR tokens for the imported guests",
		Long: `Issue random 24-character hex tokens for every guest.

Running it again adds more tokens, which is how backup codes are issued;
use --only-missing to cover only guests imported since the last run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			gateDB, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			p := provision.NewProvisioner(gateDB, a.log, qr.NewGenerator(a.cfg.Gate.QRBaseURL))
			tokens, err := p.GenerateTokens(cmd.Context(), opts)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Creati %d token per gli ospiti.\n", len(tokens))
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.PerGuest, "per-guest", 1, "Tokens to issue per guest")
	cmd.Flags().BoolVar(&opts.OnlyMissing, "only-missing", false, "Skip guests that already have a token")
	cmd.Flags().StringVar(&opts.QRDir, "qr-dir", "", "Also write one QR PNG per token into this directory")

	return cmd
}
