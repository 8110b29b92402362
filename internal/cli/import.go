package cli

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"checkin-gate/internal/checkin/qr"
	"checkin-gate/internal/provision"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		csvPath   string
		replace   bool
		delimiter string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the guest list from a CSV file",
		Long: `Import guests from a CSV file with a header row.

The columns id, nome and Sala must be present with exactly these names.
Rows with an empty field are skipped and ids already in the store are kept.
With --replace every guest and token is deleted first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sep rune
			if delimiter != "" {
				if utf8.RuneCountInString(delimiter) != 1 {
					return errors.New("--delimiter must be a single character")
				}
				sep, _ = utf8.DecodeRuneInString(delimiter)
			}

			f, err := os.Open(csvPath)
			if err != nil {
				return err
			}
			defer f.Close()

			gateDB, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			p := provision.NewProvisioner(gateDB, a.log, qr.NewGenerator(a.cfg.Gate.QRBaseURL))
			sum, err := p.ImportGuests(cmd.Context(), f, provision.ImportOptions{Replace: replace, Delimiter: sep})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Import completato.")
			fmt.Fprintf(out, "Righe lette: %d, inserite: %d, scartate: %d\n", sum.Rows, sum.Inserted, sum.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "ospiti.csv", "Guest list CSV path")
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete all guests and tokens before importing")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "Field separator (default ,)")

	return cmd
}
