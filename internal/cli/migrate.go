package cli

import (
	"fmt"

	"checkin-gate/internal/database"
	"checkin-gate/internal/database/migrations"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the guests and tokens tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !rollback {
				if _, err := a.open(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema aggiornato.")
				return nil
			}

			bunDB, err := database.Open(ctx, a.cfg.Database, a.log)
			if err != nil {
				return err
			}
			defer bunDB.Close()
			if err := migrations.NewRunner(bunDB, a.log).Rollback(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Ultima migrazione annullata.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&rollback, "rollback", false, "Roll back the last migration group")

	return cmd
}
