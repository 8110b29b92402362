package cli

import (
	"context"
	"os"

	"checkin-gate/internal/checkin/db"
	"checkin-gate/internal/config"
	"checkin-gate/internal/database"
	"checkin-gate/internal/database/migrations"
	"checkin-gate/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	bunDB  *bun.DB
	driver string
	dsn    string
}

// open connects to the store and brings the schema up to date.
func (a *app) open(ctx context.Context) (*db.DB, error) {
	if a.bunDB == nil {
		bunDB, err := database.Open(ctx, a.cfg.Database, a.log)
		if err != nil {
			return nil, err
		}
		if err := migrations.NewRunner(bunDB, a.log).RunMigrations(ctx); err != nil {
			bunDB.Close()
			return nil, err
		}
		a.bunDB = bunDB
	}
	return &db.DB{Bun: a.bunDB}, nil
}

func (a *app) close() {
	if a.bunDB != nil {
		a.bunDB.Close()
		a.bunDB = nil
	}
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "gatectl",
		Short: "Provisioning tool for the check-in gate",
		Long: `gatectl prepares and maintains the check-in store.

It imports the guest list, issues QR tokens, resets the event and can
follow the admission stream when Kafka is enabled.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			a.cfg = config.Load()
			if a.driver != "" {
				a.cfg.Database.Driver = a.driver
			}
			if a.dsn != "" {
				a.cfg.Database.DSN = a.dsn
			}
			a.log = logger.NewWriterLogger(cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.driver, "driver", "", "Store driver: sqlite, postgres (env: DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&a.dsn, "dsn", "", "Store DSN (env: DB_DSN)")

	rootCmd.AddCommand(newMigrateCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newTokensCmd(a))
	rootCmd.AddCommand(newResetCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
