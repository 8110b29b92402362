package cli

import (
	"errors"
	"fmt"

	checkin "checkin-gate/internal/checkin/service"
	"checkin-gate/internal/kafka"

	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear every arrival and token use",
		Long: `Start a new event lifecycle: every guest goes back to not arrived and
every token to unused. Requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("reset clears every admission; pass --yes to confirm")
			}

			gateDB, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			svc := checkin.NewGateService(gateDB, a.log)
			if a.cfg.Kafka.Enabled {
				producer := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topics, a.log)
				defer producer.Close()
				svc.Publishers = append(svc.Publishers, producer)
			}

			count, err := svc.ResetEvent(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset completato: %d ospiti.\n", count)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")

	return cmd
}
