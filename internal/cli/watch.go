package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"checkin-gate/internal/kafka"
	"checkin-gate/internal/models"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		resets     bool
		jsonOutput bool
		groupID    string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow admissions from Kafka",
		Long: `Print each admission as it is published on the admissions topic.
With --resets the reset topic is followed instead. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Kafka.Enabled {
				return errors.New("kafka is disabled; set KAFKA_ENABLED=true")
			}

			topic := a.cfg.Kafka.Topics.Admissions
			if resets {
				topic = a.cfg.Kafka.Topics.Resets
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := kafka.NewConsumer(a.cfg.Kafka.Brokers, topic, groupID, a.log)
			defer consumer.Close()

			out := cmd.OutOrStdout()
			return consumer.Run(ctx, func(evt models.GateEvent) {
				printEvent(out, evt, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&resets, "resets", false, "Follow resets instead of admissions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().StringVar(&groupID, "group", "", "Consumer group (default: read from the latest offset)")

	return cmd
}

func printEvent(out io.Writer, evt models.GateEvent, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.Marshal(evt)
		fmt.Fprintln(out, string(data))
		return
	}

	ts := evt.OccurredAt.Local().Format("15:04:05")
	switch evt.Type {
	case models.GateEventAdmitted:
		fmt.Fprintf(out, "%s  %-6s %s  %s (sala %s)\n", ts, evt.Path, evt.GuestID, evt.Name, evt.Room)
	case models.GateEventReset:
		fmt.Fprintf(out, "%s  RESET  %d ospiti\n", ts, evt.Count)
	default:
		fmt.Fprintf(out, "%s  %s\n", ts, evt.Type)
	}
}

