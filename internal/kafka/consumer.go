package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"checkin-gate/internal/logger"
	"checkin-gate/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer follows one gate topic, used by `gatectl watch`.
type Consumer struct {
	reader messageReader
	Logger *logger.Logger
}

// NewConsumer reads topic from the latest offset. An empty groupID reads
// without committing offsets.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	}
	if groupID == "" {
		cfg.StartOffset = kafka.LastOffset
	}
	return &Consumer{reader: kafka.NewReader(cfg), Logger: log}
}

// Run hands each decoded event to handler until ctx is cancelled.
// Undecodable messages are logged and skipped.
func (c *Consumer) Run(ctx context.Context, handler func(models.GateEvent)) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		}

		var evt models.GateEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			if c.Logger != nil {
				c.Logger.Warn("KAFKA", fmt.Sprintf("skipping offset %d on %s: %v", msg.Offset, msg.Topic, err))
			}
			continue
		}
		handler(evt)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
