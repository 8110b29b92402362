package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkin-gate/internal/config"
	"checkin-gate/internal/logger"
	"checkin-gate/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer streams gate events. Admissions and resets go to separate topics.
type Producer struct {
	Writer messageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish writes one event keyed by guest id, so every admission of a guest
// lands on the same partition.
func (p *Producer) Publish(ctx context.Context, evt models.GateEvent) error {
	msg, err := p.buildMessage(evt)
	if err != nil {
		return err
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", msg.Topic, evt.EventID)
	}
	return p.Writer.WriteMessages(ctx, msg)
}

func (p *Producer) buildMessage(evt models.GateEvent) (kafka.Message, error) {
	var topic string
	switch evt.Type {
	case models.GateEventAdmitted:
		topic = p.Topics.Admissions
	case models.GateEventReset:
		topic = p.Topics.Resets
	default:
		return kafka.Message{}, fmt.Errorf("unknown event type %q", evt.Type)
	}

	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, err
	}

	key := evt.GuestID
	if key == "" {
		key = evt.EventID
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}, nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
