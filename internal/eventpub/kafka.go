package eventpub

import (
	"context"
	"strconv"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// DefaultKafkaTopic is used when no topic is configured.
const DefaultKafkaTopic = "ledger.entries"

// kafkaBatchTimeout bounds how long a synchronous write waits for its batch to fill.
// The writer default is one second.
const kafkaBatchTimeout = 5 * time.Millisecond

// Kafka writes events to a kafka topic keyed by entry ID.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns a Kafka publisher. The writer connects lazily on the first message.
func NewKafka(brokers []string, topic string) *Kafka {
	if topic == "" {
		topic = DefaultKafkaTopic
	}

	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: kafkaBatchTimeout,
		},
	}
}

// PublishEntry writes the event and waits for the broker acknowledgement.
func (p *Kafka) PublishEntry(ctx context.Context, event domain.EntryCommitted) error {
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("topic", p.writer.Topic).Str("event_id", event.EventID).Msg("event published")

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Kafka) Close() error {
	return p.writer.Close()
}

func kafkaMessage(event domain.EntryCommitted) (kafka.Message, error) {
	data, err := encode(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.Entry.ID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "kind", Value: []byte(event.Entry.Kind)},
		},
		Time: event.OccurredAt,
	}, nil
}
