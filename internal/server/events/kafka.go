package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher writes to topic on the given brokers. Messages are
// partitioned by Event.Key. The writer is asynchronous: Publish only
// enqueues, and delivery failures are logged once the batch completes.
func NewKafkaPublisher(brokers []string, topic string, log logging.Logger) *KafkaPublisher {
	log = log.With("module", "events")
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Async:        true,
		Completion:   completionLogger(log),
	}
	return &KafkaPublisher{writer: w}
}

func completionLogger(log logging.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err != nil {
			log.Error(context.Background(), "event delivery failed", "messages", len(msgs), "error", err)
		}
	}
}

// NewKafkaPublisherWithWriter allows injecting a test writer.
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key()),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
