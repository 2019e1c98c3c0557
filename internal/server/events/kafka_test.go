package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw)

	at := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), Event{Type: OrderClosed, NoteID: 4, OrderID: 9, ActorID: 1, Status: "encerrada", OccurredAt: at})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "nota-4", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "order.closed", string(msg.Headers[0].Value))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "order.closed", got["type"])
	assert.Equal(t, float64(9), got["ordem_id"])
	assert.Equal(t, "encerrada", got["status"])

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisherWithWriter(fw)

	err := p.Publish(context.Background(), Event{Type: NoteCreated, NoteID: 1})
	assert.EqualError(t, err, "broker down")
}

func TestNewKafkaPublisher_ConfiguresWriter(t *testing.T) {
	p := NewKafkaPublisher([]string{"k1:9092", "k2:9092"}, "zeladoria.events", logging.NewSlogJSONLoggerTo(io.Discard, slog.LevelInfo))

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "zeladoria.events", w.Topic)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.NotNil(t, w.Addr)
	assert.Equal(t, 5*time.Second, w.WriteTimeout)
	assert.True(t, w.Async)
	assert.NotNil(t, w.Completion)
}

func TestCompletionLogger(t *testing.T) {
	var buf bytes.Buffer
	done := completionLogger(logging.NewSlogJSONLoggerTo(&buf, slog.LevelInfo))

	done([]kafka.Message{{}}, nil)
	assert.Empty(t, buf.String())

	done([]kafka.Message{{}, {}}, errors.New("broker down"))
	assert.Contains(t, buf.String(), "event delivery failed")
	assert.Contains(t, buf.String(), "broker down")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
