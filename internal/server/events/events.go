// Package events publishes note and order lifecycle changes to an
// integration feed. Publishing happens after the change is committed;
// a failed publish never undoes the change.
package events

import (
	"context"
	"fmt"
	"time"
)

type Type string

const (
	NoteCreated        Type = "note.created"
	NoteStatusChanged  Type = "note.status_changed"
	NoteImageAttached  Type = "note.image_attached"
	OrderCreated       Type = "order.created"
	OrderStatusChanged Type = "order.status_changed"
	OrderClosed        Type = "order.closed"
	HistoryAppended    Type = "history.appended"
)

type Event struct {
	Type       Type      `json:"type"`
	NoteID     int64     `json:"nota_id"`
	OrderID    int64     `json:"ordem_id,omitempty"`
	ActorID    int64     `json:"autor_id"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"ocorrido_em"`
}

// Key groups every event of a note and its order on the same partition.
func (e Event) Key() string {
	return fmt.Sprintf("nota-%d", e.NoteID)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }
