package models

import "time"

// HistoryEntry is one append-only log line on an order.
type HistoryEntry struct {
	ID        int64
	OrderID   int64
	AuthorID  int64
	Text      string
	CreatedAt time.Time

	AuthorName string
}
