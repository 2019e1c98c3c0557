package models

import (
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
)

// Order is a service order opened by an administrator for exactly one note.
type Order struct {
	ID          int64
	NoteID      int64
	AdminID     int64
	Description string
	Status      Status
	CreatedAt   time.Time

	// Read-only joins.
	NoteTitle string
	NoteImage string
	AdminName string
}

// ValidateOrderTransition checks an order status change. It reports whether
// the status actually changes; moving to the current status of an open
// order is accepted as a no-op. Nothing leaves StatusClosed.
func ValidateOrderTransition(from, to Status) (bool, error) {
	if from == StatusClosed {
		return false, common.ErrOrderClosed
	}
	if from == to {
		return false, nil
	}

	switch from {
	case StatusOpen:
		if to == StatusInProgress || to == StatusClosed {
			return true, nil
		}
	case StatusInProgress:
		if to == StatusOpen || to == StatusClosed {
			return true, nil
		}
	}
	return false, ErrInvalidStatus
}
