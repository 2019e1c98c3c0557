// Package history declares the append-only work log of service orders.
package history

import (
	"context"

	"github.com/dmitrijs2005/zeladoria/internal/server/models"
)

type Repository interface {
	// Create appends entry and fills ID and CreatedAt.
	Create(ctx context.Context, entry *models.HistoryEntry) (*models.HistoryEntry, error)

	// ListByOrder returns the entries of an order, newest first.
	ListByOrder(ctx context.Context, orderID int64) ([]*models.HistoryEntry, error)
}
