// Package orders declares the persistence contract for service orders.
package orders

import (
	"context"

	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
)

type Repository interface {
	// Create inserts order and fills ID, Status and CreatedAt. A second
	// order for the same note yields common.ErrOrderAlreadyExists.
	Create(ctx context.Context, order *models.Order) (*models.Order, error)

	// Get returns the order with its display joins, or common.ErrorNotFound.
	Get(ctx context.Context, id int64) (*models.Order, error)

	// GetByNote returns the order bound to noteID, or common.ErrorNotFound.
	GetByNote(ctx context.Context, noteID int64) (*models.Order, error)

	// LockForUpdate and LockForShare read the order row and lock it until
	// the surrounding transaction ends. Joins are not filled.
	LockForUpdate(ctx context.Context, id int64) (*models.Order, error)
	LockForShare(ctx context.Context, id int64) (*models.Order, error)

	// List returns the orders matching p, newest first.
	List(ctx context.Context, p query.Predicate) ([]*models.Order, error)

	UpdateStatus(ctx context.Context, id int64, status models.Status) error
}
