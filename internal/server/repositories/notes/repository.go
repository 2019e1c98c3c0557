// Package notes declares the persistence contract for maintenance notes.
package notes

import (
	"context"

	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
)

type Repository interface {
	// Create inserts note and fills ID, Status and CreatedAt.
	Create(ctx context.Context, note *models.Note) (*models.Note, error)

	// Get returns the note with its author name, or common.ErrorNotFound.
	Get(ctx context.Context, id int64) (*models.Note, error)

	// GetForUpdate returns the note and locks its row until the surrounding
	// transaction ends. AuthorName is not filled.
	GetForUpdate(ctx context.Context, id int64) (*models.Note, error)

	// List returns the notes matching p, newest first.
	List(ctx context.Context, p query.Predicate) ([]*models.Note, error)

	UpdateStatus(ctx context.Context, id int64, status models.Status) error
	UpdateImage(ctx context.Context, id int64, imagePath string) error
}
