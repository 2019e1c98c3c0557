// Package sessions declares the repository contract for server-side login
// sessions kept in PostgreSQL.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/server/models"
)

// Repository stores, looks up and revokes sessions.
type Repository interface {
	// Create stores s as given; the caller picks the ID and expiry.
	Create(ctx context.Context, s *models.Session) error

	// Find returns the session with the given ID, or common.ErrorNotFound.
	Find(ctx context.Context, id string) (*models.Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired purges sessions whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
