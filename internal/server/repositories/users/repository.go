// Package users declares the identity store contract.
package users

import (
	"context"

	"github.com/dmitrijs2005/zeladoria/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID and CreatedAt. A taken name
	// yields common.ErrUserAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
