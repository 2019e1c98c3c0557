// Package sessions keeps server-side login sessions. A session token is only
// honored while its session exists, which makes logout effective before the
// token itself expires.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Store creates, finds and revokes sessions. Find returns
// common.ErrorNotFound for missing or expired sessions.
type Store interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (*models.Session, error)
	Find(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// Purger is implemented by stores that need expired sessions removed
// explicitly.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// RepositoryStore keeps sessions in the sessions table of the database
// behind a RepositoryManager.
type RepositoryStore struct {
	repos repomanager.RepositoryManager
	db    dbx.DBTX
	now   func() time.Time
}

func NewRepositoryStore(repos repomanager.RepositoryManager, db dbx.DBTX) *RepositoryStore {
	return &RepositoryStore{repos: repos, db: db, now: time.Now}
}

func (s *RepositoryStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repos.Sessions(s.db).Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *RepositoryStore) Find(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.repos.Sessions(s.db).Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		return nil, errNotFound
	}
	return sess, nil
}

func (s *RepositoryStore) Delete(ctx context.Context, id string) error {
	return s.repos.Sessions(s.db).Delete(ctx, id)
}

func (s *RepositoryStore) Purge(ctx context.Context) (int64, error) {
	return s.repos.Sessions(s.db).DeleteExpired(ctx, s.now())
}
