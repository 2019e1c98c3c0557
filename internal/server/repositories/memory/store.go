// Package memory is an in-process implementation of the repositories and of
// dbx.Transactor. It backs the "-d memory" development mode and the service
// tests.
//
// Transactions are serialized and work on a private copy of the data that
// replaces the committed state on success, so a reader never observes half
// of a transaction. Writes outside a transaction are serialized with them.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/history"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/notes"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/orders"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/users"
)

var errNoSQL = errors.New("memory store does not execute SQL")

type state struct {
	users    map[int64]models.User
	sessions map[string]models.Session
	notes    map[int64]models.Note
	orders   map[int64]models.Order
	history  map[int64]models.HistoryEntry

	lastUserID    int64
	lastNoteID    int64
	lastOrderID   int64
	lastHistoryID int64
}

func newState() *state {
	return &state{
		users:    map[int64]models.User{},
		sessions: map[string]models.Session{},
		notes:    map[int64]models.Note{},
		orders:   map[int64]models.Order{},
		history:  map[int64]models.HistoryEntry{},
	}
}

func (s *state) clone() *state {
	c := *s
	c.users = cloneMap(s.users)
	c.sessions = cloneMap(s.sessions)
	c.notes = cloneMap(s.notes)
	c.orders = cloneMap(s.orders)
	c.history = cloneMap(s.history)
	return &c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Store holds all tables. The zero value is not usable; call NewStore.
type Store struct {
	txMu sync.Mutex   // serializes writers
	mu   sync.RWMutex // guards st
	st   *state
	now  func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// handle is the dbx.DBTX the store hands out. tx is nil for the
// autocommit handle returned by Conn.
type handle struct {
	store *Store
	tx    *state
}

func (h *handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (h *handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (h *handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (h *handle) read(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()
	return fn(h.store.st)
}

func (h *handle) write(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.store.txMu.Lock()
	defer h.store.txMu.Unlock()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return fn(h.store.st)
}

func (s *Store) Conn() dbx.DBTX {
	return &handle{store: s}
}

// WithinTx runs fn on a private copy of the data and publishes the copy
// when fn succeeds. Transactions do not nest.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &handle{store: s, tx: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

func (s *Store) handleFor(db dbx.DBTX) *handle {
	if h, ok := db.(*handle); ok && h.store == s {
		return h
	}
	return &handle{store: s}
}

// RunMigrations is a no-op; the schema is implicit.
func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

func (s *Store) Users(db dbx.DBTX) users.Repository {
	return &userRepo{h: s.handleFor(db)}
}

func (s *Store) Sessions(db dbx.DBTX) sessions.Repository {
	return &sessionRepo{h: s.handleFor(db)}
}

func (s *Store) Notes(db dbx.DBTX) notes.Repository {
	return &noteRepo{h: s.handleFor(db)}
}

func (s *Store) Orders(db dbx.DBTX) orders.Repository {
	return &orderRepo{h: s.handleFor(db)}
}

func (s *Store) History(db dbx.DBTX) history.Repository {
	return &historyRepo{h: s.handleFor(db)}
}
