package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/dmitrijs2005/zeladoria/internal/server/events"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/memory"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeImages struct {
	key       string
	err       error
	calls     int
	discarded []string
	// onProcess runs after the upload is read, before the key is returned.
	onProcess func()
}

func (f *fakeImages) Process(_ context.Context, r io.Reader) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	if f.onProcess != nil {
		f.onProcess()
	}
	return f.key, nil
}

func (f *fakeImages) Discard(_ context.Context, key string) error {
	f.discarded = append(f.discarded, key)
	return nil
}

var errBroker = errors.New("broker down")

type env struct {
	mem     *memory.Store
	events  *recorder
	images  *fakeImages
	notes   *NoteService
	orders  *OrderService
	history *HistoryService

	admin    *policy.Actor
	resident *policy.Actor
	other    *policy.Actor
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newEnv(t *testing.T, rules policy.Rules) *env {
	t.Helper()
	mem := memory.NewStore()
	rec := &recorder{}
	imgs := &fakeImages{key: "2025/03/07/photo.jpg"}
	d := Deps{Tx: mem, Repos: mem, Events: rec, Log: discardLogger()}

	e := &env{
		mem:     mem,
		events:  rec,
		images:  imgs,
		notes:   NewNoteService(d, rules, imgs),
		orders:  NewOrderService(d, rules),
		history: NewHistoryService(d),
	}
	e.admin = e.actor(t, "A1", models.RoleAdmin)
	e.resident = e.actor(t, "R1", models.RoleResident)
	e.other = e.actor(t, "R2", models.RoleResident)
	return e
}

func (e *env) actor(t *testing.T, name string, role models.Role) *policy.Actor {
	t.Helper()
	u, err := e.mem.Users(e.mem.Conn()).Create(context.Background(), &models.User{Name: name, Apartment: "101", Role: role})
	require.NoError(t, err)
	return &policy.Actor{UserID: u.ID, Name: u.Name, Role: u.Role}
}

func (e *env) note(t *testing.T, title string) *models.Note {
	t.Helper()
	n, err := e.notes.Create(context.Background(), e.resident, CreateNoteInput{Title: title, Description: "details"})
	require.NoError(t, err)
	return n
}

func (e *env) order(t *testing.T, noteID int64) *models.Order {
	t.Helper()
	o, err := e.orders.Create(context.Background(), e.admin, noteID, "plumber dispatched")
	require.NoError(t, err)
	return o
}
