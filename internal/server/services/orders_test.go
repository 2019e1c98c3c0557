package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/events"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestOrderService_Create(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	n := e.note(t, "Leak")

	o, err := e.orders.Create(ctx, e.admin, n.ID, " plumber dispatched ")
	require.NoError(t, err)
	assert.Equal(t, "plumber dispatched", o.Description)
	assert.Equal(t, models.StatusOpen, o.Status)
	assert.Equal(t, "Leak", o.NoteTitle)
	assert.Equal(t, "A1", o.AdminName)

	_, err = e.orders.Create(ctx, e.admin, n.ID, "again")
	assert.ErrorIs(t, err, common.ErrOrderAlreadyExists)

	_, err = e.orders.Create(ctx, e.admin, 999, "x")
	assert.ErrorIs(t, err, common.ErrNoteNotFound)

	_, err = e.orders.Create(ctx, e.admin, n.ID, "  ")
	assert.ErrorIs(t, err, ErrMissingDescription)

	for _, noteID := range []int64{0, -3} {
		_, err = e.orders.Create(ctx, e.admin, noteID, "x")
		assert.ErrorIs(t, err, ErrMissingNote)
	}

	assert.Contains(t, e.events.types(), events.OrderCreated)
}

func TestOrderService_ConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	n := e.note(t, "Leak")

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.orders.Create(ctx, e.admin, n.ID, "dispatch")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, common.ErrConflict):
				conflict++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, conflict)
}

func TestOrderService_AdminOnlyActions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	n := e.note(t, "Leak")
	o := e.order(t, n.ID)

	for _, actor := range []*policy.Actor{e.resident, e.other} {
		_, err := e.orders.Create(ctx, actor, n.ID, "x")
		assert.ErrorIs(t, err, common.ErrPermissionDenied)

		err = e.orders.UpdateStatus(ctx, actor, o.ID, "encerrada")
		assert.ErrorIs(t, err, common.ErrPermissionDenied)

		_, err = e.history.Append(ctx, actor, o.ID, "x")
		assert.ErrorIs(t, err, common.ErrPermissionDenied)

		err = e.orders.Export(ctx, actor, query.Filter{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, common.ErrPermissionDenied)
	}

	// Entity state does not change the answer.
	require.NoError(t, e.orders.UpdateStatus(ctx, e.admin, o.ID, "encerrada"))
	err := e.orders.UpdateStatus(ctx, e.resident, o.ID, "aberta")
	assert.ErrorIs(t, err, common.ErrAdminOnly)
	_, err = e.history.Append(ctx, e.resident, 999, "x")
	assert.ErrorIs(t, err, common.ErrAdminOnly)
}

func TestOrderService_Transitions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	n := e.note(t, "Leak")
	o := e.order(t, n.ID)

	require.NoError(t, e.orders.UpdateStatus(ctx, e.admin, o.ID, "em andamento"))
	require.NoError(t, e.orders.UpdateStatus(ctx, e.admin, o.ID, "aberta"))
	require.NoError(t, e.orders.UpdateStatus(ctx, e.admin, o.ID, "aberta"))

	got, err := e.orders.Get(ctx, e.admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, got.Status)

	err = e.orders.UpdateStatus(ctx, e.admin, o.ID, "fechada")
	assert.ErrorIs(t, err, models.ErrInvalidStatus)

	err = e.orders.UpdateStatus(ctx, e.admin, 999, "aberta")
	assert.ErrorIs(t, err, common.ErrOrderNotFound)
}

// stalledPublisher blocks until its context ends, like a writer waiting on
// an unreachable broker.
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

func TestOrderService_StalledEventFeedDoesNotHoldMutation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	n := e.note(t, "Leak")

	orders := NewOrderService(Deps{Tx: e.mem, Repos: e.mem, Events: stalledPublisher{}, Log: discardLogger()}, policy.Rules{})
	orders.publishTimeout = 20 * time.Millisecond

	start := time.Now()
	o, err := orders.Create(ctx, e.admin, n.ID, "plumber dispatched")
	require.NoError(t, err)
	require.NoError(t, orders.UpdateStatus(ctx, e.admin, o.ID, "encerrada"))
	assert.Less(t, time.Since(start), time.Second)

	note, err := e.notes.Get(ctx, e.admin, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, note.Status)
}

func TestOrderService_CloseCascadesAndIsTerminal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	n := e.note(t, "Leak")
	o := e.order(t, n.ID)
	_, err := e.history.Append(ctx, e.admin, o.ID, "first visit")
	require.NoError(t, err)

	require.NoError(t, e.orders.UpdateStatus(ctx, e.admin, o.ID, "concluída"))

	note, err := e.notes.Get(ctx, e.admin, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, note.Status)

	for _, s := range []string{"aberta", "em andamento", "encerrada"} {
		err := e.orders.UpdateStatus(ctx, e.admin, o.ID, s)
		assert.ErrorIs(t, err, common.ErrOrderClosed, s)
	}
	_, err = e.history.Append(ctx, e.admin, o.ID, "late")
	assert.ErrorIs(t, err, common.ErrOrderClosed)

	assert.Contains(t, e.events.types(), events.OrderClosed)
}

func TestOrderService_CloseIsAtomicForReaders(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	n := e.note(t, "Leak")
	o := e.order(t, n.ID)

	stop := make(chan struct{})
	done := make(chan struct{})
	var torn bool
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Read both rows from one committed snapshot.
			_ = e.mem.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
				ord, err := e.mem.Orders(tx).Get(ctx, o.ID)
				if err != nil {
					return err
				}
				note, err := e.mem.Notes(tx).Get(ctx, n.ID)
				if err != nil {
					return err
				}
				if ord.Status == models.StatusClosed && note.Status != models.StatusClosed {
					torn = true
				}
				return nil
			})
		}
	}()

	require.NoError(t, e.orders.UpdateStatus(ctx, e.admin, o.ID, "encerrada"))
	close(stop)
	<-done
	assert.False(t, torn)

	note, err := e.notes.Get(ctx, e.admin, n.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, note.Status)
}

func TestOrderService_Visibility(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	open := e.order(t, e.note(t, "a").ID)
	closedNote := e.note(t, "b")
	closed := e.order(t, closedNote.ID)
	require.NoError(t, e.orders.UpdateStatus(ctx, e.admin, closed.ID, "encerrada"))

	list, err := e.orders.List(ctx, e.resident, query.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	list, err = e.orders.List(ctx, e.admin, query.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = e.orders.List(ctx, e.admin, statusFilter(models.StatusClosed))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, closed.ID, list[0].ID)

	_, err = e.orders.Get(ctx, e.resident, closed.ID)
	assert.ErrorIs(t, err, common.ErrOrderNotFound)

	byNote, err := e.orders.GetByNote(ctx, e.resident, closedNote.ID)
	require.NoError(t, err)
	assert.Nil(t, byNote)

	byNote, err = e.orders.GetByNote(ctx, e.admin, closedNote.ID)
	require.NoError(t, err)
	assert.Equal(t, closed.ID, byNote.ID)

	byNote, err = e.orders.GetByNote(ctx, e.admin, 999)
	require.NoError(t, err)
	assert.Nil(t, byNote)

	_, err = e.orders.Get(ctx, nil, open.ID)
	assert.ErrorIs(t, err, common.ErrNotAuthenticated)
}

func TestOrderService_Export(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, policy.Rules{})
	e.order(t, e.note(t, "Leak").ID)

	var buf bytes.Buffer
	require.NoError(t, e.orders.Export(ctx, e.admin, query.Filter{}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Ordens")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Leak", rows[1][2])
}
