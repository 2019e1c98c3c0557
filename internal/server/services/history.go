package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/events"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
)

// HistoryService keeps the append-only work log of orders.
type HistoryService struct {
	base
}

func NewHistoryService(d Deps) *HistoryService {
	return &HistoryService{base: newBase(d, "history")}
}

// Append adds an entry to an order that is not closed. The order row is
// share-locked so that closing it waits for the append, and vice versa.
func (s *HistoryService) Append(ctx context.Context, actor *policy.Actor, orderID int64, text string) (*models.HistoryEntry, error) {
	if err := policy.Authorize(actor, policy.ActionAppendHistory); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrMissingDescription
	}

	var (
		entry  *models.HistoryEntry
		noteID int64
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		order, err := s.repos.Orders(tx).LockForShare(ctx, orderID)
		if err != nil {
			return notFound(err, common.ErrOrderNotFound)
		}
		if order.Status == models.StatusClosed {
			return common.ErrOrderClosed
		}
		noteID = order.NoteID

		entry, err = s.repos.History(tx).Create(ctx, &models.HistoryEntry{
			OrderID:  orderID,
			AuthorID: actor.UserID,
			Text:     text,
		})
		return err
	})
	if err != nil {
		return nil, common.AsStorage(err)
	}
	entry.AuthorName = actor.Name

	s.publish(ctx, events.Event{Type: events.HistoryAppended, NoteID: noteID, OrderID: orderID, ActorID: actor.UserID})
	return entry, nil
}

// List returns the entries of an order, newest first.
func (s *HistoryService) List(ctx context.Context, actor *policy.Actor, orderID int64) ([]*models.HistoryEntry, error) {
	if err := policy.Authorize(actor, policy.ActionListHistory); err != nil {
		return nil, err
	}

	order, err := s.repos.Orders(s.tx.Conn()).Get(ctx, orderID)
	if err != nil {
		return nil, notFound(err, common.ErrOrderNotFound)
	}
	if !policy.CanSee(actor, order.Status) {
		return nil, common.ErrOrderNotFound
	}

	list, err := s.repos.History(s.tx.Conn()).ListByOrder(ctx, orderID)
	if err != nil {
		return nil, common.AsStorage(err)
	}
	return list, nil
}
