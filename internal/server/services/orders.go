package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/server/events"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
	"github.com/dmitrijs2005/zeladoria/internal/server/reports"
)

var (
	ErrMissingDescription = common.Validation("A descrição é obrigatória.")
	ErrMissingNote        = common.Validation("A nota é obrigatória.")
)

// OrderService manages service orders and the cascade from a closed order
// to its note.
type OrderService struct {
	base
	rules policy.Rules
}

func NewOrderService(d Deps, rules policy.Rules) *OrderService {
	return &OrderService{base: newBase(d, "orders"), rules: rules}
}

// Create opens the single order of a note.
func (s *OrderService) Create(ctx context.Context, actor *policy.Actor, noteID int64, description string) (*models.Order, error) {
	if err := policy.Authorize(actor, policy.ActionCreateOrder); err != nil {
		return nil, err
	}

	if noteID <= 0 {
		return nil, ErrMissingNote
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrMissingDescription
	}

	var order *models.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		// The note lock serializes concurrent creations for the same note;
		// the unique constraint on orders.note_id backs it up.
		note, err := s.repos.Notes(tx).GetForUpdate(ctx, noteID)
		if err != nil {
			return notFound(err, common.ErrNoteNotFound)
		}

		_, err = s.repos.Orders(tx).GetByNote(ctx, noteID)
		switch {
		case err == nil:
			return common.ErrOrderAlreadyExists
		case !errors.Is(err, common.ErrorNotFound):
			return common.AsStorage(err)
		}

		order, err = s.repos.Orders(tx).Create(ctx, &models.Order{
			NoteID:      noteID,
			AdminID:     actor.UserID,
			Description: description,
		})
		if err != nil {
			return err
		}
		order.NoteTitle = note.Title
		order.NoteImage = note.ImagePath
		order.AdminName = actor.Name
		return nil
	})
	if err != nil {
		return nil, common.AsStorage(err)
	}

	s.log.Info(ctx, "order created", "order_id", order.ID, "note_id", noteID, "by", actor.UserID)
	s.publish(ctx, events.Event{Type: events.OrderCreated, NoteID: noteID, OrderID: order.ID, ActorID: actor.UserID, Status: string(order.Status)})
	return order, nil
}

// Get returns one order. Orders the actor may not see are reported missing.
func (s *OrderService) Get(ctx context.Context, actor *policy.Actor, id int64) (*models.Order, error) {
	if err := policy.Authorize(actor, policy.ActionViewOrder); err != nil {
		return nil, err
	}

	order, err := s.repos.Orders(s.tx.Conn()).Get(ctx, id)
	if err != nil {
		return nil, notFound(err, common.ErrOrderNotFound)
	}
	if !policy.CanSee(actor, order.Status) {
		return nil, common.ErrOrderNotFound
	}
	return order, nil
}

// GetByNote returns the order of a note, or nil when the note has none the
// actor may see.
func (s *OrderService) GetByNote(ctx context.Context, actor *policy.Actor, noteID int64) (*models.Order, error) {
	if err := policy.Authorize(actor, policy.ActionViewOrder); err != nil {
		return nil, err
	}

	order, err := s.repos.Orders(s.tx.Conn()).GetByNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, common.AsStorage(err)
	}
	if !policy.CanSee(actor, order.Status) {
		return nil, nil
	}
	return order, nil
}

// List returns the orders matching f within the actor's visibility, newest first.
func (s *OrderService) List(ctx context.Context, actor *policy.Actor, f query.Filter) ([]*models.Order, error) {
	if err := policy.Authorize(actor, policy.ActionListOrders); err != nil {
		return nil, err
	}
	return s.list(ctx, actor, f)
}

func (s *OrderService) list(ctx context.Context, actor *policy.Actor, f query.Filter) ([]*models.Order, error) {
	p := f.Resolve(s.rules.OrderVisibility(actor))
	if p.Empty {
		return []*models.Order{}, nil
	}

	list, err := s.repos.Orders(s.tx.Conn()).List(ctx, p)
	if err != nil {
		return nil, common.AsStorage(err)
	}
	return list, nil
}

// UpdateStatus applies an order transition. Closing the order closes its
// note in the same transaction; a closed order accepts no further change.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *policy.Actor, id int64, rawStatus string) error {
	if err := policy.Authorize(actor, policy.ActionUpdateOrderStatus); err != nil {
		return err
	}

	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return err
	}

	var (
		noteID  int64
		changed bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		order, err := s.repos.Orders(tx).LockForUpdate(ctx, id)
		if err != nil {
			return notFound(err, common.ErrOrderNotFound)
		}
		noteID = order.NoteID

		changed, err = models.ValidateOrderTransition(order.Status, status)
		if err != nil || !changed {
			return err
		}

		if err := s.repos.Orders(tx).UpdateStatus(ctx, id, status); err != nil {
			return notFound(err, common.ErrOrderNotFound)
		}
		if status == models.StatusClosed {
			if err := s.repos.Notes(tx).UpdateStatus(ctx, order.NoteID, models.StatusClosed); err != nil {
				return notFound(err, common.ErrNoteNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return common.AsStorage(err)
	}
	if !changed {
		return nil
	}

	s.log.Info(ctx, "order status changed", "order_id", id, "note_id", noteID, "status", string(status), "by", actor.UserID)
	s.publish(ctx, events.Event{Type: events.OrderStatusChanged, NoteID: noteID, OrderID: id, ActorID: actor.UserID, Status: string(status)})
	if status == models.StatusClosed {
		s.publish(ctx, events.Event{Type: events.OrderClosed, NoteID: noteID, OrderID: id, ActorID: actor.UserID, Status: string(status)})
	}
	return nil
}

// Export writes the orders matching f as a spreadsheet to w.
func (s *OrderService) Export(ctx context.Context, actor *policy.Actor, f query.Filter, w io.Writer) error {
	if err := policy.Authorize(actor, policy.ActionExportOrders); err != nil {
		return err
	}

	list, err := s.list(ctx, actor, f)
	if err != nil {
		return err
	}
	if err := reports.WriteOrders(w, list); err != nil {
		return common.Storage(err)
	}
	return nil
}
