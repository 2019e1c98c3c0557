// Package services contains the server-side business logic: identity,
// the note and order lifecycles and the order history log. Every
// operation asks the access policy first, runs its read-check-write
// sequence inside one transaction and publishes lifecycle events after
// the transaction has committed.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/dbx"
	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/dmitrijs2005/zeladoria/internal/server/events"
	"github.com/dmitrijs2005/zeladoria/internal/server/repositories/repomanager"
)

// Deps bundles the collaborators shared by the services.
type Deps struct {
	Tx     dbx.Transactor
	Repos  repomanager.RepositoryManager
	Events events.Publisher
	Log    logging.Logger
}

// defaultPublishTimeout bounds how long a committed change waits on the event
// feed before its response is sent.
const defaultPublishTimeout = 2 * time.Second

type base struct {
	tx             dbx.Transactor
	repos          repomanager.RepositoryManager
	events         events.Publisher
	log            logging.Logger
	now            func() time.Time
	publishTimeout time.Duration
}

func newBase(d Deps, module string) base {
	pub := d.Events
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return base{
		tx:             d.Tx,
		repos:          d.Repos,
		events:         pub,
		log:            d.Log.With("module", module),
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
	}
}

// publish sends e once the change is durable. The request may already be
// gone, so cancellation of ctx is not propagated.
func (b *base) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = b.now()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.publishTimeout)
	defer cancel()
	if err := b.events.Publish(pctx, e); err != nil {
		b.log.Warn(ctx, "event publish failed", "type", string(e.Type), "note_id", e.NoteID, "error", err)
	}
}

// notFound translates the repository miss into the domain error nf and
// wraps every other failure as a storage error.
func notFound(err error, nf error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return nf
	}
	return common.AsStorage(err)
}
