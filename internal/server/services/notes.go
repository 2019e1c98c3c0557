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
)

var (
	ErrMissingNoteFields = common.Validation("Título e descrição são obrigatórios.")
	ErrMissingImage      = common.Validation("Nenhuma imagem enviada.")
)

// ImageProcessor turns an upload into a stored image and returns its key.
// Discard removes a stored image that no note ended up referencing.
type ImageProcessor interface {
	Process(ctx context.Context, r io.Reader) (string, error)
	Discard(ctx context.Context, key string) error
}

// CreateNoteInput is the note form. Image is optional.
type CreateNoteInput struct {
	Title       string
	Description string
	Image       io.Reader
}

// NoteService manages the lifecycle of maintenance notes.
type NoteService struct {
	base
	rules  policy.Rules
	images ImageProcessor
}

func NewNoteService(d Deps, rules policy.Rules, images ImageProcessor) *NoteService {
	return &NoteService{base: newBase(d, "notes"), rules: rules, images: images}
}

// Create stores a new open note authored by actor.
func (s *NoteService) Create(ctx context.Context, actor *policy.Actor, in CreateNoteInput) (*models.Note, error) {
	if err := policy.Authorize(actor, policy.ActionCreateNote); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, ErrMissingNoteFields
	}

	note := &models.Note{AuthorID: actor.UserID, Title: title, Description: description}
	if in.Image != nil {
		key, err := s.processImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		note.ImagePath = key
	}

	created, err := s.repos.Notes(s.tx.Conn()).Create(ctx, note)
	if err != nil {
		s.discardImage(ctx, note.ImagePath)
		return nil, common.AsStorage(err)
	}
	note = created
	note.AuthorName = actor.Name

	s.log.Info(ctx, "note created", "note_id", note.ID, "author_id", actor.UserID)
	s.publish(ctx, events.Event{Type: events.NoteCreated, NoteID: note.ID, ActorID: actor.UserID, Status: string(note.Status)})
	return note, nil
}

// Get returns one note. Notes the actor may not see are reported missing.
func (s *NoteService) Get(ctx context.Context, actor *policy.Actor, id int64) (*models.Note, error) {
	if err := policy.Authorize(actor, policy.ActionViewNote); err != nil {
		return nil, err
	}

	note, err := s.repos.Notes(s.tx.Conn()).Get(ctx, id)
	if err != nil {
		return nil, notFound(err, common.ErrNoteNotFound)
	}
	if !policy.CanSee(actor, note.Status) {
		return nil, common.ErrNoteNotFound
	}
	return note, nil
}

// List returns the notes matching f within the actor's visibility, newest first.
func (s *NoteService) List(ctx context.Context, actor *policy.Actor, f query.Filter) ([]*models.Note, error) {
	if err := policy.Authorize(actor, policy.ActionListNotes); err != nil {
		return nil, err
	}

	p := f.Resolve(s.rules.NoteVisibility(actor))
	if p.Empty {
		return []*models.Note{}, nil
	}

	list, err := s.repos.Notes(s.tx.Conn()).List(ctx, p)
	if err != nil {
		return nil, common.AsStorage(err)
	}
	return list, nil
}

// UpdateStatus moves a note to rawStatus. The note is frozen once its
// order is closed; the change never reaches the order.
func (s *NoteService) UpdateStatus(ctx context.Context, actor *policy.Actor, id int64, rawStatus string) error {
	if err := policy.Authorize(actor, policy.ActionUpdateNoteStatus); err != nil {
		return err
	}

	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return err
	}

	var changed bool
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		note, err := s.repos.Notes(tx).GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, common.ErrNoteNotFound)
		}
		if !policy.CanSee(actor, note.Status) {
			return common.ErrNoteNotFound
		}
		if err := policy.CanEditNote(actor, note); err != nil {
			return err
		}

		order, err := s.repos.Orders(tx).GetByNote(ctx, id)
		switch {
		case err == nil:
			if order.Status == models.StatusClosed {
				return common.ErrNoteFrozen
			}
		case !errors.Is(err, common.ErrorNotFound):
			return common.AsStorage(err)
		}

		if note.Status == status {
			return nil
		}
		if err := s.repos.Notes(tx).UpdateStatus(ctx, id, status); err != nil {
			return notFound(err, common.ErrNoteNotFound)
		}
		changed = true
		return nil
	})
	if err != nil {
		return common.AsStorage(err)
	}

	if changed {
		s.log.Info(ctx, "note status changed", "note_id", id, "status", string(status), "by", actor.UserID)
		s.publish(ctx, events.Event{Type: events.NoteStatusChanged, NoteID: id, ActorID: actor.UserID, Status: string(status)})
	}
	return nil
}

// AttachImage replaces the photo of a note that is not closed.
func (s *NoteService) AttachImage(ctx context.Context, actor *policy.Actor, id int64, image io.Reader) (*models.Note, error) {
	if err := policy.Authorize(actor, policy.ActionAttachNoteImage); err != nil {
		return nil, err
	}
	if image == nil {
		return nil, ErrMissingImage
	}

	// Checked before the upload is processed and again under the row lock.
	note, err := s.repos.Notes(s.tx.Conn()).Get(ctx, id)
	if err != nil {
		return nil, notFound(err, common.ErrNoteNotFound)
	}
	if err := s.checkAttach(actor, note); err != nil {
		return nil, err
	}

	key, err := s.processImage(ctx, image)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		locked, err := s.repos.Notes(tx).GetForUpdate(ctx, id)
		if err != nil {
			return notFound(err, common.ErrNoteNotFound)
		}
		if err := s.checkAttach(actor, locked); err != nil {
			return err
		}
		return s.repos.Notes(tx).UpdateImage(ctx, id, key)
	})
	if err != nil {
		s.discardImage(ctx, key)
		return nil, common.AsStorage(err)
	}
	note.ImagePath = key

	s.log.Info(ctx, "note image attached", "note_id", id, "key", key)
	s.publish(ctx, events.Event{Type: events.NoteImageAttached, NoteID: id, ActorID: actor.UserID})
	return note, nil
}

func (s *NoteService) checkAttach(actor *policy.Actor, note *models.Note) error {
	if !policy.CanSee(actor, note.Status) {
		return common.ErrNoteNotFound
	}
	if err := policy.CanEditNote(actor, note); err != nil {
		return err
	}
	if note.Status == models.StatusClosed {
		return common.ErrNoteClosed
	}
	return nil
}

// discardImage removes an image whose note write failed. A failed removal
// leaves an orphan, so its key is logged.
func (s *NoteService) discardImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Discard(context.WithoutCancel(ctx), key); err != nil {
		s.log.Error(ctx, "orphaned image", "key", key, "error", err)
	}
}

func (s *NoteService) processImage(ctx context.Context, r io.Reader) (string, error) {
	if s.images == nil {
		return "", ErrMissingImage
	}
	key, err := s.images.Process(ctx, r)
	if err != nil {
		if !errors.Is(err, common.ErrValidation) {
			s.log.Error(ctx, "image processing failed", "error", err)
		}
		return "", common.AsStorage(err)
	}
	return key, nil
}
