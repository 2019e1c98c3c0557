package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
)

type userRepo struct{ h *handle }

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	err := r.h.write(func(st *state) error {
		for _, u := range st.users {
			if u.Name == user.Name {
				return common.ErrUserAlreadyExists
			}
		}
		st.lastUserID++
		user.ID = st.lastUserID
		user.CreatedAt = r.h.store.now()
		st.users[user.ID] = *user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetByName(_ context.Context, name string) (*models.User, error) {
	var out *models.User
	err := r.h.read(func(st *state) error {
		for _, u := range st.users {
			if u.Name == name {
				out = &u
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	var out *models.User
	err := r.h.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

type sessionRepo struct{ h *handle }

func (r *sessionRepo) Create(_ context.Context, s *models.Session) error {
	return r.h.write(func(st *state) error {
		if _, ok := st.users[s.UserID]; !ok {
			return fmt.Errorf("memory: session user %d does not exist", s.UserID)
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = r.h.store.now()
		}
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r *sessionRepo) Find(_ context.Context, id string) (*models.Session, error) {
	var out *models.Session
	err := r.h.read(func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r *sessionRepo) Delete(_ context.Context, id string) error {
	return r.h.write(func(st *state) error {
		delete(st.sessions, id)
		return nil
	})
}

func (r *sessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.h.write(func(st *state) error {
		for id, s := range st.sessions {
			if s.Expired(now) {
				delete(st.sessions, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type noteRepo struct{ h *handle }

func (r *noteRepo) Create(_ context.Context, note *models.Note) (*models.Note, error) {
	err := r.h.write(func(st *state) error {
		if _, ok := st.users[note.AuthorID]; !ok {
			return fmt.Errorf("memory: note author %d does not exist", note.AuthorID)
		}
		st.lastNoteID++
		note.ID = st.lastNoteID
		note.Status = models.StatusOpen
		note.CreatedAt = r.h.store.now()
		stored := *note
		stored.AuthorName = ""
		st.notes[note.ID] = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (st *state) noteView(n models.Note) *models.Note {
	n.AuthorName = st.users[n.AuthorID].Name
	return &n
}

func (r *noteRepo) Get(_ context.Context, id int64) (*models.Note, error) {
	var out *models.Note
	err := r.h.read(func(st *state) error {
		n, ok := st.notes[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = st.noteView(n)
		return nil
	})
	return out, err
}

func (r *noteRepo) GetForUpdate(_ context.Context, id int64) (*models.Note, error) {
	var out *models.Note
	err := r.h.read(func(st *state) error {
		n, ok := st.notes[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &n
		return nil
	})
	return out, err
}

func (r *noteRepo) List(_ context.Context, p query.Predicate) ([]*models.Note, error) {
	out := make([]*models.Note, 0)
	err := r.h.read(func(st *state) error {
		for _, n := range st.notes {
			if p.Match(n.Status, n.CreatedAt) {
				out = append(out, st.noteView(n))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, err
}

func (r *noteRepo) UpdateStatus(_ context.Context, id int64, status models.Status) error {
	return r.h.write(func(st *state) error {
		n, ok := st.notes[id]
		if !ok {
			return common.ErrorNotFound
		}
		n.Status = status
		st.notes[id] = n
		return nil
	})
}

func (r *noteRepo) UpdateImage(_ context.Context, id int64, imagePath string) error {
	return r.h.write(func(st *state) error {
		n, ok := st.notes[id]
		if !ok {
			return common.ErrorNotFound
		}
		n.ImagePath = imagePath
		st.notes[id] = n
		return nil
	})
}

type orderRepo struct{ h *handle }

func (r *orderRepo) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	err := r.h.write(func(st *state) error {
		if _, ok := st.notes[order.NoteID]; !ok {
			return fmt.Errorf("memory: order note %d does not exist", order.NoteID)
		}
		for _, o := range st.orders {
			if o.NoteID == order.NoteID {
				return common.ErrOrderAlreadyExists
			}
		}
		st.lastOrderID++
		order.ID = st.lastOrderID
		order.Status = models.StatusOpen
		order.CreatedAt = r.h.store.now()
		stored := *order
		stored.NoteTitle, stored.NoteImage, stored.AdminName = "", "", ""
		st.orders[order.ID] = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (st *state) orderView(o models.Order) *models.Order {
	n := st.notes[o.NoteID]
	o.NoteTitle = n.Title
	o.NoteImage = n.ImagePath
	o.AdminName = st.users[o.AdminID].Name
	return &o
}

func (r *orderRepo) Get(_ context.Context, id int64) (*models.Order, error) {
	var out *models.Order
	err := r.h.read(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = st.orderView(o)
		return nil
	})
	return out, err
}

func (r *orderRepo) GetByNote(_ context.Context, noteID int64) (*models.Order, error) {
	var out *models.Order
	err := r.h.read(func(st *state) error {
		for _, o := range st.orders {
			if o.NoteID == noteID {
				out = st.orderView(o)
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *orderRepo) LockForUpdate(_ context.Context, id int64) (*models.Order, error) {
	return r.row(id)
}

func (r *orderRepo) LockForShare(_ context.Context, id int64) (*models.Order, error) {
	return r.row(id)
}

// row reads the bare order row. Transactions are serialized, so holding
// the transaction is the lock.
func (r *orderRepo) row(id int64) (*models.Order, error) {
	var out *models.Order
	err := r.h.read(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *orderRepo) List(_ context.Context, p query.Predicate) ([]*models.Order, error) {
	out := make([]*models.Order, 0)
	err := r.h.read(func(st *state) error {
		for _, o := range st.orders {
			if p.Match(o.Status, o.CreatedAt) {
				out = append(out, st.orderView(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, err
}

func (r *orderRepo) UpdateStatus(_ context.Context, id int64, status models.Status) error {
	return r.h.write(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return common.ErrorNotFound
		}
		o.Status = status
		st.orders[id] = o
		return nil
	})
}

type historyRepo struct{ h *handle }

func (r *historyRepo) Create(_ context.Context, entry *models.HistoryEntry) (*models.HistoryEntry, error) {
	err := r.h.write(func(st *state) error {
		if _, ok := st.orders[entry.OrderID]; !ok {
			return fmt.Errorf("memory: history order %d does not exist", entry.OrderID)
		}
		st.lastHistoryID++
		entry.ID = st.lastHistoryID
		entry.CreatedAt = r.h.store.now()
		stored := *entry
		stored.AuthorName = ""
		st.history[entry.ID] = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *historyRepo) ListByOrder(_ context.Context, orderID int64) ([]*models.HistoryEntry, error) {
	out := make([]*models.HistoryEntry, 0)
	err := r.h.read(func(st *state) error {
		for _, e := range st.history {
			if e.OrderID == orderID {
				e.AuthorName = st.users[e.AuthorID].Name
				out = append(out, &e)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, err
}

// newer orders rows newest first, breaking ties on the higher id.
func newer(ta time.Time, ida int64, tb time.Time, idb int64) bool {
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return ida > idb
}
