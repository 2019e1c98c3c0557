package httpapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/server/models"
)

type messageResponse struct {
	Message string `json:"mensagem"`
	ID      int64  `json:"id,omitempty"`
}

type loginRequest struct {
	Name     string `json:"nome"`
	Password string `json:"senha"`
}

type loginResponse struct {
	Success bool   `json:"sucesso"`
	Message string `json:"mensagem"`
	Token   string `json:"token,omitempty"`
}

type registerRequest struct {
	Name      string `json:"nome"`
	Password  string `json:"senha"`
	Apartment string `json:"apartamento"`
	Role      string `json:"tipo"`
}

type userResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"nome"`
	Role      string `json:"tipo"`
	Apartment string `json:"apartamento"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type createOrderRequest struct {
	NoteID      flexID `json:"nota_id"`
	Description string `json:"descricao"`
}

type historyRequest struct {
	Description string `json:"descricao"`
}

// flexID accepts an id sent as a JSON number or as a numeric string; the
// browser reads ids from the query string.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(v)
	return nil
}

type noteResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"titulo"`
	Description string    `json:"descricao"`
	Image       *string   `json:"imagem"`
	Status      string    `json:"status"`
	AuthorID    int64     `json:"autor_id"`
	Author      string    `json:"autor"`
	CreatedAt   time.Time `json:"criada_em"`
}

func newNoteResponse(n *models.Note) noteResponse {
	return noteResponse{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		Image:       optional(n.ImagePath),
		Status:      string(n.Status),
		AuthorID:    n.AuthorID,
		Author:      n.AuthorName,
		CreatedAt:   n.CreatedAt,
	}
}

type orderResponse struct {
	ID          int64     `json:"id"`
	NoteID      int64     `json:"nota_id"`
	AdminID     int64     `json:"admin_id"`
	Description string    `json:"descricao"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	NoteTitle   string    `json:"nota_titulo"`
	Image       *string   `json:"imagem"`
	AdminName   string    `json:"admin_nome"`
}

func newOrderResponse(o *models.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		NoteID:      o.NoteID,
		AdminID:     o.AdminID,
		Description: o.Description,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		NoteTitle:   o.NoteTitle,
		Image:       optional(o.NoteImage),
		AdminName:   o.AdminName,
	}
}

type historyResponse struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"ordem_id"`
	AuthorID    int64     `json:"autor_id"`
	Author      string    `json:"autor"`
	Description string    `json:"descricao"`
	CreatedAt   time.Time `json:"criado_em"`
}

func newHistoryResponse(h *models.HistoryEntry) historyResponse {
	return historyResponse{
		ID:          h.ID,
		OrderID:     h.OrderID,
		AuthorID:    h.AuthorID,
		Author:      h.AuthorName,
		Description: h.Text,
		CreatedAt:   h.CreatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapSlice[T, R any](in []T, f func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

var _ json.Unmarshaler = (*flexID)(nil)
