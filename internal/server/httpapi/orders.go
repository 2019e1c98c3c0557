package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/reports"
)

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	list, err := s.orders.List(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newOrderResponse))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	o, err := s.orders.Create(r.Context(), actorFrom(r.Context()), int64(req.NoteID), req.Description)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Ordem de serviço criada com sucesso!", ID: o.ID})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", common.ErrOrderNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	o, err := s.orders.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// getOrderByNote answers null when the note has no visible order.
func (s *Server) getOrderByNote(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r, "notaId", common.ErrNoteNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	o, err := s.orders.GetByNote(r.Context(), actorFrom(r.Context()), noteID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if o == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", common.ErrOrderNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.orders.UpdateStatus(r.Context(), actorFrom(r.Context()), id, req.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Status da ordem atualizado com sucesso!")
}

// exportOrders renders the filtered orders as a spreadsheet. It is built
// in memory so that a failure still yields a JSON error.
func (s *Server) exportOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.orders.Export(r.Context(), actorFrom(r.Context()), f, &buf); err != nil {
		s.fail(w, r, err)
		return
	}

	name := fmt.Sprintf("ordens-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", reports.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// appendHistory reports a closed order as 403.
func (s *Server) appendHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", common.ErrOrderNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req historyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	e, err := s.history.Append(r.Context(), actorFrom(r.Context()), id, req.Description)
	if err != nil {
		s.failConflictAs(w, r, err, http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Histórico registrado com sucesso!", ID: e.ID})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", common.ErrOrderNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	list, err := s.history.List(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newHistoryResponse))
}
