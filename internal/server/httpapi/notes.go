package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
	"github.com/dmitrijs2005/zeladoria/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a form is kept in memory before parts
// spill to temporary files.
const multipartMemory = 2 << 20

// pathID reads an int64 URL parameter. Malformed ids are reported as
// missing entities through nf.
func pathID(r *http.Request, name string, nf error) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, nf
	}
	return id, nil
}

func parseFilter(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	return query.Parse(q.Get("status"), q.Get("inicio"), q.Get("fim"))
}

// parseMultipart parses a multipart (or urlencoded) form and returns the
// "imagem" file when one was sent.
func parseMultipart(w http.ResponseWriter, r *http.Request) (multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, errBadForm
	}

	f, _, err := r.FormFile("imagem")
	switch {
	case err == nil:
		return f, nil
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, nil
	default:
		return nil, errBadForm
	}
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if actor == nil {
		s.fail(w, r, common.ErrNotAuthenticated)
		return
	}

	file, err := parseMultipart(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	in := services.CreateNoteInput{
		Title:       r.FormValue("titulo"),
		Description: r.FormValue("descricao"),
	}
	if file != nil {
		defer file.Close()
		in.Image = file
	}

	n, err := s.notes.Create(r.Context(), actor, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Nota criada com sucesso!", ID: n.ID})
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	list, err := s.notes.List(r.Context(), actorFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(list, newNoteResponse))
}

func (s *Server) getNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", common.ErrNoteNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	n, err := s.notes.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newNoteResponse(n))
}

func (s *Server) updateNoteStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", common.ErrNoteNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.notes.UpdateStatus(r.Context(), actorFrom(r.Context()), id, req.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Status da nota atualizado com sucesso!")
}

func (s *Server) attachNoteImage(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if actor == nil {
		s.fail(w, r, common.ErrNotAuthenticated)
		return
	}
	id, err := pathID(r, "id", common.ErrNoteNotFound)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	file, err := parseMultipart(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if file == nil {
		s.fail(w, r, services.ErrMissingImage)
		return
	}
	defer file.Close()

	if _, err := s.notes.AttachImage(r.Context(), actor, id, file); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Imagem anexada com sucesso!")
}
