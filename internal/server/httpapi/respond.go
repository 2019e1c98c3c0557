package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/zeladoria/internal/common"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 10 << 20
)

var (
	errBadJSON = common.Validation("Requisição inválida.")
	errBadForm = common.Validation("Formulário inválido.")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// statusFor maps the error taxonomy to HTTP status codes. Conflicts are
// 400 unless a route says otherwise; a frozen or closed note is 403.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNoteFrozen), errors.Is(err, common.ErrNoteClosed):
		return http.StatusForbidden
	}

	switch common.KindOf(err) {
	case common.KindValidation, common.KindConflict:
		return http.StatusBadRequest
	case common.KindUnauthenticated:
		return http.StatusUnauthorized
	case common.KindPermissionDenied:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a {mensagem} body. Storage failures are logged with
// their cause; clients only get the generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.failWith(w, r, err, statusFor(err))
}

// failConflictAs is fail with conflicts reported as status.
func (s *Server) failConflictAs(w http.ResponseWriter, r *http.Request, err error, status int) {
	if common.KindOf(err) == common.KindConflict {
		s.failWith(w, r, err, status)
		return
	}
	s.fail(w, r, err)
}

func (s *Server) failWith(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeMessage(w, status, common.MessageOf(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}
