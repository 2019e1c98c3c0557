// Package common defines shared constants and the error taxonomy used across
// the server layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error. The HTTP layer maps kinds to status codes.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindPermissionDenied
	KindConflict
	KindNotFound
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPermissionDenied:
		return "permission denied"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a domain error carrying a user-facing message. Err, when set, is
// the underlying cause and is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind sentinel of e, so that
// errors.Is(err, ErrConflict) holds for every conflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels. They carry no message and match any error of their kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrUnauthenticated  = &Error{Kind: KindUnauthenticated}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrStorage          = &Error{Kind: KindStorage}
)

func Validation(msg string) *Error       { return &Error{Kind: KindValidation, Message: msg} }
func Unauthenticated(msg string) *Error  { return &Error{Kind: KindUnauthenticated, Message: msg} }
func PermissionDenied(msg string) *Error { return &Error{Kind: KindPermissionDenied, Message: msg} }
func Conflict(msg string) *Error         { return &Error{Kind: KindConflict, Message: msg} }
func NotFound(msg string) *Error         { return &Error{Kind: KindNotFound, Message: msg} }

// Storage wraps a backing-store failure. The message is generic on purpose;
// the cause is kept for logging only.
func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Message: "Erro no servidor.", Err: err}
}

// AsStorage returns err unchanged when it already is a domain error and wraps
// it as a storage error otherwise.
func AsStorage(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Storage(err)
}

// KindOf returns the kind of err, or KindStorage for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Erro no servidor."
}

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Auth errors.
	ErrNotAuthenticated   = Unauthenticated("Usuário não autenticado.")
	ErrAdminOnly          = PermissionDenied("Apenas administradores podem realizar esta ação.")
	ErrNotNoteAuthor      = PermissionDenied("Apenas o autor da nota ou um administrador pode alterá-la.")
	ErrInvalidCredentials = Unauthenticated("Usuário ou senha incorretos.")
	ErrInvalidToken       = Unauthenticated("Sessão inválida.")
	ErrTokenExpired       = Unauthenticated("Sessão expirada.")

	// Identity errors.
	ErrUserAlreadyExists = Conflict("Já existe um usuário com este nome.")

	// Workflow errors.
	ErrNoteNotFound       = NotFound("Nota não encontrada.")
	ErrOrderNotFound      = NotFound("Ordem de serviço não encontrada.")
	ErrOrderAlreadyExists = Conflict("Esta nota já possui ordem de serviço.")
	ErrOrderClosed        = Conflict("Ordem de serviço encerrada não pode ser alterada.")
	ErrNoteFrozen         = Conflict("A ordem de serviço desta nota está encerrada.")
	ErrNoteClosed         = Conflict("Nota encerrada não pode ser alterada.")
)
