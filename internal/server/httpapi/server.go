// Package httpapi exposes the maintenance services over HTTP with JSON
// bodies. A middleware resolves the session into the request's actor and
// every handler hands that actor to the services explicitly.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/dmitrijs2005/zeladoria/internal/server/query"
	"github.com/dmitrijs2005/zeladoria/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type UserService interface {
	Register(ctx context.Context, actor *policy.Actor, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, name, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*policy.Actor, error)
	Me(ctx context.Context, actor *policy.Actor) (*models.User, error)
}

type NoteService interface {
	Create(ctx context.Context, actor *policy.Actor, in services.CreateNoteInput) (*models.Note, error)
	Get(ctx context.Context, actor *policy.Actor, id int64) (*models.Note, error)
	List(ctx context.Context, actor *policy.Actor, f query.Filter) ([]*models.Note, error)
	UpdateStatus(ctx context.Context, actor *policy.Actor, id int64, status string) error
	AttachImage(ctx context.Context, actor *policy.Actor, id int64, image io.Reader) (*models.Note, error)
}

type OrderService interface {
	Create(ctx context.Context, actor *policy.Actor, noteID int64, description string) (*models.Order, error)
	Get(ctx context.Context, actor *policy.Actor, id int64) (*models.Order, error)
	GetByNote(ctx context.Context, actor *policy.Actor, noteID int64) (*models.Order, error)
	List(ctx context.Context, actor *policy.Actor, f query.Filter) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, actor *policy.Actor, id int64, status string) error
	Export(ctx context.Context, actor *policy.Actor, f query.Filter, w io.Writer) error
}

type HistoryService interface {
	Append(ctx context.Context, actor *policy.Actor, orderID int64, text string) (*models.HistoryEntry, error)
	List(ctx context.Context, actor *policy.Actor, orderID int64) ([]*models.HistoryEntry, error)
}

// Services groups the handlers' collaborators.
type Services struct {
	Users   UserService
	Notes   NoteService
	Orders  OrderService
	History HistoryService
}

// Server is the HTTP front of the application.
type Server struct {
	address       string
	users         UserService
	notes         NoteService
	orders        OrderService
	history       HistoryService
	uploads       http.Handler
	uploadsPrefix string
	logger        logging.Logger
}

// NewServer builds a Server. uploads serves stored images below
// uploadsPrefix and may be nil.
func NewServer(address string, l logging.Logger, svc Services, uploads http.Handler, uploadsPrefix string) *Server {
	return &Server{
		address:       address,
		users:         svc.Users,
		notes:         svc.Notes,
		orders:        svc.Orders,
		history:       svc.History,
		uploads:       uploads,
		uploadsPrefix: "/" + strings.Trim(uploadsPrefix, "/"),
		logger:        l.With("module", "http_server"),
	}
}

// Handler returns the routing tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(tagRequest)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.uploads != nil {
		r.Handle(s.uploadsPrefix+"/*", http.StripPrefix(s.uploadsPrefix, s.uploads))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.withActor)

		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.Get("/user", s.me)
		r.Post("/cadastrar", s.register)

		r.Post("/criar-nota", s.createNote)
		r.Get("/notas", s.listNotes)
		r.Get("/notas/{id}", s.getNote)
		r.Put("/notas/{id}/status", s.updateNoteStatus)
		r.Post("/notas/{id}/imagem", s.attachNoteImage)

		r.Get("/ordens", s.listOrders)
		r.Post("/ordens", s.createOrder)
		r.Get("/ordens/relatorio", s.exportOrders)
		r.Get("/ordens/nota/{notaId}", s.getOrderByNote)
		r.Get("/ordens/{id}", s.getOrder)
		r.Put("/ordens/{id}/status", s.updateOrderStatus)
		r.Post("/ordens/{id}/historico", s.appendHistory)
		r.Get("/ordens/{id}/historico", s.listHistory)
	})

	return r
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
