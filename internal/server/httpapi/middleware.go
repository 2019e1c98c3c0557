package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/logging"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const actorKey ctxKey = "actor"

// actorFrom returns the caller resolved by the session middleware, or nil.
func actorFrom(ctx context.Context) *policy.Actor {
	a, _ := ctx.Value(actorKey).(*policy.Actor)
	return a
}

// sessionToken reads the token from the session cookie or, for clients
// without cookies, from the access token header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(common.SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(common.AccessTokenHeaderName)
}

// withActor resolves the session token into the request's actor. Requests
// without a usable token continue anonymously and are turned away by the
// services where a session is needed.
func (s *Server) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		actor, err := s.users.Authenticate(r.Context(), token)
		if err != nil {
			if common.KindOf(err) == common.KindStorage {
				s.fail(w, r, err)
				return
			}
			s.logger.Debug(r.Context(), "session rejected", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = logging.ContextWith(ctx, "user_id", actor.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tagRequest puts the request id into the logging context, so that service
// log lines can be matched to the request line.
func tagRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWith(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logRequests logs one line per request once the response is written.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
