package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/services"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.users.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Message: "Login realizado com sucesso!", Token: res.Token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if actorFrom(r.Context()) == nil {
		s.fail(w, r, common.ErrNotAuthenticated)
		return
	}

	if err := s.users.Logout(r.Context(), sessionToken(r)); err != nil {
		s.fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeMessage(w, http.StatusOK, "Logout realizado com sucesso!")
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Me(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Name: u.Name, Role: string(u.Role), Apartment: u.Apartment})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	u, err := s.users.Register(r.Context(), actorFrom(r.Context()), services.RegisterInput{
		Name:      req.Name,
		Password:  req.Password,
		Apartment: req.Apartment,
		Role:      req.Role,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Usuário cadastrado com sucesso!", ID: u.ID})
}
