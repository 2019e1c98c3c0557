package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/auth"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/dmitrijs2005/zeladoria/internal/server/policy"
	"github.com/dmitrijs2005/zeladoria/internal/server/sessions"
)

var (
	ErrMissingUserFields   = common.Validation("Todos os campos são obrigatórios.")
	ErrMissingCredentials  = common.Validation("Informe usuário e senha.")
	errSessionUserMismatch = errors.New("session belongs to another user")
)

// RegisterInput is the raw registration form.
type RegisterInput struct {
	Name      string
	Password  string
	Apartment string
	Role      string
}

// LoginResult is a signed session token and the user it was issued for.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// UserService handles registration, login, logout and resolving a session
// token into the acting user.
type UserService struct {
	base
	sessions        sessions.Store
	jwtSecret       []byte
	sessionValidity time.Duration
}

func NewUserService(d Deps, store sessions.Store, jwtSecret string, sessionValidity time.Duration) *UserService {
	return &UserService{
		base:            newBase(d, "users"),
		sessions:        store,
		jwtSecret:       []byte(jwtSecret),
		sessionValidity: sessionValidity,
	}
}

// Register creates an account. Only administrators may register users.
func (s *UserService) Register(ctx context.Context, actor *policy.Actor, in RegisterInput) (*models.User, error) {
	if err := policy.Authorize(actor, policy.ActionRegisterUser); err != nil {
		return nil, err
	}

	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "role", string(u.Role), "by", actor.UserID)
	return u, nil
}

// BootstrapAdmin creates an administrator without an acting user. It backs
// the admin command, which is the only way to get the first account.
func (s *UserService) BootstrapAdmin(ctx context.Context, name, password, apartment string) (*models.User, error) {
	return s.create(ctx, RegisterInput{
		Name:      name,
		Password:  password,
		Apartment: apartment,
		Role:      string(models.RoleAdmin),
	})
}

func (s *UserService) create(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	apartment := strings.TrimSpace(in.Apartment)
	if name == "" || in.Password == "" || apartment == "" || strings.TrimSpace(in.Role) == "" {
		return nil, ErrMissingUserFields
	}

	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, common.Storage(err)
	}

	u, err := s.repos.Users(s.tx.Conn()).Create(ctx, &models.User{
		Name:         name,
		PasswordHash: hash,
		Apartment:    apartment,
		Role:         role,
	})
	if err != nil {
		return nil, common.AsStorage(err)
	}
	return u, nil
}

// dummyHash is compared against when the user does not exist, so that a
// missing account costs the same as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := auth.HashPassword("zeladoria")
	return h
})

// Login verifies the credentials and opens a session.
func (s *UserService) Login(ctx context.Context, name, password string) (*LoginResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	u, err := s.repos.Users(s.tx.Conn()).GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = auth.CheckPassword(dummyHash(), password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.AsStorage(err)
	}

	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return nil, common.ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, u.ID, s.sessionValidity)
	if err != nil {
		return nil, common.AsStorage(err)
	}

	token, err := auth.GenerateToken(u.ID, sess.ID, s.jwtSecret, s.sessionValidity)
	if err != nil {
		return nil, common.Storage(err)
	}

	s.log.Info(ctx, "user logged in", "user_id", u.ID)
	return &LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, User: u}, nil
}

// Logout revokes the session behind token. Unusable tokens are ignored.
func (s *UserService) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return common.AsStorage(err)
	}
	return nil
}

// Authenticate resolves a session token into the acting user. The token
// must be valid and its session must still exist.
func (s *UserService) Authenticate(ctx context.Context, token string) (*policy.Actor, error) {
	if token == "" {
		return nil, common.ErrNotAuthenticated
	}

	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Find(ctx, claims.SessionID)
	if err != nil {
		return nil, notFound(err, common.ErrInvalidToken)
	}
	if sess.UserID != claims.UserID {
		s.log.Warn(ctx, "token rejected", "error", errSessionUserMismatch, "user_id", claims.UserID)
		return nil, common.ErrInvalidToken
	}

	u, err := s.repos.Users(s.tx.Conn()).GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, notFound(err, common.ErrInvalidToken)
	}

	return &policy.Actor{UserID: u.ID, Name: u.Name, Role: u.Role}, nil
}

// Me returns the account of the acting user.
func (s *UserService) Me(ctx context.Context, actor *policy.Actor) (*models.User, error) {
	if actor == nil {
		return nil, common.ErrNotAuthenticated
	}
	u, err := s.repos.Users(s.tx.Conn()).GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound(err, common.ErrNotAuthenticated)
	}
	return u, nil
}
