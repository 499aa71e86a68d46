// Package devserver is an in-process backend implementing the wire
// contract the coordinator consumes: /auth/login and /auth/register
// returning {token, user}, resource endpoints returning their body
// directly, and {message, errors?} envelopes with a non-2xx status on
// failure. It keeps users in memory so local development and the
// integration tests need no daemon.
package devserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/lt-jshipley/appcore/internal/core/domain"
)

const tokenTTL = 24 * time.Hour

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errUserExists         = errors.New("user already exists")
	errNotFound           = errors.New("not found")
)

type account struct {
	domain.UserSummary
	passwordHash string
}

// Server is the stub backend. Obtain an http.Handler with Handler and
// mount it wherever the test or dev loop needs it.
type Server struct {
	e      *echo.Echo
	secret string
	log    zerolog.Logger

	mu     sync.Mutex
	users  map[string]*account // keyed by email
	nextID int
}

// New builds a Server minting HS256 tokens with the given secret.
func New(secret string, log zerolog.Logger) *Server {
	s := &Server{
		secret: secret,
		log:    log,
		users:  make(map[string]*account),
		nextID: 1,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.HTTPErrorHandler = s.errorHandler

	e.POST("/auth/register", s.register)
	e.POST("/auth/login", s.login)

	authed := e.Group("", s.auth)
	authed.GET("/users", s.listUsers)
	authed.GET("/users/:id", s.getUser)
	authed.PATCH("/profile", s.patchProfile)
	authed.GET("/dashboard", s.dashboard)

	s.e = e
	return s
}

// Handler exposes the server as an http.Handler (httptest-friendly).
func (s *Server) Handler() http.Handler {
	return s.e
}

// Seed registers a user directly, for tests and dev bootstrap.
func (s *Server) Seed(name, email, password string) (domain.UserSummary, error) {
	return s.createUser(name, email, password)
}

// ── Handlers ─────────────────────────────────────────────────────────────────

type credentialsRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string             `json:"token"`
	User  domain.UserSummary `json:"user"`
}

func (s *Server) register(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return errInvalidCredentials
	}

	user, err := s.createUser(req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	token, err := s.mint(user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) login(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	acct, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok {
		return errInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.passwordHash), []byte(req.Password)) != nil {
		return errInvalidCredentials
	}

	token, err := s.mint(acct.UserSummary)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{Token: token, User: acct.UserSummary})
}

func (s *Server) listUsers(c echo.Context) error {
	s.mu.Lock()
	out := make([]domain.UserSummary, 0, len(s.users))
	for _, acct := range s.users {
		out = append(out, acct.UserSummary)
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getUser(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.users {
		if acct.ID == id {
			return c.JSON(http.StatusOK, acct.UserSummary)
		}
	}
	return errNotFound
}

type profilePatch struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *Server) patchProfile(c echo.Context) error {
	var req profilePatch
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	subject, _ := c.Get("user_id").(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	for email, acct := range s.users {
		if acct.ID != subject {
			continue
		}
		if req.Name != nil {
			acct.Name = *req.Name
		}
		if req.Email != nil {
			acct.Email = *req.Email
			delete(s.users, email)
			s.users[acct.Email] = acct
		}
		return c.JSON(http.StatusOK, acct.UserSummary)
	}
	return errNotFound
}

func (s *Server) dashboard(c echo.Context) error {
	s.mu.Lock()
	count := len(s.users)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{"user_count": count})
}

// ── Auth middleware (bearer token validation) ────────────────────────────────

func (s *Server) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
		}

		claims := jwt.MapClaims{}
		tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(s.secret), nil
		})
		if err != nil || !tkn.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set("user_id", claims["sub"])
		return next(c)
	}
}

// ── Internals ────────────────────────────────────────────────────────────────

func (s *Server) createUser(name, email, password string) (domain.UserSummary, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.UserSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return domain.UserSummary{}, errUserExists
	}
	acct := &account{
		UserSummary: domain.UserSummary{
			ID:    strconv.Itoa(s.nextID),
			Name:  name,
			Email: email,
		},
		passwordHash: string(hash),
	}
	s.nextID++
	s.users[email] = acct
	return acct.UserSummary, nil
}

func (s *Server) mint(user domain.UserSummary) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"exp":   time.Now().Add(tokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.secret))
}

// errorHandler renders the {message} envelope for every failure, mapping
// known sentinels to deterministic status codes and logging the rest
// without leaking details to the client.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := s.resolve(err, c)
	_ = c.JSON(code, map[string]string{"message": msg})
}

func (s *Server) resolve(err error, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	}

	switch {
	case errors.Is(err, errInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, errUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, errNotFound):
		return http.StatusNotFound, "not found"
	}

	s.log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
