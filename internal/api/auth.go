package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lt-jshipley/appcore/internal/core/domain"
)

// Auth wraps the two credential endpoints. Payloads are validated locally
// before any request is issued — a rejected input never reaches the wire.
type Auth struct {
	client   *Client
	validate *validator.Validate
}

// NewAuth builds the auth surface over an existing pipeline client.
func NewAuth(client *Client) *Auth {
	return &Auth{client: client, validate: validator.New()}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Result is the payload of a successful login or registration.
type Result struct {
	Token string             `json:"token"`
	User  domain.UserSummary `json:"user"`
}

// Login authenticates against POST /auth/login.
func (a *Auth) Login(ctx context.Context, email, password string) (*Result, error) {
	req := loginRequest{Email: email, Password: password}
	if err := a.check(req); err != nil {
		return nil, err
	}

	var res Result
	if err := a.client.Post(ctx, "/auth/login", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Register creates an account against POST /auth/register.
func (a *Auth) Register(ctx context.Context, name, email, password string) (*Result, error) {
	req := registerRequest{Name: name, Email: email, Password: password}
	if err := a.check(req); err != nil {
		return nil, err
	}

	var res Result
	if err := a.client.Post(ctx, "/auth/register", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *Auth) check(payload any) error {
	err := a.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return err
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
