package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lt-jshipley/appcore/internal/cache"
	"github.com/lt-jshipley/appcore/internal/core/domain"
	"github.com/lt-jshipley/appcore/internal/devserver"
	"github.com/lt-jshipley/appcore/internal/nav"
	"github.com/lt-jshipley/appcore/internal/pkg/config"
)

func newTestApp(t *testing.T) (*App, *devserver.Server) {
	t.Helper()

	backend := devserver.New("test-secret", zerolog.Nop())
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		APIBaseURL:    srv.URL,
		Env:           "test",
		LogLevel:      "error",
		DefaultLocale: "en",
		StateDir:      t.TempDir(),
		Cache: config.CacheConfig{
			StaleAfter:  time.Minute,
			GCAfter:     30 * time.Minute,
			ReadRetries: 1,
		},
	}

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(a.Close)
	return a, backend
}

func TestApp_GuardBlocksUntilLogin(t *testing.T) {
	a, backend := newTestApp(t)
	if _, err := backend.Seed("Ann", "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var loads atomic.Int32
	a.SetRoutes(
		&nav.Route{Path: "login"},
		&nav.Route{
			Path:  "app",
			Guard: nav.RequireAuth(a.Sessions, "/login"),
			Children: []*nav.Route{{
				Path: "users",
				Loaders: []nav.Loader{func(ctx context.Context, p nav.Params) error {
					loads.Add(1)
					_, err := cache.Ensure(ctx, a.Cache, cache.K("users"), func(ctx context.Context) ([]domain.UserSummary, error) {
						var users []domain.UserSummary
						return users, a.API.Get(ctx, "/users", nil, &users)
					})
					return err
				}},
			}},
		},
	)

	out, err := a.Router.Navigate(context.Background(), "/app/users")
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if out.Allowed || out.Redirect == nil {
		t.Fatalf("expected redirect before login: %+v", out)
	}
	if out.Redirect.To != "/login" || out.Redirect.From != "/app/users" {
		t.Fatalf("unexpected redirect: %+v", out.Redirect)
	}
	if loads.Load() != 0 {
		t.Fatalf("protected loader ran against an absent session")
	}

	if err := a.Login(context.Background(), "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !a.Sessions.State().IsAuthenticated {
		t.Fatalf("expected authenticated session after login")
	}

	out, err = a.Router.Navigate(context.Background(), "/app/users")
	if err != nil {
		t.Fatalf("Navigate after login: %v", err)
	}
	if !out.Allowed || loads.Load() != 1 {
		t.Fatalf("expected loader to run exactly once: %+v, loads=%d", out, loads.Load())
	}
}

func TestApp_AuthenticatedRequestCarriesBearer(t *testing.T) {
	a, backend := newTestApp(t)
	if _, err := backend.Seed("Ann", "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Without a session the backend rejects the call.
	var users []domain.UserSummary
	err := a.API.Get(context.Background(), "/users", nil, &users)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Fatalf("expected 401 before login, got %v", err)
	}

	if err := a.Login(context.Background(), "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// The very next call picks up the fresh token.
	if err := a.API.Get(context.Background(), "/users", nil, &users); err != nil {
		t.Fatalf("Get after login: %v", err)
	}
	if len(users) != 1 || users[0].Email != "a@x.com" {
		t.Fatalf("unexpected users: %+v", users)
	}
}

func TestApp_NotFoundYieldsTypedError(t *testing.T) {
	a, backend := newTestApp(t)
	if _, err := backend.Seed("Ann", "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := a.Login(context.Background(), "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	err := a.API.Get(context.Background(), "/users/999", nil, nil)
	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *domain.APIError, got %T: %v", err, err)
	}
	if apiErr.Status != 404 || apiErr.Message != "not found" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestApp_MutationThenInvalidationRefetches(t *testing.T) {
	a, backend := newTestApp(t)
	if _, err := backend.Seed("Ann", "a@x.com", "s3cret-pass"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := a.Register(context.Background(), "Bob", "b@x.com", "longenough"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	fetchProfile := func(ctx context.Context) (domain.UserSummary, error) {
		var u domain.UserSummary
		id := a.Sessions.State().User.ID
		return u, a.API.Get(ctx, "/users/"+id, nil, &u)
	}

	key := cache.K("users", a.Sessions.State().User.ID)
	before, err := cache.Ensure(context.Background(), a.Cache, key, fetchProfile)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if before.Name != "Bob" {
		t.Fatalf("unexpected profile: %+v", before)
	}

	// Write through the pipeline, then invalidate what the write implies.
	newName := "Robert"
	var updated domain.UserSummary
	if err := a.API.Patch(context.Background(), "/profile", map[string]string{"name": newName}, &updated); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	a.Sessions.UpdateUser(domain.UserPatch{Name: &newName})
	a.Cache.Invalidate(cache.K("users"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := cache.Ensure(context.Background(), a.Cache, key, fetchProfile)
		if err != nil {
			t.Fatalf("Ensure after invalidation: %v", err)
		}
		if got.Name == "Robert" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cache never converged after invalidation: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
